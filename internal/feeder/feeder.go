// Package feeder assembles complete statements for internal/parser
// out of a line-at-a-time input source, joining backslash-newline
// continuations transparently and re-prompting while a quote,
// heredoc, or compound construct is still open (spec.md §4.1). This
// is the same incremental contract original_source's Feeder exposes
// through feed_line/feed_additional_line, generalized here over any
// LineSource rather than being wired directly to a terminal.
package feeder

import (
	"bufio"
	"errors"
	"io"
	"regexp"
	"strings"

	"github.com/sush-shell/sush/internal/ast"
	"github.com/sush-shell/sush/internal/parser"
)

// LineSource supplies one line of input at a time; prompt is shown in
// interactive mode and ignored otherwise. Returning io.EOF (or any
// error) signals end of input.
type LineSource interface {
	ReadLine(prompt string) (string, error)
}

// ScannerSource adapts a bufio.Scanner — stdin pipe, a script file, or
// an rc file — to LineSource for non-interactive use
// (spec.md §4.1 "non-interactive"); prompt is ignored.
type ScannerSource struct {
	Scanner *bufio.Scanner
}

func (s *ScannerSource) ReadLine(prompt string) (string, error) {
	if !s.Scanner.Scan() {
		if err := s.Scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return s.Scanner.Text(), nil
}

// Feeder assembles complete statements from a LineSource, tracking
// from/to line numbers the way original_source's Feeder does so
// parser.SyntaxError lines make sense across a multi-line statement.
type Feeder struct {
	src      LineSource
	extglob  bool
	fromLine int
	toLine   int
}

// New creates a Feeder reading from src. extglob is forwarded to
// every parser.New call so `?()*()+()@()!()` parses consistently with
// whatever `shopt -s extglob` state the caller passes in.
func New(src LineSource, extglob bool) *Feeder {
	return &Feeder{src: src, extglob: extglob}
}

// Lineno reports the 1-based (from, to) line range the most recently
// returned statement spanned (original_source Feeder.lineno).
func (f *Feeder) Lineno() (int, int) { return f.fromLine, f.toLine }

// ErrEndOfInput is returned once the source is exhausted with no
// partial statement pending — the caller should stop the REPL/script
// loop, not report a syntax error.
var ErrEndOfInput = errors.New("feeder: end of input")

// Next reads and assembles one complete statement, re-prompting with
// ps2 while a quote, heredoc, or compound construct is still open.
// Hitting end of input mid-construct is a syntax error (spec.md §4.1:
// "end-of-stream while a construct is open is a syntax error with
// exit status 2"); hitting it with nothing pending returns
// ErrEndOfInput. raw is the exact assembled source text, for history
// and for error display.
func (f *Feeder) Next(ps1, ps2 string) (prog *ast.Node, raw string, err error) {
	line, err := f.src.ReadLine(ps1)
	if err != nil {
		return nil, "", ErrEndOfInput
	}
	f.fromLine++
	f.toLine = f.fromLine

	buf, err := f.joinContinuations(line, ps2)
	if err != nil {
		return nil, buf, err
	}

	for {
		if tag, open := pendingHeredocTag(buf); open {
			more, rerr := f.src.ReadLine(ps2)
			if rerr != nil {
				return nil, buf, f.incomplete("heredoc `" + tag + "' not terminated before end of input")
			}
			f.toLine++
			buf += "\n" + more
			continue
		}
		if quoteOpen(buf) {
			more, rerr := f.src.ReadLine(ps2)
			if rerr != nil {
				return nil, buf, f.incomplete("quote not terminated before end of input")
			}
			f.toLine++
			buf += "\n" + more
			continue
		}

		prog, perr := parser.New(buf, f.extglob).ParseProgram()
		if perr == nil {
			return prog, buf, nil
		}
		se, ok := perr.(*parser.SyntaxError)
		if !ok || !se.Incomplete {
			return nil, buf, perr
		}
		more, rerr := f.src.ReadLine(ps2)
		if rerr != nil {
			se.Msg = "unexpected end of input: " + se.Msg
			return nil, buf, se
		}
		f.toLine++
		buf += "\n" + more
	}
}

func (f *Feeder) incomplete(msg string) error {
	return &parser.SyntaxError{Line: f.fromLine, Msg: msg, Incomplete: true}
}

// joinContinuations resolves `\<newline>` (spec.md §4.1): the
// backslash and the newline it precedes both disappear, and the next
// line is spliced directly onto what remains — no separator is
// inserted, matching how a shell treats the two physical lines as one
// logical line.
func (f *Feeder) joinContinuations(line, ps2 string) (string, error) {
	for hasUnescapedTrailingBackslash(line) {
		line = line[:len(line)-1]
		more, err := f.src.ReadLine(ps2)
		if err != nil {
			return line, f.incomplete("line continuation not followed by another line")
		}
		f.toLine++
		line += more
	}
	return line, nil
}

func hasUnescapedTrailingBackslash(s string) bool {
	n := 0
	for i := len(s) - 1; i >= 0 && s[i] == '\\'; i-- {
		n++
	}
	return n%2 == 1
}

var heredocOpPattern = regexp.MustCompile(`<<(-?)\s*(['"]?)([A-Za-z_][A-Za-z0-9_]*)['"]?`)

// pendingHeredocTag reports the first heredoc marker in buf whose
// terminator line hasn't appeared yet. internal/parser's own
// stripHeredocs absorbs an unterminated heredoc silently up to EOF
// rather than erroring, so the feeder has to catch this itself before
// ever handing buf to the parser.
func pendingHeredocTag(buf string) (string, bool) {
	lines := strings.Split(buf, "\n")
	for i, line := range lines {
		for _, m := range heredocOpPattern.FindAllStringSubmatch(line, -1) {
			stripTabs := m[1] == "-"
			tag := m[3]
			found := false
			for j := i + 1; j < len(lines); j++ {
				check := lines[j]
				if stripTabs {
					check = strings.TrimLeft(check, "\t")
				}
				if check == tag {
					found = true
					break
				}
			}
			if !found {
				return tag, true
			}
		}
	}
	return "", false
}

// quoteOpen reports whether buf ends with an odd quote still open.
// Comment-skipping is intentionally not modeled here (a `#` inside an
// otherwise-unquoted line is rare mid-continuation and this is a
// line-assembly heuristic, not the lexer); a stray `#` could in
// principle mask a real unterminated quote, a known simplification.
func quoteOpen(buf string) bool {
	inSingle, inDouble, escaped := false, false, false
	for _, r := range buf {
		switch {
		case escaped:
			escaped = false
		case inSingle:
			if r == '\'' {
				inSingle = false
			}
		case inDouble:
			switch r {
			case '\\':
				escaped = true
			case '"':
				inDouble = false
			}
		default:
			switch r {
			case '\'':
				inSingle = true
			case '"':
				inDouble = true
			case '\\':
				escaped = true
			}
		}
	}
	return inSingle || inDouble
}
