package exec

import (
	"fmt"
	"os"

	"github.com/sush-shell/sush/internal/ast"
	"github.com/sush-shell/sush/internal/lexer"
	"github.com/sush-shell/sush/internal/token"
)

// getFD/setFD model the shell's 0/1/2 triplet plus any explicit
// higher fd (spec.md §5: "Temporary fds used for saving must be
// above 9"). Builtins and in-process compound bodies only ever read
// or write through these three *os.File fields — there's no shared
// kernel fd table to dup against, so "save the current fd, install
// the new one, restore on exit" (spec.md §4.8) is just swapping which
// *os.File these fields point at, saved and restored on a stack. A
// forked external command gets whichever *os.File is current at
// fork time handed straight to os/exec, which performs the real dup
// into the child's fd table.
func (ex *Executor) getFD(fd int) *os.File {
	switch fd {
	case 0:
		return ex.stdin
	case 1:
		return ex.stdout
	case 2:
		return ex.stderr
	default:
		return ex.extra[fd]
	}
}

func (ex *Executor) setFD(fd int, f *os.File) {
	switch fd {
	case 0:
		ex.stdin = f
	case 1:
		ex.stdout = f
	case 2:
		ex.stderr = f
	default:
		if f == nil {
			delete(ex.extra, fd)
		} else {
			ex.extra[fd] = f
		}
	}
}

func defaultRedirFD(op token.Kind) int {
	switch op {
	case token.Less, token.DLess, token.DLessDash, token.TLess, token.LessAnd, token.LessGreat:
		return 0
	default:
		return 1
	}
}

// applyRedirects installs n's redirections in order and returns a
// restore func that undoes them — the transactional save/install/run
// /restore cycle spec.md §4.8 describes for non-forked compound
// bodies, reused here for simple commands too since a command's
// redirections never outlive it either way.
func (ex *Executor) applyRedirects(redirs []ast.Redirection) (func(), error) {
	type saved struct {
		fd   int
		file *os.File
	}
	var stack []saved
	var opened []*os.File

	restore := func() {
		for i := len(stack) - 1; i >= 0; i-- {
			ex.setFD(stack[i].fd, stack[i].file)
		}
		for _, f := range opened {
			f.Close()
		}
	}

	for _, r := range redirs {
		fd := r.SourceFD
		if fd < 0 {
			fd = defaultRedirFD(r.Op)
		}
		stack = append(stack, saved{fd: fd, file: ex.getFD(fd)})

		switch r.Op {
		case token.AndGreat, token.AndDGreat:
			f, err := ex.openRedirectTarget(r, r.Op == token.AndDGreat)
			if err != nil {
				restore()
				return nil, err
			}
			opened = append(opened, f)
			stack = append(stack, saved{fd: 2, file: ex.getFD(2)})
			ex.setFD(1, f)
			ex.setFD(2, f)
			continue
		}

		f, err := ex.resolveRedirectFile(r)
		if err != nil {
			restore()
			return nil, err
		}
		if f != nil {
			opened = append(opened, f)
		}
		ex.setFD(fd, f)
	}

	return restore, nil
}

func (ex *Executor) resolveRedirectFile(r ast.Redirection) (*os.File, error) {
	switch r.Op {
	case token.Less:
		return ex.openRedirectTarget(r, false)
	case token.Great, token.Clobber:
		return ex.openRedirectTarget(r, false)
	case token.DGreat:
		return ex.openRedirectTarget(r, true)
	case token.LessGreat:
		target, err := ex.targetPath(r)
		if err != nil {
			return nil, err
		}
		return os.OpenFile(target, os.O_RDWR|os.O_CREATE, 0644)
	case token.DLess, token.DLessDash:
		return ex.materializeHeredoc(r.Heredoc)
	case token.TLess:
		return ex.materializeHeredocString(r)
	case token.LessAnd, token.GreatAnd:
		return ex.dupOrClose(r)
	default:
		return nil, fmt.Errorf("unsupported redirection %s", r.Op)
	}
}

func (ex *Executor) targetPath(r ast.Redirection) (string, error) {
	fields, err := ex.expander.ExpandWords([]ast.Word{r.Target})
	if err != nil {
		return "", err
	}
	if len(fields) != 1 {
		return "", fmt.Errorf("ambiguous redirect")
	}
	return fields[0], nil
}

func (ex *Executor) openRedirectTarget(r ast.Redirection, appendMode bool) (*os.File, error) {
	path, err := ex.targetPath(r)
	if err != nil {
		return nil, err
	}
	if r.Op == token.Less {
		return os.Open(path)
	}
	flags := os.O_WRONLY | os.O_CREATE
	if appendMode {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	return os.OpenFile(path, flags, 0644)
}

// dupOrClose implements `N<&M`/`N>&M`: `-` closes the source fd,
// a bare digit duplicates it (spec.md §4.8's fd-merge forms).
func (ex *Executor) dupOrClose(r ast.Redirection) (*os.File, error) {
	target, err := ex.targetPath(r)
	if err != nil {
		return nil, err
	}
	if target == "-" {
		return nil, nil
	}
	n, err := parseFD(target)
	if err != nil {
		return nil, fmt.Errorf("ambiguous redirect: %s", target)
	}
	return ex.getFD(n), nil
}

func parseFD(s string) (int, error) {
	n := 0
	if s == "" {
		return 0, fmt.Errorf("empty fd")
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("not a fd: %s", s)
		}
		n = n*10 + int(c-'0')
	}
	return n, nil
}

// materializeHeredoc writes a <</<<- body through a pipe (spec.md
// §5: "Heredoc write pipes are closed on error to avoid leaks";
// §4.8: "materialized into a temp pipe written by the shell"). An
// unquoted tag means the body still undergoes parameter/command/
// arithmetic expansion, just never field splitting or globbing — the
// same no-split/no-glob mode ExpandScalar already implements.
func (ex *Executor) materializeHeredoc(h *ast.Heredoc) (*os.File, error) {
	if h == nil {
		return nil, fmt.Errorf("missing heredoc body")
	}
	body := h.Body
	if h.StripTabs {
		body = stripLeadingTabs(body)
	}
	if !h.Quoted {
		var err error
		body, err = ex.expander.ExpandScalar(ast.Word{Raw: body, Segments: lexer.LexWordSegments(body)})
		if err != nil {
			return nil, err
		}
	}
	return ex.pipeFrom(body)
}

func (ex *Executor) materializeHeredocString(r ast.Redirection) (*os.File, error) {
	text, err := ex.targetPath(r)
	if err != nil {
		return nil, err
	}
	return ex.pipeFrom(text + "\n")
}

func (ex *Executor) pipeFrom(body string) (*os.File, error) {
	rd, wr, err := os.Pipe()
	if err != nil {
		return nil, err
	}
	go func() {
		_, werr := wr.WriteString(body)
		if werr != nil {
			wr.Close()
			return
		}
		wr.Close()
	}()
	return rd, nil
}

func stripLeadingTabs(s string) string {
	lines := splitLinesKeepEnds(s)
	for i, line := range lines {
		j := 0
		for j < len(line) && line[j] == '\t' {
			j++
		}
		lines[i] = line[j:]
	}
	joined := ""
	for _, l := range lines {
		joined += l
	}
	return joined
}

func splitLinesKeepEnds(s string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			lines = append(lines, s[start:i+1])
			start = i + 1
		}
	}
	if start < len(s) {
		lines = append(lines, s[start:])
	}
	return lines
}
