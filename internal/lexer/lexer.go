// Package lexer tokenizes shell source text into the word/operator
// stream internal/parser consumes. It generalizes the teacher's
// default/string/escape state machine into these contexts: default,
// single-quote, double-quote, backtick, and the '$'-introduced $(, ${
// and $(( spans. ((, [[ and heredoc bodies have no lexer context of
// their own; internal/parser handles them.
package lexer

import (
	"regexp"
	"strconv"
	"strings"

	golexer "github.com/ZadenRB/go-lexer"
	"github.com/sush-shell/sush/internal/token"
)

// chunk is a low-level piece the state machine emits while building a
// word: either a literal run or a self-contained quoted/expansion
// span. The Lexer merges adjoining chunks into a single Word token's
// Segments slice.
type chunkKind int

const (
	chunkLiteral chunkKind = iota
	chunkSingleQuoted
	chunkDoubleQuoted
	chunkEscaped
	chunkParam
	chunkCommandSub
	chunkArithSub
	chunkTilde
	chunkBoundary // whitespace/operator/EOF encountered; flush pending word
)

const chunkTok golexer.TokenType = -100 // private TokenType used only on the internal channel

type rawChunk struct {
	kind chunkKind
	text string
}

var opRunePattern = regexp.MustCompile(`[&();|<>]`)

// Lexer wraps a go-lexer *L, accumulating word segments on the side
// since go-lexer's channel only carries (Type, Value) pairs.
type Lexer struct {
	l         *golexer.L
	line      int
	col       int
	extglob   bool
	heredocs  []pendingHeredoc
	lookahead *golexer.Token
	atStart   bool
}

type pendingHeredoc struct {
	tag      string
	stripTab bool
	quoted   bool
}

// New creates a lexer over source text. extglob enables the
// ?()*()+()@()!() operators inside bracket-less glob words; it only
// affects how the parser's glob/case matchers interpret the resulting
// literal text, since the lexer itself passes extglob operators
// through as literal characters either way.
func New(source string, extglob bool) *Lexer {
	lx := &Lexer{
		extglob: extglob,
		line:    1,
		atStart: true,
	}
	lx.l = golexer.New(source, lx.lexDefault)
	return lx
}

// Run starts the underlying go-lexer state machine. Tokens become
// available on Tokens() once Run has been called.
func (lx *Lexer) Run() {
	lx.l.RunLexer()
}

// rawTokens exposes the raw go-lexer token channel for structural
// tokens (operators, newline, EOF) and word chunks. Word and IO-number
// tokens are synthesized by Next, not read directly from this channel.
func (lx *Lexer) rawTokens() <-chan golexer.Token {
	return lx.l.Tokens
}

// Next returns the next token.Token, merging consecutive word chunks
// into a single Word token with Segments populated.
func (lx *Lexer) Next() token.Token {
	var segs []token.Segment
	for {
		raw, ok := lx.nextRaw()
		if !ok {
			if len(segs) > 0 {
				return wordOf(segs)
			}
			return token.Token{Type: token.EOF}
		}

		switch raw.Type {
		case chunkTok:
			c := decodeChunk(raw.Value)
			if c.kind == chunkBoundary {
				if len(segs) > 0 {
					return wordOf(segs)
				}
				continue
			}
			segs = append(segs, segmentOf(c))
			continue
		default:
			if len(segs) > 0 {
				// A structural token arrived before a boundary chunk
				// was flushed (a redirection operator directly
				// abutting a word, like `foo>out`); the word ends here,
				// and the structural token is replayed on the next
				// call. A word of digits only (`2>`) is an IO number.
				lx.lookahead = &raw
				k := token.Kind(raw.Type)
				if k >= token.Less && k <= token.TLess && len(segs) == 1 &&
					segs[0].Kind == token.SegLiteral && strings.Trim(segs[0].Raw, "0123456789") == "" {
					return token.Token{Type: token.IONumber, Value: segs[0].Raw, Line: lx.line}
				}
				return wordOf(segs)
			}
			return token.Token{
				Type:  token.Kind(raw.Type),
				Value: raw.Value,
				Line:  lx.line,
			}
		}
	}
}

func (lx *Lexer) nextRaw() (golexer.Token, bool) {
	if lx.lookahead != nil {
		t := *lx.lookahead
		lx.lookahead = nil
		return t, true
	}
	t, ok := <-lx.rawTokens()
	return t, ok
}

func wordOf(segs []token.Segment) token.Token {
	var sb strings.Builder
	for _, s := range segs {
		sb.WriteString(s.Raw)
	}
	kind := token.Word
	return token.Token{Type: kind, Value: sb.String(), Segments: segs}
}

func segmentOf(c rawChunk) token.Segment {
	switch c.kind {
	case chunkSingleQuoted:
		return token.Segment{Kind: token.SegSingleQuoted, Raw: c.text}
	case chunkDoubleQuoted:
		return token.Segment{Kind: token.SegDoubleQuoted, Raw: c.text, Quoted: true}
	case chunkEscaped:
		return token.Segment{Kind: token.SegEscaped, Raw: c.text}
	case chunkParam:
		return token.Segment{Kind: token.SegParam, Raw: c.text}
	case chunkCommandSub:
		return token.Segment{Kind: token.SegCommandSub, Raw: c.text}
	case chunkArithSub:
		return token.Segment{Kind: token.SegArithSub, Raw: c.text}
	case chunkTilde:
		return token.Segment{Kind: token.SegTildePrefix, Raw: c.text}
	default:
		return token.Segment{Kind: token.SegLiteral, Raw: c.text}
	}
}

// encode/decode let a rawChunk ride on go-lexer's string-valued Emit
// without a second channel type; the encoding is internal-only and
// never observed outside this package.
func encodeChunk(c rawChunk) string {
	return string(rune('0'+int(c.kind))) + c.text
}

func decodeChunk(s string) rawChunk {
	if s == "" {
		return rawChunk{kind: chunkBoundary}
	}
	return rawChunk{kind: chunkKind(s[0] - '0'), text: s[1:]}
}

func (lx *Lexer) emitChunk(kind chunkKind, text string) {
	lx.l.Tokens <- golexer.Token{Type: chunkTok, Value: encodeChunk(rawChunk{kind: kind, text: text})}
}

func (lx *Lexer) emitBoundary() {
	lx.l.Tokens <- golexer.Token{Type: chunkTok, Value: ""}
}

// ---- state functions --------------------------------------------------

// lexDefault is the default context: word accumulation, quote/escape/
// expansion dispatch, operator recognition, comments.
func (lx *Lexer) lexDefault(l *golexer.L) golexer.StateFunc {
	for {
		r := l.Next()
		wasAtStart := lx.atStart
		switch {
		case r == -1:
			lx.flushLiteral(l)
			lx.emitBoundary()
			l.Emit(golexer.TokenType(token.EOF))
			return nil

		case r == '\\':
			lx.flushLiteral(l)
			lx.atStart = false
			l.Backup()
			return lx.lexEscapeInto(l, chunkEscaped, lx.lexDefault)

		case r == '\'':
			lx.flushLiteral(l)
			lx.atStart = false
			return lx.lexSingleQuoted(l, lx.lexDefault)

		case r == '"':
			lx.flushLiteral(l)
			lx.atStart = false
			return lx.lexDoubleQuoted(l, lx.lexDefault)

		case r == '$':
			lx.flushLiteral(l)
			lx.atStart = false
			return lx.lexDollar(l, lx.lexDefault)

		case r == '`':
			lx.flushLiteral(l)
			lx.atStart = false
			return lx.lexBacktick(l, lx.lexDefault)

		case r == '~' && wasAtStart:
			// Tilde prefix: collect until '/' or a char that ends a
			// login-name (space/operator/:). Expansion resolves it.
			lx.atStart = false
			lx.lexTilde(l)

		case r == '#' && wasAtStart:
			for {
				p := l.Peek()
				if p == '\n' || p == -1 {
					break
				}
				l.Next()
			}
			l.Ignore()

		case opRunePattern.MatchString(string(r)):
			lx.flushLiteral(l)
			l.Backup()
			if r != '<' && r != '>' {
				// Before < or >, Next ends the pending word itself so
				// that a digit run can become an IO number.
				lx.emitBoundary()
			}
			l.Next()
			lx.atStart = true
			return lx.lexOperator(l, lx.lexDefault)

		case r == ' ' || r == '\t':
			lx.flushLiteral(l)
			lx.emitBoundary()
			l.Ignore()
			lx.atStart = true

		case r == '\n':
			lx.flushLiteral(l)
			lx.emitBoundary()
			l.Emit(golexer.TokenType(token.Newline))
			lx.atStart = true

		default:
			lx.atStart = false
		}
	}
}

// flushLiteral turns whatever plain text has accumulated since the
// last emit/ignore into a literal chunk, backing up over the rune
// that triggered the flush so it is reconsidered by the caller.
func (lx *Lexer) flushLiteral(l *golexer.L) {
	cur := l.Current()
	if cur == "" {
		return
	}
	l.Backup()
	text := l.Current()
	if text != "" {
		lx.emitChunk(chunkLiteral, text)
	}
	l.Ignore()
	l.Next()
}

func (lx *Lexer) lexTilde(l *golexer.L) {
	start := l.Current()
	for {
		p := l.Peek()
		if p == '/' || p == -1 || p == ' ' || p == '\t' || p == '\n' ||
			strings.ContainsRune(":=", p) || opRunePattern.MatchString(string(p)) {
			break
		}
		l.Next()
	}
	text := l.Current()
	_ = start
	lx.emitChunk(chunkTilde, text)
	l.Ignore()
}

func (lx *Lexer) lexOperator(l *golexer.L, ret golexer.StateFunc) golexer.StateFunc {
	for {
		r := l.Peek()
		cur := l.Current()
		candidate := cur + string(r)
		if _, ok := token.Operators[candidate]; !ok {
			tok := resolveOperator(cur)
			l.Emit(golexer.TokenType(tok))
			return ret
		}
		l.Next()
	}
}

func resolveOperator(s string) token.Kind {
	if k, ok := token.Operators[s]; ok {
		return k
	}
	if _, err := strconv.Atoi(s); err == nil {
		return token.IONumber
	}
	return token.Word
}

// lexEscapeInto handles a single backslash escape in unquoted or
// double-quoted context: the escaped character becomes literal text
// (the backslash itself is dropped outside quotes, spec.md §4.2).
func (lx *Lexer) lexEscapeInto(l *golexer.L, kind chunkKind, ret golexer.StateFunc) golexer.StateFunc {
	l.Next() // consume backslash
	r := l.Next()
	if r == '\n' {
		// line continuation is handled by internal/feeder before the
		// lexer ever sees this text; if it does arrive, drop it.
		l.Ignore()
		return ret
	}
	lx.emitChunk(kind, string(r))
	l.Ignore()
	return ret
}

func (lx *Lexer) lexSingleQuoted(l *golexer.L, ret golexer.StateFunc) golexer.StateFunc {
	l.Ignore() // drop opening quote from buffer
	for {
		r := l.Next()
		switch r {
		case '\'':
			l.Backup()
			text := l.Current()
			lx.emitChunk(chunkSingleQuoted, text)
			l.Next()
			l.Ignore()
			return ret
		case -1:
			text := l.Current()
			lx.emitChunk(chunkSingleQuoted, text)
			return ret
		}
	}
}

// lexDoubleQuoted recognizes the escapes §4.2 lists ($ ` " \ newline)
// and counts $( ... ) nesting so a '"' inside a command substitution
// does not end the string; it does not call lexDollar/lexBacktick,
// keeping everything collected as one double-quoted segment whose Raw
// text still carries the embedded expansion syntax for expand.Engine
// to re-lex.
func (lx *Lexer) lexDoubleQuoted(l *golexer.L, ret golexer.StateFunc) golexer.StateFunc {
	l.Ignore()
	depth := 0
	for {
		r := l.Next()
		switch r {
		case '\\':
			p := l.Peek()
			if strings.ContainsRune(`$`+"`"+`"\`+"\n", p) {
				l.Next()
				continue
			}
		case '"':
			if depth == 0 {
				l.Backup()
				text := l.Current()
				lx.emitChunk(chunkDoubleQuoted, text)
				l.Next()
				l.Ignore()
				return ret
			}
		case '$':
			if l.Peek() == '(' {
				depth++
			}
		case ')':
			if depth > 0 {
				depth--
			}
		case -1:
			text := l.Current()
			lx.emitChunk(chunkDoubleQuoted, text)
			return ret
		}
	}
}

func (lx *Lexer) lexBacktick(l *golexer.L, ret golexer.StateFunc) golexer.StateFunc {
	l.Ignore()
	for {
		r := l.Next()
		switch r {
		case '\\':
			l.Next()
		case '`':
			l.Backup()
			text := l.Current()
			lx.emitChunk(chunkCommandSub, "`"+text+"`")
			l.Next()
			l.Ignore()
			return ret
		case -1:
			text := l.Current()
			lx.emitChunk(chunkCommandSub, "`"+text+"`")
			return ret
		}
	}
}

// lexDollar dispatches the '$' introduced expansions: $(( arithmetic
// )), $( command ), ${ parameter }, or a bare $name/$N/$?/$$/$!/$#/
// $@/$*/$-.
func (lx *Lexer) lexDollar(l *golexer.L, ret golexer.StateFunc) golexer.StateFunc {
	switch {
	case l.Peek() == '(':
		l.Next()
		if l.Peek() == '(' {
			l.Next()
			return lx.lexBalanced(l, "((", "))", chunkArithSub, ret)
		}
		return lx.lexBalancedParen(l, chunkCommandSub, ret)

	case l.Peek() == '{':
		l.Next()
		return lx.lexBalanced(l, "{", "}", chunkParam, ret)

	default:
		return lx.lexBareParam(l, ret)
	}
}

// lexBalanced consumes up to the matching close delimiter, tracking
// nested opens of the same pair so `${A:-${B}}` and `$(( (1+2) ))`
// round-trip correctly. It stores the full `$<open>...<close>` text
// as the segment's raw value.
func (lx *Lexer) lexBalanced(l *golexer.L, open, close string, kind chunkKind, ret golexer.StateFunc) golexer.StateFunc {
	depth := 1
	for depth > 0 {
		r := l.Next()
		if r == -1 {
			break
		}
		if r == '\\' {
			l.Next()
			continue
		}
		if r == '\'' {
			for {
				q := l.Next()
				if q == '\'' || q == -1 {
					break
				}
			}
			continue
		}
		if r == '"' {
			for {
				q := l.Next()
				if q == '"' || q == -1 {
					break
				}
				if q == '\\' {
					l.Next()
				}
			}
			continue
		}
		if matchesAt(l, open) {
			depth++
		}
		if matchesCloseAt(l, close) {
			depth--
		}
	}
	text := l.Current()
	lx.emitChunk(kind, text)
	l.Ignore()
	return ret
}

// matchesAt/matchesCloseAt are best-effort lookbehind helpers: since
// go-lexer only exposes Current()/Peek()/Next(), nested-open detection
// looks at the tail of the accumulated buffer after consuming r.
func matchesAt(l *golexer.L, open string) bool {
	cur := l.Current()
	return len(cur) >= len(open) && cur[len(cur)-len(open):] == open && open != ""
}

func matchesCloseAt(l *golexer.L, close string) bool {
	cur := l.Current()
	return len(cur) >= len(close) && cur[len(cur)-len(close):] == close
}

// lexBalancedParen handles $( ... ), which must also tolerate nested
// parens from command substitution's own subshells.
func (lx *Lexer) lexBalancedParen(l *golexer.L, kind chunkKind, ret golexer.StateFunc) golexer.StateFunc {
	depth := 1
	for depth > 0 {
		r := l.Next()
		switch r {
		case -1:
			depth = 0
		case '(':
			depth++
		case ')':
			depth--
		case '\\':
			l.Next()
		case '\'':
			for {
				q := l.Next()
				if q == '\'' || q == -1 {
					break
				}
			}
		case '"':
			for {
				q := l.Next()
				if q == '"' || q == -1 {
					break
				}
				if q == '\\' {
					l.Next()
				}
			}
		}
	}
	text := l.Current()
	lx.emitChunk(kind, text)
	l.Ignore()
	return ret
}

var specialParamRunes = "?$!#@*-"

func (lx *Lexer) lexBareParam(l *golexer.L, ret golexer.StateFunc) golexer.StateFunc {
	r := l.Peek()
	switch {
	case strings.ContainsRune(specialParamRunes, r):
		l.Next()
		text := l.Current()
		lx.emitChunk(chunkParam, "$"+text[len(text)-1:])
		l.Ignore()
		return ret
	case isDigit(r):
		l.Next()
		text := l.Current()
		lx.emitChunk(chunkParam, "$"+text[len(text)-1:])
		l.Ignore()
		return ret
	case isNameStart(r):
		for isNameRune(l.Peek()) {
			l.Next()
		}
		text := l.Current()
		lx.emitChunk(chunkParam, text)
		l.Ignore()
		return ret
	default:
		// Bare '$' not followed by anything meaningful is literal.
		lx.emitChunk(chunkLiteral, "$")
		l.Ignore()
		return ret
	}
}

func isDigit(r rune) bool     { return r >= '0' && r <= '9' }
func isNameStart(r rune) bool { return r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') }
func isNameRune(r rune) bool  { return isNameStart(r) || isDigit(r) }

// Tokenize runs a fresh Lexer over source to completion and returns
// every token, EOF included. internal/parser uses this for top-level
// script/line input; LexWordSegments uses it for re-lexing a single
// already-brace-expanded word.
func Tokenize(source string, extglob bool) []token.Token {
	lx := New(source, extglob)
	lx.Run()
	var toks []token.Token
	for {
		t := lx.Next()
		toks = append(toks, t)
		if t.Type == token.EOF {
			break
		}
	}
	return toks
}

// LexWordSegments re-lexes a raw word string (typically one arm of a
// brace expansion) into its constituent segments, for expand.Engine.
func LexWordSegments(raw string) []token.Segment {
	toks := Tokenize(raw, false)
	for _, t := range toks {
		if t.Type == token.Word {
			return t.Segments
		}
	}
	return []token.Segment{{Kind: token.SegLiteral, Raw: raw}}
}
