// Package parser builds internal/ast command trees from the token
// stream internal/lexer produces. It is a recursive-descent parser
// following the grammar in spec.md §4.3; the teacher's parser.go
// (Parse/parseProgram/expect) is an empty stub that this package
// completes, keeping its reserved-word-table approach.
package parser

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/sush-shell/sush/internal/ast"
	"github.com/sush-shell/sush/internal/lexer"
	"github.com/sush-shell/sush/internal/token"
)

// SyntaxError is returned for any grammar violation; callers render
// it to stderr and use exit status 2 (spec.md §4.3, §7).
type SyntaxError struct {
	Line int
	Msg  string

	// Incomplete is true when the error was raised because the token
	// stream ran out while a construct (group, if/while/for/case,
	// subshell, `[[`) was still open — internal/feeder uses this to
	// tell "ask for one more line" apart from a real syntax error
	// (spec.md §4.1).
	Incomplete bool
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("sush: syntax error near line %d: %s", e.Line, e.Msg)
}

// Parser consumes a pre-tokenized source. Heredoc bodies cannot be
// lexed as ordinary shell syntax, so New strips them out of the
// source text before tokenizing and queues their already-extracted
// bodies for parseRedirection to consume in appearance order.
type Parser struct {
	toks          []token.Token
	pos           int
	extglob       bool
	heredocBodies []string
}

var heredocOpPattern = regexp.MustCompile(`<<(-?)\s*(['"]?)([A-Za-z_][A-Za-z0-9_]*)['"]?`)

// New builds a parser over src, using extglob to decide how the
// glob/case matchers interpret extended-glob syntax downstream (the
// parser itself only needs it to pass through to Word values).
func New(src string, extglob bool) *Parser {
	stripped, bodies := stripHeredocs(src)
	toks := lexer.Tokenize(stripped, extglob)
	return &Parser{
		toks:          toks,
		extglob:       extglob,
		heredocBodies: bodies,
	}
}

// stripHeredocs scans src line by line, and for every <<TAG / <<-TAG
// marker on a line, consumes the following raw lines up to the
// terminator as that heredoc's body (tab-stripped if <<- was used),
// returning source text with bodies removed and the bodies themselves
// in the order their markers appear.
func stripHeredocs(src string) (string, []string) {
	lines := strings.Split(src, "\n")
	var out []string
	var bodies []string
	i := 0
	for i < len(lines) {
		line := lines[i]
		out = append(out, line)
		i++
		for _, m := range heredocOpPattern.FindAllStringSubmatch(line, -1) {
			stripTabs := m[1] == "-"
			tag := m[3]
			var body strings.Builder
			for i < len(lines) {
				cur := lines[i]
				check := cur
				if stripTabs {
					check = strings.TrimLeft(check, "\t")
				}
				i++
				if check == tag {
					break
				}
				if stripTabs {
					cur = strings.TrimLeft(cur, "\t")
				}
				body.WriteString(cur)
				body.WriteByte('\n')
			}
			bodies = append(bodies, body.String())
		}
	}
	return strings.Join(out, "\n"), bodies
}

func (p *Parser) cur() token.Token {
	if p.pos >= len(p.toks) {
		return token.Token{Type: token.EOF}
	}
	return p.toks[p.pos]
}

func (p *Parser) peekN(n int) token.Token {
	idx := p.pos + n
	if idx >= len(p.toks) {
		return token.Token{Type: token.EOF}
	}
	return p.toks[idx]
}

func (p *Parser) advance() token.Token {
	t := p.cur()
	if p.pos < len(p.toks) {
		p.pos++
	}
	return t
}

func (p *Parser) errf(format string, args ...interface{}) error {
	return &SyntaxError{
		Line:       p.cur().Line,
		Msg:        fmt.Sprintf(format, args...),
		Incomplete: p.cur().Type == token.EOF,
	}
}

// isReserved reports whether tok is a Word whose text is a reserved
// word recognized only at command-start position (spec.md §4.3).
func isReserved(t token.Token, word string) bool {
	return t.Type == token.Word && len(t.Segments) == 1 &&
		t.Segments[0].Kind == token.SegLiteral && t.Segments[0].Raw == word
}

func reservedKind(t token.Token) (token.Kind, bool) {
	if t.Type != token.Word || len(t.Segments) != 1 || t.Segments[0].Kind != token.SegLiteral {
		return 0, false
	}
	k, ok := token.ReservedWords[t.Segments[0].Raw]
	return k, ok
}

// ParseProgram parses the whole token stream (spec.md grammar:
// `program`).
func (p *Parser) ParseProgram() (*ast.Node, error) {
	p.skipLinebreak()
	if p.cur().Type == token.EOF {
		return &ast.Node{Kind: ast.KNoop}, nil
	}

	root, err := p.parseAndOr()
	if err != nil {
		return nil, err
	}
	list := []*ast.Node{root}

	for {
		if !p.atSep() {
			break
		}
		sep := p.cur().Type
		p.consumeSep()
		if sep == token.And {
			list[len(list)-1].Background = true
		}
		p.skipLinebreak()
		if p.cur().Type == token.EOF {
			break
		}
		n, err := p.parseAndOr()
		if err != nil {
			return nil, err
		}
		list = append(list, n)
	}

	if p.cur().Type != token.EOF {
		return nil, p.errf("unexpected token %q", p.cur().Value)
	}

	if len(list) == 1 {
		return list[0], nil
	}
	return sequence(list), nil
}

// sequence chains a list of and-or nodes as nested groups, each
// holding one statement in Left and the rest in Body, so a caller
// walking Left then Body sees them in order; internal/exec's runGroup
// runs them that way.
func sequence(list []*ast.Node) *ast.Node {
	if len(list) == 1 {
		return list[0]
	}
	return &ast.Node{Kind: ast.KGroup, Left: list[0], Body: sequence(list[1:])}
}

func (p *Parser) atSep() bool {
	t := p.cur().Type
	return t == token.Semi || t == token.And || t == token.Newline
}

func (p *Parser) consumeSep() {
	p.advance()
}

func (p *Parser) skipLinebreak() {
	for p.cur().Type == token.Newline {
		p.advance()
	}
}

// parseAndOr: and_or = pipeline (('&&'|'||') linebreak pipeline)*
func (p *Parser) parseAndOr() (*ast.Node, error) {
	left, err := p.parsePipeline()
	if err != nil {
		return nil, err
	}
	node := &ast.Node{Kind: ast.KAndOr, Left: left}
	for p.cur().Type == token.AndIf || p.cur().Type == token.OrIf {
		op := p.advance().Type
		p.skipLinebreak()
		rhs, err := p.parsePipeline()
		if err != nil {
			return nil, err
		}
		node.Ops = append(node.Ops, op)
		node.Rest = append(node.Rest, rhs)
	}
	if len(node.Ops) == 0 {
		return left, nil
	}
	return node, nil
}

// parsePipeline: pipeline = '!'? command (('|'|'|&') linebreak command)*
func (p *Parser) parsePipeline() (*ast.Node, error) {
	negate := false
	if isReserved(p.cur(), "!") {
		negate = true
		p.advance()
	}
	first, err := p.parseCommand()
	if err != nil {
		return nil, err
	}
	cmds := []*ast.Node{first}
	var merges []bool
	for p.cur().Type == token.Or || p.cur().Type == token.PipeAnd {
		merge := p.cur().Type == token.PipeAnd
		p.advance()
		p.skipLinebreak()
		next, err := p.parseCommand()
		if err != nil {
			return nil, err
		}
		cmds = append(cmds, next)
		merges = append(merges, merge)
	}
	if len(cmds) == 1 && !negate {
		return cmds[0], nil
	}
	return &ast.Node{Kind: ast.KPipeline, Negate: negate, Commands: cmds, StderrMerge: merges}, nil
}

// parseCommand: command = simple | compound | function_def
func (p *Parser) parseCommand() (*ast.Node, error) {
	if k, ok := reservedKind(p.cur()); ok {
		switch k {
		case token.If:
			return p.parseIf()
		case token.While:
			return p.parseWhileUntil(false)
		case token.Until:
			return p.parseWhileUntil(true)
		case token.For:
			return p.parseFor()
		case token.Case:
			return p.parseCase()
		case token.LBrace:
			return p.parseGroup()
		case token.Function:
			return p.parseFunctionDef(true)
		}
	}
	if isArithCommandStart(p) {
		return p.parseArithCommand()
	}
	if p.cur().Type == token.OpenParen {
		return p.parseSubshell()
	}
	if p.cur().Type == token.Word && p.peekN(1).Type == token.OpenParen &&
		p.peekN(2).Type == token.CloseParen {
		return p.parseFunctionDef(false)
	}
	if isTestCommandStart(p) {
		return p.parseTestCommand()
	}
	return p.parseSimple()
}

func isArithCommandStart(p *Parser) bool {
	return p.cur().Type == token.OpenParen && p.peekN(1).Type == token.OpenParen
}

func isTestCommandStart(p *Parser) bool {
	return isReserved(p.cur(), "[[")
}

// parseSimple: simple = (assignment|redirect)* word (word|assignment|redirect)*
func (p *Parser) parseSimple() (*ast.Node, error) {
	node := &ast.Node{Kind: ast.KSimple, Line: p.cur().Line}
	sawWord := false
	for {
		t := p.cur()
		switch {
		case t.Type == token.Word && !sawWord && isAssignmentWord(t):
			p.advance()
			node.Assignments = append(node.Assignments, parseAssignment(t))
		case isRedirOp(t.Type):
			r, err := p.parseRedirection()
			if err != nil {
				return nil, err
			}
			node.Redirs = append(node.Redirs, r)
		case t.Type == token.Word:
			p.advance()
			node.Words = append(node.Words, wordOf(t))
			sawWord = true
		default:
			if len(node.Words) == 0 && len(node.Assignments) == 0 && len(node.Redirs) == 0 {
				return nil, p.errf("unexpected token %q", t.Value)
			}
			return node, nil
		}
	}
}

func isRedirOp(k token.Kind) bool {
	switch k {
	case token.Less, token.Great, token.Clobber, token.DLess, token.DLessDash,
		token.DGreat, token.LessAnd, token.GreatAnd, token.LessGreat, token.TLess,
		token.AndGreat, token.AndDGreat, token.IONumber:
		return true
	}
	return false
}

func isAssignmentWord(t token.Token) bool {
	if t.Type != token.Word || len(t.Segments) == 0 {
		return false
	}
	first := t.Segments[0]
	if first.Kind != token.SegLiteral {
		return false
	}
	eq := strings.IndexByte(first.Raw, '=')
	if eq <= 0 {
		return false
	}
	name := first.Raw[:eq]
	if strings.HasSuffix(name, "+") {
		name = name[:len(name)-1]
	}
	return isValidName(name)
}

func isValidName(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		if r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
			continue
		}
		if i > 0 && r >= '0' && r <= '9' {
			continue
		}
		return false
	}
	return true
}

func parseAssignment(t token.Token) ast.Assignment {
	first := t.Segments[0]
	eq := strings.IndexByte(first.Raw, '=')
	name := first.Raw[:eq]
	append_ := strings.HasSuffix(name, "+")
	if append_ {
		name = name[:len(name)-1]
	}
	valueSegs := append([]token.Segment{{Kind: token.SegLiteral, Raw: first.Raw[eq+1:]}}, t.Segments[1:]...)
	return ast.Assignment{
		Name:   name,
		Append: append_,
		Value:  ast.Word{Segments: valueSegs, Raw: t.Value[eq+1:]},
	}
}

func wordOf(t token.Token) ast.Word {
	return ast.Word{Segments: t.Segments, Raw: t.Value}
}

// parseRedirection consumes one redirection operator and its target,
// registering heredocs for later resolution against the source text.
func (p *Parser) parseRedirection() (ast.Redirection, error) {
	srcFD := -1
	if p.cur().Type == token.IONumber {
		fmt.Sscanf(p.cur().Value, "%d", &srcFD)
		p.advance()
	}
	op := p.advance()
	target := p.cur()
	if target.Type != token.Word && op.Type != token.GreatAnd && op.Type != token.LessAnd {
		return ast.Redirection{}, p.errf("expected word after redirection operator, got %q", target.Value)
	}
	p.advance()
	r := ast.Redirection{SourceFD: srcFD, Op: op.Type, Target: wordOf(target)}
	if op.Type == token.DLess || op.Type == token.DLessDash {
		tag := target.Value
		quoted := wordHasQuotes(target)
		body := ""
		if len(p.heredocBodies) > 0 {
			body, p.heredocBodies = p.heredocBodies[0], p.heredocBodies[1:]
		}
		r.Heredoc = &ast.Heredoc{
			Tag:       strings.Trim(tag, `"'`),
			StripTabs: op.Type == token.DLessDash,
			Quoted:    quoted,
			Body:      body,
		}
	}
	if op.Type == token.TLess {
		r.Heredoc = &ast.Heredoc{StringForm: true}
	}
	return r, nil
}

func wordHasQuotes(t token.Token) bool {
	for _, s := range t.Segments {
		if s.Kind == token.SegSingleQuoted || s.Kind == token.SegDoubleQuoted || s.Kind == token.SegEscaped {
			return true
		}
	}
	return false
}

// expectReserved consumes the current token if it is the reserved
// word kind k, else reports a syntax error.
func (p *Parser) expectReserved(k token.Kind, name string) error {
	if rk, ok := reservedKind(p.cur()); ok && rk == k {
		p.advance()
		return nil
	}
	return p.errf("expected %q, got %q", name, p.cur().Value)
}

func (p *Parser) atReservedKind(k token.Kind) bool {
	rk, ok := reservedKind(p.cur())
	return ok && rk == k
}

// compoundBody parses statements up to (but not consuming) one of the
// given terminator reserved words, used by if/while/until/for bodies
// that are delimited by then/do/fi/done/else/elif.
func (p *Parser) compoundBody(terminators ...token.Kind) (*ast.Node, error) {
	p.skipLinebreak()
	isTerm := func() bool {
		for _, t := range terminators {
			if p.atReservedKind(t) {
				return true
			}
		}
		return false
	}
	if isTerm() {
		return &ast.Node{Kind: ast.KNoop}, nil
	}
	first, err := p.parseAndOr()
	if err != nil {
		return nil, err
	}
	list := []*ast.Node{first}
	for p.atSep() && !isTerm() {
		sep := p.cur().Type
		p.consumeSep()
		if sep == token.And {
			list[len(list)-1].Background = true
		}
		p.skipLinebreak()
		if isTerm() {
			break
		}
		n, err := p.parseAndOr()
		if err != nil {
			return nil, err
		}
		list = append(list, n)
	}
	p.skipLinebreak()
	return sequence(list), nil
}

// parseIf: if C; then A; elif C2; then B; else D; fi
func (p *Parser) parseIf() (*ast.Node, error) {
	p.advance() // if
	node := &ast.Node{Kind: ast.KIf}
	for {
		cond, err := p.compoundBody(token.Then)
		if err != nil {
			return nil, err
		}
		if err := p.expectReserved(token.Then, "then"); err != nil {
			return nil, err
		}
		body, err := p.compoundBody(token.Elif, token.Else, token.Fi)
		if err != nil {
			return nil, err
		}
		node.IfArms = append(node.IfArms, ast.IfArm{Cond: cond, Body: body})
		if p.atReservedKind(token.Elif) {
			p.advance()
			continue
		}
		break
	}
	if p.atReservedKind(token.Else) {
		p.advance()
		elseBody, err := p.compoundBody(token.Fi)
		if err != nil {
			return nil, err
		}
		node.ElseArm = elseBody
	}
	if err := p.expectReserved(token.Fi, "fi"); err != nil {
		return nil, err
	}
	return node, nil
}

// parseWhileUntil: while C; do B; done / until C; do B; done
func (p *Parser) parseWhileUntil(until bool) (*ast.Node, error) {
	p.advance()
	cond, err := p.compoundBody(token.Do)
	if err != nil {
		return nil, err
	}
	if err := p.expectReserved(token.Do, "do"); err != nil {
		return nil, err
	}
	body, err := p.compoundBody(token.Done)
	if err != nil {
		return nil, err
	}
	if err := p.expectReserved(token.Done, "done"); err != nil {
		return nil, err
	}
	kind := ast.KWhile
	if until {
		kind = ast.KUntil
	}
	return &ast.Node{Kind: kind, Cond: cond, Loop: body}, nil
}

// parseFor handles both `for x [in words]; do B; done` and the
// C-style `for (( init; cond; step )); do B; done`.
func (p *Parser) parseFor() (*ast.Node, error) {
	p.advance() // for
	if p.cur().Type == token.OpenParen && p.peekN(1).Type == token.OpenParen {
		return p.parseForArith()
	}
	if p.cur().Type != token.Word {
		return nil, p.errf("expected name after for, got %q", p.cur().Value)
	}
	name := p.advance().Value
	node := &ast.Node{Kind: ast.KFor, VarName: name}
	p.skipSemiOrNewline()
	if p.atReservedKind(token.In) {
		node.HasIn = true
		p.advance()
		for p.cur().Type == token.Word {
			node.InWords = append(node.InWords, wordOf(p.advance()))
		}
	}
	p.skipSemiOrNewline()
	if err := p.expectReserved(token.Do, "do"); err != nil {
		return nil, err
	}
	body, err := p.compoundBody(token.Done)
	if err != nil {
		return nil, err
	}
	if err := p.expectReserved(token.Done, "done"); err != nil {
		return nil, err
	}
	node.Loop = body
	return node, nil
}

func (p *Parser) skipSemiOrNewline() {
	for p.cur().Type == token.Semi || p.cur().Type == token.Newline {
		p.advance()
	}
}

func (p *Parser) parseForArith() (*ast.Node, error) {
	p.advance() // (
	p.advance() // (
	init := p.collectUntil()
	parts := splitArithClauses(init)
	if len(parts) != 3 {
		return nil, p.errf("malformed C-style for expression")
	}
	p.skipSemiOrNewline()
	if err := p.expectReserved(token.Do, "do"); err != nil {
		return nil, err
	}
	body, err := p.compoundBody(token.Done)
	if err != nil {
		return nil, err
	}
	if err := p.expectReserved(token.Done, "done"); err != nil {
		return nil, err
	}
	return &ast.Node{Kind: ast.KForArith, Init: parts[0], ArithCond: parts[1], Step: parts[2], Loop: body}, nil
}

// collectUntil re-renders tokens as raw text up to (and consuming) the
// "))" that closes an already-consumed "((", for the `((...))` and
// `for ((...))` forms that the lexer delivers as ordinary tokens.
func (p *Parser) collectUntil() string {
	// The for-arith header arrives as a single ArithSub-like stream:
	// the lexer, seeing "((" right after `for `, still tokenizes it as
	// two OpenParens followed by ordinary words/operators rather than
	// as a $((...)) segment (that form only triggers after '$'). We
	// reconstruct the raw text from tokens until the matching CloseParen
	// CloseParen pair.
	var sb strings.Builder
	depth := 0 // parens opened inside the expression
	for p.cur().Type != token.EOF {
		t := p.advance()
		switch t.Type {
		case token.OpenParen:
			depth++
			sb.WriteString("(")
		case token.CloseParen:
			if depth == 0 {
				if p.cur().Type == token.CloseParen {
					p.advance()
				}
				return sb.String()
			}
			depth--
			sb.WriteString(")")
		default:
			sb.WriteString(t.Value)
			sb.WriteString(" ")
		}
	}
	return sb.String()
}

func splitArithClauses(s string) []string {
	parts := strings.Split(s, ";")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

// parseCase: case W in pat1|pat2) … ;; … esac
func (p *Parser) parseCase() (*ast.Node, error) {
	p.advance() // case
	if p.cur().Type != token.Word {
		return nil, p.errf("expected word after case")
	}
	subject := wordOf(p.advance())
	p.skipLinebreak()
	if err := p.expectReserved(token.In, "in"); err != nil {
		return nil, err
	}
	node := &ast.Node{Kind: ast.KCase, Subject: subject}
	p.skipLinebreak()
	for !p.atReservedKind(token.Esac) {
		if p.cur().Type == token.OpenParen {
			p.advance()
		}
		var patterns []ast.Word
		for {
			if p.cur().Type != token.Word {
				return nil, p.errf("expected pattern in case arm")
			}
			patterns = append(patterns, wordOf(p.advance()))
			if p.cur().Type == token.Or {
				p.advance()
				continue
			}
			break
		}
		if p.cur().Type != token.CloseParen {
			return nil, p.errf("expected ')' after case pattern")
		}
		p.advance()
		body, err := p.compoundBody(token.Esac)
		term := token.DSemi
		if p.cur().Type == token.DSemi || p.cur().Type == token.SemiAnd || p.cur().Type == token.DSemiAnd {
			term = p.advance().Type
		}
		if err != nil {
			return nil, err
		}
		node.Items = append(node.Items, ast.CaseItem{Patterns: patterns, Body: body, Terminator: term})
		p.skipLinebreak()
	}
	if err := p.expectReserved(token.Esac, "esac"); err != nil {
		return nil, err
	}
	return node, nil
}

// parseGroup: { … }
func (p *Parser) parseGroup() (*ast.Node, error) {
	p.advance() // {
	body, err := p.compoundBody(token.RBrace)
	if err != nil {
		return nil, err
	}
	if err := p.expectReserved(token.RBrace, "}"); err != nil {
		return nil, err
	}
	return &ast.Node{Kind: ast.KGroup, Body: body}, nil
}

// parseSubshell: ( … )
func (p *Parser) parseSubshell() (*ast.Node, error) {
	p.advance() // (
	p.skipLinebreak()
	first, err := p.parseAndOr()
	if err != nil {
		return nil, err
	}
	list := []*ast.Node{first}
	for p.atSep() && p.cur().Type != token.CloseParen {
		sep := p.cur().Type
		p.consumeSep()
		if sep == token.And {
			list[len(list)-1].Background = true
		}
		p.skipLinebreak()
		if p.cur().Type == token.CloseParen {
			break
		}
		n, err := p.parseAndOr()
		if err != nil {
			return nil, err
		}
		list = append(list, n)
	}
	p.skipLinebreak()
	if p.cur().Type != token.CloseParen {
		return nil, p.errf("expected ')' to close subshell")
	}
	p.advance()
	return &ast.Node{Kind: ast.KSubshell, Body: sequence(list)}, nil
}

// parseFunctionDef handles both `function name { body }` and
// `name() { body }`.
func (p *Parser) parseFunctionDef(keyword bool) (*ast.Node, error) {
	if keyword {
		p.advance() // function
	}
	if p.cur().Type != token.Word {
		return nil, p.errf("expected function name")
	}
	name := p.advance().Value
	if keyword && p.cur().Type == token.OpenParen && p.peekN(1).Type == token.CloseParen {
		p.advance()
		p.advance()
	} else if !keyword {
		p.advance() // (
		p.advance() // )
	}
	p.skipLinebreak()
	body, err := p.parseCommand()
	if err != nil {
		return nil, err
	}
	return &ast.Node{Kind: ast.KFuncDef, FuncName: name, FuncBody: body}, nil
}

// parseArithCommand: (( expr ))
func (p *Parser) parseArithCommand() (*ast.Node, error) {
	p.advance() // (
	p.advance() // (
	text := p.collectUntil()
	return &ast.Node{Kind: ast.KArithCommand, ArithText: text}, nil
}

// parseTestCommand: [[ … ]] — tokens are captured raw for the
// dedicated test evaluator (out of scope here per spec.md §1; we just
// preserve the token slice so a caller-supplied evaluator can run).
func (p *Parser) parseTestCommand() (*ast.Node, error) {
	p.advance() // [[
	var toks []token.Token
	for !isReserved(p.cur(), "]]") && p.cur().Type != token.EOF {
		toks = append(toks, p.advance())
	}
	if !isReserved(p.cur(), "]]") {
		return nil, p.errf("expected ]] to close [[ ]]")
	}
	p.advance()
	return &ast.Node{Kind: ast.KTestCommand, TestTokens: toks}, nil
}
