// Package expand implements the word-expansion engine (spec.md §4.4):
// tilde expansion, parameter/variable expansion (including the
// ${NAME op WORD} modifier forms and array subscripts), arithmetic and
// command substitution, brace expansion, IFS word splitting, pathname
// globbing, and quote removal, applied to internal/ast.Word values in
// the order spec.md's pipeline requires.
//
// Quote removal has no dedicated pass here: internal/lexer already
// strips quote delimiters into each Segment's Raw text, so a field
// never carries a literal quote character to begin with.
package expand

import (
	"fmt"
	"os"
	"os/user"
	"strconv"
	"strings"

	"github.com/sush-shell/sush/internal/arith"
	"github.com/sush-shell/sush/internal/ast"
	"github.com/sush-shell/sush/internal/glob"
	"github.com/sush-shell/sush/internal/lexer"
	"github.com/sush-shell/sush/internal/token"
)

// Vars is the variable-store surface expansion needs beyond arith's
// narrow Get/Set: array element reads, the positional parameter list,
// and the extglob option that governs pattern matching.
type Vars interface {
	arith.Vars
	GetIndexed(name string, idx int) (string, bool)
	GetAssoc(name, key string) (string, bool)
	ArrayAll(name string) ([]string, bool)
	Positional() []string
	Extglob() bool
}

// Runner executes shell source for command substitution and returns
// its captured standard output (trailing newlines still attached;
// Engine strips them). internal/exec implements this by running the
// source in a subshell with stdout redirected to a pipe.
type Runner interface {
	RunCommandSub(src string) (string, error)
}

// Engine expands ast.Word values against a variable store and a
// command-substitution runner.
type Engine struct {
	vars   Vars
	runner Runner
}

// New creates an expansion Engine. runner may be nil if the caller
// never expands a word containing a command substitution (e.g. a
// test that only exercises parameter expansion).
func New(vars Vars, runner Runner) *Engine {
	return &Engine{vars: vars, runner: runner}
}

// ExpandWords runs the full pipeline (brace expansion, expansion,
// IFS splitting, pathname globbing) over every word and concatenates
// the resulting fields — this is what a simple command's argv goes
// through.
func (e *Engine) ExpandWords(words []ast.Word) ([]string, error) {
	var out []string
	for _, w := range words {
		fields, err := e.expandWord(w, true)
		if err != nil {
			return nil, err
		}
		out = append(out, fields...)
	}
	return out, nil
}

// ExpandScalar expands w without brace expansion, IFS splitting, or
// pathname globbing — the form an assignment RHS, redirection target,
// or case subject undergoes.
func (e *Engine) ExpandScalar(w ast.Word) (string, error) {
	fields, err := e.expandWord(w, false)
	if err != nil {
		return "", err
	}
	return strings.Join(fields, " "), nil
}

func (e *Engine) expandWord(w ast.Word, full bool) ([]string, error) {
	variants := []ast.Word{w}
	if full && isAllLiteral(w.Segments) {
		if raws := braceExpandRaw(w.Raw); len(raws) > 1 {
			variants = make([]ast.Word, len(raws))
			for i, r := range raws {
				variants[i] = ast.Word{Raw: r, Segments: lexer.LexWordSegments(r)}
			}
		}
	}

	var out []string
	for _, v := range variants {
		fb := &fieldBuilder{}
		for _, seg := range v.Segments {
			if err := e.appendSegment(fb, seg, full); err != nil {
				return nil, err
			}
		}
		for _, fr := range fb.finish() {
			if full && fr.glob && glob.HasMeta(fr.text, e.vars.Extglob()) {
				if matches := glob.Expand(fr.text, e.vars.Extglob()); len(matches) > 0 {
					out = append(out, matches...)
					continue
				}
			}
			out = append(out, fr.text)
		}
	}
	return out, nil
}

func isAllLiteral(segs []token.Segment) bool {
	for _, s := range segs {
		if s.Kind != token.SegLiteral {
			return false
		}
	}
	return len(segs) > 0
}

// ---- field building ----------------------------------------------------

// fieldResult is one completed field plus whether it is eligible for
// pathname-glob interpretation (only text that came from an unquoted
// literal segment is: escaped characters, quoted text, and expansion
// results are never treated as glob metacharacters).
type fieldResult struct {
	text string
	glob bool
}

type fieldBuilder struct {
	fields  []fieldResult
	cur     strings.Builder
	curGlob bool
}

func (fb *fieldBuilder) appendLiteral(s string, globEligible bool) {
	fb.cur.WriteString(s)
	if globEligible {
		fb.curGlob = true
	}
}

func (fb *fieldBuilder) hardFlush() {
	fb.fields = append(fb.fields, fieldResult{text: fb.cur.String(), glob: fb.curGlob})
	fb.cur.Reset()
	fb.curGlob = false
}

// appendSplit appends an unquoted expansion result, breaking it into
// fields on runs of IFS characters (spec.md §4.4 step 6). An empty
// result contributes nothing at all — no field, no break.
func (fb *fieldBuilder) appendSplit(s, ifs string) {
	if s == "" {
		return
	}
	parts := splitIFS(s, ifs)
	if len(parts) == 0 {
		return
	}
	if len(parts) == 1 {
		fb.appendLiteral(parts[0], false)
		return
	}
	fb.cur.WriteString(parts[0])
	fb.hardFlush()
	for i := 1; i < len(parts)-1; i++ {
		fb.fields = append(fb.fields, fieldResult{text: parts[i]})
	}
	fb.cur.WriteString(parts[len(parts)-1])
}

func (fb *fieldBuilder) finish() []fieldResult {
	if fb.cur.Len() > 0 || len(fb.fields) == 0 {
		fb.fields = append(fb.fields, fieldResult{text: fb.cur.String(), glob: fb.curGlob})
	}
	return fb.fields
}

// splitIFS splits s on runs of IFS characters: a run made of IFS
// whitespace (space/tab/newline) collapses and is trimmed at the
// string's edges; any other IFS character delimits on its own,
// producing an empty field between two consecutive occurrences.
func splitIFS(s, ifs string) []string {
	if ifs == "" {
		return []string{s}
	}
	isIFS := func(r byte) bool { return strings.IndexByte(ifs, r) >= 0 }
	isIFSSpace := func(r byte) bool { return isIFS(r) && (r == ' ' || r == '\t' || r == '\n') }

	n := len(s)
	i := 0
	for i < n && isIFSSpace(s[i]) {
		i++
	}
	if i >= n {
		return nil
	}

	var fields []string
	var cur []byte
	for i < n {
		r := s[i]
		if isIFS(r) {
			fields = append(fields, string(cur))
			cur = nil
			if isIFSSpace(r) {
				for i < n && isIFSSpace(s[i]) {
					i++
				}
				if i >= n {
					return fields
				}
			} else {
				i++
			}
			continue
		}
		cur = append(cur, r)
		i++
	}
	fields = append(fields, string(cur))
	return fields
}

func (e *Engine) ifs() string {
	if v, ok := e.vars.Get("IFS"); ok {
		return v
	}
	return " \t\n"
}

func (e *Engine) ifsJoinChar() string {
	ifs := e.ifs()
	if ifs == "" {
		return ""
	}
	return ifs[:1]
}

// ---- per-segment dispatch ------------------------------------------------

func (e *Engine) appendSegment(fb *fieldBuilder, seg token.Segment, modeSplit bool) error {
	splittable := modeSplit && !seg.Quoted
	switch seg.Kind {
	case token.SegLiteral:
		fb.appendLiteral(seg.Raw, true)

	case token.SegEscaped, token.SegSingleQuoted:
		fb.appendLiteral(seg.Raw, false)

	case token.SegTildePrefix:
		v, err := e.expandTilde(seg.Raw)
		if err != nil {
			return err
		}
		fb.appendLiteral(v, false)

	case token.SegDoubleQuoted:
		for _, inner := range parseDQContent(seg.Raw) {
			if err := e.appendSegment(fb, inner, modeSplit); err != nil {
				return err
			}
		}

	case token.SegCommandSub:
		v, err := e.expandCommandSub(seg.Raw)
		if err != nil {
			return err
		}
		if splittable {
			fb.appendSplit(v, e.ifs())
		} else {
			fb.appendLiteral(v, false)
		}

	case token.SegArithSub:
		v, err := e.expandArithSub(seg.Raw)
		if err != nil {
			return err
		}
		if splittable {
			fb.appendSplit(v, e.ifs())
		} else {
			fb.appendLiteral(v, false)
		}

	case token.SegParam:
		pr, err := e.expandParam(seg.Raw)
		if err != nil {
			return err
		}
		e.appendParamResult(fb, pr, splittable)
	}
	return nil
}

func (e *Engine) appendParamResult(fb *fieldBuilder, pr paramResult, splittable bool) {
	if pr.multi != nil && !pr.star {
		if !splittable {
			if len(pr.multi) > 0 {
				fb.appendLiteral(pr.multi[0], false)
				for _, el := range pr.multi[1:] {
					fb.hardFlush()
					fb.appendLiteral(el, false)
				}
			}
			return
		}
		fb.appendSplit(strings.Join(pr.multi, " "), e.ifs())
		return
	}
	if pr.multi != nil && pr.star {
		joined := strings.Join(pr.multi, e.ifsJoinChar())
		if splittable {
			fb.appendSplit(joined, e.ifs())
		} else {
			fb.appendLiteral(joined, false)
		}
		return
	}
	if splittable {
		fb.appendSplit(pr.scalar, e.ifs())
	} else {
		fb.appendLiteral(pr.scalar, false)
	}
}

// ---- tilde / command-sub / arith-sub -------------------------------------

func (e *Engine) expandTilde(raw string) (string, error) {
	switch raw {
	case "~":
		if h, ok := e.vars.Get("HOME"); ok && h != "" {
			return h, nil
		}
		if u, err := user.Current(); err == nil {
			return u.HomeDir, nil
		}
		return raw, nil
	case "~+":
		if wd, err := os.Getwd(); err == nil {
			return wd, nil
		}
		return raw, nil
	case "~-":
		if v, ok := e.vars.Get("OLDPWD"); ok {
			return v, nil
		}
		return raw, nil
	}
	u, err := user.Lookup(raw[1:])
	if err != nil {
		return raw, nil
	}
	return u.HomeDir, nil
}

func (e *Engine) expandCommandSub(raw string) (string, error) {
	var src string
	if strings.HasPrefix(raw, "`") {
		src = raw[1 : len(raw)-1]
	} else {
		src = raw[2 : len(raw)-1] // strip "$(" and ")"
	}
	if e.runner == nil {
		return "", fmt.Errorf("sush: command substitution unavailable in this context")
	}
	out, err := e.runner.RunCommandSub(src)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(out, "\n"), nil
}

func (e *Engine) expandArithSub(raw string) (string, error) {
	inner := raw[3 : len(raw)-2] // strip "$((" and "))"
	base, compact, rest, hasPrefix := splitArithOutputBase(inner)
	v, err := arith.Eval(rest, e.vars)
	if err != nil {
		return "", err
	}
	if !hasPrefix {
		return v.String(), nil
	}
	return arith.Format(v, base, compact)
}

// splitArithOutputBase recognizes a leading `[#B]`/`[##B]` output-base
// prefix (spec.md §4.6) and returns the base, whether it was the
// compact `[##B]` form, and the remaining expression text to evaluate.
func splitArithOutputBase(s string) (base int, compact bool, rest string, ok bool) {
	t := strings.TrimLeft(s, " \t")
	if !strings.HasPrefix(t, "[#") {
		return 0, false, s, false
	}
	t = t[2:]
	if strings.HasPrefix(t, "#") {
		compact = true
		t = t[1:]
	}
	end := strings.IndexByte(t, ']')
	if end < 0 {
		return 0, false, s, false
	}
	n, err := strconv.Atoi(t[:end])
	if err != nil || n < 2 || n > 64 {
		return 0, false, s, false
	}
	return n, compact, t[end+1:], true
}

// ---- parameter expansion --------------------------------------------------

// paramResult is the outcome of resolving one ${...}/$name form:
// either a plain scalar, or the multi-element "all positional
// parameters"/"all array elements" form, distinguishing the @ and *
// subscript/parameter variants since they split differently.
type paramResult struct {
	scalar string
	multi  []string
	star   bool
}

const specialParamNameRunes = "?$!#@*-"

func (e *Engine) expandParam(raw string) (paramResult, error) {
	body := raw[1:]
	if strings.HasPrefix(body, "{") {
		return e.expandBraceParam(body[1 : len(body)-1])
	}
	return e.lookupParamBase(body, "")
}

func (e *Engine) expandBraceParam(body string) (paramResult, error) {
	lengthOp := false
	if strings.HasPrefix(body, "#") && body != "#" {
		lengthOp = true
		body = body[1:]
	}
	name, rest := splitParamName(body)
	subscript := ""
	if strings.HasPrefix(rest, "[") {
		if end := strings.IndexByte(rest, ']'); end > 0 {
			subscript = rest[1:end]
			rest = rest[end+1:]
		}
	}
	if lengthOp {
		return e.lengthParam(name, subscript)
	}
	base, err := e.lookupParamBase(name, subscript)
	if err != nil {
		return paramResult{}, err
	}
	if rest == "" {
		return base, nil
	}
	return e.applyModifier(name, base, rest)
}

func splitParamName(body string) (name, rest string) {
	if body == "" {
		return "", ""
	}
	if strings.IndexByte(specialParamNameRunes, body[0]) >= 0 {
		return body[:1], body[1:]
	}
	i := 0
	for i < len(body) && isNameByte(body[i]) {
		i++
	}
	if i == 0 {
		return body[:1], body[1:]
	}
	return body[:i], body[i:]
}

func isNameByte(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

func (e *Engine) lookupParamBase(name, subscript string) (paramResult, error) {
	switch name {
	case "@":
		return paramResult{multi: e.vars.Positional()}, nil
	case "*":
		return paramResult{multi: e.vars.Positional(), star: true}, nil
	}
	if subscript != "" {
		sub, err := e.resolveSubscript(subscript)
		if err != nil {
			return paramResult{}, err
		}
		switch sub {
		case "@":
			elems, _ := e.vars.ArrayAll(name)
			return paramResult{multi: elems}, nil
		case "*":
			elems, _ := e.vars.ArrayAll(name)
			return paramResult{multi: elems, star: true}, nil
		default:
			if idx, convErr := strconv.Atoi(sub); convErr == nil {
				v, _ := e.vars.GetIndexed(name, idx)
				return paramResult{scalar: v}, nil
			}
			v, _ := e.vars.GetAssoc(name, sub)
			return paramResult{scalar: v}, nil
		}
	}
	v, _ := e.vars.Get(name)
	return paramResult{scalar: v}, nil
}

// resolveSubscript evaluates an array subscript arithmetically
// (bash's rule for indexed arrays), falling back to the literal text
// as an associative-array key when it isn't a valid expression.
func (e *Engine) resolveSubscript(subscript string) (string, error) {
	if subscript == "@" || subscript == "*" {
		return subscript, nil
	}
	v, err := arith.Eval(subscript, e.vars)
	if err != nil {
		return subscript, nil
	}
	return strconv.FormatInt(v.I, 10), nil
}

func (e *Engine) lengthParam(name, subscript string) (paramResult, error) {
	if subscript != "" {
		if sub, _ := e.resolveSubscript(subscript); sub == "@" || sub == "*" {
			elems, _ := e.vars.ArrayAll(name)
			return paramResult{scalar: strconv.Itoa(len(elems))}, nil
		}
	}
	base, err := e.lookupParamBase(name, subscript)
	if err != nil {
		return paramResult{}, err
	}
	if base.multi != nil {
		return paramResult{scalar: strconv.Itoa(len(base.multi))}, nil
	}
	return paramResult{scalar: strconv.Itoa(len([]rune(base.scalar)))}, nil
}

// applyModifier implements ${NAME op WORD}'s :-, :=, :?, :+ forms and
// their colonless ("unset only", not "unset or empty") variants.
func (e *Engine) applyModifier(name string, base paramResult, rest string) (paramResult, error) {
	colon := false
	if strings.HasPrefix(rest, ":") {
		colon = true
		rest = rest[1:]
	}
	if rest == "" {
		return base, nil
	}
	op := rest[0]
	word := rest[1:]

	_, defined := e.vars.Get(name)
	unsetOrEmpty := func() bool {
		if base.multi != nil {
			if colon {
				return len(base.multi) == 0 || (len(base.multi) == 1 && base.multi[0] == "")
			}
			return len(base.multi) == 0
		}
		if colon {
			return !defined || base.scalar == ""
		}
		return !defined
	}()

	switch op {
	case '-':
		if unsetOrEmpty {
			v, err := e.expandWordText(word)
			return paramResult{scalar: v}, err
		}
		return base, nil
	case '=':
		if unsetOrEmpty {
			v, err := e.expandWordText(word)
			if err != nil {
				return paramResult{}, err
			}
			e.vars.Set(name, v)
			return paramResult{scalar: v}, nil
		}
		return base, nil
	case '?':
		if unsetOrEmpty {
			msg, _ := e.expandWordText(word)
			if msg == "" {
				msg = "parameter null or not set"
			}
			return paramResult{}, fmt.Errorf("sush: %s: %s", name, msg)
		}
		return base, nil
	case '+':
		if !unsetOrEmpty {
			v, err := e.expandWordText(word)
			return paramResult{scalar: v}, err
		}
		return paramResult{scalar: ""}, nil
	default:
		return base, nil
	}
}

// expandWordText runs the non-splitting, non-globbing pipeline over a
// raw word fragment lifted out of a ${...} modifier clause.
func (e *Engine) expandWordText(word string) (string, error) {
	fb := &fieldBuilder{}
	for _, seg := range lexer.LexWordSegments(word) {
		if err := e.appendSegment(fb, seg, false); err != nil {
			return "", err
		}
	}
	var b strings.Builder
	for _, fr := range fb.finish() {
		b.WriteString(fr.text)
	}
	return b.String(), nil
}

// ---- double-quote content decomposition ----------------------------------

// parseDQContent splits a double-quoted segment's raw text (still
// carrying embedded $.../`...` expansion syntax, per internal/lexer's
// lexDoubleQuoted) into literal and expansion sub-segments, the way
// internal/lexer's own dollar/backtick dispatch would outside quotes.
// Literal runs become SegSingleQuoted (opaque, non-glob-eligible)
// rather than SegLiteral, since quoted literal text must never be
// treated as a glob pattern.
func parseDQContent(s string) []token.Segment {
	var segs []token.Segment
	var lit strings.Builder
	flush := func() {
		if lit.Len() > 0 {
			segs = append(segs, token.Segment{Kind: token.SegSingleQuoted, Raw: lit.String()})
			lit.Reset()
		}
	}
	i := 0
	for i < len(s) {
		c := s[i]
		switch {
		case c == '\\' && i+1 < len(s) && strings.IndexByte("$`\"\\\n", s[i+1]) >= 0:
			if s[i+1] != '\n' {
				lit.WriteByte(s[i+1])
			}
			i += 2
		case c == '$':
			seg, adv := scanDollar(s[i:])
			if seg.Kind == token.SegLiteral {
				lit.WriteString(seg.Raw)
			} else {
				flush()
				seg.Quoted = true
				segs = append(segs, seg)
			}
			i += adv
		case c == '`':
			flush()
			j := i + 1
			var b strings.Builder
			for j < len(s) && s[j] != '`' {
				if s[j] == '\\' && j+1 < len(s) {
					b.WriteByte(s[j+1])
					j += 2
					continue
				}
				b.WriteByte(s[j])
				j++
			}
			segs = append(segs, token.Segment{Kind: token.SegCommandSub, Raw: "`" + b.String() + "`", Quoted: true})
			i = j + 1
		default:
			lit.WriteByte(c)
			i++
		}
	}
	flush()
	return segs
}

func scanDollar(s string) (token.Segment, int) {
	if len(s) >= 3 && s[1] == '(' && s[2] == '(' {
		end := findBalancedArith(s, 3)
		if end < 0 {
			return token.Segment{Kind: token.SegArithSub, Raw: s}, len(s)
		}
		return token.Segment{Kind: token.SegArithSub, Raw: s[:end]}, end
	}
	if len(s) >= 2 && s[1] == '(' {
		end := findBalancedPair(s, 2, '(', ')')
		if end < 0 {
			return token.Segment{Kind: token.SegCommandSub, Raw: s}, len(s)
		}
		return token.Segment{Kind: token.SegCommandSub, Raw: s[:end]}, end
	}
	if len(s) >= 2 && s[1] == '{' {
		end := findBalancedPair(s, 2, '{', '}')
		if end < 0 {
			return token.Segment{Kind: token.SegParam, Raw: s}, len(s)
		}
		return token.Segment{Kind: token.SegParam, Raw: s[:end]}, end
	}
	return scanBareParam(s)
}

func scanBareParam(s string) (token.Segment, int) {
	if len(s) < 2 {
		return token.Segment{Kind: token.SegLiteral, Raw: "$"}, 1
	}
	r := s[1]
	switch {
	case strings.IndexByte(specialParamNameRunes, r) >= 0, r >= '0' && r <= '9':
		return token.Segment{Kind: token.SegParam, Raw: s[:2]}, 2
	case r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'):
		i := 2
		for i < len(s) && isNameByte(s[i]) {
			i++
		}
		return token.Segment{Kind: token.SegParam, Raw: s[:i]}, i
	default:
		return token.Segment{Kind: token.SegLiteral, Raw: "$"}, 1
	}
}

// findBalancedPair returns the index just past the close byte that
// balances the open byte already consumed before start, skipping over
// quoted spans so a nested command substitution's own quotes don't
// confuse the depth count.
func findBalancedPair(s string, start int, open, close byte) int {
	depth := 1
	i := start
	for i < len(s) {
		switch s[i] {
		case '\\':
			i += 2
			continue
		case '\'':
			i++
			for i < len(s) && s[i] != '\'' {
				i++
			}
			i++
			continue
		case '"':
			i++
			for i < len(s) && s[i] != '"' {
				if s[i] == '\\' {
					i++
				}
				i++
			}
			i++
			continue
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return i + 1
			}
		}
		i++
	}
	return -1
}

// findBalancedArith mirrors findBalancedPair for the doubled "((" /
// "))" delimiters $(( ... )) uses.
func findBalancedArith(s string, start int) int {
	depth := 1
	i := start
	for i < len(s) {
		switch {
		case s[i] == '\\' && i+1 < len(s):
			i += 2
			continue
		case s[i] == '\'':
			i++
			for i < len(s) && s[i] != '\'' {
				i++
			}
			i++
			continue
		case s[i] == '"':
			i++
			for i < len(s) && s[i] != '"' {
				if s[i] == '\\' {
					i++
				}
				i++
			}
			i++
			continue
		case i+1 < len(s) && s[i] == '(' && s[i+1] == '(':
			depth++
			i += 2
			continue
		case i+1 < len(s) && s[i] == ')' && s[i+1] == ')':
			depth--
			i += 2
			if depth == 0 {
				return i
			}
			continue
		}
		i++
	}
	return -1
}

// ---- brace expansion -----------------------------------------------------

// braceExpandRaw implements spec.md §4.4 step 5 as a purely textual
// pre-pass: {a,b,c} alternatives and {n..m[..s]} ranges, expanded left
// to right with full recursion into nested groups. A `{` that never
// resolves to a valid comma-list or range (no matching `}`, or a body
// that is neither) is left untouched and scanning resumes after it, so
// a later independent group in the same word still expands.
func braceExpandRaw(s string) []string {
	searchFrom := 0
	for {
		rel := indexUnescaped(s[searchFrom:], '{')
		if rel < 0 {
			return []string{s}
		}
		open := searchFrom + rel
		close := matchingBrace(s, open)
		if close < 0 {
			return []string{s}
		}
		body := s[open+1 : close]
		parts := splitTopLevel(body, ',')
		var altList []string
		switch {
		case len(parts) >= 2:
			altList = parts
		default:
			altList = rangeAlternatives(body)
		}
		if altList == nil {
			searchFrom = open + 1
			continue
		}
		prefix, suffix := s[:open], s[close+1:]
		suffixes := braceExpandRaw(suffix)
		var out []string
		for _, alt := range altList {
			for _, a := range braceExpandRaw(alt) {
				for _, suf := range suffixes {
					out = append(out, prefix+a+suf)
				}
			}
		}
		return out
	}
}

func indexUnescaped(s string, ch byte) int {
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' {
			i++
			continue
		}
		if s[i] == ch {
			return i
		}
	}
	return -1
}

func matchingBrace(s string, open int) int {
	depth := 0
	for i := open; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func splitTopLevel(s string, sep byte) []string {
	var parts []string
	depth := 0
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case '{':
			depth++
		case '}':
			depth--
		case sep:
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	parts = append(parts, s[start:])
	return parts
}

func rangeAlternatives(body string) []string {
	parts := strings.Split(body, "..")
	if len(parts) < 2 || len(parts) > 3 {
		return nil
	}
	start, end := parts[0], parts[1]
	step := 1
	if len(parts) == 3 {
		n, err := strconv.Atoi(parts[2])
		if err != nil || n == 0 {
			return nil
		}
		if n < 0 {
			n = -n
		}
		step = n
	}

	if si, serr := strconv.Atoi(start); serr == nil {
		ei, eerr := strconv.Atoi(end)
		if eerr != nil {
			return nil
		}
		width := 0
		if (strings.HasPrefix(start, "0") || strings.HasPrefix(start, "-0")) && len(strings.TrimPrefix(start, "-")) > 1 {
			width = len(strings.TrimPrefix(start, "-"))
		}
		var out []string
		if si <= ei {
			for v := si; v <= ei; v += step {
				out = append(out, padNum(v, width))
			}
		} else {
			for v := si; v >= ei; v -= step {
				out = append(out, padNum(v, width))
			}
		}
		return out
	}

	if len(start) == 1 && len(end) == 1 {
		sr, er := rune(start[0]), rune(end[0])
		var out []string
		if sr <= er {
			for r := sr; r <= er; r += rune(step) {
				out = append(out, string(r))
			}
		} else {
			for r := sr; r >= er; r -= rune(step) {
				out = append(out, string(r))
			}
		}
		return out
	}
	return nil
}

func padNum(v, width int) string {
	s := strconv.Itoa(v)
	if width == 0 {
		return s
	}
	neg := strings.HasPrefix(s, "-")
	digits := s
	if neg {
		digits = s[1:]
	}
	for len(digits) < width {
		digits = "0" + digits
	}
	if neg {
		return "-" + digits
	}
	return digits
}
