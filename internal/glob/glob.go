// Package glob implements pathname expansion and the pattern matcher
// shared with `case` (spec.md §4.4 word-expansion pipeline step 6,
// §4.8 `case` arms). The matching algorithm — parse the pattern into
// a flat token list, then narrow a set of candidate match-suffixes
// token by token — is ported directly from original_source's
// command/case/tools.rs (parse/compare/scanner_*), since no example
// in the retrieved pack ships an extended-glob matcher and
// path/filepath.Match does not support `?()*()+()@()!()` groups.
package glob

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// wildKind discriminates one parsed pattern token.
type wildKind int

const (
	wNormal wildKind = iota
	wAsterisk
	wQuestion
	wOneOf
	wNotOneOf
	wExtGlob
)

type wild struct {
	kind    wildKind
	text    string   // wNormal
	chars   []rune   // wOneOf / wNotOneOf
	prefix  rune     // wExtGlob: one of ? * + @ !
	subpats []string // wExtGlob alternatives
}

// Match reports whether s matches pattern using shell pathname/case
// pattern syntax: `*`, `?`, `[...]`/`[!...]`, and, when extglob is
// true, `?()`/`*()`/`+()`/`@()`/`!()` groups. caseFold, when true,
// matches case-insensitively (bash's `nocasematch`/`nocaseglob`).
func Match(s, pattern string, extglob, caseFold bool) bool {
	if caseFold {
		s = strings.ToLower(s)
		pattern = strings.ToLower(pattern)
	}
	wilds := parsePattern(pattern, extglob)
	candidates := []string{s}
	for _, w := range wilds {
		candidates = compareStep(candidates, w, extglob)
		if len(candidates) == 0 {
			return false
		}
	}
	for _, c := range candidates {
		if c == "" {
			return true
		}
	}
	return false
}

func compareStep(cands []string, w wild, extglob bool) []string {
	switch w.kind {
	case wNormal:
		return compareNormal(cands, w.text)
	case wAsterisk:
		return asteriskStep(cands)
	case wQuestion:
		return questionStep(cands)
	case wOneOf:
		return oneOfStep(cands, w.chars, false)
	case wNotOneOf:
		return oneOfStep(cands, w.chars, true)
	case wExtGlob:
		return extGlobStep(cands, w, extglob)
	}
	return cands
}

func compareNormal(cands []string, s string) []string {
	var ans []string
	for _, c := range cands {
		if strings.HasPrefix(c, s) {
			ans = append(ans, c[len(s):])
		}
	}
	return ans
}

// asteriskStep replaces each candidate with every suffix of itself,
// since `*` may consume any run of characters (possibly empty).
func asteriskStep(cands []string) []string {
	var ans []string
	for _, c := range cands {
		rs := []rune(c)
		for i := len(rs); i >= 0; i-- {
			ans = append(ans, string(rs[i:]))
		}
	}
	return ans
}

func questionStep(cands []string) []string {
	var ans []string
	for _, c := range cands {
		rs := []rune(c)
		if len(rs) == 0 {
			continue
		}
		ans = append(ans, string(rs[1:]))
	}
	return ans
}

func oneOfStep(cands []string, set []rune, inverse bool) []string {
	var ans []string
	for _, c := range cands {
		rs := []rune(c)
		if len(rs) == 0 {
			continue
		}
		matched := false
		for _, sc := range set {
			if rs[0] == sc {
				matched = true
				break
			}
		}
		if matched != inverse {
			ans = append(ans, string(rs[1:]))
		}
	}
	return ans
}

// extGlobStep handles `?()`/`*()`/`+()`/`@()`/`!()`. Matching each
// alternative against the running candidate set and unioning results
// mirrors tools.rs's ext_question — a faithful but intentionally
// simplified model that treats every prefix as "match zero-or-one of
// any alternative", same as the original.
func extGlobStep(cands []string, w wild, extglob bool) []string {
	if !extglob {
		literal := string(w.prefix) + "(" + strings.Join(w.subpats, "|") + ")"
		return compareNormal(cands, literal)
	}
	ans := append([]string{}, cands...)
	for _, sub := range w.subpats {
		tmp := append([]string{}, cands...)
		for _, sw := range parsePattern(sub, extglob) {
			tmp = compareStep(tmp, sw, extglob)
		}
		ans = append(ans, tmp...)
	}
	return ans
}

// parsePattern tokenizes pattern into a flat wild list, in source
// order, mirroring tools.rs's parse/scanner_* functions.
func parsePattern(pattern string, extglob bool) []wild {
	remaining := pattern
	var ans []wild
	for len(remaining) > 0 {
		if n := scanEscapedChar(remaining); n > 0 {
			s := remaining[:n]
			remaining = remaining[n:]
			ans = append(ans, wild{kind: wNormal, text: s[1:]})
			continue
		}

		if extglob {
			if n, w := scanExtParen(remaining); n > 0 {
				remaining = remaining[n:]
				ans = append(ans, w)
				continue
			}
		}

		if n, w := scanBracket(remaining); n > 0 {
			remaining = remaining[n:]
			ans = append(ans, w)
			continue
		}

		if strings.HasPrefix(remaining, "*") {
			remaining = remaining[1:]
			ans = append(ans, wild{kind: wAsterisk})
			continue
		}
		if strings.HasPrefix(remaining, "?") {
			remaining = remaining[1:]
			ans = append(ans, wild{kind: wQuestion})
			continue
		}

		if n := scanPlainChars(remaining); n > 0 {
			ans = append(ans, wild{kind: wNormal, text: remaining[:n]})
			remaining = remaining[n:]
			continue
		}

		_, size := decodeRune(remaining)
		ans = append(ans, wild{kind: wNormal, text: remaining[:size]})
		remaining = remaining[size:]
	}
	return ans
}

func decodeRune(s string) (rune, int) {
	for i, r := range s {
		if i == 0 {
			return r, len(string(r))
		}
	}
	return 0, len(s)
}

func scanEscapedChar(remaining string) int {
	if !strings.HasPrefix(remaining, `\`) {
		return 0
	}
	rest := remaining[1:]
	if rest == "" {
		return 1
	}
	_, size := decodeRune(rest)
	return 1 + size
}

func scanPlainChars(remaining string) int {
	n := 0
	for i, r := range remaining {
		if strings.ContainsRune(`*?[\`, r) {
			return n
		}
		if strings.ContainsRune("+@!", r) && i+1 < len(remaining) && remaining[i+1] == '(' {
			return n
		}
		n += len(string(r))
	}
	return n
}

func scanBracket(remaining string) (int, wild) {
	if !strings.HasPrefix(remaining, "[") {
		return 0, wild{}
	}
	not := false
	n := 1
	if strings.HasPrefix(remaining, "[^") || strings.HasPrefix(remaining, "[!") {
		not = true
		n = 2
	}
	var chars []rune
	escaped := false
	rest := remaining[n:]
	for i, c := range rest {
		n += len(string(c))
		if escaped {
			chars = append(chars, c)
			escaped = false
			continue
		}
		if c == '\\' {
			escaped = true
			continue
		}
		if c == ']' && i > 0 { // a ']' first in the class is literal
			if not {
				return n, wild{kind: wNotOneOf, chars: chars}
			}
			return n, wild{kind: wOneOf, chars: chars}
		}
		chars = append(chars, c)
	}
	return 0, wild{}
}

func scanExtParen(remaining string) (int, wild) {
	rs := []rune(remaining)
	if len(rs) == 0 {
		return 0, wild{}
	}
	prefix := rs[0]
	if !strings.ContainsRune("?*+@!", prefix) || len(rs) < 2 || rs[1] != '(' {
		return 0, wild{}
	}
	n := len(string(prefix)) + 1
	var chars []rune
	var patterns []string
	escaped := false
	nest := 0
	nextNest := false
	rest := rs[2:]
	for _, c := range rest {
		n += len(string(c))
		if escaped {
			chars = append(chars, c)
			escaped = false
			continue
		}
		if c == '\\' {
			escaped = true
			continue
		}
		if c == '|' && nest == 0 {
			patterns = append(patterns, string(chars))
			chars = nil
			continue
		}
		if nextNest && c == '(' {
			nest++
		}
		nextNest = strings.ContainsRune("?*+@!", c)
		if c == ')' {
			if nest == 0 {
				patterns = append(patterns, string(chars))
				return n, wild{kind: wExtGlob, prefix: prefix, subpats: patterns}
			}
			nest--
		}
		chars = append(chars, c)
	}
	return 0, wild{}
}

// ---- pathname expansion --------------------------------------------

// HasMeta reports whether s contains any glob metacharacter, letting
// callers skip matching entirely for plain literal words.
func HasMeta(s string, extglob bool) bool {
	if strings.ContainsAny(s, "*?[") {
		return true
	}
	if extglob {
		for i := 0; i < len(s)-1; i++ {
			if strings.ContainsRune("?*+@!", rune(s[i])) && s[i+1] == '(' {
				return true
			}
		}
	}
	return false
}

// Expand performs pathname globbing for pattern (spec.md §4.4 step
// 6): it is split on '/', each component is matched against actual
// directory entries component by component, and a leading '.' in a
// directory entry only matches a pattern component that itself
// begins with '.' (the hidden-file rule). Nullglob is the caller's
// choice of what to do with zero matches: Expand always returns
// whatever matched (possibly empty); the caller substitutes the
// literal pattern back in when nullglob is off and the result is
// empty, per spec.md's word-splitting/globbing step ordering.
func Expand(pattern string, extglob bool) []string {
	if !HasMeta(pattern, extglob) {
		return nil
	}
	abs := strings.HasPrefix(pattern, "/")
	comps := strings.Split(pattern, "/")
	start := "."
	if abs {
		start = "/"
		comps = comps[1:]
	}
	results := []string{start}
	for i, comp := range comps {
		if comp == "" {
			continue
		}
		last := i == len(comps)-1
		results = expandComponent(results, comp, extglob, last)
		if len(results) == 0 {
			return nil
		}
	}
	sort.Strings(results)
	return normalizeResults(results, abs)
}

func normalizeResults(results []string, abs bool) []string {
	out := make([]string, 0, len(results))
	for _, r := range results {
		if abs {
			if !strings.HasPrefix(r, "/") {
				r = "/" + r
			}
		} else {
			r = strings.TrimPrefix(r, "./")
			if r == "" {
				r = "."
			}
		}
		out = append(out, r)
	}
	return out
}

func expandComponent(dirs []string, comp string, extglob, last bool) []string {
	var out []string
	literal := !HasMeta(comp, extglob)
	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, e := range entries {
			name := e.Name()
			if literal {
				if name != comp {
					continue
				}
			} else {
				if strings.HasPrefix(name, ".") && !strings.HasPrefix(comp, ".") {
					continue
				}
				if !Match(name, comp, extglob, false) {
					continue
				}
			}
			if !last && !e.IsDir() {
				continue
			}
			out = append(out, filepath.Join(dir, name))
		}
	}
	return out
}
