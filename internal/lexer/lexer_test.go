package lexer

import (
	"testing"

	"github.com/sush-shell/sush/internal/token"
)

func kinds(toks []token.Token) []token.Kind {
	ks := make([]token.Kind, len(toks))
	for i, t := range toks {
		ks[i] = t.Type
	}
	return ks
}

func wantKinds(t *testing.T, toks []token.Token, want ...token.Kind) {
	t.Helper()
	got := kinds(toks)
	if len(got) != len(want) {
		t.Fatalf("token kinds = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("token[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestTokenizeSimpleCommand(t *testing.T) {
	toks := Tokenize("echo hi", false)
	wantKinds(t, toks, token.Word, token.Word, token.EOF)
	if toks[0].Value != "echo" || toks[1].Value != "hi" {
		t.Errorf("values = %q, %q", toks[0].Value, toks[1].Value)
	}
}

func TestTokenizeOperatorsMaximalMunch(t *testing.T) {
	toks := Tokenize("a && b || c", false)
	wantKinds(t, toks, token.Word, token.AndIf, token.Word, token.OrIf, token.Word, token.EOF)
}

func TestTokenizeSemiVsDoubleSemi(t *testing.T) {
	toks := Tokenize("a; b;; c;&", false)
	wantKinds(t, toks, token.Word, token.Semi, token.Word, token.DSemi, token.Word, token.SemiAnd, token.EOF)
}

func TestTokenizeRedirectionOperators(t *testing.T) {
	toks := Tokenize("cmd >> out 2>&1", false)
	wantKinds(t, toks, token.Word, token.DGreat, token.Word, token.IONumber, token.GreatAnd, token.Word, token.EOF)
}

func TestTokenizeSingleQuotedHasNoExpansion(t *testing.T) {
	toks := Tokenize(`echo '$HOME'`, false)
	wordTok := toks[1]
	if len(wordTok.Segments) != 1 || wordTok.Segments[0].Kind != token.SegSingleQuoted {
		t.Fatalf("segments = %+v, want one SegSingleQuoted", wordTok.Segments)
	}
	if wordTok.Segments[0].Raw != "$HOME" {
		t.Errorf("raw = %q, want literal $HOME text", wordTok.Segments[0].Raw)
	}
}

func TestTokenizeDoubleQuotedCapturesNestedCommandSub(t *testing.T) {
	toks := Tokenize(`echo "a $(echo b) c"`, false)
	wordTok := toks[1]
	if len(wordTok.Segments) != 1 || wordTok.Segments[0].Kind != token.SegDoubleQuoted {
		t.Fatalf("segments = %+v, want one SegDoubleQuoted", wordTok.Segments)
	}
	if wordTok.Segments[0].Raw != "a $(echo b) c" {
		t.Errorf("raw = %q", wordTok.Segments[0].Raw)
	}
}

func TestTokenizeParameterExpansionSegment(t *testing.T) {
	toks := Tokenize(`echo ${HOME}`, false)
	wordTok := toks[1]
	if len(wordTok.Segments) != 1 || wordTok.Segments[0].Kind != token.SegParam {
		t.Fatalf("segments = %+v, want one SegParam", wordTok.Segments)
	}
	if wordTok.Segments[0].Raw != "${HOME}" {
		t.Errorf("raw = %q, want ${HOME}", wordTok.Segments[0].Raw)
	}
}

func TestTokenizeArithmeticSubstitutionSegment(t *testing.T) {
	toks := Tokenize(`echo $(( 1 + 2 ))`, false)
	wordTok := toks[1]
	if len(wordTok.Segments) != 1 || wordTok.Segments[0].Kind != token.SegArithSub {
		t.Fatalf("segments = %+v, want one SegArithSub", wordTok.Segments)
	}
}

func TestTokenizeBareSpecialParameters(t *testing.T) {
	toks := Tokenize("echo $? $$ $#", false)
	for _, i := range []int{1, 2, 3} {
		w := toks[i]
		if len(w.Segments) != 1 || w.Segments[0].Kind != token.SegParam {
			t.Fatalf("word %d segments = %+v, want one SegParam", i, w.Segments)
		}
	}
	if toks[1].Segments[0].Raw != "$?" || toks[2].Segments[0].Raw != "$$" || toks[3].Segments[0].Raw != "$#" {
		t.Errorf("raws = %q %q %q", toks[1].Segments[0].Raw, toks[2].Segments[0].Raw, toks[3].Segments[0].Raw)
	}
}

func TestTokenizeTildePrefixAtStartOfInput(t *testing.T) {
	toks := Tokenize("~/proj", false)
	w := toks[0]
	if len(w.Segments) == 0 || w.Segments[0].Kind != token.SegTildePrefix {
		t.Fatalf("segments = %+v, want a leading SegTildePrefix", w.Segments)
	}
	if w.Segments[0].Raw != "~" {
		t.Errorf("tilde segment raw = %q, want ~", w.Segments[0].Raw)
	}
}

func TestTokenizeMidWordTildeIsLiteral(t *testing.T) {
	toks := Tokenize("a~b", false)
	w := toks[0]
	for _, s := range w.Segments {
		if s.Kind == token.SegTildePrefix {
			t.Errorf("a~b should not have a tilde-prefix segment: %+v", w.Segments)
		}
	}
}

func TestTokenizeCommentIsIgnoredToEndOfLine(t *testing.T) {
	toks := Tokenize("echo hi # trailing comment\necho bye", false)
	wantKinds(t, toks, token.Word, token.Word, token.Newline, token.Word, token.Word, token.EOF)
}

func TestTokenizeEscapeDropsBackslashOutsideQuotes(t *testing.T) {
	toks := Tokenize(`echo a\ b`, false)
	// a\ b is one word: the escaped space doesn't end it.
	wantKinds(t, toks, token.Word, token.Word, token.EOF)
	if toks[1].Value != "a b" {
		t.Errorf("value = %q, want %q", toks[1].Value, "a b")
	}
}

func TestLexWordSegmentsReturnsPlainWordSegments(t *testing.T) {
	segs := LexWordSegments(`ab$HOME`)
	if len(segs) != 2 {
		t.Fatalf("segs = %+v, want 2", segs)
	}
	if segs[0].Kind != token.SegLiteral || segs[0].Raw != "ab" {
		t.Errorf("segs[0] = %+v, want literal 'ab'", segs[0])
	}
	if segs[1].Kind != token.SegParam || segs[1].Raw != "$HOME" {
		t.Errorf("segs[1] = %+v, want SegParam '$HOME'", segs[1])
	}
}
