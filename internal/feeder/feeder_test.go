package feeder

import (
	"io"
	"testing"

	"github.com/sush-shell/sush/internal/ast"
	"github.com/sush-shell/sush/internal/parser"
)

// fakeSource replays a fixed list of lines, like a test double for a
// terminal or a script file.
type fakeSource struct {
	lines []string
	pos   int
}

func (f *fakeSource) ReadLine(prompt string) (string, error) {
	if f.pos >= len(f.lines) {
		return "", io.EOF
	}
	l := f.lines[f.pos]
	f.pos++
	return l, nil
}

func wordText(w ast.Word) string { return w.Raw }

func TestNextSingleLineStatement(t *testing.T) {
	f := New(&fakeSource{lines: []string{"echo hi"}}, false)
	prog, raw, err := f.Next("$ ", "> ")
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if raw != "echo hi" {
		t.Errorf("raw = %q, want %q", raw, "echo hi")
	}
	if prog.Kind != ast.KSimple || len(prog.Words) != 2 {
		t.Fatalf("prog = %+v, want a 2-word simple command", prog)
	}
	if wordText(prog.Words[0]) != "echo" {
		t.Errorf("Words[0] = %q, want echo", wordText(prog.Words[0]))
	}
}

func TestNextJoinsBackslashContinuation(t *testing.T) {
	f := New(&fakeSource{lines: []string{`ec\`, `ho hi`}}, false)
	prog, raw, err := f.Next("$ ", "> ")
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if raw != "echo hi" {
		t.Errorf("raw = %q, want %q (backslash+newline vanish with no separator inserted)", raw, "echo hi")
	}
	if prog.Kind != ast.KSimple || len(prog.Words) != 2 {
		t.Fatalf("prog = %+v, want two words", prog)
	}
	if wordText(prog.Words[0]) != "echo" {
		t.Errorf("Words[0] = %q, want echo", wordText(prog.Words[0]))
	}
}

func TestNextWaitsOutUnclosedGroup(t *testing.T) {
	f := New(&fakeSource{lines: []string{"if true; then", "echo a", "fi"}}, false)
	prog, _, err := f.Next("$ ", "> ")
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if prog.Kind != ast.KIf {
		t.Fatalf("prog.Kind = %v, want KIf", prog.Kind)
	}
	from, to := f.Lineno()
	if from != 1 || to != 3 {
		t.Errorf("Lineno() = (%d, %d), want (1, 3)", from, to)
	}
}

func TestNextWaitsOutUnterminatedHeredoc(t *testing.T) {
	f := New(&fakeSource{lines: []string{"cat <<EOF", "body line", "EOF"}}, false)
	prog, _, err := f.Next("$ ", "> ")
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if prog.Kind != ast.KSimple {
		t.Fatalf("prog.Kind = %v, want KSimple", prog.Kind)
	}
}

func TestNextWaitsOutUnterminatedQuote(t *testing.T) {
	f := New(&fakeSource{lines: []string{`echo "hello`, `world"`}}, false)
	prog, raw, err := f.Next("$ ", "> ")
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if raw != "echo \"hello\nworld\"" {
		t.Errorf("raw = %q", raw)
	}
	if prog.Kind != ast.KSimple {
		t.Fatalf("prog.Kind = %v, want KSimple", prog.Kind)
	}
}

func TestNextEndOfInputWithNothingPending(t *testing.T) {
	f := New(&fakeSource{}, false)
	_, _, err := f.Next("$ ", "> ")
	if err != ErrEndOfInput {
		t.Errorf("err = %v, want ErrEndOfInput", err)
	}
}

func TestNextEndOfInputMidConstructIsSyntaxError(t *testing.T) {
	f := New(&fakeSource{lines: []string{"if true; then", "echo a"}}, false)
	_, _, err := f.Next("$ ", "> ")
	se, ok := err.(*parser.SyntaxError)
	if !ok {
		t.Fatalf("err = %v (%T), want *parser.SyntaxError", err, err)
	}
	if !se.Incomplete {
		t.Error("SyntaxError.Incomplete should be true for EOF mid-construct")
	}
}

func TestNextRealSyntaxErrorIsNotIncomplete(t *testing.T) {
	f := New(&fakeSource{lines: []string{"case x esac"}}, false)
	_, _, err := f.Next("$ ", "> ")
	se, ok := err.(*parser.SyntaxError)
	if !ok {
		t.Fatalf("err = %v (%T), want *parser.SyntaxError", err, err)
	}
	if se.Incomplete {
		t.Error("a missing 'in' keyword should be a real syntax error, not Incomplete")
	}
}
