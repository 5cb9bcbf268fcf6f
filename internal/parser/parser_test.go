package parser

import (
	"testing"

	"github.com/sush-shell/sush/internal/ast"
	"github.com/sush-shell/sush/internal/token"
)

func parseOne(t *testing.T, src string) *ast.Node {
	t.Helper()
	n, err := New(src, false).ParseProgram()
	if err != nil {
		t.Fatalf("ParseProgram(%q) error: %v", src, err)
	}
	return n
}

func wordRaw(w ast.Word) string { return w.Raw }

func TestParseSimpleCommandWithAssignmentsAndRedirections(t *testing.T) {
	n := parseOne(t, "FOO=bar cmd arg1 >out 2>&1")
	if n.Kind != ast.KSimple {
		t.Fatalf("kind = %v, want KSimple", n.Kind)
	}
	if len(n.Assignments) != 1 || n.Assignments[0].Name != "FOO" {
		t.Fatalf("assignments = %+v", n.Assignments)
	}
	if len(n.Words) != 2 || wordRaw(n.Words[0]) != "cmd" || wordRaw(n.Words[1]) != "arg1" {
		t.Fatalf("words = %+v", n.Words)
	}
	if len(n.Redirs) != 2 {
		t.Fatalf("redirs = %+v, want 2", n.Redirs)
	}
	if n.Redirs[0].Op != token.Great {
		t.Errorf("redir[0].Op = %v, want Great", n.Redirs[0].Op)
	}
	if n.Redirs[1].Op != token.GreatAnd || n.Redirs[1].SourceFD != 2 {
		t.Errorf("redir[1] = %+v, want GreatAnd with SourceFD 2", n.Redirs[1])
	}
}

func TestParseAssignmentOnlyCommandHasNoWords(t *testing.T) {
	n := parseOne(t, "FOO=bar BAZ=qux")
	if n.Kind != ast.KSimple {
		t.Fatalf("kind = %v", n.Kind)
	}
	if len(n.Words) != 0 {
		t.Errorf("words = %+v, want none", n.Words)
	}
	if len(n.Assignments) != 2 {
		t.Fatalf("assignments = %+v, want 2", n.Assignments)
	}
}

func TestParseAppendAssignment(t *testing.T) {
	n := parseOne(t, "FOO+=bar")
	if len(n.Assignments) != 1 || !n.Assignments[0].Append || n.Assignments[0].Name != "FOO" {
		t.Fatalf("assignments = %+v", n.Assignments)
	}
}

func TestParseWordAfterAssignmentIsNotTreatedAsAssignment(t *testing.T) {
	// Once a word has appeared, a later NAME=value-looking word is a
	// plain argument, not an assignment (spec.md: assignment prefixes
	// only precede the command word).
	n := parseOne(t, "echo FOO=bar")
	if len(n.Assignments) != 0 {
		t.Fatalf("assignments = %+v, want none", n.Assignments)
	}
	if len(n.Words) != 2 || wordRaw(n.Words[1]) != "FOO=bar" {
		t.Fatalf("words = %+v", n.Words)
	}
}

func TestParsePipelineNegation(t *testing.T) {
	n := parseOne(t, "! a | b | c")
	if n.Kind != ast.KPipeline {
		t.Fatalf("kind = %v, want KPipeline", n.Kind)
	}
	if !n.Negate {
		t.Error("Negate = false, want true")
	}
	if len(n.Commands) != 3 {
		t.Fatalf("commands = %d, want 3", len(n.Commands))
	}
}

func TestParsePipelineStderrMerge(t *testing.T) {
	n := parseOne(t, "a |& b")
	if n.Kind != ast.KPipeline {
		t.Fatalf("kind = %v, want KPipeline", n.Kind)
	}
	if len(n.StderrMerge) != 1 || !n.StderrMerge[0] {
		t.Fatalf("StderrMerge = %+v, want [true]", n.StderrMerge)
	}
}

func TestParseSingleCommandPipelineCollapsesToCommandNode(t *testing.T) {
	n := parseOne(t, "echo hi")
	if n.Kind != ast.KSimple {
		t.Fatalf("kind = %v, want KSimple (no pipeline wrapper for one command)", n.Kind)
	}
}

func TestParseAndOrChain(t *testing.T) {
	n := parseOne(t, "a && b || c")
	if n.Kind != ast.KAndOr {
		t.Fatalf("kind = %v, want KAndOr", n.Kind)
	}
	if len(n.Ops) != 2 || n.Ops[0] != token.AndIf || n.Ops[1] != token.OrIf {
		t.Fatalf("ops = %v", n.Ops)
	}
	if len(n.Rest) != 2 {
		t.Fatalf("rest = %d, want 2", len(n.Rest))
	}
}

func TestParseProgramSequenceMarksBackgroundOnPrecedingStatement(t *testing.T) {
	n := parseOne(t, "a & b")
	if n.Kind != ast.KGroup {
		t.Fatalf("kind = %v, want KGroup for a multi-statement program", n.Kind)
	}
	if n.Left == nil || !n.Left.Background {
		t.Fatalf("left = %+v, want Background=true", n.Left)
	}
}

func TestParseEmptyProgramIsNoop(t *testing.T) {
	n := parseOne(t, "")
	if n.Kind != ast.KNoop {
		t.Fatalf("kind = %v, want KNoop", n.Kind)
	}
}

func TestParseCommentOnlyLineIsNoop(t *testing.T) {
	n := parseOne(t, "# just a comment\n")
	if n.Kind != ast.KNoop {
		t.Fatalf("kind = %v, want KNoop", n.Kind)
	}
}

func TestParseIfElifElse(t *testing.T) {
	n := parseOne(t, "if a; then b; elif c; then d; else e; fi")
	if n.Kind != ast.KIf {
		t.Fatalf("kind = %v, want KIf", n.Kind)
	}
	if len(n.IfArms) != 2 {
		t.Fatalf("ifArms = %d, want 2", len(n.IfArms))
	}
	if n.ElseArm == nil {
		t.Fatal("elseArm = nil, want present")
	}
}

func TestParseIfWithoutElse(t *testing.T) {
	n := parseOne(t, "if a; then b; fi")
	if n.Kind != ast.KIf {
		t.Fatalf("kind = %v, want KIf", n.Kind)
	}
	if len(n.IfArms) != 1 {
		t.Fatalf("ifArms = %d, want 1", len(n.IfArms))
	}
	if n.ElseArm != nil {
		t.Error("elseArm present, want nil")
	}
}

func TestParseWhile(t *testing.T) {
	n := parseOne(t, "while a; do b; done")
	if n.Kind != ast.KWhile {
		t.Fatalf("kind = %v, want KWhile", n.Kind)
	}
	if n.Cond == nil || n.Loop == nil {
		t.Fatalf("cond/loop missing: %+v", n)
	}
}

func TestParseUntil(t *testing.T) {
	n := parseOne(t, "until a; do b; done")
	if n.Kind != ast.KUntil {
		t.Fatalf("kind = %v, want KUntil", n.Kind)
	}
}

func TestParseForInWords(t *testing.T) {
	n := parseOne(t, "for x in a b c; do echo $x; done")
	if n.Kind != ast.KFor {
		t.Fatalf("kind = %v, want KFor", n.Kind)
	}
	if n.VarName != "x" {
		t.Errorf("varName = %q, want x", n.VarName)
	}
	if !n.HasIn {
		t.Error("HasIn = false, want true")
	}
	if len(n.InWords) != 3 {
		t.Fatalf("inWords = %d, want 3", len(n.InWords))
	}
}

func TestParseForWithoutInDefaultsToPositional(t *testing.T) {
	n := parseOne(t, "for x; do echo $x; done")
	if n.Kind != ast.KFor {
		t.Fatalf("kind = %v, want KFor", n.Kind)
	}
	if n.HasIn {
		t.Error("HasIn = true, want false for bare `for x; do`")
	}
}

func TestParseForArith(t *testing.T) {
	n := parseOne(t, "for (( i = 0; i < 3; i++ )); do echo $i; done")
	if n.Kind != ast.KForArith {
		t.Fatalf("kind = %v, want KForArith", n.Kind)
	}
	if n.Init == "" || n.ArithCond == "" || n.Step == "" {
		t.Fatalf("for-arith clauses incomplete: init=%q cond=%q step=%q", n.Init, n.ArithCond, n.Step)
	}
}

func TestParseCaseWithTerminators(t *testing.T) {
	n := parseOne(t, "case $x in a) b ;; c|d) e ;& f) g ;;& esac")
	if n.Kind != ast.KCase {
		t.Fatalf("kind = %v, want KCase", n.Kind)
	}
	if len(n.Items) != 3 {
		t.Fatalf("items = %d, want 3", len(n.Items))
	}
	if n.Items[0].Terminator != token.DSemi {
		t.Errorf("items[0].Terminator = %v, want DSemi", n.Items[0].Terminator)
	}
	if n.Items[1].Terminator != token.SemiAnd {
		t.Errorf("items[1].Terminator = %v, want SemiAnd", n.Items[1].Terminator)
	}
	if len(n.Items[1].Patterns) != 2 {
		t.Fatalf("items[1].Patterns = %d, want 2", len(n.Items[1].Patterns))
	}
	if n.Items[2].Terminator != token.DSemiAnd {
		t.Errorf("items[2].Terminator = %v, want DSemiAnd", n.Items[2].Terminator)
	}
}

func TestParseCaseWithParenBeforePattern(t *testing.T) {
	n := parseOne(t, "case $x in (a) b ;; esac")
	if n.Kind != ast.KCase || len(n.Items) != 1 {
		t.Fatalf("n = %+v", n)
	}
}

func TestParseGroup(t *testing.T) {
	n := parseOne(t, "{ a; b; }")
	if n.Kind != ast.KGroup {
		t.Fatalf("kind = %v, want KGroup", n.Kind)
	}
	if n.Body == nil {
		t.Fatal("body = nil")
	}
}

func TestParseSubshell(t *testing.T) {
	n := parseOne(t, "( a; b )")
	if n.Kind != ast.KSubshell {
		t.Fatalf("kind = %v, want KSubshell", n.Kind)
	}
	if n.Body == nil {
		t.Fatal("body = nil")
	}
}

func TestParseFunctionDefWithKeyword(t *testing.T) {
	n := parseOne(t, "function f { echo hi; }")
	if n.Kind != ast.KFuncDef {
		t.Fatalf("kind = %v, want KFuncDef", n.Kind)
	}
	if n.FuncName != "f" {
		t.Errorf("funcName = %q, want f", n.FuncName)
	}
	if n.FuncBody == nil {
		t.Fatal("funcBody = nil")
	}
}

func TestParseFunctionDefPOSIXForm(t *testing.T) {
	n := parseOne(t, "f() { echo hi; }")
	if n.Kind != ast.KFuncDef {
		t.Fatalf("kind = %v, want KFuncDef", n.Kind)
	}
	if n.FuncName != "f" {
		t.Errorf("funcName = %q, want f", n.FuncName)
	}
}

func TestParseArithCommand(t *testing.T) {
	n := parseOne(t, "(( x = 1 + 2 ))")
	if n.Kind != ast.KArithCommand {
		t.Fatalf("kind = %v, want KArithCommand", n.Kind)
	}
	if n.ArithText == "" {
		t.Error("arithText empty")
	}
}

func TestParseTestCommandCapturesRawTokens(t *testing.T) {
	n := parseOne(t, "[[ -f foo && -d bar ]]")
	if n.Kind != ast.KTestCommand {
		t.Fatalf("kind = %v, want KTestCommand", n.Kind)
	}
	if len(n.TestTokens) == 0 {
		t.Fatal("testTokens empty")
	}
}

func TestParseHeredocAttachesBodyToRedirection(t *testing.T) {
	n := parseOne(t, "cat <<EOF\nhello\nEOF\n")
	if n.Kind != ast.KSimple {
		t.Fatalf("kind = %v, want KSimple", n.Kind)
	}
	if len(n.Redirs) != 1 || n.Redirs[0].Heredoc == nil {
		t.Fatalf("redirs = %+v, want one heredoc redirection", n.Redirs)
	}
	if n.Redirs[0].Heredoc.Tag != "EOF" {
		t.Errorf("tag = %q, want EOF", n.Redirs[0].Heredoc.Tag)
	}
	if n.Redirs[0].Heredoc.Body != "hello\n" {
		t.Errorf("body = %q, want %q", n.Redirs[0].Heredoc.Body, "hello\n")
	}
}

func TestParseHeredocDashStripsLeadingTabs(t *testing.T) {
	n := parseOne(t, "cat <<-EOF\n\t\thello\n\tEOF\n")
	r := n.Redirs[0]
	if !r.Heredoc.StripTabs {
		t.Error("StripTabs = false, want true")
	}
	if r.Heredoc.Body != "hello\n" {
		t.Errorf("body = %q, want tab-stripped %q", r.Heredoc.Body, "hello\n")
	}
}

func TestParseSyntaxErrorOnUnexpectedToken(t *testing.T) {
	_, err := New(") a", false).ParseProgram()
	if err == nil {
		t.Fatal("want error for leading ')'")
	}
	se, ok := err.(*SyntaxError)
	if !ok {
		t.Fatalf("err type = %T, want *SyntaxError", err)
	}
	if se.Incomplete {
		t.Error("Incomplete = true, want false (this is a real syntax error, not EOF)")
	}
}

func TestParseSyntaxErrorIncompleteWhenConstructLeftOpen(t *testing.T) {
	_, err := New("if a; then b", false).ParseProgram()
	if err == nil {
		t.Fatal("want error for unterminated if")
	}
	se, ok := err.(*SyntaxError)
	if !ok {
		t.Fatalf("err type = %T, want *SyntaxError", err)
	}
	if !se.Incomplete {
		t.Error("Incomplete = false, want true: ran out of tokens mid-construct")
	}
}

func TestParseSyntaxErrorUnterminatedSubshell(t *testing.T) {
	_, err := New("( a", false).ParseProgram()
	if err == nil {
		t.Fatal("want error for unterminated subshell")
	}
	se, ok := err.(*SyntaxError)
	if !ok || !se.Incomplete {
		t.Fatalf("err = %+v, want incomplete *SyntaxError", err)
	}
}
