package shell

import (
	"os"
	"strings"
	"testing"
)

func TestRunCommandStringSetsPositionalAndStatus(t *testing.T) {
	s := New("sush")
	status := s.RunCommandString(`echo $1-$2`, []string{"sush", "a", "b"})
	if status != 0 {
		t.Fatalf("status = %d, want 0", status)
	}
}

func TestRunCommandStringExitPropagatesStatus(t *testing.T) {
	s := New("sush")
	status := s.RunCommandString(`exit 9`, nil)
	if status != 9 {
		t.Errorf("status = %d, want 9", status)
	}
}

func TestRunCommandStringSyntaxErrorReportsStatusTwo(t *testing.T) {
	s := New("sush")
	status := s.RunCommandString(`if true; then`, nil)
	if status != 2 {
		t.Errorf("status = %d, want 2", status)
	}
}

func TestRunFileExecutesScriptSequentially(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/script.sh"
	script := "echo one\necho two\n"
	if err := os.WriteFile(path, []byte(script), 0o644); err != nil {
		t.Fatal(err)
	}
	s := New("sush")
	status := s.RunFile(path, nil)
	if status != 0 {
		t.Errorf("status = %d, want 0", status)
	}
}

func TestRunFileStopsAtExit(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/script.sh"
	script := "exit 3\necho unreached\n"
	if err := os.WriteFile(path, []byte(script), 0o644); err != nil {
		t.Fatal(err)
	}
	s := New("sush")
	status := s.RunFile(path, nil)
	if status != 3 {
		t.Errorf("status = %d, want 3", status)
	}
}

func TestRunFileMissingPathReportsNotFoundStatus(t *testing.T) {
	s := New("sush")
	status := s.RunFile("/no/such/path/sush-test", nil)
	if status != 127 {
		t.Errorf("status = %d, want 127", status)
	}
}

func TestRunRCMissingFileIsSilentlyFine(t *testing.T) {
	s := New("sush")
	s.RunRC("/no/such/rc/file")
}

func TestRunRCAssignsVariablesIntoTheSameShell(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/sushrc"
	if err := os.WriteFile(path, []byte("GREETING=hi\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	s := New("sush")
	s.RunRC(path)
	v, ok := s.Executor().Shell().Get("GREETING")
	if !ok || v != "hi" {
		t.Errorf("GREETING = %q, %v, want %q, true", v, ok, "hi")
	}
}

func TestPs1FallsBackToDirectoryBasedDefault(t *testing.T) {
	s := New("sush")
	p := s.ps1()
	if p == "" {
		t.Error("ps1() should never be empty")
	}
	if !strings.Contains(p, "❯") {
		t.Errorf("ps1() = %q, want the teacher-style prompt glyph absent a custom PS1", p)
	}
}

func TestPs1HonorsCustomPS1Variable(t *testing.T) {
	s := New("sush")
	s.Executor().Shell().SetVar("PS1", "myprompt$ ", false)
	if got := s.ps1(); got != "myprompt$ " {
		t.Errorf("ps1() = %q, want %q", got, "myprompt$ ")
	}
}
