// Package shell ties internal/feeder, internal/parser, and
// internal/exec together into the REPL/script driver that cmd/sush
// runs. It generalizes the teacher's module-level main() body in
// golash.go — the wd/lastDir prompt bookkeeping, the
// readline.NewEx config, the `-c`/file/stdin dispatch — into a
// reusable Shell type that cmd/sush constructs once per process.
package shell

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/chzyer/readline"
	"golang.org/x/term"

	"github.com/sush-shell/sush/internal/exec"
	"github.com/sush-shell/sush/internal/feeder"
	"github.com/sush-shell/sush/internal/parser"
	"github.com/sush-shell/sush/internal/state"
)

// Shell owns one interpreter session: the executor/variable store and
// whatever readline instance backs interactive input. cmd/sush creates
// one per process and calls exactly one of RunCommandString, RunFile,
// RunStdin, or RunInteractive on it.
type Shell struct {
	ex *exec.Executor
	rl *readline.Instance

	lastDir string
}

// New creates a Shell seeded from the process environment, the way
// state.New already seeds variables from os.Environ.
func New(arg0 string) *Shell {
	wd, _ := os.Getwd()
	return &Shell{
		ex:      exec.New(state.New(arg0)),
		lastDir: wd,
	}
}

// Executor exposes the underlying executor for cmd/sush to report $?
// after a -c run or to wire signal handling against.
func (s *Shell) Executor() *exec.Executor { return s.ex }

// Close releases the readline instance, if one was opened.
func (s *Shell) Close() {
	if s.rl != nil {
		s.rl.Close()
	}
}

// ---- prompts ----------------------------------------------------------

// ps1/ps2 follow PS1/PS2 if the running script has set them (spec.md
// §6's variable surface), falling back to the teacher's
// filepath.Base(wd)+" ❯ " style default.
func (s *Shell) ps1() string {
	if v, ok := s.ex.Shell().Get("PS1"); ok && v != "" {
		return clampToTerminalWidth(v)
	}
	wd, _ := os.Getwd()
	return clampToTerminalWidth(filepath.Base(wd) + " ❯ ")
}

func (s *Shell) ps2() string {
	if v, ok := s.ex.Shell().Get("PS2"); ok && v != "" {
		return v
	}
	return "> "
}

// clampToTerminalWidth shortens a prompt that wouldn't leave room for
// any typed input on a narrow terminal (the checkwinsize-style use of
// golang.org/x/term this package exists to exercise); a query failure
// (not a TTY, or piped output) just means "don't clamp".
func clampToTerminalWidth(prompt string) string {
	w, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || w <= 0 || len(prompt) < w-10 {
		return prompt
	}
	return "$ "
}

// ---- non-interactive ---------------------------------------------------

// RunCommandString implements `-c command`: src is parsed and run as
// if it were the entire program, with args becoming $0/$1... the way
// the teacher's `-c` branch seeds the variables map from getopt.Args.
func (s *Shell) RunCommandString(src string, args []string) int {
	if len(args) > 0 {
		s.ex.Shell().SetArg0(args[0])
		s.ex.Shell().SetPositional(args[1:])
	}
	status, _ := s.runSource(src, "-c")
	return status
}

// RunFile runs path as a script, statement by statement, the way the
// teacher's file branch walks a bufio.Reader line by line — generalized
// here through internal/feeder so multi-line constructs in the script
// are assembled correctly instead of being fed to the parser one raw
// line at a time.
func (s *Shell) RunFile(path string, args []string) int {
	f, err := os.Open(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sush: %v\n", err)
		return 127
	}
	defer f.Close()
	s.ex.Shell().SetArg0(path)
	if len(args) > 0 {
		s.ex.Shell().SetPositional(args)
	}
	return s.runScript(f, path)
}

// RunStdin runs the standard input stream as a script (spec.md's
// "non-interactive" mode when stdin isn't a TTY).
func (s *Shell) RunStdin(args []string) int {
	if len(args) > 0 {
		s.ex.Shell().SetPositional(args)
	}
	return s.runScript(os.Stdin, "-")
}

// RunRC sources path (e.g. ~/.sushrc) line-by-line the way the
// teacher's readConfig does, reporting "path:line: message" on error
// per statement and continuing, rather than aborting the whole shell
// over one bad rc line.
func (s *Shell) RunRC(path string) {
	f, err := os.Open(path)
	if err != nil {
		return // missing rc file is silently fine, same as readConfig's caller ignoring os.IsNotExist
	}
	defer f.Close()

	fd := feeder.New(&feeder.ScannerSource{Scanner: bufio.NewScanner(f)}, s.ex.Shell().Extglob())
	for {
		prog, _, err := fd.Next("", "")
		if err == feeder.ErrEndOfInput {
			return
		}
		if err != nil {
			from, _ := fd.Lineno()
			fmt.Fprintf(os.Stderr, "%s:%d: %v\n", path, from, err)
			continue
		}
		if _, flow, runErr := s.ex.Run(prog); runErr != nil {
			from, _ := fd.Lineno()
			fmt.Fprintf(os.Stderr, "%s:%d: %v\n", path, from, runErr)
		} else if flow.Kind == exec.FlowExit {
			os.Exit(flow.Status)
		}
	}
}

func (s *Shell) runScript(r io.Reader, name string) int {
	fd := feeder.New(&feeder.ScannerSource{Scanner: bufio.NewScanner(r)}, s.ex.Shell().Extglob())
	status := 0
	for {
		prog, _, err := fd.Next("", "")
		if err == feeder.ErrEndOfInput {
			return status
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "sush: %s: %v\n", name, err)
			return 2 // spec.md §4.1: end-of-stream mid-construct is a syntax error, exit 2
		}
		var flow exec.Flow
		status, flow, err = s.ex.Run(prog)
		if err != nil {
			fmt.Fprintf(os.Stderr, "sush: %v\n", err)
			return 1
		}
		if flow.Kind == exec.FlowExit {
			return flow.Status
		}
	}
}

// runSource parses and runs src as a single program (used by -c),
// reporting whether it ended in an `exit`.
func (s *Shell) runSource(src, name string) (status int, exited bool) {
	prog, err := parser.New(src, s.ex.Shell().Extglob()).ParseProgram()
	if err != nil {
		fmt.Fprintf(os.Stderr, "sush: %s: %v\n", name, err)
		return 2, false
	}
	status, flow, err := s.ex.Run(prog)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sush: %v\n", err)
		return 1, false
	}
	if flow.Kind == exec.FlowExit {
		return flow.Status, true
	}
	return status, false
}

// ---- interactive --------------------------------------------------------

// readlineSource adapts *readline.Instance to feeder.LineSource.
// Ctrl-C (readline.ErrInterrupt) restarts the same read rather than
// surfacing as end-of-input, mirroring the teacher's outer-loop
// `if err == readline.ErrInterrupt { continue }`.
type readlineSource struct{ rl *readline.Instance }

func (r *readlineSource) ReadLine(prompt string) (string, error) {
	r.rl.SetPrompt(prompt)
	for {
		line, err := r.rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		}
		return line, err
	}
}

// RunInteractive drives the PS1/PS2 readline loop (spec.md's
// interactive mode): each assembled statement runs immediately and its
// status feeds back into $? for the next prompt, same as the teacher's
// `for { ... r.Readline() ... execInput(input) ... }`. historyFile is
// passed straight through to readline.Config.HistoryFile.
func (s *Shell) RunInteractive(historyFile string) int {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:            s.ps1(),
		InterruptPrompt:   " ",
		HistoryFile:       historyFile,
		HistorySearchFold: true,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "sush: %v\n", err)
		return 1
	}
	s.rl = rl
	defer rl.Close()

	fd := feeder.New(&readlineSource{rl: rl}, s.ex.Shell().Extglob())

	status := 0
	for {
		s.syncWorkingDirectory()
		rl.SetPrompt(s.ps1())

		prog, _, err := fd.Next(s.ps1(), s.ps2())
		if err == feeder.ErrEndOfInput {
			return status
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "sush: %v\n", err)
			status = 2
			continue
		}

		var flow exec.Flow
		status, flow, err = s.ex.Run(prog)
		if err != nil {
			fmt.Fprintf(os.Stderr, "sush: %v\n", err)
			continue
		}
		if flow.Kind == exec.FlowExit {
			return flow.Status
		}
	}
}

// syncWorkingDirectory reproduces the teacher's defensive wd tracking:
// warn and recover if the cwd vanished out from under the shell (a
// deleted directory, e.g. `rm -rf` on it from another terminal), and
// mirror OLDPWD when a `cd` changed it. The teacher's further
// distinction between an expected `cd`-driven change and an
// unexplained one hinged on a callback `cd` itself doesn't have a
// path back to here for, so that half is dropped; OLDPWD mirroring and
// the vanished-cwd recovery are the parts that generalize cleanly.
func (s *Shell) syncWorkingDirectory() {
	wd, err := os.Getwd()
	if err != nil {
		fmt.Fprintln(os.Stderr, "sush: the current working directory no longer exists, moving to $HOME")
		home, _ := s.ex.Shell().Get("HOME")
		os.Chdir(home)
		s.lastDir, _ = os.Getwd()
		return
	}
	if wd != s.lastDir {
		os.Setenv("OLDPWD", s.lastDir)
		s.ex.Shell().SetVar("OLDPWD", s.lastDir, false)
		s.lastDir = wd
	}
}
