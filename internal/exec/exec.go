// Package exec implements the executor and job controller (spec.md
// §4.8): it walks internal/ast's command tree, forks and waits on
// external processes, wires pipelines and redirections, and threads
// `set -e`/pipefail/function-return/loop-break-continue through as
// typed Flow values rather than panics (spec.md DESIGN NOTES §9).
//
// Pipeline stages that are themselves in-process constructs (a
// builtin, a compound statement) can't share a kernel fork the way
// two external commands can, so a stage runs as a goroutine against
// a cloned Shell, connected to its neighbors by os.Pipe — the
// spawn-all-before-waiting-any ordering from original_source's
// elem_pipeline.rs carries over unchanged; only the "fork" becomes
// "goroutine" for in-process stages. A stage that is a single
// external command still gets a real OS process via os/exec, so two
// external commands piped together still run with true OS-level
// concurrency.
package exec

import (
	"fmt"
	"io"
	"os"
	osexec "os/exec"
	"strconv"
	"strings"
	"sync"
	"syscall"

	"github.com/sush-shell/sush/internal/arith"
	"github.com/sush-shell/sush/internal/ast"
	"github.com/sush-shell/sush/internal/builtin"
	"github.com/sush-shell/sush/internal/expand"
	"github.com/sush-shell/sush/internal/glob"
	"github.com/sush-shell/sush/internal/parser"
	"github.com/sush-shell/sush/internal/state"
	"github.com/sush-shell/sush/internal/token"
)

// FlowKind discriminates the non-local control signals a statement
// can return instead of (or alongside) a plain exit status.
type FlowKind int

const (
	FlowNone FlowKind = iota
	FlowBreak
	FlowContinue
	FlowReturn
	FlowExit
)

// Flow is the typed control-flow signal threaded back up through
// Run: a loop consumes Break/Continue, a function call consumes
// Return, and only Exit escapes all the way to internal/shell.
type Flow struct {
	Kind   FlowKind
	Levels int // break/continue: how many enclosing loops to unwind
	Status int // return/exit: the status to report
}

// ProcState is one process's run state within a Job.
type ProcState int

const (
	ProcRunning ProcState = iota
	ProcStopped
	ProcDone
)

// Proc is one process within a Job's pipeline. done closes once
// Status/State are final, whether that finality came from a
// synchronous Wait (foreground) or a background goroutine — WaitJob
// always just blocks on it rather than calling cmd.Wait() itself,
// since os/exec forbids waiting on the same *Cmd twice.
type Proc struct {
	PID    int
	State  ProcState
	Status int
	cmd    *osexec.Cmd
	done   chan struct{}
}

// JobState is a Job's aggregate run state (spec.md §4: "Running,
// Stopped, Done").
type JobState int

const (
	JobRunning JobState = iota
	JobStopped
	JobDone
)

// Job is one job-table entry (spec.md glossary: "id, leader process
// group id, list of (pid, state, last-status), original command
// text, foreground flag").
type Job struct {
	ID         int
	PGID       int
	Procs      []*Proc
	Command    string
	Foreground bool
	State      JobState
}

// Executor ties the expansion engine, variable store, and builtin
// registry together and walks the command tree.
type Executor struct {
	sh       *state.Shell
	expander *expand.Engine
	builtins map[string]builtin.Builtin

	stdin, stdout, stderr *os.File
	extra                 map[int]*os.File

	jobs      []*Job
	nextJobID int

	testEval TestEvaluator
}

// New creates an Executor over sh, with the default builtin registry
// and the process's own stdio.
func New(sh *state.Shell) *Executor {
	ex := &Executor{
		sh:       sh,
		builtins: builtin.Registry(),
		stdin:    os.Stdin,
		stdout:   os.Stdout,
		stderr:   os.Stderr,
		extra:    make(map[int]*os.File),
	}
	ex.expander = expand.New(sh, ex)
	return ex
}

// clone builds an Executor for a subshell or pipeline stage: a fresh
// variable scope (spec.md §4.8 "any variable changes die with the
// child") sharing this Executor's current stdio and job table.
func (ex *Executor) clone() *Executor {
	c := &Executor{
		sh:        ex.sh.Clone(),
		builtins:  ex.builtins,
		stdin:     ex.stdin,
		stdout:    ex.stdout,
		stderr:    ex.stderr,
		extra:     copyExtra(ex.extra),
		jobs:      append([]*Job(nil), ex.jobs...),
		nextJobID: ex.nextJobID,
		testEval:  ex.testEval,
	}
	c.expander = expand.New(c.sh, c)
	return c
}

func copyExtra(m map[int]*os.File) map[int]*os.File {
	c := make(map[int]*os.File, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}

// Shell exposes the underlying variable store (internal/shell wires
// $? and friends through it between top-level commands).
func (ex *Executor) Shell() *state.Shell { return ex.sh }

// Run dispatches on n.Kind and executes one command-tree node,
// recording its outcome as $? (spec.md §6: "$? (last status)") —
// every recursive call goes through here, so $? always reflects
// whichever command most recently finished, including ones nested
// inside a condition or loop body.
func (ex *Executor) Run(n *ast.Node) (int, Flow, error) {
	status, flow, err := ex.run(n)
	final := status
	if flow.Kind == FlowExit || flow.Kind == FlowReturn {
		final = flow.Status
	}
	ex.sh.SetLastStatus(final)
	return status, flow, err
}

func (ex *Executor) run(n *ast.Node) (int, Flow, error) {
	if n == nil {
		return 0, Flow{}, nil
	}
	if n.Background {
		return ex.runBackground(n)
	}
	return ex.dispatch(n)
}

func (ex *Executor) dispatch(n *ast.Node) (int, Flow, error) {
	switch n.Kind {
	case ast.KNoop:
		return 0, Flow{}, nil
	case ast.KSimple:
		return ex.runSimple(n)
	case ast.KPipeline:
		return ex.runPipeline(n)
	case ast.KAndOr:
		return ex.runAndOr(n)
	case ast.KGroup:
		return ex.runGroup(n)
	case ast.KSubshell:
		return ex.runSubshell(n)
	case ast.KIf:
		return ex.runIf(n)
	case ast.KWhile:
		return ex.runLoop(n, false)
	case ast.KUntil:
		return ex.runLoop(n, true)
	case ast.KFor:
		return ex.runFor(n)
	case ast.KForArith:
		return ex.runForArith(n)
	case ast.KCase:
		return ex.runCase(n)
	case ast.KArithCommand:
		return ex.runArithCommand(n)
	case ast.KTestCommand:
		return ex.runTestCommand(n)
	case ast.KFuncDef:
		ex.sh.DefineFunction(n.FuncName, n.FuncBody)
		return 0, Flow{}, nil
	default:
		return 1, Flow{}, fmt.Errorf("sush: unhandled node kind %d", n.Kind)
	}
}

func negateStatus(status int) int {
	if status == 0 {
		return 1
	}
	return 0
}

// ---- sequencing / grouping ---------------------------------------------

// runGroup handles two shapes that share ast.KGroup: an internal
// statement-list sentinel (Left set — "run Left, then run Body") from
// parser.sequence, and a real `{ … }` brace group (Left nil, just
// "run Body"). Both reduce to the same walk.
func (ex *Executor) runGroup(n *ast.Node) (int, Flow, error) {
	restore, err := ex.applyRedirects(n.Redirs)
	if err != nil {
		fmt.Fprintf(ex.stderr, "sush: %v\n", err)
		return 1, Flow{}, nil
	}
	defer restore()

	if n.Left == nil {
		return ex.Run(n.Body)
	}
	status, flow, err := ex.Run(n.Left)
	if err != nil || flow.Kind != FlowNone {
		return status, flow, err
	}
	if ex.checkErrExit(n.Left, status) {
		return status, Flow{Kind: FlowExit, Status: status}, nil
	}
	if n.Body == nil {
		return status, flow, err
	}
	return ex.Run(n.Body)
}

// checkErrExit implements `set -e` (spec.md §4.8): a non-zero status
// from a simple command outside a condition context exits the shell.
// Compound groups only ever reach here via their last component's
// status, which is what spec.md means by "inherit this only by
// delegation".
func (ex *Executor) checkErrExit(n *ast.Node, status int) bool {
	return ex.sh.ErrExit() && status != 0 && n.Kind == ast.KSimple && len(n.Words) > 0
}

func (ex *Executor) runSubshell(n *ast.Node) (int, Flow, error) {
	sub := ex.clone()
	status, flow, err := sub.Run(n.Body)
	if flow.Kind == FlowExit {
		return flow.Status, Flow{}, err
	}
	return status, Flow{}, err
}

// runBackground implements `cmd &`, setting $! to the new job's
// job-table id: n runs on a cloned Shell without blocking the
// caller, exactly the same variable isolation a subshell gets, plus a
// job-table entry WaitJob/`wait` can block on. The statement itself
// reports success immediately; n's own eventual status only shows up
// through `wait`.
func (ex *Executor) runBackground(n *ast.Node) (int, Flow, error) {
	sub := ex.clone()
	proc := &Proc{done: make(chan struct{})}
	job := ex.addJob([]*Proc{proc}, 0, nodeSourceText(n), false)
	ex.sh.SetLastBackgroundPID(job.ID)
	go func() {
		status, flow, _ := sub.dispatch(n)
		if flow.Kind == FlowExit || flow.Kind == FlowReturn {
			status = flow.Status
		}
		proc.Status = status
		proc.State = ProcDone
		job.State = JobDone
		close(proc.done)
	}()
	return 0, Flow{}, nil
}

func nodeSourceText(n *ast.Node) string {
	if n.Kind != ast.KSimple {
		return "(compound command)"
	}
	words := make([]string, len(n.Words))
	for i, w := range n.Words {
		words[i] = w.Raw
	}
	return strings.Join(words, " ")
}

// ---- and/or chains -------------------------------------------------------

func (ex *Executor) runAndOr(n *ast.Node) (int, Flow, error) {
	status, flow, err := ex.Run(n.Left)
	if err != nil || flow.Kind != FlowNone {
		return status, flow, err
	}
	for i, op := range n.Ops {
		run := (op == token.AndIf && status == 0) || (op == token.OrIf && status != 0)
		if !run {
			continue
		}
		status, flow, err = ex.Run(n.Rest[i])
		if err != nil || flow.Kind != FlowNone {
			return status, flow, err
		}
	}
	return status, flow, err
}

// ---- pipelines ------------------------------------------------------------

type pipelineStage struct {
	node   *ast.Node
	stdin  *os.File
	stdout *os.File
}

func (ex *Executor) runPipeline(n *ast.Node) (int, Flow, error) {
	if len(n.Commands) == 1 {
		status, flow, err := ex.Run(n.Commands[0])
		if n.Negate {
			status = negateStatus(status)
		}
		return status, flow, err
	}

	stages := make([]pipelineStage, len(n.Commands))
	var prevRead *os.File
	for i, cmdNode := range n.Commands {
		var w *os.File
		if i != len(n.Commands)-1 {
			r, pw, err := os.Pipe()
			if err != nil {
				fmt.Fprintf(ex.stderr, "sush: pipe: %v\n", err)
				return 1, Flow{}, nil
			}
			w = pw
			stages[i] = pipelineStage{node: cmdNode, stdin: prevRead, stdout: w}
			prevRead = r
			continue
		}
		stages[i] = pipelineStage{node: cmdNode, stdin: prevRead, stdout: nil}
	}

	statuses := make([]int, len(stages))
	flows := make([]Flow, len(stages))
	var wg sync.WaitGroup
	for i, st := range stages {
		wg.Add(1)
		go func(i int, st pipelineStage) {
			defer wg.Done()
			sub := ex.clone()
			if st.stdin != nil {
				sub.stdin = st.stdin
			}
			if st.stdout != nil {
				sub.stdout = st.stdout
			}
			status, flow, _ := sub.Run(st.node)
			statuses[i] = status
			flows[i] = flow
			if st.stdin != nil {
				st.stdin.Close()
			}
			if st.stdout != nil {
				st.stdout.Close()
			}
		}(i, st)
	}
	wg.Wait()

	last := statuses[len(statuses)-1]
	status := last
	if ex.sh.Pipefail() {
		status = 0
		for _, s := range statuses {
			if s != 0 {
				status = s
			}
		}
	}
	if n.Negate {
		status = negateStatus(status)
	}
	// A Return/Exit/Break/Continue raised inside a pipeline stage ran
	// against a cloned Shell and can't unwind the parent the way it
	// would in-process in bash (each stage is fork-isolated); only
	// its exit status crosses back, matching subshell semantics.
	return status, Flow{}, nil
}

// ---- if / while / until / for --------------------------------------------

func (ex *Executor) runIf(n *ast.Node) (int, Flow, error) {
	for _, arm := range n.IfArms {
		status, flow, err := ex.Run(arm.Cond)
		if err != nil || flow.Kind != FlowNone {
			return status, flow, err
		}
		if status == 0 {
			return ex.Run(arm.Body)
		}
	}
	if n.ElseArm != nil {
		return ex.Run(n.ElseArm)
	}
	return 0, Flow{}, nil
}

func (ex *Executor) runLoop(n *ast.Node, until bool) (int, Flow, error) {
	status := 0
	for {
		condStatus, flow, err := ex.Run(n.Cond)
		if err != nil || flow.Kind != FlowNone {
			return condStatus, flow, err
		}
		stop := condStatus != 0
		if until {
			stop = condStatus == 0
		}
		if stop {
			return status, Flow{}, nil
		}
		bodyStatus, bodyFlow, err := ex.Run(n.Loop)
		status = bodyStatus
		if err != nil {
			return status, Flow{}, err
		}
		cont, done, out, ferr := ex.handleLoopFlow(bodyFlow)
		if ferr != nil || done {
			return status, out, ferr
		}
		if !cont {
			return status, Flow{}, nil
		}
	}
}

// handleLoopFlow interprets a loop body's Flow: (continueLoop,
// propagate, outFlow, err). continueLoop means "keep iterating";
// propagate means "stop and return outFlow to our own caller".
func (ex *Executor) handleLoopFlow(flow Flow) (continueLoop, propagate bool, out Flow, err error) {
	switch flow.Kind {
	case FlowNone:
		return true, false, Flow{}, nil
	case FlowBreak:
		if flow.Levels <= 1 {
			return false, false, Flow{}, nil
		}
		return false, true, Flow{Kind: FlowBreak, Levels: flow.Levels - 1}, nil
	case FlowContinue:
		if flow.Levels <= 1 {
			return true, false, Flow{}, nil
		}
		return false, true, Flow{Kind: FlowContinue, Levels: flow.Levels - 1}, nil
	default: // FlowReturn, FlowExit
		return false, true, flow, nil
	}
}

func (ex *Executor) runFor(n *ast.Node) (int, Flow, error) {
	var values []string
	if n.HasIn {
		vals, err := ex.expander.ExpandWords(n.InWords)
		if err != nil {
			fmt.Fprintf(ex.stderr, "sush: %v\n", err)
			return 1, Flow{}, nil
		}
		values = vals
	} else {
		values = ex.sh.Positional()
	}

	status := 0
	for _, v := range values {
		ex.sh.SetVar(n.VarName, v, false)
		bodyStatus, bodyFlow, err := ex.Run(n.Loop)
		status = bodyStatus
		if err != nil {
			return status, Flow{}, err
		}
		cont, done, out, ferr := ex.handleLoopFlow(bodyFlow)
		if ferr != nil || done {
			return status, out, ferr
		}
		if !cont {
			break
		}
	}
	return status, Flow{}, nil
}

func (ex *Executor) runForArith(n *ast.Node) (int, Flow, error) {
	if strings.TrimSpace(n.Init) != "" {
		if _, err := arith.Eval(n.Init, ex.sh); err != nil {
			fmt.Fprintf(ex.stderr, "sush: %v\n", err)
			return 1, Flow{}, nil
		}
	}
	status := 0
	for {
		cont := true
		if strings.TrimSpace(n.ArithCond) != "" {
			v, err := arith.Eval(n.ArithCond, ex.sh)
			if err != nil {
				fmt.Fprintf(ex.stderr, "sush: %v\n", err)
				return 1, Flow{}, nil
			}
			cont = v.Truthy()
		}
		if !cont {
			return status, Flow{}, nil
		}
		bodyStatus, bodyFlow, err := ex.Run(n.Loop)
		status = bodyStatus
		if err != nil {
			return status, Flow{}, err
		}
		goOn, done, out, ferr := ex.handleLoopFlow(bodyFlow)
		if ferr != nil || done {
			return status, out, ferr
		}
		if !goOn {
			return status, Flow{}, nil
		}
		if strings.TrimSpace(n.Step) != "" {
			if _, err := arith.Eval(n.Step, ex.sh); err != nil {
				fmt.Fprintf(ex.stderr, "sush: %v\n", err)
				return 1, Flow{}, nil
			}
		}
	}
}

// ---- case -----------------------------------------------------------------

func (ex *Executor) runCase(n *ast.Node) (int, Flow, error) {
	subject, err := ex.expander.ExpandScalar(n.Subject)
	if err != nil {
		fmt.Fprintf(ex.stderr, "sush: %v\n", err)
		return 1, Flow{}, nil
	}

	forceNext := false
	for i := 0; i < len(n.Items); i++ {
		item := n.Items[i]
		matched := forceNext
		forceNext = false
		if !matched {
			for _, pat := range item.Patterns {
				patText, err := ex.expander.ExpandScalar(pat)
				if err != nil {
					fmt.Fprintf(ex.stderr, "sush: %v\n", err)
					return 1, Flow{}, nil
				}
				if glob.Match(subject, patText, ex.sh.Extglob(), false) {
					matched = true
					break
				}
			}
		}
		if !matched {
			continue
		}
		status, flow, err := ex.Run(item.Body)
		if err != nil || flow.Kind != FlowNone {
			return status, flow, err
		}
		switch item.Terminator {
		case token.DSemi:
			return status, Flow{}, nil
		case token.SemiAnd:
			forceNext = true
		case token.DSemiAnd:
			// continue scanning later patterns normally
		default:
			return status, Flow{}, nil
		}
	}
	return 0, Flow{}, nil
}

// ---- (( )) ------------------------------------------------------------------

func (ex *Executor) runArithCommand(n *ast.Node) (int, Flow, error) {
	v, err := arith.Eval(n.ArithText, ex.sh)
	if err != nil {
		fmt.Fprintf(ex.stderr, "sush: %v\n", err)
		return 1, Flow{}, nil
	}
	if v.Truthy() {
		return 0, Flow{}, nil
	}
	return 1, Flow{}, nil
}

// ---- simple commands --------------------------------------------------------

func (ex *Executor) runSimple(n *ast.Node) (int, Flow, error) {
	restore, err := ex.applyRedirects(n.Redirs)
	if err != nil {
		fmt.Fprintf(ex.stderr, "sush: %v\n", err)
		return 1, Flow{}, nil
	}
	defer restore()

	overrides := map[string]string{}
	for _, a := range n.Assignments {
		val, err := ex.expander.ExpandScalar(a.Value)
		if err != nil {
			fmt.Fprintf(ex.stderr, "sush: %v\n", err)
			return 1, Flow{}, nil
		}
		overrides[a.Name] = val
	}

	words, err := ex.expander.ExpandWords(n.Words)
	if err != nil {
		fmt.Fprintf(ex.stderr, "sush: %v\n", err)
		return 1, Flow{}, nil
	}

	if len(words) == 0 {
		// Assignment-only line: persists directly, no child environment.
		for name, val := range overrides {
			ex.sh.SetVar(name, val, false)
		}
		return 0, Flow{}, nil
	}

	name, argv := words[0], words

	if flow, handled := ex.runControlWord(name, argv); handled {
		return 0, flow, nil
	}

	if fn, ok := ex.sh.LookupFunction(name); ok {
		return ex.callFunction(fn, argv)
	}

	if b, ok := ex.builtins[name]; ok {
		return ex.callBuiltin(b, argv, overrides), Flow{}, nil
	}

	return ex.runExternal(name, argv, overrides), Flow{}, nil
}

// runControlWord special-cases `return`/`break`/`continue`/`exit`:
// each needs to signal a Flow a plain builtin.Builtin can't express.
func (ex *Executor) runControlWord(name string, argv []string) (Flow, bool) {
	switch name {
	case "return":
		return Flow{Kind: FlowReturn, Status: builtin.ParseReturnStatus(argv, ex.sh.LastStatus())}, true
	case "break":
		return Flow{Kind: FlowBreak, Levels: maxInt(builtin.ParseReturnStatus(argv, 1), 1)}, true
	case "continue":
		return Flow{Kind: FlowContinue, Levels: maxInt(builtin.ParseReturnStatus(argv, 1), 1)}, true
	case "exit":
		return Flow{Kind: FlowExit, Status: builtin.ParseReturnStatus(argv, ex.sh.LastStatus())}, true
	}
	return Flow{}, false
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// callFunction invokes a function body in a new local scope with the
// supplied argv as the new positional parameters (spec.md §4.8); a
// `return` inside the body unwinds only to here.
func (ex *Executor) callFunction(fn *state.Function, argv []string) (int, Flow, error) {
	savedPositional := ex.sh.Positional()
	ex.sh.PushScope()
	ex.sh.SetPositional(argv[1:])
	status, flow, err := ex.Run(fn.Body)
	ex.sh.PopScope()
	ex.sh.SetPositional(savedPositional)
	if err != nil {
		return status, Flow{}, err
	}
	switch flow.Kind {
	case FlowReturn:
		return flow.Status, Flow{}, nil
	case FlowExit:
		return status, flow, nil
	default:
		return status, Flow{}, nil
	}
}

// callBuiltin runs a builtin in-process against the Executor's
// current stdio, with any command-prefix assignments set in the
// process environment (os.Setenv) for the duration of the call and
// restored afterwards. Builtins that read variables through ctx.Shell,
// such as `cd`'s HOME/OLDPWD lookups, do not see them.
func (ex *Executor) callBuiltin(b builtin.Builtin, argv []string, overrides map[string]string) int {
	var restores []func()
	for name, val := range overrides {
		old, had := os.LookupEnv(name)
		os.Setenv(name, val)
		if had {
			restores = append(restores, func() { os.Setenv(name, old) })
		} else {
			restores = append(restores, func() { os.Unsetenv(name) })
		}
	}
	defer func() {
		for _, r := range restores {
			r()
		}
	}()
	ctx := &builtin.Context{
		Shell:  ex.sh,
		Stdin:  ex.stdin,
		Stdout: ex.stdout,
		Stderr: ex.stderr,
		Jobs:   ex,
	}
	return b(ctx, argv)
}

// runExternal forks and execs argv[0] (spec.md §4.8), reporting
// 127/126 for not-found/not-executable and 128+N for signal death
// (spec.md §7 error taxonomy items 5, 6).
func (ex *Executor) runExternal(name string, argv []string, overrides map[string]string) int {
	path, err := osexec.LookPath(name)
	if err != nil {
		fmt.Fprintf(ex.stderr, "sush: %s: command not found\n", name)
		return 127
	}

	cmd := &osexec.Cmd{
		Path:   path,
		Args:   argv,
		Stdin:  ex.stdin,
		Stdout: ex.stdout,
		Stderr: ex.stderr,
		Env:    mergeEnv(ex.sh.Environ(), overrides),
	}
	// os/exec maps ExtraFiles[i] to the child's fd 3+i contiguously; a
	// gap (fd 5 redirected but not 3/4) has no well-defined mapping,
	// so only a contiguous run starting at 3 is passed through.
	for fd := 3; ; fd++ {
		f, ok := ex.extra[fd]
		if !ok {
			break
		}
		cmd.ExtraFiles = append(cmd.ExtraFiles, f)
	}

	if err := cmd.Start(); err != nil {
		if os.IsPermission(err) {
			fmt.Fprintf(ex.stderr, "sush: %s: permission denied\n", name)
			return 126
		}
		fmt.Fprintf(ex.stderr, "sush: %s: %v\n", name, err)
		return 126
	}
	proc := &Proc{PID: cmd.Process.Pid, cmd: cmd, done: make(chan struct{})}
	job := ex.addJob([]*Proc{proc}, cmd.Process.Pid, strings.Join(argv, " "), true)
	err = cmd.Wait()
	proc.Status = exitStatus(err)
	proc.State = ProcDone
	close(proc.done)
	job.State = JobDone
	return proc.Status
}

func mergeEnv(base []string, overrides map[string]string) []string {
	if len(overrides) == 0 {
		return base
	}
	env := append([]string(nil), base...)
	for name, val := range overrides {
		env = append(env, name+"="+val)
	}
	return env
}

func exitStatus(err error) int {
	if err == nil {
		return 0
	}
	if exitErr, ok := err.(*osexec.ExitError); ok {
		if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok {
			if ws.Signaled() {
				return 128 + int(ws.Signal())
			}
			return ws.ExitStatus()
		}
	}
	return 1
}

// ---- job table --------------------------------------------------------------

func (ex *Executor) addJob(procs []*Proc, pgid int, command string, foreground bool) *Job {
	ex.nextJobID++
	j := &Job{ID: ex.nextJobID, PGID: pgid, Procs: procs, Command: command, Foreground: foreground, State: JobRunning}
	ex.jobs = append(ex.jobs, j)
	return j
}

// WaitJob implements builtin.JobWaiter: "" waits for the
// most-recently-started job, "%N" waits for job N, a bare number
// waits for that pid (spec.md §6: "wait [pid|%job]").
func (ex *Executor) WaitJob(spec string) (int, error) {
	var job *Job
	switch {
	case spec == "":
		if len(ex.jobs) == 0 {
			return 0, nil
		}
		job = ex.jobs[len(ex.jobs)-1]
	case strings.HasPrefix(spec, "%"):
		id, err := strconv.Atoi(spec[1:])
		if err != nil {
			return 0, fmt.Errorf("%s: bad job spec", spec)
		}
		for _, j := range ex.jobs {
			if j.ID == id {
				job = j
				break
			}
		}
	default:
		pid, err := strconv.Atoi(spec)
		if err != nil {
			return 0, fmt.Errorf("%s: bad pid", spec)
		}
		for _, j := range ex.jobs {
			for _, p := range j.Procs {
				if p.PID == pid {
					job = j
					break
				}
			}
		}
	}
	if job == nil {
		return 127, fmt.Errorf("%s: no such job", spec)
	}
	for _, p := range job.Procs {
		if p.State != ProcDone && p.done != nil {
			<-p.done
		}
	}
	job.State = JobDone
	return job.Procs[len(job.Procs)-1].Status, nil
}

// ---- command substitution (expand.Runner) -----------------------------------

// RunCommandSub implements expand.Runner: a command substitution is a
// subshell (spec.md §4.8), so it runs against a cloned Shell with
// stdout captured through a pipe rather than the Executor's current
// stdout.
func (ex *Executor) RunCommandSub(src string) (string, error) {
	prog, err := parser.New(src, ex.sh.Extglob()).ParseProgram()
	if err != nil {
		return "", err
	}

	r, w, err := os.Pipe()
	if err != nil {
		return "", err
	}

	sub := ex.clone()
	sub.stdout = w

	done := make(chan struct{})
	var out []byte
	go func() {
		out, _ = io.ReadAll(r)
		close(done)
	}()

	status, flow, runErr := sub.Run(prog)
	w.Close()
	<-done
	r.Close()
	if flow.Kind == FlowExit {
		status = flow.Status
	}
	ex.sh.SetLastStatus(status)
	if runErr != nil {
		return "", runErr
	}
	return string(out), nil
}
