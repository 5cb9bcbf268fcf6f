// Package state implements the shell's variable/function store
// (spec.md §4.7): a scope stack with O(1) push/pop, export mirroring
// to the process environment, indexed/associative arrays, and
// readonly/integer attribute flags.
//
// It generalizes the teacher's module-level `variables`/`aliases`
// flat maps in golash.go into a stack of frames; `export` mirroring
// follows the same `os.Setenv` pattern golash.go's main() uses for
// PATH/OLDPWD.
package state

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/sush-shell/sush/internal/ast"
)

// Var is one variable's value plus its attributes.
type Var struct {
	Value    string
	Array    []string          // indexed array elements; nil for a scalar
	Assoc    map[string]string // associative array elements; nil for a scalar
	Exported bool
	ReadOnly bool
	Integer  bool // -i attribute: assignments are re-evaluated arithmetically by the caller
}

type scope struct {
	vars map[string]*Var
}

func newScope() *scope { return &scope{vars: make(map[string]*Var)} }

// Function is a named, retained function body (spec.md §4.7:
// "Functions live in a separate flat namespace; their bodies are
// references into a retained parse tree").
type Function struct {
	Name string
	Body *ast.Node
}

// Shell holds the whole variable/function/option state for one shell
// process (and, transitively, any subshell forked from it — callers
// Clone a Shell before handing it to a forked child so mutations
// never cross the fork).
type Shell struct {
	scopes     []*scope
	funcs      map[string]*Function
	positional []string
	arg0       string

	lastStatus int
	lastBgPID  int
	shellPID   int

	optErrExit  bool
	optPipefail bool
	optExtglob  bool
	optNoexec   bool
	optXtrace   bool
}

// New creates a Shell seeded from the process environment.
func New(arg0 string) *Shell {
	sh := &Shell{
		scopes:   []*scope{newScope()},
		funcs:    make(map[string]*Function),
		shellPID: os.Getpid(),
		arg0:     arg0,
	}
	sh.seedFromEnviron()
	return sh
}

func (sh *Shell) seedFromEnviron() {
	for _, kv := range os.Environ() {
		i := strings.IndexByte(kv, '=')
		if i < 0 {
			continue
		}
		name, val := kv[:i], kv[i+1:]
		sh.scopes[0].vars[name] = &Var{Value: val, Exported: true}
	}
}

// PushScope opens a new local frame, used when entering a function
// call (spec.md §4.7, §4.8 "invoke the body with a new local scope").
func (sh *Shell) PushScope() { sh.scopes = append(sh.scopes, newScope()) }

// PopScope discards the top local frame. It is a no-op on the global
// frame so callers don't need to track nesting depth defensively.
func (sh *Shell) PopScope() {
	if len(sh.scopes) > 1 {
		sh.scopes = sh.scopes[:len(sh.scopes)-1]
	}
}

// Depth reports the current scope stack depth (1 at global level).
func (sh *Shell) Depth() int { return len(sh.scopes) }

// Get implements arith.Vars and satisfies general parameter-expansion
// reads: special parameters first, then a top-down frame walk.
func (sh *Shell) Get(name string) (string, bool) {
	if v, ok := sh.specialVar(name); ok {
		return v, true
	}
	for i := len(sh.scopes) - 1; i >= 0; i-- {
		if v, ok := sh.scopes[i].vars[name]; ok {
			return v.Value, true
		}
	}
	return "", false
}

// LookupVar returns the full Var record (attributes included), or
// nil if name is unset.
func (sh *Shell) LookupVar(name string) *Var {
	for i := len(sh.scopes) - 1; i >= 0; i-- {
		if v, ok := sh.scopes[i].vars[name]; ok {
			return v
		}
	}
	return nil
}

// Set implements arith.Vars: assignment without `local` writes to
// the frame already holding name (walking from the top), or the
// global frame if no such frame exists (spec.md §4.7). Errors from a
// readonly violation are swallowed here since arith.Vars.Set has no
// error return; callers that need the error should use SetVar.
func (sh *Shell) Set(name, value string) { _ = sh.SetVar(name, value, false) }

// SetVar assigns name=value. If local is true the assignment always
// targets the top frame (the `local` builtin); otherwise it targets
// whichever frame already holds name, walking from the top, falling
// back to the global frame.
func (sh *Shell) SetVar(name, value string, local bool) error {
	if local {
		top := sh.scopes[len(sh.scopes)-1]
		v, ok := top.vars[name]
		if !ok {
			top.vars[name] = &Var{Value: value}
			return nil
		}
		if v.ReadOnly {
			return readonlyErr(name)
		}
		v.Value = value
		return nil
	}
	for i := len(sh.scopes) - 1; i >= 1; i-- {
		if v, ok := sh.scopes[i].vars[name]; ok {
			if v.ReadOnly {
				return readonlyErr(name)
			}
			v.Value = value
			sh.mirrorExport(name, v)
			return nil
		}
	}
	g := sh.scopes[0]
	v, ok := g.vars[name]
	if !ok {
		v = &Var{}
		g.vars[name] = v
	} else if v.ReadOnly {
		return readonlyErr(name)
	}
	v.Value = value
	sh.mirrorExport(name, v)
	return nil
}

func readonlyErr(name string) error {
	return fmt.Errorf("sush: %s: readonly variable", name)
}

// Unset removes name from whichever frame holds it.
func (sh *Shell) Unset(name string) {
	for i := len(sh.scopes) - 1; i >= 0; i-- {
		if _, ok := sh.scopes[i].vars[name]; ok {
			delete(sh.scopes[i].vars, name)
			os.Unsetenv(name)
			return
		}
	}
}

// Export marks name exported, creating it (empty) if unset, and
// mirrors the current value into the process environment.
func (sh *Shell) Export(name string) {
	v := sh.LookupVar(name)
	if v == nil {
		v = &Var{}
		sh.scopes[0].vars[name] = v
	}
	v.Exported = true
	sh.mirrorExport(name, v)
}

func (sh *Shell) mirrorExport(name string, v *Var) {
	if v.Exported {
		os.Setenv(name, v.Value)
	}
}

// MarkReadOnly sets the readonly attribute on an existing or new
// variable.
func (sh *Shell) MarkReadOnly(name string) {
	v := sh.LookupVar(name)
	if v == nil {
		v = &Var{}
		sh.scopes[0].vars[name] = v
	}
	v.ReadOnly = true
}

// MarkInteger sets the -i attribute (spec.md §4.7's `local` surface).
func (sh *Shell) MarkInteger(name string) {
	v := sh.LookupVar(name)
	if v == nil {
		v = &Var{}
		sh.scopes[0].vars[name] = v
	}
	v.Integer = true
}

// Environ returns the environment block to pass to a forked child:
// every exported variable as "NAME=value".
func (sh *Shell) Environ() []string {
	seen := make(map[string]bool)
	var env []string
	for i := len(sh.scopes) - 1; i >= 0; i-- {
		for name, v := range sh.scopes[i].vars {
			if seen[name] || !v.Exported {
				continue
			}
			seen[name] = true
			env = append(env, name+"="+v.Value)
		}
	}
	return env
}

// ---- arrays ---------------------------------------------------------

// SetIndexed assigns arr[idx]=value, extending the array as needed.
func (sh *Shell) SetIndexed(name string, idx int, value string) {
	v := sh.LookupVar(name)
	if v == nil {
		v = &Var{}
		sh.scopes[len(sh.scopes)-1].vars[name] = v
	}
	for len(v.Array) <= idx {
		v.Array = append(v.Array, "")
	}
	v.Array[idx] = value
}

// GetIndexed reads arr[idx].
func (sh *Shell) GetIndexed(name string, idx int) (string, bool) {
	v := sh.LookupVar(name)
	if v == nil || idx < 0 || idx >= len(v.Array) {
		return "", false
	}
	return v.Array[idx], true
}

// SetAssoc assigns arr[key]=value in an associative array.
func (sh *Shell) SetAssoc(name, key, value string) {
	v := sh.LookupVar(name)
	if v == nil {
		v = &Var{}
		sh.scopes[len(sh.scopes)-1].vars[name] = v
	}
	if v.Assoc == nil {
		v.Assoc = make(map[string]string)
	}
	v.Assoc[key] = value
}

// GetAssoc reads arr[key] from an associative array.
func (sh *Shell) GetAssoc(name, key string) (string, bool) {
	v := sh.LookupVar(name)
	if v == nil || v.Assoc == nil {
		return "", false
	}
	val, ok := v.Assoc[key]
	return val, ok
}

// ArrayAll returns every element of an indexed array, or nil, false
// if name is unset or holds a scalar (used by expand.Engine for
// ${A[@]}/${A[*]}).
func (sh *Shell) ArrayAll(name string) ([]string, bool) {
	v := sh.LookupVar(name)
	if v == nil || v.Array == nil {
		return nil, false
	}
	return v.Array, true
}

// Clone returns a deep copy of the variable/option state for use by
// a subshell `( … )`, a pipeline stage, or command substitution —
// none of which may let variable changes leak back to the parent
// (spec.md §4.8: "any variable changes die with the child"). Function
// bodies are shared by reference, not copied: they're read-only
// pointers into the retained parse tree.
func (sh *Shell) Clone() *Shell {
	clone := &Shell{
		funcs:       sh.funcs,
		positional:  append([]string(nil), sh.positional...),
		arg0:        sh.arg0,
		lastStatus:  sh.lastStatus,
		lastBgPID:   sh.lastBgPID,
		shellPID:    sh.shellPID,
		optErrExit:  sh.optErrExit,
		optPipefail: sh.optPipefail,
		optExtglob:  sh.optExtglob,
		optNoexec:   sh.optNoexec,
		optXtrace:   sh.optXtrace,
	}
	for _, s := range sh.scopes {
		ns := newScope()
		for name, v := range s.vars {
			cp := *v
			cp.Array = append([]string(nil), v.Array...)
			if v.Assoc != nil {
				cp.Assoc = make(map[string]string, len(v.Assoc))
				for k, val := range v.Assoc {
					cp.Assoc[k] = val
				}
			}
			ns.vars[name] = &cp
		}
		clone.scopes = append(clone.scopes, ns)
	}
	return clone
}

// ---- functions --------------------------------------------------------

// DefineFunction registers or replaces a function definition.
func (sh *Shell) DefineFunction(name string, body *ast.Node) {
	sh.funcs[name] = &Function{Name: name, Body: body}
}

// LookupFunction returns the function named name, if defined.
func (sh *Shell) LookupFunction(name string) (*Function, bool) {
	f, ok := sh.funcs[name]
	return f, ok
}

// ---- positional parameters and special variables ----------------------

// SetPositional replaces $1.. (and $# / $@ / $*) with args.
func (sh *Shell) SetPositional(args []string) { sh.positional = args }

// SetArg0 replaces $0 — used when a script or `-c command_name` gives
// the running shell a name other than the one state.New was built
// with (spec.md §6: "$0 (script/function name)").
func (sh *Shell) SetArg0(name string) { sh.arg0 = name }

// Positional returns the current positional parameter list.
func (sh *Shell) Positional() []string { return sh.positional }

// LastStatus returns $?.
func (sh *Shell) LastStatus() int { return sh.lastStatus }

// SetLastStatus records the most recently completed command's status.
func (sh *Shell) SetLastStatus(n int) { sh.lastStatus = n }

// LastBackgroundPID returns $!.
func (sh *Shell) LastBackgroundPID() int { return sh.lastBgPID }

// SetLastBackgroundPID records $! after starting a background job.
func (sh *Shell) SetLastBackgroundPID(pid int) { sh.lastBgPID = pid }

// ErrExit / Pipefail / Extglob / Noexec / Xtrace are the shell option
// flags spec.md's `set`/`shopt` surface (§4.8, §6) manipulates.
func (sh *Shell) ErrExit() bool      { return sh.optErrExit }
func (sh *Shell) SetErrExit(v bool)  { sh.optErrExit = v }
func (sh *Shell) Pipefail() bool     { return sh.optPipefail }
func (sh *Shell) SetPipefail(v bool) { sh.optPipefail = v }
func (sh *Shell) Extglob() bool      { return sh.optExtglob }
func (sh *Shell) SetExtglob(v bool)  { sh.optExtglob = v }
func (sh *Shell) Noexec() bool       { return sh.optNoexec }
func (sh *Shell) SetNoexec(v bool)   { sh.optNoexec = v }
func (sh *Shell) Xtrace() bool       { return sh.optXtrace }
func (sh *Shell) SetXtrace(v bool)   { sh.optXtrace = v }

// OptionFlags renders the current option set as `$-`'s letter string.
func (sh *Shell) OptionFlags() string {
	var b strings.Builder
	if sh.optErrExit {
		b.WriteByte('e')
	}
	if sh.optXtrace {
		b.WriteByte('x')
	}
	if sh.optNoexec {
		b.WriteByte('n')
	}
	return b.String()
}

func (sh *Shell) specialVar(name string) (string, bool) {
	switch name {
	case "?":
		return strconv.Itoa(sh.lastStatus), true
	case "$":
		return strconv.Itoa(sh.shellPID), true
	case "!":
		if sh.lastBgPID == 0 {
			return "", false
		}
		return strconv.Itoa(sh.lastBgPID), true
	case "#":
		return strconv.Itoa(len(sh.positional)), true
	case "@", "*":
		return strings.Join(sh.positional, " "), true
	case "-":
		return sh.OptionFlags(), true
	case "0":
		return sh.arg0, true
	default:
		if n, err := strconv.Atoi(name); err == nil && n >= 1 {
			if n-1 < len(sh.positional) {
				return sh.positional[n-1], true
			}
			return "", true
		}
		return "", false
	}
}
