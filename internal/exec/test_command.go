package exec

import (
	"fmt"
	"os"
	"regexp"

	"github.com/sush-shell/sush/internal/arith"
	"github.com/sush-shell/sush/internal/ast"
	"github.com/sush-shell/sush/internal/glob"
	"github.com/sush-shell/sush/internal/token"
)

// TestEvaluator evaluates a `[[ … ]]` token stream to a boolean.
// spec.md §4.8 calls this "a dedicated test evaluator (out of scope
// here)"; Executor ships the default below but a caller may install
// its own via SetTestEvaluator — the parser already preserves the
// raw token slice for exactly this purpose.
type TestEvaluator func(ex *Executor, toks []token.Token) (bool, error)

// SetTestEvaluator installs a caller-supplied `[[ … ]]` evaluator.
func (ex *Executor) SetTestEvaluator(te TestEvaluator) { ex.testEval = te }

func (ex *Executor) runTestCommand(n *ast.Node) (int, Flow, error) {
	eval := ex.testEval
	if eval == nil {
		eval = defaultTestEval
	}
	ok, err := eval(ex, n.TestTokens)
	if err != nil {
		fmt.Fprintf(ex.stderr, "sush: %v\n", err)
		return 1, Flow{}, nil
	}
	if ok {
		return 0, Flow{}, nil
	}
	return 1, Flow{}, nil
}

type testParser struct {
	ex   *Executor
	toks []token.Token
	pos  int
}

func defaultTestEval(ex *Executor, toks []token.Token) (bool, error) {
	tp := &testParser{ex: ex, toks: toks}
	v, err := tp.parseOr()
	if err != nil {
		return false, err
	}
	if tp.pos != len(tp.toks) {
		return false, fmt.Errorf("[[: unexpected token %q", tp.text(tp.cur()))
	}
	return v, nil
}

func (tp *testParser) cur() token.Token {
	if tp.pos >= len(tp.toks) {
		return token.Token{Type: token.EOF}
	}
	return tp.toks[tp.pos]
}

func (tp *testParser) advance() token.Token {
	t := tp.cur()
	tp.pos++
	return t
}

// text expands a test-command word the same way a simple command's
// argv would be (spec.md §4.4's full pipeline minus splitting/glob,
// via ExpandScalar), falling back to the raw literal for operator
// tokens that carry no segments (`!`, `(`, `)` — reserved words).
func (tp *testParser) text(t token.Token) string {
	if len(t.Segments) == 0 {
		return t.Value
	}
	w := ast.Word{Raw: t.Value, Segments: t.Segments}
	s, err := tp.ex.expander.ExpandScalar(w)
	if err != nil {
		return t.Value
	}
	return s
}

func (tp *testParser) parseOr() (bool, error) {
	left, err := tp.parseAnd()
	if err != nil {
		return false, err
	}
	for tp.cur().Type == token.OrIf {
		tp.advance()
		right, err := tp.parseAnd()
		if err != nil {
			return false, err
		}
		left = left || right
	}
	return left, nil
}

func (tp *testParser) parseAnd() (bool, error) {
	left, err := tp.parseNot()
	if err != nil {
		return false, err
	}
	for tp.cur().Type == token.AndIf {
		tp.advance()
		right, err := tp.parseNot()
		if err != nil {
			return false, err
		}
		left = left && right
	}
	return left, nil
}

func (tp *testParser) parseNot() (bool, error) {
	if tp.cur().Type == token.Bang {
		tp.advance()
		v, err := tp.parseNot()
		return !v, err
	}
	return tp.parsePrimary()
}

func (tp *testParser) parsePrimary() (bool, error) {
	if tp.cur().Type == token.OpenParen {
		tp.advance()
		v, err := tp.parseOr()
		if err != nil {
			return false, err
		}
		if tp.cur().Type != token.CloseParen {
			return false, fmt.Errorf("[[: expected ) ")
		}
		tp.advance()
		return v, nil
	}

	first := tp.text(tp.advance())

	if unary, ok := unaryTestOps[first]; ok {
		if tp.cur().Type == token.EOF {
			return false, fmt.Errorf("[[: %s: argument expected", first)
		}
		operand := tp.text(tp.advance())
		return unary(operand)
	}

	if tp.cur().Type == token.Word {
		opText := tp.text(tp.cur())
		if binOp, ok := binaryTestOps[opText]; ok {
			tp.advance()
			if tp.cur().Type == token.EOF {
				return false, fmt.Errorf("[[: %s: argument expected", opText)
			}
			rhs := tp.text(tp.advance())
			return binOp(first, rhs, tp.ex)
		}
	}

	return first != "", nil
}

var unaryTestOps = map[string]func(string) (bool, error){
	"-z": func(s string) (bool, error) { return len(s) == 0, nil },
	"-n": func(s string) (bool, error) { return len(s) != 0, nil },
	"-e": func(s string) (bool, error) { _, err := os.Stat(s); return err == nil, nil },
	"-f": func(s string) (bool, error) {
		fi, err := os.Stat(s)
		return err == nil && fi.Mode().IsRegular(), nil
	},
	"-d": func(s string) (bool, error) {
		fi, err := os.Stat(s)
		return err == nil && fi.IsDir(), nil
	},
	"-s": func(s string) (bool, error) {
		fi, err := os.Stat(s)
		return err == nil && fi.Size() > 0, nil
	},
	"-L": func(s string) (bool, error) {
		fi, err := os.Lstat(s)
		return err == nil && fi.Mode()&os.ModeSymlink != 0, nil
	},
	"-r": func(s string) (bool, error) {
		f, err := os.Open(s)
		if err == nil {
			f.Close()
		}
		return err == nil, nil
	},
	"-w": func(s string) (bool, error) {
		fi, err := os.Stat(s)
		return err == nil && fi.Mode().Perm()&0200 != 0, nil
	},
	"-x": func(s string) (bool, error) {
		fi, err := os.Stat(s)
		return err == nil && fi.Mode().Perm()&0111 != 0, nil
	},
}

var binaryTestOps = map[string]func(a, b string, ex *Executor) (bool, error){
	"==": globTestOp,
	"=":  globTestOp,
	"!=": func(a, b string, ex *Executor) (bool, error) {
		ok, err := globTestOp(a, b, ex)
		return !ok, err
	},
	"<": func(a, b string, ex *Executor) (bool, error) { return a < b, nil },
	">": func(a, b string, ex *Executor) (bool, error) { return a > b, nil },
	"=~": func(a, b string, ex *Executor) (bool, error) {
		re, err := regexp.Compile(b)
		if err != nil {
			return false, err
		}
		return re.MatchString(a), nil
	},
	"-eq": arithCompareOp("=="),
	"-ne": arithCompareOp("!="),
	"-lt": arithCompareOp("<"),
	"-le": arithCompareOp("<="),
	"-gt": arithCompareOp(">"),
	"-ge": arithCompareOp(">="),
}

func globTestOp(a, b string, ex *Executor) (bool, error) {
	return glob.Match(a, b, ex.sh.Extglob(), false), nil
}

func arithCompareOp(sym string) func(a, b string, ex *Executor) (bool, error) {
	return func(a, b string, ex *Executor) (bool, error) {
		v, err := arith.Eval(fmt.Sprintf("(%s) %s (%s)", a, sym, b), ex.sh)
		if err != nil {
			return false, err
		}
		return v.Truthy(), nil
	}
}
