package arith

import "testing"

type fakeVars map[string]string

func (f fakeVars) Get(name string) (string, bool) { v, ok := f[name]; return v, ok }
func (f fakeVars) Set(name, value string)         { f[name] = value }

func evalInt(t *testing.T, expr string, vars fakeVars) int64 {
	t.Helper()
	if vars == nil {
		vars = fakeVars{}
	}
	v, err := Eval(expr, vars)
	if err != nil {
		t.Fatalf("Eval(%q) error: %v", expr, err)
	}
	if v.Kind != KindInt {
		t.Fatalf("Eval(%q) = %v, want Int kind", expr, v)
	}
	return v.I
}

func TestArithmeticPrecedence(t *testing.T) {
	cases := []struct {
		expr string
		want int64
	}{
		{"1 + 2 * 3", 7},
		{"(1 + 2) * 3", 9},
		{"2 ** 3 ** 2", 512}, // right-assoc: 2**(3**2)
		{"10 % 3", 1},
		{"1 << 4", 16},
		{"-1 << 4", -16},
		{"1 && 0", 0},
		{"1 || 0", 1},
		{"1 == 1 && 2 != 3", 1},
		{"5 > 3 ? 10 : 20", 10},
		{"~0", -1},
		{"!5", 0},
		{"!0", 1},
	}
	for _, c := range cases {
		if got := evalInt(t, c.expr, nil); got != c.want {
			t.Errorf("Eval(%q) = %d, want %d", c.expr, got, c.want)
		}
	}
}

func TestArithmeticBases(t *testing.T) {
	cases := []struct {
		expr string
		want int64
	}{
		{"0x1F", 31},
		{"010", 8},
		{"16#1F", 31},
		{"2#1010", 10},
	}
	for _, c := range cases {
		if got := evalInt(t, c.expr, nil); got != c.want {
			t.Errorf("Eval(%q) = %d, want %d", c.expr, got, c.want)
		}
	}
}

func TestArithmeticAssignment(t *testing.T) {
	vars := fakeVars{"x": "5"}
	got := evalInt(t, "x += 3", vars)
	if got != 8 {
		t.Errorf("x += 3 = %d, want 8", got)
	}
	if vars["x"] != "8" {
		t.Errorf("x stored as %q, want 8", vars["x"])
	}
}

func TestArithmeticIncrement(t *testing.T) {
	vars := fakeVars{"x": "5"}
	if got := evalInt(t, "x++", vars); got != 5 {
		t.Errorf("x++ returned %d, want 5 (old value)", got)
	}
	if vars["x"] != "6" {
		t.Errorf("after x++ stored x=%q, want 6", vars["x"])
	}
	if got := evalInt(t, "++x", vars); got != 7 {
		t.Errorf("++x returned %d, want 7 (new value)", got)
	}
}

func TestArithmeticDivisionByZero(t *testing.T) {
	if _, err := Eval("1 / 0", fakeVars{}); err == nil {
		t.Fatal("expected division by zero to error")
	}
	if _, err := Eval("1 % 0", fakeVars{}); err == nil {
		t.Fatal("expected modulo by zero to error")
	}
}

func TestArithmeticNegativeExponentErrors(t *testing.T) {
	if _, err := Eval("2 ** -1", fakeVars{}); err == nil {
		t.Fatal("expected negative integer exponent to error")
	}
	if _, err := Eval("2.0 ** -1", fakeVars{}); err == nil {
		t.Fatal("expected negative float exponent to error")
	}
}

func TestArithmeticNegativeShiftIsZero(t *testing.T) {
	if got := evalInt(t, "1 << -1", nil); got != 0 {
		t.Errorf("1 << -1 = %d, want 0", got)
	}
	if got := evalInt(t, "256 >> -1", nil); got != 0 {
		t.Errorf("256 >> -1 = %d, want 0", got)
	}
}

func TestArithmeticFloatPromotion(t *testing.T) {
	v, err := Eval("1 + 2.5", fakeVars{})
	if err != nil {
		t.Fatalf("Eval error: %v", err)
	}
	if v.Kind != KindFloat || v.F != 3.5 {
		t.Errorf("1 + 2.5 = %v, want Float 3.5", v)
	}
}

func TestArithmeticIntegerOnlyOpRejectsFloat(t *testing.T) {
	if _, err := Eval("1.5 & 2", fakeVars{}); err == nil {
		t.Fatal("expected integer-only operator on a float operand to error")
	}
}

func TestArithmeticVariableLookup(t *testing.T) {
	vars := fakeVars{"n": "21"}
	if got := evalInt(t, "n * 2", vars); got != 42 {
		t.Errorf("n * 2 = %d, want 42", got)
	}
}

func TestArithmeticNonNumericVariableReadsZero(t *testing.T) {
	vars := fakeVars{"s": "hello"}
	if got := evalInt(t, "s + 1", vars); got != 1 {
		t.Errorf("non-numeric variable read = %d, want 1 (0 + 1)", got)
	}
}

func TestArithmeticNonNumericLvalueIncrementErrors(t *testing.T) {
	vars := fakeVars{"s": "hello"}
	if _, err := Eval("s++", vars); err == nil {
		t.Fatal("expected ++ on a non-numeric lvalue to error")
	}
}

func TestArithmeticEmptyExpression(t *testing.T) {
	v, err := Eval("", fakeVars{})
	if err != nil {
		t.Fatalf("Eval(\"\") error: %v", err)
	}
	if v.Kind != KindInt || v.I != 0 {
		t.Errorf("Eval(\"\") = %v, want Int 0", v)
	}
}

func TestFormatOutputBase(t *testing.T) {
	s, err := Format(intVal(255), 16, true)
	if err != nil {
		t.Fatalf("Format error: %v", err)
	}
	if s != "ff" {
		t.Errorf("Format(255, base 16, compact) = %q, want %q", s, "ff")
	}
	s, err = Format(intVal(255), 16, false)
	if err != nil {
		t.Fatalf("Format error: %v", err)
	}
	if s != "16#ff" {
		t.Errorf("Format(255, base 16) = %q, want %q", s, "16#ff")
	}
}
