package state

import "testing"

func TestScopedAssignment(t *testing.T) {
	sh := New("sush")
	sh.Set("x", "1")
	if v, ok := sh.Get("x"); !ok || v != "1" {
		t.Fatalf("Get(x) = %q, %v, want 1, true", v, ok)
	}

	sh.PushScope()
	if err := sh.SetVar("x", "2", true); err != nil {
		t.Fatalf("local assignment failed: %v", err)
	}
	if v, _ := sh.Get("x"); v != "2" {
		t.Errorf("after local x=2, Get(x) = %q, want 2", v)
	}

	sh.PopScope()
	if v, _ := sh.Get("x"); v != "1" {
		t.Errorf("after PopScope, Get(x) = %q, want 1 (global unaffected by local)", v)
	}
}

func TestGlobalAssignmentWithoutLocalSkipsOuterFrames(t *testing.T) {
	sh := New("sush")
	sh.Set("g", "outer")
	sh.PushScope()
	sh.Set("g", "changed")
	if v, _ := sh.Get("g"); v != "changed" {
		t.Errorf("Get(g) = %q, want changed", v)
	}
	sh.PopScope()
	if v, _ := sh.Get("g"); v != "changed" {
		t.Errorf("after pop, Get(g) = %q, want changed (non-local assignment hit the existing global frame)", v)
	}
}

func TestReadOnly(t *testing.T) {
	sh := New("sush")
	sh.Set("r", "1")
	sh.MarkReadOnly("r")
	if err := sh.SetVar("r", "2", false); err == nil {
		t.Fatal("expected readonly violation to error")
	}
	if v, _ := sh.Get("r"); v != "1" {
		t.Errorf("Get(r) = %q, want unchanged 1", v)
	}
}

func TestExportMirroring(t *testing.T) {
	sh := New("sush")
	sh.Set("E", "value")
	sh.Export("E")
	env := sh.Environ()
	found := false
	for _, kv := range env {
		if kv == "E=value" {
			found = true
		}
	}
	if !found {
		t.Errorf("Environ() = %v, want to contain E=value", env)
	}
}

func TestPositionalParameters(t *testing.T) {
	sh := New("sush")
	sh.SetPositional([]string{"a", "b", "c"})
	if v, _ := sh.Get("#"); v != "3" {
		t.Errorf("$# = %q, want 3", v)
	}
	if v, _ := sh.Get("1"); v != "a" {
		t.Errorf("$1 = %q, want a", v)
	}
	if v, _ := sh.Get("@"); v != "a b c" {
		t.Errorf("$@ = %q, want \"a b c\"", v)
	}
}

func TestLastStatusAndBackgroundPID(t *testing.T) {
	sh := New("sush")
	sh.SetLastStatus(42)
	if v, _ := sh.Get("?"); v != "42" {
		t.Errorf("$? = %q, want 42", v)
	}
	if _, ok := sh.Get("!"); ok {
		t.Error("$! should be unset before any background job runs")
	}
	sh.SetLastBackgroundPID(1234)
	if v, _ := sh.Get("!"); v != "1234" {
		t.Errorf("$! = %q, want 1234", v)
	}
}

func TestIndexedArray(t *testing.T) {
	sh := New("sush")
	sh.SetIndexed("arr", 0, "zero")
	sh.SetIndexed("arr", 2, "two")
	if v, ok := sh.GetIndexed("arr", 0); !ok || v != "zero" {
		t.Errorf("arr[0] = %q, %v, want zero, true", v, ok)
	}
	if v, ok := sh.GetIndexed("arr", 1); !ok || v != "" {
		t.Errorf("arr[1] = %q, %v, want empty-but-present", v, ok)
	}
	if _, ok := sh.GetIndexed("arr", 5); ok {
		t.Error("arr[5] should be absent")
	}
}

func TestAssociativeArray(t *testing.T) {
	sh := New("sush")
	sh.SetAssoc("m", "key", "val")
	if v, ok := sh.GetAssoc("m", "key"); !ok || v != "val" {
		t.Errorf("m[key] = %q, %v, want val, true", v, ok)
	}
	if _, ok := sh.GetAssoc("m", "missing"); ok {
		t.Error("m[missing] should be absent")
	}
}

func TestFunctionRegistry(t *testing.T) {
	sh := New("sush")
	if _, ok := sh.LookupFunction("f"); ok {
		t.Fatal("f should not be defined yet")
	}
	sh.DefineFunction("f", nil)
	if _, ok := sh.LookupFunction("f"); !ok {
		t.Fatal("f should be defined after DefineFunction")
	}
}

func TestOptionFlags(t *testing.T) {
	sh := New("sush")
	sh.SetErrExit(true)
	if v, _ := sh.Get("-"); v != "e" {
		t.Errorf("$- = %q, want e", v)
	}
}

func TestSetArg0OverridesDollarZero(t *testing.T) {
	sh := New("sush")
	if v, _ := sh.Get("0"); v != "sush" {
		t.Fatalf("$0 = %q, want sush", v)
	}
	sh.SetArg0("/path/to/script.sh")
	if v, _ := sh.Get("0"); v != "/path/to/script.sh" {
		t.Errorf("$0 = %q, want /path/to/script.sh", v)
	}
}
