package core

import "testing"

// A full predicate module end-to-end run (contract_test.go's
// TestContractEvalCustomPredicateRunsRegisteredModule) uses a hand-assembled
// module, since this exercise never invokes a wasm compiler. These tests
// cover the reachable pure-Go error paths here instead: malformed module
// bytes and the base-gas-charge short-circuit.

func TestPredicateExecutorRejectsInvalidModuleBytes(t *testing.T) {
	exec, err := NewPredicateExecutor(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	store := NewPathStore()
	_, _, err = exec.Evaluate([]byte("not a wasm module"), map[string]string{"a": "b"}, store, DefaultGasLimit)
	if err == nil {
		t.Fatal("expected malformed module bytes to fail compilation")
	}
	perr, ok := err.(*PredicateError)
	if !ok || perr.Kind != PredicateInvalidModule {
		t.Fatalf("expected PredicateInvalidModule, got %v", err)
	}
}

func TestPredicateExecutorRejectsBelowBaseChargeGasLimit(t *testing.T) {
	exec, err := NewPredicateExecutor(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	store := NewPathStore()
	_, used, err := exec.Evaluate([]byte("not a wasm module"), nil, store, 10)
	if err == nil {
		t.Fatal("expected a gas limit below the flat base charge to fail immediately")
	}
	if used == 0 {
		t.Fatal("expected some gas to be recorded as used even on immediate failure")
	}
}
