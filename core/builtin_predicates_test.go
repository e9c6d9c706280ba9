package core

import "testing"

func newPathStoreWithPK(t *testing.T, path string, pk []byte) *PathStore {
	t.Helper()
	ps := NewPathStore()
	if err := ps.Set(path, TypedValue{Type: LeafPublicKey, PK: pk}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return ps
}

func TestEvalBuiltinSignedBy(t *testing.T) {
	kp, _, _ := NewKeypair()
	store := newPathStoreWithPK(t, "/owner.id", kp.Public)
	ctx := &CommitContext{Signers: map[string]bool{string(kp.Public): true}, Store: store}

	ok, err := EvalBuiltin(PredSignedBy, []string{"/owner.id"}, ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("expected signed_by to hold when the named key is among the signers")
	}

	ctx.Signers = map[string]bool{}
	ok, err = EvalBuiltin(PredSignedBy, []string{"/owner.id"}, ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("expected signed_by to fail when the named key did not sign")
	}
}

func TestEvalBuiltinAnyAllThreshold(t *testing.T) {
	kp1, _, _ := NewKeypair()
	kp2, _, _ := NewKeypair()
	kp3, _, _ := NewKeypair()
	store := NewPathStore()
	store.Set("/signers/a.id", TypedValue{Type: LeafPublicKey, PK: kp1.Public})
	store.Set("/signers/b.id", TypedValue{Type: LeafPublicKey, PK: kp2.Public})
	store.Set("/signers/c.id", TypedValue{Type: LeafPublicKey, PK: kp3.Public})

	ctx := &CommitContext{Signers: map[string]bool{string(kp1.Public): true, string(kp2.Public): true}, Store: store}

	anyOk, err := EvalBuiltin(PredAnySigned, []string{"/signers"}, ctx)
	if err != nil || !anyOk {
		t.Fatalf("expected any_signed to hold, err=%v ok=%v", err, anyOk)
	}

	allOk, err := EvalBuiltin(PredAllSigned, []string{"/signers"}, ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if allOk {
		t.Fatal("expected all_signed to fail since c did not sign")
	}

	thresholdOk, err := EvalBuiltin(PredThreshold, []string{"2", "/signers"}, ctx)
	if err != nil || !thresholdOk {
		t.Fatalf("expected threshold(2, /signers) to hold, err=%v ok=%v", err, thresholdOk)
	}

	thresholdFail, err := EvalBuiltin(PredThreshold, []string{"3", "/signers"}, ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if thresholdFail {
		t.Fatal("expected threshold(3, /signers) to fail with only 2 of 3 signed")
	}
}

func TestEvalBuiltinModifies(t *testing.T) {
	ctx := &CommitContext{WrittenPaths: []string{"/escrow/status.text"}}
	ok, err := EvalBuiltin(PredModifies, []string{"/escrow"}, ctx)
	if err != nil || !ok {
		t.Fatalf("expected modifies(/escrow) to hold, err=%v ok=%v", err, ok)
	}
	ok, err = EvalBuiltin(PredModifies, []string{"/other"}, ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("expected modifies(/other) to fail for an unrelated prefix")
	}
}

func TestEvalBuiltinBeforeAfter(t *testing.T) {
	store := NewPathStore()
	store.Set("/deadline.int", TypedValue{Type: LeafInt, Int: 1000})
	ctx := &CommitContext{Store: store, Timestamp: 500}

	before, err := EvalBuiltin(PredBefore, []string{"/deadline.int"}, ctx)
	if err != nil || !before {
		t.Fatalf("expected before(/deadline.int) to hold at timestamp 500, err=%v ok=%v", err, before)
	}
	after, err := EvalBuiltin(PredAfter, []string{"/deadline.int"}, ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if after {
		t.Fatal("expected after(/deadline.int) to fail at timestamp 500")
	}

	ctx.Timestamp = 1500
	after, err = EvalBuiltin(PredAfter, []string{"/deadline.int"}, ctx)
	if err != nil || !after {
		t.Fatalf("expected after(/deadline.int) to hold at timestamp 1500, err=%v ok=%v", err, after)
	}
}

func TestEvalBuiltinOracleAttests(t *testing.T) {
	ctx := &CommitContext{Oracles: map[string]map[string]string{
		"weather-oracle": {"rained_today": "true"},
	}}
	ok, err := EvalBuiltin(PredOracleAttests, []string{"weather-oracle", "rained_today", "true"}, ctx)
	if err != nil || !ok {
		t.Fatalf("expected oracle_attests to hold, err=%v ok=%v", err, ok)
	}
	ok, err = EvalBuiltin(PredOracleAttests, []string{"weather-oracle", "rained_today", "false"}, ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("expected oracle_attests to fail when the attested value differs")
	}
}

func TestModuleHashForPredicateResolvesRegisteredModule(t *testing.T) {
	store := NewPathStore()
	wantHash := HashBytes([]byte("fake wasm bytes"))
	store.Set("/_code/modal/escrow_ok.wasm", TypedValue{Type: LeafWASM, WASM: wantHash})

	got, err := ModuleHashForPredicate(store, "escrow_ok")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != wantHash {
		t.Fatal("expected resolved module hash to match the registered value")
	}

	if _, err := ModuleHashForPredicate(store, "not_registered"); err == nil {
		t.Fatal("expected unregistered predicate name to error")
	}
}
