package core

import "testing"

func TestSerializeModelRoundTrips(t *testing.T) {
	src := `model escrow {
  part buyer {
    state waiting, paid;
    initial waiting;
    waiting -> paid [+pay];
  }
}`
	m, err := ParseModel(src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := SerializeModel(m)
	reparsed, err := ParseModel(out)
	if err != nil {
		t.Fatalf("re-parsing serialized model failed: %v\n---\n%s", err, out)
	}
	if reparsed.Name != m.Name {
		t.Fatalf("expected model name to round-trip, got %q", reparsed.Name)
	}
	buyer, ok := reparsed.Parts["buyer"]
	if !ok {
		t.Fatal("expected part buyer to survive the round trip")
	}
	if buyer.Initial != "waiting" {
		t.Fatalf("expected initial state waiting, got %s", buyer.Initial)
	}
	if len(buyer.Transitions) != 1 || buyer.Transitions[0].From != "waiting" || buyer.Transitions[0].To != "paid" {
		t.Fatalf("expected a single waiting->paid transition to survive the round trip, got %+v", buyer.Transitions)
	}
}

func TestSerializeModelRoundTripsTerminalStates(t *testing.T) {
	src := `model door {
  part door {
    state closed, open, locked;
    initial closed;
    terminal locked;
    closed -> open [+opened];
    open -> locked [+locked];
  }
}`
	m, err := ParseModel(src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := SerializeModel(m)
	reparsed, err := ParseModel(out)
	if err != nil {
		t.Fatalf("re-parsing serialized model failed: %v\n---\n%s", err, out)
	}
	if !reparsed.Parts["door"].Terminal["locked"] {
		t.Fatal("expected the terminal state to survive the round trip")
	}
}
