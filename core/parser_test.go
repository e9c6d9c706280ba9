package core

import "testing"

const escrowModelSrc = `
model escrow {
  part buyer {
    state waiting, paid;
    initial waiting;
    waiting -> paid [+pay];
  }
  part seller {
    state waiting, shipped;
    initial waiting;
    waiting -> shipped [+ship];
  }
}
`

func TestParseModelEscrow(t *testing.T) {
	m, err := ParseModel(escrowModelSrc)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if len(m.Parts) != 2 {
		t.Fatalf("expected 2 parts, got %d", len(m.Parts))
	}
	if m.Parts["buyer"].Initial != "waiting" {
		t.Fatalf("unexpected initial state: %s", m.Parts["buyer"].Initial)
	}
}

func TestParseModelRejectsMissingInitial(t *testing.T) {
	src := `model m { part p { state a, b; a -> b [+x]; } }`
	if _, err := ParseModel(src); err == nil {
		t.Fatal("expected missing-initial model to fail to parse")
	}
}

func TestParseModelRejectsUnknownCharacter(t *testing.T) {
	src := "model m { part p { state a; initial a; } } #"
	if _, err := ParseModel(src); err == nil {
		t.Fatal("expected stray '#' to fail lexing")
	}
}

func TestParseFormulaBuiltinPredicateWithArgs(t *testing.T) {
	f, err := ParseFormula(`signed_by(/parties/buyer.id)`)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if f.Kind != FormulaAtomic || f.AtomName != "signed_by" {
		t.Fatalf("unexpected formula: %+v", f)
	}
	if len(f.AtomArgs) != 1 || f.AtomArgs[0] != "/parties/buyer.id" {
		t.Fatalf("unexpected args: %v", f.AtomArgs)
	}
}

func TestParseFormulaDiamondAndBox(t *testing.T) {
	f, err := ParseFormula(`<+pay>true and [+pay]false`)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if f.Kind != FormulaAnd {
		t.Fatalf("expected top-level and, got %v", f.Kind)
	}
	if f.Left.Kind != FormulaDiamond || f.Right.Kind != FormulaBox {
		t.Fatalf("expected diamond/box children, got %v / %v", f.Left.Kind, f.Right.Kind)
	}
}

func TestParseFormulaMuBindsVariable(t *testing.T) {
	f, err := ParseFormula(`mu X. done or <>X`)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if f.Kind != FormulaMu || f.BoundVar != "X" {
		t.Fatalf("unexpected formula: %+v", f)
	}
	if f.Body.Right.Kind != FormulaDiamond || f.Body.Right.Sub.Kind != FormulaVar {
		t.Fatalf("expected <>X to reference the bound variable, got %+v", f.Body.Right)
	}
}

func TestParseFormulaBareIdentOutsideScopeIsAtomic(t *testing.T) {
	// An identifier with no enclosing mu/nu binding it is an atomic
	// proposition, never a dangling fixed-point variable reference — the
	// parser can only ever produce a FormulaVar node inside a bound scope.
	f, err := ParseFormula(`X`)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if f.Kind != FormulaAtomic || f.AtomName != "X" {
		t.Fatalf("expected atomic proposition X, got %+v", f)
	}
}

func TestParseFormulaUntilOperator(t *testing.T) {
	f, err := ParseFormula(`pending until settled`)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if f.Kind != FormulaMu {
		t.Fatal("expected until to desugar to a least fixed point")
	}
}
