package core

// Closed modal mu-calculus formula AST (spec §4 C1, §5 C3). Kept separate
// from lts.go since formulas are parsed and evaluated independently of any
// single model — the same formula text is checked against whichever model
// a rule names.

import (
	"fmt"
	"strings"
)

// FormulaKind enumerates the node kinds of a modal mu-calculus formula.
type FormulaKind string

const (
	FormulaTrue      FormulaKind = "true"
	FormulaFalse     FormulaKind = "false"
	FormulaAtomic    FormulaKind = "atomic"
	FormulaAnd       FormulaKind = "and"
	FormulaOr        FormulaKind = "or"
	FormulaNot       FormulaKind = "not"
	FormulaDiamond   FormulaKind = "diamond" // <L> phi
	FormulaBox       FormulaKind = "box"     // [L] phi
	FormulaMu        FormulaKind = "mu"      // least fixed point, mu X. phi
	FormulaNu        FormulaKind = "nu"      // greatest fixed point, nu X. phi
	FormulaVar       FormulaKind = "var"     // bound fixed-point variable
)

// Formula is a node in the modal mu-calculus AST. Only the fields relevant
// to Kind are populated; the rest are zero.
type Formula struct {
	Kind FormulaKind

	// FormulaAtomic
	AtomName string
	AtomArgs []string

	// FormulaAnd / FormulaOr
	Left, Right *Formula

	// FormulaNot
	Operand *Formula

	// FormulaDiamond / FormulaBox
	Modal    Label
	Sub      *Formula

	// FormulaMu / FormulaNu
	BoundVar string
	Body     *Formula

	// FormulaVar
	VarName string
}

// True, False, Atomic, And, Or, Not, Diamond, Box, Mu, Nu, Var are
// constructor helpers used by both the parser and hand-built test fixtures.

func True() *Formula  { return &Formula{Kind: FormulaTrue} }
func False() *Formula { return &Formula{Kind: FormulaFalse} }

func Atomic(name string, args ...string) *Formula {
	return &Formula{Kind: FormulaAtomic, AtomName: name, AtomArgs: args}
}

func And(l, r *Formula) *Formula { return &Formula{Kind: FormulaAnd, Left: l, Right: r} }
func Or(l, r *Formula) *Formula  { return &Formula{Kind: FormulaOr, Left: l, Right: r} }
func Not(f *Formula) *Formula    { return &Formula{Kind: FormulaNot, Operand: f} }

func Diamond(l Label, f *Formula) *Formula { return &Formula{Kind: FormulaDiamond, Modal: l, Sub: f} }
func Box(l Label, f *Formula) *Formula     { return &Formula{Kind: FormulaBox, Modal: l, Sub: f} }

func Mu(v string, body *Formula) *Formula { return &Formula{Kind: FormulaMu, BoundVar: v, Body: body} }
func Nu(v string, body *Formula) *Formula { return &Formula{Kind: FormulaNu, BoundVar: v, Body: body} }

func Var(name string) *Formula { return &Formula{Kind: FormulaVar, VarName: name} }

// Derived operators, expressed as rewrites over the primitive AST rather
// than as their own evaluator cases, per spec §4.2 ("derived, not
// primitive"):
//
//	always(phi)      == nu X. phi && [](X)
//	eventually(phi)  == mu X. phi || <>(X)
//	phi until psi    == mu X. psi || (phi && <>(X))
//
// Here []/<> with no label pattern means "for every/some outgoing
// transition regardless of label" — an empty Label matches every
// transition (see Label.Matches).

func Always(phi *Formula) *Formula {
	return Nu("X", And(phi, Box(Label{}, Var("X"))))
}

func Eventually(phi *Formula) *Formula {
	return Mu("X", Or(phi, Diamond(Label{}, Var("X"))))
}

func Until(phi, psi *Formula) *Formula {
	return Mu("X", Or(psi, And(phi, Diamond(Label{}, Var("X")))))
}

// FreeVariables returns the set of fixed-point variable names that occur
// free (unbound) in f — used by the parser to reject formulas referencing
// an undeclared bound variable (spec §4.1 "MUST reject ... unreachable
// bound variables").
func (f *Formula) FreeVariables() map[string]bool {
	free := make(map[string]bool)
	f.collectFree(map[string]bool{}, free)
	return free
}

func (f *Formula) collectFree(bound map[string]bool, free map[string]bool) {
	if f == nil {
		return
	}
	switch f.Kind {
	case FormulaVar:
		if !bound[f.VarName] {
			free[f.VarName] = true
		}
	case FormulaAnd, FormulaOr:
		f.Left.collectFree(bound, free)
		f.Right.collectFree(bound, free)
	case FormulaNot:
		f.Operand.collectFree(bound, free)
	case FormulaDiamond, FormulaBox:
		f.Sub.collectFree(bound, free)
	case FormulaMu, FormulaNu:
		inner := make(map[string]bool, len(bound)+1)
		for k := range bound {
			inner[k] = true
		}
		inner[f.BoundVar] = true
		f.Body.collectFree(inner, free)
	}
}

// Validate checks that every fixed-point variable occurrence is bound by
// an enclosing mu/nu. It is purely a scope check: neither it nor the parser
// checks that a bound variable occurs only in positive (un-negated)
// positions, so `mu X. not X` is accepted.
func (f *Formula) Validate() error {
	free := f.FreeVariables()
	if len(free) > 0 {
		for name := range free {
			return &ParseError{Category: ParseErrorSemantic, Message: fmt.Sprintf("unbound fixed-point variable %q", name)}
		}
	}
	return nil
}

func (f *Formula) String() string {
	if f == nil {
		return ""
	}
	switch f.Kind {
	case FormulaTrue:
		return "true"
	case FormulaFalse:
		return "false"
	case FormulaAtomic:
		if len(f.AtomArgs) == 0 {
			return f.AtomName
		}
		return fmt.Sprintf("%s(%s)", f.AtomName, strings.Join(f.AtomArgs, ", "))
	case FormulaAnd:
		return fmt.Sprintf("(%s and %s)", f.Left, f.Right)
	case FormulaOr:
		return fmt.Sprintf("(%s or %s)", f.Left, f.Right)
	case FormulaNot:
		return fmt.Sprintf("not %s", f.Operand)
	case FormulaDiamond:
		return fmt.Sprintf("<%s>%s", f.Modal, f.Sub)
	case FormulaBox:
		return fmt.Sprintf("[%s]%s", f.Modal, f.Sub)
	case FormulaMu:
		return fmt.Sprintf("mu %s. %s", f.BoundVar, f.Body)
	case FormulaNu:
		return fmt.Sprintf("nu %s. %s", f.BoundVar, f.Body)
	case FormulaVar:
		return f.VarName
	default:
		return "?"
	}
}
