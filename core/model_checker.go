package core

// Model checker (C3, spec §5): computes the denotation of a closed modal
// mu-calculus formula over a finite model's product state space by
// structural recursion, using Tarski/Kleene fixed-point iteration for the
// mu/nu cases. Grounded in the teacher's BFT Monte-Carlo simulation style
// (core/bft_simulation.go) of iterating a fixed state set to a stable
// point, generalized here from "simulate until convergence" to "iterate a
// monotone set transformer to its least/greatest fixed point".

import "fmt"

// Checker evaluates formulas against one model. Atomic propositions are
// resolved through the caller-supplied AtomicHolds function rather than baked into the
// model, since "is +p true in state s" for a contract depends on path-store
// content evaluated by the predicate executor (C2), not on the LTS alone.
type Checker struct {
	Model *Model

	// AtomicHolds reports whether atomic proposition name(args...) holds in
	// product state s. Supplied by the caller (the rule engine wires this to
	// C2 predicate evaluation); nil AtomicHolds makes every atomic false.
	AtomicHolds func(s ProductState, name string, args []string) (bool, error)
}

// NewChecker constructs a checker for m with the given atomic-proposition
// resolver.
func NewChecker(m *Model, atomicHolds func(ProductState, string, []string) (bool, error)) *Checker {
	return &Checker{Model: m, AtomicHolds: atomicHolds}
}

// denotationEnv threads fixed-point variable bindings (sets of states)
// through the structural recursion.
type denotationEnv map[string]map[string]bool // var name -> set of state keys

// Holds reports whether formula f is true at product state s.
func (c *Checker) Holds(f *Formula, s ProductState) (bool, error) {
	states := c.Model.EnumerateStates()
	den, err := c.denotation(f, states, denotationEnv{})
	if err != nil {
		return false, err
	}
	return den[s.Key()], nil
}

// denotation computes the set of states (by key) satisfying f, given the
// full reachable state space and current fixed-point variable bindings.
func (c *Checker) denotation(f *Formula, states []ProductState, env denotationEnv) (map[string]bool, error) {
	switch f.Kind {
	case FormulaTrue:
		return allKeys(states), nil
	case FormulaFalse:
		return map[string]bool{}, nil
	case FormulaVar:
		set, ok := env[f.VarName]
		if !ok {
			return nil, fmt.Errorf("unbound variable %q during evaluation", f.VarName)
		}
		return set, nil
	case FormulaAtomic:
		if c.AtomicHolds == nil {
			return map[string]bool{}, nil
		}
		out := make(map[string]bool)
		for _, s := range states {
			ok, err := c.AtomicHolds(s, f.AtomName, f.AtomArgs)
			if err != nil {
				return nil, err
			}
			if ok {
				out[s.Key()] = true
			}
		}
		return out, nil
	case FormulaNot:
		sub, err := c.denotation(f.Operand, states, env)
		if err != nil {
			return nil, err
		}
		out := make(map[string]bool)
		for _, s := range states {
			if !sub[s.Key()] {
				out[s.Key()] = true
			}
		}
		return out, nil
	case FormulaAnd:
		l, err := c.denotation(f.Left, states, env)
		if err != nil {
			return nil, err
		}
		r, err := c.denotation(f.Right, states, env)
		if err != nil {
			return nil, err
		}
		out := make(map[string]bool)
		for k := range l {
			if r[k] {
				out[k] = true
			}
		}
		return out, nil
	case FormulaOr:
		l, err := c.denotation(f.Left, states, env)
		if err != nil {
			return nil, err
		}
		r, err := c.denotation(f.Right, states, env)
		if err != nil {
			return nil, err
		}
		out := make(map[string]bool)
		for k := range l {
			out[k] = true
		}
		for k := range r {
			out[k] = true
		}
		return out, nil
	case FormulaDiamond:
		sub, err := c.denotation(f.Sub, states, env)
		if err != nil {
			return nil, err
		}
		out := make(map[string]bool)
		for _, s := range states {
			for _, t := range c.Model.Outgoing(s) {
				if t.Label.Matches(f.Modal) && sub[t.To.Key()] {
					out[s.Key()] = true
					break
				}
			}
		}
		return out, nil
	case FormulaBox:
		sub, err := c.denotation(f.Sub, states, env)
		if err != nil {
			return nil, err
		}
		out := make(map[string]bool)
		for _, s := range states {
			ok := true
			for _, t := range c.Model.Outgoing(s) {
				if t.Label.Matches(f.Modal) && !sub[t.To.Key()] {
					ok = false
					break
				}
			}
			if ok {
				out[s.Key()] = true
			}
		}
		return out, nil
	case FormulaMu:
		return c.leastFixedPoint(f, states, env)
	case FormulaNu:
		return c.greatestFixedPoint(f, states, env)
	default:
		return nil, fmt.Errorf("unknown formula kind %q", f.Kind)
	}
}

// leastFixedPoint computes mu X. body by Kleene iteration upward from the
// empty set: X_0 = {}, X_{n+1} = [[body]]_{X:=X_n}, until X_{n+1} = X_n.
// For a monotone body the finite state space guarantees convergence within
// |states|+1 rounds. Monotonicity is not checked (the parser accepts a
// negated bound variable); for a non-monotone body the loop stops after
// |states|+1 rounds and returns the last iterate.
func (c *Checker) leastFixedPoint(f *Formula, states []ProductState, env denotationEnv) (map[string]bool, error) {
	cur := map[string]bool{}
	for i := 0; i <= len(states); i++ {
		next := cloneEnv(env)
		next[f.BoundVar] = cur
		computed, err := c.denotation(f.Body, states, next)
		if err != nil {
			return nil, err
		}
		if setsEqual(cur, computed) {
			return cur, nil
		}
		cur = computed
	}
	return cur, nil
}

// greatestFixedPoint computes nu X. body by Kleene iteration downward from
// the full state set.
func (c *Checker) greatestFixedPoint(f *Formula, states []ProductState, env denotationEnv) (map[string]bool, error) {
	cur := allKeys(states)
	for i := 0; i <= len(states); i++ {
		next := cloneEnv(env)
		next[f.BoundVar] = cur
		computed, err := c.denotation(f.Body, states, next)
		if err != nil {
			return nil, err
		}
		if setsEqual(cur, computed) {
			return cur, nil
		}
		cur = computed
	}
	return cur, nil
}

func allKeys(states []ProductState) map[string]bool {
	out := make(map[string]bool, len(states))
	for _, s := range states {
		out[s.Key()] = true
	}
	return out
}

func setsEqual(a, b map[string]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if !b[k] {
			return false
		}
	}
	return true
}

func cloneEnv(env denotationEnv) denotationEnv {
	out := make(denotationEnv, len(env)+1)
	for k, v := range env {
		out[k] = v
	}
	return out
}
