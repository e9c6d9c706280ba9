package core

// Labeled transition system (LTS) AST — spec §3 "Labeled Transition System"
// and §4.1 (C1). A model is a set of named parts, each an independent
// sub-machine; the product state space is the cartesian product across
// parts. Grounded in the teacher's preference for small, explicit structs
// over embedded interfaces (core/common_structs.go) rather than a generic
// graph library — none of the example repos in the pack pull in one.

import (
	"fmt"
	"sort"
	"strings"
)

// Sign distinguishes a required-present (+p) from a required-absent (-p)
// property in a transition label.
type Sign bool

const (
	SignPositive Sign = true
	SignNegative Sign = false
)

// SignedProp is one signed property within a label, e.g. +deposit or
// -signed_by(/parties/buyer.id). Args is empty for a bare proposition.
type SignedProp struct {
	Sign Sign
	Name string
	Args []string
}

func (p SignedProp) String() string {
	sign := "+"
	if p.Sign == SignNegative {
		sign = "-"
	}
	if len(p.Args) == 0 {
		return sign + p.Name
	}
	return fmt.Sprintf("%s%s(%s)", sign, p.Name, strings.Join(p.Args, ","))
}

// Label is a finite set of signed properties. Two labels are distinct if
// their signed-prop sets differ, even between the same source and target.
type Label struct {
	Props []SignedProp
}

// Validate rejects a label asserting both +p and -p for the same name+args,
// per spec §4.1 ("MUST reject labels with contradictory signs").
func (l Label) Validate() error {
	seen := make(map[string]Sign)
	for _, p := range l.Props {
		key := p.Name + "(" + strings.Join(p.Args, ",") + ")"
		if prev, ok := seen[key]; ok && prev != p.Sign {
			return fmt.Errorf("contradictory signs for property %q", key)
		}
		seen[key] = p.Sign
	}
	return nil
}

// Matches reports whether this outgoing-transition label satisfies pattern
// L: every +p in L appears in the label, every -p in L is absent from it.
// An empty pattern matches every transition (spec §8 boundary behavior).
func (l Label) Matches(pattern Label) bool {
	present := make(map[string]bool, len(l.Props))
	for _, p := range l.Props {
		if p.Sign == SignPositive {
			present[propKey(p)] = true
		}
	}
	for _, want := range pattern.Props {
		key := propKey(want)
		if want.Sign == SignPositive {
			if !present[key] {
				return false
			}
		} else {
			if present[key] {
				return false
			}
		}
	}
	return true
}

func propKey(p SignedProp) string {
	return p.Name + "(" + strings.Join(p.Args, ",") + ")"
}

func (l Label) String() string {
	parts := make([]string, len(l.Props))
	for i, p := range l.Props {
		parts[i] = p.String()
	}
	return strings.Join(parts, ",")
}

// StateName identifies a state within a single part.
type StateName string

// Transition is an edge s -{label}-> t within a single part.
type Transition struct {
	From  StateName
	To    StateName
	Label Label
}

// Part is one orthogonal sub-machine of a Model.
type Part struct {
	Name        string
	States      []StateName
	Initial     StateName
	Terminal    map[StateName]bool
	Transitions []Transition
}

// HasState reports whether name is a declared state of the part.
func (p *Part) HasState(name StateName) bool {
	for _, s := range p.States {
		if s == name {
			return true
		}
	}
	return false
}

// Outgoing returns every transition leaving state s within this part.
func (p *Part) Outgoing(s StateName) []Transition {
	var out []Transition
	for _, t := range p.Transitions {
		if t.From == s {
			out = append(out, t)
		}
	}
	return out
}

// Model is the full LTS: a set of named, orthogonal parts (spec §3).
type Model struct {
	Name  string
	Parts map[string]*Part
}

// NewModel returns an empty, named model.
func NewModel(name string) *Model {
	return &Model{Name: name, Parts: make(map[string]*Part)}
}

// ProductState is a configuration across every part: one state name per
// part name.
type ProductState map[string]StateName

// Key returns a deterministic, comparable string for a ProductState so it
// can be used as a map key during fixed-point iteration.
func (s ProductState) Key() string {
	names := make([]string, 0, len(s))
	for part := range s {
		names = append(names, part)
	}
	sort.Strings(names)
	var b strings.Builder
	for i, part := range names {
		if i > 0 {
			b.WriteByte('|')
		}
		b.WriteString(part)
		b.WriteByte('=')
		b.WriteString(string(s[part]))
	}
	return b.String()
}

func (s ProductState) Clone() ProductState {
	out := make(ProductState, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// InitialState returns the product of each part's initial state.
func (m *Model) InitialState() ProductState {
	s := make(ProductState, len(m.Parts))
	for name, p := range m.Parts {
		s[name] = p.Initial
	}
	return s
}

// ProductTransition is one step of the product LTS: a single part fires one
// of its own transitions while every other part stays put (the standard
// interleaving semantics for orthogonal parts).
type ProductTransition struct {
	Part  string
	Label Label
	To    ProductState
}

// EnumerateStates returns every reachable product state, breadth-first from
// the initial configuration. The LTS is required finite (spec §4.3), so this
// always terminates.
func (m *Model) EnumerateStates() []ProductState {
	start := m.InitialState()
	seen := map[string]ProductState{start.Key(): start}
	queue := []ProductState{start}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, next := range m.Outgoing(cur) {
			if _, ok := seen[next.To.Key()]; !ok {
				seen[next.To.Key()] = next.To
				queue = append(queue, next.To)
			}
		}
	}
	out := make([]ProductState, 0, len(seen))
	for _, s := range seen {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out
}

// Outgoing returns every product transition leaving s: one per part's own
// outgoing transition from its current local state.
func (m *Model) Outgoing(s ProductState) []ProductTransition {
	var out []ProductTransition
	partNames := make([]string, 0, len(m.Parts))
	for name := range m.Parts {
		partNames = append(partNames, name)
	}
	sort.Strings(partNames)
	for _, name := range partNames {
		part := m.Parts[name]
		local := s[name]
		for _, t := range part.Outgoing(local) {
			next := s.Clone()
			next[name] = t.To
			out = append(out, ProductTransition{Part: name, Label: t.Label, To: next})
		}
	}
	return out
}

// Validate checks the structural invariants spec §4.1 requires of a parsed
// model: no duplicate state names within a part, no contradictory labels,
// a declared initial state per part, and transitions only between declared
// states.
func (m *Model) Validate() error {
	for pname, p := range m.Parts {
		seen := make(map[StateName]bool)
		for _, s := range p.States {
			if seen[s] {
				return fmt.Errorf("part %s: duplicate state %s", pname, s)
			}
			seen[s] = true
		}
		if !seen[p.Initial] {
			return fmt.Errorf("part %s: initial state %s not declared", pname, p.Initial)
		}
		for _, t := range p.Transitions {
			if !seen[t.From] || !seen[t.To] {
				return fmt.Errorf("part %s: transition references undeclared state", pname)
			}
			if err := t.Label.Validate(); err != nil {
				return fmt.Errorf("part %s: %w", pname, err)
			}
		}
	}
	return nil
}
