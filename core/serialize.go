package core

// Canonical text serialization for models and formulas (spec §8, testable
// property: "serialize(parse(text)) round-trips up to whitespace and
// comments"). Deliberately produces a fixed, deterministic layout rather
// than attempting to preserve the source's original formatting.

import (
	"fmt"
	"sort"
	"strings"
)

// SerializeModel renders m back into `model NAME { ... }` source text.
func SerializeModel(m *Model) string {
	var b strings.Builder
	fmt.Fprintf(&b, "model %s {\n", m.Name)
	names := make([]string, 0, len(m.Parts))
	for n := range m.Parts {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, name := range names {
		serializePart(&b, m.Parts[name])
	}
	b.WriteString("}\n")
	return b.String()
}

func serializePart(b *strings.Builder, p *Part) {
	fmt.Fprintf(b, "  part %s {\n", p.Name)
	if len(p.States) > 0 {
		states := make([]string, len(p.States))
		for i, s := range p.States {
			states[i] = string(s)
		}
		fmt.Fprintf(b, "    state %s;\n", strings.Join(states, ", "))
	}
	fmt.Fprintf(b, "    initial %s;\n", p.Initial)
	if len(p.Terminal) > 0 {
		names := make([]string, 0, len(p.Terminal))
		for s := range p.Terminal {
			names = append(names, string(s))
		}
		sort.Strings(names)
		fmt.Fprintf(b, "    terminal %s;\n", strings.Join(names, ", "))
	}
	for _, t := range p.Transitions {
		fmt.Fprintf(b, "    %s -> %s [%s];\n", t.From, t.To, t.Label.String())
	}
	b.WriteString("  }\n")
}

// SerializeFormula renders f back into its textual form. Derived operators
// (always/eventually/until) are not reconstructed from their primitive
// mu/nu expansion — serialization always emits the primitive form, since
// the AST alone cannot distinguish "written as always(p)" from "written as
// nu X. p and [](X)" after parsing.
func SerializeFormula(f *Formula) string {
	return f.String()
}
