package core

// Recursive-descent parser for model {...} blocks and bare formula text
// (spec §4.1, §8); a `formula NAME {...}` block wrapper is not accepted,
// ParseFormula takes the formula expression itself. Produces the lts.go / formula.go AST types directly; no
// separate untyped parse tree stage, matching the teacher's preference for
// parsing straight into domain structs (core/contracts.go's CompileWASM
// path) rather than building a generic AST library.

import (
	"fmt"
	"strconv"
)

type parser struct {
	toks []token
	pos  int
	// scope is the stack of fixed-point variables bound by an enclosing
	// mu/nu, used to distinguish a bare identifier referring to a bound
	// variable from one referring to an atomic proposition.
	scope []string
}

func newParser(toks []token) *parser { return &parser{toks: toks} }

func (p *parser) cur() token { return p.toks[p.pos] }

func (p *parser) at(k tokenKind) bool { return p.cur().kind == k }

func (p *parser) atKeyword(kw string) bool {
	return p.cur().kind == tokIdent && p.cur().text == kw
}

func (p *parser) advance() token {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *parser) expect(k tokenKind, what string) (token, error) {
	if !p.at(k) {
		return token{}, p.errorf("expected %s", what)
	}
	return p.advance(), nil
}

func (p *parser) expectKeyword(kw string) error {
	if !p.atKeyword(kw) {
		return p.errorf("expected keyword %q", kw)
	}
	p.advance()
	return nil
}

func (p *parser) errorf(format string, args ...interface{}) error {
	return &ParseError{Category: ParseErrorSyntatic, Span: p.cur().span, Message: fmt.Sprintf(format, args...)}
}

func (p *parser) isBound(name string) bool {
	for _, v := range p.scope {
		if v == name {
			return true
		}
	}
	return false
}

//---------------------------------------------------------------------
// Model grammar
//---------------------------------------------------------------------

// ParseModel parses a single `model NAME { part ... }` block.
func ParseModel(src string) (*Model, error) {
	toks, err := newLexer(src).tokenize()
	if err != nil {
		return nil, err
	}
	p := newParser(toks)
	m, err := p.parseModel()
	if err != nil {
		return nil, err
	}
	if !p.at(tokEOF) {
		return nil, p.errorf("unexpected trailing input after model block")
	}
	if err := m.Validate(); err != nil {
		return nil, &ParseError{Category: ParseErrorSemantic, Span: p.cur().span, Message: err.Error()}
	}
	return m, nil
}

func (p *parser) parseModel() (*Model, error) {
	if err := p.expectKeyword("model"); err != nil {
		return nil, err
	}
	nameTok, err := p.expect(tokIdent, "model name")
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tokLBrace, "'{'"); err != nil {
		return nil, err
	}
	m := NewModel(nameTok.text)
	for p.atKeyword("part") {
		part, err := p.parsePart()
		if err != nil {
			return nil, err
		}
		if _, dup := m.Parts[part.Name]; dup {
			return nil, p.errorf("duplicate part %q", part.Name)
		}
		m.Parts[part.Name] = part
	}
	if _, err := p.expect(tokRBrace, "'}'"); err != nil {
		return nil, err
	}
	return m, nil
}

func (p *parser) parsePart() (*Part, error) {
	p.advance() // 'part'
	nameTok, err := p.expect(tokIdent, "part name")
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tokLBrace, "'{'"); err != nil {
		return nil, err
	}
	part := &Part{Name: nameTok.text, Terminal: map[StateName]bool{}}
	haveInitial := false
	for !p.at(tokRBrace) {
		switch {
		case p.atKeyword("state"):
			p.advance()
			for {
				st, err := p.expect(tokIdent, "state name")
				if err != nil {
					return nil, err
				}
				part.States = append(part.States, StateName(st.text))
				if p.at(tokComma) {
					p.advance()
					continue
				}
				break
			}
			if _, err := p.expect(tokSemi, "';'"); err != nil {
				return nil, err
			}
		case p.atKeyword("initial"):
			p.advance()
			st, err := p.expect(tokIdent, "initial state name")
			if err != nil {
				return nil, err
			}
			part.Initial = StateName(st.text)
			haveInitial = true
			if _, err := p.expect(tokSemi, "';'"); err != nil {
				return nil, err
			}
		case p.atKeyword("terminal"):
			p.advance()
			for {
				st, err := p.expect(tokIdent, "terminal state name")
				if err != nil {
					return nil, err
				}
				part.Terminal[StateName(st.text)] = true
				if p.at(tokComma) {
					p.advance()
					continue
				}
				break
			}
			if _, err := p.expect(tokSemi, "';'"); err != nil {
				return nil, err
			}
		case p.at(tokIdent):
			t, err := p.parseTransition()
			if err != nil {
				return nil, err
			}
			part.Transitions = append(part.Transitions, t)
		default:
			return nil, p.errorf("unexpected token in part body")
		}
	}
	if !haveInitial {
		return nil, &ParseError{Category: ParseErrorSemantic, Span: nameTok.span, Message: fmt.Sprintf("part %q has no initial state", part.Name)}
	}
	p.advance() // '}'
	return part, nil
}

func (p *parser) parseTransition() (Transition, error) {
	from, err := p.expect(tokIdent, "source state")
	if err != nil {
		return Transition{}, err
	}
	if _, err := p.expect(tokArrow, "'->'"); err != nil {
		return Transition{}, err
	}
	to, err := p.expect(tokIdent, "target state")
	if err != nil {
		return Transition{}, err
	}
	var label Label
	if p.at(tokLBracket) {
		p.advance()
		label, err = p.parseLabel(tokRBracket)
		if err != nil {
			return Transition{}, err
		}
		if _, err := p.expect(tokRBracket, "']'"); err != nil {
			return Transition{}, err
		}
	}
	if _, err := p.expect(tokSemi, "';'"); err != nil {
		return Transition{}, err
	}
	if err := label.Validate(); err != nil {
		return Transition{}, &ParseError{Category: ParseErrorSemantic, Span: from.span, Message: err.Error()}
	}
	return Transition{From: StateName(from.text), To: StateName(to.text), Label: label}, nil
}

// parseLabel parses a comma-separated list of signed properties up to (but
// not consuming) the closing delimiter `closing`.
func (p *parser) parseLabel(closing tokenKind) (Label, error) {
	var label Label
	if p.at(closing) {
		return label, nil
	}
	for {
		prop, err := p.parseSignedProp()
		if err != nil {
			return Label{}, err
		}
		label.Props = append(label.Props, prop)
		if p.at(tokComma) {
			p.advance()
			continue
		}
		break
	}
	return label, nil
}

func (p *parser) parseSignedProp() (SignedProp, error) {
	sign := SignPositive
	if p.at(tokPlus) {
		p.advance()
	} else if p.at(tokMinus) {
		sign = SignNegative
		p.advance()
	}
	nameTok, err := p.expect(tokIdent, "property name")
	if err != nil {
		return SignedProp{}, err
	}
	prop := SignedProp{Sign: sign, Name: nameTok.text}
	if p.at(tokLParen) {
		p.advance()
		if !p.at(tokRParen) {
			for {
				argTok := p.advance()
				prop.Args = append(prop.Args, argTok.text)
				if p.at(tokComma) {
					p.advance()
					continue
				}
				break
			}
		}
		if _, err := p.expect(tokRParen, "')'"); err != nil {
			return SignedProp{}, err
		}
	}
	return prop, nil
}

//---------------------------------------------------------------------
// Formula grammar
//
//   formula := orExpr ('until' orExpr)?
//   orExpr   := andExpr ('or' andExpr)*
//   andExpr  := unary ('and' unary)*
//   unary    := ('not' | '~') unary | modal | primary
//   modal    := '<' label '>' unary | '[' label ']' unary
//   primary  := 'true' | 'false'
//             | 'always' '(' formula ')' | 'eventually' '(' formula ')'
//             | ('mu'|'lfp') ident '.' formula
//             | ('nu'|'gfp') ident '.' formula
//             | ident ('(' args ')')?
//             | '(' formula ')'
//---------------------------------------------------------------------

// ParseFormula parses a standalone closed formula.
func ParseFormula(src string) (*Formula, error) {
	toks, err := newLexer(src).tokenize()
	if err != nil {
		return nil, err
	}
	p := newParser(toks)
	f, err := p.parseFormula()
	if err != nil {
		return nil, err
	}
	if !p.at(tokEOF) {
		return nil, p.errorf("unexpected trailing input after formula")
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f, nil
}

func (p *parser) parseFormula() (*Formula, error) {
	left, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.atKeyword("until") {
		p.advance()
		right, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		return Until(left, right), nil
	}
	return left, nil
}

func (p *parser) parseOr() (*Formula, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.atKeyword("or") || p.at(tokPipePipe) {
		p.advance()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = Or(left, right)
	}
	return left, nil
}

func (p *parser) parseAnd() (*Formula, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.atKeyword("and") || p.at(tokAmpAmp) {
		p.advance()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = And(left, right)
	}
	return left, nil
}

func (p *parser) parseUnary() (*Formula, error) {
	if p.atKeyword("not") || p.at(tokTilde) {
		p.advance()
		sub, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return Not(sub), nil
	}
	if p.at(tokLAngle) {
		p.advance()
		label, err := p.parseLabel(tokRAngle)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokRAngle, "'>'"); err != nil {
			return nil, err
		}
		sub, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return Diamond(label, sub), nil
	}
	if p.at(tokLBracket) {
		p.advance()
		label, err := p.parseLabel(tokRBracket)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokRBracket, "']'"); err != nil {
			return nil, err
		}
		sub, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return Box(label, sub), nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (*Formula, error) {
	switch {
	case p.at(tokLParen):
		p.advance()
		f, err := p.parseFormula()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokRParen, "')'"); err != nil {
			return nil, err
		}
		return f, nil
	case p.atKeyword("true"):
		p.advance()
		return True(), nil
	case p.atKeyword("false"):
		p.advance()
		return False(), nil
	case p.atKeyword("always"):
		p.advance()
		sub, err := p.parseParenFormula()
		if err != nil {
			return nil, err
		}
		return Always(sub), nil
	case p.atKeyword("eventually"):
		p.advance()
		sub, err := p.parseParenFormula()
		if err != nil {
			return nil, err
		}
		return Eventually(sub), nil
	case p.atKeyword("mu") || p.atKeyword("lfp"):
		return p.parseFixedPoint(true)
	case p.atKeyword("nu") || p.atKeyword("gfp"):
		return p.parseFixedPoint(false)
	case p.at(tokIdent):
		nameTok := p.advance()
		if p.isBound(nameTok.text) {
			return Var(nameTok.text), nil
		}
		var args []string
		if p.at(tokLParen) {
			p.advance()
			if !p.at(tokRParen) {
				for {
					args = append(args, p.advance().text)
					if p.at(tokComma) {
						p.advance()
						continue
					}
					break
				}
			}
			if _, err := p.expect(tokRParen, "')'"); err != nil {
				return nil, err
			}
		}
		return Atomic(nameTok.text, args...), nil
	default:
		return nil, p.errorf("unexpected token in formula")
	}
}

func (p *parser) parseParenFormula() (*Formula, error) {
	if _, err := p.expect(tokLParen, "'('"); err != nil {
		return nil, err
	}
	f, err := p.parseFormula()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tokRParen, "')'"); err != nil {
		return nil, err
	}
	return f, nil
}

func (p *parser) parseFixedPoint(least bool) (*Formula, error) {
	p.advance() // 'mu'/'lfp'/'nu'/'gfp'
	varTok, err := p.expect(tokIdent, "fixed-point variable")
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tokDot, "'.'"); err != nil {
		return nil, err
	}
	p.scope = append(p.scope, varTok.text)
	body, err := p.parseFormula()
	p.scope = p.scope[:len(p.scope)-1]
	if err != nil {
		return nil, err
	}
	if least {
		return Mu(varTok.text, body), nil
	}
	return Nu(varTok.text, body), nil
}

// parseUintArg is a small helper reserved for numeric predicate arguments
// (e.g. threshold(3, /dir)); it has no caller yet: predicate arguments
// are kept as token text and converted by the predicate that reads them.
func parseUintArg(text string) (uint64, error) {
	return strconv.ParseUint(text, 10, 64)
}
