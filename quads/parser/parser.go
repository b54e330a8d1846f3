// Package parser implements the textual encoding of templates and facts.
// A template is three or four whitespace-separated tokens (entity,
// attribute, value and optionally context; a missing context is a
// wildcard). A bare identifier is a symbol constant, "?name" a variable,
// "*" a wildcard, numbers and double-quoted strings the other literals.
// Templates are separated by newlines or ";", a leading "!" marks a
// negative template, and "#" starts a line comment.
package parser

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/quadmill/quadmill/quads"
	"github.com/quadmill/quadmill/quads/pattern"
)

// DefaultContext is the context a three-token fact lands in
var DefaultContext = quads.Sym("facts")

// segment is one template's worth of tokens
type segment struct {
	neg  bool
	toks []token
}

func parseSegments(text string) ([]segment, error) {
	tokens, err := newLexer(text).lex()
	if err != nil {
		return nil, err
	}

	var segs []segment
	var cur segment
	for _, tok := range tokens {
		switch tok.typ {
		case tokenBreak, tokenEOF:
			if cur.neg && len(cur.toks) == 0 {
				return nil, fmt.Errorf("%d:%d: \"!\" without a template", tok.line, tok.col)
			}
			if len(cur.toks) > 0 {
				segs = append(segs, cur)
			}
			cur = segment{}
		case tokenBang:
			if len(cur.toks) > 0 {
				return nil, fmt.Errorf("%d:%d: \"!\" must start a template", tok.line, tok.col)
			}
			if cur.neg {
				return nil, fmt.Errorf("%d:%d: doubled \"!\"", tok.line, tok.col)
			}
			cur.neg = true
		default:
			cur.toks = append(cur.toks, tok)
		}
	}
	return segs, nil
}

// parseSlot interprets one token as a template slot
func parseSlot(tok token) (pattern.Slot, error) {
	if tok.typ == tokenText {
		return pattern.Constant{Value: quads.Text(tok.text)}, nil
	}
	switch {
	case tok.text == "*":
		return pattern.Wildcard{}, nil
	case strings.HasPrefix(tok.text, "?"):
		name := tok.text[1:]
		if name == "" {
			return nil, fmt.Errorf("%d:%d: variable needs a name", tok.line, tok.col)
		}
		return pattern.Variable{Name: name}, nil
	default:
		if f, err := strconv.ParseFloat(tok.text, 64); err == nil {
			return pattern.Constant{Value: quads.Num(f)}, nil
		}
		return pattern.Constant{Value: quads.Sym(tok.text)}, nil
	}
}

func buildTemplate(seg segment) (pattern.Template, error) {
	if n := len(seg.toks); n < 3 || n > 4 {
		return pattern.Template{}, fmt.Errorf("%d:%d: template needs 3 or 4 tokens, got %d",
			seg.toks[0].line, seg.toks[0].col, n)
	}

	slots := make([]pattern.Slot, 4)
	for i, tok := range seg.toks {
		s, err := parseSlot(tok)
		if err != nil {
			return pattern.Template{}, err
		}
		slots[i] = s
	}
	if len(seg.toks) == 3 {
		slots[3] = pattern.Wildcard{}
	}
	return pattern.Template{E: slots[0], A: slots[1], V: slots[2], C: slots[3]}, nil
}

// ParseTemplate parses exactly one template
func ParseTemplate(text string) (pattern.Template, error) {
	segs, err := parseSegments(text)
	if err != nil {
		return pattern.Template{}, err
	}
	if len(segs) != 1 {
		return pattern.Template{}, fmt.Errorf("expected one template, got %d", len(segs))
	}
	if segs[0].neg {
		return pattern.Template{}, fmt.Errorf("negative marker not allowed here")
	}
	return buildTemplate(segs[0])
}

// ParseTemplates parses a list of positive templates
func ParseTemplates(text string) ([]pattern.Template, error) {
	segs, err := parseSegments(text)
	if err != nil {
		return nil, err
	}
	templates := make([]pattern.Template, 0, len(segs))
	for _, seg := range segs {
		if seg.neg {
			return nil, fmt.Errorf("%d:%d: negative marker not allowed here",
				seg.toks[0].line, seg.toks[0].col)
		}
		tm, err := buildTemplate(seg)
		if err != nil {
			return nil, err
		}
		templates = append(templates, tm)
	}
	return templates, nil
}

// ParsePattern parses a full pattern: "!"-prefixed templates become
// negative guards, the rest positives in order
func ParsePattern(text string) (*pattern.Pattern, error) {
	segs, err := parseSegments(text)
	if err != nil {
		return nil, err
	}

	p := &pattern.Pattern{}
	for _, seg := range segs {
		tm, err := buildTemplate(seg)
		if err != nil {
			return nil, err
		}
		if seg.neg {
			p.Negative = append(p.Negative, tm)
		} else {
			p.Templates = append(p.Templates, tm)
		}
	}
	if len(p.Templates) == 0 {
		return nil, fmt.Errorf("pattern needs at least one positive template")
	}
	return p, nil
}

// ParseValue parses a single concrete token into a value
func ParseValue(text string) (quads.Value, error) {
	segs, err := parseSegments(text)
	if err != nil {
		return quads.Value{}, err
	}
	if len(segs) != 1 || len(segs[0].toks) != 1 || segs[0].neg {
		return quads.Value{}, fmt.Errorf("expected a single value token")
	}
	return concreteValue(segs[0].toks[0])
}

// ParseTuple parses one line of three or four concrete tokens into a fact.
// A three-token line takes DefaultContext
func ParseTuple(text string) (quads.Tuple, error) {
	segs, err := parseSegments(text)
	if err != nil {
		return quads.Tuple{}, err
	}
	if len(segs) != 1 {
		return quads.Tuple{}, fmt.Errorf("expected one fact, got %d", len(segs))
	}
	seg := segs[0]
	if seg.neg {
		return quads.Tuple{}, fmt.Errorf("negative marker not allowed in a fact")
	}
	if n := len(seg.toks); n < 3 || n > 4 {
		return quads.Tuple{}, fmt.Errorf("fact needs 3 or 4 tokens, got %d", n)
	}

	vals := make([]quads.Value, 4)
	for i, tok := range seg.toks {
		v, err := concreteValue(tok)
		if err != nil {
			return quads.Tuple{}, err
		}
		vals[i] = v
	}
	if len(seg.toks) == 3 {
		vals[3] = DefaultContext
	}
	return quads.NewTuple(vals[0], vals[1], vals[2], vals[3])
}

// concreteValue interprets one token as a value, rejecting template syntax
func concreteValue(tok token) (quads.Value, error) {
	s, err := parseSlot(tok)
	if err != nil {
		return quads.Value{}, err
	}
	c, ok := s.(pattern.Constant)
	if !ok {
		return quads.Value{}, fmt.Errorf("%d:%d: %q is not a concrete value", tok.line, tok.col, tok.text)
	}
	return c.Value, nil
}
