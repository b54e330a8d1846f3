package pattern

import (
	"testing"

	"github.com/quadmill/quadmill/quads"
)

// sliceSource serves NAC candidates from a fixed slice
type sliceSource []quads.Tuple

func (s sliceSource) Candidates(Template, Bindings) []quads.Tuple {
	return s
}

func mutualPattern() *Pattern {
	return New(
		Template{Variable{"x"}, Constant{quads.Sym("likes")}, Variable{"y"}, Wildcard{}},
		Template{Variable{"y"}, Constant{quads.Sym("likes")}, Variable{"x"}, Wildcard{}},
	)
}

func TestPatternMatch_SeedsFromFirstTemplate(t *testing.T) {
	p := mutualPattern()

	m := p.Match(likesTuple("alice", "bob"))
	if m == nil {
		t.Fatal("expected a seeded match")
	}
	if m.Complete() {
		t.Error("single tuple should not complete a two-template pattern")
	}
	if v, _ := m.Binding("x"); v != quads.Sym("alice") {
		t.Errorf("first template should seed, bound x=%s", v)
	}

	other := quads.T(quads.Sym("a"), quads.Sym("hates"), quads.Sym("b"), quads.Sym("facts"))
	if p.Match(other) != nil {
		t.Error("non-matching tuple should not seed")
	}
}

func TestMatchTryExtend_Completes(t *testing.T) {
	p := mutualPattern()
	m := p.Match(likesTuple("alice", "bob"))

	if changed := m.TryExtend(likesTuple("carol", "dave")); changed {
		t.Error("unrelated tuple should not extend")
	}
	if changed := m.TryExtend(likesTuple("bob", "alice")); !changed {
		t.Fatal("reciprocal tuple should extend")
	}
	if !m.Complete() {
		t.Error("both templates satisfied, match should be complete")
	}

	sat, total := m.Progress()
	if sat != 2 || total != 2 {
		t.Errorf("Progress() = %d/%d", sat, total)
	}
	tuples := m.Tuples()
	if tuples[0] != likesTuple("alice", "bob") || tuples[1] != likesTuple("bob", "alice") {
		t.Errorf("recorded tuples wrong: %v", tuples)
	}
}

func TestMatchTryExtend_OneTemplatePerArrival(t *testing.T) {
	// A reflexive tuple satisfies both templates, but a single arrival only
	// fills the first open one; completion needs a second arrival
	p := mutualPattern()
	m := p.Match(likesTuple("narcissus", "narcissus"))
	if m.Complete() {
		t.Fatal("seeding fills exactly one template")
	}
	if !m.TryExtend(likesTuple("narcissus", "narcissus")) {
		t.Fatal("second arrival should fill the remaining template")
	}
	if !m.Complete() {
		t.Error("expected completion after second arrival")
	}
}

func TestMatchTryExtend_BindingConflict(t *testing.T) {
	p := mutualPattern()
	m := p.Match(likesTuple("alice", "bob"))

	// bob likes carol unifies with neither open template under x=alice,y=bob
	if m.TryExtend(likesTuple("bob", "carol")) {
		t.Error("conflicting tuple must not rebind")
	}
	if v, _ := m.Binding("y"); v != quads.Sym("bob") {
		t.Errorf("bindings should be untouched, y=%s", v)
	}
}

func TestMatchNACViolated(t *testing.T) {
	p := mutualPattern().Unless(
		Template{Variable{"x"}, Constant{quads.Sym("blocked")}, Variable{"y"}, Wildcard{}},
	)
	m := p.Match(likesTuple("alice", "bob"))

	clean := sliceSource{likesTuple("carol", "dave")}
	if m.NACViolated(clean) {
		t.Error("no blocking tuple, NAC should hold")
	}

	blocked := sliceSource{
		quads.T(quads.Sym("alice"), quads.Sym("blocked"), quads.Sym("bob"), quads.Sym("facts")),
	}
	if !m.NACViolated(blocked) {
		t.Error("blocking tuple matching under bindings should violate NAC")
	}

	// The probe must not leak bindings into the match
	if _, ok := m.Binding("blocked"); ok {
		t.Error("NAC probe leaked bindings")
	}
}

func TestMatchNACViolated_UnboundNACVariable(t *testing.T) {
	// A NAC variable absent from the bindings unifies with anything
	p := New(
		Template{Variable{"x"}, Constant{quads.Sym("type")}, Constant{quads.Sym("person")}, Wildcard{}},
	).Unless(
		Template{Variable{"x"}, Constant{quads.Sym("banned")}, Variable{"who"}, Wildcard{}},
	)
	m := p.Match(quads.T(quads.Sym("alice"), quads.Sym("type"), quads.Sym("person"), quads.Sym("facts")))

	src := sliceSource{
		quads.T(quads.Sym("alice"), quads.Sym("banned"), quads.Sym("anyone"), quads.Sym("facts")),
	}
	if !m.NACViolated(src) {
		t.Error("unbound NAC variable should unify with the candidate")
	}
}

func TestPatternValidate(t *testing.T) {
	if err := New().Validate(); err == nil {
		t.Error("empty pattern should fail validation")
	}

	bad := New(Template{E: Variable{"x"}, A: nil, V: Wildcard{}, C: Wildcard{}})
	if err := bad.Validate(); err == nil {
		t.Error("nil slot should fail validation")
	}

	if err := mutualPattern().Validate(); err != nil {
		t.Errorf("valid pattern rejected: %v", err)
	}
}

func TestPatternVariablesAndString(t *testing.T) {
	p := mutualPattern().Unless(
		Template{Variable{"x"}, Constant{quads.Sym("blocked")}, Variable{"y"}, Wildcard{}},
	)

	vars := p.Variables()
	if len(vars) != 2 || vars[0] != "x" || vars[1] != "y" {
		t.Errorf("Variables() = %v", vars)
	}

	want := "?x likes ?y *; ?y likes ?x *; !?x blocked ?y *"
	if got := p.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestBindingsString(t *testing.T) {
	b := Bindings{"y": quads.Sym("bob"), "x": quads.Sym("alice")}
	if got := b.String(); got != "?x=alice ?y=bob" {
		t.Errorf("String() = %q", got)
	}
}
