package parser

import (
	"strings"
	"testing"

	"github.com/quadmill/quadmill/quads"
	"github.com/quadmill/quadmill/quads/pattern"
)

func TestParseTemplate(t *testing.T) {
	tests := []struct {
		name string
		text string
		want pattern.Template
	}{
		{
			"variables and symbols",
			"?p type person",
			pattern.Template{
				E: pattern.Variable{Name: "p"},
				A: pattern.Constant{Value: quads.Sym("type")},
				V: pattern.Constant{Value: quads.Sym("person")},
				C: pattern.Wildcard{},
			},
		},
		{
			"explicit context",
			"?r matches ?text system",
			pattern.Template{
				E: pattern.Variable{Name: "r"},
				A: pattern.Constant{Value: quads.Sym("matches")},
				V: pattern.Variable{Name: "text"},
				C: pattern.Constant{Value: quads.Sym("system")},
			},
		},
		{
			"wildcard and number",
			"* age 30 *",
			pattern.Template{
				E: pattern.Wildcard{},
				A: pattern.Constant{Value: quads.Sym("age")},
				V: pattern.Constant{Value: quads.Num(30)},
				C: pattern.Wildcard{},
			},
		},
		{
			"quoted text with escapes",
			`?e says "hello\nworld"`,
			pattern.Template{
				E: pattern.Variable{Name: "e"},
				A: pattern.Constant{Value: quads.Sym("says")},
				V: pattern.Constant{Value: quads.Text("hello\nworld")},
				C: pattern.Wildcard{},
			},
		},
		{
			"commas tolerated",
			"alice, likes, bob",
			pattern.Template{
				E: pattern.Constant{Value: quads.Sym("alice")},
				A: pattern.Constant{Value: quads.Sym("likes")},
				V: pattern.Constant{Value: quads.Sym("bob")},
				C: pattern.Wildcard{},
			},
		},
		{
			"negative numbers",
			"?e delta -2.5",
			pattern.Template{
				E: pattern.Variable{Name: "e"},
				A: pattern.Constant{Value: quads.Sym("delta")},
				V: pattern.Constant{Value: quads.Num(-2.5)},
				C: pattern.Wildcard{},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTemplate(tt.text)
			if err != nil {
				t.Fatalf("ParseTemplate(%q): %v", tt.text, err)
			}
			if got != tt.want {
				t.Errorf("ParseTemplate(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestParseTemplateErrors(t *testing.T) {
	tests := []struct {
		name string
		text string
		msg  string
	}{
		{"too few tokens", "alice likes", "3 or 4 tokens"},
		{"too many tokens", "a b c d e", "3 or 4 tokens"},
		{"nameless variable", "? type person", "variable needs a name"},
		{"empty input", "   \n \n", "expected one template"},
		{"two templates", "a b c; d e f", "expected one template"},
		{"negative marker", "!a b c", "negative marker not allowed"},
		{"unterminated string", `?e says "oops`, "unterminated string"},
		{"bad escape", `?e says "x\q"`, "invalid escape"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseTemplate(tt.text)
			if err == nil {
				t.Fatalf("ParseTemplate(%q) should fail", tt.text)
			}
			if !strings.Contains(err.Error(), tt.msg) {
				t.Errorf("error %q should mention %q", err, tt.msg)
			}
		})
	}
}

func TestParsePattern(t *testing.T) {
	p, err := ParsePattern("?x likes ?y; ?y likes ?x\n!?x blocked ?y")
	if err != nil {
		t.Fatal(err)
	}
	if len(p.Templates) != 2 {
		t.Errorf("expected 2 positive templates, got %d", len(p.Templates))
	}
	if len(p.Negative) != 1 {
		t.Fatalf("expected 1 negative template, got %d", len(p.Negative))
	}
	if p.Negative[0].A != (pattern.Constant{Value: quads.Sym("blocked")}) {
		t.Errorf("negative template wrong: %v", p.Negative[0])
	}
	if err := p.Validate(); err != nil {
		t.Errorf("parsed pattern failed validation: %v", err)
	}
}

func TestParsePatternCommentsAndBlanks(t *testing.T) {
	text := `
# mutual likes
?x likes ?y

?y likes ?x   # reciprocal
`
	p, err := ParsePattern(text)
	if err != nil {
		t.Fatal(err)
	}
	if len(p.Templates) != 2 || len(p.Negative) != 0 {
		t.Errorf("got %d positive / %d negative", len(p.Templates), len(p.Negative))
	}
}

func TestParsePatternErrors(t *testing.T) {
	if _, err := ParsePattern("!a b c"); err == nil {
		t.Error("pattern with only negatives should fail")
	}
	if _, err := ParsePattern("a b !c d"); err == nil {
		t.Error("mid-template bang should fail")
	}
	if _, err := ParsePattern("!!a b c"); err == nil {
		t.Error("doubled bang should fail")
	}
	if _, err := ParsePattern("!\na b c"); err == nil {
		t.Error("bang without a template should fail")
	}
}

func TestParseTuple(t *testing.T) {
	tup, err := ParseTuple("alice likes bob input")
	if err != nil {
		t.Fatal(err)
	}
	want := quads.T(quads.Sym("alice"), quads.Sym("likes"), quads.Sym("bob"), quads.Sym("input"))
	if tup != want {
		t.Errorf("ParseTuple = %s, want %s", tup, want)
	}

	tup, err = ParseTuple(`sensor reading 21.5`)
	if err != nil {
		t.Fatal(err)
	}
	if tup.C != DefaultContext {
		t.Errorf("three-token fact should take the default context, got %s", tup.C)
	}
	if tup.V != quads.Num(21.5) {
		t.Errorf("value should parse as number, got %s", tup.V)
	}

	if _, err := ParseTuple("?x likes bob"); err == nil {
		t.Error("variables are not concrete values")
	}
	if _, err := ParseTuple("alice likes *"); err == nil {
		t.Error("wildcards are not concrete values")
	}
	if _, err := ParseTuple("a b c d; e f g"); err == nil {
		t.Error("multiple facts on one parse should fail")
	}
}

func TestParseValue(t *testing.T) {
	v, err := ParseValue(`"some text"`)
	if err != nil {
		t.Fatal(err)
	}
	if v != quads.Text("some text") {
		t.Errorf("ParseValue = %s", v)
	}

	if _, err := ParseValue("?x"); err == nil {
		t.Error("variable is not a value")
	}
	if _, err := ParseValue("a b"); err == nil {
		t.Error("two tokens are not a single value")
	}
}

func TestTemplateRoundTrip(t *testing.T) {
	texts := []string{
		"?p type person *",
		"?x likes ?y *",
		"* age 30 facts",
		`?e says "hi there" output`,
	}
	for _, text := range texts {
		tm, err := ParseTemplate(text)
		if err != nil {
			t.Fatalf("parse %q: %v", text, err)
		}
		back, err := ParseTemplate(tm.String())
		if err != nil {
			t.Fatalf("re-parse %q: %v", tm.String(), err)
		}
		if back != tm {
			t.Errorf("round trip changed %q: %v != %v", text, back, tm)
		}
	}
}
