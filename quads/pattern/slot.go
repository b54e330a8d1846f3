package pattern

import (
	"github.com/quadmill/quadmill/quads"
)

// Slot is one position of a template
// It can be a concrete value, a variable, or a wildcard
type Slot interface {
	IsVariable() bool
	IsWildcard() bool
	String() string
}

// Constant matches exactly one value
type Constant struct {
	Value quads.Value
}

func (c Constant) IsVariable() bool { return false }
func (c Constant) IsWildcard() bool { return false }
func (c Constant) String() string   { return c.Value.String() }

// Variable matches any value and binds it under Name. The name carries no
// "?" prefix; rendering adds one
type Variable struct {
	Name string
}

func (v Variable) IsVariable() bool { return true }
func (v Variable) IsWildcard() bool { return false }
func (v Variable) String() string   { return "?" + v.Name }

// Wildcard matches any value without binding anything
type Wildcard struct{}

func (w Wildcard) IsVariable() bool { return false }
func (w Wildcard) IsWildcard() bool { return true }
func (w Wildcard) String() string   { return "*" }
