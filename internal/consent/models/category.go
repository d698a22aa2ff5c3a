package models

import (
	"strings"

	dErrors "optin/pkg/domain-errors"
)

// Category is one of the four fixed cookie categories. Its position in the
// stored mask never changes.
type Category string

const (
	CategoryStrict      Category = "strict"
	CategoryFunctional  Category = "functional"
	CategoryPerformance Category = "performance"
	CategoryTargeting   Category = "targeting"
)

// Categories lists every category in mask order.
var Categories = []Category{
	CategoryStrict,
	CategoryFunctional,
	CategoryPerformance,
	CategoryTargeting,
}

// GateableCategories are the categories an embed may be gated on. Strict
// cookies are always allowed once any consent exists.
var GateableCategories = []Category{
	CategoryFunctional,
	CategoryPerformance,
	CategoryTargeting,
}

// ParseCategory converts a user-supplied name into a Category.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	if !c.IsValid() {
		return "", dErrors.New(dErrors.CodeValidation, "invalid category: "+s)
	}
	return c, nil
}

// IsValid reports whether c is one of the four known categories.
func (c Category) IsValid() bool {
	return c.Position() >= 0
}

// IsGateable reports whether embeds may be gated on c.
func (c Category) IsGateable() bool {
	return c.IsValid() && c != CategoryStrict
}

// Position returns the index of c in the mask, or -1 for unknown categories.
func (c Category) Position() int {
	switch c {
	case CategoryStrict:
		return 0
	case CategoryFunctional:
		return 1
	case CategoryPerformance:
		return 2
	case CategoryTargeting:
		return 3
	default:
		return -1
	}
}

// rank orders the nesting chain strict < functional < targeting. Performance
// sits outside the chain and ranks with strict.
func (c Category) rank() int {
	switch c {
	case CategoryFunctional:
		return 1
	case CategoryTargeting:
		return 2
	default:
		return 0
	}
}

// Broader reports whether c grants strictly more than other in the nesting chain.
func (c Category) Broader(other Category) bool {
	return c.rank() > other.rank()
}

func (c Category) String() string {
	return string(c)
}
