// Package highlight holds the highlight set of a buffer, the semantic
// category of every name occurrence keyed by a structural identity, and the
// diff between two successive sets.
package highlight

import (
	"fmt"
	"strings"
)

// Category is the semantic classification of a name occurrence.
type Category uint8

const (
	Local Category = iota
	Global
	Imported
	Parameter
	ParameterUnused
	Builtin
	Attribute
	Self
	Free
	Unresolved
)

var categoryNames = [...]string{
	Local:           "local",
	Global:          "global",
	Imported:        "imported",
	Parameter:       "parameter",
	ParameterUnused: "parameterUnused",
	Builtin:         "builtin",
	Attribute:       "attribute",
	Self:            "self",
	Free:            "free",
	Unresolved:      "unresolved",
}

func (c Category) String() string {
	if int(c) < len(categoryNames) {
		return categoryNames[c]
	}
	return fmt.Sprintf("category(%d)", c)
}

// Categories returns every category in declaration order.
func Categories() []Category {
	out := make([]Category, len(categoryNames))
	for i := range categoryNames {
		out[i] = Category(i)
	}
	return out
}

// ParseCategory parses a category name. Matching ignores case and
// underscores, so "parameter_unused" and "parameterUnused" are the same.
func ParseCategory(s string) (Category, error) {
	norm := strings.ToLower(strings.ReplaceAll(s, "_", ""))
	for i, name := range categoryNames {
		if strings.ToLower(name) == norm {
			return Category(i), nil
		}
	}
	return 0, fmt.Errorf("unknown category %q", s)
}

func (c Category) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *Category) UnmarshalText(b []byte) error {
	parsed, err := ParseCategory(string(b))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
