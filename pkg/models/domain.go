package models

import (
	"fmt"
	"sort"
	"strings"

	"github.com/inferloop/privsynth/pkg/errors"
)

// Clique is an ordered tuple of attribute names identifying one marginal
// query. Two cliques over the same attributes in the same order are equal.
type Clique []string

// Key returns a stable string usable as a map key.
func (c Clique) Key() string {
	return strings.Join(c, "\x1f")
}

// String returns a human-readable form of the clique.
func (c Clique) String() string {
	return "(" + strings.Join(c, ",") + ")"
}

// Contains reports whether the clique includes the given attribute.
func (c Clique) Contains(attr string) bool {
	for _, a := range c {
		if a == attr {
			return true
		}
	}
	return false
}

// Equal reports whether two cliques are identical tuples.
func (c Clique) Equal(other Clique) bool {
	if len(c) != len(other) {
		return false
	}
	for i := range c {
		if c[i] != other[i] {
			return false
		}
	}
	return true
}

// Domain maps attribute names to finite cardinalities. A Domain is
// immutable for the lifetime of a run; attribute order is fixed at
// construction and determines flattening order for full-domain vectors.
type Domain struct {
	attrs []string
	shape map[string]int
}

// NewDomain creates a domain from parallel attribute and cardinality
// slices.
func NewDomain(attrs []string, cards []int) (*Domain, error) {
	if len(attrs) == 0 {
		return nil, errors.NewValidationError(errors.CodeInvalidDomain, "domain must have at least one attribute")
	}
	if len(attrs) != len(cards) {
		return nil, errors.NewValidationError(errors.CodeInvalidDomain,
			fmt.Sprintf("attribute count %d does not match cardinality count %d", len(attrs), len(cards)))
	}

	shape := make(map[string]int, len(attrs))
	for i, attr := range attrs {
		if attr == "" {
			return nil, errors.NewValidationError(errors.CodeInvalidDomain, "attribute name cannot be empty")
		}
		if _, dup := shape[attr]; dup {
			return nil, errors.NewValidationError(errors.CodeInvalidDomain,
				fmt.Sprintf("duplicate attribute %q", attr))
		}
		if cards[i] <= 0 {
			return nil, errors.NewValidationError(errors.CodeInvalidDomain,
				fmt.Sprintf("attribute %q has non-positive cardinality %d", attr, cards[i]))
		}
		shape[attr] = cards[i]
	}

	return &Domain{
		attrs: append([]string(nil), attrs...),
		shape: shape,
	}, nil
}

// NewDomainFromShape creates a domain from a name-to-cardinality map with
// attributes ordered by name.
func NewDomainFromShape(shape map[string]int) (*Domain, error) {
	attrs := make([]string, 0, len(shape))
	for attr := range shape {
		attrs = append(attrs, attr)
	}
	sort.Strings(attrs)

	cards := make([]int, len(attrs))
	for i, attr := range attrs {
		cards[i] = shape[attr]
	}

	return NewDomain(attrs, cards)
}

// Attributes returns the domain's attributes in flattening order.
func (d *Domain) Attributes() []string {
	return append([]string(nil), d.attrs...)
}

// Shape returns a copy of the name-to-cardinality mapping.
func (d *Domain) Shape() map[string]int {
	shape := make(map[string]int, len(d.shape))
	for attr, card := range d.shape {
		shape[attr] = card
	}
	return shape
}

// Has reports whether the attribute belongs to the domain.
func (d *Domain) Has(attr string) bool {
	_, ok := d.shape[attr]
	return ok
}

// Cardinality returns the cardinality of one attribute, or 0 if unknown.
func (d *Domain) Cardinality(attr string) int {
	return d.shape[attr]
}

// Check validates that every attribute of the clique exists in the domain.
func (d *Domain) Check(cl Clique) error {
	if len(cl) == 0 {
		return errors.NewValidationError(errors.CodeInvalidDomain, "clique cannot be empty")
	}
	for _, attr := range cl {
		if !d.Has(attr) {
			return errors.NewValidationError(errors.CodeUnknownAttribute,
				fmt.Sprintf("attribute %q not in domain", attr))
		}
	}
	return nil
}

// Size returns the cardinality product over the clique's attributes.
// Unknown attributes contribute zero; use Check to validate first.
func (d *Domain) Size(cl Clique) int {
	size := 1
	for _, attr := range cl {
		size *= d.shape[attr]
	}
	return size
}

// TotalSize returns the cardinality product over all attributes.
func (d *Domain) TotalSize() int {
	return d.Size(Clique(d.attrs))
}

// Project returns a new domain restricted to the clique's attributes, in
// clique order.
func (d *Domain) Project(cl Clique) (*Domain, error) {
	if err := d.Check(cl); err != nil {
		return nil, err
	}
	cards := make([]int, len(cl))
	for i, attr := range cl {
		cards[i] = d.shape[attr]
	}
	return NewDomain(cl, cards)
}
