package models

import (
	"fmt"

	"github.com/inferloop/privsynth/pkg/errors"
)

// Dataset holds integer-coded records over a Domain, column-major. Each
// column carries one value code per record; codes lie in
// [0, cardinality).
type Dataset struct {
	domain  *Domain
	columns map[string][]int
	records int
}

// NewDataset creates a dataset from a column map. Every domain attribute
// must be present with equal-length columns.
func NewDataset(domain *Domain, columns map[string][]int) (*Dataset, error) {
	if domain == nil {
		return nil, errors.NewValidationError(errors.CodeInvalidDomain, "domain cannot be nil")
	}

	records := -1
	for _, attr := range domain.Attributes() {
		col, ok := columns[attr]
		if !ok {
			return nil, errors.NewValidationError(errors.CodeUnknownAttribute,
				fmt.Sprintf("missing column for attribute %q", attr))
		}
		if records < 0 {
			records = len(col)
		} else if len(col) != records {
			return nil, errors.NewValidationError(errors.CodeEmptyDataset,
				fmt.Sprintf("column %q has %d records, expected %d", attr, len(col), records))
		}
		card := domain.Cardinality(attr)
		for i, code := range col {
			if code < 0 || code >= card {
				return nil, errors.NewValidationError(errors.CodeEmptyDataset,
					fmt.Sprintf("column %q record %d has code %d outside [0,%d)", attr, i, code, card))
			}
		}
	}

	return &Dataset{
		domain:  domain,
		columns: columns,
		records: records,
	}, nil
}

// Domain returns the dataset's domain.
func (ds *Dataset) Domain() *Domain {
	return ds.domain
}

// Records returns the number of records.
func (ds *Dataset) Records() int {
	return ds.records
}

// Column returns the coded column for an attribute. The returned slice is
// shared, not copied.
func (ds *Dataset) Column(attr string) []int {
	return ds.columns[attr]
}

// Project restricts the dataset to the clique's attributes, in clique
// order. Columns are shared with the parent dataset.
func (ds *Dataset) Project(cl Clique) (*Dataset, error) {
	projected, err := ds.domain.Project(cl)
	if err != nil {
		return nil, err
	}

	columns := make(map[string][]int, len(cl))
	for _, attr := range cl {
		columns[attr] = ds.columns[attr]
	}

	return &Dataset{
		domain:  projected,
		columns: columns,
		records: ds.records,
	}, nil
}

// DataVector returns the flattened joint counts over the dataset's own
// domain: index = row-major flattening of the per-attribute codes in
// domain attribute order.
func (ds *Dataset) DataVector() []float64 {
	attrs := ds.domain.attrs
	vec := make([]float64, ds.domain.TotalSize())

	for i := 0; i < ds.records; i++ {
		idx := 0
		for _, attr := range attrs {
			idx = idx*ds.domain.shape[attr] + ds.columns[attr][i]
		}
		vec[idx]++
	}

	return vec
}
