package models

import (
	"fmt"

	"github.com/inferloop/privsynth/pkg/errors"
)

// Workload is an ordered sequence of marginal queries. Order determines
// the order measurements are recorded, not correctness.
type Workload []Clique

// Validate checks that the workload is non-empty and every clique lies
// inside the domain.
func (w Workload) Validate(domain *Domain) error {
	if len(w) == 0 {
		return errors.NewConfigurationError(errors.CodeEmptyWorkload, "workload cannot be empty")
	}
	for i, cl := range w {
		if err := domain.Check(cl); err != nil {
			return errors.WrapError(err, errors.ErrorTypeConfiguration, errors.CodeEmptyWorkload,
				fmt.Sprintf("workload entry %d is invalid", i))
		}
	}
	return nil
}

// AllCliques builds the workload of every attribute combination of arity
// 1 up to degree, in increasing arity and domain attribute order. The
// maximum clique arity is enforced here, by the workload builder.
func AllCliques(domain *Domain, degree int) (Workload, error) {
	attrs := domain.Attributes()
	if degree <= 0 || degree > len(attrs) {
		return nil, errors.NewConfigurationError(errors.CodeEmptyWorkload,
			fmt.Sprintf("degree %d outside [1,%d]", degree, len(attrs)))
	}

	var workload Workload
	for arity := 1; arity <= degree; arity++ {
		combine(attrs, arity, nil, &workload)
	}
	return workload, nil
}

func combine(attrs []string, arity int, prefix Clique, out *Workload) {
	if arity == 0 {
		cl := make(Clique, len(prefix))
		copy(cl, prefix)
		*out = append(*out, cl)
		return
	}
	for i := 0; i+arity <= len(attrs); i++ {
		combine(attrs[i+1:], arity-1, append(prefix, attrs[i]), out)
	}
}
