package commands

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/inferloop/privsynth/internal/storage"
	"github.com/inferloop/privsynth/pkg/models"
)

type InspectOptions struct {
	InputFile string
	Degree    int
}

func NewInspectCmd() *cobra.Command {
	opts := &InspectOptions{}

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Inspect a dataset's domain and workload",
		Long: `Load a categorical dataset and print its attribute domain and the
marginal workload a synthesis run would use, without touching any
privacy budget.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(opts)
		},
	}

	cmd.Flags().StringVarP(&opts.InputFile, "input", "i", "", "Input CSV file")
	cmd.Flags().IntVar(&opts.Degree, "degree", 2, "Maximum marginal arity")
	cmd.MarkFlagRequired("input")

	return cmd
}

func runInspect(opts *InspectOptions) error {
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)

	dataset, _, err := storage.LoadCSV(opts.InputFile, logger)
	if err != nil {
		return err
	}
	domain := dataset.Domain()

	fmt.Printf("Records: %d\n", dataset.Records())
	fmt.Printf("Attributes:\n")
	for _, attr := range domain.Attributes() {
		fmt.Printf("  %-20s cardinality %d\n", attr, domain.Cardinality(attr))
	}
	fmt.Printf("Full domain size: %d cells\n", domain.TotalSize())

	workload, err := models.AllCliques(domain, opts.Degree)
	if err != nil {
		return err
	}
	fmt.Printf("Workload (%d marginals up to arity %d):\n", len(workload), opts.Degree)
	for _, cl := range workload {
		fmt.Printf("  %-30s %d cells\n", cl.String(), domain.Size(cl))
	}
	return nil
}
