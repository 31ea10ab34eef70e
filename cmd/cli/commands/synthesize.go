package commands

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/inferloop/privsynth/internal/inference"
	"github.com/inferloop/privsynth/internal/mechanisms"
	"github.com/inferloop/privsynth/internal/storage"
	"github.com/inferloop/privsynth/pkg/constants"
	"github.com/inferloop/privsynth/pkg/models"
)

type SynthesizeOptions struct {
	InputFile    string
	PostgresDSN  string
	Table        string
	Columns      []string
	OutputFile   string
	Epsilon      float64
	Delta        float64
	Rounds       int
	Degree       int
	Alpha        float64
	MaxModelSize float64
	Engine       string
	Bounded      bool
	DataInit     bool
	Seed         int64
	Records      int
	Timeout      time.Duration
}

func NewSynthesizeCmd() *cobra.Command {
	opts := &SynthesizeOptions{}

	cmd := &cobra.Command{
		Use:   "synthesize",
		Short: "Generate differentially private synthetic data",
		Long: `Run the adaptive select-measure-reestimate mechanism against a
categorical dataset and write a synthetic copy under the requested
privacy budget.`,
		Example: `  # Synthesize from a CSV file with epsilon 1.0
  privsynth synthesize --input census.csv --epsilon 1.0 --output synthetic.csv

  # Use the particle engine with a fixed seed
  privsynth synthesize --input census.csv --engine particle --seed 42 --output synthetic.csv

  # Load from Postgres instead of a file
  privsynth synthesize --postgres "host=localhost dbname=census" --table people --columns age,sex,income`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSynthesize(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.InputFile, "input", "i", "", "Input CSV file")
	cmd.Flags().StringVar(&opts.PostgresDSN, "postgres", "", "Postgres DSN to load from instead of a file")
	cmd.Flags().StringVar(&opts.Table, "table", "", "Postgres table name")
	cmd.Flags().StringSliceVar(&opts.Columns, "columns", nil, "Postgres columns to load")
	cmd.Flags().StringVarP(&opts.OutputFile, "output", "o", "synthetic.csv", "Output CSV file")
	cmd.Flags().Float64VarP(&opts.Epsilon, "epsilon", "e", 1.0, "Privacy budget epsilon")
	cmd.Flags().Float64Var(&opts.Delta, "delta", constants.DefaultDelta, "Privacy budget delta")
	cmd.Flags().IntVarP(&opts.Rounds, "rounds", "r", constants.DefaultRounds, "Maximum number of rounds")
	cmd.Flags().IntVar(&opts.Degree, "degree", constants.DefaultDegree, "Maximum marginal arity")
	cmd.Flags().Float64Var(&opts.Alpha, "alpha", constants.DefaultAlpha, "Measurement share of each round's budget")
	cmd.Flags().Float64Var(&opts.MaxModelSize, "max-model-size", constants.DefaultMaxModelSize, "Model size cap in MiB for size-aware engines")
	cmd.Flags().StringVar(&opts.Engine, "engine", constants.EngineTypeFactored, "Estimator engine (factored, particle)")
	cmd.Flags().BoolVar(&opts.Bounded, "bounded", true, "Use bounded differential privacy")
	cmd.Flags().BoolVar(&opts.DataInit, "data-init", false, "Stratified particle initialization")
	cmd.Flags().Int64Var(&opts.Seed, "seed", 0, "Random seed for reproducible runs")
	cmd.Flags().IntVar(&opts.Records, "records", 0, "Synthetic record count (0 matches the input)")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 10*time.Minute, "Run timeout")

	return cmd
}

func runSynthesize(ctx context.Context, opts *SynthesizeOptions) error {
	logger := logrus.New()

	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	dataset, codec, err := loadDataset(ctx, opts, logger)
	if err != nil {
		return err
	}
	domain := dataset.Domain()

	fmt.Printf("Loaded %d records over %d attributes\n", dataset.Records(), len(domain.Attributes()))

	workload, err := models.AllCliques(domain, opts.Degree)
	if err != nil {
		return err
	}

	factory := inference.NewFactory(logger)
	engine, err := factory.CreateEngine(domain, &inference.EngineConfig{
		Type:     opts.Engine,
		Factored: &inference.FactoredConfig{Seed: opts.Seed},
		Particle: &inference.ParticleConfig{DataInit: opts.DataInit, Seed: opts.Seed},
	})
	if err != nil {
		return fmt.Errorf("failed to create engine: %w", err)
	}

	mechanism, err := mechanisms.NewMWEM(mechanisms.Hyperparameters{
		Epsilon:      opts.Epsilon,
		Delta:        opts.Delta,
		Degree:       opts.Degree,
		Rounds:       opts.Rounds,
		DataInit:     opts.DataInit,
		MaxModelSize: opts.MaxModelSize,
	}, opts.Bounded, opts.Seed, logger)
	if err != nil {
		return err
	}

	runOpts := &mechanisms.RunOptions{Alpha: opts.Alpha}
	if opts.Records > 0 {
		records := opts.Records
		runOpts.Records = &records
	}

	result, err := mechanism.Run(ctx, dataset, workload, engine, runOpts)
	if err != nil {
		return fmt.Errorf("synthesis failed: %w", err)
	}

	if err := storage.WriteCSV(opts.OutputFile, result.Synthetic, codec); err != nil {
		return err
	}

	selected := make([]string, len(result.Selected))
	for i, cl := range result.Selected {
		selected[i] = cl.String()
	}

	fmt.Printf("\nSynthesis completed in %d rounds\n", result.Rounds)
	fmt.Printf("Selected marginals: %s\n", strings.Join(selected, ", "))
	fmt.Printf("Final loss: %.4f\n", result.Loss)
	fmt.Printf("Budget spent: %.6f of %.6f rho\n", result.Budget.Spent, result.Budget.Total)
	fmt.Printf("Wrote %d synthetic records to %s\n", result.Synthetic.Records(), opts.OutputFile)
	return nil
}

func loadDataset(ctx context.Context, opts *SynthesizeOptions, logger *logrus.Logger) (*models.Dataset, storage.Codec, error) {
	if opts.PostgresDSN != "" {
		return storage.LoadPostgres(ctx, &storage.PostgresConfig{
			DSN:     opts.PostgresDSN,
			Table:   opts.Table,
			Columns: opts.Columns,
		}, logger)
	}
	if opts.InputFile == "" {
		return nil, nil, fmt.Errorf("either --input or --postgres is required")
	}
	if _, err := os.Stat(opts.InputFile); err != nil {
		return nil, nil, fmt.Errorf("input file %s not found", opts.InputFile)
	}
	return storage.LoadCSV(opts.InputFile, logger)
}
