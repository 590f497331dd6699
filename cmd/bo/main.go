// Command bo runs Bayesian-optimization studies described by YAML files
// against the built-in benchmark objectives.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/thalesfsp/bo"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	var verbose bool

	root := &cobra.Command{
		Use:           "bo",
		Short:         "Bayesian optimization runner",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
			log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

			zerolog.SetGlobalLevel(zerolog.InfoLevel)
			if verbose {
				zerolog.SetGlobalLevel(zerolog.DebugLevel)
			}
		},
	}

	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable per-round debug logging")

	var seed int64

	run := &cobra.Command{
		Use:   "run STUDY_FILE",
		Short: "Run the study described by a YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStudy(cmd.Context(), args[0], seed)
		},
	}

	run.Flags().Int64Var(&seed, "seed", 0, "override the study's random seed")

	root.AddCommand(run)

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the bo version",
		Run: func(*cobra.Command, []string) {
			fmt.Println(version)
		},
	})

	if err := root.ExecuteContext(context.Background()); err != nil {
		log.Error().Err(err).Msg("bo failed")
		os.Exit(1)
	}
}

func runStudy(ctx context.Context, path string, seedOverride int64) error {
	study, err := bo.LoadStudy(path)
	if err != nil {
		return err
	}

	objective, benchSpace, optimum, err := bo.LookupBenchmark(study.Objective)
	if err != nil {
		return err
	}

	// The study's parameter block wins over the benchmark's canonical
	// space, so studies can optimize over a sub-domain, but it must
	// declare the parameters the benchmark reads.
	space, err := study.SearchSpace()
	if err != nil {
		return err
	}

	for _, spec := range benchSpace.Specs() {
		if _, ok := space.Spec(spec.Name); !ok {
			return fmt.Errorf(
				"study %s: benchmark %s needs parameter %q",
				study.Name, study.Objective, spec.Name,
			)
		}
	}

	config := study.DriverConfig()
	config.Logger = log.Logger

	if seedOverride != 0 {
		config.Seed = seedOverride
	}

	driver, err := bo.NewDriver(space, objective, bo.GaussianProcessFactory(), config)
	if err != nil {
		return err
	}

	log.Info().
		Str("study", study.Name).
		Str("objective", study.Objective).
		Msg("running study")

	result, err := driver.Run(ctx)
	if err != nil {
		return fmt.Errorf("study %s: %w", study.Name, err)
	}

	if result.Best == nil {
		return fmt.Errorf("study %s recorded no observations", study.Name)
	}

	log.Info().
		Str("run_id", result.RunID).
		Int("observations", result.Observations.Len()).
		Float64("best", result.Best.Mean).
		Float64("known_optimum", optimum).
		Msg("study finished")

	fmt.Printf("best %s = %g\n", config.Metric, result.Best.Mean)
	for name, value := range result.Best.Assignment {
		if value.Category != "" {
			fmt.Printf("  %s = %s\n", name, value.Category)
			continue
		}
		fmt.Printf("  %s = %g\n", name, value.Number)
	}

	return nil
}
