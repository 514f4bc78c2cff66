// ============================================================================
// batchd CLI - Command Line Interface
// ============================================================================
//
// Package: internal/cli
// File: cli.go
// Purpose: Cobra-based command surface for the batch toolkit.
//
// Command structure:
//   batchd                         # Root command
//   ├── run                        # Run one batch over the worker pool
//   │   ├── --items, -n           # Number of work items
//   │   └── --workers, -w         # Pool capacity
//   ├── stress                     # Run the allocator stress harness
//   │   ├── --rounds              # Append rounds per accumulator
//   │   └── --values              # Values appended per round
//   ├── status                     # Show effective configuration
//   ├── --config, -c               # Config file (YAML)
//   ├── --version                  # Version information
//   └── --help
//
// run command:
//   Loads config, builds the demo transform (synthesize a dataset, pause,
//   derive columns, log a summary), dispatches items 1..N across W workers,
//   and logs the batch report. SIGINT/SIGTERM cancel the batch; items
//   already handed to workers finish.
//
// Metrics:
//   When enabled in config, /metrics is served on a separate goroutine in
//   Prometheus format.
//
// ============================================================================

package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/batchd-io/batchd/internal/datagen"
	"github.com/batchd-io/batchd/internal/dispatch"
	"github.com/batchd-io/batchd/internal/logging"
	"github.com/batchd-io/batchd/internal/metrics"
	"github.com/batchd-io/batchd/internal/stress"
	"github.com/batchd-io/batchd/internal/transform"
	"github.com/batchd-io/batchd/pkg/types"
)

// Config maps the YAML configuration file.
type Config struct {
	Batch struct {
		Items         int `yaml:"items"`
		Workers       int `yaml:"workers"`
		PauseMs       int `yaml:"pause_ms"`
		TaskTimeoutMs int `yaml:"task_timeout_ms"`
	} `yaml:"batch"`

	Generator struct {
		Records   int    `yaml:"records"`
		Replicate int    `yaml:"replicate"`
		Seed      uint64 `yaml:"seed"`
	} `yaml:"generator"`

	Stress struct {
		Accumulators int `yaml:"accumulators"`
		Rounds       int `yaml:"rounds"`
		Values       int `yaml:"values"`
		IntervalMs   int `yaml:"interval_ms"`
		MaxParallel  int `yaml:"max_parallel"`
	} `yaml:"stress"`

	Metrics struct {
		Enabled bool `yaml:"enabled"`
		Port    int  `yaml:"port"`
	} `yaml:"metrics"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`
}

const defaultConfigPath = "configs/default.yaml"

var configFile string

// BuildCLI assembles the root command.
func BuildCLI() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "batchd",
		Short: "batchd: bounded parallel batch processing over synthetic data",
		Long: `batchd dispatches work items across a fixed-size worker pool:
- every item is accounted for exactly once
- first failure aborts remaining dispatch
- the pool is scoped to the batch and always released`,
		Version: "1.0.0",
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", defaultConfigPath, "config file path")

	rootCmd.AddCommand(buildRunCommand())
	rootCmd.AddCommand(buildStressCommand())
	rootCmd.AddCommand(buildStatusCommand())

	return rootCmd
}

func buildRunCommand() *cobra.Command {
	var items int
	var workers int

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one batch over the worker pool",
		Long:  "Dispatch items 1..N across a bounded worker pool; each item synthesizes a dataset and derives reporting columns",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configFile)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("items") {
				cfg.Batch.Items = items
			}
			if cmd.Flags().Changed("workers") {
				cfg.Batch.Workers = workers
			}
			return runBatch(cfg)
		},
	}

	cmd.Flags().IntVarP(&items, "items", "n", 0, "number of work items (overrides config)")
	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "worker pool capacity (overrides config)")

	return cmd
}

func runBatch(cfg *Config) error {
	log := logging.New(cfg.Logging.Level, cfg.Logging.Format)

	var collector *metrics.Collector
	if cfg.Metrics.Enabled {
		collector = metrics.NewCollector()
		go func() {
			log.Info().Int("port", cfg.Metrics.Port).Msg("starting metrics server")
			if err := metrics.StartServer(cfg.Metrics.Port); err != nil {
				log.Error().Err(err).Msg("metrics server stopped")
			}
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	items := make([]types.Item, cfg.Batch.Items)
	for i := range items {
		items[i] = types.Item{
			ID:      types.ItemID(fmt.Sprintf("item-%d", i+1)),
			Seq:     i,
			Payload: i + 1,
		}
	}

	fn := demoTransform(cfg, log)

	runner := dispatch.NewRunner(dispatch.Options{
		Workers: cfg.Batch.Workers,
		Timeout: time.Duration(cfg.Batch.TaskTimeoutMs) * time.Millisecond,
	}, log, collector)

	report, err := runner.Run(ctx, items, fn)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			log.Warn().Msg("batch cancelled")
			return nil
		}
		return fmt.Errorf("batch failed: %w", err)
	}

	log.Info().
		Str("batch_id", report.BatchID).
		Int("completed", report.Completed).
		Int("failed", report.Failed).
		Dur("duration", report.Duration).
		Msg("run complete")

	return nil
}

// demoTransform builds the per-item pipeline: synthesize a dataset, pause,
// derive reporting columns, log the summary. Each invocation gets its own
// generator because the fake-data source is not safe for concurrent use;
// nothing is shared across items.
func demoTransform(cfg *Config, log zerolog.Logger) dispatch.Transform {
	return func(ctx context.Context, item types.Item) (any, error) {
		seed := cfg.Generator.Seed
		if seed != 0 {
			// distinct but reproducible data per item
			seed += uint64(item.Seq)
		}
		gen := datagen.New(seed, log)
		ds := gen.Generate(cfg.Generator.Records)
		if cfg.Generator.Replicate > 1 {
			ds = ds.Replicate(cfg.Generator.Replicate)
		}

		if cfg.Batch.PauseMs > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(cfg.Batch.PauseMs) * time.Millisecond):
			}
		}

		df, err := transform.Profile(ds)
		if err != nil {
			return nil, fmt.Errorf("profile item %s: %w", item.ID, err)
		}

		summary := transform.Summarize(df)
		log.Info().
			Str("item", string(item.ID)).
			Int("rows", summary.Rows).
			Float64("mean_bmi", summary.MeanBMI).
			Msg("item profiled")

		return summary, nil
	}
}

func buildStressCommand() *cobra.Command {
	var rounds int
	var values int
	var accumulators int

	cmd := &cobra.Command{
		Use:   "stress",
		Short: "Run the allocator stress harness",
		Long:  "Grow long-lived in-memory containers round over round to exercise memory observability tooling",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configFile)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("rounds") {
				cfg.Stress.Rounds = rounds
			}
			if cmd.Flags().Changed("values") {
				cfg.Stress.Values = values
			}
			if cmd.Flags().Changed("accumulators") {
				cfg.Stress.Accumulators = accumulators
			}
			return runStress(cfg)
		},
	}

	cmd.Flags().IntVar(&rounds, "rounds", 0, "append rounds per accumulator (overrides config)")
	cmd.Flags().IntVar(&values, "values", 0, "values appended per round (overrides config)")
	cmd.Flags().IntVar(&accumulators, "accumulators", 0, "concurrent accumulators (overrides config)")

	return cmd
}

func runStress(cfg *Config) error {
	log := logging.New(cfg.Logging.Level, cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	harness := stress.New(stress.Config{
		Accumulators: cfg.Stress.Accumulators,
		Rounds:       cfg.Stress.Rounds,
		Values:       cfg.Stress.Values,
		Interval:     time.Duration(cfg.Stress.IntervalMs) * time.Millisecond,
		MaxParallel:  cfg.Stress.MaxParallel,
	}, log)

	report, err := harness.Run(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			log.Warn().Int64("elements", report.Elements).Msg("stress run cancelled")
			return nil
		}
		return fmt.Errorf("stress run failed: %w", err)
	}

	return nil
}

func buildStatusCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show effective configuration",
		Long:  "Display the batch, generator, stress, and metrics settings that a run would use",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configFile)
			if err != nil {
				return err
			}
			return showStatus(cmd, cfg)
		},
	}
	return cmd
}

func showStatus(cmd *cobra.Command, cfg *Config) error {
	out := cmd.OutOrStdout()

	fmt.Fprintln(out, "batchd configuration")
	fmt.Fprintln(out, "====================")
	fmt.Fprintf(out, "Config file:      %s\n", configFile)
	fmt.Fprintln(out)

	fmt.Fprintln(out, "Batch:")
	fmt.Fprintf(out, "  Items:          %d\n", cfg.Batch.Items)
	fmt.Fprintf(out, "  Workers:        %d\n", cfg.Batch.Workers)
	fmt.Fprintf(out, "  Pause:          %s\n", time.Duration(cfg.Batch.PauseMs)*time.Millisecond)
	fmt.Fprintf(out, "  Task timeout:   %s\n", time.Duration(cfg.Batch.TaskTimeoutMs)*time.Millisecond)
	fmt.Fprintln(out)

	fmt.Fprintln(out, "Generator:")
	fmt.Fprintf(out, "  Records:        %d\n", cfg.Generator.Records)
	fmt.Fprintf(out, "  Replicate:      %d\n", cfg.Generator.Replicate)
	fmt.Fprintln(out)

	fmt.Fprintln(out, "Stress:")
	fmt.Fprintf(out, "  Accumulators:   %d\n", cfg.Stress.Accumulators)
	fmt.Fprintf(out, "  Rounds:         %d\n", cfg.Stress.Rounds)
	fmt.Fprintf(out, "  Values/round:   %d\n", cfg.Stress.Values)
	fmt.Fprintf(out, "  Interval:       %s\n", time.Duration(cfg.Stress.IntervalMs)*time.Millisecond)
	fmt.Fprintln(out)

	fmt.Fprintln(out, "Metrics:")
	if cfg.Metrics.Enabled {
		fmt.Fprintf(out, "  Enabled on http://localhost:%d/metrics\n", cfg.Metrics.Port)
	} else {
		fmt.Fprintln(out, "  Disabled")
	}

	return nil
}

// defaultConfig returns the built-in settings, which mirror the canonical
// demo scenario: 10 items over 5 workers, 2 second pause per item.
func defaultConfig() *Config {
	cfg := &Config{}
	cfg.Batch.Items = 10
	cfg.Batch.Workers = 5
	cfg.Batch.PauseMs = 2000
	cfg.Batch.TaskTimeoutMs = 0
	cfg.Generator.Records = 70_000
	cfg.Generator.Replicate = 10
	cfg.Stress.Accumulators = 1
	cfg.Stress.Rounds = 20
	cfg.Stress.Values = 1_000_000
	cfg.Stress.IntervalMs = 2000
	cfg.Logging.Level = "info"
	cfg.Logging.Format = "console"
	cfg.Metrics.Port = 9090
	return cfg
}

// loadConfig reads the YAML config over the built-in defaults. A missing
// file at the default path is not an error; an explicitly passed path must
// exist.
func loadConfig(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && path == defaultConfigPath {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config YAML: %w", err)
	}

	return cfg, nil
}
