package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/cwbudde/gbseg/internal/config"
	"github.com/cwbudde/gbseg/internal/report"
	"github.com/cwbudde/gbseg/internal/segregation"
	"github.com/cwbudde/gbseg/internal/thermo/backend"
	"github.com/cwbudde/gbseg/internal/trace"
	"github.com/spf13/cobra"
)

var (
	configPath string
	outPath    string
	format     string
	threshold  float64
	optimizer  string
	quiet      bool
	tracePath  string
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run a temperature sweep",
	Long: `Runs the segregation sweep described by a configuration file and writes the
boundary composition for every temperature. Temperatures without an accepted
composition are reported as "no data".`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("threshold") {
			cfg.Solver.Threshold = threshold
		}
		if cmd.Flags().Changed("optimizer") {
			cfg.Solver.Optimizer = optimizer
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		f, err := report.ParseFormat(format)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if outPath != "" {
			file, err := os.Create(outPath)
			if err != nil {
				return fmt.Errorf("failed to create output: %w", err)
			}
			defer file.Close()
			out = file
		}

		progress := cmd.ErrOrStderr()
		if quiet {
			progress = io.Discard
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		var observers []segregation.Observer
		if tracePath != "" {
			tw, err := trace.NewWriter(tracePath, false)
			if err != nil {
				return err
			}
			defer tw.Close()
			observers = append(observers, tw.Observer())
		}

		series, err := runSweep(ctx, cfg, progress, observers...)
		if err != nil {
			return err
		}
		if err := report.Write(out, series, f); err != nil {
			return err
		}
		if outPath != "" {
			fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %s (%d/%d converged)\n", outPath, series.Converged(), series.Len())
		}
		return nil
	},
}

func init() {
	sweepCmd.Flags().StringVarP(&configPath, "config", "c", "configs/sweep.yaml", "Sweep configuration file")
	sweepCmd.Flags().StringVarP(&outPath, "out", "o", "", "Output file (default stdout)")
	sweepCmd.Flags().StringVar(&format, "format", "table", "Output format: table, csv, json")
	sweepCmd.Flags().Float64Var(&threshold, "threshold", config.DefaultThreshold, "Acceptance threshold on the residual")
	sweepCmd.Flags().StringVar(&optimizer, "optimizer", config.DefaultOptimizer, "Optimizer: nelder-mead, mayfly")
	sweepCmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Do not print per-temperature progress")
	sweepCmd.Flags().StringVar(&tracePath, "trace", "", "Write one JSON line per temperature step to this file")

	rootCmd.AddCommand(sweepCmd)
}

// runSweep opens the configured backend and runs the sweep, printing one
// progress line per temperature to progress.
func runSweep(ctx context.Context, cfg *config.Config, progress io.Writer, observers ...segregation.Observer) (*segregation.ResultSeries, error) {
	problem, err := cfg.Problem()
	if err != nil {
		return nil, err
	}
	opt, err := cfg.Solver.BuildOptimizer()
	if err != nil {
		return nil, err
	}

	oracle, err := backend.Open(cfg, nil)
	if err != nil {
		return nil, err
	}
	defer oracle.Close()

	opts := append(cfg.Solver.Options(), segregation.WithObserver(func(ev segregation.StepEvent) {
		printStep(progress, ev)
	}))
	for _, obs := range observers {
		opts = append(opts, segregation.WithObserver(obs))
	}

	start := time.Now()
	series, err := segregation.Run(ctx, oracle, problem, opt, opts...)
	if err != nil {
		return nil, err
	}

	slog.Info("Sweep finished",
		"elapsed", time.Since(start).Round(time.Millisecond),
		"converged", series.Converged(),
		"steps", series.Len(),
		"evaluations", series.Evaluations(),
	)
	return series, nil
}

func printStep(w io.Writer, ev segregation.StepEvent) {
	o := ev.Outcome
	if o.Converged() {
		fmt.Fprintf(w, "[%d/%d] At T=%.1f, J=%.4g\n", ev.Index+1, ev.Total, o.Temperature, o.Score)
		return
	}
	fmt.Fprintf(w, "[%d/%d] At T=%.1f, J=%.4g (%s)\n", ev.Index+1, ev.Total, o.Temperature, o.Score, o.Status)
}
