package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/recherche/internal/usecase/load"
)

type loadtestFlags struct {
	count  int
	levels int
	step   int
	window time.Duration
	asJSON bool
}

func loadtestCmd(env *string) *cobra.Command {
	var f loadtestFlags
	cmd := &cobra.Command{
		Use:   "loadtest",
		Short: "Index generated persons at stepped concurrency and report throughput",
		Long: `Index generated persons against the configured backend, level by level.
Level i allows max(1, i*step) index calls in flight and submits --count documents.
Completions are counted in fixed windows; each window is printed as it closes.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLoadtest(cmd.Context(), *env, f, cmd.OutOrStdout())
		},
	}
	cmd.Flags().IntVar(&f.count, "count", 0, "documents per level (default from config)")
	cmd.Flags().IntVar(&f.levels, "levels", 0, "number of concurrency levels (default from config)")
	cmd.Flags().IntVar(&f.step, "step", 0, "concurrency increment between levels (default from config)")
	cmd.Flags().DurationVar(&f.window, "window", 0, "throughput window width (default from config)")
	cmd.Flags().BoolVar(&f.asJSON, "json", false, "print the final report as JSON")
	return cmd
}

func runLoadtest(parent context.Context, env string, f loadtestFlags, out io.Writer) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, env)
	if err != nil {
		return err
	}
	defer a.Close()

	cfg := a.loadConfig()
	if f.count > 0 {
		cfg.BatchSize = f.count
	}
	if f.levels > 0 {
		cfg.Levels = f.levels
	}
	if f.step > 0 {
		cfg.Step = f.step
	}
	if f.window > 0 {
		cfg.Window = f.window
	}

	ramper := a.newRamper(
		load.WithOnSample(func(s load.Sample) {
			fmt.Fprintf(out, "level=%d window=%s..%s completions=%d\n",
				s.Level, s.Start.Format(time.TimeOnly), s.End.Format(time.TimeOnly), s.Count)
		}))

	rep, err := ramper.Run(ctx, cfg)
	printReport(out, rep, f.asJSON)
	if errors.Is(err, context.Canceled) {
		fmt.Fprintln(out, "interrupted")
		return nil
	}
	return err
}

func printReport(out io.Writer, rep load.Report, asJSON bool) {
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		_ = enc.Encode(rep)
		return
	}
	for _, l := range rep.Levels {
		rate := 0.0
		if l.Duration > 0 {
			rate = float64(l.Completed+l.Failed) / l.Duration.Seconds()
		}
		fmt.Fprintf(out, "level %d: concurrency=%d completed=%d failed=%d duration=%s rate=%.1f/s\n",
			l.Level, l.Concurrency, l.Completed, l.Failed, l.Duration.Round(time.Millisecond), rate)
	}
}
