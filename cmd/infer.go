package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"

	"github.com/cottand/jinfer/inference/inferr"
	"github.com/cottand/jinfer/internal/log"
	"github.com/cottand/jinfer/scenario"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var logger = log.DefaultLogger.With("section", "cli")

var InferCmd = &cobra.Command{
	Use:          "infer ./folder|file.yaml...",
	Short:        "Run inference scenarios and print the instantiations found",
	RunE:         runInfer,
	Args:         cobra.MinimumNArgs(1),
	SilenceUsage: true,
}

var (
	outputFormat *string
	watch        *bool
	logLevel     *int
	dump         *bool
	jobs         *int
	debugErrors  *bool
)

func init() {
	outputFormat = InferCmd.Flags().StringP("format", "f", formatText, "output format, text or yaml")
	watch = InferCmd.Flags().BoolP("watch", "w", false, "run the scenarios again whenever they change")
	logLevel = InferCmd.Flags().IntP("log-level", "l", int(slog.LevelError), "log level")
	dump = InferCmd.Flags().Bool("dump", false, "dump each result together with its bound set")
	jobs = InferCmd.Flags().IntP("jobs", "j", runtime.NumCPU(), "scenarios evaluated in parallel")
	debugErrors = InferCmd.Flags().Bool("debug-errors", false, "print where errors were raised")
}

func runInfer(cmd *cobra.Command, args []string) error {
	log.SetLevel(slog.Level(*logLevel))
	inferr.SetDebugPrinting(*debugErrors)

	out, err := newPrinter(cmd.OutOrStdout(), *outputFormat, *dump)
	if err != nil {
		return err
	}
	err = inferTargets(cmd.Context(), args, out)
	if !*watch {
		return err
	}
	return watchTargets(cmd.Context(), args, func(ctx context.Context) {
		if _, err := fmt.Fprintln(cmd.OutOrStdout()); err != nil {
			return
		}
		if err := inferTargets(ctx, args, out); err != nil {
			logger.Warn("scenarios failed", "err", err)
		}
	})
}

// inferTargets runs every scenario found from args, at most *jobs at a time, and prints
// the results in a stable order
func inferTargets(ctx context.Context, args []string, out *printer) error {
	files, err := resolveTargets(args)
	if err != nil {
		return err
	}
	results, err := runScenarios(ctx, files, *jobs)
	if err != nil {
		return err
	}
	if err := out.print(results); err != nil {
		return err
	}

	var errs *inferr.Errors
	for _, result := range results {
		if !result.Failed() {
			continue
		}
		var inferenceErr inferr.InferenceError
		if errors.As(result.Err, &inferenceErr) {
			errs = errs.With(inferenceErr)
		} else {
			errs = errs.With(inferr.New(inferr.Unclassified{From: result.Err}))
		}
	}
	if errs.HasError() {
		logger.Error("scenarios failed", "errors", errs)
		return errs
	}
	return nil
}

func runScenarios(ctx context.Context, files []scenarioFile, limit int) ([]*scenario.Result, error) {
	results := make([]*scenario.Result, len(files))
	g, ctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, file := range files {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i] = scenario.RunFile(ctx, file.fsys, file.path)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("scenarios interrupted: %w", err)
	}
	return results, nil
}
