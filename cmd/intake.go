package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/docufill/fieldcalc/internal/pipeline"
)

var (
	intakeName        string
	intakeConcurrency int
)

var intakeCmd = &cobra.Command{
	Use:   "intake <source> [source...]",
	Short: "Fill documents from files or URLs",
	Long:  "Runs the fill pipeline for each source: extract numeric values, compute calculated fields, persist the results. Sources may be local files (pdf, xlsx, csv, txt) or http(s)/ftp URLs.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		// Single source: print the full outcome JSON to stdout.
		if len(args) == 1 {
			out, err := env.Pipeline.Run(ctx, pipeline.Request{Name: intakeName, Source: args[0]})
			if err != nil {
				return eris.Wrap(err, "intake")
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		}

		return processSources(ctx, args, intakeConcurrency, func(ctx context.Context, source string) (*pipeline.Outcome, error) {
			return env.Pipeline.Run(ctx, pipeline.Request{Source: source})
		})
	},
}

func init() {
	intakeCmd.Flags().StringVar(&intakeName, "name", "", "document display name (single source only)")
	intakeCmd.Flags().IntVar(&intakeConcurrency, "concurrency", 4, "max sources processed in parallel")
	rootCmd.AddCommand(intakeCmd)
}

// fillFunc is the callback signature for filling one source document.
type fillFunc func(ctx context.Context, source string) (*pipeline.Outcome, error)

// processSources fills sources concurrently. Individual failures are logged
// and counted rather than aborting the batch.
func processSources(ctx context.Context, sources []string, concurrency int, fill fillFunc) error {
	if concurrency < 1 {
		concurrency = 1
	}

	zap.L().Info("processing batch",
		zap.Int("sources", len(sources)),
		zap.Int("concurrency", concurrency),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	var succeeded, failed atomic.Int64

	for _, source := range sources {
		g.Go(func() error {
			log := zap.L().With(zap.String("source", source))

			out, err := fill(gctx, source)
			if err != nil {
				failed.Add(1)
				log.Error("fill failed", zap.Error(err))
				return nil // don't abort batch on individual failure
			}

			succeeded.Add(1)
			log.Info("fill complete",
				zap.String("doc_id", out.Document.ID),
				zap.Int("resolved", out.Report.Resolved),
				zap.Int("needs_review", out.Report.NeedsReview),
			)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return eris.Wrap(err, "batch processing")
	}

	zap.L().Info("batch complete",
		zap.Int64("succeeded", succeeded.Load()),
		zap.Int64("failed", failed.Load()),
	)
	return nil
}
