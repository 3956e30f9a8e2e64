package main

import (
	"context"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/brandscope/overview-service/internal/model"
)

var (
	batchCriteria string
	batchLimit    int
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Generate overviews for CRM accounts matching a search criteria",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		if env.CRM == nil {
			return eris.New("batch requires zoho credentials (OVERVIEW_ZOHO_REFRESH_TOKEN)")
		}

		records, err := env.CRM.SearchRecords(ctx, batchCriteria, batchLimit)
		if err != nil {
			return eris.Wrap(err, "search CRM records")
		}

		companies := make([]model.Company, 0, len(records))
		for _, r := range records {
			companies = append(companies, r.Company())
		}

		return processBatch(ctx, companies, cfg.Batch.MaxConcurrentCompanies, func(ctx context.Context, company model.Company) (*model.OverviewResult, error) {
			return env.Orchestrator.Run(ctx, company)
		})
	},
}

func init() {
	batchCmd.Flags().StringVar(&batchCriteria, "criteria", "(Overview:equals:null)", "Zoho search criteria")
	batchCmd.Flags().IntVar(&batchLimit, "limit", 100, "max number of records to process")
	rootCmd.AddCommand(batchCmd)
}

// overviewFunc is the callback signature for generating one company overview.
type overviewFunc func(ctx context.Context, company model.Company) (*model.OverviewResult, error)

// processBatch runs the companies concurrently with a bounded worker pool.
// Individual failures are logged and counted without aborting the batch.
func processBatch(ctx context.Context, companies []model.Company, concurrency int, generate overviewFunc) error {
	if len(companies) == 0 {
		zap.L().Info("no companies to process")
		return nil
	}
	if concurrency <= 0 {
		concurrency = 1
	}

	zap.L().Info("processing batch",
		zap.Int("companies", len(companies)),
		zap.Int("concurrency", concurrency),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	var succeeded, insufficient, failed atomic.Int64

	for _, company := range companies {
		g.Go(func() error {
			log := zap.L().With(zap.String("company", company.Name))

			result, err := generate(gctx, company)
			if err != nil {
				failed.Add(1)
				log.Error("overview failed", zap.Error(err))
				return nil // don't abort batch on individual failure
			}

			if result.InsufficientData {
				insufficient.Add(1)
				log.Info("overview skipped, insufficient data",
					zap.String("reason", result.Reason),
				)
				return nil
			}

			succeeded.Add(1)
			log.Info("overview complete",
				zap.Bool("crm_updated", result.CRMUpdated),
				zap.Int("fields", len(result.Fields)),
			)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return eris.Wrap(err, "batch processing")
	}

	zap.L().Info("batch complete",
		zap.Int64("succeeded", succeeded.Load()),
		zap.Int64("insufficient", insufficient.Load()),
		zap.Int64("failed", failed.Load()),
	)
	return nil
}
