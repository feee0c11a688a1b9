// Command fund-worker consumes ledger events and appends report rows.
package main

import (
	"context"
	"errors"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"agencyfund/internal/amqp"
	"agencyfund/internal/backend"
	"agencyfund/internal/cache"
	"agencyfund/internal/cli"
	applog "agencyfund/internal/log"
	"agencyfund/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger("fund-worker")
	logger.Info("Starting fund-worker", applog.FieldOperation, applog.OpStartup)

	cfg := cli.LoadAndValidateConfig(logger)
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", applog.FieldError, err)
		os.Exit(1)
	}

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	writer, err := backend.NewFactory(logger).CreateReportWriter(ctx, bcfg)
	if err != nil {
		logger.Error("Failed to initialize report writer", applog.FieldError, err)
		os.Exit(1)
	}

	client, err := amqp.NewClient(cfg.AMQPURL, amqp.Topology{
		Exchange: cfg.AMQPExchange,
		Events:   cfg.AMQPEventsQueue,
	})
	if err != nil {
		logger.Error("Failed to initialize AMQP client", applog.FieldError, err)
		os.Exit(1)
	}

	reports := worker.NewReportWorker(writer)
	mgr := cache.NewManager()
	reports.Register(mgr)
	mgr.StartCleanup(time.Hour)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return client.Run(gctx, func(ctx context.Context) error {
			return client.ConsumeEvents(ctx, reports.HandleEvent)
		})
	})

	logger.Info("fund-worker ready",
		applog.FieldQueue, cfg.AMQPEventsQueue,
		"report_backend", cfg.ReportBackend)

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Event consumer stopped", applog.FieldError, err)
	}

	cli.RunCleanup(logger, 10*time.Second,
		func() error { mgr.Stop(); return nil },
		client.Close,
	)
}
