// Command fundbot answers chat messages from the inbound queue and publishes
// ledger events for the report worker.
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
	"agencyfund/internal/dialogue"
	apphttp "agencyfund/internal/http"
	"agencyfund/internal/ledger"
	applog "agencyfund/internal/log"
	"agencyfund/internal/messaging"
	"agencyfund/internal/middleware"
	"agencyfund/internal/middleware/ratelimit"
	"agencyfund/internal/middleware/security"
	"agencyfund/internal/middleware/trace"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger("fundbot")
	logger.Info("Starting fundbot", applog.FieldOperation, applog.OpStartup)

	cfg := cli.LoadAndValidateConfig(logger)
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", applog.FieldError, err)
		os.Exit(1)
	}

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	factory := backend.NewFactory(logger)
	ledgerStore, err := factory.CreateLedgerStore(ctx, bcfg)
	if err != nil {
		logger.Error("Failed to initialize ledger store", applog.FieldError, err)
		os.Exit(1)
	}

	mgr := cache.NewManager()
	sessions, err := factory.CreateSessionStore(ctx, bcfg, mgr)
	if err != nil {
		logger.Error("Failed to initialize session store", applog.FieldError, err)
		os.Exit(1)
	}
	mgr.StartCleanup(cfg.SessionCleanupInterval)

	client, err := amqp.NewClient(cfg.AMQPURL, amqp.Topology{
		Exchange: cfg.AMQPExchange,
		Events:   cfg.AMQPEventsQueue,
		Inbound:  cfg.AMQPInboundQueue,
		Replies:  cfg.AMQPReplyQueue,
	})
	if err != nil {
		logger.Error("Failed to initialize AMQP client", applog.FieldError, err)
		os.Exit(1)
	}

	svc := ledger.NewService(ledgerStore.Store, client)
	// Replies go out below so screened and throttled messages are answered too.
	controller := dialogue.NewController(svc, sessions.Store, nil, dialogue.WithTTL(cfg.SessionTTL))

	tracer := trace.NewTracer()
	detector := security.NewDetector()
	limiter := ratelimit.NewLimiter(ratelimit.DefaultConfig())
	handle := middleware.Chain(controller.Handle,
		tracer.Middleware,
		detector.Middleware,
		limiter.Middleware(nil),
	)
	replies := messaging.NewQueue(client)

	server := apphttp.NewServer(":"+cfg.Port, handle,
		apphttp.WithReadinessCheck("amqp", client.Ready),
		apphttp.WithMetrics(func() map[string]any {
			return map[string]any{
				"messages":   tracer.GetMetrics(),
				"rate_limit": limiter.GetMetrics(),
				"security":   detector.GetMetrics(),
			}
		}),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return client.Run(gctx, func(ctx context.Context) error {
			return client.ConsumeChat(ctx, func(ctx context.Context, msg *amqp.ChatMessage) error {
				reply := handle(ctx, msg.UserID, msg.Text)
				if reply == "" {
					return nil
				}
				if err := replies.Send(ctx, msg.UserID, reply); err != nil {
					logger.WarnContext(ctx, "Failed to deliver reply",
						applog.FieldUserID, msg.UserID, applog.FieldOperation, applog.OpSend, applog.FieldError, err)
				}
				return nil
			})
		})
	})

	g.Go(server.ListenAndServe)
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	logger.Info("fundbot ready",
		applog.FieldQueue, cfg.AMQPInboundQueue,
		"port", cfg.Port,
		"data_backend", cfg.DataBackend,
		"session_backend", cfg.SessionBackend)

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Chat consumer stopped", applog.FieldError, err)
	}

	cli.RunCleanup(logger, 10*time.Second,
		func() error { mgr.Stop(); limiter.Stop(); return nil },
		client.Close,
		sessions.Cleanup,
		ledgerStore.Cleanup,
	)
}
