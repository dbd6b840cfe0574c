package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/okarpov/tenderdesk/internal/bootstrap"
	"github.com/okarpov/tenderdesk/internal/config"
	"github.com/okarpov/tenderdesk/internal/core/domain"
	"github.com/okarpov/tenderdesk/internal/observability/logging"
	"github.com/okarpov/tenderdesk/internal/observability/metrics"
)

const serviceName = "tenderdesk-worker"

func main() {
	cfg := config.Load()
	slog.SetDefault(logging.NewJSONLogger(serviceName, cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		slog.Error("bootstrap failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	workerMetrics := metrics.NewWorkerMetrics(serviceName)
	metricsServer := &http.Server{
		Addr:    ":" + cfg.WorkerMetricsPort,
		Handler: workerMetrics.Handler(),
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics server failed", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.ShutdownTimeout)*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		slog.Info("worker subscribed", "subject", cfg.NATSProcessSubject)
		err := app.Queue.SubscribeDocumentProcess(ctx, func(handlerCtx context.Context, task domain.ProcessTask) error {
			runCtx, cancel := context.WithTimeout(handlerCtx, 10*time.Minute)
			defer cancel()

			workerMetrics.StartDocument()
			start := time.Now()
			err := app.Pipeline.Run(runCtx, task)
			workerMetrics.FinishDocument(serviceName, time.Since(start), err)
			return err
		})
		if err != nil {
			slog.Error("process subscription failed", "error", err)
			stop()
		}
	}()

	go func() {
		defer wg.Done()
		slog.Info("worker subscribed", "subject", cfg.NATSGenerateSubject)
		err := app.Queue.SubscribeResponseGenerate(ctx, func(handlerCtx context.Context, task domain.GenerateTask) error {
			runCtx, cancel := context.WithTimeout(handlerCtx, 5*time.Minute)
			defer cancel()

			err := app.Workflow.Generate(runCtx, task)
			workerMetrics.FinishGenerate(serviceName, err)
			return err
		})
		if err != nil {
			slog.Error("generate subscription failed", "error", err)
			stop()
		}
	}()

	wg.Wait()
}
