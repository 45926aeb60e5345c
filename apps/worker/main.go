package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/smallbiznis/partnersync/internal/account"
	"github.com/smallbiznis/partnersync/internal/clock"
	"github.com/smallbiznis/partnersync/internal/config"
	"github.com/smallbiznis/partnersync/internal/eventprocessor"
	eventservice "github.com/smallbiznis/partnersync/internal/eventprocessor/service"
	"github.com/smallbiznis/partnersync/internal/metricspush"
	"github.com/smallbiznis/partnersync/internal/migration"
	"github.com/smallbiznis/partnersync/internal/observability"
	"github.com/smallbiznis/partnersync/internal/ratelimit"
	"github.com/smallbiznis/partnersync/internal/scheduler"
	"github.com/smallbiznis/partnersync/internal/webhookevent"
	"github.com/smallbiznis/partnersync/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const startStopTimeout = 30 * time.Second

func main() {
	once := flag.Bool("once", false, "process a single batch and exit")
	batchSize := flag.Int("batch-size", 0, "events per batch (defaults to PROCESSOR_BATCH_SIZE)")
	flag.Parse()

	modules := fx.Options(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

		// Processing only; no HTTP surface
		account.Module,
		webhookevent.Module,
		eventprocessor.Module,
		ratelimit.Module,
	)

	if !*once {
		fx.New(modules, scheduler.Module).Run()
		return
	}

	os.Exit(runOnce(modules, *batchSize))
}

func runOnce(modules fx.Option, batchSize int) int {
	var (
		runner *eventservice.Runner
		cfg    config.Config
		log    *zap.Logger
	)
	app := fx.New(modules, fx.Populate(&runner, &cfg, &log))

	startCtx, cancel := context.WithTimeout(context.Background(), startStopTimeout)
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		return 1
	}
	defer func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), startStopTimeout)
		defer stopCancel()
		_ = app.Stop(stopCtx)
	}()

	if batchSize <= 0 {
		batchSize = cfg.Processor.BatchSize
	}
	log = log.Named("worker")

	timeout := cfg.Processor.LockTTL
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	ctx, runCancel := context.WithTimeout(context.Background(), timeout)
	defer runCancel()
	result, err := runner.Run(ctx, batchSize)
	if err != nil {
		log.Error("worker.batch.failed", zap.Error(err))
		return 1
	}
	log.Info("worker.batch.finished",
		zap.Int("processed", result.Processed),
		zap.Int("succeeded", result.Succeeded),
		zap.Int("errors", result.Errors),
	)

	if pusher := metricspush.New(cfg, log); pusher != nil {
		if err := pusher.Push(context.Background(), prometheus.DefaultGatherer); err != nil {
			log.Warn("worker.metrics.push_failed", zap.Error(err))
		}
	}
	return 0
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(2)
	if err != nil {
		panic(err)
	}
	return node
}
