package main

import (
	"log"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"marketplace-ledger/pkg/config"
	"marketplace-ledger/pkg/db"
	"marketplace-ledger/pkg/featureflags"
	"marketplace-ledger/pkg/gen"
	"marketplace-ledger/pkg/logger"
	"marketplace-ledger/pkg/otelcol"
	"marketplace-ledger/pkg/profiling"
	"marketplace-ledger/pkg/redis"
	"marketplace-ledger/pkg/sequence"
	"marketplace-ledger/pkg/task"
	"marketplace-ledger/services/ledger"
	"marketplace-ledger/services/payout"
	"marketplace-ledger/services/provider"
)

func main() {
	opts := []fx.Option{
		config.Module,
		logger.Module,
		otelcol.Module,
		profiling.Module,
		db.Module,
		redis.Module,
		gen.Module,
		task.Client,
		task.Server,
		sequence.Module,
		featureflags.Module,
		provider.Module,
		ledger.Module,
		ledger.WorkerModule,
		payout.Module,
		payout.WorkerModule,
		fxLogger,
	}

	if err := fx.ValidateApp(opts...); err != nil {
		log.Fatalf("fx validation failed: %v", err)
	}

	fx.New(opts...).Run()
}

var fxLogger = fx.WithLogger(func(cfg *config.Config, logger *zap.Logger) fxevent.Logger {
	if cfg.AppEnv == "production" {
		return fxevent.NopLogger
	}
	return &fxevent.ZapLogger{Logger: logger}
})
