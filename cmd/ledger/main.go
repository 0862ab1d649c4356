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
	"marketplace-ledger/pkg/health"
	"marketplace-ledger/pkg/logger"
	"marketplace-ledger/pkg/middleware"
	"marketplace-ledger/pkg/otelcol"
	"marketplace-ledger/pkg/profiling"
	"marketplace-ledger/pkg/redis"
	"marketplace-ledger/pkg/sequence"
	"marketplace-ledger/pkg/server"
	"marketplace-ledger/pkg/task"
	"marketplace-ledger/pkg/validation"
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
		db.Migrate(append([]any{&provider.Provider{}}, ledger.Models()...)...),
		redis.Module,
		gen.Module,
		task.Client,
		sequence.Module,
		featureflags.Module,
		validation.Module,
		middleware.Module,
		health.Module,
		provider.Module,
		provider.Routes,
		ledger.Module,
		ledger.Routes,
		payout.Module,
		payout.Routes,
		server.ProvideHTTPServer,
		fxLogger,
	}

	if err := fx.ValidateApp(opts...); err != nil {
		log.Fatalf("fx validation failed: %v", err)
	}

	app := fx.New(opts...)

	app.Run()
}

var fxLogger = fx.WithLogger(func(cfg *config.Config, logger *zap.Logger) fxevent.Logger {
	if cfg.AppEnv == "production" {
		return fxevent.NopLogger
	}
	return &fxevent.ZapLogger{Logger: logger}
})
