package payout

import (
	"marketplace-ledger/pkg/server"

	"github.com/hibiken/asynq"
	"go.uber.org/fx"
)

var Module = fx.Module("payout.service",
	fx.Provide(NewService),
)

var Routes = fx.Module("payout.routes",
	fx.Provide(server.AsRoute(NewHandler)),
)

var WorkerModule = fx.Module("payout.worker",
	fx.Provide(NewDisburser, NewWorker),
	fx.Invoke(func(mux *asynq.ServeMux, w *Worker) { w.Register(mux) }),
)
