package ledger

import (
	"marketplace-ledger/pkg/server"

	"github.com/hibiken/asynq"
	"go.uber.org/fx"
)

var Module = fx.Module("ledger.service",
	fx.Provide(NewService),
)

var Routes = fx.Module("ledger.routes",
	fx.Provide(server.AsRoute(NewHandler)),
)

var WorkerModule = fx.Module("ledger.worker",
	fx.Provide(NewWorker, NewScheduler),
	fx.Invoke(
		func(mux *asynq.ServeMux, w *Worker) { w.Register(mux) },
		StartScheduler,
	),
)
