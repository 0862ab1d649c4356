package provider

import (
	"marketplace-ledger/pkg/server"

	"go.uber.org/fx"
)

var Module = fx.Module("provider.service",
	fx.Provide(NewService),
)

var Routes = fx.Module("provider.routes",
	fx.Provide(server.AsRoute(NewHandler)),
)
