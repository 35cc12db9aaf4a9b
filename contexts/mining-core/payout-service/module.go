package payoutservice

import (
	"log/slog"

	httpadapter "solmine/contexts/mining-core/payout-service/adapters/http"
	"solmine/contexts/mining-core/payout-service/application"
	"solmine/contexts/mining-core/payout-service/ports"
	engineapp "solmine/contexts/mining-core/reward-engine/application"
)

type Module struct {
	Handler httpadapter.Handler
	Service *application.Service
}

type Dependencies struct {
	Sessions ports.SessionStore
	Treasury ports.Treasury
	Outbox   ports.OutboxWriter
	Clock    ports.Clock
	IDGen    ports.IDGenerator

	MinPayoutLamports      uint64
	BaseReserveLamports    uint64
	PerTransferFeeLamports uint64
	Logger                 *slog.Logger
}

func NewModule(deps Dependencies) Module {
	service := &application.Service{
		Sessions: deps.Sessions,
		Engine: engineapp.Service{
			MinPayoutLamports: deps.MinPayoutLamports,
			Logger:            deps.Logger,
		},
		Treasury:               deps.Treasury,
		Outbox:                 deps.Outbox,
		Clock:                  deps.Clock,
		IDGen:                  deps.IDGen,
		BaseReserveLamports:    deps.BaseReserveLamports,
		PerTransferFeeLamports: deps.PerTransferFeeLamports,
		Logger:                 deps.Logger,
	}
	return Module{
		Handler: httpadapter.Handler{
			Service: service,
			Logger:  deps.Logger,
		},
		Service: service,
	}
}
