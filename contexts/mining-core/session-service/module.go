package sessionservice

import (
	"log/slog"
	"time"

	httpadapter "solmine/contexts/mining-core/session-service/adapters/http"
	"solmine/contexts/mining-core/session-service/adapters/memory"
	"solmine/contexts/mining-core/session-service/application"
	"solmine/contexts/mining-core/session-service/ports"
)

type Module struct {
	Handler httpadapter.Handler
	Service application.Service
	Store   *memory.Store
}

type Dependencies struct {
	Repository      ports.Repository
	Clock           ports.Clock
	IDGenerator     ports.IDGenerator
	SessionDuration time.Duration
	LeaderboardSize int
	Logger          *slog.Logger
}

func NewModule(deps Dependencies) Module {
	service := application.Service{
		Repo:            deps.Repository,
		Clock:           deps.Clock,
		IDGen:           deps.IDGenerator,
		SessionDuration: deps.SessionDuration,
		LeaderboardSize: deps.LeaderboardSize,
		Logger:          deps.Logger,
	}
	return Module{
		Handler: httpadapter.Handler{
			Service: service,
			Clock:   deps.Clock,
			Logger:  deps.Logger,
		},
		Service: service,
	}
}

func NewInMemoryModule(sessionDuration time.Duration, logger *slog.Logger) Module {
	store := memory.NewStore()
	module := NewModule(Dependencies{
		Repository:      store,
		Clock:           store,
		IDGenerator:     store,
		SessionDuration: sessionDuration,
		Logger:          logger,
	})
	module.Store = store
	return module
}
