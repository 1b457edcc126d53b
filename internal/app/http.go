package app

import (
	"github.com/yungbote/frontline-backend/internal/http"
	httpH "github.com/yungbote/frontline-backend/internal/http/handlers"
	"github.com/yungbote/frontline-backend/internal/observability"
)

type Handlers struct {
	Health *httpH.HealthHandler
	War    *httpH.WarHandler
}

func (a *App) wireHandlers() Handlers {
	a.Log.Info("Wiring handlers...")
	return Handlers{
		Health: httpH.NewHealthHandler(a.DB),
		War:    httpH.NewWarHandler(a.Repos.War, a.Repos.Faction, a.Services.Territory, a.Services.Events),
	}
}

// NewServer builds the query API.
func (a *App) NewServer() *http.Server {
	h := a.wireHandlers()
	return http.NewServer(http.RouterConfig{
		Log:            a.Log.With("component", "HTTP"),
		Metrics:        observability.Current(),
		ServiceName:    a.Cfg.ServiceName,
		AllowedOrigins: a.Cfg.AllowedOrigins,
		HealthHandler:  h.Health,
		WarHandler:     h.War,
	})
}

