package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/DoyleJ11/monster-battle-net/internal/endpoint"
	"github.com/DoyleJ11/monster-battle-net/internal/hub"
)

type Deps struct {
	// Game is the battle endpoint players connect to.
	Game    http.Handler
	Hub     *hub.Hub
	Battles BattleLog
	Log     *zap.Logger
}

func SetupRoutes(d Deps) http.Handler {
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", Healthz)
	r.Get("/status", GetStatus(d.Hub, log))
	r.Get("/status/watch", WatchStatus(d.Hub, log))
	r.Get("/battles", ListBattles(d.Battles, log))
	r.Get("/battles/{id}", GetBattle(d.Battles, log))
	if d.Game != nil {
		r.Handle(endpoint.Path, d.Game)
	}
	return r
}
