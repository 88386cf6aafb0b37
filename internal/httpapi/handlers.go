package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/DoyleJ11/monster-battle-net/internal/hub"
	"github.com/DoyleJ11/monster-battle-net/internal/store"
)

const (
	defaultLimit = 20
	maxLimit     = 100
	queryTimeout = 3 * time.Second
)

// BattleLog is the read side of the battle store.
type BattleLog interface {
	Recent(ctx context.Context, limit int) ([]store.BattleRecord, error)
	Get(ctx context.Context, id string) (*store.BattleRecord, error)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, struct {
		Error string `json:"error"`
	}{Error: msg})
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// GetStatus reports what the battle loop is doing right now.
func GetStatus(h *hub.Hub, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), queryTimeout)
		defer cancel()
		st, err := h.Status(ctx)
		if err != nil {
			log.Warn("status unavailable", zap.Error(err))
			writeError(w, http.StatusServiceUnavailable, "status unavailable")
			return
		}
		writeJSON(w, http.StatusOK, st)
	}
}

func ListBattles(battles BattleLog, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if battles == nil {
			writeError(w, http.StatusServiceUnavailable, "no battle store configured")
			return
		}
		limit := defaultLimit
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 {
				writeError(w, http.StatusBadRequest, "limit must be a positive integer")
				return
			}
			limit = min(n, maxLimit)
		}

		ctx, cancel := context.WithTimeout(r.Context(), queryTimeout)
		defer cancel()
		recs, err := battles.Recent(ctx, limit)
		if err != nil {
			log.Error("list battles", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to list battles")
			return
		}
		if recs == nil {
			recs = []store.BattleRecord{}
		}
		writeJSON(w, http.StatusOK, recs)
	}
}

func GetBattle(battles BattleLog, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if battles == nil {
			writeError(w, http.StatusServiceUnavailable, "no battle store configured")
			return
		}
		id := chi.URLParam(r, "id")

		ctx, cancel := context.WithTimeout(r.Context(), queryTimeout)
		defer cancel()
		rec, err := battles.Get(ctx, id)
		switch {
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "battle not found")
		case err != nil:
			log.Error("get battle", zap.String("id", id), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to load battle")
		default:
			writeJSON(w, http.StatusOK, rec)
		}
	}
}
