package httptransport

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"github.com/rs/zerolog/log"
)

const healthCheckTimeout = 2 * time.Second

type HealthHandlers struct {
	rooms  RoomLister
	checks map[string]Pinger
}

func NewHealthHandlers(rooms RoomLister, checks map[string]Pinger) *HealthHandlers {
	return &HealthHandlers{rooms: rooms, checks: checks}
}

// Health reports every configured dependency as up or down and answers 503
// when any of them is down.
func (h *HealthHandlers) Health() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		names := make([]string, 0, len(h.checks))
		for name := range h.checks {
			names = append(names, name)
		}
		sort.Strings(names)

		resp := map[string]any{"ok": true}
		for _, name := range names {
			ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
			err := h.checks[name].Ping(ctx)
			cancel()
			if err != nil {
				log.Warn().Err(err).Str("check", name).Msg("health_check_failed")
				resp[name] = "down"
				resp["ok"] = false
				continue
			}
			resp[name] = "up"
		}
		if h.rooms != nil {
			resp["rooms"] = len(h.rooms.List())
		}
		w.Header().Set("Content-Type", "application/json")
		if resp["ok"] == false {
			healthDownTotal.Add(1)
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(resp)
	}
}

func (h *HealthHandlers) Rooms() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if h.rooms == nil {
			_ = json.NewEncoder(w).Encode(map[string]any{"items": []any{}})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"items": h.rooms.List()})
	}
}
