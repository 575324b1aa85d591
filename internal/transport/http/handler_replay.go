package httptransport

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"duel-server/internal/journal"
	"duel-server/internal/store"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

type ReplayHandlers struct {
	replays ReplayStore
}

func NewReplayHandlers(replays ReplayStore) *ReplayHandlers {
	return &ReplayHandlers{replays: replays}
}

func (h *ReplayHandlers) List() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h.replays == nil {
			WriteHTTPError(w, http.StatusServiceUnavailable, "replays_disabled")
			return
		}
		roomName := strings.TrimSpace(r.URL.Query().Get("room"))
		if roomName == "" {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_request")
			return
		}
		pg := pageFrom(r.URL.Query())
		replayQueryTotal.Add(1)
		items, err := h.replays.ListDuelRecordsByRoom(r.Context(), roomName, pg.Limit, pg.Offset)
		if err != nil {
			replayQueryErrorsTotal.Add(1)
			log.Error().Err(err).Str("room", roomName).Msg("replay_list_failed")
			WriteHTTPError(w, http.StatusInternalServerError, "internal_error")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"items": items, "limit": pg.Limit, "offset": pg.Offset})
	}
}

func (h *ReplayHandlers) Get() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec, ok := h.load(w, r)
		if !ok {
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(rec)
	}
}

// Progress walks the stored message log and reports turns, phases and the
// outcome without running an engine.
func (h *ReplayHandlers) Progress() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec, ok := h.load(w, r)
		if !ok {
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":       rec.ID,
			"room":     rec.Room,
			"game":     rec.Game,
			"winner":   rec.Winner,
			"progress": rec.Replay(),
		})
	}
}

func (h *ReplayHandlers) load(w http.ResponseWriter, r *http.Request) (*journal.Record, bool) {
	if h.replays == nil {
		WriteHTTPError(w, http.StatusServiceUnavailable, "replays_disabled")
		return nil, false
	}
	id := chi.URLParam(r, "id")
	replayQueryTotal.Add(1)
	rec, err := h.replays.GetDuelRecord(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			replayNotFoundTotal.Add(1)
			WriteHTTPError(w, http.StatusNotFound, "replay_not_found")
			return nil, false
		}
		replayQueryErrorsTotal.Add(1)
		log.Error().Err(err).Str("replay", id).Msg("replay_get_failed")
		WriteHTTPError(w, http.StatusInternalServerError, "internal_error")
		return nil, false
	}
	return rec, true
}
