package httptransport

import (
	"context"
	"expvar"
	"net/http"
	"sort"

	"duel-server/internal/journal"
	"duel-server/internal/room"
	"duel-server/internal/store"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
)

// RoomLister reports live rooms; *room.Registry in production.
type RoomLister interface {
	List() []room.Summary
}

// ReplayStore reads persisted duel records; *store.Store in production.
type ReplayStore interface {
	GetDuelRecord(ctx context.Context, id string) (*journal.Record, error)
	ListDuelRecordsByRoom(ctx context.Context, room string, limit, offset int) ([]store.DuelRecordSummary, error)
}

// Pinger is a dependency checked by /healthz.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Deps struct {
	Rooms RoomLister
	// Replays is nil when no database is configured.
	Replays     ReplayStore
	WS          http.HandlerFunc
	Checks      map[string]Pinger
	AdminAPIKey string
}

func NewRouter(deps Deps) *chi.Mux {
	health := NewHealthHandlers(deps.Rooms, deps.Checks)
	replays := NewReplayHandlers(deps.Replays)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)

	// The websocket route stays outside the access log; connections are
	// logged by the ws server for their whole lifetime.
	if deps.WS != nil {
		r.Get("/ws", deps.WS)
	}

	r.With(accessLog()).Get("/healthz", health.Health())

	r.Route("/api", func(r chi.Router) {
		r.Use(accessLog())
		r.Get("/rooms", health.Rooms())
		r.Get("/replays", replays.List())
		r.Get("/replays/{id}", replays.Get())
		r.Get("/replays/{id}/progress", replays.Progress())
	})

	r.Route("/debug", func(r chi.Router) {
		r.Use(accessLog())
		r.Use(adminOnly(deps.AdminAPIKey))
		r.Get("/vars", expvar.Handler().ServeHTTP)
	})
	return r
}

func LogRoutes(r chi.Router) {
	routes := make([]string, 0, 16)
	err := chi.Walk(r, func(method string, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		routes = append(routes, method+" "+route)
		return nil
	})
	if err != nil {
		log.Error().Err(err).Msg("walk routes failed")
		return
	}
	sort.Strings(routes)
	log.Info().Int("count", len(routes)).Strs("routes", routes).Msg("routes_registered")
}
