package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"duel-server/internal/carddb"
	"duel-server/internal/config"
	"duel-server/internal/engine"
	"duel-server/internal/logging"
	"duel-server/internal/protocol"
	"duel-server/internal/reclaim"
	"duel-server/internal/room"
	"duel-server/internal/store"
	httptransport "duel-server/internal/transport/http"
	"duel-server/internal/transport/ws"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.LoadApp()
	if err != nil {
		panic(err)
	}
	if err := logging.Init(cfg.Log); err != nil {
		panic(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	identity, err := identityFunc(cfg.Server.ReconnectIdentity)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid reconnect identity")
	}

	st, err := openStore(ctx, cfg.Server.PostgresDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("store init failed")
	}
	if st != nil {
		defer st.Close()
	}

	var index *reclaim.RedisIndex
	if cfg.Server.RedisURL != "" {
		index, err = reclaim.NewRedisIndexFromURL(ctx, cfg.Server.RedisURL)
		if err != nil {
			log.Fatal().Err(err).Msg("redis init failed")
		}
		defer index.Close()
	}

	var cards *carddb.DB
	if cfg.Server.CardDBPath != "" {
		cards, err = carddb.Open(ctx, cfg.Server.CardDBPath)
		if err != nil {
			log.Fatal().Err(err).Str("path", cfg.Server.CardDBPath).Msg("card db init failed")
		}
		go reloadOnHangup(ctx, cards)
	}

	opts := roomOptions(cfg.Server, identity)
	if st != nil {
		opts.Sink = st
	}
	if index != nil {
		opts.Index = index
	}
	if cards != nil {
		opts.Cards = cards
	}
	registry := room.NewRegistry(hostDefaults(cfg.Rooms), opts)

	r := newRouter(cfg.Server, registry, st, index)
	httptransport.LogRoutes(r)

	server := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		// Rooms first so every live duel is finalized and persisted before the
		// pool closes.
		registry.Close()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("http shutdown failed")
		}
	}()

	log.Info().Str("addr", cfg.Server.HTTPAddr).Bool("replays", st != nil).Bool("redis", index != nil).Bool("card_db", cards != nil).Msg("http listening")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("server stopped")
	}
	log.Info().Msg("server stopped")
}

// newRouter mounts the websocket endpoint and the HTTP API. st and index may
// be nil when the matching backend is not configured.
func newRouter(cfg config.ServerConfig, registry *room.Registry, st *store.Store, index *reclaim.RedisIndex) *chi.Mux {
	wsServer := ws.NewServer(registry, cfg.HandshakeTimeout, cfg.AllowedOrigins...)
	deps := httptransport.Deps{
		Rooms:       registry,
		WS:          wsServer.HandleWS,
		Checks:      map[string]httptransport.Pinger{},
		AdminAPIKey: cfg.AdminAPIKey,
	}
	if st != nil {
		deps.Replays = st
		deps.Checks["db"] = st
	}
	if index != nil {
		deps.Checks["redis"] = index
	}
	return httptransport.NewRouter(deps)
}

func openStore(ctx context.Context, dsn string) (*store.Store, error) {
	if dsn == "" {
		log.Warn().Msg("POSTGRES_DSN not set; duel records will not be persisted")
		return nil, nil
	}
	st, err := store.New(dsn)
	if err != nil {
		return nil, err
	}
	if err := st.Ping(ctx); err != nil {
		st.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return st, nil
}

func roomOptions(cfg config.ServerConfig, identity room.IdentityFunc) room.Options {
	return room.Options{
		Engine: engine.ProcessFactory{
			Path:    cfg.EnginePath,
			Args:    cfg.EngineArgs,
			Timeout: cfg.EngineTimeout,
		},
		Identity:         identity,
		ReconnectTimeout: cfg.ReconnectTimeout,
		KickReconnect:    cfg.ReconnectKick,
		ProtocolVersion:  cfg.ProtocolVersion,
	}
}

func identityFunc(name string) (room.IdentityFunc, error) {
	switch name {
	case config.IdentityAddressName, "":
		return room.IdentityAddressName, nil
	case config.IdentityName:
		return room.IdentityName, nil
	case config.IdentityToken:
		return room.IdentityToken, nil
	default:
		return nil, fmt.Errorf("unknown reconnect identity %q", name)
	}
}

func hostDefaults(cfg config.RoomDefaults) protocol.HostInfo {
	return protocol.HostInfo{
		Rule:        cfg.Rule,
		StartLP:     cfg.StartLP,
		StartHand:   cfg.StartHand,
		DrawCount:   cfg.DrawCount,
		TimeLimit:   cfg.TimeLimit,
		NoCheckDeck: cfg.NoCheckDeck,
	}
}

func reloadOnHangup(ctx context.Context, cards *carddb.DB) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			if err := cards.Reload(ctx); err != nil {
				log.Error().Err(err).Msg("card_db_reload_failed")
			}
		}
	}
}
