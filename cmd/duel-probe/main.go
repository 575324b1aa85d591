package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"duel-server/internal/config"
	"duel-server/internal/logging"

	"github.com/rs/zerolog/log"
	"nhooyr.io/websocket"
)

func main() {
	logCfg, err := config.LoadLog()
	if err != nil {
		panic(err)
	}
	logCfg.Service = "duel-probe"
	if err := logging.Init(logCfg); err != nil {
		panic(err)
	}
	cfg, err := config.LoadProbe()
	if err != nil {
		log.Fatal().Err(err).Msg("load probe config failed")
	}
	d, err := loadDeck(cfg.DeckFile)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DeckFile).Msg("load deck failed")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, cfg.WSURL, nil)
	if err != nil {
		log.Fatal().Err(err).Str("url", cfg.WSURL).Msg("dial failed")
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	p := newProbe(cfg, d, &wsSender{conn: conn})
	if err := p.run(ctx, conn); err != nil {
		log.Fatal().Err(err).Msg("probe failed")
	}
	log.Info().Int("games", p.games).Msg("probe finished")
}
