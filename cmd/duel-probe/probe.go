package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"

	"duel-server/internal/config"
	"duel-server/internal/deck"
	"duel-server/internal/engine"
	"duel-server/internal/protocol"

	"github.com/rs/zerolog/log"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

var errKicked = errors.New("kicked from room")

type sender interface {
	Send(ctx context.Context, msg protocol.Inbound) error
}

type wsSender struct {
	conn *websocket.Conn
}

func (s *wsSender) Send(ctx context.Context, msg protocol.Inbound) error {
	raw, err := protocol.EncodeInbound(msg)
	if err != nil {
		return err
	}
	return s.conn.Write(ctx, websocket.MessageText, raw)
}

// frame is the union of the outbound fields the probe reacts to. Host is a
// flag on type_change and the room options on join_info.
type frame struct {
	Type  string          `json:"type"`
	Code  string          `json:"code"`
	Pos   int             `json:"pos"`
	Host  json.RawMessage `json:"host"`
	State string          `json:"state"`
	Data  []byte          `json:"data"`
}

// probe plays the lobby side of a duel: it readies a deck, answers the hand
// and turn order prompts and surrenders at the first engine request.
type probe struct {
	cfg  config.ProbeConfig
	deck deck.Deck
	out  sender

	host      bool
	requests  int
	games     int
	surrender bool
}

func newProbe(cfg config.ProbeConfig, d deck.Deck, out sender) *probe {
	return &probe{cfg: cfg, deck: d, out: out}
}

func (p *probe) run(ctx context.Context, conn *websocket.Conn) error {
	if err := p.start(ctx); err != nil {
		return err
	}
	for {
		var f frame
		if err := wsjson.Read(ctx, conn, &f); err != nil {
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
				return nil
			}
			return err
		}
		done, err := p.handle(ctx, f)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
}

func (p *probe) start(ctx context.Context) error {
	if err := p.out.Send(ctx, protocol.PlayerInfo{Name: p.cfg.Name}); err != nil {
		return err
	}
	return p.out.Send(ctx, protocol.Join{Room: p.cfg.Room, Pass: p.cfg.Pass})
}

func (p *probe) ready(ctx context.Context) error {
	return p.out.Send(ctx, protocol.ReadyDeck{Main: p.deck.Main, Extra: p.deck.Extra, Side: p.deck.Side})
}

// handle reacts to one server frame and reports whether the probe is done.
func (p *probe) handle(ctx context.Context, f frame) (bool, error) {
	switch f.Type {
	case "join_info":
		log.Info().Str("room", p.cfg.Room).Msg("probe_joined")
	case "type_change":
		p.host = string(f.Host) == "true"
		if f.Pos == protocol.ObserverPos {
			log.Warn().Msg("probe_seated_as_observer")
			return true, nil
		}
		return false, p.ready(ctx)
	case "player_change":
		if p.host && f.State == string(protocol.StateReady) {
			return false, p.out.Send(ctx, protocol.Start{})
		}
	case "select_hand":
		return false, p.out.Send(ctx, protocol.HandChoice{Hand: protocol.HandScissors + rand.IntN(3)})
	case "select_turn_order":
		return false, p.out.Send(ctx, protocol.TurnOrderChoice{First: true})
	case "duel_start":
		p.games++
		p.surrender = false
	case "game_msg":
		if engine.TypeOf(f.Data).IsResponseType() {
			p.requests++
			if p.cfg.Surrender && !p.surrender {
				p.surrender = true
				return false, p.out.Send(ctx, protocol.Surrender{})
			}
		}
	case "change_side":
		return false, p.ready(ctx)
	case "error":
		log.Warn().Str("code", f.Code).Msg("probe_server_error")
		switch f.Code {
		case protocol.ErrKicked:
			return true, errKicked
		case protocol.ErrJoin, protocol.ErrVersion, protocol.ErrDeck:
			return true, fmt.Errorf("server rejected probe: %s", f.Code)
		}
	case "duel_end":
		return true, nil
	}
	return false, nil
}

func loadDeck(path string) (deck.Deck, error) {
	if path == "" {
		return defaultDeck(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return deck.Deck{}, err
	}
	var d deck.Deck
	if err := json.Unmarshal(raw, &d); err != nil {
		return deck.Deck{}, fmt.Errorf("decode deck %s: %w", path, err)
	}
	return d, nil
}

// defaultDeck is a legal 40 card main deck of three copies per code.
func defaultDeck() deck.Deck {
	d := deck.Deck{Main: make([]uint32, 40)}
	for i := range d.Main {
		d.Main[i] = 10000 + uint32(i/3)
	}
	return d
}
