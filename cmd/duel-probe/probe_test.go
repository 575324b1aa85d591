package main

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"duel-server/internal/config"
	"duel-server/internal/deck"
	"duel-server/internal/engine"
	"duel-server/internal/protocol"
)

type recordingSender struct {
	sent []protocol.Inbound
}

func (r *recordingSender) Send(_ context.Context, msg protocol.Inbound) error {
	r.sent = append(r.sent, msg)
	return nil
}

func (r *recordingSender) last(t *testing.T) protocol.Inbound {
	t.Helper()
	if len(r.sent) == 0 {
		t.Fatal("nothing sent")
	}
	return r.sent[len(r.sent)-1]
}

func newTestProbe() (*probe, *recordingSender) {
	out := &recordingSender{}
	cfg := config.ProbeConfig{Name: "probe", Room: "M#smoke", Surrender: true}
	return newProbe(cfg, defaultDeck(), out), out
}

func mustHandle(t *testing.T, p *probe, f frame) bool {
	t.Helper()
	done, err := p.handle(context.Background(), f)
	if err != nil {
		t.Fatalf("handle %s: %v", f.Type, err)
	}
	return done
}

func TestProbeJoinsAndReadies(t *testing.T) {
	p, out := newTestProbe()
	if err := p.start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if info, ok := out.sent[0].(protocol.PlayerInfo); !ok || info.Name != "probe" {
		t.Fatalf("first message = %#v", out.sent[0])
	}
	if join, ok := out.sent[1].(protocol.Join); !ok || join.Room != "M#smoke" {
		t.Fatalf("second message = %#v", out.sent[1])
	}

	mustHandle(t, p, frame{Type: "join_info", Host: json.RawMessage(`{"start_lp":8000}`)})
	mustHandle(t, p, frame{Type: "type_change", Pos: 0, Host: json.RawMessage(`true`)})
	ready, ok := out.last(t).(protocol.ReadyDeck)
	if !ok || len(ready.Main) != 40 {
		t.Fatalf("ready = %#v", out.last(t))
	}
	if !p.host {
		t.Fatal("probe did not record host flag")
	}

	mustHandle(t, p, frame{Type: "player_change", Pos: 1, State: string(protocol.StateReady)})
	if _, ok := out.last(t).(protocol.Start); !ok {
		t.Fatalf("host did not start: %#v", out.last(t))
	}
}

func TestProbeAnswersPromptsAndSurrendersOnce(t *testing.T) {
	p, out := newTestProbe()

	mustHandle(t, p, frame{Type: "select_hand"})
	hand, ok := out.last(t).(protocol.HandChoice)
	if !ok || hand.Hand < protocol.HandScissors || hand.Hand > protocol.HandPaper {
		t.Fatalf("hand = %#v", out.last(t))
	}
	mustHandle(t, p, frame{Type: "select_turn_order"})
	if order, ok := out.last(t).(protocol.TurnOrderChoice); !ok || !order.First {
		t.Fatalf("turn order = %#v", out.last(t))
	}

	mustHandle(t, p, frame{Type: "duel_start"})
	before := len(out.sent)
	mustHandle(t, p, frame{Type: "game_msg", Data: engine.EncodeNewTurn(0)})
	if len(out.sent) != before {
		t.Fatal("probe answered a non-request message")
	}
	idle := []byte{byte(engine.MsgSelectIdleCmd), 0}
	mustHandle(t, p, frame{Type: "game_msg", Data: idle})
	if _, ok := out.last(t).(protocol.Surrender); !ok {
		t.Fatalf("expected surrender, got %#v", out.last(t))
	}
	mustHandle(t, p, frame{Type: "game_msg", Data: idle})
	if len(out.sent) != before+1 {
		t.Fatalf("surrendered %d times", len(out.sent)-before)
	}
	if p.requests != 2 || p.games != 1 {
		t.Fatalf("requests=%d games=%d", p.requests, p.games)
	}
	if !mustHandle(t, p, frame{Type: "duel_end"}) {
		t.Fatal("duel_end did not finish the probe")
	}
}

func TestProbeStopsOnRejection(t *testing.T) {
	p, _ := newTestProbe()
	done, err := p.handle(context.Background(), frame{Type: "error", Code: protocol.ErrKicked})
	if !done || !errors.Is(err, errKicked) {
		t.Fatalf("kicked: done=%v err=%v", done, err)
	}
	done, err = p.handle(context.Background(), frame{Type: "error", Code: protocol.ErrSide})
	if done || err != nil {
		t.Fatalf("side error should not stop the probe: done=%v err=%v", done, err)
	}
	if done := mustHandle(t, p, frame{Type: "type_change", Pos: protocol.ObserverPos}); !done {
		t.Fatal("probe kept running as an observer")
	}
}

func TestLoadDeck(t *testing.T) {
	d, err := loadDeck("")
	if err != nil || len(d.Main) != 40 {
		t.Fatalf("default deck = %d cards, err=%v", len(d.Main), err)
	}
	if err := (deck.DefaultChecker{}).Check(d); err != nil {
		t.Fatalf("default deck is not legal: %v", err)
	}

	path := filepath.Join(t.TempDir(), "deck.json")
	if err := os.WriteFile(path, []byte(`{"main":[1,2,3],"extra":[4],"side":[]}`), 0o600); err != nil {
		t.Fatalf("write deck: %v", err)
	}
	d, err = loadDeck(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(d.Main) != 3 || len(d.Extra) != 1 || d.Extra[0] != 4 {
		t.Fatalf("deck = %+v", d)
	}
	if _, err := loadDeck(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatal("missing deck file loaded")
	}
}
