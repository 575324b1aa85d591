package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"duel-server/internal/config"
	"duel-server/internal/journal"
	"duel-server/internal/protocol"
	"duel-server/internal/room"
	"duel-server/internal/store"
	"duel-server/internal/testutil"
)

func TestIdentityFunc(t *testing.T) {
	c := room.NewClient(nil, "10.0.0.9:5000")
	cases := []struct {
		name string
		want string
	}{
		{"", "10.0.0.9|"},
		{config.IdentityAddressName, "10.0.0.9|"},
		{config.IdentityName, ""},
		{config.IdentityToken, ""},
	}
	for _, tc := range cases {
		fn, err := identityFunc(tc.name)
		if err != nil {
			t.Fatalf("%q: %v", tc.name, err)
		}
		if got := fn(c); got != tc.want {
			t.Fatalf("%q: identity = %q, want %q", tc.name, got, tc.want)
		}
	}
	if _, err := identityFunc("cookie"); err == nil {
		t.Fatal("unknown identity accepted")
	}
}

func TestHostDefaults(t *testing.T) {
	h := hostDefaults(config.RoomDefaults{Rule: 1, StartLP: 4000, StartHand: 4, DrawCount: 2, TimeLimit: time.Minute, NoCheckDeck: true})
	want := protocol.HostInfo{Rule: 1, StartLP: 4000, StartHand: 4, DrawCount: 2, TimeLimit: time.Minute, NoCheckDeck: true}
	if h != want {
		t.Fatalf("host = %+v, want %+v", h, want)
	}
}

func TestRoomOptionsFromConfig(t *testing.T) {
	cfg := config.ServerConfig{
		EnginePath:       "/opt/engine",
		EngineArgs:       []string{"--quiet"},
		EngineTimeout:    time.Second,
		ReconnectTimeout: time.Minute,
		ReconnectKick:    true,
		ProtocolVersion:  3,
	}
	opts := roomOptions(cfg, room.IdentityName)
	if !opts.KickReconnect || opts.ReconnectTimeout != time.Minute || opts.ProtocolVersion != 3 {
		t.Fatalf("options = %+v", opts)
	}
	if opts.Sink != nil || opts.Index != nil || opts.Cards != nil {
		t.Fatal("optional backends must stay unset until configured")
	}
}

func TestRouterWithoutBackends(t *testing.T) {
	registry := room.NewRegistry(protocol.HostInfo{StartLP: 8000}, room.Options{})
	defer registry.Close()
	srv := httptest.NewServer(newRouter(config.ServerConfig{HandshakeTimeout: time.Second}, registry, nil, nil))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("healthz: %v", err)
	}
	var health map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&health)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || health["ok"] != true || health["rooms"] != float64(0) {
		t.Fatalf("healthz = %d %v", resp.StatusCode, health)
	}

	resp, err = http.Get(srv.URL + "/api/replays?room=x")
	if err != nil {
		t.Fatalf("replays: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("replays without store = %d, want 503", resp.StatusCode)
	}
}

func TestRouterServesStoredReplays(t *testing.T) {
	st, err := store.New(testutil.PostgresSchema(t))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer st.Close()

	players := []journal.Player{{Name: "alice", Pos: 0}, {Name: "bob", Pos: 1}}
	rec := journal.New("M#stored", 0, 9, protocol.HostInfo{StartLP: 8000}, players, players, time.Unix(500, 0).UTC())
	rec.SetOutcome(0, 0, time.Unix(600, 0).UTC())
	if err := st.SaveDuelRecord(context.Background(), rec); err != nil {
		t.Fatalf("save: %v", err)
	}

	registry := room.NewRegistry(protocol.HostInfo{}, room.Options{})
	defer registry.Close()
	srv := httptest.NewServer(newRouter(config.ServerConfig{}, registry, st, nil))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/replays?room=M%23stored")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var list struct {
		Items []struct {
			ID     string `json:"id"`
			Winner int    `json:"winner"`
		} `json:"items"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&list)
	resp.Body.Close()
	if len(list.Items) != 1 || list.Items[0].ID != rec.ID || list.Items[0].Winner != 0 {
		t.Fatalf("list = %+v", list)
	}

	resp, err = http.Get(srv.URL + "/api/replays/" + rec.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get status = %d", resp.StatusCode)
	}

	resp, err = http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("healthz: %v", err)
	}
	var health map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&health)
	resp.Body.Close()
	if health["db"] != "up" {
		t.Fatalf("healthz = %v", health)
	}
}
