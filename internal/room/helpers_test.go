package room

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"duel-server/internal/deck"
	"duel-server/internal/engine"
	"duel-server/internal/engine/enginetest"
	"duel-server/internal/journal"
	"duel-server/internal/protocol"
	"duel-server/internal/reclaim"
)

type fakeConn struct {
	mu     sync.Mutex
	frames [][]byte
	closed bool
}

func (f *fakeConn) Write(_ context.Context, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames = append(f.frames, append([]byte(nil), data...))
	return nil
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeConn) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

type frame struct {
	Type   string          `json:"type"`
	Code   string          `json:"code"`
	Detail string          `json:"detail"`
	Pos    int             `json:"pos"`
	State  string          `json:"state"`
	Host   json.RawMessage `json:"host"`
	Data   []byte          `json:"data"`
	Player int             `json:"player"`
	Reason int             `json:"reason"`
	Count  int             `json:"count"`
	Self   json.RawMessage `json:"self"`
	Opp    json.RawMessage `json:"opponent"`
	Text   string          `json:"text"`
}

// deckCounts decodes the self and opponent halves of a deck_count frame.
func (fr frame) deckCounts(t *testing.T) (self, opp protocol.DeckCounts) {
	t.Helper()
	if err := json.Unmarshal(fr.Self, &self); err != nil {
		t.Fatalf("decode deck_count self %s: %v", fr.Self, err)
	}
	if err := json.Unmarshal(fr.Opp, &opp); err != nil {
		t.Fatalf("decode deck_count opponent %s: %v", fr.Opp, err)
	}
	return self, opp
}

func (f *fakeConn) all(t *testing.T) []frame {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]frame, 0, len(f.frames))
	for _, raw := range f.frames {
		var fr frame
		if err := json.Unmarshal(raw, &fr); err != nil {
			t.Fatalf("decode frame %s: %v", raw, err)
		}
		out = append(out, fr)
	}
	return out
}

func (f *fakeConn) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames = nil
}

func (f *fakeConn) ofType(t *testing.T, typ string) []frame {
	t.Helper()
	var out []frame
	for _, fr := range f.all(t) {
		if fr.Type == typ {
			out = append(out, fr)
		}
	}
	return out
}

// games returns the raw engine messages delivered to the connection.
func (f *fakeConn) games(t *testing.T) [][]byte {
	t.Helper()
	var out [][]byte
	for _, fr := range f.ofType(t, "game_msg") {
		out = append(out, fr.Data)
	}
	return out
}

func (f *fakeConn) gamesOfType(t *testing.T, typ engine.MsgType) [][]byte {
	t.Helper()
	var out [][]byte
	for _, g := range f.games(t) {
		if engine.TypeOf(g) == typ {
			out = append(out, g)
		}
	}
	return out
}

type memorySink struct {
	mu      sync.Mutex
	records []*journal.Record
}

func (s *memorySink) SaveDuelRecord(_ context.Context, r *journal.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, r)
	return nil
}

func (s *memorySink) wait(t *testing.T, n int) []*journal.Record {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		s.mu.Lock()
		got := append([]*journal.Record(nil), s.records...)
		s.mu.Unlock()
		if len(got) >= n {
			return got
		}
		if time.Now().After(deadline) {
			t.Fatalf("waited for %d records, have %d", n, len(got))
		}
		time.Sleep(5 * time.Millisecond)
	}
}

type harness struct {
	t      *testing.T
	reg    *Registry
	engine *enginetest.Factory
	sink   *memorySink
	index  *reclaim.MemoryIndex
}

func newHarness(t *testing.T, host protocol.HostInfo, configure func(*Options)) *harness {
	t.Helper()
	h := &harness{
		t:      t,
		engine: &enginetest.Factory{},
		sink:   &memorySink{},
		index:  reclaim.NewMemoryIndex(),
	}
	opts := Options{
		Engine: h.engine,
		Sink:   h.sink,
		Index:  h.index,
		Seed:   func() uint64 { return 42 },
	}
	if configure != nil {
		configure(&opts)
	}
	h.reg = NewRegistry(host, opts)
	t.Cleanup(h.reg.Close)
	return h
}

func singleHost() protocol.HostInfo {
	return protocol.HostInfo{StartLP: 8000, StartHand: 5, DrawCount: 1}
}

func (h *harness) connect(name, addr string) (*Client, *fakeConn) {
	conn := &fakeConn{}
	c := NewClient(conn, addr)
	h.send(c, protocol.PlayerInfo{Name: name})
	return c, conn
}

func (h *harness) send(c *Client, msg protocol.Inbound) {
	h.reg.Dispatch(context.Background(), c, msg)
}

func (h *harness) join(c *Client, room string) {
	h.send(c, protocol.Join{Room: room})
}

func (h *harness) flush(clients ...*Client) {
	h.t.Helper()
	for _, c := range clients {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		err := c.Flush(ctx)
		cancel()
		if err != nil {
			h.t.Fatalf("flush %s: %v", c.ID, err)
		}
	}
}

// inspect runs fn on the room goroutine.
func (h *harness) inspect(name string, fn func(r *Room)) {
	h.t.Helper()
	r := h.reg.Get(name)
	if r == nil {
		h.t.Fatalf("room %q not found", name)
	}
	if err := r.call(func() { fn(r) }); err != nil {
		h.t.Fatalf("inspect %q: %v", name, err)
	}
}

func waitDone(t *testing.T, r *Room) {
	t.Helper()
	select {
	case <-r.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("room %q did not finalize", r.Name())
	}
}

func waitClosed(t *testing.T, conn *fakeConn) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !conn.isClosed() {
		if time.Now().After(deadline) {
			t.Fatal("connection was not closed")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func testDeck(base uint32) deck.Deck {
	d := deck.Deck{Main: make([]uint32, 40)}
	for i := range d.Main {
		d.Main[i] = base + uint32(i/3)
	}
	return d
}

func readyMsg(d deck.Deck) protocol.ReadyDeck {
	return protocol.ReadyDeck{Main: d.Main, Extra: d.Extra, Side: d.Side}
}

type duelists struct {
	alice, bob *Client
	ac, bc     *fakeConn
	room       *Room
}

// startDuel seats alice and bob, lets alice win the hands and go first.
// Watchers join once both seats are taken.
func (h *harness) startDuel(name string, watchers ...*Client) duelists {
	h.t.Helper()
	var d duelists
	d.alice, d.ac = h.connect("alice", "10.0.0.1:4000")
	h.join(d.alice, name)
	d.bob, d.bc = h.connect("bob", "10.0.0.2:4000")
	h.join(d.bob, name)
	for _, w := range watchers {
		h.join(w, name)
	}
	d.room = h.reg.Get(name)

	h.send(d.alice, readyMsg(testDeck(100)))
	h.send(d.bob, readyMsg(testDeck(200)))
	h.send(d.alice, protocol.Start{})
	h.send(d.alice, protocol.HandChoice{Hand: protocol.HandRock})
	h.send(d.bob, protocol.HandChoice{Hand: protocol.HandScissors})
	h.send(d.alice, protocol.TurnOrderChoice{First: true})
	return d
}

func turnScript(game int, opts engine.CreateOptions) *enginetest.Session {
	return enginetest.NewSession(enginetest.Turn(0))
}
