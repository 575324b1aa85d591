// Package enginetest provides a scripted in-memory rule engine for room tests.
package enginetest

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"duel-server/internal/engine"
)

type Zone struct {
	Player   int
	Location engine.Location
}

// Session replays queued batches. A response rejected by Accept makes the next
// Advance yield a RETRY for the same request instead of the next batch.
type Session struct {
	mu        sync.Mutex
	Opts      engine.CreateOptions
	batches   []engine.Batch
	lastReq   *engine.Message
	retry     bool
	Responses [][]byte
	Cards     map[Zone][]engine.CardQuery
	Info      []byte
	Accept    func(data []byte) bool
	Registry  map[string]string
	Disposed  bool
	Queries   []Zone

	inflight atomic.Int32
	overlap  atomic.Bool
}

func NewSession(batches ...engine.Batch) *Session {
	return &Session{batches: batches, Cards: map[Zone][]engine.CardQuery{}}
}

// Push appends batches to the script.
func (s *Session) Push(batches ...engine.Batch) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches = append(s.batches, batches...)
}

// Overlapped reports whether two calls were ever in flight at once.
func (s *Session) Overlapped() bool { return s.overlap.Load() }

func (s *Session) enter() func() {
	if s.inflight.Add(1) > 1 {
		s.overlap.Store(true)
	}
	return func() { s.inflight.Add(-1) }
}

func (s *Session) Advance(ctx context.Context) (engine.Batch, error) {
	defer s.enter()()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Disposed {
		return engine.Batch{}, engine.ErrSessionClosed
	}
	if s.retry {
		s.retry = false
		msgs := []engine.Message{engine.Request(s.lastReq.Player, []byte{byte(engine.MsgRetry)})}
		msgs = append(msgs, *s.lastReq)
		return engine.Batch{Messages: msgs, Status: engine.StatusAwaiting}, nil
	}
	if len(s.batches) == 0 {
		return engine.Batch{}, fmt.Errorf("%w: script exhausted", engine.ErrProtocol)
	}
	b := s.batches[0]
	s.batches = s.batches[1:]
	for i := len(b.Messages) - 1; i >= 0; i-- {
		if b.Messages[i].Type.IsResponseType() {
			m := b.Messages[i]
			s.lastReq = &m
			break
		}
	}
	return b, nil
}

func (s *Session) SetResponse(ctx context.Context, data []byte) error {
	defer s.enter()()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Disposed {
		return engine.ErrSessionClosed
	}
	s.Responses = append(s.Responses, append([]byte(nil), data...))
	if s.Accept != nil && !s.Accept(data) && s.lastReq != nil {
		s.retry = true
	}
	return nil
}

func (s *Session) QueryFieldCard(ctx context.Context, player int, loc engine.Location, seq int) ([]engine.CardQuery, error) {
	defer s.enter()()
	s.mu.Lock()
	defer s.mu.Unlock()
	z := Zone{Player: player, Location: loc}
	s.Queries = append(s.Queries, z)
	cards := s.Cards[z]
	if seq >= 0 {
		if seq >= len(cards) {
			return nil, nil
		}
		return cards[seq : seq+1], nil
	}
	return cards, nil
}

func (s *Session) QueryFieldCount(ctx context.Context, player int, loc engine.Location) (int, error) {
	defer s.enter()()
	s.mu.Lock()
	defer s.mu.Unlock()
	if cards, ok := s.Cards[Zone{Player: player, Location: loc}]; ok {
		return len(cards), nil
	}
	if loc == engine.LocDeck && len(s.Opts.Decks) > player {
		return len(s.Opts.Decks[player].Main), nil
	}
	if loc == engine.LocExtra && len(s.Opts.Decks) > player {
		return len(s.Opts.Decks[player].Extra), nil
	}
	return 0, nil
}

func (s *Session) QueryFieldInfo(ctx context.Context) ([]byte, error) {
	defer s.enter()()
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Info, nil
}

func (s *Session) Dispose(ctx context.Context) (map[string]string, error) {
	defer s.enter()()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Disposed {
		return nil, engine.ErrSessionClosed
	}
	s.Disposed = true
	return s.Registry, nil
}

// Factory hands out sessions built by Script, one per game.
type Factory struct {
	mu       sync.Mutex
	Script   func(game int, opts engine.CreateOptions) *Session
	Err      error
	sessions []*Session
}

func (f *Factory) Create(ctx context.Context, opts engine.CreateOptions) (engine.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	var s *Session
	if f.Script != nil {
		s = f.Script(len(f.sessions), opts)
	}
	if s == nil {
		s = NewSession()
	}
	s.Opts = opts
	f.sessions = append(f.sessions, s)
	return s, nil
}

func (f *Factory) Sessions() []*Session {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*Session(nil), f.sessions...)
}

// Last returns the most recently created session, or nil.
func (f *Factory) Last() *Session {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sessions) == 0 {
		return nil
	}
	return f.sessions[len(f.sessions)-1]
}

// Turn is a batch that opens a turn for player and asks them for an idle command.
func Turn(player int) engine.Batch {
	return engine.Batch{
		Messages: []engine.Message{
			engine.Broadcast(engine.EncodeNewTurn(byte(player))),
			engine.Request(player, []byte{byte(engine.MsgSelectIdleCmd), byte(player)}),
		},
		Status: engine.StatusAwaiting,
	}
}

// Win ends the game with player (ingame position) as winner.
func Win(player, reason int) engine.Batch {
	return engine.Batch{
		Messages: []engine.Message{engine.Broadcast(engine.EncodeWin(player, reason))},
		Status:   engine.StatusEnd,
	}
}
