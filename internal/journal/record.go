package journal

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"duel-server/internal/deck"
	"duel-server/internal/engine"
	"duel-server/internal/ids"
	"duel-server/internal/protocol"
)

var ErrNoRequest = errors.New("no outstanding request")

// Draw is the winner value recorded when nobody won.
const Draw = -1

type Player struct {
	Name string    `json:"name"`
	Pos  int       `json:"pos"`
	Deck deck.Deck `json:"deck"`
}

// Record is the journal of one game. Only the owning room mutates it, and only
// until EndedAt is set.
type Record struct {
	ID            string            `json:"id"`
	Room          string            `json:"room"`
	Game          int               `json:"game"`
	Seed          uint64            `json:"seed"`
	Host          protocol.HostInfo `json:"host"`
	StartedAt     time.Time         `json:"started_at"`
	EndedAt       time.Time         `json:"ended_at,omitzero"`
	Players       []Player          `json:"players"`
	IngamePlayers []Player          `json:"ingame_players"`
	Messages      [][]byte          `json:"messages"`
	Responses     [][]byte          `json:"responses"`
	Requests      int               `json:"requests"`
	TurnCount     int               `json:"turn_count"`
	TurnPlayer    int               `json:"turn_player"`
	Phase         uint16            `json:"phase"`
	Winner        int               `json:"winner"`
	WinReason     int               `json:"win_reason"`

	pending []byte
}

// New starts a record. players is in seat order; ingame is the same players
// re-indexed by ingame position for this game.
func New(room string, game int, seed uint64, host protocol.HostInfo, players, ingame []Player, now time.Time) *Record {
	return &Record{
		ID:            ids.New(),
		Room:          room,
		Game:          game,
		Seed:          seed,
		Host:          host,
		StartedAt:     now,
		Players:       players,
		IngamePlayers: ingame,
		Messages:      [][]byte{},
		Responses:     [][]byte{},
		Winner:        Draw,
	}
}

// Observe journals one engine message. A pending response is accepted by any
// message other than RETRY and dropped by a RETRY; retries themselves are not
// logged since the replay only carries accepted actions.
func (r *Record) Observe(msg engine.Message) {
	if r.pending != nil {
		if msg.Type == engine.MsgRetry {
			r.DropPendingResponse()
			return
		}
		r.AcceptPendingResponse()
	}
	switch msg.Type {
	case engine.MsgRetry:
		return
	case engine.MsgNewTurn:
		if !engine.IsTeammateTurn(msg.Raw) {
			r.TurnCount++
			if len(msg.Raw) > 1 {
				r.TurnPlayer = int(msg.Raw[1] & 0x1)
			}
		}
	case engine.MsgNewPhase:
		if phase, ok := engine.DecodeNewPhase(msg.Raw); ok {
			r.Phase = phase
		}
	}
	if msg.Type.IsResponseType() {
		r.Requests++
		return
	}
	r.Messages = append(r.Messages, append([]byte(nil), msg.Raw...))
}

// SetPendingResponse holds a player's answer until the engine's next message
// shows whether it was accepted.
func (r *Record) SetPendingResponse(data []byte) error {
	if len(r.Responses) >= r.Requests {
		return ErrNoRequest
	}
	r.pending = append([]byte(nil), data...)
	return nil
}

func (r *Record) HasPending() bool { return r.pending != nil }

// AcceptPendingResponse moves the held answer into the journal.
func (r *Record) AcceptPendingResponse() {
	if r.pending == nil {
		return
	}
	r.Responses = append(r.Responses, r.pending)
	r.pending = nil
}

func (r *Record) DropPendingResponse() { r.pending = nil }

func (r *Record) SetOutcome(winner, reason int, at time.Time) {
	r.Winner = winner
	r.WinReason = reason
	r.EndedAt = at
}

func (r *Record) Finished() bool { return !r.EndedAt.IsZero() }

// MarshalArtifact renders the record as the replay document sent to clients
// and stored.
func (r *Record) MarshalArtifact() ([]byte, error) {
	return json.Marshal(r)
}

func UnmarshalArtifact(data []byte) (*Record, error) {
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// Sink persists finished records.
type Sink interface {
	SaveDuelRecord(ctx context.Context, r *Record) error
}
