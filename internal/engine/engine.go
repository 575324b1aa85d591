package engine

import (
	"context"
	"errors"

	"duel-server/internal/deck"
	"duel-server/internal/protocol"
)

var (
	// ErrProtocol marks engine output the room cannot trust, such as a retry with
	// no outstanding request or a wait with nothing to answer.
	ErrProtocol      = errors.New("engine protocol violation")
	ErrSessionClosed = errors.New("engine session closed")
)

// Status tells the caller what the engine needs after a batch.
type Status int

const (
	StatusContinue Status = iota
	StatusAwaiting
	StatusEnd
)

func (s Status) String() string {
	switch s {
	case StatusContinue:
		return "continue"
	case StatusAwaiting:
		return "awaiting"
	case StatusEnd:
		return "end"
	default:
		return "unknown"
	}
}

// Target addresses one recipient bucket of a message: an ingame player or the
// observers.
type Target int

const (
	TargetPlayer0   Target = 0
	TargetPlayer1   Target = 1
	TargetObservers Target = 2
)

// View is the copy of a message a target receives. Teammate is what the
// non-operating tag partner of that player gets; nil means nothing.
type View struct {
	Target   Target `json:"target"`
	Data     []byte `json:"data"`
	Teammate []byte `json:"teammate,omitempty"`
}

// RefreshRequest asks the router to re-query a zone (Sequence < 0) or a single
// card and push the result to everyone.
type RefreshRequest struct {
	Player   int      `json:"player"`
	Location Location `json:"location"`
	Sequence int      `json:"sequence"`
}

// Message is one engine-originated game message. Raw is the unredacted form
// kept in the duel record.
type Message struct {
	Raw     []byte           `json:"raw"`
	Type    MsgType          `json:"type"`
	Player  int              `json:"player"`
	Views   []View           `json:"views,omitempty"`
	Refresh []RefreshRequest `json:"refresh,omitempty"`
}

// ViewFor returns the data a target should see, if the message has a view for it.
func (m Message) ViewFor(t Target) (View, bool) {
	for _, v := range m.Views {
		if v.Target == t {
			return v, true
		}
	}
	return View{}, false
}

type Batch struct {
	Messages []Message `json:"messages"`
	Status   Status    `json:"status"`
}

// CardQuery is the queried state of one card slot. Public cards are shown to
// every recipient; the rest only to their owner.
type CardQuery struct {
	Data   []byte `json:"data"`
	Public bool   `json:"public"`
}

type CreateOptions struct {
	Seed     uint64            `json:"seed"`
	Host     protocol.HostInfo `json:"host"`
	Decks    []deck.Deck       `json:"decks"`
	Registry map[string]string `json:"registry,omitempty"`
}

// Session is one live game inside the rule engine. Calls must not overlap.
type Session interface {
	Advance(ctx context.Context) (Batch, error)
	SetResponse(ctx context.Context, data []byte) error
	QueryFieldCard(ctx context.Context, player int, loc Location, seq int) ([]CardQuery, error)
	QueryFieldCount(ctx context.Context, player int, loc Location) (int, error)
	QueryFieldInfo(ctx context.Context) ([]byte, error)
	// Dispose releases the game and returns registry entries to carry into the
	// next game of the match.
	Dispose(ctx context.Context) (map[string]string, error)
}

type Factory interface {
	Create(ctx context.Context, opts CreateOptions) (Session, error)
}
