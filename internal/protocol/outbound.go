package protocol

import (
	"bytes"
	"encoding/json"
)

type Outbound interface {
	OutboundType() string
}

type JoinInfo struct {
	Room string   `json:"room"`
	Host HostInfo `json:"host"`
}

// TypeChange tells a connection where it sits; Pos is ObserverPos for watchers.
type TypeChange struct {
	Pos  int  `json:"pos"`
	Host bool `json:"host"`
}

type PlayerEnter struct {
	Pos  int    `json:"pos"`
	Name string `json:"name"`
}

type PlayerState string

const (
	StateReady    PlayerState = "ready"
	StateNotReady PlayerState = "not_ready"
	StateObserve  PlayerState = "observe"
	StateLeave    PlayerState = "leave"
	StateMove     PlayerState = "move"
)

type PlayerChange struct {
	Pos    int         `json:"pos"`
	State  PlayerState `json:"state"`
	NewPos int         `json:"new_pos,omitempty"`
}

type WatcherCount struct {
	Count int `json:"count"`
}

type DeckCounts struct {
	Main  int `json:"main"`
	Extra int `json:"extra"`
	Side  int `json:"side"`
}

type DeckCount struct {
	Self     DeckCounts `json:"self"`
	Opponent DeckCounts `json:"opponent"`
}

type SelectHand struct{}

type HandResult struct {
	Self     int `json:"self"`
	Opponent int `json:"opponent"`
}

type SelectTurnOrder struct{}

type DuelStart struct{}

// GameMessage carries one view-transformed rule-engine message.
type GameMessage struct {
	Data []byte `json:"data"`
}

const (
	ErrJoin      = "join_error"
	ErrDeck      = "deck_error"
	ErrSide      = "side_error"
	ErrReconnect = "reconnect_error"
	ErrKicked    = "kicked"
	ErrVersion   = "version_error"
)

type ErrorMessage struct {
	Code   string `json:"code"`
	Detail string `json:"detail,omitempty"`
	Card   uint32 `json:"card,omitempty"`
}

type ChangeSide struct{}
type WaitingSide struct{}

// Win reports a duel outcome by duel position; Player is -1 for a draw.
type Win struct {
	Player int `json:"player"`
	Reason int `json:"reason"`
}

type DuelEnd struct{}

type ReplayArtifact struct {
	ID   string `json:"id"`
	Data []byte `json:"data"`
}

type ChatMessage struct {
	Pos  int    `json:"pos"`
	Name string `json:"name"`
	Text string `json:"text"`
}

// ReconnectPrompt tells a reclaiming connection which seat it is taking over;
// it must resubmit that seat's deck to finish.
type ReconnectPrompt struct {
	Pos int `json:"pos"`
}

type Notice struct {
	Text string `json:"text"`
}

func (JoinInfo) OutboundType() string        { return "join_info" }
func (TypeChange) OutboundType() string      { return "type_change" }
func (PlayerEnter) OutboundType() string     { return "player_enter" }
func (PlayerChange) OutboundType() string    { return "player_change" }
func (WatcherCount) OutboundType() string    { return "watcher_count" }
func (DeckCount) OutboundType() string       { return "deck_count" }
func (SelectHand) OutboundType() string      { return "select_hand" }
func (HandResult) OutboundType() string      { return "hand_result" }
func (SelectTurnOrder) OutboundType() string { return "select_turn_order" }
func (DuelStart) OutboundType() string       { return "duel_start" }
func (GameMessage) OutboundType() string     { return "game_msg" }
func (ErrorMessage) OutboundType() string    { return "error" }
func (ChangeSide) OutboundType() string      { return "change_side" }
func (WaitingSide) OutboundType() string     { return "waiting_side" }
func (Win) OutboundType() string             { return "win" }
func (DuelEnd) OutboundType() string         { return "duel_end" }
func (ReplayArtifact) OutboundType() string  { return "replay" }
func (ChatMessage) OutboundType() string     { return "chat" }
func (Notice) OutboundType() string          { return "notice" }
func (ReconnectPrompt) OutboundType() string { return "reconnect" }

// Encode renders an outbound message as {"type": "...", ...fields}.
func Encode(msg Outbound) ([]byte, error) {
	return withType(msg.OutboundType(), msg)
}

func withType(typ string, body any) ([]byte, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	head, err := json.Marshal(typ)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	buf.Grow(len(raw) + len(head) + 10)
	buf.WriteString(`{"type":`)
	buf.Write(head)
	inner := bytes.TrimSpace(raw)
	if len(inner) > 2 {
		buf.WriteByte(',')
		buf.Write(inner[1 : len(inner)-1])
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// ObserverPos is the seat sentinel for connections that watch instead of play.
const ObserverPos = 7
