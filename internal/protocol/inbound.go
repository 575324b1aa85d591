package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

type InboundType string

const (
	TypeJoin       InboundType = "join"
	TypePlayerInfo InboundType = "player_info"
	TypeReadyDeck  InboundType = "ready_deck"
	TypeUnready    InboundType = "unready"
	TypeStart      InboundType = "start"
	TypeKick       InboundType = "kick"
	TypeToObserver InboundType = "to_observer"
	TypeToDuelist  InboundType = "to_duelist"
	TypeHandChoice InboundType = "hand_choice"
	TypeTurnOrder  InboundType = "turn_order"
	TypeResponse   InboundType = "response"
	TypeSurrender  InboundType = "surrender"
	TypeChat       InboundType = "chat"
	TypeDisconnect InboundType = "disconnect"
)

var ErrUnknownType = errors.New("unknown message type")

type Inbound interface {
	InboundType() InboundType
}

type Join struct {
	Room    string `json:"room"`
	Pass    string `json:"pass,omitempty"`
	Version int    `json:"version,omitempty"`
}

type PlayerInfo struct {
	Name          string `json:"name"`
	IdentityToken string `json:"identity_token,omitempty"`
}

type ReadyDeck struct {
	Main  []uint32 `json:"main"`
	Extra []uint32 `json:"extra"`
	Side  []uint32 `json:"side"`
}

type Unready struct{}
type Start struct{}

type Kick struct {
	Pos int `json:"pos"`
}

type ToObserver struct{}
type ToDuelist struct{}

const (
	HandScissors = 1
	HandRock     = 2
	HandPaper    = 3
)

type HandChoice struct {
	Hand int `json:"hand"`
}

type TurnOrderChoice struct {
	First bool `json:"first"`
}

type Response struct {
	Data []byte `json:"data"`
}

type Surrender struct{}

type Chat struct {
	Text string `json:"text"`
}

// Disconnect is synthesised by the transport (System=false) or by server timers (System=true).
type Disconnect struct {
	System bool `json:"system"`
}

func (Join) InboundType() InboundType            { return TypeJoin }
func (PlayerInfo) InboundType() InboundType      { return TypePlayerInfo }
func (ReadyDeck) InboundType() InboundType       { return TypeReadyDeck }
func (Unready) InboundType() InboundType         { return TypeUnready }
func (Start) InboundType() InboundType           { return TypeStart }
func (Kick) InboundType() InboundType            { return TypeKick }
func (ToObserver) InboundType() InboundType      { return TypeToObserver }
func (ToDuelist) InboundType() InboundType       { return TypeToDuelist }
func (HandChoice) InboundType() InboundType      { return TypeHandChoice }
func (TurnOrderChoice) InboundType() InboundType { return TypeTurnOrder }
func (Response) InboundType() InboundType        { return TypeResponse }
func (Surrender) InboundType() InboundType       { return TypeSurrender }
func (Chat) InboundType() InboundType            { return TypeChat }
func (Disconnect) InboundType() InboundType      { return TypeDisconnect }

// Decode parses a client frame of the form {"type": "...", ...}.
func Decode(raw []byte) (Inbound, error) {
	var base struct {
		Type InboundType `json:"type"`
	}
	if err := json.Unmarshal(raw, &base); err != nil {
		return nil, err
	}
	var msg Inbound
	switch base.Type {
	case TypeJoin:
		msg = &Join{}
	case TypePlayerInfo:
		msg = &PlayerInfo{}
	case TypeReadyDeck:
		msg = &ReadyDeck{}
	case TypeUnready:
		return Unready{}, nil
	case TypeStart:
		return Start{}, nil
	case TypeKick:
		msg = &Kick{}
	case TypeToObserver:
		return ToObserver{}, nil
	case TypeToDuelist:
		return ToDuelist{}, nil
	case TypeHandChoice:
		msg = &HandChoice{}
	case TypeTurnOrder:
		msg = &TurnOrderChoice{}
	case TypeResponse:
		msg = &Response{}
	case TypeSurrender:
		return Surrender{}, nil
	case TypeChat:
		msg = &Chat{}
	case TypeDisconnect:
		// clients cannot claim a system-initiated disconnect
		return Disconnect{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, base.Type)
	}
	if err := json.Unmarshal(raw, msg); err != nil {
		return nil, err
	}
	return deref(msg), nil
}

func deref(msg Inbound) Inbound {
	switch m := msg.(type) {
	case *Join:
		return *m
	case *PlayerInfo:
		return *m
	case *ReadyDeck:
		return *m
	case *Kick:
		return *m
	case *HandChoice:
		return *m
	case *TurnOrderChoice:
		return *m
	case *Response:
		return *m
	case *Chat:
		return *m
	}
	return msg
}

// EncodeInbound is the client-side counterpart of Decode.
func EncodeInbound(msg Inbound) ([]byte, error) {
	return withType(string(msg.InboundType()), msg)
}
