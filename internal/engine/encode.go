package engine

import "encoding/binary"

// StartObserver is the player-type byte observers receive in START.
const StartObserver byte = 0x10

// StartInfo is the per-game header sent when a duel begins or is resumed.
type StartInfo struct {
	LP    [2]int32
	Deck  [2]int
	Extra [2]int
}

// EncodeStart builds a START message. playerType is the recipient's ingame
// position, or StartObserver.
func EncodeStart(playerType byte, info StartInfo) []byte {
	buf := make([]byte, 0, 2+8+8)
	buf = append(buf, byte(MsgStart), playerType)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(info.LP[0]))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(info.LP[1]))
	for i := 0; i < 2; i++ {
		buf = binary.LittleEndian.AppendUint16(buf, uint16(info.Deck[i]))
		buf = binary.LittleEndian.AppendUint16(buf, uint16(info.Extra[i]))
	}
	return buf
}

func EncodeNewTurn(player byte) []byte { return []byte{byte(MsgNewTurn), player} }

func EncodeNewPhase(phase uint16) []byte {
	return binary.LittleEndian.AppendUint16([]byte{byte(MsgNewPhase)}, phase)
}

// DecodeNewPhase returns the phase carried by a NEW_PHASE message.
func DecodeNewPhase(raw []byte) (uint16, bool) {
	if len(raw) < 3 || TypeOf(raw) != MsgNewPhase {
		return 0, false
	}
	return binary.LittleEndian.Uint16(raw[1:3]), true
}

func EncodeWaiting() []byte { return []byte{byte(MsgWaiting)} }

func EncodeWin(player int, reason int) []byte {
	return []byte{byte(MsgWin), byte(player), byte(reason)}
}

// EncodeUpdateData packs a zone query result. Each card is written as a u32
// length that counts itself followed by its data; a hidden card is just the
// length 4.
func EncodeUpdateData(player int, loc Location, cards [][]byte) []byte {
	buf := []byte{byte(MsgUpdateData), byte(player), byte(loc)}
	for _, c := range cards {
		buf = appendCard(buf, c)
	}
	return buf
}

func EncodeUpdateCard(player int, loc Location, seq int, card []byte) []byte {
	buf := []byte{byte(MsgUpdateCard), byte(player), byte(loc), byte(seq)}
	return appendCard(buf, card)
}

func EncodeReloadField(info []byte) []byte {
	return append([]byte{byte(MsgReloadField)}, info...)
}

func appendCard(buf []byte, card []byte) []byte {
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(card)+4))
	return append(buf, card...)
}

// Broadcast builds a message every recipient sees unchanged.
func Broadcast(raw []byte) Message {
	return Message{
		Raw:  raw,
		Type: TypeOf(raw),
		Views: []View{
			{Target: TargetPlayer0, Data: raw, Teammate: raw},
			{Target: TargetPlayer1, Data: raw, Teammate: raw},
			{Target: TargetObservers, Data: raw},
		},
	}
}

// Request builds a response-type message addressed to one ingame player.
func Request(player int, raw []byte) Message {
	return Message{
		Raw:    raw,
		Type:   TypeOf(raw),
		Player: player,
		Views:  []View{{Target: Target(player), Data: raw}},
	}
}

// DecodeWin returns the winning ingame player (2 for a draw) and the reason.
func DecodeWin(raw []byte) (player int, reason int, ok bool) {
	if len(raw) < 3 || TypeOf(raw) != MsgWin {
		return 0, 0, false
	}
	return int(raw[1]), int(raw[2]), true
}
