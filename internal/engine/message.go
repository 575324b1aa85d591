package engine

type MsgType uint8

const (
	MsgRetry      MsgType = 1
	MsgHint       MsgType = 2
	MsgWaiting    MsgType = 3
	MsgStart      MsgType = 4
	MsgWin        MsgType = 5
	MsgUpdateData MsgType = 6
	MsgUpdateCard MsgType = 7

	MsgSelectBattleCmd    MsgType = 10
	MsgSelectIdleCmd      MsgType = 11
	MsgSelectEffectYn     MsgType = 12
	MsgSelectYesNo        MsgType = 13
	MsgSelectOption       MsgType = 14
	MsgSelectCard         MsgType = 15
	MsgSelectChain        MsgType = 16
	MsgSelectPlace        MsgType = 18
	MsgSelectPosition     MsgType = 19
	MsgSelectTribute      MsgType = 20
	MsgSortChain          MsgType = 21
	MsgSelectCounter      MsgType = 22
	MsgSelectSum          MsgType = 23
	MsgSelectDisfield     MsgType = 24
	MsgSortCard           MsgType = 25
	MsgSelectUnselectCard MsgType = 26

	MsgNewTurn           MsgType = 40
	MsgNewPhase          MsgType = 41
	MsgRockPaperScissors MsgType = 132
	MsgHandResult        MsgType = 133
	MsgAnnounceRace      MsgType = 140
	MsgAnnounceAttrib    MsgType = 141
	MsgAnnounceCard      MsgType = 142
	MsgAnnounceNumber    MsgType = 143
	MsgTagSwap           MsgType = 161
	MsgReloadField       MsgType = 162
	MsgMatchKill         MsgType = 170
)

var responseTypes = map[MsgType]struct{}{
	MsgSelectBattleCmd:    {},
	MsgSelectIdleCmd:      {},
	MsgSelectEffectYn:     {},
	MsgSelectYesNo:        {},
	MsgSelectOption:       {},
	MsgSelectCard:         {},
	MsgSelectChain:        {},
	MsgSelectPlace:        {},
	MsgSelectPosition:     {},
	MsgSelectTribute:      {},
	MsgSortChain:          {},
	MsgSelectCounter:      {},
	MsgSelectSum:          {},
	MsgSelectDisfield:     {},
	MsgSortCard:           {},
	MsgSelectUnselectCard: {},
	MsgRockPaperScissors:  {},
	MsgAnnounceRace:       {},
	MsgAnnounceAttrib:     {},
	MsgAnnounceCard:       {},
	MsgAnnounceNumber:     {},
}

// IsResponseType reports whether the engine waits for a player answer after t.
func (t MsgType) IsResponseType() bool {
	_, ok := responseTypes[t]
	return ok
}

// TypeOf reads the message type from the first byte of a raw engine message.
func TypeOf(raw []byte) MsgType {
	if len(raw) == 0 {
		return 0
	}
	return MsgType(raw[0])
}

// IsTeammateTurn reports whether a NEW_TURN message is the tag partner marker
// rather than a real turn change.
func IsTeammateTurn(raw []byte) bool {
	return len(raw) > 1 && raw[1]&0x2 != 0
}

type Location uint8

const (
	LocDeck    Location = 0x01
	LocHand    Location = 0x02
	LocMZone   Location = 0x04
	LocSZone   Location = 0x08
	LocGrave   Location = 0x10
	LocRemoved Location = 0x20
	LocExtra   Location = 0x40
)

// Win reasons carried in WIN messages.
const (
	WinReasonSurrender  = 0
	WinReasonTimeout    = 3
	WinReasonDisconnect = 4
)
