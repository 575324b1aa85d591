package protocol

import "time"

const (
	ModeSingle uint8 = 0
	ModeMatch  uint8 = 1 << 0
	ModeTag    uint8 = 1 << 1
)

// HostInfo is the per-room duel configuration chosen by whoever created the room.
type HostInfo struct {
	Mode        uint8         `json:"mode"`
	Rule        int           `json:"rule"`
	StartLP     int32         `json:"start_lp"`
	StartHand   int           `json:"start_hand"`
	DrawCount   int           `json:"draw_count"`
	TimeLimit   time.Duration `json:"time_limit"`
	NoCheckDeck bool          `json:"no_check_deck"`
	BestOf      int           `json:"best_of,omitempty"`
}

func (h HostInfo) IsTag() bool   { return h.Mode&ModeTag != 0 }
func (h HostInfo) IsMatch() bool { return h.Mode&ModeMatch != 0 || h.BestOf > 1 }

// SeatCount is the fixed size of the player table.
func (h HostInfo) SeatCount() int {
	if h.IsTag() {
		return 4
	}
	return 2
}

// WinThreshold is the number of duel wins that decides the match.
func (h HostInfo) WinThreshold() int {
	if h.BestOf > 1 {
		return h.BestOf/2 + 1
	}
	if h.Mode&ModeMatch != 0 {
		return 2
	}
	return 1
}

// MaxDuels caps the number of games in a match so draws cannot extend it forever.
func (h HostInfo) MaxDuels() int {
	return 2*h.WinThreshold() - 1
}
