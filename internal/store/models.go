package store

import "time"

// DuelRecordSummary is the listing row of a stored duel; the full journal is
// fetched with GetDuelRecord.
type DuelRecordSummary struct {
	ID        string     `json:"id"`
	Room      string     `json:"room"`
	Game      int        `json:"game"`
	Players   []string   `json:"players"`
	Winner    int        `json:"winner"`
	WinReason int        `json:"win_reason"`
	TurnCount int        `json:"turn_count"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
}
