package journal

import "duel-server/internal/engine"

type PhaseMark struct {
	Turn  int    `json:"turn"`
	Phase uint16 `json:"phase"`
}

// Progress is what a linear walk of a record's message log reconstructs.
type Progress struct {
	Turns      int         `json:"turns"`
	TurnPlayer int         `json:"turn_player"`
	Phase      uint16      `json:"phase"`
	Phases     []PhaseMark `json:"phases"`
	Responses  int         `json:"responses"`
	IngameWin  int         `json:"ingame_winner"`
	WinReason  int         `json:"win_reason"`
	Ended      bool        `json:"ended"`
}

// Replay walks the message log without any engine state.
func (r *Record) Replay() Progress {
	p := Progress{Responses: len(r.Responses), IngameWin: Draw}
	for _, raw := range r.Messages {
		switch engine.TypeOf(raw) {
		case engine.MsgNewTurn:
			if engine.IsTeammateTurn(raw) {
				continue
			}
			p.Turns++
			if len(raw) > 1 {
				p.TurnPlayer = int(raw[1] & 0x1)
			}
		case engine.MsgNewPhase:
			if phase, ok := engine.DecodeNewPhase(raw); ok {
				p.Phase = phase
				p.Phases = append(p.Phases, PhaseMark{Turn: p.Turns, Phase: phase})
			}
		case engine.MsgWin:
			if player, reason, ok := engine.DecodeWin(raw); ok {
				p.Ended = true
				p.WinReason = reason
				if player < 2 {
					p.IngameWin = player
				}
			}
		}
	}
	return p
}
