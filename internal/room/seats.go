package room

import "duel-server/internal/protocol"

// Positions come in three flavours. A seat is the raw slot index. A duel
// position is the team (0 or 1): seats 0,1 | 2,3 in tag. An ingame position
// is the duel position after this game's first/second swap.

func (r *Room) duelPos(seat int) int {
	if r.host.IsTag() {
		return seat / 2
	}
	return seat
}

// ingamePos maps a duel position to its ingame position. It is its own
// inverse, so it also maps ingame back to duel.
func (r *Room) ingamePos(dp int) int {
	if r.swapped {
		return 1 - dp
	}
	return dp
}

func (r *Room) duelPosOfIngame(ip int) int { return r.ingamePos(ip) }

// teamSeats lists the seats that make up a duel position.
func (r *Room) teamSeats(dp int) []int {
	if r.host.IsTag() {
		return []int{dp * 2, dp*2 + 1}
	}
	return []int{dp}
}

// operatingIndex is which member of an ingame side acts at the given turn in
// tag mode: ingame 0 switches from turn 3 on, ingame 1 from turn 2 on, and
// both every two turns after that.
func operatingIndex(ip, turn int) int {
	if ip == 0 {
		if turn < 1 {
			return 0
		}
		return ((turn - 1) / 2) % 2
	}
	return (turn / 2) % 2
}

// operatingSeat is the seat allowed to answer for an ingame position now.
func (r *Room) operatingSeat(ip int) int {
	dp := r.duelPosOfIngame(ip)
	if !r.host.IsTag() {
		return dp
	}
	return dp*2 + operatingIndex(ip, r.turnCount())
}

// firstSeat is the seat that speaks for a duel position outside the duel
// (hand choice, turn order).
func (r *Room) firstSeat(dp int) int {
	return r.teamSeats(dp)[0]
}

func (r *Room) firstEmptySeat() int {
	for i, c := range r.seats {
		if c == nil {
			return i
		}
	}
	return -1
}

func (r *Room) seatedPlayers() []*Client {
	out := make([]*Client, 0, len(r.seats))
	for _, c := range r.seats {
		if c != nil {
			out = append(out, c)
		}
	}
	return out
}

func (r *Room) allSeated() bool {
	for _, c := range r.seats {
		if c == nil {
			return false
		}
	}
	return true
}

// clientIngame returns the ingame position a seated client plays for, or -1
// for observers.
func (r *Room) clientIngame(c *Client) int {
	if !c.isPlayer() {
		return -1
	}
	return r.ingamePos(r.duelPos(c.pos))
}

func (r *Room) removeObserver(c *Client) bool {
	for i, o := range r.observers {
		if o == c {
			r.observers = append(r.observers[:i], r.observers[i+1:]...)
			return true
		}
	}
	return false
}

func (r *Room) removeClaim(c *Client) bool {
	for i, o := range r.claims {
		if o == c {
			r.claims = append(r.claims[:i], r.claims[i+1:]...)
			return true
		}
	}
	return false
}

func (r *Room) clientPos(c *Client) int {
	if c.isPlayer() {
		return c.pos
	}
	return protocol.ObserverPos
}
