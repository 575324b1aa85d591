package room

import "duel-server/internal/engine"

// route fans one message out by its views, then serves any refresh markers
// it carries.
func (r *Room) route(msg engine.Message) error {
	metricMessagesRouted.Add(1)
	for _, v := range msg.Views {
		switch v.Target {
		case engine.TargetObservers:
			for _, c := range r.observers {
				c.sendGame(v.Data)
			}
		case engine.TargetPlayer0, engine.TargetPlayer1:
			r.sendToIngame(int(v.Target), v)
		}
	}
	for _, req := range msg.Refresh {
		if err := r.refresh(req); err != nil {
			return err
		}
	}
	return nil
}

// sendToIngame gives the operating seat of an ingame side the full view and
// its tag partner the teammate view.
func (r *Room) sendToIngame(ip int, v engine.View) {
	operating := r.operatingSeat(ip)
	for _, seat := range r.teamSeats(r.duelPosOfIngame(ip)) {
		c := r.seats[seat]
		if c == nil {
			continue
		}
		if seat == operating {
			c.sendGame(v.Data)
		} else {
			c.sendGame(v.Teammate)
		}
	}
}

// viewFor picks the copy of msg that c would have received when it was routed.
func (r *Room) viewFor(c *Client, msg engine.Message) []byte {
	if !c.isPlayer() {
		v, _ := msg.ViewFor(engine.TargetObservers)
		return v.Data
	}
	ip := r.clientIngame(c)
	v, ok := msg.ViewFor(engine.Target(ip))
	if !ok {
		return nil
	}
	if c.pos != r.operatingSeat(ip) {
		return v.Teammate
	}
	return v.Data
}
