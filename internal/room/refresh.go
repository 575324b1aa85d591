package room

import "duel-server/internal/engine"

// refreshOrder is the zone order of a full resync.
var refreshOrder = []engine.Location{
	engine.LocMZone,
	engine.LocSZone,
	engine.LocHand,
	engine.LocGrave,
	engine.LocExtra,
	engine.LocRemoved,
}

// refresh re-queries a zone or card and routes the result: the owner's side
// sees every card, everyone else only the public ones.
func (r *Room) refresh(req engine.RefreshRequest) error {
	msg, err := r.queryUpdate(req)
	if err != nil {
		return err
	}
	return r.route(msg)
}

func (r *Room) queryUpdate(req engine.RefreshRequest) (engine.Message, error) {
	cards, err := r.session.QueryFieldCard(r.ctx, req.Player, req.Location, req.Sequence)
	if err != nil {
		return engine.Message{}, err
	}
	full := make([][]byte, len(cards))
	masked := make([][]byte, len(cards))
	for i, q := range cards {
		full[i] = q.Data
		if q.Public {
			masked[i] = q.Data
		}
	}

	var own, other []byte
	if req.Sequence >= 0 {
		var fullCard, maskedCard []byte
		if len(cards) > 0 {
			fullCard, maskedCard = full[0], masked[0]
		}
		own = engine.EncodeUpdateCard(req.Player, req.Location, req.Sequence, fullCard)
		other = engine.EncodeUpdateCard(req.Player, req.Location, req.Sequence, maskedCard)
	} else {
		own = engine.EncodeUpdateData(req.Player, req.Location, full)
		other = engine.EncodeUpdateData(req.Player, req.Location, masked)
	}

	return engine.Message{
		Raw:  own,
		Type: engine.TypeOf(own),
		Views: []engine.View{
			{Target: engine.Target(req.Player), Data: own, Teammate: own},
			{Target: engine.Target(1 - req.Player), Data: other, Teammate: other},
			{Target: engine.TargetObservers, Data: other},
		},
	}, nil
}

// refreshAllFor rebuilds the whole field for one client, opponent zones
// before its own.
func (r *Room) refreshAllFor(c *Client) error {
	own := r.clientIngame(c)
	for _, player := range []int{1 - own, own} {
		for _, loc := range refreshOrder {
			msg, err := r.queryUpdate(engine.RefreshRequest{Player: player, Location: loc, Sequence: -1})
			if err != nil {
				return err
			}
			c.sendGame(r.viewFor(c, msg))
		}
	}
	return nil
}
