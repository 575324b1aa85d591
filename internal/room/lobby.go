package room

import (
	"errors"

	"duel-server/internal/deck"
	"duel-server/internal/engine"
	"duel-server/internal/protocol"
)

// maxOccupants caps players plus watchers in one room.
const maxOccupants = 64

func (r *Room) join(c *Client, m protocol.Join) {
	if r.occupants()+len(r.claims) >= maxOccupants {
		c.send(protocol.ErrorMessage{Code: protocol.ErrJoin, Detail: ErrRoomFull.Error()})
		c.closeConn()
		return
	}
	if r.pass != "" && m.Pass != r.pass {
		c.send(protocol.ErrorMessage{Code: protocol.ErrJoin, Detail: "wrong password"})
		c.closeConn()
		return
	}
	if r.occupants() == 0 && len(r.claims) == 0 {
		r.pass = m.Pass
	}
	c.setRoomName(r.name)
	c.joined.Store(true)

	if r.tryClaim(c) {
		return
	}

	c.host = r.occupants() == 0
	seat := -1
	if r.stage == StageBegin {
		seat = r.firstEmptySeat()
	}
	if seat >= 0 {
		c.pos = seat
		r.seats[seat] = c
	} else {
		c.pos = protocol.ObserverPos
		r.observers = append(r.observers, c)
	}
	r.logger.Info().Str("client", c.ID).Str("name", c.Name()).Int("pos", c.pos).Bool("host", c.host).Msg("client_joined")

	r.sendLobby(c)
	if c.isPlayer() {
		r.broadcastExcept(protocol.PlayerEnter{Pos: c.pos, Name: c.Name()}, c)
	} else {
		r.broadcastExcept(protocol.WatcherCount{Count: len(r.observers)}, c)
		r.catchUpObserver(c)
	}
}

// sendLobby gives c the room state a fresh joiner sees.
func (r *Room) sendLobby(c *Client) {
	c.send(protocol.JoinInfo{Room: r.name, Host: r.host})
	c.send(protocol.TypeChange{Pos: r.clientPos(c), Host: c.host})
	for _, s := range r.seats {
		if s == nil {
			continue
		}
		c.send(protocol.PlayerEnter{Pos: s.pos, Name: s.Name()})
		if s.ready {
			c.send(protocol.PlayerChange{Pos: s.pos, State: protocol.StateReady})
		}
	}
	c.send(protocol.WatcherCount{Count: len(r.observers)})
}

// catchUpObserver brings a watcher who arrived mid-match up to the live state.
func (r *Room) catchUpObserver(c *Client) {
	switch r.stage {
	case StageFinger, StageFirstGo:
		c.send(protocol.DuelStart{})
	case StageSiding:
		c.send(protocol.WaitingSide{})
	case StageDueling:
		c.send(protocol.DuelStart{})
		c.sendGame(engine.EncodeStart(engine.StartObserver, r.resumeInfo()))
		info, err := r.session.QueryFieldInfo(r.ctx)
		if err != nil {
			r.fatal(err)
			return
		}
		c.sendGame(engine.EncodeReloadField(info))
	}
}

func (r *Room) readyDeck(c *Client, m protocol.ReadyDeck) {
	if c.claim != nil {
		r.verifyClaim(c, m)
		return
	}
	if !c.isPlayer() {
		return
	}
	if r.stage == StageSiding {
		r.sideDeck(c, m)
		return
	}
	if c.ready {
		return
	}
	d := deck.Split(m.Main, m.Extra, m.Side, r.opts.Cards)
	if err := r.checker().Check(d); err != nil {
		msg := protocol.ErrorMessage{Code: protocol.ErrDeck, Detail: err.Error()}
		var ce *deck.CheckError
		if errors.As(err, &ce) {
			msg.Detail = string(ce.Reason)
			msg.Card = ce.Code
		}
		metricDeckRejected.Add(1)
		c.send(msg)
		c.send(protocol.PlayerChange{Pos: c.pos, State: protocol.StateNotReady})
		return
	}
	c.deck = d
	c.startDeck = d.Clone()
	c.ready = true
	r.broadcast(protocol.PlayerChange{Pos: c.pos, State: protocol.StateReady})
}

// checker is the legality check for this room; NC rooms accept any deck.
func (r *Room) checker() deck.Checker {
	if r.host.NoCheckDeck {
		return deck.NoCheck
	}
	return r.opts.Checker
}

func (r *Room) unready(c *Client) {
	if !c.isPlayer() || !c.ready {
		return
	}
	c.ready = false
	c.deck = deck.Deck{}
	c.startDeck = deck.Deck{}
	r.broadcast(protocol.PlayerChange{Pos: c.pos, State: protocol.StateNotReady})
}

func (r *Room) start(c *Client) {
	if !r.allSeated() {
		return
	}
	for _, s := range r.seats {
		if !s.ready {
			return
		}
	}
	r.logger.Info().Msg("match_start")
	r.beginGame()
}

func (r *Room) kick(c *Client, m protocol.Kick) {
	if m.Pos < 0 || m.Pos >= len(r.seats) {
		return
	}
	target := r.seats[m.Pos]
	if target == nil || target == c {
		return
	}
	r.logger.Info().Str("client", target.ID).Int("pos", target.pos).Msg("client_kicked")
	target.send(protocol.ErrorMessage{Code: protocol.ErrKicked})
	r.vacate(target)
}

func (r *Room) toObserver(c *Client) {
	if !c.isPlayer() {
		return
	}
	pos := c.pos
	r.seats[pos] = nil
	c.pos = protocol.ObserverPos
	c.ready = false
	c.deck = deck.Deck{}
	c.startDeck = deck.Deck{}
	r.observers = append(r.observers, c)
	r.broadcast(protocol.PlayerChange{Pos: pos, State: protocol.StateObserve})
	r.broadcast(protocol.WatcherCount{Count: len(r.observers)})
	c.send(protocol.TypeChange{Pos: protocol.ObserverPos, Host: c.host})
}

// toDuelist seats an observer in the first free seat, or moves a tag player to
// the next free seat after their own.
func (r *Room) toDuelist(c *Client) {
	if !c.isPlayer() {
		seat := r.firstEmptySeat()
		if seat < 0 {
			return
		}
		r.removeObserver(c)
		c.pos = seat
		r.seats[seat] = c
		r.broadcast(protocol.PlayerEnter{Pos: seat, Name: c.Name()})
		r.broadcast(protocol.WatcherCount{Count: len(r.observers)})
		c.send(protocol.TypeChange{Pos: seat, Host: c.host})
		return
	}
	if !r.host.IsTag() || c.ready {
		return
	}
	n := len(r.seats)
	for step := 1; step < n; step++ {
		next := (c.pos + step) % n
		if r.seats[next] != nil {
			continue
		}
		old := c.pos
		r.seats[old] = nil
		r.seats[next] = c
		c.pos = next
		r.broadcast(protocol.PlayerChange{Pos: old, State: protocol.StateMove, NewPos: next})
		c.send(protocol.TypeChange{Pos: next, Host: c.host})
		return
	}
}

func (r *Room) chat(c *Client, m protocol.Chat) {
	if m.Text == "" {
		return
	}
	r.broadcast(protocol.ChatMessage{Pos: r.clientPos(c), Name: c.Name(), Text: m.Text})
}

// disconnect handles a socket going away. Seated players mid-match may keep
// their seat behind a reclaim ticket; everyone else leaves for good.
func (r *Room) disconnect(c *Client, system bool) {
	if c.left || c.detached {
		return
	}
	if c.claim != nil {
		r.removeClaim(c)
		c.claim = nil
		c.left = true
		c.setRoomName("")
		c.closeConn()
		return
	}
	if c.isPlayer() && !system && r.stage != StageBegin && r.opts.canReconnect(c) {
		// One ticket per identity; a second seat with the same identity
		// could never be told apart on reconnect.
		if _, taken := r.tickets.lookup(r.opts.Identity(c)); !taken {
			r.holdSeat(c)
			return
		}
		r.logger.Warn().Str("client", c.ID).Int("pos", c.pos).Msg("reconnect_identity_in_use")
	}
	r.vacate(c)
}

// vacate removes c from the room permanently. Outside the lobby a departing
// player forfeits the match.
func (r *Room) vacate(c *Client) {
	if c.left {
		return
	}
	c.left = true
	c.setRoomName("")
	c.closeConn()

	if !c.isPlayer() {
		r.removeObserver(c)
		r.broadcast(protocol.WatcherCount{Count: len(r.observers)})
		r.reassignHost(c)
		r.finalizeIfEmpty()
		return
	}

	pos := c.pos
	r.logger.Info().Str("client", c.ID).Int("pos", pos).Str("stage", r.stage.String()).Msg("player_left")
	if r.stage != StageBegin {
		r.forfeitMatch(r.duelPos(pos))
		return
	}
	r.seats[pos] = nil
	r.broadcast(protocol.PlayerChange{Pos: pos, State: protocol.StateLeave})
	r.reassignHost(c)
	r.finalizeIfEmpty()
}

func (r *Room) reassignHost(gone *Client) {
	if !gone.host {
		return
	}
	gone.host = false
	var next *Client
	for _, s := range r.seats {
		if s != nil && !s.left {
			next = s
			break
		}
	}
	if next == nil && len(r.observers) > 0 {
		next = r.observers[0]
	}
	if next == nil {
		return
	}
	next.host = true
	next.send(protocol.TypeChange{Pos: r.clientPos(next), Host: true})
}

func (r *Room) finalizeIfEmpty() {
	if r.occupants() == 0 && r.tickets.len() == 0 {
		r.finalize("empty")
	}
}
