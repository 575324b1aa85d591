package room

import (
	"context"
	"time"

	"duel-server/internal/deck"
	"duel-server/internal/engine"
	"duel-server/internal/protocol"
)

const indexTimeout = 2 * time.Second

// ticket holds a seat for a player whose socket dropped mid-match.
type ticket struct {
	identity string
	seat     int
	client   *Client
	timer    *time.Timer
}

type ticketBook struct {
	byIdentity map[string]*ticket
}

func newTicketBook() *ticketBook {
	return &ticketBook{byIdentity: map[string]*ticket{}}
}

func (b *ticketBook) add(t *ticket) { b.byIdentity[t.identity] = t }

func (b *ticketBook) lookup(identity string) (*ticket, bool) {
	t, ok := b.byIdentity[identity]
	return t, ok
}

// claim consumes the ticket; whoever claims first wins, later claims fail.
func (b *ticketBook) claim(identity string) (*ticket, error) {
	t, ok := b.byIdentity[identity]
	if !ok {
		return nil, ErrTicketNotFound
	}
	delete(b.byIdentity, identity)
	if t.timer != nil {
		t.timer.Stop()
	}
	return t, nil
}

func (b *ticketBook) drain() []*ticket {
	out := make([]*ticket, 0, len(b.byIdentity))
	for id, t := range b.byIdentity {
		if t.timer != nil {
			t.timer.Stop()
		}
		out = append(out, t)
		delete(b.byIdentity, id)
	}
	return out
}

func (b *ticketBook) len() int { return len(b.byIdentity) }

// claim is the state of a connection trying to take over a seat.
type claim struct {
	identity string
	target   *Client
	kick     bool
}

// holdSeat detaches c from its socket but keeps the seat, arming a ticket
// that a reconnecting client with the same identity can claim.
func (r *Room) holdSeat(c *Client) {
	identity := r.opts.Identity(c)
	c.detached = true
	c.disconnectedAt = r.opts.Now()
	c.closeConn()

	t := &ticket{identity: identity, seat: c.pos, client: c}
	r.tickets.add(t)
	// A duplicate login waiting to kick c now reclaims through the ticket.
	for _, w := range r.claims {
		if w.claim != nil && w.claim.target == c {
			w.claim.kick = false
		}
	}
	t.timer = time.AfterFunc(r.opts.ReconnectTimeout, func() {
		_ = r.call(func() { r.expireTicket(t) })
	})
	r.putIndex(t)
	metricTicketsCreated.Add(1)
	r.logger.Info().Str("client", c.ID).Int("pos", c.pos).Str("ticket", identity).Dur("timeout", r.opts.ReconnectTimeout).Msg("reconnect_ticket_created")
}

// expireTicket turns an unclaimed ticket into a permanent leave.
func (r *Room) expireTicket(t *ticket) {
	cur, ok := r.tickets.lookup(t.identity)
	if !ok || cur != t {
		return
	}
	_, _ = r.tickets.claim(t.identity)
	r.dropIndex(t)
	metricTicketsExpired.Add(1)
	r.logger.Info().Str("ticket", t.identity).Int("pos", t.seat).Msg("reconnect_ticket_expired")
	for _, c := range append([]*Client(nil), r.claims...) {
		if c.claim != nil && c.claim.target == t.client && !c.claim.kick {
			c.send(protocol.ErrorMessage{Code: protocol.ErrReconnect, Detail: ErrTicketNotFound.Error()})
			r.disconnect(c, true)
		}
	}
	r.vacate(t.client)
}

// tryClaim turns a joining client into a pre-reconnecting one when it matches
// a live ticket, or, in kick mode, a seated duplicate login.
func (r *Room) tryClaim(c *Client) bool {
	identity := r.opts.Identity(c)
	var cl *claim
	if t, ok := r.tickets.lookup(identity); ok {
		cl = &claim{identity: identity, target: t.client}
	} else if r.opts.KickReconnect && r.stage != StageBegin {
		for _, s := range r.seats {
			if s != nil && !s.detached && !s.left && s != c && r.opts.Identity(s) == identity {
				cl = &claim{identity: identity, target: s, kick: true}
				break
			}
		}
	}
	if cl == nil {
		return false
	}
	c.claim = cl
	r.claims = append(r.claims, c)
	r.logger.Info().Str("client", c.ID).Int("pos", cl.target.pos).Bool("kick", cl.kick).Msg("reconnect_claim_started")
	c.send(protocol.JoinInfo{Room: r.name, Host: r.host})
	c.send(protocol.ReconnectPrompt{Pos: cl.target.pos})
	return true
}

// verifyClaim checks the resubmitted deck; a mismatch keeps the client
// pre-reconnecting so it can try again.
func (r *Room) verifyClaim(c *Client, m protocol.ReadyDeck) {
	cl := c.claim
	d := deck.Split(m.Main, m.Extra, m.Side, r.opts.Cards)
	if !deckMatches(cl.target, d) {
		c.send(protocol.ErrorMessage{Code: protocol.ErrDeck, Detail: "deck does not match the reconnecting seat"})
		return
	}
	if !cl.kick {
		t, err := r.tickets.claim(cl.identity)
		if err != nil || t.client != cl.target {
			c.send(protocol.ErrorMessage{Code: protocol.ErrReconnect, Detail: ErrTicketNotFound.Error()})
			r.disconnect(c, true)
			return
		}
		r.dropIndex(t)
	} else if cl.target.left || cl.target.detached {
		c.send(protocol.ErrorMessage{Code: protocol.ErrReconnect, Detail: "seat no longer held"})
		r.disconnect(c, true)
		return
	}
	r.finishClaim(c)
}

// finishClaim swaps c into the target's seat and resyncs it for the stage.
func (r *Room) finishClaim(c *Client) {
	cl := c.claim
	old := cl.target
	r.removeClaim(c)
	c.claim = nil

	c.pos = old.pos
	c.host = old.host
	c.ready = old.ready
	c.sided = old.sided
	c.deck = old.deck
	c.startDeck = old.startDeck
	r.seats[c.pos] = c
	r.removeObserver(old)
	if r.decider == old {
		r.decider = c
	}

	old.left = true
	old.host = false
	old.setRoomName("")
	if cl.kick {
		old.send(protocol.ErrorMessage{Code: protocol.ErrKicked, Detail: "logged in from another connection"})
	}
	old.closeConn()

	metricReconnects.Add(1)
	r.logger.Info().Str("client", c.ID).Str("replaced", old.ID).Int("pos", c.pos).Bool("kick", cl.kick).Str("stage", r.stage.String()).Msg("reconnected")
	r.resync(c)
}

func (r *Room) resync(c *Client) {
	r.sendLobby(c)
	dp := r.duelPos(c.pos)
	switch r.stage {
	case StageFinger:
		c.send(protocol.DuelStart{})
		c.send(r.deckCountFor(dp))
		if r.hands[dp] == 0 && c.pos == r.firstSeat(dp) {
			c.send(protocol.SelectHand{})
		}
	case StageFirstGo:
		c.send(protocol.DuelStart{})
		c.send(r.deckCountFor(dp))
		if r.decider == c {
			c.send(protocol.SelectTurnOrder{})
		}
	case StageSiding:
		if c.sided {
			c.send(protocol.WaitingSide{})
		} else {
			c.send(protocol.ChangeSide{})
		}
	case StageDueling:
		if err := r.resyncDuel(c); err != nil {
			r.fatal(err)
		}
	}
}

// resyncDuel rebuilds a running game for a reconnected player: a bare START,
// enough NEW_TURNs to land on the right turn parity, the phase, the field,
// then whatever the engine is waiting for.
func (r *Room) resyncDuel(c *Client) error {
	ip := r.clientIngame(c)
	c.send(protocol.DuelStart{})
	c.sendGame(engine.EncodeStart(byte(ip), r.resumeInfo()))

	if turns := r.turnCount(); turns > 0 {
		c.sendGame(engine.EncodeNewTurn(0))
		if turns%2 == 0 {
			c.sendGame(engine.EncodeNewTurn(1))
		}
	}
	if phase := r.phase(); phase != 0 {
		c.sendGame(engine.EncodeNewPhase(phase))
	}
	if err := r.refreshAllFor(c); err != nil {
		return err
	}

	if r.awaiting && c.pos == r.operatingSeat(r.expected) {
		if r.lastHint != nil && r.lastHint.Player == r.expected {
			c.sendGame(r.viewFor(c, *r.lastHint))
		}
		if r.lastRequest != nil {
			c.sendGame(r.viewFor(c, *r.lastRequest))
		}
		return nil
	}
	c.sendGame(engine.EncodeWaiting())
	return nil
}

func (r *Room) putIndex(t *ticket) {
	ctx, cancel := context.WithTimeout(r.ctx, indexTimeout)
	defer cancel()
	if err := r.opts.Index.Put(ctx, t.identity, r.name, r.opts.ReconnectTimeout); err != nil {
		r.logger.Warn().Err(err).Str("ticket", t.identity).Msg("reclaim_index_put_failed")
	}
}

func (r *Room) dropIndex(t *ticket) {
	ctx, cancel := context.WithTimeout(context.Background(), indexTimeout)
	defer cancel()
	if err := r.opts.Index.Delete(ctx, t.identity, r.name); err != nil {
		r.logger.Warn().Err(err).Str("ticket", t.identity).Msg("reclaim_index_delete_failed")
	}
}
