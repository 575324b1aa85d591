package room

import (
	"bytes"

	"duel-server/internal/deck"
	"duel-server/internal/protocol"
)

// beginGame opens a game of the match with rock-paper-scissors.
func (r *Room) beginGame() {
	r.hands = [2]int{}
	r.decider = nil
	r.setStage(StageFinger)
	r.broadcast(protocol.DuelStart{})
	r.sendDeckCounts()
	r.promptHands()
}

// sendDeckCounts tells everyone the section sizes of both sides' decks.
// Observers see side 0 as self.
func (r *Room) sendDeckCounts() {
	for _, c := range r.seats {
		if c != nil {
			c.send(r.deckCountFor(r.duelPos(c.pos)))
		}
	}
	r.broadcastObservers(r.deckCountFor(0))
}

func (r *Room) deckCountFor(dp int) protocol.DeckCount {
	return protocol.DeckCount{Self: r.sideCounts(dp), Opponent: r.sideCounts(1 - dp)}
}

func (r *Room) sideCounts(dp int) protocol.DeckCounts {
	c := r.seats[r.firstSeat(dp)]
	if c == nil {
		return protocol.DeckCounts{}
	}
	return protocol.DeckCounts{Main: len(c.deck.Main), Extra: len(c.deck.Extra), Side: len(c.deck.Side)}
}

func (r *Room) promptHands() {
	for dp := 0; dp < 2; dp++ {
		if r.hands[dp] != 0 {
			continue
		}
		if c := r.seats[r.firstSeat(dp)]; c != nil {
			c.send(protocol.SelectHand{})
		}
	}
}

// handLoses reports whether hand a loses to hand b (scissors 1, rock 2, paper 3).
func handLoses(a, b int) bool {
	return (a == protocol.HandScissors && b == protocol.HandRock) ||
		(a == protocol.HandRock && b == protocol.HandPaper) ||
		(a == protocol.HandPaper && b == protocol.HandScissors)
}

func (r *Room) handChoice(c *Client, m protocol.HandChoice) {
	if m.Hand < protocol.HandScissors || m.Hand > protocol.HandPaper {
		return
	}
	dp := r.duelPos(c.pos)
	if c.pos != r.firstSeat(dp) || r.hands[dp] != 0 {
		return
	}
	r.hands[dp] = m.Hand
	if r.hands[0] == 0 || r.hands[1] == 0 {
		return
	}

	for _, s := range r.seats {
		if s == nil {
			continue
		}
		own := r.duelPos(s.pos)
		s.send(protocol.HandResult{Self: r.hands[own], Opponent: r.hands[1-own]})
	}
	r.broadcastObservers(protocol.HandResult{Self: r.hands[0], Opponent: r.hands[1]})

	if r.hands[0] == r.hands[1] {
		r.hands = [2]int{}
		r.promptHands()
		return
	}
	winner := 0
	if handLoses(r.hands[0], r.hands[1]) {
		winner = 1
	}
	r.promptTurnOrder(winner)
}

// promptTurnOrder hands the first/second choice to a duel position.
func (r *Room) promptTurnOrder(dp int) {
	r.decider = r.seats[r.firstSeat(dp)]
	r.setStage(StageFirstGo)
	if r.decider != nil {
		r.decider.send(protocol.SelectTurnOrder{})
	}
}

func (r *Room) turnOrder(c *Client, m protocol.TurnOrderChoice) {
	if c != r.decider {
		return
	}
	deciderIsFirstPos := r.duelPos(c.pos) == 0
	r.swapped = m.First != deciderIsFirstPos
	r.decider = nil
	r.startDuel()
}

// enterSiding asks every player to resubmit their deck before the next game.
func (r *Room) enterSiding() {
	r.setStage(StageSiding)
	for _, c := range r.seats {
		if c == nil {
			continue
		}
		c.sided = false
		c.send(protocol.ChangeSide{})
	}
	r.broadcastObservers(protocol.WaitingSide{})
}

func (r *Room) sideDeck(c *Client, m protocol.ReadyDeck) {
	if c.sided {
		return
	}
	d := deck.Split(m.Main, m.Extra, m.Side, r.opts.Cards)
	if !deck.SideCompatible(c.startDeck, d) {
		c.send(protocol.ErrorMessage{Code: protocol.ErrSide, Detail: "deck differs from the one registered"})
		return
	}
	c.deck = d
	c.sided = true
	c.send(protocol.WaitingSide{})
	for _, s := range r.seats {
		if s == nil || !s.sided {
			return
		}
	}
	r.nextGame()
}

// nextGame starts the following game of the match: the previous loser picks
// turn order, after a draw the hands decide again.
func (r *Room) nextGame() {
	r.broadcast(protocol.DuelStart{})
	r.sendDeckCounts()
	if r.lastLoser < 0 {
		r.hands = [2]int{}
		r.setStage(StageFinger)
		r.promptHands()
		return
	}
	r.promptTurnOrder(r.lastLoser)
}

// deckMatches is the reclaim gate: the resubmitted deck must serialize to the
// same fingerprint as the seat's start deck (or its current sided deck).
func deckMatches(seat *Client, d deck.Deck) bool {
	fp := d.Fingerprint()
	return bytes.Equal(fp, seat.startDeck.Fingerprint()) || bytes.Equal(fp, seat.deck.Fingerprint())
}
