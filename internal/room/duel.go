package room

import (
	"context"
	"fmt"
	"maps"
	"time"

	"duel-server/internal/deck"
	"duel-server/internal/engine"
	"duel-server/internal/journal"
	"duel-server/internal/protocol"
)

const persistTimeout = 5 * time.Second

// startDuel opens the engine session for a game whose turn order is settled.
func (r *Room) startDuel() {
	seed := r.opts.Seed()
	now := r.opts.Now()

	players := make([]journal.Player, 0, len(r.seats))
	for _, c := range r.seats {
		players = append(players, journal.Player{Name: c.Name(), Pos: c.pos, Deck: c.deck.Clone()})
	}
	ingame := make([]journal.Player, 0, len(r.seats))
	decks := make([]deck.Deck, 0, len(r.seats))
	for ip := 0; ip < 2; ip++ {
		for _, seat := range r.teamSeats(r.duelPosOfIngame(ip)) {
			ingame = append(ingame, players[seat])
			decks = append(decks, r.seats[seat].deck.Clone())
		}
	}
	rec := journal.New(r.name, len(r.records), seed, r.host, players, ingame, now)
	r.records = append(r.records, rec)

	session, err := r.opts.Engine.Create(r.ctx, engine.CreateOptions{
		Seed:     seed,
		Host:     r.host,
		Decks:    decks,
		Registry: maps.Clone(r.registry),
	})
	if err != nil {
		r.fatal(fmt.Errorf("create engine session: %w", err))
		return
	}
	r.session = session
	r.awaiting = false
	r.lastHint = nil
	r.lastRequest = nil
	r.matchKill = false
	r.timeBank = [2]time.Duration{r.host.TimeLimit, r.host.TimeLimit}
	r.setStage(StageDueling)
	metricDuelsStarted.Add(1)
	r.logger.Info().Str("record", rec.ID).Uint64("seed", seed).Bool("swapped", r.swapped).Msg("duel_start")

	info := engine.StartInfo{LP: [2]int32{r.host.StartLP, r.host.StartLP}}
	for ip := 0; ip < 2; ip++ {
		if info.Deck[ip], err = session.QueryFieldCount(r.ctx, ip, engine.LocDeck); err != nil {
			r.fatal(err)
			return
		}
		if info.Extra[ip], err = session.QueryFieldCount(r.ctx, ip, engine.LocExtra); err != nil {
			r.fatal(err)
			return
		}
	}
	for _, c := range r.seats {
		c.sendGame(engine.EncodeStart(byte(r.clientIngame(c)), info))
	}
	for _, c := range r.observers {
		c.sendGame(engine.EncodeStart(engine.StartObserver, info))
	}
	r.pump()
}

// resumeInfo is the START header for a connection joining a running game; the
// counts stay zero since a field refresh follows.
func (r *Room) resumeInfo() engine.StartInfo {
	return engine.StartInfo{LP: [2]int32{r.host.StartLP, r.host.StartLP}}
}

// pump advances the engine until it waits for a player or the game ends.
func (r *Room) pump() {
	for r.session != nil {
		batch, err := r.session.Advance(r.ctx)
		if err != nil {
			r.fatal(err)
			return
		}
		for _, msg := range batch.Messages {
			ended, err := r.handleEngineMessage(msg)
			if err != nil {
				r.fatal(err)
				return
			}
			if ended {
				return
			}
		}
		switch batch.Status {
		case engine.StatusContinue:
		case engine.StatusAwaiting:
			if !r.awaiting {
				r.fatal(fmt.Errorf("%w: engine waits but asked nothing", engine.ErrProtocol))
				return
			}
			r.startTimer()
			return
		case engine.StatusEnd:
			r.fatal(fmt.Errorf("%w: game ended without a result", engine.ErrProtocol))
			return
		default:
			r.fatal(fmt.Errorf("%w: unknown status %d", engine.ErrProtocol, batch.Status))
			return
		}
	}
}

// handleEngineMessage journals and fans out one engine message. It reports
// whether the game ended.
func (r *Room) handleEngineMessage(msg engine.Message) (bool, error) {
	rec := r.currentRecord()
	if msg.Type == engine.MsgRetry && !rec.HasPending() {
		return false, fmt.Errorf("%w: retry with no pending response", engine.ErrProtocol)
	}
	if msg.Type.IsResponseType() && (msg.Player < 0 || msg.Player > 1) {
		return false, fmt.Errorf("%w: request for player %d", engine.ErrProtocol, msg.Player)
	}
	rec.Observe(msg)

	switch {
	case msg.Type == engine.MsgNewTurn && !engine.IsTeammateTurn(msg.Raw):
		r.timeBank = [2]time.Duration{r.host.TimeLimit, r.host.TimeLimit}
	case msg.Type == engine.MsgHint:
		m := msg
		r.lastHint = &m
	case msg.Type == engine.MsgMatchKill:
		r.matchKill = true
	case msg.Type.IsResponseType():
		m := msg
		r.lastRequest = &m
		r.awaiting = true
		r.expected = msg.Player
	}

	if err := r.route(msg); err != nil {
		return false, err
	}

	if msg.Type == engine.MsgWin {
		player, reason, ok := engine.DecodeWin(msg.Raw)
		if !ok {
			return false, fmt.Errorf("%w: short win message", engine.ErrProtocol)
		}
		winner := journal.Draw
		if player < 2 {
			winner = r.duelPosOfIngame(player)
		}
		r.endDuel(winner, reason, r.matchKill)
		return true, nil
	}
	return false, nil
}

func (r *Room) response(c *Client, m protocol.Response) {
	if !r.awaiting || c.pos != r.operatingSeat(r.expected) {
		return
	}
	if err := r.currentRecord().SetPendingResponse(m.Data); err != nil {
		r.logger.Warn().Err(err).Str("client", c.ID).Msg("response_rejected")
		return
	}
	r.stopTimer()
	r.awaiting = false
	if err := r.session.SetResponse(r.ctx, m.Data); err != nil {
		r.fatal(err)
		return
	}
	r.pump()
}

func (r *Room) surrender(c *Client) {
	if r.session == nil {
		return
	}
	r.forceDuelWin(r.duelPos(c.pos), engine.WinReasonSurrender, false)
}

// forceDuelWin ends the running game against loser without asking the engine,
// journaling a WIN so the replay shows how it ended.
func (r *Room) forceDuelWin(loser, reason int, matchOver bool) {
	winner := 1 - loser
	msg := engine.Broadcast(engine.EncodeWin(r.ingamePos(winner), reason))
	r.currentRecord().Observe(msg)
	if err := r.route(msg); err != nil {
		r.logger.Warn().Err(err).Msg("route_forced_win_failed")
	}
	r.endDuel(winner, reason, matchOver)
}

// forfeitMatch ends the whole match against a duel position whose player left
// for good.
func (r *Room) forfeitMatch(loser int) {
	if r.stage == StageDueling && r.session != nil {
		r.forceDuelWin(loser, engine.WinReasonDisconnect, true)
		return
	}
	r.broadcast(protocol.Win{Player: 1 - loser, Reason: engine.WinReasonDisconnect})
	r.broadcast(protocol.DuelEnd{})
	r.finalize("forfeit")
}

// endDuel settles a finished game and decides whether the match goes on.
// winner is a duel position or journal.Draw.
func (r *Room) endDuel(winner, reason int, matchOver bool) {
	r.stopTimer()
	r.awaiting = false
	if r.session != nil {
		ctx, cancel := context.WithTimeout(r.ctx, persistTimeout)
		delta, err := r.session.Dispose(ctx)
		cancel()
		if err != nil {
			r.logger.Warn().Err(err).Msg("engine_dispose_failed")
		}
		maps.Copy(r.registry, delta)
		r.session = nil
	}

	rec := r.currentRecord()
	rec.SetOutcome(winner, reason, r.opts.Now())
	r.persist(rec)
	metricDuelsFinished.Add(1)

	r.lastLoser = -1
	if winner != journal.Draw {
		r.wins[winner]++
		r.lastLoser = 1 - winner
	}
	r.logger.Info().Str("record", rec.ID).Int("winner", winner).Int("reason", reason).Ints("wins", r.wins[:]).Msg("duel_end")

	r.broadcast(protocol.Win{Player: winner, Reason: reason})
	if artifact, err := rec.MarshalArtifact(); err == nil {
		r.broadcast(protocol.ReplayArtifact{ID: rec.ID, Data: artifact})
	} else {
		r.logger.Warn().Err(err).Msg("replay_marshal_failed")
	}

	if matchOver || r.matchDecided() {
		r.broadcast(protocol.DuelEnd{})
		r.finalize("match_end")
		return
	}
	r.enterSiding()
}

func (r *Room) matchDecided() bool {
	threshold := r.host.WinThreshold()
	if r.wins[0] >= threshold || r.wins[1] >= threshold {
		return true
	}
	return len(r.records) >= r.host.MaxDuels()
}

// fatal finalizes the room after an engine failure; a desynchronized engine is
// never trusted for further play.
func (r *Room) fatal(err error) {
	metricEngineErrors.Add(1)
	r.logger.Error().Err(err).Str("stage", r.stage.String()).Msg("engine_failure")
	if rec := r.currentRecord(); rec != nil && !rec.Finished() {
		rec.SetOutcome(journal.Draw, -1, r.opts.Now())
		r.persist(rec)
	}
	r.broadcast(protocol.Notice{Text: "duel aborted: engine failure"})
	r.broadcast(protocol.DuelEnd{})
	r.finalize("engine_failure")
}

func (r *Room) persist(rec *journal.Record) {
	if r.opts.Sink == nil {
		return
	}
	sink := r.opts.Sink
	r.opts.persists.Add(1)
	go func() {
		defer r.opts.persists.Done()
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		if err := sink.SaveDuelRecord(ctx, rec); err != nil {
			metricPersistErrors.Add(1)
			r.logger.Error().Err(err).Str("record", rec.ID).Msg("persist_record_failed")
			return
		}
		metricPersisted.Add(1)
	}()
}

// startTimer arms the time bank of the side the engine waits on.
func (r *Room) startTimer() {
	if r.host.TimeLimit <= 0 {
		return
	}
	r.stopTimer()
	r.timerToken++
	token := r.timerToken
	ip := r.expected
	r.timerStarted = time.Now()
	r.timer = time.AfterFunc(r.timeBank[ip], func() {
		_ = r.call(func() {
			if r.timerToken != token || !r.awaiting || r.session == nil {
				return
			}
			r.logger.Info().Int("ingame", ip).Msg("action_timeout")
			metricTimeouts.Add(1)
			r.forceDuelWin(r.duelPosOfIngame(ip), engine.WinReasonTimeout, false)
		})
	})
}

func (r *Room) stopTimer() {
	if r.timer == nil {
		return
	}
	r.timer.Stop()
	r.timer = nil
	r.timerToken++
	ip := r.expected
	r.timeBank[ip] -= time.Since(r.timerStarted)
	if r.timeBank[ip] < 0 {
		r.timeBank[ip] = 0
	}
}
