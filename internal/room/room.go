package room

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"duel-server/internal/engine"
	"duel-server/internal/journal"
	"duel-server/internal/protocol"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	ErrRoomClosed     = errors.New("room closed")
	ErrTicketNotFound = errors.New("ticket not found")
	ErrRoomFull       = errors.New("room full")
)

type Stage int

const (
	StageBegin Stage = iota
	StageFinger
	StageFirstGo
	StageSiding
	StageDueling
	StageEnd
)

func (s Stage) String() string {
	switch s {
	case StageBegin:
		return "begin"
	case StageFinger:
		return "finger"
	case StageFirstGo:
		return "first_go"
	case StageSiding:
		return "siding"
	case StageDueling:
		return "dueling"
	case StageEnd:
		return "end"
	default:
		return "unknown"
	}
}

// Summary is a point-in-time view of a room for listings.
type Summary struct {
	Name      string            `json:"name"`
	Host      protocol.HostInfo `json:"host"`
	Stage     string            `json:"stage"`
	Players   []string          `json:"players"`
	Observers int               `json:"observers"`
	Duels     int               `json:"duels"`
	Wins      [2]int            `json:"wins"`
}

// Room is a single actor: every state change runs on its goroutine, one
// mailbox step at a time.
type Room struct {
	name    string
	host    protocol.HostInfo
	pass    string
	opts    Options
	onClose func(*Room)
	logger  zerolog.Logger

	ctx     context.Context
	cancel  context.CancelFunc
	mailbox chan func()
	done    chan struct{}
	summary atomic.Pointer[Summary]

	closed    bool
	stage     Stage
	seats     []*Client
	observers []*Client
	claims    []*Client

	records   []*journal.Record
	session   engine.Session
	registry  map[string]string
	swapped   bool
	wins      [2]int
	lastLoser int
	matchKill bool

	hands   [2]int
	decider *Client

	awaiting    bool
	expected    int
	lastHint    *engine.Message
	lastRequest *engine.Message

	timeBank     [2]time.Duration
	timer        *time.Timer
	timerToken   uint64
	timerStarted time.Time

	tickets *ticketBook
}

func newRoom(name string, host protocol.HostInfo, opts Options, onClose func(*Room)) *Room {
	ctx, cancel := context.WithCancel(context.Background())
	r := &Room{
		name:      name,
		host:      host,
		opts:      opts,
		onClose:   onClose,
		logger:    log.With().Str("room", name).Logger(),
		ctx:       ctx,
		cancel:    cancel,
		mailbox:   make(chan func(), 64),
		done:      make(chan struct{}),
		seats:     make([]*Client, host.SeatCount()),
		registry:  map[string]string{},
		lastLoser: -1,
		tickets:   newTicketBook(),
	}
	r.publish()
	return r
}

func (r *Room) Name() string { return r.name }

func (r *Room) Host() protocol.HostInfo { return r.host }

func (r *Room) Summary() Summary { return *r.summary.Load() }

// Done is closed once the room has finalized.
func (r *Room) Done() <-chan struct{} { return r.done }

func (r *Room) run() {
	defer r.cancel()
	for fn := range r.mailbox {
		fn()
		if r.closed {
			close(r.done)
			return
		}
	}
}

// call runs fn on the room goroutine and waits for it to finish. The summary
// is republished before the caller is released.
func (r *Room) call(fn func()) error {
	finished := make(chan struct{})
	step := func() {
		fn()
		if !r.closed {
			r.publish()
		}
		close(finished)
	}
	select {
	case r.mailbox <- step:
	case <-r.done:
		return ErrRoomClosed
	}
	select {
	case <-finished:
		return nil
	case <-r.done:
		select {
		case <-finished:
			return nil
		default:
			return ErrRoomClosed
		}
	}
}

func (r *Room) publish() {
	s := &Summary{
		Name:      r.name,
		Host:      r.host,
		Stage:     r.stage.String(),
		Players:   make([]string, len(r.seats)),
		Observers: len(r.observers),
		Duels:     len(r.records),
		Wins:      r.wins,
	}
	for i, c := range r.seats {
		if c != nil {
			s.Players[i] = c.Name()
		}
	}
	r.summary.Store(s)
}

func (r *Room) setStage(s Stage) {
	r.logger.Debug().Str("from", r.stage.String()).Str("stage", s.String()).Msg("stage_change")
	r.stage = s
}

func (r *Room) currentRecord() *journal.Record {
	if len(r.records) == 0 {
		return nil
	}
	return r.records[len(r.records)-1]
}

func (r *Room) turnCount() int {
	if rec := r.currentRecord(); rec != nil {
		return rec.TurnCount
	}
	return 0
}

func (r *Room) phase() uint16 {
	if rec := r.currentRecord(); rec != nil {
		return rec.Phase
	}
	return 0
}

// occupants counts seated clients and observers.
func (r *Room) occupants() int {
	n := len(r.observers)
	for _, c := range r.seats {
		if c != nil {
			n++
		}
	}
	return n
}

func (r *Room) broadcast(msg protocol.Outbound) {
	r.broadcastExcept(msg, nil)
}

func (r *Room) broadcastExcept(msg protocol.Outbound, skip *Client) {
	for _, c := range r.seats {
		if c != nil && c != skip {
			c.send(msg)
		}
	}
	for _, c := range r.observers {
		if c != skip {
			c.send(msg)
		}
	}
}

func (r *Room) broadcastObservers(msg protocol.Outbound) {
	for _, c := range r.observers {
		c.send(msg)
	}
}

// finalize ends the room for good: live engine released, tickets cancelled,
// every connection closed.
func (r *Room) finalize(reason string) {
	if r.closed {
		return
	}
	r.stopTimer()
	if r.session != nil {
		// A duel cut short by shutdown is stored as an aborted draw.
		if rec := r.currentRecord(); rec != nil && !rec.Finished() {
			rec.SetOutcome(journal.Draw, -1, r.opts.Now())
			r.persist(rec)
		}
		ctx, cancel := context.WithTimeout(r.ctx, 5*time.Second)
		if _, err := r.session.Dispose(ctx); err != nil {
			r.logger.Warn().Err(err).Msg("engine_dispose_failed")
		}
		cancel()
		r.session = nil
	}
	for _, t := range r.tickets.drain() {
		r.dropIndex(t)
	}
	all := append(append(append([]*Client(nil), r.seats...), r.observers...), r.claims...)
	for _, c := range all {
		if c == nil || c.left {
			continue
		}
		c.left = true
		c.setRoomName("")
		c.closeConn()
	}
	r.setStage(StageEnd)
	r.closed = true
	r.publish()
	metricRoomsActive.Add(-1)
	r.logger.Info().Str("reason", reason).Int("duels", len(r.records)).Ints("wins", r.wins[:]).Msg("room_finalized")
	if r.onClose != nil {
		r.onClose(r)
	}
}
