package room

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"duel-server/internal/deck"
	"duel-server/internal/ids"
	"duel-server/internal/protocol"

	"github.com/rs/zerolog/log"
)

const writeTimeout = 10 * time.Second

// Conn is the transport half of a client.
type Conn interface {
	Write(ctx context.Context, data []byte) error
	Close() error
}

// Client is one connected socket. Seat fields belong to the owning room's
// actor; the identity fields are set before the client joins any room.
type Client struct {
	ID   string
	addr string
	conn Conn
	out  *outbox

	mu       sync.Mutex
	roomName string
	name     string
	token    string
	joined   atomic.Bool

	pos            int
	host           bool
	ready          bool
	sided          bool
	deck           deck.Deck
	startDeck      deck.Deck
	detached       bool
	left           bool
	claim          *claim
	disconnectedAt time.Time
}

func NewClient(conn Conn, addr string) *Client {
	c := &Client{
		ID:   ids.New(),
		addr: addr,
		conn: conn,
		out:  newOutbox(),
		pos:  protocol.ObserverPos,
	}
	go c.writeLoop()
	return c
}

func (c *Client) Addr() string { return c.addr }

func (c *Client) Name() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.name
}

func (c *Client) IdentityToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

func (c *Client) setInfo(name, token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.name = name
	c.token = token
}

func (c *Client) RoomName() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.roomName
}

func (c *Client) setRoomName(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.roomName = name
}

// Joined reports whether the client completed a join; the transport uses it to
// enforce the handshake timeout.
func (c *Client) Joined() bool { return c.joined.Load() }

func (c *Client) isPlayer() bool { return c.pos != protocol.ObserverPos }

func (c *Client) send(msg protocol.Outbound) {
	data, err := protocol.Encode(msg)
	if err != nil {
		log.Warn().Err(err).Str("client", c.ID).Str("type", msg.OutboundType()).Msg("encode_outbound_failed")
		return
	}
	c.out.push(outItem{data: data})
}

func (c *Client) sendGame(data []byte) {
	if data == nil {
		return
	}
	c.send(protocol.GameMessage{Data: data})
}

// closeConn flushes everything queued so far, then closes the socket.
func (c *Client) closeConn() {
	c.out.push(outItem{close: true})
}

// Flush blocks until everything queued before the call was written.
func (c *Client) Flush(ctx context.Context) error {
	done := make(chan struct{})
	if !c.out.push(outItem{done: done}) {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client) writeLoop() {
	for {
		it := c.out.pop()
		switch {
		case it.done != nil:
			close(it.done)
		case it.close:
			if err := c.conn.Close(); err != nil {
				log.Debug().Err(err).Str("client", c.ID).Msg("close_conn_failed")
			}
			return
		default:
			ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
			err := c.conn.Write(ctx, it.data)
			cancel()
			if err != nil {
				metricSendErrors.Add(1)
				log.Warn().Err(err).Str("client", c.ID).Msg("send_failed")
			}
		}
	}
}

type outItem struct {
	data  []byte
	done  chan struct{}
	close bool
}

// outbox is an unbounded FIFO so the room never blocks on a slow socket.
type outbox struct {
	mu     sync.Mutex
	items  []outItem
	wake   chan struct{}
	closed bool
}

func newOutbox() *outbox {
	return &outbox{wake: make(chan struct{}, 1)}
}

func (o *outbox) push(it outItem) bool {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return false
	}
	o.items = append(o.items, it)
	if it.close {
		o.closed = true
	}
	o.mu.Unlock()
	select {
	case o.wake <- struct{}{}:
	default:
	}
	return true
}

func (o *outbox) pop() outItem {
	for {
		o.mu.Lock()
		if len(o.items) > 0 {
			it := o.items[0]
			o.items[0] = outItem{}
			o.items = o.items[1:]
			o.mu.Unlock()
			return it
		}
		o.mu.Unlock()
		<-o.wake
	}
}
