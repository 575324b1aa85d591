package room

import (
	"math/rand/v2"
	"net"
	"sync"
	"time"

	"duel-server/internal/deck"
	"duel-server/internal/engine"
	"duel-server/internal/journal"
	"duel-server/internal/protocol"
	"duel-server/internal/reclaim"
)

const defaultReconnectTimeout = 3 * time.Minute

// IdentityFunc keys reclaim tickets; two connections with the same identity
// are treated as the same player.
type IdentityFunc func(c *Client) string

// IdentityAddressName combines the peer IP (port dropped) with the declared name.
func IdentityAddressName(c *Client) string {
	host, _, err := net.SplitHostPort(c.Addr())
	if err != nil {
		host = c.Addr()
	}
	return host + "|" + c.Name()
}

func IdentityName(c *Client) string { return c.Name() }

// IdentityToken prefers the client supplied token and falls back to the name.
func IdentityToken(c *Client) string {
	if t := c.IdentityToken(); t != "" {
		return "token|" + t
	}
	return c.Name()
}

// Hook runs before the per-message chain for every inbound message. Not calling
// next drops the message.
type Hook func(c *Client, msg protocol.Inbound, next func())

type Options struct {
	Engine           engine.Factory
	Cards            deck.CardReader
	Checker          deck.Checker
	Identity         IdentityFunc
	CanReconnect     func(c *Client) bool
	ReconnectTimeout time.Duration
	KickReconnect    bool
	Sink             journal.Sink
	Index            reclaim.Index
	ProtocolVersion  int
	Hooks            []Hook
	Seed             func() uint64
	Now              func() time.Time

	// persists tracks record writes still in flight; shared by every room
	// of one registry.
	persists *sync.WaitGroup
}

func (o Options) withDefaults() Options {
	if o.Checker == nil {
		o.Checker = deck.DefaultChecker{Cards: o.Cards}
	}
	if o.Identity == nil {
		o.Identity = IdentityAddressName
	}
	if o.ReconnectTimeout <= 0 {
		o.ReconnectTimeout = defaultReconnectTimeout
	}
	if o.Index == nil {
		o.Index = reclaim.NewMemoryIndex()
	}
	if o.Seed == nil {
		o.Seed = rand.Uint64
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.persists == nil {
		o.persists = &sync.WaitGroup{}
	}
	return o
}

func (o Options) canReconnect(c *Client) bool {
	return o.CanReconnect == nil || o.CanReconnect(c)
}
