package room

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"duel-server/internal/protocol"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

const maxRoomName = 64

// Registry owns every live room by name. Clients refer to their room by name
// only, so a finalized room is simply gone from the map.
type Registry struct {
	opts     Options
	defaults protocol.HostInfo

	mu    sync.RWMutex
	rooms map[string]*Room
	group singleflight.Group
}

func NewRegistry(defaults protocol.HostInfo, opts Options) *Registry {
	return &Registry{
		opts:     opts.withDefaults(),
		defaults: defaults,
		rooms:    map[string]*Room{},
	}
}

func (g *Registry) Get(name string) *Room {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.rooms[name]
}

// GetOrCreate returns the live room for name, creating it exactly once even
// when several joins race.
func (g *Registry) GetOrCreate(name string) *Room {
	if r := g.Get(name); r != nil {
		return r
	}
	v, _, _ := g.group.Do(name, func() (any, error) {
		g.mu.Lock()
		defer g.mu.Unlock()
		if r, ok := g.rooms[name]; ok {
			return r, nil
		}
		host := ParseRoomName(name, g.defaults)
		r := newRoom(name, host, g.opts, g.remove)
		g.rooms[name] = r
		metricRoomsCreated.Add(1)
		metricRoomsActive.Add(1)
		log.Info().Str("room", name).Uint8("mode", host.Mode).Int32("lp", host.StartLP).Msg("room_created")
		go r.run()
		return r, nil
	})
	return v.(*Room)
}

func (g *Registry) remove(r *Room) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.rooms[r.name] == r {
		delete(g.rooms, r.name)
	}
}

// List returns summaries of every live room ordered by name.
func (g *Registry) List() []Summary {
	g.mu.RLock()
	rooms := make([]*Room, 0, len(g.rooms))
	for _, r := range g.rooms {
		rooms = append(rooms, r)
	}
	g.mu.RUnlock()
	out := make([]Summary, 0, len(rooms))
	for _, r := range rooms {
		out = append(out, r.Summary())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Dispatch routes one decoded message from c to the room it belongs to. It
// returns once the room has processed it.
func (g *Registry) Dispatch(ctx context.Context, c *Client, msg protocol.Inbound) {
	switch m := msg.(type) {
	case protocol.PlayerInfo:
		if c.RoomName() == "" {
			c.setInfo(strings.TrimSpace(m.Name), m.IdentityToken)
		}
		return
	case protocol.Join:
		if c.RoomName() == "" {
			g.join(ctx, c, m)
		}
		return
	}

	name := c.RoomName()
	if name == "" {
		if d, ok := msg.(protocol.Disconnect); ok {
			log.Debug().Str("client", c.ID).Bool("system", d.System).Msg("client_left_before_join")
			c.closeConn()
		}
		return
	}
	r := g.Get(name)
	if r == nil {
		return
	}
	if err := r.call(func() { r.dispatch(c, msg) }); err != nil && !errors.Is(err, ErrRoomClosed) {
		log.Warn().Err(err).Str("room", name).Msg("dispatch_failed")
	}
}

func (g *Registry) join(ctx context.Context, c *Client, m protocol.Join) {
	if g.opts.ProtocolVersion != 0 && m.Version != g.opts.ProtocolVersion {
		c.send(protocol.ErrorMessage{Code: protocol.ErrVersion, Detail: "unsupported client version"})
		c.closeConn()
		return
	}
	name := strings.TrimSpace(m.Room)
	if name == "" || len(name) > maxRoomName || c.Name() == "" {
		c.send(protocol.ErrorMessage{Code: protocol.ErrJoin, Detail: "room and player name are required"})
		c.closeConn()
		return
	}
	if held := g.ticketRoom(ctx, c); held != "" && held != name {
		log.Info().Str("client", c.ID).Str("requested", name).Str("room", held).Msg("join_redirected_to_ticket")
		name = held
	}

	// A room can finalize between lookup and join; the retry lands in a new one.
	for attempt := 0; attempt < 2; attempt++ {
		r := g.GetOrCreate(name)
		err := r.call(func() { r.dispatch(c, m) })
		if err == nil {
			return
		}
		if !errors.Is(err, ErrRoomClosed) {
			log.Warn().Err(err).Str("room", name).Msg("join_failed")
			break
		}
	}
	c.send(protocol.ErrorMessage{Code: protocol.ErrJoin, Detail: ErrRoomClosed.Error()})
	c.closeConn()
}

// ticketRoom names the live room holding a reclaim ticket for c, if any.
func (g *Registry) ticketRoom(ctx context.Context, c *Client) string {
	room, err := g.opts.Index.Lookup(ctx, g.opts.Identity(c))
	if err != nil {
		log.Warn().Err(err).Str("client", c.ID).Msg("reclaim_index_lookup_failed")
		return ""
	}
	if room == "" || g.Get(room) == nil {
		return ""
	}
	return room
}

// Close finalizes every room and waits for their records to be written. Used
// on shutdown.
func (g *Registry) Close() {
	g.mu.RLock()
	rooms := make([]*Room, 0, len(g.rooms))
	for _, r := range g.rooms {
		rooms = append(rooms, r)
	}
	g.mu.RUnlock()
	for _, r := range rooms {
		_ = r.call(func() { r.finalize("shutdown") })
	}
	g.opts.persists.Wait()
}
