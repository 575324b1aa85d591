package ws

import (
	"context"
	"errors"
	"expvar"
	"net/http"
	"time"

	"duel-server/internal/protocol"
	"duel-server/internal/room"

	"github.com/rs/zerolog/log"
	"nhooyr.io/websocket"
)

// readLimit bounds one client frame; decks and responses are small.
const readLimit = 64 << 10

var (
	metricConnections       = expvar.NewInt("ws_connections_active")
	metricHandshakeTimeouts = expvar.NewInt("ws_handshake_timeouts_total")
	metricBadFrames         = expvar.NewInt("ws_bad_frames_total")
)

// Dispatcher receives every decoded client message; *room.Registry in production.
type Dispatcher interface {
	Dispatch(ctx context.Context, c *room.Client, msg protocol.Inbound)
}

type Server struct {
	rooms            Dispatcher
	handshakeTimeout time.Duration
	originPatterns   []string
}

func NewServer(rooms Dispatcher, handshakeTimeout time.Duration, originPatterns ...string) *Server {
	return &Server{
		rooms:            rooms,
		handshakeTimeout: handshakeTimeout,
		originPatterns:   originPatterns,
	}
}

func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns:  s.originPatterns,
		CompressionMode: websocket.CompressionNoContextTakeover,
	})
	if err != nil {
		log.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("ws_accept_failed")
		return
	}
	conn.SetReadLimit(readLimit)

	client := room.NewClient(&wsConn{conn: conn}, r.RemoteAddr)
	metricConnections.Add(1)
	defer metricConnections.Add(-1)
	log.Debug().Str("client", client.ID).Str("remote", r.RemoteAddr).Msg("ws_connected")

	s.readLoop(r.Context(), client, conn)
}

// readLoop feeds frames to the dispatcher until the socket fails, then
// reports the drop as a client-initiated disconnect.
func (s *Server) readLoop(ctx context.Context, c *room.Client, conn *websocket.Conn) {
	if s.handshakeTimeout > 0 {
		timer := time.AfterFunc(s.handshakeTimeout, func() {
			if c.Joined() {
				return
			}
			metricHandshakeTimeouts.Add(1)
			log.Info().Str("client", c.ID).Dur("timeout", s.handshakeTimeout).Msg("ws_handshake_timeout")
			s.rooms.Dispatch(context.Background(), c, protocol.Disconnect{System: true})
		})
		defer timer.Stop()
	}

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			if status := websocket.CloseStatus(err); status == -1 && !errors.Is(err, context.Canceled) {
				log.Debug().Err(err).Str("client", c.ID).Msg("ws_read_failed")
			}
			break
		}
		msg, err := protocol.Decode(data)
		if err != nil {
			metricBadFrames.Add(1)
			log.Debug().Err(err).Str("client", c.ID).Msg("ws_bad_frame")
			continue
		}
		s.rooms.Dispatch(ctx, c, msg)
	}
	s.rooms.Dispatch(context.Background(), c, protocol.Disconnect{})
	log.Debug().Str("client", c.ID).Str("room", c.RoomName()).Msg("ws_disconnected")
}

// wsConn adapts a websocket to the room's send side.
type wsConn struct {
	conn *websocket.Conn
}

func (w *wsConn) Write(ctx context.Context, data []byte) error {
	return w.conn.Write(ctx, websocket.MessageText, data)
}

func (w *wsConn) Close() error {
	return w.conn.Close(websocket.StatusNormalClosure, "")
}
