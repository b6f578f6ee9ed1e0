// Package realtime pushes reservation changes to browsers over websockets.
package realtime

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"rungroj/internal/domain"
	"rungroj/internal/events"
	"rungroj/internal/models"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 64
)

// Streamer upgrades requests and forwards matching changes to the socket.
type Streamer struct {
	source   domain.EventSource
	upgrader websocket.Upgrader
	logger   *zerolog.Logger

	mu      sync.Mutex
	clients int
}

// NewStreamer accepts connections from allowedOrigins; an empty list or "*"
// accepts any origin.
func NewStreamer(source domain.EventSource, allowedOrigins []string, logger *zerolog.Logger) *Streamer {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	l := logger.With().Str("component", "realtime").Logger()
	return &Streamer{
		source: source,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		logger: &l,
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[strings.TrimRight(o, "/")] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || len(set) == 0 {
			return true
		}
		if set[origin] {
			return true
		}
		u, err := url.Parse(origin)
		return err == nil && strings.EqualFold(u.Host, r.Host)
	}
}

// Clients returns the number of open sockets.
func (s *Streamer) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clients
}

// Serve upgrades the request and streams changes accepted by filter until
// the client goes away.
func (s *Streamer) Serve(w http.ResponseWriter, r *http.Request, filter events.Filter) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	send := make(chan models.ReservationChange, sendBuffer)
	unsubscribe := s.source.Subscribe(filter, func(change models.ReservationChange) {
		select {
		case send <- change:
		default:
			s.logger.Warn().Str("reservation_id", change.New.ID).Msg("Slow websocket client, dropping change")
		}
	})

	s.mu.Lock()
	s.clients++
	s.mu.Unlock()

	done := make(chan struct{})
	go s.readPump(conn, done)
	s.writePump(conn, send, done)

	unsubscribe()
	s.mu.Lock()
	s.clients--
	s.mu.Unlock()
}

// readPump discards client frames and closes done when the peer leaves.
func (s *Streamer) readPump(conn *websocket.Conn, done chan struct{}) {
	defer close(done)

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Debug().Err(err).Msg("WebSocket closed")
			}
			return
		}
	}
}

func (s *Streamer) writePump(conn *websocket.Conn, send <-chan models.ReservationChange, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case <-done:
			return
		case change := <-send:
			payload, err := json.Marshal(change)
			if err != nil {
				s.logger.Error().Err(err).Msg("Encode change failed")
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
