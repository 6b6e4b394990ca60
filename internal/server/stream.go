package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"nhooyr.io/websocket"
)

// streamPayload is one push frame sent to stream subscribers.
type streamPayload struct {
	Type      string      `json:"type"`
	Stats     interface{} `json:"stats"`
	Positions interface{} `json:"positions"`
}

// streamHub fans tick updates out to websocket subscribers. Slow
// subscribers drop frames instead of blocking the tick path.
type streamHub struct {
	mu          sync.Mutex
	subscribers map[chan []byte]struct{}
	closed      bool
	log         zerolog.Logger
}

func newStreamHub(log zerolog.Logger) *streamHub {
	return &streamHub{
		subscribers: make(map[chan []byte]struct{}),
		log:         log.With().Str("component", "stream").Logger(),
	}
}

// subscribe registers a new subscriber channel. The returned cancel
// removes it again.
func (h *streamHub) subscribe() (ch chan []byte, cancel func()) {
	ch = make(chan []byte, 8)

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	h.subscribers[ch] = struct{}{}
	h.mu.Unlock()

	return ch, func() {
		h.mu.Lock()
		delete(h.subscribers, ch)
		h.mu.Unlock()
	}
}

// broadcast sends one frame to every subscriber, dropping it for any
// subscriber whose buffer is full.
func (h *streamHub) broadcast(frame []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subscribers {
		select {
		case ch <- frame:
		default:
		}
	}
}

// close shuts the hub down; subscriber loops drain and exit.
func (h *streamHub) close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for ch := range h.subscribers {
		close(ch)
		delete(h.subscribers, ch)
	}
}

// BroadcastUpdate pushes the current stats and positions to every stream
// subscriber. The scheduler calls this after each simulated tick.
func (s *Server) BroadcastUpdate() {
	frame, err := json.Marshal(streamPayload{
		Type:      "update",
		Stats:     s.ledger.Stats(),
		Positions: s.ledger.Positions(),
	})
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to encode stream frame")
		return
	}
	s.hub.broadcast(frame)
}

// handleStream upgrades the connection and relays tick frames until the
// client disconnects or the server shuts down.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		// The tracker runs on localhost and behind permissive CORS;
		// the stream follows the same policy.
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		s.log.Warn().Err(err).Msg("Websocket accept failed")
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	ch, cancel := s.hub.subscribe()
	defer cancel()

	// Initial snapshot so the client renders without waiting a tick.
	s.BroadcastUpdate()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-ch:
			if !ok {
				// Hub closed, server is shutting down.
				return
			}
			writeCtx, cancelWrite := context.WithTimeout(ctx, 5*time.Second)
			err := conn.Write(writeCtx, websocket.MessageText, frame)
			cancelWrite()
			if err != nil {
				return
			}
		}
	}
}
