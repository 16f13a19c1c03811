// Package ws pushes queue-status transition events to dashboard sessions
// over WebSocket. Subscribers are fan-out only; nothing is read back except
// close frames.
package ws

import (
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type Hub struct {
	register   chan *Subscriber
	unregister chan *Subscriber
	events     chan Event

	mu          sync.RWMutex
	subscribers map[string]*Subscriber

	upgrader websocket.Upgrader
	logger   *zap.SugaredLogger
}

func NewHub(logger *zap.SugaredLogger) *Hub {
	return &Hub{
		register:    make(chan *Subscriber),
		unregister:  make(chan *Subscriber),
		events:      make(chan Event, 256),
		subscribers: map[string]*Subscriber{},
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger: logger,
	}
}

// Run owns the subscriber set. It exits when the events channel is closed.
func (h *Hub) Run() {
	for {
		select {
		case sub := <-h.register:
			h.mu.Lock()
			h.subscribers[sub.id] = sub
			h.mu.Unlock()
			h.logger.Infow("ws subscriber registered", "id", sub.id)

		case sub := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.subscribers[sub.id]; ok {
				delete(h.subscribers, sub.id)
				close(sub.send)
			}
			h.mu.Unlock()
			h.logger.Infow("ws subscriber unregistered", "id", sub.id)

		case ev, ok := <-h.events:
			if !ok {
				return
			}
			h.mu.RLock()
			for _, sub := range h.subscribers {
				select {
				case sub.send <- ev:
				default:
					// Slow consumer: drop the event rather than block the hub.
					h.logger.Warnw("ws subscriber lagging, dropping event", "id", sub.id)
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Publish enqueues an event for broadcast. Drops when the hub itself is
// saturated; the feed is advisory and the queue browser remains the source
// of truth.
func (h *Hub) Publish(ev Event) {
	select {
	case h.events <- ev:
	default:
	}
}

// Serve upgrades the request and pumps events to the peer until it goes
// away.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warnw("ws upgrade failed", "err", err)
		return
	}

	sub := &Subscriber{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan Event, 64), // buffered to tolerate bursts
	}

	h.register <- sub

	go sub.writeLoop()
	go sub.readLoop(h)
}
