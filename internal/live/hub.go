// Package live pushes dashboard updates to connected browsers over
// server-sent events.
package live

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"churnboard/internal/platform/metrics"
	id "churnboard/pkg/domain"
)

const (
	outboundBuffer           = 10
	defaultHeartbeatInterval = 15 * time.Second
)

// EventSnapshot carries a freshly computed dashboard view.
const EventSnapshot = "snapshot"

// Message is one stream frame.
type Message struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// Client is one open stream.
type Client struct {
	ID       uuid.UUID
	OwnerID  id.UserID
	Outbound chan Message
	done     chan struct{}
	once     sync.Once

	mu   sync.Mutex
	sent bool
}

// offer queues msg without blocking and records that the stream has a
// snapshot.
func (c *Client) offer(msg Message) bool {
	select {
	case c.Outbound <- msg:
		c.sent = true
		return true
	default:
		return false
	}
}

// Hub fans messages out to the streams of each owner.
type Hub struct {
	mu            sync.RWMutex
	subscriptions map[id.UserID]map[*Client]struct{}
	heartbeat     time.Duration
	logger        *slog.Logger
	metrics       *metrics.Metrics
}

type HubOption func(*Hub)

func WithHubLogger(logger *slog.Logger) HubOption {
	return func(h *Hub) {
		h.logger = logger
	}
}

func WithHubMetrics(m *metrics.Metrics) HubOption {
	return func(h *Hub) {
		h.metrics = m
	}
}

// WithHeartbeat sets how often idle streams receive a comment frame.
func WithHeartbeat(d time.Duration) HubOption {
	return func(h *Hub) {
		if d > 0 {
			h.heartbeat = d
		}
	}
}

func NewHub(opts ...HubOption) *Hub {
	h := &Hub{
		subscriptions: make(map[id.UserID]map[*Client]struct{}),
		heartbeat:     defaultHeartbeatInterval,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Subscribe registers a new stream for owner.
func (h *Hub) Subscribe(owner id.UserID) *Client {
	c := &Client{
		ID:       uuid.New(),
		OwnerID:  owner,
		Outbound: make(chan Message, outboundBuffer),
		done:     make(chan struct{}),
	}

	h.mu.Lock()
	clients, ok := h.subscriptions[owner]
	if !ok {
		clients = make(map[*Client]struct{})
		h.subscriptions[owner] = clients
	}
	clients[c] = struct{}{}
	h.mu.Unlock()

	h.metrics.StreamClientConnected()
	h.logger.Debug("stream client subscribed", "client_id", c.ID, "user_id", owner)
	return c
}

// Unsubscribe removes c and ends its stream. Safe to call more than once.
func (h *Hub) Unsubscribe(c *Client) {
	c.once.Do(func() {
		h.mu.Lock()
		if clients, ok := h.subscriptions[c.OwnerID]; ok {
			delete(clients, c)
			if len(clients) == 0 {
				delete(h.subscriptions, c.OwnerID)
			}
		}
		h.mu.Unlock()

		close(c.done)
		h.metrics.StreamClientDisconnected()
		h.logger.Debug("stream client unsubscribed", "client_id", c.ID, "user_id", c.OwnerID)
	})
}

// Close ends every open stream. Used on server shutdown, since streams never
// go idle on their own.
func (h *Hub) Close() {
	h.mu.RLock()
	var all []*Client
	for _, clients := range h.subscriptions {
		for c := range clients {
			all = append(all, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range all {
		h.Unsubscribe(c)
	}
}

// HasSubscribers reports whether owner has an open stream.
func (h *Hub) HasSubscribers(owner id.UserID) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscriptions[owner]) > 0
}

// Broadcast queues msg on every stream of owner. Slow clients whose buffer
// is full miss the message; the next snapshot supersedes it.
func (h *Hub) Broadcast(owner id.UserID, msg Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.subscriptions[owner] {
		c.mu.Lock()
		ok := c.offer(msg)
		c.mu.Unlock()
		if !ok {
			h.logger.Warn("dropping stream message; outbound buffer full",
				"client_id", c.ID,
				"user_id", owner,
			)
		}
	}
}

// Prime queues the first snapshot of a stream. It is skipped when a
// broadcast already reached c: that snapshot was computed after c
// subscribed, and every later change is broadcast again, so the primed one
// could only be older.
func (h *Hub) Prime(c *Client, msg Message) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sent {
		return false
	}
	return c.offer(msg)
}

// Serve writes c's messages to w until the request ends or c is
// unsubscribed.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, c *Client) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ctx := r.Context()
	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case msg := <-c.Outbound:
			payload, err := json.Marshal(msg)
			if err != nil {
				h.logger.WarnContext(ctx, "failed to marshal stream message",
					"client_id", c.ID,
					"error", err,
				)
				continue
			}
			if _, err := fmt.Fprintf(w, "event: message\ndata: %s\n\n", payload); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
