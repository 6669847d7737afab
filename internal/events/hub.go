// Package events pushes screening changes to connected dashboards over WebSockets.
// Clients are subscribed to their practice; admins receive every practice.
package events

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// Event types
const (
	ScreeningCreated = "screening.created"
	ScreeningUpdated = "screening.updated"
	ScreeningDeleted = "screening.deleted"
)

// AllPractices is the topic of clients that follow every practice.
const AllPractices = "*"

// Event is one change notification.
type Event struct {
	Type              string    `json:"type"`
	PracticeID        string    `json:"practice_id"`
	ScreeningID       string    `json:"screening_id"`
	PatientCode       string    `json:"patient_code,omitempty"`
	MalnutritionLevel string    `json:"malnutrition_level,omitempty"`
	TotalScore        int       `json:"total_score"`
	Timestamp         time.Time `json:"timestamp"`
}

// Publisher delivers events to subscribers.
type Publisher interface {
	Publish(ctx context.Context, event Event)
}

// Nop discards events.
type Nop struct{}

// Publish implements Publisher.
func (Nop) Publish(context.Context, Event) {}

type client struct {
	id    string
	topic string
	send  chan []byte
}

// Hub tracks connected clients by practice.
type Hub struct {
	mu       sync.RWMutex
	topics   map[string]map[*client]struct{}
	upgrader websocket.Upgrader
	logger   *logrus.Logger
}

// NewHub creates a hub. An empty allowedOrigins list or "*" accepts any origin.
func NewHub(allowedOrigins []string, logger *logrus.Logger) *Hub {
	origins := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		origins[o] = true
	}

	return &Hub{
		topics: make(map[string]map[*client]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return len(origins) == 0 || origins["*"] || origin == "" || origins[origin]
			},
		},
		logger: logger,
	}
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.topics[c.topic] == nil {
		h.topics[c.topic] = make(map[*client]struct{})
	}
	h.topics[c.topic][c] = struct{}{}
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subscribers, ok := h.topics[c.topic]
	if !ok {
		return
	}
	if _, ok := subscribers[c]; !ok {
		return
	}
	delete(subscribers, c)
	if len(subscribers) == 0 {
		delete(h.topics, c.topic)
	}
	close(c.send)
}

// Publish sends event to the clients of its practice and to admin clients.
func (h *Hub) Publish(_ context.Context, event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	data, err := json.Marshal(event)
	if err != nil {
		h.logger.WithError(err).Error("Failed to encode event")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, topic := range []string{event.PracticeID, AllPractices} {
		for c := range h.topics[topic] {
			select {
			case c.send <- data:
			default:
				h.logger.WithField("client_id", c.id).Warn("Dropping event for slow client")
			}
		}
	}
}

// ClientCount returns the number of clients following topic.
func (h *Hub) ClientCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}

// Serve upgrades the request and streams events of topic until the client leaves.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, topic string) error {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	c := &client{
		id:    uuid.New().String(),
		topic: topic,
		send:  make(chan []byte, 64),
	}
	h.register(c)

	h.logger.WithFields(logrus.Fields{
		"client_id": c.id,
		"topic":     topic,
	}).Debug("WebSocket client connected")

	go h.writePump(c, ws)
	go h.readPump(c, ws)
	return nil
}

// readPump discards inbound messages and unregisters the client once the connection closes.
func (h *Hub) readPump(c *client, ws *websocket.Conn) {
	defer func() {
		h.unregister(c)
		ws.Close()
	}()

	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(c *client, ws *websocket.Conn) {
	defer ws.Close()

	for message := range c.send {
		ws.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := ws.WriteMessage(websocket.TextMessage, message); err != nil {
			return
		}
	}
}
