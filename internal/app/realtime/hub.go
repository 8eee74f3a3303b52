// Package realtime fans trip events out to websocket subscribers.
package realtime

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/travelties/service_layer/internal/app/metrics"
	"github.com/travelties/service_layer/pkg/logger"
)

// Event types broadcast to trip subscribers.
const (
	EventTripUpdated    = "trip.updated"
	EventCardCreated    = "card.created"
	EventCardUpdated    = "card.updated"
	EventCardDeleted    = "card.deleted"
	EventCardMoved      = "card.moved"
	EventTabReordered   = "tab.reordered"
	EventPollVoted      = "poll.voted"
	EventPostCreated    = "post.created"
	EventExpenseChanged = "expense.changed"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 4096
	sendBuffer     = 32
)

// Event is a change notification for one trip.
type Event struct {
	Type    string      `json:"type"`
	TripID  string      `json:"tripId"`
	ActorID string      `json:"actorId,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	At      time.Time   `json:"at"`
}

// Publisher accepts trip events. Services depend on this rather than the hub.
type Publisher interface {
	Publish(ev Event)
}

// Nop discards events.
type Nop struct{}

// Publish implements Publisher.
func (Nop) Publish(Event) {}

type client struct {
	conn   *websocket.Conn
	tripID string
	userID string
	send   chan []byte
	done   chan struct{}
	once   sync.Once
}

func (c *client) stop() {
	c.once.Do(func() { close(c.done) })
}

// Hub tracks websocket connections per trip.
type Hub struct {
	mu       sync.RWMutex
	trips    map[string]map[*client]struct{}
	closed   bool
	wg       sync.WaitGroup
	upgrader websocket.Upgrader
	log      *logger.Logger
}

// NewHub creates an empty hub.
func NewHub(log *logger.Logger) *Hub {
	if log == nil {
		log = logger.NewDefault("realtime")
	}
	return &Hub{
		trips: make(map[string]map[*client]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Connections are authenticated by bearer token, not origin.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		log: log,
	}
}

// Publish queues ev for every subscriber of ev.TripID. Subscribers whose
// buffer is full are disconnected.
func (h *Hub) Publish(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		h.log.WithError(err).WithField("type", ev.Type).Warn("encode realtime event")
		return
	}

	h.mu.RLock()
	var slow []*client
	for c := range h.trips[ev.TripID] {
		select {
		case c.send <- payload:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.log.WithField("trip_id", c.tripID).WithField("user_id", c.userID).Warn("dropping slow realtime subscriber")
		h.unregister(c)
	}
}

// Serve upgrades the request and streams events of tripID until the peer
// disconnects or the hub closes. It blocks for the life of the connection.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, tripID, userID string) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	c := &client{
		conn:   conn,
		tripID: tripID,
		userID: userID,
		send:   make(chan []byte, sendBuffer),
		done:   make(chan struct{}),
	}
	if !h.register(c) {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"), time.Now().Add(writeWait))
		return conn.Close()
	}
	disconnected := metrics.RealtimeConnected()
	defer disconnected()

	go func() {
		defer h.wg.Done()
		h.writePump(c)
	}()
	h.readPump(c)
	return nil
}

// Subscribers returns the number of live connections for tripID.
func (h *Hub) Subscribers(tripID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.trips[tripID])
}

// Disconnect closes every connection userID holds on tripID. It is used when
// a member leaves or is removed.
func (h *Hub) Disconnect(tripID, userID string) {
	h.mu.RLock()
	var victims []*client
	for c := range h.trips[tripID] {
		if c.userID == userID {
			victims = append(victims, c)
		}
	}
	h.mu.RUnlock()
	for _, c := range victims {
		h.unregister(c)
	}
}

// Close disconnects all subscribers and waits for their writers to exit.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	var all []*client
	for _, set := range h.trips {
		for c := range set {
			all = append(all, c)
		}
	}
	h.trips = make(map[string]map[*client]struct{})
	h.mu.Unlock()

	for _, c := range all {
		c.stop()
	}
	h.wg.Wait()
}

// register adds c and counts its writer on the hub's wait group. The count is
// taken under the lock so Close cannot start waiting between the two.
func (h *Hub) register(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.wg.Add(1)
	set, ok := h.trips[c.tripID]
	if !ok {
		set = make(map[*client]struct{})
		h.trips[c.tripID] = set
	}
	set[c] = struct{}{}
	return true
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if set, ok := h.trips[c.tripID]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.trips, c.tripID)
		}
	}
	h.mu.Unlock()
	c.stop()
}

func (h *Hub) readPump(c *client) {
	defer h.unregister(c)
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.WithError(err).WithField("trip_id", c.tripID).Debug("realtime read failed")
			}
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.stop()
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.stop()
				return
			}
		case <-c.done:
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			return
		}
	}
}
