package handlers

import (
	"log"

	"opsdesk/internal/database"
	"opsdesk/internal/models"
	"opsdesk/internal/services"

	"github.com/gofiber/contrib/websocket"
)

// watchableCollections are the collections the console may subscribe to.
var watchableCollections = map[string]bool{
	database.CollectionDeliveries: true,
	database.CollectionBalances:   true,
}

// WebSocketHandler streams live collection snapshots to the console
type WebSocketHandler struct {
	feed    *services.ChangeFeed
	metrics *services.Metrics
}

// NewWebSocketHandler creates a new websocket snapshot handler
func NewWebSocketHandler(feed *services.ChangeFeed, metrics *services.Metrics) *WebSocketHandler {
	return &WebSocketHandler{feed: feed, metrics: metrics}
}

type snapshotMessage struct {
	Type       string            `json:"type"`
	Collection string            `json:"collection"`
	Documents  []models.Document `json:"documents,omitempty"`
	Error      string            `json:"error,omitempty"`
}

// Handle subscribes the connection to one collection's change feed and
// pushes each snapshot as a JSON message until the client disconnects.
// GET /ws/collections/:name
func (h *WebSocketHandler) Handle(c *websocket.Conn) {
	defer c.Close()

	collection := c.Params("name")
	if !watchableCollections[collection] {
		_ = c.WriteJSON(snapshotMessage{Type: "error", Collection: collection, Error: "unknown collection"})
		return
	}

	if h.metrics != nil {
		h.metrics.WebSocketConnections.Inc()
		defer h.metrics.WebSocketConnections.Dec()
	}

	// Single-slot snapshot buffer: a consumer that falls behind only ever
	// sees the latest member set, never a backlog of stale ones.
	snapshots := make(chan []models.Document, 1)
	errs := make(chan error, 1)

	unsubscribe := h.feed.Subscribe(collection,
		func(docs []models.Document) {
			select {
			case snapshots <- docs:
			default:
				select {
				case <-snapshots:
				default:
				}
				snapshots <- docs
			}
		},
		func(err error) {
			select {
			case errs <- err:
			default:
			}
		},
	)
	defer unsubscribe()

	log.Printf("📡 [WS] Console subscribed to %s", collection)

	// Reader loop only detects disconnects; the console sends nothing.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case docs := <-snapshots:
			if err := c.WriteJSON(snapshotMessage{Type: "snapshot", Collection: collection, Documents: docs}); err != nil {
				return
			}
		case err := <-errs:
			log.Printf("⚠️ [WS] Feed error on %s: %v", collection, err)
			_ = c.WriteJSON(snapshotMessage{Type: "error", Collection: collection, Error: "subscription lost, please reconnect"})
			return
		case <-done:
			return
		}
	}
}
