// Package websocket pushes live job progress to subscribed clients.
package websocket

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"

	"github.com/skustudio/api/internal/model"
)

// Client is one websocket subscriber watching a single job.
type Client struct {
	conn  *websocket.Conn
	jobID string
	send  chan []byte
	hub   *Hub
	once  sync.Once
}

// Hub routes job progress messages to the clients watching each job.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]struct{}
}

// NewHub creates a new hub
func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]map[*Client]struct{}),
	}
}

// HandleConnection registers the connection and pumps messages until
// the client goes away. It blocks for the lifetime of the connection.
func (h *Hub) HandleConnection(conn *websocket.Conn, jobID string) {
	client := &Client{
		conn:  conn,
		jobID: jobID,
		send:  make(chan []byte, 64),
		hub:   h,
	}

	h.mu.Lock()
	if h.clients[jobID] == nil {
		h.clients[jobID] = make(map[*Client]struct{})
	}
	h.clients[jobID][client] = struct{}{}
	h.mu.Unlock()

	go client.writePump()
	client.readPump()
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	if set, ok := h.clients[c.jobID]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.clients, c.jobID)
		}
	}
	h.mu.Unlock()
}

// broadcast sends a message to every client watching jobID. Slow
// clients are dropped rather than blocking the runner.
func (h *Hub) broadcast(jobID string, msg interface{}) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("Failed to marshal websocket message: %v", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients[jobID] {
		select {
		case client.send <- data:
		default:
			go client.close()
		}
	}
}

// BroadcastProgress pushes updated job counters.
func (h *Hub) BroadcastProgress(summary model.JobSummary) {
	h.broadcast(summary.ID, model.WSProgressMessage{
		Type:         model.WSMessageTypeProgress,
		JobID:        summary.ID,
		Status:       summary.Status,
		Total:        summary.Total,
		Processed:    summary.Processed,
		SuccessCount: summary.SuccessCount,
		FailedCount:  summary.FailedCount,
	})
}

// BroadcastItem pushes one item's outcome.
func (h *Hub) BroadcastItem(jobID, itemID string, status model.ItemStatus, errMsg string) {
	h.broadcast(jobID, model.WSItemMessage{
		Type:   model.WSMessageTypeItem,
		JobID:  jobID,
		ItemID: itemID,
		Status: status,
		Error:  errMsg,
	})
}

// BroadcastComplete announces the job's final state.
func (h *Hub) BroadcastComplete(summary model.JobSummary) {
	h.broadcast(summary.ID, model.WSCompleteMessage{
		Type:    model.WSMessageTypeComplete,
		JobID:   summary.ID,
		Summary: summary,
	})
}

// BroadcastError pushes a job-level error to watchers.
func (h *Hub) BroadcastError(jobID, code, message string) {
	h.broadcast(jobID, model.WSErrorMessage{
		Type:  model.WSMessageTypeError,
		JobID: jobID,
		Error: model.WSError{Code: code, Message: message},
	})
}

func (c *Client) readPump() {
	defer c.close()

	c.conn.SetReadLimit(1024)
	c.conn.SetReadDeadline(time.Now().Add(90 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(90 * time.Second))
	})

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		// Clients only ever send pings to keep the connection alive.
		var in model.WSMessage
		if json.Unmarshal(msg, &in) == nil && in.Type == model.WSMessageTypePing {
			pong, _ := json.Marshal(model.WSMessage{Type: model.WSMessageTypePong})
			select {
			case c.send <- pong:
			default:
			}
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	defer c.close()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) close() {
	c.once.Do(func() {
		c.hub.unregister(c)
		close(c.send)
		c.conn.Close()
	})
}
