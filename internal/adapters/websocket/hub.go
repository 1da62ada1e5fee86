// Package websocket pushes job progress snapshots to connected clients.
package websocket

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ewilliams-labs/cratedigger/internal/core/domain"
	"github.com/ewilliams-labs/cratedigger/internal/core/services"
)

// AllJobs subscribes a client to every job's updates.
const AllJobs = "all"

// MessageTypeJobUpdate tags job snapshot messages.
const MessageTypeJobUpdate = "job_update"

// ProgressMessage is the JSON frame sent to clients.
type ProgressMessage struct {
	Type      string           `json:"type"`
	Job       services.JobView `json:"job"`
	Timestamp time.Time        `json:"timestamp"`
}

// Hub maintains the set of active clients and broadcasts job updates to them.
// It implements ports.ProgressNotifier.
type Hub struct {
	clients    map[string]map[*Client]bool
	broadcast  chan ProgressMessage
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	upgrader   websocket.Upgrader
	logger     *slog.Logger

	mu sync.RWMutex
}

// NewHub creates a hub accepting connections from allowedOrigins (any origin
// when empty). Call Run to start delivering messages.
func NewHub(allowedOrigins []string, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		clients:    make(map[string]map[*Client]bool),
		broadcast:  make(chan ProgressMessage, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		upgrader:   NewUpgrader(allowedOrigins),
		logger:     logger,
	}
}

// Run is the hub's event loop; it returns when ctx is cancelled and closes
// every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for jobID, clients := range h.clients {
				for client := range clients {
					close(client.send)
				}
				delete(h.clients, jobID)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			if h.clients[client.jobID] == nil {
				h.clients[client.jobID] = make(map[*Client]bool)
			}
			h.clients[client.jobID][client] = true
			h.mu.Unlock()
			h.logger.Debug("websocket client connected", slog.String("job_id", client.jobID))

		case client := <-h.unregister:
			h.mu.Lock()
			h.drop(client)
			h.mu.Unlock()
			h.logger.Debug("websocket client disconnected", slog.String("job_id", client.jobID))

		case message := <-h.broadcast:
			h.mu.Lock()
			h.deliver(message.Job.JobID, message)
			h.deliver(AllJobs, message)
			h.mu.Unlock()
		}
	}
}

// deliver sends to one subscription key; slow clients are dropped. Callers
// hold mu.
func (h *Hub) deliver(key string, message ProgressMessage) {
	for client := range h.clients[key] {
		select {
		case client.send <- message:
		default:
			h.drop(client)
		}
	}
}

func (h *Hub) drop(client *Client) {
	clients, ok := h.clients[client.jobID]
	if !ok || !clients[client] {
		return
	}
	delete(clients, client)
	close(client.send)
	if len(clients) == 0 {
		delete(h.clients, client.jobID)
	}
}

// subscribe and unsubscribe give up once the hub has stopped.
func (h *Hub) subscribe(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) unsubscribe(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// JobUpdated queues a snapshot for the job's subscribers without blocking
// the caller.
func (h *Hub) JobUpdated(job domain.AnalysisJob) {
	h.Publish(services.NewJobView(job))
}

// Publish queues a poll view for the job's subscribers.
func (h *Hub) Publish(view services.JobView) {
	msg := ProgressMessage{
		Type:      MessageTypeJobUpdate,
		Job:       view,
		Timestamp: time.Now().UTC(),
	}
	select {
	case h.broadcast <- msg:
	default:
		h.logger.Warn("websocket broadcast channel full, dropping update", slog.String("job_id", view.JobID))
	}
}

// ClientCount reports how many clients are subscribed to key.
func (h *Hub) ClientCount(key string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[key])
}
