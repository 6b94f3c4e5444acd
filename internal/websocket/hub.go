package websocket

import (
	"sync"
	"time"

	"chatline/pkg/logger"
)

// Hub fans server pushes out to every client currently joined to one room.
type Hub struct {
	clients      map[*Client]bool
	Broadcast    chan []byte
	Register     chan *Client
	Unregister   chan *Client
	roomID       int
	shutdown     chan bool
	lastActivity time.Time
}

func NewHub(roomID int) *Hub {
	return &Hub{
		clients:      make(map[*Client]bool),
		Broadcast:    make(chan []byte),
		Register:     make(chan *Client),
		Unregister:   make(chan *Client),
		roomID:       roomID,
		shutdown:     make(chan bool),
		lastActivity: time.Now(),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case <-h.shutdown:
			for client := range h.clients {
				close(client.send)
			}
			return

		case client := <-h.Register:
			h.clients[client] = true
			h.lastActivity = time.Now()
			logger.Info("User %s joined room %d", client.userName, h.roomID)

		case client := <-h.Unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				logger.Info("User %s left room %d", client.userName, h.roomID)
			}

		case message := <-h.Broadcast:
			h.lastActivity = time.Now()
			h.broadcastToAll(message)
		}
	}
}

func (h *Hub) broadcastToAll(message []byte) {
	for client := range h.clients {
		select {
		case client.send <- message:
		default:
			close(client.send)
			delete(h.clients, client)
		}
	}
}

func (h *Hub) ClientCount() int {
	return len(h.clients)
}

func (h *Hub) ShutdownHub() {
	select {
	case h.shutdown <- true:
	default:
	}
}

// Manager hands out one hub per room, creating them on demand.
type Manager struct {
	hubs  map[int]*Hub
	mutex sync.Mutex
}

func NewManager() *Manager {
	return &Manager{
		hubs: make(map[int]*Hub),
	}
}

func (m *Manager) GetHubForRoom(roomID int) *Hub {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	hub, exists := m.hubs[roomID]
	if !exists {
		hub = NewHub(roomID)
		m.hubs[roomID] = hub
		go hub.Run()
	}
	return hub
}
