package api

import (
	"context"
	"sync"

	"chatline/internal/models"
)

// RoomList is the client's in-memory view of the room collection. The
// server is the sole authority on room identity; Fetch replaces the whole
// list, Create returns the new room and leaves it to the caller to Add.
type RoomList struct {
	mu      sync.Mutex
	client  *Client
	rooms   []models.Room
	loading bool
	lastErr string
}

func NewRoomList(client *Client) *RoomList {
	return &RoomList{client: client}
}

// Fetch replaces the room list with the server's. On failure the prior
// list stays intact and the error message is recorded.
func (l *RoomList) Fetch(ctx context.Context) {
	l.mu.Lock()
	l.loading = true
	l.lastErr = ""
	l.mu.Unlock()

	rooms, err := l.client.FetchRooms(ctx)

	l.mu.Lock()
	defer l.mu.Unlock()
	l.loading = false
	if err != nil {
		l.lastErr = err.Error()
		return
	}
	l.rooms = rooms
}

// Create asks the server for a new room. The created room is returned and
// NOT added to the list; callers prepend it themselves via Add, so no full
// refetch happens.
func (l *RoomList) Create(ctx context.Context, name string) (*models.Room, error) {
	room, err := l.client.CreateRoom(ctx, name)

	l.mu.Lock()
	defer l.mu.Unlock()
	if err != nil {
		l.lastErr = err.Error()
		return nil, err
	}
	l.lastErr = ""
	return room, nil
}

// Add prepends a room to the local list.
func (l *RoomList) Add(room models.Room) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rooms = append([]models.Room{room}, l.rooms...)
}

func (l *RoomList) Rooms() []models.Room {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]models.Room, len(l.rooms))
	copy(out, l.rooms)
	return out
}

func (l *RoomList) Loading() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loading
}

func (l *RoomList) Err() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastErr
}
