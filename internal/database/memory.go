package database

import (
	"context"
	"fmt"
	"sync"
	"time"

	"chatline/internal/models"

	"golang.org/x/crypto/bcrypt"
)

// MemoryDB is an in-process Database used by tests and by the server's
// in-memory mode. It mirrors the Postgres implementation's semantics,
// including newest-first page selection with oldest-first pages.
type MemoryDB struct {
	mu         sync.Mutex
	users      map[int]*models.User
	byEmail    map[string]int
	rooms      map[int]*models.Room
	messages   map[int][]*models.Message // per room, append order = send order
	nextUserID int
	nextRoomID int
}

func NewMemoryDB() *MemoryDB {
	return &MemoryDB{
		users:      make(map[int]*models.User),
		byEmail:    make(map[string]int),
		rooms:      make(map[int]*models.Room),
		messages:   make(map[int][]*models.Message),
		nextUserID: 1,
		nextRoomID: 1,
	}
}

func (db *MemoryDB) Close() error { return nil }

func (db *MemoryDB) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	id, ok := db.byEmail[email]
	if !ok {
		return nil, ErrNotFound
	}
	u := *db.users[id]
	return &u, nil
}

func (db *MemoryDB) CreateUser(ctx context.Context, req *models.RegisterRequest) (*models.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	if _, exists := db.byEmail[req.Email]; exists {
		return nil, fmt.Errorf("email already registered")
	}

	user := &models.User{
		ID:           db.nextUserID,
		UserName:     req.UserName,
		Email:        req.Email,
		PasswordHash: string(hash),
		CreatedAt:    time.Now(),
	}
	db.nextUserID++
	db.users[user.ID] = user
	db.byEmail[user.Email] = user.ID

	u := *user
	return &u, nil
}

func (db *MemoryDB) GetUserByID(ctx context.Context, id int) (*models.User, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	user, ok := db.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	u := *user
	return &u, nil
}

func (db *MemoryDB) CreateRoom(ctx context.Context, req *models.CreateRoomRequest, ownerID int) (*models.Room, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	room := &models.Room{
		ID:           db.nextRoomID,
		ChatRoomName: req.ChatRoomName,
		OwnerID:      ownerID,
		CreatedAt:    time.Now(),
	}
	db.nextRoomID++
	db.rooms[room.ID] = room

	r := *room
	return &r, nil
}

func (db *MemoryDB) GetRoomByID(ctx context.Context, id int) (*models.Room, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	room, ok := db.rooms[id]
	if !ok {
		return nil, ErrNotFound
	}
	r := *room
	return &r, nil
}

func (db *MemoryDB) ListRooms(ctx context.Context) ([]*models.Room, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	rooms := make([]*models.Room, 0, len(db.rooms))
	// Newest first, matching the Postgres ORDER BY id DESC
	for id := db.nextRoomID - 1; id >= 1; id-- {
		if room, ok := db.rooms[id]; ok {
			r := *room
			rooms = append(rooms, &r)
		}
	}
	return rooms, nil
}

func (db *MemoryDB) SaveMessage(ctx context.Context, msg *models.Message) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	m := *msg
	db.messages[msg.RoomID] = append(db.messages[msg.RoomID], &m)
	return nil
}

func (db *MemoryDB) LoadMessagePage(ctx context.Context, roomID, skip, take int) ([]*models.Message, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	all := db.messages[roomID]
	// all is oldest-first; a page of `take` after skipping `skip` newest
	// messages is the slice [hi-take, hi) with hi = len - skip.
	hi := len(all) - skip
	if hi <= 0 {
		return nil, nil
	}
	lo := hi - take
	if lo < 0 {
		lo = 0
	}

	page := make([]*models.Message, 0, hi-lo)
	for _, msg := range all[lo:hi] {
		m := *msg
		page = append(page, &m)
	}
	return page, nil
}
