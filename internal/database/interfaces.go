package database

import (
	"context"
	"errors"

	"chatline/internal/models"
)

// ErrNotFound is returned when a user or room does not exist.
var ErrNotFound = errors.New("not found")

type UserRepository interface {
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	CreateUser(ctx context.Context, req *models.RegisterRequest) (*models.User, error)
	GetUserByID(ctx context.Context, id int) (*models.User, error)
}

type RoomRepository interface {
	CreateRoom(ctx context.Context, req *models.CreateRoomRequest, ownerID int) (*models.Room, error)
	GetRoomByID(ctx context.Context, id int) (*models.Room, error)
	ListRooms(ctx context.Context) ([]*models.Room, error)
}

type MessageRepository interface {
	SaveMessage(ctx context.Context, msg *models.Message) error
	// LoadMessagePage selects messages of a room newest-first, skips the
	// given count, takes at most take, and returns the slice oldest-first.
	LoadMessagePage(ctx context.Context, roomID, skip, take int) ([]*models.Message, error)
}

type Database interface {
	UserRepository
	RoomRepository
	MessageRepository
	Close() error
}
