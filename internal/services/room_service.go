package services

import (
	"context"
	"fmt"
	"strings"

	"chatline/internal/database"
	"chatline/internal/models"
)

type RoomService struct {
	db database.Database
}

func NewRoomService(db database.Database) *RoomService {
	return &RoomService{db: db}
}

func (s *RoomService) CreateRoom(ctx context.Context, req *models.CreateRoomRequest, ownerID int) (*models.Room, error) {
	req.ChatRoomName = strings.TrimSpace(req.ChatRoomName)
	if req.ChatRoomName == "" {
		return nil, fmt.Errorf("room name is required")
	}
	if len(req.ChatRoomName) > 100 {
		return nil, fmt.Errorf("room name must be at most 100 characters")
	}

	return s.db.CreateRoom(ctx, req, ownerID)
}

func (s *RoomService) ListRooms(ctx context.Context) ([]*models.Room, error) {
	return s.db.ListRooms(ctx)
}

func (s *RoomService) GetRoom(ctx context.Context, roomID int) (*models.Room, error) {
	return s.db.GetRoomByID(ctx, roomID)
}
