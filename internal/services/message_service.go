package services

import (
	"context"
	"fmt"
	"time"

	"chatline/internal/database"
	"chatline/internal/models"

	"github.com/google/uuid"
)

const (
	// DefaultPageSize is used when a history request carries no take value.
	DefaultPageSize = 10
	// MaxPageSize caps a single history page.
	MaxPageSize = 100
)

type MessageService struct {
	db database.Database
}

func NewMessageService(db database.Database) *MessageService {
	return &MessageService{db: db}
}

// Record persists an incoming chat message and returns it with its
// server-assigned id and send time.
func (s *MessageService) Record(ctx context.Context, roomID int, sender, content string) (*models.Message, error) {
	if content == "" {
		return nil, fmt.Errorf("message content is required")
	}
	if _, err := s.db.GetRoomByID(ctx, roomID); err != nil {
		return nil, fmt.Errorf("room %d: %w", roomID, err)
	}

	msg := &models.Message{
		ID:             uuid.NewString(),
		Content:        content,
		SentDate:       time.Now(),
		SenderUserName: sender,
		RoomID:         roomID,
	}
	if err := s.db.SaveMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("save message: %w", err)
	}
	return msg, nil
}

// HistoryPage returns one page of a room's history: messages are selected
// newest-first, skip/take applied, and the page itself is ordered
// oldest-first.
func (s *MessageService) HistoryPage(ctx context.Context, roomID, skip, take int) ([]*models.Message, error) {
	if skip < 0 {
		skip = 0
	}
	if take <= 0 {
		take = DefaultPageSize
	}
	if take > MaxPageSize {
		take = MaxPageSize
	}

	if _, err := s.db.GetRoomByID(ctx, roomID); err != nil {
		return nil, fmt.Errorf("room %d: %w", roomID, err)
	}

	return s.db.LoadMessagePage(ctx, roomID, skip, take)
}
