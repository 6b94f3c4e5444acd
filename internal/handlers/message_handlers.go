package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"chatline/internal/auth"
	"chatline/internal/database"
	"chatline/internal/models"
	"chatline/internal/services"
	"chatline/pkg/logger"
)

type MessageHandlers struct {
	messageService *services.MessageService
	authService    *auth.Service
}

func NewMessageHandlers(messageService *services.MessageService, authService *auth.Service) *MessageHandlers {
	return &MessageHandlers{
		messageService: messageService,
		authService:    authService,
	}
}

// RoomHistory serves GET /api/messages/room/{id}?skip=&take=.
func (h *MessageHandlers) RoomHistory(w http.ResponseWriter, r *http.Request) {
	if _, err := getUserFromRequest(h.authService, r); err != nil {
		writeMessage(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	roomID, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		writeErrors(w, http.StatusBadRequest, "invalid room ID")
		return
	}

	skip := queryInt(r, "skip", 0)
	take := queryInt(r, "take", services.DefaultPageSize)

	page, err := h.messageService.HistoryPage(r.Context(), roomID, skip, take)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			writeError(w, http.StatusNotFound, "room not found")
			return
		}
		logger.Error("History page error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if page == nil {
		page = []*models.Message{}
	}

	writeJSON(w, http.StatusOK, page)
}

func queryInt(r *http.Request, key string, fallback int) int {
	value := r.URL.Query().Get(key)
	if value == "" {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return n
}
