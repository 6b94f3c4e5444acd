package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"chatline/internal/auth"
	"chatline/internal/models"
	"chatline/internal/services"
	"chatline/pkg/logger"
)

type RoomHandlers struct {
	roomService *services.RoomService
	authService *auth.Service
}

func NewRoomHandlers(roomService *services.RoomService, authService *auth.Service) *RoomHandlers {
	return &RoomHandlers{
		roomService: roomService,
		authService: authService,
	}
}

func (h *RoomHandlers) CreateRoom(w http.ResponseWriter, r *http.Request) {
	user, err := getUserFromRequest(h.authService, r)
	if err != nil {
		writeMessage(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req models.CreateRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrors(w, http.StatusBadRequest, "invalid request body")
		return
	}

	room, err := h.roomService.CreateRoom(r.Context(), &req, user.ID)
	if err != nil {
		logger.Error("Create room error: %v", err)
		writeErrors(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, room)
}

func (h *RoomHandlers) ListRooms(w http.ResponseWriter, r *http.Request) {
	if _, err := getUserFromRequest(h.authService, r); err != nil {
		writeMessage(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	rooms, err := h.roomService.ListRooms(r.Context())
	if err != nil {
		logger.Error("List rooms error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if rooms == nil {
		rooms = []*models.Room{}
	}

	writeJSON(w, http.StatusOK, rooms)
}

// getUserFromRequest resolves the caller from the Authorization bearer header.
func getUserFromRequest(authService *auth.Service, r *http.Request) (*models.User, error) {
	header := r.Header.Get("Authorization")
	tokenStr, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || tokenStr == "" {
		return nil, fmt.Errorf("missing bearer token")
	}
	return authService.GetUserFromToken(r.Context(), tokenStr)
}
