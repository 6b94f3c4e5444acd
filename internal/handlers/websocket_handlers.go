package handlers

import (
	"net/http"
	"strings"

	"chatline/internal/auth"
	"chatline/internal/services"
	ws "chatline/internal/websocket"
	"chatline/pkg/logger"

	"github.com/gorilla/websocket"
)

type WebSocketHandlers struct {
	authService    *auth.Service
	roomService    *services.RoomService
	messageService *services.MessageService
	hubManager     *ws.Manager
	upgrader       websocket.Upgrader
}

func NewWebSocketHandlers(authService *auth.Service, roomService *services.RoomService, messageService *services.MessageService, hubManager *ws.Manager) *WebSocketHandlers {
	return &WebSocketHandlers{
		authService:    authService,
		roomService:    roomService,
		messageService: messageService,
		hubManager:     hubManager,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true }, // Configure for production
		},
	}
}

func (h *WebSocketHandlers) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	// Bearer token arrives either as a header or, for clients that cannot
	// set headers on the upgrade request, as a query parameter.
	tokenStr := r.URL.Query().Get("token")
	if tokenStr == "" {
		if cut, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
			tokenStr = cut
		}
	}
	if tokenStr == "" {
		writeMessage(w, http.StatusUnauthorized, "missing token")
		return
	}

	user, err := h.authService.GetUserFromToken(r.Context(), tokenStr)
	if err != nil {
		writeMessage(w, http.StatusUnauthorized, "invalid token")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("Upgrade error: %v", err)
		return
	}

	client := ws.NewClient(h.hubManager, conn, user.UserName, h.roomService, h.messageService)

	go client.WritePump()
	go client.ReadPump()
}
