package main

import (
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"chatline/internal/auth"
	"chatline/internal/config"
	"chatline/internal/database"
	"chatline/internal/handlers"
	"chatline/internal/services"
	"chatline/internal/websocket"
	"chatline/pkg/logger"
)

func main() {
	cfg := config.Load()

	// Initialize storage
	var db database.Database
	if cfg.Database.InMemory {
		logger.Info("Using in-memory store")
		db = database.NewMemoryDB()
	} else {
		pg, err := database.NewPostgresDB(cfg.Database.URL)
		if err != nil {
			logger.Fatal("Failed to connect to database: %v", err)
		}
		db = pg
	}
	defer db.Close()

	// Initialize services
	authService := auth.NewService(db, cfg)
	roomService := services.NewRoomService(db)
	messageService := services.NewMessageService(db)

	// Initialize WebSocket hub manager
	hubManager := websocket.NewManager()

	// Initialize handlers
	authHandlers := handlers.NewAuthHandlers(authService)
	roomHandlers := handlers.NewRoomHandlers(roomService, authService)
	messageHandlers := handlers.NewMessageHandlers(messageService, authService)
	wsHandlers := handlers.NewWebSocketHandlers(authService, roomService, messageService, hubManager)

	// Setup routes
	mux := http.NewServeMux()
	setupRoutes(mux, authHandlers, roomHandlers, messageHandlers, wsHandlers)

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      corsMiddleware(mux),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	logger.Info("Server started on http://localhost%s", cfg.Server.Port)
	logger.Info("WebSocket endpoint: ws://localhost%s/ws", cfg.Server.Port)

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server error: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Server shutting down...")
}

func setupRoutes(mux *http.ServeMux, authHandlers *handlers.AuthHandlers, roomHandlers *handlers.RoomHandlers, messageHandlers *handlers.MessageHandlers, wsHandlers *handlers.WebSocketHandlers) {
	// Auth routes
	mux.HandleFunc("POST /api/auth/login", authHandlers.Login)
	mux.HandleFunc("POST /api/auth/register", authHandlers.Register)

	// Room routes
	mux.HandleFunc("GET /api/rooms", roomHandlers.ListRooms)
	mux.HandleFunc("POST /api/rooms", roomHandlers.CreateRoom)

	// Message history
	mux.HandleFunc("GET /api/messages/room/{id}", messageHandlers.RoomHistory)

	// WebSocket route
	mux.HandleFunc("/ws", wsHandlers.HandleWebSocket)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
