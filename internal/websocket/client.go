package websocket

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"chatline/internal/models"
	"chatline/internal/services"
	"chatline/pkg/logger"

	"github.com/gorilla/websocket"
)

// Client is one websocket connection. It is joined to at most one room at a
// time; JoinRoom moves it between hubs.
type Client struct {
	manager  *Manager
	conn     *websocket.Conn
	send     chan []byte
	done     chan struct{}
	userName string
	rooms    *services.RoomService
	messages *services.MessageService
	hub      *Hub
}

func NewClient(manager *Manager, conn *websocket.Conn, userName string, rooms *services.RoomService, messages *services.MessageService) *Client {
	return &Client{
		manager:  manager,
		conn:     conn,
		send:     make(chan []byte, 256),
		done:     make(chan struct{}),
		userName: userName,
		rooms:    rooms,
		messages: messages,
	}
}

func (c *Client) ReadPump() {
	defer func() {
		if c.hub != nil {
			c.hub.Unregister <- c
		}
		close(c.done)
		c.conn.Close()
	}()

	// Read deadline and pong handler for connection health
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				logger.Error("WebSocket error: %v", err)
			}
			break
		}

		var frame models.HubFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			logger.Error("Bad frame from %s: %v", c.userName, err)
			continue
		}
		if frame.Type != models.FrameTypeInvoke {
			continue
		}

		switch frame.Target {
		case models.TargetJoinRoom:
			c.handleJoinRoom(frame)
		case models.TargetSendMessage:
			c.handleSendMessage(frame)
		default:
			logger.Error("Unknown invoke target %q from %s", frame.Target, c.userName)
		}
	}
}

func (c *Client) handleJoinRoom(frame models.HubFrame) {
	roomID, err := frameRoomID(frame, 0)
	if err != nil {
		logger.Error("JoinRoom from %s: %v", c.userName, err)
		return
	}

	if _, err := c.rooms.GetRoom(context.Background(), roomID); err != nil {
		logger.Error("JoinRoom from %s: room %d: %v", c.userName, roomID, err)
		return
	}

	if c.hub != nil {
		c.hub.Unregister <- c
	}
	c.hub = c.manager.GetHubForRoom(roomID)
	c.hub.Register <- c
}

func (c *Client) handleSendMessage(frame models.HubFrame) {
	roomID, err := frameRoomID(frame, 0)
	if err != nil {
		logger.Error("SendMessage from %s: %v", c.userName, err)
		return
	}
	var text string
	if err := frame.DecodeArgs(new(json.RawMessage), &text); err != nil {
		logger.Error("SendMessage from %s: %v", c.userName, err)
		return
	}

	msg, err := c.messages.Record(context.Background(), roomID, c.userName, text)
	if err != nil {
		logger.Error("Error recording message from %s: %v", c.userName, err)
		return
	}

	event, err := models.NewFrame(models.FrameTypeEvent, models.TargetReceiveMessage, msg.ID, msg.SenderUserName, msg.Content)
	if err != nil {
		logger.Error("Error building ReceiveMessage event: %v", err)
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		logger.Error("Error marshaling ReceiveMessage event: %v", err)
		return
	}

	c.manager.GetHubForRoom(roomID).Broadcast <- data
}

func (c *Client) WritePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				logger.Error("Write error: %v", err)
				return
			}

		case <-c.done:
			return

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// frameRoomID decodes the room id argument at position idx. Clients send
// room ids as strings.
func frameRoomID(frame models.HubFrame, idx int) (int, error) {
	if idx >= len(frame.Args) {
		return 0, strconv.ErrSyntax
	}
	var s string
	if err := json.Unmarshal(frame.Args[idx], &s); err != nil {
		return 0, err
	}
	return strconv.Atoi(s)
}
