package models

import "time"

type Room struct {
	ID           int       `json:"id"`
	ChatRoomName string    `json:"chatRoomName"`
	OwnerID      int       `json:"-"`
	CreatedAt    time.Time `json:"-"`
}

type CreateRoomRequest struct {
	ChatRoomName string `json:"chatRoomName"`
}

// Message is the wire shape of a persisted chat message, both in history
// pages and in the local cache.
type Message struct {
	ID             string    `json:"id"`
	Content        string    `json:"content"`
	SentDate       time.Time `json:"sentDate"`
	SenderUserName string    `json:"senderUserName"`
	RoomID         int       `json:"roomId"`
}
