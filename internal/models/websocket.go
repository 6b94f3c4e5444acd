package models

import (
	"encoding/json"
	"fmt"
)

type FrameType string

const (
	// FrameTypeInvoke is a client-to-server remote call.
	FrameTypeInvoke FrameType = "invoke"
	// FrameTypeEvent is a server-to-client push.
	FrameTypeEvent FrameType = "event"
)

// Hub call targets. Clients invoke JoinRoom and SendMessage; the server
// pushes ReceiveMessage to every member of a room.
const (
	TargetJoinRoom       = "JoinRoom"
	TargetSendMessage    = "SendMessage"
	TargetReceiveMessage = "ReceiveMessage"
)

// HubFrame is the single message shape exchanged over the websocket channel.
// Args carry the target's positional arguments as raw JSON values.
type HubFrame struct {
	Type   FrameType         `json:"type"`
	Target string            `json:"target"`
	Args   []json.RawMessage `json:"args"`
}

// NewFrame builds a frame, marshaling each argument in place.
func NewFrame(ft FrameType, target string, args ...any) (HubFrame, error) {
	frame := HubFrame{Type: ft, Target: target, Args: make([]json.RawMessage, 0, len(args))}
	for i, arg := range args {
		raw, err := json.Marshal(arg)
		if err != nil {
			return HubFrame{}, fmt.Errorf("marshal arg %d of %s: %w", i, target, err)
		}
		frame.Args = append(frame.Args, raw)
	}
	return frame, nil
}

// DecodeArgs unmarshals the frame's arguments into the given pointers.
// The frame must carry at least as many arguments as pointers given.
func (f HubFrame) DecodeArgs(dests ...any) error {
	if len(f.Args) < len(dests) {
		return fmt.Errorf("%s: want %d args, got %d", f.Target, len(dests), len(f.Args))
	}
	for i, dest := range dests {
		if err := json.Unmarshal(f.Args[i], dest); err != nil {
			return fmt.Errorf("decode arg %d of %s: %w", i, f.Target, err)
		}
	}
	return nil
}
