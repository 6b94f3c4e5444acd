// Package hub maintains the client side of the real-time channel: one
// connection per selected room, the join handshake, history pagination, and
// live message receipt.
package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"chatline/internal/models"
	"chatline/pkg/logger"

	"github.com/gorilla/websocket"
)

// DefaultPageSize is the history page size used for the initial load and
// every lazy load.
const DefaultPageSize = 10

type State int

const (
	StateIdle State = iota
	StateConnecting
	StateLoadingHistory
	StateReady
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateLoadingHistory:
		return "loading-history"
	case StateReady:
		return "ready"
	case StateError:
		return "error"
	}
	return "unknown"
}

// ChatMessage is a message as the UI sees it. Sender carries the
// server-asserted user name; whether a message is "mine" is decided at
// render time by comparing Sender against the session's user name.
type ChatMessage struct {
	ID        string
	Sender    string
	Text      string
	Timestamp time.Time
}

// HistoryFetcher loads one page of a room's history, oldest-first within
// the page. The REST client implements it.
type HistoryFetcher interface {
	FetchMessages(ctx context.Context, roomID, skip, take int) ([]models.Message, error)
}

// TokenSource supplies the bearer token attached to the channel handshake.
type TokenSource interface {
	Token() string
}

type Options struct {
	URL      string
	Tokens   TokenSource
	History  HistoryFetcher
	PageSize int
	// Reconnect enables transport-level redial after a dropped
	// connection. The room is rejoined after every successful redial.
	Reconnect      bool
	ReconnectDelay time.Duration
	// OnChange fires after every observable state change, outside any
	// internal lock.
	OnChange func()
}

// RoomConn is one room's live channel plus its pagination bookkeeping.
// A room switch means closing the old RoomConn and dialing a new one.
type RoomConn struct {
	opts   Options
	roomID int

	mu          sync.Mutex
	ws          *websocket.Conn
	state       State
	lastErr     string
	messages    []ChatMessage
	pending     []ChatMessage // pushes received before history completed
	seen        map[string]struct{}
	loadedCount int
	hasMore     bool
	loadingMore bool
	closed      bool
}

// Dial connects to the hub, joins the room, and loads the first history
// page. Pushes arriving while history is loading are buffered and merged by
// timestamp once it lands; the returned connection is in the Ready state.
func Dial(ctx context.Context, roomID int, opts Options) (*RoomConn, error) {
	if roomID <= 0 {
		return nil, fmt.Errorf("invalid room id %d", roomID)
	}
	if opts.Tokens == nil || opts.Tokens.Token() == "" {
		return nil, fmt.Errorf("no authentication token")
	}
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = time.Second
	}

	c := &RoomConn{
		opts:    opts,
		roomID:  roomID,
		state:   StateConnecting,
		seen:    make(map[string]struct{}),
		hasMore: true,
	}

	ws, err := c.dial(ctx)
	if err != nil {
		return nil, fmt.Errorf("connect to chat hub: %w", err)
	}
	c.mu.Lock()
	c.ws = ws
	c.mu.Unlock()

	// The push handler runs before the join completes so that nothing
	// delivered during the history load is lost.
	go c.readPump(ws)

	if err := c.invoke(models.TargetJoinRoom, strconv.Itoa(roomID)); err != nil {
		c.Close()
		return nil, fmt.Errorf("join room %d: %w", roomID, err)
	}

	c.mu.Lock()
	c.state = StateLoadingHistory
	c.mu.Unlock()

	page, err := opts.History.FetchMessages(ctx, roomID, 0, opts.PageSize)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("load history for room %d: %w", roomID, err)
	}

	c.mu.Lock()
	c.mergeInitialLocked(page)
	c.mu.Unlock()
	c.notify()

	return c, nil
}

func (c *RoomConn) dial(ctx context.Context) (*websocket.Conn, error) {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+c.opts.Tokens.Token())
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, c.opts.URL, header)
	return ws, err
}

// mergeInitialLocked installs the first history page and folds in any
// buffered pushes, ordered by timestamp and deduplicated by message id.
// The history copy of a double-delivered message wins.
func (c *RoomConn) mergeInitialLocked(page []models.Message) {
	merged := make([]ChatMessage, 0, len(page)+len(c.pending))
	for _, m := range page {
		c.seen[m.ID] = struct{}{}
		merged = append(merged, ChatMessage{
			ID:        m.ID,
			Sender:    m.SenderUserName,
			Text:      m.Content,
			Timestamp: m.SentDate,
		})
	}
	for _, m := range c.pending {
		if _, dup := c.seen[m.ID]; dup {
			continue
		}
		c.seen[m.ID] = struct{}{}
		merged = append(merged, m)
	}
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Timestamp.Before(merged[j].Timestamp)
	})

	c.messages = merged
	c.pending = nil
	c.loadedCount = len(page)
	c.hasMore = len(page) == c.opts.PageSize
	c.state = StateReady
	c.lastErr = ""
}

// LoadMore fetches the next older history page and prepends it. It is a
// no-op while a load is in flight or when no more history remains; that
// boolean guard is the only backpressure.
func (c *RoomConn) LoadMore(ctx context.Context) error {
	c.mu.Lock()
	if c.closed || c.state != StateReady || !c.hasMore || c.loadingMore {
		c.mu.Unlock()
		return nil
	}
	c.loadingMore = true
	skip := c.loadedCount
	c.mu.Unlock()
	c.notify()

	page, err := c.opts.History.FetchMessages(ctx, c.roomID, skip, c.opts.PageSize)

	c.mu.Lock()
	if c.closed {
		// The room moved on while the fetch was in flight.
		c.mu.Unlock()
		return nil
	}
	c.loadingMore = false
	if err != nil {
		c.lastErr = err.Error()
		c.mu.Unlock()
		c.notify()
		return err
	}

	fresh := make([]ChatMessage, 0, len(page))
	for _, m := range page {
		if _, dup := c.seen[m.ID]; dup {
			continue
		}
		c.seen[m.ID] = struct{}{}
		fresh = append(fresh, ChatMessage{
			ID:        m.ID,
			Sender:    m.SenderUserName,
			Text:      m.Content,
			Timestamp: m.SentDate,
		})
	}
	c.messages = append(fresh, c.messages...)
	c.loadedCount += len(page)
	c.hasMore = len(page) == c.opts.PageSize
	c.mu.Unlock()
	c.notify()
	return nil
}

// Send invokes SendMessage on the channel. It is a no-op when the channel
// is not ready or the text is empty after trimming. Failures are recorded
// as the connection's error and returned, never retried.
func (c *RoomConn) Send(text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	c.mu.Lock()
	if c.closed || c.state != StateReady {
		c.mu.Unlock()
		return nil
	}
	err := c.writeFrameLocked(models.TargetSendMessage, strconv.Itoa(c.roomID), text)
	if err != nil {
		c.lastErr = fmt.Sprintf("failed to send message: %v", err)
	}
	c.mu.Unlock()

	if err != nil {
		c.notify()
	}
	return err
}

// Close unsubscribes the push handler first, then closes the channel, so a
// frame racing the teardown is never dispatched.
func (c *RoomConn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.state = StateIdle
	ws := c.ws
	c.mu.Unlock()

	if ws != nil {
		return ws.Close()
	}
	return nil
}

func (c *RoomConn) invoke(target string, args ...any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.writeFrameLocked(target, args...)
}

func (c *RoomConn) writeFrameLocked(target string, args ...any) error {
	frame, err := models.NewFrame(models.FrameTypeInvoke, target, args...)
	if err != nil {
		return err
	}
	if c.ws == nil {
		return fmt.Errorf("channel closed")
	}
	return c.ws.WriteJSON(frame)
}

func (c *RoomConn) readPump(ws *websocket.Conn) {
	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			c.handleDisconnect(err)
			return
		}

		var frame models.HubFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			logger.Error("Bad frame from hub: %v", err)
			continue
		}
		if frame.Type != models.FrameTypeEvent || frame.Target != models.TargetReceiveMessage {
			continue
		}

		var id, sender, text string
		if err := frame.DecodeArgs(&id, &sender, &text); err != nil {
			logger.Error("Bad ReceiveMessage event: %v", err)
			continue
		}
		c.receive(id, sender, text)
	}
}

// receive handles one live push. The timestamp is the local receipt time,
// not a server-asserted send time. Before the initial history load
// completes the message only goes to the pending buffer.
func (c *RoomConn) receive(id, sender, text string) {
	msg := ChatMessage{ID: id, Sender: sender, Text: text, Timestamp: time.Now()}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	if c.state != StateReady {
		c.pending = append(c.pending, msg)
		c.mu.Unlock()
		return
	}
	if _, dup := c.seen[id]; dup {
		c.mu.Unlock()
		return
	}
	c.seen[id] = struct{}{}
	c.messages = append(c.messages, msg)
	c.mu.Unlock()
	c.notify()
}

func (c *RoomConn) handleDisconnect(err error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	if !c.opts.Reconnect {
		c.state = StateError
		c.lastErr = fmt.Sprintf("connection lost: %v", err)
		c.mu.Unlock()
		c.notify()
		return
	}
	c.state = StateConnecting
	c.lastErr = "connection lost, reconnecting"
	c.mu.Unlock()
	c.notify()

	go c.reconnectLoop()
}

// reconnectLoop redials with doubling backoff until the connection comes
// back or the RoomConn is closed, then rejoins the room.
func (c *RoomConn) reconnectLoop() {
	delay := c.opts.ReconnectDelay
	for {
		time.Sleep(delay)
		if delay < 30*time.Second {
			delay *= 2
		}

		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return
		}
		c.mu.Unlock()

		ws, err := c.dial(context.Background())
		if err != nil {
			continue
		}

		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			ws.Close()
			return
		}
		c.ws = ws
		frameErr := c.writeFrameLocked(models.TargetJoinRoom, strconv.Itoa(c.roomID))
		if frameErr != nil {
			c.mu.Unlock()
			ws.Close()
			continue
		}
		c.state = StateReady
		c.lastErr = ""
		c.mu.Unlock()
		c.notify()

		go c.readPump(ws)
		return
	}
}

func (c *RoomConn) notify() {
	if c.opts.OnChange != nil {
		c.opts.OnChange()
	}
}

func (c *RoomConn) RoomID() int { return c.roomID }

func (c *RoomConn) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *RoomConn) Connected() bool {
	return c.State() == StateReady
}

func (c *RoomConn) Err() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

func (c *RoomConn) Messages() []ChatMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]ChatMessage, len(c.messages))
	copy(out, c.messages)
	return out
}

func (c *RoomConn) LoadedCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loadedCount
}

func (c *RoomConn) HasMore() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hasMore
}

func (c *RoomConn) IsLoadingMore() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loadingMore
}
