package hub

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"chatline/internal/models"

	"github.com/gorilla/websocket"
)

type staticToken string

func (s staticToken) Token() string { return string(s) }

// fakeHistory serves pages out of an in-memory oldest-first message slice,
// with the same skip/take semantics as the REST endpoint.
type fakeHistory struct {
	mu    sync.Mutex
	msgs  []models.Message
	calls atomic.Int32
	block chan struct{} // when set, FetchMessages waits on it
	err   error
}

func (f *fakeHistory) FetchMessages(ctx context.Context, roomID, skip, take int) ([]models.Message, error) {
	f.calls.Add(1)
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	hi := len(f.msgs) - skip
	if hi <= 0 {
		return nil, nil
	}
	lo := hi - take
	if lo < 0 {
		lo = 0
	}
	page := make([]models.Message, hi-lo)
	copy(page, f.msgs[lo:hi])
	return page, nil
}

func seedHistory(n int) *fakeHistory {
	f := &fakeHistory{}
	base := time.Now().Add(-time.Hour)
	for i := 1; i <= n; i++ {
		f.msgs = append(f.msgs, models.Message{
			ID:             fmt.Sprintf("m%d", i),
			Content:        fmt.Sprintf("text %d", i),
			SentDate:       base.Add(time.Duration(i) * time.Second),
			SenderUserName: "ana",
			RoomID:         5,
		})
	}
	return f
}

// hubServer is an in-process hub speaking the invoke/event frame protocol.
type hubServer struct {
	t        *testing.T
	srv      *httptest.Server
	upgrader websocket.Upgrader

	mu    sync.Mutex
	conns map[*websocket.Conn]int
	joins []int
	sent  []string

	joined chan int
}

func newHubServer(t *testing.T) *hubServer {
	s := &hubServer{
		t:      t,
		conns:  make(map[*websocket.Conn]int),
		joined: make(chan int, 16),
	}
	s.srv = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.srv.Close)
	return s
}

func (s *hubServer) wsURL() string {
	return "ws" + strings.TrimPrefix(s.srv.URL, "http")
}

func (s *hubServer) handle(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	s.mu.Lock()
	s.conns[conn] = 0
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		conn.Close()
	}()

	for {
		var frame models.HubFrame
		if err := conn.ReadJSON(&frame); err != nil {
			return
		}

		switch frame.Target {
		case models.TargetJoinRoom:
			var roomStr string
			if err := frame.DecodeArgs(&roomStr); err != nil {
				s.t.Errorf("bad JoinRoom frame: %v", err)
				continue
			}
			roomID, _ := strconv.Atoi(roomStr)
			s.mu.Lock()
			s.conns[conn] = roomID
			s.joins = append(s.joins, roomID)
			s.mu.Unlock()
			s.joined <- roomID

		case models.TargetSendMessage:
			var roomStr, text string
			if err := frame.DecodeArgs(&roomStr, &text); err != nil {
				s.t.Errorf("bad SendMessage frame: %v", err)
				continue
			}
			roomID, _ := strconv.Atoi(roomStr)
			s.mu.Lock()
			s.sent = append(s.sent, text)
			n := len(s.sent)
			s.mu.Unlock()
			s.push(roomID, fmt.Sprintf("srv-%d", n), "ana", text)
		}
	}
}

// push delivers a ReceiveMessage event to every connection joined to roomID.
func (s *hubServer) push(roomID int, id, user, text string) {
	frame, err := models.NewFrame(models.FrameTypeEvent, models.TargetReceiveMessage, id, user, text)
	if err != nil {
		s.t.Fatalf("build event: %v", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn, room := range s.conns {
		if room == roomID {
			conn.WriteJSON(frame)
		}
	}
}

// dropAll closes every connection without a close handshake, simulating a
// transport-level failure.
func (s *hubServer) dropAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.conns {
		conn.Close()
	}
}

func (s *hubServer) joinCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.joins)
}

func (s *hubServer) sentTexts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.sent...)
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func defaultOpts(s *hubServer, h *fakeHistory) Options {
	return Options{
		URL:      s.wsURL(),
		Tokens:   staticToken("tok"),
		History:  h,
		PageSize: 10,
	}
}

func messageIDs(msgs []ChatMessage) []string {
	ids := make([]string, len(msgs))
	for i, m := range msgs {
		ids[i] = m.ID
	}
	return ids
}

func TestPaginationScenario(t *testing.T) {
	s := newHubServer(t)
	h := seedHistory(25)

	conn, err := Dial(context.Background(), 5, defaultOpts(s, h))
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()

	if conn.State() != StateReady {
		t.Fatalf("State() = %v, want ready", conn.State())
	}

	// Initial page: latest 10, oldest-first within the page
	ids := messageIDs(conn.Messages())
	if len(ids) != 10 || ids[0] != "m16" || ids[9] != "m25" {
		t.Fatalf("initial page = %v", ids)
	}
	if conn.LoadedCount() != 10 || !conn.HasMore() {
		t.Fatalf("loadedCount=%d hasMore=%v", conn.LoadedCount(), conn.HasMore())
	}

	if err := conn.LoadMore(context.Background()); err != nil {
		t.Fatalf("LoadMore() error = %v", err)
	}
	ids = messageIDs(conn.Messages())
	if len(ids) != 20 || ids[0] != "m6" || ids[19] != "m25" {
		t.Fatalf("after first LoadMore = %v", ids)
	}
	if conn.LoadedCount() != 20 || !conn.HasMore() {
		t.Fatalf("loadedCount=%d hasMore=%v", conn.LoadedCount(), conn.HasMore())
	}

	if err := conn.LoadMore(context.Background()); err != nil {
		t.Fatalf("LoadMore() error = %v", err)
	}
	ids = messageIDs(conn.Messages())
	if len(ids) != 25 || ids[0] != "m1" {
		t.Fatalf("after second LoadMore = %v", ids)
	}
	if conn.LoadedCount() != 25 || conn.HasMore() {
		t.Fatalf("loadedCount=%d hasMore=%v, want 25/false", conn.LoadedCount(), conn.HasMore())
	}

	// Exhausted: no further network call, no state change
	calls := h.calls.Load()
	if err := conn.LoadMore(context.Background()); err != nil {
		t.Fatalf("LoadMore() after exhaustion error = %v", err)
	}
	if h.calls.Load() != calls {
		t.Error("LoadMore() fetched after hasMore went false")
	}
	if conn.LoadedCount() != 25 {
		t.Error("state changed by exhausted LoadMore")
	}
}

func TestLoadMoreInFlightGuard(t *testing.T) {
	s := newHubServer(t)
	h := seedHistory(30)

	conn, err := Dial(context.Background(), 5, defaultOpts(s, h))
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()

	h.block = make(chan struct{})
	callsBefore := h.calls.Load()

	done := make(chan error, 1)
	go func() { done <- conn.LoadMore(context.Background()) }()
	waitFor(t, "load to start", conn.IsLoadingMore)

	// Second call while in flight: no network call, immediate return
	if err := conn.LoadMore(context.Background()); err != nil {
		t.Fatalf("guarded LoadMore() error = %v", err)
	}
	if h.calls.Load() != callsBefore+1 {
		t.Errorf("calls = %d, want %d", h.calls.Load(), callsBefore+1)
	}

	close(h.block)
	if err := <-done; err != nil {
		t.Fatalf("first LoadMore() error = %v", err)
	}
	if conn.LoadedCount() != 20 {
		t.Errorf("LoadedCount() = %d, want 20", conn.LoadedCount())
	}
}

func TestLivePushAppendsToTail(t *testing.T) {
	s := newHubServer(t)
	h := seedHistory(3)

	conn, err := Dial(context.Background(), 5, defaultOpts(s, h))
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()

	s.push(5, "live-1", "bo", "hello")
	waitFor(t, "push to arrive", func() bool { return len(conn.Messages()) == 4 })

	msgs := conn.Messages()
	last := msgs[len(msgs)-1]
	if last.ID != "live-1" || last.Sender != "bo" || last.Text != "hello" {
		t.Errorf("tail = %+v", last)
	}
	if last.Timestamp.IsZero() {
		t.Error("live message must carry a receipt timestamp")
	}
}

func TestPushDuringHistoryLoadIsBufferedAndMerged(t *testing.T) {
	s := newHubServer(t)
	h := seedHistory(5)
	h.block = make(chan struct{})

	type result struct {
		conn *RoomConn
		err  error
	}
	res := make(chan result, 1)
	go func() {
		conn, err := Dial(context.Background(), 5, defaultOpts(s, h))
		res <- result{conn, err}
	}()

	// Wait for the join, then push while history is still loading: one
	// duplicate of a history message and one genuinely new message.
	<-s.joined
	s.push(5, "m5", "ana", "text 5")
	s.push(5, "live-1", "bo", "fresh")

	// Give the pushes time to reach the client's buffer before releasing
	// the history fetch.
	time.Sleep(50 * time.Millisecond)
	close(h.block)

	r := <-res
	if r.err != nil {
		t.Fatalf("Dial() error = %v", r.err)
	}
	defer r.conn.Close()

	ids := messageIDs(r.conn.Messages())
	want := []string{"m1", "m2", "m3", "m4", "m5", "live-1"}
	if len(ids) != len(want) {
		t.Fatalf("merged = %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("merged = %v, want %v", ids, want)
		}
	}
}

func TestSend(t *testing.T) {
	s := newHubServer(t)
	h := seedHistory(0)

	conn, err := Dial(context.Background(), 5, defaultOpts(s, h))
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()

	// Whitespace-only text is a no-op
	if err := conn.Send("   "); err != nil {
		t.Fatalf("Send(blank) error = %v", err)
	}

	if err := conn.Send("  hi there  "); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	waitFor(t, "server to receive", func() bool { return len(s.sentTexts()) == 1 })
	if got := s.sentTexts(); got[0] != "hi there" {
		t.Errorf("server got %q", got[0])
	}

	// The server echoes the message back as a push
	waitFor(t, "echo push", func() bool { return len(conn.Messages()) == 1 })
}

func TestSendAfterCloseIsNoOp(t *testing.T) {
	s := newHubServer(t)
	h := seedHistory(0)

	conn, err := Dial(context.Background(), 5, defaultOpts(s, h))
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	conn.Close()

	if err := conn.Send("too late"); err != nil {
		t.Errorf("Send() after Close must be a no-op, got %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	if len(s.sentTexts()) != 0 {
		t.Error("message sent after Close")
	}
}

func TestRoomSwitchDropsOldSubscription(t *testing.T) {
	s := newHubServer(t)
	h := seedHistory(0)

	conn5, err := Dial(context.Background(), 5, defaultOpts(s, h))
	if err != nil {
		t.Fatalf("Dial(5) error = %v", err)
	}

	// Switching rooms: tear down first, then dial the new room
	if err := conn5.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	conn6, err := Dial(context.Background(), 6, defaultOpts(s, h))
	if err != nil {
		t.Fatalf("Dial(6) error = %v", err)
	}
	defer conn6.Close()

	s.push(5, "old-room", "ana", "for room 5")
	s.push(6, "new-room", "ana", "for room 6")
	waitFor(t, "room 6 push", func() bool { return len(conn6.Messages()) == 1 })

	if got := conn6.Messages()[0].ID; got != "new-room" {
		t.Errorf("room 6 received %q", got)
	}
	if len(conn5.Messages()) != 0 {
		t.Error("closed room 5 connection still accumulating messages")
	}
}

func TestReconnectRejoinsRoom(t *testing.T) {
	s := newHubServer(t)
	h := seedHistory(2)

	opts := defaultOpts(s, h)
	opts.Reconnect = true
	opts.ReconnectDelay = 10 * time.Millisecond

	conn, err := Dial(context.Background(), 5, opts)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()
	<-s.joined

	s.dropAll()
	waitFor(t, "rejoin", func() bool { return s.joinCount() == 2 })
	waitFor(t, "ready again", conn.Connected)

	// Pushes flow again after the rejoin
	s.push(5, "after-drop", "ana", "back")
	waitFor(t, "post-reconnect push", func() bool { return len(conn.Messages()) == 3 })
}

func TestDialHistoryFailureIsTerminal(t *testing.T) {
	s := newHubServer(t)
	h := seedHistory(0)
	h.err = fmt.Errorf("history store down")

	if _, err := Dial(context.Background(), 5, defaultOpts(s, h)); err == nil {
		t.Fatal("Dial() must fail when the initial history load fails")
	}
}

func TestDialRequiresToken(t *testing.T) {
	s := newHubServer(t)
	opts := defaultOpts(s, seedHistory(0))
	opts.Tokens = staticToken("")

	if _, err := Dial(context.Background(), 5, opts); err == nil {
		t.Fatal("Dial() must fail without a session token")
	}
}
