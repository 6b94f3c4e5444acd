package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"chatline/internal/client/api"
	"chatline/internal/client/hub"
	"chatline/internal/client/session"
	"chatline/internal/config"
	"chatline/pkg/logger"
)

func main() {
	cfg, err := config.LoadClient()
	if err != nil {
		logger.Fatal("Failed to load config: %v", err)
	}

	ctx := context.Background()

	store, err := session.OpenStore(ctx, cfg.StateDir)
	if err != nil {
		logger.Fatal("Failed to open state store: %v", err)
	}
	defer store.Close()

	sess := session.NewManager(store)
	if err := sess.Restore(ctx); err != nil {
		logger.Fatal("Failed to restore session: %v", err)
	}

	client := api.New(cfg.APIBaseURL, sess)
	scanner := bufio.NewScanner(os.Stdin)

	app := &app{cfg: cfg, sess: sess, client: client, scanner: scanner}
	app.run(ctx)
}

type app struct {
	cfg     config.ClientConfig
	sess    *session.Manager
	client  *api.Client
	scanner *bufio.Scanner
}

func (a *app) run(ctx context.Context) {
	for {
		if !a.sess.IsAuthenticated() {
			if !a.loginScreen(ctx) {
				return
			}
		}
		if !a.lobby(ctx) {
			return
		}
	}
}

// loginScreen prompts until a login or registration succeeds. Returns false
// on /quit.
func (a *app) loginScreen(ctx context.Context) bool {
	fmt.Println("Log in (or /register, /quit)")
	for {
		email, ok := a.prompt("email: ")
		if !ok || email == "/quit" {
			return false
		}
		if email == "/register" {
			if a.registerScreen(ctx) {
				return true
			}
			continue
		}

		password, ok := a.prompt("password: ")
		if !ok {
			return false
		}

		resp, err := a.client.Login(ctx, email, password)
		if err != nil {
			fmt.Printf("login failed: %v\n", err)
			continue
		}
		if err := a.sess.Login(ctx, resp.Token, resp.User); err != nil {
			fmt.Printf("could not persist session: %v\n", err)
			continue
		}
		fmt.Printf("welcome, %s\n", resp.User.UserName)
		return true
	}
}

func (a *app) registerScreen(ctx context.Context) bool {
	userName, ok := a.prompt("user name: ")
	if !ok {
		return false
	}
	email, ok := a.prompt("email: ")
	if !ok {
		return false
	}
	password, ok := a.prompt("password: ")
	if !ok {
		return false
	}

	resp, err := a.client.Register(ctx, userName, email, password)
	if err != nil {
		fmt.Printf("registration failed: %v\n", err)
		return false
	}
	if err := a.sess.Login(ctx, resp.Token, resp.User); err != nil {
		fmt.Printf("could not persist session: %v\n", err)
		return false
	}
	fmt.Printf("welcome, %s\n", resp.User.UserName)
	return true
}

// lobby lists rooms and dispatches into chat rooms. Returns false on /quit,
// true after /logout (back to the login screen).
func (a *app) lobby(ctx context.Context) bool {
	rooms := api.NewRoomList(a.client)
	rooms.Fetch(ctx)
	a.printRooms(rooms)

	for {
		line, ok := a.prompt("lobby> ")
		if !ok || line == "/quit" {
			return false
		}

		switch {
		case line == "/refresh":
			rooms.Fetch(ctx)
			a.printRooms(rooms)

		case strings.HasPrefix(line, "/create "):
			name := strings.TrimSpace(strings.TrimPrefix(line, "/create "))
			room, err := rooms.Create(ctx, name)
			if err != nil {
				fmt.Printf("create failed: %v\n", err)
				continue
			}
			rooms.Add(*room)
			fmt.Printf("created room %d (%s)\n", room.ID, room.ChatRoomName)

		case strings.HasPrefix(line, "/join "):
			id, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(line, "/join ")))
			if err != nil {
				fmt.Println("usage: /join <room id>")
				continue
			}
			a.chatRoom(ctx, id)

		case line == "/logout":
			if err := a.sess.Logout(ctx); err != nil {
				fmt.Printf("logout failed: %v\n", err)
				continue
			}
			return true

		case line == "":

		default:
			fmt.Println("commands: /refresh, /create <name>, /join <id>, /logout, /quit")
		}
	}
}

// chatRoom runs one room session: history, live messages, /more pagination.
func (a *app) chatRoom(ctx context.Context, roomID int) {
	var (
		mu       sync.Mutex
		conn     *hub.RoomConn
		lastTail string
	)

	onChange := func() {
		mu.Lock()
		defer mu.Unlock()
		if conn == nil {
			return
		}
		msgs := conn.Messages()
		start := len(msgs)
		for i := len(msgs) - 1; i >= 0; i-- {
			if msgs[i].ID == lastTail {
				break
			}
			start = i
		}
		for _, m := range msgs[start:] {
			a.printMessage(m)
		}
		if len(msgs) > 0 {
			lastTail = msgs[len(msgs)-1].ID
		}
		if errMsg := conn.Err(); errMsg != "" {
			fmt.Printf("\r! %s\n> ", errMsg)
		}
	}

	c, err := hub.Dial(ctx, roomID, hub.Options{
		URL:       a.cfg.HubURL,
		Tokens:    a.sess,
		History:   a.client,
		PageSize:  a.cfg.PageSize,
		Reconnect: true,
		OnChange:  onChange,
	})
	if err != nil {
		fmt.Printf("could not open room %d: %v\n", roomID, err)
		return
	}
	defer c.Close()

	mu.Lock()
	conn = c
	msgs := c.Messages()
	fmt.Printf("-- room %d (%d messages loaded", roomID, len(msgs))
	if c.HasMore() {
		fmt.Print(", /more for older")
	}
	fmt.Println(") --")
	for _, m := range msgs {
		a.printMessage(m)
	}
	if len(msgs) > 0 {
		lastTail = msgs[len(msgs)-1].ID
	}
	mu.Unlock()

	for {
		line, ok := a.prompt("> ")
		if !ok || line == "/back" {
			return
		}

		switch {
		case line == "/quit":
			c.Close()
			os.Exit(0)

		case line == "/more":
			if err := c.LoadMore(ctx); err != nil {
				fmt.Printf("load more failed: %v\n", err)
				continue
			}
			mu.Lock()
			msgs := c.Messages()
			fmt.Printf("-- %d messages loaded --\n", len(msgs))
			for _, m := range msgs {
				a.printMessage(m)
			}
			if len(msgs) > 0 {
				lastTail = msgs[len(msgs)-1].ID
			}
			mu.Unlock()

		case line == "":

		default:
			if err := c.Send(line); err != nil {
				fmt.Printf("send failed: %v\n", err)
			}
		}
	}
}

func (a *app) printRooms(rooms *api.RoomList) {
	if errMsg := rooms.Err(); errMsg != "" {
		fmt.Printf("! %s\n", errMsg)
	}
	list := rooms.Rooms()
	if len(list) == 0 {
		fmt.Println("no rooms yet; /create <name> to start one")
		return
	}
	fmt.Println("rooms:")
	for _, room := range list {
		fmt.Printf("  %4d  %s\n", room.ID, room.ChatRoomName)
	}
}

// printMessage renders one message. Whether it is "mine" is decided here,
// by comparing the sender name with the session's user name.
func (a *app) printMessage(m hub.ChatMessage) {
	sender := m.Sender
	if u := a.sess.User(); u != nil && u.UserName == m.Sender {
		sender = m.Sender + " (you)"
	}
	fmt.Printf("\r[%s] %s: %s\n", m.Timestamp.Format("15:04"), sender, m.Text)
}

func (a *app) prompt(p string) (string, bool) {
	fmt.Print(p)
	if !a.scanner.Scan() {
		return "", false
	}
	return strings.TrimSpace(a.scanner.Text()), true
}
