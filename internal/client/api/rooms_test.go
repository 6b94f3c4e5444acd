package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func TestRoomListFetchReplacesList(t *testing.T) {
	body := `[{"id":2,"chatRoomName":"general"},{"id":1,"chatRoomName":"random"}]`
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}))
	defer ts.Close()

	l := NewRoomList(New(ts.URL, staticToken("t")))
	l.Fetch(context.Background())

	rooms := l.Rooms()
	if len(rooms) != 2 || rooms[0].ID != 2 || rooms[1].ChatRoomName != "random" {
		t.Errorf("Rooms() = %+v", rooms)
	}
	if l.Err() != "" {
		t.Errorf("Err() = %q, want empty", l.Err())
	}
	if l.Loading() {
		t.Error("Loading() = true after fetch completed")
	}

	// Second fetch replaces, not appends
	body = `[{"id":3,"chatRoomName":"new"}]`
	l.Fetch(context.Background())
	rooms = l.Rooms()
	if len(rooms) != 1 || rooms[0].ID != 3 {
		t.Errorf("Rooms() after refetch = %+v", rooms)
	}
}

func TestRoomListFetchFailureKeepsPriorList(t *testing.T) {
	fail := atomic.Bool{}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"error":"db down"}`))
			return
		}
		w.Write([]byte(`[{"id":1,"chatRoomName":"keep-me"}]`))
	}))
	defer ts.Close()

	l := NewRoomList(New(ts.URL, staticToken("t")))
	l.Fetch(context.Background())
	if len(l.Rooms()) != 1 {
		t.Fatalf("seed fetch failed: %q", l.Err())
	}

	fail.Store(true)
	l.Fetch(context.Background())

	if rooms := l.Rooms(); len(rooms) != 1 || rooms[0].ChatRoomName != "keep-me" {
		t.Errorf("prior list not kept: %+v", rooms)
	}
	if l.Err() != "db down" {
		t.Errorf("Err() = %q, want db down", l.Err())
	}
}

func TestRoomListCreateDoesNotRefetch(t *testing.T) {
	var listCalls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.Method == http.MethodPost {
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`{"id":9,"chatRoomName":"made"}`))
			return
		}
		listCalls.Add(1)
		w.Write([]byte(`[]`))
	}))
	defer ts.Close()

	l := NewRoomList(New(ts.URL, staticToken("t")))
	room, err := l.Create(context.Background(), "made")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if room.ID != 9 || room.ChatRoomName != "made" {
		t.Errorf("Create() = %+v", room)
	}
	if listCalls.Load() != 0 {
		t.Error("Create must not trigger a list refetch")
	}
	if len(l.Rooms()) != 0 {
		t.Error("Create must not implicitly add to the list")
	}

	// The caller appends locally
	l.Add(*room)
	if rooms := l.Rooms(); len(rooms) != 1 || rooms[0].ID != 9 {
		t.Errorf("Add() result = %+v", rooms)
	}
}

func TestRoomListCreateFailureRecordsError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"errors":["room name is required"]}`))
	}))
	defer ts.Close()

	l := NewRoomList(New(ts.URL, staticToken("t")))
	room, err := l.Create(context.Background(), "")
	if err == nil || room != nil {
		t.Fatalf("Create() = %+v, %v; want nil, error", room, err)
	}
	if l.Err() != "room name is required" {
		t.Errorf("Err() = %q", l.Err())
	}
}
