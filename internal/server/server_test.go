package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"diffraxia-go/internal/progress"
	"diffraxia-go/internal/types"
)

func TestHandleStatus(t *testing.T) {
	hub := NewHub(4)
	hub.Observe(progress.Event{Stage: progress.StageConvert, Index: 1, Total: 3, Source: "0"})
	hub.Observe(progress.Event{Stage: progress.StageConvert, Index: 2, Total: 3, Source: "1", Err: errors.New("bad frame")})
	srv := New(hub)

	req := httptest.NewRequest("GET", "/status", nil)
	rec := httptest.NewRecorder()
	srv.handleStatus(rec, req)

	if rec.Code != 200 {
		t.Fatalf("unexpected status: %d", rec.Code)
	}

	var payload struct {
		Run       types.UISnapshot `json:"run"`
		WSClients int              `json:"ws_clients"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Run.Done != 1 || payload.Run.Failed != 1 || payload.Run.Total != 3 {
		t.Fatalf("unexpected snapshot: %+v", payload.Run)
	}
	if payload.Run.Last == nil || payload.Run.Last.Error != "bad frame" {
		t.Fatalf("unexpected last message: %+v", payload.Run.Last)
	}
}

func TestHandleHealth(t *testing.T) {
	rec := httptest.NewRecorder()
	New(NewHub(1)).handleHealth(rec, httptest.NewRequest("GET", "/healthz", nil))
	if rec.Code != 200 || rec.Body.String() != "ok" {
		t.Fatalf("unexpected response %d %q", rec.Code, rec.Body.String())
	}
}

func TestHubDropsWhenFull(t *testing.T) {
	hub := NewHub(1)
	hub.Observe(progress.Event{Stage: progress.StageIntegrate, Index: 1})
	hub.Observe(progress.Event{Stage: progress.StageIntegrate, Index: 2})
	if hub.Dropped() != 1 {
		t.Fatalf("expected one dropped message, got %d", hub.Dropped())
	}
	if s := hub.Snapshot(); s.Done != 2 {
		t.Fatalf("snapshot must count dropped events: %+v", s)
	}
}

func TestHubResetsOnNewStage(t *testing.T) {
	hub := NewHub(8)
	hub.Observe(progress.Event{Stage: progress.StageConvert, Index: 1})
	hub.Observe(progress.Event{Stage: progress.StageConvert, Finished: true})
	hub.Observe(progress.Event{Stage: progress.StageIntegrate, Index: 1, Total: 5})
	s := hub.Snapshot()
	if s.Stage != progress.StageIntegrate || s.Done != 1 || s.Finished {
		t.Fatalf("unexpected snapshot %+v", s)
	}
}

func TestWebsocketBroadcast(t *testing.T) {
	hub := NewHub(8)
	srv := New(hub)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.broadcast(ctx)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var snapshot types.UISnapshot
	if err := conn.ReadJSON(&snapshot); err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	if snapshot.Type != "snapshot" {
		t.Fatalf("unexpected first message %+v", snapshot)
	}

	hub.Observe(progress.Event{Stage: progress.StageConvert, Index: 1, Total: 2, Source: "7", Output: "frame_00000.tiff"})

	var msg types.UIMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read progress: %v", err)
	}
	if msg.Type != "progress" || msg.Source != "7" || msg.Output != "frame_00000.tiff" {
		t.Fatalf("unexpected message %+v", msg)
	}
}
