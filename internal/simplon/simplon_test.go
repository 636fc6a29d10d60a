package simplon

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sync"
	"testing"
	"time"
)

func TestBuildPaths(t *testing.T) {
	got := BuildPaths("http://det/", "/1.8.0/", "stream", "config", "/mode")
	want := []string{
		"http://det/stream/api/1.8.0/config/mode",
		"http://det/api/1.8.0/stream/config/mode",
		"http://det/stream/config/mode",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("paths = %v, want %v", got, want)
	}
	if got := BuildPaths("http://det", "", "stream", "config", "mode"); len(got) != 1 {
		t.Fatalf("unversioned paths = %v", got)
	}
	if got := BuildPaths("", "1.8.0", "stream", "config", "mode"); got != nil {
		t.Fatalf("expected nil without base url, got %v", got)
	}
}

// fakeDetector answers only the legacy unversioned layout.
func fakeDetector(t *testing.T, states map[string]string, mode *string) *httptest.Server {
	t.Helper()
	var mu sync.Mutex
	mux := http.NewServeMux()
	for module, state := range states {
		state := state
		mux.HandleFunc("/"+module+"/status/state", func(w http.ResponseWriter, _ *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]any{"value": state})
		})
	}
	mux.HandleFunc("/monitor/status/state", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	mux.HandleFunc("/stream/config/mode", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		if r.Method == http.MethodPut {
			var body map[string]any
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			*mode, _ = body["value"].(string)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"value": *mode, "access_mode": "rw"})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestStatus(t *testing.T) {
	mode := "disabled"
	srv := fakeDetector(t, map[string]string{"detector": "Idle", "stream": "ready", "filewriter": "ready"}, &mode)
	c := NewClient(srv.URL)

	got := c.Status(context.Background())
	want := Status{"detector": "idle", "stream": "ready", "filewriter": "ready", "monitor": "http_500"}
	if !got.Equal(want) {
		t.Fatalf("status = %v, want %v", got, want)
	}
}

func TestStreamMode(t *testing.T) {
	mode := "disabled"
	srv := fakeDetector(t, map[string]string{}, &mode)
	c := NewClient(srv.URL)
	ctx := context.Background()

	on, err := c.StreamEnabled(ctx)
	if err != nil || on {
		t.Fatalf("StreamEnabled = %v, %v", on, err)
	}
	if err := c.SetConfig(ctx, "stream", "mode", "enabled"); err != nil {
		t.Fatalf("SetConfig: %v", err)
	}
	on, err = c.StreamEnabled(ctx)
	if err != nil || !on {
		t.Fatalf("StreamEnabled after set = %v, %v", on, err)
	}
}

func TestStateErrors(t *testing.T) {
	mode := ""
	srv := fakeDetector(t, map[string]string{}, &mode)
	c := NewClient(srv.URL)

	_, err := c.State(context.Background(), "monitor")
	var he *HTTPError
	if !errors.As(err, &he) || he.Status != http.StatusInternalServerError {
		t.Fatalf("expected http 500 error, got %v", err)
	}
	if _, err := NewClient("").State(context.Background(), "stream"); !errors.Is(err, ErrMissingBaseURL) {
		t.Fatalf("expected ErrMissingBaseURL, got %v", err)
	}
}

func TestPollReportsChanges(t *testing.T) {
	mode := ""
	srv := fakeDetector(t, map[string]string{"detector": "ready", "stream": "ready", "filewriter": "ready"}, &mode)
	c := NewClient(srv.URL)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	calls := 0
	c.Poll(ctx, 10*time.Millisecond, func(Status) { calls++ })
	if calls != 1 {
		t.Fatalf("update called %d times for an unchanged status, want 1", calls)
	}
}
