package selector

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/mirage-client/internal/chat"
)

func newSelector(t *testing.T) *Selector {
	t.Helper()
	logger := zerolog.Nop()
	return New(500*time.Millisecond, &logger)
}

// statsServer serves a fixed stats report and returns a descriptor pointing at it.
func statsServer(t *testing.T, id string, cpu, mem float64, active, maxUsers int) chat.Server {
	t.Helper()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/server/stats" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprintf(w, `{"stats":{"cpu_usage":%g,"memory_usage":%g,"active_users_count":%d}}`, cpu, mem, active)
	}))
	t.Cleanup(ts.Close)

	return descriptorFor(t, ts.URL, id, maxUsers)
}

func descriptorFor(t *testing.T, rawURL, id string, maxUsers int) chat.Server {
	t.Helper()
	u, err := url.Parse(rawURL)
	if err != nil {
		t.Fatalf("parse test server url: %v", err)
	}
	port, err := strconv.Atoi(u.Port())
	if err != nil {
		t.Fatalf("parse test server port: %v", err)
	}
	return chat.Server{ID: id, Host: u.Hostname(), Port: port, MaxUsers: maxUsers}
}

func TestSelectBestPrefersLowestLoad(t *testing.T) {
	// busy: 0.4*0.9 + 0.3*0.5 + 0.3*0.5 = 0.66
	// idle: 0.4*0.1 + 0.3*0.2 + 0.3*0.1 = 0.13
	busy := statsServer(t, "busy", 0.9, 0.5, 50, 100)
	idle := statsServer(t, "idle", 0.1, 0.2, 10, 100)

	got, err := newSelector(t).SelectBest(context.Background(), []chat.Server{busy, idle})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != "idle" {
		t.Fatalf("expected idle server, got %s", got.ID)
	}
}

func TestSelectBestTieKeepsFirstSeen(t *testing.T) {
	a := statsServer(t, "a", 0.5, 0.5, 50, 100)
	b := statsServer(t, "b", 0.5, 0.5, 50, 100)

	got, err := newSelector(t).SelectBest(context.Background(), []chat.Server{a, b})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != "a" {
		t.Fatalf("tie must keep first-seen candidate, got %s", got.ID)
	}
}

func TestSelectBestSkipsUnresponsiveCandidates(t *testing.T) {
	dead := deadServer(t, "dead")
	alive := statsServer(t, "alive", 0.8, 0.8, 90, 100)

	got, err := newSelector(t).SelectBest(context.Background(), []chat.Server{dead, alive})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != "alive" {
		t.Fatalf("expected the responsive server, got %s", got.ID)
	}
}

func TestSelectBestFallsBackToFirstConfigured(t *testing.T) {
	candidates := []chat.Server{
		deadServer(t, "first"),
		deadServer(t, "second"),
		deadServer(t, "third"),
	}

	got, err := newSelector(t).SelectBest(context.Background(), candidates)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != "first" {
		t.Fatalf("expected fallback to first configured server, got %s", got.ID)
	}
}

func TestSelectBestEmptyListFails(t *testing.T) {
	_, err := newSelector(t).SelectBest(context.Background(), nil)
	if !errors.Is(err, chat.ErrNoServers) {
		t.Fatalf("expected ErrNoServers, got %v", err)
	}
}

// deadServer returns a descriptor whose backing listener is already closed.
func deadServer(t *testing.T, id string) chat.Server {
	t.Helper()
	ts := httptest.NewServer(http.NotFoundHandler())
	srv := descriptorFor(t, ts.URL, id, 100)
	ts.Close()
	return srv
}
