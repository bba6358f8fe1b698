package app

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/mirage-client/internal/chat"
	"github.com/vovakirdan/mirage-client/internal/config"
)

type nopSubscriber struct {
	mu          sync.Mutex
	fileUpdates int
}

func (s *nopSubscriber) OnMessage(chat.Event)       {}
func (s *nopSubscriber) OnRosterUpdate([]string)    {}
func (s *nopSubscriber) OnSessionExpired()          {}
func (s *nopSubscriber) OnFileListUpdate([]chat.FileRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fileUpdates++
}

func (s *nopSubscriber) updates() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fileUpdates
}

// fakeService emulates the slice of the server API the app touches and records
// every message payload it receives.
type fakeService struct {
	mu       sync.Mutex
	payloads []chat.OutgoingPayload

	topicStatus int
	descriptor  chat.Server
}

func (f *fakeService) sent() []chat.OutgoingPayload {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]chat.OutgoingPayload(nil), f.payloads...)
}

func (f *fakeService) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/api/server/stats":
		_, _ = w.Write([]byte(`{"stats":{"cpu_usage":0.1,"memory_usage":0.1,"active_users_count":1}}`))

	case r.URL.Path == "/api/login":
		_ = json.NewEncoder(w).Encode(map[string]any{
			"token":    "tok",
			"username": "alice",
			"server":   f.descriptor,
			"channels": []string{DefaultChannel},
		})

	case r.URL.Path == "/api/message":
		var payload chat.OutgoingPayload
		_ = json.NewDecoder(r.Body).Decode(&payload)
		f.mu.Lock()
		f.payloads = append(f.payloads, payload)
		f.mu.Unlock()
		_, _ = w.Write([]byte(`{}`))

	case r.URL.Path == "/api/channels/create":
		var body struct {
			Name string `json:"name"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		_ = json.NewEncoder(w).Encode(map[string]string{"name": body.Name})

	case strings.HasPrefix(r.URL.Path, "/api/channels/"):
		if f.topicStatus != 0 {
			w.WriteHeader(f.topicStatus)
			_, _ = w.Write([]byte(`{"error":"channel not found"}`))
			return
		}
		_, _ = w.Write([]byte(`{"topic":"dev topic"}`))

	case strings.HasPrefix(r.URL.Path, "/api/files/"):
		_, _ = w.Write([]byte(`{"files":[{"id":1,"original_name":"plan.txt","size":10,"uploader":"bob","channel":"#dev"}]}`))

	default:
		http.NotFound(w, r)
	}
}

func newTestApp(t *testing.T, svc *fakeService) (*App, *nopSubscriber) {
	t.Helper()

	ts := httptest.NewServer(svc)
	t.Cleanup(ts.Close)

	u, err := url.Parse(ts.URL)
	if err != nil {
		t.Fatalf("parse test server url: %v", err)
	}
	port, err := strconv.Atoi(u.Port())
	if err != nil {
		t.Fatalf("parse test server port: %v", err)
	}
	svc.descriptor = chat.Server{ID: "fake", Host: u.Hostname(), Port: port, MaxUsers: 100}

	cfg := config.Default()
	cfg.Servers = []chat.Server{svc.descriptor}
	cfg.ProbeTimeout = 500 * time.Millisecond

	subs := &nopSubscriber{}
	logger := zerolog.Nop()
	return New(cfg, subs, &logger), subs
}

func login(t *testing.T, a *App) {
	t.Helper()
	if _, err := a.Login(context.Background(), "alice", "secret"); err != nil {
		t.Fatalf("login failed: %v", err)
	}
}

func TestSwitchChannelFetchesViewAndJoins(t *testing.T) {
	svc := &fakeService{}
	a, subs := newTestApp(t, svc)
	login(t, a)

	if err := a.SwitchChannel(context.Background(), "#dev"); err != nil {
		t.Fatalf("switch failed: %v", err)
	}

	state := a.State()
	if state.Name != "#dev" || state.Topic != "dev topic" {
		t.Fatalf("unexpected state: %+v", state)
	}
	if len(state.Files) != 1 || state.Files[0].OriginalName != "plan.txt" {
		t.Fatalf("file listing not applied: %+v", state.Files)
	}
	if subs.updates() != 1 {
		t.Fatalf("expected one file-list notification, got %d", subs.updates())
	}

	sent := svc.sent()
	if len(sent) != 1 {
		t.Fatalf("expected one join command, got %d payloads", len(sent))
	}
	join := sent[0]
	if join.Type != chat.PayloadCommand || join.Content != "/join #dev" || join.Channel != "#dev" {
		t.Fatalf("unexpected join payload: %+v", join)
	}
}

func TestSwitchChannelSurvivesTopicFailure(t *testing.T) {
	svc := &fakeService{topicStatus: http.StatusNotFound}
	a, _ := newTestApp(t, svc)
	login(t, a)

	if err := a.SwitchChannel(context.Background(), "#dev"); err != nil {
		t.Fatalf("switch must not abort on topic failure: %v", err)
	}
	if state := a.State(); state.Name != "#dev" || state.Topic != "" {
		t.Fatalf("unexpected state: %+v", state)
	}
}

func TestSendSkipsEmptyInput(t *testing.T) {
	svc := &fakeService{}
	a, _ := newTestApp(t, svc)
	login(t, a)

	if err := a.Send(context.Background(), "   \t "); err != nil {
		t.Fatalf("empty send must be a silent no-op, got %v", err)
	}
	if got := svc.sent(); len(got) != 0 {
		t.Fatalf("empty input must not produce a request: %+v", got)
	}

	if err := a.Send(context.Background(), "hello"); err != nil {
		t.Fatalf("send failed: %v", err)
	}
	sent := svc.sent()
	if len(sent) != 1 || sent[0].Type != chat.PayloadMessage || sent[0].Content != "hello" || sent[0].Channel != DefaultChannel {
		t.Fatalf("unexpected payload: %+v", sent)
	}
}

func TestOperationsRequireAuthentication(t *testing.T) {
	a, _ := newTestApp(t, &fakeService{})
	ctx := context.Background()

	if err := a.Send(ctx, "hi"); !errors.Is(err, chat.ErrNotAuthenticated) {
		t.Fatalf("send: expected ErrNotAuthenticated, got %v", err)
	}
	if err := a.SwitchChannel(ctx, "#dev"); !errors.Is(err, chat.ErrNotAuthenticated) {
		t.Fatalf("switch: expected ErrNotAuthenticated, got %v", err)
	}
	if err := a.StartPolling(ctx); !errors.Is(err, chat.ErrNotAuthenticated) {
		t.Fatalf("poll: expected ErrNotAuthenticated, got %v", err)
	}
	if _, err := a.UploadFile(ctx, "nope.txt"); !errors.Is(err, chat.ErrNotAuthenticated) {
		t.Fatalf("upload: expected ErrNotAuthenticated, got %v", err)
	}
}

func TestCreateChannelSwitchesIntoIt(t *testing.T) {
	svc := &fakeService{}
	a, _ := newTestApp(t, svc)
	login(t, a)

	if err := a.CreateChannel(context.Background(), "#fresh", "brand new"); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if got := a.State().Name; got != "#fresh" {
		t.Fatalf("expected current channel #fresh, got %s", got)
	}
}
