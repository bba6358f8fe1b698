package session

import (
	"context"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/mirage-client/internal/chat"
	"github.com/vovakirdan/mirage-client/internal/selector"
	"github.com/vovakirdan/mirage-client/internal/transport/httpapi"
)

// Session is the authenticated binding of a user to a specific server,
// identified by a bearer token. At most one is live per client instance.
type Session struct {
	Token    string
	Username string
	Server   chat.Server
	Channels []string
}

// Manager owns authentication state. A server is selected lazily on the first
// register/login and kept until re-selection is requested; selection failure
// surfaces distinctly from credential failure.
type Manager struct {
	servers  []chat.Server
	selector *selector.Selector
	log      *zerolog.Logger

	mu       sync.Mutex
	selected *chat.Server
	api      *httpapi.Client
	current  *Session
}

// NewManager creates a manager over the configured server list.
func NewManager(servers []chat.Server, sel *selector.Selector, logger *zerolog.Logger) *Manager {
	return &Manager{
		servers:  servers,
		selector: sel,
		log:      logger,
	}
}

// SelectedServer returns the server the manager currently targets, false when
// none has been selected yet.
func (m *Manager) SelectedServer() (chat.Server, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.selected == nil {
		return chat.Server{}, false
	}
	return *m.selected, true
}

// Register creates an account on the selected server. Credentials are
// validated locally before any request is made.
func (m *Manager) Register(ctx context.Context, username, password string) error {
	username, password, err := validateCredentials(username, password)
	if err != nil {
		return err
	}

	srv, err := m.ensureServer(ctx)
	if err != nil {
		return err
	}

	if err := httpapi.New(srv).Register(ctx, username, password); err != nil {
		return err
	}
	m.log.Info().Str("username", username).Str("server", srv.ID).Msg("registered")
	return nil
}

// Login authenticates and installs the session. The server descriptor echoed
// by the service is authoritative and adopted verbatim, even when it differs
// from the probed candidate.
func (m *Manager) Login(ctx context.Context, username, password string) (*Session, error) {
	username, password, err := validateCredentials(username, password)
	if err != nil {
		return nil, err
	}

	srv, err := m.ensureServer(ctx)
	if err != nil {
		return nil, err
	}

	res, err := httpapi.New(srv).Login(ctx, username, password)
	if err != nil {
		return nil, err
	}

	adopted := res.Server
	api := httpapi.New(adopted)
	api.SetToken(res.Token)

	m.mu.Lock()
	m.selected = &adopted
	m.api = api
	m.current = &Session{
		Token:    res.Token,
		Username: res.Username,
		Server:   adopted,
		Channels: res.Channels,
	}
	session := *m.current
	m.mu.Unlock()

	m.log.Info().Str("username", res.Username).Str("server", adopted.ID).Msg("logged in")
	return &session, nil
}

// Logout drops the session and its token. The selected server is kept so a
// re-login does not need a new selection round.
func (m *Manager) Logout() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = nil
	m.api = nil
}

// Expire drops the session after the poll loop saw an authentication-expired
// signal. Same effect as Logout, kept separate for log clarity.
func (m *Manager) Expire() {
	m.log.Warn().Msg("session expired, credentials required again")
	m.Logout()
}

// Session returns a copy of the live session, or nil when not authenticated.
func (m *Manager) Session() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return nil
	}
	session := *m.current
	return &session
}

// API returns the authenticated client, or nil when no session is live. A nil
// return means no authenticated request may be attempted.
func (m *Manager) API() *httpapi.Client {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.api
}

func (m *Manager) ensureServer(ctx context.Context) (chat.Server, error) {
	m.mu.Lock()
	if m.selected != nil {
		srv := *m.selected
		m.mu.Unlock()
		return srv, nil
	}
	m.mu.Unlock()

	srv, err := m.selector.SelectBest(ctx, m.servers)
	if err != nil {
		return chat.Server{}, err
	}

	m.mu.Lock()
	m.selected = &srv
	m.mu.Unlock()
	return srv, nil
}

func validateCredentials(username, password string) (string, string, error) {
	username = strings.TrimSpace(username)
	password = strings.TrimSpace(password)
	if username == "" || password == "" {
		return "", "", chat.ErrEmptyCredentials
	}
	return username, password, nil
}
