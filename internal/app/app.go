package app

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/mirage-client/internal/chat"
	"github.com/vovakirdan/mirage-client/internal/config"
	"github.com/vovakirdan/mirage-client/internal/files"
	"github.com/vovakirdan/mirage-client/internal/poll"
	"github.com/vovakirdan/mirage-client/internal/selector"
	"github.com/vovakirdan/mirage-client/internal/session"
	"github.com/vovakirdan/mirage-client/internal/transport/httpapi"
)

// DefaultChannel is where a fresh session lands.
const DefaultChannel = "#general"

// App is the client instance: one session, one current channel, one polling
// loop. All state lives here and is passed into collaborators explicitly;
// nothing is ambient. The subscriber renders; the app never does.
type App struct {
	cfg  config.Config
	log  *zerolog.Logger
	subs chat.Subscriber

	store    *chat.Store
	sessions *session.Manager
	engine   *poll.Engine

	mu        sync.Mutex
	transfers *files.TransferClient
}

// New wires selector, session manager, state store, and polling engine.
func New(cfg config.Config, subs chat.Subscriber, logger *zerolog.Logger) *App {
	a := &App{
		cfg:   cfg,
		log:   logger,
		subs:  subs,
		store: chat.NewStore(DefaultChannel),
	}

	sel := selector.New(cfg.ProbeTimeout, logger)
	a.sessions = session.NewManager(cfg.Servers, sel, logger)
	a.engine = poll.New(a.store, subs, cfg.PollInterval, a.sessions.Expire, logger)
	return a
}

// Register creates an account on the selected server.
func (a *App) Register(ctx context.Context, username, password string) error {
	return a.sessions.Register(ctx, username, password)
}

// Login authenticates and prepares the file transfer client.
func (a *App) Login(ctx context.Context, username, password string) (*session.Session, error) {
	sess, err := a.sessions.Login(ctx, username, password)
	if err != nil {
		return nil, err
	}

	a.mu.Lock()
	a.transfers = files.New(a.sessions.API(), a.log)
	a.mu.Unlock()
	return sess, nil
}

// StartPolling begins the poll loop for the live session.
func (a *App) StartPolling(ctx context.Context) error {
	api := a.sessions.API()
	if api == nil {
		return chat.ErrNotAuthenticated
	}
	return a.engine.Start(ctx, api)
}

// StopPolling ends the poll loop. Idempotent.
func (a *App) StopPolling() {
	a.engine.Stop()
}

// Logout stops polling and drops the session.
func (a *App) Logout() {
	a.engine.Stop()
	a.sessions.Logout()

	a.mu.Lock()
	a.transfers = nil
	a.mu.Unlock()
}

// SwitchChannel makes name the current channel: the old channel's view is
// discarded, the new topic and file listing are fetched, and a /join command
// registers presence with the server. Topic and file fetch failures are
// reported but do not abort the switch.
func (a *App) SwitchChannel(ctx context.Context, name string) error {
	api := a.sessions.API()
	if api == nil {
		return chat.ErrNotAuthenticated
	}

	a.store.Switch(name)

	if topic, err := api.ChannelTopic(ctx, name); err != nil {
		a.log.Warn().Err(err).Str("channel", name).Msg("topic fetch failed")
	} else {
		a.store.SetTopic(name, topic)
	}

	if listing, err := api.Files(ctx, name); err != nil {
		a.log.Warn().Err(err).Str("channel", name).Msg("file listing fetch failed")
	} else if a.store.SetFiles(name, listing) {
		a.subs.OnFileListUpdate(listing)
	}

	payload, ok := chat.EncodeOutgoing("/join "+name, name)
	if !ok {
		return nil
	}
	if err := api.SendMessage(ctx, payload); err != nil {
		return err
	}

	a.log.Info().Str("channel", name).Msg("switched channel")
	return nil
}

// Send encodes text for the current channel and posts it. Whitespace-only
// input is a no-op: nothing is sent and no error is returned.
func (a *App) Send(ctx context.Context, text string) error {
	api := a.sessions.API()
	if api == nil {
		return chat.ErrNotAuthenticated
	}

	payload, ok := chat.EncodeOutgoing(text, a.store.CurrentChannel())
	if !ok {
		return nil
	}
	return api.SendMessage(ctx, payload)
}

// UploadFile uploads the file at path into the current channel and records
// the returned file in the channel view.
func (a *App) UploadFile(ctx context.Context, path string) (chat.FileRecord, error) {
	transfers := a.Files()
	if transfers == nil {
		return chat.FileRecord{}, chat.ErrNotAuthenticated
	}

	channel := a.store.CurrentChannel()
	record, err := transfers.Upload(ctx, channel, path)
	if err != nil {
		return chat.FileRecord{}, err
	}

	if a.store.AppendFile(channel, record) {
		a.subs.OnFileListUpdate(a.store.Current().Files)
	}
	return record, nil
}

// Channels lists channels on the session's server.
func (a *App) Channels(ctx context.Context) ([]httpapi.ChannelInfo, error) {
	api := a.sessions.API()
	if api == nil {
		return nil, chat.ErrNotAuthenticated
	}
	return api.Channels(ctx)
}

// CreateChannel creates a channel and switches into it.
func (a *App) CreateChannel(ctx context.Context, name, topic string) error {
	api := a.sessions.API()
	if api == nil {
		return chat.ErrNotAuthenticated
	}

	created, err := api.CreateChannel(ctx, name, topic)
	if err != nil {
		return err
	}
	return a.SwitchChannel(ctx, created)
}

// Files returns the transfer client, nil before login.
func (a *App) Files() *files.TransferClient {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.transfers
}

// State returns a copy of the current channel view.
func (a *App) State() chat.ChannelState {
	return a.store.Current()
}
