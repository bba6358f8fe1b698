package poll

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/mirage-client/internal/chat"
	"github.com/vovakirdan/mirage-client/internal/transport/httpapi"
)

// ErrAlreadyRunning is returned when Start is called on a running engine.
var ErrAlreadyRunning = errors.New("polling already running")

// State is the engine lifecycle state.
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateStopped
)

// Engine converts the stateless poll endpoint into a continuous stream of
// decoded events and roster updates. The loop is fixed-rate: one request,
// then one interval of waiting, regardless of whether the request succeeded,
// failed, or carried nothing. Transient failures never stop the loop; only an
// authentication-expired response or an explicit Stop does.
type Engine struct {
	store    *chat.Store
	subs     chat.Subscriber
	interval time.Duration
	log      *zerolog.Logger

	// onExpired clears the owning session when the server reports the token
	// dead. Invoked at most once per generation.
	onExpired func()

	mu         sync.Mutex
	state      State
	cancel     context.CancelFunc
	generation uint64
}

// New creates an idle engine delivering into store and subs.
func New(store *chat.Store, subs chat.Subscriber, interval time.Duration, onExpired func(), logger *zerolog.Logger) *Engine {
	return &Engine{
		store:     store,
		subs:      subs,
		interval:  interval,
		onExpired: onExpired,
		log:       logger,
	}
}

// State reports the current lifecycle state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Start begins the poll loop against api. Each Start opens a new generation;
// results produced by an earlier generation that are still in flight are
// discarded rather than applied to the fresh view. Starting a running engine
// is an error; starting after Stop opens a new generation.
func (e *Engine) Start(ctx context.Context, api *httpapi.Client) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == StateRunning {
		return ErrAlreadyRunning
	}

	runCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.state = StateRunning
	e.generation++
	gen := e.generation

	go e.run(runCtx, gen, api)
	return nil
}

// Stop ends the loop. Idempotent; safe to call from any state.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
	e.state = StateStopped
}

func (e *Engine) run(ctx context.Context, gen uint64, api *httpapi.Client) {
	for {
		res, err := api.Poll(ctx)
		switch {
		case errors.Is(err, chat.ErrSessionExpired):
			e.expire(gen)
			return
		case err != nil:
			if ctx.Err() != nil {
				return
			}
			e.log.Warn().Err(err).Msg("poll failed, retrying next tick")
		default:
			e.apply(gen, res)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(e.interval):
		}
	}
}

// apply delivers one poll result. Results from a superseded generation are
// dropped whole; the store additionally drops results for a channel that was
// switched away from while the request was in flight.
func (e *Engine) apply(gen uint64, res *httpapi.PollResult) {
	e.mu.Lock()
	stale := gen != e.generation || e.state != StateRunning
	e.mu.Unlock()
	if stale {
		e.log.Debug().Uint64("generation", gen).Msg("dropping stale poll result")
		return
	}

	channel := e.store.CurrentChannel()
	events := chat.DecodeAll(res.Messages)

	var roster []string
	if res.Users != nil {
		if r, ok := res.Users[channel]; ok {
			roster = r
		}
	}

	if !e.store.ApplyPoll(channel, events, roster) {
		return
	}

	for _, ev := range events {
		e.subs.OnMessage(ev)
	}
	if roster != nil {
		e.subs.OnRosterUpdate(roster)
	}
}

// expire handles the one terminal server signal: transition to Stopped, clear
// the session, and tell subscribers re-authentication is required.
func (e *Engine) expire(gen uint64) {
	e.mu.Lock()
	if gen != e.generation || e.state != StateRunning {
		e.mu.Unlock()
		return
	}
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
	e.state = StateStopped
	e.mu.Unlock()

	e.log.Warn().Msg("session expired, polling stopped")
	if e.onExpired != nil {
		e.onExpired()
	}
	e.subs.OnSessionExpired()
}
