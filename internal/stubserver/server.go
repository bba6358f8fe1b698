// Package stubserver is a small gin implementation of the Mirage HTTP API.
// It backs the `mirage serve` command for local development and the
// integration tests; it is not a production chat server.
package stubserver

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/mirage-client/internal/chat"
)

const defaultChannel = "#general"

// Options configure the stub.
type Options struct {
	// DBPath is the SQLite database location, ":memory:" for tests.
	DBPath    string
	JWTSecret string
	TokenTTL  time.Duration

	// Descriptor is echoed verbatim in login responses; clients adopt it as
	// the authoritative session server.
	Descriptor chat.Server

	// Reported load figures for /api/server/stats. Active user count is live.
	CPUUsage    float64
	MemoryUsage float64
}

type channelState struct {
	topic   string
	members map[string]struct{}
}

// Server implements the Mirage protocol over in-memory channels and poll
// queues, with users and uploads persisted in SQLite.
type Server struct {
	opts   Options
	store  *store
	log    *zerolog.Logger
	engine *gin.Engine

	mu       sync.Mutex
	channels map[string]*channelState
	queues   map[string][]string
}

// New creates a stub server and its routes.
func New(opts Options, logger *zerolog.Logger) (*Server, error) {
	if opts.TokenTTL == 0 {
		opts.TokenTTL = 24 * time.Hour
	}
	if opts.DBPath == "" {
		opts.DBPath = ":memory:"
	}

	st, err := newStore(opts.DBPath)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	s := &Server{
		opts:  opts,
		store: st,
		log:   logger,
		channels: map[string]*channelState{
			defaultChannel: {topic: "Welcome to Mirage", members: map[string]struct{}{}},
		},
		queues: map[string][]string{},
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), loggerMiddleware(logger))

	api := r.Group("/api")
	api.POST("/register", s.handleRegister)
	api.POST("/login", s.handleLogin)
	api.GET("/server/stats", s.handleStats)

	authed := api.Group("", s.authMiddleware())
	authed.GET("/channels", s.handleChannels)
	authed.POST("/channels/create", s.handleCreateChannel)
	authed.GET("/channels/:name", s.handleChannelTopic)
	authed.POST("/message", s.handleMessage)
	authed.GET("/poll", s.handlePoll)
	authed.POST("/upload", s.handleUpload)
	authed.GET("/files/:channel", s.handleFiles)
	authed.GET("/download/:id", s.handleDownload)

	s.engine = r
	return s, nil
}

// Handler exposes the router; tests mount it on httptest servers.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Close releases the database.
func (s *Server) Close() error {
	return s.store.Close()
}

// Run serves on addr until the context is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 5 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.log.Info().Msg("shutting down stub server")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return <-serverErr
	}
}

// authMiddleware validates the Bearer token and stores the username on the
// request context.
func (s *Server) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, errorBody{Error: "missing authorization header"})
			c.Abort()
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(http.StatusUnauthorized, errorBody{Error: "invalid authorization header format"})
			c.Abort()
			return
		}

		claims, err := validateToken([]byte(s.opts.JWTSecret), parts[1])
		if err != nil {
			c.JSON(http.StatusUnauthorized, errorBody{Error: "invalid token"})
			c.Abort()
			return
		}

		c.Set("username", claims.Username)
		c.Next()
	}
}

func loggerMiddleware(logger *zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		logger.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Msg("http request")
	}
}

// broadcastLocked appends a line to every member of channel; an empty channel
// name reaches every active user. Caller holds s.mu.
func (s *Server) broadcastLocked(line, channel string) {
	stamped := fmt.Sprintf("[%s] %s", time.Now().Format("15:04"), line)

	if channel == "" {
		for user := range s.queues {
			s.queues[user] = append(s.queues[user], stamped)
		}
		return
	}

	ch, ok := s.channels[channel]
	if !ok {
		return
	}
	for user := range ch.members {
		if _, active := s.queues[user]; active {
			s.queues[user] = append(s.queues[user], stamped)
		}
	}
}

// joinLocked moves a user into channel, creating it on demand and announcing
// the membership changes. Caller holds s.mu.
func (s *Server) joinLocked(username, channel string) {
	for name, ch := range s.channels {
		if name == channel {
			continue
		}
		if _, ok := ch.members[username]; ok {
			delete(ch.members, username)
			s.broadcastLocked(fmt.Sprintf("* %s has left %s", username, name), name)
		}
	}

	ch, ok := s.channels[channel]
	if !ok {
		ch = &channelState{members: map[string]struct{}{}}
		s.channels[channel] = ch
	}
	if _, already := ch.members[username]; !already {
		ch.members[username] = struct{}{}
		s.broadcastLocked(fmt.Sprintf("* %s has joined %s", username, channel), channel)
	}
}

// rosterLocked snapshots every channel's member list, sorted for stable
// output. Caller holds s.mu.
func (s *Server) rosterLocked() map[string][]string {
	users := make(map[string][]string, len(s.channels))
	for name, ch := range s.channels {
		members := make([]string, 0, len(ch.members))
		for user := range ch.members {
			members = append(members, user)
		}
		sort.Strings(members)
		users[name] = members
	}
	return users
}

func formatFileSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}

	value := float64(size)
	for _, suffix := range []string{"KB", "MB", "GB"} {
		value /= unit
		if value < unit || suffix == "GB" {
			return fmt.Sprintf("%.1f %s", value, suffix)
		}
	}
	return fmt.Sprintf("%d B", size)
}
