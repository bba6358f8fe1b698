package stubserver

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/vovakirdan/mirage-client/internal/chat"
)

// maxUploadSize caps file uploads at 8 MB, matching deployed servers.
const maxUploadSize = 8 << 20

type errorBody struct {
	Error string `json:"error"`
}

type credentialsBody struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type createChannelBody struct {
	Name  string `json:"name" binding:"required"`
	Topic string `json:"topic"`
}

type messageBody struct {
	Type    string `json:"type" binding:"required"`
	Content string `json:"content" binding:"required"`
	Channel string `json:"channel" binding:"required"`
}

// POST /api/register
func (s *Server) handleRegister(c *gin.Context) {
	var req credentialsBody
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody{Error: "invalid request body"})
		return
	}

	username := strings.TrimSpace(req.Username)
	if len(username) < 3 || len(username) > 32 {
		c.JSON(http.StatusBadRequest, errorBody{Error: "username must be 3-32 characters"})
		return
	}
	if len(req.Password) < 6 {
		c.JSON(http.StatusBadRequest, errorBody{Error: "password must be at least 6 characters"})
		return
	}

	exists, err := s.store.userExists(c.Request.Context(), username)
	if err != nil {
		s.log.Error().Err(err).Msg("user lookup failed")
		c.JSON(http.StatusInternalServerError, errorBody{Error: "internal server error"})
		return
	}
	if exists {
		c.JSON(http.StatusConflict, errorBody{Error: "user already exists"})
		return
	}

	hash, err := hashPassword(req.Password)
	if err != nil {
		s.log.Error().Err(err).Msg("password hash failed")
		c.JSON(http.StatusInternalServerError, errorBody{Error: "internal server error"})
		return
	}
	if err := s.store.createUser(c.Request.Context(), username, hash); err != nil {
		s.log.Error().Err(err).Str("username", username).Msg("user create failed")
		c.JSON(http.StatusInternalServerError, errorBody{Error: "internal server error"})
		return
	}

	s.log.Info().Str("username", username).Msg("user registered")
	c.JSON(http.StatusOK, gin.H{})
}

// POST /api/login
func (s *Server) handleLogin(c *gin.Context) {
	var req credentialsBody
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody{Error: "invalid request body"})
		return
	}

	username := strings.TrimSpace(req.Username)
	hash, err := s.store.passwordHash(c.Request.Context(), username)
	if err != nil || comparePassword(hash, req.Password) != nil {
		c.JSON(http.StatusUnauthorized, errorBody{Error: "invalid credentials"})
		return
	}

	token, err := generateToken([]byte(s.opts.JWTSecret), username, s.opts.TokenTTL)
	if err != nil {
		s.log.Error().Err(err).Msg("token generation failed")
		c.JSON(http.StatusInternalServerError, errorBody{Error: "internal server error"})
		return
	}

	s.mu.Lock()
	if _, active := s.queues[username]; !active {
		s.queues[username] = []string{}
	}
	s.joinLocked(username, defaultChannel)
	channels := make([]string, 0, len(s.channels))
	for name := range s.channels {
		channels = append(channels, name)
	}
	s.mu.Unlock()

	s.log.Info().Str("username", username).Msg("user logged in")
	c.JSON(http.StatusOK, gin.H{
		"token":    token,
		"username": username,
		"server":   s.opts.Descriptor,
		"channels": channels,
	})
}

// GET /api/server/stats
func (s *Server) handleStats(c *gin.Context) {
	s.mu.Lock()
	active := len(s.queues)
	s.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{"stats": gin.H{
		"cpu_usage":          s.opts.CPUUsage,
		"memory_usage":       s.opts.MemoryUsage,
		"active_users_count": active,
	}})
}

// GET /api/channels
func (s *Server) handleChannels(c *gin.Context) {
	s.mu.Lock()
	out := make([]gin.H, 0, len(s.channels))
	for name, ch := range s.channels {
		out = append(out, gin.H{"name": name, "users_count": len(ch.members)})
	}
	s.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{"channels": out})
}

// POST /api/channels/create
func (s *Server) handleCreateChannel(c *gin.Context) {
	var req createChannelBody
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody{Error: "invalid request body"})
		return
	}

	name := strings.TrimSpace(req.Name)
	if !strings.HasPrefix(name, "#") {
		name = "#" + name
	}

	s.mu.Lock()
	if _, exists := s.channels[name]; exists {
		s.mu.Unlock()
		c.JSON(http.StatusConflict, errorBody{Error: "channel already exists"})
		return
	}
	s.channels[name] = &channelState{topic: req.Topic, members: map[string]struct{}{}}
	s.broadcastLocked(fmt.Sprintf("* Channel %s has been created by %s", name, c.GetString("username")), "")
	s.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{"name": name})
}

// GET /api/channels/:name
func (s *Server) handleChannelTopic(c *gin.Context) {
	name := c.Param("name")

	s.mu.Lock()
	ch, ok := s.channels[name]
	topic := ""
	if ok {
		topic = ch.topic
	}
	s.mu.Unlock()

	if !ok {
		c.JSON(http.StatusNotFound, errorBody{Error: "channel not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"topic": topic})
}

// POST /api/message
func (s *Server) handleMessage(c *gin.Context) {
	var req messageBody
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody{Error: "invalid request body"})
		return
	}
	username := c.GetString("username")

	switch req.Type {
	case "message":
		s.mu.Lock()
		s.broadcastLocked(fmt.Sprintf("%s: %s", username, req.Content), req.Channel)
		s.mu.Unlock()
		c.JSON(http.StatusOK, gin.H{})
	case "command":
		s.handleCommand(c, username, req)
	default:
		c.JSON(http.StatusBadRequest, errorBody{Error: "unknown message type"})
	}
}

func (s *Server) handleCommand(c *gin.Context, username string, req messageBody) {
	command, args, _ := strings.Cut(strings.TrimPrefix(req.Content, "/"), " ")
	args = strings.TrimSpace(args)

	s.mu.Lock()
	defer s.mu.Unlock()

	switch command {
	case "join":
		if args == "" {
			c.JSON(http.StatusBadRequest, errorBody{Error: "usage: /join <channel>"})
			return
		}
		s.joinLocked(username, args)
	case "topic":
		ch, ok := s.channels[req.Channel]
		if !ok {
			c.JSON(http.StatusNotFound, errorBody{Error: "channel not found"})
			return
		}
		ch.topic = args
		s.broadcastLocked(fmt.Sprintf("* %s has changed the topic to: %s", username, args), req.Channel)
	case "me":
		s.broadcastLocked(fmt.Sprintf("* %s %s", username, args), req.Channel)
	default:
		c.JSON(http.StatusBadRequest, errorBody{Error: "unknown command: /" + command})
		return
	}

	c.JSON(http.StatusOK, gin.H{})
}

// GET /api/poll
func (s *Server) handlePoll(c *gin.Context) {
	username := c.GetString("username")

	s.mu.Lock()
	lines := s.queues[username]
	s.queues[username] = []string{}
	users := s.rosterLocked()
	s.mu.Unlock()

	if lines == nil {
		lines = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"messages": lines, "users": users})
}

// POST /api/upload
func (s *Server) handleUpload(c *gin.Context) {
	username := c.GetString("username")
	channel := c.PostForm("channel")
	if channel == "" {
		c.JSON(http.StatusBadRequest, errorBody{Error: "channel is required"})
		return
	}

	header, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, errorBody{Error: "file is required"})
		return
	}
	if header.Size > maxUploadSize {
		c.JSON(http.StatusRequestEntityTooLarge, errorBody{Error: "file exceeds 8 MB limit"})
		return
	}

	f, err := header.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, errorBody{Error: "unreadable file"})
		return
	}
	defer func() { _ = f.Close() }()

	content, err := io.ReadAll(io.LimitReader(f, maxUploadSize+1))
	if err != nil || int64(len(content)) > maxUploadSize {
		c.JSON(http.StatusRequestEntityTooLarge, errorBody{Error: "file exceeds 8 MB limit"})
		return
	}

	record, err := s.store.insertFile(c.Request.Context(), header.Filename, username, channel, content)
	if err != nil {
		s.log.Error().Err(err).Msg("file insert failed")
		c.JSON(http.StatusInternalServerError, errorBody{Error: "internal server error"})
		return
	}

	s.mu.Lock()
	s.broadcastLocked(fmt.Sprintf("* %s shared a file: %s (%s) - [Preview/Download: /api/download/%d]",
		username, record.OriginalName, formatFileSize(record.Size), record.ID), channel)
	s.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{"file": record})
}

// GET /api/files/:channel
func (s *Server) handleFiles(c *gin.Context) {
	listing, err := s.store.filesByChannel(c.Request.Context(), c.Param("channel"))
	if err != nil {
		s.log.Error().Err(err).Msg("file listing failed")
		c.JSON(http.StatusInternalServerError, errorBody{Error: "internal server error"})
		return
	}
	if listing == nil {
		listing = []chat.FileRecord{}
	}
	c.JSON(http.StatusOK, gin.H{"files": listing})
}

// GET /api/download/:id
func (s *Server) handleDownload(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorBody{Error: "invalid file id"})
		return
	}

	record, content, err := s.store.fileByID(c.Request.Context(), id)
	if errors.Is(err, errNotFound) {
		c.JSON(http.StatusNotFound, errorBody{Error: "file not found"})
		return
	}
	if err != nil {
		s.log.Error().Err(err).Msg("file fetch failed")
		c.JSON(http.StatusInternalServerError, errorBody{Error: "internal server error"})
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", record.OriginalName))
	c.Data(http.StatusOK, "application/octet-stream", content)
}
