package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"

	"github.com/vovakirdan/mirage-client/internal/chat"
)

// Authenticated requests carry "Authorization: Bearer <token>". Some older
// server builds accepted the raw token value; Bearer framing is the canonical
// convention here and the only one sent.
const bearerPrefix = "Bearer "

// defaultDownloadName is used when the server suggests no filename.
const defaultDownloadName = "downloaded-file"

// Client speaks the Mirage HTTP+JSON protocol against a single server.
// No global request timeout is set: polls and uploads are expected to resolve
// in bounded but uncapped time, and callers bound probes via context.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// New creates a client for the given server.
func New(server chat.Server) *Client {
	return NewWithBaseURL(server.BaseURL())
}

// NewWithBaseURL creates a client for an explicit base URL. Tests point this
// at httptest servers.
func NewWithBaseURL(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{},
	}
}

// SetToken attaches the session token to all subsequent requests.
func (c *Client) SetToken(token string) { c.token = token }

// Token returns the currently attached session token.
func (c *Client) Token() string { return c.token }

// BaseURL returns the server root this client talks to.
func (c *Client) BaseURL() string { return c.baseURL }

// Stats holds one server's transient load report.
type Stats struct {
	CPUUsage    float64 `json:"cpu_usage"`
	MemoryUsage float64 `json:"memory_usage"`
	ActiveUsers int     `json:"active_users_count"`
}

type statsEnvelope struct {
	Stats Stats `json:"stats"`
}

// LoginResponse is the body of a successful login. The echoed server
// descriptor is authoritative and must be adopted verbatim.
type LoginResponse struct {
	Token    string      `json:"token"`
	Username string      `json:"username"`
	Server   chat.Server `json:"server"`
	Channels []string    `json:"channels"`
}

// ChannelInfo is one entry of the channel listing.
type ChannelInfo struct {
	Name       string `json:"name"`
	UsersCount int    `json:"users_count"`
}

// PollResult is the body of one poll response. Users is keyed by channel name;
// a nil map means no roster payload arrived.
type PollResult struct {
	Messages []string            `json:"messages"`
	Users    map[string][]string `json:"users"`
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type createChannelRequest struct {
	Name  string `json:"name"`
	Topic string `json:"topic"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Stats fetches the server's live load report.
func (c *Client) Stats(ctx context.Context) (Stats, error) {
	var env statsEnvelope
	if err := c.doJSON(ctx, http.MethodGet, "/api/server/stats", nil, &env); err != nil {
		return Stats{}, err
	}
	return env.Stats, nil
}

// Register creates an account. The session starts with a separate login.
func (c *Client) Register(ctx context.Context, username, password string) error {
	return c.doJSON(ctx, http.MethodPost, "/api/register", credentialsRequest{username, password}, nil)
}

// Login authenticates and returns the token plus the authoritative server.
func (c *Client) Login(ctx context.Context, username, password string) (*LoginResponse, error) {
	var out LoginResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/login", credentialsRequest{username, password}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Channels lists the channels known to the server.
func (c *Client) Channels(ctx context.Context) ([]ChannelInfo, error) {
	var out struct {
		Channels []ChannelInfo `json:"channels"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/channels", nil, &out); err != nil {
		return nil, err
	}
	return out.Channels, nil
}

// ChannelTopic fetches the topic of one channel.
func (c *Client) ChannelTopic(ctx context.Context, name string) (string, error) {
	var out struct {
		Topic string `json:"topic"`
	}
	// Channel names carry a leading '#', which must not read as a URL fragment.
	if err := c.doJSON(ctx, http.MethodGet, "/api/channels/"+url.PathEscape(name), nil, &out); err != nil {
		return "", err
	}
	return out.Topic, nil
}

// CreateChannel creates a channel and returns its canonical name.
func (c *Client) CreateChannel(ctx context.Context, name, topic string) (string, error) {
	var out struct {
		Name string `json:"name"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/api/channels/create", createChannelRequest{name, topic}, &out); err != nil {
		return "", err
	}
	return out.Name, nil
}

// SendMessage posts one outgoing payload.
func (c *Client) SendMessage(ctx context.Context, payload chat.OutgoingPayload) error {
	return c.doJSON(ctx, http.MethodPost, "/api/message", payload, nil)
}

// Poll fetches pending messages and roster updates. A 401 maps to
// chat.ErrSessionExpired; every other failure is transient for the caller.
func (c *Client) Poll(ctx context.Context) (*PollResult, error) {
	var out PollResult
	if err := c.doJSON(ctx, http.MethodGet, "/api/poll", nil, &out); err != nil {
		var apiErr *chat.APIError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized {
			return nil, chat.ErrSessionExpired
		}
		return nil, err
	}
	return &out, nil
}

// Upload sends file content bound to a channel as a multipart request and
// returns the server-assigned record.
func (c *Client) Upload(ctx context.Context, channel, filename string, content io.Reader) (chat.FileRecord, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return chat.FileRecord{}, fmt.Errorf("build multipart: %w", err)
	}
	if _, err := io.Copy(part, content); err != nil {
		return chat.FileRecord{}, fmt.Errorf("read file content: %w", err)
	}
	if err := mw.WriteField("channel", channel); err != nil {
		return chat.FileRecord{}, fmt.Errorf("build multipart: %w", err)
	}
	if err := mw.Close(); err != nil {
		return chat.FileRecord{}, fmt.Errorf("build multipart: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/upload", &buf)
	if err != nil {
		return chat.FileRecord{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	c.authorize(req)

	res, err := c.http.Do(req)
	if err != nil {
		return chat.FileRecord{}, chat.ConnectionError(err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return chat.FileRecord{}, decodeAPIError(res)
	}

	var out struct {
		File chat.FileRecord `json:"file"`
	}
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return chat.FileRecord{}, fmt.Errorf("decode upload response: %w", err)
	}
	return out.File, nil
}

// Files lists the uploads bound to a channel.
func (c *Client) Files(ctx context.Context, channel string) ([]chat.FileRecord, error) {
	var out struct {
		Files []chat.FileRecord `json:"files"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/files/"+url.PathEscape(channel), nil, &out); err != nil {
		return nil, err
	}
	return out.Files, nil
}

// Download fetches file content by identifier. The filename comes from the
// Content-Disposition header when present, else a fixed placeholder.
func (c *Client) Download(ctx context.Context, id int64) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/api/download/%d", c.baseURL, id), nil)
	if err != nil {
		return nil, "", fmt.Errorf("build request: %w", err)
	}
	c.authorize(req)

	res, err := c.http.Do(req)
	if err != nil {
		return nil, "", chat.ConnectionError(err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, "", decodeAPIError(res)
	}

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, "", fmt.Errorf("read download body: %w", err)
	}
	return data, suggestedFilename(res.Header.Get("Content-Disposition")), nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.authorize(req)

	res, err := c.http.Do(req)
	if err != nil {
		return chat.ConnectionError(err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return decodeAPIError(res)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, res.Body)
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", bearerPrefix+c.token)
	}
}

// decodeAPIError surfaces the server-provided error message verbatim when the
// body carries one.
func decodeAPIError(res *http.Response) error {
	apiErr := &chat.APIError{Status: res.StatusCode}
	var body errorResponse
	if err := json.NewDecoder(res.Body).Decode(&body); err == nil {
		apiErr.Message = body.Error
	}
	return apiErr
}

func suggestedFilename(contentDisposition string) string {
	if contentDisposition == "" {
		return defaultDownloadName
	}
	_, params, err := mime.ParseMediaType(contentDisposition)
	if err != nil {
		return defaultDownloadName
	}
	if name := params["filename"]; name != "" {
		return name
	}
	return defaultDownloadName
}
