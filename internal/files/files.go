package files

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/mirage-client/internal/chat"
	"github.com/vovakirdan/mirage-client/internal/transport/httpapi"
)

// PreviewKind classifies how a file can be previewed inline.
type PreviewKind int

const (
	// PreviewNone means no inline preview exists for the file type. This is
	// an informational outcome, not an error.
	PreviewNone PreviewKind = iota
	PreviewImage
	PreviewText
)

var (
	imageExtensions = []string{"jpg", "jpeg", "png", "gif"}
	textExtensions  = []string{"txt", "md", "json", "js", "css", "html"}
)

// TransferClient uploads, lists, downloads, and previews channel files over
// the authenticated API client.
type TransferClient struct {
	api *httpapi.Client
	log *zerolog.Logger
}

// New creates a transfer client on top of an authenticated API client.
func New(api *httpapi.Client, logger *zerolog.Logger) *TransferClient {
	return &TransferClient{api: api, log: logger}
}

// Upload reads the file at path and uploads it bound to channel, returning
// the server-assigned record.
func (t *TransferClient) Upload(ctx context.Context, channel, path string) (chat.FileRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return chat.FileRecord{}, fmt.Errorf("open upload source: %w", err)
	}
	defer func() { _ = f.Close() }()

	record, err := t.api.Upload(ctx, channel, filepath.Base(path), f)
	if err != nil {
		return chat.FileRecord{}, err
	}

	t.log.Info().Str("file", record.OriginalName).Str("channel", channel).Int64("size", record.Size).Msg("file uploaded")
	return record, nil
}

// List fetches the channel's current file listing. The result is
// authoritative: records absent from it are gone.
func (t *TransferClient) List(ctx context.Context, channel string) ([]chat.FileRecord, error) {
	return t.api.Files(ctx, channel)
}

// Download fetches a file's content and the server-suggested filename.
func (t *TransferClient) Download(ctx context.Context, id int64) ([]byte, string, error) {
	return t.api.Download(ctx, id)
}

// DownloadTo fetches a file and writes it into dir under the suggested
// filename, returning the written path.
func (t *TransferClient) DownloadTo(ctx context.Context, id int64, dir string) (string, error) {
	data, name, err := t.api.Download(ctx, id)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create download dir: %w", err)
	}
	path := filepath.Join(dir, filepath.Base(name))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write download: %w", err)
	}

	t.log.Info().Str("path", path).Msg("file downloaded")
	return path, nil
}

// Preview fetches content only for recognized image/text extensions. For
// anything else it returns PreviewNone with no content and no error.
func (t *TransferClient) Preview(ctx context.Context, id int64, filename string) (PreviewKind, []byte, error) {
	kind := PreviewKindFor(filename)
	if kind == PreviewNone {
		return PreviewNone, nil, nil
	}

	data, _, err := t.api.Download(ctx, id)
	if err != nil {
		return kind, nil, err
	}
	return kind, data, nil
}

// PreviewKindFor classifies a filename by extension.
func PreviewKindFor(filename string) PreviewKind {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	for _, e := range imageExtensions {
		if ext == e {
			return PreviewImage
		}
	}
	for _, e := range textExtensions {
		if ext == e {
			return PreviewText
		}
	}
	return PreviewNone
}
