package chat

import "strings"

// Wire-format tokens shared with the Mirage server. The server emits system
// lines as "[HH:MM] * ..." and file shares as
// "[HH:MM] * <user> shared a file: <name> (<size>) - [Preview/Download: <path>]".
// These exact tokens are a compatibility contract; changing them breaks
// interoperability with deployed servers.
const (
	fileShareMarker = "shared a file:"
	previewMarker   = " - [Preview/Download: "
)

// EncodeOutgoing builds the payload for a send. A trimmed text starting with
// "/" is classified as a command, anything else as a message. Empty
// (whitespace-only) input encodes to nothing: ok is false and no request may
// be issued.
func EncodeOutgoing(text, channel string) (OutgoingPayload, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return OutgoingPayload{}, false
	}

	typ := PayloadMessage
	if strings.HasPrefix(text, "/") {
		typ = PayloadCommand
	}
	return OutgoingPayload{Type: typ, Content: text, Channel: channel}, true
}

// DecodeMessage classifies one poll-delivered line. Precedence: a "*" line
// containing the file-share marker is parsed as a FileShare; if the detailed
// pattern does not parse it degrades to a system notice rather than dropping
// the line. Any other "*" line is a system notice; everything else is a plain
// message. A leading "[HH:MM]" timestamp is allowed before the "*".
func DecodeMessage(raw string) Event {
	rest := stripTimestamp(raw)
	if !strings.HasPrefix(rest, "*") {
		return Event{Kind: EventPlainMessage, Text: raw}
	}

	if strings.Contains(rest, fileShareMarker) {
		if share, ok := parseFileShare(rest); ok {
			return Event{Kind: EventFileShare, Text: raw, File: &share}
		}
	}
	return Event{Kind: EventSystemNotice, Text: raw}
}

// DecodeAll decodes a poll batch preserving arrival order.
func DecodeAll(lines []string) []Event {
	if len(lines) == 0 {
		return nil
	}
	events := make([]Event, 0, len(lines))
	for _, line := range lines {
		events = append(events, DecodeMessage(line))
	}
	return events
}

func stripTimestamp(s string) string {
	if !strings.HasPrefix(s, "[") {
		return s
	}
	end := strings.Index(s, "]")
	if end < 0 {
		return s
	}
	return strings.TrimSpace(s[end+1:])
}

// parseFileShare walks "* <user> shared a file: <name> (<size>) - [Preview/Download: <path>]"
// token by token. Returns false on any deviation so the caller can degrade.
func parseFileShare(s string) (FileShare, bool) {
	_, rest, ok := strings.Cut(s, fileShareMarker)
	if !ok {
		return FileShare{}, false
	}

	head, path, ok := strings.Cut(strings.TrimSpace(rest), previewMarker)
	if !ok {
		return FileShare{}, false
	}
	if !strings.HasSuffix(path, "]") {
		return FileShare{}, false
	}
	path = path[:len(path)-1]

	head = strings.TrimSpace(head)
	if !strings.HasSuffix(head, ")") {
		return FileShare{}, false
	}
	open := strings.LastIndex(head, "(")
	if open <= 0 {
		return FileShare{}, false
	}

	name := strings.TrimSpace(head[:open])
	size := head[open+1 : len(head)-1]
	if name == "" || path == "" {
		return FileShare{}, false
	}
	return FileShare{Filename: name, SizeLabel: size, DownloadPath: path}, true
}
