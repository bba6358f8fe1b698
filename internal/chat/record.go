package chat

// FileRecord mirrors the server's metadata for an uploaded file. Records are
// never mutated after creation; they disappear only when a fresh listing
// omits them.
type FileRecord struct {
	ID           int64  `json:"id"`
	OriginalName string `json:"original_name"`
	Size         int64  `json:"size"`
	Uploader     string `json:"uploader"`
	Channel      string `json:"channel"`
}

// PayloadType is the wire "type" field of an outgoing payload.
type PayloadType string

const (
	PayloadMessage PayloadType = "message"
	PayloadCommand PayloadType = "command"
)

// OutgoingPayload is the body of POST /api/message. Constructed per send,
// never stored.
type OutgoingPayload struct {
	Type    PayloadType `json:"type"`
	Content string      `json:"content"`
	Channel string      `json:"channel"`
}
