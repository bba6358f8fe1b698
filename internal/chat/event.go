package chat

// EventKind classifies a poll-delivered message line.
type EventKind int

const (
	// EventPlainMessage is an ordinary chat line.
	EventPlainMessage EventKind = iota
	// EventSystemNotice is a server-generated notice (joins, topic changes).
	EventSystemNotice
	// EventFileShare is a system notice carrying parsed file metadata.
	EventFileShare
)

// Event is one decoded entry from a poll response. Text always carries the raw
// wire line so nothing is lost even when parsing degrades.
type Event struct {
	Kind EventKind
	Text string
	File *FileShare
}

// FileShare holds the metadata extracted from a file-share notice.
type FileShare struct {
	Filename     string
	SizeLabel    string
	DownloadPath string
}

// Subscriber receives state updates from the client core. Rendering lives
// entirely behind this interface; the core never draws anything itself.
type Subscriber interface {
	OnMessage(Event)
	OnRosterUpdate(roster []string)
	OnSessionExpired()
	OnFileListUpdate(files []FileRecord)
}
