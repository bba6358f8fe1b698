package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/vovakirdan/mirage-client/internal/chat"
)

// renderer prints client events to the terminal. It is the only place the CLI
// draws anything; the client core just calls the Subscriber interface.
type renderer struct {
	out io.Writer
}

func (r *renderer) OnMessage(ev chat.Event) {
	switch ev.Kind {
	case chat.EventFileShare:
		fmt.Fprintf(r.out, "%s\n    -> download id via %s\n", ev.Text, ev.File.DownloadPath)
	default:
		fmt.Fprintln(r.out, ev.Text)
	}
}

func (r *renderer) OnRosterUpdate(roster []string) {
	fmt.Fprintf(r.out, "-- online: %s\n", strings.Join(roster, ", "))
}

func (r *renderer) OnSessionExpired() {
	fmt.Fprintln(r.out, "-- session expired, please login again")
}

func (r *renderer) OnFileListUpdate(files []chat.FileRecord) {
	if len(files) == 0 {
		return
	}
	fmt.Fprintf(r.out, "-- %d file(s) in channel, /files to list\n", len(files))
}
