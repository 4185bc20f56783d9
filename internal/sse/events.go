package sse

import (
	"fmt"
	"io"
	"strings"
)

// SSE event type constants
const (
	EventView           = "view"
	EventPlayerUpdate   = "player-update"
	EventControlsUpdate = "controls-update"
	EventClueUpdate     = "clue-update"
	EventVoteCount      = "vote-count-voting"
	EventResult         = "result"
	EventErrorMessage   = "error-message"
)

// Write formats one event. Multi-line data is split over several data
// fields so the browser reassembles it unchanged.
func Write(w io.Writer, event, data string) error {
	var b strings.Builder
	b.WriteString("event: ")
	b.WriteString(event)
	b.WriteByte('\n')
	for _, line := range strings.Split(data, "\n") {
		b.WriteString("data: ")
		b.WriteString(line)
		b.WriteByte('\n')
	}
	b.WriteByte('\n')
	if _, err := io.WriteString(w, b.String()); err != nil {
		return fmt.Errorf("writing %s event: %w", event, err)
	}
	return nil
}
