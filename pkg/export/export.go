// Package export renders read-only snapshots of a conversation. Exports
// never mutate the conversation, and the payload embeds no export time, so
// the same conversation state always produces the same bytes.
package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"flux/pkg/models"
)

const (
	FormatJSON     = "json"
	FormatMarkdown = "markdown"
)

// Conversation renders the conversation in the requested format.
func Conversation(c models.Conversation, format string) ([]byte, error) {
	switch format {
	case FormatJSON:
		return JSON(c)
	case FormatMarkdown:
		return Markdown(c), nil
	default:
		return nil, fmt.Errorf("unsupported export format: %q", format)
	}
}

// JSON renders the full conversation verbatim; unmarshaling the result
// yields a conversation equal to the input (round-trip law).
func JSON(c models.Conversation) ([]byte, error) {
	return json.MarshalIndent(c, "", "  ")
}

// Markdown renders a human-readable transcript: title, date, participants,
// then each message as a dated heading plus body.
func Markdown(c models.Conversation) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "# %s\n\n", c.Title)
	fmt.Fprintf(&b, "**Date:** %s\n", fmtTS(c.LastActivityTS, "2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "**Participants:** %s\n\n", strings.Join(c.Participants, ", "))
	b.WriteString("---\n\n")
	for _, m := range c.Messages {
		name := m.AgentName
		if name == "" {
			name = m.AgentID
		}
		fmt.Fprintf(&b, "### %s - %s\n\n", name, fmtTS(m.TS, "15:04:05"))
		fmt.Fprintf(&b, "%s\n\n", m.Content)
	}
	return b.Bytes()
}

// Filename builds a download name from the title and the export date. The
// export time lives only here, never in the payload.
func Filename(c models.Conversation, format string, now time.Time) string {
	title := strings.Join(strings.Fields(c.Title), "_")
	if title == "" {
		title = c.ID
	}
	ext := "json"
	if format == FormatMarkdown {
		ext = "md"
	}
	return fmt.Sprintf("%s_%s.%s", title, now.UTC().Format("2006-01-02"), ext)
}

func fmtTS(ns int64, layout string) string {
	return time.Unix(0, ns).UTC().Format(layout)
}
