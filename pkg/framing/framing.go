// Package framing extracts and re-attaches the speaker name that upstream
// chat bridges embed in message bodies.
package framing

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

const maxPlainNameLength = 50

var (
	timestampPrefix = regexp.MustCompile(`^<t:\d+:[tTdDfFR]>\s*`)
	// **Name:** content and **Name**: content
	boldName  = regexp.MustCompile(`(?s)^\*\*([^*]+?)(?::\*\*|\*\*:)\s*(.*)$`)
	plainName = regexp.MustCompile(`(?s)^([^:]+?):\s*(.*)$`)
)

type FramedMessage struct {
	Name    string
	Content string
}

func (f FramedMessage) HasName() bool {
	return f.Name != ""
}

// ContextLine renders the message the way it is kept in a rolling context.
func (f FramedMessage) ContextLine() string {
	if f.HasName() {
		return fmt.Sprintf("%s: %s", f.Name, f.Content)
	}
	return f.Content
}

// Extract never fails: when no framing pattern matches the whole input is
// returned as content with an empty name.
func Extract(raw string) FramedMessage {
	message := timestampPrefix.ReplaceAllString(raw, "")

	if m := boldName.FindStringSubmatch(message); m != nil {
		return FramedMessage{
			Name:    strings.TrimSpace(m[1]),
			Content: strings.TrimSpace(m[2]),
		}
	}
	if m := plainName.FindStringSubmatch(message); m != nil && utf8.RuneCountInString(m[1]) < maxPlainNameLength {
		return FramedMessage{
			Name:    strings.TrimSpace(m[1]),
			Content: strings.TrimSpace(m[2]),
		}
	}
	return FramedMessage{Content: message}
}

// Format is the only place an outbound name prefix is built. Messages
// authored by the bot itself are never prefixed.
func Format(name, content string, isBot bool) string {
	if name != "" && !isBot {
		return fmt.Sprintf("**%s**: %s", name, content)
	}
	return content
}
