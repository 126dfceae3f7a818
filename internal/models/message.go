package models

import (
	"strings"
	"time"
)

// Reserved synthetic senders.
const (
	SenderSystem    = "System"
	SenderAssistant = "AI"
)

// TimestampLayout is the display format used for message timestamps.
const TimestampLayout = "03:04 PM"

// Message is one entry of a group's message log.
type Message struct {
	ID        string    `json:"id"`
	Sender    string    `json:"sender"`
	Text      string    `json:"text"`
	Timestamp string    `json:"timestamp"`
	ParentID  string    `json:"parentId,omitempty"`
	Reactions Reactions `json:"reactions,omitempty"`
}

// Clone returns a copy that shares no reactor slices with m.
func (m Message) Clone() Message {
	out := m
	out.Reactions = m.Reactions.Clone()
	return out
}

// FormatTimestamp renders t the way message timestamps are displayed.
func FormatTimestamp(t time.Time) string {
	return t.Format(TimestampLayout)
}

// AssistantPrefix marks a chat message as a question for the assistant.
const AssistantPrefix = "@ai"

// StripAssistantPrefix removes a leading "@ai" (any case) and surrounding
// whitespace. ok is false when text does not start with the prefix.
func StripAssistantPrefix(text string) (string, bool) {
	trimmed := strings.TrimSpace(text)
	if len(trimmed) < len(AssistantPrefix) || !strings.EqualFold(trimmed[:len(AssistantPrefix)], AssistantPrefix) {
		return trimmed, false
	}
	return strings.TrimSpace(trimmed[len(AssistantPrefix):]), true
}
