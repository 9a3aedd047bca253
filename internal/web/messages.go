package web

import (
	"path/filepath"
	"strings"
	"time"
)

// Message types
const (
	MessageTypeHello         = "hello"
	MessageTypeResultChanged = "result_changed"
	MessageTypeError         = "error"
)

// WebMessage is a message sent over the websocket.
type WebMessage struct {
	Type      string    `json:"type"`
	Session   string    `json:"session,omitempty"`
	TaskID    string    `json:"task_id,omitempty"`
	Status    string    `json:"status,omitempty"`
	Content   string    `json:"content,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// resultChangedMessage describes a written result.json below outputRoot.
// It returns false for paths that are not <session>/<task>/result.json.
func resultChangedMessage(outputRoot, path string, at time.Time) (*WebMessage, bool) {
	rel, err := filepath.Rel(outputRoot, path)
	if err != nil {
		return nil, false
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	if len(parts) != 3 || parts[0] == ".." {
		return nil, false
	}
	return &WebMessage{
		Type:      MessageTypeResultChanged,
		Session:   parts[0],
		TaskID:    parts[1],
		Timestamp: at,
	}, true
}
