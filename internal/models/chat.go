package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

const (
	PartTypeText     = "text"
	PartTypeImageURL = "image_url"
)

// ChatMessage represents a single message in a conversation. Content is
// either plain text or a list of parts; the wire form mirrors whichever
// the caller sent.
type ChatMessage struct {
	Role    string
	Content string
	Parts   []ContentPart
}

type ContentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

type ImageURL struct {
	URL    string `json:"url"`
	Detail string `json:"detail,omitempty"`
}

type chatMessageWire struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
}

func (m *ChatMessage) UnmarshalJSON(data []byte) error {
	var wire chatMessageWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	m.Role = wire.Role
	m.Content = ""
	m.Parts = nil

	raw := bytes.TrimSpace(wire.Content)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	switch raw[0] {
	case '"':
		return json.Unmarshal(raw, &m.Content)
	case '[':
		return json.Unmarshal(raw, &m.Parts)
	default:
		return fmt.Errorf("message content must be a string or an array of parts")
	}
}

func (m ChatMessage) MarshalJSON() ([]byte, error) {
	if m.Parts != nil {
		return json.Marshal(struct {
			Role    string        `json:"role"`
			Content []ContentPart `json:"content"`
		}{m.Role, m.Parts})
	}
	return json.Marshal(struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}{m.Role, m.Content})
}

// ChatRequest is the payload sent to the /openai route.
type ChatRequest struct {
	Messages []ChatMessage `json:"messages"`
}

// ChatCompletionRequest is what a provider receives.
type ChatCompletionRequest struct {
	Model     string
	Messages  []ChatMessage
	MaxTokens int
}
