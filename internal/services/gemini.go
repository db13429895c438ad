package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"product-relay/internal/models"
)

type GeminiProvider struct {
	client *genai.Client
}

func NewGeminiProvider(ctx context.Context, apiKey string) (*GeminiProvider, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &GeminiProvider{client: client}, nil
}

func (p *GeminiProvider) Name() string { return "gemini" }

func (p *GeminiProvider) Close() error {
	return p.client.Close()
}

// CreateChatCompletion replays all but the last message as chat history and
// sends the last one. System messages become the system instruction.
func (p *GeminiProvider) CreateChatCompletion(ctx context.Context, req models.ChatCompletionRequest) (json.RawMessage, error) {
	system, history, last, err := splitForGemini(req.Messages)
	if err != nil {
		return nil, err
	}

	model := p.client.GenerativeModel(req.Model)
	model.SetMaxOutputTokens(int32(req.MaxTokens))
	if system != nil {
		model.SystemInstruction = system
	}

	cs := model.StartChat()
	cs.History = history

	resp, err := cs.SendMessage(ctx, last.Parts...)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to encode completion: %w", err)
	}
	return body, nil
}

func splitForGemini(messages []models.ChatMessage) (*genai.Content, []*genai.Content, *genai.Content, error) {
	var systemText []string
	var turns []*genai.Content

	for _, m := range messages {
		if m.Role == models.RoleSystem {
			systemText = append(systemText, messageText(m))
			continue
		}
		content, err := toGeminiContent(m)
		if err != nil {
			return nil, nil, nil, err
		}
		turns = append(turns, content)
	}

	if len(turns) == 0 {
		return nil, nil, nil, errors.New("gemini needs at least one user or assistant message")
	}
	last := turns[len(turns)-1]
	if last.Role != "user" {
		return nil, nil, nil, errors.New("gemini needs the last message to come from the user")
	}

	var system *genai.Content
	if len(systemText) > 0 {
		system = &genai.Content{Parts: []genai.Part{genai.Text(strings.Join(systemText, "\n\n"))}}
	}
	return system, turns[:len(turns)-1], last, nil
}

func toGeminiContent(m models.ChatMessage) (*genai.Content, error) {
	role := "user"
	if m.Role == models.RoleAssistant {
		role = "model"
	}

	if m.Parts == nil {
		return &genai.Content{Role: role, Parts: []genai.Part{genai.Text(m.Content)}}, nil
	}

	parts := make([]genai.Part, 0, len(m.Parts))
	for _, part := range m.Parts {
		if part.Type != models.PartTypeText {
			return nil, fmt.Errorf("gemini provider does not accept %q parts", part.Type)
		}
		parts = append(parts, genai.Text(part.Text))
	}
	return &genai.Content{Role: role, Parts: parts}, nil
}

func messageText(m models.ChatMessage) string {
	if m.Parts == nil {
		return m.Content
	}
	var texts []string
	for _, part := range m.Parts {
		if part.Type == models.PartTypeText {
			texts = append(texts, part.Text)
		}
	}
	return strings.Join(texts, "\n")
}
