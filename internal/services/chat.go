package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"product-relay/internal/models"
)

// ChatProvider issues one chat completion and returns the provider's
// response body untouched.
type ChatProvider interface {
	Name() string
	CreateChatCompletion(ctx context.Context, req models.ChatCompletionRequest) (json.RawMessage, error)
}

type ChatService struct {
	provider  ChatProvider
	model     string
	maxTokens int
	logger    *zap.Logger
}

func NewChatService(provider ChatProvider, model string, maxTokens int, logger *zap.Logger) *ChatService {
	return &ChatService{
		provider:  provider,
		model:     model,
		maxTokens: maxTokens,
		logger:    logger,
	}
}

// Complete validates the messages and forwards them with the fixed model and
// output bound.
func (s *ChatService) Complete(ctx context.Context, req models.ChatRequest) (json.RawMessage, error) {
	if err := ValidateChatRequest(req); err != nil {
		return nil, err
	}

	s.logger.Debug("forwarding chat completion",
		zap.String("provider", s.provider.Name()),
		zap.String("model", s.model),
		zap.Int("message_count", len(req.Messages)),
	)

	resp, err := s.provider.CreateChatCompletion(ctx, models.ChatCompletionRequest{
		Model:     s.model,
		Messages:  req.Messages,
		MaxTokens: s.maxTokens,
	})
	if err != nil {
		return nil, &DownstreamError{Provider: s.provider.Name(), Err: err}
	}
	if len(resp) == 0 {
		return nil, &DownstreamError{Provider: s.provider.Name(), Err: fmt.Errorf("empty response body")}
	}
	return resp, nil
}

var validRoles = map[string]bool{
	models.RoleSystem:    true,
	models.RoleUser:      true,
	models.RoleAssistant: true,
}

func ValidateChatRequest(req models.ChatRequest) error {
	fieldErrors := make(map[string]string)

	if len(req.Messages) == 0 {
		fieldErrors["messages"] = "At least one message is required"
	}

	for i, msg := range req.Messages {
		key := fmt.Sprintf("messages[%d]", i)
		if !validRoles[msg.Role] {
			fieldErrors[key+".role"] = "Role must be one of system, user, assistant"
		}
		if msg.Parts == nil && strings.TrimSpace(msg.Content) == "" {
			fieldErrors[key+".content"] = "Content is required"
			continue
		}
		for j, part := range msg.Parts {
			partKey := fmt.Sprintf("%s.content[%d]", key, j)
			switch part.Type {
			case models.PartTypeText:
				if part.Text == "" {
					fieldErrors[partKey] = "Text part is empty"
				}
			case models.PartTypeImageURL:
				if part.ImageURL == nil || part.ImageURL.URL == "" {
					fieldErrors[partKey] = "Image part needs a URL"
				}
			default:
				fieldErrors[partKey] = "Unsupported part type"
			}
		}
		if msg.Parts != nil && len(msg.Parts) == 0 {
			fieldErrors[key+".content"] = "Content is required"
		}
	}

	if len(fieldErrors) > 0 {
		return &ValidationError{Fields: fieldErrors}
	}
	return nil
}
