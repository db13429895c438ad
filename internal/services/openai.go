package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	openai "github.com/sashabaranov/go-openai"

	"product-relay/internal/models"
)

type OpenAIProvider struct {
	client *openai.Client
}

// NewOpenAIProvider builds a client for the chat completions API. An empty
// apiKey is accepted; the API rejects the call instead.
func NewOpenAIProvider(apiKey, baseURL string) *OpenAIProvider {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	cfg.HTTPClient = &capturingClient{client: http.DefaultClient}
	return &OpenAIProvider{client: openai.NewClientWithConfig(cfg)}
}

func (p *OpenAIProvider) Name() string { return "openai" }

// CreateChatCompletion returns the completion body exactly as the API sent
// it. The SDK's decoded struct is only used to surface API errors.
func (p *OpenAIProvider) CreateChatCompletion(ctx context.Context, req models.ChatCompletionRequest) (json.RawMessage, error) {
	captured := &capturedBody{}
	ctx = context.WithValue(ctx, capturedBodyKey{}, captured)

	_, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     req.Model,
		Messages:  toOpenAIMessages(req.Messages),
		MaxTokens: req.MaxTokens,
	})
	if err != nil {
		return nil, err
	}
	if captured.body == nil {
		return nil, errors.New("completion body was not captured")
	}
	return json.RawMessage(captured.body), nil
}

type capturedBodyKey struct{}

type capturedBody struct {
	body []byte
}

// capturingClient keeps a copy of each response body for the request that
// asked for one through its context.
type capturingClient struct {
	client *http.Client
}

func (c *capturingClient) Do(req *http.Request) (*http.Response, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}

	captured, ok := req.Context().Value(capturedBodyKey{}).(*capturedBody)
	if !ok {
		return resp, nil
	}

	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, err
	}
	captured.body = body
	resp.Body = io.NopCloser(bytes.NewReader(body))
	return resp, nil
}

func toOpenAIMessages(messages []models.ChatMessage) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		msg := openai.ChatCompletionMessage{Role: m.Role}
		if m.Parts == nil {
			msg.Content = m.Content
			out = append(out, msg)
			continue
		}

		for _, part := range m.Parts {
			switch part.Type {
			case models.PartTypeText:
				msg.MultiContent = append(msg.MultiContent, openai.ChatMessagePart{
					Type: openai.ChatMessagePartTypeText,
					Text: part.Text,
				})
			case models.PartTypeImageURL:
				msg.MultiContent = append(msg.MultiContent, openai.ChatMessagePart{
					Type: openai.ChatMessagePartTypeImageURL,
					ImageURL: &openai.ChatMessageImageURL{
						URL:    part.ImageURL.URL,
						Detail: openai.ImageURLDetail(part.ImageURL.Detail),
					},
				})
			}
		}
		out = append(out, msg)
	}
	return out
}
