package llm

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rajjagirdar007/platemateuh/app/config"
	"github.com/samber/do"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// Client talks to an OpenAI-compatible chat completion API. Each session is
// a strictly ordered single-thread conversation: the handle owns the message
// transcript and every send appends to it.
type Client struct {
	cfg   *config.Config
	model llms.Model
}

func NewClient(di *do.Injector) (*Client, error) {
	cfg := do.MustInvoke[*config.Config](di)

	model, err := openai.New(
		openai.WithToken(cfg.API.Key),
		openai.WithBaseURL(cfg.API.BaseURL),
		openai.WithModel(cfg.API.Model),
		openai.WithCallback(logHandler{}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create llm client: %w", err)
	}

	return &Client{
		cfg:   cfg,
		model: model,
	}, nil
}

func (c *Client) StartSession(_ context.Context) (*Session, error) {
	return &Session{
		model: c.model,
		api:   c.cfg.API,
	}, nil
}

type Session struct {
	model llms.Model
	api   config.API

	mu       sync.Mutex
	messages []llms.MessageContent
}

// SendMessage appends text to the transcript, calls the model with the full
// transcript and returns the assistant reply. On failure the transcript is
// left unchanged so the exchange can be retried.
func (s *Session) SendMessage(ctx context.Context, text string) (string, error) {
	s.mu.Lock()
	messages := append(
		append([]llms.MessageContent{}, s.messages...),
		llms.TextParts(llms.ChatMessageTypeHuman, text),
	)
	s.mu.Unlock()

	resp, err := s.model.GenerateContent(ctx, messages,
		llms.WithModel(s.api.Model),
		llms.WithTemperature(s.api.Temperature),
		llms.WithTopP(s.api.TopP),
		llms.WithTopK(s.api.TopK),
		llms.WithMaxTokens(s.api.MaxOutputTokens),
	)
	if err != nil {
		return "", fmt.Errorf("failed to create chat completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", nil
	}

	reply := strings.TrimSpace(resp.Choices[0].Content)

	s.mu.Lock()
	s.messages = append(messages, llms.TextParts(llms.ChatMessageTypeAI, reply))
	s.mu.Unlock()

	return reply, nil
}
