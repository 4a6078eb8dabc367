package reply

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const systemPrompt = "Sos un bot amable y conciso. Respondé en español. " +
	"No uses emojis. Máximo 1 o 2 frases. Si el mensaje es vacío, pedí aclaración."

// OpenAIResponder calls an OpenAI-compatible chat completions endpoint.
// Every failure mode here (transport, non-200, empty completion) is returned
// as an error; the caller decides what to fall back to.
type OpenAIResponder struct {
	apiKey  string
	apiBase string
	model   string
	client  *http.Client
}

type OpenAIOptions struct {
	APIKey  string
	APIBase string
	Model   string
}

func NewOpenAIResponder(opt OpenAIOptions) *OpenAIResponder {
	if opt.APIBase == "" {
		opt.APIBase = "https://api.openai.com/v1"
	}
	if opt.Model == "" {
		opt.Model = "gpt-4o-mini"
	}
	return &OpenAIResponder{
		apiKey:  opt.APIKey,
		apiBase: opt.APIBase,
		model:   opt.Model,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (o *OpenAIResponder) GenerateReply(ctx context.Context, incomingText string) (string, error) {
	incoming := strings.TrimSpace(incomingText)
	if incoming == "" {
		incoming = "(mensaje vacío)"
	}

	body, err := json.Marshal(chatRequest{
		Model: o.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: incoming},
		},
		MaxTokens:   64,
		Temperature: 0,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.apiBase+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.apiKey)

	resp, err := o.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("openai request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("openai status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("openai decode: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("openai: no choices")
	}
	text := strings.TrimSpace(out.Choices[0].Message.Content)
	if text == "" {
		return "", fmt.Errorf("openai: empty completion")
	}
	return text, nil
}
