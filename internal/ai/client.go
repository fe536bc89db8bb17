package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/example/lingobot/pkg/models"
)

// Client talks to the OpenAI chat completions API to enrich feedback on
// missed answers. It is optional: construction fails cleanly when no key
// is configured and callers fall back to plain feedback.
type Client struct {
	apiKey      string
	apiURL      string
	httpClient  *http.Client
	maxTokens   int
	temperature float64
}

// New creates a client from OPENAI_API_KEY.
func New() (*Client, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY environment variable is not set")
	}

	return &Client{
		apiKey:      apiKey,
		apiURL:      "https://api.openai.com/v1/chat/completions",
		httpClient:  &http.Client{Timeout: 15 * time.Second},
		maxTokens:   100,
		temperature: 0.7,
	}, nil
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float64   `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// ExplainMistake produces a one-sentence hint for a missed word,
// contrasting the canonical meaning with what the learner answered.
func (c *Client) ExplainMistake(ctx context.Context, word models.VocabWord, answer string) (string, error) {
	prompt := fmt.Sprintf(
		"A learner translated the word '%s' as '%s', but the expected meaning is '%s'. "+
			"In one short sentence, explain the difference or give a memorable hint. "+
			"Reply with the sentence only.",
		word.Word, answer, word.Meaning,
	)

	messages := []message{
		{Role: "system", Content: "You are a concise language tutor. Give short, memorable feedback."},
		{Role: "user", Content: prompt},
	}
	return c.complete(ctx, chatRequest{
		Model:       "gpt-3.5-turbo",
		Messages:    messages,
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	})
}

// ExampleSentence generates a short example sentence using the word.
func (c *Client) ExampleSentence(ctx context.Context, word models.VocabWord) (string, error) {
	prompt := fmt.Sprintf(
		"Generate a short, practical example sentence that naturally includes the word '%s' (meaning: '%s'). "+
			"Reply with the sentence only.",
		word.Word, word.Meaning,
	)

	messages := []message{
		{Role: "system", Content: "You are a concise language tutor. Give short, memorable feedback."},
		{Role: "user", Content: prompt},
	}
	return c.complete(ctx, chatRequest{
		Model:       "gpt-3.5-turbo",
		Messages:    messages,
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	})
}

func (c *Client) complete(ctx context.Context, request chatRequest) (string, error) {
	requestData, err := json.Marshal(request)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewBuffer(requestData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	var response chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if response.Error != nil {
		return "", fmt.Errorf("API error: %s", response.Error.Message)
	}
	if len(response.Choices) == 0 {
		return "", fmt.Errorf("no response choices returned")
	}

	return strings.TrimSpace(response.Choices[0].Message.Content), nil
}
