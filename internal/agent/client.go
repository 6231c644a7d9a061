// Package agent implements the orchestration fallback chain that turns a
// free-text business question into a structured answer. The chain is an
// explicit ordered list of strategies — LLM agent, multi-metric rule-based
// fallback, single-metric legacy fallback — evaluated until one returns a
// result. Strategy failures are outcome values, never surfaced exceptions.
package agent

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// Answer is the raw result of a whole-question agent resolution.
type Answer struct {
	Answer string `json:"answer"`
	Model  string `json:"model"`
}

// Client is the interface the orchestrator uses to delegate a whole question
// to the AI agent. A non-nil error triggers the next fallback strategy; the
// error is never surfaced to the caller.
//
// Implementations must be safe to call concurrently.
type Client interface {
	Ask(ctx context.Context, question string) (Answer, error)
}

// ─── OPENAI CLIENT ────────────────────────────────────────────────────────────

const agentSystemPrompt = `You are a KPI analytics copilot for an e-commerce business.
You answer questions about monthly revenue, orders, customers, and average order value.
Be direct and specific. Answer in a short executive paragraph.`

type openAIClient struct {
	client *openai.Client
	model  string
}

// NewOpenAIClient returns a Client backed by the OpenAI chat completions API.
func NewOpenAIClient(apiKey, model string) Client {
	return &openAIClient{
		client: openai.NewClient(apiKey),
		model:  model,
	}
}

func (c *openAIClient) Ask(ctx context.Context, question string) (Answer, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: 0.3,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: agentSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: question},
		},
	})
	if err != nil {
		return Answer{}, fmt.Errorf("agent: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Answer{}, fmt.Errorf("agent: empty choice list in response")
	}

	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return Answer{}, fmt.Errorf("agent: empty answer text")
	}

	return Answer{Answer: text, Model: c.model}, nil
}
