package narrative

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/nyashahama/kpi-copilot-backend/internal/kpi"
)

// openAIGenerator is the concrete Generator backed by the OpenAI chat
// completions API via go-openai.
type openAIGenerator struct {
	client *openai.Client
	model  string
}

// NewOpenAIGenerator returns a Generator that calls OpenAI.
//   - apiKey: your OPENAI_API_KEY
//   - model:  e.g. "gpt-4.1-mini"
func NewOpenAIGenerator(apiKey, model string) Generator {
	return &openAIGenerator{
		client: openai.NewClient(apiKey),
		model:  model,
	}
}

// Generate issues a single structured prompt and parses the three labelled
// sections out of the response. If any section is absent the whole call is
// treated as a failure so the engine uses the rule-based path instead.
func (g *openAIGenerator) Generate(ctx context.Context, metric kpi.Metric, rows []kpi.Row, style kpi.Style) (Triple, error) {
	if len(rows) == 0 {
		return noDataTriple(), nil
	}

	prompt := buildPrompt(metric, rows, style)

	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       g.model,
		Temperature: 0.3,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return Triple{}, fmt.Errorf("narrative: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Triple{}, fmt.Errorf("narrative: empty choice list in response")
	}

	return ParseSections(resp.Choices[0].Message.Content)
}

// ParseSections scans the response for lines whose uppercase prefix matches
// the INSIGHT/RISK/RECOMMENDATION labels. All three must be present and
// non-empty — partial AI output is never surfaced.
func ParseSections(text string) (Triple, error) {
	pick := func(prefix string) string {
		for _, line := range strings.Split(text, "\n") {
			if strings.HasPrefix(strings.ToUpper(line), prefix) {
				if _, rest, ok := strings.Cut(line, ":"); ok {
					return strings.TrimSpace(rest)
				}
			}
		}
		return ""
	}

	t := Triple{
		Insight:        pick("INSIGHT"),
		Risk:           pick("RISK"),
		Recommendation: pick("RECOMMENDATION"),
	}
	if t.Insight == "" || t.Risk == "" || t.Recommendation == "" {
		return Triple{}, fmt.Errorf("narrative: response missing a labelled section")
	}
	return t, nil
}

// buildPrompt serialises the rows into a compact prompt demanding the exact
// three-section format ParseSections expects.
func buildPrompt(metric kpi.Metric, rows []kpi.Row, style kpi.Style) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "You are a senior analytics consultant. Write in %s tone.\n\n", style)
	fmt.Fprintf(&sb, "Metric: %s\n", metric)
	sb.WriteString("Data (monthly rows, oldest -> newest):\n")
	for _, r := range rows {
		fmt.Fprintf(&sb, "month=%s revenue=%.2f orders=%.0f customers=%.0f aov=%.2f\n",
			r.Month, r.Revenue, r.Orders, r.Customers, r.AOV)
	}
	sb.WriteString("\nReturn EXACTLY in this format:\n")
	sb.WriteString("INSIGHT: <one paragraph>\n")
	sb.WriteString("RISK: <one paragraph>\n")
	sb.WriteString("RECOMMENDATION: <one paragraph>")
	return sb.String()
}
