package episodic

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const claudeSystemPrompt = `You answer questions about a software project using only the numbered facts supplied by the user.
Reply in at most three short sentences.
If the facts do not answer the question, reply with the single most relevant fact verbatim.
Never invent information that is not in the facts.`

// Claude answers questions by asking an Anthropic model to summarise the
// selected facts.
type Claude struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

// NewClaude creates a model-backed answerer. opts are passed to the
// Anthropic client, typically option.WithAPIKey and option.WithBaseURL.
func NewClaude(model string, maxTokens int, opts ...option.RequestOption) *Claude {
	return &Claude{
		client:    anthropic.NewClient(opts...),
		model:     model,
		maxTokens: int64(maxTokens),
	}
}

func (c *Claude) Answer(ctx context.Context, query string, facts []Fact) (string, error) {
	if len(facts) == 0 {
		return "", nil
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: c.maxTokens,
		System: []anthropic.TextBlockParam{
			{Text: claudeSystemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(factPrompt(query, facts))),
		},
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("%w: claude api: %v", ErrAnswer, err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	return strings.TrimSpace(text.String()), nil
}

func factPrompt(query string, facts []Fact) string {
	var b strings.Builder
	b.WriteString("Facts:\n")
	for i, f := range facts {
		fmt.Fprintf(&b, "%d. %s\n", i+1, f.Statement())
		if f.Context != "" && f.Context != f.Object {
			fmt.Fprintf(&b, "   Context: %s\n", truncate(f.Context, maxObjectLength))
		}
	}
	b.WriteString("\nQuestion: ")
	b.WriteString(query)
	return b.String()
}
