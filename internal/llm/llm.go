// Package llm adapts Genkit text generation to the narrow surface the
// answer pipeline needs: one prompt in, one completion out, with a
// per-call sampling temperature.
package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"google.golang.org/genai"
)

// DefaultTimeout bounds a single generation call.
const DefaultTimeout = 90 * time.Second

// Client generates text through a single configured model.
type Client struct {
	g       *genkit.Genkit
	model   string
	timeout time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout overrides the per-call generation timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// NewClient creates a generation client. model must be provider-qualified,
// e.g. "googleai/gemini-2.5-flash".
func NewClient(g *genkit.Genkit, model string, opts ...Option) *Client {
	c := &Client{
		g:       g,
		model:   model,
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Generate produces a completion for prompt at the given sampling
// temperature.
func (c *Client) Generate(ctx context.Context, prompt string, temperature float32) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	temp := temperature
	resp, err := genkit.Generate(ctx, c.g,
		ai.WithModelName(c.model),
		ai.WithPrompt(prompt),
		ai.WithConfig(&genai.GenerateContentConfig{Temperature: &temp}),
	)
	if err != nil {
		return "", fmt.Errorf("generating with %s: %w", c.model, err)
	}
	return resp.Text(), nil
}
