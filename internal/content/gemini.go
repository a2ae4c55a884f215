package content

import (
	"context"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"
)

// DefaultModel is the Gemini model used when none is configured
const DefaultModel = "gemini-2.5-flash"

// GeminiGenerator asks a Gemini model for the three sections in one call.
type GeminiGenerator struct {
	client *genai.Client
	model  string
}

// NewGeminiGenerator creates a generator for the given API key.
func NewGeminiGenerator(ctx context.Context, apiKey, model string) (*GeminiGenerator, error) {
	if !KeyConfigured(apiKey) {
		return nil, fmt.Errorf("GenAI API key is required")
	}

	if model == "" {
		model = DefaultModel
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &GeminiGenerator{
		client: client,
		model:  model,
	}, nil
}

// Generate implements Generator.
func (g *GeminiGenerator) Generate(ctx context.Context, req Request) (Content, error) {
	contents := []*genai.Content{
		genai.NewContentFromText(buildPrompt(req), genai.RoleUser),
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, nil)
	if err != nil {
		return Content{}, fmt.Errorf("GenAI generate failed: %w", err)
	}

	text := responseText(resp)
	if text == "" {
		return Content{}, ErrEmptyResponse
	}

	c := ParseResponse(text)
	c.Source = SourceGemini
	c.GeneratedAt = time.Now().UTC()
	return c, nil
}

// Name returns the generator name.
func (g *GeminiGenerator) Name() string {
	return fmt.Sprintf("genai:%s", g.model)
}

// responseText joins the text parts of the first candidate
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil {
			sb.WriteString(part.Text)
		}
	}
	return strings.TrimSpace(sb.String())
}

func buildPrompt(req Request) string {
	name := req.PhaseName
	if name == "" {
		name = "(no traditional name)"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Date: %s\n", req.Date)
	fmt.Fprintf(&sb, "Moon age: %.1f days\n", req.MoonAge)
	fmt.Fprintf(&sb, "Moon name: %s\n", name)
	if !req.Sunset.IsZero() {
		fmt.Fprintf(&sb, "Sunset: %s UTC\n", req.Sunset.UTC().Format("15:04"))
	}
	sb.WriteString(`
Write three short sections about this moon, each starting with its tag on its own line:

[Trivia]
Mythology, culture or science related to this moon, about 60 words.

[Message]
A calm, encouraging message that fits this phase, about 40 words.

[Observation]
When and how to observe this moon tonight, about 40 words.

Do not use square brackets anywhere else.`)
	return sb.String()
}
