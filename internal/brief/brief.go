// Package brief turns a niche, trending topics and recent prompts into a creative brief for video synthesis.
package brief

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jonathan/shorts-autopilot/internal/llm"
	"github.com/jonathan/shorts-autopilot/internal/prompts"
	"github.com/jonathan/shorts-autopilot/internal/schemas"
	"github.com/jonathan/shorts-autopilot/internal/types"
)

const (
	// MaxTopicsInPrompt caps how many trending topics are shown to the model
	MaxTopicsInPrompt = 10
	// DefaultAttempts is how many times the model is asked before giving up on invalid output
	DefaultAttempts = 2
)

// Error is returned when a brief cannot be produced
type Error struct {
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("creative brief: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("creative brief: %s", e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Generator produces creative briefs with an LLM
type Generator struct {
	client   llm.Client
	tier     llm.ModelTier
	attempts int
}

// NewGenerator returns a Generator using the standard model tier
func NewGenerator(client llm.Client) *Generator {
	return &Generator{client: client, tier: llm.TierStandard, attempts: DefaultAttempts}
}

// WithTier returns a copy of the generator that uses a different model tier
func (g *Generator) WithTier(tier llm.ModelTier) *Generator {
	cp := *g
	cp.tier = tier
	return &cp
}

// Generate asks the model for a brief. Topics and previous prompts may be empty.
func (g *Generator) Generate(ctx context.Context, req types.BriefRequest) (*types.CreativeBrief, error) {
	prompt, err := BuildPrompt(req)
	if err != nil {
		return nil, &Error{Message: "failed to build prompt", Cause: err}
	}

	attempts := g.attempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		raw, err := g.client.GenerateJSON(ctx, prompt, g.tier)
		if err != nil {
			return nil, &Error{Message: "LLM generation failed", Cause: err}
		}

		brief, err := parseBrief(raw)
		if err == nil {
			return brief, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}
	return nil, &Error{Message: fmt.Sprintf("invalid model output after %d attempts", attempts), Cause: lastErr}
}

func parseBrief(raw string) (*types.CreativeBrief, error) {
	cleaned := llm.CleanJSONBlock(raw)
	if err := schemas.Validate(schemas.CreativeBrief, []byte(cleaned)); err != nil {
		return nil, err
	}

	var brief types.CreativeBrief
	if err := json.Unmarshal([]byte(cleaned), &brief); err != nil {
		return nil, fmt.Errorf("failed to parse LLM response: %w (content: %s)", err, cleaned)
	}

	brief.Prompt = strings.TrimSpace(brief.Prompt)
	brief.Description = strings.TrimSpace(brief.Description)
	brief.SuggestedHashtags = NormalizeHashtags(brief.SuggestedHashtags)
	return &brief, nil
}

// BuildPrompt fills the creative-brief template for a request
func BuildPrompt(req types.BriefRequest) (string, error) {
	template, err := prompts.Get(prompts.BriefsFile, "creative-brief")
	if err != nil {
		return "", err
	}

	style := req.Style
	if style == "" {
		style = types.StyleEntertainment
	}
	guidance, err := prompts.Get(prompts.BriefsFile, "style-"+string(style))
	if err != nil {
		return "", err
	}

	keywords := strings.Join(req.Keywords, ", ")
	if keywords == "" {
		keywords = "None specified"
	}

	filled := prompts.Format(template, map[string]string{
		"NicheName":       req.NicheName,
		"Keywords":        keywords,
		"Style":           string(style),
		"StyleGuidance":   guidance,
		"Topics":          formatTopics(req.Topics),
		"PreviousPrompts": formatPrevious(req.PreviousPrompts),
	})
	if missing := prompts.Unresolved(filled); len(missing) > 0 {
		return "", fmt.Errorf("unresolved placeholders: %s", strings.Join(missing, ", "))
	}
	return filled, nil
}

func formatTopics(topics []types.TrendingTopic) string {
	if len(topics) == 0 {
		return "None available"
	}
	if len(topics) > MaxTopicsInPrompt {
		topics = topics[:MaxTopicsInPrompt]
	}
	lines := make([]string, 0, len(topics))
	for _, t := range topics {
		line := fmt.Sprintf("- %s (source: %s, score: %.0f)", t.Topic, t.Source, t.Score)
		if len(t.RelatedKeywords) > 0 {
			line += fmt.Sprintf(" [%s]", strings.Join(t.RelatedKeywords, ", "))
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func formatPrevious(previous []string) string {
	if len(previous) == 0 {
		return "None yet"
	}
	lines := make([]string, 0, len(previous))
	for _, p := range previous {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		lines = append(lines, "- "+p)
	}
	if len(lines) == 0 {
		return "None yet"
	}
	return strings.Join(lines, "\n")
}

// NormalizeHashtags prefixes tags with '#', strips spaces and drops duplicates, keeping order.
func NormalizeHashtags(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.Join(strings.Fields(tag), "")
		tag = strings.TrimLeft(tag, "#")
		if tag == "" {
			continue
		}
		tag = "#" + tag
		key := strings.ToLower(tag)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, tag)
	}
	return out
}
