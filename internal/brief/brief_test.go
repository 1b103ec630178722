package brief

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jonathan/shorts-autopilot/internal/llm"
	"github.com/jonathan/shorts-autopilot/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockLLMClient implements llm.Client for testing
type MockLLMClient struct {
	GenerateJSONFunc func(ctx context.Context, prompt string, tier llm.ModelTier) (string, error)
	calls            int
}

func (m *MockLLMClient) GenerateContent(ctx context.Context, prompt string, tier llm.ModelTier) (string, error) {
	return "", nil
}

func (m *MockLLMClient) GenerateJSON(ctx context.Context, prompt string, tier llm.ModelTier) (string, error) {
	m.calls++
	if m.GenerateJSONFunc != nil {
		return m.GenerateJSONFunc(ctx, prompt, tier)
	}
	return validBrief, nil
}

func (m *MockLLMClient) GetModel(tier llm.ModelTier) string { return "mock-model" }

func (m *MockLLMClient) Close() error { return nil }

const validBrief = `{
	"prompt": "Close-up of a hummingbird drinking from a glowing flower at dusk, slow motion",
	"description": "Nature's tiniest jet engine",
	"suggested_hashtags": ["nature", "#Birds", "slow mo", "#nature"],
	"estimated_engagement": "medium"
}`

func TestGenerate_Success(t *testing.T) {
	var gotPrompt string
	var gotTier llm.ModelTier
	client := &MockLLMClient{
		GenerateJSONFunc: func(_ context.Context, prompt string, tier llm.ModelTier) (string, error) {
			gotPrompt, gotTier = prompt, tier
			return "```json\n" + validBrief + "\n```", nil
		},
	}

	brief, err := NewGenerator(client).Generate(context.Background(), types.BriefRequest{
		NicheName:       "Wild Planet",
		Keywords:        []string{"animals", "nature"},
		Topics:          []types.TrendingTopic{{Topic: "Hummingbird migration", Source: "reddit", Score: 1200}},
		PreviousPrompts: []string{"A lion yawning at sunrise"},
		Style:           types.StyleEducational,
	})
	require.NoError(t, err)

	assert.Equal(t, llm.TierStandard, gotTier)
	assert.Contains(t, gotPrompt, "Wild Planet")
	assert.Contains(t, gotPrompt, "Hummingbird migration")
	assert.Contains(t, gotPrompt, "A lion yawning at sunrise")
	assert.Contains(t, gotPrompt, "Teach one surprising")

	assert.True(t, strings.HasPrefix(brief.Prompt, "Close-up of a hummingbird"))
	assert.Equal(t, []string{"#nature", "#Birds", "#slowmo"}, brief.SuggestedHashtags)
	assert.Equal(t, types.EngagementMedium, brief.EstimatedEngagement)
}

func TestGenerate_NoTopicsOrHistory(t *testing.T) {
	var gotPrompt string
	client := &MockLLMClient{
		GenerateJSONFunc: func(_ context.Context, prompt string, _ llm.ModelTier) (string, error) {
			gotPrompt = prompt
			return validBrief, nil
		},
	}

	_, err := NewGenerator(client).Generate(context.Background(), types.BriefRequest{NicheName: "Random Fun"})
	require.NoError(t, err)
	assert.Contains(t, gotPrompt, "None available")
	assert.Contains(t, gotPrompt, "None yet")
	assert.Contains(t, gotPrompt, "entertainment")
}

func TestGenerate_RetriesInvalidOutput(t *testing.T) {
	responses := []string{`{"prompt": "x"}`, validBrief}
	client := &MockLLMClient{}
	client.GenerateJSONFunc = func(context.Context, string, llm.ModelTier) (string, error) {
		return responses[client.calls-1], nil
	}

	brief, err := NewGenerator(client).Generate(context.Background(), types.BriefRequest{NicheName: "n"})
	require.NoError(t, err)
	assert.Equal(t, 2, client.calls)
	assert.NotEmpty(t, brief.Prompt)
}

func TestGenerate_GivesUpAfterAttempts(t *testing.T) {
	client := &MockLLMClient{
		GenerateJSONFunc: func(context.Context, string, llm.ModelTier) (string, error) {
			return `{"prompt": "long enough prompt", "estimated_engagement": "viral"}`, nil
		},
	}

	_, err := NewGenerator(client).Generate(context.Background(), types.BriefRequest{NicheName: "n"})
	var be *Error
	require.True(t, errors.As(err, &be))
	assert.Contains(t, be.Error(), "after 2 attempts")
	assert.Equal(t, DefaultAttempts, client.calls)
}

func TestGenerate_LLMError(t *testing.T) {
	boom := errors.New("quota exceeded")
	client := &MockLLMClient{
		GenerateJSONFunc: func(context.Context, string, llm.ModelTier) (string, error) { return "", boom },
	}

	_, err := NewGenerator(client).WithTier(llm.TierLite).Generate(context.Background(), types.BriefRequest{NicheName: "n"})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, client.calls)
}

func TestBuildPrompt_TruncatesTopics(t *testing.T) {
	topics := make([]types.TrendingTopic, MaxTopicsInPrompt+5)
	for i := range topics {
		topics[i] = types.TrendingTopic{Topic: "topic", Source: "s"}
	}
	prompt, err := BuildPrompt(types.BriefRequest{NicheName: "n", Topics: topics, Style: types.StyleNews})
	require.NoError(t, err)
	assert.Equal(t, MaxTopicsInPrompt, strings.Count(prompt, "- topic (source"))
}

func TestNormalizeHashtags(t *testing.T) {
	assert.Equal(t, []string{"#go", "#GoLang"}, NormalizeHashtags([]string{"go", " ##go", "Go Lang", "", "#"}))
	assert.Empty(t, NormalizeHashtags(nil))
}
