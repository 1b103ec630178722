package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanJSONBlock(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "json code block",
			input:    "```json\n{\"prompt\": \"a fox\"}\n```",
			expected: `{"prompt": "a fox"}`,
		},
		{
			name:     "generic code block",
			input:    "```\n{\"prompt\": \"a fox\"}\n```",
			expected: `{"prompt": "a fox"}`,
		},
		{
			name:     "plain JSON",
			input:    `{"prompt": "a fox"}`,
			expected: `{"prompt": "a fox"}`,
		},
		{
			name:     "preamble before object",
			input:    "Here is your creative brief:\n{\"prompt\": \"a fox\"}",
			expected: `{"prompt": "a fox"}`,
		},
		{
			name:     "trailing chatter",
			input:    "{\"prompt\": \"a fox\"}\n\nHope this helps!",
			expected: `{"prompt": "a fox"}`,
		},
		{
			name:     "braces inside strings",
			input:    `Result: {"prompt": "a {curly} fox \"quoted\""}`,
			expected: `{"prompt": "a {curly} fox \"quoted\""}`,
		},
		{
			name:     "array",
			input:    "Topics:\n[\"go\", \"rust\"]",
			expected: `["go", "rust"]`,
		},
		{
			name:     "no JSON",
			input:    "sorry, I cannot do that",
			expected: "sorry, I cannot do that",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, CleanJSONBlock(tt.input))
		})
	}
}
