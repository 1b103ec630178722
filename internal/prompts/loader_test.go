package prompts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGet_CreativeBrief(t *testing.T) {
	ClearCache()

	prompt, err := Get(BriefsFile, "creative-brief")
	require.NoError(t, err)
	assert.Contains(t, prompt, "{{.NicheName}}")
	assert.Contains(t, prompt, "{{.PreviousPrompts}}")
}

func TestGet_InvalidFile(t *testing.T) {
	ClearCache()

	_, err := Get("nonexistent.json", "some-key")
	assert.ErrorContains(t, err, "failed to read prompt file")
}

func TestGet_InvalidKey(t *testing.T) {
	ClearCache()

	_, err := Get(BriefsFile, "nonexistent-key")
	assert.ErrorContains(t, err, "not found")
}

func TestMustGet_Panics(t *testing.T) {
	ClearCache()

	assert.Panics(t, func() {
		MustGet("nonexistent.json", "some-key")
	})
}

func TestList_HasEveryStyle(t *testing.T) {
	ClearCache()

	keys, err := List(BriefsFile)
	require.NoError(t, err)
	for _, style := range []string{"educational", "motivational", "news", "entertainment"} {
		assert.Contains(t, keys, "style-"+style)
	}
}

func TestFormatAndUnresolved(t *testing.T) {
	template := "Channel {{.NicheName}} in {{.Style}} style, avoid {{.PreviousPrompts}}"

	partial := Format(template, map[string]string{"NicheName": "Tech"})
	assert.Equal(t, []string{"PreviousPrompts", "Style"}, Unresolved(partial))

	full := Format(template, map[string]string{"NicheName": "Tech", "Style": "news", "PreviousPrompts": "-"})
	assert.Equal(t, "Channel Tech in news style, avoid -", full)
	assert.Empty(t, Unresolved(full))
}

func TestCreativeBriefTemplateFullyResolvable(t *testing.T) {
	ClearCache()

	prompt := MustGet(BriefsFile, "creative-brief")
	filled := Format(prompt, map[string]string{
		"NicheName":       "n",
		"Keywords":        "k",
		"Style":           "s",
		"StyleGuidance":   "g",
		"Topics":          "t",
		"PreviousPrompts": "p",
	})
	assert.Empty(t, Unresolved(filled))
}
