package workflow

import (
	"strings"

	"github.com/jonathan/shorts-autopilot/internal/types"
)

var styleRules = []struct {
	style types.ContentStyle
	words []string
}{
	{types.StyleEducational, []string{"education", "learn", "tutorial"}},
	{types.StyleMotivational, []string{"motivation", "inspire", "success"}},
	{types.StyleNews, []string{"news", "current", "trending"}},
}

// InferStyle buckets a niche by name. Rules are checked in order and the first
// substring hit wins; anything else is entertainment.
func InferStyle(nicheName string) types.ContentStyle {
	name := strings.ToLower(nicheName)
	for _, rule := range styleRules {
		for _, w := range rule.words {
			if strings.Contains(name, w) {
				return rule.style
			}
		}
	}
	return types.StyleEntertainment
}
