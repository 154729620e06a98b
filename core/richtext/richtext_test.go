package richtext

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractText(t *testing.T) {
	value := []any{
		map[string]any{
			"type": "paragraph",
			"children": []any{
				map[string]any{"type": "text", "text": "Hello "},
				map[string]any{"type": "text", "text": "world"},
			},
		},
	}
	nodes, ok := FromValue(value)
	assert.True(t, ok)
	assert.Equal(t, "Hello world", ExtractText(nodes))
}

func TestExtractText_JoinsBlocks(t *testing.T) {
	nodes := []Node{
		{Type: "paragraph", Children: []Node{{Type: "text", Text: "First block."}}},
		{Type: "paragraph", Children: []Node{{Type: "text", Text: "Second block."}}},
	}
	assert.Equal(t, "First block. Second block.", ExtractText(nodes))
}

func TestFromValue(t *testing.T) {
	tests := []struct {
		name  string
		value any
		ok    bool
	}{
		{"node slice", []Node{{Type: "paragraph"}}, true},
		{"generic slice", []any{map[string]any{"type": "paragraph"}}, true},
		{"root wrapper", map[string]any{"root": map[string]any{"children": []any{
			map[string]any{"type": "paragraph"},
		}}}, true},
		{"plain string", "not richtext", false},
		{"nil", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := FromValue(tt.value)
			assert.Equal(t, tt.ok, ok)
		})
	}
}

func TestExcerpt(t *testing.T) {
	short := []Node{{Type: "paragraph", Children: []Node{{Type: "text", Text: "A short post."}}}}
	assert.Equal(t, "A short post.", Excerpt(short))

	long := []Node{{Type: "paragraph", Children: []Node{{Type: "text", Text: strings.Repeat("a", 300)}}}}
	got := Excerpt(long)
	assert.Equal(t, ExcerptLength+3, len(got))
	assert.True(t, strings.HasSuffix(got, "..."))
}

func TestEstimateReadingTime(t *testing.T) {
	assert.Equal(t, 0, EstimateReadingTime(nil))

	one := []Node{{Type: "paragraph", Children: []Node{{Type: "text", Text: "just a few words"}}}}
	assert.Equal(t, 1, EstimateReadingTime(one))

	many := []Node{{Type: "paragraph", Children: []Node{{Type: "text", Text: strings.TrimSpace(strings.Repeat("word ", 450))}}}}
	assert.Equal(t, 3, EstimateReadingTime(many))
}
