// Package richtext models the structured node tree stored by richtext fields
// and provides pure, deterministic derivations over it: plain-text
// extraction, excerpts, and estimated reading time. All functions here are
// side-effect free so they can run inside a pre-persist hook without
// breaking hook ordering guarantees.
package richtext

import (
	"math"
	"strings"
	"unicode/utf8"
)

// Node is one typed node in a richtext tree, e.g. {type:"text", text:"..."}
// or {type:"paragraph", children:[...]}.
type Node struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	Children []Node `json:"children,omitempty"`
}

// ExcerptLength is the maximum number of characters in a derived excerpt.
const ExcerptLength = 200

// wordsPerMinute is the reading speed assumed by EstimateReadingTime.
const wordsPerMinute = 200

// FromValue converts a JSON-shaped richtext value into a node list. Accepted
// shapes: a []Node, a plain node list ([]any of maps), or a wrapper object
// whose "root" key holds {children: [...]}. Returns ok=false for anything else.
func FromValue(value any) ([]Node, bool) {
	switch v := value.(type) {
	case []Node:
		return v, true
	case []any:
		return nodesFromSlice(v)
	case map[string]any:
		root, ok := v["root"].(map[string]any)
		if !ok {
			return nil, false
		}
		children, ok := root["children"].([]any)
		if !ok {
			return nil, false
		}
		return nodesFromSlice(children)
	default:
		return nil, false
	}
}

func nodesFromSlice(items []any) ([]Node, bool) {
	nodes := make([]Node, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, false
		}
		node, ok := nodeFromMap(m)
		if !ok {
			return nil, false
		}
		nodes = append(nodes, node)
	}
	return nodes, true
}

func nodeFromMap(m map[string]any) (Node, bool) {
	nodeType, ok := m["type"].(string)
	if !ok || nodeType == "" {
		return Node{}, false
	}
	node := Node{Type: nodeType}
	if text, present := m["text"]; present {
		node.Text, ok = text.(string)
		if !ok {
			return Node{}, false
		}
	}
	if children, present := m["children"]; present {
		list, ok := children.([]any)
		if !ok {
			return Node{}, false
		}
		node.Children, ok = nodesFromSlice(list)
		if !ok {
			return Node{}, false
		}
	}
	return node, true
}

// ExtractText walks the node list depth-first and concatenates the contents
// of every text node, separating top-level blocks with a single space.
func ExtractText(nodes []Node) string {
	parts := make([]string, 0, len(nodes))
	for _, node := range nodes {
		if text := extractNodeText(node); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " ")
}

func extractNodeText(node Node) string {
	if node.Type == "text" {
		return node.Text
	}
	var b strings.Builder
	for _, child := range node.Children {
		b.WriteString(extractNodeText(child))
	}
	return b.String()
}

// Excerpt derives a short summary from a node list: the first ExcerptLength
// characters of the extracted text, with "..." appended when truncated.
// Empty content yields the empty string.
func Excerpt(nodes []Node) string {
	text := ExtractText(nodes)
	if utf8.RuneCountInString(text) <= ExcerptLength {
		return text
	}
	runes := []rune(text)
	return string(runes[:ExcerptLength]) + "..."
}

// EstimateReadingTime returns the estimated reading time in whole minutes for
// the extracted text, at least 1 for non-empty content and 0 for empty.
func EstimateReadingTime(nodes []Node) int {
	words := len(strings.Fields(ExtractText(nodes)))
	if words == 0 {
		return 0
	}
	return int(math.Ceil(float64(words) / wordsPerMinute))
}
