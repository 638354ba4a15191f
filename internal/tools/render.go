// ABOUTME: Display block helpers shared by every tool
// ABOUTME: Renders success, error, file preview and list blocks in markdown

package tools

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"
)

// previewLimit is how many characters of compiled output are shown inline.
const previewLimit = 2000

func textBlock(text string) Block {
	return Block{Type: "text", Text: text}
}

func successBlock(msg string) Block {
	return textBlock("✅ **Success**: " + msg)
}

func errorBlock(msg string) Block {
	return textBlock("❌ **Error**: " + msg)
}

func errorResult(msg string) *Result {
	return &Result{Content: []Block{errorBlock(msg)}, IsError: true}
}

func resultOf(blocks ...Block) *Result {
	return &Result{Content: blocks}
}

// fileBlock shows content as a fenced code block labelled with path.
func fileBlock(content, path, language string) Block {
	return textBlock(fmt.Sprintf("**File**: `%s`\n\n```%s\n%s\n```", path, language, content))
}

// truncate shortens s to n characters, marking the cut with "...".
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n]) + "..."
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

func enabled(b bool) string {
	if b {
		return "Enabled"
	}
	return "Disabled"
}

// numbered renders items as "1. item" lines, each prefixed with marker.
func numbered(items []string, marker string) string {
	lines := make([]string, len(items))
	for i, item := range items {
		lines[i] = fmt.Sprintf("%d. %s%s", i+1, marker, item)
	}
	return strings.Join(lines, "\n")
}

// decodeInput unmarshals tool input into v.
func decodeInput(input json.RawMessage, v any) error {
	if err := json.Unmarshal(input, v); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

func boolOr(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}

func intOr(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}

func stringOr(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
