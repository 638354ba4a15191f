// ABOUTME: validate_markdown tool handler
// ABOUTME: Combines compiler validation with local checks and renders a report

package tools

import (
	"context"
	"encoding/json"
	"fmt"
)

type validateInput struct {
	SourceContent  string `json:"source_content"`
	StrictMode     bool   `json:"strict_mode"`
	CheckFunctions *bool  `json:"check_functions"`
	CheckVariables *bool  `json:"check_variables"`
	CheckLinks     bool   `json:"check_links"`
}

// ValidateMarkdown handles validate_markdown.
func (h *handlers) ValidateMarkdown(ctx context.Context, input json.RawMessage) (*Result, error) {
	var in validateInput
	if err := decodeInput(input, &in); err != nil {
		return nil, err
	}

	v := h.compiler.Validate(ctx, in.SourceContent, in.StrictMode)

	warnings := append([]string(nil), v.Warnings...)
	if boolOr(in.CheckFunctions, true) {
		warnings = append(warnings, functionWarnings(in.SourceContent)...)
	}
	if boolOr(in.CheckVariables, true) {
		warnings = append(warnings, variableWarnings(in.SourceContent)...)
	}
	if in.CheckLinks {
		warnings = append(warnings, linkWarnings(in.SourceContent)...)
	}

	var blocks []Block
	switch {
	case v.Valid && len(warnings) == 0:
		blocks = append(blocks, successBlock("Document validation passed - no syntax errors found"))
	case v.Valid:
		blocks = append(blocks, textBlock("✅ **Syntax Valid** but found warnings"))
	default:
		blocks = append(blocks, textBlock(fmt.Sprintf("❌ **Validation Failed** - found %d error(s)", len(v.Errors))))
	}

	if len(v.Errors) > 0 {
		blocks = append(blocks, textBlock("**Syntax Errors**:\n"+numbered(v.Errors, "")))
	}
	if len(warnings) > 0 {
		blocks = append(blocks, textBlock("**Warnings**:\n"+numbered(warnings, "⚠️ ")))
	}
	blocks = append(blocks, textBlock("**Document Statistics**:\n"+documentStats(in.SourceContent)))
	if len(v.Errors) > 0 || len(warnings) > 0 {
		blocks = append(blocks, textBlock("**Suggestions**:\n"+suggestions(v.Errors, warnings)))
	}
	return resultOf(blocks...), nil
}
