// ABOUTME: Extra document checks run by validate_markdown beside the compiler
// ABOUTME: Covers {{function}} syntax, undefined $variables, URL format and document statistics

package tools

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"
)

var (
	functionCallPattern = regexp.MustCompile(`\{\{([^}]+)\}\}`)
	functionNamePattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*`)
	variableUsePattern  = regexp.MustCompile(`\$([a-zA-Z_][a-zA-Z0-9_]*)`)
	linkPattern         = regexp.MustCompile(`\[([^\]]+)\]\(([^)]+)\)`)
	urlPattern          = regexp.MustCompile(`^https?://[^\s/$.?#].[^\s]*$`)
)

// functionWarnings flags {{...}} calls whose name is not an identifier.
func functionWarnings(content string) []string {
	var warnings []string
	for i, line := range strings.Split(content, "\n") {
		if !strings.Contains(line, "{{") || !strings.Contains(line, "}}") {
			continue
		}
		for _, m := range functionCallPattern.FindAllStringSubmatch(line, -1) {
			call := m[1]
			name := strings.TrimSpace(strings.SplitN(strings.TrimSpace(call), "(", 2)[0])
			if strings.TrimSpace(call) == "" || !functionNamePattern.MatchString(name) {
				warnings = append(warnings, fmt.Sprintf("Line %d: Invalid function syntax: %s", i+1, call))
			}
		}
	}
	return warnings
}

// variableWarnings flags $name uses with no `$name = value` definition line.
func variableWarnings(content string) []string {
	defined := make(map[string]bool)
	used := make(map[string]bool)
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "$") && strings.Contains(trimmed, "=") {
			name := strings.TrimLeft(strings.TrimSpace(strings.SplitN(trimmed, "=", 2)[0]), "$")
			defined[name] = true
		}
		for _, m := range variableUsePattern.FindAllStringSubmatch(line, -1) {
			used[m[1]] = true
		}
	}

	var undefined []string
	for name := range used {
		if !defined[name] {
			undefined = append(undefined, name)
		}
	}
	sort.Strings(undefined)

	warnings := make([]string, len(undefined))
	for i, name := range undefined {
		warnings[i] = "Undefined variable referenced: $" + name
	}
	return warnings
}

// linkWarnings flags http(s) link targets that are not well-formed URLs.
// Nothing is fetched.
func linkWarnings(content string) []string {
	var warnings []string
	for _, m := range linkPattern.FindAllStringSubmatch(content, -1) {
		target := m[2]
		if strings.HasPrefix(target, "http") && !urlPattern.MatchString(target) {
			warnings = append(warnings, "Invalid URL format: "+target)
		}
	}
	return warnings
}

// documentStats renders line, character, word, function and variable counts.
func documentStats(content string) string {
	lines := strings.Split(content, "\n")
	nonEmpty := 0
	for _, l := range lines {
		if strings.TrimSpace(l) != "" {
			nonEmpty++
		}
	}

	stats := []struct {
		label string
		value int
	}{
		{"Total lines", len(lines)},
		{"Non-empty lines", nonEmpty},
		{"Characters", utf8.RuneCountInString(content)},
		{"Words", len(strings.Fields(content))},
		{"Function calls", len(functionCallPattern.FindAllString(content, -1))},
		{"Variable uses", len(variableUsePattern.FindAllString(content, -1))},
	}

	out := make([]string, len(stats))
	for i, s := range stats {
		out[i] = fmt.Sprintf("- **%s**: %d", s.label, s.value)
	}
	return strings.Join(out, "\n")
}

// suggestions returns advice matching the kinds of problems found.
func suggestions(errs, warnings []string) string {
	var out []string
	if containsFold(errs, "function") {
		out = append(out, "- Check function syntax: ensure proper `{{ function_name() }}` format")
	}
	if containsFold(warnings, "variable") {
		out = append(out, "- Define variables before using them: `$variable_name = value`")
	}
	if containsFold(warnings, "url") {
		out = append(out, "- Verify URL formats and accessibility")
	}
	if len(out) == 0 {
		out = []string{
			"- Review the Quarkdown documentation for syntax guidelines",
			"- Check for missing closing brackets or parentheses",
			"- Ensure proper indentation and formatting",
		}
	}
	return strings.Join(out, "\n")
}

func containsFold(items []string, substr string) bool {
	for _, item := range items {
		if strings.Contains(strings.ToLower(item), substr) {
			return true
		}
	}
	return false
}
