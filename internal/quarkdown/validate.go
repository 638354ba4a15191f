// ABOUTME: Syntax validation through the compiler's validate command
// ABOUTME: Classifies compiler output lines and merges lightweight static checks

package quarkdown

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/2389/quarkdown-mcp/internal/process"
)

// ValidationResult is the outcome of Validate.
type ValidationResult struct {
	Valid    bool
	Errors   []string
	Warnings []string
	ExitCode int // -1 when the compiler could not be run
}

// Validate runs `validate --stdin [--strict]` with content on stdin and merges
// the static checks. The document is valid only when the compiler exits zero
// and no errors were found.
func (c *Compiler) Validate(ctx context.Context, content string, strict bool) *ValidationResult {
	args := []string{"validate", "--stdin"}
	if strict {
		args = append(args, "--strict")
	}

	res, err := c.invoker.Run(ctx, process.Invocation{Args: args, Stdin: &content})
	if err != nil {
		c.logger.Error("validation could not run", "error", err)
		return &ValidationResult{
			Errors:   []string{fmt.Sprintf("Validation failed: %v", err)},
			ExitCode: -1,
		}
	}

	result := &ValidationResult{ExitCode: res.ExitCode}
	for _, line := range nonEmptyLines(res.Stderr) {
		lower := strings.ToLower(line)
		switch {
		case strings.Contains(lower, "error"), strings.Contains(lower, "failed"):
			result.Errors = append(result.Errors, line)
		case strings.Contains(lower, "warning"):
			result.Warnings = append(result.Warnings, line)
		default:
			result.Errors = append(result.Errors, line)
		}
	}
	if res.ExitCode != 0 {
		for _, line := range nonEmptyLines(res.Stdout) {
			lower := strings.ToLower(line)
			if strings.Contains(lower, "error") || strings.Contains(lower, "unresolved") {
				result.Errors = append(result.Errors, line)
			}
		}
	}

	static := StaticCheck(content)
	result.Errors = append(result.Errors, static.Errors...)
	result.Warnings = append(result.Warnings, static.Warnings...)
	result.Valid = res.ExitCode == 0 && len(result.Errors) == 0

	c.logger.Debug("validated document", "valid", result.Valid, "errors", len(result.Errors), "warnings", len(result.Warnings))
	return result
}

// StaticFindings are problems found without running the compiler.
type StaticFindings struct {
	Errors   []string
	Warnings []string
}

var imageAltPattern = regexp.MustCompile(`!\[([^\]]*)\]\(`)

// StaticCheck scans content line by line for common authoring mistakes.
// Line numbers in messages are 1-based.
func StaticCheck(content string) StaticFindings {
	var f StaticFindings
	for i, line := range strings.Split(content, "\n") {
		n := i + 1
		trimmed := strings.TrimSpace(line)

		if strings.Contains(line, ".callout") && !strings.HasPrefix(trimmed, "#") && !strings.Contains(line, "type:") {
			f.Warnings = append(f.Warnings, fmt.Sprintf("Line %d: Callout missing type parameter", n))
		}

		if strings.Contains(line, ".function") && !strings.HasSuffix(trimmed, ")") {
			f.Errors = append(f.Errors, fmt.Sprintf("Line %d: Function call missing closing parenthesis", n))
		}

		if strings.HasPrefix(trimmed, ":::") && trimmed != ":::" && !knownContainer(trimmed) {
			f.Warnings = append(f.Warnings, fmt.Sprintf("Line %d: Unknown container type, may not be supported", n))
		}

		for _, m := range imageAltPattern.FindAllStringSubmatch(line, -1) {
			if len(strings.TrimSpace(m[1])) < 2 {
				f.Warnings = append(f.Warnings, fmt.Sprintf("Line %d: Image missing descriptive alt text", n))
				break
			}
		}
	}
	return f
}

func knownContainer(line string) bool {
	for _, kind := range []string{"callout", "container", "div"} {
		if strings.Contains(line, kind) {
			return true
		}
	}
	return false
}

func nonEmptyLines(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		if t := strings.TrimSpace(line); t != "" {
			out = append(out, t)
		}
	}
	return out
}
