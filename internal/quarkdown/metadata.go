// ABOUTME: Compiler metadata queries and project creation through the CLI
// ABOUTME: Help, version and formats degrade to fixed fallbacks and are cached on success

package quarkdown

import (
	"context"
	"errors"
	"strings"

	"github.com/2389/quarkdown-mcp/internal/process"
)

// Fallbacks used when the compiler cannot answer a metadata query.
const (
	HelpUnavailable    = "Help not available"
	VersionUnavailable = "Version not available"
)

// DefaultFormats is returned when `formats` fails or prints nothing.
var DefaultFormats = []string{"html", "pdf", "markdown", "latex"}

var errNoAnswer = errors.New("compiler gave no answer")

// Help returns the compiler's --help text, or HelpUnavailable.
func (c *Compiler) Help(ctx context.Context) string {
	v, err := c.metadata(ctx, "help", func(res *process.Result) (any, error) {
		return res.Stdout, nil
	}, "--help")
	if err != nil {
		return HelpUnavailable
	}
	return v.(string)
}

// Version returns the trimmed --version output, or VersionUnavailable.
func (c *Compiler) Version(ctx context.Context) string {
	v, err := c.metadata(ctx, "version", func(res *process.Result) (any, error) {
		return strings.TrimSpace(res.Stdout), nil
	}, "--version")
	if err != nil {
		return VersionUnavailable
	}
	return v.(string)
}

// Formats returns the renderer names the compiler reports, or DefaultFormats.
// Lines starting with # are comments.
func (c *Compiler) Formats(ctx context.Context) []string {
	v, err := c.metadata(ctx, "formats", func(res *process.Result) (any, error) {
		var formats []string
		for _, line := range nonEmptyLines(res.Stdout) {
			if !strings.HasPrefix(line, "#") {
				formats = append(formats, line)
			}
		}
		if len(formats) == 0 {
			return nil, errNoAnswer
		}
		return formats, nil
	}, "formats")
	if err != nil {
		out := make([]string, len(DefaultFormats))
		copy(out, DefaultFormats)
		return out
	}
	formats := v.([]string)
	out := make([]string, len(formats))
	copy(out, formats)
	return out
}

// Ping runs --version without the cache and reports whether the compiler
// answered with exit code zero.
func (c *Compiler) Ping(ctx context.Context) error {
	res, err := c.invoker.Run(ctx, process.Invocation{Args: []string{"--version"}})
	if err != nil {
		return err
	}
	if !res.Succeeded() {
		return errors.New(firstNonEmpty(res.Stderr, res.Stdout, "compiler exited with a nonzero status"))
	}
	return nil
}

// metadata runs args and parses a successful answer, consulting the cache
// first. Failures are never cached.
func (c *Compiler) metadata(ctx context.Context, key string, parse func(*process.Result) (any, error), args ...string) (any, error) {
	load := func() (any, error) {
		res, err := c.invoker.Run(ctx, process.Invocation{Args: args})
		if err != nil {
			c.logger.Warn("metadata query failed", "query", key, "error", err)
			return nil, err
		}
		if !res.Succeeded() {
			return nil, errNoAnswer
		}
		return parse(res)
	}
	if c.cache == nil {
		return load()
	}
	return c.cache.GetOrLoad("quarkdown:"+key, load)
}

// ProjectResult is the outcome of CreateProject.
type ProjectResult struct {
	Success  bool
	Path     string
	Template string
	Error    string
}

// CreateProject runs `create <path> [--template T]`. The template flag is
// omitted for the basic template.
func (c *Compiler) CreateProject(ctx context.Context, path, template string) *ProjectResult {
	if template == "" {
		template = "basic"
	}
	result := &ProjectResult{Path: path, Template: template}

	args := []string{"create", path}
	if template != "basic" {
		args = append(args, "--template", template)
	}

	res, err := c.invoker.Run(ctx, process.Invocation{Args: args})
	if err != nil {
		c.logger.Error("project creation could not run", "error", err)
		result.Error = err.Error()
		return result
	}
	if res.ExitCode != 0 {
		result.Error = strings.TrimSpace(firstNonEmpty(res.Stderr, res.Stdout, "Unknown error"))
		return result
	}
	result.Success = true
	return result
}
