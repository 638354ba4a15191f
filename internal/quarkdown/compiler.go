// ABOUTME: Compiler adapter that turns document operations into quarkdown CLI calls
// ABOUTME: Compile writes a temp input, runs `c`, locates the output and scans it for error markers

package quarkdown

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/2389/quarkdown-mcp/internal/cache"
	"github.com/2389/quarkdown-mcp/internal/config"
	"github.com/2389/quarkdown-mcp/internal/process"
)

// errorMarkers are substrings the compiler leaves in otherwise-produced output
// when a function call or reference could not be resolved.
var errorMarkers = []string{
	"Unresolved reference:",
	"Error:",
	"Failed to",
	"Exception:",
}

// formatAliases maps accepted format names onto compiler renderer names.
var formatAliases = map[string]string{
	"html":     "html",
	"pdf":      "pdf",
	"tex":      "tex",
	"latex":    "tex",
	"md":       "md",
	"markdown": "md",
}

// formatSuffixes lists the file suffixes produced for each renderer.
var formatSuffixes = map[string][]string{
	"html": {".html", ".htm"},
	"pdf":  {".pdf"},
	"tex":  {".tex"},
	"md":   {".md", ".markdown"},
}

// NormalizeFormat returns the renderer name for a user-facing format name.
func NormalizeFormat(name string) (string, error) {
	f, ok := formatAliases[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return "", fmt.Errorf("unsupported output format: %s", name)
	}
	return f, nil
}

// IsBinaryFormat reports whether renderer output is not meaningful as text.
func IsBinaryFormat(format string) bool { return format == "pdf" }

// Compiler drives the quarkdown executable.
type Compiler struct {
	settings config.Settings
	invoker  process.Invoker
	cache    *cache.Cache
	logger   *slog.Logger
}

// Options configures a Compiler.
type Options struct {
	Settings config.Settings
	Invoker  process.Invoker
	Cache    *cache.Cache // optional; metadata is fetched every time when nil
	Logger   *slog.Logger
}

// New creates a Compiler.
func New(opts Options) (*Compiler, error) {
	if opts.Settings.IsZero() {
		return nil, fmt.Errorf("settings are required")
	}
	if opts.Invoker == nil {
		return nil, fmt.Errorf("invoker is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Compiler{
		settings: opts.Settings,
		invoker:  opts.Invoker,
		cache:    opts.Cache,
		logger:   logger.With("component", "compiler"),
	}, nil
}

// Settings returns the compiler's settings.
func (c *Compiler) Settings() config.Settings { return c.settings }

// CompileOptions toggles optional compiler flags. A flag is passed only when
// its field is true.
type CompileOptions struct {
	Pretty bool // --pretty
	NoWrap bool // --nowrap
	Strict bool // --strict
	Clean  bool // --clean
}

func (o CompileOptions) args() []string {
	var args []string
	if o.Pretty {
		args = append(args, "--pretty")
	}
	if o.NoWrap {
		args = append(args, "--nowrap")
	}
	if o.Strict {
		args = append(args, "--strict")
	}
	if o.Clean {
		args = append(args, "--clean")
	}
	return args
}

// CompileRequest describes one compilation.
type CompileRequest struct {
	Content    string
	Format     string
	OutputPath string // directory, or an existing file whose directory is used; empty for a private temp dir
	WorkingDir string // compiler working directory for relative resource paths
	Options    CompileOptions
}

// CompileResult is the outcome of Compile. Compiler failures are reported here,
// never as Go errors.
type CompileResult struct {
	Success    bool
	Format     string
	Content    []byte   // raw output file bytes
	OutputFile string   // path of the produced file when OutputPath was given
	Errors     []string // compiler, marker or setup errors
}

// Text returns the output as a string.
func (r *CompileResult) Text() string { return string(r.Content) }

func failed(format string, errs ...string) *CompileResult {
	return &CompileResult{Format: format, Errors: errs}
}

// Compile renders req.Content with the compiler. The temporary input file is
// always removed; a private output directory is removed after its file is read.
func (c *Compiler) Compile(ctx context.Context, req CompileRequest) *CompileResult {
	format, err := NormalizeFormat(req.Format)
	if err != nil {
		return failed(req.Format, err.Error())
	}

	input, err := c.createTempFile(req.Content, ".qmd")
	if err != nil {
		return failed(format, err.Error())
	}
	defer c.removeTemp(input)

	outDir, owned, err := c.resolveOutputDir(req.OutputPath)
	if err != nil {
		return failed(format, err.Error())
	}
	if owned {
		defer c.removeTemp(outDir)
	}

	args := append([]string{"c", input, "-o", outDir, "-r", format}, req.Options.args()...)
	res, err := c.invoker.Run(ctx, process.Invocation{Args: args, Dir: req.WorkingDir})
	if err != nil {
		c.logger.Error("compilation could not run", "error", err)
		return failed(format, err.Error())
	}

	if res.ExitCode != 0 {
		msg := firstNonEmpty(res.Stderr, res.Stdout, "Compilation failed")
		c.logger.Warn("compilation failed", "exit_code", res.ExitCode)
		return failed(format, fmt.Sprintf("Compilation failed (exit code %d): %s", res.ExitCode, strings.TrimSpace(msg)))
	}

	file, ok := findOutput(outDir, format)
	if !ok {
		msg := "No output files generated"
		if s := strings.TrimSpace(res.Stdout); s != "" {
			msg += ". Stdout: " + s
		}
		if s := strings.TrimSpace(res.Stderr); s != "" {
			msg += ". Stderr: " + s
		}
		return failed(format, msg)
	}

	data, err := os.ReadFile(file)
	if err != nil {
		return failed(format, fmt.Sprintf("reading output file: %v", err))
	}

	result := &CompileResult{Success: true, Format: format, Content: data}
	if !owned {
		result.OutputFile = file
	}

	if !IsBinaryFormat(format) {
		if markers := scanErrorMarkers(data); len(markers) > 0 {
			c.logger.Warn("compilation completed with errors", "count", len(markers))
			result.Success = false
			result.Errors = markers
		}
	}

	c.logger.Debug("compiled document", "format", format, "bytes", len(data), "success", result.Success)
	return result
}

// resolveOutputDir returns the directory the compiler writes into and whether
// it was created privately for this call.
func (c *Compiler) resolveOutputDir(outputPath string) (string, bool, error) {
	if outputPath == "" {
		dir, err := c.createTempDir("quarkdown_")
		return dir, true, err
	}
	if info, err := os.Stat(outputPath); err == nil && !info.IsDir() {
		return filepath.Dir(outputPath), false, nil
	}
	if err := os.MkdirAll(outputPath, 0o755); err != nil {
		return "", false, fmt.Errorf("creating output directory: %w", err)
	}
	return outputPath, false, nil
}

// findOutput walks dir for the first file with a suffix for format.
// index.html is preferred for html output.
func findOutput(dir, format string) (string, bool) {
	suffixes := formatSuffixes[format]
	var matches []string
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		for _, s := range suffixes {
			if ext == s {
				matches = append(matches, path)
				break
			}
		}
		return nil
	})
	if len(matches) == 0 {
		return "", false
	}
	sort.Strings(matches)
	for _, m := range matches {
		if strings.EqualFold(filepath.Base(m), "index.html") {
			return m, true
		}
	}
	return matches[0], true
}

// scanErrorMarkers returns every trimmed line containing a known error marker.
func scanErrorMarkers(data []byte) []string {
	var found []string
	for _, line := range bytes.Split(data, []byte("\n")) {
		s := string(line)
		for _, marker := range errorMarkers {
			if strings.Contains(s, marker) {
				found = append(found, strings.TrimSpace(s))
				break
			}
		}
	}
	return found
}

// createTempFile writes content to temp_<8 hex>.<suffix> in the temp dir.
func (c *Compiler) createTempFile(content, suffix string) (string, error) {
	path := filepath.Join(c.settings.TempDir(), "temp_"+shortID()+suffix)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		return "", fmt.Errorf("creating temporary input: %w", err)
	}
	return path, nil
}

// createTempDir makes <prefix><8 hex> in the temp dir.
func (c *Compiler) createTempDir(prefix string) (string, error) {
	path := filepath.Join(c.settings.TempDir(), prefix+shortID())
	if err := os.MkdirAll(path, 0o755); err != nil {
		return "", fmt.Errorf("creating temporary directory: %w", err)
	}
	return path, nil
}

// CreateTempDir exposes temp directory creation to callers that need a
// private directory under the configured temp root.
func (c *Compiler) CreateTempDir(prefix string) (string, error) {
	return c.createTempDir(prefix)
}

func (c *Compiler) removeTemp(path string) {
	if err := os.RemoveAll(path); err != nil {
		c.logger.Warn("failed to remove temporary path", "path", path, "error", err)
	}
}

func shortID() string {
	return uuid.New().String()[:8]
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
