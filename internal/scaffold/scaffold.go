// ABOUTME: Creates new Quarkdown project directories from embedded templates
// ABOUTME: Writes sources, config, README and examples, optionally initialising git

package scaffold

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/template"
	"time"

	"github.com/2389/quarkdown-mcp/internal/process"
)

//go:embed templates/*.tmpl templates/examples/*.qmd
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.tmpl"))

// Project templates.
const (
	TemplateBasic        = "basic"
	TemplatePresentation = "presentation"
	TemplateBook         = "book"
	TemplateArticle      = "article"
)

// Scaffolding errors.
var (
	ErrDirectoryNotEmpty = errors.New("directory already exists and is not empty")
	ErrUnknownTemplate   = errors.New("unknown project template")
	ErrInvalidName       = errors.New("invalid project name")
)

// Templates returns the supported template names.
func Templates() []string {
	return []string{TemplateBasic, TemplatePresentation, TemplateBook, TemplateArticle}
}

// examplesFor lists the example files copied for a template.
var examplesFor = map[string][]string{
	TemplateBasic:        {"basic_example.qmd"},
	TemplatePresentation: {"basic_example.qmd", "presentation_example.qmd"},
	TemplateBook:         {"basic_example.qmd", "book_example.qmd"},
	TemplateArticle:      {"basic_example.qmd"},
}

// GitFunc runs git with args inside dir.
type GitFunc func(ctx context.Context, dir string, args ...string) error

// Options describes a project to create.
type Options struct {
	Path            string
	Name            string
	Template        string // defaults to basic
	IncludeExamples bool
	InitGit         bool
}

// Result describes a created project.
type Result struct {
	Path           string   // absolute project directory
	Template       string
	Files          []string // sorted, relative to Path
	GitInitialized bool
	GitWarning     string // why git initialisation failed, if it did
}

// Scaffolder writes project skeletons.
type Scaffolder struct {
	git    GitFunc
	now    func() time.Time
	logger *slog.Logger
}

// New creates a Scaffolder that uses the git binary on PATH.
func New(logger *slog.Logger) *Scaffolder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scaffolder{
		git:    runGit,
		now:    time.Now,
		logger: logger.With("component", "scaffold"),
	}
}

// WithGit returns a copy of s that runs git through fn.
func (s *Scaffolder) WithGit(fn GitFunc) *Scaffolder {
	cp := *s
	cp.git = fn
	return &cp
}

type templateData struct {
	Name            string
	Template        string
	Date            string
	IncludeExamples bool
}

// Create writes a new project. An existing empty directory is reused; a
// non-empty one is refused. Git failures are reported on the Result, not as
// errors.
func (s *Scaffolder) Create(ctx context.Context, opts Options) (*Result, error) {
	tmpl := opts.Template
	if tmpl == "" {
		tmpl = TemplateBasic
	}
	if _, ok := examplesFor[tmpl]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTemplate, tmpl)
	}
	name := strings.TrimSpace(opts.Name)
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return nil, fmt.Errorf("%w: %q", ErrInvalidName, opts.Name)
	}

	root, err := filepath.Abs(opts.Path)
	if err != nil {
		return nil, fmt.Errorf("resolving project path: %w", err)
	}
	if entries, err := os.ReadDir(root); err == nil && len(entries) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrDirectoryNotEmpty, root)
	}

	dirs := []string{"src", "assets", "output"}
	if opts.IncludeExamples {
		dirs = append(dirs, "examples")
	}
	for _, d := range dirs {
		if err := os.MkdirAll(filepath.Join(root, d), 0o755); err != nil {
			return nil, fmt.Errorf("creating %s: %w", d, err)
		}
	}

	data := templateData{
		Name:            name,
		Template:        tmpl,
		Date:            s.now().Format("2006-01-02"),
		IncludeExamples: opts.IncludeExamples,
	}
	files := map[string]string{
		filepath.Join("src", name+".qmd"): tmpl + ".qmd.tmpl",
		"quarkdown.yaml":                  "quarkdown.yaml.tmpl",
		"README.md":                       "README.md.tmpl",
		".gitignore":                      "gitignore.tmpl",
	}
	for rel, tmplName := range files {
		if err := s.render(filepath.Join(root, rel), tmplName, data); err != nil {
			return nil, err
		}
	}

	if opts.IncludeExamples {
		for _, ex := range examplesFor[tmpl] {
			content, err := templateFS.ReadFile("templates/examples/" + ex)
			if err != nil {
				return nil, fmt.Errorf("reading example %s: %w", ex, err)
			}
			if err := os.WriteFile(filepath.Join(root, "examples", ex), content, 0o644); err != nil {
				return nil, fmt.Errorf("writing example %s: %w", ex, err)
			}
		}
	}

	result := &Result{Path: root, Template: tmpl}
	if opts.InitGit {
		if err := s.initGit(ctx, root); err != nil {
			s.logger.Warn("git initialisation failed", "path", root, "error", err)
			result.GitWarning = err.Error()
		} else {
			result.GitInitialized = true
		}
	}

	result.Files, err = listFiles(root)
	if err != nil {
		return nil, err
	}
	s.logger.Info("project created", "path", root, "template", tmpl, "files", len(result.Files))
	return result, nil
}

func (s *Scaffolder) render(path, tmplName string, data templateData) error {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, tmplName, data); err != nil {
		return fmt.Errorf("rendering %s: %w", tmplName, err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", filepath.Base(path), err)
	}
	return nil
}

func (s *Scaffolder) initGit(ctx context.Context, dir string) error {
	for _, args := range [][]string{
		{"init"},
		{"add", "."},
		{"commit", "-m", "Initial commit"},
	} {
		if err := s.git(ctx, dir, args...); err != nil {
			return fmt.Errorf("git %s: %w", args[0], err)
		}
	}
	return nil
}

// gitTimeout bounds each git step.
const gitTimeout = time.Minute

func runGit(ctx context.Context, dir string, args ...string) error {
	res, err := process.RunProgram(ctx, dir, gitTimeout, "git", args...)
	if err != nil {
		return err
	}
	if res.Succeeded() {
		return nil
	}
	msg := strings.TrimSpace(res.Stderr)
	if msg == "" {
		msg = strings.TrimSpace(res.Stdout)
	}
	if msg == "" {
		return fmt.Errorf("exit status %d", res.ExitCode)
	}
	return fmt.Errorf("exit status %d: %s", res.ExitCode, msg)
}

// listFiles returns every regular file under root, relative and sorted. The
// .git directory is skipped.
func listFiles(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() && d.Name() == ".git" {
			return filepath.SkipDir
		}
		if d.Type().IsRegular() {
			rel, err := filepath.Rel(root, path)
			if err != nil {
				return err
			}
			files = append(files, filepath.ToSlash(rel))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing project files: %w", err)
	}
	sort.Strings(files)
	return files, nil
}
