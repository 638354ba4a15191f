// ABOUTME: Tests for project scaffolding.
// ABOUTME: Verifies created files per template, refusal rules and git handling.

package scaffold

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestScaffolder(t *testing.T) *Scaffolder {
	t.Helper()
	s := New(nil)
	s.now = func() time.Time { return time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC) }
	return s
}

func TestCreate_Basic(t *testing.T) {
	s := setupTestScaffolder(t)
	dir := filepath.Join(t.TempDir(), "report")

	res, err := s.Create(context.Background(), Options{Path: dir, Name: "report", IncludeExamples: true})
	require.NoError(t, err)

	assert.Equal(t, dir, res.Path)
	assert.Equal(t, TemplateBasic, res.Template)
	assert.Equal(t, []string{
		".gitignore",
		"README.md",
		"examples/basic_example.qmd",
		"quarkdown.yaml",
		"src/report.qmd",
	}, res.Files)
	assert.DirExists(t, filepath.Join(dir, "assets"))
	assert.DirExists(t, filepath.Join(dir, "output"))

	main, err := os.ReadFile(filepath.Join(dir, "src", "report.qmd"))
	require.NoError(t, err)
	assert.Contains(t, string(main), "title: report")
	assert.Contains(t, string(main), "date: 2026-03-14")

	cfg, err := os.ReadFile(filepath.Join(dir, "quarkdown.yaml"))
	require.NoError(t, err)
	assert.Contains(t, string(cfg), "template: basic")

	readme, err := os.ReadFile(filepath.Join(dir, "README.md"))
	require.NoError(t, err)
	assert.Contains(t, string(readme), "`examples/`")
}

func TestCreate_TemplatesAndExamples(t *testing.T) {
	tests := []struct {
		template string
		marker   string
		examples []string
	}{
		{TemplatePresentation, "type: presentation", []string{"basic_example.qmd", "presentation_example.qmd"}},
		{TemplateBook, "type: book", []string{"basic_example.qmd", "book_example.qmd"}},
		{TemplateArticle, "## Abstract", []string{"basic_example.qmd"}},
	}

	for _, tt := range tests {
		t.Run(tt.template, func(t *testing.T) {
			s := setupTestScaffolder(t)
			dir := t.TempDir()

			res, err := s.Create(context.Background(), Options{Path: dir, Name: "doc", Template: tt.template, IncludeExamples: true})
			require.NoError(t, err)

			main, err := os.ReadFile(filepath.Join(dir, "src", "doc.qmd"))
			require.NoError(t, err)
			assert.Contains(t, string(main), tt.marker)

			for _, ex := range tt.examples {
				assert.Contains(t, res.Files, "examples/"+ex)
			}
		})
	}
}

func TestCreate_WithoutExamples(t *testing.T) {
	s := setupTestScaffolder(t)
	dir := t.TempDir()

	res, err := s.Create(context.Background(), Options{Path: dir, Name: "doc"})
	require.NoError(t, err)

	assert.NoDirExists(t, filepath.Join(dir, "examples"))
	for _, f := range res.Files {
		assert.False(t, strings.HasPrefix(f, "examples/"), f)
	}
	readme, err := os.ReadFile(filepath.Join(dir, "README.md"))
	require.NoError(t, err)
	assert.NotContains(t, string(readme), "`examples/`")
}

func TestCreate_RefusesNonEmptyDirectory(t *testing.T) {
	s := setupTestScaffolder(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "keep.txt"), []byte("x"), 0o644))

	_, err := s.Create(context.Background(), Options{Path: dir, Name: "doc"})
	assert.ErrorIs(t, err, ErrDirectoryNotEmpty)
}

func TestCreate_InvalidInput(t *testing.T) {
	s := setupTestScaffolder(t)

	_, err := s.Create(context.Background(), Options{Path: t.TempDir(), Name: "doc", Template: "thesis"})
	assert.ErrorIs(t, err, ErrUnknownTemplate)

	for _, name := range []string{"", "  ", "a/b", `a\b`, ".."} {
		_, err = s.Create(context.Background(), Options{Path: t.TempDir(), Name: name})
		assert.ErrorIs(t, err, ErrInvalidName, "name %q", name)
	}
}

func TestCreate_InitGit(t *testing.T) {
	var calls [][]string
	s := setupTestScaffolder(t).WithGit(func(_ context.Context, dir string, args ...string) error {
		calls = append(calls, args)
		if args[0] == "init" {
			return os.MkdirAll(filepath.Join(dir, ".git", "objects"), 0o755)
		}
		return nil
	})
	dir := t.TempDir()

	res, err := s.Create(context.Background(), Options{Path: dir, Name: "doc", InitGit: true})
	require.NoError(t, err)

	assert.True(t, res.GitInitialized)
	assert.Empty(t, res.GitWarning)
	assert.Equal(t, [][]string{{"init"}, {"add", "."}, {"commit", "-m", "Initial commit"}}, calls)
	for _, f := range res.Files {
		assert.False(t, strings.HasPrefix(f, ".git/"), f)
	}
}

func TestCreate_GitFailureIsAWarning(t *testing.T) {
	s := setupTestScaffolder(t).WithGit(func(_ context.Context, _ string, args ...string) error {
		if args[0] == "commit" {
			return errors.New("no identity configured")
		}
		return nil
	})

	res, err := s.Create(context.Background(), Options{Path: t.TempDir(), Name: "doc", InitGit: true})
	require.NoError(t, err)

	assert.False(t, res.GitInitialized)
	assert.Contains(t, res.GitWarning, "git commit: no identity configured")
}

func TestRunGit_ReportsExitStatus(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	dir := t.TempDir()
	require.NoError(t, runGit(context.Background(), dir, "init", "--quiet"))
	assert.DirExists(t, filepath.Join(dir, ".git"))

	err := runGit(context.Background(), dir, "rev-parse", "--verify", "--quiet", "no-such-ref")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exit status 1")
}

func TestRunGit_MissingDirectory(t *testing.T) {
	err := runGit(context.Background(), filepath.Join(t.TempDir(), "absent"), "status")
	assert.Error(t, err)
}

func TestTemplates(t *testing.T) {
	assert.Equal(t, []string{"basic", "presentation", "book", "article"}, Templates())
}
