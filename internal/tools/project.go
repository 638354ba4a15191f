// ABOUTME: create_project tool handler
// ABOUTME: Scaffolds a project from embedded templates or via the compiler's create command

package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/2389/quarkdown-mcp/internal/scaffold"
)

type createProjectInput struct {
	ProjectPath     string `json:"project_path"`
	ProjectName     string `json:"project_name"`
	Template        string `json:"template"`
	IncludeExamples *bool  `json:"include_examples"`
	InitializeGit   bool   `json:"initialize_git"`
	UseCompiler     bool   `json:"use_compiler"`
}

// CreateProject handles create_project.
func (h *handlers) CreateProject(ctx context.Context, input json.RawMessage) (*Result, error) {
	var in createProjectInput
	if err := decodeInput(input, &in); err != nil {
		return nil, err
	}
	template := stringOr(in.Template, scaffold.TemplateBasic)

	if in.UseCompiler {
		return h.createWithCompiler(ctx, in, template), nil
	}

	res, err := h.scaffolder.Create(ctx, scaffold.Options{
		Path:            in.ProjectPath,
		Name:            in.ProjectName,
		Template:        template,
		IncludeExamples: boolOr(in.IncludeExamples, true),
		InitGit:         in.InitializeGit,
	})
	switch {
	case errors.Is(err, scaffold.ErrDirectoryNotEmpty):
		return errorResult(fmt.Sprintf("Directory %s already exists and is not empty", in.ProjectPath)), nil
	case err != nil:
		return errorResult(err.Error()), nil
	}

	details := fmt.Sprintf("**Project Location**: `%s`\n**Template**: %s\n**Examples Included**: %s\n**Git Initialized**: %s",
		res.Path, res.Template, yesNo(boolOr(in.IncludeExamples, true)), yesNo(res.GitInitialized))
	blocks := []Block{
		successBlock(fmt.Sprintf("Quarkdown project '%s' created successfully", in.ProjectName)),
		textBlock(details),
	}
	if res.GitWarning != "" {
		blocks = append(blocks, textBlock("⚠️ Git initialization skipped: "+res.GitWarning))
	}
	if len(res.Files) > 0 {
		lines := make([]string, len(res.Files))
		for i, f := range res.Files {
			lines[i] = fmt.Sprintf("- `%s`", f)
		}
		blocks = append(blocks, textBlock("**Created Files**:\n"+strings.Join(lines, "\n")))
	}
	blocks = append(blocks, textBlock(gettingStarted(res.Path, in.ProjectName)))
	return resultOf(blocks...), nil
}

func (h *handlers) createWithCompiler(ctx context.Context, in createProjectInput, template string) *Result {
	path, err := filepath.Abs(in.ProjectPath)
	if err != nil {
		return errorResult(err.Error())
	}
	res := h.compiler.CreateProject(ctx, path, template)
	if !res.Success {
		return errorResult("Project creation failed: " + res.Error)
	}
	return resultOf(
		successBlock(fmt.Sprintf("Quarkdown project '%s' created successfully", in.ProjectName)),
		textBlock(fmt.Sprintf("**Project Location**: `%s`\n**Template**: %s\n**Created By**: quarkdown create",
			res.Path, res.Template)),
	)
}

func gettingStarted(path, name string) string {
	return fmt.Sprintf(`**Getting Started**:

1. **Navigate to your project**:
   `+"```bash"+`
   cd %[1]s
   `+"```"+`

2. **Edit your main document**: `+"`src/%[2]s.qmd`"+`

3. **Build your document**:
   `+"```bash"+`
   quarkdown c src/%[2]s.qmd -o output
   quarkdown c src/%[2]s.qmd -o output -r pdf
   `+"```", path, name)
}
