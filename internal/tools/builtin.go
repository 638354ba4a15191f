// ABOUTME: Wires the Quarkdown tools into a Registry from explicit dependencies
// ABOUTME: One handler struct serves every tool; nothing is looked up globally

package tools

import (
	"errors"
	"log/slog"

	"github.com/2389/quarkdown-mcp/internal/batch"
	"github.com/2389/quarkdown-mcp/internal/preview"
	"github.com/2389/quarkdown-mcp/internal/quarkdown"
	"github.com/2389/quarkdown-mcp/internal/scaffold"
	"github.com/2389/quarkdown-mcp/internal/store"
)

// Tool names.
const (
	NameCompileDocument  = "compile_document"
	NameCreateProject    = "create_project"
	NameValidateMarkdown = "validate_markdown"
	NamePreviewServer    = "preview_server"
	NameConvertBatch     = "convert_batch"
	NameStopPreview      = "stop_preview"
	NameListPreviews     = "list_previews"
	NameCompilerInfo     = "compiler_info"
)

// Deps are the components the built-in tools call into. Store is optional.
type Deps struct {
	Compiler   *quarkdown.Compiler
	Engine     *batch.Engine
	Previews   *preview.Manager
	Scaffolder *scaffold.Scaffolder
	Store      store.Store
	Logger     *slog.Logger

	// MaxWorkers is the convert_batch default when max_workers is omitted.
	MaxWorkers int
}

// handlers implements every built-in tool.
type handlers struct {
	compiler   *quarkdown.Compiler
	engine     *batch.Engine
	previews   *preview.Manager
	scaffolder *scaffold.Scaffolder
	store      store.Store
	logger     *slog.Logger
	maxWorkers int
}

// New builds a Registry holding every built-in tool.
func New(deps Deps) (*Registry, error) {
	if deps.Compiler == nil {
		return nil, errors.New("compiler is required")
	}
	if deps.Engine == nil {
		return nil, errors.New("batch engine is required")
	}
	if deps.Previews == nil {
		return nil, errors.New("preview manager is required")
	}
	if deps.Scaffolder == nil {
		return nil, errors.New("scaffolder is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	h := &handlers{
		compiler:   deps.Compiler,
		engine:     deps.Engine,
		previews:   deps.Previews,
		scaffolder: deps.Scaffolder,
		store:      deps.Store,
		logger:     logger.With("component", "tools"),
		maxWorkers: deps.MaxWorkers,
	}
	if h.maxWorkers <= 0 {
		h.maxWorkers = batch.DefaultMaxWorkers
	}

	reg := NewRegistry(deps.Store, logger)
	for _, t := range h.tools() {
		if err := reg.Register(t); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

func (h *handlers) tools() []Tool {
	return []Tool{
		{
			Definition: Definition{
				Name:        NameCompileDocument,
				Description: "Compile Quarkdown source content to various output formats (HTML, PDF, LaTeX, Markdown)",
				InputSchema: compileSchema,
			},
			Handler: h.CompileDocument,
		},
		{
			Definition: Definition{
				Name:        NameCreateProject,
				Description: "Create a new Quarkdown project with proper directory structure and template files",
				InputSchema: createProjectSchema,
			},
			Required: []string{"project_path", "project_name"},
			Handler:  h.CreateProject,
		},
		{
			Definition: Definition{
				Name:        NameValidateMarkdown,
				Description: "Validate Quarkdown document syntax and report any errors or warnings",
				InputSchema: validateSchema,
			},
			Required: []string{"source_content"},
			Handler:  h.ValidateMarkdown,
		},
		{
			Definition: Definition{
				Name:        NamePreviewServer,
				Description: "Start a local preview server for a Quarkdown document",
				InputSchema: previewSchema,
			},
			Required: []string{"source_content"},
			Handler:  h.PreviewServer,
		},
		{
			Definition: Definition{
				Name:        NameConvertBatch,
				Description: "Convert multiple Quarkdown documents in batch mode with consistent settings",
				InputSchema: convertBatchSchema,
			},
			Required: []string{"documents"},
			Handler:  h.ConvertBatch,
		},
		{
			Definition: Definition{
				Name:        NameStopPreview,
				Description: "Stop a preview server started by preview_server",
				InputSchema: stopPreviewSchema,
			},
			Required: []string{"preview_id"},
			Handler:  h.StopPreview,
		},
		{
			Definition: Definition{
				Name:        NameListPreviews,
				Description: "List the preview servers started by this process",
				InputSchema: emptySchema,
			},
			Handler: h.ListPreviews,
		},
		{
			Definition: Definition{
				Name:        NameCompilerInfo,
				Description: "Show the Quarkdown compiler version, supported formats and optionally its help text",
				InputSchema: compilerInfoSchema,
			},
			Handler: h.CompilerInfo,
		},
	}
}
