// ABOUTME: compile_document tool handler
// ABOUTME: Compiles inline content or a file and previews the rendered output

package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/2389/quarkdown-mcp/internal/quarkdown"
)

// compileFormats are the output formats compile_document accepts.
var compileFormats = map[string]string{
	"html": "html",
	"pdf":  "",
	"tex":  "latex",
	"md":   "markdown",
}

type compileInput struct {
	SourceContent    string `json:"source_content"`
	InputFile        string `json:"input_file"`
	OutputFormat     string `json:"output_format"`
	OutputPath       string `json:"output_path"`
	PrettyOutput     *bool  `json:"pretty_output"`
	WrapOutput       *bool  `json:"wrap_output"`
	Strict           bool   `json:"strict"`
	Clean            bool   `json:"clean"`
	WorkingDirectory string `json:"working_directory"`
}

// CompileDocument handles compile_document.
func (h *handlers) CompileDocument(ctx context.Context, input json.RawMessage) (*Result, error) {
	var in compileInput
	if err := decodeInput(input, &in); err != nil {
		return nil, err
	}

	source, errMsg := in.source()
	if errMsg != "" {
		return errorResult(errMsg), nil
	}

	format := stringOr(in.OutputFormat, "html")
	language, ok := compileFormats[format]
	if !ok {
		return errorResult(fmt.Sprintf("Unsupported output format: %s", format)), nil
	}

	res := h.compiler.Compile(ctx, quarkdown.CompileRequest{
		Content:    source,
		Format:     format,
		OutputPath: in.OutputPath,
		WorkingDir: in.WorkingDirectory,
		Options: quarkdown.CompileOptions{
			Pretty: boolOr(in.PrettyOutput, true),
			NoWrap: !boolOr(in.WrapOutput, true),
			Strict: in.Strict,
			Clean:  in.Clean,
		},
	})
	if !res.Success {
		errs := res.Errors
		if len(errs) == 0 {
			errs = []string{"Unknown compilation error"}
		}
		return errorResult("Compilation failed: " + strings.Join(errs, "\n")), nil
	}

	blocks := []Block{successBlock(fmt.Sprintf("Document compiled successfully to %s format", strings.ToUpper(format)))}
	if in.OutputPath != "" {
		saved := res.OutputFile
		if saved == "" {
			saved = in.OutputPath
		}
		blocks = append(blocks, textBlock(fmt.Sprintf("**Output saved to**: `%s`", saved)))
	}
	if len(res.Content) > 0 {
		if quarkdown.IsBinaryFormat(format) {
			blocks = append(blocks, textBlock("**PDF Content**: Binary PDF file generated successfully. "+
				"Content cannot be displayed as text."))
		} else {
			blocks = append(blocks, fileBlock(truncate(res.Text(), previewLimit), "output."+format, language))
		}
	}
	return resultOf(blocks...), nil
}

// source returns the document text, or a message explaining why there is none.
// Inline content wins over input_file.
func (in compileInput) source() (string, string) {
	if in.SourceContent != "" {
		return in.SourceContent, ""
	}
	if in.InputFile == "" {
		return "", "Either source_content or input_file must be provided"
	}

	path := in.InputFile
	if !filepath.IsAbs(path) && in.WorkingDirectory != "" {
		path = filepath.Join(in.WorkingDirectory, path)
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Sprintf("Input file not found: %s", in.InputFile)
	}
	if err != nil {
		return "", fmt.Sprintf("Failed to read input file: %v", err)
	}
	return string(data), ""
}
