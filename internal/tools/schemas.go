// ABOUTME: JSON input schemas advertised for each tool
// ABOUTME: Kept as raw JSON so both transports pass them through unchanged

package tools

import "encoding/json"

var compileSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"source_content": {"type": "string", "description": "The Quarkdown source content to compile"},
		"input_file": {"type": "string", "description": "Path to input file containing Quarkdown source content"},
		"output_format": {"type": "string", "enum": ["html", "pdf", "tex", "md"], "default": "html", "description": "Output format for the compiled document"},
		"output_path": {"type": "string", "description": "Optional output directory. If not provided, returns content directly"},
		"pretty_output": {"type": "boolean", "default": true, "description": "Whether to generate pretty formatted output"},
		"wrap_output": {"type": "boolean", "default": true, "description": "Whether to wrap the output in a complete document structure"},
		"strict": {"type": "boolean", "default": false, "description": "Treat compiler warnings as errors"},
		"clean": {"type": "boolean", "default": false, "description": "Clean the output directory before compiling"},
		"working_directory": {"type": "string", "description": "Working directory for relative path resolution"}
	},
	"anyOf": [{"required": ["source_content"]}, {"required": ["input_file"]}]
}`)

var createProjectSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"project_path": {"type": "string", "description": "Path where the new project should be created"},
		"project_name": {"type": "string", "description": "Name of the project (used for default files)"},
		"template": {"type": "string", "enum": ["basic", "presentation", "book", "article"], "default": "basic", "description": "Project template to use"},
		"include_examples": {"type": "boolean", "default": true, "description": "Whether to include example files and documentation"},
		"initialize_git": {"type": "boolean", "default": false, "description": "Whether to initialize a Git repository"},
		"use_compiler": {"type": "boolean", "default": false, "description": "Create the project with the compiler's own create command"}
	},
	"required": ["project_path", "project_name"]
}`)

var validateSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"source_content": {"type": "string", "description": "The Quarkdown source content to validate"},
		"strict_mode": {"type": "boolean", "default": false, "description": "Enable strict validation mode for more rigorous checking"},
		"check_functions": {"type": "boolean", "default": true, "description": "Whether to validate {{function}} syntax"},
		"check_variables": {"type": "boolean", "default": true, "description": "Whether to validate variable references"},
		"check_links": {"type": "boolean", "default": false, "description": "Whether to check the format of external links (no network access)"}
	},
	"required": ["source_content"]
}`)

var previewSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"source_content": {"type": "string", "description": "The Quarkdown source content to preview"},
		"port": {"type": "integer", "default": 8080, "minimum": 1024, "maximum": 65535, "description": "Port number for the preview server"},
		"auto_reload": {"type": "boolean", "default": true, "description": "Enable automatic reload when source content changes"},
		"theme": {"type": "string", "default": "default", "enum": ["default", "dark", "light", "academic", "minimal"], "description": "Theme for the preview interface"},
		"open_browser": {"type": "boolean", "default": false, "description": "Automatically open the preview in the default browser"}
	},
	"required": ["source_content"]
}`)

var convertBatchSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"documents": {
			"type": "array",
			"items": {
				"type": "object",
				"properties": {
					"name": {"type": "string", "description": "Document name or identifier"},
					"content": {"type": "string", "description": "Quarkdown source content"},
					"output_name": {"type": "string", "description": "Custom output filename (optional)"}
				},
				"required": ["name", "content"]
			},
			"description": "List of documents to process"
		},
		"output_format": {"type": "string", "enum": ["html", "pdf", "latex", "markdown", "tex", "md"], "default": "html", "description": "Output format for all documents"},
		"output_directory": {"type": "string", "description": "Directory to save converted files (optional, uses a temp dir if not specified)"},
		"parallel_processing": {"type": "boolean", "default": true, "description": "Enable parallel processing for faster conversion"},
		"max_workers": {"type": "integer", "default": 4, "minimum": 1, "maximum": 16, "description": "Maximum number of parallel workers"},
		"continue_on_error": {"type": "boolean", "default": true, "description": "Continue processing other documents if one fails"},
		"generate_index": {"type": "boolean", "default": false, "description": "Generate an index file listing all converted documents"},
		"common_variables": {"type": "object", "description": "Variables substituted as ${name} in every document"}
	},
	"required": ["documents"]
}`)

var stopPreviewSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"preview_id": {"type": "string", "description": "Identifier returned by preview_server"}
	},
	"required": ["preview_id"]
}`)

var compilerInfoSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"include_help": {"type": "boolean", "default": false, "description": "Include the compiler's --help output"}
	}
}`)

var emptySchema = json.RawMessage(`{"type": "object", "properties": {}}`)
