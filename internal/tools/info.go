// ABOUTME: compiler_info tool handler
// ABOUTME: Reports the compiler version, formats and configured limits

package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

type compilerInfoInput struct {
	IncludeHelp bool `json:"include_help"`
}

// CompilerInfo handles compiler_info.
func (h *handlers) CompilerInfo(ctx context.Context, input json.RawMessage) (*Result, error) {
	var in compilerInfoInput
	if err := decodeInput(input, &in); err != nil {
		return nil, err
	}

	settings := h.compiler.Settings()
	details := strings.Join([]string{
		"**Quarkdown Compiler**",
		"- **Version**: " + h.compiler.Version(ctx),
		"- **Executable**: `" + settings.ExecutablePath() + "`",
		"- **Output Formats**: " + strings.Join(h.compiler.Formats(ctx), ", "),
		fmt.Sprintf("- **Timeout**: %s", settings.Timeout()),
		"- **Temp Directory**: `" + settings.TempDir() + "`",
	}, "\n")

	blocks := []Block{textBlock(details)}
	if in.IncludeHelp {
		blocks = append(blocks, fileBlock(strings.TrimSpace(h.compiler.Help(ctx)), "quarkdown --help", "text"))
	}
	return resultOf(blocks...), nil
}
