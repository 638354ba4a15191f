// ABOUTME: preview_server, stop_preview and list_previews tool handlers
// ABOUTME: Thin rendering layer over preview.Manager

package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/2389/quarkdown-mcp/internal/preview"
)

// previewThemes are the accepted preview_server themes.
var previewThemes = []string{"default", "dark", "light", "academic", "minimal"}

type previewInput struct {
	SourceContent string `json:"source_content"`
	Port          *int   `json:"port"`
	AutoReload    *bool  `json:"auto_reload"`
	Theme         string `json:"theme"`
	OpenBrowser   bool   `json:"open_browser"`
}

func (in previewInput) validate() string {
	if strings.TrimSpace(in.SourceContent) == "" {
		return "source_content cannot be empty"
	}
	if !preview.ValidPort(intOr(in.Port, preview.DefaultPort)) {
		return "port must be between 1024 and 65535"
	}
	theme := stringOr(in.Theme, "default")
	for _, t := range previewThemes {
		if t == theme {
			return ""
		}
	}
	return "theme must be one of: " + strings.Join(previewThemes, ", ")
}

// PreviewServer handles preview_server.
func (h *handlers) PreviewServer(ctx context.Context, input json.RawMessage) (*Result, error) {
	var in previewInput
	if err := decodeInput(input, &in); err != nil {
		return nil, err
	}
	if msg := in.validate(); msg != "" {
		return errorResult(msg), nil
	}

	info, err := h.previews.Start(ctx, preview.StartRequest{
		Content:     in.SourceContent,
		Port:        intOr(in.Port, preview.DefaultPort),
		OpenBrowser: in.OpenBrowser,
		AutoReload:  boolOr(in.AutoReload, true),
		Theme:       stringOr(in.Theme, "default"),
	})
	if err != nil {
		return errorResult("Failed to start preview server: " + err.Error()), nil
	}

	port := fmt.Sprintf("%d", info.Port)
	if info.Port != info.RequestedPort {
		port += fmt.Sprintf(" (port %d was busy)", info.RequestedPort)
	}
	details := strings.Join([]string{
		"**Server Information**:",
		"- **URL**: " + info.URL,
		"- **Port**: " + port,
		"- **Preview ID**: `" + info.ID + "`",
		fmt.Sprintf("- **Process ID**: %d", info.Pid),
		"- **Auto-reload**: " + enabled(info.AutoReload),
		"- **Theme**: " + info.Theme,
		"- **Compiled output**: `" + info.OutputDir + "`",
	}, "\n")

	return resultOf(
		successBlock(fmt.Sprintf("Preview server started successfully on port %d", info.Port)),
		textBlock(details),
		textBlock(fmt.Sprintf("Stop it with `%s` using preview_id `%s`.", NameStopPreview, info.ID)),
	), nil
}

type stopPreviewInput struct {
	PreviewID string `json:"preview_id"`
}

// StopPreview handles stop_preview.
func (h *handlers) StopPreview(ctx context.Context, input json.RawMessage) (*Result, error) {
	var in stopPreviewInput
	if err := decodeInput(input, &in); err != nil {
		return nil, err
	}

	info, err := h.previews.Stop(in.PreviewID)
	switch {
	case errors.Is(err, preview.ErrNotFound):
		return errorResult(fmt.Sprintf("No preview server with id %s", in.PreviewID)), nil
	case info == nil:
		return nil, err
	case err != nil:
		// The entry is gone either way; report the stop problem alongside it.
		return resultOf(
			successBlock(fmt.Sprintf("Preview server %s removed", info.ID)),
			textBlock("⚠️ "+err.Error()),
		), nil
	}
	return resultOf(successBlock(fmt.Sprintf("Preview server %s on port %d stopped", info.ID, info.Port))), nil
}

// ListPreviews handles list_previews.
func (h *handlers) ListPreviews(ctx context.Context, _ json.RawMessage) (*Result, error) {
	infos := h.previews.List()
	if len(infos) == 0 {
		return resultOf(textBlock("No preview servers are running.")), nil
	}

	lines := make([]string, len(infos))
	for i, info := range infos {
		state := "running"
		if !info.Running {
			state = "exited"
		}
		lines[i] = fmt.Sprintf("- `%s` %s (pid %d, %s, started %s)",
			info.ID, info.URL, info.Pid, state, info.StartedAt.UTC().Format(time.RFC3339))
	}
	return resultOf(textBlock(fmt.Sprintf("**Preview Servers (%d)**:\n%s", len(infos), strings.Join(lines, "\n")))), nil
}
