// ABOUTME: convert_batch tool handler
// ABOUTME: Runs the batch engine, records a summary and renders per-document results

package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/2389/quarkdown-mcp/internal/batch"
	"github.com/2389/quarkdown-mcp/internal/store"
)

type convertBatchInput struct {
	Documents          []batch.Document `json:"documents"`
	OutputFormat       string           `json:"output_format"`
	OutputDirectory    string           `json:"output_directory"`
	ParallelProcessing *bool            `json:"parallel_processing"`
	MaxWorkers         *int             `json:"max_workers"`
	ContinueOnError    *bool            `json:"continue_on_error"`
	GenerateIndex      bool             `json:"generate_index"`
	CommonVariables    map[string]any   `json:"common_variables"`
}

// variables renders every common variable value as text.
func (in convertBatchInput) variables() map[string]string {
	if len(in.CommonVariables) == 0 {
		return nil
	}
	vars := make(map[string]string, len(in.CommonVariables))
	for k, v := range in.CommonVariables {
		switch val := v.(type) {
		case string:
			vars[k] = val
		case nil:
			vars[k] = ""
		default:
			vars[k] = fmt.Sprint(val)
		}
	}
	return vars
}

// ConvertBatch handles convert_batch.
func (h *handlers) ConvertBatch(ctx context.Context, input json.RawMessage) (*Result, error) {
	var in convertBatchInput
	if err := decodeInput(input, &in); err != nil {
		return nil, err
	}
	if len(in.Documents) == 0 {
		return errorResult("No documents provided for batch conversion"), nil
	}

	out := h.engine.Convert(ctx, batch.Request{
		Documents:       in.Documents,
		Format:          stringOr(in.OutputFormat, "html"),
		Variables:       in.variables(),
		OutputDir:       in.OutputDirectory,
		Parallel:        boolOr(in.ParallelProcessing, true),
		MaxWorkers:      intOr(in.MaxWorkers, h.maxWorkers),
		ContinueOnError: boolOr(in.ContinueOnError, true),
		GenerateIndex:   in.GenerateIndex,
	})
	h.recordBatch(ctx, out)

	if out.Err != nil {
		return errorResult("Batch conversion error: " + out.Err.Error()), nil
	}
	return renderOutcome(out), nil
}

func (h *handlers) recordBatch(ctx context.Context, out *batch.Outcome) {
	if h.store == nil {
		return
	}
	run := &store.BatchRun{
		ID:         out.ID,
		Format:     out.Format,
		OutputDir:  out.OutputDir,
		Total:      out.Total(),
		Succeeded:  out.SuccessCount(),
		Failed:     out.FailedCount(),
		Parallel:   out.Parallel,
		MaxWorkers: out.MaxWorkers,
		IndexFile:  out.IndexFile,
		Elapsed:    out.Elapsed,
		StartedAt:  out.StartedAt,
	}
	if out.Err != nil {
		run.Error = out.Err.Error()
	}
	if err := h.store.RecordBatch(context.WithoutCancel(ctx), run); err != nil {
		h.logger.Warn("failed to record batch", "batch_id", out.ID, "error", err)
	}
}

func renderOutcome(out *batch.Outcome) *Result {
	stats := out.Stats()

	summary := []string{
		"**Batch Conversion Summary**",
		fmt.Sprintf("- **Total Documents**: %d", stats.Total),
		fmt.Sprintf("- **Successful**: %d", stats.Succeeded),
		fmt.Sprintf("- **Failed**: %d", stats.Failed),
	}
	if stats.Skipped > 0 {
		summary = append(summary, fmt.Sprintf("- **Not Attempted**: %d", stats.Skipped))
	}
	summary = append(summary,
		"- **Success Rate**: "+stats.SuccessRate.Format(1, "%"),
		fmt.Sprintf("- **Time Taken**: %.2f seconds", stats.Elapsed.Seconds()),
		"- **Average Time per Document**: "+stats.AvgPerDocument.Format(2, " seconds"),
	)
	blocks := []Block{textBlock(strings.Join(summary, "\n"))}

	if ok := out.Successful(); len(ok) > 0 {
		lines := make([]string, len(ok))
		for i, r := range ok {
			lines[i] = fmt.Sprintf("✅ **%s** → %s (%s)", r.Name, r.OutputFile, batch.SizeKB(r.Size))
		}
		blocks = append(blocks, successBlock(fmt.Sprintf("**Successful Conversions (%d)**\n%s", len(ok), strings.Join(lines, "\n"))))
	}
	if failed := out.Failed(); len(failed) > 0 {
		lines := make([]string, len(failed))
		for i, r := range failed {
			lines[i] = fmt.Sprintf("❌ **%s**: %s", r.Name, r.Error)
		}
		blocks = append(blocks, errorBlock(fmt.Sprintf("**Failed Conversions (%d)**\n%s", len(failed), strings.Join(lines, "\n"))))
	}

	created := stats.Succeeded
	if out.IndexFile != "" {
		created++
	}
	blocks = append(blocks, textBlock(fmt.Sprintf("**Output Directory**: %s\n**Total Files Created**: %d", out.OutputDir, created)))

	if out.IndexFile != "" {
		blocks = append(blocks, textBlock(fmt.Sprintf("**Index File**: %s\nOpen this file to navigate between all converted documents.", out.IndexFile)))
	}

	mode := "Sequential"
	if out.Parallel {
		mode = fmt.Sprintf("Parallel (max %d workers)", out.MaxWorkers)
	}
	perf := []string{
		"**Performance Statistics**",
		"- **Processing Mode**: " + mode,
		fmt.Sprintf("- **Total Output Size**: %.2f MB", stats.TotalMB),
		"- **Processing Speed**: " + stats.MBPerSecond.Format(2, " MB/s"),
		"- **Documents per Second**: " + stats.DocsPerSecond.Format(2, ""),
	}
	blocks = append(blocks, textBlock(strings.Join(perf, "\n")))

	return resultOf(blocks...)
}
