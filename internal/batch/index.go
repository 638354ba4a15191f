// ABOUTME: Index artifact listing the successful outputs of a batch
// ABOUTME: Markdown for non-HTML batches, goldmark-rendered HTML page for HTML batches

package batch

import (
	"bytes"
	"fmt"
	"html/template"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/yuin/goldmark"
)

const indexTitle = "Quarkdown Batch Conversion Index"

var indexPage = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>{{.Title}}</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 40px; }
        h1 { color: #333; }
        li { margin: 10px 0; }
        a { text-decoration: none; color: #0066cc; font-weight: bold; }
        a:hover { text-decoration: underline; }
        .generated { color: #666; font-size: 0.9em; }
    </style>
</head>
<body>
    <h1>{{.Title}}</h1>
    <p class="generated">Generated on {{.Generated}}</p>
    {{.Body}}
</body>
</html>
`))

func indexName(format string) string {
	if format == "html" {
		return "index.html"
	}
	return "index.md"
}

// SizeKB formats a byte count as kilobytes with one decimal.
func SizeKB(size int64) string {
	return fmt.Sprintf("%.1f KB", float64(size)/1024)
}

var markdownEscaper = strings.NewReplacer(`\`, `\\`, `[`, `\[`, `]`, `\]`, `*`, `\*`, `_`, `\_`, "`", "\\`")

// indexList renders one Markdown bullet per result: display name, link
// relative to the output directory and size.
func indexList(results []Result, dir string) string {
	var b strings.Builder
	for _, r := range results {
		rel, err := filepath.Rel(dir, r.OutputFile)
		if err != nil {
			rel = filepath.Base(r.OutputFile)
		}
		link := (&url.URL{Path: filepath.ToSlash(rel)}).EscapedPath()
		fmt.Fprintf(&b, "- [%s](%s) (%s)\n", markdownEscaper.Replace(r.Name), link, SizeKB(r.Size))
	}
	return b.String()
}

// renderIndex returns the index artifact content for format.
func renderIndex(format, dir string, results []Result, generated time.Time) ([]byte, error) {
	list := indexList(results, dir)
	stamp := generated.UTC().Format(time.RFC3339)

	if format != "html" {
		md := fmt.Sprintf("# %s\n\nGenerated on %s\n\n## Converted Documents\n\n%s", indexTitle, stamp, list)
		return []byte(md), nil
	}

	var body bytes.Buffer
	if err := goldmark.Convert([]byte(list), &body); err != nil {
		return nil, fmt.Errorf("rendering index list: %w", err)
	}
	var page bytes.Buffer
	err := indexPage.Execute(&page, struct {
		Title     string
		Generated string
		Body      template.HTML
	}{
		Title:     indexTitle,
		Generated: stamp,
		Body:      template.HTML(body.String()),
	})
	if err != nil {
		return nil, fmt.Errorf("rendering index page: %w", err)
	}
	return page.Bytes(), nil
}

// writeIndex writes the index artifact into dir and returns its path.
func writeIndex(dir, format string, results []Result, generated time.Time) (string, error) {
	data, err := renderIndex(format, dir, results, generated)
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, indexName(format))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing index: %w", err)
	}
	return path, nil
}
