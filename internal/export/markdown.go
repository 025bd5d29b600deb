package export

import (
	"fmt"
	"io"
	"strings"

	"smart-journal-go/internal/model"
)

// MarkdownExporter exports documents as a readable Markdown journal
type MarkdownExporter struct{}

func (e *MarkdownExporter) Export(doc *Document, w io.Writer) error {
	if _, err := fmt.Fprintf(w, "# Journal of %s\n\n", doc.Owner); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(w, "**Exported:** %s  \n", doc.ExportedAt.Format("2006-01-02 15:04 MST"))
	_, _ = fmt.Fprintf(w, "**Entries:** %d\n\n", len(doc.Entries))

	for i, entry := range doc.Entries {
		_, _ = fmt.Fprintf(w, "---\n\n## %s\n\n", entry.CreatedAt.Format("Monday, January 2, 2006 15:04"))
		_, _ = fmt.Fprintf(w, "%s\n\n", quote(entry.Text))

		if entry.Mood != "" {
			_, _ = fmt.Fprintf(w, "- **Mood:** %s\n", entry.Mood)
			if len(entry.Categories) > 0 {
				_, _ = fmt.Fprintf(w, "- **Categories:** %s\n", joinCategories(entry.Categories))
			}
			if entry.Summary != "" {
				_, _ = fmt.Fprintf(w, "- **Summary:** %s\n", entry.Summary)
			}
			if entry.KeyInsight != "" {
				_, _ = fmt.Fprintf(w, "- **Key insight:** %s\n", entry.KeyInsight)
			}
			_, _ = fmt.Fprintln(w)
		}
		if i == len(doc.Entries)-1 {
			_, _ = fmt.Fprintln(w, "---")
		}
	}
	return nil
}

// quote renders entry text as a Markdown blockquote, keeping blank lines inside the quote.
func quote(text string) string {
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	for i, l := range lines {
		if l == "" {
			lines[i] = ">"
			continue
		}
		lines[i] = "> " + l
	}
	return strings.Join(lines, "\n")
}

func joinCategories(cats []model.Category) string {
	parts := make([]string, len(cats))
	for i, c := range cats {
		parts[i] = strings.ReplaceAll(string(c), "_", " ")
	}
	return strings.Join(parts, ", ")
}

func (e *MarkdownExporter) Extension() string   { return "md" }
func (e *MarkdownExporter) ContentType() string { return "text/markdown; charset=utf-8" }
