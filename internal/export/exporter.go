// Package export renders a user's journal entries as downloadable documents.
package export

import (
	"fmt"
	"io"
	"smart-journal-go/internal/model"
	"time"
)

// Document is the format-independent export payload.
type Document struct {
	Owner      string    `json:"owner" yaml:"owner"`
	ExportedAt time.Time `json:"exported_at" yaml:"exported_at"`
	Entries    []Entry   `json:"entries" yaml:"entries"`
}

// Entry is one journal entry with its optional analysis flattened in.
type Entry struct {
	ID         string           `json:"id" yaml:"id"`
	CreatedAt  time.Time        `json:"created_at" yaml:"created_at"`
	Text       string           `json:"text" yaml:"text"`
	Mood       model.Mood       `json:"mood,omitempty" yaml:"mood,omitempty"`
	Summary    string           `json:"summary,omitempty" yaml:"summary,omitempty"`
	Categories []model.Category `json:"categories,omitempty" yaml:"categories,omitempty"`
	KeyInsight string           `json:"key_insight,omitempty" yaml:"key_insight,omitempty"`
}

// NewDocument builds a Document from stored entries.
func NewDocument(owner string, entries []model.JournalEntry, now time.Time) *Document {
	doc := &Document{Owner: owner, ExportedAt: now.UTC(), Entries: make([]Entry, 0, len(entries))}
	for _, e := range entries {
		item := Entry{ID: e.ID, CreatedAt: e.CreatedAt.UTC(), Text: e.Entry}
		if e.Analysis != nil {
			a := e.Analysis.ToAnalysis()
			item.Mood = a.Mood
			item.Summary = a.Summary
			item.Categories = a.Categories
			item.KeyInsight = a.KeyInsight
		}
		doc.Entries = append(doc.Entries, item)
	}
	return doc
}

// Exporter defines the interface for all export formats
type Exporter interface {
	Export(doc *Document, w io.Writer) error
	Extension() string
	ContentType() string
}

// NewExporter creates a new exporter based on format
func NewExporter(format string) (Exporter, error) {
	switch format {
	case "json", "":
		return &JSONExporter{}, nil
	case "md", "markdown":
		return &MarkdownExporter{}, nil
	case "yaml", "yml":
		return &YAMLExporter{}, nil
	default:
		return nil, fmt.Errorf("unsupported format: %s (supported: json, markdown, yaml)", format)
	}
}
