package main

import (
	"errors"
	"fmt"
	"smart-journal-go/internal/model"
	"smart-journal-go/pkg/client"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62")).
			Padding(0, 1)

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212"))

	idStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("240")).
		Italic(true)

	dateStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")).
			Bold(true)

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	userMessageStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("39")).
				Bold(true)

	assistantMessageStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("135")).
				Bold(true)

	bodyStyle = lipgloss.NewStyle().
			PaddingLeft(2)
)

// moodColors 为每种心情指定颜色，未知心情使用默认色。
var moodColors = map[model.Mood]lipgloss.Color{
	model.MoodJoyful:      "42",
	model.MoodContent:     "36",
	model.MoodNeutral:     "250",
	model.MoodAnxious:     "214",
	model.MoodSad:         "63",
	model.MoodAngry:       "196",
	model.MoodFrustrated:  "166",
	model.MoodExcited:     "220",
	model.MoodGrateful:    "78",
	model.MoodOverwhelmed: "171",
}

func renderMood(m model.Mood) string {
	style := lipgloss.NewStyle().Bold(true)
	if c, ok := moodColors[m]; ok {
		style = style.Foreground(c)
	}
	return style.Render(string(m))
}

func renderCategories(cats []model.Category) string {
	names := make([]string, len(cats))
	for i, c := range cats {
		names[i] = strings.ReplaceAll(string(c), "_", " ")
	}
	return strings.Join(names, ", ")
}

// renderAnalysis 渲染一条分析结果，每个字段一行。
func renderAnalysis(a *model.Analysis) string {
	if a == nil {
		return warnStyle.Render("  (no analysis)")
	}
	var b strings.Builder
	fmt.Fprintf(&b, "  %s %s\n", labelStyle.Render("Mood:"), renderMood(a.Mood))
	if len(a.Categories) > 0 {
		fmt.Fprintf(&b, "  %s %s\n", labelStyle.Render("Categories:"), renderCategories(a.Categories))
	}
	fmt.Fprintf(&b, "  %s %s\n", labelStyle.Render("Summary:"), a.Summary)
	if a.KeyInsight != "" {
		fmt.Fprintf(&b, "  %s %s", labelStyle.Render("Key insight:"), a.KeyInsight)
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderEntry(e model.JournalEntry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s  %s\n", titleStyle.Render(e.CreatedAt.Local().Format("Mon Jan 2, 2006 15:04")), idStyle.Render(e.ID))
	b.WriteString(bodyStyle.Render(e.Entry))
	b.WriteString("\n")
	if e.Analysis == nil {
		b.WriteString(renderAnalysis(nil))
		return b.String()
	}
	a := e.Analysis.ToAnalysis()
	b.WriteString(renderAnalysis(&a))
	return b.String()
}

// describeError 把客户端错误转换为面向用户的提示。
func describeError(err error) string {
	var apiErr *client.APIError
	switch {
	case errors.Is(err, client.ErrUnauthenticated):
		return "not logged in, run `journal auth login` first"
	case errors.Is(err, client.ErrSessionExpired):
		return "your session has expired, run `journal auth login` again"
	case errors.As(err, &apiErr):
		return fmt.Sprintf("%s (HTTP %d)", apiErr.Message, apiErr.Status)
	default:
		return err.Error()
	}
}
