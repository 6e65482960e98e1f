package main

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"PaperCompass/internal/core"
	"PaperCompass/internal/models"
	"PaperCompass/pkg/logger"
)

const snippetRunes = 160

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7D56F4"))
	labelStyle  = lipgloss.NewStyle().Bold(true)
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F5F"))
)

var markdown *glamour.TermRenderer

func renderMarkdown(text string) string {
	if markdown == nil {
		r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(100))
		if err != nil {
			logger.Debug("markdown 渲染不可用: %v", err)
			return text
		}
		markdown = r
	}
	out, err := markdown.Render(text)
	if err != nil {
		return text
	}
	return out
}

func render(w io.Writer, resp *core.Response) {
	fmt.Fprintf(w, "%s %s    %s %s\n",
		labelStyle.Render("來源："), resp.SourceLabel,
		labelStyle.Render("關鍵字："), resp.Keywords)

	switch {
	case resp.Comparison != nil:
		renderComparison(w, resp)
	case len(resp.Papers) > 0:
		renderPapers(w, resp.Papers)
	}
	if resp.Message != "" {
		style := mutedStyle
		if resp.Comparison == nil && len(resp.Papers) == 0 && resp.Intent.IsCompare() {
			style = errorStyle
		}
		fmt.Fprintln(w, style.Render(resp.Message))
	}
}

func renderPapers(w io.Writer, papers []*models.Paper) {
	for i, p := range papers {
		fmt.Fprintf(w, "%s %s\n", headerStyle.Render(fmt.Sprintf("%d.", i+1)), p.Title)
		var meta []string
		if p.Source != "" {
			meta = append(meta, p.Source)
		}
		if len(p.Authors) > 0 {
			meta = append(meta, p.AuthorsCSV())
		}
		if p.Year != "" {
			meta = append(meta, p.Year)
		} else if !p.PublishedAt.IsZero() {
			meta = append(meta, p.PublishedAt.Format("2006-01-02"))
		}
		if p.URL != "" {
			meta = append(meta, p.URL)
		}
		if len(meta) > 0 {
			fmt.Fprintf(w, "   %s\n", mutedStyle.Render(strings.Join(meta, " · ")))
		}
		if p.HasAbstract() {
			fmt.Fprintf(w, "   %s\n", snippet(p.Abstract))
		}
	}
}

func renderComparison(w io.Writer, resp *core.Response) {
	fmt.Fprintf(w, "%s %s\n", labelStyle.Render(resp.LeftLabel+"："), resp.Left.Title)
	fmt.Fprintf(w, "%s %s\n", labelStyle.Render(resp.RightLabel+"："), resp.Right.Title)
	fmt.Fprint(w, renderMarkdown(resp.Comparison.String()))
	if !resp.Comparison.Generated {
		fmt.Fprintln(w, mutedStyle.Render("（比較內容由備用模板生成）"))
	}
}

func snippet(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) <= snippetRunes {
		return s
	}
	return string([]rune(s)[:snippetRunes]) + "…"
}
