package main

import (
	"fmt"
	"strings"

	"github.com/Axemt/que/index"
	"github.com/charmbracelet/lipgloss"
)

var (
	sourceStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	scoreStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	snippetStyle = lipgloss.NewStyle().PaddingLeft(2)
	emptyStyle   = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("8"))
)

func renderResults(results []index.Result) string {
	if len(results) == 0 {
		return emptyStyle.Render("no matching documents")
	}

	blocks := make([]string, 0, len(results))
	for _, r := range results {
		header := sourceStyle.Render(r.Source) + " " + scoreStyle.Render(fmt.Sprintf("(%.3f)", r.Score))
		blocks = append(blocks, header+"\n"+snippetStyle.Render(r.Text))
	}

	return strings.Join(blocks, "\n\n")
}
