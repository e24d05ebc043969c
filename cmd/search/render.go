package main

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/meghashyamc/driveindex/client"
	"github.com/meghashyamc/driveindex/display"
	"github.com/meghashyamc/driveindex/services/query"
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("12")).
			Bold(true)

	hintStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("8"))

	progressStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("11"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9"))

	pathStyle = lipgloss.NewStyle().
			Bold(true)

	detailStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("7")).
			PaddingLeft(2)
)

func renderProgress(view client.View) string {
	switch {
	case view.IsIndexing && view.HasStatus:
		return progressStyle.Render(fmt.Sprintf("Indexing in progress... drive: %s, files found: %d", view.Status.CurrentDrive, view.Status.TotalFiles))
	case view.IsIndexing:
		return progressStyle.Render("Waiting for indexing to complete...")
	default:
		return hintStyle.Render(fmt.Sprintf("%d files indexed", view.IndexedFiles))
	}
}

func renderResults(w io.Writer, view client.View) {
	header := fmt.Sprintf("Results (%d)", len(view.Results))
	if view.Truncated {
		header += fmt.Sprintf(" (limited to the first %d results)", query.MaxResults)
	}
	fmt.Fprintln(w, titleStyle.Render(header))

	for _, record := range view.Results {
		fmt.Fprintln(w, pathStyle.Render(record.Path))
		fmt.Fprintln(w, detailStyle.Render(fmt.Sprintf("Extension: %s  Size: %s  Modified: %s",
			display.FormatExtension(record.Extension),
			display.FormatSize(record.Size),
			display.FormatTime(record.LastModified))))
	}
}
