package main

import (
	"fmt"
	"strings"

	"github.com/LucaPlaster/MyGeoEyes/pkg/types"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7571f9"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#42c767"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#ff9f43"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#ff6b6b"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#6c757d"))
)

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("#00d2d3"))).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return lipgloss.NewStyle().
					Foreground(lipgloss.Color("#ffffff")).
					Bold(true).
					Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		}).
		Headers(headers...)
}

func renderSection(title string, t *table.Table) string {
	return lipgloss.NewStyle().
		MarginBottom(1).
		Render(titleStyle.Render(title) + "\n" + t.Render())
}

func eventStyle(event types.EventType) lipgloss.Style {
	switch event {
	case types.EventObjectAdded:
		return successStyle
	case types.EventObjectDeleted:
		return warningStyle
	default:
		return mutedStyle
	}
}

// renderReplicas summarises per-part replica counts, coloring parts below
// the replication factor.
func renderReplicas(replicas []int, factor int) string {
	counts := make([]string, len(replicas))
	for i, n := range replicas {
		text := fmt.Sprintf("%d", n)
		switch {
		case n == 0:
			counts[i] = errorStyle.Render(text)
		case n < factor:
			counts[i] = warningStyle.Render(text)
		default:
			counts[i] = successStyle.Render(text)
		}
	}
	return strings.Join(counts, " ")
}
