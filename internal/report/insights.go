package report

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/joshsymonds/warlens/internal/models"
	"github.com/joshsymonds/warlens/pkg/logger"
)

// severityOrder lists the known severities from most to least urgent.
var severityOrder = []string{"Critical", "High", "Medium", "Low", "Informational", "Info"}

// Insights renders a styled terminal summary of a combined report.
type Insights struct {
	logger  logger.Logger
	title   lipgloss.Style
	heading lipgloss.Style
	label   lipgloss.Style
	value   lipgloss.Style
	muted   lipgloss.Style
}

// NewInsights creates the terminal renderer.
func NewInsights(log logger.Logger) *Insights {
	return &Insights{
		logger: log,
		title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86")).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			BorderForeground(lipgloss.Color("240")),
		heading: lipgloss.NewStyle().Bold(true).MarginTop(1),
		label:   lipgloss.NewStyle().Width(40),
		value:   lipgloss.NewStyle().Bold(true).Align(lipgloss.Right).Width(8),
		muted:   lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
	}
}

// Name implements Format.
func (i *Insights) Name() string { return "insights" }

// Description implements Format.
func (i *Insights) Description() string {
	return "Terminal summary of totals, pillars, severities and check titles"
}

// Render implements Format.
func (i *Insights) Render(w io.Writer, r *models.CombinedReport) error {
	var sb strings.Builder

	sb.WriteString(i.title.Render("Summary Insights Across All Files"))
	sb.WriteString("\n")
	sb.WriteString(i.row("Files analyzed", r.FileCount))
	sb.WriteString(i.row("Total findings analyzed", r.TotalFindings))
	sb.WriteString(i.row("Total failed findings", r.TotalFailedFindings))

	sb.WriteString(i.heading.Render("Failed findings by pillar"))
	sb.WriteString("\n")
	for _, kv := range byCountDesc(r.PillarCounts) {
		sb.WriteString(i.row(kv.key, kv.count))
	}

	sb.WriteString(i.heading.Render("Failed findings by severity"))
	sb.WriteString("\n")
	for _, kv := range byCountDesc(r.SeverityCounts) {
		sb.WriteString(i.row(severityStyle(kv.key).Render(kv.key), kv.count))
	}

	sb.WriteString(i.heading.Render("Check titles grouped by severity"))
	sb.WriteString("\n")
	for _, severity := range orderedSeverities(r.CheckTitleCounts) {
		sb.WriteString(severityStyle(severity).Render(severity))
		sb.WriteString("\n")
		for _, kv := range byCountDesc(r.CheckTitleCounts[severity]) {
			name := kv.key
			if id, ok := r.CheckIDs[kv.key]; ok {
				name = fmt.Sprintf("%s %s", i.muted.Render(fmt.Sprintf("#%d", id)), kv.key)
			}
			sb.WriteString(i.row("  "+name, kv.count))
		}
	}

	sb.WriteString(i.muted.Render(fmt.Sprintf("Severity grouping: %s", r.SeverityPolicy)))
	sb.WriteString("\n")

	_, err := io.WriteString(w, sb.String())
	return err
}

func (i *Insights) row(label string, n int) string {
	return lipgloss.JoinHorizontal(lipgloss.Top, i.label.Render(label), i.value.Render(fmt.Sprint(n))) + "\n"
}

// severityStyle returns the badge style for a severity level.
func severityStyle(severity string) lipgloss.Style {
	base := lipgloss.NewStyle().
		Bold(true).
		Padding(0, 1)

	switch strings.ToUpper(severity) {
	case "CRITICAL":
		return base.Background(lipgloss.Color("197")).Foreground(lipgloss.Color("15"))
	case "HIGH":
		return base.Background(lipgloss.Color("208")).Foreground(lipgloss.Color("15"))
	case "MEDIUM":
		return base.Background(lipgloss.Color("214")).Foreground(lipgloss.Color("15"))
	case "LOW":
		return base.Background(lipgloss.Color("148")).Foreground(lipgloss.Color("15"))
	default:
		return base.Background(lipgloss.Color("240")).Foreground(lipgloss.Color("15"))
	}
}

type keyCount struct {
	key   string
	count int
}

// byCountDesc sorts by count, highest first, then by key.
func byCountDesc(m map[string]int) []keyCount {
	out := make([]keyCount, 0, len(m))
	for k, v := range m {
		out = append(out, keyCount{key: k, count: v})
	}
	sort.Slice(out, func(a, b int) bool {
		if out[a].count != out[b].count {
			return out[a].count > out[b].count
		}
		return out[a].key < out[b].key
	})
	return out
}

// orderedSeverities returns known severities first, most urgent first,
// followed by any other labels alphabetically.
func orderedSeverities(groups map[string]map[string]int) []string {
	rank := make(map[string]int, len(severityOrder))
	for i, s := range severityOrder {
		rank[s] = i
	}

	out := make([]string, 0, len(groups))
	for s := range groups {
		out = append(out, s)
	}
	sort.Slice(out, func(a, b int) bool {
		ra, okA := rank[out[a]]
		rb, okB := rank[out[b]]
		switch {
		case okA && okB:
			return ra < rb
		case okA != okB:
			return okA
		default:
			return out[a] < out[b]
		}
	})
	return out
}

// RenderInsights writes the terminal summary of report to w.
func RenderInsights(w io.Writer, report *models.CombinedReport) error {
	return NewInsights(logger.GetGlobalLogger()).Render(w, report)
}
