package handlers

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/imamik/clusterscaler/internal/autoscaler"
	"github.com/imamik/clusterscaler/internal/state"
)

var (
	colorGreen  = lipgloss.Color("#22c55e")
	colorYellow = lipgloss.Color("#eab308")
	colorRed    = lipgloss.Color("#ef4444")
	colorBlue   = lipgloss.Color("#3b82f6")
	colorDim    = lipgloss.Color("#6b7280")
	colorWhite  = lipgloss.Color("#f9fafb")
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorWhite)

	sectionStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorBlue)

	dimStyle = lipgloss.NewStyle().
			Foreground(colorDim)

	greenStyle = lipgloss.NewStyle().
			Foreground(colorGreen)

	yellowStyle = lipgloss.NewStyle().
			Foreground(colorYellow)

	redStyle = lipgloss.NewStyle().
			Foreground(colorRed)
)

// painter applies styles only when rendering for a terminal.
type painter bool

func (p painter) paint(s lipgloss.Style, text string) string {
	if !p {
		return text
	}
	return s.Render(text)
}

// renderSummary produces the status view of a running daemon.
func renderSummary(s autoscaler.Summary, styled bool) string {
	p := painter(styled)
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString(p.paint(titleStyle, fmt.Sprintf("  clusterscaler: %s (%s)", s.Cluster, s.Provider)))
	b.WriteString("\n")
	b.WriteString(p.paint(dimStyle, "  "+strings.Repeat("═", 40)))
	b.WriteString("\n")

	lastTick := "never"
	if !s.LastTick.IsZero() {
		lastTick = s.LastTick.Format(time.RFC3339)
	}
	fmt.Fprintf(&b, "  Last tick:  %s\n", lastTick)
	if s.ConsecutiveFailures > 0 {
		b.WriteString(p.paint(redStyle, fmt.Sprintf("  Failed ticks in a row: %d", s.ConsecutiveFailures)))
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "  Workflows:  %d running, %d queued\n", s.Running, s.Queued)

	b.WriteString("\n")
	b.WriteString(p.paint(sectionStyle, "  Node Types"))
	b.WriteString("\n")
	header := fmt.Sprintf("  %-16s %5s %5s %5s %6s %7s %4s %5s %4s %4s %5s",
		"TYPE", "MIN", "MAX", "FLOOR", "TARGET", "PENDING", "UP", "IDLE", "PROV", "LNCH", "TERM")
	b.WriteString(p.paint(dimStyle, header))
	b.WriteString("\n")
	for _, t := range s.Types {
		name := t.Name
		if t.Head {
			name += " (head)"
		}
		line := fmt.Sprintf("  %-16s %5d %5d %5d %6d %7d %4d %5d %4d %4d %5d",
			name, t.Min, t.Max, t.Floor, t.Target, t.Pending,
			t.Counts[state.StatusUp], t.Counts[state.StatusIdle], t.Counts[state.StatusProvisioning],
			t.Counts[state.StatusPending], t.Counts[state.StatusTerminating])
		b.WriteString(p.paint(typeStyle(t), line))
		b.WriteString("\n")
	}

	if len(s.LastDecision.Pending) > 0 || len(s.LastDecision.Infeasible) > 0 {
		b.WriteString("\n")
		b.WriteString(p.paint(sectionStyle, "  Unsatisfied Demand"))
		b.WriteString("\n")
		for _, d := range s.LastDecision.Pending {
			b.WriteString(p.paint(yellowStyle, fmt.Sprintf("  pending     %dx %s", d.Count, d.Resources.String())))
			b.WriteString("\n")
		}
		for _, d := range s.LastDecision.Infeasible {
			b.WriteString(p.paint(redStyle, fmt.Sprintf("  infeasible  %dx %s", d.Count, d.Resources.String())))
			b.WriteString("\n")
		}
	}

	if len(s.Failures) > 0 {
		b.WriteString("\n")
		b.WriteString(p.paint(sectionStyle, "  Recent Failures"))
		b.WriteString("\n")
		for _, f := range s.Failures {
			node := f.NodeID
			if node == "" {
				node = "-"
			}
			b.WriteString(p.paint(redStyle, fmt.Sprintf("  %s %-16s %-12s %-10s %s",
				f.At.Format(time.RFC3339), f.NodeType, node, f.Step, f.Error)))
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	return b.String()
}

// typeStyle colours a node type row by how far it is from its target.
func typeStyle(t autoscaler.TypeSummary) lipgloss.Style {
	serving := t.Counts[state.StatusUp] + t.Counts[state.StatusIdle]
	switch {
	case serving < t.Floor:
		return redStyle
	case serving < t.Target || t.Pending > 0:
		return yellowStyle
	default:
		return greenStyle
	}
}

// renderDecision produces the output of a single tick.
func renderDecision(cluster string, d autoscaler.Decision, styled bool) string {
	p := painter(styled)
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString(p.paint(titleStyle, fmt.Sprintf("  clusterscaler once: %s", cluster)))
	b.WriteString("\n")

	if d.Empty() {
		b.WriteString(p.paint(greenStyle, "  Cluster is at its target, nothing to do"))
		b.WriteString("\n")
	}
	for _, a := range d.Actions {
		switch a.Kind {
		case autoscaler.ActionLaunch:
			b.WriteString(p.paint(greenStyle, fmt.Sprintf("  + launch    %-16s x%d", a.NodeType, a.Count)))
		case autoscaler.ActionTerminate:
			b.WriteString(p.paint(redStyle, fmt.Sprintf("  - terminate %-16s %s (%s)", a.NodeType, a.NodeID, a.Reason)))
		}
		b.WriteString("\n")
	}
	if d.Throttled {
		b.WriteString(p.paint(yellowStyle, "  Upscaling throttled by upscaling_speed"))
		b.WriteString("\n")
	}
	for _, dem := range d.Infeasible {
		b.WriteString(p.paint(redStyle, fmt.Sprintf("  Infeasible demand: %dx %s", dem.Count, dem.Resources.String())))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	return b.String()
}
