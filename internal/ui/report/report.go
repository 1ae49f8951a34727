// Package report prints run reports as a table or as JSON.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"go.trai.ch/orca/internal/core/domain"
	"go.trai.ch/orca/internal/ui/output"
	"go.trai.ch/orca/internal/ui/style"
)

// Result labels shown in the table.
const (
	ResultExecuted = "executed"
	ResultCached   = "cached"
	ResultFailed   = "failed"
	ResultUpstream = "upstream"
)

var header = []string{"NODE", "STATE", "RESULT", "DURATION", "OUTPUTS"}

// Printer writes reports to w.
type Printer struct {
	w        io.Writer
	renderer *lipgloss.Renderer
}

// NewPrinter creates a Printer bound to w.
func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w, renderer: output.Renderer(w)}
}

// JSON writes rep as indented JSON.
func (p *Printer) JSON(rep *domain.RunReport) error {
	enc := json.NewEncoder(p.w)
	enc.SetIndent("", "  ")
	return enc.Encode(rep)
}

// Table writes rep as an aligned table followed by a summary line and the
// cause of every aborted node.
func (p *Printer) Table(rep *domain.RunReport) error {
	var b strings.Builder

	title := p.renderer.NewStyle().Bold(true).Foreground(style.Iris)
	fmt.Fprintf(&b, "%s %s (%s)\n", title.Render(displayName(rep)), rep.Pipeline.Short(), rep.RunID)

	rows := make([][]string, 0, len(rep.Nodes))
	for _, n := range rep.Nodes {
		rows = append(rows, []string{n.Name, string(n.State), Result(n), formatDuration(n.Duration), formatOutputs(n.Outputs)})
	}
	p.writeRows(&b, rows)

	fmt.Fprintf(&b, "%d node(s): %d executed, %d cached, %d aborted\n",
		len(rep.Nodes), len(rep.Executions()), len(rep.CacheHits()), len(rep.Aborted()))

	cross := p.renderer.NewStyle().Foreground(style.Red).Render(style.Cross)
	for _, n := range rep.Nodes {
		if n.State != domain.StateAborted {
			continue
		}
		line := fmt.Sprintf("%s %s: %s", cross, n.Name, n.Cause)
		if n.RootCause != "" && n.RootCause != n.Name {
			line += fmt.Sprintf(" (root cause: %s)", n.RootCause)
		}
		b.WriteString(line + "\n")
	}

	_, err := io.WriteString(p.w, b.String())
	return err
}

func (p *Printer) writeRows(b *strings.Builder, rows [][]string) {
	widths := make([]int, len(header))
	for _, row := range append([][]string{header}, rows...) {
		for i, cell := range row {
			widths[i] = max(widths[i], lipgloss.Width(cell))
		}
	}

	bold := p.renderer.NewStyle().Bold(true)
	writeRow := func(row []string, render func(string) string) {
		for i, cell := range row {
			if i == len(row)-1 {
				b.WriteString(render(cell) + "\n")
				break
			}
			b.WriteString(render(cell) + strings.Repeat(" ", widths[i]-lipgloss.Width(cell)+2))
		}
	}

	writeRow(header, func(s string) string { return bold.Render(s) })
	for _, row := range rows {
		writeRow(row, func(s string) string { return p.cell(s) })
	}
}

func (p *Printer) cell(s string) string {
	switch s {
	case ResultExecuted:
		return p.renderer.NewStyle().Foreground(style.Green).Render(s)
	case ResultCached:
		return p.renderer.NewStyle().Foreground(style.Slate).Render(s)
	case ResultFailed, ResultUpstream:
		return p.renderer.NewStyle().Foreground(style.Red).Render(s)
	default:
		return s
	}
}

// Result classifies how a node ended.
func Result(n domain.NodeReport) string {
	switch {
	case n.State == domain.StateAborted && n.RootCause != "" && n.RootCause != n.Name:
		return ResultUpstream
	case n.State == domain.StateAborted:
		return ResultFailed
	case n.CacheHit:
		return ResultCached
	default:
		return ResultExecuted
	}
}

func displayName(rep *domain.RunReport) string {
	if rep.Name != "" {
		return rep.Name
	}
	return "pipeline"
}

func formatDuration(d time.Duration) string {
	return d.Round(time.Millisecond).String()
}

func formatOutputs(outputs map[string]domain.ArtifactRef) string {
	if len(outputs) == 0 {
		return "-"
	}
	parts := make([]string, 0, len(outputs))
	for _, slot := range slices.Sorted(maps.Keys(outputs)) {
		parts = append(parts, slot+"="+outputs[slot].Digest.Short())
	}
	return strings.Join(parts, ",")
}
