package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/san-kum/dynopt/internal/objective"
	"github.com/san-kum/dynopt/internal/params"
	"github.com/san-kum/dynopt/internal/storage"
	"github.com/san-kum/dynopt/internal/tool"
)

var (
	panelStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240")).Padding(0, 1)
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("86")).Bold(true)
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(14)
	valueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
)

type panel struct {
	lines []string
}

func (p *panel) header(s string) {
	p.lines = append(p.lines, headerStyle.Render(s))
}

func (p *panel) row(label string, format string, args ...any) {
	p.lines = append(p.lines, labelStyle.Render(label)+valueStyle.Render(fmt.Sprintf(format, args...)))
}

func (p *panel) rowStyled(label string, value string) {
	p.lines = append(p.lines, labelStyle.Render(label)+value)
}

func (p *panel) blank() { p.lines = append(p.lines, "") }

func (p *panel) values(set params.ValueSet) {
	for _, e := range set.Entries() {
		p.row("  "+e.Name, "%.8g", e.Value)
	}
}

func (p *panel) terms(terms []objective.Term) {
	for _, term := range terms {
		p.row("  "+term.Name, "%.8g (%s, weighted %.6g)", term.Raw, term.Sense, term.Weighted)
	}
}

func (p *panel) String() string {
	return panelStyle.Render(strings.Join(p.lines, "\n"))
}

func status(converged bool, s string) string {
	if converged {
		return okStyle.Render(s)
	}
	return errorStyle.Render(s)
}

func renderReport(rep *tool.RunReport) string {
	var p panel
	p.header(rep.Tool)
	if rep.Solver != nil {
		p.row("method", "%s", rep.Solver.Method)
		p.rowStyled("status", status(rep.Solver.Converged, rep.Solver.Status))
		if rep.Solver.Reason != "" {
			p.row("reason", "%s", rep.Solver.Reason)
		}
		p.row("iterations", "%d", rep.Solver.Iterations)
		p.row("evaluations", "%d", rep.Solver.Evaluations)
		p.row("runtime", "%s", rep.Solver.Runtime)
	}
	p.row("objective", "%.8g", rep.Objective)
	if rep.Solution.Len() > 0 {
		p.blank()
		p.header("solution")
		p.values(rep.Solution)
	}
	if len(rep.Terms) > 0 {
		p.blank()
		p.header("objectives")
		p.terms(rep.Terms)
	}
	if rep.Trajectory != nil {
		p.blank()
		p.row("sim time", "%.4g", rep.Trajectory.Duration())
		if rep.Trajectory.Event != "" {
			p.row("stopped by", "%s", rep.Trajectory.Event)
		}
	}
	return p.String()
}

func renderEvaluation(name string, ev *tool.Evaluation) string {
	var p panel
	p.header(name)
	p.values(ev.Values)
	p.blank()
	p.row("objective", "%.8g", ev.Objective)
	if ev.Penalized {
		p.rowStyled("penalized", errorStyle.Render(ev.Err.Error()))
	}
	p.terms(ev.Terms)
	if ev.Trajectory != nil {
		p.row("steps", "%d", ev.Trajectory.StepsTaken)
		p.row("sim time", "%.4g", ev.Trajectory.Duration())
		if ev.Trajectory.Event != "" {
			p.row("stopped by", "%s", ev.Trajectory.Event)
		}
		if x, _, err := ev.Trajectory.Final(); err == nil {
			p.row("final state", "%.6g", []float64(x))
		}
	}
	return p.String()
}

func renderMetadata(meta *storage.RunMetadata, solution params.ValueSet) string {
	var p panel
	p.header(meta.ID)
	p.row("setup", "%s", meta.Name)
	p.row("model", "%s", meta.Model)
	p.row("time", "%s", meta.Timestamp.Format("2006-01-02 15:04:05"))
	p.row("method", "%s", meta.Method)
	p.rowStyled("status", status(meta.Converged, meta.Status))
	p.row("iterations", "%d", meta.Iterations)
	p.row("evaluations", "%d", meta.Evaluations)
	p.row("objective", "%.8g", meta.Objective)
	p.blank()
	p.header("solution")
	p.values(solution)
	return p.String()
}
