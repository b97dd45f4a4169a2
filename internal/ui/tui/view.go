package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// styleFunc is a single-string styling function.
type styleFunc func(string) string

// sf wraps a lipgloss.Style into a styleFunc.
func sf(s lipgloss.Style) styleFunc {
	return func(str string) string { return s.Render(str) }
}

func renderView(m Model) string {
	var b strings.Builder

	renderHeader(&b, m)
	renderProgressBar(&b, m)
	renderPhases(&b, m)
	renderResources(&b, m)

	if m.ArtifactTotal > 0 {
		renderArtifacts(&b, m)
	}
	if len(m.Probes) > 0 {
		renderProbes(&b, m)
	}
	if len(m.LogLines) > 0 {
		renderLog(&b, m)
	}

	renderFooter(&b, m)

	return b.String()
}

func renderHeader(b *strings.Builder, m Model) {
	title := fmt.Sprintf("stackzner: %s", m.Deployment)
	if m.Region != "" {
		title += fmt.Sprintf(" (%s)", m.Region)
	}
	b.WriteString(titleStyle.Render(title))

	status := " "
	switch {
	case m.Err != nil:
		status += failedStyle.Render(fmt.Sprintf("Error: %v", m.Err))
	case m.Done && m.Mode == "destroy":
		status += readyStyle.Render("Destroyed")
	case m.Done:
		status += readyStyle.Render("Deployed")
	case m.RollingBack:
		status += failedStyle.Render(currentSpinner(m.SpinnerFrame) + " Rolling back")
	default:
		if key := activePhase(m); key != "" {
			status += activeStyle.Render(currentSpinner(m.SpinnerFrame)+" ") + warningStyle.Render(key)
		} else {
			status += dimStyle.Render("Starting...")
		}
	}
	b.WriteString(status)
	b.WriteString("\n")
}

func activePhase(m Model) string {
	for _, ph := range m.Phases {
		if ph.Active {
			return ph.Key
		}
	}
	return ""
}

func renderProgressBar(b *strings.Builder, m Model) {
	progress := calculateProgress(m)
	barWidth := 40
	if m.Width > 0 && m.Width < 80 {
		barWidth = m.Width - 30
		if barWidth < 10 {
			barWidth = 10
		}
	}
	filled := int(float64(barWidth) * progress)
	if filled > barWidth {
		filled = barWidth
	}

	bar := progressBarFull.Render(strings.Repeat("█", filled)) +
		progressBarEmpty.Render(strings.Repeat("░", barWidth-filled))

	fmt.Fprintf(b, "  %s %d%%\n", bar, int(progress*100))
}

func renderPhases(b *strings.Builder, m Model) {
	b.WriteString(sectionStyle.Render("  Phases"))
	b.WriteString("\n")

	for _, phase := range m.Phases {
		var icon string
		var style styleFunc
		switch {
		case phase.Err != nil:
			icon = crossMark
			style = sf(failedStyle)
		case phase.Done:
			icon = checkMark
			style = sf(readyStyle)
		case phase.Active:
			icon = currentSpinner(m.SpinnerFrame)
			style = sf(activeStyle)
		default:
			icon = pending
			style = sf(dimStyle)
		}
		fmt.Fprintf(b, "    %s %s\n", style(icon), style(phase.Name))
	}
}

func renderResources(b *strings.Builder, m Model) {
	if len(m.Resources) == 0 {
		return
	}

	b.WriteString(sectionStyle.Render("  Resources"))
	b.WriteString("\n")

	for _, r := range m.Resources {
		icon, style := resourceIcon(r.Status, m.SpinnerFrame)
		detail := ""
		if r.Detail != "" {
			detail = " " + dimStyle.Render(r.Detail)
		}
		fmt.Fprintf(b, "    %s %-20s %-16s %s%s\n",
			style(icon), style(r.ID), dimStyle.Render(r.Kind), style(r.Status), detail)
	}
}

func renderArtifacts(b *strings.Builder, m Model) {
	b.WriteString(sectionStyle.Render("  Artifacts"))
	b.WriteString("\n")

	icon, style := statusIcon(m.Published >= m.ArtifactTotal)
	if m.Published < m.ArtifactTotal {
		icon = currentSpinner(m.SpinnerFrame)
		style = sf(activeStyle)
	}
	fmt.Fprintf(b, "    %s published %d/%d", style(icon), m.Published, m.ArtifactTotal)
	if m.Granted > 0 {
		fmt.Fprintf(b, ", %s", dimStyle.Render(fmt.Sprintf("%d grant(s) issued", m.Granted)))
	}
	b.WriteString("\n")
}

func renderProbes(b *strings.Builder, m Model) {
	b.WriteString(sectionStyle.Render("  Health"))
	b.WriteString("\n")

	for _, p := range m.Probes {
		var icon string
		var style styleFunc
		switch {
		case p.Registered:
			icon = checkMark
			style = sf(readyStyle)
		case p.Failing:
			icon = warnMark
			style = sf(warningStyle)
		default:
			icon = currentSpinner(m.SpinnerFrame)
			style = sf(activeStyle)
		}
		fmt.Fprintf(b, "    %s %-20s %s\n", style(icon), style(p.InstanceID), dimStyle.Render(p.Message))
	}
}

func renderLog(b *strings.Builder, m Model) {
	b.WriteString("\n")
	for _, line := range m.LogLines {
		fmt.Fprintf(b, "  %s\n", dimStyle.Render(line))
	}
}

func renderFooter(b *strings.Builder, m Model) {
	elapsed := formatDuration(time.Since(m.StartTime))
	pulse := ""
	if !m.Done && m.Err == nil {
		pulse = "  |  " + currentSpinner(m.SpinnerFrame) + " running"
	}
	b.WriteString(footerStyle.Render(fmt.Sprintf("  elapsed: %s%s  |  q: quit", elapsed, pulse)))
	b.WriteString("\n")
}

// Helper functions

func statusIcon(ready bool) (string, styleFunc) {
	if ready {
		return checkMark, sf(readyStyle)
	}
	return crossMark, sf(failedStyle)
}

func resourceIcon(status string, frame int) (string, styleFunc) {
	switch status {
	case statusCreated, statusExists, statusDeleted:
		return checkMark, sf(readyStyle)
	case statusFailed:
		return crossMark, sf(failedStyle)
	case statusCreating, statusDeleting:
		return currentSpinner(frame), sf(activeStyle)
	default:
		return pending, sf(dimStyle)
	}
}

func currentSpinner(frame int) string {
	if len(spinnerFrames) == 0 {
		return spinner
	}
	if frame < 0 {
		frame = -frame
	}
	return spinnerFrames[frame%len(spinnerFrames)]
}

func calculateProgress(m Model) float64 {
	if m.Done {
		return 1.0
	}

	if m.Mode == "destroy" {
		if len(m.Resources) == 0 {
			return 0
		}
		done := 0
		for _, r := range m.Resources {
			if r.Status == statusDeleted || r.Status == statusFailed {
				done++
			}
		}
		return float64(done) / float64(len(m.Resources))
	}

	weights := map[string]float64{"artifacts": 0.15, "provision": 0.65, "health": 0.20}

	var progress float64
	for _, ph := range m.Phases {
		w := weights[ph.Key]
		switch {
		case ph.Done:
			progress += w
		case ph.Active:
			progress += w * phaseFraction(m, ph.Key)
		}
	}
	if progress > 1.0 {
		progress = 1.0
	}
	return progress
}

// phaseFraction estimates completion within a phase, preferring explicit
// progress reports and falling back to counting settled rows.
func phaseFraction(m Model, key string) float64 {
	if ps, ok := m.phaseProgress[key]; ok && ps.Total > 0 {
		return float64(ps.Current) / float64(ps.Total)
	}

	switch key {
	case "artifacts":
		if m.ArtifactTotal > 0 {
			return float64(m.Published) / float64(m.ArtifactTotal)
		}
	case "provision":
		if len(m.Resources) > 0 {
			settled := 0
			for _, r := range m.Resources {
				if r.Status == statusCreated || r.Status == statusExists || r.Status == statusFailed {
					settled++
				}
			}
			return float64(settled) / float64(len(m.Resources))
		}
	case "health":
		if len(m.Probes) > 0 {
			registered := 0
			for _, p := range m.Probes {
				if p.Registered {
					registered++
				}
			}
			return float64(registered) / float64(len(m.Probes))
		}
	}
	return 0
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}
