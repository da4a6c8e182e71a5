package components

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/fonoslabs/tremolo/api"
)

// ProgressBar renders elapsed/total time with a quality badge. Elapsed
// time is whatever the engine published; the bar never interpolates.
type ProgressBar struct {
	Width       int
	Current     time.Duration
	Total       time.Duration
	Quality     api.Quality
	BarChar     string
	EmptyChar   string
	ShowTime    bool
	Style       lipgloss.Style
	FilledStyle lipgloss.Style
	EmptyStyle  lipgloss.Style
	BadgeStyle  lipgloss.Style
}

func NewProgressBar(width int) ProgressBar {
	return ProgressBar{
		Width:       width,
		BarChar:     "█",
		EmptyChar:   "░",
		ShowTime:    true,
		Style:       lipgloss.NewStyle(),
		FilledStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("212")),
		EmptyStyle:  lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
		BadgeStyle:  lipgloss.NewStyle().Foreground(lipgloss.Color("114")).Bold(true),
	}
}

// SetProgress updates the displayed position.
func (p *ProgressBar) SetProgress(current, total time.Duration) {
	p.Current = current
	p.Total = total
}

func qualityBadge(q api.Quality) string {
	switch q {
	case api.QualityLossless:
		return "LOSSLESS"
	case api.QualityHigh:
		return "HI"
	default:
		return ""
	}
}

func (p ProgressBar) View() string {
	var sb strings.Builder

	var percent float64
	if p.Total > 0 {
		percent = float64(p.Current) / float64(p.Total)
	}
	if percent > 1 {
		percent = 1
	}

	barWidth := p.Width - 24
	if barWidth < 10 {
		barWidth = 10
	}

	filled := int(float64(barWidth) * percent)
	empty := barWidth - filled

	sb.WriteString(p.FilledStyle.Render(strings.Repeat(p.BarChar, filled)))
	sb.WriteString(p.EmptyStyle.Render(strings.Repeat(p.EmptyChar, empty)))

	if p.ShowTime {
		sb.WriteString(" ")
		sb.WriteString(formatDuration(p.Current))
		sb.WriteString("/")
		sb.WriteString(formatDuration(p.Total))
	}

	if badge := qualityBadge(p.Quality); badge != "" {
		sb.WriteString(" ")
		sb.WriteString(p.BadgeStyle.Render(badge))
	}

	return p.Style.Render(sb.String())
}

// formatDuration formats a duration as MM:SS.
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	m := d / time.Minute
	s := (d % time.Minute) / time.Second
	return fmt.Sprintf("%02d:%02d", m, s)
}
