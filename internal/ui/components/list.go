package components

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/fonoslabs/tremolo/api"
)

// TrackList is a scrollable track listing. Each row carries an
// availability glyph: local files play offline, everything else streams.
type TrackList struct {
	Items         []*api.Track
	Selected      int
	Height        int
	Width         int
	Offset        int
	Title         string
	ShowNumbers   bool
	SelectedStyle lipgloss.Style
	NormalStyle   lipgloss.Style
	TitleStyle    lipgloss.Style
	GlyphStyle    lipgloss.Style
}

func NewTrackList(height, width int) TrackList {
	return TrackList{
		Items:    make([]*api.Track, 0),
		Height:   height,
		Width:    width,
		SelectedStyle: lipgloss.NewStyle().
			Background(lipgloss.Color("62")).
			Foreground(lipgloss.Color("230")).
			Bold(true).
			Padding(0, 1),
		NormalStyle: lipgloss.NewStyle().
			Padding(0, 1),
		TitleStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212")).
			MarginBottom(1),
		GlyphStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("114")),
		ShowNumbers: true,
	}
}

// SetItems replaces the listing and resets the selection.
func (l *TrackList) SetItems(items []*api.Track) {
	l.Items = items
	l.Selected = 0
	l.Offset = 0
}

func (l TrackList) Update(msg tea.Msg) (TrackList, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "up", "k":
			l.MoveUp()
		case "down", "j":
			l.MoveDown()
		case "home":
			l.Selected = 0
			l.Offset = 0
		case "end":
			if len(l.Items) > 0 {
				l.Selected = len(l.Items) - 1
				l.ensureVisible()
			}
		case "pgup":
			l.PageUp()
		case "pgdown":
			l.PageDown()
		}
	}
	return l, nil
}

func (l *TrackList) MoveUp() {
	if l.Selected > 0 {
		l.Selected--
		l.ensureVisible()
	}
}

func (l *TrackList) MoveDown() {
	if l.Selected < len(l.Items)-1 {
		l.Selected++
		l.ensureVisible()
	}
}

func (l *TrackList) PageUp() {
	l.Selected -= l.Height - 2
	if l.Selected < 0 {
		l.Selected = 0
	}
	l.ensureVisible()
}

func (l *TrackList) PageDown() {
	l.Selected += l.Height - 2
	if l.Selected >= len(l.Items) {
		l.Selected = len(l.Items) - 1
	}
	l.ensureVisible()
}

func (l *TrackList) ensureVisible() {
	visibleHeight := l.Height - 2
	if visibleHeight < 1 {
		visibleHeight = 1
	}

	if l.Selected < l.Offset {
		l.Offset = l.Selected
	} else if l.Selected >= l.Offset+visibleHeight {
		l.Offset = l.Selected - visibleHeight + 1
	}
}

// SelectedItem returns the selected track, if any.
func (l *TrackList) SelectedItem() *api.Track {
	if l.Selected >= 0 && l.Selected < len(l.Items) {
		return l.Items[l.Selected]
	}
	return nil
}

// sourceGlyph marks where the audio comes from: disk or network.
func sourceGlyph(t *api.Track) string {
	if t.FilePath != "" {
		return "▸"
	}
	return "~"
}

func (l TrackList) View() string {
	var sb strings.Builder

	if l.Title != "" {
		sb.WriteString(l.TitleStyle.Render(l.Title))
		sb.WriteString("\n")
	}

	if len(l.Items) == 0 {
		sb.WriteString(l.NormalStyle.Render("No tracks"))
		return sb.String()
	}

	visibleHeight := l.Height - 2
	if visibleHeight < 1 {
		visibleHeight = 1
	}

	end := l.Offset + visibleHeight
	if end > len(l.Items) {
		end = len(l.Items)
	}

	for i := l.Offset; i < end; i++ {
		track := l.Items[i]

		var line string
		if l.ShowNumbers {
			line = fmt.Sprintf("%3d %s %s - %s", i+1, sourceGlyph(track),
				truncate(track.Artist, 20), truncate(track.Title, 30))
		} else {
			line = fmt.Sprintf("%s %s - %s", sourceGlyph(track),
				truncate(track.Artist, 20), truncate(track.Title, 35))
		}
		if track.Duration > 0 {
			line += "  " + formatDuration(track.Duration)
		}

		if len(line) > l.Width-2 {
			line = line[:l.Width-5] + "..."
		}

		if i == l.Selected {
			sb.WriteString(l.SelectedStyle.Render(line))
		} else {
			sb.WriteString(l.NormalStyle.Render(line))
		}
		if i < end-1 {
			sb.WriteString("\n")
		}
	}

	if len(l.Items) > visibleHeight {
		sb.WriteString("\n")
		sb.WriteString(l.NormalStyle.Render(fmt.Sprintf("  [%d/%d]", l.Selected+1, len(l.Items))))
	}

	return sb.String()
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
