package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/fonoslabs/tremolo/api"
	"github.com/fonoslabs/tremolo/internal/audio"
	"github.com/fonoslabs/tremolo/internal/catalog"
	"github.com/fonoslabs/tremolo/internal/library"
	"github.com/fonoslabs/tremolo/internal/playlist"
	"github.com/fonoslabs/tremolo/internal/ui/components"
	"github.com/fonoslabs/tremolo/pkg/events"
)

// ViewType represents the current active view
type ViewType int

const (
	ViewPlayer ViewType = iota
	ViewLibrary
	ViewCatalog
	ViewPlaylist
)

// Deps carries everything the UI drives. All fields are required.
type Deps struct {
	Engine   *audio.Engine
	Bus      *events.EventBus
	Library  *library.Library
	Recents  *library.Recents
	Queue    *playlist.Queue
	Control  *playlist.Controller
	Playlist *playlist.Manager
	Catalog  *catalog.Client
}

// Model is the main bubbletea model
type Model struct {
	width  int
	height int

	activeView ViewType

	deps   Deps
	state  *api.PlaybackState
	events <-chan api.AudioEvent

	libraryList  components.TrackList
	catalogList  components.TrackList
	playlistList components.TrackList
	progress     components.ProgressBar
	search       components.SearchInput

	playlists   []*api.Playlist
	playlistIdx int

	// showHistory swaps the library listing for the recently-played log.
	showHistory bool
	searching   bool
	status      string
	err         error

	ctx    context.Context
	cancel context.CancelFunc

	tabStyle       lipgloss.Style
	activeTabStyle lipgloss.Style
	headerStyle    lipgloss.Style
	labelStyle     lipgloss.Style
}

// TickMsg is sent periodically to refresh the player panel
type TickMsg time.Time

// EventMsg wraps an engine event delivered through the bus
type EventMsg api.AudioEvent

// CatalogResultsMsg carries an async catalog search response
type CatalogResultsMsg struct {
	Query  string
	Tracks []*api.Track
	Err    error
}

// NewModel creates a new application model
func NewModel(deps Deps) Model {
	ctx, cancel := context.WithCancel(context.Background())

	m := Model{
		width:      80,
		height:     24,
		activeView: ViewLibrary,
		deps:       deps,
		state:      deps.Engine.GetState(),
		events:     deps.Bus.SubscribeAll(),
		ctx:        ctx,
		cancel:     cancel,
		tabStyle: lipgloss.NewStyle().
			Padding(0, 2).
			Foreground(lipgloss.Color("240")),
		activeTabStyle: lipgloss.NewStyle().
			Padding(0, 2).
			Bold(true).
			Foreground(lipgloss.Color("212")).
			Background(lipgloss.Color("236")),
		headerStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212")).
			MarginBottom(1),
		labelStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")),
	}

	listHeight := m.height - 12
	m.libraryList = components.NewTrackList(listHeight, m.width)
	m.libraryList.Title = "Library"
	m.libraryList.SetItems(deps.Library.GetAllTracks())

	m.catalogList = components.NewTrackList(listHeight, m.width)
	m.catalogList.Title = "Catalog"

	m.playlistList = components.NewTrackList(listHeight, m.width)
	m.playlists = deps.Playlist.GetAll()
	m.syncPlaylistList()

	m.progress = components.NewProgressBar(m.width)
	m.search = components.NewSearchInput(m.width - 4)

	return m
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return tea.Batch(tickCmd(), m.listenForEvents())
}

// tickCmd returns a command that ticks every 500ms
func tickCmd() tea.Cmd {
	return tea.Tick(500*time.Millisecond, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

// listenForEvents returns a command that waits for the next engine event
func (m Model) listenForEvents() tea.Cmd {
	return func() tea.Msg {
		select {
		case event, ok := <-m.events:
			if !ok {
				return nil
			}
			return EventMsg(event)
		case <-m.ctx.Done():
			return nil
		}
	}
}

// searchCatalogCmd fires a catalog search without blocking the UI loop.
func (m Model) searchCatalogCmd(query string) tea.Cmd {
	client := m.deps.Catalog
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		tracks, err := client.Search(ctx, query)
		return CatalogResultsMsg{Query: query, Tracks: tracks, Err: err}
	}
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updateSizes()

	case TickMsg:
		m.state = m.deps.Engine.GetState()
		cmds = append(cmds, tickCmd())

	case EventMsg:
		switch msg.Type {
		case api.EventError:
			if err, ok := msg.Payload.(error); ok {
				m.err = err
			}
		case api.EventTrackStarted:
			m.err = nil
		}
		m.state = m.deps.Engine.GetState()
		cmds = append(cmds, m.listenForEvents())

	case CatalogResultsMsg:
		if msg.Err != nil {
			m.err = msg.Err
			m.status = ""
		} else {
			m.err = nil
			m.status = fmt.Sprintf("%d results for %q", len(msg.Tracks), msg.Query)
			m.catalogList.SetItems(msg.Tracks)
		}

	case tea.KeyMsg:
		if m.searching {
			return m.updateSearch(msg, cmds)
		}
		return m.updateKeys(msg, cmds)
	}

	return m, tea.Batch(cmds...)
}

// updateSearch routes keys to the focused search input.
func (m Model) updateSearch(msg tea.KeyMsg, cmds []tea.Cmd) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		m.cancel()
		return m, tea.Quit

	case "esc":
		m.searching = false
		m.search.Blur()
		m.search.Clear()
		if m.activeView == ViewLibrary {
			m.reloadLibraryList()
		}

	case "enter":
		query := strings.TrimSpace(m.search.Value)
		m.searching = false
		m.search.Blur()
		switch m.activeView {
		case ViewLibrary:
			if query == "" {
				m.reloadLibraryList()
			} else {
				m.showHistory = false
				m.libraryList.Title = fmt.Sprintf("Library: %q", query)
				m.libraryList.SetItems(m.deps.Library.Search(query))
			}
		case ViewCatalog:
			if query != "" {
				m.status = "Searching..."
				cmds = append(cmds, m.searchCatalogCmd(query))
			}
		}

	default:
		var cmd tea.Cmd
		m.search, cmd = m.search.Update(msg)
		cmds = append(cmds, cmd)
	}
	return m, tea.Batch(cmds...)
}

// updateKeys handles global keybindings and list navigation.
func (m Model) updateKeys(msg tea.KeyMsg, cmds []tea.Cmd) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.cancel()
		return m, tea.Quit

	case "1":
		m.activeView = ViewPlayer
	case "2":
		m.activeView = ViewLibrary
	case "3":
		m.activeView = ViewCatalog
	case "4":
		m.activeView = ViewPlaylist
	case "tab":
		m.activeView = (m.activeView + 1) % 4

	case " ": // play/pause, or start the queue when stopped
		switch m.state.Status {
		case api.StatusPlaying, api.StatusPaused:
			m.deps.Engine.TogglePlayPause()
		default:
			if track := m.deps.Queue.Current(); track != nil {
				m.deps.Engine.Play(api.FromTrack(track))
			}
		}

	case "s":
		m.deps.Engine.Stop()

	case "n":
		m.deps.Control.Next()

	case "p":
		m.deps.Control.Previous()

	case "+", "=":
		m.deps.Engine.SetVolume(m.state.Volume + 0.1)

	case "-":
		m.deps.Engine.SetVolume(m.state.Volume - 0.1)

	case "right":
		m.seekBy(5 * time.Second)

	case "left":
		m.seekBy(-5 * time.Second)

	case "r":
		mode := (m.deps.Queue.GetRepeatMode() + 1) % 3
		m.deps.Queue.SetRepeatMode(mode)

	case "S":
		if m.deps.Queue.IsShuffled() {
			m.deps.Queue.Unshuffle()
		} else {
			m.deps.Queue.Shuffle()
		}

	case "Q":
		next := (m.state.Quality + 1) % 3
		m.deps.Engine.SetQuality(next)

	case "/":
		if m.activeView == ViewLibrary || m.activeView == ViewCatalog {
			m.searching = true
			m.search.Clear()
			m.search.Focus()
		}

	case "h":
		if m.activeView == ViewLibrary {
			m.showHistory = !m.showHistory
			m.reloadLibraryList()
		}

	case "[":
		if m.activeView == ViewPlaylist && m.playlistIdx > 0 {
			m.playlistIdx--
			m.syncPlaylistList()
		}

	case "]":
		if m.activeView == ViewPlaylist && m.playlistIdx < len(m.playlists)-1 {
			m.playlistIdx++
			m.syncPlaylistList()
		}

	case "enter":
		m.playSelection()

	default:
		switch m.activeView {
		case ViewLibrary:
			m.libraryList, _ = m.libraryList.Update(msg)
		case ViewCatalog:
			m.catalogList, _ = m.catalogList.Update(msg)
		case ViewPlaylist:
			m.playlistList, _ = m.playlistList.Update(msg)
		}
	}

	return m, tea.Batch(cmds...)
}

// playSelection starts the highlighted track. Library and playlist rows
// replace the queue; a catalog row plays transiently and leaves the queue
// alone.
func (m *Model) playSelection() {
	switch m.activeView {
	case ViewLibrary:
		if track := m.libraryList.SelectedItem(); track != nil {
			m.deps.Queue.Set(m.libraryList.Items)
			if err := m.deps.Control.PlayIndex(m.libraryList.Selected); err != nil {
				m.err = err
			}
		}
	case ViewCatalog:
		if track := m.catalogList.SelectedItem(); track != nil {
			m.deps.Engine.Play(api.FromCatalogTrack(track))
		}
	case ViewPlaylist:
		if track := m.playlistList.SelectedItem(); track != nil {
			m.deps.Queue.Set(m.playlistList.Items)
			if err := m.deps.Control.PlayIndex(m.playlistList.Selected); err != nil {
				m.err = err
			}
		}
	}
}

func (m *Model) seekBy(delta time.Duration) {
	if m.state.CurrentItem == nil {
		return
	}
	to := m.state.Position + delta
	if to < 0 {
		to = 0
	}
	m.deps.Engine.Seek(to)
}

// reloadLibraryList restores the unfiltered library or recents listing.
func (m *Model) reloadLibraryList() {
	if m.showHistory {
		m.libraryList.Title = "Recently Played"
		m.libraryList.SetItems(m.recentTracks())
		return
	}
	m.libraryList.Title = "Library"
	m.libraryList.SetItems(m.deps.Library.GetAllTracks())
}

// recentTracks maps the recents log back onto library tracks, newest first.
func (m *Model) recentTracks() []*api.Track {
	ids := m.deps.Recents.TrackIDs()
	tracks := make([]*api.Track, 0, len(ids))
	for _, id := range ids {
		if t, err := m.deps.Library.GetTrack(id); err == nil {
			tracks = append(tracks, t)
		}
	}
	return tracks
}

func (m *Model) syncPlaylistList() {
	if len(m.playlists) == 0 {
		m.playlistList.Title = "Playlists (none)"
		m.playlistList.SetItems(nil)
		return
	}
	pl := m.playlists[m.playlistIdx]
	m.playlistList.Title = fmt.Sprintf("Playlist: %s [%d/%d]", pl.Name, m.playlistIdx+1, len(m.playlists))
	tracks := make([]*api.Track, len(pl.Tracks))
	for i := range pl.Tracks {
		tracks[i] = &pl.Tracks[i]
	}
	m.playlistList.SetItems(tracks)
}

func (m *Model) updateSizes() {
	listHeight := m.height - 12
	if listHeight < 5 {
		listHeight = 5
	}
	m.libraryList.Width = m.width
	m.libraryList.Height = listHeight
	m.catalogList.Width = m.width
	m.catalogList.Height = listHeight
	m.playlistList.Width = m.width
	m.playlistList.Height = listHeight
	m.progress.Width = m.width
	m.search.Width = m.width - 4
}

// View renders the UI
func (m Model) View() string {
	var sb strings.Builder

	sb.WriteString(m.renderTabs())
	sb.WriteString("\n")
	sb.WriteString(m.renderPlayer())
	sb.WriteString("\n")

	if m.searching {
		sb.WriteString(m.search.View())
		sb.WriteString("\n")
	}

	switch m.activeView {
	case ViewPlayer:
		sb.WriteString(m.renderHelp())
	case ViewLibrary:
		sb.WriteString(m.libraryList.View())
	case ViewCatalog:
		sb.WriteString(m.catalogList.View())
	case ViewPlaylist:
		sb.WriteString(m.playlistList.View())
	}

	if m.status != "" {
		sb.WriteString("\n")
		sb.WriteString(m.labelStyle.Render(m.status))
	}
	if m.err != nil {
		errorStyle := lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)
		sb.WriteString("\n")
		sb.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
	}

	return sb.String()
}

// renderPlayer renders the always-visible now-playing panel.
func (m Model) renderPlayer() string {
	var sb strings.Builder

	st := m.state
	glyph := "■"
	switch st.Status {
	case api.StatusPlaying:
		glyph = "▶"
	case api.StatusPaused:
		glyph = "⏸"
	}

	if st.CurrentItem != nil {
		sb.WriteString(m.headerStyle.Render(fmt.Sprintf("%s %s - %s", glyph, st.CurrentItem.Artist, st.CurrentItem.Title)))
		if st.CurrentItem.Album != "" {
			sb.WriteString("\n")
			sb.WriteString(m.labelStyle.Render(st.CurrentItem.Album))
		}
	} else {
		sb.WriteString(m.labelStyle.Render(glyph + " Nothing playing"))
	}
	sb.WriteString("\n")

	bar := m.progress
	bar.Current = st.Position
	bar.Total = st.Duration
	bar.Quality = st.Quality
	sb.WriteString(bar.View())
	sb.WriteString("\n")

	flags := []string{fmt.Sprintf("vol %3.0f%%", st.Volume*100)}
	switch m.deps.Queue.GetRepeatMode() {
	case api.RepeatOne:
		flags = append(flags, "repeat one")
	case api.RepeatAll:
		flags = append(flags, "repeat all")
	}
	if m.deps.Queue.IsShuffled() {
		flags = append(flags, "shuffle")
	}
	sb.WriteString(m.labelStyle.Render(strings.Join(flags, "  ")))

	return sb.String()
}

func (m Model) renderHelp() string {
	help := []string{
		"space  play/pause        enter  play selection",
		"s      stop              n/p    next/previous",
		"left/right  seek 5s      +/-    volume",
		"r      repeat mode       S      shuffle",
		"Q      quality           /      search",
		"h      history (library) [/]    switch playlist",
		"1-4    views             q      quit",
	}
	return m.labelStyle.Render(strings.Join(help, "\n"))
}

// renderTabs renders the tab bar
func (m Model) renderTabs() string {
	tabs := []string{"[1] Player", "[2] Library", "[3] Catalog", "[4] Playlists"}

	var rendered []string
	for i, tab := range tabs {
		if ViewType(i) == m.activeView {
			rendered = append(rendered, m.activeTabStyle.Render(tab))
		} else {
			rendered = append(rendered, m.tabStyle.Render(tab))
		}
	}

	return lipgloss.JoinHorizontal(lipgloss.Top, rendered...)
}

// Run starts the bubbletea program
func Run(deps Deps) error {
	model := NewModel(deps)
	p := tea.NewProgram(model, tea.WithAltScreen())
	_, err := p.Run()
	return err
}
