// Package results is an interactive browser for soil classification
// results built on Bubble Tea.
package results

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/marcus/soilnet/internal/client"
)

// Panel represents which panel is active
type Panel int

const (
	PanelTable Panel = iota
	PanelDetail
)

// MinWidth is the minimum terminal width for proper display
const MinWidth = 60

// MinHeight is the minimum terminal height for proper display
const MinHeight = 12

// Model is the Bubble Tea model for the results browser
type Model struct {
	Source   Source
	FarmerID string

	// FarmerNames maps farmer IDs to display names.
	FarmerNames map[string]string

	Width  int
	Height int

	All       []client.SoilResult
	Visible   []client.SoilResult
	table     table.Model
	filter    textinput.Model
	Filtering bool

	ActivePanel Panel
	ShowHelp    bool
	LastRefresh time.Time
	Err         error

	RefreshInterval time.Duration
	ctx             context.Context
}

// TickMsg triggers a data refresh
type TickMsg time.Time

// NewModel creates a results browser. A zero interval disables auto refresh.
func NewModel(ctx context.Context, src Source, farmerID string, names map[string]string, interval time.Duration) Model {
	if names == nil {
		names = map[string]string{}
	}
	ti := textinput.New()
	ti.Placeholder = "filter by soil or farmer"
	ti.Prompt = "/ "
	ti.CharLimit = 60

	t := table.New(
		table.WithColumns(columns(80)),
		table.WithFocused(true),
		table.WithHeight(10),
		table.WithStyles(tableStyles()),
	)

	return Model{
		Source:          src,
		FarmerID:        farmerID,
		FarmerNames:     names,
		table:           t,
		filter:          ti,
		ActivePanel:     PanelTable,
		RefreshInterval: interval,
		ctx:             ctx,
	}
}

// Init implements tea.Model
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.fetchData(), m.scheduleTick())
}

// Update implements tea.Model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.Filtering {
			return m.handleFilterKey(msg)
		}
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		m.resize()
		return m, nil

	case TickMsg:
		return m, tea.Batch(m.fetchData(), m.scheduleTick())

	case RefreshDataMsg:
		m.LastRefresh = msg.Timestamp
		m.Err = msg.Err
		if msg.Err == nil {
			m.All = msg.Results
			m.applyFilter()
		}
		return m, nil
	}

	return m, nil
}

// handleKey processes key input
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit

	case "tab", "enter":
		if m.ActivePanel == PanelTable {
			m.ActivePanel = PanelDetail
			m.table.Blur()
		} else {
			m.ActivePanel = PanelTable
			m.table.Focus()
		}
		return m, nil

	case "esc":
		if m.filter.Value() != "" {
			m.filter.SetValue("")
			m.applyFilter()
		}
		m.ActivePanel = PanelTable
		m.table.Focus()
		return m, nil

	case "/":
		m.Filtering = true
		m.ActivePanel = PanelTable
		m.table.Blur()
		return m, m.filter.Focus()

	case "r":
		return m, m.fetchData()

	case "?":
		m.ShowHelp = !m.ShowHelp
		return m, nil
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m Model) handleFilterKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter", "esc":
		if msg.String() == "esc" {
			m.filter.SetValue("")
			m.applyFilter()
		}
		m.Filtering = false
		m.filter.Blur()
		m.table.Focus()
		return m, nil
	case "ctrl+c":
		return m, tea.Quit
	}
	var cmd tea.Cmd
	m.filter, cmd = m.filter.Update(msg)
	m.applyFilter()
	return m, cmd
}

// Selected returns the result under the cursor, or nil.
func (m Model) Selected() *client.SoilResult {
	i := m.table.Cursor()
	if i < 0 || i >= len(m.Visible) {
		return nil
	}
	return &m.Visible[i]
}

// View implements tea.Model
func (m Model) View() string {
	return m.renderView()
}

func (m *Model) applyFilter() {
	m.Visible = filterResults(m.All, m.FarmerNames, m.filter.Value())
	rows := make([]table.Row, len(m.Visible))
	for i, r := range m.Visible {
		rows[i] = table.Row{
			r.CreatedAt.Local().Format("2006-01-02 15:04"),
			m.farmerName(r.FarmerID),
			r.Label,
			fmt.Sprintf("%.1f%%", r.Confidence*100),
		}
	}
	m.table.SetRows(rows)
	if m.table.Cursor() >= len(rows) {
		m.table.SetCursor(max(len(rows)-1, 0))
	}
}

func (m *Model) resize() {
	w := m.Width/2 - 4
	if w < 30 {
		w = m.Width - 4
	}
	m.table.SetColumns(columns(w))
	m.table.SetWidth(w)
	h := m.Height - 8
	if h < 3 {
		h = 3
	}
	m.table.SetHeight(h)
}

func (m Model) farmerName(id string) string {
	if n := m.FarmerNames[id]; n != "" {
		return n
	}
	return id
}

func columns(width int) []table.Column {
	// date 16, confidence 7, separators
	rest := width - 16 - 7 - 6
	if rest < 12 {
		rest = 12
	}
	return []table.Column{
		{Title: "Date", Width: 16},
		{Title: "Farmer", Width: rest / 2},
		{Title: "Soil", Width: rest - rest/2},
		{Title: "Conf", Width: 7},
	}
}

// scheduleTick returns a command that sends a TickMsg after the refresh interval
func (m Model) scheduleTick() tea.Cmd {
	if m.RefreshInterval <= 0 {
		return nil
	}
	return tea.Tick(m.RefreshInterval, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

// fetchData returns a command that fetches results and sends a RefreshDataMsg
func (m Model) fetchData() tea.Cmd {
	return func() tea.Msg {
		return FetchData(m.ctx, m.Source, m.FarmerID)
	}
}

