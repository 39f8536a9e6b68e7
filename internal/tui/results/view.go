package results

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/marcus/soilnet/internal/output"
	"github.com/marcus/soilnet/internal/soil"
)

// renderView renders the complete TUI view
func (m Model) renderView() string {
	if m.Width == 0 || m.Height == 0 {
		return "Loading..."
	}

	if m.Width < MinWidth || m.Height < MinHeight {
		return m.renderCompact()
	}

	if m.ShowHelp {
		return m.renderHelp()
	}

	tableWidth := m.table.Width() + 4
	detailWidth := m.Width - tableWidth - 2
	panelHeight := m.Height - 3

	left := m.renderTablePanel(panelHeight)
	var body string
	if detailWidth >= 24 {
		right := m.renderDetailPanel(detailWidth, panelHeight)
		body = lipgloss.JoinHorizontal(lipgloss.Top, left, right)
	} else {
		body = left
	}

	return lipgloss.JoinVertical(lipgloss.Left, body, m.renderFooter())
}

func (m Model) renderCompact() string {
	var s strings.Builder

	s.WriteString("soil results (resize for full view)\n\n")
	s.WriteString(fmt.Sprintf("Results: %d\n", len(m.Visible)))
	if r := m.Selected(); r != nil {
		s.WriteString(fmt.Sprintf("Selected: %s %s\n", r.Label, output.FormatConfidence(r.Confidence)))
	}
	if m.Err != nil {
		s.WriteString(errorStyle.Render("Error: "+m.Err.Error()) + "\n")
	}
	s.WriteString("\nq:quit r:refresh ?:help")

	return s.String()
}

func (m Model) renderTablePanel(height int) string {
	style := panelStyle
	if m.ActivePanel == PanelTable {
		style = activePanelStyle
	}

	var content strings.Builder
	content.WriteString(panelTitleStyle.Render(fmt.Sprintf("RESULTS (%d)", len(m.Visible))))
	content.WriteString("\n")
	if m.Filtering || m.filter.Value() != "" {
		content.WriteString(m.filter.View())
		content.WriteString("\n")
	}
	switch {
	case m.Err != nil:
		content.WriteString(errorStyle.Render("Error: " + m.Err.Error()))
	case len(m.All) == 0 && m.LastRefresh.IsZero():
		content.WriteString(helpStyle.Render("Loading results..."))
	case len(m.Visible) == 0:
		content.WriteString(helpStyle.Render("No soil results"))
	default:
		content.WriteString(m.table.View())
	}

	return style.Height(height - 2).Render(content.String())
}

func (m Model) renderDetailPanel(width, height int) string {
	style := panelStyle
	if m.ActivePanel == PanelDetail {
		style = activePanelStyle
	}
	inner := width - 4

	r := m.Selected()
	if r == nil {
		return style.Width(width - 2).Height(height - 2).Render(panelTitleStyle.Render("DETAILS"))
	}

	var lines []string
	lines = append(lines, panelTitleStyle.Render("DETAILS"))
	lines = append(lines, titleStyle.Render(r.Label)+"  "+output.FormatConfidence(r.Confidence))
	lines = append(lines, labelStyle.Render("Farmer: ")+m.farmerName(r.FarmerID))
	lines = append(lines, labelStyle.Render("Date: ")+r.CreatedAt.Local().Format("2006-01-02 15:04"))
	if r.ImageURL != "" {
		lines = append(lines, labelStyle.Render("Image: ")+r.ImageURL)
	}

	barWidth := inner - 24
	if barWidth < 5 {
		barWidth = 5
	}
	if len(r.Probabilities) > 0 {
		lines = append(lines, "", titleStyle.Render("Probabilities"))
		lines = append(lines, output.ProbabilityBars(r.Probabilities, barWidth)...)
	}

	if c, ok := soil.Lookup(r.Label); ok {
		lines = append(lines, "", helpStyle.Render(c.Description))
		lines = append(lines, "", titleStyle.Render("Suitable crops"))
		lines = append(lines, output.BulletList(c.Crops, 0)...)
	}

	for i, l := range lines {
		lines[i] = ansi.Truncate(l, inner, "…")
	}
	if limit := height - 2; len(lines) > limit {
		lines = lines[:limit]
	}
	return style.Width(width - 2).Height(height - 2).Render(strings.Join(lines, "\n"))
}

func (m Model) renderHelp() string {
	help := `
SOIL RESULTS BROWSER

Navigation:
  ↑/k, ↓/j      Move selection
  pgup/pgdown   Page through results
  tab, enter    Switch between table and details
  /             Filter by soil class or farmer
  esc           Clear filter

Actions:
  r             Refresh now
  ?             Toggle help
  q             Quit
`
	return lipgloss.NewStyle().Padding(1, 2).Render(help)
}

func (m Model) renderFooter() string {
	keys := helpStyle.Render("q:quit  tab:switch  ↑↓:select  /:filter  r:refresh  ?:help")

	refresh := ""
	if !m.LastRefresh.IsZero() {
		refresh = helpStyle.Render(fmt.Sprintf("Last: %s", m.LastRefresh.Format("15:04:05")))
	}

	padding := m.Width - lipgloss.Width(keys) - lipgloss.Width(refresh) - 2
	if padding < 0 {
		padding = 0
	}
	return keys + strings.Repeat(" ", padding) + refresh
}
