// Package output provides styled terminal output helpers (success, error,
// warning, farmer and soil result formatting) using lipgloss.
package output

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/marcus/soilnet/internal/client"
	"github.com/marcus/soilnet/internal/wizard"
)

var (
	// Styles
	titleStyle     = lipgloss.NewStyle().Bold(true)
	subtleStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	successStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	warningStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	labelStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("212"))
	highlightStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	unreadStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("45")).Bold(true)
	roleStyles     = map[string]lipgloss.Style{
		"farmer":     lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		"consultant": lipgloss.NewStyle().Foreground(lipgloss.Color("141")),
		"admin":      lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
	}
)

// OutputMode determines output format
type OutputMode int

const (
	ModeShort OutputMode = iota
	ModeLong
	ModeJSON
)

// Success prints a success message
func Success(format string, args ...interface{}) {
	fmt.Println(successStyle.Render(fmt.Sprintf(format, args...)))
}

// Error prints an error message
func Error(format string, args ...interface{}) {
	fmt.Println(errorStyle.Render("ERROR: " + fmt.Sprintf(format, args...)))
}

// Warning prints a warning message
func Warning(format string, args ...interface{}) {
	fmt.Println(warningStyle.Render("Warning: " + fmt.Sprintf(format, args...)))
}

// Info prints an info message
func Info(format string, args ...interface{}) {
	fmt.Println(fmt.Sprintf(format, args...))
}

// JSON outputs data as JSON
func JSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

// Error codes for structured JSON output
const (
	ErrCodeNotFound     = "not_found"
	ErrCodeInvalidInput = "invalid_input"
	ErrCodeConflict     = "conflict"
	ErrCodeUnauthorized = "unauthorized"
	ErrCodeServerError  = "server_error"
)

// JSONError outputs an error as JSON
func JSONError(code, message string) {
	data, _ := json.Marshal(map[string]any{
		"error": map[string]string{"code": code, "message": message},
	})
	fmt.Println(string(data))
}

// FormatRole formats a role with color
func FormatRole(role string) string {
	style, ok := roleStyles[role]
	if !ok {
		return role
	}
	return style.Render(fmt.Sprintf("[%s]", role))
}

// Truncate shortens s to width display cells, keeping ANSI styling intact.
func Truncate(s string, width int) string {
	if width <= 0 || ansi.StringWidth(s) <= width {
		return s
	}
	return ansi.Truncate(s, width, "…")
}

// FormatFarmerShort returns a one-line farmer summary
func FormatFarmerShort(f *client.Farmer) string {
	loc := joinNonEmpty(", ", f.City, f.Province, f.Country)
	line := fmt.Sprintf("%s  %s  %s", subtleStyle.Render(f.ID), titleStyle.Render(f.FullName), f.Email)
	if loc != "" {
		line += "  " + subtleStyle.Render(loc)
	}
	if f.UserID != "" {
		line += "  " + successStyle.Render("registered")
	}
	return line
}

// FormatFarmerLong returns a detailed farmer view
func FormatFarmerLong(f *client.Farmer) string {
	var sb strings.Builder

	sb.WriteString(titleStyle.Render(f.FullName))
	sb.WriteString("  " + subtleStyle.Render(f.ID) + "\n")

	rows := [][2]string{
		{"Email", f.Email},
		{"Phone", f.Phone},
		{"Location", joinNonEmpty(", ", f.Address, f.City, f.Province, f.Country)},
		{"Farm", f.FarmName},
		{"Crops", f.Crops},
	}
	if f.FarmSizeAcres > 0 {
		rows = append(rows, [2]string{"Size", fmt.Sprintf("%g acres", f.FarmSizeAcres)})
	}
	for _, r := range rows {
		if r[1] == "" {
			continue
		}
		sb.WriteString(fmt.Sprintf("%s %s\n", labelStyle.Render(r[0]+":"), r[1]))
	}

	if f.UserID != "" {
		sb.WriteString(successStyle.Render("Has a soilnet account") + "\n")
	}
	if t, ok := parseTime(f.CreatedAt); ok {
		sb.WriteString(subtleStyle.Render("Added "+FormatTimeAgo(t)) + "\n")
	}
	return sb.String()
}

// FormatNotification returns a one-line inbox entry
func FormatNotification(n *client.Notification) string {
	marker := "  "
	title := n.Title
	if n.ReadAt == nil {
		marker = unreadStyle.Render("● ")
		title = titleStyle.Render(title)
	}
	line := fmt.Sprintf("%s%s  %s", marker, subtleStyle.Render(n.ID), title)
	if t, ok := parseTime(n.CreatedAt); ok {
		line += "  " + subtleStyle.Render(FormatTimeAgo(t))
	}
	if n.Body != "" {
		line += "\n    " + n.Body
	}
	return line
}

// FormatSoilResultShort returns a one-line soil result summary
func FormatSoilResultShort(r *client.SoilResult) string {
	return fmt.Sprintf("%s  %s %s  %s",
		subtleStyle.Render(r.ID),
		titleStyle.Render(r.Label),
		FormatConfidence(r.Confidence),
		subtleStyle.Render(FormatTimeAgo(r.CreatedAt)))
}

// FormatConfidence colors a confidence score by how sure the model was
func FormatConfidence(c float64) string {
	s := fmt.Sprintf("%.1f%%", c*100)
	switch {
	case c >= 0.75:
		return successStyle.Render(s)
	case c >= 0.5:
		return warningStyle.Render(s)
	default:
		return errorStyle.Render(s)
	}
}

// ProbabilityBars renders class probabilities as bars, highest first.
// width is the bar length at 100%.
func ProbabilityBars(probs map[string]float64, width int) []string {
	names := make([]string, 0, len(probs))
	pad := 0
	for n := range probs {
		names = append(names, n)
		if w := ansi.StringWidth(n); w > pad {
			pad = w
		}
	}
	sort.Slice(names, func(i, j int) bool {
		if probs[names[i]] != probs[names[j]] {
			return probs[names[i]] > probs[names[j]]
		}
		return names[i] < names[j]
	})

	lines := make([]string, len(names))
	for i, n := range names {
		p := probs[n]
		filled := int(p*float64(width) + 0.5)
		bar := strings.Repeat("█", filled) + subtleStyle.Render(strings.Repeat("░", width-filled))
		lines[i] = fmt.Sprintf("%-*s %s %5.1f%%", pad, n, bar, p*100)
	}
	return lines
}

// FormatStepErrors renders a rejected wizard step: the step's fields with
// invalid ones highlighted, followed by every violation.
func FormatStepErrors(s wizard.State, now time.Time) string {
	if len(s.Errors) == 0 {
		return ""
	}
	var sb strings.Builder
	if !s.Done {
		hl := s.Highlighted(now)
		for _, f := range s.Current().Fields {
			label := f.Label
			if label == "" {
				label = f.Name
			}
			if hl[f.Name] {
				sb.WriteString(highlightStyle.Render("✗ "+label) + "\n")
			}
		}
	}
	for _, e := range s.Errors {
		sb.WriteString(errorStyle.Render("  - "+e) + "\n")
	}
	return sb.String()
}

// StepHeader returns "Step 2/4: Location" for the current wizard step
func StepHeader(s wizard.State) string {
	if s.Done {
		return titleStyle.Render(s.Flow.Name + ": done")
	}
	return titleStyle.Render(fmt.Sprintf("Step %d/%d: %s", s.Step, s.Flow.Len(), s.Current().Title))
}

// FormatTimeAgo formats a time as a human-readable "ago" string
func FormatTimeAgo(t time.Time) string {
	diff := time.Since(t)

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		mins := int(diff.Minutes())
		if mins == 1 {
			return "1m ago"
		}
		return fmt.Sprintf("%dm ago", mins)
	case diff < 24*time.Hour:
		hours := int(diff.Hours())
		if hours == 1 {
			return "1h ago"
		}
		return fmt.Sprintf("%dh ago", hours)
	case diff < 7*24*time.Hour:
		days := int(diff.Hours() / 24)
		if days == 1 {
			return "1d ago"
		}
		return fmt.Sprintf("%dd ago", days)
	default:
		return t.Format("2006-01-02")
	}
}

// SectionHeader returns a formatted section header for CLI output
// e.g., "\nPROBABILITIES:\n"
func SectionHeader(title string) string {
	return fmt.Sprintf("\n%s:\n", strings.ToUpper(title))
}

// IndentLines indents each line by the specified number of spaces
func IndentLines(lines []string, spaces int) []string {
	indent := strings.Repeat(" ", spaces)
	result := make([]string, len(lines))
	for i, line := range lines {
		result[i] = indent + line
	}
	return result
}

// BulletList formats items as a bulleted list with optional indentation
func BulletList(items []string, indent int) []string {
	prefix := strings.Repeat(" ", indent)
	result := make([]string, len(items))
	for i, item := range items {
		result[i] = prefix + "- " + item
	}
	return result
}

func joinNonEmpty(sep string, parts ...string) string {
	var kept []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, sep)
}

func parseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
