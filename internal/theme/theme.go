// Package theme holds the colors and lipgloss styles shared by every screen.
package theme

import "github.com/charmbracelet/lipgloss"

// Palette. Each color carries a dark and a light terminal variant.
var (
	ColorBlue   = lipgloss.AdaptiveColor{Dark: "#4EA1F3", Light: "#1D5FA8"}
	ColorTeal   = lipgloss.AdaptiveColor{Dark: "#3CCFB4", Light: "#17806E"}
	ColorGreen  = lipgloss.AdaptiveColor{Dark: "#70C971", Light: "#2E7D32"}
	ColorYellow = lipgloss.AdaptiveColor{Dark: "#F5C84C", Light: "#A66E00"}
	ColorRed    = lipgloss.AdaptiveColor{Dark: "#F26D6D", Light: "#B3261E"}
	ColorGray   = lipgloss.AdaptiveColor{Dark: "#8A929A", Light: "#6B7480"}
	ColorWhite  = lipgloss.AdaptiveColor{Dark: "#F4F6F8", Light: "#1B2027"}
	ColorSubtle = lipgloss.AdaptiveColor{Dark: "#3E454D", Light: "#D3DAE2"}
	ColorBorder = lipgloss.AdaptiveColor{Dark: "#3E454D", Light: "#E1E6EC"}
)

// Frame bars.
var (
	HeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorWhite).
			Background(ColorBlue).
			Padding(0, 1)

	StatusBarStyle = lipgloss.NewStyle().
			Foreground(ColorWhite).
			Background(ColorSubtle).
			Padding(0, 1)

	// BadgeStyle renders the unread counter in the header.
	BadgeStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(ColorRed).
			Padding(0, 1)
)

// Panels and lists.
var (
	DetailPanelStyle = lipgloss.NewStyle().
				Padding(1, 2).
				Border(lipgloss.RoundedBorder()).
				BorderForeground(ColorBorder)

	BorderStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorBorder)

	ListItemStyle = lipgloss.NewStyle().PaddingLeft(2)

	SelectedItemStyle = lipgloss.NewStyle().
				PaddingLeft(1).
				Bold(true).
				Foreground(ColorBlue).
				Border(lipgloss.NormalBorder(), false, false, false, true).
				BorderForeground(ColorBlue)

	UnreadStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorBlue)
)

// Text.
var (
	TitleStyle   = lipgloss.NewStyle().Bold(true).Foreground(ColorWhite).MarginBottom(1)
	DimmedStyle  = lipgloss.NewStyle().Foreground(ColorGray)
	HelpStyle    = lipgloss.NewStyle().Foreground(ColorGray).Italic(true)
	ErrorStyle   = lipgloss.NewStyle().Foreground(ColorRed).Bold(true)
	SuccessStyle = lipgloss.NewStyle().Foreground(ColorGreen).Bold(true)
)

var statusColors = map[string]lipgloss.AdaptiveColor{
	"pending":            ColorYellow,
	"carrier_accepted":   ColorTeal,
	"requester_accepted": ColorTeal,
	"accepted":           ColorGreen,
	"rejected":           ColorRed,
}

var roleColors = map[string]lipgloss.AdaptiveColor{
	"carrier":   ColorBlue,
	"requester": ColorTeal,
}

// MatchStatusStyle colors a match status label. Unknown statuses are gray.
func MatchStatusStyle(status string) lipgloss.Style {
	return tag(statusColors, status)
}

// RoleStyle colors the user's role label.
func RoleStyle(role string) lipgloss.Style {
	return tag(roleColors, role)
}

func tag(colors map[string]lipgloss.AdaptiveColor, key string) lipgloss.Style {
	c, ok := colors[key]
	if !ok {
		c = ColorGray
	}
	return lipgloss.NewStyle().Bold(true).Padding(0, 1).Foreground(c)
}
