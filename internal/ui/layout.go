package ui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/dconnect/courier/internal/theme"
)

// Frame is the chrome around a signed-in screen: a header row on top and
// a key hint row at the bottom.
type Frame struct {
	Width  int
	Height int
}

// NewFrame sizes a frame to the terminal.
func NewFrame(width, height int) Frame {
	return Frame{Width: width, Height: height}
}

// Body returns the space left for the screen itself.
func (f Frame) Body() (width, height int) {
	return f.Width, max(f.Height-2, 0)
}

// Render stacks the header, body and hint rows. status is right aligned
// in the header.
func (f Frame) Render(title, status, body, hints string) string {
	return lipgloss.JoinVertical(lipgloss.Left,
		fillRow(theme.HeaderStyle, f.Width, title, status),
		body,
		fillRow(theme.StatusBarStyle, f.Width, hints, ""),
	)
}

// fillRow renders left and right with style and pads the gap between them
// with the style's background so the bar spans the full width.
func fillRow(style lipgloss.Style, width int, left, right string) string {
	l := style.Render(left)
	r := ""
	if right != "" {
		r = style.Align(lipgloss.Right).Render(right)
	}
	gap := max(width-lipgloss.Width(l)-lipgloss.Width(r), 0)
	pad := lipgloss.NewStyle().Width(gap).Background(style.GetBackground()).Render("")
	return lipgloss.JoinHorizontal(lipgloss.Top, l, pad, r)
}

// Centered renders msg in the middle of a width x height box, used for
// loading and empty states.
func Centered(width, height int, msg string) string {
	return lipgloss.NewStyle().
		Width(width).
		Height(height).
		Align(lipgloss.Center, lipgloss.Center).
		Foreground(theme.ColorGray).
		Render(msg)
}

// Pager renders "Page x of y".
func Pager(page, lastPage int) string {
	return theme.DimmedStyle.Render(fmt.Sprintf("Page %d of %d", page, max(lastPage, 1)))
}
