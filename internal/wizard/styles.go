package wizard

import "github.com/charmbracelet/lipgloss"

var (
	colorPrimary = lipgloss.Color("#7D56F4")
	colorSuccess = lipgloss.Color("#04B575")
	colorError   = lipgloss.Color("#FF4672")
	colorSubtle  = lipgloss.Color("#777777")
)

var (
	headerStyle  = lipgloss.NewStyle().Foreground(colorPrimary).Bold(true)
	labelStyle   = lipgloss.NewStyle().Foreground(colorSubtle)
	successStyle = lipgloss.NewStyle().Foreground(colorSuccess).Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(colorError).Bold(true)

	focusedPromptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6AD5")).Bold(true)
	blurredPromptStyle = lipgloss.NewStyle().Foreground(colorSubtle)

	borderStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorPrimary).
			Padding(1, 2)
)

func renderHeader(text string) string  { return headerStyle.Render(text) }
func renderSuccess(text string) string { return successStyle.Render("✓ " + text) }
func renderError(text string) string   { return errorStyle.Render("✗ " + text) }
