package style

import (
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/lipgloss"
	"github.com/rescp17/filesTransfer/pkg/transfer"
)

// --- Reusable Colors ---
var (
	colorPink      = lipgloss.Color("205")
	colorDarkGray  = lipgloss.Color("240")
	colorLightGray = lipgloss.Color("229")
	colorBlue      = lipgloss.Color("57")
	colorCyan      = lipgloss.Color("212")
	colorGreen     = lipgloss.Color("42")
	colorYellow    = lipgloss.Color("214")
	colorRed       = lipgloss.Color("196")
)

// --- General Purpose Styles ---
var (
	ErrorStyle  = lipgloss.NewStyle().Foreground(colorRed)
	TitleStyle  = lipgloss.NewStyle().Bold(true).Foreground(colorPink)
	HelpStyle   = lipgloss.NewStyle().Faint(true)
	MutedStyle  = lipgloss.NewStyle().Foreground(colorDarkGray)
	StatusStyle = lipgloss.NewStyle().Foreground(colorLightGray)
	DocStyle    = lipgloss.NewStyle().Margin(1, 2)
)

// --- Transfer List Styles ---
var (
	CursorStyle        = lipgloss.NewStyle().Foreground(colorCyan).SetString("> ")
	NoCursorStyle      = lipgloss.NewStyle().SetString("  ")
	HighlightFontStyle = lipgloss.NewStyle().Foreground(colorCyan)
	SelectedRowStyle   = lipgloss.NewStyle().Foreground(colorLightGray).Background(colorBlue)
)

// --- File Picker Styles ---
var (
	DirStyle        = lipgloss.NewStyle().Foreground(colorBlue).Bold(true)
	SelectedStyle   = lipgloss.NewStyle().Foreground(colorGreen).SetString("[x] ")
	DeselectedStyle = lipgloss.NewStyle().Foreground(colorDarkGray).SetString("[ ] ")
)

// --- Table Styles ---
var (
	BorderStyle      = lipgloss.NewStyle().Foreground(colorDarkGray)
	TableHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(colorPink).Padding(0, 1)
	TableRowStyle    = lipgloss.NewStyle().Padding(0, 1)
	TableRowAltStyle = lipgloss.NewStyle().Padding(0, 1).Foreground(colorLightGray)
)

// StateStyle colors a transfer state label.
func StateStyle(s transfer.State) lipgloss.Style {
	switch s {
	case transfer.StateComplete:
		return lipgloss.NewStyle().Foreground(colorGreen)
	case transfer.StatePaused:
		return lipgloss.NewStyle().Foreground(colorYellow)
	case transfer.StateStopped:
		return ErrorStyle
	case transfer.StatePending:
		return MutedStyle
	default:
		return HighlightFontStyle
	}
}

// --- Common Components ---

// NewSpinner creates a spinner with a consistent style.
func NewSpinner() spinner.Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(colorPink)
	return s
}

// NewProgress creates a progress bar with a consistent style.
func NewProgress(width int) progress.Model {
	return progress.New(
		progress.WithGradient("#FF5FD7", "#5F5FFF"),
		progress.WithWidth(width),
		progress.WithoutPercentage(),
	)
}
