// Package render formats daemon answers for the command line.
package render

import (
	"github.com/charmbracelet/lipgloss"
)

const (
	ColorCyan   = lipgloss.Color("12") // Labels
	ColorYellow = lipgloss.Color("11") // Warnings
	ColorGreen  = lipgloss.Color("10") // Success indicator
	ColorRed    = lipgloss.Color("9")  // Error indicator
	ColorGray   = lipgloss.Color("8")  // Secondary text
)

const (
	SymbolSuccess = "✓"
	SymbolError   = "✗"
	SymbolWarning = "!"
	SymbolArrow   = "→"
)

var (
	// LabelStyle is used for field names.
	LabelStyle = lipgloss.NewStyle().Foreground(ColorCyan)

	WarningStyle = lipgloss.NewStyle().Foreground(ColorYellow).Bold(true)
	SuccessStyle = lipgloss.NewStyle().Foreground(ColorGreen)
	ErrorStyle   = lipgloss.NewStyle().Foreground(ColorRed)

	// DimStyle is used for captured text and timestamps.
	DimStyle = lipgloss.NewStyle().Foreground(ColorGray)
)

// StyledSymbol returns a symbol with its styling applied.
func StyledSymbol(symbol string) string {
	switch symbol {
	case SymbolSuccess:
		return SuccessStyle.Render(symbol)
	case SymbolError:
		return ErrorStyle.Render(symbol)
	case SymbolWarning:
		return WarningStyle.Render(symbol)
	case SymbolArrow:
		return DimStyle.Render(symbol)
	default:
		return symbol
	}
}
