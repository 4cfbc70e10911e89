package theme

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

type Theme struct {
	Palette *Palette
	Symbols Symbols
}

type Symbols struct {
	Done    rune // ● file tokenized
	Skipped rune // ✗ file skipped
	Pending rune // · not reached yet
	Bar     rune // █ progress bar fill
}

func New(palette *Palette) *Theme {
	if palette == nil {
		palette = Default()
	}
	return &Theme{
		Palette: palette,
		Symbols: Symbols{
			Done:    '●',
			Skipped: '✗',
			Pending: '·',
			Bar:     '█',
		},
	}
}

// Color roles mapped to palette positions (0-1)
const (
	RoleMuted   = 0.2
	RoleFG      = 0.5
	RoleAccent  = 0.6
	RoleWarning = 0.8
	RoleSuccess = 1.0
	RoleFill    = 0.4 // histogram bars
)

// Style helpers

func (t *Theme) FG() lipgloss.Color {
	return rgbToLipgloss(t.Palette.Lookup(RoleFG))
}

func (t *Theme) Accent() lipgloss.Color {
	return rgbToLipgloss(t.Palette.Lookup(RoleAccent))
}

func (t *Theme) Muted() lipgloss.Color {
	return rgbToLipgloss(t.Palette.Lookup(RoleMuted))
}

func (t *Theme) Warning() lipgloss.Color {
	return rgbToLipgloss(t.Palette.Lookup(RoleWarning))
}

func (t *Theme) Success() lipgloss.Color {
	return rgbToLipgloss(t.Palette.Lookup(RoleSuccess))
}

// Title renders a heading
func (t *Theme) Title(s string) string {
	return lipgloss.NewStyle().Bold(true).Foreground(t.Accent()).Render(s)
}

// Dim renders secondary text
func (t *Theme) Dim(s string) string {
	return lipgloss.NewStyle().Foreground(t.Muted()).Render(s)
}

// Warn renders a skip or error line
func (t *Theme) Warn(s string) string {
	return lipgloss.NewStyle().Foreground(t.Warning()).Render(s)
}

// Good renders a success line
func (t *Theme) Good(s string) string {
	return lipgloss.NewStyle().Foreground(t.Success()).Render(s)
}

// Box frames a block of text
func (t *Theme) Box(s string) string {
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(t.Muted()).
		Padding(0, 1).
		Render(s)
}

// Fill returns the histogram bar color
func (t *Theme) Fill() RGB {
	return t.Palette.Lookup(RoleFill)
}

func rgbToLipgloss(c RGB) lipgloss.Color {
	return lipgloss.Color(fmt.Sprintf("#%02x%02x%02x", c[0], c[1], c[2]))
}
