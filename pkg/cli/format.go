// Package cli provides terminal formatting for fireblade: colors, dot
// padding and aligned tables.
package cli

import (
	"os"
	"strings"
)

// NO_COLOR (no-color.org) disables colors regardless of flags.
var colorEnabled = os.Getenv("NO_COLOR") == ""

func SetColor(enabled bool) {
	colorEnabled = enabled && os.Getenv("NO_COLOR") == ""
}

func ColorEnabled() bool { return colorEnabled }

func paint(sgr, s string) string {
	if !colorEnabled {
		return s
	}
	return "\033[" + sgr + "m" + s + "\033[0m"
}

// Green marks success, Yellow skips and dry runs, Red failures.
func Green(s string) string  { return paint("32", s) }
func Yellow(s string) string { return paint("33", s) }
func Red(s string) string    { return paint("31", s) }

func Bold(s string) string { return paint("1", s) }

// Dim is used for per-device detail after the category.
func Dim(s string) string { return paint("2", s) }

// DotPad fills name out to width with a space and dots, so categories line
// up in the console: DotPad("sw1", 8) == "sw1 ....".
func DotPad(name string, width int) string {
	n := width - len(name) - 1
	if width <= 0 || n < 1 {
		return name
	}
	return name + " " + strings.Repeat(".", n)
}
