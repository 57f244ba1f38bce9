package util

import (
	"path/filepath"
	"strings"
	"unicode"

	"github.com/mattn/go-runewidth"
)

// cut marks text shortened to fit its column.
const cut = "..."

// PadRight fits str into width display cells, padding with spaces or
// cutting the end. Control characters are shown as spaces so a column
// never spans lines.
func PadRight(str string, width int) string {
	str = strings.Map(printable, str)
	w := runewidth.StringWidth(str)
	if w > width {
		str = runewidth.Truncate(str, width, cut)
		w = runewidth.StringWidth(str)
	}
	return str + strings.Repeat(" ", max(0, width-w))
}

// FitName is PadRight for file names: a long name is cut before its
// extension so the file type stays visible.
func FitName(name string, width int) string {
	name = strings.Map(printable, name)
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	extWidth := runewidth.StringWidth(ext)

	if runewidth.StringWidth(name) <= width || stem == "" || extWidth+len(cut)+1 > width {
		return PadRight(name, width)
	}
	return PadRight(runewidth.Truncate(stem, width-extWidth, cut)+ext, width)
}

func printable(r rune) rune {
	if unicode.IsControl(r) {
		return ' '
	}
	return r
}
