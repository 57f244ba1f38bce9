package util

import (
	"fmt"
	"math"
)

// FormatSize renders a byte count with binary units, trimming trailing zeros.
func FormatSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}

	exp := int(math.Log(float64(size)) / math.Log(unit))
	units := []string{"B", "KB", "MB", "GB", "TB", "PB"}
	if exp >= len(units) {
		exp = len(units) - 1
	}

	div := int64(math.Pow(unit, float64(exp)))
	value := size / div
	if size%div == 0 {
		return fmt.Sprintf("%d %s", value, units[exp])
	}

	// Three decimals at most, computed on integers.
	decimal := (size % div * 1000) / div
	switch {
	case decimal%10 != 0:
		return fmt.Sprintf("%d.%03d %s", value, decimal, units[exp])
	case decimal%100 != 0:
		return fmt.Sprintf("%d.%02d %s", value, decimal/10, units[exp])
	default:
		return fmt.Sprintf("%d.%d %s", value, decimal/100, units[exp])
	}
}

// FormatPercent renders an integer percentage padded to a fixed width.
func FormatPercent(p int) string {
	return fmt.Sprintf("%3d%%", p)
}
