package ui

import (
	"strconv"
	"time"

	"github.com/bamsammich/ferry/internal/stats"
)

// FormatRate formats a bytes-per-second rate, e.g. "1.5 MiB/s".
func FormatRate(bytesPerSec float64) string {
	if bytesPerSec < 0 {
		bytesPerSec = 0
	}
	return stats.FormatBytes(int64(bytesPerSec)) + "/s"
}

// FormatCount formats n with comma thousands separators.
func FormatCount(n int64) string {
	s := strconv.FormatInt(n, 10)
	sign := ""
	if n < 0 {
		sign, s = "-", s[1:]
	}
	for i := len(s) - 3; i > 0; i -= 3 {
		s = s[:i] + "," + s[i:]
	}
	return sign + s
}

// FormatDuration rounds d to whole seconds: "42s", "3m17s", "1h2m3s".
func FormatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	if d < 0 {
		d = 0
	}
	return d.String()
}

// barCells returns how many of width cells a fraction fills, clamped.
func barCells(frac float64, width int) int {
	if width <= 0 || frac <= 0 {
		return 0
	}
	if frac >= 1 {
		return width
	}
	return int(frac * float64(width))
}
