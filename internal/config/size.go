package config

import (
	"fmt"
	"strconv"
	"strings"
)

var sizeUnits = map[string]int64{
	"":  1,
	"K": 1 << 10,
	"M": 1 << 20,
	"G": 1 << 30,
	"T": 1 << 40,
}

// ParseSize parses a bandwidth or size value such as "512", "100K", "1.5M"
// or "2GB" into bytes. Units are powers of 1024 and case-insensitive; a
// trailing "B" is optional.
func ParseSize(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty size string")
	}

	numStr := strings.ToUpper(s)
	numStr = strings.TrimSuffix(numStr, "IB")
	numStr = strings.TrimSuffix(numStr, "B")

	unit := ""
	if n := len(numStr); n > 0 {
		if _, ok := sizeUnits[numStr[n-1:]]; ok {
			unit = numStr[n-1:]
			numStr = numStr[:n-1]
		}
	}
	if numStr == "" {
		return 0, fmt.Errorf("invalid size: %q", s)
	}
	multiplier := sizeUnits[unit]

	if n, err := strconv.ParseInt(numStr, 10, 64); err == nil {
		if n < 0 {
			return 0, fmt.Errorf("invalid size: %q", s)
		}
		return n * multiplier, nil
	}

	f, err := strconv.ParseFloat(numStr, 64)
	if err != nil || f < 0 {
		return 0, fmt.Errorf("invalid size: %q", s)
	}
	return int64(f * float64(multiplier)), nil
}
