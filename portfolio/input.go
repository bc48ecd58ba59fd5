package portfolio

import (
	"fmt"
	"strconv"
	"strings"
)

// NormalizeSymbol trims and upper-cases a ticker.
func NormalizeSymbol(symbol string) (string, error) {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	if s == "" {
		return "", fmt.Errorf("%w: must provide symbol", ErrValidation)
	}
	return s, nil
}

// ParseShares accepts a plain run of digits denoting a positive share count.
// Signs, decimals and blanks are rejected.
func ParseShares(raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, fmt.Errorf("%w: must provide shares", ErrValidation)
	}
	for _, r := range raw {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("%w: shares must be a whole number, got %q", ErrValidation, raw)
		}
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: shares out of range: %q", ErrValidation, raw)
	}
	if n <= 0 {
		return 0, fmt.Errorf("%w: shares must be positive", ErrValidation)
	}
	return n, nil
}
