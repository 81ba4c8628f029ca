package models

import (
	"regexp"
	"strings"
)

// symbolPattern accepts exchange tickers such as AAPL, BRK.B, GGAL.BA or ^MERV.
var symbolPattern = regexp.MustCompile(`^[A-Z0-9^][A-Z0-9.\-_=/^]{0,31}$`)

// NormalizeSymbol trims and uppercases a ticker.
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// ValidSymbol reports whether symbol, once normalized, is a usable ticker.
func ValidSymbol(symbol string) bool {
	return symbolPattern.MatchString(NormalizeSymbol(symbol))
}
