package util

import (
	"strconv"
	"strings"
)

// ParseFloatDefault also accepts a trailing percent sign, as some quote APIs
// send "1.23%".
func ParseFloatDefault(s string, def float64) float64 {
	s = strings.TrimSuffix(strings.TrimSpace(s), "%")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return def
	}
	return v
}

// NormalizeSymbol upper-cases and trims a ticker and strips an "EXCHANGE:" prefix.
func NormalizeSymbol(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	if i := strings.LastIndex(s, ":"); i >= 0 {
		s = s[i+1:]
	}
	return s
}

// BaseAsset drops a USDT or USD quote suffix so "BTCUSDT" and "BTC-USD"
// both become "BTC". Bare symbols pass through.
func BaseAsset(s string) string {
	s = NormalizeSymbol(s)
	for _, suffix := range []string{"USDT", "USD"} {
		if len(s) > len(suffix) && strings.HasSuffix(s, suffix) {
			s = strings.TrimSuffix(s, suffix)
			break
		}
	}
	return strings.TrimRight(s, "-/")
}

// SplitSymbols parses a comma separated list, dropping blanks and duplicates.
func SplitSymbols(s string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, part := range strings.Split(s, ",") {
		sym := NormalizeSymbol(part)
		if sym == "" {
			continue
		}
		if _, ok := seen[sym]; ok {
			continue
		}
		seen[sym] = struct{}{}
		out = append(out, sym)
	}
	return out
}
