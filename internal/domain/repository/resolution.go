package repository

import "strings"

// Resolution is a candle bucket size in the backend's market-data notation.
type Resolution string

const (
	Res1m  Resolution = "1"
	Res5m  Resolution = "5"
	Res15m Resolution = "15"
	Res30m Resolution = "30"
	Res1h  Resolution = "60"
	Res1d  Resolution = "D"
	Res1w  Resolution = "W"
	Res1mo Resolution = "M"
)

var resolutionSeconds = map[Resolution]int64{
	Res1m:  60,
	Res5m:  300,
	Res15m: 900,
	Res30m: 1800,
	Res1h:  3600,
	Res1d:  86400,
	Res1w:  7 * 86400,
	Res1mo: 30 * 86400,
}

var resolutionAliases = map[string]Resolution{
	"1m": Res1m, "5m": Res5m, "15m": Res15m, "30m": Res30m,
	"1h": Res1h, "1d": Res1d, "1w": Res1w, "1mo": Res1mo,
}

// IsValidResolution returns true if r is a supported resolution.
func IsValidResolution(r Resolution) bool {
	_, ok := resolutionSeconds[r]
	return ok
}

func DefaultResolution() Resolution { return Res1d }

// NormalizeResolution accepts both "D" style and "1d" style input and falls back
// to the default for anything unknown.
func NormalizeResolution(s string) Resolution {
	s = strings.TrimSpace(s)
	if s == "" {
		return DefaultResolution()
	}
	if r := Resolution(strings.ToUpper(s)); IsValidResolution(r) {
		return r
	}
	if r, ok := resolutionAliases[strings.ToLower(s)]; ok {
		return r
	}
	return DefaultResolution()
}

// Seconds is the bucket width.
func (r Resolution) Seconds() int64 {
	return resolutionSeconds[r]
}
