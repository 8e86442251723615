package routing

import (
	"fmt"
	"math"
)

// FormatDistance renders meters as "850m" or "2.4km".
func FormatDistance(meters float64) string {
	if meters < 1000 {
		return fmt.Sprintf("%dm", int(math.Round(meters)))
	}
	return fmt.Sprintf("%.1fkm", meters/1000)
}

// FormatDuration renders seconds as "12 min" or "1h 5min".
func FormatDuration(seconds float64) string {
	if seconds < 3600 {
		return fmt.Sprintf("%d min", int(math.Round(seconds/60)))
	}
	h := int(seconds / 3600)
	m := int(math.Round(math.Mod(seconds, 3600) / 60))
	if m == 60 {
		h, m = h+1, 0
	}
	return fmt.Sprintf("%dh %dmin", h, m)
}
