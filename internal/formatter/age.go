package formatter

import (
	"fmt"
	"time"
)

// Age renders d as a compact two-unit duration ("45s", "3m12s", "2h5m",
// "1d4h"), the form long-running worker rows use rather than
// time.Duration's default "1h23m45.678s".
func Age(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		m := int(d.Minutes())
		return fmt.Sprintf("%dm%ds", m, int(d.Seconds())-m*60)
	case d < 24*time.Hour:
		h := int(d.Hours())
		return fmt.Sprintf("%dh%dm", h, int(d.Minutes())-h*60)
	default:
		days := int(d.Hours()) / 24
		return fmt.Sprintf("%dd%dh", days, int(d.Hours())-days*24)
	}
}
