// Package bytesize renders byte counts in human-friendly units.
package bytesize

import "fmt"

// 1024-based unit thresholds.
var units = []struct {
	suffix string
	size   int64
}{
	{"TB", 1 << 40},
	{"GB", 1 << 30},
	{"MB", 1 << 20},
	{"KB", 1 << 10},
}

// Format renders n as a size string with one decimal place, for example
// "1.5 GB" or "512 B". Negative values render as "0 B".
func Format(n int64) string {
	if n < 0 {
		n = 0
	}
	for _, u := range units {
		if n >= u.size {
			return fmt.Sprintf("%.1f %s", float64(n)/float64(u.size), u.suffix)
		}
	}
	return fmt.Sprintf("%d B", n)
}
