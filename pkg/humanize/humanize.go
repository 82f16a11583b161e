// Package humanize formats byte counts and percentage deltas for the
// repack summary line.
package humanize

import "fmt"

// Bytes formats b using binary (1024) unit steps, matching the
// reference tool's summary output.
func Bytes(b float64) string {
	units := []string{"", "K", "M", "G", "T", "P", "E", "Z"}
	for _, u := range units {
		if b < 1024 {
			return fmt.Sprintf("%.2f%sB", b, u)
		}
		b /= 1024
	}
	return fmt.Sprintf("%.2fYB", b)
}

// PercentChange formats the signed percentage change from base to new,
// always carrying an explicit sign.
func PercentChange(base, new float64) string {
	pct := (new - base) / base * 100
	if pct >= 0 {
		return fmt.Sprintf("+%.2f%%", pct)
	}
	return fmt.Sprintf("%.2f%%", pct)
}
