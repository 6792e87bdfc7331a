// Package invoice formats and parses the INV-YYYYMMDD-NNNN invoice codes.
// The 4-digit suffix is a per-outlet, per-day sequence starting at 0001.
package invoice

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const prefix = "INV"

// Format builds the code for the given day and sequence number.
func Format(day time.Time, seq int) string {
	return fmt.Sprintf("%s-%s-%04d", prefix, day.Format("20060102"), seq)
}

// ParseSequence extracts the numeric suffix from a code, returning 0 for
// anything that does not match the expected shape. Stores use it to find
// the highest existing suffix for an outlet and day.
func ParseSequence(code string) int {
	parts := strings.Split(code, "-")
	if len(parts) != 3 || parts[0] != prefix {
		return 0
	}
	seq, err := strconv.Atoi(parts[2])
	if err != nil || seq < 0 {
		return 0
	}
	return seq
}

// DayPrefix returns the code prefix shared by all invoices of one day,
// e.g. "INV-20260115-". Useful for prefix scans.
func DayPrefix(day time.Time) string {
	return fmt.Sprintf("%s-%s-", prefix, day.Format("20060102"))
}
