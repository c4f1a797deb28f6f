package ledger

import (
	"strings"

	"github.com/maruel/natural"
)

// NaturalCompare orders strings with embedded numbers by numeric value, so
// "2 Jan" < "10 Jan" and "2019" < "2025". Text runs compare case-insensitively.
func NaturalCompare(a, b string) int {
	a, b = strings.ToLower(a), strings.ToLower(b)
	switch {
	case natural.Less(a, b):
		return -1
	case natural.Less(b, a):
		return 1
	default:
		return 0
	}
}
