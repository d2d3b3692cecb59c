// Package orderkey implements base-36 fractional ordering keys for flow steps
// and components. Keys are plain strings compared lexicographically; inserting
// between two siblings produces a new key strictly between them, so reordering
// never renumbers the rest of the list.
package orderkey

import (
	"fmt"
	"strings"
)

const digits = "0123456789abcdefghijklmnopqrstuvwxyz"

// rebalanceLen is the key length past which a list should be rewritten with
// fresh evenly-spaced keys. Keys only grow when insertions keep landing in the
// same gap, so this is rarely hit in practice.
const rebalanceLen = 24

// First returns the key for the first element of an empty list.
func First() string {
	return midpoint("", "")
}

// Between returns a key strictly between a and b. Empty a means "before
// everything", empty b means "after everything".
func Between(a, b string) (string, error) {
	if a != "" {
		if err := Validate(a); err != nil {
			return "", err
		}
	}
	if b != "" {
		if err := Validate(b); err != nil {
			return "", err
		}
	}
	if b != "" && a >= b {
		return "", fmt.Errorf("orderkey: %q is not before %q", a, b)
	}
	return midpoint(a, b), nil
}

// After returns a key greater than a.
func After(a string) (string, error) {
	return Between(a, "")
}

// Before returns a key smaller than b.
func Before(b string) (string, error) {
	return Between("", b)
}

func Less(a, b string) bool { return a < b }

// Validate checks that k is a well-formed key: non-empty, base-36 digits only,
// and no trailing zero digit (a key ending in the minimum digit would leave no
// room to insert before its successors).
func Validate(k string) error {
	if k == "" {
		return fmt.Errorf("orderkey: empty key")
	}
	for i := 0; i < len(k); i++ {
		if strings.IndexByte(digits, k[i]) < 0 {
			return fmt.Errorf("orderkey: invalid digit %q in key %q", k[i], k)
		}
	}
	if k[len(k)-1] == digits[0] {
		return fmt.Errorf("orderkey: key %q ends with the zero digit", k)
	}
	return nil
}

func NeedsRebalance(k string) bool {
	return len(k) > rebalanceLen
}

// Spread returns n evenly spaced keys, used when rebalancing a list or bulk
// inserting an ordered batch.
func Spread(n int) []string {
	keys := make([]string, 0, n)
	prev := ""
	for i := 0; i < n; i++ {
		prev = midpoint(prev, "")
		keys = append(keys, prev)
	}
	return keys
}

// midpoint returns a digit string strictly between a and b, where "" stands
// for zero on the left and infinity on the right. Both inputs must be free of
// trailing zero digits; a < b is assumed when b is non-empty.
func midpoint(a, b string) string {
	if b != "" {
		// Strip the longest common prefix, treating a as zero-padded.
		i := 0
		for i < len(b) {
			ca := digits[0]
			if i < len(a) {
				ca = a[i]
			}
			if ca != b[i] {
				break
			}
			i++
		}
		if i > 0 {
			if i <= len(a) {
				return b[:i] + midpoint(a[i:], b[i:])
			}
			return b[:i] + midpoint("", b[i:])
		}
	}

	da := 0
	if a != "" {
		da = strings.IndexByte(digits, a[0])
	}
	db := len(digits)
	if b != "" {
		db = strings.IndexByte(digits, b[0])
	}
	if db-da > 1 {
		return string(digits[(da+db)/2])
	}

	// First digits are consecutive.
	if len(b) > 1 {
		return b[:1]
	}
	rest := ""
	if a != "" {
		rest = a[1:]
	}
	return string(digits[da]) + midpoint(rest, "")
}
