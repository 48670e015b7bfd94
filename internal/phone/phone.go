// Package phone normalizes phone numbers to the canonical +-prefixed form
// used as the contact's natural key.
package phone

import (
	"errors"
	"strings"
)

var ErrInvalid = errors.New("invalid phone number")

const minDigits = 7

// Canonicalize normalizes a raw phone number: separators are dropped, a
// leading + is stripped, bare 10-digit numbers are assumed domestic and get
// the default country code, and the + prefix is re-applied last. The same
// subscriber always maps to the same canonical key regardless of input
// formatting.
func Canonicalize(raw, defaultCountryCode string) (string, error) {
	digits := Digits(raw)
	if len(digits) < minDigits {
		return "", ErrInvalid
	}

	if len(digits) == 10 && defaultCountryCode != "" {
		digits = defaultCountryCode + digits
	}

	return "+" + digits, nil
}

// Digits strips formatting and returns the bare digit string. A non-digit
// other than the accepted separators yields an empty result.
func Digits(raw string) string {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "+")

	var b strings.Builder
	for _, r := range raw {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '(' || r == ')':
			// separator, skip
		default:
			return ""
		}
	}

	return b.String()
}
