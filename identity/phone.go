// Package identity implements the matching rules used to map a submitted
// registration form onto a personnel record: trunk-canonical phone
// normalization and the two-phase name/department/position matcher.
package identity

import (
	"regexp"
	"strings"
)

// phoneInputRe is the permissive shape gate for user-entered phone numbers:
// digits, spaces, hyphens, parentheses, and an optional leading plus.
var phoneInputRe = regexp.MustCompile(`^\+?[0-9\s\-()]+$`)

// NormalizePhone canonicalizes a free-form phone number into the
// organization's 10-digit trunk format starting with "9". When no rule
// matches, the bare digit string is returned unchanged and the caller must
// treat it as invalid.
func NormalizePhone(raw string) string {
	digits := onlyDigits(raw)
	switch {
	case len(digits) == 11 && strings.HasPrefix(digits, "7"):
		return digits[1:]
	case len(digits) == 11 && strings.HasPrefix(digits, "8"):
		return digits[1:]
	case len(digits) == 10 && strings.HasPrefix(digits, "9"):
		return digits
	case len(digits) == 10 && strings.HasPrefix(digits, "8"):
		return "9" + digits[1:]
	case len(digits) == 9:
		return "9" + digits
	default:
		return digits
	}
}

// IsCanonical reports whether s is already a trunk-canonical number.
func IsCanonical(s string) bool {
	return len(s) == 10 && strings.HasPrefix(s, "9") && onlyDigits(s) == s
}

// ValidPhoneInput gates dialogue input: the raw string must look like a
// phone number and must normalize to a canonical 10-digit "9…" value.
func ValidPhoneInput(raw string) bool {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || !phoneInputRe.MatchString(trimmed) {
		return false
	}
	return IsCanonical(NormalizePhone(trimmed))
}

func onlyDigits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
