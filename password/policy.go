package password

import (
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

const (
	// MinLength is the minimum accepted password length in characters.
	MinLength = 8

	// MinClasses is the number of distinct character classes a password
	// must contain out of upper, lower, digit, and symbol.
	MinClasses = 3

	// DefaultMaxAgeDays is the password validity window applied when a
	// caller does not override it.
	DefaultMaxAgeDays = 90
)

// Symbols is the fixed punctuation set counted as the symbol class.
const Symbols = "!@#$%^&*()_+-=[]{}|;:,.<>?/~`"

// ValidateStrength reports whether a candidate password satisfies the
// strength policy: at least MinLength characters and at least MinClasses
// of the four character classes. It is a pure function; the returned
// reason is empty when the password is acceptable.
func ValidateStrength(password string) (bool, string) {
	if utf8.RuneCountInString(password) < MinLength {
		return false, "password must be at least 8 characters"
	}

	var hasUpper, hasLower, hasDigit, hasSymbol bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case strings.ContainsRune(Symbols, r):
			hasSymbol = true
		}
	}

	classes := 0
	for _, present := range []bool{hasUpper, hasLower, hasDigit, hasSymbol} {
		if present {
			classes++
		}
	}
	if classes < MinClasses {
		return false, "password must contain at least 3 of: uppercase, lowercase, digits, symbols"
	}

	return true, ""
}

// Expired reports whether a password last changed at the given unix
// timestamp has outlived maxAgeDays. A nil timestamp means the change
// time was never recorded; such passwords are treated as not expired so
// that accounts predating the field keep working.
func Expired(changedAt *int64, maxAgeDays int) bool {
	if changedAt == nil {
		return false
	}
	if maxAgeDays <= 0 {
		maxAgeDays = DefaultMaxAgeDays
	}

	maxAge := int64(maxAgeDays) * 24 * 60 * 60
	return time.Now().Unix()-*changedAt > maxAge
}
