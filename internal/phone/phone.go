// Package phone normalizes free-form phone input into the canonical
// country-prefixed digit string used as the dialable identifier.
// Rules follow the Brazilian numbering plan.
package phone

import (
	"errors"
	"strings"
)

const countryPrefix = "55"

// ErrInvalid is returned for input that cannot be normalized into a dialable
// number.
var ErrInvalid = errors.New("invalid phone number")

// Normalize strips non-digit characters and converts the result into the
// canonical form:
//
//	already country-prefixed, 12-13 digits -> accepted as-is
//	11 digits -> mobile: area code + mandatory '9' marker, prefix prepended
//	10 digits -> landline: area code validated, prefix prepended
//
// Anything else is ErrInvalid.
func Normalize(raw string) (string, error) {
	d := digitsOnly(raw)

	if strings.HasPrefix(d, countryPrefix) && (len(d) == 12 || len(d) == 13) {
		return d, nil
	}

	switch len(d) {
	case 11:
		if !validAreaCode(d[:2]) {
			return "", ErrInvalid
		}
		if d[2] != '9' {
			// 11 digits without the mobile marker is not dialable
			return "", ErrInvalid
		}
		return countryPrefix + d, nil
	case 10:
		if !validAreaCode(d[:2]) {
			return "", ErrInvalid
		}
		return countryPrefix + d, nil
	}

	return "", ErrInvalid
}

// IsValidCanonical re-checks an already-canonical value: 12 or 13 digits,
// country prefix present, digits only. Checked at enqueue and again at
// dispatch.
func IsValidCanonical(p string) bool {
	if len(p) != 12 && len(p) != 13 {
		return false
	}
	if !strings.HasPrefix(p, countryPrefix) {
		return false
	}
	for i := 0; i < len(p); i++ {
		if p[i] < '0' || p[i] > '9' {
			return false
		}
	}
	return true
}

func digitsOnly(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Brazilian area codes run 11-99 and never end in zero.
func validAreaCode(dd string) bool {
	if len(dd) != 2 {
		return false
	}
	return dd[0] >= '1' && dd[0] <= '9' && dd[1] >= '1' && dd[1] <= '9'
}
