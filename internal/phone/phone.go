// Package phone reduces free-form phone numbers to matching and dialing forms.
package phone

import "strings"

// CountryCode is the international prefix of the local numbering plan.
const CountryCode = "972"

const trunkPrefix = "0"

// subscriberLength is the length of a local number once the trunk prefix is dropped.
const subscriberLength = 9

// Digits keeps ASCII digits only.
func Digits(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for i := 0; i < len(raw); i++ {
		if c := raw[i]; c >= '0' && c <= '9' {
			b.WriteByte(c)
		}
	}
	return b.String()
}

// SubscriberNumber returns the number without country code or trunk prefix. This is the
// form used as a matching key.
func SubscriberNumber(raw string) string {
	digits := Digits(raw)
	digits = strings.TrimPrefix(digits, CountryCode)
	return strings.TrimPrefix(digits, trunkPrefix)
}

// DialingNumber returns the country-code-prefixed number expected by messaging APIs.
// ok is false when the input has no digits.
func DialingNumber(raw string) (number string, ok bool) {
	digits := Digits(raw)
	switch {
	case digits == "":
		return "", false
	case strings.HasPrefix(digits, CountryCode):
		return digits, true
	case strings.HasPrefix(digits, trunkPrefix):
		return CountryCode + digits[len(trunkPrefix):], true
	case len(digits) == subscriberLength:
		return CountryCode + digits, true
	default:
		return digits, true
	}
}
