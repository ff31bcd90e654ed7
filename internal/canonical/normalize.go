package canonical

import (
	"strings"
	"unicode"
)

// NormalizeActor reduces a raw sender/receiver/contact identifier to a stable
// canonical form so the same person matches across sources:
//   - "tel:" URI prefixes are stripped
//   - anything containing "@" is treated as an email and lowercased
//   - anything containing digits keeps only the digits, preserving one
//     leading "+"
//   - everything else is lowercased verbatim
//
// Returns "" when the value carries no identity at all.
func NormalizeActor(value string) string {
	text := strings.TrimSpace(value)
	if text == "" {
		return ""
	}
	if strings.HasPrefix(strings.ToLower(text), "tel:") {
		text = text[4:]
	}
	if strings.Contains(text, "@") {
		return strings.ToLower(text)
	}

	var digits strings.Builder
	for _, r := range text {
		if unicode.IsDigit(r) {
			digits.WriteRune(r)
		}
	}
	if digits.Len() > 0 {
		if strings.HasPrefix(strings.TrimSpace(text), "+") {
			return "+" + digits.String()
		}
		return digits.String()
	}
	return strings.ToLower(text)
}

// NormalizePhone canonicalizes a phone number, returning "" when the input
// has no digits.
func NormalizePhone(value string) string {
	canonical := NormalizeActor(value)
	if canonical == "" || strings.Contains(canonical, "@") {
		return ""
	}
	if !hasDigit(canonical) {
		return ""
	}
	return canonical
}

// NormalizeEmail lowercases and trims an email, returning "" for values that
// do not look like one.
func NormalizeEmail(value string) string {
	text := strings.ToLower(strings.TrimSpace(value))
	if !strings.Contains(text, "@") {
		return ""
	}
	return text
}

// ComposeDisplayName joins non-empty name parts with a single space.
func ComposeDisplayName(parts ...string) string {
	kept := parts[:0:0]
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, " ")
}

func hasDigit(s string) bool {
	for _, r := range s {
		if unicode.IsDigit(r) {
			return true
		}
	}
	return false
}
