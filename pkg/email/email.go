// Package email normalizes and validates account email addresses.
package email

import (
	"strings"
	"unicode"

	"github.com/asaskevich/govalidator"
)

// Normalize trims surrounding whitespace and lowercases the address.
func Normalize(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}

// IsValid reports whether address is a syntactically valid email address.
func IsValid(address string) bool {
	return address != "" && len(address) <= 254 && govalidator.IsEmail(address)
}

// DeriveNameFromEmail builds a display name from the local part of an
// address ("jane.doe@x.com" -> "Jane Doe"). Used when no name is supplied.
func DeriveNameFromEmail(address string) string {
	localPart := address
	if at := strings.IndexByte(address, '@'); at > 0 {
		localPart = address[:at]
	}

	parts := strings.FieldsFunc(localPart, func(r rune) bool {
		return r == '.' || r == '_' || r == '-' || r == '+'
	})
	if len(parts) == 0 {
		return "User"
	}

	names := make([]string, 0, 2)
	names = append(names, capitalize(parts[0]))
	if len(parts) > 1 {
		names = append(names, capitalize(parts[len(parts)-1]))
	}
	return strings.Join(names, " ")
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	runes := []rune(s)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
