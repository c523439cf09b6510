package utils

import (
	"net/mail"
	"regexp"
	"strings"
	"unicode/utf8"
)

// nicknameRe matches valid in-game names: 3–16 chars, alphanumeric and
// underscore, same rule Mojang applies to player names.
var nicknameRe = regexp.MustCompile(`^[A-Za-z0-9_]{3,16}$`)

// ValidNickname reports whether s is an acceptable in-game name.
func ValidNickname(s string) bool {
	return nicknameRe.MatchString(s)
}

// ValidEmail reports whether s parses as a bare RFC 5322 address.
func ValidEmail(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	a, err := mail.ParseAddress(s)
	return err == nil && a.Address == s
}

// LenInRange reports whether the trimmed text length in runes falls inside
// [min, max]. Used for the content-quality gates on free-text fields.
func LenInRange(s string, min, max int) bool {
	n := utf8.RuneCountInString(strings.TrimSpace(s))
	return n >= min && n <= max
}
