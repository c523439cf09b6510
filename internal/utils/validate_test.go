package utils

import (
	"strings"
	"testing"
)

func TestValidNickname(t *testing.T) {
	valid := []string{"Steve123", "abc", "a_b_c", "SIXTEEN_CHARS_OK", "x_1"}
	for _, n := range valid {
		if !ValidNickname(n) {
			t.Errorf("expected %q to be valid", n)
		}
	}
	invalid := []string{
		"",
		"ab",                        // too short
		"seventeen_chars_x",         // too long
		"has space",
		"dash-name",
		"ünïcode",
		"steve!",
	}
	for _, n := range invalid {
		if ValidNickname(n) {
			t.Errorf("expected %q to be invalid", n)
		}
	}
}

func TestValidEmail(t *testing.T) {
	if !ValidEmail("steve@example.com") {
		t.Error("expected plain address to be valid")
	}
	for _, e := range []string{"", "not-an-email", "@example.com", "steve@"} {
		if ValidEmail(e) {
			t.Errorf("expected %q to be invalid", e)
		}
	}
}

func TestLenInRange(t *testing.T) {
	if !LenInRange("hello", 5, 10) {
		t.Error("exact minimum should pass")
	}
	if !LenInRange(strings.Repeat("x", 10), 5, 10) {
		t.Error("exact maximum should pass")
	}
	if LenInRange("hi", 5, 10) {
		t.Error("below minimum should fail")
	}
	if LenInRange(strings.Repeat("x", 11), 5, 10) {
		t.Error("above maximum should fail")
	}
	// Length is measured in runes, and surrounding whitespace is ignored.
	if !LenInRange("  héllo  ", 5, 10) {
		t.Error("trimmed rune count should pass")
	}
}
