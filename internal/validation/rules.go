package validation

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// \s is ASCII-only in RE2; \p{Zs} adds no-break and other Unicode spaces.
var (
	namePattern  = regexp.MustCompile(`^[A-Za-z\s\p{Zs}']*$`)
	phonePattern = regexp.MustCompile(`^[0-9\s\p{Zs}.\-()]{6,25}$`)
)

// HasNoRepeatingLetters reports false when s holds a run of three or more identical
// ASCII letters, compared case-insensitively ("AAAaron", "Bellle").
func HasNoRepeatingLetters(s string) bool {
	var prev byte
	run := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !isASCIILetter(c) {
			run = 0
			prev = 0
			continue
		}
		c = toLower(c)
		if c == prev {
			run++
		} else {
			prev = c
			run = 1
		}
		if run >= 3 {
			return false
		}
	}
	return true
}

// ValidName letters, whitespace and apostrophes only, without a repeating-letter run.
// The empty string is a valid name.
func ValidName(s string) bool {
	return namePattern.MatchString(s) && HasNoRepeatingLetters(s)
}

// ValidateVarcharNoDigit is the historical name of ValidName.
func ValidateVarcharNoDigit(s string) bool {
	return ValidName(s)
}

// ValidPlaceName non-empty and free of repeating-letter runs. Used for addresses and countries.
func ValidPlaceName(s string) bool {
	return s != "" && HasNoRepeatingLetters(s)
}

// ValidPhoneNumber digits, whitespace, dots, hyphens and parentheses, 6 to 25 characters.
func ValidPhoneNumber(s string) bool {
	return phonePattern.MatchString(s)
}

// ValidSex accepts the two literal codes "F" and "M".
func ValidSex(s string) bool {
	return s == "F" || s == "M"
}

// ValidDate checks value against format, one of dd<sep>mm<sep>yyyy, yyyy<sep>mm<sep>dd or
// mm<sep>dd<sep>yyyy. The date must exist in the calendar and must not be after now.
func ValidDate(value, format, separator string, now time.Time) bool {
	if separator == "" {
		return false
	}
	parts := strings.Split(value, separator)
	if len(parts) != 3 {
		return false
	}

	var day, month, year string
	switch format {
	case "dd" + separator + "mm" + separator + "yyyy":
		day, month, year = parts[0], parts[1], parts[2]
	case "yyyy" + separator + "mm" + separator + "dd":
		year, month, day = parts[0], parts[1], parts[2]
	case "mm" + separator + "dd" + separator + "yyyy":
		month, day, year = parts[0], parts[1], parts[2]
	default:
		return false
	}

	d, err := atoi(day)
	if err != nil {
		return false
	}
	m, err := atoi(month)
	if err != nil {
		return false
	}
	y, err := atoi(year)
	if err != nil || y < 1 || y > 9999 {
		return false
	}
	if m < 1 || m > 12 || d < 1 {
		return false
	}

	t := time.Date(y, time.Month(m), d, 0, 0, 0, 0, now.Location())
	// time.Date normalizes 31-02 to 03-03
	if t.Day() != d || int(t.Month()) != m || t.Year() != y {
		return false
	}
	return !t.After(now)
}

func atoi(s string) (int, error) {
	return strconv.Atoi(strings.TrimSpace(s))
}

func isASCIILetter(c byte) bool {
	return ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}

func toLower(c byte) byte {
	if 'A' <= c && c <= 'Z' {
		return c + 'a' - 'A'
	}
	return c
}
