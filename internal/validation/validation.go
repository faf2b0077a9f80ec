package validation

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"
)

// ErrValidation is the base kind for every boundary validation failure;
// handlers map anything wrapping it to a 400 response.
var ErrValidation = errors.New("validation failed")

// ErrCityEmpty is returned when the city is empty or whitespace-only after trim.
var ErrCityEmpty = fmt.Errorf("%w: city is required", ErrValidation)

// ErrCityTooShort is returned when the city length is below the minimum.
var ErrCityTooShort = fmt.Errorf("%w: city too short", ErrValidation)

// ErrCityTooLong is returned when the city length exceeds the maximum.
var ErrCityTooLong = fmt.Errorf("%w: city too long", ErrValidation)

// ErrCityInvalidChars is returned when the city contains disallowed characters.
var ErrCityInvalidChars = fmt.Errorf("%w: city contains invalid characters", ErrValidation)

// ErrDateRequired is returned when a required date parameter is missing.
var ErrDateRequired = fmt.Errorf("%w: date range is required", ErrValidation)

// ErrDateInvalid is returned when a date parameter cannot be parsed.
var ErrDateInvalid = fmt.Errorf("%w: invalid date", ErrValidation)

// ErrDateRangeInverted is returned when the range starts after it ends.
var ErrDateRangeInverted = fmt.Errorf("%w: date range inverted", ErrValidation)

const dateLayout = "2006-01-02"

// ValidateCity trims the input, enforces length bounds (minLen, maxLen in
// runes), and restricts to allowed characters: letters (Unicode), digits,
// space, comma, hyphen. Returns the trimmed string. Normalization (e.g.
// lowercase) is left to the service layer.
func ValidateCity(input string, minLen, maxLen int) (string, error) {
	s := strings.TrimSpace(input)
	r := []rune(s)
	n := len(r)
	if n == 0 {
		return "", ErrCityEmpty
	}
	if minLen > 0 && n < minLen {
		return "", ErrCityTooShort
	}
	if maxLen > 0 && n > maxLen {
		return "", ErrCityTooLong
	}
	for _, c := range r {
		if !isAllowedCityRune(c) {
			return "", ErrCityInvalidChars
		}
	}
	return s, nil
}

// ParseDateRange parses two YYYY-MM-DD values into an inclusive window:
// from is anchored at midnight UTC and to is expanded to the last instant
// of its day, so a range of a single date covers that whole day without
// spilling into the next one.
func ParseDateRange(fromStr, toStr string) (time.Time, time.Time, error) {
	if strings.TrimSpace(fromStr) == "" || strings.TrimSpace(toStr) == "" {
		return time.Time{}, time.Time{}, ErrDateRequired
	}
	from, err := time.Parse(dateLayout, strings.TrimSpace(fromStr))
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: %q", ErrDateInvalid, fromStr)
	}
	to, err := time.Parse(dateLayout, strings.TrimSpace(toStr))
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: %q", ErrDateInvalid, toStr)
	}
	if from.After(to) {
		return time.Time{}, time.Time{}, ErrDateRangeInverted
	}
	return from, to.AddDate(0, 0, 1).Add(-time.Nanosecond), nil
}

// isAllowedCityRune returns true for letters (Unicode), digits, space, comma, hyphen.
func isAllowedCityRune(r rune) bool {
	if unicode.IsLetter(r) || unicode.IsNumber(r) {
		return true
	}
	switch r {
	case ' ', ',', '-':
		return true
	}
	return false
}
