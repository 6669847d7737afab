package domain

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

// BirthDateLayout is the calendar date format used for birth dates everywhere.
const BirthDateLayout = "2006-01-02"

var patientCodePattern = regexp.MustCompile(`^(\p{Lu})(\p{Lu})-(\d{2})-(\d{2})-(\d{4})$`)

// GeneratePatientCode builds the pseudonymous patient identifier
// "<first initial><last initial>-DD-MM-YYYY". Only the first letter of each
// input is used, so callers may pass initials or names; nothing else survives.
func GeneratePatientCode(firstInitial, lastInitial, birthDate string) (string, error) {
	first, ok := initial(firstInitial)
	if !ok {
		return "", fmt.Errorf("%w: first initial is required", ErrInvalidPatientInput)
	}
	last, ok := initial(lastInitial)
	if !ok {
		return "", fmt.Errorf("%w: last initial is required", ErrInvalidPatientInput)
	}

	born, err := ParseBirthDate(birthDate)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("%c%c-%02d-%02d-%04d", first, last, born.Day(), int(born.Month()), born.Year()), nil
}

// ValidatePatientCode accepts only codes GeneratePatientCode can produce: two
// uppercase initials and a real, non-future birth date. Anything else, such as a
// full name, is rejected before it can be stored or logged.
func ValidatePatientCode(code string) error {
	m := patientCodePattern.FindStringSubmatch(code)
	if m == nil {
		return fmt.Errorf("%w: patient code must be initials and birth date, e.g. AB-DD-MM-YYYY", ErrInvalidPatientInput)
	}
	if _, err := ParseBirthDate(m[5] + "-" + m[4] + "-" + m[3]); err != nil {
		return err
	}
	return nil
}

// ParseBirthDate parses a YYYY-MM-DD date and rejects dates in the future.
func ParseBirthDate(birthDate string) (time.Time, error) {
	born, err := time.Parse(BirthDateLayout, strings.TrimSpace(birthDate))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: birth date must be YYYY-MM-DD", ErrInvalidPatientInput)
	}
	if born.After(time.Now()) {
		return time.Time{}, fmt.Errorf("%w: birth date lies in the future", ErrInvalidPatientInput)
	}
	return born, nil
}

func initial(s string) (rune, bool) {
	s = strings.TrimSpace(s)
	r, _ := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError || !unicode.IsLetter(r) {
		return 0, false
	}
	upper := unicode.ToUpper(r)
	if !unicode.IsUpper(upper) {
		return 0, false
	}
	return upper, true
}
