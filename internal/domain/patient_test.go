package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestGeneratePatientCode(t *testing.T) {
	tests := []struct {
		name      string
		first     string
		last      string
		birthDate string
		expected  string
	}{
		{"initials", "m", "s", "1950-03-07", "MS-07-03-1950"},
		{"already uppercase", "A", "B", "1999-12-31", "AB-31-12-1999"},
		{"only first letter is used", "maria", "schmidt", "1942-01-15", "MS-15-01-1942"},
		{"umlaut initial", "ö", "ü", "1960-06-01", "ÖÜ-01-06-1960"},
		{"surrounding whitespace", " k ", " l", "1970-10-10", "KL-10-10-1970"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, err := GeneratePatientCode(tt.first, tt.last, tt.birthDate)
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if code != tt.expected {
				t.Errorf("Expected %s, got %s", tt.expected, code)
			}
		})
	}
}

func TestGeneratePatientCode_InvalidInput(t *testing.T) {
	future := time.Now().AddDate(1, 0, 0).Format(BirthDateLayout)

	tests := []struct {
		name      string
		first     string
		last      string
		birthDate string
	}{
		{"empty first", "", "S", "1950-03-07"},
		{"empty last", "M", "", "1950-03-07"},
		{"digit initial", "1", "S", "1950-03-07"},
		{"german date format", "M", "S", "07.03.1950"},
		{"impossible date", "M", "S", "1950-02-30"},
		{"future birth date", "M", "S", future},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := GeneratePatientCode(tt.first, tt.last, tt.birthDate)
			if !errors.Is(err, ErrInvalidPatientInput) {
				t.Errorf("Expected ErrInvalidPatientInput, got %v", err)
			}
		})
	}
}

func TestValidatePatientCode(t *testing.T) {
	future := time.Now().AddDate(1, 0, 0)

	tests := []struct {
		name  string
		code  string
		valid bool
	}{
		{"generated code", "MS-07-03-1950", true},
		{"umlaut initials", "ÖÜ-01-06-1960", true},
		{"full name", "Maximilian Mustermann", false},
		{"name with date", "Max Mustermann 07.03.1950", false},
		{"lowercase initials", "ms-07-03-1950", false},
		{"three initials", "MSK-07-03-1950", false},
		{"iso date order", "MS-1950-03-07", false},
		{"impossible date", "MS-30-02-1950", false},
		{"future birth date", fmt.Sprintf("MS-%02d-%02d-%04d", future.Day(), int(future.Month()), future.Year()), false},
		{"trailing text", "MS-07-03-1950 Schmidt", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePatientCode(tt.code)
			if tt.valid && err != nil {
				t.Errorf("Expected %q to be valid, got %v", tt.code, err)
			}
			if !tt.valid && !errors.Is(err, ErrInvalidPatientInput) {
				t.Errorf("Expected ErrInvalidPatientInput for %q, got %v", tt.code, err)
			}
		})
	}
}

func TestGeneratePatientCode_RoundTrips(t *testing.T) {
	code, err := GeneratePatientCode("élise", "ørsted", "1988-11-02")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if err := ValidatePatientCode(code); err != nil {
		t.Errorf("Generated code %q does not validate: %v", code, err)
	}
}
