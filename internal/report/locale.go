package report

import (
	"fmt"

	"golang.org/x/text/language"

	"github.com/nutricheck-server/internal/domain"
)

var (
	supported = []domain.Language{
		domain.LanguageGerman,
		domain.LanguageEnglish,
		domain.LanguageRussian,
	}
	// First tag is the fallback.
	matcher = language.NewMatcher([]language.Tag{
		language.German,
		language.English,
		language.Russian,
	})
)

// Negotiate picks the best supported language for an Accept-Language header.
func Negotiate(acceptLanguage string) domain.Language {
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return domain.DefaultLanguage
	}
	_, idx, confidence := matcher.Match(tags...)
	if confidence == language.No || idx < 0 || idx >= len(supported) {
		return domain.DefaultLanguage
	}
	return supported[idx]
}

// ParseLanguage accepts a BCP 47 tag such as "de", "en-GB" or "ru-RU" and returns the
// matching report language.
func ParseLanguage(s string) (domain.Language, error) {
	tag, err := language.Parse(s)
	if err != nil {
		return "", fmt.Errorf("%w: %q", domain.ErrInvalidLanguage, s)
	}
	base, _ := tag.Base()
	lang := domain.Language(base.String())
	if !lang.IsValid() {
		return "", fmt.Errorf("%w: %q", domain.ErrInvalidLanguage, s)
	}
	return lang, nil
}
