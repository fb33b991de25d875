package domain

import (
	"errors"
	"regexp"
	"strings"
)

var ErrInvalidLanguage = errors.New("invalid language code")

var languagePattern = regexp.MustCompile(`^[a-z]{2,3}(-[a-z0-9]{2,8})*$`)

// Language is a normalized ISO language tag ("en", "es", "zh-cn").
type Language string

func ParseLanguage(raw string) (Language, error) {
	code := strings.ToLower(strings.TrimSpace(raw))
	code = strings.ReplaceAll(code, "_", "-")
	if !languagePattern.MatchString(code) {
		return "", ErrInvalidLanguage
	}
	return Language(code), nil
}

func (l Language) String() string { return string(l) }
