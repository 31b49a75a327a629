package middleware

import (
	"errors"
	"strings"
	"unicode/utf8"
)

// MaxQueryLength caps a free-text flight request, in runes.
const MaxQueryLength = 1000

// ValidateQueryText validates a free-text flight request.
func ValidateQueryText(text string) error {
	if !utf8.ValidString(text) {
		return errors.New("text must be valid UTF-8")
	}
	if strings.TrimSpace(text) == "" {
		return errors.New("text cannot be empty")
	}
	if utf8.RuneCountInString(text) > MaxQueryLength {
		return errors.New("text exceeds maximum length")
	}
	return nil
}
