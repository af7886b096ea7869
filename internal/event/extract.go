package event

import (
	"errors"
	"strings"
)

var (
	// ErrMalformedMention means the text has no '>' closing a mention token.
	ErrMalformedMention = errors.New("mention token is not closed")

	// ErrEmptyQuery means nothing but whitespace follows the mention token.
	ErrEmptyQuery = errors.New("no question after the mention")
)

// ExtractQuery returns the text after the first mention token, trimmed.
//
//	"<@U1> what is 2+2?" -> "what is 2+2?"
func ExtractQuery(text string) (string, error) {
	_, rest, found := strings.Cut(text, ">")
	if !found {
		return "", ErrMalformedMention
	}

	query := strings.TrimSpace(rest)
	if query == "" {
		return "", ErrEmptyQuery
	}
	return query, nil
}
