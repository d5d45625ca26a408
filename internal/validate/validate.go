// Package validate decides whether free-text answers are usable.
package validate

import (
	"regexp"
	"strings"
)

var cadastralRe = regexp.MustCompile(`^\d{1,3}:\d{1,3}:\d{1,10}:\d{1,10}$`)

// noneSentinels are the answers meaning "no cadastral number".
var noneSentinels = map[string]struct{}{
	"none": {},
	"no":   {},
	"n":    {},
	"нет":  {},
}

// IsNone reports whether text is one of the "none" answers.
func IsNone(text string) bool {
	_, ok := noneSentinels[strings.ToLower(strings.TrimSpace(text))]
	return ok
}

// IsValidAddress requires at least two whitespace-separated tokens, e.g. a
// street plus a house number or city.
func IsValidAddress(text string) bool {
	return len(strings.Fields(text)) >= 2
}

// IsValidCadastralNumber accepts a "none" answer or a four-segment
// colon-delimited number such as 77:01:0004010:1234.
func IsValidCadastralNumber(text string) bool {
	if IsNone(text) {
		return true
	}
	return cadastralRe.MatchString(strings.TrimSpace(text))
}
