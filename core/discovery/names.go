package discovery

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var whitespace = regexp.MustCompile(`\s+`)

// ConvertName returns the topic-safe form of a name: lower case with spaces
// replaced by underscores.
func ConvertName(name string) string {
	return strings.ToLower(strings.ReplaceAll(name, " ", "_"))
}

// ConvertFriendlyName returns a title-cased, space separated form of a name.
func ConvertFriendlyName(name string) string {
	words := splitWords(name)
	for i, w := range words {
		words[i] = strings.ToLower(w)
	}
	return cases.Title(language.Und).String(strings.Join(words, " "))
}

// UniqueID derives the entity unique_id from the VIN and element name.
func UniqueID(vin, name string) string {
	return whitespace.ReplaceAllString(strings.ToLower(vin+"-"+name), "-")
}

// splitWords breaks s on non-alphanumeric runes, lower-to-upper humps,
// acronym boundaries and letter/digit transitions.
func splitWords(s string) []string {
	var (
		words []string
		cur   []rune
	)
	flush := func() {
		if len(cur) > 0 {
			words = append(words, string(cur))
			cur = cur[:0]
		}
	}
	runes := []rune(s)
	for i, r := range runes {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			flush()
			continue
		}
		if len(cur) > 0 {
			prev := cur[len(cur)-1]
			switch {
			case unicode.IsLower(prev) && unicode.IsUpper(r):
				flush()
			case unicode.IsUpper(prev) && unicode.IsUpper(r) && i+1 < len(runes) && unicode.IsLower(runes[i+1]):
				flush()
			case unicode.IsDigit(prev) != unicode.IsDigit(r):
				flush()
			}
		}
		cur = append(cur, r)
	}
	flush()
	return words
}
