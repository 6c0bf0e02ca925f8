package services

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// stripAccents zerlegt nach NFD, entfernt kombinierende Zeichen und setzt
// wieder zu NFC zusammen.
var stripAccents = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// tokenRE trennt Wort-Tokens von Interpunktions-Läufen.
var tokenRE = regexp.MustCompile(`[\p{L}\p{N}]+|[^\p{L}\p{N}\s]+`)

// Normalize erzeugt die Matching-Form eines Textes: Akzente entfernt,
// kleingeschrieben, Whitespace kollabiert, nur Tokens mit mehr als einem
// Zeichen bleiben erhalten. Wird für title_first_author verwendet.
func Normalize(s string) string {
	stripped, _, err := transform.String(stripAccents, s)
	if err != nil {
		stripped = s
	}
	stripped = strings.ToLower(stripped)

	tokens := tokenRE.FindAllString(stripped, -1)
	kept := tokens[:0]
	for _, tok := range tokens {
		if utf8.RuneCountInString(tok) > 1 {
			kept = append(kept, tok)
		}
	}
	return strings.Join(kept, " ")
}
