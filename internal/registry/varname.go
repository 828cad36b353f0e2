package registry

import (
	"path/filepath"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var tokenSeparators = regexp.MustCompile(`[\s&-]+`)

// VarName derives the import binding for an image file:
// "Marianna and Paul-273.jpg" becomes "mariannaAndPaul273Img" with suffix "Img".
//
// Characters that cannot appear in an identifier are dropped, a name that would
// start with a digit gets a leading underscore, and a name with nothing left
// falls back to "image".
func VarName(filename, suffix string) string {
	base := filepath.Base(filename)
	base = strings.TrimSuffix(base, filepath.Ext(base))

	var b strings.Builder
	for _, raw := range tokenSeparators.Split(base, -1) {
		word := identChars(raw)
		if word == "" {
			continue
		}
		if b.Len() == 0 {
			b.WriteString(strings.ToLower(word))
			continue
		}
		first, size := utf8.DecodeRuneInString(word)
		b.WriteRune(unicode.ToUpper(first))
		b.WriteString(strings.ToLower(word[size:]))
	}

	name := b.String()
	if name == "" {
		name = "image"
	}
	if first, _ := utf8.DecodeRuneInString(name); unicode.IsDigit(first) {
		name = "_" + name
	}
	return name + suffix
}

func identChars(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '$' {
			return r
		}
		return -1
	}, s)
}
