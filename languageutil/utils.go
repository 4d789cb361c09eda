package languageutil

import (
	"crypto/md5"
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var foldCaser = cases.Fold()

var deaccenter = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Slugify turns free text into a stable URL-safe slug: accents stripped,
// case folded, runs of non-alphanumerics collapsed to single dashes. Text
// with no usable characters falls back to a short content hash so the slug
// is never empty.
func Slugify(text string) string {
	deaccented, _, err := transform.String(deaccenter, text)
	if err != nil {
		deaccented = text
	}
	folded := foldCaser.String(deaccented)

	var b strings.Builder
	lastDash := true
	for _, r := range folded {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	slug := strings.Trim(b.String(), "-")
	if slug == "" {
		return fmt.Sprintf("%x", md5.Sum([]byte(text)))[:8]
	}
	return slug
}
