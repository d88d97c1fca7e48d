package gallery

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Slug converts a title to a lowercase, hyphen-separated identifier that is
// safe both as a filename and as a GitHub-style markdown anchor.
//
//	"con/duct Demo"  -> "con-duct-demo"
//	"fMRIPrep 1.2.3" -> "fmriprep-123"
func Slug(title string) string {
	s := strings.ToLower(norm.NFC.String(title))
	s = strings.ReplaceAll(s, "/", "-")

	var b strings.Builder
	b.Grow(len(s))
	pendingSep := false
	for _, r := range s {
		switch {
		case unicode.IsSpace(r) || r == '-':
			pendingSep = true
		case isWordRune(r):
			if pendingSep && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingSep = false
			b.WriteRune(r)
		}
	}
	return b.String()
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.Is(unicode.Mn, r)
}
