package quiz

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// normalizeOptions controls the text normalization pipeline shared by the
// fill-in-the-blank matcher and the matching equivalence classes.
type normalizeOptions struct {
	keepCase   bool
	stripPunct bool
	collapseWS bool
}

// stripMarks builds an NFD decompose + combining-mark removal chain, giving
// diacritic-insensitive comparison ("café" == "cafe"). transform.Chain
// carries internal buffers between Transform calls, so every caller gets its
// own chain; scoring runs this from concurrent requests.
func stripMarks() transform.Transformer {
	return transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
}

func normalizeText(s string, opts normalizeOptions) string {
	if folded, _, err := transform.String(stripMarks(), s); err == nil {
		s = folded
	}
	if !opts.keepCase {
		s = strings.ToLower(s)
	}
	if opts.stripPunct {
		var b strings.Builder
		b.Grow(len(s))
		for _, r := range s {
			if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
				b.WriteRune(r)
			}
		}
		s = b.String()
	}
	if opts.collapseWS {
		s = strings.Join(strings.Fields(s), " ")
	}
	return strings.TrimSpace(s)
}

// foldText is the aggressive normalization used for matching-answer
// equivalence classes: case-, diacritic- and whitespace-insensitive.
func foldText(s string) string {
	return normalizeText(s, normalizeOptions{collapseWS: true})
}
