package textnorm

import (
	"regexp"
	"strings"

	"github.com/mozillazg/go-unidecode"
	"golang.org/x/text/unicode/norm"
)

// Guild roles and channels are frequently named with decorative Unicode
// (box-drawing dividers, mathematical bold letters, emoji frames). Normalize
// folds all of that down to plain lowercase ASCII so keyword and pattern
// matching works on the text a human actually reads. The output is only for
// matching, never for display.

var (
	// Decorative glyph classes are stripped entirely rather than
	// transliterated; they carry no meaning for matching.
	decorativePatterns = []*regexp.Regexp{
		regexp.MustCompile(`[\x{2500}-\x{257F}]`), // box drawing
		regexp.MustCompile(`[\x{2580}-\x{259F}]`), // block elements
		regexp.MustCompile(`[\x{25A0}-\x{25FF}]`), // geometric shapes
		regexp.MustCompile(`[\x{2600}-\x{26FF}]`), // miscellaneous symbols
		regexp.MustCompile(`[\x{2190}-\x{21FF}]`), // arrows
	}

	bracketPattern    = regexp.MustCompile(`[\[\](){}\x{3008}\x{3009}\x{300A}\x{300B}\x{300C}\x{300D}\x{300E}\x{300F}\x{3010}\x{3011}]`)
	asciiKeepPattern  = regexp.MustCompile(`[^a-zA-Z0-9_\s+\-]`)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

// Normalize converts arbitrary Unicode text to a canonical ASCII token
// string. It is total: any input yields some output, and identical inputs
// always yield identical outputs. A panic anywhere in the pipeline degrades
// to a plain ASCII strip of the raw input.
func Normalize(text string) (result string) {
	defer func() {
		if r := recover(); r != nil {
			result = strings.ToLower(strings.TrimSpace(asciiKeepPattern.ReplaceAllString(text, "")))
		}
	}()

	if text == "" {
		return ""
	}

	// NFKD folds accents and compatibility composites (ℍ𝕖𝕝𝕝𝕠 and Héllo
	// both expose their base letters).
	normalized := norm.NFKD.String(text)

	for _, pattern := range decorativePatterns {
		normalized = pattern.ReplaceAllString(normalized, "")
	}

	// Paired brackets become word separators so "【Staff】" matches "staff".
	normalized = bracketPattern.ReplaceAllString(normalized, " ")
	normalized = whitespacePattern.ReplaceAllString(normalized, " ")
	normalized = strings.TrimSpace(normalized)

	// Best-effort transliteration of whatever non-ASCII survived.
	ascii := unidecode.Unidecode(normalized)

	// Keep + and - so age-range tokens like "18+" and "13-17" survive.
	ascii = asciiKeepPattern.ReplaceAllString(ascii, "")
	ascii = whitespacePattern.ReplaceAllString(ascii, " ")

	return strings.ToLower(strings.TrimSpace(ascii))
}
