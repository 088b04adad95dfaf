package text

import (
	"strings"
	"unicode"
)

// SplitSentences splits text into sentences on common terminators.
// A terminator only ends a sentence when followed by whitespace and an
// upper-case letter (or end of text), which keeps abbreviations and
// decimal points from over-splitting. Terminators stay attached to
// their sentence. Text without any terminator is one sentence.
func SplitSentences(text string) []string {
	if len(strings.TrimSpace(text)) == 0 {
		return nil
	}

	var sentences []string
	var current strings.Builder
	runes := []rune(text)

	emit := func() {
		s := strings.TrimSpace(current.String())
		current.Reset()
		if s != "" {
			sentences = append(sentences, s)
		}
	}

	for i := 0; i < len(runes); i++ {
		r := runes[i]
		current.WriteRune(r)

		if r != '.' && r != '!' && r != '?' {
			continue
		}

		// End of text after a terminator always closes the sentence.
		if i+1 >= len(runes) {
			emit()
			continue
		}

		if !unicode.IsSpace(runes[i+1]) {
			continue
		}

		// Peek past the whitespace run.
		j := i + 1
		for j < len(runes) && unicode.IsSpace(runes[j]) {
			j++
		}
		if j >= len(runes) || unicode.IsUpper(runes[j]) || unicode.IsDigit(runes[j]) {
			emit()
			i = j - 1
		}
	}
	emit()

	return sentences
}
