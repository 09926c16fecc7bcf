package extract

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/ppiankov/credence/internal/model"
)

// Abbreviations that end in a period without ending the sentence
var abbreviations = map[string]bool{
	"art": true, "arts": true, "para": true, "paras": true, "sec": true, "no": true,
	"nos": true, "cf": true, "e.g": true, "i.e": true, "etc": true, "vs": true,
	"approx": true, "reg": true, "ch": true, "inc": true, "ltd": true, "co": true,
	"mr": true, "ms": true, "mrs": true, "dr": true, "st": true, "fig": true,
	"u.s": true, "u.k": true, "e.u": true,
}

// Sentences returns the byte spans of the sentences in text, trimmed of surrounding
// whitespace. A sentence ends at '.', '!' or '?' followed by whitespace or end of text,
// unless the period closes a known abbreviation.
func Sentences(text string) []model.Span {
	var spans []model.Span
	start := 0

	emit := func(end int) {
		s := strings.TrimLeftFunc(text[start:end], unicode.IsSpace)
		lead := (end - start) - len(s)
		s = strings.TrimRightFunc(s, unicode.IsSpace)
		if s != "" {
			spans = append(spans, model.Span{Start: start + lead, End: start + lead + len(s)})
		}
	}

	for i := 0; i < len(text); {
		r, size := utf8.DecodeRuneInString(text[i:])
		next := i + size

		switch {
		case r == '\n' && next < len(text) && text[next] == '\n':
			// Blank line separates paragraphs and headings
			emit(i)
			start = next
		case r == '.' || r == '!' || r == '?':
			// Swallow runs like "?!" or "..." and a closing quote or bracket
			for next < len(text) && strings.ContainsRune(".!?\"')]”’", rune(text[next])) {
				next++
			}
			atEnd := next >= len(text)
			if !atEnd {
				nr, _ := utf8.DecodeRuneInString(text[next:])
				if !unicode.IsSpace(nr) {
					break
				}
			}
			if r == '.' && !atEnd && endsWithAbbreviation(text[start:i]) {
				break
			}
			emit(next)
			start = next
		}
		i = next
	}
	if start < len(text) {
		emit(len(text))
	}
	return spans
}

func endsWithAbbreviation(s string) bool {
	s = strings.TrimRightFunc(s, unicode.IsSpace)
	idx := strings.LastIndexFunc(s, unicode.IsSpace)
	word := strings.ToLower(strings.TrimLeft(s[idx+1:], "(\"'"))
	if word == "" {
		return false
	}
	if abbreviations[word] {
		return true
	}
	// Single initials ("J. Smith")
	r, size := utf8.DecodeRuneInString(word)
	return size == len(word) && unicode.IsLetter(r)
}

// SentenceIndex returns the index of the sentence containing offset, or -1
func SentenceIndex(spans []model.Span, offset int) int {
	for i, s := range spans {
		if offset >= s.Start && offset < s.End {
			return i
		}
	}
	return -1
}

// WordCount counts whitespace-separated words
func WordCount(text string) int {
	return len(strings.Fields(text))
}
