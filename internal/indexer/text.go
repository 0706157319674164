package indexer

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// MaxGroupRunes is the largest sentence group stored as one content value.
const MaxGroupRunes = 3000

// languageSampleRunes bounds how much text DetectLanguage inspects.
const languageSampleRunes = 5000

var lineJoiner = strings.NewReplacer("\r\n", "\n", "\r", "\n")

// JoinLines removes the hard line breaks of extracted text. A break after a
// period or comma becomes a space; any other break is dropped, since
// Japanese text wraps mid-sentence without spaces.
func JoinLines(text string) string {
	text = lineJoiner.Replace(text)
	text = strings.ReplaceAll(text, ".\n", ". ")
	text = strings.ReplaceAll(text, ",\n", ", ")
	return strings.ReplaceAll(text, "\n", "")
}

// DetectLanguage returns an ISO 639-1 code for text. More than ten of "は" or
// "い" in the sample marks Japanese; otherwise the dominant script decides,
// defaulting to "en".
func DetectLanguage(text string) string {
	sample := text
	if n := runeOffset(text, languageSampleRunes); n < len(text) {
		sample = text[:n]
	}
	if strings.Count(sample, "は") > 10 || strings.Count(sample, "い") > 10 {
		return "ja"
	}
	var kana, han, hangul, cyrillic, latin int
	for _, r := range sample {
		switch {
		case unicode.In(r, unicode.Hiragana, unicode.Katakana):
			kana++
		case unicode.Is(unicode.Han, r):
			han++
		case unicode.Is(unicode.Hangul, r):
			hangul++
		case unicode.Is(unicode.Cyrillic, r):
			cyrillic++
		case unicode.Is(unicode.Latin, r):
			latin++
		}
	}
	switch {
	case kana > 0 && kana+han > latin:
		return "ja"
	case hangul > latin:
		return "ko"
	case han > latin:
		return "zh"
	case cyrillic > latin:
		return "ru"
	}
	return "en"
}

func runeOffset(s string, n int) int {
	for i := range s {
		if n == 0 {
			return i
		}
		n--
	}
	return len(s)
}

func isSentenceEnd(r rune) bool {
	switch r {
	case '。', '︒', '、', ',', '.':
		return true
	}
	return false
}

// SplitSentences cuts text after each sentence delimiter and packs consecutive
// pieces into groups of at most max runes. A single piece longer than max
// forms its own group. Trailing text without a delimiter is kept.
func SplitSentences(text string, max int) []string {
	groups := []string{}
	var cur strings.Builder
	curLen := 0
	add := func(piece string) {
		n := utf8.RuneCountInString(piece)
		if curLen > 0 && curLen+n > max {
			groups = append(groups, cur.String())
			cur.Reset()
			curLen = 0
		}
		cur.WriteString(piece)
		curLen += n
	}

	start := 0
	for i, r := range text {
		if isSentenceEnd(r) {
			end := i + utf8.RuneLen(r)
			add(text[start:end])
			start = end
		}
	}
	if rest := text[start:]; strings.TrimSpace(rest) != "" {
		add(rest)
	}
	if curLen > 0 {
		groups = append(groups, cur.String())
	}
	return groups
}
