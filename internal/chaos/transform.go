package chaos

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// EmptyEmojiAnswer replaces an answer that had no emoji left at all.
const EmptyEmojiAnswer = "🤐"

// Reverse returns text with its characters in reverse order. Text is NFC
// normalized first so accents composed in the input stay on their letter.
func Reverse(text string) string {
	runes := []rune(norm.NFC.String(text))
	for i, j := 0, len(runes)-1; i < j; i, j = i+1, j-1 {
		runes[i], runes[j] = runes[j], runes[i]
	}
	return string(runes)
}

// EmojiOnly strips everything that is not part of an emoji sequence.
func EmojiOnly(text string) string {
	var b strings.Builder
	for _, r := range text {
		if isEmojiRune(r) {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return EmptyEmojiAnswer
	}
	out := b.String()
	// a sequence can't start with a joiner or modifier once its base was stripped
	return strings.TrimLeftFunc(out, isEmojiComponent)
}

func isEmojiComponent(r rune) bool {
	switch {
	case r == 0x200D: // zero width joiner
		return true
	case r >= 0xFE00 && r <= 0xFE0F: // variation selectors
		return true
	case r >= 0x1F3FB && r <= 0x1F3FF: // skin tone modifiers
		return true
	case r >= 0xE0020 && r <= 0xE007F: // tag sequences
		return true
	}
	return false
}

func isEmojiRune(r rune) bool {
	if isEmojiComponent(r) {
		return true
	}
	switch {
	case r >= 0x1F000 && r <= 0x1FAFF: // pictographs, emoticons, flags, symbols
		return true
	case r >= 0x2600 && r <= 0x27BF: // misc symbols, dingbats
		return true
	case r >= 0x2B00 && r <= 0x2BFF: // arrows, stars
		return true
	case r == 0x00A9 || r == 0x00AE || r == 0x203C || r == 0x2049 || r == 0x2122 || r == 0x2139:
		return true
	case r >= 0x2190 && r <= 0x21FF: // arrows
		return unicode.IsSymbol(r)
	}
	return false
}
