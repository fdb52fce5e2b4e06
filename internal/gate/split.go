package gate

import (
	"strings"
	"unicode"
)

// SplitSentences splits a narrative after '.', '!' or '?' followed by
// whitespace or end of text, and at newlines. Citation tokens that follow
// a terminator on the same line belong to the sentence before them.
// Blank sentences are dropped.
func SplitSentences(text string) []string {
	runes := []rune(text)
	var sentences []string
	start := 0

	emit := func(end int) {
		if s := strings.TrimSpace(string(runes[start:end])); s != "" {
			sentences = append(sentences, s)
		}
		start = end
	}

	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if r == '\n' || r == '\r' {
			emit(i)
			start = i + 1
			continue
		}
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		if i+1 < len(runes) && !unicode.IsSpace(runes[i+1]) {
			continue
		}
		end := attachCitations(runes, i+1)
		emit(end)
		i = end - 1
	}
	emit(len(runes))
	return sentences
}

// attachCitations returns the index after any citation tokens that follow
// pos on the same line, separated only by spaces or tabs
func attachCitations(runes []rune, pos int) int {
	end := pos
	for {
		j := end
		for j < len(runes) && (runes[j] == ' ' || runes[j] == '\t') {
			j++
		}
		if !hasCitationPrefix(runes[j:]) {
			return end
		}
		closing := -1
		for k := j; k < len(runes) && runes[k] != '\n'; k++ {
			if runes[k] == ']' {
				closing = k
				break
			}
		}
		if closing < 0 {
			return end
		}
		end = closing + 1
	}
}

func hasCitationPrefix(runes []rune) bool {
	const prefix = "[claim:"
	if len(runes) < len(prefix) {
		return false
	}
	return strings.EqualFold(string(runes[:len(prefix)]), prefix)
}
