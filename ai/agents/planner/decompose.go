package planner

import (
	"regexp"
	"strings"
	"unicode"
)

// mathToken matches the characters that mark a sentence as an equation or
// computation. Such sentences stay atomic: equation text routinely contains
// commas (function arguments, coordinate pairs) that must not split a step.
var mathToken = regexp.MustCompile(`[0-9=+\-*/^()]`)

// Decompose splits a problem statement into ordered step texts. It is a pure
// function of its input.
//
// Sentences are cut on `.`, `?` or `!` followed by whitespace. A sentence
// containing digits or arithmetic characters becomes one atomic step;
// otherwise it is split on commas into separate steps. Empty fragments are
// dropped and original sentence order is preserved.
func Decompose(problem string) []string {
	var steps []string
	for _, sentence := range splitSentences(problem) {
		sentence = strings.TrimSpace(sentence)
		if sentence == "" {
			continue
		}
		if mathToken.MatchString(sentence) {
			steps = append(steps, sentence)
			continue
		}
		if strings.Contains(sentence, ",") {
			for _, part := range strings.Split(sentence, ",") {
				if part = strings.TrimSpace(part); part != "" {
					steps = append(steps, part)
				}
			}
			continue
		}
		steps = append(steps, sentence)
	}
	return steps
}

// splitSentences cuts text after sentence-ending punctuation that is
// followed by whitespace, keeping the punctuation with its sentence.
func splitSentences(text string) []string {
	var sentences []string
	runes := []rune(text)
	start := 0
	for i := 0; i < len(runes); i++ {
		switch runes[i] {
		case '.', '?', '!':
			if i+1 >= len(runes) || !unicode.IsSpace(runes[i+1]) {
				continue
			}
			sentences = append(sentences, string(runes[start:i+1]))
			j := i + 1
			for j < len(runes) && unicode.IsSpace(runes[j]) {
				j++
			}
			start = j
			i = j - 1
		}
	}
	if start < len(runes) {
		sentences = append(sentences, string(runes[start:]))
	}
	return sentences
}
