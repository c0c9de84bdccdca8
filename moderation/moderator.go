// Package moderation filters relayed chat messages against a
// configured word list before fan-out.
package moderation

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"unicode"

	goahocorasick "github.com/anknown/ahocorasick"
)

// Moderator masks forbidden words in relayed messages. Matching runs
// on a normalized view of the text (lowercased, punctuation stripped,
// common digit substitutions folded back to letters) while the
// replacement is applied to the original runes, so spacing and casing
// around the masked span are preserved.
type Moderator struct {
	machine     *goahocorasick.Machine
	replacement rune
}

func NewModerator(words []string, replacement rune) (*Moderator, error) {
	if len(words) == 0 {
		return nil, fmt.Errorf("empty word list")
	}
	patterns := make([][]rune, 0, len(words))
	for _, word := range words {
		normalized, _ := normalize([]rune(word))
		if len(normalized) > 0 {
			patterns = append(patterns, normalized)
		}
	}

	machine := new(goahocorasick.Machine)
	if err := machine.Build(patterns); err != nil {
		return nil, fmt.Errorf("building word matcher: %w", err)
	}
	return &Moderator{machine: machine, replacement: replacement}, nil
}

// Censor replaces every forbidden span with the replacement rune.
func (m *Moderator) Censor(message string) string {
	original := []rune(message)
	normalized, indexes := normalize(original)
	if len(normalized) == 0 {
		return message
	}

	matches := m.machine.MultiPatternSearch(normalized, false)
	if len(matches) == 0 {
		return message
	}

	for _, match := range matches {
		start := match.Pos
		end := start + len(match.Word)
		if start < 0 || end > len(indexes) {
			continue
		}
		// indexes maps normalized positions back to the original text.
		for i := indexes[start]; i <= indexes[end-1]; i++ {
			original[i] = m.replacement
		}
	}
	return string(original)
}

// normalize lowercases the runes, folds common leet substitutions and
// drops separators, returning for each kept rune its position in the
// input.
func normalize(input []rune) ([]rune, []int) {
	normalized := make([]rune, 0, len(input))
	indexes := make([]int, 0, len(input))
	for i, r := range input {
		folded := foldRune(r)
		if !unicode.IsLetter(folded) && !unicode.IsNumber(folded) {
			continue
		}
		normalized = append(normalized, unicode.ToLower(folded))
		indexes = append(indexes, i)
	}
	return normalized, indexes
}

var leet = map[rune]rune{
	'4': 'a', '@': 'a',
	'3': 'e', '€': 'e',
	'1': 'i', '!': 'i',
	'0': 'o',
	'5': 's', '$': 's',
	'7': 't',
}

func foldRune(r rune) rune {
	if mapped, ok := leet[r]; ok {
		return mapped
	}
	return r
}

// LoadWordList reads one forbidden word per line, ignoring blanks and
// #-comments.
func LoadWordList(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening word list: %w", err)
	}
	defer file.Close()

	var words []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		words = append(words, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading word list: %w", err)
	}
	return words, nil
}
