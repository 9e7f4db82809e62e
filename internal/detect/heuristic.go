package detect

import (
	"context"
	"strings"
	"unicode"
)

// HeuristicRecognizer is a model-free recognizer for installations without
// a downloaded NER model. It guesses PERSON/ORGANIZATION/LOCATION from
// capitalization shape and a few corporate and prepositional cues. Scores
// are deliberately modest; the confidence scorer treats them as native
// model scores like any other recognizer's.
type HeuristicRecognizer struct{}

var orgSuffixes = map[string]bool{
	"Inc":     true,
	"Corp":    true,
	"Ltd":     true,
	"LLC":     true,
	"Co":      true,
	"Group":   true,
	"Bank":    true,
	"Agency":  true,
	"Council": true,
}

var locationCues = map[string]bool{
	"in":   true,
	"at":   true,
	"near": true,
	"from": true,
}

func (HeuristicRecognizer) Recognize(ctx context.Context, text string) ([]RawEntity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	words := SplitWords(text)
	out := make([]RawEntity, 0)
	i := 0
	for i < len(words) {
		if !capitalizedWord(words[i].Text) || i == 0 && len(words[i].Text) <= 2 {
			i++
			continue
		}
		// Extend over the run of capitalized words.
		j := i
		for j+1 < len(words) && capitalizedWord(words[j+1].Text) && adjacentWords(text, words[j], words[j+1]) {
			j++
		}
		run := words[i : j+1]
		last := run[len(run)-1]
		switch {
		case orgSuffixes[strings.TrimSuffix(last.Text, ".")]:
			end := last.End
			// Keep a trailing period that belongs to the suffix ("Inc.").
			if end < len(text) && text[end] == '.' {
				end++
			}
			out = append(out, RawEntity{Type: "ORGANIZATION", Start: run[0].Start, End: end, Score: 0.65, Source: "heuristic"})
		case len(run) >= 2:
			out = append(out, RawEntity{Type: "PERSON", Start: run[0].Start, End: last.End, Score: 0.55, Source: "heuristic"})
		case i > 0 && locationCues[strings.ToLower(words[i-1].Text)]:
			out = append(out, RawEntity{Type: "LOCATION", Start: run[0].Start, End: last.End, Score: 0.5, Source: "heuristic"})
		}
		i = j + 1
	}
	return out, nil
}

// capitalizedWord reports an initial uppercase letter followed by only
// lowercase letters, the shape of a name token.
func capitalizedWord(s string) bool {
	runes := []rune(s)
	if len(runes) == 0 || !unicode.IsUpper(runes[0]) {
		return false
	}
	for _, r := range runes[1:] {
		if unicode.IsUpper(r) || unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// adjacentWords reports whether only spaces separate a and b, so a run does
// not leak across punctuation or line breaks.
func adjacentWords(text string, a, b Token) bool {
	for _, r := range text[a.End:b.Start] {
		if r != ' ' {
			return false
		}
	}
	return true
}
