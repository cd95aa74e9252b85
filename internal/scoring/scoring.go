// Package scoring turns dictionary meanings into a word complexity score.
package scoring

import (
	"math"

	"github.com/itsannaw/word-complexity-api/internal/dictionary"
)

// Score returns the complexity score of a word given its meanings.
//
// The score is the number of distinct synonyms plus distinct antonyms across
// all meanings, divided by the total number of definitions, rounded to two
// decimals. Missing meanings or zero definitions score 0.
func Score(meanings []dictionary.Meaning) float64 {
	if len(meanings) == 0 {
		return 0
	}

	totalDefinitions := 0
	for _, m := range meanings {
		totalDefinitions += len(m.Definitions)
	}
	if totalDefinitions == 0 {
		return 0
	}

	synonyms := make(map[string]struct{})
	antonyms := make(map[string]struct{})
	for _, m := range meanings {
		for _, s := range m.Synonyms {
			synonyms[s] = struct{}{}
		}
		for _, a := range m.Antonyms {
			antonyms[a] = struct{}{}
		}
	}

	score := float64(len(synonyms)+len(antonyms)) / float64(totalDefinitions)
	return Round(score)
}

// Round rounds x to two decimal places
func Round(x float64) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) || x < 0 {
		return 0
	}
	return math.Round(x*100) / 100
}
