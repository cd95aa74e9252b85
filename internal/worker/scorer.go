package worker

import (
	"context"
	"log/slog"
	"sync"

	"github.com/itsannaw/word-complexity-api/internal/dictionary"
	"github.com/itsannaw/word-complexity-api/internal/scoring"
	"golang.org/x/sync/errgroup"
)

// Scorer looks up every word of a job and scores it
type Scorer struct {
	dict        Lookuper
	concurrency int
	logger      *slog.Logger
}

// NewScorer creates a Scorer running at most concurrency lookups at once
func NewScorer(dict Lookuper, concurrency int, logger *slog.Logger) *Scorer {
	if concurrency <= 0 {
		concurrency = DefaultLookupConcurrency
	}
	return &Scorer{dict: dict, concurrency: concurrency, logger: logger}
}

// ScoreWords returns a score per distinct word.
//
// A word whose lookup fails permanently scores 0. The first transient lookup
// failure cancels the remaining lookups and is returned.
func (s *Scorer) ScoreWords(ctx context.Context, words []string) (map[string]float64, error) {
	var (
		mu     sync.Mutex
		scores = make(map[string]float64, len(words))
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	seen := make(map[string]struct{}, len(words))
	for _, word := range words {
		if _, ok := seen[word]; ok {
			continue
		}
		seen[word] = struct{}{}

		g.Go(func() error {
			score, err := s.scoreWord(gctx, word)
			if err != nil {
				return err
			}
			mu.Lock()
			scores[word] = score
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return scores, nil
}

func (s *Scorer) scoreWord(ctx context.Context, word string) (float64, error) {
	meanings, err := s.dict.Lookup(ctx, word)
	if err != nil {
		if dictionary.IsPermanent(err) {
			s.logger.Debug("No dictionary data for word, scoring 0",
				slog.String("word", word),
				slog.String("error", err.Error()),
			)
			return 0, nil
		}
		return 0, err
	}
	return scoring.Score(meanings), nil
}
