// Package catalog serves quizzes, their questions and the player directory.
package catalog

import (
	"slices"

	"github.com/victornm/quizarena/internal/domain"
	"github.com/victornm/quizarena/internal/rng"
)

// shuffle permutes qs in place with a Fisher-Yates pass over r.
func shuffle(r rng.Source, qs []domain.Question) {
	for i := len(qs) - 1; i > 0; i-- {
		j := r.IntN(i + 1)
		qs[i], qs[j] = qs[j], qs[i]
	}
}

// pick returns the questions of one game: all of them in random order, cut to
// limit when limit is positive.
func pick(r rng.Source, qs []domain.Question, limit int) []domain.Question {
	out := make([]domain.Question, 0, len(qs))
	for _, q := range qs {
		out = append(out, q.Clone())
	}

	if r != nil {
		shuffle(r, out)
	}
	if limit > 0 && len(out) > limit {
		out = slices.Clip(out[:limit])
	}
	return out
}
