// Package randomizer derives shuffled, truncated question sets from a quiz.
//
// Randomize never touches its input and has no I/O. Callers pass the random
// source so tests can seed it.
package randomizer

import (
	"math/rand/v2"

	"github.com/stemsi/exquiz-backend/internal/model"
)

// Options selects which transformations Randomize applies.
type Options struct {
	RandomizeQuestions bool
	RandomizeOptions   bool
	QuestionLimit      *int
}

// FromConfig converts a stored randomization config into Options.
func FromConfig(cfg model.RandomizationConfig) Options {
	return Options{
		RandomizeQuestions: cfg.RandomizeQuestions,
		RandomizeOptions:   cfg.RandomizeOptions,
		QuestionLimit:      cfg.QuestionLimit,
	}
}

// NewSource returns a generator seeded from the runtime's random state.
// Fairness of distribution matters here, unpredictability does not.
func NewSource() *rand.Rand {
	return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
}

// NewSeeded returns a deterministic generator for tests and replays.
func NewSeeded(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// Randomize returns a transformed copy of questions:
//
//  1. options of every well-formed question are shuffled and Correct is
//     moved to follow the previously correct value; OriginalOrder keeps the
//     canonical order;
//  2. the question sequence is shuffled;
//  3. the result is cut to the first QuestionLimit entries when the limit
//     is positive and smaller than the question count.
//
// With RandomizeQuestions off, a limit always yields the first N questions
// in authored order rather than a random subset.
func Randomize(questions []model.Question, opts Options, rng *rand.Rand) []model.Question {
	out := make([]model.Question, len(questions))
	for i, q := range questions {
		out[i] = q.Clone()
	}
	if len(out) == 0 {
		return out
	}
	if rng == nil {
		rng = NewSource()
	}

	if opts.RandomizeOptions {
		for i := range out {
			shuffleOptions(&out[i], rng)
		}
	}

	if opts.RandomizeQuestions {
		shuffle(len(out), rng, func(i, j int) { out[i], out[j] = out[j], out[i] })
	}

	return Limit(out, opts.QuestionLimit)
}

// Limit truncates questions to limit when 0 < limit < len(questions).
func Limit(questions []model.Question, limit *int) []model.Question {
	if limit == nil || *limit <= 0 || *limit >= len(questions) {
		return questions
	}
	return questions[:*limit]
}

// Sample returns k distinct indexes drawn uniformly from [0, n), in draw
// order. k is clamped to [0, n].
func Sample(n, k int, rng *rand.Rand) []int {
	if k > n {
		k = n
	}
	if k <= 0 {
		return []int{}
	}
	if rng == nil {
		rng = NewSource()
	}

	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	// Partial Fisher–Yates: the first k slots end up a uniform k-subset.
	for i := 0; i < k; i++ {
		j := i + rng.IntN(n-i)
		idx[i], idx[j] = idx[j], idx[i]
	}
	return idx[:k]
}

// shuffleOptions permutes q.Options in place. Questions with fewer than two
// options or an answer index outside the options are left as they are.
func shuffleOptions(q *model.Question, rng *rand.Rand) {
	if len(q.Options) < 2 || !q.HasValidAnswer() {
		return
	}

	q.OriginalOrder = append([]string(nil), q.Options...)

	// Track positions rather than values so duplicate option texts keep the
	// right answer.
	pos := make([]int, len(q.Options))
	for i := range pos {
		pos[i] = i
	}
	shuffle(len(pos), rng, func(i, j int) { pos[i], pos[j] = pos[j], pos[i] })

	correct := q.Correct
	shuffled := make([]string, len(pos))
	for newIdx, oldIdx := range pos {
		shuffled[newIdx] = q.OriginalOrder[oldIdx]
		if oldIdx == correct {
			q.Correct = newIdx
		}
	}
	q.Options = shuffled
}

// shuffle is a Fisher–Yates pass: every permutation is equally likely.
func shuffle(n int, rng *rand.Rand, swap func(i, j int)) {
	for i := n - 1; i > 0; i-- {
		j := rng.IntN(i + 1)
		swap(i, j)
	}
}
