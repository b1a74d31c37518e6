// Package derange builds random derangements: permutations of a set of ids
// in which no id maps to itself.
//
// The engine draws uniformly random permutations and rejects any with a fixed
// point. Since roughly 1/e of all permutations are derangements, the expected
// number of draws is about 2.7. Draws are capped; if the cap is reached the
// engine falls back to a random single cycle built with Sattolo's algorithm.
package derange

import (
	"errors"
	"math/rand/v2"
	"slices"
	"sync"
)

// DefaultMaxAttempts bounds the rejection-sampling loop.
const DefaultMaxAttempts = 1000

var (
	// ErrInsufficientParticipants is returned for fewer than two ids.
	ErrInsufficientParticipants = errors.New("at least 2 participants are required")

	// ErrDuplicateID is returned when the input contains an id twice.
	ErrDuplicateID = errors.New("duplicate id in derangement input")
)

// Shuffler is the randomness the engine consumes. *rand.Rand satisfies it.
type Shuffler interface {
	Shuffle(n int, swap func(i, j int))
	IntN(n int) int
}

// globalSource uses the math/rand/v2 top-level functions, which are
// OS-seeded and safe for concurrent use.
type globalSource struct{}

func (globalSource) Shuffle(n int, swap func(i, j int)) { rand.Shuffle(n, swap) }
func (globalSource) IntN(n int) int                     { return rand.IntN(n) }

// Result is the outcome of one Derange call.
type Result struct {
	// Assignment maps every id to the id it was assigned.
	Assignment map[string]string
	// Attempts is the number of permutations drawn.
	Attempts int
	// Fallback is true when the cycle construction was used.
	Fallback bool
}

// Option configures an Engine.
type Option func(*Engine)

// lockedSource serialises access to a source that is not safe for
// concurrent use, such as a seeded *rand.Rand.
type lockedSource struct {
	mu  sync.Mutex
	src Shuffler
}

func (l *lockedSource) Shuffle(n int, swap func(i, j int)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.src.Shuffle(n, swap)
}

func (l *lockedSource) IntN(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.src.IntN(n)
}

// WithRand makes the engine draw from src instead of the global source.
// Calls into src are serialised, so a seeded *rand.Rand may be shared.
func WithRand(src Shuffler) Option {
	return func(e *Engine) {
		if src != nil {
			e.src = &lockedSource{src: src}
		}
	}
}

// WithConcurrentRand is like WithRand for a source that is already safe for
// concurrent use. Calls into src are not serialised.
func WithConcurrentRand(src Shuffler) Option {
	return func(e *Engine) {
		if src != nil {
			e.src = src
		}
	}
}

// WithMaxAttempts overrides DefaultMaxAttempts. Values below 1 are ignored.
func WithMaxAttempts(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxAttempts = n
		}
	}
}

// Engine produces derangements. The zero value is not usable; call New.
// An Engine is safe for concurrent use; calls with the default source run
// in parallel.
type Engine struct {
	src         Shuffler
	maxAttempts int
}

// New constructs an Engine.
func New(opts ...Option) *Engine {
	e := &Engine{
		src:         globalSource{},
		maxAttempts: DefaultMaxAttempts,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Derange returns a random derangement of ids. The input slice is not
// modified. Ids are sorted before sampling so a seeded source reproduces the
// same result regardless of input order.
func (e *Engine) Derange(ids []string) (Result, error) {
	if len(ids) < 2 {
		return Result{}, ErrInsufficientParticipants
	}

	base := slices.Clone(ids)
	slices.Sort(base)
	for i := 1; i < len(base); i++ {
		if base[i] == base[i-1] {
			return Result{}, ErrDuplicateID
		}
	}

	shuffled := slices.Clone(base)
	for attempt := 1; attempt <= e.maxAttempts; attempt++ {
		e.src.Shuffle(len(shuffled), func(i, j int) {
			shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
		})
		if !hasFixedPoint(base, shuffled) {
			return Result{
				Assignment: zip(base, shuffled),
				Attempts:   attempt,
			}, nil
		}
	}

	return Result{
		Assignment: zip(base, e.cycle(base)),
		Attempts:   e.maxAttempts,
		Fallback:   true,
	}, nil
}

// cycle returns a permutation of base forming one cycle through every
// element (Sattolo's algorithm). A single cycle of length >= 2 has no fixed
// point.
func (e *Engine) cycle(base []string) []string {
	n := len(base)
	perm := make([]int, n)
	for i := range perm {
		perm[i] = i
	}
	for i := n - 1; i > 0; i-- {
		j := e.src.IntN(i)
		perm[i], perm[j] = perm[j], perm[i]
	}
	out := make([]string, n)
	for i, p := range perm {
		out[i] = base[p]
	}
	return out
}

func hasFixedPoint(a, b []string) bool {
	for i := range a {
		if a[i] == b[i] {
			return true
		}
	}
	return false
}

func zip(from, to []string) map[string]string {
	m := make(map[string]string, len(from))
	for i := range from {
		m[from[i]] = to[i]
	}
	return m
}
