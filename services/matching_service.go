package services

import (
	"math/rand"
	"time"

	"valentine-exchange-system/models"

	"github.com/google/uuid"
)

// maxShuffleAttempts bounds the rejection-sampling phase. Each shuffle is a
// uniform permutation, and the share of permutations that are derangements
// approaches 1/e, so the chance of exhausting the budget is (1-1/e)^1000,
// effectively zero. The cycle fallback still covers it for correctness.
const maxShuffleAttempts = 1000

// MatchGenerator produces derangement assignments: a random permutation of
// participants with no fixed points, so everyone gives exactly once and
// receives exactly once, never to themselves.
//
// The generator is pure (no DB, no state of its own) and safe to share
// between concurrent callers: the default shuffle is the package-level
// rand.Shuffle, which is internally locked.
type MatchGenerator struct {
	// shuffle applies an unbiased in-place shuffle, rand.Shuffle-style.
	// Injectable so tests can force the fallback path.
	shuffle func(n int, swap func(i, j int))
}

func NewMatchGenerator() *MatchGenerator {
	return &MatchGenerator{shuffle: rand.Shuffle}
}

// Generate returns one assignment per participant. Fails with
// ErrInsufficientParticipants for fewer than 2 participants; any returned
// batch always satisfies the derangement invariants.
func (g *MatchGenerator) Generate(participants []models.ExchangeUser) ([]models.Match, error) {
	n := len(participants)
	if n < 2 {
		return nil, ErrInsufficientParticipants
	}

	// receivers[i] means participants[i] gives to participants[receivers[i]].
	receivers := make([]int, n)
	for i := range receivers {
		receivers[i] = i
	}

	valid := false
	for attempt := 0; attempt < maxShuffleAttempts && !valid; attempt++ {
		g.shuffle(n, func(i, j int) {
			receivers[i], receivers[j] = receivers[j], receivers[i]
		})
		valid = isDerangement(receivers)
	}

	if !valid {
		receivers = g.cycleDerangement(n)
	}

	now := time.Now().UTC()
	matches := make([]models.Match, n)
	for i, giver := range participants {
		matches[i] = models.Match{
			ID:         uuid.NewString(),
			GiverID:    giver.ExternalUserID,
			ReceiverID: participants[receivers[i]].ExternalUserID,
			AssignedAt: now,
		}
	}
	return matches, nil
}

func isDerangement(receivers []int) bool {
	for i, r := range receivers {
		if i == r {
			return false
		}
	}
	return true
}

// cycleDerangement links a shuffled participant order into one closed cycle:
// if the shuffled order is [A, B, C], then A→B, B→C, C→A. Fixed-point-free
// for n >= 2 by construction. Note the result is uniform over orderings, not
// over all derangements (single-cycle derangements are the only reachable
// ones), so the distribution differs from the rejection-sampling phase. That
// phase failing is astronomically unlikely, so the skew is accepted for the
// guarantee of termination.
func (g *MatchGenerator) cycleDerangement(n int) []int {
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	g.shuffle(n, func(i, j int) {
		order[i], order[j] = order[j], order[i]
	})

	receivers := make([]int, n)
	for i := 0; i < n; i++ {
		receivers[order[i]] = order[(i+1)%n]
	}
	return receivers
}
