package scheduler

import (
	"math/rand"
	"time"

	types "github.com/yungbote/frontline-backend/internal/domain"
)

type Weights struct {
	TrustedBase       float64
	ProbationBase     float64
	TrustedInterval   time.Duration
	ProbationInterval time.Duration
}

func DefaultWeights() Weights {
	return Weights{
		TrustedBase:       2.5,
		ProbationBase:     1.0,
		TrustedInterval:   6 * time.Hour,
		ProbationInterval: 24 * time.Hour,
	}
}

func (w Weights) Interval(src *types.Source) time.Duration {
	if src.Status == types.SourceStatusTrusted {
		return w.TrustedInterval
	}
	return w.ProbationInterval
}

// Eligible reports whether src may be crawled at now: not banned, past its status cooldown,
// and without a crawl dispatched inside that cooldown that has not run yet.
func (w Weights) Eligible(src *types.Source, now time.Time) bool {
	if src == nil || src.Status == types.SourceStatusBanned {
		return false
	}
	interval := w.Interval(src)
	if d := src.LastDispatchedAt; d != nil && (src.LastCrawledAt == nil || d.After(*src.LastCrawledAt)) {
		if now.Sub(*d) < interval {
			return false
		}
	}
	if src.LastCrawledAt == nil {
		return true
	}
	return now.Sub(*src.LastCrawledAt) >= interval
}

// Weight is the status base times a curve mapping score 0..100 onto 0.2..3.0.
func (w Weights) Weight(src *types.Source) float64 {
	if src == nil || src.Status == types.SourceStatusBanned {
		return 0
	}
	base := w.ProbationBase
	if src.Status == types.SourceStatusTrusted {
		base = w.TrustedBase
	}
	score := src.ReliabilityScore
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return base * (0.2 + score/100*2.8)
}

// Pick draws up to n sources without replacement, each draw proportional to weight among the
// sources still in the pool.
func (w Weights) Pick(pool []*types.Source, n int, rng *rand.Rand) []*types.Source {
	remaining := make([]*types.Source, len(pool))
	copy(remaining, pool)
	weights := make([]float64, len(remaining))
	for i, s := range remaining {
		weights[i] = w.Weight(s)
	}

	var picked []*types.Source
	for len(picked) < n && len(remaining) > 0 {
		total := 0.0
		for _, wt := range weights {
			total += wt
		}
		if total <= 0 {
			break
		}
		r := rng.Float64() * total
		idx := len(remaining) - 1
		upto := 0.0
		for i, wt := range weights {
			upto += wt
			if r < upto {
				idx = i
				break
			}
		}
		picked = append(picked, remaining[idx])
		remaining = append(remaining[:idx], remaining[idx+1:]...)
		weights = append(weights[:idx], weights[idx+1:]...)
	}
	return picked
}
