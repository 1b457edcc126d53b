package reliability

import (
	types "github.com/yungbote/frontline-backend/internal/domain"
)

// Params are the tunables of the reputation rule. Only the shape is contractual:
// bounded per-item deltas, a clamped score, trend awareness and a volume floor for bans.
type Params struct {
	MinScore float64
	MaxScore float64

	AcceptBase    float64
	EvidenceSlope float64
	RejectDelta   float64
	MaxDelta      float64

	TrendMinVolume int
	TrendHighRate  float64
	TrendLowRate   float64
	TrendAdjust    float64

	TrustedAt    float64
	BannedAt     float64
	BanMinVolume int

	WindowDays int
}

func DefaultParams() Params {
	return Params{
		MinScore:       0,
		MaxScore:       100,
		AcceptBase:     1.5,
		EvidenceSlope:  0.30,
		RejectDelta:    -1.0,
		MaxDelta:       3.0,
		TrendMinVolume: 10,
		TrendHighRate:  0.60,
		TrendLowRate:   0.20,
		TrendAdjust:    0.6,
		TrustedAt:      75,
		BannedAt:       10,
		BanMinVolume:   25,
		WindowDays:     7,
	}
}

type Outcome struct {
	Accepted      bool
	EvidenceScore int
}

// Window is the trailing observation total, including the outcome being applied.
type Window struct {
	Found    int
	Accepted int
}

func (w Window) AcceptanceRate() float64 {
	if w.Found <= 0 {
		return 0
	}
	return float64(w.Accepted) / float64(w.Found)
}

func ClampEvidence(ev int) int {
	if ev < 1 {
		return 1
	}
	if ev > 10 {
		return 10
	}
	return ev
}

func (p Params) Delta(o Outcome, w Window) float64 {
	var delta float64
	if o.Accepted {
		ev := ClampEvidence(o.EvidenceScore)
		delta = p.AcceptBase + float64(ev-5)*p.EvidenceSlope
	} else {
		delta = p.RejectDelta
	}
	if w.Found >= p.TrendMinVolume {
		rate := w.AcceptanceRate()
		switch {
		case rate >= p.TrendHighRate:
			delta += p.TrendAdjust
		case rate <= p.TrendLowRate:
			delta -= p.TrendAdjust
		}
	}
	return clamp(delta, -p.MaxDelta, p.MaxDelta)
}

func (p Params) Status(score float64, w Window) string {
	switch {
	case score >= p.TrustedAt:
		return types.SourceStatusTrusted
	case score <= p.BannedAt && w.Found >= p.BanMinVolume:
		return types.SourceStatusBanned
	default:
		return types.SourceStatusProbation
	}
}

// Apply returns the new score, the new status and the delta actually applied.
func (p Params) Apply(old float64, o Outcome, w Window) (float64, string, float64) {
	delta := p.Delta(o, w)
	score := clamp(old+delta, p.MinScore, p.MaxScore)
	return score, p.Status(score, w), score - old
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
