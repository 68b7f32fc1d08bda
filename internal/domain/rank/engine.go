package rank

import (
	"github.com/gamilit/rewards-engine/internal/domain/stats"
)

// Recompute returns the index of the highest tier whose thresholds the
// given stats satisfy. Pure and deterministic: same stats, same tier.
// A tier with a module requirement is only entered when both the XP and
// the module thresholds are met.
func Recompute(s *stats.UserStats, def *Definition) int {
	best := 0
	for i, t := range def.tiers {
		if s.TotalXP.Int() >= t.MinXP && s.ModulesCompleted >= t.MinModules {
			best = i
		}
	}
	return best
}

// RecomputeTier is Recompute returning the tier row itself.
func RecomputeTier(s *stats.UserStats, def *Definition) Tier {
	return def.tiers[Recompute(s, def)]
}

// Progress describes how far a user is into their current tier.
type Progress struct {
	CurrentTier        Tier
	CurrentIndex       int
	NextTier           *Tier // nil at the top tier
	ProgressPercentage float64
	XPRemaining        int
	IsMaxRank          bool
}

// CalculateProgress reports progress toward the next tier.
// Percentage is the XP position between the current and next thresholds,
// rounded to 2 decimals; at the top tier it is pinned to 100.
func CalculateProgress(s *stats.UserStats, def *Definition) Progress {
	idx := Recompute(s, def)
	current := def.tiers[idx]

	p := Progress{
		CurrentTier:  current,
		CurrentIndex: idx,
	}

	if idx == len(def.tiers)-1 {
		p.IsMaxRank = true
		p.ProgressPercentage = 100
		return p
	}

	next := def.tiers[idx+1]
	p.NextTier = &next

	span := next.MinXP - current.MinXP
	into := s.TotalXP.Int() - current.MinXP
	if span > 0 {
		pct := float64(into) / float64(span) * 100
		if pct > 100 {
			pct = 100
		}
		p.ProgressPercentage = roundTo2(pct)
	}

	p.XPRemaining = next.MinXP - s.TotalXP.Int()
	if p.XPRemaining < 0 {
		// XP already suffices; the user is gated on modules.
		p.XPRemaining = 0
	}
	return p
}

func roundTo2(v float64) float64 {
	return float64(int(v*100+0.5)) / 100
}

// ChangeKind classifies a recompute outcome against the stored rank.
type ChangeKind int

const (
	NoChange ChangeKind = iota
	Promotion
	Demotion
)

// Compare classifies the move from a stored rank ID to a recomputed index.
// An unknown stored ID (table was replaced) is treated as a move from
// tier 0.
func Compare(def *Definition, storedID string, newIndex int) ChangeKind {
	oldIndex := def.IndexOf(storedID)
	if oldIndex < 0 {
		oldIndex = 0
	}
	switch {
	case newIndex > oldIndex:
		return Promotion
	case newIndex < oldIndex:
		return Demotion
	default:
		return NoChange
	}
}

// SimulationResult aggregates a dry run of a candidate table over a sample
// of users. Nothing is written; the admin preview renders from this.
type SimulationResult struct {
	SampleSize     int
	UsersAffected  int
	Promotions     int
	Demotions      int
	TotalCoinDelta int // sum of one-time bonuses promotions would grant
	AvgCoinDelta   float64
}

// Simulate evaluates a candidate table against the given stats sample.
// The coin delta counts the promotion bonuses the candidate table would
// pay out; demotions never claw coins back.
func Simulate(candidate *Definition, sample []*stats.UserStats) SimulationResult {
	result := SimulationResult{SampleSize: len(sample)}

	for _, s := range sample {
		newIndex := Recompute(s, candidate)
		switch Compare(candidate, s.CurrentRank, newIndex) {
		case Promotion:
			result.UsersAffected++
			result.Promotions++
			result.TotalCoinDelta += candidate.tiers[newIndex].CoinBonus
		case Demotion:
			result.UsersAffected++
			result.Demotions++
		}
	}

	if result.SampleSize > 0 {
		result.AvgCoinDelta = float64(result.TotalCoinDelta) / float64(result.SampleSize)
	}
	return result
}
