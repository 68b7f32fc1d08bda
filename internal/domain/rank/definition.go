// Package rank contains the tier table and the pure recompute logic that
// maps cumulative user stats to a rank. Rank is always derived from current
// stats, never stored history: the same stats always produce the same rank,
// which makes both promotion and demotion a plain recompute.
// This is a pure domain layer with zero external dependencies.
package rank

import (
	"strings"

	"github.com/gamilit/rewards-engine/internal/domain/shared"
)

// Tier is one row of the rank table.
type Tier struct {
	// ID is a stable machine identifier, e.g. "nacom".
	ID string

	// Name is the display name, e.g. "Nacom".
	Name string

	// MinXP is the XP threshold to enter the tier. Strictly increasing
	// across the table; tier 0 is always 0.
	MinXP int

	// MinModules optionally gates the tier on completed modules.
	// Zero means no module requirement.
	MinModules int

	// CoinBonus is the one-time ML Coins grant on first promotion into
	// the tier.
	CoinBonus int

	// Multiplier is the permanent reward multiplier the tier carries.
	Multiplier shared.Multiplier
}

// Definition is an ordered, validated rank table.
// Construct through NewDefinition so invalid tables never reach evaluation.
type Definition struct {
	tiers []Tier
}

// NewDefinition validates and builds a rank table.
// Returns a shared.InvalidRankTableError describing the first violation.
func NewDefinition(tiers []Tier) (*Definition, error) {
	if len(tiers) < 2 {
		return nil, shared.NewInvalidRankTableError("at least two tiers are required")
	}
	if tiers[0].MinXP != 0 {
		return nil, shared.NewInvalidRankTableError("tier 0 threshold must be 0")
	}

	seen := make(map[string]struct{}, len(tiers))
	for i, t := range tiers {
		if strings.TrimSpace(t.ID) == "" {
			return nil, shared.NewInvalidRankTableError("tier ID cannot be empty")
		}
		if _, dup := seen[t.ID]; dup {
			return nil, shared.NewInvalidRankTableError("duplicate tier ID: " + t.ID)
		}
		seen[t.ID] = struct{}{}

		if t.MinXP < 0 || t.MinModules < 0 {
			return nil, shared.NewInvalidRankTableError("thresholds cannot be negative")
		}
		if i > 0 && t.MinXP <= tiers[i-1].MinXP {
			return nil, shared.NewInvalidRankTableError("XP thresholds must be strictly increasing")
		}
		if i > 0 && t.MinModules < tiers[i-1].MinModules {
			return nil, shared.NewInvalidRankTableError("module thresholds cannot decrease")
		}
		if t.CoinBonus < 0 {
			return nil, shared.NewInvalidRankTableError("coin bonus cannot be negative")
		}
		if !t.Multiplier.IsValid() {
			return nil, shared.NewInvalidRankTableError("tier multiplier must be at least 1.0")
		}
	}

	def := &Definition{tiers: make([]Tier, len(tiers))}
	copy(def.tiers, tiers)
	return def, nil
}

// Tiers returns a copy of the tier rows, lowest first.
func (d *Definition) Tiers() []Tier {
	out := make([]Tier, len(d.tiers))
	copy(out, d.tiers)
	return out
}

// Len returns the number of tiers.
func (d *Definition) Len() int {
	return len(d.tiers)
}

// TierAt returns the tier at the given index.
func (d *Definition) TierAt(index int) (Tier, bool) {
	if index < 0 || index >= len(d.tiers) {
		return Tier{}, false
	}
	return d.tiers[index], true
}

// IndexOf returns the index of the tier with the given ID, or -1.
func (d *Definition) IndexOf(id string) int {
	for i, t := range d.tiers {
		if t.ID == id {
			return i
		}
	}
	return -1
}

// ByID returns the tier with the given ID.
func (d *Definition) ByID(id string) (Tier, bool) {
	i := d.IndexOf(id)
	if i < 0 {
		return Tier{}, false
	}
	return d.tiers[i], true
}

// Lowest returns tier 0.
func (d *Definition) Lowest() Tier {
	return d.tiers[0]
}

// Highest returns the top tier.
func (d *Definition) Highest() Tier {
	return d.tiers[len(d.tiers)-1]
}

// DefaultDefinition returns the GAMILIT Maya rank table.
// Thresholds, bonuses and multipliers mirror the platform defaults.
func DefaultDefinition() *Definition {
	def, err := NewDefinition([]Tier{
		{ID: "ajaw", Name: "Ajaw", MinXP: 0, CoinBonus: 0, Multiplier: 1.0},
		{ID: "nacom", Name: "Nacom", MinXP: 500, CoinBonus: 100, Multiplier: 1.25},
		{ID: "ah_kin", Name: "Ah K'in", MinXP: 1000, CoinBonus: 250, Multiplier: 1.5},
		{ID: "halach_uinic", Name: "Halach Uinic", MinXP: 1500, CoinBonus: 500, Multiplier: 1.75},
		{ID: "kukulkan", Name: "K'uk'ulkan", MinXP: 2250, CoinBonus: 1000, Multiplier: 2.0},
	})
	if err != nil {
		// The built-in table is statically valid.
		panic(err)
	}
	return def
}
