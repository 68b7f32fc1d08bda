// Package multiplier contains reward multiplier sources and the additive
// stacking policy used to combine them. Expiry is a read-time comparison:
// expired sources are filtered out of every computation but are not
// eagerly deleted.
// This is a pure domain layer with zero external dependencies.
package multiplier

import (
	"errors"
	"time"

	"github.com/gamilit/rewards-engine/internal/domain/shared"
)

// Domain errors for multiplier package.
var (
	ErrInvalidUserID    = errors.New("multiplier: invalid user ID")
	ErrSourceIDEmpty    = errors.New("multiplier: source ID is required")
	ErrValueBelowOne    = errors.New("multiplier: value must be at least 1.0")
	ErrTemporaryNoTTL   = errors.New("multiplier: temporary source requires an expiry")
	ErrPermanentExpires = errors.New("multiplier: permanent source cannot expire")
	ErrUnknownKind      = errors.New("multiplier: unknown source kind")
)

// SourceKind identifies where a multiplier came from.
type SourceKind string

const (
	// KindRank - the permanent multiplier carried by the current rank.
	// Exactly one per user; refreshed on every rank change.
	KindRank SourceKind = "rank"
	// KindStreak - temporary boost for keeping a daily streak.
	KindStreak SourceKind = "streak"
	// KindEvent - temporary boost from a platform event or promotion.
	KindEvent SourceKind = "event"
	// KindPurchase - temporary boost bought in the shop.
	KindPurchase SourceKind = "purchase"
)

// IsValid checks if the kind is known.
func (k SourceKind) IsValid() bool {
	switch k {
	case KindRank, KindStreak, KindEvent, KindPurchase:
		return true
	default:
		return false
	}
}

// IsPermanent reports whether sources of this kind never expire.
func (k SourceKind) IsPermanent() bool {
	return k == KindRank
}

// Source is one active or expired multiplier grant.
type Source struct {
	ID        string
	UserID    shared.UserID
	Kind      SourceKind
	Label     string // display text, e.g. "Nacom rank" or "7-day streak"
	Value     shared.Multiplier
	Permanent bool
	ExpiresAt *time.Time // nil for permanent sources
	GrantedAt time.Time
}

// NewSourceParams carries everything needed to build a valid source.
type NewSourceParams struct {
	ID        string
	UserID    shared.UserID
	Kind      SourceKind
	Label     string
	Value     shared.Multiplier
	ExpiresAt *time.Time
}

// NewSource builds a multiplier source with validation.
// Permanence follows the kind: rank sources never expire, all other kinds
// must carry an expiry.
func NewSource(params NewSourceParams) (*Source, error) {
	if params.ID == "" {
		return nil, ErrSourceIDEmpty
	}
	if params.UserID.IsEmpty() {
		return nil, ErrInvalidUserID
	}
	if !params.Kind.IsValid() {
		return nil, ErrUnknownKind
	}
	if !params.Value.IsValid() {
		return nil, ErrValueBelowOne
	}

	permanent := params.Kind.IsPermanent()
	if permanent && params.ExpiresAt != nil {
		return nil, ErrPermanentExpires
	}
	if !permanent && params.ExpiresAt == nil {
		return nil, ErrTemporaryNoTTL
	}

	return &Source{
		ID:        params.ID,
		UserID:    params.UserID,
		Kind:      params.Kind,
		Label:     params.Label,
		Value:     params.Value,
		Permanent: permanent,
		ExpiresAt: params.ExpiresAt,
		GrantedAt: time.Now().UTC(),
	}, nil
}

// IsActive reports whether the source still contributes at the given time.
func (s *Source) IsActive(now time.Time) bool {
	if s.Permanent || s.ExpiresAt == nil {
		return true
	}
	return !now.After(*s.ExpiresAt)
}

// ExpiresWithin reports whether the source is still active but will expire
// within the window. Permanent and already-expired sources never match.
func (s *Source) ExpiresWithin(now time.Time, window time.Duration) bool {
	if s.Permanent || s.ExpiresAt == nil {
		return false
	}
	remaining := s.ExpiresAt.Sub(now)
	return remaining > 0 && remaining <= window
}

// ActiveSources filters to the sources contributing at the given time.
// The input is never mutated.
func ActiveSources(sources []*Source, now time.Time) []*Source {
	active := make([]*Source, 0, len(sources))
	for _, s := range sources {
		if s.IsActive(now) {
			active = append(active, s)
		}
	}
	return active
}

// Total combines active sources additively: 1 + sum(value_i - 1).
// Additive stacking keeps many small boosts from compounding
// multiplicatively. The result never drops below the base multiplier.
func Total(sources []*Source, now time.Time) shared.Multiplier {
	total := 1.0
	for _, s := range sources {
		if s.IsActive(now) {
			total += s.Value.Float64() - 1.0
		}
	}
	if total < float64(shared.BaseMultiplier) {
		return shared.BaseMultiplier
	}
	return shared.Multiplier(total)
}

// ExpiringSoon returns the active temporary sources that expire within the
// window. Purely a read; used for UI warnings.
func ExpiringSoon(sources []*Source, now time.Time, window time.Duration) []*Source {
	soon := make([]*Source, 0)
	for _, s := range sources {
		if s.ExpiresWithin(now, window) {
			soon = append(soon, s)
		}
	}
	return soon
}

// Breakdown is the resolved multiplier state for one user at one instant.
type Breakdown struct {
	Total        shared.Multiplier
	Active       []*Source
	ExpiringSoon []*Source
	ResolvedAt   time.Time
}

// Resolve computes the full breakdown in one pass over the sources.
func Resolve(sources []*Source, now time.Time, expiryWindow time.Duration) Breakdown {
	active := ActiveSources(sources, now)
	return Breakdown{
		Total:        Total(active, now),
		Active:       active,
		ExpiringSoon: ExpiringSoon(active, now, expiryWindow),
		ResolvedAt:   now,
	}
}
