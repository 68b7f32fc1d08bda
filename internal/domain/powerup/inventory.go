// Package powerup contains the inventory of learning aids purchasable with
// ML Coins. Purchases go through the ledger; this package only owns the
// catalog prices and the per-user charge counts.
package powerup

import (
	"errors"
	"time"

	"github.com/gamilit/rewards-engine/internal/domain/shared"
)

// Domain errors for powerup package.
var (
	ErrInvalidUserID   = errors.New("powerup: invalid user ID")
	ErrUnknownKind     = errors.New("powerup: unknown power-up kind")
	ErrInvalidQuantity = errors.New("powerup: quantity must be positive")
	ErrNoCharges       = errors.New("powerup: no charges of this power-up left")
)

// Kind identifies a power-up.
type Kind string

const (
	// KindHint reveals a hint for the current exercise.
	KindHint Kind = "hint"
	// KindReadingVision highlights the relevant passage.
	KindReadingVision Kind = "reading_vision"
	// KindSecondChance allows retrying a failed exercise.
	KindSecondChance Kind = "second_chance"
)

// IsValid checks if the kind is known.
func (k Kind) IsValid() bool {
	switch k {
	case KindHint, KindReadingVision, KindSecondChance:
		return true
	default:
		return false
	}
}

// Price returns the catalog price in ML Coins.
func (k Kind) Price() int {
	switch k {
	case KindHint:
		return 15
	case KindReadingVision:
		return 25
	case KindSecondChance:
		return 40
	default:
		return 0
	}
}

// AllKinds lists the catalog.
func AllKinds() []Kind {
	return []Kind{KindHint, KindReadingVision, KindSecondChance}
}

// Inventory is a user's power-up charges and usage totals.
type Inventory struct {
	UserID    shared.UserID
	Charges   map[Kind]int
	UsedTotal map[Kind]int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewInventory creates an empty inventory for a user.
func NewInventory(userID shared.UserID) (*Inventory, error) {
	if userID.IsEmpty() {
		return nil, ErrInvalidUserID
	}

	now := time.Now().UTC()
	return &Inventory{
		UserID:    userID,
		Charges:   make(map[Kind]int),
		UsedTotal: make(map[Kind]int),
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Add credits purchased charges.
func (inv *Inventory) Add(kind Kind, quantity int) error {
	if !kind.IsValid() {
		return ErrUnknownKind
	}
	if quantity <= 0 {
		return ErrInvalidQuantity
	}

	inv.Charges[kind] += quantity
	inv.UpdatedAt = time.Now().UTC()
	return nil
}

// Use consumes one charge.
func (inv *Inventory) Use(kind Kind) error {
	if !kind.IsValid() {
		return ErrUnknownKind
	}
	if inv.Charges[kind] <= 0 {
		return ErrNoCharges
	}

	inv.Charges[kind]--
	inv.UsedTotal[kind]++
	inv.UpdatedAt = time.Now().UTC()
	return nil
}

// Available returns the remaining charges of a kind.
func (inv *Inventory) Available(kind Kind) int {
	return inv.Charges[kind]
}

// Clone returns a deep copy.
func (inv *Inventory) Clone() *Inventory {
	if inv == nil {
		return nil
	}
	clone := *inv
	clone.Charges = make(map[Kind]int, len(inv.Charges))
	for k, v := range inv.Charges {
		clone.Charges[k] = v
	}
	clone.UsedTotal = make(map[Kind]int, len(inv.UsedTotal))
	for k, v := range inv.UsedTotal {
		clone.UsedTotal[k] = v
	}
	return &clone
}
