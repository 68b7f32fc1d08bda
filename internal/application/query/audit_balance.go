package query

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gamilit/rewards-engine/internal/domain/ledger"
	"github.com/gamilit/rewards-engine/internal/domain/shared"
	"github.com/gamilit/rewards-engine/internal/domain/stats"
)

// ══════════════════════════════════════════════════════════════════════════════
// AUDIT BALANCE QUERY
// Replays a user's full ledger and checks the chain against the recorded
// balance. Inconsistencies are reported, never silently repaired.
// ══════════════════════════════════════════════════════════════════════════════

// AuditBalanceQuery identifies the user to audit.
type AuditBalanceQuery struct {
	// UserID is the audited user.
	UserID string
}

// Validate validates the query.
func (q AuditBalanceQuery) Validate() error {
	if q.UserID == "" {
		return errors.New("audit_balance: user_id is required")
	}
	return nil
}

// BalanceAuditDTO is the audit report view.
type BalanceAuditDTO struct {
	UserID          string    `json:"user_id"`
	RecordedBalance int       `json:"recorded_balance"`
	ComputedBalance int       `json:"computed_balance"`
	Consistent      bool      `json:"consistent"`
	BrokenEntries   []string  `json:"broken_entries,omitempty"`
	EntriesChecked  int       `json:"entries_checked"`
	AuditedAt       time.Time `json:"audited_at"`
}

// AuditBalanceHandler handles the AuditBalanceQuery.
type AuditBalanceHandler struct {
	statsRepo      stats.Repository
	ledgerRepo     ledger.Repository
	eventPublisher shared.EventPublisher
	logger         *slog.Logger
}

// NewAuditBalanceHandler creates a new AuditBalanceHandler.
func NewAuditBalanceHandler(
	statsRepo stats.Repository,
	ledgerRepo ledger.Repository,
	eventPublisher shared.EventPublisher,
	logger *slog.Logger,
) *AuditBalanceHandler {
	return &AuditBalanceHandler{
		statsRepo:      statsRepo,
		ledgerRepo:     ledgerRepo,
		eventPublisher: eventPublisher,
		logger:         logger,
	}
}

// Handle executes the audit balance query.
func (h *AuditBalanceHandler) Handle(ctx context.Context, q AuditBalanceQuery) (*BalanceAuditDTO, error) {
	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("audit_balance: validation failed: %w", err)
	}

	userID, err := shared.NewUserID(q.UserID)
	if err != nil {
		return nil, fmt.Errorf("audit_balance: %w", err)
	}

	userStats, err := h.statsRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("audit_balance: failed to get stats: %w", err)
	}

	entries, err := h.ledgerRepo.AllForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("audit_balance: failed to read ledger: %w", err)
	}

	report := ledger.Audit(userID, userStats.MLCoins.Int(), entries)

	if !report.Consistent {
		h.logger.Error("balance inconsistency detected",
			slog.String("user_id", q.UserID),
			slog.Int("recorded", report.RecordedBalance),
			slog.Int("computed", report.ComputedBalance),
			slog.Int("broken_entries", len(report.BrokenEntries)))

		event := shared.NewBalanceInconsistentEvent(q.UserID, report.RecordedBalance, report.ComputedBalance)
		if publishErr := h.eventPublisher.Publish(event); publishErr != nil {
			h.logger.Error("event publish failed",
				slog.String("event_type", string(event.EventType())),
				slog.String("error", publishErr.Error()))
		}
	}

	return &BalanceAuditDTO{
		UserID:          q.UserID,
		RecordedBalance: report.RecordedBalance,
		ComputedBalance: report.ComputedBalance,
		Consistent:      report.Consistent,
		BrokenEntries:   report.BrokenEntries,
		EntriesChecked:  len(entries),
		AuditedAt:       time.Now().UTC(),
	}, nil
}
