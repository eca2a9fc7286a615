package settlement

import (
	"context"
	"time"

	"github.com/flowcap/settlenet/id"
)

// Store is the persistence contract for settlements and their legs.
// CreateSettlement enforces the unique-invoice constraint described in
// spec §3 at the storage layer, so a retry on an already-settled invoice
// returns ErrSettlementExists rather than creating a second row.
type Store interface {
	CreateSettlement(ctx context.Context, s *Settlement) error
	GetSettlement(ctx context.Context, settlementID id.SettlementID) (*Settlement, error)
	GetSettlementByInvoice(ctx context.Context, invID id.InvoiceID) (*Settlement, error)
	UpdateStatus(ctx context.Context, settlementID id.SettlementID, status Status) error
	Complete(ctx context.Context, settlementID id.SettlementID, rail string) error

	CreateLeg(ctx context.Context, leg *Leg) error
	MarkLegCommitted(ctx context.Context, legID id.LegID, railTxnID id.RailTxnID) error
	ListLegs(ctx context.Context, settlementID id.SettlementID) ([]*Leg, error)

	// ListOrphanedPrepared returns legs prepared (but not committed or
	// rolled back) before cutoff, for the scheduler's orphan sweep
	// (spec §4.10).
	ListOrphanedPrepared(ctx context.Context, cutoff time.Time) ([]*Leg, error)
}
