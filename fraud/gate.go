package fraud

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/flowcap/settlenet/id"
)

// Gate is the fraud component (spec §4.7). It never stores the score
// itself — that lives on the invoice row, written by the caller via
// invoice.Store.UpdateFraudScore — the Gate only decides pass/fail and
// whether a recompute is required.
type Gate struct {
	oracle Oracle
	logger *slog.Logger
	now    func() time.Time
}

// Option configures a Gate.
type Option func(*Gate)

func WithLogger(logger *slog.Logger) Option {
	return func(g *Gate) { g.logger = logger }
}

func WithClock(now func() time.Time) Option {
	return func(g *Gate) { g.now = now }
}

func New(oracle Oracle, opts ...Option) *Gate {
	g := &Gate{oracle: oracle, logger: slog.Default(), now: time.Now}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Evaluate applies the admission policy to an already-known (score,
// computedAt) pair without recomputing: used for the final pre-commit
// check, which must see the identical timestamp used at acceptance
// (spec §4.7) rather than risk a recompute invalidating the critical
// section.
func (g *Gate) Evaluate(invID id.InvoiceID, score float64, computedAt time.Time) Verdict {
	if score > RejectThreshold {
		return Verdict{InvoiceID: invID, Score: score, ComputedAt: computedAt, Pass: false, Reason: "score exceeds reject threshold"}
	}
	return Verdict{InvoiceID: invID, Score: score, ComputedAt: computedAt, Pass: true}
}

// CheckFresh applies the freshness policy (spec §4.7): if the known score
// is older than FreshnessWindow, it recomputes via the oracle before
// evaluating. It returns the Verdict plus the (possibly recomputed)
// score and timestamp so the caller can persist them on the invoice.
func (g *Gate) CheckFresh(ctx context.Context, invID id.InvoiceID, score float64, computedAt time.Time) (Verdict, float64, time.Time, error) {
	now := g.now()
	if now.Sub(computedAt) <= FreshnessWindow {
		return g.Evaluate(invID, score, computedAt), score, computedAt, nil
	}

	fresh, err := g.oracle.Score(ctx, invID)
	if err != nil {
		return Verdict{}, 0, time.Time{}, fmt.Errorf("score oracle: %w", err)
	}
	recomputedAt := now
	g.logger.Info("fraud score recomputed due to staleness", "invoice_id", invID.String(), "score", fresh)
	return g.Evaluate(invID, fresh, recomputedAt), fresh, recomputedAt, nil
}
