package settlement

import (
	"context"
	"math"

	"github.com/flowcap/settlenet/account"
	"github.com/flowcap/settlenet/fraud"
	"github.com/flowcap/settlenet/invoice"
)

// priceTolerance is the maximum allowed drift between a quote's total
// cost and what the coordinator independently expects, per spec §8
// scenario 2 ("pricing matches quote within 0.01").
const priceTolerance = 1 // minor units

// preBarrier runs every check that must hold before any rail call is
// made (spec §4.8). A failing check returns Reject: no settlement row,
// no legs, no ledger writes — the invoice stays Accepted for retry or
// manual review.
func (c *Coordinator) preBarrier(ctx context.Context, in Input) (Outcome, error) {
	supplier, err := c.accounts.Get(ctx, in.Invoice.SupplierID)
	if err != nil {
		return Reject("supplier account not found"), nil
	}
	buyer, err := c.accounts.Get(ctx, in.Invoice.BuyerID)
	if err != nil {
		return Reject("buyer account not found"), nil
	}
	provider, err := c.accounts.Get(ctx, in.Quote.ProviderID)
	if err != nil {
		return Reject("capital provider account not found"), nil
	}

	now := c.now()
	for name, a := range map[string]*account.Account{"supplier": supplier, "buyer": buyer, "provider": provider} {
		if !a.IsSettleable(now) {
			return Reject(name + " account is not settleable (inactive or sanctions not clear)"), nil
		}
		if a.KYCStatus != account.KYCVerified {
			return Reject(name + " account has not completed KYC verification"), nil
		}
	}

	if buyer.AvailableCredit().Amount < in.Quote.TotalCost.Amount {
		return Reject("buyer credit limit insufficient for settlement"), nil
	}

	if !in.Quote.IsValid(now) {
		return Reject("quote is expired or already used"), nil
	}

	expectedCost := totalCostFor(in)
	if diff := in.Quote.TotalCost.Amount - expectedCost; diff < -priceTolerance || diff > priceTolerance {
		return Reject("quote total cost does not match recomputed pricing"), nil
	}

	verdict := c.fraudGate.Evaluate(in.Invoice.ID, in.Invoice.FraudScore, in.Invoice.FraudScoredAt)
	if now.Sub(in.Invoice.FraudScoredAt) > fraud.FreshnessWindow {
		return Reject("fraud score is stale, recompute required before settlement"), nil
	}
	if !verdict.Pass {
		return Reject("fraud score exceeds reject threshold"), nil
	}

	if _, err := c.rails.Select(ctx); err != nil {
		return Reject("no healthy rail available"), nil
	}

	if in.Invoice.Status != invoice.StatusAccepted {
		return Reject("invoice is not in accepted status"), nil
	}

	return OK(nil), nil
}

// totalCostFor recomputes the expected total cost from the quote's own
// terms, mirroring pricing.TotalCost without importing the auction
// machinery here — the coordinator only needs to detect drift, not
// regenerate a quote.
func totalCostFor(in Input) int64 {
	rate := in.Quote.DiscountRate.Fraction()
	terms := float64(in.Quote.Terms)
	amount := float64(in.Invoice.Amount.Amount)
	cost := amount * (1 + rate*terms/365)
	if cost >= 0 {
		return int64(math.Floor(cost + 0.5))
	}
	return int64(math.Ceil(cost - 0.5))
}
