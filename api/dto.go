// Package api exposes the settlement network's Boundary APIs (spec §6)
// over JSON/HTTPS: invoice submission, quoting, acceptance, bidding, and
// the operational health/reconcile endpoints.
package api

import (
	"time"

	"github.com/flowcap/settlenet/id"
	"github.com/flowcap/settlenet/invoice"
	"github.com/flowcap/settlenet/types"
)

// submitInvoiceRequest is the body of POST /invoices.
type submitInvoiceRequest struct {
	SupplierID string                 `json:"supplier_id" validate:"required"`
	BuyerID    string                 `json:"buyer_id" validate:"required"`
	Currency   string                 `json:"currency" validate:"required,len=3"`
	Terms      int                    `json:"terms_days" validate:"required"`
	LineItems  []lineItemRequest      `json:"line_items" validate:"required,min=1,dive"`
}

type lineItemRequest struct {
	Description string `json:"description" validate:"required"`
	Quantity    int64  `json:"quantity" validate:"required,min=1"`
	UnitPrice   int64  `json:"unit_price_minor" validate:"min=0"`
}

func (r submitInvoiceRequest) toLineItems() []invoice.LineItem {
	items := make([]invoice.LineItem, 0, len(r.LineItems))
	for _, li := range r.LineItems {
		unit := types.Money{Amount: li.UnitPrice, Currency: r.Currency}
		items = append(items, invoice.LineItem{
			Description: li.Description,
			Quantity:    li.Quantity,
			UnitPrice:   unit,
			Amount:      unit.Multiply(li.Quantity),
		})
	}
	return items
}

// acceptInvoiceRequest is the body of POST /invoices/{id}/accept.
type acceptInvoiceRequest struct {
	QuoteID      string `json:"quote_id" validate:"required"`
	Signature    string `json:"signature" validate:"required"`
	AcceptanceID string `json:"acceptance_id" validate:"required"`
}

// submitBidRequest is the body of POST /bids.
type submitBidRequest struct {
	ProviderID      string `json:"provider_id" validate:"required"`
	InvoiceID       string `json:"invoice_id" validate:"required"`
	DiscountRateBP  int64  `json:"discount_rate_bp" validate:"required"`
	CapacityMinor   int64  `json:"capacity_minor" validate:"required,min=1"`
	Currency        string `json:"currency" validate:"required,len=3"`
	ExpiresInSecond int64  `json:"expires_in_s" validate:"required,min=1"`
}

func (r submitBidRequest) toBid() (*pricingBidInput, error) {
	providerID, err := id.ParseAccountID(r.ProviderID)
	if err != nil {
		return nil, err
	}
	invoiceID, err := id.ParseInvoiceID(r.InvoiceID)
	if err != nil {
		return nil, err
	}
	return &pricingBidInput{
		ProviderID: providerID,
		InvoiceID:  invoiceID,
		Rate:       types.BP(r.DiscountRateBP),
		Capacity:   types.Money{Amount: r.CapacityMinor, Currency: r.Currency},
		ExpiresAt:  timeNow().Add(time.Duration(r.ExpiresInSecond) * time.Second),
	}, nil
}

// pricingBidInput avoids importing pricing into this file's top-level
// import block twice; populated fields mirror pricing.CapitalBid minus
// its server-assigned ID.
type pricingBidInput struct {
	ProviderID id.AccountID
	InvoiceID  id.InvoiceID
	Rate       types.Rate
	Capacity   types.Money
	ExpiresAt  time.Time
}

// reconcileResponse mirrors ledger.ReconcileResult for the JSON boundary.
type reconcileResponse struct {
	Balanced        bool   `json:"balanced"`
	ImbalanceAmount int64  `json:"imbalance_amount"`
	Currency        string `json:"currency"`
}

var timeNow = time.Now
