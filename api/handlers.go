package api

import (
	"errors"
	"net/http"

	"github.com/uptrace/bunrouter"

	settlenet "github.com/flowcap/settlenet"
	"github.com/flowcap/settlenet/id"
	"github.com/flowcap/settlenet/pricing"
	"github.com/flowcap/settlenet/settlement"
)

// submitInvoice handles POST /invoices (spec §6).
func (s *Server) submitInvoice(w http.ResponseWriter, req bunrouter.Request) error {
	var body submitInvoiceRequest
	if err := decodeJSON(req.Request, &body); err != nil {
		return badRequest(err)
	}
	if err := s.validate.Struct(body); err != nil {
		return badRequest(err)
	}

	supplierID, err := id.ParseAccountID(body.SupplierID)
	if err != nil {
		return badRequest(err)
	}
	buyerID, err := id.ParseAccountID(body.BuyerID)
	if err != nil {
		return badRequest(err)
	}

	inv, err := s.network.SubmitInvoice(req.Context(), settlenet.SubmitInvoiceInput{
		SupplierID: supplierID,
		BuyerID:    buyerID,
		Currency:   body.Currency,
		Terms:      body.Terms,
		LineItems:  body.toLineItems(),
	})
	if err != nil {
		return err
	}

	return writeJSON(w, http.StatusCreated, inv)
}

// getInvoice handles GET /invoices/{id}.
func (s *Server) getInvoice(w http.ResponseWriter, req bunrouter.Request) error {
	invID, err := id.ParseInvoiceID(req.Params().ByName("id"))
	if err != nil {
		return badRequest(err)
	}

	inv, err := s.network.GetInvoice(req.Context(), invID)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, inv)
}

// getQuote handles GET /invoices/{id}/quote?terms={days}. It first looks
// for a quote already issued for the given terms and returns that one
// unchanged; only when none exists (or it has expired) does it close the
// auction and mint a new one. This keeps repeated calls idempotent
// instead of re-running price discovery and picking a new winning bid on
// every request.
func (s *Server) getQuote(w http.ResponseWriter, req bunrouter.Request) error {
	invID, err := id.ParseInvoiceID(req.Params().ByName("id"))
	if err != nil {
		return badRequest(err)
	}

	inv, err := s.network.GetInvoice(req.Context(), invID)
	if err != nil {
		return err
	}

	terms := int(parseInt64(req.URL.Query().Get("terms"), int64(inv.Terms)))

	quote, err := s.network.GetQuote(req.Context(), invID, terms)
	if err == nil {
		return writeJSON(w, http.StatusOK, quote)
	}
	if !errors.Is(err, pricing.ErrQuoteNotFound) && !errors.Is(err, pricing.ErrQuoteExpired) {
		return err
	}

	quote, err = s.network.CloseAuction(req.Context(), invID)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, quote)
}

// acceptInvoice handles POST /invoices/{id}/accept.
func (s *Server) acceptInvoice(w http.ResponseWriter, req bunrouter.Request) error {
	invID, err := id.ParseInvoiceID(req.Params().ByName("id"))
	if err != nil {
		return badRequest(err)
	}

	var body acceptInvoiceRequest
	if err := decodeJSON(req.Request, &body); err != nil {
		return badRequest(err)
	}
	if err := s.validate.Struct(body); err != nil {
		return badRequest(err)
	}

	quoteID, err := id.ParseQuoteID(body.QuoteID)
	if err != nil {
		return badRequest(err)
	}

	outcome, err := s.network.AcceptInvoice(req.Context(), settlenet.AcceptInvoiceInput{
		InvoiceID:    invID,
		QuoteID:      quoteID,
		Signature:    body.Signature,
		AcceptanceID: body.AcceptanceID,
	})
	if err != nil {
		return err
	}

	status := http.StatusOK
	if outcome.Kind != settlement.OutcomeOK {
		status = http.StatusUnprocessableEntity
	}
	return writeJSON(w, status, outcome)
}

// submitBid handles POST /bids.
func (s *Server) submitBid(w http.ResponseWriter, req bunrouter.Request) error {
	var body submitBidRequest
	if err := decodeJSON(req.Request, &body); err != nil {
		return badRequest(err)
	}
	if err := s.validate.Struct(body); err != nil {
		return badRequest(err)
	}

	in, err := body.toBid()
	if err != nil {
		return badRequest(err)
	}

	bid := &pricing.CapitalBid{
		ID:           id.NewBidID(),
		ProviderID:   in.ProviderID,
		InvoiceID:    in.InvoiceID,
		DiscountRate: in.Rate,
		Capacity:     in.Capacity,
		ExpiresAt:    in.ExpiresAt,
	}

	if err := s.network.SubmitBid(req.Context(), bid); err != nil {
		return err
	}
	return writeJSON(w, http.StatusCreated, bid)
}

// health handles GET /health.
func (s *Server) health(w http.ResponseWriter, req bunrouter.Request) error {
	if err := s.network.Health(req.Context()); err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// reconcile handles GET /ledger/reconcile.
func (s *Server) reconcile(w http.ResponseWriter, req bunrouter.Request) error {
	q := req.URL.Query()
	fromSeqNo := parseInt64(q.Get("from_seq_no"), 0)
	toSeqNo := parseInt64(q.Get("to_seq_no"), 0)
	currency := q.Get("currency")
	if currency == "" {
		currency = "usd"
	}

	result, err := s.network.Reconcile(req.Context(), fromSeqNo, toSeqNo, currency)
	if err != nil {
		return err
	}

	return writeJSON(w, http.StatusOK, reconcileResponse{
		Balanced:        result.Balanced,
		ImbalanceAmount: result.ImbalanceAmount,
		Currency:        result.Currency,
	})
}
