// Package settlenet provides a real-time B2B invoice-financing settlement
// network for Go applications.
//
// Settlenet is designed as a library, not a service. Import it directly into
// your Go application for maximum control over transport and deployment. It
// provides:
//
//   - Invoice admission with content-hash dedup and sanctions/KYC screening
//   - Fraud scoring with a freshness window and manual-review routing
//   - Bounded-window capital auctions with lowest-discount-rate selection
//   - Two-phase settlement across pluggable payment rails with compensation
//   - A hash-chained, HMAC-signed money ledger and a separate decision ledger
//   - An invariant engine that can escalate violations into a system freeze
//   - Production metrics via a pluggable MetricFactory
//
// # Quick Start
//
// Create a network instance with your preferred store:
//
//	import (
//	    settlenet "github.com/flowcap/settlenet"
//	    "github.com/flowcap/settlenet/store/postgres"
//	)
//
//	// Initialize store
//	st, err := postgres.New(databaseURL)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Create network
//	n, err := settlenet.New(st, bureau, screener, oracle,
//	    settlenet.BP(75), hmacKey, invariants)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Start the network (begins background workers)
//	if err := n.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer n.Stop()
//
// # Core Concepts
//
// Invoices are a supplier's claim against a buyer, submitted for financing:
//
//	inv, err := n.SubmitInvoice(ctx, settlenet.SubmitInvoiceInput{
//	    SupplierID: supplierID,
//	    BuyerID:    buyerID,
//	    Currency:   "USD",
//	    Terms:      30,
//	    LineItems:  items,
//	})
//
// Capital providers bid in the auction that opens on submission; the engine
// selects the lowest eligible discount rate and issues a quote:
//
//	quote, err := n.CloseAuction(ctx, inv.ID)
//
// Accepting the quote drives the invoice through the settlement
// coordinator's two-phase commit across the selected rail:
//
//	outcome, err := n.AcceptInvoice(ctx, settlenet.AcceptInvoiceInput{
//	    InvoiceID: inv.ID,
//	    QuoteID:   quote.ID,
//	    Signature: sig,
//	})
//
// # Performance
//
// Settlenet targets the latency budgets of a real-time settlement hot path:
//
//   - Pre-barrier admission checks: single round trip per collaborator
//   - Settlement two-phase commit: bounded by a 5-second time budget per leg set
//   - Reconciliation: runs over a bounded sequence-number window, not a full scan
//
// All monetary calculations use integer arithmetic to avoid floating-point
// precision issues. The Money type represents amounts in the smallest
// currency unit (cents for USD, pence for GBP, etc).
//
// # Integration
//
// Settlenet plugs into the surrounding ecosystem through its plugin
// registry:
//
//   - Rail adapters: contribute a payment rail via RailAdapterPlugin
//   - Fraud scorers: swap in a custom scoring model via FraudScorer
//   - Settlement formatters: export settlement records via SettlementFormatter
//   - Audit: decision-ledger-backed audit trail via the audit_hook package
//   - Observability: production metrics via the observability package
//
// # TypeID
//
// All entities use TypeID for globally unique, type-safe identifiers:
//
//	acct_01h2xcejqtf2nbrexx3vqjhp41  // Account ID
//	inv_01h2xcejqtf2nbrexx3vqjhp41   // Invoice ID
//	stl_01h455vb4pex5vsknk084sn02q   // Settlement ID
//
// TypeIDs are K-sortable, making them ideal for database indexes and
// providing natural time-ordering of entities.
package settlenet
