package settlenet

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/flowcap/settlenet/account"
	"github.com/flowcap/settlenet/decision"
	"github.com/flowcap/settlenet/fraud"
	"github.com/flowcap/settlenet/id"
	"github.com/flowcap/settlenet/invariant"
	"github.com/flowcap/settlenet/invoice"
	ledgerpkg "github.com/flowcap/settlenet/ledger"
	"github.com/flowcap/settlenet/plugin"
	"github.com/flowcap/settlenet/pricing"
	"github.com/flowcap/settlenet/rail"
	"github.com/flowcap/settlenet/scheduler"
	"github.com/flowcap/settlenet/settlement"
	"github.com/flowcap/settlenet/store"
	"github.com/flowcap/settlenet/types"
)

// Network is the settlement network facade: it owns every component
// (account registry, pricing engine, fraud gate, rail registry, ledger,
// decision ledger, invariant engine, settlement coordinator, and
// lifecycle scheduler) wired against a single backing Store, and exposes
// the operations a caller needs to submit, price, and settle an invoice.
type Network struct {
	store store.Store

	accounts    *account.Registry
	pricing     *pricing.Engine
	fraud       *fraud.Gate
	rails       *rail.Registry
	ledger      *ledgerpkg.Ledger
	decisions   *decision.Ledger
	invariants  *invariant.Engine
	coordinator *settlement.Coordinator
	scheduler   *scheduler.Scheduler

	invoices invoice.Store

	plugins *plugin.Registry
	logger  *slog.Logger

	auctionDuration time.Duration

	stopChan chan struct{}
	wg       sync.WaitGroup
}

// New wires every component from a single backing Store plus the
// external collaborators the domain packages declare at their own
// boundaries: a credit bureau and sanctions screener (account.Registry),
// a fraud-scoring oracle (fraud.Gate), a fallback discount rate used on
// thin auctions (pricing.Engine), and the list of invariants the
// invariant.Engine handed to the settlement coordinator is built from.
// New does not set settlement.WithPostInvariants, so the post-settlement
// barrier checks none of these invariants, and the scheduler is given no
// invariant engine.
func New(
	s store.Store,
	bureau account.CreditBureau,
	screener account.SanctionsScreener,
	oracle fraud.Oracle,
	fallbackRate types.Rate,
	hmacKey []byte,
	invariants []*invariant.Invariant,
	opts ...Option,
) (*Network, error) {
	n := &Network{
		store:           s,
		invoices:        store.InvoiceAdapter{Store: s},
		plugins:         plugin.NewRegistry(),
		logger:          slog.Default(),
		auctionDuration: pricing.AuctionWindow,
		stopChan:        make(chan struct{}),
	}

	for _, opt := range opts {
		opt(n)
	}

	n.accounts = account.NewRegistry(store.AccountAdapter{Store: s}, bureau, screener, account.WithLogger(n.logger))
	n.pricing = pricing.New(store.PricingAdapter{Store: s}, fallbackRate,
		pricing.WithLogger(n.logger),
		pricing.WithLowLiquidityHook(n.handleLowLiquidity),
	)
	n.fraud = fraud.New(oracle, fraud.WithLogger(n.logger))
	n.rails = rail.NewRegistry(rail.WithLogger(n.logger))
	n.ledger = ledgerpkg.New(store.LedgerAdapter{Store: s}, hmacKey, ledgerpkg.WithLogger(n.logger))
	n.decisions = decision.New(store.DecisionAdapter{Store: s}, hmacKey, decision.WithLogger(n.logger))

	engine, err := invariant.NewEngine(invariants, invariant.WithLogger(n.logger))
	if err != nil {
		return nil, fmt.Errorf("build invariant engine: %w", err)
	}
	n.invariants = engine

	n.coordinator = settlement.New(
		n.accounts, n.invoices, n.fraud, n.rails, n.ledger, n.decisions, n.invariants,
		store.SettlementAdapter{Store: s},
		settlement.WithLogger(n.logger),
	)

	n.scheduler = scheduler.New(
		n.invoices, store.PricingAdapter{Store: s}, n.accounts, store.SettlementAdapter{Store: s}, n.rails, n.ledger,
		scheduler.WithLogger(n.logger),
	)

	for _, p := range n.plugins.GetRailAdapters() {
		if a, ok := p.Adapter().(rail.Adapter); ok {
			n.rails.Register(a)
		}
	}

	return n, nil
}

// Option configures a Network instance.
type Option func(*Network)

// WithLogger sets the logger used by the facade and every component it
// constructs.
func WithLogger(logger *slog.Logger) Option {
	return func(n *Network) {
		n.logger = logger
		n.plugins.WithLogger(logger)
	}
}

// WithPlugin registers a plugin. Plugins implementing RailAdapterPlugin
// contribute a rail.Adapter that is wired into the rail registry when
// New returns.
func WithPlugin(p plugin.Plugin) Option {
	return func(n *Network) {
		_ = n.plugins.Register(p) //nolint:errcheck // best-effort plugin registration during init
	}
}

// WithAuctionDuration overrides the default bidding window used by
// SubmitInvoice (spec §4.6 default, 10s).
func WithAuctionDuration(d time.Duration) Option {
	return func(n *Network) { n.auctionDuration = d }
}

// Start migrates the store, fires plugin init hooks, and launches the
// lifecycle scheduler. Rail adapters contributed by plugins are already
// wired by New.
func (n *Network) Start(ctx context.Context) error {
	if err := n.store.Migrate(ctx); err != nil {
		return err
	}

	n.plugins.EmitInit(ctx, n)
	n.scheduler.Start(ctx)

	n.logger.Info("settlement network started", "auction_duration", n.auctionDuration)
	return nil
}

// Stop drains the scheduler and closes the store.
func (n *Network) Stop() error {
	n.scheduler.Stop()

	ctx := context.Background()
	n.plugins.EmitShutdown(ctx)

	return n.store.Close()
}

// ──────────────────────────────────────────────────
// Invoice submission
// ──────────────────────────────────────────────────

// SubmitInvoiceInput is the caller-supplied content of a new invoice.
type SubmitInvoiceInput struct {
	SupplierID id.AccountID
	BuyerID    id.AccountID
	Currency   string
	Terms      int
	LineItems  []invoice.LineItem
}

// SubmitInvoice admits a new invoice (spec §4.4): validates amount and
// terms, screens for duplicates by content hash, screens both parties for
// sanctions, runs the initial fraud score, and — unless the fraud gate
// routes the invoice to manual review — opens a capital auction.
func (n *Network) SubmitInvoice(ctx context.Context, in SubmitInvoiceInput) (*invoice.Invoice, error) {
	if in.SupplierID == in.BuyerID {
		return nil, ErrSameAccount
	}
	if !invoice.IsValidTerms(in.Terms) {
		return nil, ErrInvalidTerms
	}

	amount := invoice.LineItemTotal(in.LineItems, in.Currency)
	if amount.Amount < invoice.MinAmountMinor || amount.Amount > invoice.MaxAmountMinor {
		return nil, ErrAmountOutOfRange
	}

	hash := invoice.ComputeHash(in.SupplierID, in.BuyerID, amount.Amount, in.Currency, in.LineItems)
	if _, err := n.invoices.GetByHash(ctx, hash); err == nil {
		return nil, ErrDuplicateHash
	} else if err != ErrInvoiceNotFound && !IsNotFound(err) {
		return nil, fmt.Errorf("dedup lookup: %w", err)
	}

	for _, acctID := range []id.AccountID{in.SupplierID, in.BuyerID} {
		a, err := n.accounts.Get(ctx, acctID)
		if err != nil {
			return nil, fmt.Errorf("get account %s: %w", acctID.String(), err)
		}
		if a.Status != account.StatusActive {
			return nil, ErrAccountNotActive
		}
		if a.KYCStatus != account.KYCVerified {
			return nil, ErrKYCNotVerified
		}
		if clear, err := n.accounts.ScreenSanctions(ctx, acctID); err != nil {
			return nil, fmt.Errorf("screen sanctions: %w", err)
		} else if !clear {
			return nil, ErrSanctionsBlocked
		}
	}

	now := time.Now()
	inv := &invoice.Invoice{
		Entity:     types.NewEntity(),
		ID:         id.NewInvoiceID(),
		SupplierID: in.SupplierID,
		BuyerID:    in.BuyerID,
		Amount:     amount,
		Terms:      in.Terms,
		Hash:       hash,
		Status:     invoice.StatusPending,
		LineItems:  in.LineItems,
	}
	for i := range inv.LineItems {
		inv.LineItems[i].InvoiceID = inv.ID
		if inv.LineItems[i].ID == id.Nil {
			inv.LineItems[i].ID = id.NewLineItemID()
		}
	}

	if err := n.invoices.Create(ctx, inv); err != nil {
		return nil, fmt.Errorf("create invoice: %w", err)
	}
	n.plugins.EmitInvoiceSubmitted(ctx, inv)

	verdict, score, scoredAt, err := n.fraud.CheckFresh(ctx, inv.ID, 0, time.Time{})
	if err != nil {
		n.logger.Error("initial fraud scoring failed", "invoice_id", inv.ID.String(), "error", err)
	} else {
		if err := n.invoices.UpdateFraudScore(ctx, inv.ID, score, scoredAt); err != nil {
			n.logger.Error("persist fraud score failed", "invoice_id", inv.ID.String(), "error", err)
		}
		inv.FraudScore, inv.FraudScoredAt = score, scoredAt

		if !verdict.Pass {
			if err := n.invoices.Transition(ctx, inv.ID, invoice.StatusFraudReview, now); err != nil {
				n.logger.Error("transition to fraud-review failed", "invoice_id", inv.ID.String(), "error", err)
			} else {
				inv.Status = invoice.StatusFraudReview
			}
			n.plugins.EmitFraudFlagged(ctx, inv, score)
			return inv, nil
		}
	}

	closesAt := now.Add(n.auctionDuration)
	if _, err := n.pricing.OpenAuction(ctx, inv.ID, n.auctionDuration); err != nil {
		n.logger.Error("open auction failed", "invoice_id", inv.ID.String(), "error", err)
		return inv, nil
	}
	n.plugins.EmitAuctionOpened(ctx, inv.ID.String(), closesAt)

	return inv, nil
}

// GetInvoice returns an invoice by id.
func (n *Network) GetInvoice(ctx context.Context, invID id.InvoiceID) (*invoice.Invoice, error) {
	return n.invoices.Get(ctx, invID)
}

// ListInvoices returns invoices for an account, newest first.
func (n *Network) ListInvoices(ctx context.Context, acctID id.AccountID, opts invoice.ListOpts) ([]*invoice.Invoice, error) {
	return n.invoices.List(ctx, acctID, opts)
}

// ──────────────────────────────────────────────────
// Pricing / auction
// ──────────────────────────────────────────────────

// SubmitBid records a capital provider's bid against an open auction.
func (n *Network) SubmitBid(ctx context.Context, bid *pricing.CapitalBid) error {
	return n.pricing.SubmitBid(ctx, bid)
}

// GetQuote returns the already-issued live quote for (invoice, terms),
// if one exists, without running a new auction. Backs `GET
// /invoices/{id}/quote` when a quote has already been issued; callers
// fall back to CloseAuction when none is found.
func (n *Network) GetQuote(ctx context.Context, invID id.InvoiceID, terms int) (*pricing.Quote, error) {
	return n.pricing.GetQuote(ctx, invID, terms)
}

// CloseAuction closes the auction for an invoice and issues a quote, the
// operation backing `GET /invoices/{id}/quote` once the bidding window
// has elapsed.
func (n *Network) CloseAuction(ctx context.Context, invID id.InvoiceID) (*pricing.Quote, error) {
	inv, err := n.invoices.Get(ctx, invID)
	if err != nil {
		return nil, fmt.Errorf("get invoice: %w", err)
	}

	_, quote, err := n.pricing.CloseAndSelect(ctx, invID, inv.Amount, inv.Terms)
	if err != nil {
		return nil, fmt.Errorf("close auction: %w", err)
	}
	n.plugins.EmitQuoteIssued(ctx, quote)
	return quote, nil
}

func (n *Network) handleLowLiquidity(invID id.InvoiceID, eligibleBids int) {
	n.plugins.EmitAuctionClosed(context.Background(), invID.String(), eligibleBids)
}

// ──────────────────────────────────────────────────
// Acceptance and settlement
// ──────────────────────────────────────────────────

// AcceptInvoiceInput is the caller-supplied content of a `POST
// /invoices/{id}/accept` request.
type AcceptInvoiceInput struct {
	InvoiceID    id.InvoiceID
	QuoteID      id.QuoteID
	Signature    string
	AcceptanceID string
}

// AcceptInvoice binds a quote to an invoice, reserves the buyer's credit,
// transitions the invoice to accepted, and drives it through the
// settlement coordinator's two-phase commit (spec §4.8). On any
// rejection the credit reservation is released and no ledger write
// occurs.
func (n *Network) AcceptInvoice(ctx context.Context, in AcceptInvoiceInput) (settlement.Outcome, error) {
	if in.Signature == "" {
		return settlement.Outcome{}, ErrUnauthorized
	}

	inv, err := n.invoices.Get(ctx, in.InvoiceID)
	if err != nil {
		return settlement.Outcome{}, fmt.Errorf("get invoice: %w", err)
	}
	if inv.Status != invoice.StatusPending {
		return settlement.Outcome{}, ErrInvalidTransition
	}

	quote, err := n.store.GetQuote(ctx, in.QuoteID)
	if err != nil {
		return settlement.Outcome{}, fmt.Errorf("get quote: %w", err)
	}
	if quote.InvoiceID != in.InvoiceID {
		return settlement.Outcome{}, ErrInvalidInput
	}

	if err := n.accounts.ReserveCredit(ctx, inv.BuyerID, quote.TotalCost.Amount); err != nil {
		return settlement.Outcome{}, fmt.Errorf("reserve credit: %w", err)
	}

	if err := n.pricing.Consume(ctx, in.QuoteID); err != nil {
		n.releaseCredit(ctx, inv.BuyerID, quote.TotalCost.Amount)
		return settlement.Outcome{}, fmt.Errorf("consume quote: %w", err)
	}

	now := time.Now()
	if err := n.invoices.Transition(ctx, inv.ID, invoice.StatusAccepted, now); err != nil {
		n.releaseCredit(ctx, inv.BuyerID, quote.TotalCost.Amount)
		return settlement.Outcome{}, fmt.Errorf("transition to accepted: %w", err)
	}
	inv.Status = invoice.StatusAccepted
	inv.AcceptedAt = &now
	n.plugins.EmitInvoiceAccepted(ctx, inv)

	started := time.Now()
	outcome, err := n.coordinator.Settle(ctx, settlement.Input{
		Invoice:      inv,
		Quote:        quote,
		Signature:    in.Signature,
		AcceptanceID: in.AcceptanceID,
	})
	if err != nil {
		return outcome, err
	}

	switch outcome.Kind {
	case settlement.OutcomeOK:
		n.plugins.EmitSettlementCompleted(ctx, outcome.Settlement, time.Since(started))
	case settlement.OutcomeReject:
		n.releaseCredit(ctx, inv.BuyerID, quote.TotalCost.Amount)
		n.plugins.EmitInvoiceRejected(ctx, inv, outcome.Reason)
	case settlement.OutcomeAbort:
		n.releaseCredit(ctx, inv.BuyerID, quote.TotalCost.Amount)
		n.plugins.EmitSettlementFailed(ctx, inv.ID.String(), outcome.Reason)
	}

	return outcome, nil
}

func (n *Network) releaseCredit(ctx context.Context, buyer id.AccountID, amountMinor int64) {
	if err := n.accounts.ReleaseCredit(ctx, buyer, amountMinor); err != nil {
		n.logger.Error("release credit reservation failed", "account_id", buyer.String(), "error", err)
	}
}

// ──────────────────────────────────────────────────
// Ledger and health
// ──────────────────────────────────────────────────

// Reconcile runs a ledger reconciliation pass over [fromSeqNo, toSeqNo)
// for currency, the operation backing `GET /ledger/reconcile`.
func (n *Network) Reconcile(ctx context.Context, fromSeqNo, toSeqNo int64, currency string) (ledgerpkg.ReconcileResult, error) {
	result, err := n.ledger.Reconcile(ctx, fromSeqNo, toSeqNo, currency)
	if err != nil {
		return result, err
	}
	if !result.Balanced {
		n.plugins.EmitReconcileImbalance(ctx, result)
	}
	return result, nil
}

// Health reports whether the backing store is reachable, for `GET
// /health`.
func (n *Network) Health(ctx context.Context) error {
	return n.store.Ping(ctx)
}
