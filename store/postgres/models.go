package postgres

import (
	"time"

	"github.com/xraph/grove"

	"encoding/json"

	"github.com/flowcap/settlenet/account"
	"github.com/flowcap/settlenet/decision"
	"github.com/flowcap/settlenet/id"
	"github.com/flowcap/settlenet/invariant"
	"github.com/flowcap/settlenet/invoice"
	ledgerpkg "github.com/flowcap/settlenet/ledger"
	"github.com/flowcap/settlenet/pricing"
	"github.com/flowcap/settlenet/settlement"
	"github.com/flowcap/settlenet/types"
)

// ==================== Account model ====================

type accountModel struct {
	grove.BaseModel `grove:"table:settlenet_accounts"`

	ID                   string `grove:"id,pk"`
	Role                 string `grove:"role"`
	Status               string `grove:"status"`
	KYCStatus            string `grove:"kyc_status"`
	KYCCheckedAt         time.Time `grove:"kyc_checked_at"`
	BalanceAmount        int64  `grove:"balance_amount"`
	BalanceCurrency      string `grove:"balance_currency"`
	CreditLimitAmount    *int64 `grove:"credit_limit_amount"`
	CreditLimitCurrency  string `grove:"credit_limit_currency"`
	CreditLimitCheckedAt time.Time `grove:"credit_limit_checked_at"`
	ReservedAmount       int64  `grove:"reserved_amount"`
	ReservedCurrency     string `grove:"reserved_currency"`
	ReservedAt           time.Time `grove:"reserved_at"`
	SanctionsClear       bool   `grove:"sanctions_clear"`
	SanctionsCheckedAt   time.Time `grove:"sanctions_checked_at"`
	CreatedAt            time.Time `grove:"created_at"`
	UpdatedAt            time.Time `grove:"updated_at"`
}

func toAccountModel(a *account.Account) *accountModel {
	m := &accountModel{
		ID:                  a.ID.String(),
		Role:                string(a.Role),
		Status:              string(a.Status),
		KYCStatus:           string(a.KYCStatus),
		KYCCheckedAt:        a.KYCCheckedAt,
		BalanceAmount:       a.Balance.Amount,
		BalanceCurrency:     a.Balance.Currency,
		CreditLimitCheckedAt: a.CreditLimitCheckedAt,
		ReservedAmount:      a.ReservedCredit.Amount,
		ReservedCurrency:    a.ReservedCredit.Currency,
		ReservedAt:          a.ReservedAt,
		SanctionsClear:      a.SanctionsClear,
		SanctionsCheckedAt:  a.SanctionsCheckedAt,
		CreatedAt:           a.CreatedAt,
		UpdatedAt:           a.UpdatedAt,
	}
	if a.CreditLimit != nil {
		m.CreditLimitAmount = &a.CreditLimit.Amount
		m.CreditLimitCurrency = a.CreditLimit.Currency
	}
	return m
}

func fromAccountModel(m *accountModel) (*account.Account, error) {
	acctID, err := id.ParseWithPrefix(m.ID, id.PrefixAccount)
	if err != nil {
		return nil, err
	}
	a := &account.Account{
		Entity:               types.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		ID:                   acctID,
		Role:                 account.Role(m.Role),
		Status:               account.Status(m.Status),
		KYCStatus:            account.KYCStatus(m.KYCStatus),
		KYCCheckedAt:         m.KYCCheckedAt,
		Balance:              types.Money{Amount: m.BalanceAmount, Currency: m.BalanceCurrency},
		CreditLimitCheckedAt: m.CreditLimitCheckedAt,
		ReservedCredit:       types.Money{Amount: m.ReservedAmount, Currency: m.ReservedCurrency},
		ReservedAt:           m.ReservedAt,
		SanctionsClear:       m.SanctionsClear,
		SanctionsCheckedAt:   m.SanctionsCheckedAt,
	}
	if m.CreditLimitAmount != nil {
		a.CreditLimit = &types.Money{Amount: *m.CreditLimitAmount, Currency: m.CreditLimitCurrency}
	}
	return a, nil
}

// ==================== Invoice model ====================

type invoiceModel struct {
	grove.BaseModel `grove:"table:settlenet_invoices"`

	ID            string    `grove:"id,pk"`
	SupplierID    string    `grove:"supplier_id"`
	BuyerID       string    `grove:"buyer_id"`
	AmountMinor   int64     `grove:"amount_minor"`
	Currency      string    `grove:"currency"`
	Terms         int       `grove:"terms_days"`
	Hash          string    `grove:"hash"`
	Status        string    `grove:"status"`
	FraudScore    float64   `grove:"fraud_score"`
	FraudScoredAt time.Time `grove:"fraud_scored_at"`
	AcceptedAt    *time.Time `grove:"accepted_at"`
	SettledAt     *time.Time `grove:"settled_at"`
	CreatedAt     time.Time `grove:"created_at"`
	UpdatedAt     time.Time `grove:"updated_at"`
}

func toInvoiceModel(inv *invoice.Invoice) *invoiceModel {
	return &invoiceModel{
		ID:            inv.ID.String(),
		SupplierID:    inv.SupplierID.String(),
		BuyerID:       inv.BuyerID.String(),
		AmountMinor:   inv.Amount.Amount,
		Currency:      inv.Amount.Currency,
		Terms:         inv.Terms,
		Hash:          inv.Hash,
		Status:        string(inv.Status),
		FraudScore:    inv.FraudScore,
		FraudScoredAt: inv.FraudScoredAt,
		AcceptedAt:    inv.AcceptedAt,
		SettledAt:     inv.SettledAt,
		CreatedAt:     inv.CreatedAt,
		UpdatedAt:     inv.UpdatedAt,
	}
}

func fromInvoiceModel(m *invoiceModel) (*invoice.Invoice, error) {
	invID, err := id.ParseWithPrefix(m.ID, id.PrefixInvoice)
	if err != nil {
		return nil, err
	}
	supplierID, err := id.ParseWithPrefix(m.SupplierID, id.PrefixAccount)
	if err != nil {
		return nil, err
	}
	buyerID, err := id.ParseWithPrefix(m.BuyerID, id.PrefixAccount)
	if err != nil {
		return nil, err
	}
	return &invoice.Invoice{
		Entity:        types.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		ID:            invID,
		SupplierID:    supplierID,
		BuyerID:       buyerID,
		Amount:        types.Money{Amount: m.AmountMinor, Currency: m.Currency},
		Terms:         m.Terms,
		Hash:          m.Hash,
		Status:        invoice.Status(m.Status),
		FraudScore:    m.FraudScore,
		FraudScoredAt: m.FraudScoredAt,
		AcceptedAt:    m.AcceptedAt,
		SettledAt:     m.SettledAt,
	}, nil
}

// ==================== Auction / bid / quote models ====================

type auctionModel struct {
	grove.BaseModel `grove:"table:settlenet_auctions"`

	InvoiceID string    `grove:"invoice_id,pk"`
	Status    string    `grove:"status"`
	OpenedAt  time.Time `grove:"opened_at"`
	ClosesAt  time.Time `grove:"closes_at"`
}

func toAuctionModel(a *pricing.Auction) *auctionModel {
	return &auctionModel{
		InvoiceID: a.InvoiceID.String(),
		Status:    string(a.Status),
		OpenedAt:  a.OpenedAt,
		ClosesAt:  a.ClosesAt,
	}
}

func fromAuctionModel(m *auctionModel) (*pricing.Auction, error) {
	invID, err := id.ParseWithPrefix(m.InvoiceID, id.PrefixInvoice)
	if err != nil {
		return nil, err
	}
	return &pricing.Auction{
		InvoiceID: invID,
		Status:    pricing.AuctionStatus(m.Status),
		OpenedAt:  m.OpenedAt,
		ClosesAt:  m.ClosesAt,
	}, nil
}

type bidModel struct {
	grove.BaseModel `grove:"table:settlenet_bids"`

	ID             string  `grove:"id,pk"`
	ProviderID     string  `grove:"provider_id"`
	InvoiceID      string  `grove:"invoice_id"`
	DiscountBP     int64   `grove:"discount_bp"`
	CapacityAmount int64   `grove:"capacity_amount"`
	CapacityCurrency string `grove:"capacity_currency"`
	ExpiresAt      time.Time `grove:"expires_at"`
}

func toBidModel(b *pricing.CapitalBid) *bidModel {
	return &bidModel{
		ID:               b.ID.String(),
		ProviderID:       b.ProviderID.String(),
		InvoiceID:        b.InvoiceID.String(),
		DiscountBP:       b.DiscountRate.BasisPoints,
		CapacityAmount:   b.Capacity.Amount,
		CapacityCurrency: b.Capacity.Currency,
		ExpiresAt:        b.ExpiresAt,
	}
}

func fromBidModel(m *bidModel) (*pricing.CapitalBid, error) {
	bidID, err := id.ParseWithPrefix(m.ID, id.PrefixBid)
	if err != nil {
		return nil, err
	}
	providerID, err := id.ParseWithPrefix(m.ProviderID, id.PrefixAccount)
	if err != nil {
		return nil, err
	}
	invID, err := id.ParseWithPrefix(m.InvoiceID, id.PrefixInvoice)
	if err != nil {
		return nil, err
	}
	return &pricing.CapitalBid{
		ID:           bidID,
		ProviderID:   providerID,
		InvoiceID:    invID,
		DiscountRate: types.BP(m.DiscountBP),
		Capacity:     types.Money{Amount: m.CapacityAmount, Currency: m.CapacityCurrency},
		ExpiresAt:    m.ExpiresAt,
	}, nil
}

type quoteModel struct {
	grove.BaseModel `grove:"table:settlenet_quotes"`

	ID              string     `grove:"id,pk"`
	InvoiceID       string     `grove:"invoice_id"`
	ProviderID      string     `grove:"provider_id"`
	Terms           int        `grove:"terms_days"`
	DiscountBP      int64      `grove:"discount_bp"`
	TotalCostAmount int64      `grove:"total_cost_amount"`
	TotalCostCurrency string   `grove:"total_cost_currency"`
	IssuedAt        time.Time  `grove:"issued_at"`
	ExpiresAt       time.Time  `grove:"expires_at"`
	Used            bool       `grove:"used"`
	UsedAt          *time.Time `grove:"used_at"`
}

func toQuoteModel(q *pricing.Quote) *quoteModel {
	return &quoteModel{
		ID:                q.ID.String(),
		InvoiceID:         q.InvoiceID.String(),
		ProviderID:        q.ProviderID.String(),
		Terms:             q.Terms,
		DiscountBP:        q.DiscountRate.BasisPoints,
		TotalCostAmount:   q.TotalCost.Amount,
		TotalCostCurrency: q.TotalCost.Currency,
		IssuedAt:          q.IssuedAt,
		ExpiresAt:         q.ExpiresAt,
		Used:              q.Used,
		UsedAt:            q.UsedAt,
	}
}

func fromQuoteModel(m *quoteModel) (*pricing.Quote, error) {
	quoteID, err := id.ParseWithPrefix(m.ID, id.PrefixQuote)
	if err != nil {
		return nil, err
	}
	invID, err := id.ParseWithPrefix(m.InvoiceID, id.PrefixInvoice)
	if err != nil {
		return nil, err
	}
	providerID, err := id.ParseWithPrefix(m.ProviderID, id.PrefixAccount)
	if err != nil {
		return nil, err
	}
	return &pricing.Quote{
		ID:           quoteID,
		InvoiceID:    invID,
		ProviderID:   providerID,
		Terms:        m.Terms,
		DiscountRate: types.BP(m.DiscountBP),
		TotalCost:    types.Money{Amount: m.TotalCostAmount, Currency: m.TotalCostCurrency},
		IssuedAt:     m.IssuedAt,
		ExpiresAt:    m.ExpiresAt,
		Used:         m.Used,
		UsedAt:       m.UsedAt,
	}, nil
}

// ==================== Ledger entry model ====================

type ledgerEntryModel struct {
	grove.BaseModel `grove:"table:settlenet_ledger_entries"`

	ID             string  `grove:"id,pk"`
	SeqNo          int64   `grove:"seq_no"`
	Type           string  `grove:"type"`
	AccountID      string  `grove:"account_id"`
	AmountMinor    int64   `grove:"amount_minor"`
	Currency       string  `grove:"currency"`
	Reason         string  `grove:"reason"`
	CorrectsEntry  *string `grove:"corrects_entry"`
	SettlementID   *string `grove:"settlement_id"`
	CreatedAt      time.Time `grove:"created_at"`
	PrevHash       string  `grove:"prev_hash"`
	Hash           string  `grove:"hash"`
	Signature      string  `grove:"signature"`
}

func toLedgerEntryModel(e *ledgerpkg.Entry) *ledgerEntryModel {
	m := &ledgerEntryModel{
		ID:          e.ID.String(),
		SeqNo:       e.SeqNo,
		Type:        string(e.Type),
		AccountID:   e.AccountID.String(),
		AmountMinor: e.Amount.Amount,
		Currency:    e.Amount.Currency,
		Reason:      e.Reason,
		CreatedAt:   e.CreatedAt,
		PrevHash:    e.PrevHash,
		Hash:        e.Hash,
		Signature:   e.Signature,
	}
	if e.CorrectsEntry != nil {
		s := e.CorrectsEntry.String()
		m.CorrectsEntry = &s
	}
	if e.SettlementID != nil {
		s := e.SettlementID.String()
		m.SettlementID = &s
	}
	return m
}

func fromLedgerEntryModel(m *ledgerEntryModel) (*ledgerpkg.Entry, error) {
	entryID, err := id.ParseWithPrefix(m.ID, id.PrefixLedgerEntry)
	if err != nil {
		return nil, err
	}
	acctID, err := id.ParseWithPrefix(m.AccountID, id.PrefixAccount)
	if err != nil {
		return nil, err
	}
	e := &ledgerpkg.Entry{
		Entity:    types.Entity{CreatedAt: m.CreatedAt},
		ID:        entryID,
		SeqNo:     m.SeqNo,
		Type:      ledgerpkg.EntryType(m.Type),
		AccountID: acctID,
		Amount:    types.Money{Amount: m.AmountMinor, Currency: m.Currency},
		Reason:    m.Reason,
		CreatedAt: m.CreatedAt,
		PrevHash:  m.PrevHash,
		Hash:      m.Hash,
		Signature: m.Signature,
	}
	if m.CorrectsEntry != nil {
		parsed, err := id.ParseWithPrefix(*m.CorrectsEntry, id.PrefixLedgerEntry)
		if err != nil {
			return nil, err
		}
		e.CorrectsEntry = &parsed
	}
	if m.SettlementID != nil {
		parsed, err := id.ParseWithPrefix(*m.SettlementID, id.PrefixSettlement)
		if err != nil {
			return nil, err
		}
		e.SettlementID = &parsed
	}
	return e, nil
}

// ==================== Decision record model ====================

type decisionRecordModel struct {
	grove.BaseModel `grove:"table:settlenet_decision_records"`

	ID          string    `grove:"id,pk"`
	SeqNo       int64     `grove:"seq_no"`
	InvariantID string    `grove:"invariant_id"`
	Phase       string    `grove:"phase"`
	Result      bool      `grove:"result"`
	Reason      string    `grove:"reason"`
	Action      string    `grove:"action"`
	Snapshot    json.RawMessage `grove:"snapshot,type:jsonb"`
	Actor       string    `grove:"actor"`
	CreatedAt   time.Time `grove:"created_at"`
	PrevHash    string    `grove:"prev_hash"`
	Hash        string    `grove:"hash"`
	Signature   string    `grove:"signature"`
}

func toDecisionRecordModel(r *decision.Record) *decisionRecordModel {
	snapshot, _ := json.Marshal(r.Snapshot) //nolint:errcheck // best-effort
	return &decisionRecordModel{
		ID:          r.ID.String(),
		SeqNo:       r.SeqNo,
		InvariantID: r.InvariantID,
		Phase:       string(r.Phase),
		Result:      r.Result,
		Reason:      r.Reason,
		Action:      string(r.Action),
		Snapshot:    snapshot,
		Actor:       r.Actor,
		CreatedAt:   r.CreatedAt,
		PrevHash:    r.PrevHash,
		Hash:        r.Hash,
		Signature:   r.Signature,
	}
}

func fromDecisionRecordModel(m *decisionRecordModel) (*decision.Record, error) {
	recID, err := id.ParseWithPrefix(m.ID, id.PrefixDecision)
	if err != nil {
		return nil, err
	}
	var snapshot map[string]any
	if len(m.Snapshot) > 0 && string(m.Snapshot) != "null" {
		_ = json.Unmarshal(m.Snapshot, &snapshot) //nolint:errcheck // best-effort
	}
	return &decision.Record{
		ID:          recID,
		SeqNo:       m.SeqNo,
		InvariantID: m.InvariantID,
		Phase:       invariant.Phase(m.Phase),
		Result:      m.Result,
		Reason:      m.Reason,
		Action:      invariant.Action(m.Action),
		Snapshot:    snapshot,
		Actor:       m.Actor,
		CreatedAt:   m.CreatedAt,
		PrevHash:    m.PrevHash,
		Hash:        m.Hash,
		Signature:   m.Signature,
	}, nil
}

// ==================== Settlement / leg models ====================

type settlementModel struct {
	grove.BaseModel `grove:"table:settlenet_settlements"`

	ID                string     `grove:"id,pk"`
	InvoiceID         string     `grove:"invoice_id"`
	SupplierID        string     `grove:"supplier_id"`
	BuyerID           string     `grove:"buyer_id"`
	ProviderID        string     `grove:"provider_id"`
	AmountMinor       int64      `grove:"amount_minor"`
	Currency          string     `grove:"currency"`
	DiscountBP        int64      `grove:"discount_bp"`
	BuyerCostAmount   int64      `grove:"buyer_cost_amount"`
	BuyerCostCurrency string     `grove:"buyer_cost_currency"`
	Status            string     `grove:"status"`
	Rail              string     `grove:"rail"`
	StartedAt         time.Time  `grove:"started_at"`
	CompletedAt       *time.Time `grove:"completed_at"`
	CreatedAt         time.Time  `grove:"created_at"`
	UpdatedAt         time.Time  `grove:"updated_at"`
}

func toSettlementModel(st *settlement.Settlement) *settlementModel {
	return &settlementModel{
		ID:                st.ID.String(),
		InvoiceID:         st.InvoiceID.String(),
		SupplierID:        st.SupplierID.String(),
		BuyerID:           st.BuyerID.String(),
		ProviderID:        st.ProviderID.String(),
		AmountMinor:       st.Amount.Amount,
		Currency:          st.Amount.Currency,
		DiscountBP:        st.DiscountRate.BasisPoints,
		BuyerCostAmount:   st.BuyerCost.Amount,
		BuyerCostCurrency: st.BuyerCost.Currency,
		Status:            string(st.Status),
		Rail:              st.Rail,
		StartedAt:         st.StartedAt,
		CompletedAt:       st.CompletedAt,
		CreatedAt:         st.CreatedAt,
		UpdatedAt:         st.UpdatedAt,
	}
}

func fromSettlementModel(m *settlementModel) (*settlement.Settlement, error) {
	stID, err := id.ParseWithPrefix(m.ID, id.PrefixSettlement)
	if err != nil {
		return nil, err
	}
	invID, err := id.ParseWithPrefix(m.InvoiceID, id.PrefixInvoice)
	if err != nil {
		return nil, err
	}
	supplierID, err := id.ParseWithPrefix(m.SupplierID, id.PrefixAccount)
	if err != nil {
		return nil, err
	}
	buyerID, err := id.ParseWithPrefix(m.BuyerID, id.PrefixAccount)
	if err != nil {
		return nil, err
	}
	providerID, err := id.ParseWithPrefix(m.ProviderID, id.PrefixAccount)
	if err != nil {
		return nil, err
	}
	return &settlement.Settlement{
		Entity:       types.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		ID:           stID,
		InvoiceID:    invID,
		SupplierID:   supplierID,
		BuyerID:      buyerID,
		ProviderID:   providerID,
		Amount:       types.Money{Amount: m.AmountMinor, Currency: m.Currency},
		DiscountRate: types.BP(m.DiscountBP),
		BuyerCost:    types.Money{Amount: m.BuyerCostAmount, Currency: m.BuyerCostCurrency},
		Status:       settlement.Status(m.Status),
		Rail:         m.Rail,
		StartedAt:    m.StartedAt,
		CompletedAt:  m.CompletedAt,
	}, nil
}

type legModel struct {
	grove.BaseModel `grove:"table:settlenet_legs"`

	ID              string `grove:"id,pk"`
	SettlementID    string `grove:"settlement_id"`
	Type            string `grove:"type"`
	AccountID       string `grove:"account_id"`
	AmountMinor     int64  `grove:"amount_minor"`
	Currency        string `grove:"currency"`
	RailTxnID       string `grove:"rail_txn_id"`
	Committed       bool   `grove:"committed"`
}

func toLegModel(leg *settlement.Leg) *legModel {
	return &legModel{
		ID:           leg.ID.String(),
		SettlementID: leg.SettlementID.String(),
		Type:         string(leg.Type),
		AccountID:    leg.AccountID.String(),
		AmountMinor:  leg.Amount.Amount,
		Currency:     leg.Amount.Currency,
		RailTxnID:    leg.RailTxnID.String(),
		Committed:    leg.Committed,
	}
}

func fromLegModel(m *legModel) (*settlement.Leg, error) {
	legID, err := id.ParseWithPrefix(m.ID, id.PrefixLeg)
	if err != nil {
		return nil, err
	}
	stID, err := id.ParseWithPrefix(m.SettlementID, id.PrefixSettlement)
	if err != nil {
		return nil, err
	}
	acctID, err := id.ParseWithPrefix(m.AccountID, id.PrefixAccount)
	if err != nil {
		return nil, err
	}
	leg := &settlement.Leg{
		ID:           legID,
		SettlementID: stID,
		Type:         settlement.LegType(m.Type),
		AccountID:    acctID,
		Amount:       types.Money{Amount: m.AmountMinor, Currency: m.Currency},
		Committed:    m.Committed,
	}
	if m.RailTxnID != "" {
		railTxnID, err := id.ParseWithPrefix(m.RailTxnID, id.PrefixRailTxn)
		if err != nil {
			return nil, err
		}
		leg.RailTxnID = railTxnID
	}
	return leg, nil
}
