// Package ledger is the append-only, hash-chained ledger of record (spec
// §4.1). Every settlement leg, and every correcting entry produced by a
// rollback, is written here exactly once and never mutated.
package ledger

import (
	"time"

	"github.com/flowcap/settlenet/id"
	"github.com/flowcap/settlenet/types"
)

// EntryType classifies a ledger entry.
type EntryType string

const (
	TypeCredit     EntryType = "credit"
	TypeDebit      EntryType = "debit"
	TypeCorrection EntryType = "correction"
)

// Entry is one immutable line in the ledger. SeqNo is assigned by Append
// and totally orders all entries. PrevHash is the Hash of the entry with
// SeqNo-1 (or the empty genesis hash for the first entry); Signature is an
// HMAC over the entry's fields, verified on startup by Verify.
type Entry struct {
	types.Entity
	ID            id.LedgerEntryID `json:"id"`
	SeqNo         int64            `json:"seq_no"`
	Type          EntryType        `json:"type"`
	AccountID     id.AccountID     `json:"account_id"`
	Amount        types.Money      `json:"amount"`
	Reason        string           `json:"reason"`
	CorrectsEntry *id.LedgerEntryID `json:"corrects_entry,omitempty"`
	SettlementID  *id.SettlementID `json:"settlement_id,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
	PrevHash      string           `json:"prev_hash"`
	Hash          string           `json:"hash"`
	Signature     string           `json:"signature"`
}

// ReconcileResult is the outcome of folding a window of entries.
type ReconcileResult struct {
	Balanced        bool
	ImbalanceAmount int64 // minor units, 0 if balanced
	Currency        string
}
