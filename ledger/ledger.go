package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/flowcap/settlenet/id"
	"github.com/flowcap/settlenet/types"
)

// Ledger is the single source of truth for money movement (spec §4.1). It
// serializes Append calls behind a mutex so that SeqNo assignment and
// hash-chaining never race, regardless of how many settlement legs commit
// concurrently.
type Ledger struct {
	store  Store
	key    []byte
	logger *slog.Logger

	mu       sync.Mutex
	lastSeq  int64
	lastHash string
}

// Option configures a Ledger.
type Option func(*Ledger)

func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) { l.logger = logger }
}

// New constructs a Ledger. The HMAC key signs every entry written through
// this instance; it must be stable across restarts for Verify to succeed
// against entries written by a prior process.
func New(store Store, hmacKey []byte, opts ...Option) *Ledger {
	l := &Ledger{
		store:  store,
		key:    hmacKey,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Verify walks the entire chain from genesis and refuses to let the ledger
// serve traffic if any link is broken (spec §4.1). Call once at startup.
func (l *Ledger) Verify(ctx context.Context) error {
	entries, err := l.store.AllOrdered(ctx)
	if err != nil {
		return fmt.Errorf("load chain: %w", err)
	}

	prevHash := genesisHash
	var prevSeq int64
	for i, e := range entries {
		if i == 0 {
			if e.PrevHash != genesisHash {
				return fmt.Errorf("%w: entry %d has non-genesis prev hash", ErrChainBroken, e.SeqNo)
			}
		} else if e.PrevHash != prevHash {
			return fmt.Errorf("%w: entry %d prev hash mismatch", ErrChainBroken, e.SeqNo)
		}
		if e.SeqNo != prevSeq+1 && i != 0 {
			return fmt.Errorf("%w: seq gap before entry %d", ErrChainBroken, e.SeqNo)
		}
		if !verifyLink(l.key, e) {
			return fmt.Errorf("%w: entry %d signature invalid", ErrChainBroken, e.SeqNo)
		}
		prevHash = e.Hash
		prevSeq = e.SeqNo
	}

	l.mu.Lock()
	l.lastSeq = prevSeq
	l.lastHash = prevHash
	l.mu.Unlock()

	l.logger.Info("ledger chain verified", "entries", len(entries))
	return nil
}

// AppendInput is the caller-supplied content of a new ledger entry; SeqNo,
// hash, and signature are computed by Append.
type AppendInput struct {
	Type          EntryType
	AccountID     id.AccountID
	Amount        types.Money
	Reason        string
	CorrectsEntry *id.LedgerEntryID
	SettlementID  *id.SettlementID
}

// Append writes a new entry to the end of the chain and returns its
// assigned SeqNo. Entries are never reordered or mutated after this call
// returns.
func (l *Ledger) Append(ctx context.Context, in AppendInput) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry := &Entry{
		Entity:        types.NewEntity(),
		ID:            id.NewLedgerEntryID(),
		SeqNo:         l.lastSeq + 1,
		Type:          in.Type,
		AccountID:     in.AccountID,
		Amount:        in.Amount,
		Reason:        in.Reason,
		CorrectsEntry: in.CorrectsEntry,
		SettlementID:  in.SettlementID,
		CreatedAt:     time.Now().UTC(),
		PrevHash:      l.lastHash,
	}
	entry.Hash = computeHash(entry)
	entry.Signature = sign(l.key, entry.Hash)

	if err := l.store.AppendAtomic(ctx, entry, l.lastSeq); err != nil {
		return 0, fmt.Errorf("append: %w", err)
	}

	l.lastSeq = entry.SeqNo
	l.lastHash = entry.Hash
	return entry.SeqNo, nil
}

// Balance derives an account's current balance by folding every entry
// touching it. It is not a separate source of truth (spec §4.1): callers
// that need a fast path should materialise a checkpoint, but this method
// always recomputes from the entries themselves.
func (l *Ledger) Balance(ctx context.Context, account id.AccountID, currency string) (types.Money, error) {
	entries, err := l.store.EntriesForAccount(ctx, account)
	if err != nil {
		return types.Money{}, fmt.Errorf("load entries: %w", err)
	}
	bal := types.Zero(currency)
	for _, e := range entries {
		switch e.Type {
		case TypeCredit:
			bal = bal.Add(e.Amount)
		case TypeDebit:
			bal = bal.Subtract(e.Amount)
		case TypeCorrection:
			bal = bal.Add(e.Amount)
		}
	}
	return bal, nil
}

// Stream returns every entry written after since, in SeqNo order.
func (l *Ledger) Stream(ctx context.Context, since int64) ([]*Entry, error) {
	return l.store.EntriesSince(ctx, since)
}

// Reconcile checks that credits equal debits plus capital-advances over
// [fromSeqNo, toSeqNo), within a one-cent tolerance (spec §4.1). A failed
// reconciliation is a freeze trigger, not a simple rollback (spec §7); the
// caller is responsible for acting on ReconcileResult.Balanced == false.
func (l *Ledger) Reconcile(ctx context.Context, fromSeqNo, toSeqNo int64, currency string) (ReconcileResult, error) {
	entries, err := l.store.EntriesInWindow(ctx, fromSeqNo, toSeqNo)
	if err != nil {
		return ReconcileResult{}, fmt.Errorf("load window: %w", err)
	}

	var credits, debits int64
	for _, e := range entries {
		switch e.Type {
		case TypeCredit:
			credits += e.Amount.Amount
		case TypeDebit, TypeCorrection:
			debits += e.Amount.Amount
		}
	}

	imbalance := credits - debits
	if imbalance < 0 {
		imbalance = -imbalance
	}

	result := ReconcileResult{
		Balanced:        imbalance <= 1, // one-cent tolerance in minor units
		ImbalanceAmount: imbalance,
		Currency:        currency,
	}
	if !result.Balanced {
		l.logger.Error("ledger reconciliation imbalance detected",
			"from", fromSeqNo, "to", toSeqNo, "imbalance_minor", imbalance)
	}
	return result, nil
}
