package decision

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

var (
	ErrChainBroken = errors.New("decision: hash chain broken")
	ErrSeqConflict = errors.New("decision: sequence number conflict")
)

// Ledger is the signed, hash-chained audit trail of gate outcomes. It
// mirrors ledger.Ledger's append/verify shape but over decision records
// instead of money movements — two physically distinct chains, per spec
// §3's "Nothing is ever mutated or deleted from Ledger or Decision
// Ledger."
type Ledger struct {
	store  Store
	key    []byte
	logger *slog.Logger

	mu       sync.Mutex
	lastSeq  int64
	lastHash string
}

type Option func(*Ledger)

func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) { l.logger = logger }
}

func New(store Store, hmacKey []byte, opts ...Option) *Ledger {
	l := &Ledger{store: store, key: hmacKey, logger: slog.Default()}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Verify walks the chain from genesis, refusing service if any link is
// broken.
func (l *Ledger) Verify(ctx context.Context) error {
	records, err := l.store.AllOrdered(ctx)
	if err != nil {
		return fmt.Errorf("load chain: %w", err)
	}

	prevHash := genesisHash
	var prevSeq int64
	for i, r := range records {
		if i == 0 {
			if r.PrevHash != genesisHash {
				return fmt.Errorf("%w: record %d has non-genesis prev hash", ErrChainBroken, r.SeqNo)
			}
		} else if r.PrevHash != prevHash {
			return fmt.Errorf("%w: record %d prev hash mismatch", ErrChainBroken, r.SeqNo)
		}
		if r.SeqNo != prevSeq+1 && i != 0 {
			return fmt.Errorf("%w: seq gap before record %d", ErrChainBroken, r.SeqNo)
		}
		if !verifyLink(l.key, r) {
			return fmt.Errorf("%w: record %d signature invalid", ErrChainBroken, r.SeqNo)
		}
		prevHash = r.Hash
		prevSeq = r.SeqNo
	}

	l.mu.Lock()
	l.lastSeq = prevSeq
	l.lastHash = prevHash
	l.mu.Unlock()

	l.logger.Info("decision chain verified", "records", len(records))
	return nil
}

// Append writes a new record to the end of the chain and returns its
// assigned SeqNo.
func (l *Ledger) Append(ctx context.Context, rec Record) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec.SeqNo = l.lastSeq + 1
	rec.PrevHash = l.lastHash
	rec.Hash = computeHash(&rec)
	rec.Signature = sign(l.key, rec.Hash)

	if err := l.store.AppendAtomic(ctx, &rec, l.lastSeq); err != nil {
		return 0, fmt.Errorf("append: %w", err)
	}

	l.lastSeq = rec.SeqNo
	l.lastHash = rec.Hash
	return rec.SeqNo, nil
}
