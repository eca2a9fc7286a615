package ledger

import (
	"context"

	"github.com/flowcap/settlenet/id"
)

// Store is the persistence contract for the ledger. Implementations must
// guarantee that AppendAtomic persists SeqNo values with no gaps and no
// duplicates under concurrent callers (spec §4.1: "totally ordered").
type Store interface {
	// LastEntry returns the highest-SeqNo entry, or nil if the ledger is
	// empty.
	LastEntry(ctx context.Context) (*Entry, error)
	// AppendAtomic persists entry, whose SeqNo Append has already set, in
	// one atomic operation with the caller-supplied seqNo check: if the
	// current max SeqNo is not expectedPrevSeqNo, the implementation must
	// fail rather than silently renumber, so that Append returns the
	// conflict to its caller instead of racing ahead of a concurrent writer.
	AppendAtomic(ctx context.Context, entry *Entry, expectedPrevSeqNo int64) error
	// EntriesForAccount returns every entry touching account, in SeqNo
	// order, used by Balance's fold.
	EntriesForAccount(ctx context.Context, account id.AccountID) ([]*Entry, error)
	// EntriesSince returns every entry with SeqNo > since, in order, used
	// by Stream.
	EntriesSince(ctx context.Context, since int64) ([]*Entry, error)
	// EntriesInWindow returns every entry with SeqNo in [fromSeqNo,
	// toSeqNo), used by Reconcile.
	EntriesInWindow(ctx context.Context, fromSeqNo, toSeqNo int64) ([]*Entry, error)
	// AllOrdered returns every entry in SeqNo order, used by the startup
	// chain verifier. Implementations may stream this in batches.
	AllOrdered(ctx context.Context) ([]*Entry, error)
}
