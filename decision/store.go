package decision

import "context"

// Store is the persistence contract for decision records.
type Store interface {
	LastRecord(ctx context.Context) (*Record, error)
	AppendAtomic(ctx context.Context, record *Record, expectedPrevSeqNo int64) error
	AllOrdered(ctx context.Context) ([]*Record, error)
}
