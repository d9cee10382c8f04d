package episodic

import "context"

// Backend is the storage contract under Store. Implementations must be safe
// for concurrent use.
type Backend interface {
	// AppendTurn stores t and returns its assigned sequence number.
	// Sequence numbers increase monotonically but may have gaps.
	AppendTurn(ctx context.Context, t Turn) (uint64, error)

	// PendingTurns returns turns not yet compressed, in sequence order.
	PendingTurns(ctx context.Context) ([]Turn, error)

	// Facts returns the stored fact set in the order last committed.
	Facts(ctx context.Context) ([]Fact, error)

	// Commit atomically replaces the fact set with facts and marks the
	// turns with the given sequence numbers compressed.
	Commit(ctx context.Context, facts []Fact, compressed []uint64) error

	Counts(ctx context.Context) (Counts, error)

	Close() error
}
