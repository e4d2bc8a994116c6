/*
store.go - Persistence interfaces consumed by the engine

PURPOSE:
  Defines the boundary between the schedule engine and persistence.
  The read side hands the engine sales with their allocation ledgers;
  the write side exists only for redistribution, the engine's one
  stateful operation.

READ SIDE:
  SaleSource:    Per-sale fetches for schedule/overdue endpoints.
  ArrearsSource: Bulk fetch of the full active-sale set grouped by
                 client, so sweeps avoid one round trip per sale.

WRITE SIDE:
  RedistributionStore.ApplyRedistribution must be atomic per sale with
  single-writer discipline: two concurrent redistributions of the same
  sale must not interleave, and a partial failure must leave the sale
  in its prior state. Implementations surface lost races as
  ErrConcurrentRedistribution (retryable).

IMPLEMENTATIONS:
  - store/sqlite: Production store
  - schedule/store: In-memory store for tests

SEE ALSO:
  - redistribute.go: Produces RedistributionResult
  - api/sweeper.go: Consumes ArrearsSource
*/
package schedule

import "context"

// SaleSource provides per-sale reads.
type SaleSource interface {
	// GetSale returns the sale with plan lists already deserialized.
	// Returns ErrSaleNotFound when absent.
	GetSale(ctx context.Context, id SaleID) (*Sale, error)

	// ListAllocations returns the full allocation ledger for a sale.
	ListAllocations(ctx context.Context, id SaleID) ([]Allocation, error)
}

// ArrearsSource provides the bulk read for arrears sweeps: every active
// sale with positive debt, grouped by client, with allocation ledgers
// and display labels attached.
type ArrearsSource interface {
	ListArrearsData(ctx context.Context) ([]ClientSales, error)
}

// RedistributionStore persists a redistribution result atomically.
type RedistributionStore interface {
	// ApplyRedistribution writes the new absorbed-quota list and
	// custom-quota amounts as one unit, converting the plan to custom.
	// Returns ErrConcurrentRedistribution when the sale changed since
	// the result was computed.
	ApplyRedistribution(ctx context.Context, result RedistributionResult) error
}
