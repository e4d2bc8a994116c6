package schedule

// =============================================================================
// COVERAGE - Per-quota sum of payment allocations
// =============================================================================

// Coverage maps a quota number to the total amount allocated to it.
// Pure aggregation, no business rules; a missing quota number means
// zero covered.
type Coverage map[int]Money

// AggregateCoverage sums all ledger allocations per quota number.
// Allocations for other sales are ignored so callers can pass a bulk
// fetch unfiltered.
func AggregateCoverage(saleID SaleID, allocations []Allocation) Coverage {
	cov := make(Coverage)
	for _, a := range allocations {
		if a.SaleID != saleID {
			continue
		}
		cov[a.QuotaNumber] = cov[a.QuotaNumber].Add(a.Amount)
	}
	return cov
}

// Paid returns the covered amount for a quota number, zero when absent.
func (c Coverage) Paid(quotaNumber int) Money {
	if m, ok := c[quotaNumber]; ok {
		return m
	}
	return ZeroMoney()
}
