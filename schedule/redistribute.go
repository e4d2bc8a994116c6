/*
redistribute.go - Overdue balance redistribution

PURPOSE:
  Rewrites a sale's remaining schedule once quotas fall into arrears.
  The combined overdue balance is folded into the remaining (not yet
  due, not absorbed) quotas under a chosen policy, and the original
  overdue quota numbers are marked absorbed so they never show up in
  overdue detection again.

POLICIES:
  uniform:    Spread the total overdue balance evenly across all
              remaining quotas. The per-quota addition is rounded to two
              decimals; the highest-numbered remaining quota absorbs the
              rounding remainder so the added amounts sum exactly to the
              redistributed balance.
  last_quota: Add the entire overdue balance to the single
              highest-numbered remaining quota.

PLAN CONVERSION:
  Per-quota amounts are no longer uniform after a redistribution, so the
  result always carries a full explicit custom-quota list; the store
  converts automatic/house plans to custom when persisting it.

PRECONDITIONS:
  - At least one overdue quota (ErrNoOverdueQuotas otherwise)
  - At least one remaining quota to receive the balance
    (ErrNoRemainingQuotas otherwise)

ATOMICITY:
  This function is pure; it only computes the new state. Persisting the
  absorbed list and the new amounts as one atomic unit is the store's
  contract (see store.go). A failure partway through must leave the sale
  unchanged.

SEE ALSO:
  - calculator.go: Source of the overdue/remaining classification
  - store.go: RedistributionStore contract
*/
package schedule

import "sort"

// RedistributionPolicy selects how the overdue balance is spread.
type RedistributionPolicy string

const (
	PolicyUniform   RedistributionPolicy = "uniform"
	PolicyLastQuota RedistributionPolicy = "last_quota"
)

// ParsePolicy validates a policy string from an API request.
func ParsePolicy(s string) (RedistributionPolicy, error) {
	switch RedistributionPolicy(s) {
	case PolicyUniform:
		return PolicyUniform, nil
	case PolicyLastQuota:
		return PolicyLastQuota, nil
	default:
		return "", ErrUnknownPolicy
	}
}

// RedistributionResult is the computed new sale state. Both fields must
// be committed together or not at all.
type RedistributionResult struct {
	SaleID SaleID
	Policy RedistributionPolicy

	// Quota numbers absorbed by this operation.
	Absorbed []int

	// Full updated absorbed list (idempotent union with the sale's
	// previous list, sorted ascending).
	Redistributed []int

	// Full rewritten custom-quota list covering every quota number.
	CustomQuotas []CustomQuota

	// Total overdue balance folded into the remaining quotas.
	TotalRedistributed Money

	// Sale version the result was computed from. Stores reject the write
	// when the sale has moved past this version (lost race).
	PriorVersion int64
}

// Redistribute computes the schedule rewrite for a sale's current
// overdue installments under the given policy. Pure: reads sale state
// and the allocation ledger, writes nothing.
func Redistribute(sale Sale, allocations []Allocation, today Date, policy RedistributionPolicy) (RedistributionResult, error) {
	if policy != PolicyUniform && policy != PolicyLastQuota {
		return RedistributionResult{}, ErrUnknownPolicy
	}

	specs := ResolvePlan(sale)
	if len(specs) == 0 {
		return RedistributionResult{}, ErrInvalidPlan
	}

	cov := AggregateCoverage(sale.ID, allocations)
	installments := Calculate(specs, cov, sale.Plan.Redistributed, today)

	overdue := Overdue(installments)
	if len(overdue) == 0 {
		return RedistributionResult{}, ErrNoOverdueQuotas
	}

	// Remaining quotas: not yet due, not absorbed, not already paid.
	var remaining []Installment
	for _, inst := range installments {
		if inst.Status == StatusPendiente || inst.Status == StatusAbonado {
			remaining = append(remaining, inst)
		}
	}
	if len(remaining) == 0 {
		return RedistributionResult{}, ErrNoRemainingQuotas
	}

	total := ZeroMoney()
	absorbed := make([]int, 0, len(overdue))
	for _, inst := range overdue {
		total = total.Add(inst.Balance)
		absorbed = append(absorbed, inst.Number)
	}

	additions := computeAdditions(remaining, total, policy)

	// Rewrite every quota as an explicit custom entry so the new amounts
	// survive the plan conversion. Explicit due dates are preserved.
	explicitDue := make(map[int]Date)
	for _, spec := range specs {
		if spec.Explicit {
			explicitDue[spec.Number] = spec.DueDate
		}
	}

	customs := make([]CustomQuota, 0, len(installments))
	for _, inst := range installments {
		cq := CustomQuota{Number: inst.Number, Amount: inst.Expected}
		if add, ok := additions[inst.Number]; ok {
			cq.Amount = cq.Amount.Add(add)
		}
		if due, ok := explicitDue[inst.Number]; ok {
			d := due
			cq.DueDate = &d
		}
		customs = append(customs, cq)
	}

	return RedistributionResult{
		SaleID:             sale.ID,
		Policy:             policy,
		Absorbed:           absorbed,
		Redistributed:      mergeQuotaNumbers(sale.Plan.Redistributed, absorbed),
		CustomQuotas:       customs,
		TotalRedistributed: total,
		PriorVersion:       sale.Version,
	}, nil
}

// computeAdditions splits the overdue total across the remaining quotas.
func computeAdditions(remaining []Installment, total Money, policy RedistributionPolicy) map[int]Money {
	last := remaining[0].Number
	for _, inst := range remaining {
		if inst.Number > last {
			last = inst.Number
		}
	}

	additions := make(map[int]Money, len(remaining))
	switch policy {
	case PolicyLastQuota:
		additions[last] = total

	case PolicyUniform:
		per := total.Div(NewMoneyFromInt(int64(len(remaining))).Value).Round2()
		spread := ZeroMoney()
		for _, inst := range remaining {
			if inst.Number == last {
				continue
			}
			additions[inst.Number] = per
			spread = spread.Add(per)
		}
		// Highest-numbered quota absorbs the rounding remainder.
		additions[last] = total.Sub(spread)
	}
	return additions
}

// mergeQuotaNumbers unions two quota-number lists without duplicates.
// Redistributing the same quota twice must not duplicate its entry.
func mergeQuotaNumbers(existing, added []int) []int {
	seen := make(map[int]bool, len(existing)+len(added))
	var out []int
	for _, n := range existing {
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	for _, n := range added {
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	sort.Ints(out)
	return out
}
