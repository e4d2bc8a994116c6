/*
calculator.go - Installment schedule calculation

PURPOSE:
  Combines the resolved plan descriptor with the payment coverage map
  into the full per-quota calculated schedule: balance, status, days
  overdue. This is the single source of truth for quota status; every
  consumer (reporting, notification sweeps, redistribution) calls it
  rather than re-deriving status independently.

STATUS ASSIGNMENT (priority order):
  1. Quota number in the redistributed list -> Distribuida (absorbed).
     Permanently excluded from overdue detection regardless of balance.
  2. Balance <= 0                           -> Pagado
  3. Due date before today                  -> Mora
  4. Paid amount > 0                        -> Abonado
  5. Otherwise                              -> Pendiente

PURITY:
  "Today" is injected, never read from the system clock, so identical
  inputs always produce identical output. No caching, no hidden state.

SEE ALSO:
  - plan.go: ResolvePlan
  - coverage.go: AggregateCoverage
  - overdue.go: Filters this output
*/
package schedule

// Calculate derives the full installment list from resolved quota specs,
// the coverage map, the sale's absorbed-quota list and an injected today.
func Calculate(specs []QuotaSpec, cov Coverage, redistributed []int, today Date) []Installment {
	absorbed := make(map[int]bool, len(redistributed))
	for _, n := range redistributed {
		absorbed[n] = true
	}

	installments := make([]Installment, 0, len(specs))
	for _, spec := range specs {
		paid := cov.Paid(spec.Number)
		balance := spec.Amount.Sub(paid).ClampNonNegative()

		inst := Installment{
			Number:   spec.Number,
			Expected: spec.Amount,
			Paid:     paid,
			Balance:  balance,
			DueDate:  spec.DueDate,
		}

		switch {
		case absorbed[spec.Number]:
			inst.Status = StatusDistribuida
		case !balance.IsPositive():
			inst.Status = StatusPagado
		case spec.DueDate.Before(today):
			inst.Status = StatusMora
			inst.DaysOverdue = DaysBetween(spec.DueDate, today)
			if inst.DaysOverdue < 0 {
				inst.DaysOverdue = 0
			}
		case paid.IsPositive():
			inst.Status = StatusAbonado
		default:
			inst.Status = StatusPendiente
		}

		installments = append(installments, inst)
	}
	return installments
}

// CalculateForSale resolves the plan, aggregates the sale's allocations
// and calculates the schedule in one call. This is the entry point every
// call site uses.
func CalculateForSale(sale Sale, allocations []Allocation, today Date) []Installment {
	specs := ResolvePlan(sale)
	if len(specs) == 0 {
		return nil
	}
	cov := AggregateCoverage(sale.ID, allocations)
	return Calculate(specs, cov, sale.Plan.Redistributed, today)
}
