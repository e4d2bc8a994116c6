/*
plan.go - Plan descriptor resolution

PURPOSE:
  Turns a sale's stored plan configuration (automatic, custom or house)
  into a normalized, ordered list of quota definitions. Every component
  that needs "what should quota i cost and when is it due" goes through
  ResolvePlan; no other code derives due dates or expected amounts.

PLAN SHAPES:
  automatic: N quotas of the sale's effective quota value, due dates by
             the calendar rule.
  house:     Same shape as automatic. The house-specific part (initial
             payment as a percentage of total value) is applied at sale
             creation, not here.
  custom:    Per-quota amounts from the custom list; explicit due dates
             are used verbatim, missing ones fall back to the calendar
             rule.

CALENDAR RULE:
  Due date for quota i = sale date advanced by i months with the day
  clamped to the target month's last valid day (Date.AddMonthsClamped).

DEGRADATION:
  A sale whose quota count resolves to zero yields an empty descriptor
  list so downstream components show nothing rather than failing.

SEE ALSO:
  - calculator.go: Consumes the resolved descriptors
  - date.go: AddMonthsClamped
*/
package schedule

// QuotaSpec is one resolved quota definition: what is expected and when.
type QuotaSpec struct {
	Number   int
	Amount   Money
	DueDate  Date
	Explicit bool // true when the due date came from a custom entry
}

// ResolvePlan normalizes a sale's plan configuration into an ordered
// list of quota specs for quota numbers 1..N. Returns nil when the sale
// has no resolvable plan (quota count zero and no usable custom list).
func ResolvePlan(sale Sale) []QuotaSpec {
	count := sale.Plan.QuotaCount

	var custom map[int]CustomQuota
	if sale.Plan.Kind == PlanCustom && len(sale.Plan.CustomQuotas) > 0 {
		custom = make(map[int]CustomQuota, len(sale.Plan.CustomQuotas))
		for _, cq := range sale.Plan.CustomQuotas {
			if cq.Number < 1 {
				continue
			}
			custom[cq.Number] = cq
			if cq.Number > count {
				count = cq.Number
			}
		}
	}

	if count <= 0 {
		// InvalidPlan: degrade to an empty schedule.
		return nil
	}

	uniform := sale.EffectiveQuotaValue()

	specs := make([]QuotaSpec, 0, count)
	for i := 1; i <= count; i++ {
		spec := QuotaSpec{
			Number:  i,
			Amount:  uniform,
			DueDate: sale.SaleDate.AddMonthsClamped(i),
		}
		if cq, ok := custom[i]; ok {
			spec.Amount = cq.Amount
			if cq.DueDate != nil {
				spec.DueDate = *cq.DueDate
				spec.Explicit = true
			}
		}
		specs = append(specs, spec)
	}
	return specs
}
