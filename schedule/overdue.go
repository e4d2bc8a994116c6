/*
overdue.go - Overdue detection and client-level aggregation

PURPOSE:
  Filters a sale's calculated schedule to the installments currently in
  arrears, and folds overdue installments across all of a client's
  active sales into a per-client summary for reporting and notification.

FILTERING RULES:
  Per sale:    status == Mora with balance > 0. Distribuida quotas are
               excluded by construction of the calculator.
  Per client:  only active sales (status Active or empty) with
               total_debt > 0 participate. A client with zero overdue
               installments is omitted from the aggregate, not returned
               with zero values.

SIDE EFFECTS:
  None. This component only reads. Notification throttling (was this
  client already contacted today) is an external policy layered on top;
  see api/sweeper.go.

SEE ALSO:
  - calculator.go: Produces the input
  - redistribute.go: Consumes the per-sale overdue set
*/
package schedule

// Overdue filters a calculated schedule to installments in arrears with
// positive balance.
func Overdue(installments []Installment) []Installment {
	var out []Installment
	for _, inst := range installments {
		if inst.Status == StatusMora && inst.Balance.IsPositive() {
			out = append(out, inst)
		}
	}
	return out
}

// OverdueBalance sums the remaining balance across overdue installments.
func OverdueBalance(installments []Installment) Money {
	total := ZeroMoney()
	for _, inst := range Overdue(installments) {
		total = total.Add(inst.Balance)
	}
	return total
}

// AggregateClientOverdue computes a client's arrears summary across the
// given sale bundles. Returns ok=false when the client has no overdue
// installments, in which case the caller omits the client entirely.
func AggregateClientOverdue(client Client, bundles []SaleBundle, today Date) (ClientOverdueInfo, bool) {
	info := ClientOverdueInfo{Client: client, TotalOverdue: ZeroMoney()}

	for _, b := range bundles {
		if !b.Sale.IsActive() || !b.Sale.TotalDebt.IsPositive() {
			continue
		}
		installments := CalculateForSale(b.Sale, b.Allocations, today)
		for _, inst := range Overdue(installments) {
			info.Installments = append(info.Installments, OverdueInstallment{
				Installment:  inst,
				SaleID:       b.Sale.ID,
				LotLabel:     b.LotLabel,
				ProjectLabel: b.ProjectLabel,
			})
			info.TotalOverdue = info.TotalOverdue.Add(inst.Balance)
			info.OverdueCount++
		}
	}

	if info.OverdueCount == 0 {
		return ClientOverdueInfo{}, false
	}
	return info, true
}

// AggregateArrears builds the full "who is in arrears" report. Clients
// without overdue installments are dropped. Order follows the input.
func AggregateArrears(clients []ClientSales, today Date) []ClientOverdueInfo {
	var out []ClientOverdueInfo
	for _, cs := range clients {
		if info, ok := AggregateClientOverdue(cs.Client, cs.Bundles, today); ok {
			out = append(out, info)
		}
	}
	return out
}
