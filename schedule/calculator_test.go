package schedule_test

import (
	"testing"
	"time"

	"github.com/solterra/installment-engine/schedule"
)

func alloc(saleID schedule.SaleID, quota int, amount int64) schedule.Allocation {
	return schedule.Allocation{
		ID:          "alloc",
		PaymentID:   "payment",
		SaleID:      saleID,
		QuotaNumber: quota,
		Amount:      money(amount),
	}
}

// =============================================================================
// FULL SCHEDULE CALCULATION
// =============================================================================

func TestCalculateForSale_OverdueDaysAndStatuses(t *testing.T) {
	// GIVEN: 3 quotas of 1,000,000 sold on 2024-01-31, nothing paid
	// WHEN: Calculating as of 2024-04-20
	// THEN: Quota 1 (due Feb 29) is 51 days overdue, quota 2 (due Mar 31)
	//       is 20 days overdue, quota 3 (due Apr 30) is still pending

	sale := automaticSale(d(2024, time.January, 31), 3, 1_000_000)
	installments := schedule.CalculateForSale(sale, nil, d(2024, time.April, 20))

	if len(installments) != 3 {
		t.Fatalf("expected 3 installments, got %d", len(installments))
	}

	q1 := installments[0]
	if q1.Status != schedule.StatusMora || q1.DaysOverdue != 51 {
		t.Errorf("quota 1: expected Mora/51, got %s/%d", q1.Status, q1.DaysOverdue)
	}
	q2 := installments[1]
	if q2.Status != schedule.StatusMora || q2.DaysOverdue != 20 {
		t.Errorf("quota 2: expected Mora/20, got %s/%d", q2.Status, q2.DaysOverdue)
	}
	q3 := installments[2]
	if q3.Status != schedule.StatusPendiente || q3.DaysOverdue != 0 {
		t.Errorf("quota 3: expected Pendiente/0, got %s/%d", q3.Status, q3.DaysOverdue)
	}
}

func TestCalculateForSale_PartialPaymentStaysMoraWhenDue(t *testing.T) {
	// GIVEN: Quota 1 partially covered (400,000 of 1,000,000), past due
	// WHEN: Calculating the schedule
	// THEN: The quota is Mora with the open balance, not Abonado

	sale := automaticSale(d(2024, time.January, 31), 3, 1_000_000)
	allocs := []schedule.Allocation{alloc(sale.ID, 1, 400_000)}

	installments := schedule.CalculateForSale(sale, allocs, d(2024, time.April, 20))
	q1 := installments[0]
	if q1.Status != schedule.StatusMora {
		t.Errorf("expected Mora, got %s", q1.Status)
	}
	if !q1.Balance.Equal(money(600_000)) {
		t.Errorf("expected balance 600000, got %s", q1.Balance)
	}
	if !q1.Paid.Equal(money(400_000)) {
		t.Errorf("expected paid 400000, got %s", q1.Paid)
	}
}

func TestCalculateForSale_PartialPaymentBeforeDueIsAbonado(t *testing.T) {
	// GIVEN: Quota 3 partially covered before its due date
	// WHEN: Calculating the schedule
	// THEN: The quota is Abonado

	sale := automaticSale(d(2024, time.January, 31), 3, 1_000_000)
	allocs := []schedule.Allocation{alloc(sale.ID, 3, 250_000)}

	installments := schedule.CalculateForSale(sale, allocs, d(2024, time.April, 20))
	if got := installments[2].Status; got != schedule.StatusAbonado {
		t.Errorf("expected Abonado, got %s", got)
	}
}

func TestCalculateForSale_FullCoverageIsPagadoEvenWhenPastDue(t *testing.T) {
	// GIVEN: Quota 1 fully covered across two allocations, past due
	// WHEN: Calculating the schedule
	// THEN: Pagado wins over Mora

	sale := automaticSale(d(2024, time.January, 31), 3, 1_000_000)
	allocs := []schedule.Allocation{
		alloc(sale.ID, 1, 400_000),
		alloc(sale.ID, 1, 600_000),
	}

	installments := schedule.CalculateForSale(sale, allocs, d(2024, time.April, 20))
	if got := installments[0].Status; got != schedule.StatusPagado {
		t.Errorf("expected Pagado, got %s", got)
	}
}

func TestCalculateForSale_BalanceFloorsAtZeroOnOverpayment(t *testing.T) {
	// GIVEN: Quota 1 overpaid
	// WHEN: Calculating the schedule
	// THEN: The balance floors at zero and the quota is Pagado

	sale := automaticSale(d(2024, time.January, 31), 3, 1_000_000)
	allocs := []schedule.Allocation{alloc(sale.ID, 1, 1_300_000)}

	installments := schedule.CalculateForSale(sale, allocs, d(2024, time.April, 20))
	q1 := installments[0]
	if !q1.Balance.IsZero() {
		t.Errorf("expected zero balance, got %s", q1.Balance)
	}
	if q1.Status != schedule.StatusPagado {
		t.Errorf("expected Pagado, got %s", q1.Status)
	}
}

func TestCalculateForSale_AbsorbedQuotaIsDistribuida(t *testing.T) {
	// GIVEN: Quota 1 in the redistributed list, unpaid and past due
	// WHEN: Calculating the schedule
	// THEN: Distribuida wins over every other status

	sale := automaticSale(d(2024, time.January, 31), 3, 1_000_000)
	sale.Plan.Redistributed = []int{1}

	installments := schedule.CalculateForSale(sale, nil, d(2024, time.April, 20))
	q1 := installments[0]
	if q1.Status != schedule.StatusDistribuida {
		t.Errorf("expected Distribuida, got %s", q1.Status)
	}
	if q1.DaysOverdue != 0 {
		t.Errorf("absorbed quota should not accrue overdue days, got %d", q1.DaysOverdue)
	}
}

func TestCalculateForSale_DueTodayIsNotOverdue(t *testing.T) {
	// GIVEN: Quota 1 due exactly today
	// WHEN: Calculating the schedule
	// THEN: The quota is not yet Mora

	sale := automaticSale(d(2024, time.January, 31), 1, 1_000_000)
	installments := schedule.CalculateForSale(sale, nil, d(2024, time.February, 29))
	if got := installments[0].Status; got != schedule.StatusPendiente {
		t.Errorf("expected Pendiente on the due date itself, got %s", got)
	}
}

func TestCalculateForSale_IgnoresOtherSalesAllocations(t *testing.T) {
	// GIVEN: An allocation ledger containing another sale's rows
	// WHEN: Aggregating coverage
	// THEN: Foreign allocations do not count toward this sale

	sale := automaticSale(d(2024, time.January, 31), 1, 1_000_000)
	allocs := []schedule.Allocation{alloc("other-sale", 1, 1_000_000)}

	installments := schedule.CalculateForSale(sale, allocs, d(2024, time.February, 1))
	if !installments[0].Paid.IsZero() {
		t.Errorf("expected zero paid, got %s", installments[0].Paid)
	}
}

func TestCalculateForSale_EmptyPlanYieldsNoInstallments(t *testing.T) {
	sale := automaticSale(d(2024, time.January, 31), 0, 1_000_000)
	if installments := schedule.CalculateForSale(sale, nil, d(2024, time.April, 20)); installments != nil {
		t.Errorf("expected nil installments, got %d", len(installments))
	}
}

func TestCalculate_DeterministicForSameInputs(t *testing.T) {
	// GIVEN: Identical inputs including the injected today
	// WHEN: Calculating twice
	// THEN: The outputs are identical

	sale := automaticSale(d(2024, time.January, 31), 3, 1_000_000)
	allocs := []schedule.Allocation{alloc(sale.ID, 1, 400_000)}
	today := d(2024, time.April, 20)

	first := schedule.CalculateForSale(sale, allocs, today)
	second := schedule.CalculateForSale(sale, allocs, today)

	for i := range first {
		if first[i].Status != second[i].Status || !first[i].Balance.Equal(second[i].Balance) {
			t.Errorf("quota %d: calculation is not deterministic", first[i].Number)
		}
	}
}
