package schedule_test

import (
	"testing"
	"time"

	"github.com/solterra/installment-engine/schedule"
)

// =============================================================================
// PER-SALE OVERDUE DETECTION
// =============================================================================

func TestOverdue_FiltersToMoraWithPositiveBalance(t *testing.T) {
	// GIVEN: A schedule with paid, overdue and pending quotas
	// WHEN: Filtering overdue installments
	// THEN: Only Mora quotas with open balance remain

	sale := automaticSale(d(2024, time.January, 31), 3, 1_000_000)
	allocs := []schedule.Allocation{alloc(sale.ID, 1, 1_000_000)}

	installments := schedule.CalculateForSale(sale, allocs, d(2024, time.April, 20))
	overdue := schedule.Overdue(installments)

	if len(overdue) != 1 {
		t.Fatalf("expected 1 overdue installment, got %d", len(overdue))
	}
	if overdue[0].Number != 2 {
		t.Errorf("expected quota 2, got %d", overdue[0].Number)
	}
}

func TestOverdueBalance_SumsOpenBalances(t *testing.T) {
	// GIVEN: Two overdue quotas, one partially covered
	// WHEN: Summing the overdue balance
	// THEN: The sum reflects open balances, not expected amounts

	sale := automaticSale(d(2024, time.January, 31), 3, 1_000_000)
	allocs := []schedule.Allocation{alloc(sale.ID, 1, 400_000)}

	installments := schedule.CalculateForSale(sale, allocs, d(2024, time.April, 20))
	got := schedule.OverdueBalance(installments)
	if !got.Equal(money(1_600_000)) {
		t.Errorf("expected 1600000, got %s", got)
	}
}

// =============================================================================
// CLIENT-LEVEL AGGREGATION
// =============================================================================

func TestAggregateClientOverdue_UnionAcrossSales(t *testing.T) {
	// GIVEN: A client with two active sales, both with overdue quotas
	// WHEN: Aggregating the client's arrears
	// THEN: The summary spans both sales and the totals are consistent

	client := schedule.Client{ID: "client-1", Name: "Maria"}
	saleA := automaticSale(d(2024, time.January, 31), 3, 1_000_000)
	saleA.ID = "sale-a"
	saleA.TotalDebt = money(3_000_000)
	saleB := automaticSale(d(2024, time.February, 15), 2, 500_000)
	saleB.ID = "sale-b"
	saleB.TotalDebt = money(1_000_000)

	bundles := []schedule.SaleBundle{
		{Sale: saleA, LotLabel: "A-1", ProjectLabel: "Altos"},
		{Sale: saleB, LotLabel: "A-2", ProjectLabel: "Altos"},
	}

	info, ok := schedule.AggregateClientOverdue(client, bundles, d(2024, time.April, 20))
	if !ok {
		t.Fatal("expected overdue info")
	}

	// sale A: quotas 1 and 2 overdue; sale B: quotas 1 and 2 overdue
	if info.OverdueCount != 4 {
		t.Errorf("expected 4 overdue installments, got %d", info.OverdueCount)
	}
	if !info.TotalOverdue.Equal(money(3_000_000)) {
		t.Errorf("expected total 3000000, got %s", info.TotalOverdue)
	}

	// Total must equal the sum of the listed installment balances.
	sum := schedule.ZeroMoney()
	for _, inst := range info.Installments {
		sum = sum.Add(inst.Balance)
	}
	if !sum.Equal(info.TotalOverdue) {
		t.Errorf("installment balances sum to %s but total is %s", sum, info.TotalOverdue)
	}
	if len(info.Installments) != info.OverdueCount {
		t.Errorf("count %d does not match listed installments %d", info.OverdueCount, len(info.Installments))
	}
}

func TestAggregateClientOverdue_NoOverdueReturnsNotOK(t *testing.T) {
	// GIVEN: A client whose sale has no overdue quotas
	// WHEN: Aggregating
	// THEN: ok=false so the caller omits the client entirely

	client := schedule.Client{ID: "client-1", Name: "Maria"}
	sale := automaticSale(d(2024, time.April, 1), 3, 1_000_000)
	sale.TotalDebt = money(3_000_000)

	_, ok := schedule.AggregateClientOverdue(client, []schedule.SaleBundle{{Sale: sale}}, d(2024, time.April, 20))
	if ok {
		t.Error("expected ok=false for a client with no arrears")
	}
}

func TestAggregateClientOverdue_SkipsWithdrawnSales(t *testing.T) {
	// GIVEN: A withdrawn sale deep in arrears
	// WHEN: Aggregating
	// THEN: The withdrawn sale does not contribute

	client := schedule.Client{ID: "client-1", Name: "Maria"}
	sale := automaticSale(d(2024, time.January, 31), 3, 1_000_000)
	sale.Status = schedule.SaleWithdrawn
	sale.TotalDebt = money(3_000_000)

	_, ok := schedule.AggregateClientOverdue(client, []schedule.SaleBundle{{Sale: sale}}, d(2024, time.April, 20))
	if ok {
		t.Error("withdrawn sales must not contribute to arrears")
	}
}

func TestAggregateClientOverdue_EmptyStatusCountsAsActive(t *testing.T) {
	// GIVEN: A legacy sale row without an explicit status
	// WHEN: Aggregating
	// THEN: The sale participates in overdue detection

	client := schedule.Client{ID: "client-1", Name: "Maria"}
	sale := automaticSale(d(2024, time.January, 31), 3, 1_000_000)
	sale.Status = ""
	sale.TotalDebt = money(3_000_000)

	info, ok := schedule.AggregateClientOverdue(client, []schedule.SaleBundle{{Sale: sale}}, d(2024, time.April, 20))
	if !ok || info.OverdueCount == 0 {
		t.Error("empty-status sales must participate in arrears")
	}
}

func TestAggregateClientOverdue_SkipsSettledSales(t *testing.T) {
	// GIVEN: An active sale whose debt is fully settled
	// WHEN: Aggregating
	// THEN: The sale is skipped even if stale quotas look overdue

	client := schedule.Client{ID: "client-1", Name: "Maria"}
	sale := automaticSale(d(2024, time.January, 31), 3, 1_000_000)
	sale.TotalDebt = schedule.ZeroMoney()

	_, ok := schedule.AggregateClientOverdue(client, []schedule.SaleBundle{{Sale: sale}}, d(2024, time.April, 20))
	if ok {
		t.Error("settled sales must not contribute to arrears")
	}
}

func TestAggregateArrears_DropsClientsWithoutArrears(t *testing.T) {
	// GIVEN: One delinquent client and one current client
	// WHEN: Building the company-wide report
	// THEN: Only the delinquent client appears

	late := automaticSale(d(2024, time.January, 31), 3, 1_000_000)
	late.ID = "sale-late"
	late.TotalDebt = money(3_000_000)
	current := automaticSale(d(2024, time.April, 1), 3, 1_000_000)
	current.ID = "sale-current"
	current.TotalDebt = money(3_000_000)

	report := schedule.AggregateArrears([]schedule.ClientSales{
		{Client: schedule.Client{ID: "client-late"}, Bundles: []schedule.SaleBundle{{Sale: late}}},
		{Client: schedule.Client{ID: "client-current"}, Bundles: []schedule.SaleBundle{{Sale: current}}},
	}, d(2024, time.April, 20))

	if len(report) != 1 {
		t.Fatalf("expected 1 client in the report, got %d", len(report))
	}
	if report[0].Client.ID != "client-late" {
		t.Errorf("expected client-late, got %s", report[0].Client.ID)
	}
}
