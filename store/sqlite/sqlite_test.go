package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solterra/installment-engine/schedule"
	"github.com/solterra/installment-engine/store/sqlite"
)

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func money(n int64) schedule.Money {
	return schedule.NewMoneyFromInt(n)
}

func testSale(id schedule.SaleID, clientID schedule.ClientID) schedule.Sale {
	return schedule.Sale{
		ID:             id,
		ClientID:       clientID,
		LotID:          "lot-1",
		ProjectID:      "proj-1",
		Status:         schedule.SaleActive,
		SaleDate:       schedule.NewDate(2024, time.January, 31),
		TotalValue:     money(36_000_000),
		InitialPayment: money(6_000_000),
		TotalRaised:    money(6_000_000),
		TotalDebt:      money(30_000_000),
		Plan: schedule.PlanConfig{
			Kind:       schedule.PlanAutomatic,
			QuotaCount: 30,
			QuotaValue: money(1_000_000),
		},
	}
}

// =============================================================================
// SALES
// =============================================================================

func TestSaleRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	due := schedule.NewDate(2024, time.December, 1)
	sale := testSale("sale-1", "client-1")
	sale.Plan.Kind = schedule.PlanCustom
	sale.Plan.CustomQuotas = []schedule.CustomQuota{
		{Number: 1, Amount: schedule.ParseMoney("1500000.50")},
		{Number: 2, Amount: money(2_000_000), DueDate: &due},
	}
	sale.Plan.Redistributed = []int{3}

	require.NoError(t, store.CreateSale(ctx, sale))

	got, err := store.GetSale(ctx, "sale-1")
	require.NoError(t, err)

	assert.Equal(t, sale.ID, got.ID)
	assert.True(t, got.SaleDate.Equal(sale.SaleDate))
	assert.True(t, got.TotalValue.Equal(sale.TotalValue))
	assert.True(t, got.TotalDebt.Equal(sale.TotalDebt))
	assert.Equal(t, schedule.PlanCustom, got.Plan.Kind)
	require.Len(t, got.Plan.CustomQuotas, 2)
	assert.True(t, got.Plan.CustomQuotas[0].Amount.Equal(schedule.ParseMoney("1500000.50")))
	require.NotNil(t, got.Plan.CustomQuotas[1].DueDate)
	assert.True(t, got.Plan.CustomQuotas[1].DueDate.Equal(due))
	assert.Equal(t, []int{3}, got.Plan.Redistributed)
	assert.Equal(t, int64(1), got.Version)
}

func TestGetSale_NotFound(t *testing.T) {
	store := newTestStore(t)
	_, err := store.GetSale(context.Background(), "missing")
	assert.ErrorIs(t, err, schedule.ErrSaleNotFound)
}

func TestSetSaleStatus(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.CreateSale(ctx, testSale("sale-1", "client-1")))

	require.NoError(t, store.SetSaleStatus(ctx, "sale-1", schedule.SaleWithdrawn))

	got, err := store.GetSale(ctx, "sale-1")
	require.NoError(t, err)
	assert.Equal(t, schedule.SaleWithdrawn, got.Status)

	assert.ErrorIs(t, store.SetSaleStatus(ctx, "missing", schedule.SaleWithdrawn), schedule.ErrSaleNotFound)
}

// =============================================================================
// PAYMENTS AND THE TOTALS INVARIANT
// =============================================================================

func TestCreatePayment_MaintainsTotalsInvariant(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.CreateSale(ctx, testSale("sale-1", "client-1")))

	payment := schedule.Payment{
		ID:     "pay-1",
		SaleID: "sale-1",
		Amount: money(1_000_000),
		PaidAt: schedule.NewDate(2024, time.February, 20),
		Method: "transfer",
	}
	allocs := []schedule.Allocation{
		{ID: "alloc-1", PaymentID: "pay-1", SaleID: "sale-1", QuotaNumber: 1, Amount: money(1_000_000)},
	}
	require.NoError(t, store.CreatePayment(ctx, payment, allocs))

	got, err := store.GetSale(ctx, "sale-1")
	require.NoError(t, err)
	assert.True(t, got.TotalRaised.Equal(money(7_000_000)), "raised = %s", got.TotalRaised)
	assert.True(t, got.TotalDebt.Equal(money(29_000_000)), "debt = %s", got.TotalDebt)
	// Invariant: debt = value - raised
	assert.True(t, got.TotalDebt.Equal(got.TotalValue.Sub(got.TotalRaised)))

	stored, err := store.ListAllocations(ctx, "sale-1")
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, 1, stored[0].QuotaNumber)
}

func TestDeletePayment_ReversesTotals(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.CreateSale(ctx, testSale("sale-1", "client-1")))

	payment := schedule.Payment{
		ID:     "pay-1",
		SaleID: "sale-1",
		Amount: money(1_000_000),
		PaidAt: schedule.NewDate(2024, time.February, 20),
	}
	allocs := []schedule.Allocation{
		{ID: "alloc-1", PaymentID: "pay-1", SaleID: "sale-1", QuotaNumber: 1, Amount: money(1_000_000)},
	}
	require.NoError(t, store.CreatePayment(ctx, payment, allocs))
	require.NoError(t, store.DeletePayment(ctx, "pay-1"))

	got, err := store.GetSale(ctx, "sale-1")
	require.NoError(t, err)
	assert.True(t, got.TotalRaised.Equal(money(6_000_000)))
	assert.True(t, got.TotalDebt.Equal(money(30_000_000)))

	remaining, err := store.ListAllocations(ctx, "sale-1")
	require.NoError(t, err)
	assert.Empty(t, remaining)

	assert.ErrorIs(t, store.DeletePayment(ctx, "pay-1"), schedule.ErrPaymentNotFound)
}

// =============================================================================
// REDISTRIBUTION WRITE PATH
// =============================================================================

func redistributionResult(saleID schedule.SaleID, priorVersion int64) schedule.RedistributionResult {
	return schedule.RedistributionResult{
		SaleID:        saleID,
		Policy:        schedule.PolicyUniform,
		Absorbed:      []int{1, 2},
		Redistributed: []int{1, 2},
		CustomQuotas: []schedule.CustomQuota{
			{Number: 1, Amount: money(1_000_000)},
			{Number: 2, Amount: money(1_000_000)},
			{Number: 3, Amount: money(3_000_000)},
		},
		TotalRedistributed: money(2_000_000),
		PriorVersion:       priorVersion,
	}
}

func TestApplyRedistribution_AtomicRewrite(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.CreateSale(ctx, testSale("sale-1", "client-1")))

	require.NoError(t, store.ApplyRedistribution(ctx, redistributionResult("sale-1", 1)))

	got, err := store.GetSale(ctx, "sale-1")
	require.NoError(t, err)
	assert.Equal(t, schedule.PlanCustom, got.Plan.Kind)
	assert.Equal(t, []int{1, 2}, got.Plan.Redistributed)
	assert.Nil(t, got.Plan.NewQuotaValue)
	require.Len(t, got.Plan.CustomQuotas, 3)
	assert.True(t, got.Plan.CustomQuotas[2].Amount.Equal(money(3_000_000)))
	assert.Equal(t, int64(2), got.Version)
}

func TestApplyRedistribution_StaleVersionConflicts(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.CreateSale(ctx, testSale("sale-1", "client-1")))

	// Two results computed from the same snapshot; the second write must
	// lose and leave the first rewrite intact.
	first := redistributionResult("sale-1", 1)
	second := redistributionResult("sale-1", 1)
	second.CustomQuotas[2].Amount = money(9_999_999)

	require.NoError(t, store.ApplyRedistribution(ctx, first))
	err := store.ApplyRedistribution(ctx, second)
	assert.ErrorIs(t, err, schedule.ErrConcurrentRedistribution)
	assert.True(t, schedule.IsRetryable(err))

	got, err := store.GetSale(ctx, "sale-1")
	require.NoError(t, err)
	assert.True(t, got.Plan.CustomQuotas[2].Amount.Equal(money(3_000_000)), "losing write must not apply")
}

func TestApplyRedistribution_MissingSale(t *testing.T) {
	store := newTestStore(t)
	err := store.ApplyRedistribution(context.Background(), redistributionResult("missing", 1))
	assert.ErrorIs(t, err, schedule.ErrSaleNotFound)
}

// =============================================================================
// DEFENSIVE DECODE
// =============================================================================

func TestGetSale_EmptyListFieldsDecodeToNil(t *testing.T) {
	// Malformed-input handling lives in schedule/serial_test.go; the
	// store contract is that absent list fields come back empty, not as
	// zero-length JSON artifacts.
	store := newTestStore(t)
	ctx := context.Background()

	sale := testSale("sale-1", "client-1")
	sale.Plan.Kind = schedule.PlanCustom
	require.NoError(t, store.CreateSale(ctx, sale))

	got, err := store.GetSale(ctx, "sale-1")
	require.NoError(t, err)
	assert.Nil(t, got.Plan.CustomQuotas)
	assert.Nil(t, got.Plan.Redistributed)
}

// =============================================================================
// ARREARS SWEEP READ PATH
// =============================================================================

func TestListArrearsData(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveProject(ctx, sqlite.Project{ID: "proj-1", Name: "Altos del Valle"}))
	require.NoError(t, store.SaveLot(ctx, sqlite.Lot{ID: "lot-1", ProjectID: "proj-1", Label: "A-1", Price: money(36_000_000), Status: "sold"}))
	require.NoError(t, store.SaveClient(ctx, schedule.Client{ID: "client-1", Name: "Maria"}))
	require.NoError(t, store.SaveClient(ctx, schedule.Client{ID: "client-2", Name: "Carlos"}))

	require.NoError(t, store.CreateSale(ctx, testSale("sale-1", "client-1")))
	require.NoError(t, store.CreateSale(ctx, testSale("sale-2", "client-1")))
	require.NoError(t, store.CreateSale(ctx, testSale("sale-3", "client-2")))

	// Withdrawn sales drop out of the sweep.
	require.NoError(t, store.CreateSale(ctx, testSale("sale-4", "client-2")))
	require.NoError(t, store.SetSaleStatus(ctx, "sale-4", schedule.SaleWithdrawn))

	payment := schedule.Payment{ID: "pay-1", SaleID: "sale-1", Amount: money(400_000), PaidAt: schedule.NewDate(2024, time.February, 20)}
	allocs := []schedule.Allocation{{ID: "alloc-1", PaymentID: "pay-1", SaleID: "sale-1", QuotaNumber: 1, Amount: money(400_000)}}
	require.NoError(t, store.CreatePayment(ctx, payment, allocs))

	data, err := store.ListArrearsData(ctx)
	require.NoError(t, err)
	require.Len(t, data, 2)

	assert.Equal(t, schedule.ClientID("client-1"), data[0].Client.ID)
	assert.Equal(t, "Maria", data[0].Client.Name)
	require.Len(t, data[0].Bundles, 2)
	assert.Equal(t, "A-1", data[0].Bundles[0].LotLabel)
	assert.Equal(t, "Altos del Valle", data[0].Bundles[0].ProjectLabel)

	// Allocations attach to the right bundle.
	var sale1Allocs []schedule.Allocation
	for _, b := range data[0].Bundles {
		if b.Sale.ID == "sale-1" {
			sale1Allocs = b.Allocations
		}
	}
	require.Len(t, sale1Allocs, 1)
	assert.True(t, sale1Allocs[0].Amount.Equal(money(400_000)))

	require.Len(t, data[1].Bundles, 1)
	assert.Equal(t, schedule.SaleID("sale-3"), data[1].Bundles[0].Sale.ID)
}

// =============================================================================
// NOTIFICATION THROTTLE LOG
// =============================================================================

func TestNotificationThrottle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	today := schedule.NewDate(2024, time.April, 20)

	done, err := store.WasNotifiedOn(ctx, "client-1", today)
	require.NoError(t, err)
	assert.False(t, done)

	require.NoError(t, store.MarkNotified(ctx, "client-1", today))
	// Idempotent
	require.NoError(t, store.MarkNotified(ctx, "client-1", today))

	done, err = store.WasNotifiedOn(ctx, "client-1", today)
	require.NoError(t, err)
	assert.True(t, done)

	// A different day is a fresh slate.
	done, err = store.WasNotifiedOn(ctx, "client-1", today.AddDays(1))
	require.NoError(t, err)
	assert.False(t, done)
}
