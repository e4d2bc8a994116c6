package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solterra/installment-engine/schedule"
	"github.com/solterra/installment-engine/schedule/store"
)

func seedSale(m *store.Memory, id schedule.SaleID, clientID schedule.ClientID) schedule.Sale {
	sale := schedule.Sale{
		ID:        id,
		ClientID:  clientID,
		Status:    schedule.SaleActive,
		SaleDate:  schedule.NewDate(2024, time.January, 15),
		TotalDebt: schedule.NewMoneyFromInt(3_000_000),
		Plan: schedule.PlanConfig{
			Kind:       schedule.PlanAutomatic,
			QuotaCount: 3,
			QuotaValue: schedule.NewMoneyFromInt(1_000_000),
		},
		Version: 1,
	}
	m.PutSale(sale)
	return sale
}

func TestMemory_GetSale(t *testing.T) {
	m := store.NewMemory()
	seedSale(m, "sale-1", "client-1")

	got, err := m.GetSale(context.Background(), "sale-1")
	require.NoError(t, err)
	assert.Equal(t, schedule.SaleID("sale-1"), got.ID)

	_, err = m.GetSale(context.Background(), "missing")
	assert.ErrorIs(t, err, schedule.ErrSaleNotFound)
}

func TestMemory_ArrearsGroupsByClient(t *testing.T) {
	m := store.NewMemory()
	m.PutClient(schedule.Client{ID: "client-1", Name: "Maria"})
	seedSale(m, "sale-1", "client-1")
	seedSale(m, "sale-2", "client-1")
	seedSale(m, "sale-3", "client-2")

	// Withdrawn and settled sales must not appear.
	withdrawn := seedSale(m, "sale-4", "client-1")
	withdrawn.Status = schedule.SaleWithdrawn
	m.PutSale(withdrawn)
	settled := seedSale(m, "sale-5", "client-2")
	settled.TotalDebt = schedule.ZeroMoney()
	m.PutSale(settled)

	data, err := m.ListArrearsData(context.Background())
	require.NoError(t, err)
	require.Len(t, data, 2)

	assert.Equal(t, schedule.ClientID("client-1"), data[0].Client.ID)
	assert.Equal(t, "Maria", data[0].Client.Name)
	assert.Len(t, data[0].Bundles, 2)
	assert.Len(t, data[1].Bundles, 1)
}

func TestMemory_ApplyRedistribution(t *testing.T) {
	m := store.NewMemory()
	sale := seedSale(m, "sale-1", "client-1")

	result := schedule.RedistributionResult{
		SaleID:        sale.ID,
		Policy:        schedule.PolicyUniform,
		Absorbed:      []int{1},
		Redistributed: []int{1},
		CustomQuotas: []schedule.CustomQuota{
			{Number: 1, Amount: schedule.NewMoneyFromInt(1_000_000)},
			{Number: 2, Amount: schedule.NewMoneyFromInt(1_500_000)},
			{Number: 3, Amount: schedule.NewMoneyFromInt(1_500_000)},
		},
		TotalRedistributed: schedule.NewMoneyFromInt(1_000_000),
		PriorVersion:       1,
	}

	require.NoError(t, m.ApplyRedistribution(context.Background(), result))

	got, err := m.GetSale(context.Background(), sale.ID)
	require.NoError(t, err)
	assert.Equal(t, schedule.PlanCustom, got.Plan.Kind)
	assert.Equal(t, []int{1}, got.Plan.Redistributed)
	assert.Nil(t, got.Plan.NewQuotaValue)
	assert.Equal(t, int64(2), got.Version)
}

func TestMemory_ApplyRedistribution_VersionConflict(t *testing.T) {
	m := store.NewMemory()
	sale := seedSale(m, "sale-1", "client-1")

	stale := schedule.RedistributionResult{
		SaleID:       sale.ID,
		PriorVersion: 0, // computed before the sale reached version 1
	}
	err := m.ApplyRedistribution(context.Background(), stale)
	assert.ErrorIs(t, err, schedule.ErrConcurrentRedistribution)

	missing := schedule.RedistributionResult{SaleID: "nope", PriorVersion: 1}
	assert.ErrorIs(t, m.ApplyRedistribution(context.Background(), missing), schedule.ErrSaleNotFound)
}
