/*
seed.go - Demo dataset loader

PURPOSE:
  Populates the store with a small realistic dataset so the API can be
  exercised immediately after startup: one project with lots, a handful
  of clients, plan templates, and sales in different states (current,
  partially paid, deep in arrears, custom plan).

DATES:
  All dates are relative to Handler.Now so the demo always contains
  live overdue quotas regardless of when it is loaded.

USAGE:
  POST /api/seed/demo

SEE ALSO:
  - handlers.go: Handler context
*/
package api

import (
	"context"
	"net/http"

	"github.com/solterra/installment-engine/schedule"
	"github.com/solterra/installment-engine/store/sqlite"
)

// SeedDemo loads the demo dataset. Idempotent: records are upserted by
// their fixed IDs.
func (h *Handler) SeedDemo(w http.ResponseWriter, r *http.Request) {
	if err := h.seedDemo(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to seed demo data", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"status": "seeded"})
}

func (h *Handler) seedDemo(ctx context.Context) error {
	today := h.Now()

	if err := h.Store.SaveProject(ctx, sqlite.Project{ID: "proj-altos", Name: "Altos del Valle"}); err != nil {
		return err
	}

	lots := []sqlite.Lot{
		{ID: "lot-a1", ProjectID: "proj-altos", Label: "A-1", Price: schedule.NewMoneyFromInt(36_000_000), Status: "sold"},
		{ID: "lot-a2", ProjectID: "proj-altos", Label: "A-2", Price: schedule.NewMoneyFromInt(42_000_000), Status: "sold"},
		{ID: "lot-b1", ProjectID: "proj-altos", Label: "B-1", Price: schedule.NewMoneyFromInt(55_000_000), Status: "sold"},
		{ID: "lot-b2", ProjectID: "proj-altos", Label: "B-2", Price: schedule.NewMoneyFromInt(55_000_000), Status: "available"},
	}
	for _, l := range lots {
		if err := h.Store.SaveLot(ctx, l); err != nil {
			return err
		}
	}

	clients := []schedule.Client{
		{ID: "client-maria", Name: "Maria Fernanda Rojas", Email: "maria@example.com", Phone: "300-555-0101"},
		{ID: "client-carlos", Name: "Carlos Andres Mejia", Email: "carlos@example.com", Phone: "300-555-0102"},
		{ID: "client-lucia", Name: "Lucia Paredes", Email: "lucia@example.com", Phone: "300-555-0103"},
	}
	for _, c := range clients {
		if err := h.Store.SaveClient(ctx, c); err != nil {
			return err
		}
	}

	plans := []sqlite.Plan{
		{ID: "plan-36", Name: "36 cuotas", Kind: schedule.PlanAutomatic, QuotaCount: 36},
		{ID: "plan-house-20", Name: "Casa 20% inicial", Kind: schedule.PlanHouse, QuotaCount: 48, InitialPercent: schedule.NewMoneyFromInt(20)},
	}
	for _, p := range plans {
		if err := h.Store.SavePlan(ctx, p); err != nil {
			return err
		}
	}

	// Maria: current sale, two quotas already covered.
	mariaSale := schedule.Sale{
		ID:             "sale-maria-a1",
		ClientID:       "client-maria",
		LotID:          "lot-a1",
		ProjectID:      "proj-altos",
		Status:         schedule.SaleActive,
		SaleDate:       today.AddMonthsClamped(-3),
		TotalValue:     schedule.NewMoneyFromInt(36_000_000),
		InitialPayment: schedule.NewMoneyFromInt(6_000_000),
		TotalRaised:    schedule.NewMoneyFromInt(6_000_000),
		TotalDebt:      schedule.NewMoneyFromInt(30_000_000),
		Plan: schedule.PlanConfig{
			Kind:       schedule.PlanAutomatic,
			QuotaCount: 30,
			QuotaValue: schedule.NewMoneyFromInt(1_000_000),
		},
	}
	if err := h.seedSale(ctx, mariaSale, []seedPayment{
		{quota: 1, amount: schedule.NewMoneyFromInt(1_000_000), paidAt: today.AddMonthsClamped(-2)},
		{quota: 2, amount: schedule.NewMoneyFromInt(1_000_000), paidAt: today.AddMonthsClamped(-1)},
	}); err != nil {
		return err
	}

	// Carlos: six months in, only a partial payment on quota 1. Several
	// quotas are overdue; redistribution candidate.
	carlosSale := schedule.Sale{
		ID:             "sale-carlos-a2",
		ClientID:       "client-carlos",
		LotID:          "lot-a2",
		ProjectID:      "proj-altos",
		Status:         schedule.SaleActive,
		SaleDate:       today.AddMonthsClamped(-6),
		TotalValue:     schedule.NewMoneyFromInt(42_000_000),
		InitialPayment: schedule.NewMoneyFromInt(6_000_000),
		TotalRaised:    schedule.NewMoneyFromInt(6_000_000),
		TotalDebt:      schedule.NewMoneyFromInt(36_000_000),
		Plan: schedule.PlanConfig{
			Kind:       schedule.PlanAutomatic,
			QuotaCount: 36,
			QuotaValue: schedule.NewMoneyFromInt(1_000_000),
		},
	}
	if err := h.seedSale(ctx, carlosSale, []seedPayment{
		{quota: 1, amount: schedule.NewMoneyFromInt(400_000), paidAt: today.AddMonthsClamped(-5)},
	}); err != nil {
		return err
	}

	// Lucia: custom plan with a balloon quota every December.
	luciaSale := schedule.Sale{
		ID:             "sale-lucia-b1",
		ClientID:       "client-lucia",
		LotID:          "lot-b1",
		ProjectID:      "proj-altos",
		Status:         schedule.SaleActive,
		SaleDate:       today.AddMonthsClamped(-2),
		TotalValue:     schedule.NewMoneyFromInt(55_000_000),
		InitialPayment: schedule.NewMoneyFromInt(11_000_000),
		TotalRaised:    schedule.NewMoneyFromInt(11_000_000),
		TotalDebt:      schedule.NewMoneyFromInt(44_000_000),
		Plan: schedule.PlanConfig{
			Kind:       schedule.PlanCustom,
			QuotaCount: 24,
			QuotaValue: schedule.NewMoneyFromInt(1_500_000),
			CustomQuotas: []schedule.CustomQuota{
				{Number: 6, Amount: schedule.NewMoneyFromInt(4_000_000)},
				{Number: 12, Amount: schedule.NewMoneyFromInt(4_000_000)},
				{Number: 18, Amount: schedule.NewMoneyFromInt(4_000_000)},
				{Number: 24, Amount: schedule.NewMoneyFromInt(4_000_000)},
			},
		},
	}
	if err := h.seedSale(ctx, luciaSale, []seedPayment{
		{quota: 1, amount: schedule.NewMoneyFromInt(1_500_000), paidAt: today.AddMonthsClamped(-1)},
	}); err != nil {
		return err
	}

	return nil
}

type seedPayment struct {
	quota  int
	amount schedule.Money
	paidAt schedule.Date
}

// seedSale inserts a sale and its payment history. An existing sale is
// left untouched so re-seeding does not duplicate payments.
func (h *Handler) seedSale(ctx context.Context, sale schedule.Sale, payments []seedPayment) error {
	if existing, err := h.Store.GetSale(ctx, sale.ID); err == nil && existing != nil {
		return nil
	}
	if err := h.Store.CreateSale(ctx, sale); err != nil {
		return err
	}

	for i, sp := range payments {
		p := schedule.Payment{
			ID:     schedule.PaymentID(string(sale.ID) + "-pay-" + string(rune('a'+i))),
			SaleID: sale.ID,
			Amount: sp.amount,
			PaidAt: sp.paidAt,
			Method: "transfer",
		}
		allocs := []schedule.Allocation{{
			ID:          string(p.ID) + "-alloc",
			PaymentID:   p.ID,
			SaleID:      sale.ID,
			QuotaNumber: sp.quota,
			Amount:      sp.amount,
		}}
		if err := h.Store.CreatePayment(ctx, p, allocs); err != nil {
			return err
		}
	}
	return nil
}
