// Package store provides in-memory implementations of the schedule
// persistence interfaces, for tests and local development.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/solterra/installment-engine/schedule"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu          sync.RWMutex
	sales       map[schedule.SaleID]schedule.Sale
	allocations map[schedule.SaleID][]schedule.Allocation
	clients     map[schedule.ClientID]schedule.Client
	labels      map[schedule.SaleID]saleLabels
}

type saleLabels struct {
	Lot     string
	Project string
}

func NewMemory() *Memory {
	return &Memory{
		sales:       make(map[schedule.SaleID]schedule.Sale),
		allocations: make(map[schedule.SaleID][]schedule.Allocation),
		clients:     make(map[schedule.ClientID]schedule.Client),
		labels:      make(map[schedule.SaleID]saleLabels),
	}
}

// PutSale inserts or replaces a sale.
func (m *Memory) PutSale(sale schedule.Sale) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sales[sale.ID] = sale
}

// PutClient registers a client for arrears grouping.
func (m *Memory) PutClient(c schedule.Client) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clients[c.ID] = c
}

// PutLabels attaches lot/project display labels to a sale.
func (m *Memory) PutLabels(id schedule.SaleID, lot, project string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.labels[id] = saleLabels{Lot: lot, Project: project}
}

// AddAllocation appends to a sale's allocation ledger.
func (m *Memory) AddAllocation(a schedule.Allocation) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.allocations[a.SaleID] = append(m.allocations[a.SaleID], a)
}

// GetSale implements schedule.SaleSource.
func (m *Memory) GetSale(_ context.Context, id schedule.SaleID) (*schedule.Sale, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sale, ok := m.sales[id]
	if !ok {
		return nil, schedule.ErrSaleNotFound
	}
	out := sale
	return &out, nil
}

// ListAllocations implements schedule.SaleSource.
func (m *Memory) ListAllocations(_ context.Context, id schedule.SaleID) ([]schedule.Allocation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]schedule.Allocation, len(m.allocations[id]))
	copy(result, m.allocations[id])
	return result, nil
}

// ListArrearsData implements schedule.ArrearsSource. Sales are grouped
// by client; only active sales with positive debt are included, per the
// aggregator's contract.
func (m *Memory) ListArrearsData(_ context.Context) ([]schedule.ClientSales, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	byClient := make(map[schedule.ClientID][]schedule.SaleBundle)
	for id, sale := range m.sales {
		if !sale.IsActive() || !sale.TotalDebt.IsPositive() {
			continue
		}
		allocs := make([]schedule.Allocation, len(m.allocations[id]))
		copy(allocs, m.allocations[id])
		lbl := m.labels[id]
		byClient[sale.ClientID] = append(byClient[sale.ClientID], schedule.SaleBundle{
			Sale:         sale,
			Allocations:  allocs,
			LotLabel:     lbl.Lot,
			ProjectLabel: lbl.Project,
		})
	}

	ids := make([]schedule.ClientID, 0, len(byClient))
	for id := range byClient {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := make([]schedule.ClientSales, 0, len(ids))
	for _, id := range ids {
		client, ok := m.clients[id]
		if !ok {
			client = schedule.Client{ID: id}
		}
		bundles := byClient[id]
		sort.Slice(bundles, func(i, j int) bool { return bundles[i].Sale.ID < bundles[j].Sale.ID })
		out = append(out, schedule.ClientSales{Client: client, Bundles: bundles})
	}
	return out, nil
}

// ApplyRedistribution implements schedule.RedistributionStore with
// optimistic locking on the sale version.
func (m *Memory) ApplyRedistribution(_ context.Context, result schedule.RedistributionResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sale, ok := m.sales[result.SaleID]
	if !ok {
		return schedule.ErrSaleNotFound
	}
	if sale.Version != result.PriorVersion {
		return &schedule.RedistributionConflictError{SaleID: result.SaleID}
	}

	sale.Plan.Kind = schedule.PlanCustom
	sale.Plan.CustomQuotas = result.CustomQuotas
	sale.Plan.Redistributed = result.Redistributed
	sale.Plan.NewQuotaValue = nil
	sale.Version++
	m.sales[result.SaleID] = sale
	return nil
}
