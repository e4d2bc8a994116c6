/*
handlers.go - HTTP API handlers for the installment sales system

PURPOSE:
  Exposes the schedule engine via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Clients:
    GET    /api/clients                List clients
    POST   /api/clients                Register client
    GET    /api/clients/{id}           Get client details
    GET    /api/clients/{id}/overdue   Client arrears summary
    GET    /api/clients/{id}/sales     Client's sales

  Sales:
    POST   /api/sales                      Create a financed sale
    GET    /api/sales/{id}                 Sale details
    GET    /api/sales/{id}/schedule        Calculated installment schedule
    GET    /api/sales/{id}/overdue         Overdue quotas of one sale
    GET    /api/sales/{id}/payments        Payment history
    POST   /api/sales/{id}/redistribute    Fold overdue balance forward
    POST   /api/sales/{id}/withdraw        Mark sale as withdrawn

  Payments:
    POST   /api/payments           Record payment + allocations
    DELETE /api/payments/{id}      Reverse a payment

  Reports:
    GET    /api/reports/arrears    Company-wide arrears report

REQUEST FLOW:
  1. Parse HTTP request
  2. Validate input
  3. Call domain logic (resolver, calculator, redistribution)
  4. Serialize response
  5. Handle errors

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input, unknown policy
  - 404: Resource not found
  - 409: Concurrent redistribution (retryable)
  - 500: Internal errors

TIME:
  "Today" is injected through Handler.Now so schedule calculations are
  reproducible in tests.

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - seed.go: Demo dataset loader
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/solterra/installment-engine/schedule"
	"github.com/solterra/installment-engine/store/sqlite"
)

var hundred = decimal.NewFromInt(100)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store *sqlite.Store

	// Now supplies "today" for schedule calculations.
	Now func() schedule.Date
}

// NewHandler creates a new handler with the given store.
func NewHandler(store *sqlite.Store) *Handler {
	return &Handler{
		Store: store,
		Now:   schedule.Today,
	}
}

func newID(prefix string) string {
	return prefix + "-" + uuid.NewString()
}

// =============================================================================
// CLIENT HANDLERS
// =============================================================================

// ListClients returns all clients.
func (h *Handler) ListClients(w http.ResponseWriter, r *http.Request) {
	clients, err := h.Store.ListClients(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list clients", err)
		return
	}

	dtos := make([]ClientDTO, len(clients))
	for i, c := range clients {
		dtos[i] = toClientDTO(c)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetClient returns a single client.
func (h *Handler) GetClient(w http.ResponseWriter, r *http.Request) {
	id := schedule.ClientID(chi.URLParam(r, "id"))

	client, err := h.Store.GetClient(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to get client", err)
		return
	}
	writeJSON(w, http.StatusOK, toClientDTO(*client))
}

// CreateClient registers a new client.
func (h *Handler) CreateClient(w http.ResponseWriter, r *http.Request) {
	var req CreateClientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required", nil)
		return
	}
	if req.ID == "" {
		req.ID = newID("client")
	}

	client := schedule.Client{
		ID:    schedule.ClientID(req.ID),
		Name:  req.Name,
		Email: req.Email,
		Phone: req.Phone,
	}
	if err := h.Store.SaveClient(r.Context(), client); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create client", err)
		return
	}
	writeJSON(w, http.StatusCreated, toClientDTO(client))
}

// GetClientOverdue returns the arrears summary for one client across
// all their active sales.
func (h *Handler) GetClientOverdue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	clientID := schedule.ClientID(chi.URLParam(r, "id"))
	today := h.Now()

	client, err := h.Store.GetClient(ctx, clientID)
	if err != nil {
		writeDomainError(w, "Failed to get client", err)
		return
	}

	sales, err := h.Store.ListSalesByClient(ctx, clientID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list sales", err)
		return
	}

	bundles := make([]schedule.SaleBundle, 0, len(sales))
	for _, sale := range sales {
		allocs, err := h.Store.ListAllocations(ctx, sale.ID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to list allocations", err)
			return
		}
		lot, _ := h.Store.GetLot(ctx, sale.LotID)
		project, _ := h.Store.GetProject(ctx, sale.ProjectID)
		bundle := schedule.SaleBundle{Sale: sale, Allocations: allocs}
		if lot != nil {
			bundle.LotLabel = lot.Label
		}
		if project != nil {
			bundle.ProjectLabel = project.Name
		}
		bundles = append(bundles, bundle)
	}

	info, ok := schedule.AggregateClientOverdue(*client, bundles, today)
	if !ok {
		// No arrears: still echo the client with zeroed totals.
		info = schedule.ClientOverdueInfo{Client: *client, TotalOverdue: schedule.ZeroMoney()}
	}
	writeJSON(w, http.StatusOK, toClientOverdueDTO(info))
}

// ListClientSales returns all sales of one client.
func (h *Handler) ListClientSales(w http.ResponseWriter, r *http.Request) {
	clientID := schedule.ClientID(chi.URLParam(r, "id"))

	sales, err := h.Store.ListSalesByClient(r.Context(), clientID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list sales", err)
		return
	}

	dtos := make([]SaleDTO, len(sales))
	for i, s := range sales {
		dtos[i] = toSaleDTO(s)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// PROJECT, LOT AND PLAN HANDLERS
// =============================================================================

// ListProjects returns all projects.
func (h *Handler) ListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := h.Store.ListProjects(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list projects", err)
		return
	}
	dtos := make([]ProjectDTO, len(projects))
	for i, p := range projects {
		dtos[i] = ProjectDTO{ID: p.ID, Name: p.Name}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateProject creates a new project.
func (h *Handler) CreateProject(w http.ResponseWriter, r *http.Request) {
	var req CreateProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required", nil)
		return
	}
	if req.ID == "" {
		req.ID = newID("project")
	}
	if err := h.Store.SaveProject(r.Context(), sqlite.Project{ID: req.ID, Name: req.Name}); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create project", err)
		return
	}
	writeJSON(w, http.StatusCreated, ProjectDTO{ID: req.ID, Name: req.Name})
}

// ListLots returns a project's lots.
func (h *Handler) ListLots(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "id")
	lots, err := h.Store.ListLotsByProject(r.Context(), projectID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list lots", err)
		return
	}
	dtos := make([]LotDTO, len(lots))
	for i, l := range lots {
		dtos[i] = toLotDTO(l)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateLot registers a lot within a project.
func (h *Handler) CreateLot(w http.ResponseWriter, r *http.Request) {
	var req CreateLotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ProjectID == "" || req.Label == "" {
		writeError(w, http.StatusBadRequest, "project_id and label are required", nil)
		return
	}
	if req.ID == "" {
		req.ID = newID("lot")
	}
	lot := sqlite.Lot{
		ID:        req.ID,
		ProjectID: req.ProjectID,
		Label:     req.Label,
		Price:     schedule.ParseMoney(req.Price),
		Status:    "available",
	}
	if err := h.Store.SaveLot(r.Context(), lot); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create lot", err)
		return
	}
	writeJSON(w, http.StatusCreated, toLotDTO(lot))
}

// ListPlans returns all plan templates.
func (h *Handler) ListPlans(w http.ResponseWriter, r *http.Request) {
	plans, err := h.Store.ListPlans(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list plans", err)
		return
	}
	dtos := make([]PlanDTO, len(plans))
	for i, p := range plans {
		dtos[i] = toPlanDTO(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreatePlan creates a plan template.
func (h *Handler) CreatePlan(w http.ResponseWriter, r *http.Request) {
	var req CreatePlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	kind := schedule.PlanKind(req.Kind)
	switch kind {
	case schedule.PlanAutomatic, schedule.PlanCustom, schedule.PlanHouse:
	default:
		writeError(w, http.StatusBadRequest, "kind must be automatic, custom or house", nil)
		return
	}
	if req.ID == "" {
		req.ID = newID("plan")
	}
	plan := sqlite.Plan{
		ID:             req.ID,
		Name:           req.Name,
		Kind:           kind,
		QuotaCount:     req.QuotaCount,
		InitialPercent: schedule.ParseMoney(req.InitialPercent),
	}
	if err := h.Store.SavePlan(r.Context(), plan); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create plan", err)
		return
	}
	writeJSON(w, http.StatusCreated, toPlanDTO(plan))
}

// =============================================================================
// SALE HANDLERS
// =============================================================================

// CreateSale creates a financed sale. Plan terms come from a template
// (plan_id) or inline; the uniform quota value is derived as
// (total - initial) / quota_count.
func (h *Handler) CreateSale(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CreateSaleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ClientID == "" || req.LotID == "" || req.ProjectID == "" {
		writeError(w, http.StatusBadRequest, "client_id, lot_id and project_id are required", nil)
		return
	}

	saleDate, err := schedule.ParseDate(req.SaleDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid sale_date format (use YYYY-MM-DD)", err)
		return
	}

	totalValue := schedule.ParseMoney(req.TotalValue)
	if !totalValue.IsPositive() {
		writeError(w, http.StatusBadRequest, "total_value must be positive", nil)
		return
	}

	if _, err := h.Store.GetClient(ctx, schedule.ClientID(req.ClientID)); err != nil {
		writeDomainError(w, "Failed to resolve client", err)
		return
	}

	kind := schedule.PlanKind(req.Kind)
	quotaCount := req.QuotaCount
	initialPayment := schedule.ParseMoney(req.InitialPayment)

	if req.PlanID != "" {
		template, err := h.Store.GetPlan(ctx, req.PlanID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to resolve plan", err)
			return
		}
		if template == nil {
			writeError(w, http.StatusBadRequest, "Unknown plan_id", nil)
			return
		}
		kind = template.Kind
		if quotaCount == 0 {
			quotaCount = template.QuotaCount
		}
		// House plans derive the initial payment from the template
		// percentage of the total value.
		if kind == schedule.PlanHouse && req.InitialPayment == "" {
			initialPayment = totalValue.Mul(template.InitialPercent.Value).Div(hundred).Round2()
		}
	}

	switch kind {
	case schedule.PlanAutomatic, schedule.PlanCustom, schedule.PlanHouse:
	default:
		writeError(w, http.StatusBadRequest, "kind must be automatic, custom or house", nil)
		return
	}

	plan := schedule.PlanConfig{Kind: kind, QuotaCount: quotaCount}

	if kind == schedule.PlanCustom {
		for _, q := range req.CustomQuotas {
			cq := schedule.CustomQuota{Number: q.Number, Amount: schedule.ParseMoney(q.Amount)}
			if q.DueDate != "" {
				due, err := schedule.ParseDate(q.DueDate)
				if err != nil {
					writeError(w, http.StatusBadRequest, "Invalid custom quota due_date", err)
					return
				}
				cq.DueDate = &due
			}
			plan.CustomQuotas = append(plan.CustomQuotas, cq)
		}
		if len(plan.CustomQuotas) == 0 {
			writeError(w, http.StatusBadRequest, "custom plan requires custom_quotas", nil)
			return
		}
	} else {
		if quotaCount <= 0 {
			writeError(w, http.StatusBadRequest, "quota_count must be positive", nil)
			return
		}
		plan.QuotaValue = totalValue.Sub(initialPayment).
			Div(schedule.NewMoneyFromInt(int64(quotaCount)).Value).Round2()
	}

	if req.ID == "" {
		req.ID = newID("sale")
	}

	sale := schedule.Sale{
		ID:             schedule.SaleID(req.ID),
		ClientID:       schedule.ClientID(req.ClientID),
		LotID:          req.LotID,
		ProjectID:      req.ProjectID,
		Status:         schedule.SaleActive,
		SaleDate:       saleDate,
		TotalValue:     totalValue,
		InitialPayment: initialPayment,
		TotalRaised:    initialPayment,
		TotalDebt:      totalValue.Sub(initialPayment),
		Plan:           plan,
	}

	if err := h.Store.CreateSale(ctx, sale); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create sale", err)
		return
	}
	if err := h.Store.SetLotStatus(ctx, sale.LotID, "sold"); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to mark lot sold", err)
		return
	}

	writeJSON(w, http.StatusCreated, toSaleDTO(sale))
}

// GetSale returns one sale.
func (h *Handler) GetSale(w http.ResponseWriter, r *http.Request) {
	sale, err := h.Store.GetSale(r.Context(), schedule.SaleID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, "Failed to get sale", err)
		return
	}
	writeJSON(w, http.StatusOK, toSaleDTO(*sale))
}

// GetSchedule returns the calculated installment schedule of one sale.
func (h *Handler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	saleID := schedule.SaleID(chi.URLParam(r, "id"))
	today := h.Now()

	sale, err := h.Store.GetSale(ctx, saleID)
	if err != nil {
		writeDomainError(w, "Failed to get sale", err)
		return
	}
	allocs, err := h.Store.ListAllocations(ctx, saleID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list allocations", err)
		return
	}

	installments := schedule.CalculateForSale(*sale, allocs, today)
	writeJSON(w, http.StatusOK, ScheduleResponse{
		SaleID:       string(saleID),
		AsOf:         today.String(),
		Installments: toInstallmentDTOs(installments),
	})
}

// GetSaleOverdue returns a sale's overdue quotas.
func (h *Handler) GetSaleOverdue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	saleID := schedule.SaleID(chi.URLParam(r, "id"))
	today := h.Now()

	sale, err := h.Store.GetSale(ctx, saleID)
	if err != nil {
		writeDomainError(w, "Failed to get sale", err)
		return
	}
	allocs, err := h.Store.ListAllocations(ctx, saleID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list allocations", err)
		return
	}

	installments := schedule.CalculateForSale(*sale, allocs, today)
	overdue := schedule.Overdue(installments)
	writeJSON(w, http.StatusOK, SaleOverdueResponse{
		SaleID:         string(saleID),
		AsOf:           today.String(),
		OverdueCount:   len(overdue),
		OverdueBalance: schedule.OverdueBalance(installments).String(),
		Installments:   toInstallmentDTOs(overdue),
	})
}

// RedistributeSale folds the sale's overdue balance into its remaining
// quotas under the requested policy and persists the rewrite.
func (h *Handler) RedistributeSale(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	saleID := schedule.SaleID(chi.URLParam(r, "id"))
	today := h.Now()

	var req RedistributeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	policy, err := schedule.ParsePolicy(req.Policy)
	if err != nil {
		writeError(w, http.StatusBadRequest, "policy must be uniform or last_quota", err)
		return
	}

	sale, err := h.Store.GetSale(ctx, saleID)
	if err != nil {
		writeDomainError(w, "Failed to get sale", err)
		return
	}
	allocs, err := h.Store.ListAllocations(ctx, saleID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list allocations", err)
		return
	}

	result, err := schedule.Redistribute(*sale, allocs, today, policy)
	if err != nil {
		writeDomainError(w, "Redistribution failed", err)
		return
	}
	if err := h.Store.ApplyRedistribution(ctx, result); err != nil {
		writeDomainError(w, "Failed to apply redistribution", err)
		return
	}

	// Recompute from the persisted state so the response reflects what
	// any subsequent read will see.
	updated, err := h.Store.GetSale(ctx, saleID)
	if err != nil {
		writeDomainError(w, "Failed to reload sale", err)
		return
	}
	installments := schedule.CalculateForSale(*updated, allocs, today)

	writeJSON(w, http.StatusOK, RedistributeResponse{
		SaleID:             string(saleID),
		Policy:             string(result.Policy),
		AbsorbedQuotas:     result.Absorbed,
		RedistributedTotal: result.TotalRedistributed.String(),
		NewSchedule:        toInstallmentDTOs(installments),
	})
}

// WithdrawSale marks a sale as withdrawn and releases its lot. The sale
// stops participating in schedules, overdue detection and sweeps.
func (h *Handler) WithdrawSale(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	saleID := schedule.SaleID(chi.URLParam(r, "id"))

	sale, err := h.Store.GetSale(ctx, saleID)
	if err != nil {
		writeDomainError(w, "Failed to get sale", err)
		return
	}
	if err := h.Store.SetSaleStatus(ctx, saleID, schedule.SaleWithdrawn); err != nil {
		writeDomainError(w, "Failed to withdraw sale", err)
		return
	}
	if err := h.Store.SetLotStatus(ctx, sale.LotID, "available"); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to release lot", err)
		return
	}

	sale.Status = schedule.SaleWithdrawn
	writeJSON(w, http.StatusOK, toSaleDTO(*sale))
}

// ListSalePayments returns a sale's payment history.
func (h *Handler) ListSalePayments(w http.ResponseWriter, r *http.Request) {
	payments, err := h.Store.ListPaymentsBySale(r.Context(), schedule.SaleID(chi.URLParam(r, "id")))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list payments", err)
		return
	}
	dtos := make([]PaymentDTO, len(payments))
	for i, p := range payments {
		dtos[i] = toPaymentDTO(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// PAYMENT HANDLERS
// =============================================================================

// RecordPayment records a payment and its allocations. When allocations
// are omitted the amount is spread over unpaid quotas in ascending
// order. Sale totals are adjusted atomically with the insert.
func (h *Handler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req RecordPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	amount := schedule.ParseMoney(req.Amount)
	if !amount.IsPositive() {
		writeError(w, http.StatusBadRequest, "amount must be positive", nil)
		return
	}
	paidAt, err := schedule.ParseDate(req.PaidAt)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid paid_at format (use YYYY-MM-DD)", err)
		return
	}

	saleID := schedule.SaleID(req.SaleID)
	sale, err := h.Store.GetSale(ctx, saleID)
	if err != nil {
		writeDomainError(w, "Failed to get sale", err)
		return
	}
	if !sale.IsActive() {
		writeError(w, http.StatusBadRequest, "Sale is withdrawn", nil)
		return
	}

	if req.ID == "" {
		req.ID = newID("payment")
	}
	payment := schedule.Payment{
		ID:        schedule.PaymentID(req.ID),
		SaleID:    saleID,
		Amount:    amount,
		PaidAt:    paidAt,
		Method:    req.Method,
		Reference: req.Reference,
	}

	var allocations []schedule.Allocation
	if len(req.Allocations) > 0 {
		sum := schedule.ZeroMoney()
		for _, a := range req.Allocations {
			if a.QuotaNumber <= 0 {
				writeError(w, http.StatusBadRequest, "allocation quota_number must be positive", nil)
				return
			}
			amt := schedule.ParseMoney(a.Amount)
			if !amt.IsPositive() {
				writeError(w, http.StatusBadRequest, "allocation amount must be positive", nil)
				return
			}
			sum = sum.Add(amt)
			allocations = append(allocations, schedule.Allocation{
				ID:          newID("alloc"),
				PaymentID:   payment.ID,
				SaleID:      saleID,
				QuotaNumber: a.QuotaNumber,
				Amount:      amt,
			})
		}
		if !sum.Equal(amount) {
			writeError(w, http.StatusBadRequest, "allocations must sum to the payment amount", nil)
			return
		}
	} else {
		existing, err := h.Store.ListAllocations(ctx, saleID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to list allocations", err)
			return
		}
		allocations = autoAllocate(payment, *sale, existing, h.Now())
	}

	if err := h.Store.CreatePayment(ctx, payment, allocations); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to record payment", err)
		return
	}

	writeJSON(w, http.StatusCreated, toPaymentDTO(payment))
}

// autoAllocate spreads a payment over unpaid quotas in ascending
// number order. Any surplus beyond the open balances lands on the last
// quota so the full amount is always ledgered.
func autoAllocate(p schedule.Payment, sale schedule.Sale, existing []schedule.Allocation, today schedule.Date) []schedule.Allocation {
	installments := schedule.CalculateForSale(sale, existing, today)

	var allocations []schedule.Allocation
	remaining := p.Amount
	lastNumber := 0
	for _, inst := range installments {
		lastNumber = inst.Number
		if !remaining.IsPositive() {
			break
		}
		if inst.Status == schedule.StatusDistribuida || !inst.Balance.IsPositive() {
			continue
		}
		amt := inst.Balance
		if remaining.LessThan(amt) {
			amt = remaining
		}
		allocations = append(allocations, schedule.Allocation{
			ID:          newID("alloc"),
			PaymentID:   p.ID,
			SaleID:      sale.ID,
			QuotaNumber: inst.Number,
			Amount:      amt,
		})
		remaining = remaining.Sub(amt)
	}

	if remaining.IsPositive() {
		if lastNumber == 0 {
			lastNumber = 1
		}
		allocations = append(allocations, schedule.Allocation{
			ID:          newID("alloc"),
			PaymentID:   p.ID,
			SaleID:      sale.ID,
			QuotaNumber: lastNumber,
			Amount:      remaining,
		})
	}
	return allocations
}

// DeletePayment reverses a payment, removing its allocations and
// restoring the sale totals.
func (h *Handler) DeletePayment(w http.ResponseWriter, r *http.Request) {
	id := schedule.PaymentID(chi.URLParam(r, "id"))
	if err := h.Store.DeletePayment(r.Context(), id); err != nil {
		writeDomainError(w, "Failed to delete payment", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted", "id": string(id)})
}

// =============================================================================
// REPORT HANDLERS
// =============================================================================

// GetArrearsReport returns the company-wide arrears report: every
// client with at least one overdue quota across their active sales.
func (h *Handler) GetArrearsReport(w http.ResponseWriter, r *http.Request) {
	today := h.Now()

	data, err := h.Store.ListArrearsData(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load arrears data", err)
		return
	}

	infos := schedule.AggregateArrears(data, today)
	clients := make([]ClientOverdueDTO, len(infos))
	for i, info := range infos {
		clients[i] = toClientOverdueDTO(info)
	}
	writeJSON(w, http.StatusOK, ArrearsReportResponse{
		AsOf:    today.String(),
		Clients: clients,
	})
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps engine errors onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	switch {
	case schedule.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case schedule.IsRetryable(err):
		writeError(w, http.StatusConflict, message, err)
	case schedule.IsClientError(err):
		writeError(w, http.StatusBadRequest, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}
