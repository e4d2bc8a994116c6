/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

MONEY ON THE WIRE:
  Amounts travel as decimal strings ("1500000.00"), never floats, so
  clients round-trip them without precision loss.

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - schedule/types.go: Domain types these map from
*/
package api

import (
	"github.com/solterra/installment-engine/schedule"
	"github.com/solterra/installment-engine/store/sqlite"
)

// =============================================================================
// CLIENTS, PROJECTS, LOTS, PLANS
// =============================================================================

// ClientDTO represents a client in API responses.
type ClientDTO struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// CreateClientRequest is the request to register a client.
type CreateClientRequest struct {
	ID    string `json:"id,omitempty"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// ProjectDTO represents a development project.
type ProjectDTO struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// CreateProjectRequest is the request to create a project.
type CreateProjectRequest struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
}

// LotDTO represents a lot within a project.
type LotDTO struct {
	ID        string `json:"id"`
	ProjectID string `json:"project_id"`
	Label     string `json:"label"`
	Price     string `json:"price"`
	Status    string `json:"status"`
}

// CreateLotRequest is the request to register a lot.
type CreateLotRequest struct {
	ID        string `json:"id,omitempty"`
	ProjectID string `json:"project_id"`
	Label     string `json:"label"`
	Price     string `json:"price"`
}

// PlanDTO represents a financing plan template.
type PlanDTO struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Kind           string `json:"kind"`
	QuotaCount     int    `json:"quota_count"`
	InitialPercent string `json:"initial_percent,omitempty"`
}

// CreatePlanRequest is the request to create a plan template.
type CreatePlanRequest struct {
	ID             string `json:"id,omitempty"`
	Name           string `json:"name"`
	Kind           string `json:"kind"`
	QuotaCount     int    `json:"quota_count"`
	InitialPercent string `json:"initial_percent,omitempty"`
}

// =============================================================================
// SALES
// =============================================================================

// CustomQuotaDTO is one entry of a custom plan on the wire.
type CustomQuotaDTO struct {
	Number  int    `json:"number"`
	Amount  string `json:"amount"`
	DueDate string `json:"due_date,omitempty"`
}

// CreateSaleRequest creates a financed sale. The plan terms come either
// from a template (plan_id) or inline (kind/quota_count/custom_quotas).
type CreateSaleRequest struct {
	ID        string `json:"id,omitempty"`
	ClientID  string `json:"client_id"`
	LotID     string `json:"lot_id"`
	ProjectID string `json:"project_id"`
	SaleDate  string `json:"sale_date"` // YYYY-MM-DD

	TotalValue     string `json:"total_value"`
	InitialPayment string `json:"initial_payment,omitempty"`

	PlanID       string           `json:"plan_id,omitempty"`
	Kind         string           `json:"kind,omitempty"`
	QuotaCount   int              `json:"quota_count,omitempty"`
	CustomQuotas []CustomQuotaDTO `json:"custom_quotas,omitempty"`
}

// SaleDTO represents a sale in API responses.
type SaleDTO struct {
	ID        string `json:"id"`
	ClientID  string `json:"client_id"`
	LotID     string `json:"lot_id"`
	ProjectID string `json:"project_id"`
	Status    string `json:"status"`
	SaleDate  string `json:"sale_date"`

	TotalValue     string `json:"total_value"`
	InitialPayment string `json:"initial_payment"`
	TotalRaised    string `json:"total_raised"`
	TotalDebt      string `json:"total_debt"`

	PlanKind      string           `json:"plan_kind"`
	QuotaCount    int              `json:"quota_count"`
	QuotaValue    string           `json:"quota_value"`
	NewQuotaValue string           `json:"new_quota_value,omitempty"`
	CustomQuotas  []CustomQuotaDTO `json:"custom_quotas,omitempty"`
	Redistributed []int            `json:"redistributed_quotas,omitempty"`
}

// InstallmentDTO is one calculated quota of a sale's schedule.
type InstallmentDTO struct {
	Number      int    `json:"number"`
	Expected    string `json:"expected"`
	Paid        string `json:"paid"`
	Balance     string `json:"balance"`
	DueDate     string `json:"due_date"`
	Status      string `json:"status"`
	DaysOverdue int    `json:"days_overdue,omitempty"`
}

// ScheduleResponse is the full calculated schedule of one sale.
type ScheduleResponse struct {
	SaleID       string           `json:"sale_id"`
	AsOf         string           `json:"as_of"`
	Installments []InstallmentDTO `json:"installments"`
}

// SaleOverdueResponse lists a sale's overdue quotas.
type SaleOverdueResponse struct {
	SaleID         string           `json:"sale_id"`
	AsOf           string           `json:"as_of"`
	OverdueCount   int              `json:"overdue_count"`
	OverdueBalance string           `json:"overdue_balance"`
	Installments   []InstallmentDTO `json:"installments"`
}

// =============================================================================
// PAYMENTS
// =============================================================================

// AllocationDTO maps part of a payment to one quota number.
type AllocationDTO struct {
	QuotaNumber int    `json:"quota_number"`
	Amount      string `json:"amount"`
}

// RecordPaymentRequest records a payment against a sale. When
// allocations are omitted the amount is applied to unpaid quotas in
// ascending order.
type RecordPaymentRequest struct {
	ID          string          `json:"id,omitempty"`
	SaleID      string          `json:"sale_id"`
	Amount      string          `json:"amount"`
	PaidAt      string          `json:"paid_at"` // YYYY-MM-DD
	Method      string          `json:"method,omitempty"`
	Reference   string          `json:"reference,omitempty"`
	Allocations []AllocationDTO `json:"allocations,omitempty"`
}

// PaymentDTO represents a payment in API responses.
type PaymentDTO struct {
	ID        string `json:"id"`
	SaleID    string `json:"sale_id"`
	Amount    string `json:"amount"`
	PaidAt    string `json:"paid_at"`
	Method    string `json:"method,omitempty"`
	Reference string `json:"reference,omitempty"`
}

// =============================================================================
// REDISTRIBUTION
// =============================================================================

// RedistributeRequest selects the redistribution policy.
type RedistributeRequest struct {
	Policy string `json:"policy"` // "uniform" or "last_quota"
}

// RedistributeResponse reports the applied rewrite.
type RedistributeResponse struct {
	SaleID             string           `json:"sale_id"`
	Policy             string           `json:"policy"`
	AbsorbedQuotas     []int            `json:"absorbed_quotas"`
	RedistributedTotal string           `json:"redistributed_total"`
	NewSchedule        []InstallmentDTO `json:"new_schedule"`
}

// =============================================================================
// ARREARS REPORTING
// =============================================================================

// OverdueInstallmentDTO is one overdue quota with its sale context.
type OverdueInstallmentDTO struct {
	SaleID       string `json:"sale_id"`
	LotLabel     string `json:"lot_label,omitempty"`
	ProjectLabel string `json:"project_label,omitempty"`
	Number       int    `json:"number"`
	Expected     string `json:"expected"`
	Balance      string `json:"balance"`
	DueDate      string `json:"due_date"`
	DaysOverdue  int    `json:"days_overdue"`
}

// ClientOverdueDTO is one client's arrears summary.
type ClientOverdueDTO struct {
	Client       ClientDTO               `json:"client"`
	TotalOverdue string                  `json:"total_overdue"`
	OverdueCount int                     `json:"overdue_count"`
	Installments []OverdueInstallmentDTO `json:"installments"`
}

// ArrearsReportResponse is the company-wide arrears report.
type ArrearsReportResponse struct {
	AsOf    string             `json:"as_of"`
	Clients []ClientOverdueDTO `json:"clients"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toClientDTO(c schedule.Client) ClientDTO {
	return ClientDTO{
		ID:    string(c.ID),
		Name:  c.Name,
		Email: c.Email,
		Phone: c.Phone,
	}
}

func toLotDTO(l sqlite.Lot) LotDTO {
	return LotDTO{
		ID:        l.ID,
		ProjectID: l.ProjectID,
		Label:     l.Label,
		Price:     l.Price.String(),
		Status:    l.Status,
	}
}

func toPlanDTO(p sqlite.Plan) PlanDTO {
	return PlanDTO{
		ID:             p.ID,
		Name:           p.Name,
		Kind:           string(p.Kind),
		QuotaCount:     p.QuotaCount,
		InitialPercent: p.InitialPercent.String(),
	}
}

func toCustomQuotaDTOs(quotas []schedule.CustomQuota) []CustomQuotaDTO {
	if len(quotas) == 0 {
		return nil
	}
	out := make([]CustomQuotaDTO, len(quotas))
	for i, q := range quotas {
		out[i] = CustomQuotaDTO{Number: q.Number, Amount: q.Amount.String()}
		if q.DueDate != nil {
			out[i].DueDate = q.DueDate.String()
		}
	}
	return out
}

func toSaleDTO(s schedule.Sale) SaleDTO {
	dto := SaleDTO{
		ID:             string(s.ID),
		ClientID:       string(s.ClientID),
		LotID:          s.LotID,
		ProjectID:      s.ProjectID,
		Status:         string(s.Status),
		SaleDate:       s.SaleDate.String(),
		TotalValue:     s.TotalValue.String(),
		InitialPayment: s.InitialPayment.String(),
		TotalRaised:    s.TotalRaised.String(),
		TotalDebt:      s.TotalDebt.String(),
		PlanKind:       string(s.Plan.Kind),
		QuotaCount:     s.Plan.QuotaCount,
		QuotaValue:     s.Plan.QuotaValue.String(),
		CustomQuotas:   toCustomQuotaDTOs(s.Plan.CustomQuotas),
		Redistributed:  s.Plan.Redistributed,
	}
	if s.Plan.NewQuotaValue != nil {
		dto.NewQuotaValue = s.Plan.NewQuotaValue.String()
	}
	return dto
}

func toInstallmentDTO(inst schedule.Installment) InstallmentDTO {
	return InstallmentDTO{
		Number:      inst.Number,
		Expected:    inst.Expected.String(),
		Paid:        inst.Paid.String(),
		Balance:     inst.Balance.String(),
		DueDate:     inst.DueDate.String(),
		Status:      string(inst.Status),
		DaysOverdue: inst.DaysOverdue,
	}
}

func toInstallmentDTOs(installments []schedule.Installment) []InstallmentDTO {
	dtos := make([]InstallmentDTO, len(installments))
	for i, inst := range installments {
		dtos[i] = toInstallmentDTO(inst)
	}
	return dtos
}

func toPaymentDTO(p schedule.Payment) PaymentDTO {
	return PaymentDTO{
		ID:        string(p.ID),
		SaleID:    string(p.SaleID),
		Amount:    p.Amount.String(),
		PaidAt:    p.PaidAt.String(),
		Method:    p.Method,
		Reference: p.Reference,
	}
}

func toClientOverdueDTO(info schedule.ClientOverdueInfo) ClientOverdueDTO {
	installments := make([]OverdueInstallmentDTO, len(info.Installments))
	for i, inst := range info.Installments {
		installments[i] = OverdueInstallmentDTO{
			SaleID:       string(inst.SaleID),
			LotLabel:     inst.LotLabel,
			ProjectLabel: inst.ProjectLabel,
			Number:       inst.Number,
			Expected:     inst.Expected.String(),
			Balance:      inst.Balance.String(),
			DueDate:      inst.DueDate.String(),
			DaysOverdue:  inst.DaysOverdue,
		}
	}
	return ClientOverdueDTO{
		Client:       toClientDTO(info.Client),
		TotalOverdue: info.TotalOverdue.String(),
		OverdueCount: info.OverdueCount,
		Installments: installments,
	}
}
