/*
Package schedule provides the installment schedule engine.

PURPOSE:
  This package contains the domain types and algorithms for deriving a
  sale's installment schedule: per-quota due dates, expected amounts,
  covered amounts, balances and lifecycle statuses. The schedule is
  never persisted; it is recomputed from the sale's commercial terms
  and its payment allocation ledger on every request.

KEY CONCEPTS IN THIS FILE (types.go):
  - Money: A monetary amount backed by decimal.Decimal
  - Sale: The financed purchase (plan terms + running totals)
  - CustomQuota: One entry of a custom payment plan
  - Allocation: A portion of a payment applied to a specific quota
  - Installment: A derived per-quota view (never persisted)
  - ClientOverdueInfo: Derived per-client arrears summary

DESIGN PRINCIPLES:
  1. Derivation: Installments are computed fresh, never cached
  2. Precision: Uses decimal.Decimal to avoid floating-point errors
  3. Purity: All read-side computations are functions over their inputs,
     including the injected "today" value
  4. Degradation: Unresolvable plans yield empty schedules, not panics

USAGE:
  installments := schedule.CalculateForSale(sale, allocations, today)
  overdue := schedule.Overdue(installments)

SEE ALSO:
  - plan.go: Plan descriptor resolution
  - calculator.go: Installment calculation
  - overdue.go: Overdue detection and client aggregation
  - redistribute.go: Overdue balance redistribution
*/
package schedule

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY - Monetary amount (single currency, decimal-backed)
// =============================================================================

type Money struct {
	Value decimal.Decimal
}

func NewMoney(value float64) Money          { return Money{Value: decimal.NewFromFloat(value)} }
func NewMoneyFromInt(value int64) Money     { return Money{Value: decimal.NewFromInt(value)} }
func ZeroMoney() Money                      { return Money{Value: decimal.Zero} }

// ParseMoney parses a decimal string. Malformed input yields zero.
func ParseMoney(s string) Money {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return ZeroMoney()
	}
	return Money{Value: d}
}

func (m Money) Add(o Money) Money          { return Money{Value: m.Value.Add(o.Value)} }
func (m Money) Sub(o Money) Money          { return Money{Value: m.Value.Sub(o.Value)} }
func (m Money) Mul(s decimal.Decimal) Money { return Money{Value: m.Value.Mul(s)} }
func (m Money) Div(s decimal.Decimal) Money { return Money{Value: m.Value.Div(s)} }
func (m Money) Neg() Money                 { return Money{Value: m.Value.Neg()} }
func (m Money) Round2() Money              { return Money{Value: m.Value.Round(2)} }
func (m Money) IsNegative() bool           { return m.Value.IsNegative() }
func (m Money) IsZero() bool               { return m.Value.IsZero() }
func (m Money) IsPositive() bool           { return m.Value.IsPositive() }
func (m Money) GreaterThan(o Money) bool   { return m.Value.GreaterThan(o.Value) }
func (m Money) LessThan(o Money) bool      { return m.Value.LessThan(o.Value) }
func (m Money) Equal(o Money) bool         { return m.Value.Equal(o.Value) }
func (m Money) String() string             { return m.Value.String() }
func (m Money) Float64() float64           { f, _ := m.Value.Float64(); return f }

// ClampNonNegative floors the amount at zero. Balances never go negative.
func (m Money) ClampNonNegative() Money {
	if m.IsNegative() {
		return ZeroMoney()
	}
	return m
}

// =============================================================================
// IDENTIFIERS
// =============================================================================

type SaleID string
type ClientID string
type PaymentID string

// =============================================================================
// PLAN - Tagged variant over the three plan shapes
// =============================================================================

// PlanKind discriminates the three financing plan shapes.
type PlanKind string

const (
	// PlanAutomatic: uniform quota amount, calendar-rule due dates.
	PlanAutomatic PlanKind = "automatic"
	// PlanCustom: per-quota amounts (and optionally due dates) are
	// individually specified.
	PlanCustom PlanKind = "custom"
	// PlanHouse: like automatic, but the initial payment is defined as a
	// percentage of total value rather than a fixed amount.
	PlanHouse PlanKind = "house"
)

// PlanConfig is the sale's stored plan configuration. CustomQuotas and
// Redistributed are serialized as sale attributes by the store layer
// (see serial.go) and deserialized defensively.
type PlanConfig struct {
	Kind       PlanKind
	QuotaCount int

	// Uniform per-quota amount for automatic/house plans.
	QuotaValue Money

	// Override amount applied after a redistribution rewrote the terms.
	// nil means QuotaValue still applies.
	NewQuotaValue *Money

	// Per-quota definitions for custom plans.
	CustomQuotas []CustomQuota

	// Quota numbers absorbed by redistribution. Permanently excluded
	// from overdue detection.
	Redistributed []int
}

// CustomQuota is one entry of a custom plan. When DueDate is nil the
// due date is derived by the same calendar rule as automatic quotas.
type CustomQuota struct {
	Number  int
	Amount  Money
	DueDate *Date
}

// =============================================================================
// SALE - The financed purchase
// =============================================================================

type SaleStatus string

const (
	SaleActive    SaleStatus = "Active"
	SaleWithdrawn SaleStatus = "Desistida"
)

type Sale struct {
	ID        SaleID
	ClientID  ClientID
	LotID     string
	ProjectID string

	// Empty status is treated as active: legacy rows without an explicit
	// status still show up in arrears sweeps.
	Status SaleStatus

	// SaleDate anchors the schedule; quota i falls i months after it.
	SaleDate Date

	TotalValue     Money
	InitialPayment Money

	// Running totals, maintained by every payment mutation.
	// Invariant: TotalDebt = TotalValue - TotalRaised.
	TotalRaised Money
	TotalDebt   Money

	Plan PlanConfig

	// Version supports optimistic locking on the redistribution write
	// path. Incremented by every plan rewrite.
	Version int64
}

// IsActive reports whether the sale participates in overdue detection.
func (s Sale) IsActive() bool {
	return s.Status == SaleActive || s.Status == ""
}

// EffectiveQuotaValue returns the uniform per-quota amount, preferring
// the post-redistribution override when set.
func (s Sale) EffectiveQuotaValue() Money {
	if s.Plan.NewQuotaValue != nil {
		return *s.Plan.NewQuotaValue
	}
	return s.Plan.QuotaValue
}

// =============================================================================
// PAYMENTS AND ALLOCATIONS
// =============================================================================

// Payment is a single amount received from a client against a sale.
// One payment may span several quotas via its allocations.
type Payment struct {
	ID        PaymentID
	SaleID    SaleID
	Amount    Money
	PaidAt    Date
	Method    string
	Reference string
}

// Allocation records how much of one payment was applied to a specific
// quota number of a specific sale. Multiple allocations may target the
// same quota (partial/successive payments). Allocations are a read-only
// cross-reference for the engine, never the source of sale totals.
type Allocation struct {
	ID          string
	PaymentID   PaymentID
	SaleID      SaleID
	QuotaNumber int
	Amount      Money
}

// =============================================================================
// INSTALLMENT - Derived per-quota state (never persisted)
// =============================================================================

// QuotaStatus is the lifecycle status of a calculated installment.
type QuotaStatus string

const (
	StatusPendiente   QuotaStatus = "Pendiente"   // pending, not yet due, nothing paid
	StatusAbonado     QuotaStatus = "Abonado"     // partially paid, not yet due
	StatusMora        QuotaStatus = "Mora"        // past due with positive balance
	StatusPagado      QuotaStatus = "Pagado"      // fully covered
	StatusDistribuida QuotaStatus = "Distribuida" // absorbed by redistribution
)

// Installment is the calculated state of one quota. It is recomputed on
// every request and becomes stale the instant a new allocation or
// redistribution is recorded; callers must not cache it.
type Installment struct {
	Number      int
	Expected    Money
	Paid        Money
	Balance     Money // max(0, Expected - Paid)
	DueDate     Date
	Status      QuotaStatus
	DaysOverdue int
}

// =============================================================================
// CLIENT-LEVEL AGGREGATION
// =============================================================================

// Client identifies the buyer for arrears reporting and notification.
type Client struct {
	ID    ClientID
	Name  string
	Email string
	Phone string
}

// OverdueInstallment is an overdue quota annotated with its originating
// sale, lot and project for display.
type OverdueInstallment struct {
	Installment
	SaleID       SaleID
	LotLabel     string
	ProjectLabel string
}

// ClientOverdueInfo is the union of all overdue installments across a
// client's active sales. Built transiently for reporting/notification.
type ClientOverdueInfo struct {
	Client       Client
	TotalOverdue Money
	OverdueCount int
	Installments []OverdueInstallment
}

// SaleBundle pairs a sale with its allocation ledger and display labels.
// This is the unit the aggregator consumes so stores can fetch the full
// active-sale set in bulk rather than once per sale.
type SaleBundle struct {
	Sale         Sale
	Allocations  []Allocation
	LotLabel     string
	ProjectLabel string
}

// ClientSales groups one client's sale bundles for the arrears sweep.
type ClientSales struct {
	Client  Client
	Bundles []SaleBundle
}
