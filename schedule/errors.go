/*
errors.go - Centralized error types for the schedule engine

PURPOSE:
  All engine error types in one place for consistency and
  discoverability. Collaborator layers (store, api) wrap these with
  additional context.

ERROR CATEGORIES:
  1. Plan errors - Unresolvable or malformed plan data (recoverable)
  2. Redistribution errors - Precondition failures (rejected operation)
  3. Concurrency errors - Single-writer violations (retryable)
  4. Lookup errors - Missing records

USAGE:
  if errors.Is(err, schedule.ErrNoRemainingQuotas) {
      // reject the request, nothing was written
  }

SEE ALSO:
  - redistribute.go: Uses the precondition errors
  - serial.go: Uses MalformedFieldError
*/
package schedule

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidPlan is returned when a sale's quota count resolves to
	// zero and no usable custom-quota list exists. The resolver degrades
	// to an empty schedule instead of raising; this sentinel is for
	// callers that need to distinguish "empty because invalid".
	ErrInvalidPlan = errors.New("sale has no resolvable payment plan")

	// ErrMalformedScheduleData is returned when a serialized custom-quota
	// or redistributed-quota field cannot be parsed. Recovered locally by
	// treating the field as empty; logged, never surfaced as a hard failure.
	ErrMalformedScheduleData = errors.New("malformed schedule data")

	// ErrNoOverdueQuotas is returned when redistribution is invoked with
	// an empty overdue set. Nothing to redistribute.
	ErrNoOverdueQuotas = errors.New("no overdue quotas to redistribute")

	// ErrNoRemainingQuotas is returned when there are zero remaining
	// quotas to receive the redistributed balance. Both policies require
	// at least one target; the operation is rejected rather than silently
	// dropping the balance.
	ErrNoRemainingQuotas = errors.New("no remaining quotas to receive redistributed balance")

	// ErrConcurrentRedistribution is returned when the single-writer
	// guarantee for a sale was violated or timed out. Retryable: the
	// caller should re-fetch the sale and retry.
	ErrConcurrentRedistribution = errors.New("concurrent redistribution detected")

	// ErrUnknownPolicy is returned for an unrecognized redistribution policy.
	ErrUnknownPolicy = errors.New("unknown redistribution policy")

	// ErrSaleNotFound is returned when a referenced sale doesn't exist.
	ErrSaleNotFound = errors.New("sale not found")

	// ErrClientNotFound is returned when a referenced client doesn't exist.
	ErrClientNotFound = errors.New("client not found")

	// ErrPaymentNotFound is returned when a referenced payment doesn't exist.
	ErrPaymentNotFound = errors.New("payment not found")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// MalformedFieldError reports a serialized sale field that failed to
// parse. The engine treats the field as empty; the error exists for
// operator visibility in logs.
type MalformedFieldError struct {
	SaleID SaleID
	Field  string // "custom_quotas" or "redistributed_quotas"
	Raw    string
	Err    error
}

func (e *MalformedFieldError) Error() string {
	return fmt.Sprintf("sale %s: malformed %s field: %v", e.SaleID, e.Field, e.Err)
}

func (e *MalformedFieldError) Unwrap() error {
	return ErrMalformedScheduleData
}

// RedistributionConflictError reports which sale lost the single-writer
// race.
type RedistributionConflictError struct {
	SaleID SaleID
}

func (e *RedistributionConflictError) Error() string {
	return fmt.Sprintf("sale %s: redistribution conflicts with a concurrent write", e.SaleID)
}

func (e *RedistributionConflictError) Unwrap() error {
	return ErrConcurrentRedistribution
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentRedistribution)
}

// IsClientError returns true if the error is due to invalid client input
// or an unmet operation precondition.
func IsClientError(err error) bool {
	return errors.Is(err, ErrNoOverdueQuotas) ||
		errors.Is(err, ErrNoRemainingQuotas) ||
		errors.Is(err, ErrUnknownPolicy) ||
		errors.Is(err, ErrInvalidPlan)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrSaleNotFound) ||
		errors.Is(err, ErrClientNotFound) ||
		errors.Is(err, ErrPaymentNotFound)
}
