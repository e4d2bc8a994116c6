/*
Package notify defines the notification dispatch boundary.

PURPOSE:
  The overdue sweep hands each client's arrears summary to a Notifier.
  Formatting and delivery (email, SMS, webhooks) live behind this
  interface; the engine only guarantees the shape of the data.

IMPLEMENTATIONS:
  LogNotifier: Writes the summary to the process log. Default for local
  development; production wires a real delivery channel here.

SEE ALSO:
  - api/sweeper.go: Drives the dispatch with per-client failure isolation
*/
package notify

import (
	"context"
	"log"

	"github.com/solterra/installment-engine/schedule"
)

// Notifier receives one client's overdue summary. A non-nil error marks
// delivery for that client as failed; it must not affect other clients.
type Notifier interface {
	NotifyOverdue(ctx context.Context, info schedule.ClientOverdueInfo) error
}

// LogNotifier logs overdue summaries instead of delivering them.
type LogNotifier struct{}

func (LogNotifier) NotifyOverdue(_ context.Context, info schedule.ClientOverdueInfo) error {
	log.Printf("[Notify] client=%s name=%q overdue_quotas=%d total=%s",
		info.Client.ID, info.Client.Name, info.OverdueCount, info.TotalOverdue)
	for _, inst := range info.Installments {
		log.Printf("[Notify]   sale=%s lot=%q project=%q quota=%d due=%s days_overdue=%d balance=%s",
			inst.SaleID, inst.LotLabel, inst.ProjectLabel,
			inst.Number, inst.DueDate, inst.DaysOverdue, inst.Balance)
	}
	return nil
}
