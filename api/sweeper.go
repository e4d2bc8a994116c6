/*
sweeper.go - Automated arrears sweep

PURPOSE:
  Periodically recomputes the company-wide arrears picture and hands
  each delinquent client's summary to the notifier.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - One bulk read (ListArrearsData) per sweep, then pure aggregation
  - Per-client failure isolation: a notification error is logged and
    the sweep moves on to the next client
  - Daily throttle: a client already notified today is skipped, so
    restarting the server does not re-spam anyone

CONFIGURATION:
  - CheckInterval: How often to sweep (default: 1 hour)
  - Enabled: Whether the sweeper is active (default: true)

USAGE:
  sweeper := NewArrearsSweeper(store, notifier)
  sweeper.Start()
  // ... later
  sweeper.Stop()

SEE ALSO:
  - schedule/overdue.go: AggregateArrears
  - notify/notify.go: Notifier interface
*/
package api

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/solterra/installment-engine/notify"
	"github.com/solterra/installment-engine/schedule"
	"github.com/solterra/installment-engine/store/sqlite"
)

// ArrearsSweeper drives the periodic overdue notification sweep.
type ArrearsSweeper struct {
	Store         *sqlite.Store
	Notifier      notify.Notifier
	CheckInterval time.Duration
	Enabled       bool

	// Now supplies "today" so sweeps are reproducible in tests.
	Now func() schedule.Date

	ticker *time.Ticker
	stop   chan bool
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewArrearsSweeper creates a new sweeper.
func NewArrearsSweeper(store *sqlite.Store, notifier notify.Notifier) *ArrearsSweeper {
	return &ArrearsSweeper{
		Store:         store,
		Notifier:      notifier,
		CheckInterval: 1 * time.Hour,
		Enabled:       true,
		Now:           schedule.Today,
		stop:          make(chan bool),
	}
}

// Start begins the sweeper.
func (s *ArrearsSweeper) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.Enabled {
		log.Println("[Sweeper] Disabled, not starting")
		return
	}

	s.ticker = time.NewTicker(s.CheckInterval)
	s.wg.Add(1)

	go s.run()

	log.Printf("[Sweeper] Started with check interval: %v", s.CheckInterval)
}

// Stop stops the sweeper. Safe to call more than once and before Start.
func (s *ArrearsSweeper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker == nil {
		return
	}
	s.ticker.Stop()
	s.ticker = nil
	close(s.stop)
	s.wg.Wait()
	log.Println("[Sweeper] Stopped")
}

func (s *ArrearsSweeper) run() {
	defer s.wg.Done()

	// Run immediately on start
	s.sweep()

	for {
		select {
		case <-s.ticker.C:
			s.sweep()
		case <-s.stop:
			return
		}
	}
}

// sweep runs one full pass: bulk read, aggregate, notify.
func (s *ArrearsSweeper) sweep() {
	ctx := context.Background()
	today := s.Now()

	data, err := s.Store.ListArrearsData(ctx)
	if err != nil {
		log.Printf("[Sweeper] Error loading arrears data: %v", err)
		return
	}

	infos := schedule.AggregateArrears(data, today)
	if len(infos) == 0 {
		return
	}

	notified := 0
	skipped := 0
	failed := 0

	for _, info := range infos {
		done, err := s.Store.WasNotifiedOn(ctx, info.Client.ID, today)
		if err != nil {
			log.Printf("[Sweeper] Error checking throttle for %s: %v", info.Client.ID, err)
			failed++
			continue
		}
		if done {
			skipped++
			continue
		}

		if err := s.Notifier.NotifyOverdue(ctx, info); err != nil {
			// One client's delivery failure must not abort the sweep.
			log.Printf("[Sweeper] Error notifying %s: %v", info.Client.ID, err)
			failed++
			continue
		}

		if err := s.Store.MarkNotified(ctx, info.Client.ID, today); err != nil {
			log.Printf("[Sweeper] Error recording notification for %s: %v", info.Client.ID, err)
			failed++
			continue
		}
		notified++
	}

	log.Printf("[Sweeper] Completed: %d notified, %d skipped (already today), %d failed",
		notified, skipped, failed)
}

// RunNow triggers an immediate sweep (for testing/admin).
func (s *ArrearsSweeper) RunNow() {
	s.sweep()
}
