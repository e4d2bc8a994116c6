package schedule_test

import (
	"testing"
	"time"

	"github.com/solterra/installment-engine/schedule"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func d(year int, month time.Month, day int) schedule.Date {
	return schedule.NewDate(year, month, day)
}

func money(n int64) schedule.Money {
	return schedule.NewMoneyFromInt(n)
}

// =============================================================================
// CALENDAR-CLAMPED MONTH ADDITION
// =============================================================================

func TestAddMonthsClamped_ClampsToShorterMonth(t *testing.T) {
	// GIVEN: January 31st of a leap year
	// WHEN: Adding one month
	// THEN: The day clamps to February 29th, not overflowing into March

	got := d(2024, time.January, 31).AddMonthsClamped(1)
	if !got.Equal(d(2024, time.February, 29)) {
		t.Errorf("expected 2024-02-29, got %s", got)
	}
}

func TestAddMonthsClamped_NonLeapFebruary(t *testing.T) {
	// GIVEN: January 31st of a non-leap year
	// WHEN: Adding one month
	// THEN: The day clamps to February 28th

	got := d(2023, time.January, 31).AddMonthsClamped(1)
	if !got.Equal(d(2023, time.February, 28)) {
		t.Errorf("expected 2023-02-28, got %s", got)
	}
}

func TestAddMonthsClamped_PreservesDayWhenPossible(t *testing.T) {
	// GIVEN: The 15th of any month
	// WHEN: Adding several months
	// THEN: The day of month is preserved

	got := d(2024, time.January, 15).AddMonthsClamped(5)
	if !got.Equal(d(2024, time.June, 15)) {
		t.Errorf("expected 2024-06-15, got %s", got)
	}
}

func TestAddMonthsClamped_CrossesYearBoundary(t *testing.T) {
	got := d(2024, time.October, 31).AddMonthsClamped(4)
	if !got.Equal(d(2025, time.February, 28)) {
		t.Errorf("expected 2025-02-28, got %s", got)
	}
}

func TestAddMonthsClamped_ThirtyOneToThirty(t *testing.T) {
	// GIVEN: March 31st
	// WHEN: Adding one month
	// THEN: April has 30 days so the result clamps to April 30th

	got := d(2024, time.March, 31).AddMonthsClamped(1)
	if !got.Equal(d(2024, time.April, 30)) {
		t.Errorf("expected 2024-04-30, got %s", got)
	}
}

func TestAddMonthsClamped_NegativeMonths(t *testing.T) {
	got := d(2024, time.March, 31).AddMonthsClamped(-1)
	if !got.Equal(d(2024, time.February, 29)) {
		t.Errorf("expected 2024-02-29, got %s", got)
	}
}

// =============================================================================
// DAY ARITHMETIC
// =============================================================================

func TestDaysBetween(t *testing.T) {
	// GIVEN: A quota due 2024-02-29 and today 2024-04-20
	// WHEN: Computing the day distance
	// THEN: Exactly 51 days have elapsed

	got := schedule.DaysBetween(d(2024, time.February, 29), d(2024, time.April, 20))
	if got != 51 {
		t.Errorf("expected 51 days, got %d", got)
	}
}

func TestDaysBetween_SameDayIsZero(t *testing.T) {
	if got := schedule.DaysBetween(d(2024, time.April, 20), d(2024, time.April, 20)); got != 0 {
		t.Errorf("expected 0 days, got %d", got)
	}
}

func TestDaysInMonth(t *testing.T) {
	cases := []struct {
		year  int
		month time.Month
		want  int
	}{
		{2024, time.February, 29},
		{2023, time.February, 28},
		{2024, time.April, 30},
		{2024, time.December, 31},
	}
	for _, c := range cases {
		if got := schedule.DaysInMonth(c.year, c.month); got != c.want {
			t.Errorf("DaysInMonth(%d, %s): expected %d, got %d", c.year, c.month, c.want, got)
		}
	}
}

func TestParseDate_RoundTrip(t *testing.T) {
	parsed, err := schedule.ParseDate("2024-01-31")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if parsed.String() != "2024-01-31" {
		t.Errorf("expected 2024-01-31, got %s", parsed)
	}
}

func TestParseDate_RejectsMalformed(t *testing.T) {
	if _, err := schedule.ParseDate("31/01/2024"); err == nil {
		t.Error("expected error for malformed date")
	}
}
