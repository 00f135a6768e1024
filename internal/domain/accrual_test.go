package domain

import (
	"math"
	"testing"
	"time"
)

const epsilon = 1e-9

func TestAccruedIncrement(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name         string
		totalDeposit float64
		lastUpdate   time.Time
		now          time.Time
		want         float64
	}{
		{
			name:         "one hour on 1000 deposit",
			totalDeposit: 1000,
			lastUpdate:   base,
			now:          base.Add(time.Hour),
			want:         1000 * 0.022 / 86400 * 3600, // ~0.9167
		},
		{
			name:         "one second on 1000 deposit",
			totalDeposit: 1000,
			lastUpdate:   base,
			now:          base.Add(time.Second),
			want:         1000 * 0.022 / 86400,
		},
		{
			name:         "full day accrues the daily rate exactly",
			totalDeposit: 500,
			lastUpdate:   base,
			now:          base.Add(24 * time.Hour),
			want:         500 * 0.022,
		},
		{
			name:         "zero elapsed",
			totalDeposit: 1000,
			lastUpdate:   base,
			now:          base,
			want:         0,
		},
		{
			name:         "checkpoint in the future contributes nothing",
			totalDeposit: 1000,
			lastUpdate:   base.Add(time.Hour),
			now:          base,
			want:         0,
		},
		{
			name:         "zero deposit",
			totalDeposit: 0,
			lastUpdate:   base,
			now:          base.Add(time.Hour),
			want:         0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AccruedIncrement(tt.totalDeposit, tt.lastUpdate, tt.now)
			if math.Abs(got-tt.want) > epsilon {
				t.Errorf("AccruedIncrement() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAccrualIsLinearInTime(t *testing.T) {
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	last := base
	w := &Wallet{TotalDeposit: 1000, DailyEarnings: 2.5, LastEarningsUpdate: &last, IsActive: true}

	t1 := base.Add(10 * time.Second)
	t2 := base.Add(11 * time.Second)

	perSecond := 1000 * DailyRate / 86400
	diff := ReconciledEarnings(w, t2) - ReconciledEarnings(w, t1)
	if math.Abs(diff-perSecond) > epsilon {
		t.Errorf("reads 1s apart differ by %v, want %v", diff, perSecond)
	}
}

func TestReconciledEarningsInactiveWallet(t *testing.T) {
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	last := base

	w := &Wallet{TotalDeposit: 1000, DailyEarnings: 3.75, LastEarningsUpdate: &last, IsActive: false}
	if got := ReconciledEarnings(w, base.Add(time.Hour)); got != 3.75 {
		t.Errorf("inactive wallet accrued: got %v, want stored value 3.75", got)
	}

	w = &Wallet{TotalDeposit: 1000, DailyEarnings: 1.2, LastEarningsUpdate: nil, IsActive: true}
	if got := ReconciledEarnings(w, base.Add(time.Hour)); got != 1.2 {
		t.Errorf("wallet without checkpoint accrued: got %v, want stored value 1.2", got)
	}
}

func TestReconcileAdvancesCheckpoint(t *testing.T) {
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	last := base
	w := &Wallet{TotalDeposit: 1000, DailyEarnings: 0, LastEarningsUpdate: &last, IsActive: true}

	now := base.Add(time.Hour)
	out := Reconcile(w, now)

	want := 1000 * DailyRate / 86400 * 3600
	if math.Abs(out.DailyEarnings-want) > epsilon {
		t.Errorf("reconciled earnings = %v, want %v", out.DailyEarnings, want)
	}
	if out.LastEarningsUpdate == nil || !out.LastEarningsUpdate.Equal(now) {
		t.Errorf("checkpoint not advanced to now")
	}
	if w.DailyEarnings != 0 {
		t.Errorf("Reconcile mutated its input")
	}

	// Reconciling the reconciled copy at the same instant must be a no-op,
	// so a double flush cannot double-credit.
	again := Reconcile(&out, now)
	if math.Abs(again.DailyEarnings-out.DailyEarnings) > epsilon {
		t.Errorf("second reconcile at same instant changed earnings: %v -> %v", out.DailyEarnings, again.DailyEarnings)
	}
}

func TestSameCalendarDay(t *testing.T) {
	tests := []struct {
		name string
		a, b time.Time
		want bool
	}{
		{
			name: "same UTC day",
			a:    time.Date(2026, 3, 1, 0, 0, 1, 0, time.UTC),
			b:    time.Date(2026, 3, 1, 23, 59, 59, 0, time.UTC),
			want: true,
		},
		{
			name: "adjacent days across midnight",
			a:    time.Date(2026, 3, 1, 23, 59, 59, 0, time.UTC),
			b:    time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
			want: false,
		},
		{
			name: "non-UTC input compared in UTC",
			a:    time.Date(2026, 3, 1, 22, 0, 0, 0, time.FixedZone("UTC-3", -3*3600)), // 2026-03-02T01:00Z
			b:    time.Date(2026, 3, 2, 1, 0, 0, 0, time.UTC),
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SameCalendarDay(tt.a, tt.b); got != tt.want {
				t.Errorf("SameCalendarDay() = %v, want %v", got, tt.want)
			}
		})
	}
}
