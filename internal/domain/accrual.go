/**
 * @description
 * Pure accrual arithmetic for the yield engine. Kept free of storage concerns
 * so the store can apply it inside a row-locked transaction and the read path
 * can apply it without persisting.
 */

package domain

import "time"

// DailyRate is the fixed yield: 2.2% of total_deposit per 24-hour period,
// applied per-second.
const DailyRate = 0.022

const secondsPerDay = 86400

// AccruedIncrement returns the earnings accrued on totalDeposit between
// lastUpdate and now. Negative elapsed time (clock skew, a checkpoint stamped
// in the future) contributes nothing.
func AccruedIncrement(totalDeposit float64, lastUpdate, now time.Time) float64 {
	if totalDeposit <= 0 {
		return 0
	}
	elapsed := now.Sub(lastUpdate).Seconds()
	if elapsed <= 0 {
		return 0
	}
	return totalDeposit * DailyRate / secondsPerDay * elapsed
}

// ReconciledEarnings returns the wallet's daily earnings reconciled to now.
// Accrual is only live while the wallet is active with principal on deposit;
// otherwise the stored checkpoint is returned unchanged.
func ReconciledEarnings(w *Wallet, now time.Time) float64 {
	if w == nil {
		return 0
	}
	if !w.IsActive || w.TotalDeposit <= 0 || w.LastEarningsUpdate == nil {
		return w.DailyEarnings
	}
	return w.DailyEarnings + AccruedIncrement(w.TotalDeposit, *w.LastEarningsUpdate, now)
}

// Reconcile returns a copy of the wallet with DailyEarnings brought up to
// now. The receiver is not modified; persisting the reconciled value is the
// store's job.
func Reconcile(w *Wallet, now time.Time) Wallet {
	out := *w
	out.DailyEarnings = ReconciledEarnings(w, now)
	if out.IsActive && out.TotalDeposit > 0 {
		out.LastEarningsUpdate = &now
	}
	return out
}

// AvailableBalance is the withdrawable balance at now: realized profit plus
// reconciled unflushed earnings.
func AvailableBalance(w *Wallet, now time.Time) float64 {
	return w.TotalProfit + ReconciledEarnings(w, now)
}

// SameCalendarDay reports whether a and b fall on the same UTC calendar day.
// The daily withdrawal limit is a calendar-day rule, not a rolling 24 hours.
func SameCalendarDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}
