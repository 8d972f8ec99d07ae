/*
overdue.go - Overdue policy evaluator

PURPOSE:
  Decides whether an account's debt has been outstanding long enough to
  block new account charges. Pure function of (account, features, now) -
  no mutation, no store access.

ALGORITHM:
  Walk the history in chronological order tracking the most recent
  point where BalanceAfter went negative. Every time the running
  balance touches >= 0 again, the debt start resets. The debt duration
  is now - debtStart, in whole days (ceiling). Overdue iff duration
  exceeds MaxOverdueDays.

EDGE CASES:
  - Feature off, or balance >= 0: never overdue
  - Negative balance but no recorded negative transition (e.g., empty
    history after a data import): not overdue - the debt start is
    unknown, so the evaluator cannot claim a duration

SEE ALSO:
  - settlement.go: Applies this gate before account charges
*/
package canteen

import (
	"time"
)

const dayMillis = 24 * 60 * 60 * 1000

// OverdueStatus is the result of evaluating the overdue policy.
type OverdueStatus struct {
	IsOverdue   bool
	DaysOverdue int
}

// EvaluateOverdue applies the overdue policy to one account at a given
// instant. Read-only.
func EvaluateOverdue(account Account, features Features, now time.Time) OverdueStatus {
	if !features.BlockOverdueStudents {
		return OverdueStatus{}
	}
	if !account.Balance.IsNegative() {
		return OverdueStatus{}
	}

	var debtStart *time.Time
	for _, entry := range account.History {
		if entry.BalanceAfter.IsNegative() {
			if debtStart == nil {
				t := entry.CreatedAt
				debtStart = &t
			}
		} else {
			debtStart = nil
		}
	}
	if debtStart == nil {
		return OverdueStatus{}
	}

	days := ceilDays(now.Sub(*debtStart))
	return OverdueStatus{
		IsOverdue:   days > features.MaxOverdueDays,
		DaysOverdue: days,
	}
}

// ceilDays converts a duration to whole days, rounding up.
func ceilDays(d time.Duration) int {
	ms := d.Milliseconds()
	if ms <= 0 {
		return 0
	}
	return int((ms + dayMillis - 1) / dayMillis)
}
