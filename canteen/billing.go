/*
billing.go - Collections projection over indebted accounts

PURPOSE:
  Read-only projection used to drive batch outreach: which accounts owe
  money, filtered by date range, account type, and free text, with a
  bounded per-account summary of recent charges for the outbound
  message body. Delivery itself belongs to the messaging collaborator.

FILTERS:
  - Balance < 0 always
  - Date range (inclusive local days): the account must have at least
    one history entry inside the range; no range means no temporal filter
  - Type: all / students / staff
  - Search: case-insensitive match on name or short code

ORDER:
  Ascending by balance - most indebted first.

SEE ALSO:
  - journal.go: Transaction-side reporting
*/
package canteen

import (
	"context"
	"sort"
	"strings"
	"time"
)

// AccountTypeFilter narrows the collections query by classification.
type AccountTypeFilter string

const (
	FilterAll      AccountTypeFilter = "all"
	FilterStudents AccountTypeFilter = "students"
	FilterStaff    AccountTypeFilter = "staff"
)

// DebtorFilter is the collections query.
type DebtorFilter struct {
	From *time.Time
	To   *time.Time
	Type AccountTypeFilter
	// Search matches name or code, case-insensitive.
	Search string
}

// DebtorSummary is one indebted account plus the entries quoted in the
// outbound message.
type DebtorSummary struct {
	Account Account
	// RecentEntries holds PURCHASE/REFUND entries: the 5 most recent
	// when no date range is active, or every matching entry inside the
	// range otherwise.
	RecentEntries []HistoryEntry
}

// Collector builds the collections projection.
type Collector struct {
	store AccountStore
}

func NewCollector(store AccountStore) *Collector {
	return &Collector{store: store}
}

// Debtors returns indebted accounts matching the filter, most negative
// balance first. Pure read; no side effects.
func (c *Collector) Debtors(ctx context.Context, f DebtorFilter) ([]DebtorSummary, error) {
	accounts, err := c.store.ListAccounts(ctx, true)
	if err != nil {
		return nil, err
	}
	return FilterDebtors(accounts, f), nil
}

// FilterDebtors applies the collections filter to an account set. Split
// out so it can run over any snapshot of accounts.
func FilterDebtors(accounts []Account, f DebtorFilter) []DebtorSummary {
	search := strings.ToLower(strings.TrimSpace(f.Search))

	var out []DebtorSummary
	for _, a := range accounts {
		if !a.Balance.IsNegative() {
			continue
		}
		if !matchesType(a, f.Type) {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(a.Name), search) &&
			!strings.Contains(strings.ToLower(a.Code), search) {
			continue
		}
		if f.From != nil || f.To != nil {
			if !hasEntryInRange(a.History, f.From, f.To) {
				continue
			}
		}
		out = append(out, DebtorSummary{
			Account:       a,
			RecentEntries: recentEntries(a.History, f.From, f.To),
		})
	}

	sort.Slice(out, func(i, k int) bool {
		return out[i].Account.Balance.LessThan(out[k].Account.Balance)
	})
	return out
}

func matchesType(a Account, t AccountTypeFilter) bool {
	switch t {
	case FilterStudents:
		return !a.IsStaff
	case FilterStaff:
		return a.IsStaff
	default:
		return true
	}
}

func inRange(at time.Time, from, to *time.Time) bool {
	if from != nil && at.Before(StartOfDay(*from)) {
		return false
	}
	if to != nil && at.After(EndOfDay(*to)) {
		return false
	}
	return true
}

func hasEntryInRange(history []HistoryEntry, from, to *time.Time) bool {
	for _, e := range history {
		if inRange(e.CreatedAt, from, to) {
			return true
		}
	}
	return false
}

// recentEntries picks the PURCHASE/REFUND lines quoted in outreach.
func recentEntries(history []HistoryEntry, from, to *time.Time) []HistoryEntry {
	var matched []HistoryEntry
	for _, e := range history {
		if e.Type != MovementPurchase && e.Type != MovementRefund {
			continue
		}
		if from == nil && to == nil {
			matched = append(matched, e)
			continue
		}
		if inRange(e.CreatedAt, from, to) {
			matched = append(matched, e)
		}
	}
	if from == nil && to == nil && len(matched) > 5 {
		matched = matched[len(matched)-5:]
	}
	return matched
}
