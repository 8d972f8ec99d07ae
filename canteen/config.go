/*
config.go - Feature configuration consumed by the settlement core

PURPOSE:
  The core never persists configuration; it consumes a fully-enumerated
  struct supplied by the host (the settings collaborator). Every flag
  that gates core behavior is a named field here - no loosely-typed
  bags of options.

FLAGS:
  AllowNegativeBalance  Account charges may take the balance below zero
  EnforceStockLimit     Cart additions are capped at known stock
  BlockOverdueStudents  The overdue evaluator gates account charges
  MaxOverdueDays        Continuous-debt threshold, in whole days
  EnableLoyaltySystem   Account purchases accrue points
  Payments              Per-method enablement at the register

SEE ALSO:
  - overdue.go: Uses BlockOverdueStudents/MaxOverdueDays
  - settlement.go: Uses the rest
*/
package canteen

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// Features is the feature-flag configuration for the settlement core.
type Features struct {
	AllowNegativeBalance bool `toml:"allow_negative_balance"`
	EnforceStockLimit    bool `toml:"enforce_stock_limit"`
	BlockOverdueStudents bool `toml:"block_overdue_students"`
	MaxOverdueDays       int  `toml:"max_overdue_days"`
	EnableLoyaltySystem  bool `toml:"enable_loyalty_system"`

	Payments PaymentFlags `toml:"payments"`
}

// PaymentFlags enables or disables each payment method at the register.
type PaymentFlags struct {
	Money   bool `toml:"money"`
	Account bool `toml:"account"`
	Credit  bool `toml:"credit"`
	Debit   bool `toml:"debit"`
	Pix     bool `toml:"pix"`
}

// DefaultFeatures matches the out-of-the-box register behavior: every
// method enabled, negative balances allowed, overdue blocking off.
func DefaultFeatures() Features {
	return Features{
		AllowNegativeBalance: true,
		EnforceStockLimit:    false,
		BlockOverdueStudents: false,
		MaxOverdueDays:       30,
		EnableLoyaltySystem:  false,
		Payments: PaymentFlags{
			Money:   true,
			Account: true,
			Credit:  true,
			Debit:   true,
			Pix:     true,
		},
	}
}

// PaymentEnabled reports whether a method is switched on. PaymentMixed
// is a journal-only classification for exchanges and is always accepted.
func (f Features) PaymentEnabled(m PaymentMethod) bool {
	switch m {
	case PaymentMoney:
		return f.Payments.Money
	case PaymentAccount:
		return f.Payments.Account
	case PaymentCredit:
		return f.Payments.Credit
	case PaymentDebit:
		return f.Payments.Debit
	case PaymentPix:
		return f.Payments.Pix
	case PaymentMixed:
		return true
	default:
		return false
	}
}

// LoadFeatures reads a TOML feature file, layered over DefaultFeatures.
func LoadFeatures(path string) (Features, error) {
	f := DefaultFeatures()
	if _, err := toml.DecodeFile(path, &f); err != nil {
		return Features{}, fmt.Errorf("load features %s: %w", path, err)
	}
	if f.MaxOverdueDays < 0 {
		return Features{}, fmt.Errorf("load features %s: max_overdue_days must be >= 0", path)
	}
	return f, nil
}
