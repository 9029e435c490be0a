package store

import (
	"fmt"

	"github.com/deepesh-sr/Trustplay/internal/model"
)

// The helpers below hold the balance arithmetic shared by every Store
// implementation, so each backend only decides how rows are loaded and
// written.

// Debit removes amount from a. The balance may not drop below the reserve.
func Debit(a *model.Account, amount uint64) error {
	bal, err := model.CheckedSub(a.Balance, amount)
	if err != nil || bal < a.Reserve {
		return fmt.Errorf("debit %s: %w", a.Address, model.ErrInsufficientFunds)
	}
	a.Balance = bal
	return nil
}

// CreditAccount adds amount to a.
func CreditAccount(a *model.Account, amount uint64) error {
	bal, err := model.CheckedAdd(a.Balance, amount)
	if err != nil {
		return fmt.Errorf("credit %s: %w", a.Address, err)
	}
	a.Balance = bal
	return nil
}

// Grow raises a to dataLen and returns the extra reserve the payer must
// provide. The collected amount is added to the balance.
func Grow(a *model.Account, dataLen int) (uint64, error) {
	want := model.ReserveFor(dataLen)
	var collect uint64
	if want > a.Reserve {
		collect = want - a.Reserve
	}
	bal, err := model.CheckedAdd(a.Balance, collect)
	if err != nil {
		return 0, fmt.Errorf("grow %s: %w", a.Address, err)
	}
	a.Balance = bal
	a.Reserve = want
	a.DataLen = dataLen
	return collect, nil
}

// Shrink lowers a to dataLen and returns the surplus reserve to refund.
// The refunded amount is removed from the balance.
func Shrink(a *model.Account, dataLen int) (uint64, error) {
	want := model.ReserveFor(dataLen)
	var refund uint64
	if a.Reserve > want {
		refund = a.Reserve - want
	}
	bal, err := model.CheckedSub(a.Balance, refund)
	if err != nil {
		return 0, fmt.Errorf("shrink %s: %w", a.Address, err)
	}
	a.Balance = bal
	a.Reserve = want
	a.DataLen = dataLen
	return refund, nil
}
