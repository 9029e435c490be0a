package model

import "math"

// Reserve parameters: every byte of a custody slot, plus a fixed storage
// overhead, must be backed by rentRate units for rentExemptFactor periods.
const (
	accountOverhead  = 128
	rentRate         = 3480
	rentExemptFactor = 2
)

// ReserveFor returns the existence reserve for a slot holding dataLen bytes.
func ReserveFor(dataLen int) uint64 {
	if dataLen < 0 {
		dataLen = 0
	}
	return uint64(accountOverhead+dataLen) * rentRate * rentExemptFactor
}

// VaultReserve is the reserve held by every room vault.
var VaultReserve = ReserveFor(0)

// Account is a value-holding custody slot. Owned slots (vaults, the
// whitelist) have Owner set and may only be debited under a derived
// authority; identity slots have no owner and zero reserve.
type Account struct {
	Address string `json:"address"`
	Owner   string `json:"owner,omitempty"`
	Balance uint64 `json:"balance"`
	Reserve uint64 `json:"reserve"`
	DataLen int    `json:"data_len"`
	Salt    uint8  `json:"salt"`
}

// Withdrawable returns the balance above the reserve.
func (a *Account) Withdrawable() uint64 {
	if a.Balance <= a.Reserve {
		return 0
	}
	return a.Balance - a.Reserve
}

// CheckedAdd returns a+b or ErrNumericalOverflow.
func CheckedAdd(a, b uint64) (uint64, error) {
	if a > math.MaxUint64-b {
		return 0, ErrNumericalOverflow
	}
	return a + b, nil
}

// CheckedSub returns a-b or ErrNumericalOverflow when b > a.
func CheckedSub(a, b uint64) (uint64, error) {
	if b > a {
		return 0, ErrNumericalOverflow
	}
	return a - b, nil
}
