package distribution

import (
	"errors"
	"fmt"
)

var (
	ErrNotInitialized     = errors.New("distribution: engine not initialized")
	ErrAlreadyInitialized = errors.New("distribution: engine already initialized")
	ErrUnauthorized       = errors.New("distribution: unauthorized")
	ErrInvalidAmount      = errors.New("distribution: amount must be positive")
	ErrInvalidRates       = errors.New("distribution: invalid rates")
	ErrVaultUnderfunded   = errors.New("distribution: inbound vault underfunded")
	ErrRecordNotFound     = errors.New("distribution: contribution record not found")
	ErrRecordExists       = errors.New("distribution: contribution record already exists")
	ErrNoContribution     = errors.New("distribution: no liquidity contribution")
	ErrNothingToWithdraw  = errors.New("distribution: nothing to withdraw")
	ErrTooEarly           = errors.New("distribution: claim cooldown not elapsed")
	ErrLedgerCall         = errors.New("distribution: ledger call failed")
	ErrMintCapability     = errors.New("distribution: mint capability call failed")
)

// TooEarlyError reports how far into the claim cooldown a participant is so
// callers can surface the remaining wait.
type TooEarlyError struct {
	Elapsed  int64
	Required int64
}

func (e *TooEarlyError) Error() string {
	return fmt.Sprintf("distribution: claim too early: elapsed %ds of required %ds", e.Elapsed, e.Required)
}

// Is makes errors.Is(err, ErrTooEarly) match.
func (e *TooEarlyError) Is(target error) bool {
	return target == ErrTooEarly
}

// Remaining returns the seconds left until a claim becomes possible.
func (e *TooEarlyError) Remaining() int64 {
	if e.Elapsed >= e.Required {
		return 0
	}
	return e.Required - e.Elapsed
}
