package distribution

import (
	"errors"
	"fmt"
	"time"

	"hubswap/core/events"
)

// State describes the functionality the engine needs from the surrounding
// state implementation: the configuration record, the contribution ledger,
// and the token ledger it moves value through. Callers are expected to
// serialize operations touching the same participant; the engine performs no
// internal locking.
type State interface {
	RateConfigGet() (*RateConfig, bool, error)
	RateConfigPut(*RateConfig) error
	RateConfigDelete() error

	ContributionGet(owner [20]byte) (*ContributionRecord, bool, error)
	ContributionCreate(record *ContributionRecord) error
	ContributionUpdate(record *ContributionRecord) error

	TokenBalance(addr [20]byte, symbol string) (uint64, error)
	TokenTransfer(from, to [20]byte, amount uint64, symbol string) error
	TokenMint(authority, to [20]byte, amount uint64, symbol string) error

	ModuleAddress(label string) [20]byte
}

// Engine implements the distribution, reward accrual, withdrawal, and admin
// transitions over a contribution ledger. Every operation reads the rate
// configuration once at entry and uses that snapshot throughout.
type Engine struct {
	state   State
	emitter events.Emitter
	nowFn   func() int64
}

// NewEngine creates an engine with a no-op emitter. Callers can override the
// emitter via SetEmitter.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state State) { e.state = state }

// SetEmitter configures the event emitter used by the engine. Passing nil
// resets the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source used by the engine. Primarily intended
// for tests to provide deterministic timestamps.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

func (e *Engine) emit(event events.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(event)
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

var errNilState = errors.New("distribution: state not configured")

func (e *Engine) snapshot() (*RateConfig, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	cfg, ok, err := e.state.RateConfigGet()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotInitialized
	}
	return cfg.Clone(), nil
}

// Initialize writes the rate configuration. It fails if a valid configuration
// already exists; reconfiguration goes through UpdateRates.
func (e *Engine) Initialize(cfg *RateConfig) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	_, ok, err := e.state.RateConfigGet()
	if err != nil {
		return err
	}
	if ok {
		return ErrAlreadyInitialized
	}
	if err := e.state.RateConfigPut(cfg.Clone()); err != nil {
		return err
	}
	e.emit(Initialized{
		Admin:             cfg.Admin,
		DistributionToken: cfg.DistributionToken,
		RewardToken:       cfg.RewardToken,
		Rates:             cfg.Rates,
	})
	return nil
}

// UpdateRates replaces the five split rates. Only the admin may call it, and
// the basis-point invariant is re-validated before anything is committed.
func (e *Engine) UpdateRates(caller [20]byte, rates Rates) error {
	cfg, err := e.snapshot()
	if err != nil {
		return err
	}
	if caller != cfg.Admin {
		return ErrUnauthorized
	}
	if err := rates.Validate(); err != nil {
		return err
	}
	cfg.Rates = rates
	if err := e.state.RateConfigPut(cfg); err != nil {
		return err
	}
	e.emit(RatesUpdated{Admin: cfg.Admin, Rates: rates})
	return nil
}

// Terminate removes the rate configuration and sweeps any residual balance in
// the inbound vault back to the admin. Existing contribution records are left
// in place; they become unreachable once the configuration is gone.
func (e *Engine) Terminate(caller [20]byte) error {
	cfg, err := e.snapshot()
	if err != nil {
		return err
	}
	if caller != cfg.Admin {
		return ErrUnauthorized
	}
	inbound := e.state.ModuleAddress(InboundVaultLabel)
	residue, err := e.state.TokenBalance(inbound, cfg.DistributionToken)
	if err != nil {
		return errors.Join(ErrLedgerCall, err)
	}
	if residue > 0 {
		if err := e.state.TokenTransfer(inbound, cfg.Admin, residue, cfg.DistributionToken); err != nil {
			return errors.Join(ErrLedgerCall, err)
		}
	}
	if err := e.state.RateConfigDelete(); err != nil {
		return err
	}
	e.emit(Terminated{Admin: cfg.Admin, Residue: residue, Token: cfg.DistributionToken})
	return nil
}

// Distribute splits grossAmount three ways: the liquidity share moves to the
// liquidity vault and accrues on the participant's contribution record, the
// cashback share is minted in the reward token, and the remainder is paid out
// to the participant. The three amounts always sum to grossAmount exactly;
// truncation remainders accrue to the participant payout.
func (e *Engine) Distribute(participant [20]byte, grossAmount uint64) (*DistributionResult, error) {
	cfg, err := e.snapshot()
	if err != nil {
		return nil, err
	}
	if grossAmount == 0 {
		return nil, ErrInvalidAmount
	}

	liquidityAmount := applyBps(grossAmount, cfg.Rates.LiquidityBps)
	cashbackAmount := applyBps(grossAmount, cfg.Rates.CashbackBps)
	userAmount := grossAmount - liquidityAmount - cashbackAmount

	inbound := e.state.ModuleAddress(InboundVaultLabel)
	liquidityVault := e.state.ModuleAddress(LiquidityVaultLabel)
	mintAuthority := e.state.ModuleAddress(MintAuthorityLabel)

	funded, err := e.state.TokenBalance(inbound, cfg.DistributionToken)
	if err != nil {
		return nil, errors.Join(ErrLedgerCall, err)
	}
	if funded < grossAmount {
		return nil, fmt.Errorf("%w: vault holds %d, need %d", ErrVaultUnderfunded, funded, grossAmount)
	}

	if userAmount > 0 {
		if err := e.state.TokenTransfer(inbound, participant, userAmount, cfg.DistributionToken); err != nil {
			return nil, errors.Join(ErrLedgerCall, err)
		}
	}
	if liquidityAmount > 0 {
		if err := e.state.TokenTransfer(inbound, liquidityVault, liquidityAmount, cfg.DistributionToken); err != nil {
			return nil, errors.Join(ErrLedgerCall, err)
		}
	}
	if cashbackAmount > 0 {
		if err := e.state.TokenMint(mintAuthority, participant, cashbackAmount, cfg.RewardToken); err != nil {
			return nil, errors.Join(ErrMintCapability, err)
		}
	}

	now := e.now()
	record, ok, err := e.state.ContributionGet(participant)
	if err != nil {
		return nil, err
	}
	switch {
	case !ok && liquidityAmount > 0:
		record = &ContributionRecord{
			Owner:             participant,
			ContributedAmount: liquidityAmount,
			EnrolledAt:        now,
			LastClaimAt:       now,
		}
		if err := e.state.ContributionCreate(record); err != nil {
			return nil, err
		}
	case ok && liquidityAmount > 0:
		if record.EnrolledAt == 0 {
			// Re-enrollment after a withdrawal starts a fresh cooldown.
			record.EnrolledAt = now
			record.LastClaimAt = now
		}
		record.ContributedAmount += liquidityAmount
		if err := e.state.ContributionUpdate(record); err != nil {
			return nil, err
		}
	case !ok:
		record = nil
	}

	e.emit(Distributed{
		Participant:     participant,
		GrossAmount:     grossAmount,
		UserAmount:      userAmount,
		LiquidityAmount: liquidityAmount,
		CashbackAmount:  cashbackAmount,
		ContributedAt:   now,
	})
	return &DistributionResult{
		Participant:     participant,
		GrossAmount:     grossAmount,
		UserAmount:      userAmount,
		LiquidityAmount: liquidityAmount,
		CashbackAmount:  cashbackAmount,
		Record:          record.Clone(),
	}, nil
}

// ClaimWeeklyReward mints the weekly reward for a participant once the
// cooldown has elapsed. Any caller may trigger a claim on a participant's
// behalf; the reward always goes to the participant. A computed reward of
// zero still succeeds and advances the claim timestamp.
func (e *Engine) ClaimWeeklyReward(caller, participant [20]byte) (*ClaimResult, error) {
	cfg, err := e.snapshot()
	if err != nil {
		return nil, err
	}
	record, ok, err := e.state.ContributionGet(participant)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrRecordNotFound
	}
	if record.ContributedAmount == 0 {
		return nil, ErrNoContribution
	}
	now := e.now()
	elapsed := now - record.LastClaimAt
	if elapsed < ClaimInterval {
		return nil, &TooEarlyError{Elapsed: elapsed, Required: ClaimInterval}
	}

	reward := applyBps(record.ContributedAmount, WeeklyRewardBps)
	if reward > 0 {
		mintAuthority := e.state.ModuleAddress(MintAuthorityLabel)
		if err := e.state.TokenMint(mintAuthority, participant, reward, cfg.RewardToken); err != nil {
			return nil, errors.Join(ErrMintCapability, err)
		}
	}

	record.LastClaimAt = now
	record.TotalClaimed += reward
	if err := e.state.ContributionUpdate(record); err != nil {
		return nil, err
	}

	e.emit(RewardClaimed{
		Caller:       caller,
		Participant:  participant,
		Reward:       reward,
		TotalClaimed: record.TotalClaimed,
		ClaimedAt:    now,
	})
	return &ClaimResult{Participant: participant, Reward: reward, Record: record.Clone()}, nil
}

// Withdraw returns a participant's full contribution from the liquidity vault
// and resets their record. Claim history (TotalClaimed) is preserved so a
// later re-enrollment keeps lifetime totals. Withdrawal is self-service only.
func (e *Engine) Withdraw(caller, participant [20]byte) (*WithdrawResult, error) {
	if caller != participant {
		return nil, ErrUnauthorized
	}
	cfg, err := e.snapshot()
	if err != nil {
		return nil, err
	}
	record, ok, err := e.state.ContributionGet(participant)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrRecordNotFound
	}
	if record.ContributedAmount == 0 {
		return nil, ErrNothingToWithdraw
	}

	amount := record.ContributedAmount
	liquidityVault := e.state.ModuleAddress(LiquidityVaultLabel)
	if err := e.state.TokenTransfer(liquidityVault, participant, amount, cfg.DistributionToken); err != nil {
		return nil, errors.Join(ErrLedgerCall, err)
	}

	record.ContributedAmount = 0
	record.EnrolledAt = 0
	record.LastClaimAt = 0
	if err := e.state.ContributionUpdate(record); err != nil {
		return nil, err
	}

	now := e.now()
	e.emit(Withdrawn{Participant: participant, Amount: amount, WithdrawnAt: now})
	return &WithdrawResult{Participant: participant, Amount: amount, Record: record.Clone()}, nil
}

// Position returns the read-only view of a participant's ledger entry. It
// performs no mutation.
func (e *Engine) Position(participant [20]byte) (*Position, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	record, ok, err := e.state.ContributionGet(participant)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrRecordNotFound
	}
	pos := &Position{
		Owner:             record.Owner,
		ContributedAmount: record.ContributedAmount,
		EnrolledAt:        record.EnrolledAt,
		LastClaimAt:       record.LastClaimAt,
		TotalClaimed:      record.TotalClaimed,
	}
	if record.ContributedAmount > 0 {
		elapsed := e.now() - record.LastClaimAt
		if elapsed >= ClaimInterval {
			pos.Eligible = true
		} else {
			pos.NextClaimIn = ClaimInterval - elapsed
		}
	}
	return pos, nil
}

// Config returns a snapshot of the current rate configuration.
func (e *Engine) Config() (*RateConfig, error) {
	return e.snapshot()
}
