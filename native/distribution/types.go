package distribution

import (
	"fmt"
	"strings"
)

// TokenSymbolMaxLen bounds token symbols so stored configuration keeps a fixed
// byte layout.
const TokenSymbolMaxLen = 12

// Rates carries the five split/fee rates applied by the engine, expressed in
// basis points.
type Rates struct {
	LiquidityBps uint64
	AdminFeeBps  uint64
	CashbackBps  uint64
	SwapFeeBps   uint64
	ReferralBps  uint64
}

// Sum returns the total of all five rates.
func (r Rates) Sum() uint64 {
	return r.LiquidityBps + r.AdminFeeBps + r.CashbackBps + r.SwapFeeBps + r.ReferralBps
}

// Validate ensures the combined rates never exceed 100%.
func (r Rates) Validate() error {
	for _, bps := range []uint64{r.LiquidityBps, r.AdminFeeBps, r.CashbackBps, r.SwapFeeBps, r.ReferralBps} {
		if bps > BpsDenominator {
			return fmt.Errorf("%w: rate %d exceeds %d bps", ErrInvalidRates, bps, BpsDenominator)
		}
	}
	if sum := r.Sum(); sum > BpsDenominator {
		return fmt.Errorf("%w: rates sum to %d, maximum %d", ErrInvalidRates, sum, BpsDenominator)
	}
	return nil
}

// RateConfig is the single configuration record governing all contribution
// records: the admin identity, the two token symbols moved by the engine, and
// the split rates.
type RateConfig struct {
	Admin             [20]byte
	DistributionToken string
	RewardToken       string
	Rates             Rates
}

// Validate checks the configuration invariants enforced on every write.
func (c *RateConfig) Validate() error {
	if c == nil {
		return fmt.Errorf("%w: nil configuration", ErrInvalidRates)
	}
	if c.Admin == ([20]byte{}) {
		return fmt.Errorf("%w: admin must be set", ErrInvalidRates)
	}
	if err := validateSymbol(c.DistributionToken); err != nil {
		return err
	}
	if err := validateSymbol(c.RewardToken); err != nil {
		return err
	}
	return c.Rates.Validate()
}

// Clone returns a copy so callers cannot mutate a shared snapshot.
func (c *RateConfig) Clone() *RateConfig {
	if c == nil {
		return nil
	}
	clone := *c
	return &clone
}

func validateSymbol(symbol string) error {
	trimmed := strings.TrimSpace(symbol)
	if trimmed == "" {
		return fmt.Errorf("%w: token symbol required", ErrInvalidRates)
	}
	if len(trimmed) > TokenSymbolMaxLen {
		return fmt.Errorf("%w: token symbol %q exceeds %d bytes", ErrInvalidRates, trimmed, TokenSymbolMaxLen)
	}
	for _, r := range trimmed {
		if r < 'A' || r > 'Z' {
			return fmt.Errorf("%w: token symbol %q must be uppercase ASCII", ErrInvalidRates, trimmed)
		}
	}
	return nil
}

// ContributionRecord is the per-participant ledger entry tracking liquidity
// contribution and reward-claim history. EnrolledAt is set once on the first
// nonzero contribution; zero means the participant has never contributed.
// TotalClaimed is lifetime history and survives withdrawals.
type ContributionRecord struct {
	Owner             [20]byte
	ContributedAmount uint64
	EnrolledAt        int64
	LastClaimAt       int64
	TotalClaimed      uint64
}

// Clone returns a copy of the record.
func (r *ContributionRecord) Clone() *ContributionRecord {
	if r == nil {
		return nil
	}
	clone := *r
	return &clone
}

// DistributionResult summarises a completed three-way split.
type DistributionResult struct {
	Participant     [20]byte
	GrossAmount     uint64
	UserAmount      uint64
	LiquidityAmount uint64
	CashbackAmount  uint64
	Record          *ContributionRecord
}

// ClaimResult summarises a successful weekly reward claim.
type ClaimResult struct {
	Participant [20]byte
	Reward      uint64
	Record      *ContributionRecord
}

// WithdrawResult summarises a completed contribution withdrawal.
type WithdrawResult struct {
	Participant [20]byte
	Amount      uint64
	Record      *ContributionRecord
}

// Position is the read-only view of a participant's ledger entry served to
// dashboards. NextClaimIn is zero once a claim is possible.
type Position struct {
	Owner             [20]byte
	ContributedAmount uint64
	EnrolledAt        int64
	LastClaimAt       int64
	TotalClaimed      uint64
	Eligible          bool
	NextClaimIn       int64
}
