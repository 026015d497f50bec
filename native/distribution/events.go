package distribution

import (
	"strconv"

	"hubswap/core/types"
	"hubswap/crypto"
)

const (
	TypeInitialized   = "hubswap.initialized"
	TypeRatesUpdated  = "hubswap.rates_updated"
	TypeTerminated    = "hubswap.terminated"
	TypeDistributed   = "hubswap.distributed"
	TypeRewardClaimed = "hubswap.reward_claimed"
	TypeWithdrawn     = "hubswap.withdrawn"
)

func addressString(addr [20]byte) string {
	return crypto.NewAddress(crypto.HubPrefix, addr[:]).String()
}

func uintString(v uint64) string {
	return strconv.FormatUint(v, 10)
}

func intString(v int64) string {
	return strconv.FormatInt(v, 10)
}

type Initialized struct {
	Admin             [20]byte
	DistributionToken string
	RewardToken       string
	Rates             Rates
}

func (Initialized) EventType() string { return TypeInitialized }

func (e Initialized) Event() *types.Event {
	return &types.Event{
		Type: TypeInitialized,
		Attributes: map[string]string{
			"admin":             addressString(e.Admin),
			"distributionToken": e.DistributionToken,
			"rewardToken":       e.RewardToken,
			"liquidityBps":      uintString(e.Rates.LiquidityBps),
			"adminFeeBps":       uintString(e.Rates.AdminFeeBps),
			"cashbackBps":       uintString(e.Rates.CashbackBps),
			"swapFeeBps":        uintString(e.Rates.SwapFeeBps),
			"referralBps":       uintString(e.Rates.ReferralBps),
		},
	}
}

type RatesUpdated struct {
	Admin [20]byte
	Rates Rates
}

func (RatesUpdated) EventType() string { return TypeRatesUpdated }

func (e RatesUpdated) Event() *types.Event {
	return &types.Event{
		Type: TypeRatesUpdated,
		Attributes: map[string]string{
			"admin":        addressString(e.Admin),
			"liquidityBps": uintString(e.Rates.LiquidityBps),
			"adminFeeBps":  uintString(e.Rates.AdminFeeBps),
			"cashbackBps":  uintString(e.Rates.CashbackBps),
			"swapFeeBps":   uintString(e.Rates.SwapFeeBps),
			"referralBps":  uintString(e.Rates.ReferralBps),
		},
	}
}

type Terminated struct {
	Admin   [20]byte
	Residue uint64
	Token   string
}

func (Terminated) EventType() string { return TypeTerminated }

func (e Terminated) Event() *types.Event {
	return &types.Event{
		Type: TypeTerminated,
		Attributes: map[string]string{
			"admin":   addressString(e.Admin),
			"residue": uintString(e.Residue),
			"token":   e.Token,
		},
	}
}

type Distributed struct {
	Participant     [20]byte
	GrossAmount     uint64
	UserAmount      uint64
	LiquidityAmount uint64
	CashbackAmount  uint64
	ContributedAt   int64
}

func (Distributed) EventType() string { return TypeDistributed }

func (e Distributed) Event() *types.Event {
	return &types.Event{
		Type: TypeDistributed,
		Attributes: map[string]string{
			"participant":     addressString(e.Participant),
			"grossAmount":     uintString(e.GrossAmount),
			"userAmount":      uintString(e.UserAmount),
			"liquidityAmount": uintString(e.LiquidityAmount),
			"cashbackAmount":  uintString(e.CashbackAmount),
			"timestamp":       intString(e.ContributedAt),
		},
	}
}

type RewardClaimed struct {
	Caller       [20]byte
	Participant  [20]byte
	Reward       uint64
	TotalClaimed uint64
	ClaimedAt    int64
}

func (RewardClaimed) EventType() string { return TypeRewardClaimed }

func (e RewardClaimed) Event() *types.Event {
	return &types.Event{
		Type: TypeRewardClaimed,
		Attributes: map[string]string{
			"caller":       addressString(e.Caller),
			"participant":  addressString(e.Participant),
			"reward":       uintString(e.Reward),
			"totalClaimed": uintString(e.TotalClaimed),
			"claimedAt":    intString(e.ClaimedAt),
		},
	}
}

type Withdrawn struct {
	Participant [20]byte
	Amount      uint64
	WithdrawnAt int64
}

func (Withdrawn) EventType() string { return TypeWithdrawn }

func (e Withdrawn) Event() *types.Event {
	return &types.Event{
		Type: TypeWithdrawn,
		Attributes: map[string]string{
			"participant": addressString(e.Participant),
			"amount":      uintString(e.Amount),
			"withdrawnAt": intString(e.WithdrawnAt),
		},
	}
}
