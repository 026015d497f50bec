package distribution

import "math/bits"

const (
	// BpsDenominator defines the fixed denominator for basis-point rates.
	BpsDenominator = 10000

	// WeeklyRewardBps is the fixed accrual rate applied per claim window:
	// roughly 100% annualized, amortized to 1.92% per seven days. The literal
	// value is load-bearing for compatibility with already-created records.
	WeeklyRewardBps = 192

	// ClaimInterval is the minimum number of seconds between successful
	// reward claims for a participant.
	ClaimInterval int64 = 604800
)

// Module address namespace labels. Vault and authority addresses are derived
// deterministically from these, never from caller-supplied data.
const (
	InboundVaultLabel   = "hubswap/vault/inbound"
	LiquidityVaultLabel = "hubswap/vault/liquidity"
	MintAuthorityLabel  = "hubswap/authority/mint"
)

// applyBps computes amount*bps/10000 with truncating division. The
// intermediate product is carried in 128 bits so large amounts never wrap;
// with bps bounded by the denominator the quotient always fits in 64 bits.
func applyBps(amount, bps uint64) uint64 {
	if bps > BpsDenominator {
		bps = BpsDenominator
	}
	hi, lo := bits.Mul64(amount, bps)
	quo, _ := bits.Div64(hi, lo, BpsDenominator)
	return quo
}
