package rpc

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"hubswap/crypto"
	"hubswap/native/distribution"
)

const jsonRPCVersion = "2.0"

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeServerError    = -32000
	codeUnauthorized   = -32001
	codeRateLimited    = -32020

	// Engine error categories. Timing and external-call failures are
	// retryable by the caller; validation and authorization are not.
	codeValidation   = -32040
	codeAuthz        = -32041
	codeState        = -32042
	codeTiming       = -32043
	codeExternalCall = -32044
)

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      interface{}       `json:"id"`
}

type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// recordResult mirrors a contribution record for RPC consumers. Amounts are
// strings to survive JSON number precision limits.
type recordResult struct {
	Owner             string `json:"owner"`
	ContributedAmount string `json:"contributedAmount"`
	EnrolledAt        int64  `json:"enrolledAt"`
	LastClaimAt       int64  `json:"lastClaimAt"`
	TotalClaimed      string `json:"totalClaimed"`
}

type distributeResult struct {
	Participant     string        `json:"participant"`
	GrossAmount     string        `json:"grossAmount"`
	UserAmount      string        `json:"userAmount"`
	LiquidityAmount string        `json:"liquidityAmount"`
	CashbackAmount  string        `json:"cashbackAmount"`
	Record          *recordResult `json:"record,omitempty"`
}

type claimResult struct {
	Participant string        `json:"participant"`
	Reward      string        `json:"reward"`
	Record      *recordResult `json:"record"`
}

type withdrawResult struct {
	Participant string        `json:"participant"`
	Amount      string        `json:"amount"`
	Record      *recordResult `json:"record"`
}

type positionResult struct {
	Owner             string `json:"owner"`
	ContributedAmount string `json:"contributedAmount"`
	EnrolledAt        int64  `json:"enrolledAt"`
	LastClaimAt       int64  `json:"lastClaimAt"`
	TotalClaimed      string `json:"totalClaimed"`
	Eligible          bool   `json:"eligible"`
	NextClaimIn       int64  `json:"nextClaimInSeconds"`
}

type configResult struct {
	Admin             string `json:"admin"`
	DistributionToken string `json:"distributionToken"`
	RewardToken       string `json:"rewardToken"`
	LiquidityBps      uint64 `json:"liquidityBps"`
	AdminFeeBps       uint64 `json:"adminFeeBps"`
	CashbackBps       uint64 `json:"cashbackBps"`
	SwapFeeBps        uint64 `json:"swapFeeBps"`
	ReferralBps       uint64 `json:"referralBps"`
}

func formatAddress(addr [20]byte) string {
	return crypto.NewAddress(crypto.HubPrefix, addr[:]).String()
}

func formatRecord(record *distribution.ContributionRecord) *recordResult {
	if record == nil {
		return nil
	}
	return &recordResult{
		Owner:             formatAddress(record.Owner),
		ContributedAmount: strconv.FormatUint(record.ContributedAmount, 10),
		EnrolledAt:        record.EnrolledAt,
		LastClaimAt:       record.LastClaimAt,
		TotalClaimed:      strconv.FormatUint(record.TotalClaimed, 10),
	}
}

func decodeBech32(value string) ([20]byte, error) {
	var out [20]byte
	addr, err := crypto.DecodeAddress(strings.TrimSpace(value))
	if err != nil {
		return out, err
	}
	copy(out[:], addr.Bytes())
	return out, nil
}

// parseAmount parses a decimal token amount. Amounts travel as strings and
// must be strictly positive.
func parseAmount(value string) (uint64, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0, fmt.Errorf("amount is required")
	}
	if strings.HasPrefix(trimmed, "-") {
		return 0, fmt.Errorf("amount must be positive")
	}
	amount, err := strconv.ParseUint(trimmed, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q", trimmed)
	}
	if amount == 0 {
		return 0, fmt.Errorf("amount must be positive")
	}
	return amount, nil
}

// engineError maps an engine failure onto the RPC error taxonomy, attaching
// structured context where the caller can act on it.
func engineError(err error) *RPCError {
	var tooEarly *distribution.TooEarlyError
	if errors.As(err, &tooEarly) {
		return &RPCError{
			Code:    codeTiming,
			Message: "claim cooldown not elapsed",
			Data: map[string]int64{
				"elapsedSeconds":   tooEarly.Elapsed,
				"requiredSeconds":  tooEarly.Required,
				"remainingSeconds": tooEarly.Remaining(),
			},
		}
	}
	switch {
	case errors.Is(err, distribution.ErrInvalidAmount),
		errors.Is(err, distribution.ErrInvalidRates):
		return &RPCError{Code: codeValidation, Message: err.Error()}
	case errors.Is(err, distribution.ErrUnauthorized):
		return &RPCError{Code: codeAuthz, Message: err.Error()}
	case errors.Is(err, distribution.ErrNotInitialized),
		errors.Is(err, distribution.ErrAlreadyInitialized),
		errors.Is(err, distribution.ErrRecordNotFound),
		errors.Is(err, distribution.ErrRecordExists),
		errors.Is(err, distribution.ErrNoContribution),
		errors.Is(err, distribution.ErrNothingToWithdraw),
		errors.Is(err, distribution.ErrVaultUnderfunded):
		return &RPCError{Code: codeState, Message: err.Error()}
	case errors.Is(err, distribution.ErrLedgerCall),
		errors.Is(err, distribution.ErrMintCapability):
		return &RPCError{Code: codeExternalCall, Message: err.Error(), Data: map[string]bool{"retryable": true}}
	default:
		return &RPCError{Code: codeServerError, Message: err.Error()}
	}
}
