package rpc

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"hubswap/core/state"
	"hubswap/native/distribution"
	"hubswap/observability"
)

type initializeParams struct {
	Admin             string `json:"admin"`
	DistributionToken string `json:"distributionToken"`
	RewardToken       string `json:"rewardToken"`
	LiquidityBps      uint64 `json:"liquidityBps"`
	AdminFeeBps       uint64 `json:"adminFeeBps"`
	CashbackBps       uint64 `json:"cashbackBps"`
	SwapFeeBps        uint64 `json:"swapFeeBps"`
	ReferralBps       uint64 `json:"referralBps"`
}

type updateRatesParams struct {
	Caller       string `json:"caller"`
	LiquidityBps uint64 `json:"liquidityBps"`
	AdminFeeBps  uint64 `json:"adminFeeBps"`
	CashbackBps  uint64 `json:"cashbackBps"`
	SwapFeeBps   uint64 `json:"swapFeeBps"`
	ReferralBps  uint64 `json:"referralBps"`
}

type callerParams struct {
	Caller string `json:"caller"`
}

type fundVaultParams struct {
	Caller string `json:"caller"`
	Amount string `json:"amount"`
}

type distributeParams struct {
	Participant string `json:"participant"`
	Amount      string `json:"amount"`
}

type claimParams struct {
	Caller      string `json:"caller"`
	Participant string `json:"participant,omitempty"`
}

type positionParams struct {
	Participant string `json:"participant"`
}

var errExactlyOneParam = errors.New("exactly one parameter object expected")

func decodeSingleParam(req *RPCRequest, out interface{}) error {
	if len(req.Params) != 1 {
		return errExactlyOneParam
	}
	return json.Unmarshal(req.Params[0], out)
}

func (s *Server) handleInitialize(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if !s.requireAdmin(w, r, req) {
		return
	}
	var params initializeParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	admin, err := decodeBech32(params.Admin)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid admin address", err.Error())
		return
	}
	cfg := &distribution.RateConfig{
		Admin:             admin,
		DistributionToken: strings.ToUpper(strings.TrimSpace(params.DistributionToken)),
		RewardToken:       strings.ToUpper(strings.TrimSpace(params.RewardToken)),
		Rates: distribution.Rates{
			LiquidityBps: params.LiquidityBps,
			AdminFeeBps:  params.AdminFeeBps,
			CashbackBps:  params.CashbackBps,
			SwapFeeBps:   params.SwapFeeBps,
			ReferralBps:  params.ReferralBps,
		},
	}
	started := time.Now()
	err = s.withCommit(func(*state.Manager) error {
		return s.engine.Initialize(cfg)
	})
	observability.EngineMetrics().Observe("initialize", err, errorCategory(err), time.Since(started))
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	s.logger.Info("engine initialized",
		slog.String("admin", params.Admin),
		slog.String("distributionToken", cfg.DistributionToken),
		slog.String("rewardToken", cfg.RewardToken))
	writeResult(w, req.ID, map[string]bool{"initialized": true})
}

func (s *Server) handleUpdateRates(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if !s.requireAdmin(w, r, req) {
		return
	}
	var params updateRatesParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	caller, err := decodeBech32(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller address", err.Error())
		return
	}
	rates := distribution.Rates{
		LiquidityBps: params.LiquidityBps,
		AdminFeeBps:  params.AdminFeeBps,
		CashbackBps:  params.CashbackBps,
		SwapFeeBps:   params.SwapFeeBps,
		ReferralBps:  params.ReferralBps,
	}
	started := time.Now()
	err = s.withCommit(func(*state.Manager) error {
		return s.engine.UpdateRates(caller, rates)
	})
	observability.EngineMetrics().Observe("update_rates", err, errorCategory(err), time.Since(started))
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"updated": true})
}

func (s *Server) handleTerminate(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if !s.requireAdmin(w, r, req) {
		return
	}
	var params callerParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	caller, err := decodeBech32(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller address", err.Error())
		return
	}
	started := time.Now()
	err = s.withCommit(func(*state.Manager) error {
		return s.engine.Terminate(caller)
	})
	observability.EngineMetrics().Observe("terminate", err, errorCategory(err), time.Since(started))
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	s.logger.Info("engine terminated", slog.String("caller", params.Caller))
	writeResult(w, req.ID, map[string]bool{"terminated": true})
}

// handleFundVault tops up the engine's inbound vault with freshly minted
// distribution tokens. Admin-only; used by operational tooling to stage swap
// proceeds for distribution.
func (s *Server) handleFundVault(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if !s.requireAdmin(w, r, req) {
		return
	}
	var params fundVaultParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	caller, err := decodeBech32(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller address", err.Error())
		return
	}
	amount, err := parseAmount(params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	started := time.Now()
	err = s.withCommit(func(mgr *state.Manager) error {
		cfg, err := s.engine.Config()
		if err != nil {
			return err
		}
		if caller != cfg.Admin {
			return distribution.ErrUnauthorized
		}
		inbound := mgr.ModuleAddress(distribution.InboundVaultLabel)
		meta, err := mgr.Token(cfg.DistributionToken)
		if err != nil {
			return err
		}
		return mgr.TokenMint(meta.MintAuthority, inbound, amount, cfg.DistributionToken)
	})
	metrics := observability.EngineMetrics()
	metrics.Observe("fund_vault", err, errorCategory(err), time.Since(started))
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	metrics.AddAmount("vault_funding", amount)
	writeResult(w, req.ID, map[string]string{"funded": strconv.FormatUint(amount, 10)})
}

func (s *Server) handleDistribute(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params distributeParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	participant, err := decodeBech32(params.Participant)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid participant address", err.Error())
		return
	}
	amount, err := parseAmount(params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	var result *distribution.DistributionResult
	started := time.Now()
	err = s.withCommit(func(*state.Manager) error {
		var inner error
		result, inner = s.engine.Distribute(participant, amount)
		return inner
	})
	metrics := observability.EngineMetrics()
	metrics.Observe("distribute", err, errorCategory(err), time.Since(started))
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	metrics.AddAmount("user_payout", result.UserAmount)
	metrics.AddAmount("liquidity", result.LiquidityAmount)
	metrics.AddAmount("cashback", result.CashbackAmount)
	writeResult(w, req.ID, &distributeResult{
		Participant:     formatAddress(result.Participant),
		GrossAmount:     strconv.FormatUint(result.GrossAmount, 10),
		UserAmount:      strconv.FormatUint(result.UserAmount, 10),
		LiquidityAmount: strconv.FormatUint(result.LiquidityAmount, 10),
		CashbackAmount:  strconv.FormatUint(result.CashbackAmount, 10),
		Record:          formatRecord(result.Record),
	})
}

func (s *Server) handleClaimReward(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params claimParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	caller, err := decodeBech32(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller address", err.Error())
		return
	}
	participant := caller
	if strings.TrimSpace(params.Participant) != "" {
		participant, err = decodeBech32(params.Participant)
		if err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid participant address", err.Error())
			return
		}
	}
	var result *distribution.ClaimResult
	started := time.Now()
	err = s.withCommit(func(*state.Manager) error {
		var inner error
		result, inner = s.engine.ClaimWeeklyReward(caller, participant)
		return inner
	})
	metrics := observability.EngineMetrics()
	metrics.Observe("claim_reward", err, errorCategory(err), time.Since(started))
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	metrics.AddAmount("reward", result.Reward)
	writeResult(w, req.ID, &claimResult{
		Participant: formatAddress(result.Participant),
		Reward:      strconv.FormatUint(result.Reward, 10),
		Record:      formatRecord(result.Record),
	})
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params callerParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	caller, err := decodeBech32(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller address", err.Error())
		return
	}
	var result *distribution.WithdrawResult
	started := time.Now()
	err = s.withCommit(func(*state.Manager) error {
		var inner error
		result, inner = s.engine.Withdraw(caller, caller)
		return inner
	})
	metrics := observability.EngineMetrics()
	metrics.Observe("withdraw", err, errorCategory(err), time.Since(started))
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	metrics.AddAmount("withdrawal", result.Amount)
	writeResult(w, req.ID, &withdrawResult{
		Participant: formatAddress(result.Participant),
		Amount:      strconv.FormatUint(result.Amount, 10),
		Record:      formatRecord(result.Record),
	})
}

func (s *Server) handlePosition(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params positionParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	participant, err := decodeBech32(params.Participant)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid participant address", err.Error())
		return
	}
	var position *distribution.Position
	err = s.withRead(func(*state.Manager) error {
		var inner error
		position, inner = s.engine.Position(participant)
		return inner
	})
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, &positionResult{
		Owner:             formatAddress(position.Owner),
		ContributedAmount: strconv.FormatUint(position.ContributedAmount, 10),
		EnrolledAt:        position.EnrolledAt,
		LastClaimAt:       position.LastClaimAt,
		TotalClaimed:      strconv.FormatUint(position.TotalClaimed, 10),
		Eligible:          position.Eligible,
		NextClaimIn:       position.NextClaimIn,
	})
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var cfg *distribution.RateConfig
	err := s.withRead(func(*state.Manager) error {
		var inner error
		cfg, inner = s.engine.Config()
		return inner
	})
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, &configResult{
		Admin:             formatAddress(cfg.Admin),
		DistributionToken: cfg.DistributionToken,
		RewardToken:       cfg.RewardToken,
		LiquidityBps:      cfg.Rates.LiquidityBps,
		AdminFeeBps:       cfg.Rates.AdminFeeBps,
		CashbackBps:       cfg.Rates.CashbackBps,
		SwapFeeBps:        cfg.Rates.SwapFeeBps,
		ReferralBps:       cfg.Rates.ReferralBps,
	})
}
