package rpc

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"hubswap/core/state"
	"hubswap/crypto"
	"hubswap/native/distribution"
	"hubswap/storage"
)

func testBech32(t *testing.T, b byte) string {
	t.Helper()
	raw := make([]byte, 20)
	raw[0] = b
	return crypto.NewAddress(crypto.HubPrefix, raw).String()
}

func newTestServer(t *testing.T, auth *Authenticator) *Server {
	t.Helper()
	db := storage.NewMemDB()
	mgr := state.NewManager(db)
	engineAuthority := mgr.ModuleAddress(distribution.MintAuthorityLabel)
	for _, symbol := range []string{"YOT", "YOS"} {
		err := mgr.RegisterToken(&state.TokenMetadata{
			Symbol:        symbol,
			Decimals:      9,
			MintAuthority: engineAuthority,
		})
		if err != nil {
			t.Fatalf("register %s: %v", symbol, err)
		}
	}
	return NewServer(db, auth, RateLimit{}, nil)
}

func call(t *testing.T, s *Server, method string, params interface{}, headers map[string]string) (*RPCResponse, int) {
	t.Helper()
	body := map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
		"params":  []interface{}{params},
	}
	if params == nil {
		body["params"] = []interface{}{}
	}
	encoded, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(encoded))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	recorder := httptest.NewRecorder()
	s.handle(recorder, req)

	resp := &RPCResponse{}
	if err := json.Unmarshal(recorder.Body.Bytes(), resp); err != nil {
		t.Fatalf("decode response: %v (%s)", err, recorder.Body.String())
	}
	return resp, recorder.Code
}

func decodeResult(t *testing.T, resp *RPCResponse, out interface{}) {
	t.Helper()
	if resp.Error != nil {
		t.Fatalf("unexpected RPC error: %+v", resp.Error)
	}
	raw, err := json.Marshal(resp.Result)
	if err != nil {
		t.Fatalf("re-encode result: %v", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		t.Fatalf("decode result: %v", err)
	}
}

func initializeEngine(t *testing.T, s *Server, admin string) {
	t.Helper()
	resp, _ := call(t, s, "hubswap_initialize", map[string]interface{}{
		"admin":             admin,
		"distributionToken": "YOT",
		"rewardToken":       "YOS",
		"liquidityBps":      2000,
		"adminFeeBps":       100,
		"cashbackBps":       300,
		"swapFeeBps":        50,
		"referralBps":       25,
	}, nil)
	if resp.Error != nil {
		t.Fatalf("initialize: %+v", resp.Error)
	}
}

func TestDistributionFlow(t *testing.T) {
	s := newTestServer(t, nil)
	now := int64(1_700_000_000)
	s.Engine().SetNowFunc(func() int64 { return now })

	admin := testBech32(t, 1)
	participant := testBech32(t, 2)
	initializeEngine(t, s, admin)

	resp, _ := call(t, s, "hubswap_fundVault", map[string]interface{}{
		"caller": admin,
		"amount": "10000",
	}, nil)
	if resp.Error != nil {
		t.Fatalf("fundVault: %+v", resp.Error)
	}

	resp, _ = call(t, s, "hubswap_distribute", map[string]interface{}{
		"participant": participant,
		"amount":      "10000",
	}, nil)
	var dist distributeResult
	decodeResult(t, resp, &dist)
	if dist.UserAmount != "7700" || dist.LiquidityAmount != "2000" || dist.CashbackAmount != "300" {
		t.Fatalf("unexpected split: %+v", dist)
	}
	if dist.Record == nil || dist.Record.ContributedAmount != "2000" {
		t.Fatalf("unexpected record: %+v", dist.Record)
	}

	// Claim inside the cooldown returns the timing error with wait context.
	resp, status := call(t, s, "hubswap_claimReward", map[string]interface{}{
		"caller": participant,
	}, nil)
	if resp.Error == nil || resp.Error.Code != codeTiming {
		t.Fatalf("expected timing error, got %+v", resp.Error)
	}
	if status != http.StatusConflict {
		t.Fatalf("expected 409 for timing error, got %d", status)
	}

	now += distribution.ClaimInterval
	resp, _ = call(t, s, "hubswap_claimReward", map[string]interface{}{
		"caller": participant,
	}, nil)
	var claim claimResult
	decodeResult(t, resp, &claim)
	// 2000 * 192 / 10000 = 38
	if claim.Reward != "38" {
		t.Fatalf("expected reward 38, got %s", claim.Reward)
	}
	if claim.Record.TotalClaimed != "38" {
		t.Fatalf("expected total claimed 38, got %s", claim.Record.TotalClaimed)
	}

	resp, _ = call(t, s, "hubswap_position", map[string]interface{}{
		"participant": participant,
	}, nil)
	var pos positionResult
	decodeResult(t, resp, &pos)
	if pos.Eligible {
		t.Fatal("expected fresh cooldown after claim")
	}
	if pos.NextClaimIn != distribution.ClaimInterval {
		t.Fatalf("expected full cooldown remaining, got %d", pos.NextClaimIn)
	}

	resp, _ = call(t, s, "hubswap_withdraw", map[string]interface{}{
		"caller": participant,
	}, nil)
	var withdrawal withdrawResult
	decodeResult(t, resp, &withdrawal)
	if withdrawal.Amount != "2000" {
		t.Fatalf("expected withdrawal 2000, got %s", withdrawal.Amount)
	}
	if withdrawal.Record.TotalClaimed != "38" {
		t.Fatalf("withdrawal must keep claim history, got %s", withdrawal.Record.TotalClaimed)
	}

	resp, _ = call(t, s, "hubswap_config", map[string]interface{}{}, nil)
	var cfg configResult
	decodeResult(t, resp, &cfg)
	if cfg.Admin != admin || cfg.DistributionToken != "YOT" || cfg.LiquidityBps != 2000 {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestFailedOperationLeavesStateUntouched(t *testing.T) {
	s := newTestServer(t, nil)
	admin := testBech32(t, 1)
	initializeEngine(t, s, admin)

	// Distribute without funding the vault fails.
	resp, _ := call(t, s, "hubswap_distribute", map[string]interface{}{
		"participant": testBech32(t, 2),
		"amount":      "1000",
	}, nil)
	if resp.Error == nil || resp.Error.Code != codeState {
		t.Fatalf("expected state error, got %+v", resp.Error)
	}

	resp, _ = call(t, s, "hubswap_position", map[string]interface{}{
		"participant": testBech32(t, 2),
	}, nil)
	if resp.Error == nil || resp.Error.Code != codeState {
		t.Fatalf("expected no record after failed distribute, got %+v", resp.Error)
	}
}

// faultyDB fails writes on demand so tests can force a commit failure.
type faultyDB struct {
	storage.Database
	failWrites bool
}

func (db *faultyDB) Put(key, value []byte) error {
	if db.failWrites {
		return errors.New("disk full")
	}
	return db.Database.Put(key, value)
}

func TestCommitFailureStreamsNoEvents(t *testing.T) {
	db := storage.NewMemDB()
	mgr := state.NewManager(db)
	engineAuthority := mgr.ModuleAddress(distribution.MintAuthorityLabel)
	for _, symbol := range []string{"YOT", "YOS"} {
		err := mgr.RegisterToken(&state.TokenMetadata{
			Symbol:        symbol,
			Decimals:      9,
			MintAuthority: engineAuthority,
		})
		if err != nil {
			t.Fatalf("register %s: %v", symbol, err)
		}
	}
	faulty := &faultyDB{Database: db}
	s := NewServer(faulty, nil, RateLimit{}, nil)

	admin := testBech32(t, 1)
	participant := testBech32(t, 2)
	initializeEngine(t, s, admin)
	resp, _ := call(t, s, "hubswap_fundVault", map[string]interface{}{
		"caller": admin,
		"amount": "10000",
	}, nil)
	if resp.Error != nil {
		t.Fatalf("fundVault: %+v", resp.Error)
	}

	faulty.failWrites = true
	resp, _ = call(t, s, "hubswap_distribute", map[string]interface{}{
		"participant": participant,
		"amount":      "10000",
	}, nil)
	if resp.Error == nil {
		t.Fatal("expected distribute to fail on write error")
	}
	faulty.failWrites = false

	_, replay, cancel := s.stream.Subscribe(0)
	cancel()
	for _, envelope := range replay {
		if envelope.Event.Type == distribution.TypeDistributed {
			t.Fatal("rolled-back distribution must not reach stream subscribers")
		}
	}

	// The same call streams its event once it commits.
	resp, _ = call(t, s, "hubswap_distribute", map[string]interface{}{
		"participant": participant,
		"amount":      "10000",
	}, nil)
	if resp.Error != nil {
		t.Fatalf("distribute after recovery: %+v", resp.Error)
	}
	_, replay, cancel = s.stream.Subscribe(0)
	cancel()
	seen := false
	for _, envelope := range replay {
		if envelope.Event.Type == distribution.TypeDistributed {
			seen = true
		}
	}
	if !seen {
		t.Fatal("committed distribution must be streamed")
	}
}

func TestTerminateSweepsAndDisables(t *testing.T) {
	s := newTestServer(t, nil)
	admin := testBech32(t, 1)
	initializeEngine(t, s, admin)

	resp, _ := call(t, s, "hubswap_fundVault", map[string]interface{}{
		"caller": admin,
		"amount": "500",
	}, nil)
	if resp.Error != nil {
		t.Fatalf("fundVault: %+v", resp.Error)
	}
	resp, _ = call(t, s, "hubswap_terminate", map[string]interface{}{"caller": admin}, nil)
	if resp.Error != nil {
		t.Fatalf("terminate: %+v", resp.Error)
	}

	adminRaw, err := crypto.DecodeAddress(admin)
	if err != nil {
		t.Fatalf("decode admin: %v", err)
	}
	var adminKey [20]byte
	copy(adminKey[:], adminRaw.Bytes())
	mgr := state.NewManager(s.db)
	balance, err := mgr.TokenBalance(adminKey, "YOT")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance != 500 {
		t.Fatalf("expected residue 500 swept to admin, got %d", balance)
	}

	resp, _ = call(t, s, "hubswap_config", map[string]interface{}{}, nil)
	if resp.Error == nil || resp.Error.Code != codeState {
		t.Fatalf("expected engine disabled after terminate, got %+v", resp.Error)
	}
}

func TestFundVaultRecordsMetrics(t *testing.T) {
	s := newTestServer(t, nil)
	admin := testBech32(t, 1)
	initializeEngine(t, s, admin)
	resp, _ := call(t, s, "hubswap_fundVault", map[string]interface{}{
		"caller": admin,
		"amount": "2500",
	}, nil)
	if resp.Error != nil {
		t.Fatalf("fundVault: %+v", resp.Error)
	}

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	recorder := httptest.NewRecorder()
	s.Handler().ServeHTTP(recorder, req)
	body := recorder.Body.String()
	if !strings.Contains(body, `hubswap_engine_operations_total{operation="fund_vault",outcome="ok"}`) {
		t.Fatal("expected fund_vault operation counter in /metrics output")
	}
	if !strings.Contains(body, `flow="vault_funding"`) {
		t.Fatal("expected vault_funding amount counter in /metrics output")
	}
}

func TestMethodNotFound(t *testing.T) {
	s := newTestServer(t, nil)
	resp, status := call(t, s, "hubswap_unknown", map[string]interface{}{}, nil)
	if resp.Error == nil || resp.Error.Code != codeMethodNotFound {
		t.Fatalf("expected method-not-found, got %+v", resp.Error)
	}
	if status != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", status)
	}
}

func TestAdminMethodsRequireBearerToken(t *testing.T) {
	secret := "test-secret"
	auth := NewAuthenticator(AuthConfig{
		Enabled:    true,
		HMACSecret: secret,
		Issuer:     "hubswap",
		Audience:   "hubswap-admin",
		AdminScope: "hubswap.admin",
	})
	s := newTestServer(t, auth)
	admin := testBech32(t, 1)

	params := map[string]interface{}{
		"admin":             admin,
		"distributionToken": "YOT",
		"rewardToken":       "YOS",
		"liquidityBps":      2000,
	}
	resp, status := call(t, s, "hubswap_initialize", params, nil)
	if status != http.StatusUnauthorized || resp.Error == nil || resp.Error.Code != codeUnauthorized {
		t.Fatalf("expected unauthorized, got status=%d error=%+v", status, resp.Error)
	}

	token := signTestToken(t, secret, jwt.MapClaims{
		"iss":   "hubswap",
		"aud":   "hubswap-admin",
		"scope": "hubswap.admin",
		"exp":   time.Now().Add(time.Hour).Unix(),
	})
	resp, _ = call(t, s, "hubswap_initialize", params, map[string]string{
		"Authorization": fmt.Sprintf("Bearer %s", token),
	})
	if resp.Error != nil {
		t.Fatalf("expected authorized initialize, got %+v", resp.Error)
	}

	// Non-admin methods stay open.
	resp, _ = call(t, s, "hubswap_config", map[string]interface{}{}, nil)
	if resp.Error != nil {
		t.Fatalf("config should not require auth, got %+v", resp.Error)
	}
}

func TestAdminTokenScopeEnforced(t *testing.T) {
	secret := "test-secret"
	auth := NewAuthenticator(AuthConfig{
		Enabled:    true,
		HMACSecret: secret,
		Issuer:     "hubswap",
		Audience:   "hubswap-admin",
		AdminScope: "hubswap.admin",
	})
	s := newTestServer(t, auth)

	token := signTestToken(t, secret, jwt.MapClaims{
		"iss":   "hubswap",
		"aud":   "hubswap-admin",
		"scope": "hubswap.read",
		"exp":   time.Now().Add(time.Hour).Unix(),
	})
	resp, status := call(t, s, "hubswap_terminate", map[string]interface{}{
		"caller": testBech32(t, 1),
	}, map[string]string{"Authorization": "Bearer " + token})
	if status != http.StatusUnauthorized || resp.Error == nil {
		t.Fatalf("expected scope rejection, got status=%d error=%+v", status, resp.Error)
	}
}

func signTestToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}
