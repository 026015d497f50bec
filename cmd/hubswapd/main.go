package main

import (
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strings"
	"time"

	"hubswap/config"
	"hubswap/core/state"
	"hubswap/crypto"
	"hubswap/native/distribution"
	"hubswap/observability/logging"
	"hubswap/rpc"
	"hubswap/storage"
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("HUBSWAP_ENV"))

	cfg, err := config.Load(*configFile)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	logger := logging.Setup("hubswapd", env, logging.Options{
		File:       cfg.LogFile,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
	})

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		panic(fmt.Sprintf("Failed to open database: %v", err))
	}
	defer db.Close()

	if err := bootstrapTokens(db, cfg.Tokens); err != nil {
		panic(fmt.Sprintf("Failed to bootstrap token registry: %v", err))
	}

	auth := rpc.NewAuthenticator(rpc.AuthConfig{
		Enabled:    cfg.Auth.Enabled,
		HMACSecret: cfg.AuthSecret(),
		Issuer:     cfg.Auth.Issuer,
		Audience:   cfg.Auth.Audience,
		AdminScope: cfg.Auth.AdminScope,
	})
	server := rpc.NewServer(db, auth, rpc.RateLimit{
		RequestsPerMinute: cfg.RateLimit.RequestsPerMinute,
		Burst:             cfg.RateLimit.Burst,
	}, logger)

	rpcErrCh := make(chan error, 1)
	go func() {
		rpcErrCh <- server.Start(cfg.RPCAddress)
		close(rpcErrCh)
	}()

	if err := waitForRPCStartup(cfg.RPCAddress, rpcErrCh, 5*time.Second); err != nil {
		logger.Error("RPC server failed to start", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("hubswap daemon initialised and running", slog.String("addr", cfg.RPCAddress))
	if err, ok := <-rpcErrCh; ok && err != nil {
		logger.Error("RPC server terminated", slog.Any("error", err))
		os.Exit(1)
	}
}

// bootstrapTokens registers the configured tokens on first start. Tokens
// without an explicit mint authority are controlled by the engine's derived
// mint authority address. Registration is idempotent across restarts.
func bootstrapTokens(db storage.Database, tokens []config.TokenConfig) error {
	overlay := storage.NewOverlay(db)
	mgr := state.NewManager(overlay)
	engineAuthority := mgr.ModuleAddress(distribution.MintAuthorityLabel)

	for _, token := range tokens {
		symbol := state.NormalizeToken(token.Symbol)
		if mgr.TokenExists(symbol) {
			continue
		}
		authority := engineAuthority
		if trimmed := strings.TrimSpace(token.MintAuthority); trimmed != "" {
			decoded, err := crypto.DecodeAddress(trimmed)
			if err != nil {
				return fmt.Errorf("token %s mint authority: %w", symbol, err)
			}
			copy(authority[:], decoded.Bytes())
		}
		meta := &state.TokenMetadata{
			Symbol:        symbol,
			Name:          token.Name,
			Decimals:      token.Decimals,
			MintAuthority: authority,
		}
		if err := mgr.RegisterToken(meta); err != nil {
			return err
		}
	}
	return overlay.Commit()
}

func waitForRPCStartup(addr string, errCh <-chan error, timeout time.Duration) error {
	dialAddr := dialAddressFor(addr)
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case err, ok := <-errCh:
			if !ok || err == nil {
				return fmt.Errorf("RPC server exited before startup confirmation")
			}
			return err
		default:
		}

		conn, err := net.DialTimeout("tcp", dialAddr, 200*time.Millisecond)
		if err == nil {
			_ = conn.Close()
			return nil
		}

		select {
		case err, ok := <-errCh:
			if !ok || err == nil {
				return fmt.Errorf("RPC server exited before startup confirmation")
			}
			return err
		case <-ticker.C:
		case <-deadline.C:
			return fmt.Errorf("timed out waiting for RPC server to start on %s", addr)
		}
	}
}

func dialAddressFor(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	if host == "" {
		host = "127.0.0.1"
	}
	return net.JoinHostPort(host, port)
}
