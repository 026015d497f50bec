package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"hubswap/crypto"

	"github.com/BurntSushi/toml"
)

// TokenConfig describes a token registered in the local ledger at bootstrap.
// An empty MintAuthority delegates minting to the engine's own derived
// authority address.
type TokenConfig struct {
	Symbol        string `toml:"Symbol"`
	Name          string `toml:"Name"`
	Decimals      uint8  `toml:"Decimals"`
	MintAuthority string `toml:"MintAuthority,omitempty"`
}

// AuthConfig controls JWT verification for admin RPC methods. The HMAC secret
// may alternatively be supplied via the HUBSWAP_AUTH_SECRET environment
// variable.
type AuthConfig struct {
	Enabled    bool   `toml:"Enabled"`
	HMACSecret string `toml:"HMACSecret,omitempty"`
	Issuer     string `toml:"Issuer"`
	Audience   string `toml:"Audience"`
	AdminScope string `toml:"AdminScope"`
}

// RateLimitConfig bounds request rates per client source address.
type RateLimitConfig struct {
	RequestsPerMinute float64 `toml:"RequestsPerMinute"`
	Burst             int     `toml:"Burst"`
}

type Config struct {
	RPCAddress       string          `toml:"RPCAddress"`
	DataDir          string          `toml:"DataDir"`
	NodeKeystorePath string          `toml:"NodeKeystorePath"`
	LogFile          string          `toml:"LogFile,omitempty"`
	LogMaxSizeMB     int             `toml:"LogMaxSizeMB,omitempty"`
	LogMaxBackups    int             `toml:"LogMaxBackups,omitempty"`
	Auth             AuthConfig      `toml:"Auth"`
	RateLimit        RateLimitConfig `toml:"RateLimit"`
	Tokens           []TokenConfig   `toml:"Tokens"`
}

// Load loads the configuration from the given path, creating a default file
// when none exists.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}

	if err := ensureKeystore(path, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for values the service cannot start
// without.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.RPCAddress) == "" {
		return fmt.Errorf("config: RPCAddress is required")
	}
	if strings.TrimSpace(c.DataDir) == "" {
		return fmt.Errorf("config: DataDir is required")
	}
	seen := make(map[string]struct{}, len(c.Tokens))
	for _, token := range c.Tokens {
		symbol := strings.ToUpper(strings.TrimSpace(token.Symbol))
		if symbol == "" {
			return fmt.Errorf("config: token symbol is required")
		}
		if _, dup := seen[symbol]; dup {
			return fmt.Errorf("config: duplicate token symbol %s", symbol)
		}
		seen[symbol] = struct{}{}
		if authority := strings.TrimSpace(token.MintAuthority); authority != "" {
			if _, err := crypto.DecodeAddress(authority); err != nil {
				return fmt.Errorf("config: token %s mint authority: %w", symbol, err)
			}
		}
	}
	if c.Auth.Enabled && c.AuthSecret() == "" {
		return fmt.Errorf("config: auth enabled but no HMAC secret configured")
	}
	return nil
}

// AuthSecret resolves the JWT HMAC secret from config or environment.
func (c *Config) AuthSecret() string {
	if secret := strings.TrimSpace(c.Auth.HMACSecret); secret != "" {
		return secret
	}
	return strings.TrimSpace(os.Getenv("HUBSWAP_AUTH_SECRET"))
}

func ensureKeystore(configPath string, cfg *Config) error {
	keystorePath := cfg.NodeKeystorePath
	if keystorePath == "" {
		keystorePath = defaultKeystorePath(configPath)
	}

	if _, err := os.Stat(keystorePath); os.IsNotExist(err) {
		key, genErr := crypto.GeneratePrivateKey()
		if genErr != nil {
			return genErr
		}
		if err := crypto.SaveToKeystore(keystorePath, key, ""); err != nil {
			return err
		}
	} else if err != nil {
		return err
	}

	if cfg.NodeKeystorePath != keystorePath {
		cfg.NodeKeystorePath = keystorePath
		return persist(configPath, cfg)
	}

	return nil
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return nil, err
	}

	keystorePath := defaultKeystorePath(path)
	if err := crypto.SaveToKeystore(keystorePath, key, ""); err != nil {
		return nil, err
	}

	cfg := &Config{
		RPCAddress: ":8080",
		DataDir:    "./hubswap-data",
		Auth: AuthConfig{
			Enabled:    false,
			Issuer:     "hubswap",
			Audience:   "hubswap-admin",
			AdminScope: "hubswap.admin",
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: 600,
			Burst:             60,
		},
		Tokens: []TokenConfig{
			{Symbol: "YOT", Name: "Distribution Token", Decimals: 9},
			{Symbol: "YOS", Name: "Reward Token", Decimals: 9},
		},
	}
	cfg.NodeKeystorePath = keystorePath

	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaultKeystorePath(configPath string) string {
	dir := filepath.Dir(configPath)
	return filepath.Join(dir, "node-keystore.json")
}

func persist(path string, cfg *Config) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return toml.NewEncoder(file).Encode(cfg)
}
