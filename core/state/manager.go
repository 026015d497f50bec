package state

import (
	"errors"
	"fmt"
	"strings"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"hubswap/storage"
)

// Manager provides typed access to engine state over a key-value store. Keys
// are hashed with keccak256 before hitting the store; values are RLP encoded
// unless a record type carries its own fixed-layout codec.
type Manager struct {
	db storage.Database
}

// NewManager creates a state manager operating on the provided database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

var (
	ErrUnknownToken        = errors.New("state: unknown token")
	ErrTokenExists         = errors.New("state: token already registered")
	ErrInsufficientBalance = errors.New("state: insufficient balance")
	ErrMintUnauthorized    = errors.New("state: mint authority mismatch")
	ErrMintPaused          = errors.New("state: minting paused")
)

// TokenMetadata describes a registered token and the single authority allowed
// to mint it.
type TokenMetadata struct {
	Symbol        string
	Name          string
	Decimals      uint8
	MintAuthority [20]byte
	MintPaused    bool
}

var (
	tokenPrefix   = []byte("token:")
	balancePrefix = []byte("balance:")
	modulePrefix  = []byte("hubswap/module:")
)

func tokenMetadataKey(symbol string) []byte {
	buf := make([]byte, len(tokenPrefix)+len(symbol))
	copy(buf, tokenPrefix)
	copy(buf[len(tokenPrefix):], symbol)
	return ethcrypto.Keccak256(buf)
}

func balanceKey(addr [20]byte, symbol string) []byte {
	buf := make([]byte, len(balancePrefix)+len(symbol)+1+len(addr))
	copy(buf, balancePrefix)
	copy(buf[len(balancePrefix):], symbol)
	buf[len(balancePrefix)+len(symbol)] = ':'
	copy(buf[len(balancePrefix)+len(symbol)+1:], addr[:])
	return ethcrypto.Keccak256(buf)
}

func kvKey(key []byte) []byte {
	return ethcrypto.Keccak256(key)
}

// KVPut stores the provided value under the supplied key using RLP encoding.
func (m *Manager) KVPut(key []byte, value interface{}) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	return m.db.Put(kvKey(key), encoded)
}

// KVGet retrieves the value stored under the supplied key and decodes it into
// the provided destination. The boolean return value indicates whether the
// key existed in state.
func (m *Manager) KVGet(key []byte, out interface{}) (bool, error) {
	if len(key) == 0 {
		return false, fmt.Errorf("kv: key must not be empty")
	}
	data, err := m.db.Get(kvKey(key))
	if errors.Is(err, storage.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if len(data) == 0 {
		return false, nil
	}
	if out == nil {
		return true, nil
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, err
	}
	return true, nil
}

// KVPutRaw stores raw bytes under the supplied key without re-encoding, for
// record types that carry their own fixed-layout codec.
func (m *Manager) KVPutRaw(key []byte, value []byte) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	return m.db.Put(kvKey(key), value)
}

// KVGetRaw retrieves raw bytes stored under the supplied key.
func (m *Manager) KVGetRaw(key []byte) ([]byte, bool, error) {
	if len(key) == 0 {
		return nil, false, fmt.Errorf("kv: key must not be empty")
	}
	data, err := m.db.Get(kvKey(key))
	if errors.Is(err, storage.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if len(data) == 0 {
		return nil, false, nil
	}
	return data, true, nil
}

// KVDelete removes the value stored under the supplied key.
func (m *Manager) KVDelete(key []byte) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	return m.db.Delete(kvKey(key))
}

// NormalizeToken uppercases and trims a token symbol.
func NormalizeToken(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// RegisterToken stores the metadata for a token. Registering an existing
// symbol is an error, never an overwrite.
func (m *Manager) RegisterToken(meta *TokenMetadata) error {
	if meta == nil {
		return fmt.Errorf("state: nil token metadata")
	}
	symbol := NormalizeToken(meta.Symbol)
	if symbol == "" {
		return fmt.Errorf("state: token symbol required")
	}
	existing, err := m.Token(symbol)
	if err != nil && !errors.Is(err, ErrUnknownToken) {
		return err
	}
	if existing != nil {
		return fmt.Errorf("%w: %s", ErrTokenExists, symbol)
	}
	stored := *meta
	stored.Symbol = symbol
	encoded, err := rlp.EncodeToBytes(&stored)
	if err != nil {
		return err
	}
	return m.db.Put(tokenMetadataKey(symbol), encoded)
}

// Token loads the metadata for a registered token symbol.
func (m *Manager) Token(symbol string) (*TokenMetadata, error) {
	normalized := NormalizeToken(symbol)
	if normalized == "" {
		return nil, fmt.Errorf("%w: empty symbol", ErrUnknownToken)
	}
	data, err := m.db.Get(tokenMetadataKey(normalized))
	if errors.Is(err, storage.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownToken, normalized)
	}
	if err != nil {
		return nil, err
	}
	meta := new(TokenMetadata)
	if err := rlp.DecodeBytes(data, meta); err != nil {
		return nil, err
	}
	return meta, nil
}

// TokenExists reports whether the provided token symbol is registered.
func (m *Manager) TokenExists(symbol string) bool {
	meta, err := m.Token(symbol)
	return err == nil && meta != nil
}

// TokenBalance returns the balance of a token for an address. Unregistered
// tokens are an error; unknown addresses hold zero.
func (m *Manager) TokenBalance(addr [20]byte, symbol string) (uint64, error) {
	normalized := NormalizeToken(symbol)
	if !m.TokenExists(normalized) {
		return 0, fmt.Errorf("%w: %s", ErrUnknownToken, normalized)
	}
	data, err := m.db.Get(balanceKey(addr, normalized))
	if errors.Is(err, storage.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	var balance uint64
	if err := rlp.DecodeBytes(data, &balance); err != nil {
		return 0, err
	}
	return balance, nil
}

func (m *Manager) setTokenBalance(addr [20]byte, symbol string, balance uint64) error {
	encoded, err := rlp.EncodeToBytes(balance)
	if err != nil {
		return err
	}
	return m.db.Put(balanceKey(addr, symbol), encoded)
}

// TokenTransfer moves amount of the given token between two addresses. The
// source must hold at least the transferred amount.
func (m *Manager) TokenTransfer(from, to [20]byte, amount uint64, symbol string) error {
	normalized := NormalizeToken(symbol)
	if amount == 0 {
		return nil
	}
	fromBalance, err := m.TokenBalance(from, normalized)
	if err != nil {
		return err
	}
	if fromBalance < amount {
		return fmt.Errorf("%w: %s holds %d, need %d", ErrInsufficientBalance, normalized, fromBalance, amount)
	}
	// A funded self-transfer is a no-op; crediting the stale read back would
	// grow the balance and break supply conservation.
	if from == to {
		return nil
	}
	toBalance, err := m.TokenBalance(to, normalized)
	if err != nil {
		return err
	}
	if err := m.setTokenBalance(from, normalized, fromBalance-amount); err != nil {
		return err
	}
	return m.setTokenBalance(to, normalized, toBalance+amount)
}

// TokenMint issues new units of a token to an address. The supplied authority
// must match the registered mint authority and minting must not be paused.
func (m *Manager) TokenMint(authority, to [20]byte, amount uint64, symbol string) error {
	normalized := NormalizeToken(symbol)
	meta, err := m.Token(normalized)
	if err != nil {
		return err
	}
	if meta.MintPaused {
		return fmt.Errorf("%w: %s", ErrMintPaused, normalized)
	}
	if meta.MintAuthority != authority {
		return fmt.Errorf("%w: %s", ErrMintUnauthorized, normalized)
	}
	if amount == 0 {
		return nil
	}
	balance, err := m.TokenBalance(to, normalized)
	if err != nil {
		return err
	}
	return m.setTokenBalance(to, normalized, balance+amount)
}

// ModuleAddress deterministically derives a 20-byte address for an internal
// module account from a fixed namespace label. The derivation never uses
// caller-supplied data, so vault and authority addresses are stable and
// collision-free per label.
func (m *Manager) ModuleAddress(label string) [20]byte {
	buf := make([]byte, len(modulePrefix)+len(label))
	copy(buf, modulePrefix)
	copy(buf[len(modulePrefix):], label)
	hash := ethcrypto.Keccak256(buf)
	var addr [20]byte
	copy(addr[:], hash[12:])
	return addr
}
