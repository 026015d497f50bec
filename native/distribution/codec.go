package distribution

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// Stored records use a fixed byte layout (little-endian, fixed-width fields)
// so the storage layer can pre-allocate exact sizes and the layout stays
// stable across versions.
const (
	rateConfigEncodedLen   = 20 + 2*TokenSymbolMaxLen + 5*8
	contributionEncodedLen = 20 + 8 + 8 + 8 + 8
)

// EncodeRateConfig serialises the configuration into its fixed layout.
func EncodeRateConfig(cfg *RateConfig) ([]byte, error) {
	if cfg == nil {
		return nil, fmt.Errorf("distribution: nil rate config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	buf := make([]byte, rateConfigEncodedLen)
	offset := 0
	copy(buf[offset:], cfg.Admin[:])
	offset += 20
	copy(buf[offset:offset+TokenSymbolMaxLen], cfg.DistributionToken)
	offset += TokenSymbolMaxLen
	copy(buf[offset:offset+TokenSymbolMaxLen], cfg.RewardToken)
	offset += TokenSymbolMaxLen
	for _, bps := range []uint64{
		cfg.Rates.LiquidityBps,
		cfg.Rates.AdminFeeBps,
		cfg.Rates.CashbackBps,
		cfg.Rates.SwapFeeBps,
		cfg.Rates.ReferralBps,
	} {
		binary.LittleEndian.PutUint64(buf[offset:], bps)
		offset += 8
	}
	return buf, nil
}

// DecodeRateConfig parses a fixed-layout configuration record.
func DecodeRateConfig(data []byte) (*RateConfig, error) {
	if len(data) != rateConfigEncodedLen {
		return nil, fmt.Errorf("distribution: rate config must be %d bytes, got %d", rateConfigEncodedLen, len(data))
	}
	cfg := &RateConfig{}
	offset := 0
	copy(cfg.Admin[:], data[offset:offset+20])
	offset += 20
	cfg.DistributionToken = decodeSymbol(data[offset : offset+TokenSymbolMaxLen])
	offset += TokenSymbolMaxLen
	cfg.RewardToken = decodeSymbol(data[offset : offset+TokenSymbolMaxLen])
	offset += TokenSymbolMaxLen
	rates := make([]uint64, 5)
	for i := range rates {
		rates[i] = binary.LittleEndian.Uint64(data[offset:])
		offset += 8
	}
	cfg.Rates = Rates{
		LiquidityBps: rates[0],
		AdminFeeBps:  rates[1],
		CashbackBps:  rates[2],
		SwapFeeBps:   rates[3],
		ReferralBps:  rates[4],
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// EncodeContribution serialises a contribution record into its fixed layout.
func EncodeContribution(record *ContributionRecord) ([]byte, error) {
	if record == nil {
		return nil, fmt.Errorf("distribution: nil contribution record")
	}
	buf := make([]byte, contributionEncodedLen)
	offset := 0
	copy(buf[offset:], record.Owner[:])
	offset += 20
	binary.LittleEndian.PutUint64(buf[offset:], record.ContributedAmount)
	offset += 8
	binary.LittleEndian.PutUint64(buf[offset:], uint64(record.EnrolledAt))
	offset += 8
	binary.LittleEndian.PutUint64(buf[offset:], uint64(record.LastClaimAt))
	offset += 8
	binary.LittleEndian.PutUint64(buf[offset:], record.TotalClaimed)
	return buf, nil
}

// DecodeContribution parses a fixed-layout contribution record.
func DecodeContribution(data []byte) (*ContributionRecord, error) {
	if len(data) != contributionEncodedLen {
		return nil, fmt.Errorf("distribution: contribution record must be %d bytes, got %d", contributionEncodedLen, len(data))
	}
	record := &ContributionRecord{}
	offset := 0
	copy(record.Owner[:], data[offset:offset+20])
	offset += 20
	record.ContributedAmount = binary.LittleEndian.Uint64(data[offset:])
	offset += 8
	record.EnrolledAt = int64(binary.LittleEndian.Uint64(data[offset:]))
	offset += 8
	record.LastClaimAt = int64(binary.LittleEndian.Uint64(data[offset:]))
	offset += 8
	record.TotalClaimed = binary.LittleEndian.Uint64(data[offset:])
	return record, nil
}

func decodeSymbol(data []byte) string {
	return strings.TrimRight(string(data), "\x00")
}
