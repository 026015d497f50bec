package state

import (
	"fmt"

	"hubswap/native/distribution"
)

// Storage keys for the distribution engine. Contribution records are stored
// under a fixed namespace keyed by the owner address, mirroring the
// deterministic per-participant account derivation the engine relies on.
var (
	rateConfigKey      = []byte("hubswap/config")
	contributionPrefix = []byte("hubswap/contribution/")
)

func contributionKey(owner [20]byte) []byte {
	buf := make([]byte, len(contributionPrefix)+len(owner))
	copy(buf, contributionPrefix)
	copy(buf[len(contributionPrefix):], owner[:])
	return buf
}

// RateConfigGet loads the engine configuration, reporting whether one exists.
func (m *Manager) RateConfigGet() (*distribution.RateConfig, bool, error) {
	data, ok, err := m.KVGetRaw(rateConfigKey)
	if err != nil || !ok {
		return nil, false, err
	}
	cfg, err := distribution.DecodeRateConfig(data)
	if err != nil {
		return nil, false, err
	}
	return cfg, true, nil
}

// RateConfigPut stores the engine configuration in its fixed layout.
func (m *Manager) RateConfigPut(cfg *distribution.RateConfig) error {
	encoded, err := distribution.EncodeRateConfig(cfg)
	if err != nil {
		return err
	}
	return m.KVPutRaw(rateConfigKey, encoded)
}

// RateConfigDelete removes the engine configuration, reclaiming its storage.
func (m *Manager) RateConfigDelete() error {
	return m.KVDelete(rateConfigKey)
}

// ContributionGet loads the contribution record for an owner.
func (m *Manager) ContributionGet(owner [20]byte) (*distribution.ContributionRecord, bool, error) {
	data, ok, err := m.KVGetRaw(contributionKey(owner))
	if err != nil || !ok {
		return nil, false, err
	}
	record, err := distribution.DecodeContribution(data)
	if err != nil {
		return nil, false, err
	}
	if record.Owner != owner {
		return nil, false, fmt.Errorf("state: contribution record owner mismatch")
	}
	return record, true, nil
}

// ContributionCreate allocates a record for an owner. Creating over an
// existing record is an error, never a silent overwrite.
func (m *Manager) ContributionCreate(record *distribution.ContributionRecord) error {
	if record == nil {
		return fmt.Errorf("state: nil contribution record")
	}
	key := contributionKey(record.Owner)
	_, ok, err := m.KVGetRaw(key)
	if err != nil {
		return err
	}
	if ok {
		return distribution.ErrRecordExists
	}
	encoded, err := distribution.EncodeContribution(record)
	if err != nil {
		return err
	}
	return m.KVPutRaw(key, encoded)
}

// ContributionUpdate rewrites an existing record in place.
func (m *Manager) ContributionUpdate(record *distribution.ContributionRecord) error {
	if record == nil {
		return fmt.Errorf("state: nil contribution record")
	}
	key := contributionKey(record.Owner)
	_, ok, err := m.KVGetRaw(key)
	if err != nil {
		return err
	}
	if !ok {
		return distribution.ErrRecordNotFound
	}
	encoded, err := distribution.EncodeContribution(record)
	if err != nil {
		return err
	}
	return m.KVPutRaw(key, encoded)
}
