package farming

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

const (
	// DefaultLockPeriodSeconds is the minimum dwell time of a stake.
	DefaultLockPeriodSeconds uint64 = 7 * 24 * 60 * 60
	// DefaultTreasuryGraceSeconds delays treasury sweeps after a pool ends.
	DefaultTreasuryGraceSeconds uint64 = 12 * 7 * 24 * 60 * 60
)

// Config captures the runtime parameters of the farming engine.
type Config struct {
	LockPeriodSeconds    uint64         `toml:"LockPeriodSeconds"`
	TreasuryGraceSeconds uint64         `toml:"TreasuryGraceSeconds"`
	EmergencyAdmin       common.Address `toml:"EmergencyAdmin"`
	TreasuryAdmin        common.Address `toml:"TreasuryAdmin"`
}

// DefaultConfig returns the standard lock and grace periods with no admins
// configured. Admin operations are rejected until admins are set.
func DefaultConfig() Config {
	return Config{
		LockPeriodSeconds:    DefaultLockPeriodSeconds,
		TreasuryGraceSeconds: DefaultTreasuryGraceSeconds,
	}
}

// Validate ensures the configuration is usable.
func (c Config) Validate() error {
	if c.LockPeriodSeconds == 0 {
		return fmt.Errorf("farming: lock period must be positive")
	}
	return nil
}

func isAdmin(configured, caller common.Address) bool {
	return configured != (common.Address{}) && configured == caller
}
