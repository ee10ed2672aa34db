package config

import "fmt"

// MinTreasuryGraceSeconds keeps treasury sweeps at least a day behind the
// end of a pool.
var MinTreasuryGraceSeconds = uint64(24 * 60 * 60)

// ValidateConfig checks cross-field constraints the decoder cannot express.
func ValidateConfig(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config: nil configuration")
	}
	if err := cfg.Farming.Validate(); err != nil {
		return err
	}
	if cfg.Farming.TreasuryGraceSeconds < MinTreasuryGraceSeconds {
		return fmt.Errorf("farming: treasury grace period below %d seconds", MinTreasuryGraceSeconds)
	}
	return nil
}
