package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"farmchain/native/farming"
)

func TestLoadCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "farm.toml")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Farming.LockPeriodSeconds != farming.DefaultLockPeriodSeconds {
		t.Fatalf("unexpected lock period %d", cfg.Farming.LockPeriodSeconds)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("default config not written: %v", err)
	}
	again, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if *again != *cfg {
		t.Fatalf("reloaded config differs: %+v vs %+v", again, cfg)
	}
}

func TestLoadParsesFarmingSection(t *testing.T) {
	path := filepath.Join(t.TempDir(), "farm.toml")
	contents := `DataDir = "/var/lib/farm"

[Farming]
LockPeriodSeconds = 3600
TreasuryGraceSeconds = 864000
EmergencyAdmin = "0x00000000000000000000000000000000000000e1"
TreasuryAdmin = "0x00000000000000000000000000000000000000e2"
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DataDir != "/var/lib/farm" || cfg.NetworkName != "farm-local" {
		t.Fatalf("unexpected top level config %+v", cfg)
	}
	if cfg.Farming.LockPeriodSeconds != 3600 || cfg.Farming.TreasuryGraceSeconds != 864000 {
		t.Fatalf("unexpected farming config %+v", cfg.Farming)
	}
	if cfg.Farming.EmergencyAdmin != common.HexToAddress("0xe1") {
		t.Fatalf("unexpected emergency admin %s", cfg.Farming.EmergencyAdmin.Hex())
	}
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	cases := map[string]string{
		"unknown key": "[Farming]\nLockPeriod = 5\n",
		"zero lock":   "[Farming]\nLockPeriodSeconds = 0\n",
		"short grace": "[Farming]\nTreasuryGraceSeconds = 10\n",
	}
	for name, contents := range cases {
		path := filepath.Join(t.TempDir(), "farm.toml")
		if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
		if _, err := Load(path); err == nil {
			t.Fatalf("%s: expected error", name)
		} else if name == "unknown key" && !strings.Contains(err.Error(), "LockPeriod") {
			t.Fatalf("%s: unexpected error %v", name, err)
		}
	}
}
