package secret

import (
	"os"
	"strings"
	"testing"
)

const envName = "FARMCTL_TEST_SECRET"

func TestSourceReadsEnvironment(t *testing.T) {
	t.Setenv(envName, "  0123456789abcdef0123456789abcdef  ")
	src := NewSource(envName)
	value, err := src.Get()
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if value != "0123456789abcdef0123456789abcdef" {
		t.Fatalf("unexpected secret %q", value)
	}
	os.Setenv(envName, "changed-changed-changed-changed-changed")
	if again, _ := src.Get(); again != value {
		t.Fatalf("secret not cached: %q", again)
	}
}

func TestSourceRejectsShortSecret(t *testing.T) {
	t.Setenv(envName, "short")
	if _, err := NewSource(envName).Get(); err == nil || !strings.Contains(err.Error(), envName) {
		t.Fatalf("expected short secret error, got %v", err)
	}
}

func TestSourceWithoutTerminal(t *testing.T) {
	input, err := os.CreateTemp(t.TempDir(), "stdin")
	if err != nil {
		t.Fatalf("temp: %v", err)
	}
	defer input.Close()
	src := NewSource("FARMCTL_TEST_UNSET_SECRET")
	src.input = input
	if _, err := src.Get(); err == nil || !strings.Contains(err.Error(), "FARMCTL_TEST_UNSET_SECRET") {
		t.Fatalf("expected missing secret error, got %v", err)
	}
}
