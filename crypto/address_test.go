package crypto

import (
	"strings"
	"testing"

	"github.com/btcsuite/btcutil/bech32"
	"github.com/ethereum/go-ethereum/common"
)

func TestAddressRoundTrip(t *testing.T) {
	addr := common.HexToAddress("0x00000000000000000000000000000000000000c1")
	encoded, err := EncodeAddress(addr)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if !strings.HasPrefix(encoded, "farm1") {
		t.Fatalf("unexpected encoding %q", encoded)
	}
	decoded, err := DecodeAddress(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded != addr {
		t.Fatalf("round trip mismatch: %s vs %s", decoded.Hex(), addr.Hex())
	}
	parsed, err := ParseAddress("  " + encoded + " ")
	if err != nil || parsed != addr {
		t.Fatalf("parse bech32: %s %v", parsed.Hex(), err)
	}
	parsed, err = ParseAddress(addr.Hex())
	if err != nil || parsed != addr {
		t.Fatalf("parse hex: %s %v", parsed.Hex(), err)
	}
}

func TestDecodeAddressRejectsForeignPrefix(t *testing.T) {
	conv, err := bech32.ConvertBits(make([]byte, 20), 8, 5, true)
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	other, err := bech32.Encode("cosmos", conv)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := DecodeAddress(other); err == nil {
		t.Fatalf("expected prefix error")
	}
}

func TestParseAddressRejectsGarbage(t *testing.T) {
	for _, raw := range []string{"", "0x1234", "farm1notvalid", "hello"} {
		if _, err := ParseAddress(raw); err == nil {
			t.Fatalf("expected error for %q", raw)
		}
	}
}
