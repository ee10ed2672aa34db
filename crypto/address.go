package crypto

import (
	"fmt"
	"strings"

	"github.com/btcsuite/btcutil/bech32"
	"github.com/ethereum/go-ethereum/common"
)

// AddressPrefix is the human-readable part of bech32 farm addresses.
const AddressPrefix = "farm"

// EncodeAddress renders addr as a bech32 string with the farm prefix.
func EncodeAddress(addr common.Address) (string, error) {
	conv, err := bech32.ConvertBits(addr.Bytes(), 8, 5, true)
	if err != nil {
		return "", err
	}
	return bech32.Encode(AddressPrefix, conv)
}

// DecodeAddress parses a bech32 farm address.
func DecodeAddress(raw string) (common.Address, error) {
	prefix, decoded, err := bech32.Decode(raw)
	if err != nil {
		return common.Address{}, fmt.Errorf("invalid bech32 string: %w", err)
	}
	if prefix != AddressPrefix {
		return common.Address{}, fmt.Errorf("unexpected address prefix %q", prefix)
	}
	conv, err := bech32.ConvertBits(decoded, 5, 8, false)
	if err != nil {
		return common.Address{}, fmt.Errorf("error converting bits: %w", err)
	}
	if len(conv) != common.AddressLength {
		return common.Address{}, fmt.Errorf("address must be %d bytes, got %d", common.AddressLength, len(conv))
	}
	return common.BytesToAddress(conv), nil
}

// ParseAddress accepts either a 0x-prefixed hex address or a bech32 farm
// address.
func ParseAddress(raw string) (common.Address, error) {
	raw = strings.TrimSpace(raw)
	if common.IsHexAddress(raw) {
		return common.HexToAddress(raw), nil
	}
	if strings.HasPrefix(strings.ToLower(raw), AddressPrefix+"1") {
		return DecodeAddress(raw)
	}
	return common.Address{}, fmt.Errorf("invalid address %q", raw)
}
