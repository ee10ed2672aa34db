package exports

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"

	"farmchain/native/farming"
)

func digest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func formatUint(v uint64) string { return strconv.FormatUint(v, 10) }

func epochStatus(epoch farming.Epoch) string {
	switch {
	case epoch.Ghost:
		return "ghost"
	case epoch.EndedAt != 0:
		return "closed"
	default:
		return "open"
	}
}
