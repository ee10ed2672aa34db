package exports

import (
	"bytes"
	"encoding/json"

	"farmchain/native/farming"
)

type epochLine struct {
	Pool               string `json:"pool"`
	Index              int    `json:"index"`
	Status             string `json:"status"`
	RewardRate         uint64 `json:"reward_rate"`
	AccumReward        string `json:"accum_reward"`
	StartTime          uint64 `json:"start_time"`
	LastUpdateTime     uint64 `json:"last_update_time"`
	EndTime            uint64 `json:"end_time"`
	EndedAt            uint64 `json:"ended_at,omitempty"`
	RewardsFunded      uint64 `json:"rewards_funded"`
	RewardsDistributed uint64 `json:"rewards_distributed"`
}

// EpochsJSONL builds a JSON Lines export of a pool's epoch ledger and returns
// the serialised payload alongside a checksum.
func EpochsJSONL(pool farming.PoolID, epochs []farming.Epoch) ([]byte, string, error) {
	buffer := &bytes.Buffer{}
	encoder := json.NewEncoder(buffer)
	encoder.SetEscapeHTML(false)
	id := pool.String()
	for i, epoch := range epochs {
		line := epochLine{
			Pool:               id,
			Index:              i,
			Status:             epochStatus(epoch),
			RewardRate:         epoch.RewardRate,
			AccumReward:        epoch.AccumReward.Dec(),
			StartTime:          epoch.StartTime,
			LastUpdateTime:     epoch.LastUpdateTime,
			EndTime:            epoch.EndTime,
			EndedAt:            epoch.EndedAt,
			RewardsFunded:      epoch.RewardsFunded,
			RewardsDistributed: epoch.RewardsDistributed,
		}
		if err := encoder.Encode(line); err != nil {
			return nil, "", err
		}
	}
	data := buffer.Bytes()
	return data, digest(data), nil
}
