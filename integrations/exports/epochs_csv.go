package exports

import (
	"bytes"
	"encoding/csv"

	"farmchain/native/farming"
)

var epochHeader = []string{
	"pool", "index", "status", "reward_rate", "accum_reward", "start_time",
	"last_update_time", "end_time", "ended_at", "rewards_funded", "rewards_distributed",
}

// EpochsCSV builds a CSV export of a pool's epoch ledger and returns the
// serialised data alongside a SHA-256 checksum of the payload.
func EpochsCSV(pool farming.PoolID, epochs []farming.Epoch) ([]byte, string, error) {
	buffer := &bytes.Buffer{}
	writer := csv.NewWriter(buffer)
	if err := writer.Write(epochHeader); err != nil {
		return nil, "", err
	}
	id := pool.String()
	for i, epoch := range epochs {
		record := []string{
			id,
			formatUint(uint64(i)),
			epochStatus(epoch),
			formatUint(epoch.RewardRate),
			epoch.AccumReward.Dec(),
			formatUint(epoch.StartTime),
			formatUint(epoch.LastUpdateTime),
			formatUint(epoch.EndTime),
			formatUint(epoch.EndedAt),
			formatUint(epoch.RewardsFunded),
			formatUint(epoch.RewardsDistributed),
		}
		if err := writer.Write(record); err != nil {
			return nil, "", err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, "", err
	}
	data := buffer.Bytes()
	return data, digest(data), nil
}
