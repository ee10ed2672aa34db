package exports

import (
	"bytes"
	"fmt"

	"github.com/xitongsys/parquet-go-source/writerfile"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"

	"farmchain/native/farming"
)

type epochRow struct {
	Pool               string `parquet:"name=pool, type=BYTE_ARRAY, convertedtype=UTF8"`
	Index              int32  `parquet:"name=index, type=INT32"`
	Status             string `parquet:"name=status, type=BYTE_ARRAY, convertedtype=UTF8"`
	RewardRate         int64  `parquet:"name=reward_rate, type=INT64"`
	AccumReward        string `parquet:"name=accum_reward, type=BYTE_ARRAY, convertedtype=UTF8"`
	StartTime          int64  `parquet:"name=start_time, type=INT64"`
	LastUpdateTime     int64  `parquet:"name=last_update_time, type=INT64"`
	EndTime            int64  `parquet:"name=end_time, type=INT64"`
	EndedAt            int64  `parquet:"name=ended_at, type=INT64"`
	RewardsFunded      int64  `parquet:"name=rewards_funded, type=INT64"`
	RewardsDistributed int64  `parquet:"name=rewards_distributed, type=INT64"`
}

// EpochsParquet encodes the epoch ledger as a snappy-compressed parquet file.
// Unsigned counters are stored as INT64; values above MaxInt64 are rejected.
func EpochsParquet(pool farming.PoolID, epochs []farming.Epoch) ([]byte, string, error) {
	buffer := &bytes.Buffer{}
	pw, err := writer.NewParquetWriter(writerfile.NewWriterFile(buffer), new(epochRow), 1)
	if err != nil {
		return nil, "", fmt.Errorf("exports: parquet schema: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	id := pool.String()
	for i, epoch := range epochs {
		row, err := toRow(id, i, epoch)
		if err != nil {
			pw.WriteStop()
			return nil, "", err
		}
		if err := pw.Write(row); err != nil {
			pw.WriteStop()
			return nil, "", fmt.Errorf("exports: parquet write: %w", err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		return nil, "", fmt.Errorf("exports: parquet flush: %w", err)
	}
	data := buffer.Bytes()
	return data, digest(data), nil
}

func toRow(pool string, index int, epoch farming.Epoch) (*epochRow, error) {
	values := []uint64{
		epoch.RewardRate, epoch.StartTime, epoch.LastUpdateTime, epoch.EndTime,
		epoch.EndedAt, epoch.RewardsFunded, epoch.RewardsDistributed,
	}
	for _, v := range values {
		if v > 1<<63-1 {
			return nil, fmt.Errorf("exports: epoch %d value %d exceeds int64", index, v)
		}
	}
	return &epochRow{
		Pool:               pool,
		Index:              int32(index),
		Status:             epochStatus(epoch),
		RewardRate:         int64(epoch.RewardRate),
		AccumReward:        epoch.AccumReward.Dec(),
		StartTime:          int64(epoch.StartTime),
		LastUpdateTime:     int64(epoch.LastUpdateTime),
		EndTime:            int64(epoch.EndTime),
		EndedAt:            int64(epoch.EndedAt),
		RewardsFunded:      int64(epoch.RewardsFunded),
		RewardsDistributed: int64(epoch.RewardsDistributed),
	}, nil
}
