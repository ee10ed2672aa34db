package server

import (
	"farmchain/native/farming"
)

type boostJSON struct {
	Percent    uint64 `json:"percent"`
	Collection string `json:"collection"`
}

type unitJSON struct {
	ID         string `json:"id"`
	Collection string `json:"collection"`
	Amount     uint64 `json:"amount"`
}

type bucketJSON struct {
	Bucket uint64 `json:"bucket"`
	Amount uint64 `json:"amount"`
}

type poolJSON struct {
	ID             string     `json:"id"`
	Owner          string     `json:"owner"`
	Collection     string     `json:"collection,omitempty"`
	Kind           string     `json:"kind"`
	StakeAsset     string     `json:"stakeAsset"`
	RewardAsset    string     `json:"rewardAsset"`
	StakeDecimals  uint8      `json:"stakeDecimals"`
	RewardDecimals uint8      `json:"rewardDecimals"`
	Boost          *boostJSON `json:"boost,omitempty"`
	CreatedAt      uint64     `json:"createdAt"`
	EndTime        uint64     `json:"endTime"`
	Epochs         int        `json:"epochs"`
	CurrentEpoch   uint64     `json:"currentEpoch"`
	Stakers        int        `json:"stakers"`
	TotalStaked    uint64     `json:"totalStaked"`
	TotalBoosted   uint64     `json:"totalBoosted"`
	RewardBalance  uint64     `json:"rewardBalance"`
	StakeBalance   uint64     `json:"stakeBalance"`
	TotalDeposited uint64     `json:"totalDeposited"`
	TotalHarvested uint64     `json:"totalHarvested"`
	LocalEmergency bool       `json:"localEmergency"`
	Emergency      bool       `json:"emergency"`
}

type stakeJSON struct {
	Who           string       `json:"who"`
	Buckets       []bucketJSON `json:"buckets"`
	Total         uint64       `json:"total"`
	Pending       uint64       `json:"pending"`
	UnlockTime    uint64       `json:"unlockTime"`
	CanUnstake    bool         `json:"canUnstake"`
	BoostedAmount uint64       `json:"boostedAmount"`
	Collateral    *unitJSON    `json:"collateral,omitempty"`
}

type epochJSON struct {
	Index              int    `json:"index"`
	RewardRate         uint64 `json:"rewardRate"`
	AccumReward        string `json:"accumReward"`
	StartTime          uint64 `json:"startTime"`
	LastUpdateTime     uint64 `json:"lastUpdateTime"`
	EndTime            uint64 `json:"endTime"`
	EndedAt            uint64 `json:"endedAt,omitempty"`
	RewardsFunded      uint64 `json:"rewardsFunded"`
	RewardsDistributed uint64 `json:"rewardsDistributed"`
	Ghost              bool   `json:"ghost"`
}

func poolJSONFrom(view farming.PoolView) poolJSON {
	out := poolJSON{
		ID:             view.ID.String(),
		Owner:          view.Key.Owner.Hex(),
		Collection:     view.Key.Collection,
		Kind:           view.Kind.String(),
		StakeAsset:     view.StakeAsset,
		RewardAsset:    view.RewardAsset,
		StakeDecimals:  view.StakeDecimals,
		RewardDecimals: view.RewardDecimals,
		CreatedAt:      view.CreatedAt,
		EndTime:        view.EndTime,
		Epochs:         view.Epochs,
		CurrentEpoch:   view.CurrentEpoch,
		Stakers:        view.Stakers,
		TotalStaked:    view.TotalStaked,
		TotalBoosted:   view.TotalBoosted,
		RewardBalance:  view.RewardBalance,
		StakeBalance:   view.StakeBalance,
		TotalDeposited: view.TotalDeposited,
		TotalHarvested: view.TotalHarvested,
		LocalEmergency: view.LocalEmergency,
		Emergency:      view.Emergency,
	}
	if view.Boost != nil {
		out.Boost = &boostJSON{Percent: view.Boost.Percent, Collection: view.Boost.Collection}
	}
	return out
}

func stakeJSONFrom(view farming.StakeView, canUnstake bool) stakeJSON {
	out := stakeJSON{
		Who:           view.Who.Hex(),
		Buckets:       bucketsJSON(view.Buckets),
		Total:         view.Total,
		Pending:       view.Pending,
		UnlockTime:    view.UnlockTime,
		CanUnstake:    canUnstake,
		BoostedAmount: view.BoostedAmount,
	}
	if view.Collateral != nil {
		unit := unitJSONFrom(*view.Collateral)
		out.Collateral = &unit
	}
	return out
}

func bucketsJSON(parts []farming.StakeInput) []bucketJSON {
	out := make([]bucketJSON, 0, len(parts))
	for _, part := range parts {
		out = append(out, bucketJSON{Bucket: uint64(part.Bucket), Amount: part.Amount})
	}
	return out
}

func unitJSONFrom(unit farming.CollateralUnit) unitJSON {
	return unitJSON{ID: unit.ID, Collection: unit.Collection, Amount: unit.Amount}
}

func epochJSONFrom(index int, epoch farming.Epoch) epochJSON {
	return epochJSON{
		Index:              index,
		RewardRate:         epoch.RewardRate,
		AccumReward:        epoch.AccumReward.Dec(),
		StartTime:          epoch.StartTime,
		LastUpdateTime:     epoch.LastUpdateTime,
		EndTime:            epoch.EndTime,
		EndedAt:            epoch.EndedAt,
		RewardsFunded:      epoch.RewardsFunded,
		RewardsDistributed: epoch.RewardsDistributed,
		Ghost:              epoch.Ghost,
	}
}
