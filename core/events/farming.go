package events

import (
	"encoding/hex"
	"strconv"

	"github.com/ethereum/go-ethereum/common"

	"farmchain/core/types"
)

const (
	// TypeFarmPoolRegistered is emitted when a pool is created.
	TypeFarmPoolRegistered = "farm.poolRegistered"
	// TypeFarmRewardDeposited is emitted when a pool is refunded.
	TypeFarmRewardDeposited = "farm.rewardDeposited"
	// TypeFarmStaked is emitted when stake is added.
	TypeFarmStaked = "farm.staked"
	// TypeFarmUnstaked is emitted when stake is withdrawn.
	TypeFarmUnstaked = "farm.unstaked"
	// TypeFarmHarvested is emitted when rewards are paid out.
	TypeFarmHarvested = "farm.harvested"
	// TypeFarmBoostAttached is emitted when collateral boosts a stake.
	TypeFarmBoostAttached = "farm.boostAttached"
	// TypeFarmBoostDetached is emitted when collateral is returned.
	TypeFarmBoostDetached = "farm.boostDetached"
	// TypeFarmEmergencyEnabled is emitted when a pool is locked.
	TypeFarmEmergencyEnabled = "farm.emergencyEnabled"
	// TypeFarmEmergencyUnstaked is emitted when a stake is drained during an emergency.
	TypeFarmEmergencyUnstaked = "farm.emergencyUnstaked"
	// TypeFarmTreasuryWithdrawn is emitted when rewards are swept to the treasury.
	TypeFarmTreasuryWithdrawn = "farm.treasuryWithdrawn"
)

func poolAttr(pool [32]byte) string { return "0x" + hex.EncodeToString(pool[:]) }

func farmAttrs(pool [32]byte, who common.Address) map[string]string {
	return map[string]string{
		"pool": poolAttr(pool),
		"who":  who.Hex(),
	}
}

// FarmPoolRegistered captures the creation of a pool.
type FarmPoolRegistered struct {
	Pool       [32]byte
	Owner      common.Address
	Collection string
	Funding    uint64
	EndTime    uint64
}

// EventType satisfies the Event interface.
func (FarmPoolRegistered) EventType() string { return TypeFarmPoolRegistered }

// Event converts the structured payload into a broadcastable event.
func (e FarmPoolRegistered) Event() *types.Event {
	attrs := farmAttrs(e.Pool, e.Owner)
	attrs["funding"] = strconv.FormatUint(e.Funding, 10)
	attrs["endTime"] = strconv.FormatUint(e.EndTime, 10)
	if e.Collection != "" {
		attrs["collection"] = e.Collection
	}
	return &types.Event{Type: TypeFarmPoolRegistered, Attributes: attrs}
}

// FarmRewardDeposited captures a refund of the reward stream.
type FarmRewardDeposited struct {
	Pool           [32]byte
	Who            common.Address
	NewAmount      uint64
	RolloverAmount uint64
	NewEndTime     uint64
}

// EventType satisfies the Event interface.
func (FarmRewardDeposited) EventType() string { return TypeFarmRewardDeposited }

// Event converts the structured payload into a broadcastable event.
func (e FarmRewardDeposited) Event() *types.Event {
	attrs := farmAttrs(e.Pool, e.Who)
	attrs["newAmount"] = strconv.FormatUint(e.NewAmount, 10)
	attrs["rolloverAmount"] = strconv.FormatUint(e.RolloverAmount, 10)
	attrs["newEndTime"] = strconv.FormatUint(e.NewEndTime, 10)
	return &types.Event{Type: TypeFarmRewardDeposited, Attributes: attrs}
}

// FarmStakeChanged captures a stake or unstake of an amount.
type FarmStakeChanged struct {
	Pool     [32]byte
	Who      common.Address
	Amount   uint64
	Bucket   uint64
	Bucketed bool
	Removed  bool
}

// EventType satisfies the Event interface.
func (e FarmStakeChanged) EventType() string {
	if e.Removed {
		return TypeFarmUnstaked
	}
	return TypeFarmStaked
}

// Event converts the structured payload into a broadcastable event.
func (e FarmStakeChanged) Event() *types.Event {
	attrs := farmAttrs(e.Pool, e.Who)
	attrs["amount"] = strconv.FormatUint(e.Amount, 10)
	if e.Bucketed {
		attrs["bucket"] = strconv.FormatUint(e.Bucket, 10)
	}
	return &types.Event{Type: e.EventType(), Attributes: attrs}
}

// FarmHarvested captures a reward payout.
type FarmHarvested struct {
	Pool   [32]byte
	Who    common.Address
	Amount uint64
}

// EventType satisfies the Event interface.
func (FarmHarvested) EventType() string { return TypeFarmHarvested }

// Event converts the structured payload into a broadcastable event.
func (e FarmHarvested) Event() *types.Event {
	attrs := farmAttrs(e.Pool, e.Who)
	attrs["amount"] = strconv.FormatUint(e.Amount, 10)
	return &types.Event{Type: TypeFarmHarvested, Attributes: attrs}
}

// FarmBoostChanged captures a boost attach or detach.
type FarmBoostChanged struct {
	Pool     [32]byte
	Who      common.Address
	Unit     string
	Detached bool
}

// EventType satisfies the Event interface.
func (e FarmBoostChanged) EventType() string {
	if e.Detached {
		return TypeFarmBoostDetached
	}
	return TypeFarmBoostAttached
}

// Event converts the structured payload into a broadcastable event.
func (e FarmBoostChanged) Event() *types.Event {
	attrs := farmAttrs(e.Pool, e.Who)
	if e.Unit != "" {
		attrs["unit"] = e.Unit
	}
	return &types.Event{Type: e.EventType(), Attributes: attrs}
}

// FarmEmergencyEnabled captures the irreversible emergency lock of a pool.
type FarmEmergencyEnabled struct {
	Pool  [32]byte
	Admin common.Address
}

// EventType satisfies the Event interface.
func (FarmEmergencyEnabled) EventType() string { return TypeFarmEmergencyEnabled }

// Event converts the structured payload into a broadcastable event.
func (e FarmEmergencyEnabled) Event() *types.Event {
	return &types.Event{Type: TypeFarmEmergencyEnabled, Attributes: farmAttrs(e.Pool, e.Admin)}
}

// FarmEmergencyUnstaked captures a stake drained without reward accounting.
type FarmEmergencyUnstaked struct {
	Pool   [32]byte
	Who    common.Address
	Amount uint64
	Unit   string
}

// EventType satisfies the Event interface.
func (FarmEmergencyUnstaked) EventType() string { return TypeFarmEmergencyUnstaked }

// Event converts the structured payload into a broadcastable event.
func (e FarmEmergencyUnstaked) Event() *types.Event {
	attrs := farmAttrs(e.Pool, e.Who)
	attrs["amount"] = strconv.FormatUint(e.Amount, 10)
	if e.Unit != "" {
		attrs["unit"] = e.Unit
	}
	return &types.Event{Type: TypeFarmEmergencyUnstaked, Attributes: attrs}
}

// FarmTreasuryWithdrawn captures a sweep of reward funds.
type FarmTreasuryWithdrawn struct {
	Pool   [32]byte
	Admin  common.Address
	Amount uint64
}

// EventType satisfies the Event interface.
func (FarmTreasuryWithdrawn) EventType() string { return TypeFarmTreasuryWithdrawn }

// Event converts the structured payload into a broadcastable event.
func (e FarmTreasuryWithdrawn) Event() *types.Event {
	attrs := farmAttrs(e.Pool, e.Admin)
	attrs["amount"] = strconv.FormatUint(e.Amount, 10)
	return &types.Event{Type: TypeFarmTreasuryWithdrawn, Attributes: attrs}
}
