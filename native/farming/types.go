package farming

import (
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"golang.org/x/text/unicode/norm"
	"lukechampine.com/blake3"
)

// Identity is the account address of a staker, owner or admin.
type Identity = common.Address

// PoolKey locates a pool in the registry. Scalar pools are keyed by owner
// alone; bucketed pools add the name of the staked collection.
type PoolKey struct {
	Owner      common.Address
	Collection string
}

// NewPoolKey normalises the collection name and returns the key.
func NewPoolKey(owner common.Address, collection string) PoolKey {
	return PoolKey{Owner: owner, Collection: NormalizeCollection(collection)}
}

// NormalizeCollection folds a collection name to its NFKC form so visually
// identical names address the same pool and boost collection.
func NormalizeCollection(name string) string {
	return norm.NFKC.String(strings.TrimSpace(name))
}

// ID derives the stable pool identifier.
func (k PoolKey) ID() PoolID {
	buf := make([]byte, 0, common.AddressLength+len(k.Collection))
	buf = append(buf, k.Owner.Bytes()...)
	buf = append(buf, k.Collection...)
	return PoolID(blake3.Sum256(buf))
}

// Bucketed reports whether the key addresses a collection-keyed pool.
func (k PoolKey) Bucketed() bool { return k.Collection != "" }

// PoolID identifies a pool independently of its key encoding.
type PoolID [32]byte

func (id PoolID) String() string { return "0x" + hex.EncodeToString(id[:]) }

// Vault returns the custody account that holds the pool's funds.
func (id PoolID) Vault() common.Address { return common.BytesToAddress(id[:common.AddressLength]) }

// ParsePoolID decodes a hex encoded pool identifier.
func ParsePoolID(raw string) (PoolID, error) {
	var id PoolID
	trimmed := strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(raw), "0x"), "0X")
	decoded, err := hex.DecodeString(trimmed)
	if err != nil || len(decoded) != len(id) {
		return id, ErrPoolNotFound
	}
	copy(id[:], decoded)
	return id, nil
}

// PoolKind selects the stake shape used by every record in a pool.
type PoolKind uint8

const (
	KindScalar PoolKind = iota
	KindBucketed
)

func (k PoolKind) String() string {
	if k == KindBucketed {
		return "bucketed"
	}
	return "scalar"
}

// BucketID names one discrete sub-balance of a bucketed stake.
type BucketID uint64

// BoostConfig enables collateral boosts for a pool.
type BoostConfig struct {
	Percent    uint64
	Collection string
}

// CollateralUnit is a discrete asset attached to a stake record to boost it.
type CollateralUnit struct {
	ID         string
	Collection string
	Amount     uint64
}

// EmergencyState is the terminal emergency switch of a pool. The only legal
// transition is EmergencyNormal to EmergencyLocked.
type EmergencyState uint8

const (
	EmergencyNormal EmergencyState = iota
	EmergencyLocked
)

// Locked reports whether the pool has entered its emergency state.
func (s EmergencyState) Locked() bool { return s == EmergencyLocked }

func (s EmergencyState) lock() (EmergencyState, error) {
	if s == EmergencyLocked {
		return s, ErrEmergency
	}
	return EmergencyLocked, nil
}

// Epoch is one funding period of a pool.
type Epoch struct {
	RewardRate         uint64
	AccumReward        uint256.Int
	StartTime          uint64
	LastUpdateTime     uint64
	EndTime            uint64
	RewardsFunded      uint64
	RewardsDistributed uint64
	EndedAt            uint64
	Ghost              bool
}

// StakeRecord is the per-user position inside a pool.
type StakeRecord struct {
	Shape         StakeShape
	Unobtainable  []uint256.Int
	Earned        uint64
	UnlockTime    uint64
	Collateral    *CollateralUnit
	BoostedAmount uint64
}

// Weight returns the effective stake weight including any boost.
func (r *StakeRecord) Weight() (uint64, error) {
	return addUint64(r.Shape.Total(), r.BoostedAmount)
}

// Pool aggregates the epoch ledger, the stake ledger and the balances held
// in custody for one staking pool.
type Pool struct {
	Key            PoolKey
	ID             PoolID
	Kind           PoolKind
	StakeAsset     string
	RewardAsset    string
	StakeDecimals  uint8
	RewardDecimals uint8
	Scale          uint256.Int
	CreatedAt      uint64

	Epochs       []Epoch
	CurrentEpoch uint64

	Stakes       map[Identity]*StakeRecord
	TotalStaked  uint64
	TotalBoosted uint64
	Boost        *BoostConfig
	Emergency    EmergencyState

	RewardBalance  uint64
	StakeBalance   uint64
	TotalDeposited uint64
	TotalHarvested uint64
}

// TotalWeighted returns the stake weight used by the accumulator.
func (p *Pool) TotalWeighted() (uint64, error) {
	return addUint64(p.TotalStaked, p.TotalBoosted)
}

func (p *Pool) current() *Epoch {
	return &p.Epochs[p.CurrentEpoch]
}

// PoolParams describes a pool at registration time.
type PoolParams struct {
	Collection     string
	StakeAsset     string
	RewardAsset    string
	StakeDecimals  uint8
	RewardDecimals uint8
	Boost          *BoostConfig
}

// StakeInput names an amount and, for bucketed pools, the bucket it belongs
// to. Scalar pools ignore the bucket.
type StakeInput struct {
	Bucket BucketID
	Amount uint64
}

// Withdrawal is returned by an emergency unstake.
type Withdrawal struct {
	Stake      []StakeInput
	Collateral *CollateralUnit
}

// Total sums the withdrawn stake across buckets.
func (w Withdrawal) Total() uint64 {
	var total uint64
	for _, part := range w.Stake {
		total += part.Amount
	}
	return total
}

// BucketAsset names the custody asset backing one bucket of a collection.
func BucketAsset(stakeAsset string, bucket BucketID) string {
	return stakeAsset + "#" + strconv.FormatUint(uint64(bucket), 10)
}

// StakeAssetFor returns the custody asset used for a stake input.
func (p *Pool) StakeAssetFor(bucket BucketID) string {
	if p.Kind == KindBucketed {
		return BucketAsset(p.StakeAsset, bucket)
	}
	return p.StakeAsset
}
