package farming

import (
	"bytes"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"

	"farmchain/storage"
)

var (
	poolKeyPrefix = []byte("farming/pool/")
	poolIndexKey  = []byte("farming/index")
)

// Registry maps pool identifiers to pools persisted in a key-value store.
// Every Load decodes a fresh copy, so callers mutate a private working copy
// and publish it with Save only once an operation has fully succeeded.
// Pool records are owned by their pool's writer; the shared index is
// serialised by the registry itself.
type Registry struct {
	db storage.Database

	indexMu sync.Mutex
}

// NewRegistry wires a registry to the supplied database.
func NewRegistry(db storage.Database) *Registry {
	return &Registry{db: db}
}

func poolStorageKey(id PoolID) []byte {
	key := make([]byte, 0, len(poolKeyPrefix)+len(id))
	key = append(key, poolKeyPrefix...)
	return append(key, id[:]...)
}

// Has reports whether a pool is registered under id.
func (r *Registry) Has(id PoolID) (bool, error) {
	if r == nil || r.db == nil {
		return false, errNilState
	}
	_, err := r.db.Get(poolStorageKey(id))
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("farming registry: lookup pool: %w", err)
	}
	return true, nil
}

// Load decodes the pool registered under id.
func (r *Registry) Load(id PoolID) (*Pool, error) {
	if r == nil || r.db == nil {
		return nil, errNilState
	}
	raw, err := r.db.Get(poolStorageKey(id))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrPoolNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("farming registry: load pool: %w", err)
	}
	var rec poolRecord
	if err := rlp.DecodeBytes(raw, &rec); err != nil {
		return nil, fmt.Errorf("farming registry: decode pool: %w", err)
	}
	return rec.pool()
}

// Save persists p, adding it to the index on first save. A first save that
// cannot be indexed removes the pool record again.
func (r *Registry) Save(p *Pool) error {
	if r == nil || r.db == nil {
		return errNilState
	}
	encoded, err := rlp.EncodeToBytes(newPoolRecord(p))
	if err != nil {
		return fmt.Errorf("farming registry: encode pool: %w", err)
	}
	exists, err := r.Has(p.ID)
	if err != nil {
		return err
	}
	if exists {
		if err := r.db.Put(poolStorageKey(p.ID), encoded); err != nil {
			return fmt.Errorf("farming registry: store pool: %w", err)
		}
		return nil
	}

	r.indexMu.Lock()
	defer r.indexMu.Unlock()
	if err := r.db.Put(poolStorageKey(p.ID), encoded); err != nil {
		return fmt.Errorf("farming registry: store pool: %w", err)
	}
	if err := r.index(p.ID); err != nil {
		if delErr := r.db.Delete(poolStorageKey(p.ID)); delErr != nil {
			return errors.Join(err, fmt.Errorf("farming registry: remove unindexed pool: %w", delErr))
		}
		return err
	}
	return nil
}

// index appends id to the pool index. Callers hold indexMu.
func (r *Registry) index(id PoolID) error {
	ids, err := r.IDs()
	if err != nil {
		return err
	}
	for _, existing := range ids {
		if existing == id {
			return nil
		}
	}
	ids = append(ids, id)
	index, err := rlp.EncodeToBytes(ids)
	if err != nil {
		return fmt.Errorf("farming registry: encode index: %w", err)
	}
	if err := r.db.Put(poolIndexKey, index); err != nil {
		return fmt.Errorf("farming registry: store index: %w", err)
	}
	return nil
}

// IDs lists registered pools in registration order.
func (r *Registry) IDs() ([]PoolID, error) {
	if r == nil || r.db == nil {
		return nil, errNilState
	}
	raw, err := r.db.Get(poolIndexKey)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("farming registry: load index: %w", err)
	}
	var ids []PoolID
	if err := rlp.DecodeBytes(raw, &ids); err != nil {
		return nil, fmt.Errorf("farming registry: decode index: %w", err)
	}
	return ids, nil
}

type poolRecord struct {
	Owner          common.Address
	Collection     string
	Kind           uint8
	StakeAsset     string
	RewardAsset    string
	StakeDecimals  uint8
	RewardDecimals uint8
	Scale          *big.Int
	CreatedAt      uint64
	Epochs         []epochRecord
	CurrentEpoch   uint64
	Stakes         []stakeEntry
	TotalStaked    uint64
	TotalBoosted   uint64
	HasBoost       bool
	Boost          BoostConfig
	Emergency      uint8
	RewardBalance  uint64
	StakeBalance   uint64
	TotalDeposited uint64
	TotalHarvested uint64
}

type epochRecord struct {
	RewardRate         uint64
	AccumReward        *big.Int
	StartTime          uint64
	LastUpdateTime     uint64
	EndTime            uint64
	RewardsFunded      uint64
	RewardsDistributed uint64
	EndedAt            uint64
	Ghost              bool
}

type stakeEntry struct {
	Who           common.Address
	Buckets       []bucketEntry
	Unobtainable  []*big.Int
	Earned        uint64
	UnlockTime    uint64
	HasCollateral bool
	Collateral    CollateralUnit
	BoostedAmount uint64
}

type bucketEntry struct {
	Bucket uint64
	Amount uint64
}

func newPoolRecord(p *Pool) *poolRecord {
	rec := &poolRecord{
		Owner:          p.Key.Owner,
		Collection:     p.Key.Collection,
		Kind:           uint8(p.Kind),
		StakeAsset:     p.StakeAsset,
		RewardAsset:    p.RewardAsset,
		StakeDecimals:  p.StakeDecimals,
		RewardDecimals: p.RewardDecimals,
		Scale:          p.Scale.ToBig(),
		CreatedAt:      p.CreatedAt,
		CurrentEpoch:   p.CurrentEpoch,
		TotalStaked:    p.TotalStaked,
		TotalBoosted:   p.TotalBoosted,
		Emergency:      uint8(p.Emergency),
		RewardBalance:  p.RewardBalance,
		StakeBalance:   p.StakeBalance,
		TotalDeposited: p.TotalDeposited,
		TotalHarvested: p.TotalHarvested,
	}
	if p.Boost != nil {
		rec.HasBoost = true
		rec.Boost = *p.Boost
	}
	rec.Epochs = make([]epochRecord, len(p.Epochs))
	for i, e := range p.Epochs {
		rec.Epochs[i] = epochRecord{
			RewardRate:         e.RewardRate,
			AccumReward:        e.AccumReward.ToBig(),
			StartTime:          e.StartTime,
			LastUpdateTime:     e.LastUpdateTime,
			EndTime:            e.EndTime,
			RewardsFunded:      e.RewardsFunded,
			RewardsDistributed: e.RewardsDistributed,
			EndedAt:            e.EndedAt,
			Ghost:              e.Ghost,
		}
	}
	rec.Stakes = make([]stakeEntry, 0, len(p.Stakes))
	for who, s := range p.Stakes {
		entry := stakeEntry{
			Who:           who,
			Earned:        s.Earned,
			UnlockTime:    s.UnlockTime,
			BoostedAmount: s.BoostedAmount,
		}
		for _, part := range s.Shape.Buckets() {
			entry.Buckets = append(entry.Buckets, bucketEntry{Bucket: uint64(part.Bucket), Amount: part.Amount})
		}
		entry.Unobtainable = make([]*big.Int, len(s.Unobtainable))
		for i := range s.Unobtainable {
			entry.Unobtainable[i] = s.Unobtainable[i].ToBig()
		}
		if s.Collateral != nil {
			entry.HasCollateral = true
			entry.Collateral = *s.Collateral
		}
		rec.Stakes = append(rec.Stakes, entry)
	}
	sort.Slice(rec.Stakes, func(i, j int) bool {
		return bytes.Compare(rec.Stakes[i].Who[:], rec.Stakes[j].Who[:]) < 0
	})
	return rec
}

func toUint256(v *big.Int) (uint256.Int, error) {
	var out uint256.Int
	if v == nil {
		return out, nil
	}
	converted, overflow := uint256.FromBig(v)
	if overflow {
		return out, ErrArithmeticOverflow
	}
	out.Set(converted)
	return out, nil
}

func (rec *poolRecord) pool() (*Pool, error) {
	key := PoolKey{Owner: rec.Owner, Collection: rec.Collection}
	scale, err := toUint256(rec.Scale)
	if err != nil {
		return nil, err
	}
	p := &Pool{
		Key:            key,
		ID:             key.ID(),
		Kind:           PoolKind(rec.Kind),
		StakeAsset:     rec.StakeAsset,
		RewardAsset:    rec.RewardAsset,
		StakeDecimals:  rec.StakeDecimals,
		RewardDecimals: rec.RewardDecimals,
		Scale:          scale,
		CreatedAt:      rec.CreatedAt,
		CurrentEpoch:   rec.CurrentEpoch,
		Stakes:         make(map[Identity]*StakeRecord, len(rec.Stakes)),
		TotalStaked:    rec.TotalStaked,
		TotalBoosted:   rec.TotalBoosted,
		Emergency:      EmergencyState(rec.Emergency),
		RewardBalance:  rec.RewardBalance,
		StakeBalance:   rec.StakeBalance,
		TotalDeposited: rec.TotalDeposited,
		TotalHarvested: rec.TotalHarvested,
	}
	if rec.HasBoost {
		boost := rec.Boost
		p.Boost = &boost
	}
	p.Epochs = make([]Epoch, len(rec.Epochs))
	for i, e := range rec.Epochs {
		accum, err := toUint256(e.AccumReward)
		if err != nil {
			return nil, err
		}
		p.Epochs[i] = Epoch{
			RewardRate:         e.RewardRate,
			AccumReward:        accum,
			StartTime:          e.StartTime,
			LastUpdateTime:     e.LastUpdateTime,
			EndTime:            e.EndTime,
			RewardsFunded:      e.RewardsFunded,
			RewardsDistributed: e.RewardsDistributed,
			EndedAt:            e.EndedAt,
			Ghost:              e.Ghost,
		}
	}
	if len(p.Epochs) == 0 || p.CurrentEpoch >= uint64(len(p.Epochs)) {
		return nil, fmt.Errorf("farming registry: pool %s has inconsistent epoch index", p.ID)
	}
	for _, entry := range rec.Stakes {
		s := newStakeRecord(p.Kind)
		for _, part := range entry.Buckets {
			if err := s.Shape.Add(BucketID(part.Bucket), part.Amount); err != nil {
				return nil, err
			}
		}
		s.Unobtainable = make([]uint256.Int, len(entry.Unobtainable))
		for i, v := range entry.Unobtainable {
			converted, err := toUint256(v)
			if err != nil {
				return nil, err
			}
			s.Unobtainable[i] = converted
		}
		s.Earned = entry.Earned
		s.UnlockTime = entry.UnlockTime
		s.BoostedAmount = entry.BoostedAmount
		if entry.HasCollateral {
			unit := entry.Collateral
			s.Collateral = &unit
		}
		p.Stakes[entry.Who] = s
	}
	return p, nil
}
