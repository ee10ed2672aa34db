package farming

// Read queries load a private copy of the pool and advance it to now
// without saving, so they observe exactly what a mutating call at now would.

// StakeView summarises one stake record.
type StakeView struct {
	Who           Identity
	Buckets       []StakeInput
	Total         uint64
	Pending       uint64
	UnlockTime    uint64
	BoostedAmount uint64
	Collateral    *CollateralUnit
}

// PoolView summarises the aggregates of a pool.
type PoolView struct {
	ID             PoolID
	Key            PoolKey
	Kind           PoolKind
	StakeAsset     string
	RewardAsset    string
	StakeDecimals  uint8
	RewardDecimals uint8
	Boost          *BoostConfig
	CreatedAt      uint64
	EndTime        uint64
	Epochs         int
	CurrentEpoch   uint64
	Stakers        int
	TotalStaked    uint64
	TotalBoosted   uint64
	RewardBalance  uint64
	StakeBalance   uint64
	TotalDeposited uint64
	TotalHarvested uint64
	LocalEmergency bool
	Emergency      bool
}

func (e *Engine) snapshot(key PoolKey, now uint64) (*Pool, error) {
	if e.registry == nil {
		return nil, errNilState
	}
	pool, err := e.registry.Load(key.ID())
	if err != nil {
		return nil, err
	}
	if err := pool.advance(now, e.cfg.LockPeriodSeconds); err != nil {
		return nil, err
	}
	return pool, nil
}

func (e *Engine) load(key PoolKey) (*Pool, error) {
	if e.registry == nil {
		return nil, errNilState
	}
	return e.registry.Load(key.ID())
}

// PendingReward returns what who could harvest at now.
func (e *Engine) PendingReward(key PoolKey, who Identity, now uint64) (uint64, error) {
	pool, err := e.snapshot(key, now)
	if err != nil {
		return 0, err
	}
	rec, err := stakeRecordOf(pool, who)
	if err != nil {
		return 0, err
	}
	return pool.harvestable(rec)
}

// UnlockTime returns the earliest time who's lock expires on its own.
func (e *Engine) UnlockTime(key PoolKey, who Identity) (uint64, error) {
	pool, err := e.load(key)
	if err != nil {
		return 0, err
	}
	rec, err := stakeRecordOf(pool, who)
	if err != nil {
		return 0, err
	}
	return rec.UnlockTime, nil
}

// CanUnstake reports whether the lockup allows who to withdraw at now.
func (e *Engine) CanUnstake(key PoolKey, who Identity, now uint64) (bool, error) {
	pool, err := e.load(key)
	if err != nil {
		return false, err
	}
	rec, err := stakeRecordOf(pool, who)
	if err != nil {
		return false, err
	}
	return unstakeAllowed(rec, pool, now), nil
}

// BoostedAmount returns the extra weight who receives from collateral.
func (e *Engine) BoostedAmount(key PoolKey, who Identity) (uint64, error) {
	pool, err := e.load(key)
	if err != nil {
		return 0, err
	}
	rec, err := stakeRecordOf(pool, who)
	if err != nil {
		return 0, err
	}
	return rec.BoostedAmount, nil
}

// TotalStaked returns the raw stake held by the pool.
func (e *Engine) TotalStaked(key PoolKey) (uint64, error) {
	pool, err := e.load(key)
	if err != nil {
		return 0, err
	}
	return pool.TotalStaked, nil
}

// TotalBoosted returns the boost weight granted across the pool.
func (e *Engine) TotalBoosted(key PoolKey) (uint64, error) {
	pool, err := e.load(key)
	if err != nil {
		return 0, err
	}
	return pool.TotalBoosted, nil
}

// IsLocalEmergency reports whether the pool itself has been locked.
func (e *Engine) IsLocalEmergency(key PoolKey) (bool, error) {
	pool, err := e.load(key)
	if err != nil {
		return false, err
	}
	return pool.Emergency.Locked(), nil
}

// IsEmergency reports whether the pool is locked locally or by the
// platform wide flag.
func (e *Engine) IsEmergency(key PoolKey) (bool, error) {
	pool, err := e.load(key)
	if err != nil {
		return false, err
	}
	global, err := e.globalEmergency()
	if err != nil {
		return false, err
	}
	return inEmergency(pool, global), nil
}

// EpochInfo returns epoch index as observed at now.
func (e *Engine) EpochInfo(key PoolKey, index, now uint64) (Epoch, error) {
	pool, err := e.snapshot(key, now)
	if err != nil {
		return Epoch{}, err
	}
	if index >= uint64(len(pool.Epochs)) {
		return Epoch{}, ErrEpochNotFound
	}
	return pool.Epochs[index], nil
}

// Epochs returns the whole epoch ledger as observed at now.
func (e *Engine) Epochs(key PoolKey, now uint64) ([]Epoch, error) {
	pool, err := e.snapshot(key, now)
	if err != nil {
		return nil, err
	}
	return pool.Epochs, nil
}

// EpochCount returns the number of epochs recorded at now, ghosts included.
func (e *Engine) EpochCount(key PoolKey, now uint64) (uint64, error) {
	pool, err := e.snapshot(key, now)
	if err != nil {
		return 0, err
	}
	return uint64(len(pool.Epochs)), nil
}

// CurrentEpoch returns the index of the epoch that is current at now.
func (e *Engine) CurrentEpoch(key PoolKey, now uint64) (uint64, error) {
	pool, err := e.snapshot(key, now)
	if err != nil {
		return 0, err
	}
	return pool.CurrentEpoch, nil
}

// EndTime returns the end of the newest funded epoch.
func (e *Engine) EndTime(key PoolKey) (uint64, error) {
	pool, err := e.load(key)
	if err != nil {
		return 0, err
	}
	return pool.EndTime(), nil
}

// IsFinished reports whether every funded epoch has elapsed at now.
func (e *Engine) IsFinished(key PoolKey, now uint64) (bool, error) {
	pool, err := e.load(key)
	if err != nil {
		return false, err
	}
	return pool.Finished(now), nil
}

// StakeOf describes who's position at now, pending rewards included.
func (e *Engine) StakeOf(key PoolKey, who Identity, now uint64) (StakeView, error) {
	pool, err := e.snapshot(key, now)
	if err != nil {
		return StakeView{}, err
	}
	rec, err := stakeRecordOf(pool, who)
	if err != nil {
		return StakeView{}, err
	}
	pending, err := pool.harvestable(rec)
	if err != nil {
		return StakeView{}, err
	}
	view := StakeView{
		Who:           who,
		Buckets:       rec.Shape.Buckets(),
		Total:         rec.Shape.Total(),
		Pending:       pending,
		UnlockTime:    rec.UnlockTime,
		BoostedAmount: rec.BoostedAmount,
	}
	if rec.Collateral != nil {
		unit := *rec.Collateral
		view.Collateral = &unit
	}
	return view, nil
}

// PoolInfo summarises the pool at now.
func (e *Engine) PoolInfo(key PoolKey, now uint64) (PoolView, error) {
	pool, err := e.snapshot(key, now)
	if err != nil {
		return PoolView{}, err
	}
	return e.viewOf(pool)
}

// PoolInfoByID resolves a pool by identifier, as exposed over the API.
func (e *Engine) PoolInfoByID(id PoolID, now uint64) (PoolView, error) {
	if e.registry == nil {
		return PoolView{}, errNilState
	}
	pool, err := e.registry.Load(id)
	if err != nil {
		return PoolView{}, err
	}
	if err := pool.advance(now, e.cfg.LockPeriodSeconds); err != nil {
		return PoolView{}, err
	}
	return e.viewOf(pool)
}

// KeyOf resolves the registry key of a pool identifier.
func (e *Engine) KeyOf(id PoolID) (PoolKey, error) {
	if e.registry == nil {
		return PoolKey{}, errNilState
	}
	pool, err := e.registry.Load(id)
	if err != nil {
		return PoolKey{}, err
	}
	return pool.Key, nil
}

// Pools lists every registered pool identifier.
func (e *Engine) Pools() ([]PoolID, error) {
	if e.registry == nil {
		return nil, errNilState
	}
	return e.registry.IDs()
}

func (e *Engine) viewOf(pool *Pool) (PoolView, error) {
	global, err := e.globalEmergency()
	if err != nil {
		return PoolView{}, err
	}
	var boost *BoostConfig
	if pool.Boost != nil {
		cfg := *pool.Boost
		boost = &cfg
	}
	return PoolView{
		ID:             pool.ID,
		Key:            pool.Key,
		Kind:           pool.Kind,
		StakeAsset:     pool.StakeAsset,
		RewardAsset:    pool.RewardAsset,
		StakeDecimals:  pool.StakeDecimals,
		RewardDecimals: pool.RewardDecimals,
		Boost:          boost,
		CreatedAt:      pool.CreatedAt,
		EndTime:        pool.EndTime(),
		Epochs:         len(pool.Epochs),
		CurrentEpoch:   pool.CurrentEpoch,
		Stakers:        len(pool.Stakes),
		TotalStaked:    pool.TotalStaked,
		TotalBoosted:   pool.TotalBoosted,
		RewardBalance:  pool.RewardBalance,
		StakeBalance:   pool.StakeBalance,
		TotalDeposited: pool.TotalDeposited,
		TotalHarvested: pool.TotalHarvested,
		LocalEmergency: pool.Emergency.Locked(),
		Emergency:      inEmergency(pool, global),
	}, nil
}
