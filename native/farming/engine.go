package farming

import (
	"fmt"
	"log/slog"

	"farmchain/core/events"
	nativecommon "farmchain/native/common"
	"farmchain/observability/metrics"
)

// Custody moves fungible balances between accounts.
type Custody interface {
	Balance(owner Identity, asset string) uint64
	Transfer(from, to Identity, asset string, amount uint64) error
}

// CollateralVault resolves and moves discrete collateral units.
type CollateralVault interface {
	Describe(unitID string) (CollateralUnit, Identity, error)
	Transfer(unitID string, from, to Identity) error
}

// Engine orchestrates pool operations. Each operation works on a private
// copy of the pool and publishes it, together with its events, only when
// every step succeeded. The engine does not lock: callers serialise
// operations per pool.
type Engine struct {
	cfg        Config
	registry   *Registry
	custody    Custody
	collateral CollateralVault
	emergency  nativecommon.EmergencyView
	emitter    events.Emitter
	logger     *slog.Logger
	metrics    *metrics.FarmingMetrics
}

// NewEngine constructs an engine over the supplied registry.
func NewEngine(cfg Config, registry *Registry) *Engine {
	return &Engine{
		cfg:      cfg,
		registry: registry,
		emitter:  events.NoopEmitter{},
		logger:   slog.Default(),
	}
}

// SetCustody wires the fungible custody collaborator.
func (e *Engine) SetCustody(c Custody) { e.custody = c }

// SetCollateral wires the collateral collaborator used by boosts.
func (e *Engine) SetCollateral(c CollateralVault) { e.collateral = c }

// SetEmergencyView wires the platform wide emergency flag.
func (e *Engine) SetEmergencyView(v nativecommon.EmergencyView) { e.emergency = v }

// SetEmitter configures the event emitter used by the engine. Passing nil resets
// the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetLogger overrides the structured logger.
func (e *Engine) SetLogger(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	e.logger = logger
}

// SetMetrics wires the metrics registry. A nil registry disables metrics.
func (e *Engine) SetMetrics(m *metrics.FarmingMetrics) { e.metrics = m }

// Config returns the engine configuration.
func (e *Engine) Config() Config { return e.cfg }

type txn struct {
	pool      *Pool
	events    events.Buffer
	undo      []func()
	committed bool
}

func (tx *txn) rollback() {
	if tx.committed {
		return
	}
	for i := len(tx.undo) - 1; i >= 0; i-- {
		tx.undo[i]()
	}
	tx.undo = nil
}

func (e *Engine) begin(key PoolKey) (*txn, error) {
	if e.registry == nil {
		return nil, errNilState
	}
	pool, err := e.registry.Load(key.ID())
	if err != nil {
		return nil, err
	}
	return &txn{pool: pool}, nil
}

func (e *Engine) commit(tx *txn) error {
	if err := e.registry.Save(tx.pool); err != nil {
		return err
	}
	tx.committed = true
	tx.events.Flush(e.emitter)
	e.metrics.SetPoolTotals(tx.pool.ID.String(), tx.pool.TotalStaked, tx.pool.TotalBoosted, tx.pool.RewardBalance, len(tx.pool.Epochs))
	return nil
}

func (e *Engine) transfer(tx *txn, from, to Identity, asset string, amount uint64) error {
	if e.custody == nil {
		return errNilCustody
	}
	if err := e.custody.Transfer(from, to, asset, amount); err != nil {
		return fmt.Errorf("farming: custody transfer: %w", err)
	}
	tx.undo = append(tx.undo, func() {
		if err := e.custody.Transfer(to, from, asset, amount); err != nil {
			e.logger.Error("farming custody rollback failed", "asset", asset, "amount", amount, "error", err)
		}
	})
	return nil
}

func (e *Engine) moveCollateral(tx *txn, unitID string, from, to Identity) error {
	if e.collateral == nil {
		return errNilCollateral
	}
	if err := e.collateral.Transfer(unitID, from, to); err != nil {
		return fmt.Errorf("farming: collateral transfer: %w", err)
	}
	tx.undo = append(tx.undo, func() {
		if err := e.collateral.Transfer(unitID, to, from); err != nil {
			e.logger.Error("farming collateral rollback failed", "unit", unitID, "error", err)
		}
	})
	return nil
}

func (e *Engine) globalEmergency() (bool, error) {
	return nativecommon.EmergencyActive(e.emergency)
}

func (e *Engine) guardEmergency(p *Pool) error {
	global, err := e.globalEmergency()
	if err != nil {
		return err
	}
	if inEmergency(p, global) {
		return ErrEmergency
	}
	return nil
}

func (e *Engine) observe(op string, err *error) {
	e.metrics.ObserveOperation(op, string(Kind(*err)))
}

func stakeRecordOf(p *Pool, who Identity) (*StakeRecord, error) {
	rec, ok := p.Stakes[who]
	if !ok {
		return nil, ErrStakeNotFound
	}
	return rec, nil
}

// RegisterPool creates a pool owned by owner and moves the initial reward
// funding into its custody account.
func (e *Engine) RegisterPool(owner Identity, params PoolParams, funding, duration, now uint64) (id PoolID, err error) {
	defer e.observe("register", &err)
	if e.registry == nil {
		return id, errNilState
	}
	if err := nativecommon.Guard(e.emergency); err != nil {
		return id, fmt.Errorf("%w: %v", ErrEmergency, err)
	}
	key := NewPoolKey(owner, params.Collection)
	exists, err := e.registry.Has(key.ID())
	if err != nil {
		return id, err
	}
	if exists {
		return id, ErrPoolExists
	}
	pool, err := newPool(key, params, funding, duration, now)
	if err != nil {
		return id, err
	}
	tx := &txn{pool: pool}
	defer tx.rollback()
	if err := e.transfer(tx, owner, pool.ID.Vault(), pool.RewardAsset, funding); err != nil {
		return id, err
	}
	tx.events.Emit(events.FarmPoolRegistered{
		Pool:       pool.ID,
		Owner:      owner,
		Collection: key.Collection,
		Funding:    funding,
		EndTime:    pool.EndTime(),
	})
	if err := e.commit(tx); err != nil {
		return id, err
	}
	e.logger.Info("farming pool registered",
		"pool", pool.ID.String(),
		"owner", owner.Hex(),
		"kind", pool.Kind.String(),
		"funding", funding,
		"endTime", pool.EndTime())
	return pool.ID, nil
}

// DepositReward refunds a pool, rolling any undistributed reward of the
// running epoch into a new epoch of newDuration seconds.
func (e *Engine) DepositReward(key PoolKey, who Identity, amount, newDuration, now uint64) (err error) {
	defer e.observe("deposit_reward", &err)
	if amount == 0 {
		return ErrZeroAmount
	}
	if newDuration == 0 {
		return ErrZeroDuration
	}
	tx, err := e.begin(key)
	if err != nil {
		return err
	}
	defer tx.rollback()
	pool := tx.pool
	if who != pool.Key.Owner {
		return ErrNotPoolOwner
	}
	if err := e.guardEmergency(pool); err != nil {
		return err
	}
	rollover, end, err := pool.fund(amount, newDuration, now, e.cfg.LockPeriodSeconds)
	if err != nil {
		return err
	}
	if pool.RewardBalance, err = addUint64(pool.RewardBalance, amount); err != nil {
		return err
	}
	if pool.TotalDeposited, err = addUint64(pool.TotalDeposited, amount); err != nil {
		return err
	}
	if err := e.transfer(tx, who, pool.ID.Vault(), pool.RewardAsset, amount); err != nil {
		return err
	}
	tx.events.Emit(events.FarmRewardDeposited{
		Pool:           pool.ID,
		Who:            who,
		NewAmount:      amount,
		RolloverAmount: rollover,
		NewEndTime:     end,
	})
	if err := e.commit(tx); err != nil {
		return err
	}
	e.logger.Info("farming reward deposited",
		"pool", pool.ID.String(),
		"amount", amount,
		"rollover", rollover,
		"endTime", end,
		"epoch", pool.CurrentEpoch)
	return nil
}

// Stake locks in into the pool on behalf of who. The lock period restarts
// on every stake, top-ups included.
func (e *Engine) Stake(key PoolKey, who Identity, in StakeInput, now uint64) (err error) {
	defer e.observe("stake", &err)
	if in.Amount == 0 {
		return ErrZeroAmount
	}
	tx, err := e.begin(key)
	if err != nil {
		return err
	}
	defer tx.rollback()
	pool := tx.pool
	if err := e.guardEmergency(pool); err != nil {
		return err
	}
	if err := pool.advance(now, e.cfg.LockPeriodSeconds); err != nil {
		return err
	}
	if err := pool.addStake(who, in, now, e.cfg.LockPeriodSeconds); err != nil {
		return err
	}
	if err := e.transfer(tx, who, pool.ID.Vault(), pool.StakeAssetFor(in.Bucket), in.Amount); err != nil {
		return err
	}
	tx.events.Emit(events.FarmStakeChanged{
		Pool:     pool.ID,
		Who:      who,
		Amount:   in.Amount,
		Bucket:   uint64(in.Bucket),
		Bucketed: pool.Kind == KindBucketed,
	})
	return e.commit(tx)
}

// Unstake withdraws in from who's stake once the lockup allows it.
func (e *Engine) Unstake(key PoolKey, who Identity, in StakeInput, now uint64) (out StakeInput, err error) {
	defer e.observe("unstake", &err)
	if in.Amount == 0 {
		return out, ErrZeroAmount
	}
	tx, err := e.begin(key)
	if err != nil {
		return out, err
	}
	defer tx.rollback()
	pool := tx.pool
	if err := e.guardEmergency(pool); err != nil {
		return out, err
	}
	rec, err := stakeRecordOf(pool, who)
	if err != nil {
		return out, err
	}
	if !unstakeAllowed(rec, pool, now) {
		return out, ErrStakeLocked
	}
	if err := pool.advance(now, e.cfg.LockPeriodSeconds); err != nil {
		return out, err
	}
	if err := pool.removeStake(rec, in); err != nil {
		return out, err
	}
	if err := e.transfer(tx, pool.ID.Vault(), who, pool.StakeAssetFor(in.Bucket), in.Amount); err != nil {
		return out, err
	}
	tx.events.Emit(events.FarmStakeChanged{
		Pool:     pool.ID,
		Who:      who,
		Amount:   in.Amount,
		Bucket:   uint64(in.Bucket),
		Bucketed: pool.Kind == KindBucketed,
		Removed:  true,
	})
	if err := e.commit(tx); err != nil {
		return out, err
	}
	return in, nil
}

// Harvest pays out everything who has earned so far.
func (e *Engine) Harvest(key PoolKey, who Identity, now uint64) (amount uint64, err error) {
	defer e.observe("harvest", &err)
	tx, err := e.begin(key)
	if err != nil {
		return 0, err
	}
	defer tx.rollback()
	pool := tx.pool
	if err := e.guardEmergency(pool); err != nil {
		return 0, err
	}
	rec, err := stakeRecordOf(pool, who)
	if err != nil {
		return 0, err
	}
	if err := pool.advance(now, e.cfg.LockPeriodSeconds); err != nil {
		return 0, err
	}
	earned, err := pool.harvestable(rec)
	if err != nil {
		return 0, err
	}
	if earned == 0 {
		return 0, ErrNothingToHarvest
	}
	if earned > pool.RewardBalance {
		return 0, ErrInsufficientRewardBalance
	}
	rec.Earned = 0
	pool.RewardBalance -= earned
	if pool.TotalHarvested, err = addUint64(pool.TotalHarvested, earned); err != nil {
		return 0, err
	}
	if err := e.transfer(tx, pool.ID.Vault(), who, pool.RewardAsset, earned); err != nil {
		return 0, err
	}
	tx.events.Emit(events.FarmHarvested{Pool: pool.ID, Who: who, Amount: earned})
	if err := e.commit(tx); err != nil {
		return 0, err
	}
	e.metrics.AddHarvested(pool.ID.String(), earned)
	return earned, nil
}

// AttachBoost moves a collateral unit owned by who into the pool and boosts
// who's stake weight.
func (e *Engine) AttachBoost(key PoolKey, who Identity, unitID string, now uint64) (err error) {
	defer e.observe("attach_boost", &err)
	if e.collateral == nil {
		return errNilCollateral
	}
	tx, err := e.begin(key)
	if err != nil {
		return err
	}
	defer tx.rollback()
	pool := tx.pool
	if err := e.guardEmergency(pool); err != nil {
		return err
	}
	if pool.Boost == nil {
		return ErrBoostNotConfigured
	}
	rec, err := stakeRecordOf(pool, who)
	if err != nil {
		return err
	}
	unit, owner, err := e.collateral.Describe(unitID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCollateralNotFound, err)
	}
	if owner != who {
		return ErrCollateralNotOwned
	}
	if err := pool.advance(now, e.cfg.LockPeriodSeconds); err != nil {
		return err
	}
	if err := pool.attachBoost(rec, unit); err != nil {
		return err
	}
	if err := e.moveCollateral(tx, unit.ID, who, pool.ID.Vault()); err != nil {
		return err
	}
	tx.events.Emit(events.FarmBoostChanged{Pool: pool.ID, Who: who, Unit: unit.ID})
	return e.commit(tx)
}

// DetachBoost removes who's boost and hands the collateral back.
func (e *Engine) DetachBoost(key PoolKey, who Identity, now uint64) (unit CollateralUnit, err error) {
	defer e.observe("detach_boost", &err)
	tx, err := e.begin(key)
	if err != nil {
		return unit, err
	}
	defer tx.rollback()
	pool := tx.pool
	if err := e.guardEmergency(pool); err != nil {
		return unit, err
	}
	rec, err := stakeRecordOf(pool, who)
	if err != nil {
		return unit, err
	}
	if err := pool.advance(now, e.cfg.LockPeriodSeconds); err != nil {
		return unit, err
	}
	detached, err := pool.detachBoost(rec)
	if err != nil {
		return unit, err
	}
	if err := e.moveCollateral(tx, detached.ID, pool.ID.Vault(), who); err != nil {
		return unit, err
	}
	tx.events.Emit(events.FarmBoostChanged{Pool: pool.ID, Who: who, Unit: detached.ID, Detached: true})
	if err := e.commit(tx); err != nil {
		return unit, err
	}
	return detached, nil
}

// EnableEmergency locks the pool permanently. Only the emergency admin may
// call it, and only once.
func (e *Engine) EnableEmergency(key PoolKey, admin Identity) (err error) {
	defer e.observe("enable_emergency", &err)
	if !isAdmin(e.cfg.EmergencyAdmin, admin) {
		e.logger.Warn("farming emergency rejected", "caller", admin.Hex())
		return ErrNotEmergencyAdmin
	}
	tx, err := e.begin(key)
	if err != nil {
		return err
	}
	defer tx.rollback()
	pool := tx.pool
	if err := e.guardEmergency(pool); err != nil {
		return err
	}
	locked, err := pool.Emergency.lock()
	if err != nil {
		return err
	}
	pool.Emergency = locked
	tx.events.Emit(events.FarmEmergencyEnabled{Pool: pool.ID, Admin: admin})
	if err := e.commit(tx); err != nil {
		return err
	}
	e.logger.Warn("farming pool emergency enabled", "pool", pool.ID.String(), "admin", admin.Hex())
	return nil
}

// EmergencyUnstake returns who's whole stake and collateral without any
// reward accounting and deletes the record. It is only available while the
// pool or the platform is in emergency.
func (e *Engine) EmergencyUnstake(key PoolKey, who Identity) (out Withdrawal, err error) {
	defer e.observe("emergency_unstake", &err)
	tx, err := e.begin(key)
	if err != nil {
		return out, err
	}
	defer tx.rollback()
	pool := tx.pool
	global, err := e.globalEmergency()
	if err != nil {
		return out, err
	}
	if !inEmergency(pool, global) {
		return out, ErrNoEmergency
	}
	rec, err := stakeRecordOf(pool, who)
	if err != nil {
		return out, err
	}
	out.Stake = rec.Shape.Buckets()
	total := rec.Shape.Total()
	for _, part := range out.Stake {
		if err := e.transfer(tx, pool.ID.Vault(), who, pool.StakeAssetFor(part.Bucket), part.Amount); err != nil {
			return Withdrawal{}, err
		}
	}
	var unitID string
	if rec.Collateral != nil {
		unit := *rec.Collateral
		if err := e.moveCollateral(tx, unit.ID, pool.ID.Vault(), who); err != nil {
			return Withdrawal{}, err
		}
		out.Collateral = &unit
		unitID = unit.ID
	}
	pool.TotalStaked -= total
	pool.StakeBalance -= total
	if pool.TotalBoosted, err = subUint64(pool.TotalBoosted, rec.BoostedAmount); err != nil {
		return Withdrawal{}, err
	}
	delete(pool.Stakes, who)
	tx.events.Emit(events.FarmEmergencyUnstaked{Pool: pool.ID, Who: who, Amount: total, Unit: unitID})
	if err := e.commit(tx); err != nil {
		return Withdrawal{}, err
	}
	return out, nil
}

// WithdrawToTreasury sweeps amount of reward balance to the treasury admin.
// It does not check that the remaining balance covers rewards users have
// earned but not yet harvested.
func (e *Engine) WithdrawToTreasury(key PoolKey, admin Identity, amount, now uint64) (withdrawn uint64, err error) {
	defer e.observe("withdraw_to_treasury", &err)
	if !isAdmin(e.cfg.TreasuryAdmin, admin) {
		e.logger.Warn("farming treasury withdrawal rejected", "caller", admin.Hex())
		return 0, ErrNotTreasuryAdmin
	}
	if amount == 0 {
		return 0, ErrZeroAmount
	}
	tx, err := e.begin(key)
	if err != nil {
		return 0, err
	}
	defer tx.rollback()
	pool := tx.pool
	global, err := e.globalEmergency()
	if err != nil {
		return 0, err
	}
	if !treasuryOpen(pool, global, now, e.cfg.TreasuryGraceSeconds) {
		return 0, ErrTreasuryGraceNotOver
	}
	if amount > pool.RewardBalance {
		return 0, ErrInsufficientRewardBalance
	}
	pool.RewardBalance -= amount
	if err := e.transfer(tx, pool.ID.Vault(), admin, pool.RewardAsset, amount); err != nil {
		return 0, err
	}
	tx.events.Emit(events.FarmTreasuryWithdrawn{Pool: pool.ID, Admin: admin, Amount: amount})
	if err := e.commit(tx); err != nil {
		return 0, err
	}
	e.logger.Info("farming treasury withdrawal", "pool", pool.ID.String(), "amount", amount, "remaining", pool.RewardBalance)
	return amount, nil
}
