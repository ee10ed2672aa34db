package farming

import "github.com/holiman/uint256"

func newStakeRecord(kind PoolKind) *StakeRecord {
	return &StakeRecord{Shape: newShape(kind)}
}

// syncUser credits the record with everything its current weight earned
// since the last sync, epoch by epoch. It must run before any weight change.
func (p *Pool) syncUser(rec *StakeRecord) error {
	weight, err := rec.Weight()
	if err != nil {
		return err
	}
	for i := uint64(0); i <= p.CurrentEpoch; i++ {
		for uint64(len(rec.Unobtainable)) <= i {
			rec.Unobtainable = append(rec.Unobtainable, uint256.Int{})
		}
		accrued, err := accruedFor(&p.Epochs[i].AccumReward, weight, &p.Scale)
		if err != nil {
			return err
		}
		baseline := &rec.Unobtainable[i]
		if accrued.Cmp(baseline) <= 0 {
			continue
		}
		earned := new(uint256.Int).Sub(accrued, baseline)
		if !earned.IsUint64() {
			return ErrArithmeticOverflow
		}
		total, err := addUint64(rec.Earned, earned.Uint64())
		if err != nil {
			return err
		}
		rec.Earned = total
		baseline.Set(accrued)
	}
	return nil
}

// refreshUnobtainable resets the per-epoch baselines to what the record's
// current weight would have accrued, so the next sync only earns growth.
func (p *Pool) refreshUnobtainable(rec *StakeRecord) error {
	weight, err := rec.Weight()
	if err != nil {
		return err
	}
	size := p.CurrentEpoch + 1
	if uint64(len(rec.Unobtainable)) < size {
		grown := make([]uint256.Int, size)
		copy(grown, rec.Unobtainable)
		rec.Unobtainable = grown
	}
	for i := uint64(0); i < size; i++ {
		accrued, err := accruedFor(&p.Epochs[i].AccumReward, weight, &p.Scale)
		if err != nil {
			return err
		}
		rec.Unobtainable[i].Set(accrued)
	}
	return nil
}

// rederiveBoost recomputes the boosted amount of an attached record after
// its stake changed and moves the pool total by the difference.
func (p *Pool) rederiveBoost(rec *StakeRecord) error {
	if rec.Collateral == nil || p.Boost == nil {
		return nil
	}
	boosted, err := boostFor(rec.Shape.Total(), p.Boost.Percent)
	if err != nil {
		return err
	}
	without, err := subUint64(p.TotalBoosted, rec.BoostedAmount)
	if err != nil {
		return err
	}
	total, err := addUint64(without, boosted)
	if err != nil {
		return err
	}
	p.TotalBoosted = total
	rec.BoostedAmount = boosted
	return nil
}

// addStake credits input to who, creating the record on first stake.
func (p *Pool) addStake(who Identity, in StakeInput, now, lockPeriod uint64) error {
	if in.Amount == 0 {
		return ErrZeroAmount
	}
	rec, ok := p.Stakes[who]
	if !ok {
		rec = newStakeRecord(p.Kind)
	} else if err := p.syncUser(rec); err != nil {
		return err
	}
	if err := rec.Shape.Add(in.Bucket, in.Amount); err != nil {
		return err
	}
	staked, err := addUint64(p.TotalStaked, in.Amount)
	if err != nil {
		return err
	}
	balance, err := addUint64(p.StakeBalance, in.Amount)
	if err != nil {
		return err
	}
	p.TotalStaked = staked
	p.StakeBalance = balance
	if err := p.rederiveBoost(rec); err != nil {
		return err
	}
	if err := p.refreshUnobtainable(rec); err != nil {
		return err
	}
	unlock, err := addUint64(now, lockPeriod)
	if err != nil {
		return err
	}
	rec.UnlockTime = unlock
	p.Stakes[who] = rec
	return nil
}

// removeStake debits input from who after syncing its earnings.
func (p *Pool) removeStake(rec *StakeRecord, in StakeInput) error {
	if in.Amount == 0 {
		return ErrZeroAmount
	}
	if in.Amount > rec.Shape.Balance(in.Bucket) {
		if p.Kind == KindBucketed && rec.Shape.Balance(in.Bucket) == 0 {
			return ErrBucketNotFound
		}
		return ErrNotEnoughBalance
	}
	if err := p.syncUser(rec); err != nil {
		return err
	}
	if err := rec.Shape.Remove(in.Bucket, in.Amount); err != nil {
		return err
	}
	p.TotalStaked -= in.Amount
	p.StakeBalance -= in.Amount
	if err := p.rederiveBoost(rec); err != nil {
		return err
	}
	return p.refreshUnobtainable(rec)
}

// harvestable syncs the record and returns what it may claim.
func (p *Pool) harvestable(rec *StakeRecord) (uint64, error) {
	if err := p.syncUser(rec); err != nil {
		return 0, err
	}
	return rec.Earned, nil
}
