package farming

// newPool builds a pool whose first epoch streams funding over duration.
func newPool(key PoolKey, params PoolParams, funding, duration, now uint64) (*Pool, error) {
	if duration == 0 {
		return nil, ErrZeroDuration
	}
	if funding == 0 {
		return nil, ErrZeroAmount
	}
	if params.StakeAsset == "" || params.RewardAsset == "" {
		return nil, ErrInvalidAsset
	}
	scale, err := poolScale(params.StakeDecimals, params.RewardDecimals)
	if err != nil {
		return nil, err
	}
	var boost *BoostConfig
	if params.Boost != nil {
		if params.Boost.Percent == 0 || params.Boost.Percent > MaxBoostPercent {
			return nil, ErrInvalidBoostPercent
		}
		collection := NormalizeCollection(params.Boost.Collection)
		if collection == "" {
			return nil, ErrInvalidAsset
		}
		boost = &BoostConfig{Percent: params.Boost.Percent, Collection: collection}
	}
	rate := funding / duration
	if rate == 0 {
		return nil, ErrRewardRateZero
	}
	end, err := addUint64(now, duration)
	if err != nil {
		return nil, err
	}
	kind := KindScalar
	if key.Bucketed() {
		kind = KindBucketed
	}
	return &Pool{
		Key:            key,
		ID:             key.ID(),
		Kind:           kind,
		StakeAsset:     params.StakeAsset,
		RewardAsset:    params.RewardAsset,
		StakeDecimals:  params.StakeDecimals,
		RewardDecimals: params.RewardDecimals,
		Scale:          scale,
		CreatedAt:      now,
		Epochs: []Epoch{{
			RewardRate:     rate,
			StartTime:      now,
			LastUpdateTime: now,
			EndTime:        end,
			RewardsFunded:  funding,
		}},
		Stakes:         make(map[Identity]*StakeRecord),
		Boost:          boost,
		RewardBalance:  funding,
		TotalDeposited: funding,
	}, nil
}

// advance brings the current epoch's accumulator up to now. An elapsed
// funded epoch is closed and replaced by a ghost epoch so that later
// activity accrues nothing until the pool is refunded.
func (p *Pool) advance(now, lockPeriod uint64) error {
	e := p.current()
	if now < e.LastUpdateTime {
		return ErrClockWentBackwards
	}
	if e.Ghost || e.RewardRate == 0 {
		e.LastUpdateTime = now
		e.EndTime = now
		return nil
	}

	rewardTime := minUint64(e.EndTime, now)
	var elapsed uint64
	if rewardTime > e.LastUpdateTime {
		elapsed = rewardTime - e.LastUpdateTime
	}
	weight, err := p.TotalWeighted()
	if err != nil {
		return err
	}
	delta, err := accumDelta(e.RewardRate, elapsed, &p.Scale, weight)
	if err != nil {
		return err
	}
	if _, overflow := e.AccumReward.AddOverflow(&e.AccumReward, delta); overflow {
		return ErrArithmeticOverflow
	}
	e.LastUpdateTime = now

	var timeLeft uint64
	if e.EndTime > now {
		timeLeft = e.EndTime - now
	}
	pending, err := mulUint64(timeLeft, e.RewardRate)
	if err != nil {
		return err
	}
	if pending > e.RewardsFunded {
		pending = e.RewardsFunded
	}
	e.RewardsDistributed = e.RewardsFunded - pending

	if now >= e.EndTime {
		e.EndedAt = now
		ghostEnd, err := addUint64(now, lockPeriod)
		if err != nil {
			return err
		}
		p.Epochs = append(p.Epochs, Epoch{
			StartTime:      e.EndTime,
			LastUpdateTime: now,
			EndTime:        ghostEnd,
			Ghost:          true,
		})
		p.CurrentEpoch++
	}
	return nil
}

// fund closes the current epoch and opens a new one streaming amount plus
// whatever the closed epoch had not yet distributed. It returns the rolled
// over amount and the new end time.
func (p *Pool) fund(amount, duration, now, lockPeriod uint64) (uint64, uint64, error) {
	if amount == 0 {
		return 0, 0, ErrZeroAmount
	}
	if duration == 0 {
		return 0, 0, ErrZeroDuration
	}
	if err := p.advance(now, lockPeriod); err != nil {
		return 0, 0, err
	}
	e := p.current()
	var rollover uint64
	if !e.Ghost {
		rollover = e.RewardsFunded - e.RewardsDistributed
	}
	total, err := addUint64(amount, rollover)
	if err != nil {
		return 0, 0, err
	}
	rate := total / duration
	if rate == 0 {
		return 0, 0, ErrRewardRateZero
	}
	end, err := addUint64(now, duration)
	if err != nil {
		return 0, 0, err
	}
	e.EndTime = now
	e.EndedAt = now
	p.Epochs = append(p.Epochs, Epoch{
		RewardRate:     rate,
		StartTime:      now,
		LastUpdateTime: now,
		EndTime:        end,
		RewardsFunded:  total,
	})
	p.CurrentEpoch++
	return rollover, end, nil
}

// EndTime returns the end of the newest funded epoch.
func (p *Pool) EndTime() uint64 {
	for i := len(p.Epochs) - 1; i >= 0; i-- {
		if !p.Epochs[i].Ghost {
			return p.Epochs[i].EndTime
		}
	}
	return 0
}

// Finished reports whether every funded epoch has elapsed at now.
func (p *Pool) Finished(now uint64) bool {
	return now >= p.EndTime()
}
