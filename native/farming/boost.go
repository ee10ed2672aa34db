package farming

// attachBoost hands unit to rec and raises its weight by the configured
// boost percent.
func (p *Pool) attachBoost(rec *StakeRecord, unit CollateralUnit) error {
	if p.Boost == nil {
		return ErrBoostNotConfigured
	}
	if rec.Collateral != nil {
		return ErrAlreadyBoosted
	}
	if unit.Collection != p.Boost.Collection {
		return ErrWrongCollection
	}
	if unit.Amount != 1 {
		return ErrWrongCollateralAmount
	}
	if err := p.syncUser(rec); err != nil {
		return err
	}
	boosted, err := boostFor(rec.Shape.Total(), p.Boost.Percent)
	if err != nil {
		return err
	}
	total, err := addUint64(p.TotalBoosted, boosted)
	if err != nil {
		return err
	}
	p.TotalBoosted = total
	rec.BoostedAmount = boosted
	attached := unit
	rec.Collateral = &attached
	return p.refreshUnobtainable(rec)
}

// detachBoost removes the boost from rec and returns the collateral.
func (p *Pool) detachBoost(rec *StakeRecord) (CollateralUnit, error) {
	if rec.Collateral == nil {
		return CollateralUnit{}, ErrNoBoost
	}
	if err := p.syncUser(rec); err != nil {
		return CollateralUnit{}, err
	}
	total, err := subUint64(p.TotalBoosted, rec.BoostedAmount)
	if err != nil {
		return CollateralUnit{}, err
	}
	p.TotalBoosted = total
	rec.BoostedAmount = 0
	unit := *rec.Collateral
	rec.Collateral = nil
	if err := p.refreshUnobtainable(rec); err != nil {
		return CollateralUnit{}, err
	}
	return unit, nil
}
