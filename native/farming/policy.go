package farming

// unstakeAllowed applies the lockup guard. The lock is capped by the end of
// the newest funded epoch so a finished pool never blocks withdrawals, even
// while a ghost epoch is current.
func unstakeAllowed(rec *StakeRecord, p *Pool, now uint64) bool {
	return now >= minUint64(rec.UnlockTime, p.EndTime())
}

// treasuryOpen applies the treasury gate: sweeping is allowed in emergency,
// otherwise only once the grace period after the pool end has passed.
func treasuryOpen(p *Pool, globalEmergency bool, now, grace uint64) bool {
	if p.Emergency.Locked() || globalEmergency {
		return true
	}
	openAt, err := addUint64(p.EndTime(), grace)
	if err != nil {
		return false
	}
	return now >= openAt
}

// inEmergency reports whether either the pool or the platform is locked.
func inEmergency(p *Pool, globalEmergency bool) bool {
	return p.Emergency.Locked() || globalEmergency
}
