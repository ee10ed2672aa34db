package farming

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"farmchain/core/events"
	"farmchain/native/bank"
	nativecommon "farmchain/native/common"
)

func TestSingleStakerAccruesExactly(t *testing.T) {
	env := newTestEnv(t, testConfig())
	key := env.register(t, scalarParams(), 604800, 604800, 0)
	env.stake(t, key, alice, StakeInput{Amount: 1000}, 0)

	epoch, err := env.engine.EpochInfo(key, 0, 100)
	if err != nil {
		t.Fatalf("epoch info: %v", err)
	}
	if epoch.AccumReward.Uint64() != 100_000_000_000 {
		t.Fatalf("expected accumulator 1e11, got %s", &epoch.AccumReward)
	}
	if got := pending(t, env, key, alice, 100); got != 100 {
		t.Fatalf("expected 100 pending, got %d", got)
	}
}

func TestTwoStakersSplitProportionally(t *testing.T) {
	cases := []struct {
		name         string
		funding      uint64
		wantA, wantB uint64
	}{
		{name: "rate1", funding: 1000, wantA: 250, wantB: 750},
		{name: "rate4", funding: 4000, wantA: 1000, wantB: 3000},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t, testConfig())
			key := env.register(t, scalarParams(), tc.funding, 1000, 0)
			env.stake(t, key, alice, StakeInput{Amount: 1000}, 0)
			env.stake(t, key, bob, StakeInput{Amount: 3000}, 0)

			gotA, err := env.engine.Harvest(key, alice, 1000)
			if err != nil {
				t.Fatalf("harvest alice: %v", err)
			}
			gotB, err := env.engine.Harvest(key, bob, 1000)
			if err != nil {
				t.Fatalf("harvest bob: %v", err)
			}
			if gotA != tc.wantA || gotB != tc.wantB {
				t.Fatalf("expected %d/%d, got %d/%d", tc.wantA, tc.wantB, gotA, gotB)
			}
			if bal := env.ledger.Balance(alice, rewardAsset); bal != tc.wantA {
				t.Fatalf("expected alice balance %d, got %d", tc.wantA, bal)
			}
			pool := env.pool(t, key)
			if pool.RewardBalance != 0 || pool.TotalHarvested != tc.funding {
				t.Fatalf("unexpected pool balances: reward %d harvested %d", pool.RewardBalance, pool.TotalHarvested)
			}
			if _, err := env.engine.Harvest(key, alice, 1000); !errors.Is(err, ErrNothingToHarvest) {
				t.Fatalf("expected ErrNothingToHarvest, got %v", err)
			}
		})
	}
}

func TestStakeAfterEndRollsIntoGhost(t *testing.T) {
	env := newTestEnv(t, testConfig())
	key := env.register(t, scalarParams(), 1000, 1000, 0)
	env.stake(t, key, alice, StakeInput{Amount: 100}, 2000)

	current, err := env.engine.CurrentEpoch(key, 2000)
	if err != nil {
		t.Fatalf("current epoch: %v", err)
	}
	ghost, err := env.engine.EpochInfo(key, current, 2000)
	if err != nil {
		t.Fatalf("epoch info: %v", err)
	}
	if current != 1 || !ghost.Ghost || ghost.RewardRate != 0 {
		t.Fatalf("expected ghost epoch 1, got %d %+v", current, ghost)
	}
	if _, err := env.engine.Harvest(key, alice, 3000); !errors.Is(err, ErrNothingToHarvest) {
		t.Fatalf("expected ErrNothingToHarvest, got %v", err)
	}
}

func TestGhostEpochIsNeutral(t *testing.T) {
	env := newTestEnv(t, testConfig())
	key := env.register(t, scalarParams(), 1000, 100, 0)
	env.stake(t, key, alice, StakeInput{Amount: 100}, 0)
	if err := env.engine.AttachBoost(key, alice, "missing", 0); !errors.Is(err, ErrBoostNotConfigured) {
		t.Fatalf("expected ErrBoostNotConfigured, got %v", err)
	}
	env.stake(t, key, bob, StakeInput{Amount: 100}, 200)

	atGhostStart := pending(t, env, key, alice, 200)
	later := pending(t, env, key, alice, 500_000)
	if atGhostStart != 1000 || later != 1000 {
		t.Fatalf("expected 1000 before and after ghost time, got %d and %d", atGhostStart, later)
	}
	if got := pending(t, env, key, bob, 500_000); got != 0 {
		t.Fatalf("expected no reward for ghost staker, got %d", got)
	}
}

func TestUnstakeHonoursLockupCap(t *testing.T) {
	env := newTestEnv(t, testConfig())
	key := env.register(t, scalarParams(), 1000, 100, 0)
	env.stake(t, key, alice, StakeInput{Amount: 100}, 0)
	env.stake(t, key, bob, StakeInput{Amount: 100}, 0)

	if _, err := env.engine.Unstake(key, alice, StakeInput{Amount: 10}, 50); !errors.Is(err, ErrStakeLocked) {
		t.Fatalf("expected ErrStakeLocked, got %v", err)
	}
	if ok, err := env.engine.CanUnstake(key, alice, 50); err != nil || ok {
		t.Fatalf("expected locked at 50, got %v %v", ok, err)
	}
	if _, err := env.engine.Harvest(key, bob, 150); err != nil {
		t.Fatalf("harvest: %v", err)
	}
	out, err := env.engine.Unstake(key, alice, StakeInput{Amount: 100}, 160)
	if err != nil {
		t.Fatalf("unstake after end: %v", err)
	}
	if out.Amount != 100 || env.ledger.Balance(alice, stakeAsset) != 100 {
		t.Fatalf("stake not returned: %+v", out)
	}
	if _, err := env.engine.Unstake(key, alice, StakeInput{Amount: 1}, 170); !errors.Is(err, ErrNotEnoughBalance) {
		t.Fatalf("expected ErrNotEnoughBalance, got %v", err)
	}
	if got := pending(t, env, key, alice, 170); got != 500 {
		t.Fatalf("expected earnings kept after unstake, got %d", got)
	}
}

func TestTopUpRefreshesLock(t *testing.T) {
	cfg := testConfig()
	cfg.LockPeriodSeconds = 1000
	env := newTestEnv(t, cfg)
	key := env.register(t, scalarParams(), 10000, 10000, 0)
	env.stake(t, key, alice, StakeInput{Amount: 100}, 0)
	env.stake(t, key, alice, StakeInput{Amount: 100}, 900)

	unlock, err := env.engine.UnlockTime(key, alice)
	if err != nil || unlock != 1900 {
		t.Fatalf("expected unlock 1900, got %d %v", unlock, err)
	}
	if _, err := env.engine.Unstake(key, alice, StakeInput{Amount: 200}, 1000); !errors.Is(err, ErrStakeLocked) {
		t.Fatalf("expected ErrStakeLocked, got %v", err)
	}
	if _, err := env.engine.Unstake(key, alice, StakeInput{Amount: 200}, 1900); err != nil {
		t.Fatalf("unstake: %v", err)
	}
	if got := pending(t, env, key, alice, 1900); got != 1900 {
		t.Fatalf("expected 1900 earned, got %d", got)
	}
}

func TestBoostWeightsRewards(t *testing.T) {
	params := scalarParams()
	params.Boost = &BoostConfig{Percent: 100, Collection: "badges"}
	env := newTestEnv(t, testConfig())
	key := env.register(t, params, 3000, 1000, 0)
	env.stake(t, key, alice, StakeInput{Amount: 1000}, 0)
	env.stake(t, key, bob, StakeInput{Amount: 1000}, 0)
	env.vault.add("u1", "badges", 1, alice)
	env.vault.add("u2", "other", 1, alice)
	env.vault.add("u3", "badges", 2, alice)
	env.vault.add("u4", "badges", 1, bob)
	env.vault.add("u5", "badges", 1, alice)

	if err := env.engine.AttachBoost(key, alice, "u2", 0); !errors.Is(err, ErrWrongCollection) {
		t.Fatalf("expected ErrWrongCollection, got %v", err)
	}
	if err := env.engine.AttachBoost(key, alice, "u3", 0); !errors.Is(err, ErrWrongCollateralAmount) {
		t.Fatalf("expected ErrWrongCollateralAmount, got %v", err)
	}
	if err := env.engine.AttachBoost(key, alice, "u4", 0); !errors.Is(err, ErrCollateralNotOwned) {
		t.Fatalf("expected ErrCollateralNotOwned, got %v", err)
	}
	if err := env.engine.AttachBoost(key, alice, "nope", 0); !errors.Is(err, ErrCollateralNotFound) {
		t.Fatalf("expected ErrCollateralNotFound, got %v", err)
	}
	if _, err := env.engine.DetachBoost(key, alice, 0); !errors.Is(err, ErrNoBoost) {
		t.Fatalf("expected ErrNoBoost, got %v", err)
	}
	if err := env.engine.AttachBoost(key, alice, "u1", 0); err != nil {
		t.Fatalf("attach: %v", err)
	}
	if err := env.engine.AttachBoost(key, alice, "u5", 0); !errors.Is(err, ErrAlreadyBoosted) {
		t.Fatalf("expected ErrAlreadyBoosted, got %v", err)
	}
	if _, holder, _ := env.vault.Describe("u1"); holder != key.ID().Vault() {
		t.Fatalf("collateral not in pool custody: %s", holder.Hex())
	}
	boosted, err := env.engine.TotalBoosted(key)
	if err != nil || boosted != 1000 {
		t.Fatalf("expected total boosted 1000, got %d %v", boosted, err)
	}

	if got := pending(t, env, key, alice, 1000); got != 2000 {
		t.Fatalf("expected boosted staker to earn 2000, got %d", got)
	}
	if got := pending(t, env, key, bob, 1000); got != 1000 {
		t.Fatalf("expected plain staker to earn 1000, got %d", got)
	}

	unit, err := env.engine.DetachBoost(key, alice, 1000)
	if err != nil {
		t.Fatalf("detach: %v", err)
	}
	if unit.ID != "u1" {
		t.Fatalf("unexpected unit %+v", unit)
	}
	if _, holder, _ := env.vault.Describe("u1"); holder != alice {
		t.Fatalf("collateral not returned to owner")
	}
	if boosted, _ := env.engine.TotalBoosted(key); boosted != 0 {
		t.Fatalf("expected boost cleared, got %d", boosted)
	}
	if got := pending(t, env, key, alice, 1000); got != 2000 {
		t.Fatalf("detach changed earnings: %d", got)
	}
}

func TestBoostFollowsStakeChanges(t *testing.T) {
	params := scalarParams()
	params.Boost = &BoostConfig{Percent: 50, Collection: "badges"}
	env := newTestEnv(t, testConfig())
	key := env.register(t, params, 1000, 1000, 0)
	env.stake(t, key, alice, StakeInput{Amount: 1000}, 0)
	env.vault.add("u1", "badges", 1, alice)
	if err := env.engine.AttachBoost(key, alice, "u1", 0); err != nil {
		t.Fatalf("attach: %v", err)
	}
	env.stake(t, key, alice, StakeInput{Amount: 1000}, 10)

	amount, err := env.engine.BoostedAmount(key, alice)
	if err != nil || amount != 1000 {
		t.Fatalf("expected boosted amount 1000, got %d %v", amount, err)
	}
	pool := env.pool(t, key)
	if pool.TotalBoosted != 1000 || pool.TotalStaked != 2000 {
		t.Fatalf("unexpected totals staked %d boosted %d", pool.TotalStaked, pool.TotalBoosted)
	}
}

func TestDepositRewardRollsOver(t *testing.T) {
	env := newTestEnv(t, testConfig())
	key := env.register(t, scalarParams(), 1000, 1000, 0)
	env.stake(t, key, alice, StakeInput{Amount: 100}, 0)

	env.mint(t, bob, rewardAsset, 500)
	if err := env.engine.DepositReward(key, bob, 500, 1000, 500); !errors.Is(err, ErrNotPoolOwner) {
		t.Fatalf("expected ErrNotPoolOwner, got %v", err)
	}
	if err := env.engine.DepositReward(key, owner, 0, 1000, 500); !errors.Is(err, ErrZeroAmount) {
		t.Fatalf("expected ErrZeroAmount, got %v", err)
	}
	env.mint(t, owner, rewardAsset, 500)
	if err := env.engine.DepositReward(key, owner, 500, 1000, 500); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	end, err := env.engine.EndTime(key)
	if err != nil || end != 1500 {
		t.Fatalf("expected end 1500, got %d %v", end, err)
	}
	if got := pending(t, env, key, alice, 1500); got != 1500 {
		t.Fatalf("expected 1500 pending, got %d", got)
	}
	var deposited *events.FarmRewardDeposited
	for _, evt := range env.emitter.events {
		if e, ok := evt.(events.FarmRewardDeposited); ok {
			deposited = &e
		}
	}
	if deposited == nil || deposited.RolloverAmount != 500 || deposited.NewAmount != 500 || deposited.NewEndTime != 1500 {
		t.Fatalf("unexpected deposit event %+v", deposited)
	}
	pool := env.pool(t, key)
	if pool.TotalDeposited != 1500 || pool.RewardBalance != 1500 {
		t.Fatalf("unexpected balances deposited %d reward %d", pool.TotalDeposited, pool.RewardBalance)
	}
}

func TestRegisterPoolValidation(t *testing.T) {
	env := newTestEnv(t, testConfig())
	env.register(t, scalarParams(), 1000, 100, 0)
	env.mint(t, owner, rewardAsset, 1000)
	if _, err := env.engine.RegisterPool(owner, scalarParams(), 1000, 100, 0); !errors.Is(err, ErrPoolExists) {
		t.Fatalf("expected ErrPoolExists, got %v", err)
	}
	params := scalarParams()
	params.Collection = "bins"
	if _, err := env.engine.RegisterPool(owner, params, 1000, 0, 0); !errors.Is(err, ErrZeroDuration) {
		t.Fatalf("expected ErrZeroDuration, got %v", err)
	}
	params.RewardDecimals = 11
	if _, err := env.engine.RegisterPool(owner, params, 1000, 100, 0); !errors.Is(err, ErrInvalidRewardDecimals) {
		t.Fatalf("expected ErrInvalidRewardDecimals, got %v", err)
	}
	params.RewardDecimals = 0
	if _, err := env.engine.RegisterPool(bob, params, 1000, 100, 0); err == nil {
		t.Fatalf("expected unfunded registration to fail")
	}
	if ids, err := env.engine.Pools(); err != nil || len(ids) != 1 {
		t.Fatalf("expected one pool, got %v %v", ids, err)
	}
}

func TestFailedStakeLeavesStateUntouched(t *testing.T) {
	env := newTestEnv(t, testConfig())
	key := env.register(t, scalarParams(), 1000, 100, 0)

	err := env.engine.Stake(key, alice, StakeInput{Amount: 100}, 10)
	if !errors.Is(err, bank.ErrInsufficientBalance) {
		t.Fatalf("expected custody failure, got %v", err)
	}
	pool := env.pool(t, key)
	if pool.TotalStaked != 0 || len(pool.Stakes) != 0 || pool.Epochs[0].LastUpdateTime != 0 {
		t.Fatalf("failed stake mutated pool: %+v", pool)
	}
	if len(env.emitter.events) != 1 {
		t.Fatalf("expected only the registration event, got %v", env.emitter.types())
	}
	if err := env.engine.Stake(key, alice, StakeInput{}, 10); !errors.Is(err, ErrZeroAmount) {
		t.Fatalf("expected ErrZeroAmount, got %v", err)
	}
	if err := env.engine.Stake(NewPoolKey(bob, ""), alice, StakeInput{Amount: 1}, 10); !errors.Is(err, ErrPoolNotFound) {
		t.Fatalf("expected ErrPoolNotFound, got %v", err)
	}
}

func TestBucketedPool(t *testing.T) {
	params := scalarParams()
	params.Collection = "bins"
	env := newTestEnv(t, testConfig())
	key := env.register(t, params, 1000, 1000, 0)
	env.stake(t, key, alice, StakeInput{Bucket: 1, Amount: 500}, 0)
	env.stake(t, key, alice, StakeInput{Bucket: 2, Amount: 500}, 0)

	if _, err := env.engine.Unstake(key, alice, StakeInput{Bucket: 3, Amount: 1}, 1000); !errors.Is(err, ErrBucketNotFound) {
		t.Fatalf("expected ErrBucketNotFound, got %v", err)
	}
	if _, err := env.engine.Unstake(key, alice, StakeInput{Bucket: 2, Amount: 600}, 1000); !errors.Is(err, ErrNotEnoughBalance) {
		t.Fatalf("expected ErrNotEnoughBalance, got %v", err)
	}
	if _, err := env.engine.Unstake(key, alice, StakeInput{Bucket: 1, Amount: 300}, 1000); err != nil {
		t.Fatalf("unstake: %v", err)
	}
	if got := env.ledger.Balance(alice, BucketAsset(stakeAsset, 1)); got != 300 {
		t.Fatalf("expected 300 of bucket 1 returned, got %d", got)
	}
	view, err := env.engine.StakeOf(key, alice, 1000)
	if err != nil {
		t.Fatalf("stake of: %v", err)
	}
	want := []StakeInput{{Bucket: 1, Amount: 200}, {Bucket: 2, Amount: 500}}
	if view.Total != 700 || len(view.Buckets) != 2 || view.Buckets[0] != want[0] || view.Buckets[1] != want[1] {
		t.Fatalf("unexpected view %+v", view)
	}
	if view.Pending != 1000 {
		t.Fatalf("expected 1000 pending, got %d", view.Pending)
	}
}

func TestEmergencyFlow(t *testing.T) {
	params := scalarParams()
	params.Boost = &BoostConfig{Percent: 10, Collection: "badges"}
	env := newTestEnv(t, testConfig())
	key := env.register(t, params, 1000, 1000, 0)
	env.stake(t, key, alice, StakeInput{Amount: 100}, 0)
	env.vault.add("u1", "badges", 1, alice)
	if err := env.engine.AttachBoost(key, alice, "u1", 0); err != nil {
		t.Fatalf("attach: %v", err)
	}

	if _, err := env.engine.EmergencyUnstake(key, alice); !errors.Is(err, ErrNoEmergency) {
		t.Fatalf("expected ErrNoEmergency, got %v", err)
	}
	if err := env.engine.EnableEmergency(key, alice); !errors.Is(err, ErrNotEmergencyAdmin) {
		t.Fatalf("expected ErrNotEmergencyAdmin, got %v", err)
	}
	if err := env.engine.EnableEmergency(key, emergencyAdmin); err != nil {
		t.Fatalf("enable emergency: %v", err)
	}
	if err := env.engine.EnableEmergency(key, emergencyAdmin); !errors.Is(err, ErrEmergency) {
		t.Fatalf("expected ErrEmergency on second enable, got %v", err)
	}
	if local, err := env.engine.IsLocalEmergency(key); err != nil || !local {
		t.Fatalf("expected local emergency, got %v %v", local, err)
	}
	env.mint(t, bob, stakeAsset, 10)
	if err := env.engine.Stake(key, bob, StakeInput{Amount: 10}, 10); !errors.Is(err, ErrEmergency) {
		t.Fatalf("expected ErrEmergency on stake, got %v", err)
	}
	if _, err := env.engine.Harvest(key, alice, 10); !errors.Is(err, ErrEmergency) {
		t.Fatalf("expected ErrEmergency on harvest, got %v", err)
	}
	if _, err := env.engine.Unstake(key, alice, StakeInput{Amount: 10}, 10); !errors.Is(err, ErrEmergency) {
		t.Fatalf("expected ErrEmergency on unstake, got %v", err)
	}

	out, err := env.engine.EmergencyUnstake(key, alice)
	if err != nil {
		t.Fatalf("emergency unstake: %v", err)
	}
	if out.Total() != 100 || out.Collateral == nil || out.Collateral.ID != "u1" {
		t.Fatalf("unexpected withdrawal %+v", out)
	}
	if env.ledger.Balance(alice, stakeAsset) != 100 {
		t.Fatalf("stake not returned")
	}
	if _, holder, _ := env.vault.Describe("u1"); holder != alice {
		t.Fatalf("collateral not returned")
	}
	pool := env.pool(t, key)
	if pool.TotalStaked != 0 || pool.TotalBoosted != 0 || pool.StakeBalance != 0 || len(pool.Stakes) != 0 {
		t.Fatalf("pool totals not cleared: %+v", pool)
	}
	if _, err := env.engine.EmergencyUnstake(key, alice); !errors.Is(err, ErrStakeNotFound) {
		t.Fatalf("expected ErrStakeNotFound, got %v", err)
	}
	withdrawn, err := env.engine.WithdrawToTreasury(key, treasuryAdmin, 1000, 20)
	if err != nil || withdrawn != 1000 {
		t.Fatalf("expected treasury sweep during emergency, got %d %v", withdrawn, err)
	}
	emitted := env.emitter.types()
	if emitted[len(emitted)-1] != events.TypeFarmTreasuryWithdrawn {
		t.Fatalf("unexpected event order %v", emitted)
	}
}

func TestGlobalEmergencyBlocksMutations(t *testing.T) {
	env := newTestEnv(t, testConfig())
	key := env.register(t, scalarParams(), 1000, 1000, 0)
	env.stake(t, key, alice, StakeInput{Amount: 100}, 0)
	env.engine.SetEmergencyView(nativecommon.StaticEmergency(true))

	env.mint(t, alice, stakeAsset, 10)
	if err := env.engine.Stake(key, alice, StakeInput{Amount: 10}, 10); !errors.Is(err, ErrEmergency) {
		t.Fatalf("expected ErrEmergency, got %v", err)
	}
	params := scalarParams()
	params.Collection = "other"
	env.mint(t, owner, rewardAsset, 1000)
	if _, err := env.engine.RegisterPool(owner, params, 1000, 100, 10); !errors.Is(err, ErrEmergency) {
		t.Fatalf("expected ErrEmergency on register, got %v", err)
	}
	if err := env.engine.EnableEmergency(key, emergencyAdmin); !errors.Is(err, ErrEmergency) {
		t.Fatalf("expected ErrEmergency on enable, got %v", err)
	}
	if emergency, err := env.engine.IsEmergency(key); err != nil || !emergency {
		t.Fatalf("expected emergency, got %v %v", emergency, err)
	}
	if local, _ := env.engine.IsLocalEmergency(key); local {
		t.Fatalf("global flag leaked into pool state")
	}
	if _, err := env.engine.EmergencyUnstake(key, alice); err != nil {
		t.Fatalf("emergency unstake: %v", err)
	}
}

func TestTreasurySweepIgnoresUnharvestedRewards(t *testing.T) {
	cfg := testConfig()
	cfg.TreasuryGraceSeconds = 1000
	env := newTestEnv(t, cfg)
	key := env.register(t, scalarParams(), 100, 100, 0)
	env.stake(t, key, alice, StakeInput{Amount: 10}, 0)

	if _, err := env.engine.WithdrawToTreasury(key, bob, 10, 2000); !errors.Is(err, ErrNotTreasuryAdmin) {
		t.Fatalf("expected ErrNotTreasuryAdmin, got %v", err)
	}
	if _, err := env.engine.WithdrawToTreasury(key, treasuryAdmin, 10, 500); !errors.Is(err, ErrTreasuryGraceNotOver) {
		t.Fatalf("expected ErrTreasuryGraceNotOver, got %v", err)
	}
	if _, err := env.engine.WithdrawToTreasury(key, treasuryAdmin, 101, 1100); !errors.Is(err, ErrInsufficientRewardBalance) {
		t.Fatalf("expected ErrInsufficientRewardBalance, got %v", err)
	}
	if _, err := env.engine.WithdrawToTreasury(key, treasuryAdmin, 100, 1100); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if env.ledger.Balance(treasuryAdmin, rewardAsset) != 100 {
		t.Fatalf("treasury not credited")
	}
	if got := pending(t, env, key, alice, 1100); got != 100 {
		t.Fatalf("expected earned reward to remain recorded, got %d", got)
	}
	if _, err := env.engine.Harvest(key, alice, 1100); !errors.Is(err, ErrInsufficientRewardBalance) {
		t.Fatalf("expected ErrInsufficientRewardBalance, got %v", err)
	}
}

type flakyCustody struct {
	*bank.Ledger
	failAsset string
}

func (f flakyCustody) Transfer(from, to common.Address, asset string, amount uint64) error {
	if asset == f.failAsset {
		return errors.New("custody offline")
	}
	return f.Ledger.Transfer(from, to, asset, amount)
}

func TestEmergencyUnstakeUndoesPartialTransfers(t *testing.T) {
	params := scalarParams()
	params.Collection = "bins"
	env := newTestEnv(t, testConfig())
	key := env.register(t, params, 1000, 1000, 0)
	env.stake(t, key, alice, StakeInput{Bucket: 1, Amount: 50}, 0)
	env.stake(t, key, alice, StakeInput{Bucket: 2, Amount: 70}, 0)
	if err := env.engine.EnableEmergency(key, emergencyAdmin); err != nil {
		t.Fatalf("enable emergency: %v", err)
	}

	env.engine.SetCustody(flakyCustody{Ledger: env.ledger, failAsset: BucketAsset(stakeAsset, 2)})
	if _, err := env.engine.EmergencyUnstake(key, alice); err == nil {
		t.Fatalf("expected custody failure")
	}
	if got := env.ledger.Balance(alice, BucketAsset(stakeAsset, 1)); got != 0 {
		t.Fatalf("partial transfer not undone, alice holds %d", got)
	}
	if got := env.ledger.Balance(key.ID().Vault(), BucketAsset(stakeAsset, 1)); got != 50 {
		t.Fatalf("vault balance not restored, got %d", got)
	}
	if pool := env.pool(t, key); len(pool.Stakes) != 1 {
		t.Fatalf("stake record removed by failed withdrawal")
	}

	env.engine.SetCustody(env.ledger)
	out, err := env.engine.EmergencyUnstake(key, alice)
	if err != nil {
		t.Fatalf("emergency unstake: %v", err)
	}
	if out.Total() != 120 || len(out.Stake) != 2 {
		t.Fatalf("unexpected withdrawal %+v", out)
	}
}

func TestRewardsNeverExceedFunding(t *testing.T) {
	cfg := testConfig()
	cfg.LockPeriodSeconds = 50
	env := newTestEnv(t, cfg)
	key := env.register(t, scalarParams(), 100_000, 10_000, 0)
	carol := common.HexToAddress("0x00000000000000000000000000000000000000b3")
	users := []Identity{alice, bob, carol}

	rng := rand.New(rand.NewSource(7))
	tolerated := []error{ErrStakeLocked, ErrNothingToHarvest, ErrNotEnoughBalance, ErrStakeNotFound, ErrRewardRateZero}
	check := func(op string, err error) {
		t.Helper()
		if err == nil {
			return
		}
		for _, target := range tolerated {
			if errors.Is(err, target) {
				return
			}
		}
		t.Fatalf("%s: %v", op, err)
	}

	var now, harvested uint64
	for step := 0; step < 400; step++ {
		now += uint64(rng.Intn(60))
		who := users[rng.Intn(len(users))]
		switch rng.Intn(4) {
		case 0:
			amount := uint64(rng.Intn(1000) + 1)
			env.mint(t, who, stakeAsset, amount)
			check("stake", env.engine.Stake(key, who, StakeInput{Amount: amount}, now))
		case 1:
			_, err := env.engine.Unstake(key, who, StakeInput{Amount: uint64(rng.Intn(500) + 1)}, now)
			check("unstake", err)
		case 2:
			amount, err := env.engine.Harvest(key, who, now)
			check("harvest", err)
			harvested += amount
		case 3:
			amount := uint64(rng.Intn(5000) + 1)
			env.mint(t, owner, rewardAsset, amount)
			check("deposit", env.engine.DepositReward(key, owner, amount, uint64(rng.Intn(5000)+100), now))
		}
	}

	pool := env.pool(t, key)
	owed := harvested
	for _, who := range users {
		amount, err := env.engine.PendingReward(key, who, now)
		if errors.Is(err, ErrStakeNotFound) {
			continue
		}
		if err != nil {
			t.Fatalf("pending: %v", err)
		}
		owed += amount
	}
	if owed > pool.TotalDeposited {
		t.Fatalf("owed %d exceeds funded %d", owed, pool.TotalDeposited)
	}
	if pool.TotalHarvested != harvested || pool.RewardBalance != pool.TotalDeposited-harvested {
		t.Fatalf("reward accounting drifted: harvested %d/%d balance %d", pool.TotalHarvested, harvested, pool.RewardBalance)
	}
	if env.ledger.Balance(key.ID().Vault(), rewardAsset) != pool.RewardBalance {
		t.Fatalf("custody balance diverged from pool reward balance")
	}
	if env.ledger.Balance(key.ID().Vault(), stakeAsset) != pool.StakeBalance || pool.StakeBalance != pool.TotalStaked {
		t.Fatalf("stake custody diverged")
	}
}
