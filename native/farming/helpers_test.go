package farming

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"farmchain/core/events"
	"farmchain/native/bank"
	"farmchain/storage"
)

const (
	stakeAsset  = "LP"
	rewardAsset = "RWD"
)

var (
	owner          = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	alice          = common.HexToAddress("0x00000000000000000000000000000000000000b1")
	bob            = common.HexToAddress("0x00000000000000000000000000000000000000b2")
	emergencyAdmin = common.HexToAddress("0x00000000000000000000000000000000000000e1")
	treasuryAdmin  = common.HexToAddress("0x00000000000000000000000000000000000000e2")
)

type recordingEmitter struct {
	events []events.Event
}

func (r *recordingEmitter) Emit(evt events.Event) { r.events = append(r.events, evt) }

func (r *recordingEmitter) types() []string {
	out := make([]string, 0, len(r.events))
	for _, evt := range r.events {
		out = append(out, evt.EventType())
	}
	return out
}

type stubUnit struct {
	unit  CollateralUnit
	owner Identity
}

type stubVault struct {
	units map[string]*stubUnit
}

func newStubVault() *stubVault { return &stubVault{units: make(map[string]*stubUnit)} }

func (v *stubVault) add(id, collection string, amount uint64, holder Identity) {
	v.units[id] = &stubUnit{unit: CollateralUnit{ID: id, Collection: collection, Amount: amount}, owner: holder}
}

func (v *stubVault) Describe(unitID string) (CollateralUnit, Identity, error) {
	u, ok := v.units[unitID]
	if !ok {
		return CollateralUnit{}, Identity{}, errors.New("unknown unit")
	}
	return u.unit, u.owner, nil
}

func (v *stubVault) Transfer(unitID string, from, to Identity) error {
	u, ok := v.units[unitID]
	if !ok {
		return errors.New("unknown unit")
	}
	if u.owner != from {
		return errors.New("not owner")
	}
	u.owner = to
	return nil
}

type testEnv struct {
	engine  *Engine
	ledger  *bank.Ledger
	vault   *stubVault
	emitter *recordingEmitter
	db      *storage.MemDB
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.EmergencyAdmin = emergencyAdmin
	cfg.TreasuryAdmin = treasuryAdmin
	return cfg
}

func newTestEnv(t *testing.T, cfg Config) *testEnv {
	t.Helper()
	db := storage.NewMemDB()
	env := &testEnv{
		engine:  NewEngine(cfg, NewRegistry(db)),
		ledger:  bank.NewLedger(),
		vault:   newStubVault(),
		emitter: &recordingEmitter{},
		db:      db,
	}
	env.engine.SetCustody(env.ledger)
	env.engine.SetCollateral(env.vault)
	env.engine.SetEmitter(env.emitter)
	return env
}

func (env *testEnv) mint(t *testing.T, who Identity, asset string, amount uint64) {
	t.Helper()
	if err := env.ledger.Mint(who, asset, amount); err != nil {
		t.Fatalf("mint %s: %v", asset, err)
	}
}

func (env *testEnv) register(t *testing.T, params PoolParams, funding, duration, now uint64) PoolKey {
	t.Helper()
	env.mint(t, owner, params.RewardAsset, funding)
	if _, err := env.engine.RegisterPool(owner, params, funding, duration, now); err != nil {
		t.Fatalf("register pool: %v", err)
	}
	return NewPoolKey(owner, params.Collection)
}

func (env *testEnv) stake(t *testing.T, key PoolKey, who Identity, in StakeInput, now uint64) {
	t.Helper()
	pool, err := env.engine.registry.Load(key.ID())
	if err != nil {
		t.Fatalf("load pool: %v", err)
	}
	env.mint(t, who, pool.StakeAssetFor(in.Bucket), in.Amount)
	if err := env.engine.Stake(key, who, in, now); err != nil {
		t.Fatalf("stake: %v", err)
	}
}

func (env *testEnv) pool(t *testing.T, key PoolKey) *Pool {
	t.Helper()
	pool, err := env.engine.registry.Load(key.ID())
	if err != nil {
		t.Fatalf("load pool: %v", err)
	}
	return pool
}

func scalarParams() PoolParams {
	return PoolParams{StakeAsset: stakeAsset, RewardAsset: rewardAsset}
}

func pending(t *testing.T, env *testEnv, key PoolKey, who Identity, now uint64) uint64 {
	t.Helper()
	amount, err := env.engine.PendingReward(key, who, now)
	if err != nil {
		t.Fatalf("pending reward: %v", err)
	}
	return amount
}
