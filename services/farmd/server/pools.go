package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"

	farmcrypto "farmchain/crypto"
	"farmchain/native/farming"
)

func callerFrom(r *http.Request) (common.Address, error) {
	raw := strings.TrimSpace(r.Header.Get(HeaderCaller))
	if raw == "" {
		return common.Address{}, errCallerRequired
	}
	return parseAddress(raw)
}

func parseAddress(raw string) (common.Address, error) {
	return farmcrypto.ParseAddress(raw)
}

// poolFrom resolves the {pool} URL parameter to its registry key.
func (s *Server) poolFrom(r *http.Request) (farming.PoolKey, farming.PoolID, error) {
	id, err := farming.ParsePoolID(chi.URLParam(r, "pool"))
	if err != nil {
		return farming.PoolKey{}, farming.PoolID{}, err
	}
	key, err := s.engine.KeyOf(id)
	if err != nil {
		return farming.PoolKey{}, id, err
	}
	return key, id, nil
}

// mutate runs fn under the pool lock with the caller and key resolved.
func (s *Server) mutate(w http.ResponseWriter, r *http.Request, fn func(key farming.PoolKey, caller common.Address) (interface{}, error)) {
	caller, err := callerFrom(r)
	if err != nil {
		writeJSONError(w, http.StatusUnauthorized, err)
		return
	}
	s.mutateAs(w, r, caller, fn)
}

func (s *Server) mutateAs(w http.ResponseWriter, r *http.Request, caller common.Address, fn func(key farming.PoolKey, caller common.Address) (interface{}, error)) {
	key, id, err := s.poolFrom(r)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	release := s.locks.lock(id)
	result, err := fn(key, caller)
	release()
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type registerPoolRequest struct {
	Collection     string     `json:"collection"`
	StakeAsset     string     `json:"stakeAsset"`
	RewardAsset    string     `json:"rewardAsset"`
	StakeDecimals  uint8      `json:"stakeDecimals"`
	RewardDecimals uint8      `json:"rewardDecimals"`
	Boost          *boostJSON `json:"boost,omitempty"`
	Funding        uint64     `json:"funding"`
	Duration       uint64     `json:"duration"`
}

func (s *Server) handleRegisterPool(w http.ResponseWriter, r *http.Request) {
	caller, err := callerFrom(r)
	if err != nil {
		writeJSONError(w, http.StatusUnauthorized, err)
		return
	}
	var req registerPoolRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, err)
		return
	}
	params := farming.PoolParams{
		Collection:     req.Collection,
		StakeAsset:     req.StakeAsset,
		RewardAsset:    req.RewardAsset,
		StakeDecimals:  req.StakeDecimals,
		RewardDecimals: req.RewardDecimals,
	}
	if req.Boost != nil {
		params.Boost = &farming.BoostConfig{Percent: req.Boost.Percent, Collection: req.Boost.Collection}
	}
	key := farming.NewPoolKey(caller, req.Collection)
	release := s.locks.lock(key.ID())
	id, err := s.engine.RegisterPool(caller, params, req.Funding, req.Duration, s.now())
	release()
	if err != nil {
		writeEngineError(w, err)
		return
	}
	view, err := s.engine.PoolInfoByID(id, s.now())
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, poolJSONFrom(view))
}

type depositRequest struct {
	Amount   uint64 `json:"amount"`
	Duration uint64 `json:"duration"`
}

func (s *Server) handleDepositReward(w http.ResponseWriter, r *http.Request) {
	var req depositRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, err)
		return
	}
	s.mutate(w, r, func(key farming.PoolKey, caller common.Address) (interface{}, error) {
		now := s.now()
		if err := s.engine.DepositReward(key, caller, req.Amount, req.Duration, now); err != nil {
			return nil, err
		}
		view, err := s.engine.PoolInfo(key, now)
		if err != nil {
			return nil, err
		}
		return poolJSONFrom(view), nil
	})
}

type stakeRequest struct {
	Bucket uint64 `json:"bucket"`
	Amount uint64 `json:"amount"`
}

func (req stakeRequest) input() farming.StakeInput {
	return farming.StakeInput{Bucket: farming.BucketID(req.Bucket), Amount: req.Amount}
}

func (s *Server) handleStake(w http.ResponseWriter, r *http.Request) {
	var req stakeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, err)
		return
	}
	s.mutate(w, r, func(key farming.PoolKey, caller common.Address) (interface{}, error) {
		now := s.now()
		if err := s.engine.Stake(key, caller, req.input(), now); err != nil {
			return nil, err
		}
		return s.stakeView(key, caller, now)
	})
}

func (s *Server) handleUnstake(w http.ResponseWriter, r *http.Request) {
	var req stakeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, err)
		return
	}
	s.mutate(w, r, func(key farming.PoolKey, caller common.Address) (interface{}, error) {
		out, err := s.engine.Unstake(key, caller, req.input(), s.now())
		if err != nil {
			return nil, err
		}
		return bucketJSON{Bucket: uint64(out.Bucket), Amount: out.Amount}, nil
	})
}

func (s *Server) handleHarvest(w http.ResponseWriter, r *http.Request) {
	s.mutate(w, r, func(key farming.PoolKey, caller common.Address) (interface{}, error) {
		amount, err := s.engine.Harvest(key, caller, s.now())
		if err != nil {
			return nil, err
		}
		return map[string]uint64{"harvested": amount}, nil
	})
}

type boostRequest struct {
	Unit string `json:"unit"`
}

func (s *Server) handleAttachBoost(w http.ResponseWriter, r *http.Request) {
	var req boostRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, err)
		return
	}
	if strings.TrimSpace(req.Unit) == "" {
		writeJSONError(w, http.StatusBadRequest, errors.New("unit required"))
		return
	}
	s.mutate(w, r, func(key farming.PoolKey, caller common.Address) (interface{}, error) {
		now := s.now()
		if err := s.engine.AttachBoost(key, caller, strings.TrimSpace(req.Unit), now); err != nil {
			return nil, err
		}
		return s.stakeView(key, caller, now)
	})
}

func (s *Server) handleDetachBoost(w http.ResponseWriter, r *http.Request) {
	s.mutate(w, r, func(key farming.PoolKey, caller common.Address) (interface{}, error) {
		unit, err := s.engine.DetachBoost(key, caller, s.now())
		if err != nil {
			return nil, err
		}
		return unitJSONFrom(unit), nil
	})
}

func (s *Server) handleEnableEmergency(w http.ResponseWriter, r *http.Request) {
	admin, _ := adminFrom(r.Context())
	s.mutateAs(w, r, admin, func(key farming.PoolKey, caller common.Address) (interface{}, error) {
		if err := s.engine.EnableEmergency(key, caller); err != nil {
			return nil, err
		}
		view, err := s.engine.PoolInfo(key, s.now())
		if err != nil {
			return nil, err
		}
		return poolJSONFrom(view), nil
	})
}

type withdrawalJSON struct {
	Stake      []bucketJSON `json:"stake"`
	Total      uint64       `json:"total"`
	Collateral *unitJSON    `json:"collateral,omitempty"`
}

func (s *Server) handleEmergencyUnstake(w http.ResponseWriter, r *http.Request) {
	s.mutate(w, r, func(key farming.PoolKey, caller common.Address) (interface{}, error) {
		out, err := s.engine.EmergencyUnstake(key, caller)
		if err != nil {
			return nil, err
		}
		resp := withdrawalJSON{Stake: bucketsJSON(out.Stake), Total: out.Total()}
		if out.Collateral != nil {
			unit := unitJSONFrom(*out.Collateral)
			resp.Collateral = &unit
		}
		return resp, nil
	})
}

type treasuryRequest struct {
	Amount uint64 `json:"amount"`
}

func (s *Server) handleWithdrawToTreasury(w http.ResponseWriter, r *http.Request) {
	var req treasuryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, err)
		return
	}
	admin, _ := adminFrom(r.Context())
	s.mutateAs(w, r, admin, func(key farming.PoolKey, caller common.Address) (interface{}, error) {
		withdrawn, err := s.engine.WithdrawToTreasury(key, caller, req.Amount, s.now())
		if err != nil {
			return nil, err
		}
		return map[string]uint64{"withdrawn": withdrawn}, nil
	})
}

func (s *Server) stakeView(key farming.PoolKey, who common.Address, now uint64) (stakeJSON, error) {
	view, err := s.engine.StakeOf(key, who, now)
	if err != nil {
		return stakeJSON{}, err
	}
	canUnstake, err := s.engine.CanUnstake(key, who, now)
	if err != nil {
		return stakeJSON{}, err
	}
	return stakeJSONFrom(view, canUnstake), nil
}
