package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"farmchain/native/farming"
	"farmchain/native/params"
)

type balanceJSON struct {
	Asset  string `json:"asset"`
	Amount uint64 `json:"amount"`
}

func (s *Server) handleBalances(w http.ResponseWriter, r *http.Request) {
	who, err := parseAddress(chi.URLParam(r, "who"))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err)
		return
	}
	assets := s.ledger.Assets(who)
	out := make([]balanceJSON, 0, len(assets))
	for _, asset := range assets {
		out = append(out, balanceJSON{Asset: asset, Amount: s.ledger.Balance(who, asset)})
	}
	writeJSON(w, http.StatusOK, out)
}

type collateralJSON struct {
	unitJSON
	Owner string `json:"owner"`
}

func (s *Server) handleCollateralUnit(w http.ResponseWriter, r *http.Request) {
	unit, owner, err := s.units.Describe(chi.URLParam(r, "unit"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, collateralJSON{unitJSON: unitJSONFrom(unit), Owner: owner.Hex()})
}

type splitRequest struct {
	Amount uint64 `json:"amount"`
}

func (s *Server) handleSplitUnit(w http.ResponseWriter, r *http.Request) {
	caller, err := callerFrom(r)
	if err != nil {
		writeJSONError(w, http.StatusUnauthorized, err)
		return
	}
	var req splitRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, err)
		return
	}
	id, err := s.units.Split(chi.URLParam(r, "unit"), caller, req.Amount)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	s.writeUnit(w, http.StatusCreated, id)
}

type mergeRequest struct {
	Source string `json:"source"`
}

func (s *Server) handleMergeUnit(w http.ResponseWriter, r *http.Request) {
	caller, err := callerFrom(r)
	if err != nil {
		writeJSONError(w, http.StatusUnauthorized, err)
		return
	}
	var req mergeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, err)
		return
	}
	dst := chi.URLParam(r, "unit")
	if err := s.units.Merge(caller, dst, strings.TrimSpace(req.Source)); err != nil {
		writeEngineError(w, err)
		return
	}
	s.writeUnit(w, http.StatusOK, dst)
}

func (s *Server) writeUnit(w http.ResponseWriter, status int, id string) {
	unit, owner, err := s.units.Describe(id)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, status, collateralJSON{unitJSON: unitJSONFrom(unit), Owner: owner.Hex()})
}

func (s *Server) handleGlobalEmergency(w http.ResponseWriter, r *http.Request) {
	emergency, err := s.params.Emergency()
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, emergency)
}

type emergencyRequest struct {
	Active bool   `json:"active"`
	Reason string `json:"reason"`
}

func (s *Server) handleSetGlobalEmergency(w http.ResponseWriter, r *http.Request) {
	admin, _ := adminFrom(r.Context())
	if admin != s.engine.Config().EmergencyAdmin {
		s.logger.Warn("global emergency change rejected", "caller", admin.Hex())
		writeEngineError(w, farming.ErrNotEmergencyAdmin)
		return
	}
	var req emergencyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, err)
		return
	}
	emergency := params.Emergency{Active: req.Active, Reason: req.Reason, Since: s.now()}
	if err := s.params.SetGlobalEmergency(emergency); err != nil {
		writeJSONError(w, http.StatusInternalServerError, err)
		return
	}
	s.logger.Warn("global emergency updated", "active", req.Active, "reason", strings.TrimSpace(req.Reason), "caller", admin.Hex())
	current, err := s.params.Emergency()
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, current)
}

type mintRequest struct {
	Owner  string `json:"owner"`
	Asset  string `json:"asset"`
	Amount uint64 `json:"amount"`
}

func (s *Server) handleMint(w http.ResponseWriter, r *http.Request) {
	var req mintRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, err)
		return
	}
	owner, err := parseAddress(req.Owner)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err)
		return
	}
	if req.Amount == 0 {
		writeJSONError(w, http.StatusBadRequest, errors.New("amount must be positive"))
		return
	}
	if err := s.ledger.Mint(owner, req.Asset, req.Amount); err != nil {
		writeJSONError(w, http.StatusBadRequest, err)
		return
	}
	asset := strings.TrimSpace(req.Asset)
	writeJSON(w, http.StatusOK, balanceJSON{Asset: asset, Amount: s.ledger.Balance(owner, asset)})
}

type mintCollateralRequest struct {
	Owner      string `json:"owner"`
	Collection string `json:"collection"`
	Amount     uint64 `json:"amount"`
}

func (s *Server) handleMintCollateral(w http.ResponseWriter, r *http.Request) {
	var req mintCollateralRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, err)
		return
	}
	owner, err := parseAddress(req.Owner)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err)
		return
	}
	id, err := s.units.Mint(owner, req.Collection, req.Amount)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err)
		return
	}
	s.writeUnit(w, http.StatusCreated, id)
}
