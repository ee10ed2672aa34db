package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"farmchain/integrations/eventlog"
	"farmchain/integrations/exports"
	"farmchain/native/farming"
)

func (s *Server) handleListPools(w http.ResponseWriter, r *http.Request) {
	ids, err := s.engine.Pools()
	if err != nil {
		writeEngineError(w, err)
		return
	}
	now := s.now()
	out := make([]poolJSON, 0, len(ids))
	for _, id := range ids {
		view, err := s.engine.PoolInfoByID(id, now)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		out = append(out, poolJSONFrom(view))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handlePoolInfo(w http.ResponseWriter, r *http.Request) {
	key, _, err := s.poolFrom(r)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	view, err := s.engine.PoolInfo(key, s.now())
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, poolJSONFrom(view))
}

func (s *Server) handleStakeOf(w http.ResponseWriter, r *http.Request) {
	key, _, err := s.poolFrom(r)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	who, err := parseAddress(chi.URLParam(r, "who"))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err)
		return
	}
	view, err := s.stakeView(key, who, s.now())
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleEpochs(w http.ResponseWriter, r *http.Request) {
	key, _, err := s.poolFrom(r)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	epochs, err := s.engine.Epochs(key, s.now())
	if err != nil {
		writeEngineError(w, err)
		return
	}
	out := make([]epochJSON, 0, len(epochs))
	for i, epoch := range epochs {
		out = append(out, epochJSONFrom(i, epoch))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleEpochInfo(w http.ResponseWriter, r *http.Request) {
	key, _, err := s.poolFrom(r)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	index, err := strconv.ParseUint(chi.URLParam(r, "index"), 10, 64)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, errors.New("invalid epoch index"))
		return
	}
	epoch, err := s.engine.EpochInfo(key, index, s.now())
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, epochJSONFrom(int(index), epoch))
}

var exporters = map[string]struct {
	contentType string
	encode      func(farming.PoolID, []farming.Epoch) ([]byte, string, error)
}{
	"csv":     {"text/csv", exports.EpochsCSV},
	"jsonl":   {"application/x-ndjson", exports.EpochsJSONL},
	"parquet": {"application/vnd.apache.parquet", exports.EpochsParquet},
}

func (s *Server) handleExportEpochs(w http.ResponseWriter, r *http.Request) {
	key, id, err := s.poolFrom(r)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	format := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("format")))
	if format == "" {
		format = "csv"
	}
	exporter, ok := exporters[format]
	if !ok {
		writeJSONError(w, http.StatusBadRequest, errors.New("format must be csv, jsonl or parquet"))
		return
	}
	epochs, err := s.engine.Epochs(key, s.now())
	if err != nil {
		writeEngineError(w, err)
		return
	}
	data, checksum, err := exporter.encode(id, epochs)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", exporter.contentType)
	w.Header().Set("X-Checksum-Sha256", checksum)
	w.Header().Set("Content-Disposition", "attachment; filename=\"epochs-"+id.String()+"."+format+"\"")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

type eventJSON struct {
	Sequence   uint64            `json:"sequence"`
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
	CreatedAt  string            `json:"createdAt"`
}

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	if s.events == nil {
		writeJSONError(w, http.StatusServiceUnavailable, errEventLogDisabled)
		return
	}
	query := r.URL.Query()
	q := eventlog.Query{
		Pool: strings.ToLower(strings.TrimSpace(query.Get("pool"))),
		Type: strings.TrimSpace(query.Get("type")),
	}
	if raw := strings.TrimSpace(query.Get("who")); raw != "" {
		who, err := parseAddress(raw)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, err)
			return
		}
		q.Who = who.Hex()
	}
	if raw := strings.TrimSpace(query.Get("after")); raw != "" {
		after, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, errors.New("invalid after cursor"))
			return
		}
		q.After = after
	}
	if raw := strings.TrimSpace(query.Get("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			writeJSONError(w, http.StatusBadRequest, errors.New("invalid limit"))
			return
		}
		q.Limit = limit
	}
	records, err := s.events.List(q)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err)
		return
	}
	out := make([]eventJSON, 0, len(records))
	for _, rec := range records {
		attrs, err := rec.Decoded()
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, err)
			return
		}
		out = append(out, eventJSON{
			Sequence:   rec.Sequence,
			Type:       rec.Type,
			Attributes: attrs,
			CreatedAt:  rec.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, out)
}
