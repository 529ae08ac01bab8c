package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/SeungheonOh/xreserve-relay/internal/store"
)

var txHashPattern = regexp.MustCompile(`^0x[a-fA-F0-9]{64}$`)

type submitRequest struct {
	SourceDomain int    `json:"sourceDomain"`
	TxHash       string `json:"txHash"`
}

// jobResponse is the narrow projection the API exposes to callers: no
// attested payload, no decoded fields, no operational counters.
type jobResponse struct {
	TxHash       string  `json:"txHash"`
	SourceDomain int     `json:"sourceDomain"`
	Status       string  `json:"status"`
	Outcome      *string `json:"outcome"`
	Error        *string `json:"error"`
	DestTxHash   *string `json:"destTxHash"`
	CreatedAt    string  `json:"createdAt"`
	AttestedAt   *string `json:"attestedAt"`
	SubmittedAt  *string `json:"submittedAt"`
	ConfirmedAt  *string `json:"confirmedAt"`
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "malformed request body"})
		return
	}

	if !s.allowed[req.SourceDomain] {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "unrecognized sourceDomain"})
		return
	}

	txHash := strings.ToLower(req.TxHash)
	if !txHashPattern.MatchString(txHash) {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "txHash must match ^0x[a-fA-F0-9]{64}$"})
		return
	}

	now := time.Now()
	job := &store.RelayJob{
		TxHash:       txHash,
		SourceDomain: req.SourceDomain,
		Status:       store.StatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err := s.store.Create(r.Context(), job)
	switch {
	case err == nil:
		writeJSON(w, http.StatusCreated, toJobResponse(job))
	case errors.Is(err, store.ErrConflict):
		existing, getErr := s.store.Get(r.Context(), txHash)
		if getErr != nil {
			writeJSON(w, http.StatusInternalServerError, errorBody{Error: "store failure"})
			return
		}
		writeJSON(w, http.StatusOK, toJobResponse(existing))
	default:
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "store failure"})
	}
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	txHash := strings.ToLower(mux.Vars(r)["txHash"])

	job, err := s.store.Get(r.Context(), txHash)
	if errors.Is(err, store.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "Job not found"})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "store failure"})
		return
	}

	writeJSON(w, http.StatusOK, toJobResponse(job))
}

type healthResponse struct {
	Status string               `json:"status"`
	Jobs   map[store.Status]int `json:"jobs"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	counts, err := s.store.CountByStatus(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, healthResponse{Status: "unhealthy"})
		return
	}
	writeJSON(w, http.StatusOK, healthResponse{Status: "healthy", Jobs: counts})
}

func toJobResponse(job *store.RelayJob) jobResponse {
	resp := jobResponse{
		TxHash:       job.TxHash,
		SourceDomain: job.SourceDomain,
		Status:       string(job.Status),
		CreatedAt:    job.CreatedAt.UTC().Format(time.RFC3339),
	}
	if job.Status == store.StatusConfirmed {
		outcome := string(job.Outcome)
		resp.Outcome = &outcome
	}
	if job.ErrorMessage != "" {
		errMsg := job.ErrorMessage
		resp.Error = &errMsg
	}
	if job.DestTxHash != "" {
		destHash := job.DestTxHash
		resp.DestTxHash = &destHash
	}
	if !job.AttestedAt.IsZero() {
		ts := job.AttestedAt.UTC().Format(time.RFC3339)
		resp.AttestedAt = &ts
	}
	if !job.SubmittedAt.IsZero() {
		ts := job.SubmittedAt.UTC().Format(time.RFC3339)
		resp.SubmittedAt = &ts
	}
	if !job.ConfirmedAt.IsZero() {
		ts := job.ConfirmedAt.UTC().Format(time.RFC3339)
		resp.ConfirmedAt = &ts
	}
	return resp
}
