package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"approvalhub/internal/approvals"
	"approvalhub/internal/logging"
)

var readAll = io.ReadAll

type newApprovalResponse struct {
	ID      int64  `json:"id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

type listRequestsResponse struct {
	Requests []approvals.Request `json:"requests"`
	Count    int                 `json:"count"`
}

func (s *Server) ingestAuthorized(r *http.Request) bool {
	if s.IngestToken == "" {
		return true
	}
	auth := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(auth, "Bearer ")
	return ok && constantTimeEqual(strings.TrimSpace(token), s.IngestToken)
}

func (s *Server) handleNewApproval(w http.ResponseWriter, r *http.Request) {
	logger := logging.FromContext(r.Context())
	if !s.ingestAuthorized(r) {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	body, err := readAll(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	var doc map[string]any
	if err := json.Unmarshal(body, &doc); err != nil || doc == nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := validateNewApproval(doc); err != nil {
		var verr *approvals.ValidationError
		if errors.As(err, &verr) {
			writeError(w, http.StatusBadRequest, verr.Error())
			return
		}
		logger.Error("ingest schema unavailable", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	in := approvals.NewRequest{
		Source:            stringField(doc, "request_source"),
		RequesterName:     stringField(doc, "requester_name"),
		ApproverID:        stringField(doc, "approver_id"),
		JustificationText: stringField(doc, "justification_text"),
	}
	if meta, ok := doc["metadata"].(map[string]any); ok {
		in.Metadata = meta
	}

	if s.Approvals == nil {
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}
	req, err := s.Approvals.Create(r.Context(), in)
	if err != nil {
		var verr *approvals.ValidationError
		if errors.As(err, &verr) {
			writeError(w, http.StatusBadRequest, verr.Error())
			return
		}
		logger.Error("create approval request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}
	writeJSON(w, http.StatusCreated, newApprovalResponse{
		ID:      req.ID,
		Status:  "created",
		Message: "Approval request created successfully",
	})
}

func (s *Server) handleListRequests(w http.ResponseWriter, r *http.Request) {
	filter, err := parseListFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if s.Approvals == nil {
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}
	reqs, err := s.Approvals.List(r.Context(), filter)
	if err != nil {
		logging.FromContext(r.Context()).Error("list approval requests failed", "error", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}
	if reqs == nil {
		reqs = []approvals.Request{}
	}
	writeJSON(w, http.StatusOK, listRequestsResponse{Requests: reqs, Count: len(reqs)})
}

func parseListFilter(r *http.Request) (approvals.Filter, error) {
	q := r.URL.Query()
	filter := approvals.Filter{
		Source:     strings.TrimSpace(q.Get("source")),
		ApproverID: strings.TrimSpace(q.Get("approver_id")),
	}
	if v := strings.TrimSpace(q.Get("status")); v != "" {
		status, ok := approvals.ParseStatus(v)
		if !ok {
			return approvals.Filter{}, &approvals.ValidationError{Field: "status", Reason: fmt.Sprintf("unknown status %q", v)}
		}
		filter.Status = status
	}
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			filter.Limit = n
		}
	}
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			filter.Offset = n
		}
	}
	return filter, nil
}

func stringField(doc map[string]any, key string) string {
	s, _ := doc[key].(string)
	return s
}
