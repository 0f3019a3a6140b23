package approvals

import (
	"strings"
	"time"
)

type Status string

const (
	StatusPending  Status = "Pending"
	StatusApproved Status = "Approved"
	StatusRejected Status = "Rejected"
)

// ParseStatus accepts the canonical status names case-insensitively.
func ParseStatus(s string) (Status, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pending":
		return StatusPending, true
	case "approved":
		return StatusApproved, true
	case "rejected":
		return StatusRejected, true
	default:
		return "", false
	}
}

func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// Known request sources. The set is open: unknown sources are stored and
// rendered with a generic card.
const (
	SourceWorkday    = "Workday"
	SourceConcur     = "Concur"
	SourceSalesforce = "Salesforce"
)

var KnownSources = []string{SourceWorkday, SourceConcur, SourceSalesforce}

// Metadata keys written during enrichment.
const (
	MetaSummary   = "ai_summary"
	MetaRiskScore = "risk_score"
)

type Action string

const (
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
)

// Status returns the status an action moves a pending request to.
func (a Action) Status() (Status, bool) {
	switch a {
	case ActionApprove:
		return StatusApproved, true
	case ActionReject:
		return StatusRejected, true
	default:
		return "", false
	}
}

type Request struct {
	ID                int64          `json:"id"`
	Source            string         `json:"request_source"`
	RequesterName     string         `json:"requester_name"`
	ApproverID        string         `json:"approver_id"`
	Status            Status         `json:"status"`
	JustificationText string         `json:"justification_text"`
	Metadata          map[string]any `json:"metadata_json"`
	Embedding         []float32      `json:"-"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
}

// Summary returns the AI summary stored in metadata, if any.
func (r Request) Summary() string {
	s, _ := r.Metadata[MetaSummary].(string)
	return s
}

type NewRequest struct {
	Source            string
	RequesterName     string
	ApproverID        string
	JustificationText string
	Metadata          map[string]any
}

// Validate reports the first missing required field.
func (n NewRequest) Validate() error {
	switch {
	case strings.TrimSpace(n.Source) == "":
		return &ValidationError{Field: "request_source"}
	case strings.TrimSpace(n.RequesterName) == "":
		return &ValidationError{Field: "requester_name"}
	case strings.TrimSpace(n.ApproverID) == "":
		return &ValidationError{Field: "approver_id"}
	}
	return nil
}

// Filter narrows the request listing. Zero values mean "any".
type Filter struct {
	Status     Status
	Source     string
	ApproverID string
	Limit      int
	Offset     int
}

// PendingQuery selects the pending requests shown on an approver's home view.
// A nil IDs slice leaves the id set unrestricted.
type PendingQuery struct {
	ApproverID string
	Source     string
	IDs        []int64
	Limit      int
}

type Analysis struct {
	Summary   string
	RiskScore int
}
