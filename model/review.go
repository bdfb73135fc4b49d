package model

import "time"

// ReviewStatus is the outcome state of a review
type ReviewStatus string

const (
	ReviewPending  ReviewStatus = "pending"
	ReviewApproved ReviewStatus = "approved"
	ReviewRejected ReviewStatus = "rejected"
)

// ParseReviewStatus validates a raw review status
func ParseReviewStatus(s string) (ReviewStatus, error) {
	switch st := ReviewStatus(s); st {
	case ReviewPending, ReviewApproved, ReviewRejected:
		return st, nil
	default:
		return "", NewValidationError("status", "must be one of pending, approved, rejected")
	}
}

// ContractStatus returns the contract status a completed review leads to
func (s ReviewStatus) ContractStatus() (ContractStatus, bool) {
	switch s {
	case ReviewApproved:
		return StatusActive, true
	case ReviewRejected:
		return StatusRejected, true
	case ReviewPending:
		return "", false
	default:
		return "", false
	}
}

// Review tracks the review of one contract
type Review struct {
	ID           string       `json:"id"`
	ContractID   string       `json:"contract_id"`
	ContractName string       `json:"contract_name"`
	Status       ReviewStatus `json:"status"`
	Reviewer     string       `json:"reviewer,omitempty"`
	SubmittedAt  time.Time    `json:"submitted_at"`
	CompletedAt  *time.Time   `json:"completed_at,omitempty"`
	Comments     string       `json:"comments,omitempty"`
	Version      int64        `json:"version"`
}

func (r *Review) GetID() string { return r.ID }
func (r *Review) SetID(id string) { r.ID = id }
func (r *Review) GetVersion() int64 { return r.Version }
func (r *Review) SetVersion(v int64) { r.Version = v }
func (r *Review) CreatedAt() time.Time { return r.SubmittedAt }

func (r *Review) Stamp(now time.Time, created bool) {
	if created && r.SubmittedAt.IsZero() {
		r.SubmittedAt = now
	}
}

// Clone returns a deep copy
func (r *Review) Clone() Review {
	out := *r
	if r.CompletedAt != nil {
		t := *r.CompletedAt
		out.CompletedAt = &t
	}
	return out
}
