package model

import (
	"time"
)

// ContractStatus is the lifecycle state of a contract
type ContractStatus string

// ContractStatus constants
const (
	StatusDraft         ContractStatus = "draft"
	StatusPendingReview ContractStatus = "pending_review"
	StatusActive        ContractStatus = "active"
	StatusArchived      ContractStatus = "archived"
	StatusRejected      ContractStatus = "rejected"
)

// ContractStatuses lists every status in display order
var ContractStatuses = []ContractStatus{
	StatusDraft, StatusPendingReview, StatusActive, StatusArchived, StatusRejected,
}

// ParseContractStatus validates a raw status value
func ParseContractStatus(s string) (ContractStatus, error) {
	switch st := ContractStatus(s); st {
	case StatusDraft, StatusPendingReview, StatusActive, StatusArchived, StatusRejected:
		return st, nil
	default:
		return "", NewValidationError("status", "must be one of draft, pending_review, active, archived, rejected")
	}
}

// CanTransition reports whether a contract in status s may move to next.
// Staying in the same status is always allowed.
func (s ContractStatus) CanTransition(next ContractStatus) bool {
	if s == next {
		return true
	}
	switch s {
	case StatusDraft:
		return next == StatusPendingReview || next == StatusArchived
	case StatusPendingReview:
		return next == StatusActive || next == StatusRejected || next == StatusDraft
	case StatusActive:
		return next == StatusArchived
	case StatusRejected:
		return next == StatusDraft || next == StatusArchived
	case StatusArchived:
		return false
	default:
		return false
	}
}

// Contract represents a contract document
type Contract struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	UploadedBy   string         `json:"uploaded_by"`
	UploadedAt   time.Time      `json:"uploaded_at"`
	Status       ContractStatus `json:"status"`
	Version      int64          `json:"version"`
	FileRef      string         `json:"file_ref,omitempty"`
	Summary      *Summary       `json:"summary,omitempty"`
	TemplateID   string         `json:"template_id,omitempty"`
	LastModified time.Time      `json:"last_modified"`
}

func (c *Contract) GetID() string { return c.ID }
func (c *Contract) SetID(id string) { c.ID = id }
func (c *Contract) GetVersion() int64 { return c.Version }
func (c *Contract) SetVersion(v int64) { c.Version = v }
func (c *Contract) CreatedAt() time.Time { return c.UploadedAt }

// Stamp sets server-managed timestamps
func (c *Contract) Stamp(now time.Time, created bool) {
	if created && c.UploadedAt.IsZero() {
		c.UploadedAt = now
	}
	c.LastModified = now
}

// Clone returns a deep copy
func (c *Contract) Clone() Contract {
	out := *c
	if c.Summary != nil {
		s := c.Summary.Clone()
		out.Summary = &s
	}
	return out
}
