package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// Priority of a task
type Priority string

const (
	PriorityHigh   Priority = "High"
	PriorityMedium Priority = "Medium"
	PriorityLow    Priority = "Low"
)

// TaskType classifies a task
type TaskType string

const (
	TaskReview      TaskType = "Review"
	TaskRenewal     TaskType = "Renewal"
	TaskFollowUp    TaskType = "Follow-up"
	TaskSignature   TaskType = "Signature"
	TaskObligation  TaskType = "Obligation"
	TaskApproval    TaskType = "Approval"
	TaskNegotiation TaskType = "Negotiation"
	TaskAmendment   TaskType = "Amendment"
	TaskGeneric     TaskType = "Task"
)

// TaskStatus is the progress of a task
type TaskStatus string

const (
	TaskPending    TaskStatus = "Pending"
	TaskInProgress TaskStatus = "In Progress"
	TaskCompleted  TaskStatus = "Completed"
	TaskOverdue    TaskStatus = "Overdue"
)

// ParsePriority validates a raw priority
func ParsePriority(s string) (Priority, error) {
	switch p := Priority(s); p {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return p, nil
	default:
		return "", NewValidationError("priority", "must be one of High, Medium, Low")
	}
}

// ParseTaskType validates a raw task type
func ParseTaskType(s string) (TaskType, error) {
	switch t := TaskType(s); t {
	case TaskReview, TaskRenewal, TaskFollowUp, TaskSignature, TaskObligation,
		TaskApproval, TaskNegotiation, TaskAmendment, TaskGeneric:
		return t, nil
	default:
		return "", NewValidationError("type", "unknown task type")
	}
}

// ParseTaskStatus validates a raw task status. Empty means unset.
func ParseTaskStatus(s string) (TaskStatus, error) {
	switch st := TaskStatus(s); st {
	case "", TaskPending, TaskInProgress, TaskCompleted, TaskOverdue:
		return st, nil
	default:
		return "", NewValidationError("status", "must be one of Pending, In Progress, Completed, Overdue")
	}
}

// Open reports whether the task still needs work
func (s TaskStatus) Open() bool {
	switch s {
	case TaskCompleted:
		return false
	case "", TaskPending, TaskInProgress, TaskOverdue:
		return true
	default:
		return true
	}
}

// Due is either a relative hint ("in 3 days") or an absolute point in time
type Due struct {
	Relative string
	At       *time.Time
}

// DueIn builds a relative due indicator
func DueIn(hint string) Due { return Due{Relative: hint} }

// DueAt builds an absolute due indicator
func DueAt(t time.Time) Due { return Due{At: &t} }

// PastDue reports whether an absolute due time lies before now.
// Relative hints are never considered past due.
func (d Due) PastDue(now time.Time) bool {
	return d.At != nil && d.At.Before(now)
}

func (d Due) String() string {
	if d.At != nil {
		return d.At.Format(time.RFC3339)
	}
	return d.Relative
}

func (d Due) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Due) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("due must be a string: %w", err)
	}
	*d = ParseDue(raw)
	return nil
}

// UnmarshalYAML lets seed data carry due values as plain strings
func (d *Due) UnmarshalYAML(unmarshal func(any) error) error {
	var raw string
	if err := unmarshal(&raw); err != nil {
		return err
	}
	*d = ParseDue(raw)
	return nil
}

// ParseDue treats RFC3339 timestamps and YYYY-MM-DD dates as absolute, anything else as relative
func ParseDue(raw string) Due {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return DueAt(t)
	}
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return DueAt(t)
	}
	return DueIn(raw)
}

// TaskItem is a to-do item on the dashboard
type TaskItem struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Due         Due        `json:"due"`
	Priority    Priority   `json:"priority"`
	Link        string     `json:"link,omitempty"`
	Type        TaskType   `json:"type"`
	Status      TaskStatus `json:"status,omitempty"`
	Assignee    string     `json:"assignee,omitempty"`
	Description string     `json:"description,omitempty"`
	Created     time.Time  `json:"created_at"`
	Version     int64      `json:"version"`
}

func (t *TaskItem) GetID() string { return t.ID }
func (t *TaskItem) SetID(id string) { t.ID = id }
func (t *TaskItem) GetVersion() int64 { return t.Version }
func (t *TaskItem) SetVersion(v int64) { t.Version = v }
func (t *TaskItem) CreatedAt() time.Time { return t.Created }

func (t *TaskItem) Stamp(now time.Time, created bool) {
	if created && t.Created.IsZero() {
		t.Created = now
	}
}

// Clone returns a deep copy
func (t *TaskItem) Clone() TaskItem {
	out := *t
	if t.Due.At != nil {
		at := *t.Due.At
		out.Due.At = &at
	}
	return out
}
