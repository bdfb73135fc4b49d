package model

import "time"

// ContractTemplate is reusable contract text maintained by admins.
// It is only ever replaced as a whole.
type ContractTemplate struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Content      string    `json:"content"`
	CreatedBy    string    `json:"created_by"`
	CreateDate   time.Time `json:"create_date"`
	LastModified time.Time `json:"last_modified"`
	Version      int64     `json:"version"`
}

func (t *ContractTemplate) GetID() string { return t.ID }
func (t *ContractTemplate) SetID(id string) { t.ID = id }
func (t *ContractTemplate) GetVersion() int64 { return t.Version }
func (t *ContractTemplate) SetVersion(v int64) { t.Version = v }
func (t *ContractTemplate) CreatedAt() time.Time { return t.CreateDate }

// Stamp sets server-managed timestamps. A fresh template has CreateDate == LastModified.
func (t *ContractTemplate) Stamp(now time.Time, created bool) {
	if created {
		if t.CreateDate.IsZero() {
			t.CreateDate = now
		}
		t.LastModified = t.CreateDate
		return
	}
	t.LastModified = now
}

// Clone returns a copy
func (t *ContractTemplate) Clone() ContractTemplate {
	return *t
}
