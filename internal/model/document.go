package model

import (
	"time"
)

// Document is one version of a controlled document. Documents are never
// deleted; retired versions stay for the audit trail.
type Document struct {
	ID                 string     `gorm:"primaryKey;uuid;not null"`
	FamilyNumber       string     `gorm:"not null;uniqueIndex:idx_documents_family_version"`
	Major              uint32     `gorm:"not null;uniqueIndex:idx_documents_family_version"`
	Minor              uint32     `gorm:"not null;uniqueIndex:idx_documents_family_version"`
	DocumentType       string     `gorm:"not null"`
	Title              string     `gorm:"not null"`
	Status             Status     `gorm:"not null;index"`
	Author             string     `gorm:"not null"`
	Reviewer           *string    ``
	Approver           *string    ``
	EffectiveDate      *time.Time `gorm:"index"`
	ObsolescenceDate   *time.Time `gorm:"index"`
	ObsolescenceReason string     ``
	ReasonForChange    string     ``
	ChangeSummary      string     ``
	PreviousVersionID  *string    `gorm:"uuid"`
	Revision           int64      `gorm:"not null;default:0"` // optimistic concurrency token
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func (Document) TableName() string {
	return "documents"
}

// Version returns the (major, minor) pair of the document.
func (d *Document) Version() Version {
	return Version{Major: d.Major, Minor: d.Minor}
}

// IsPendingEffective reports an APPROVED document waiting for its effective date.
func (d *Document) IsPendingEffective() bool {
	return d.Status == StatusApproved && d.EffectiveDate != nil
}

// IsPendingObsolete reports an EFFECTIVE document scheduled for obsolescence.
func (d *Document) IsPendingObsolete() bool {
	return d.Status == StatusEffective && d.ObsolescenceDate != nil
}

// Clone returns a deep copy so guards can mutate a candidate without touching
// the loaded snapshot.
func (d *Document) Clone() *Document {
	c := *d
	c.Reviewer = cloneString(d.Reviewer)
	c.Approver = cloneString(d.Approver)
	c.PreviousVersionID = cloneString(d.PreviousVersionID)
	c.EffectiveDate = cloneTime(d.EffectiveDate)
	c.ObsolescenceDate = cloneTime(d.ObsolescenceDate)
	return &c
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
