package model

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// TransitionRecord is the immutable fact written for every applied transition.
type TransitionRecord struct {
	ID           string         `gorm:"primaryKey;uuid;not null" json:"id"`
	DocumentID   string         `gorm:"uuid;not null;index" json:"document_id"`
	FamilyNumber string         `gorm:"not null;index" json:"family_number"`
	Version      string         `gorm:"not null" json:"version"`
	FromStatus   Status         `json:"from_status"`
	ToStatus     Status         `gorm:"not null" json:"to_status"`
	Actor        string         `gorm:"not null" json:"actor"`
	Action       string         `gorm:"not null;index" json:"action"`
	Comment      string         `json:"comment,omitempty"`
	Payload      datatypes.JSON `json:"payload,omitempty"`
	Timestamp    time.Time      `gorm:"not null;index" json:"timestamp"`
}

func (TransitionRecord) TableName() string {
	return "transition_records"
}

// MarshalBinary encodes the record for transport sinks.
func (r *TransitionRecord) MarshalBinary() ([]byte, error) {
	return json.Marshal(r)
}
