package model

import "time"

// Family tracks the versions sharing one document number. InFlightID points at
// the single version currently being authored, reviewed or approved.
type Family struct {
	Number       string  `gorm:"primaryKey;not null"`
	DocumentType string  `gorm:"not null"`
	InFlightID   *string `gorm:"uuid"`
	Revision     int64   `gorm:"not null;default:0"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (Family) TableName() string {
	return "families"
}

// DocumentSequence hands out the numeric part of family numbers per type and year.
type DocumentSequence struct {
	Prefix  string `gorm:"primaryKey;not null"`
	Year    int    `gorm:"primaryKey;not null"`
	Counter int64  `gorm:"not null;default:0"`
}

func (DocumentSequence) TableName() string {
	return "document_sequences"
}
