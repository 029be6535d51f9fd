package model

import "time"

// DependencyEdge records that the source document depends on the target.
// Inactive edges are kept for history and ignored by the resolver.
type DependencyEdge struct {
	ID        string `gorm:"primaryKey;uuid;not null"`
	SourceID  string `gorm:"uuid;not null;uniqueIndex:idx_dependency_edges_source_target"`
	TargetID  string `gorm:"uuid;not null;uniqueIndex:idx_dependency_edges_source_target;index:idx_dependency_edges_target_active"`
	Active    bool   `gorm:"not null;default:true;index:idx_dependency_edges_target_active"`
	Critical  bool   `gorm:"not null;default:false"`
	CreatedBy string
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (DependencyEdge) TableName() string {
	return "dependency_edges"
}
