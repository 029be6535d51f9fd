package store

import (
	"context"
	"time"

	"github.com/jinkaiteo/edms/internal/model"
)

type Store interface {
	DocumentStore
	FamilyStore
	TransitionStore
	DependencyStore
	// Transaction runs f against a store bound to a single database transaction.
	Transaction(ctx context.Context, f func(tx Store) error) error
	Migrate() error
}

// DocumentFilter narrows ListDocuments. Zero values match everything.
type DocumentFilter struct {
	FamilyNumber string
	DocumentType string
	Author       string
	Statuses     []model.Status
	Offset       int
	Limit        int
}

type DocumentStore interface {
	// CreateDocument creates a new document.
	CreateDocument(ctx context.Context, doc *model.Document) error
	// GetDocument retrieves a document by ID.
	GetDocument(ctx context.Context, id string) (*model.Document, error)
	// GetDocumentForUpdate retrieves a document and locks its row where the dialect supports it.
	GetDocumentForUpdate(ctx context.Context, id string) (*model.Document, error)
	// ListDocuments retrieves documents matching the filter and the total count.
	ListDocuments(ctx context.Context, filter DocumentFilter) ([]*model.Document, int64, error)
	// ListFamilyDocuments retrieves every version of a family ordered by version.
	ListFamilyDocuments(ctx context.Context, familyNumber string) ([]*model.Document, error)
	// UpdateDocument writes doc if its stored revision still equals expectedRevision.
	UpdateDocument(ctx context.Context, doc *model.Document, expectedRevision int64) error
	// HighestEffectiveVersion returns the highest EFFECTIVE version of a family, nil if none.
	HighestEffectiveVersion(ctx context.Context, familyNumber string) (*model.Version, error)
	// HighestVersion returns the highest version ever allocated in a family, nil if none.
	HighestVersion(ctx context.Context, familyNumber string) (*model.Version, error)
	// InFlightVersions returns the family documents that are neither terminal nor EFFECTIVE.
	InFlightVersions(ctx context.Context, familyNumber string) ([]*model.Document, error)
	// ListPendingEffective returns APPROVED documents whose effective date is not after asOf.
	ListPendingEffective(ctx context.Context, asOf time.Time) ([]*model.Document, error)
	// ListPendingObsolete returns EFFECTIVE documents whose obsolescence date is not after asOf.
	ListPendingObsolete(ctx context.Context, asOf time.Time) ([]*model.Document, error)
}

type FamilyStore interface {
	CreateFamily(ctx context.Context, family *model.Family) error
	GetFamily(ctx context.Context, number string) (*model.Family, error)
	// UpdateFamily writes family if its stored revision still equals expectedRevision.
	UpdateFamily(ctx context.Context, family *model.Family, expectedRevision int64) error
	// ListClaimedFamilies returns families whose in-flight marker is set.
	ListClaimedFamilies(ctx context.Context) ([]*model.Family, error)
	// NextSequence increments and returns the family number counter for prefix and year.
	NextSequence(ctx context.Context, prefix string, year int) (int64, error)
}

type TransitionStore interface {
	InsertTransitionRecord(ctx context.Context, record *model.TransitionRecord) error
	ListTransitionRecords(ctx context.Context, documentID string) ([]*model.TransitionRecord, error)
	ListFamilyTransitionRecords(ctx context.Context, familyNumber string) ([]*model.TransitionRecord, error)
}

type DependencyStore interface {
	CreateDependency(ctx context.Context, edge *model.DependencyEdge) error
	GetDependency(ctx context.Context, sourceID, targetID string) (*model.DependencyEdge, error)
	UpdateDependency(ctx context.Context, edge *model.DependencyEdge) error
	// ListActiveDependents returns active edges pointing at targetID.
	ListActiveDependents(ctx context.Context, targetID string) ([]*model.DependencyEdge, error)
	// ListActiveDependencies returns active edges leaving sourceID.
	ListActiveDependencies(ctx context.Context, sourceID string) ([]*model.DependencyEdge, error)
	// ListDependencies returns every edge leaving sourceID, active or not.
	ListDependencies(ctx context.Context, sourceID string) ([]*model.DependencyEdge, error)
}
