package store

import (
	"context"
	"errors"
	"time"

	"github.com/jinkaiteo/edms/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{
		db: db,
	}
}

var _ Store = (*GormStore)(nil)

type GormStore struct {
	db *gorm.DB
}

func (g *GormStore) CreateDocument(ctx context.Context, doc *model.Document) error {
	return g.db.WithContext(ctx).Create(doc).Error
}

func (g *GormStore) GetDocument(ctx context.Context, id string) (*model.Document, error) {
	return g.getDocument(g.db.WithContext(ctx), id)
}

// GetDocumentForUpdate takes a row lock on postgres. Other dialects rely on the
// revision check in UpdateDocument.
func (g *GormStore) GetDocumentForUpdate(ctx context.Context, id string) (*model.Document, error) {
	db := g.db.WithContext(ctx)
	if db.Dialector.Name() == "postgres" {
		db = db.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return g.getDocument(db, id)
}

func (g *GormStore) getDocument(db *gorm.DB, id string) (*model.Document, error) {
	var doc model.Document
	err := db.Where("id = ?", id).First(&doc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrDocumentNotFound
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func (g *GormStore) ListDocuments(ctx context.Context, filter DocumentFilter) ([]*model.Document, int64, error) {
	query := g.db.WithContext(ctx).Model(&model.Document{})
	if filter.FamilyNumber != "" {
		query = query.Where("family_number = ?", filter.FamilyNumber)
	}
	if filter.DocumentType != "" {
		query = query.Where("document_type = ?", filter.DocumentType)
	}
	if filter.Author != "" {
		query = query.Where("author = ?", filter.Author)
	}
	if len(filter.Statuses) > 0 {
		query = query.Where("status IN ?", filter.Statuses)
	}

	// share the filter between the count and the page query
	query = query.Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page := query
	if filter.Offset > 0 {
		page = page.Offset(filter.Offset)
	}
	if filter.Limit > 0 {
		page = page.Limit(filter.Limit)
	}

	var docs []*model.Document
	err := page.Order("family_number asc, major asc, minor asc").Find(&docs).Error
	return docs, total, err
}

func (g *GormStore) ListFamilyDocuments(ctx context.Context, familyNumber string) ([]*model.Document, error) {
	var docs []*model.Document
	err := g.db.WithContext(ctx).
		Where("family_number = ?", familyNumber).
		Order("major asc, minor asc").
		Find(&docs).Error
	return docs, err
}

func (g *GormStore) UpdateDocument(ctx context.Context, doc *model.Document, expectedRevision int64) error {
	now := time.Now().UTC()
	res := g.db.WithContext(ctx).Model(&model.Document{}).
		Where("id = ? AND revision = ?", doc.ID, expectedRevision).
		Updates(map[string]interface{}{
			"title":               doc.Title,
			"status":              doc.Status,
			"reviewer":            doc.Reviewer,
			"approver":            doc.Approver,
			"effective_date":      doc.EffectiveDate,
			"obsolescence_date":   doc.ObsolescenceDate,
			"obsolescence_reason": doc.ObsolescenceReason,
			"reason_for_change":   doc.ReasonForChange,
			"change_summary":      doc.ChangeSummary,
			"revision":            expectedRevision + 1,
			"updated_at":          now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStaleRevision
	}

	doc.Revision = expectedRevision + 1
	doc.UpdatedAt = now
	return nil
}

func (g *GormStore) HighestEffectiveVersion(ctx context.Context, familyNumber string) (*model.Version, error) {
	return g.highestVersion(g.db.WithContext(ctx).
		Where("family_number = ? AND status = ?", familyNumber, model.StatusEffective))
}

func (g *GormStore) HighestVersion(ctx context.Context, familyNumber string) (*model.Version, error) {
	return g.highestVersion(g.db.WithContext(ctx).Where("family_number = ?", familyNumber))
}

func (g *GormStore) highestVersion(query *gorm.DB) (*model.Version, error) {
	var doc model.Document
	err := query.Order("major desc, minor desc").Limit(1).Find(&doc).Error
	if err != nil {
		return nil, err
	}
	if doc.ID == "" {
		return nil, nil
	}

	v := doc.Version()
	return &v, nil
}

func (g *GormStore) InFlightVersions(ctx context.Context, familyNumber string) ([]*model.Document, error) {
	var docs []*model.Document
	err := g.db.WithContext(ctx).
		Where("family_number = ? AND status IN ?", familyNumber, model.InFlightStatuses).
		Order("major asc, minor asc").
		Find(&docs).Error
	return docs, err
}

func (g *GormStore) ListPendingEffective(ctx context.Context, asOf time.Time) ([]*model.Document, error) {
	var docs []*model.Document
	err := g.db.WithContext(ctx).
		Where("status = ? AND effective_date IS NOT NULL AND effective_date <= ?", model.StatusApproved, asOf).
		Order("effective_date asc").
		Find(&docs).Error
	return docs, err
}

func (g *GormStore) ListPendingObsolete(ctx context.Context, asOf time.Time) ([]*model.Document, error) {
	var docs []*model.Document
	err := g.db.WithContext(ctx).
		Where("status = ? AND obsolescence_date IS NOT NULL AND obsolescence_date <= ?", model.StatusEffective, asOf).
		Order("obsolescence_date asc").
		Find(&docs).Error
	return docs, err
}

func (g *GormStore) CreateFamily(ctx context.Context, family *model.Family) error {
	return g.db.WithContext(ctx).Create(family).Error
}

func (g *GormStore) GetFamily(ctx context.Context, number string) (*model.Family, error) {
	var family model.Family
	err := g.db.WithContext(ctx).Where("number = ?", number).First(&family).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrFamilyNotFound
	}
	if err != nil {
		return nil, err
	}
	return &family, nil
}

func (g *GormStore) UpdateFamily(ctx context.Context, family *model.Family, expectedRevision int64) error {
	now := time.Now().UTC()
	res := g.db.WithContext(ctx).Model(&model.Family{}).
		Where("number = ? AND revision = ?", family.Number, expectedRevision).
		Updates(map[string]interface{}{
			"in_flight_id": family.InFlightID,
			"revision":     expectedRevision + 1,
			"updated_at":   now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStaleRevision
	}

	family.Revision = expectedRevision + 1
	family.UpdatedAt = now
	return nil
}

func (g *GormStore) ListClaimedFamilies(ctx context.Context) ([]*model.Family, error) {
	var families []*model.Family
	err := g.db.WithContext(ctx).
		Where("in_flight_id IS NOT NULL").
		Order("number asc").
		Find(&families).Error
	return families, err
}

// NextSequence must run inside a transaction; the UPDATE serializes callers
// sharing the same prefix and year.
func (g *GormStore) NextSequence(ctx context.Context, prefix string, year int) (int64, error) {
	db := g.db.WithContext(ctx)

	seq := &model.DocumentSequence{Prefix: prefix, Year: year}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(seq).Error; err != nil {
		return 0, err
	}

	err := db.Model(&model.DocumentSequence{}).
		Where("prefix = ? AND year = ?", prefix, year).
		Update("counter", gorm.Expr("counter + 1")).Error
	if err != nil {
		return 0, err
	}

	if err := db.Where("prefix = ? AND year = ?", prefix, year).First(seq).Error; err != nil {
		return 0, err
	}

	return seq.Counter, nil
}

func (g *GormStore) InsertTransitionRecord(ctx context.Context, record *model.TransitionRecord) error {
	return g.db.WithContext(ctx).Create(record).Error
}

func (g *GormStore) ListTransitionRecords(ctx context.Context, documentID string) ([]*model.TransitionRecord, error) {
	var records []*model.TransitionRecord
	err := g.db.WithContext(ctx).
		Where("document_id = ?", documentID).
		Order("timestamp asc").
		Find(&records).Error
	return records, err
}

func (g *GormStore) ListFamilyTransitionRecords(ctx context.Context, familyNumber string) ([]*model.TransitionRecord, error) {
	var records []*model.TransitionRecord
	err := g.db.WithContext(ctx).
		Where("family_number = ?", familyNumber).
		Order("timestamp asc").
		Find(&records).Error
	return records, err
}

func (g *GormStore) CreateDependency(ctx context.Context, edge *model.DependencyEdge) error {
	return g.db.WithContext(ctx).Create(edge).Error
}

func (g *GormStore) GetDependency(ctx context.Context, sourceID, targetID string) (*model.DependencyEdge, error) {
	var edge model.DependencyEdge
	err := g.db.WithContext(ctx).
		Where("source_id = ? AND target_id = ?", sourceID, targetID).
		First(&edge).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrDependencyNotFound
	}
	if err != nil {
		return nil, err
	}
	return &edge, nil
}

func (g *GormStore) UpdateDependency(ctx context.Context, edge *model.DependencyEdge) error {
	return g.db.WithContext(ctx).Save(edge).Error
}

func (g *GormStore) ListActiveDependents(ctx context.Context, targetID string) ([]*model.DependencyEdge, error) {
	var edges []*model.DependencyEdge
	err := g.db.WithContext(ctx).
		Where("target_id = ? AND active = ?", targetID, true).
		Order("created_at asc").
		Find(&edges).Error
	return edges, err
}

func (g *GormStore) ListActiveDependencies(ctx context.Context, sourceID string) ([]*model.DependencyEdge, error) {
	var edges []*model.DependencyEdge
	err := g.db.WithContext(ctx).
		Where("source_id = ? AND active = ?", sourceID, true).
		Find(&edges).Error
	return edges, err
}

func (g *GormStore) ListDependencies(ctx context.Context, sourceID string) ([]*model.DependencyEdge, error) {
	var edges []*model.DependencyEdge
	err := g.db.WithContext(ctx).
		Where("source_id = ?", sourceID).
		Order("created_at asc").
		Find(&edges).Error
	return edges, err
}

func (g *GormStore) Migrate() error {
	return model.Migrate(g.db)
}

func (g *GormStore) Transaction(ctx context.Context, f func(tx Store) error) error {
	return g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return f(&GormStore{db: tx})
	})
}
