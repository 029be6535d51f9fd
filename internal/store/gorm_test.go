package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jinkaiteo/edms/internal/model"
	"github.com/jinkaiteo/edms/internal/tester"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDoc(family string, major, minor uint32, status model.Status) *model.Document {
	return &model.Document{
		ID:           uuid.NewString(),
		FamilyNumber: family,
		Major:        major,
		Minor:        minor,
		DocumentType: "SOP",
		Title:        "Cleaning",
		Status:       status,
		Author:       "alice",
	}
}

func TestUpdateDocumentRevision(t *testing.T) {
	ctx := context.Background()
	s := NewGormStore(tester.FreshDB(t))

	doc := newDoc("SOP-2025-0001", 1, 0, model.StatusDraft)
	require.NoError(t, s.CreateDocument(ctx, doc))

	reviewer := "bob"
	doc.Status = model.StatusPendingReview
	doc.Reviewer = &reviewer
	require.NoError(t, s.UpdateDocument(ctx, doc, 0))
	assert.EqualValues(t, 1, doc.Revision)

	stored, err := s.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPendingReview, stored.Status)
	assert.Equal(t, "bob", *stored.Reviewer)
	assert.EqualValues(t, 1, stored.Revision)

	// writing with the old revision loses
	doc.Status = model.StatusDraft
	assert.ErrorIs(t, s.UpdateDocument(ctx, doc, 0), ErrStaleRevision)

	stored.Reviewer = nil
	require.NoError(t, s.UpdateDocument(ctx, stored, 1))
	stored, err = s.GetDocumentForUpdate(ctx, doc.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.Reviewer)

	_, err = s.GetDocument(ctx, uuid.NewString())
	assert.ErrorIs(t, err, ErrDocumentNotFound)
}

func TestFamilyVersions(t *testing.T) {
	ctx := context.Background()
	s := NewGormStore(tester.FreshDB(t))
	family := "SOP-2025-0007"

	v, err := s.HighestVersion(ctx, family)
	require.NoError(t, err)
	assert.Nil(t, v)

	for _, doc := range []*model.Document{
		newDoc(family, 1, 0, model.StatusSuperseded),
		newDoc(family, 1, 1, model.StatusEffective),
		newDoc(family, 2, 0, model.StatusTerminated),
		newDoc(family, 2, 1, model.StatusUnderReview),
		newDoc("WI-2025-0001", 5, 0, model.StatusEffective),
	} {
		require.NoError(t, s.CreateDocument(ctx, doc))
	}

	v, err = s.HighestEffectiveVersion(ctx, family)
	require.NoError(t, err)
	assert.Equal(t, "01.01", v.String())

	v, err = s.HighestVersion(ctx, family)
	require.NoError(t, err)
	assert.Equal(t, "02.01", v.String())

	inFlight, err := s.InFlightVersions(ctx, family)
	require.NoError(t, err)
	require.Len(t, inFlight, 1)
	assert.Equal(t, model.StatusUnderReview, inFlight[0].Status)

	docs, err := s.ListFamilyDocuments(ctx, family)
	require.NoError(t, err)
	require.Len(t, docs, 4)
	assert.Equal(t, "01.00", docs[0].Version().String())
	assert.Equal(t, "02.01", docs[3].Version().String())

	docs, total, err := s.ListDocuments(ctx, DocumentFilter{Statuses: []model.Status{model.StatusEffective}, Limit: 1})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Len(t, docs, 1)

	// the second version of a family number is rejected by the unique index
	assert.Error(t, s.CreateDocument(ctx, newDoc(family, 1, 1, model.StatusDraft)))
}

func TestPendingLists(t *testing.T) {
	ctx := context.Background()
	s := NewGormStore(tester.FreshDB(t))
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	due := now.Add(-time.Hour)
	later := now.Add(time.Hour)

	approvedDue := newDoc("A", 1, 0, model.StatusApproved)
	approvedDue.EffectiveDate = &due
	approvedLater := newDoc("B", 1, 0, model.StatusApproved)
	approvedLater.EffectiveDate = &later
	approvedNoDate := newDoc("C", 1, 0, model.StatusApproved)
	effectiveDue := newDoc("D", 1, 0, model.StatusEffective)
	effectiveDue.ObsolescenceDate = &due
	effectiveLater := newDoc("E", 1, 0, model.StatusEffective)
	effectiveLater.ObsolescenceDate = &later

	for _, doc := range []*model.Document{approvedDue, approvedLater, approvedNoDate, effectiveDue, effectiveLater} {
		require.NoError(t, s.CreateDocument(ctx, doc))
	}

	docs, err := s.ListPendingEffective(ctx, now)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, approvedDue.ID, docs[0].ID)

	docs, err = s.ListPendingObsolete(ctx, now)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, effectiveDue.ID, docs[0].ID)
}

func TestFamilyClaimAndSequence(t *testing.T) {
	ctx := context.Background()
	s := NewGormStore(tester.FreshDB(t))

	err := s.Transaction(ctx, func(tx Store) error {
		for want := int64(1); want <= 3; want++ {
			got, err := tx.NextSequence(ctx, "SOP", 2025)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		}
		got, err := tx.NextSequence(ctx, "SOP", 2026)
		require.NoError(t, err)
		assert.EqualValues(t, 1, got)
		return nil
	})
	require.NoError(t, err)

	family := &model.Family{Number: "SOP-2025-0001", DocumentType: "SOP"}
	require.NoError(t, s.CreateFamily(ctx, family))

	id := uuid.NewString()
	family.InFlightID = &id
	require.NoError(t, s.UpdateFamily(ctx, family, 0))
	assert.ErrorIs(t, s.UpdateFamily(ctx, family, 0), ErrStaleRevision)

	stored, err := s.GetFamily(ctx, family.Number)
	require.NoError(t, err)
	assert.Equal(t, id, *stored.InFlightID)

	_, err = s.GetFamily(ctx, "nope")
	assert.ErrorIs(t, err, ErrFamilyNotFound)
}

func TestTransactionRollsBack(t *testing.T) {
	ctx := context.Background()
	s := NewGormStore(tester.FreshDB(t))
	doc := newDoc("SOP-2025-0001", 1, 0, model.StatusDraft)

	err := s.Transaction(ctx, func(tx Store) error {
		require.NoError(t, tx.CreateDocument(ctx, doc))
		return ErrStaleRevision
	})
	assert.ErrorIs(t, err, ErrStaleRevision)

	_, err = s.GetDocument(ctx, doc.ID)
	assert.ErrorIs(t, err, ErrDocumentNotFound)
}

func TestDependencyEdges(t *testing.T) {
	ctx := context.Background()
	s := NewGormStore(tester.FreshDB(t))

	edge := &model.DependencyEdge{ID: uuid.NewString(), SourceID: "s", TargetID: "t", Active: true}
	require.NoError(t, s.CreateDependency(ctx, edge))

	edges, err := s.ListActiveDependents(ctx, "t")
	require.NoError(t, err)
	assert.Len(t, edges, 1)

	edge.Active = false
	require.NoError(t, s.UpdateDependency(ctx, edge))

	edges, err = s.ListActiveDependents(ctx, "t")
	require.NoError(t, err)
	assert.Empty(t, edges)

	edges, err = s.ListDependencies(ctx, "s")
	require.NoError(t, err)
	assert.Len(t, edges, 1)

	_, err = s.GetDependency(ctx, "t", "s")
	assert.ErrorIs(t, err, ErrDependencyNotFound)
}

func TestListClaimedFamilies(t *testing.T) {
	ctx := context.Background()
	s := NewGormStore(tester.FreshDB(t))

	id := uuid.NewString()
	require.NoError(t, s.CreateFamily(ctx, &model.Family{Number: "SOP-2025-0002", DocumentType: "SOP", InFlightID: &id}))
	require.NoError(t, s.CreateFamily(ctx, &model.Family{Number: "SOP-2025-0001", DocumentType: "SOP"}))

	families, err := s.ListClaimedFamilies(ctx)
	require.NoError(t, err)
	require.Len(t, families, 1)
	assert.Equal(t, "SOP-2025-0002", families[0].Number)
}
