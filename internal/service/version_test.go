package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/jinkaiteo/edms/internal/model"
	"github.com/jinkaiteo/edms/internal/store"
	"github.com/jinkaiteo/edms/internal/tester"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedFamily(t *testing.T, s store.Store, family string, docs ...*model.Document) {
	t.Helper()
	ctx := context.Background()
	for _, doc := range docs {
		doc.ID = newID()
		doc.FamilyNumber = family
		doc.DocumentType = "SOP"
		doc.Title = "seed"
		doc.Author = "alice"
		require.NoError(t, s.CreateDocument(ctx, doc))
	}
}

func TestVersionAllocator(t *testing.T) {
	tests := []struct {
		name  string
		docs  []*model.Document
		major bool
		want  string
		inUse bool
	}{
		{
			name: "empty family",
			want: "01.00",
		},
		{
			name: "minor bump",
			docs: []*model.Document{{Major: 1, Minor: 0, Status: model.StatusEffective}},
			want: "01.01",
		},
		{
			name:  "major bump resets minor",
			docs:  []*model.Document{{Major: 1, Minor: 4, Status: model.StatusEffective}},
			major: true,
			want:  "02.00",
		},
		{
			name: "bumps from highest effective",
			docs: []*model.Document{
				{Major: 1, Minor: 0, Status: model.StatusSuperseded},
				{Major: 1, Minor: 1, Status: model.StatusEffective},
			},
			want: "01.02",
		},
		{
			name: "skips numbers of abandoned versions",
			docs: []*model.Document{
				{Major: 1, Minor: 0, Status: model.StatusEffective},
				{Major: 2, Minor: 0, Status: model.StatusTerminated},
			},
			want: "02.01",
		},
		{
			name: "sibling in flight",
			docs: []*model.Document{
				{Major: 1, Minor: 0, Status: model.StatusEffective},
				{Major: 1, Minor: 1, Status: model.StatusUnderApproval},
			},
			inUse: true,
		},
		{
			name: "approved sibling counts as in flight",
			docs: []*model.Document{
				{Major: 1, Minor: 0, Status: model.StatusEffective},
				{Major: 1, Minor: 1, Status: model.StatusApproved},
			},
			inUse: true,
		},
	}

	// families are disjoint, so the cases share one database
	s := store.NewGormStore(tester.TestDB())
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			family := fmt.Sprintf("ALLOC-2025-%04d", i+1)
			seedFamily(t, s, family, tt.docs...)

			got, err := NewVersionAllocator().Allocate(context.Background(), s, family, tt.major)
			if tt.inUse {
				require.ErrorIs(t, err, ErrConcurrentVersionInProgress)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestVersionAllocationIsMonotonic(t *testing.T) {
	h := newHarness(t)
	doc := h.driveTo(h.create("alice", "Cleaning").ID, "alice", model.StatusEffective)

	seen := []model.Version{doc.Version()}
	for i, major := range []bool{false, true, false, false, true} {
		record := h.mustApply(doc.ID, ActionStartVersionWorkflow, "alice", Payload{MajorIncrement: major, ReasonForChange: "r", ChangeSummary: "s"})
		// abandon every other version, promote the rest
		if i%2 == 0 {
			h.mustApply(record.DocumentID, ActionTerminate, "root", Payload{Reason: "abandoned"})
		} else {
			doc = h.driveTo(record.DocumentID, "alice", model.StatusEffective)
		}

		next, err := model.ParseVersion(record.Version)
		require.NoError(t, err)
		assert.True(t, seen[len(seen)-1].Less(next), "%s after %s", next, seen[len(seen)-1])
		if major {
			assert.Zero(t, next.Minor)
		}
		seen = append(seen, next)
	}
}
