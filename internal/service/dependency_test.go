package service

import (
	"errors"
	"testing"
	"time"

	"github.com/jinkaiteo/edms/internal/model"
	"github.com/jinkaiteo/edms/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScenarioObsolescenceBlockedByDependents(t *testing.T) {
	h := newHarness(t)
	target := h.driveTo(h.create("alice", "Master cleaning procedure").ID, "alice", model.StatusEffective)
	dependent := h.create("dave", "Line 3 work instruction")

	_, err := h.dependencies.Link(h.ctx, "dave", dependent.ID, target.ID, true)
	require.NoError(t, err)

	date := h.today().Add(30 * 24 * time.Hour)
	payload := Payload{Reason: "replaced by corporate SOP", ObsolescenceDate: &date}

	// administrators are blocked too
	_, err = h.apply(target.ID, ActionObsoleteDocument, "root", payload)
	require.ErrorIs(t, err, ErrDependencyBlocked)

	var werr *WorkflowError
	require.True(t, errors.As(err, &werr))
	require.Len(t, werr.Blocking, 1)
	assert.Equal(t, dependent.ID, werr.Blocking[0].DocumentID)
	assert.Equal(t, dependent.FamilyNumber, werr.Blocking[0].FamilyNumber)
	assert.True(t, werr.Blocking[0].Critical)
	assert.False(t, h.reload(target.ID).IsPendingObsolete())

	require.NoError(t, h.dependencies.Deactivate(h.ctx, "dave", dependent.ID, target.ID))

	record := h.mustApply(target.ID, ActionObsoleteDocument, "alice", payload)
	assert.Equal(t, model.StatusEffective, record.ToStatus)
	assert.Equal(t, "replaced by corporate SOP", record.Comment)

	doc := h.reload(target.ID)
	assert.Equal(t, model.StatusEffective, doc.Status)
	assert.True(t, doc.IsPendingObsolete())
	assert.True(t, date.Equal(*doc.ObsolescenceDate))

	_, err = h.apply(target.ID, ActionObsoleteDocument, "alice", payload)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = h.apply(target.ID, ActionStartVersionWorkflow, "alice", Payload{ReasonForChange: "r", ChangeSummary: "s"})
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestObsolescenceSweep(t *testing.T) {
	h := newHarness(t)
	doc := h.driveTo(h.create("alice", "Cleaning").ID, "alice", model.StatusEffective)

	date := h.today().Add(48 * time.Hour)
	h.mustApply(doc.ID, ActionObsoleteDocument, "carol", Payload{Reason: "retired", ObsolescenceDate: &date})

	_, err := h.workflow.applyAsScheduler(h.ctx, doc.ID, ActionCompleteObsolescence)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	result, err := h.sweeper.PromoteObsolete(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, SweepResult{}, result)

	h.clock.Advance(72 * time.Hour)
	_, err = h.apply(doc.ID, ActionCompleteObsolescence, "root", Payload{})
	assert.ErrorIs(t, err, ErrUnauthorized)

	result, err = h.sweeper.PromoteObsolete(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, SweepResult{Promoted: 1}, result)
	assert.Equal(t, model.StatusObsolete, h.reload(doc.ID).Status)

	result, err = h.sweeper.PromoteObsolete(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, SweepResult{}, result)

	_, err = h.documents.Authoritative(h.ctx, doc.FamilyNumber)
	assert.ErrorIs(t, err, ErrNoEffectiveVersion)
}

func TestLinkDependency(t *testing.T) {
	h := newHarness(t)
	a := h.driveTo(h.create("alice", "A").ID, "alice", model.StatusEffective)
	b := h.driveTo(h.create("alice", "B").ID, "alice", model.StatusEffective)
	c := h.create("alice", "C")

	t.Run("self link", func(t *testing.T) {
		_, err := h.dependencies.Link(h.ctx, "alice", a.ID, a.ID, false)
		assert.ErrorIs(t, err, ErrInvalidDependency)
	})

	t.Run("requires an author", func(t *testing.T) {
		_, err := h.dependencies.Link(h.ctx, "bob", c.ID, a.ID, false)
		assert.ErrorIs(t, err, ErrUnauthorized)
	})

	t.Run("bumps target revision", func(t *testing.T) {
		before := h.reload(a.ID).Revision
		edge, err := h.dependencies.Link(h.ctx, "alice", c.ID, a.ID, false)
		require.NoError(t, err)
		assert.True(t, edge.Active)
		assert.Equal(t, before+1, h.reload(a.ID).Revision)
	})

	t.Run("cycle", func(t *testing.T) {
		_, err := h.dependencies.Link(h.ctx, "alice", a.ID, b.ID, false)
		require.NoError(t, err)

		// c -> a -> b already, so b -> c would close a loop
		_, err = h.dependencies.Link(h.ctx, "alice", b.ID, c.ID, false)
		assert.ErrorIs(t, err, ErrDependencyCycle)
	})

	t.Run("unknown document", func(t *testing.T) {
		_, err := h.dependencies.Link(h.ctx, "alice", c.ID, "00000000-0000-0000-0000-000000000000", false)
		assert.ErrorIs(t, err, ErrDocumentNotFound)
	})

	t.Run("deactivate and relink", func(t *testing.T) {
		require.NoError(t, h.dependencies.Deactivate(h.ctx, "alice", c.ID, a.ID))
		dependents, err := h.dependencies.ActiveDependents(h.ctx, a.ID)
		require.NoError(t, err)
		assert.Empty(t, dependents)

		edges, err := h.dependencies.Dependencies(h.ctx, c.ID)
		require.NoError(t, err)
		require.Len(t, edges, 1)
		assert.False(t, edges[0].Active)

		_, err = h.dependencies.Link(h.ctx, "alice", c.ID, a.ID, true)
		require.NoError(t, err)
		dependents, err = h.dependencies.ActiveDependents(h.ctx, a.ID)
		require.NoError(t, err)
		require.Len(t, dependents, 1)
		assert.True(t, dependents[0].Critical)

		edges, err = h.dependencies.Dependencies(h.ctx, c.ID)
		require.NoError(t, err)
		assert.Len(t, edges, 1)
	})

	t.Run("unknown edge", func(t *testing.T) {
		err := h.dependencies.Deactivate(h.ctx, "alice", a.ID, c.ID)
		assert.ErrorIs(t, err, store.ErrDependencyNotFound)
	})
}

func TestLinkRefusesRetiringTargets(t *testing.T) {
	h := newHarness(t)
	scheduled := h.driveTo(h.create("alice", "Scheduled").ID, "alice", model.StatusEffective)
	terminated := h.create("alice", "Terminated")
	source := h.create("dave", "Source")

	date := h.today().Add(10 * 24 * time.Hour)
	h.mustApply(scheduled.ID, ActionObsoleteDocument, "alice", Payload{Reason: "retired", ObsolescenceDate: &date})
	h.mustApply(terminated.ID, ActionTerminate, "root", Payload{Reason: "duplicate"})

	for _, target := range []*model.Document{scheduled, terminated} {
		_, err := h.dependencies.Link(h.ctx, "dave", source.ID, target.ID, false)
		assert.ErrorIs(t, err, ErrInvalidDependency)
	}
}

func TestLinkRacingObsolescenceIsStale(t *testing.T) {
	h := newHarness(t)
	target := h.driveTo(h.create("alice", "Target").ID, "alice", model.StatusEffective)
	source := h.create("dave", "Source")

	// the caller read the target before the link was created
	seen := target.Revision
	_, err := h.dependencies.Link(h.ctx, "dave", source.ID, target.ID, false)
	require.NoError(t, err)

	date := h.today().Add(10 * 24 * time.Hour)
	_, err = h.apply(target.ID, ActionObsoleteDocument, "alice", Payload{Reason: "retired", ObsolescenceDate: &date, ExpectedRevision: &seen})
	assert.ErrorIs(t, err, ErrStaleWrite)
}
