package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jinkaiteo/edms/internal/cache"
	"github.com/jinkaiteo/edms/internal/identity"
	"github.com/jinkaiteo/edms/internal/model"
	"github.com/jinkaiteo/edms/internal/service"
	"github.com/jinkaiteo/edms/internal/store"
	"github.com/jinkaiteo/edms/internal/tester"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type blockingJob struct {
	started chan struct{}
	release chan struct{}
}

func (b *blockingJob) Name() string     { return "blocking" }
func (b *blockingJob) Schedule() string { return "@every 1h" }
func (b *blockingJob) Run() {
	close(b.started)
	<-b.release
}

func TestTaskExecutorSkipsOverlappingRuns(t *testing.T) {
	job := &blockingJob{started: make(chan struct{}), release: make(chan struct{})}
	executor := NewTaskExecutor(job)

	first := make(chan bool)
	go func() { first <- executor.runOnce(job) }()
	<-job.started

	assert.False(t, executor.runOnce(job))

	close(job.release)
	assert.True(t, <-first)
	assert.False(t, executor.running.Contains(job.Name()))
}

type scheduleJob struct{ schedule string }

func (s scheduleJob) Name() string     { return "bad" }
func (s scheduleJob) Schedule() string { return s.schedule }
func (s scheduleJob) Run()             {}

func TestTaskExecutorRejectsBadSchedule(t *testing.T) {
	executor := NewTaskExecutor(scheduleJob{schedule: "every tuesday"})
	assert.Error(t, executor.Run())

	executor = NewTaskExecutor(scheduleJob{schedule: "@every 1m"})
	require.NoError(t, executor.Run())
	executor.Stop()
}

func TestSweepTask(t *testing.T) {
	var deadline bool
	task := &SweepTask{
		name:    "sweep_test",
		cron:    "@every 1m",
		timeout: time.Minute,
		sweep: func(ctx context.Context) (service.SweepResult, error) {
			_, deadline = ctx.Deadline()
			return service.SweepResult{}, errors.New("boom")
		},
	}

	task.Run()
	assert.True(t, deadline)
	assert.Equal(t, "sweep_test", task.Name())
	assert.Equal(t, "@every 1m", task.Schedule())
}

func TestCapabilityFlushTask(t *testing.T) {
	ctx := context.Background()
	client, _ := tester.Redis(t)
	c := cache.NewRedisCapabilityCache(client, time.Hour)

	require.NoError(t, c.SetCapabilities(ctx, identity.Resolve("alice", []identity.Role{identity.RoleAuthor}, true)))

	NewCapabilityFlushTask("@every 1m", c).Run()

	caps, err := c.GetCapabilities(ctx, "alice")
	require.NoError(t, err)
	assert.Nil(t, caps)
}

func TestFamilyReconciler(t *testing.T) {
	ctx := context.Background()
	s := store.NewGormStore(tester.FreshDB(t))

	claim := func(number string, status model.Status) {
		doc := &model.Document{
			ID:           uuid.NewString(),
			FamilyNumber: number,
			Major:        1,
			DocumentType: "SOP",
			Title:        number,
			Status:       status,
			Author:       "alice",
		}
		require.NoError(t, s.CreateDocument(ctx, doc))
		require.NoError(t, s.CreateFamily(ctx, &model.Family{Number: number, DocumentType: "SOP", InFlightID: &doc.ID}))
	}

	claim("SOP-2025-0001", model.StatusUnderReview)
	claim("SOP-2025-0002", model.StatusEffective)
	missing := uuid.NewString()
	require.NoError(t, s.CreateFamily(ctx, &model.Family{Number: "SOP-2025-0003", DocumentType: "SOP", InFlightID: &missing}))

	released, err := NewFamilyReconciler(s, time.Minute).Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, released)

	families, err := s.ListClaimedFamilies(ctx)
	require.NoError(t, err)
	require.Len(t, families, 1)
	assert.Equal(t, "SOP-2025-0001", families[0].Number)

	// nothing left to repair
	released, err = NewFamilyReconciler(s, time.Minute).Reconcile(ctx)
	require.NoError(t, err)
	assert.Zero(t, released)
}
