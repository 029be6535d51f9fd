package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jinkaiteo/edms/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	mu        sync.Mutex
	failFirst int
	calls     int
	records   []*model.TransitionRecord
	closed    bool
}

func (r *recordingSink) Name() string { return "recording" }

func (r *recordingSink) Deliver(ctx context.Context, record *model.TransitionRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.calls++
	if r.calls <= r.failFirst {
		return errors.New("sink unavailable")
	}
	r.records = append(r.records, record)
	return nil
}

func (r *recordingSink) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func (r *recordingSink) snapshot() ([]*model.TransitionRecord, int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*model.TransitionRecord(nil), r.records...), r.calls, r.closed
}

func testOptions() Options {
	return Options{
		QueueSize:       8,
		MaxRetries:      3,
		InitialInterval: time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
		DeliveryTimeout: time.Second,
	}
}

func record(id, action string) *model.TransitionRecord {
	return &model.TransitionRecord{
		ID:           id,
		DocumentID:   "doc-" + id,
		FamilyNumber: "SOP-2025-0001",
		Version:      "01.00",
		FromStatus:   model.StatusDraft,
		ToStatus:     model.StatusPendingReview,
		Actor:        "alice",
		Action:       action,
		Timestamp:    time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestEmitterDeliversInOrder(t *testing.T) {
	a := &recordingSink{}
	b := &recordingSink{}
	e := NewEmitter(testOptions(), a, b)

	e.Emit(record("1", "submit_for_review"), nil, record("2", "start_review"))
	require.NoError(t, e.Close())

	for _, sink := range []*recordingSink{a, b} {
		records, _, closed := sink.snapshot()
		require.Len(t, records, 2)
		assert.Equal(t, "1", records[0].ID)
		assert.Equal(t, "2", records[1].ID)
		assert.True(t, closed)
	}
}

func TestEmitterRetries(t *testing.T) {
	tests := []struct {
		name      string
		failFirst int
		delivered int
		calls     int
	}{
		{name: "recovers after transient failures", failFirst: 2, delivered: 1, calls: 3},
		{name: "gives up after max retries", failFirst: 100, delivered: 0, calls: 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink := &recordingSink{failFirst: tt.failFirst}
			e := NewEmitter(testOptions(), sink)

			e.Emit(record("1", "approve_document"))
			require.NoError(t, e.Close())

			records, calls, _ := sink.snapshot()
			assert.Len(t, records, tt.delivered)
			assert.Equal(t, tt.calls, calls)
		})
	}
}

func TestEmitterFailingSinkDoesNotStarveOthers(t *testing.T) {
	broken := &recordingSink{failFirst: 100}
	healthy := &recordingSink{}
	e := NewEmitter(testOptions(), broken, healthy)

	e.Emit(record("1", "make_effective"))
	require.NoError(t, e.Close())

	records, _, _ := healthy.snapshot()
	assert.Len(t, records, 1)
}

func TestEmitterClosed(t *testing.T) {
	sink := &recordingSink{}
	e := NewEmitter(testOptions(), sink)
	require.NoError(t, e.Close())

	e.Emit(record("1", "terminate"))
	assert.ErrorIs(t, e.Close(), ErrEmitterClosed)

	records, _, _ := sink.snapshot()
	assert.Empty(t, records)
}
