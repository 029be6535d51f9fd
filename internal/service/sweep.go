package service

import (
	"context"
	"errors"
	"time"

	"github.com/jinkaiteo/edms/internal/metrics"
	"github.com/jinkaiteo/edms/internal/model"
	"github.com/jinkaiteo/edms/internal/store"
	"github.com/sirupsen/logrus"
)

const (
	SweepEffective    = "effective"
	SweepObsolescence = "obsolescence"
)

// SweepResult counts what one sweep run did.
type SweepResult struct {
	Promoted int `json:"promoted"`
	Skipped  int `json:"skipped"`
	Blocked  int `json:"blocked"`
	Failed   int `json:"failed"`
}

// Sweeper promotes documents whose scheduled date has arrived. Running it
// again over already promoted documents does nothing.
type Sweeper struct {
	store    store.Store
	workflow *WorkflowService
	now      func() time.Time
}

func NewSweeper(store store.Store, workflow *WorkflowService, opts ...Option) *Sweeper {
	o := newOptions(opts)
	return &Sweeper{store: store, workflow: workflow, now: o.now}
}

// PromoteEffective moves pending-effective documents to EFFECTIVE.
func (s *Sweeper) PromoteEffective(ctx context.Context) (SweepResult, error) {
	docs, err := s.store.ListPendingEffective(ctx, s.now().UTC())
	if err != nil {
		return SweepResult{}, err
	}
	return s.run(ctx, SweepEffective, ActionMakeEffective, docs), nil
}

// PromoteObsolete moves due pending-obsolete documents to OBSOLETE. Documents
// that gained dependents since scheduling stay EFFECTIVE and are reported.
func (s *Sweeper) PromoteObsolete(ctx context.Context) (SweepResult, error) {
	docs, err := s.store.ListPendingObsolete(ctx, s.now().UTC())
	if err != nil {
		return SweepResult{}, err
	}
	return s.run(ctx, SweepObsolescence, ActionCompleteObsolescence, docs), nil
}

func (s *Sweeper) run(ctx context.Context, sweep string, action Action, docs []*model.Document) SweepResult {
	var result SweepResult
	for _, doc := range docs {
		entry := logrus.WithFields(logrus.Fields{
			"sweep":    sweep,
			"document": doc.ID,
			"family":   doc.FamilyNumber,
			"version":  doc.Version().String(),
		})

		_, err := s.workflow.applyAsScheduler(ctx, doc.ID, action)
		switch {
		case err == nil:
			result.Promoted++
			metrics.SweepPromotions.WithLabelValues(sweep, "promoted").Inc()
		case errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrStaleWrite):
			// moved by someone else since the listing
			result.Skipped++
			metrics.SweepPromotions.WithLabelValues(sweep, "skipped").Inc()
		case errors.Is(err, ErrDependencyBlocked):
			result.Blocked++
			metrics.SweepPromotions.WithLabelValues(sweep, "blocked").Inc()
			entry.WithError(err).Warn("scheduled obsolescence blocked by dependents")
		default:
			result.Failed++
			metrics.SweepPromotions.WithLabelValues(sweep, "failed").Inc()
			entry.WithError(err).Error("sweep promotion failed")
		}
	}

	if len(docs) > 0 {
		logrus.WithFields(logrus.Fields{
			"sweep":    sweep,
			"promoted": result.Promoted,
			"skipped":  result.Skipped,
			"blocked":  result.Blocked,
			"failed":   result.Failed,
		}).Info("sweep finished")
	}
	return result
}
