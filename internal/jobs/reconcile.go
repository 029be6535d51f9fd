package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/jinkaiteo/edms/internal/store"
	"github.com/sirupsen/logrus"
)

// FamilyReconciler clears in-flight markers that point at a document which is
// no longer in flight, so a family cannot stay locked after a manual repair.
type FamilyReconciler struct {
	store    store.Store
	interval time.Duration
	done     chan struct{}
}

func NewFamilyReconciler(store store.Store, interval time.Duration) *FamilyReconciler {
	return &FamilyReconciler{
		store:    store,
		interval: interval,
		done:     make(chan struct{}),
	}
}

func (r *FamilyReconciler) Stop() {
	close(r.done)
}

func (r *FamilyReconciler) Run() {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.done:
			return
		case <-ticker.C:
			if _, err := r.Reconcile(context.Background()); err != nil {
				logrus.WithError(err).Error("family reconcile failed")
			}
		}
	}
}

// Reconcile returns the number of markers it released.
func (r *FamilyReconciler) Reconcile(ctx context.Context) (int, error) {
	families, err := r.store.ListClaimedFamilies(ctx)
	if err != nil {
		return 0, err
	}

	released := 0
	for _, f := range families {
		err := r.store.Transaction(ctx, func(tx store.Store) error {
			family, err := tx.GetFamily(ctx, f.Number)
			if err != nil {
				return err
			}
			if family.InFlightID == nil {
				return nil
			}

			doc, err := tx.GetDocument(ctx, *family.InFlightID)
			switch {
			case errors.Is(err, store.ErrDocumentNotFound):
			case err != nil:
				return err
			case doc.Status.InFlight():
				return nil
			}

			logrus.WithFields(logrus.Fields{
				"family":    family.Number,
				"in_flight": *family.InFlightID,
			}).Warn("releasing stale in-flight marker")

			family.InFlightID = nil
			if err := tx.UpdateFamily(ctx, family, family.Revision); err != nil {
				return err
			}
			released++
			return nil
		})
		if errors.Is(err, store.ErrStaleRevision) {
			continue
		}
		if err != nil {
			return released, err
		}
	}

	return released, nil
}
