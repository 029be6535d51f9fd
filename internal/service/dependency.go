package service

import (
	"context"
	"errors"
	"fmt"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/jinkaiteo/edms/internal/identity"
	"github.com/jinkaiteo/edms/internal/model"
	"github.com/jinkaiteo/edms/internal/store"
	"github.com/sirupsen/logrus"
)

// Dependent is a document holding an active dependency on another one.
type Dependent struct {
	DocumentID   string       `json:"document_id"`
	FamilyNumber string       `json:"family_number"`
	Version      string       `json:"version"`
	Status       model.Status `json:"status"`
	Critical     bool         `json:"critical"`
}

func (d Dependent) String() string {
	s := d.FamilyNumber + " v" + d.Version
	if d.Critical {
		s += " (critical)"
	}
	return s
}

// DependencyService resolves and maintains dependency edges.
type DependencyService struct {
	store    store.Store
	identity identity.Provider
}

func NewDependencyService(store store.Store, provider identity.Provider) *DependencyService {
	return &DependencyService{store: store, identity: provider}
}

// ActiveDependents returns the documents depending on documentID through
// active edges.
func (d *DependencyService) ActiveDependents(ctx context.Context, documentID string) ([]Dependent, error) {
	return d.activeDependents(ctx, d.store, documentID)
}

func (d *DependencyService) activeDependents(ctx context.Context, s store.Store, documentID string) ([]Dependent, error) {
	edges, err := s.ListActiveDependents(ctx, documentID)
	if err != nil {
		return nil, err
	}

	dependents := make([]Dependent, 0, len(edges))
	for _, edge := range edges {
		doc, err := s.GetDocument(ctx, edge.SourceID)
		if err != nil {
			return nil, fmt.Errorf("load dependent %s: %w", edge.SourceID, err)
		}
		dependents = append(dependents, Dependent{
			DocumentID:   doc.ID,
			FamilyNumber: doc.FamilyNumber,
			Version:      doc.Version().String(),
			Status:       doc.Status,
			Critical:     edge.Critical,
		})
	}

	return dependents, nil
}

// Dependencies lists every edge leaving sourceID, inactive ones included.
func (d *DependencyService) Dependencies(ctx context.Context, sourceID string) ([]*model.DependencyEdge, error) {
	return d.store.ListDependencies(ctx, sourceID)
}

// Link records that sourceID depends on targetID. The target's revision is
// bumped in the same transaction, so an obsolescence request racing with the
// link fails with a stale write instead of missing the new edge.
func (d *DependencyService) Link(ctx context.Context, actor, sourceID, targetID string, critical bool) (*model.DependencyEdge, error) {
	const op = "link_dependency"
	if err := d.authorize(ctx, op, sourceID, actor); err != nil {
		return nil, err
	}
	if sourceID == targetID {
		return nil, refuse(op, sourceID, ErrInvalidDependency, "a document cannot depend on itself")
	}

	var edge *model.DependencyEdge
	err := d.store.Transaction(ctx, func(tx store.Store) error {
		if _, err := tx.GetDocument(ctx, sourceID); err != nil {
			return storeError(op, sourceID, err)
		}
		target, err := tx.GetDocumentForUpdate(ctx, targetID)
		if err != nil {
			return storeError(op, targetID, err)
		}
		if target.Status.IsTerminal() || target.IsPendingObsolete() {
			return refuse(op, targetID, ErrInvalidDependency, "target %s v%s is being retired (%s)",
				target.FamilyNumber, target.Version(), target.Status)
		}

		cyclic, err := d.reaches(ctx, tx, targetID, sourceID)
		if err != nil {
			return err
		}
		if cyclic {
			return refuse(op, sourceID, ErrDependencyCycle, "%s already depends on %s", targetID, sourceID)
		}

		edge, err = tx.GetDependency(ctx, sourceID, targetID)
		switch {
		case errors.Is(err, store.ErrDependencyNotFound):
			edge = &model.DependencyEdge{
				ID:        newID(),
				SourceID:  sourceID,
				TargetID:  targetID,
				Active:    true,
				Critical:  critical,
				CreatedBy: actor,
			}
			if err := tx.CreateDependency(ctx, edge); err != nil {
				return err
			}
		case err != nil:
			return err
		default:
			edge.Active = true
			edge.Critical = critical
			if err := tx.UpdateDependency(ctx, edge); err != nil {
				return err
			}
		}

		return storeErrorOrNil(op, targetID, tx.UpdateDocument(ctx, target, target.Revision))
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"source":   sourceID,
		"target":   targetID,
		"critical": critical,
		"actor":    actor,
	}).Info("dependency linked")
	return edge, nil
}

// Deactivate keeps the edge for history but removes it from resolution.
func (d *DependencyService) Deactivate(ctx context.Context, actor, sourceID, targetID string) error {
	const op = "deactivate_dependency"
	if err := d.authorize(ctx, op, sourceID, actor); err != nil {
		return err
	}

	return d.store.Transaction(ctx, func(tx store.Store) error {
		edge, err := tx.GetDependency(ctx, sourceID, targetID)
		if err != nil {
			return fmt.Errorf("%s %s -> %s: %w", op, sourceID, targetID, err)
		}
		if !edge.Active {
			return nil
		}

		edge.Active = false
		if err := tx.UpdateDependency(ctx, edge); err != nil {
			return err
		}

		logrus.WithFields(logrus.Fields{"source": sourceID, "target": targetID, "actor": actor}).Info("dependency deactivated")
		return nil
	})
}

func (d *DependencyService) authorize(ctx context.Context, op, documentID, actor string) error {
	caps, err := d.identity.Capabilities(ctx, actor)
	if errors.Is(err, identity.ErrUserNotFound) {
		return refuse(op, documentID, ErrUnauthorized, "unknown user %s", actor)
	}
	if err != nil {
		return fmt.Errorf("%s: resolve capabilities of %s: %w", op, actor, err)
	}
	if !caps.Active || !(caps.CanAuthor || caps.IsAdmin) {
		return refuse(op, documentID, ErrUnauthorized, "%s may not change dependencies", actor)
	}
	return nil
}

// reaches walks active edges depth first from start and reports whether goal
// is reachable.
func (d *DependencyService) reaches(ctx context.Context, s store.Store, start, goal string) (bool, error) {
	visited := mapset.NewThreadUnsafeSet[string]()
	stack := []string{start}

	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if id == goal {
			return true, nil
		}
		if !visited.Add(id) {
			continue
		}

		edges, err := s.ListActiveDependencies(ctx, id)
		if err != nil {
			return false, err
		}
		for _, edge := range edges {
			if !visited.Contains(edge.TargetID) {
				stack = append(stack, edge.TargetID)
			}
		}
	}

	return false, nil
}

func storeErrorOrNil(op, documentID string, err error) error {
	if err == nil {
		return nil
	}
	return storeError(op, documentID, err)
}
