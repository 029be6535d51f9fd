package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/jinkaiteo/edms/internal/model"
	"github.com/jinkaiteo/edms/internal/store"
)

// VersionAllocator computes the next version of a family. It only reads.
type VersionAllocator struct{}

func NewVersionAllocator() *VersionAllocator {
	return &VersionAllocator{}
}

// Allocate fails with ConcurrentVersionInProgress while any version of the
// family is in flight. Otherwise it bumps the highest EFFECTIVE version, or
// the highest version ever allocated when that is higher (an abandoned draft
// keeps its number), so allocation is strictly increasing.
func (a *VersionAllocator) Allocate(ctx context.Context, s store.DocumentStore, familyNumber string, majorIncrement bool) (model.Version, error) {
	inFlight, err := s.InFlightVersions(ctx, familyNumber)
	if err != nil {
		return model.Version{}, err
	}
	if len(inFlight) > 0 {
		versions := make([]string, 0, len(inFlight))
		for _, doc := range inFlight {
			versions = append(versions, fmt.Sprintf("%s (%s)", doc.Version(), doc.Status))
		}
		return model.Version{}, &WorkflowError{
			Op:         "allocate_version",
			DocumentID: inFlight[0].ID,
			Kind:       ErrConcurrentVersionInProgress,
			Message:    fmt.Sprintf("family %s has %s in flight", familyNumber, strings.Join(versions, ", ")),
		}
	}

	base, err := s.HighestEffectiveVersion(ctx, familyNumber)
	if err != nil {
		return model.Version{}, err
	}

	highest, err := s.HighestVersion(ctx, familyNumber)
	if err != nil {
		return model.Version{}, err
	}
	if highest == nil {
		return model.InitialVersion, nil
	}
	if base == nil || base.Less(*highest) {
		base = highest
	}

	return base.Next(majorIncrement), nil
}
