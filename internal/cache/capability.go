package cache

import (
	"context"

	"github.com/jinkaiteo/edms/internal/identity"
)

// CapabilityCache holds resolved capabilities between provider lookups.
type CapabilityCache interface {
	// GetCapabilities returns nil without error on a miss.
	GetCapabilities(ctx context.Context, userID string) (*identity.Capabilities, error)
	SetCapabilities(ctx context.Context, caps identity.Capabilities) error
	// Invalidate drops one user, e.g. after deactivation.
	Invalidate(ctx context.Context, userID string) error
	// Flush drops every cached user.
	Flush(ctx context.Context) (int, error)
}
