package identity

import (
	"context"
	"errors"

	mapset "github.com/deckarep/golang-set/v2"
)

// SchedulerActor is the acting user of the effective/obsolescence sweeps.
const SchedulerActor = "system:scheduler"

var (
	// ErrUserNotFound is returned when the provider does not know the user.
	ErrUserNotFound = errors.New("user not found")
)

type Role string

const (
	RoleAuthor    Role = "author"
	RoleReviewer  Role = "reviewer"
	RoleApprover  Role = "approver"
	RoleAdmin     Role = "admin"
	RoleScheduler Role = "scheduler"
)

// Capabilities is what the workflow engine knows about an actor.
type Capabilities struct {
	UserID     string `json:"user_id"`
	Roles      []Role `json:"roles"`
	CanAuthor  bool   `json:"can_author"`
	CanReview  bool   `json:"can_review"`
	CanApprove bool   `json:"can_approve"`
	IsAdmin    bool   `json:"is_admin"`
	Scheduler  bool   `json:"scheduler"`
	Active     bool   `json:"active"`
}

// User is a provider-side account record.
type User struct {
	ID     string `json:"id" mapstructure:"id"`
	Name   string `json:"name" mapstructure:"name"`
	Roles  []Role `json:"roles" mapstructure:"roles"`
	Active bool   `json:"active" mapstructure:"active"`
}

// Provider resolves the capabilities of a user.
type Provider interface {
	Capabilities(ctx context.Context, userID string) (Capabilities, error)
}

// Resolve maps a role set onto capabilities. It is the only place where roles
// turn into permissions; an administrator holds every capability.
func Resolve(userID string, roles []Role, active bool) Capabilities {
	set := mapset.NewThreadUnsafeSet[Role](roles...)

	caps := Capabilities{
		UserID: userID,
		Roles:  set.ToSlice(),
		Active: active,
	}
	caps.IsAdmin = set.Contains(RoleAdmin)
	caps.CanAuthor = caps.IsAdmin || set.Contains(RoleAuthor)
	caps.CanReview = caps.IsAdmin || set.Contains(RoleReviewer)
	caps.CanApprove = caps.IsAdmin || set.Contains(RoleApprover)
	caps.Scheduler = set.Contains(RoleScheduler)

	return caps
}

// SchedulerCapabilities are the capabilities of SchedulerActor.
func SchedulerCapabilities() Capabilities {
	return Resolve(SchedulerActor, []Role{RoleScheduler}, true)
}
