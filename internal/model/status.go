package model

// Status is the lifecycle state of a single document version.
type Status string

const (
	StatusDraft           Status = "DRAFT"
	StatusPendingReview   Status = "PENDING_REVIEW"
	StatusUnderReview     Status = "UNDER_REVIEW"
	StatusReviewed        Status = "REVIEWED"
	StatusPendingApproval Status = "PENDING_APPROVAL"
	StatusUnderApproval   Status = "UNDER_APPROVAL"
	StatusApproved        Status = "APPROVED"
	StatusEffective       Status = "EFFECTIVE"
	StatusSuperseded      Status = "SUPERSEDED"
	StatusObsolete        Status = "OBSOLETE"
	StatusTerminated      Status = "TERMINATED"
)

var validStatuses = map[Status]bool{
	StatusDraft:           true,
	StatusPendingReview:   true,
	StatusUnderReview:     true,
	StatusReviewed:        true,
	StatusPendingApproval: true,
	StatusUnderApproval:   true,
	StatusApproved:        true,
	StatusEffective:       true,
	StatusSuperseded:      true,
	StatusObsolete:        true,
	StatusTerminated:      true,
}

var terminalStatuses = map[Status]bool{
	StatusSuperseded: true,
	StatusObsolete:   true,
	StatusTerminated: true,
}

// InFlightStatuses are the statuses of a version that is still being worked
// on. A family holds at most one document in any of them.
var InFlightStatuses = []Status{
	StatusDraft,
	StatusPendingReview,
	StatusUnderReview,
	StatusReviewed,
	StatusPendingApproval,
	StatusUnderApproval,
	StatusApproved,
}

func (s Status) String() string {
	return string(s)
}

// IsValid reports whether s is a known status.
func (s Status) IsValid() bool {
	return validStatuses[s]
}

// IsTerminal reports whether no further transition may leave s.
func (s Status) IsTerminal() bool {
	return terminalStatuses[s]
}

// InFlight reports whether s is neither terminal nor EFFECTIVE.
func (s Status) InFlight() bool {
	return s.IsValid() && !s.IsTerminal() && s != StatusEffective
}
