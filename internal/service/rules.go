package service

import (
	"context"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/jinkaiteo/edms/internal/identity"
	"github.com/jinkaiteo/edms/internal/model"
	"github.com/jinkaiteo/edms/internal/store"
)

type Action string

const (
	ActionSubmitForReview      Action = "submit_for_review"
	ActionStartReview          Action = "start_review"
	ActionCompleteReview       Action = "complete_review"
	ActionRouteForApproval     Action = "route_for_approval"
	ActionStartApproval        Action = "start_approval"
	ActionApproveDocument      Action = "approve_document"
	ActionMakeEffective        Action = "make_effective"
	ActionStartVersionWorkflow Action = "start_version_workflow"
	ActionObsoleteDocument     Action = "obsolete_document_directly"
	ActionCompleteObsolescence Action = "complete_obsolescence"
	ActionReassign             Action = "reassign"
	ActionTerminate            Action = "terminate"
)

// Record-only actions. They are written by the engine and cannot be requested.
const (
	ActionCreateDocument Action = "create_document"
	ActionSupersede      Action = "supersede"
)

// Actions lists the requestable actions in lifecycle order.
var Actions = []Action{
	ActionSubmitForReview,
	ActionStartReview,
	ActionCompleteReview,
	ActionRouteForApproval,
	ActionStartApproval,
	ActionApproveDocument,
	ActionMakeEffective,
	ActionStartVersionWorkflow,
	ActionObsoleteDocument,
	ActionCompleteObsolescence,
	ActionReassign,
	ActionTerminate,
}

type stepFunc func(w *WorkflowService, ctx context.Context, tx store.Store, t *transition) error

type rule struct {
	from mapset.Set[model.Status]
	step stepFunc
}

func from(statuses ...model.Status) mapset.Set[model.Status] {
	return mapset.NewSet[model.Status](statuses...)
}

var (
	reviewStages   = from(model.StatusPendingReview, model.StatusUnderReview)
	approvalStages = from(model.StatusPendingApproval, model.StatusUnderApproval)
)

var rules = map[Action]rule{
	ActionSubmitForReview:      {from: from(model.StatusDraft), step: (*WorkflowService).submitForReview},
	ActionStartReview:          {from: from(model.StatusPendingReview), step: (*WorkflowService).startReview},
	ActionCompleteReview:       {from: from(model.StatusUnderReview), step: (*WorkflowService).completeReview},
	ActionRouteForApproval:     {from: from(model.StatusReviewed), step: (*WorkflowService).routeForApproval},
	ActionStartApproval:        {from: from(model.StatusPendingApproval), step: (*WorkflowService).startApproval},
	ActionApproveDocument:      {from: from(model.StatusUnderApproval), step: (*WorkflowService).approveDocument},
	ActionMakeEffective:        {from: from(model.StatusApproved), step: (*WorkflowService).makeEffective},
	ActionStartVersionWorkflow: {from: from(model.StatusEffective), step: (*WorkflowService).startVersionWorkflow},
	ActionObsoleteDocument:     {from: from(model.StatusEffective), step: (*WorkflowService).obsoleteDocument},
	ActionCompleteObsolescence: {from: from(model.StatusEffective), step: (*WorkflowService).completeObsolescence},
	ActionReassign:             {from: reviewStages.Union(approvalStages), step: (*WorkflowService).reassign},
	ActionTerminate: {
		from: from(model.InFlightStatuses...).Union(from(model.StatusEffective)),
		step: (*WorkflowService).terminate,
	},
}

// AllowedFrom reports whether action may be requested for a document in status s.
func AllowedFrom(action Action, s model.Status) bool {
	r, ok := rules[action]
	return ok && r.from.Contains(s)
}

func (w *WorkflowService) submitForReview(ctx context.Context, tx store.Store, t *transition) error {
	if err := t.requireOwner(); err != nil {
		return err
	}

	in := assignReviewerInput{ReviewerID: strings.TrimSpace(t.payload.ReviewerID)}
	if err := check(w.validate, t.op(), t.current.ID, in); err != nil {
		return err
	}
	if in.ReviewerID == t.current.Author {
		return refuse(t.op(), t.current.ID, ErrSelfAssignment, "reviewer must differ from author %s", t.current.Author)
	}
	if err := w.requireAssignee(ctx, t, in.ReviewerID, identity.RoleReviewer); err != nil {
		return err
	}

	t.next.Status = model.StatusPendingReview
	t.next.Reviewer = &in.ReviewerID
	return nil
}

func (w *WorkflowService) startReview(ctx context.Context, tx store.Store, t *transition) error {
	if err := t.requireAssigned(identity.RoleReviewer); err != nil {
		return err
	}

	t.next.Status = model.StatusUnderReview
	return nil
}

// completeReview keeps the reviewer on rejection so the author can resubmit to them.
func (w *WorkflowService) completeReview(ctx context.Context, tx store.Store, t *transition) error {
	if err := t.requireAssigned(identity.RoleReviewer); err != nil {
		return err
	}

	in := decisionInput{Approved: t.payload.Approved, Comment: strings.TrimSpace(t.payload.Comment)}
	if err := check(w.validate, t.op(), t.current.ID, in); err != nil {
		return err
	}

	t.comment = in.Comment
	if *in.Approved {
		t.next.Status = model.StatusReviewed
	} else {
		t.next.Status = model.StatusDraft
	}
	return nil
}

func (w *WorkflowService) routeForApproval(ctx context.Context, tx store.Store, t *transition) error {
	if err := t.requireOwner(); err != nil {
		return err
	}

	in := assignApproverInput{ApproverID: strings.TrimSpace(t.payload.ApproverID)}
	if err := check(w.validate, t.op(), t.current.ID, in); err != nil {
		return err
	}
	if in.ApproverID == t.current.Author {
		return refuse(t.op(), t.current.ID, ErrSelfAssignment, "approver must differ from author %s", t.current.Author)
	}
	if err := w.requireAssignee(ctx, t, in.ApproverID, identity.RoleApprover); err != nil {
		return err
	}

	t.next.Status = model.StatusPendingApproval
	t.next.Approver = &in.ApproverID
	return nil
}

func (w *WorkflowService) startApproval(ctx context.Context, tx store.Store, t *transition) error {
	if err := t.requireAssigned(identity.RoleApprover); err != nil {
		return err
	}

	t.next.Status = model.StatusUnderApproval
	return nil
}

func (w *WorkflowService) approveDocument(ctx context.Context, tx store.Store, t *transition) error {
	if err := t.requireAssigned(identity.RoleApprover); err != nil {
		return err
	}

	in := decisionInput{Approved: t.payload.Approved, Comment: strings.TrimSpace(t.payload.Comment)}
	if err := check(w.validate, t.op(), t.current.ID, in); err != nil {
		return err
	}

	t.comment = in.Comment
	if !*in.Approved {
		t.next.Status = model.StatusDraft
		return nil
	}

	if t.payload.EffectiveDate == nil {
		return missingFields(t.op(), t.current.ID, "approval needs an effective date", "effective_date")
	}
	effective := t.payload.EffectiveDate.UTC()
	if effective.Before(startOfDay(t.now)) {
		return missingFields(t.op(), t.current.ID, "effective date must not be before today", "effective_date")
	}

	t.next.Status = model.StatusApproved
	t.next.EffectiveDate = &effective
	return nil
}

// makeEffective promotes the document when its effective date has arrived and
// otherwise records the date, leaving the document pending-effective.
func (w *WorkflowService) makeEffective(ctx context.Context, tx store.Store, t *transition) error {
	if !t.actor.Scheduler {
		if err := t.requireAssigned(identity.RoleApprover); err != nil {
			return err
		}
	}

	// the scheduler only honours the date recorded at approval
	date := t.current.EffectiveDate
	if !t.actor.Scheduler && t.payload.EffectiveDate != nil {
		date = t.payload.EffectiveDate
	}
	if date == nil {
		return missingFields(t.op(), t.current.ID, "no effective date in payload or on the document", "effective_date")
	}

	effective := date.UTC()
	t.next.EffectiveDate = &effective
	if effective.After(t.now) {
		return nil
	}

	t.next.Status = model.StatusEffective
	if err := w.supersede(ctx, tx, t); err != nil {
		return err
	}
	return w.releaseFamily(ctx, tx, t.op(), t.current)
}

func (w *WorkflowService) startVersionWorkflow(ctx context.Context, tx store.Store, t *transition) error {
	if !t.actor.CanAuthor {
		return refuse(t.op(), t.current.ID, ErrUnauthorized, "%s cannot author documents", t.actor.UserID)
	}
	if t.current.IsPendingObsolete() {
		return refuse(t.op(), t.current.ID, ErrInvalidTransition, "document is scheduled for obsolescence")
	}

	in := versionInput{
		ReasonForChange: strings.TrimSpace(t.payload.ReasonForChange),
		ChangeSummary:   strings.TrimSpace(t.payload.ChangeSummary),
	}
	if err := check(w.validate, t.op(), t.current.ID, in); err != nil {
		return err
	}

	version, err := w.allocator.Allocate(ctx, tx, t.current.FamilyNumber, t.payload.MajorIncrement)
	if err != nil {
		return err
	}

	previous := t.current.ID
	doc := &model.Document{
		ID:                newID(),
		FamilyNumber:      t.current.FamilyNumber,
		Major:             version.Major,
		Minor:             version.Minor,
		DocumentType:      t.current.DocumentType,
		Title:             t.current.Title,
		Status:            model.StatusDraft,
		Author:            t.actor.UserID,
		ReasonForChange:   in.ReasonForChange,
		ChangeSummary:     in.ChangeSummary,
		PreviousVersionID: &previous,
		CreatedAt:         t.now,
		UpdatedAt:         t.now,
	}

	if err := w.claimFamily(ctx, tx, t.op(), doc); err != nil {
		return err
	}
	if err := tx.CreateDocument(ctx, doc); err != nil {
		return err
	}

	// the source row is still rewritten so its revision moves
	t.subject = doc
	t.fromStatus = ""
	t.extra = map[string]interface{}{
		"source_document_id": previous,
		"source_version":     t.current.Version().String(),
	}
	return nil
}

func (w *WorkflowService) obsoleteDocument(ctx context.Context, tx store.Store, t *transition) error {
	if !t.actor.CanAuthor && !t.actor.CanApprove && !t.actor.IsAdmin {
		return refuse(t.op(), t.current.ID, ErrUnauthorized, "%s may not retire documents", t.actor.UserID)
	}
	if t.current.IsPendingObsolete() {
		return refuse(t.op(), t.current.ID, ErrInvalidTransition, "obsolescence already scheduled for %s",
			t.current.ObsolescenceDate.Format("2006-01-02"))
	}

	in := obsolescenceInput{Reason: strings.TrimSpace(t.payload.Reason), ObsolescenceDate: t.payload.ObsolescenceDate}
	if err := check(w.validate, t.op(), t.current.ID, in); err != nil {
		return err
	}
	date := in.ObsolescenceDate.UTC()
	if !date.After(t.now) {
		return missingFields(t.op(), t.current.ID, "obsolescence date must be in the future", "obsolescence_date")
	}

	// never skipped, whoever asks
	if err := w.checkDependents(ctx, tx, t); err != nil {
		return err
	}

	t.comment = in.Reason
	t.next.ObsolescenceDate = &date
	t.next.ObsolescenceReason = in.Reason
	return nil
}

func (w *WorkflowService) completeObsolescence(ctx context.Context, tx store.Store, t *transition) error {
	if !t.actor.Scheduler {
		return refuse(t.op(), t.current.ID, ErrUnauthorized, "only the scheduler completes obsolescence")
	}
	if !t.current.IsPendingObsolete() || t.current.ObsolescenceDate.After(t.now) {
		return refuse(t.op(), t.current.ID, ErrInvalidTransition, "obsolescence is not due")
	}
	if err := w.checkDependents(ctx, tx, t); err != nil {
		return err
	}

	t.comment = t.current.ObsolescenceReason
	t.next.Status = model.StatusObsolete
	return nil
}

// reassign replaces the reviewer or approver of the current stage. A stage
// already started goes back to pending so the new assignee starts it.
func (w *WorkflowService) reassign(ctx context.Context, tx store.Store, t *transition) error {
	if !t.actor.IsAdmin && !t.isOwner() {
		return refuse(t.op(), t.current.ID, ErrUnauthorized, "only an administrator or the author may reassign")
	}

	var assignee string
	role := identity.RoleReviewer
	if reviewStages.Contains(t.current.Status) {
		in := assignReviewerInput{ReviewerID: strings.TrimSpace(t.payload.ReviewerID)}
		if err := check(w.validate, t.op(), t.current.ID, in); err != nil {
			return err
		}
		assignee = in.ReviewerID
	} else {
		role = identity.RoleApprover
		in := assignApproverInput{ApproverID: strings.TrimSpace(t.payload.ApproverID)}
		if err := check(w.validate, t.op(), t.current.ID, in); err != nil {
			return err
		}
		assignee = in.ApproverID
	}

	if assignee == t.current.Author {
		return refuse(t.op(), t.current.ID, ErrSelfAssignment, "%s must differ from author %s", role, t.current.Author)
	}
	if err := w.requireAssignee(ctx, t, assignee, role); err != nil {
		return err
	}

	t.comment = strings.TrimSpace(t.payload.Comment)
	switch t.current.Status {
	case model.StatusPendingReview, model.StatusUnderReview:
		t.next.Reviewer = &assignee
		t.next.Status = model.StatusPendingReview
	default:
		t.next.Approver = &assignee
		t.next.Status = model.StatusPendingApproval
	}
	return nil
}

func (w *WorkflowService) terminate(ctx context.Context, tx store.Store, t *transition) error {
	if !t.actor.IsAdmin {
		return refuse(t.op(), t.current.ID, ErrUnauthorized, "only an administrator may terminate")
	}

	in := reasonInput{Reason: strings.TrimSpace(t.payload.Reason)}
	if err := check(w.validate, t.op(), t.current.ID, in); err != nil {
		return err
	}

	t.comment = in.Reason
	t.next.Status = model.StatusTerminated
	return w.releaseFamily(ctx, tx, t.op(), t.current)
}
