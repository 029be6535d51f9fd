package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jinkaiteo/edms/internal/identity"
	"github.com/jinkaiteo/edms/internal/metrics"
	"github.com/jinkaiteo/edms/internal/model"
	"github.com/jinkaiteo/edms/internal/store"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
)

// Emitter receives transition records once they are committed.
type Emitter interface {
	Emit(records ...*model.TransitionRecord)
}

type nopEmitter struct{}

func (nopEmitter) Emit(...*model.TransitionRecord) {}

type Option func(*options)

type options struct {
	now     func() time.Time
	emitter Emitter
}

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// WithEmitter sets where committed records go.
func WithEmitter(e Emitter) Option {
	return func(o *options) {
		if e != nil {
			o.emitter = e
		}
	}
}

func newOptions(opts []Option) options {
	o := options{now: time.Now, emitter: nopEmitter{}}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WorkflowService applies lifecycle transitions to documents.
type WorkflowService struct {
	store        store.Store
	identity     identity.Provider
	dependencies *DependencyService
	allocator    *VersionAllocator
	emitter      Emitter
	validate     *validator.Validate
	now          func() time.Time
}

func NewWorkflowService(store store.Store, provider identity.Provider, opts ...Option) *WorkflowService {
	o := newOptions(opts)
	return &WorkflowService{
		store:        store,
		identity:     provider,
		dependencies: NewDependencyService(store, provider),
		allocator:    NewVersionAllocator(),
		emitter:      o.emitter,
		validate:     newValidator(),
		now:          o.now,
	}
}

// transition is the working state of one ApplyTransition call.
type transition struct {
	action  Action
	actor   identity.Capabilities
	payload Payload
	now     time.Time

	current *model.Document // as loaded, never mutated
	next    *model.Document // candidate written back over current

	// subject and fromStatus describe the record; they default to next and
	// current.Status and differ only when a step creates a new document.
	subject    *model.Document
	fromStatus model.Status
	comment    string
	extra      map[string]interface{}
	// records written by the step itself, emitted after the main record
	records []*model.TransitionRecord
}

func (t *transition) op() string {
	return string(t.action)
}

func (t *transition) isOwner() bool {
	return t.actor.UserID == t.current.Author
}

func (t *transition) requireOwner() error {
	if !t.isOwner() || !t.actor.CanAuthor {
		return refuse(t.op(), t.current.ID, ErrUnauthorized, "only the author %s may %s", t.current.Author, t.action)
	}
	return nil
}

func (t *transition) requireAssigned(role identity.Role) error {
	assignee, capable := t.current.Reviewer, t.actor.CanReview
	if role == identity.RoleApprover {
		assignee, capable = t.current.Approver, t.actor.CanApprove
	}

	if assignee == nil || *assignee != t.actor.UserID || !capable {
		return refuse(t.op(), t.current.ID, ErrUnauthorized, "only the assigned %s may %s", role, t.action)
	}
	return nil
}

// requireAssignee checks a user about to be assigned holds the capability and
// an active account.
func (w *WorkflowService) requireAssignee(ctx context.Context, t *transition, userID string, role identity.Role) error {
	caps, err := w.identity.Capabilities(ctx, userID)
	if errors.Is(err, identity.ErrUserNotFound) {
		return refuse(t.op(), t.current.ID, ErrUnauthorized, "unknown %s %s", role, userID)
	}
	if err != nil {
		return fmt.Errorf("%s: resolve %s %s: %w", t.op(), role, userID, err)
	}

	capable := caps.CanReview
	if role == identity.RoleApprover {
		capable = caps.CanApprove
	}
	if !capable {
		return refuse(t.op(), t.current.ID, ErrUnauthorized, "%s cannot act as %s", userID, role)
	}
	if !caps.Active {
		return refuse(t.op(), t.current.ID, ErrUnauthorized, "%s %s is deactivated", role, userID)
	}
	return nil
}

// ApplyTransition validates action against the stored document and applies it
// atomically. The returned record is already committed; delivery to the
// emitter happens after commit and cannot fail the call.
//
// SchedulerActor is reserved for sweeps and refused here.
func (w *WorkflowService) ApplyTransition(ctx context.Context, documentID string, action Action, actor string, payload Payload) (*model.TransitionRecord, error) {
	if actor == identity.SchedulerActor {
		err := refuse(string(action), documentID, ErrUnauthorized, "%s is reserved for scheduled sweeps", actor)
		metrics.TransitionsTotal.WithLabelValues(string(action), "rejected").Inc()
		metrics.TransitionRefusals.WithLabelValues(KindOf(err)).Inc()
		return nil, err
	}
	return w.applyTransition(ctx, documentID, action, actor, payload)
}

// applyAsScheduler applies action with the scheduler's capabilities. Only
// Sweeper calls it; the scheduler sends no payload.
func (w *WorkflowService) applyAsScheduler(ctx context.Context, documentID string, action Action) (*model.TransitionRecord, error) {
	return w.applyTransition(ctx, documentID, action, identity.SchedulerActor, Payload{})
}

func (w *WorkflowService) applyTransition(ctx context.Context, documentID string, action Action, actor string, payload Payload) (*model.TransitionRecord, error) {
	start := time.Now()
	records, err := w.apply(ctx, documentID, action, actor, payload)
	metrics.TransitionDuration.WithLabelValues(string(action)).Observe(time.Since(start).Seconds())

	entry := logrus.WithFields(logrus.Fields{
		"document": documentID,
		"action":   action,
		"actor":    actor,
	})
	if err != nil {
		var werr *WorkflowError
		if errors.As(err, &werr) {
			metrics.TransitionsTotal.WithLabelValues(string(action), "rejected").Inc()
			metrics.TransitionRefusals.WithLabelValues(KindOf(err)).Inc()
			entry.WithError(err).Warn("transition refused")
		} else {
			metrics.TransitionsTotal.WithLabelValues(string(action), "failed").Inc()
			entry.WithError(err).Error("transition failed")
		}
		return nil, err
	}

	record := records[0]
	metrics.TransitionsTotal.WithLabelValues(string(action), "applied").Inc()
	entry.WithFields(logrus.Fields{
		"from": record.FromStatus,
		"to":   record.ToStatus,
	}).Info("transition applied")

	w.emitter.Emit(records...)
	return record, nil
}

func (w *WorkflowService) apply(ctx context.Context, documentID string, action Action, actor string, payload Payload) ([]*model.TransitionRecord, error) {
	op := string(action)
	r, ok := rules[action]
	if !ok {
		return nil, refuse(op, documentID, ErrInvalidTransition, "unknown action %q", action)
	}

	var records []*model.TransitionRecord
	err := w.store.Transaction(ctx, func(tx store.Store) error {
		doc, err := tx.GetDocumentForUpdate(ctx, documentID)
		if err != nil {
			return storeError(op, documentID, err)
		}

		if payload.ExpectedRevision != nil && *payload.ExpectedRevision != doc.Revision {
			return refuse(op, documentID, ErrStaleWrite, "document is at revision %d, expected %d", doc.Revision, *payload.ExpectedRevision)
		}
		if !r.from.Contains(doc.Status) {
			return refuse(op, documentID, ErrInvalidTransition, "%s is not allowed from %s", action, doc.Status)
		}

		caps, err := w.capabilities(ctx, op, documentID, actor)
		if err != nil {
			return err
		}
		if !caps.Active {
			return refuse(op, documentID, ErrUnauthorized, "account %s is deactivated%s", actor, reassignHint(doc, actor))
		}

		t := &transition{
			action:     action,
			actor:      caps,
			payload:    payload,
			now:        w.now().UTC(),
			current:    doc,
			next:       doc.Clone(),
			fromStatus: doc.Status,
		}
		if err := r.step(w, ctx, tx, t); err != nil {
			return err
		}
		if t.subject == nil {
			t.subject = t.next
		}

		if action != ActionTerminate {
			if err := checkSegregation(op, t.subject); err != nil {
				return err
			}
		}

		if err := tx.UpdateDocument(ctx, t.next, doc.Revision); err != nil {
			return storeError(op, documentID, err)
		}

		record := newRecord(t.subject, t.fromStatus, action, actor, t.comment, payload.snapshot(t.extra), t.now)
		if err := tx.InsertTransitionRecord(ctx, record); err != nil {
			return err
		}

		records = append([]*model.TransitionRecord{record}, t.records...)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return records, nil
}

func (w *WorkflowService) capabilities(ctx context.Context, op, documentID, actor string) (identity.Capabilities, error) {
	if actor == identity.SchedulerActor {
		return identity.SchedulerCapabilities(), nil
	}

	caps, err := w.identity.Capabilities(ctx, actor)
	if errors.Is(err, identity.ErrUserNotFound) {
		return caps, refuse(op, documentID, ErrUnauthorized, "unknown user %s", actor)
	}
	if err != nil {
		return caps, fmt.Errorf("%s: resolve capabilities of %s: %w", op, actor, err)
	}
	// scheduler rights never come from the directory
	caps.Scheduler = false
	return caps, nil
}

func reassignHint(doc *model.Document, actor string) string {
	assigned := (reviewStages.Contains(doc.Status) && doc.Reviewer != nil && *doc.Reviewer == actor) ||
		(approvalStages.Contains(doc.Status) && doc.Approver != nil && *doc.Approver == actor)
	if assigned {
		return "; reassign the document before continuing"
	}
	return ""
}

func checkSegregation(op string, doc *model.Document) error {
	if doc.Reviewer != nil && *doc.Reviewer == doc.Author {
		return refuse(op, doc.ID, ErrSelfAssignment, "reviewer %s is the author", doc.Author)
	}
	if doc.Approver != nil && *doc.Approver == doc.Author {
		return refuse(op, doc.ID, ErrSelfAssignment, "approver %s is the author", doc.Author)
	}
	return nil
}

// supersede retires every older EFFECTIVE version of the family.
func (w *WorkflowService) supersede(ctx context.Context, tx store.Store, t *transition) error {
	docs, err := tx.ListFamilyDocuments(ctx, t.current.FamilyNumber)
	if err != nil {
		return err
	}

	version := t.current.Version()
	for _, doc := range docs {
		if doc.ID == t.current.ID || doc.Status != model.StatusEffective || !doc.Version().Less(version) {
			continue
		}

		old := doc.Clone()
		old.Status = model.StatusSuperseded
		if err := tx.UpdateDocument(ctx, old, doc.Revision); err != nil {
			return storeError(t.op(), doc.ID, err)
		}

		record := newRecord(old, doc.Status, ActionSupersede, t.actor.UserID,
			fmt.Sprintf("superseded by %s", version), datatypes.JSON(fmt.Sprintf(`{"superseded_by":%q}`, t.current.ID)), t.now)
		if err := tx.InsertTransitionRecord(ctx, record); err != nil {
			return err
		}
		t.records = append(t.records, record)
	}

	return nil
}

// claimFamily marks doc as the single in-flight version of its family.
func (w *WorkflowService) claimFamily(ctx context.Context, tx store.Store, op string, doc *model.Document) error {
	family, err := tx.GetFamily(ctx, doc.FamilyNumber)
	if err != nil {
		return fmt.Errorf("%s: load family %s: %w", op, doc.FamilyNumber, err)
	}
	if family.InFlightID != nil {
		return &WorkflowError{
			Op:         op,
			DocumentID: *family.InFlightID,
			Kind:       ErrConcurrentVersionInProgress,
			Message:    fmt.Sprintf("family %s already has a version in flight", family.Number),
		}
	}

	family.InFlightID = &doc.ID
	err = tx.UpdateFamily(ctx, family, family.Revision)
	if errors.Is(err, store.ErrStaleRevision) {
		return refuse(op, doc.ID, ErrConcurrentVersionInProgress, "family %s was claimed concurrently", family.Number)
	}
	return err
}

// releaseFamily clears the in-flight marker when doc holds it.
func (w *WorkflowService) releaseFamily(ctx context.Context, tx store.Store, op string, doc *model.Document) error {
	family, err := tx.GetFamily(ctx, doc.FamilyNumber)
	if err != nil {
		return fmt.Errorf("%s: load family %s: %w", op, doc.FamilyNumber, err)
	}
	if family.InFlightID == nil || *family.InFlightID != doc.ID {
		return nil
	}

	family.InFlightID = nil
	if err := tx.UpdateFamily(ctx, family, family.Revision); err != nil {
		return storeError(op, doc.ID, err)
	}
	return nil
}

func (w *WorkflowService) checkDependents(ctx context.Context, tx store.Store, t *transition) error {
	dependents, err := w.dependencies.activeDependents(ctx, tx, t.current.ID)
	if err != nil {
		return err
	}
	if len(dependents) > 0 {
		return &WorkflowError{
			Op:         t.op(),
			DocumentID: t.current.ID,
			Kind:       ErrDependencyBlocked,
			Message:    fmt.Sprintf("%d active dependents", len(dependents)),
			Blocking:   dependents,
		}
	}
	return nil
}

func storeError(op, documentID string, err error) error {
	switch {
	case errors.Is(err, store.ErrDocumentNotFound):
		return &WorkflowError{Op: op, DocumentID: documentID, Kind: ErrDocumentNotFound, Err: err}
	case errors.Is(err, store.ErrStaleRevision):
		return &WorkflowError{Op: op, DocumentID: documentID, Kind: ErrStaleWrite, Message: "document changed concurrently, reload and retry"}
	default:
		return fmt.Errorf("%s %s: %w", op, documentID, err)
	}
}

func newRecord(doc *model.Document, fromStatus model.Status, action Action, actor, comment string, payload datatypes.JSON, at time.Time) *model.TransitionRecord {
	return &model.TransitionRecord{
		ID:           newID(),
		DocumentID:   doc.ID,
		FamilyNumber: doc.FamilyNumber,
		Version:      doc.Version().String(),
		FromStatus:   fromStatus,
		ToStatus:     doc.Status,
		Actor:        actor,
		Action:       string(action),
		Comment:      comment,
		Payload:      payload,
		Timestamp:    at,
	}
}

func newID() string {
	return uuid.NewString()
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
