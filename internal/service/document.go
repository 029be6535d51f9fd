package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jinkaiteo/edms/internal/identity"
	"github.com/jinkaiteo/edms/internal/model"
	"github.com/jinkaiteo/edms/internal/store"
	"github.com/sirupsen/logrus"
)

// CreateDocumentRequest starts a new family.
type CreateDocumentRequest struct {
	DocumentType string
	Title        string
}

// DocumentService creates documents and answers read queries.
type DocumentService struct {
	store    store.Store
	identity identity.Provider
	emitter  Emitter
	validate *validator.Validate
	now      func() time.Time
}

// NewDocumentService creates a new DocumentService.
func NewDocumentService(store store.Store, provider identity.Provider, opts ...Option) *DocumentService {
	o := newOptions(opts)
	return &DocumentService{
		store:    store,
		identity: provider,
		emitter:  o.emitter,
		validate: newValidator(),
		now:      o.now,
	}
}

// CreateDocument allocates a family number TYPE-YYYY-NNNN and creates its
// first version, 01.00, in DRAFT owned by actor.
func (d *DocumentService) CreateDocument(ctx context.Context, actor string, req CreateDocumentRequest) (*model.Document, error) {
	const op = string(ActionCreateDocument)

	caps, err := d.identity.Capabilities(ctx, actor)
	if errors.Is(err, identity.ErrUserNotFound) {
		return nil, refuse(op, "", ErrUnauthorized, "unknown user %s", actor)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: resolve capabilities of %s: %w", op, actor, err)
	}
	if !caps.Active || !caps.CanAuthor {
		return nil, refuse(op, "", ErrUnauthorized, "%s may not author documents", actor)
	}

	in := createInput{
		DocumentType: strings.ToUpper(strings.TrimSpace(req.DocumentType)),
		Title:        strings.TrimSpace(req.Title),
	}
	if err := check(d.validate, op, "", in); err != nil {
		return nil, err
	}

	now := d.now().UTC()
	doc := &model.Document{
		ID:           newID(),
		Major:        model.InitialVersion.Major,
		Minor:        model.InitialVersion.Minor,
		DocumentType: in.DocumentType,
		Title:        in.Title,
		Status:       model.StatusDraft,
		Author:       actor,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	var record *model.TransitionRecord
	err = d.store.Transaction(ctx, func(tx store.Store) error {
		seq, err := tx.NextSequence(ctx, in.DocumentType, now.Year())
		if err != nil {
			return err
		}
		doc.FamilyNumber = fmt.Sprintf("%s-%04d-%04d", in.DocumentType, now.Year(), seq)

		family := &model.Family{
			Number:       doc.FamilyNumber,
			DocumentType: in.DocumentType,
			InFlightID:   &doc.ID,
		}
		if err := tx.CreateFamily(ctx, family); err != nil {
			return err
		}
		if err := tx.CreateDocument(ctx, doc); err != nil {
			return err
		}

		record = newRecord(doc, "", ActionCreateDocument, actor, "", Payload{}.snapshot(map[string]interface{}{
			"title":         doc.Title,
			"document_type": doc.DocumentType,
		}), now)
		return tx.InsertTransitionRecord(ctx, record)
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"document": doc.ID,
		"family":   doc.FamilyNumber,
		"actor":    actor,
	}).Info("document created")
	d.emitter.Emit(record)

	return doc, nil
}

// GetDocument retrieves a document by ID.
func (d *DocumentService) GetDocument(ctx context.Context, id string) (*model.Document, error) {
	doc, err := d.store.GetDocument(ctx, id)
	if err != nil {
		return nil, storeError("get_document", id, err)
	}
	return doc, nil
}

func (d *DocumentService) ListDocuments(ctx context.Context, filter store.DocumentFilter) ([]*model.Document, int64, error) {
	return d.store.ListDocuments(ctx, filter)
}

// ListFamily returns every version of the family ordered by version.
func (d *DocumentService) ListFamily(ctx context.Context, familyNumber string) ([]*model.Document, error) {
	return d.store.ListFamilyDocuments(ctx, familyNumber)
}

// Authoritative returns the highest EFFECTIVE version of the family, the only
// one consumers outside the workflow should rely on.
func (d *DocumentService) Authoritative(ctx context.Context, familyNumber string) (*model.Document, error) {
	docs, err := d.store.ListFamilyDocuments(ctx, familyNumber)
	if err != nil {
		return nil, err
	}

	var best *model.Document
	for _, doc := range docs {
		if doc.Status != model.StatusEffective {
			continue
		}
		if best == nil || best.Version().Less(doc.Version()) {
			best = doc
		}
	}
	if best == nil {
		return nil, fmt.Errorf("family %s: %w", familyNumber, ErrNoEffectiveVersion)
	}

	return best, nil
}

// History returns the transition records of one document, oldest first.
func (d *DocumentService) History(ctx context.Context, documentID string) ([]*model.TransitionRecord, error) {
	return d.store.ListTransitionRecords(ctx, documentID)
}

// FamilyHistory returns the transition records of every version of a family.
func (d *DocumentService) FamilyHistory(ctx context.Context, familyNumber string) ([]*model.TransitionRecord, error) {
	return d.store.ListFamilyTransitionRecords(ctx, familyNumber)
}
