// Package approval moves owner listings through pending, approved and
// rejected. Approved and rejected are terminal.
package approval

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/iliyamo/student-stay/internal/apperr"
	"github.com/iliyamo/student-stay/internal/backend"
	"github.com/iliyamo/student-stay/internal/model"
)

// Actor is the account performing an action.
type Actor struct {
	ID      string
	IsAdmin bool
}

// Notifier is told about every approve or reject decision.
type Notifier interface {
	ListingDecided(ctx context.Context, l model.Listing)
}

// Store is the record store the workflow runs against. PublishRecord moves a
// record out of pending and inserts its published copy atomically, returning
// backend.ErrNotPending when another decision got there first.
type Store interface {
	backend.Records
	PublishRecord(ctx context.Context, collection, id, newStatus string, extra backend.Fields, target string, doc backend.Fields) (string, error)
}

// Workflow runs listing submissions and admin decisions against a record
// store.
type Workflow struct {
	records  Store
	notifier Notifier
	now      func() time.Time
}

// New returns a workflow. notifier and now may be nil.
func New(records Store, notifier Notifier, now func() time.Time) *Workflow {
	if now == nil {
		now = time.Now
	}
	return &Workflow{records: records, notifier: notifier, now: now}
}

// Submit stores a new pending listing owned by owner.
func (w *Workflow) Submit(ctx context.Context, owner Actor, in model.ListingInput) (model.Listing, error) {
	if owner.ID == "" {
		return model.Listing{}, apperr.Authentication("sign in to list a property", nil)
	}
	if err := model.Validate.Struct(in); err != nil {
		return model.Listing{}, apperr.Validation(model.ValidationMessage(err))
	}
	images := make([]string, 0, len(in.Images))
	for _, img := range in.Images {
		if s := strings.TrimSpace(img); s != "" {
			images = append(images, s)
		}
	}
	if len(images) < model.MinListingImages {
		return model.Listing{}, apperr.Validation(fmt.Sprintf("at least %d photos required", model.MinListingImages))
	}
	in.Images = images

	l := model.Listing{
		ListingInput: in,
		OwnerID:      owner.ID,
		Status:       model.StatusPending,
		SubmittedAt:  w.now().UTC(),
	}
	f, err := l.Fields()
	if err != nil {
		return model.Listing{}, apperr.Transient(err)
	}
	id, err := w.records.CreateRecord(ctx, backend.CollectionListings, f)
	if err != nil {
		return model.Listing{}, apperr.Normalize(err)
	}
	l.ID = id
	return l, nil
}

// Pending lists listings awaiting a decision, oldest first.
func (w *Workflow) Pending(ctx context.Context, actor Actor) ([]model.Listing, error) {
	if !actor.IsAdmin {
		return nil, apperr.Authorization("admin access required")
	}
	return w.list(ctx, backend.CollectionListings,
		[]backend.Predicate{{Field: "status", Value: string(model.StatusPending)}},
		backend.Order{Field: "submitted_at"})
}

// Approved lists published listings, newest approval first.
func (w *Workflow) Approved(ctx context.Context) ([]model.Listing, error) {
	return w.list(ctx, backend.CollectionApprovedListings, nil, backend.Order{Field: "approved_at", Desc: true})
}

func (w *Workflow) list(ctx context.Context, coll string, preds []backend.Predicate, order backend.Order) ([]model.Listing, error) {
	docs, err := w.records.ListRecords(ctx, coll, preds, order)
	if err != nil {
		return nil, apperr.Normalize(err)
	}
	out := make([]model.Listing, 0, len(docs))
	for _, d := range docs {
		id, _ := d["id"].(string)
		l, err := model.DecodeListing(coll, id, d)
		if err != nil {
			log.Printf("approval: skipping record %s: %v", id, err)
			continue
		}
		out = append(out, l)
	}
	return out, nil
}

// Approve publishes a pending listing. The full record is copied into the
// approved collection and the original is kept, marked approved. Both writes
// land together, so a lost race or a failed write leaves nothing published.
func (w *Workflow) Approve(ctx context.Context, actor Actor, id string) (model.Listing, error) {
	l, err := w.loadPending(ctx, actor, id)
	if err != nil {
		return model.Listing{}, err
	}
	now := w.now().UTC()

	published := l
	published.Status = model.StatusApproved
	published.ApprovedAt = &now
	published.SourceID = id
	f, err := published.Fields()
	if err != nil {
		return model.Listing{}, apperr.Transient(err)
	}
	extra := backend.Fields{"approved_at": now.Format(time.RFC3339Nano)}
	newID, err := w.records.PublishRecord(ctx, backend.CollectionListings, id, string(model.StatusApproved), extra,
		backend.CollectionApprovedListings, f)
	if err != nil {
		return model.Listing{}, w.decisionError(err)
	}
	published.ID = newID
	w.notify(ctx, published)
	return published, nil
}

// Reject marks a pending listing rejected in place.
func (w *Workflow) Reject(ctx context.Context, actor Actor, id string) (model.Listing, error) {
	l, err := w.loadPending(ctx, actor, id)
	if err != nil {
		return model.Listing{}, err
	}
	now := w.now().UTC()
	extra := backend.Fields{"rejected_at": now.Format(time.RFC3339Nano)}
	if err := w.records.UpdateRecordStatus(ctx, backend.CollectionListings, id, string(model.StatusRejected), extra); err != nil {
		return model.Listing{}, w.decisionError(err)
	}
	l.Status = model.StatusRejected
	l.RejectedAt = &now
	w.notify(ctx, l)
	return l, nil
}

// loadPending checks the actor first, then fetches the listing and makes sure
// it still awaits a decision.
func (w *Workflow) loadPending(ctx context.Context, actor Actor, id string) (model.Listing, error) {
	if !actor.IsAdmin {
		return model.Listing{}, apperr.Authorization("admin access required")
	}
	f, err := w.records.GetRecord(ctx, backend.CollectionListings, id)
	if err != nil {
		if errors.Is(err, backend.ErrNotFound) {
			return model.Listing{}, apperr.NotFound("listing not found", err)
		}
		return model.Listing{}, apperr.Normalize(err)
	}
	l, err := model.DecodeListing(backend.CollectionListings, id, f)
	if err != nil {
		log.Printf("approval: %v", err)
		return model.Listing{}, apperr.NotFound("listing not found", err)
	}
	if l.Status != model.StatusPending {
		return model.Listing{}, apperr.NotFound("listing already processed", backend.ErrNotPending)
	}
	return l, nil
}

func (w *Workflow) decisionError(err error) error {
	if errors.Is(err, backend.ErrNotPending) {
		return apperr.NotFound("listing already processed", err)
	}
	return apperr.Normalize(err)
}

func (w *Workflow) notify(ctx context.Context, l model.Listing) {
	if w.notifier != nil {
		w.notifier.ListingDecided(ctx, l)
	}
}
