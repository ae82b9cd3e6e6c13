package handler

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/student-stay/internal/apperr"
	"github.com/iliyamo/student-stay/internal/backend"
	"github.com/iliyamo/student-stay/internal/catalog"
	"github.com/iliyamo/student-stay/internal/middleware"
	"github.com/iliyamo/student-stay/internal/model"
)

// InquiryNotifier is told about every stored inquiry.
type InquiryNotifier interface {
	InquiryCreated(ctx context.Context, q model.Inquiry)
}

// InquiryHandler stores booking inquiries from students.
type InquiryHandler struct {
	Records  backend.Records
	Catalog  *catalog.Catalog
	Notifier InquiryNotifier
	Now      func() time.Time
}

func NewInquiryHandler(records backend.Records, cat *catalog.Catalog, n InquiryNotifier) *InquiryHandler {
	return &InquiryHandler{Records: records, Catalog: cat, Notifier: n, Now: time.Now}
}

func (h *InquiryHandler) Create(c echo.Context) error {
	var in model.InquiryInput
	if err := bindValid(c, &in); err != nil {
		return fail(c, err)
	}
	if !h.Catalog.Has(in.AccommodationID) {
		return fail(c, apperr.NotFound("accommodation not found", nil))
	}
	q := model.Inquiry{
		InquiryInput: in,
		AccountID:    middleware.AccountID(c),
		Status:       "open",
		CreatedAt:    h.Now().UTC(),
	}
	f, err := q.Fields()
	if err != nil {
		return fail(c, apperr.Transient(err))
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	id, err := h.Records.CreateRecord(ctx, backend.CollectionInquiries, f)
	if err != nil {
		return fail(c, err)
	}
	q.ID = id
	if h.Notifier != nil {
		h.Notifier.InquiryCreated(ctx, q)
	}
	return c.JSON(http.StatusCreated, q)
}

// List returns inquiries newest first, optionally for one accommodation.
func (h *InquiryHandler) List(c echo.Context) error {
	var preds []backend.Predicate
	if v := c.QueryParam("accommodation_id"); v != "" {
		id, ok := intQuery(v)
		if !ok {
			return badRequest(c, "invalid accommodation_id")
		}
		preds = append(preds, backend.Predicate{Field: "accommodation_id", Value: id})
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	docs, err := h.Records.ListRecords(ctx, backend.CollectionInquiries, preds, backend.Order{Field: "created_at", Desc: true})
	if err != nil {
		return fail(c, err)
	}
	out := make([]model.Inquiry, 0, len(docs))
	for _, d := range docs {
		id, _ := d["id"].(string)
		q, err := model.DecodeInquiry(id, d)
		if err != nil {
			log.Printf("handler: skipping inquiry %s: %v", id, err)
			continue
		}
		out = append(out, q)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": out})
}
