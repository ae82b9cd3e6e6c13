package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/student-stay/internal/approval"
	"github.com/iliyamo/student-stay/internal/model"
)

// ListingHandler serves owner submissions and the admin review queue.
type ListingHandler struct {
	Workflow *approval.Workflow
	// Purge drops cached public responses after a decision. May be nil.
	Purge func(ctx context.Context)
}

func NewListingHandler(w *approval.Workflow, purge func(ctx context.Context)) *ListingHandler {
	return &ListingHandler{Workflow: w, Purge: purge}
}

func (h *ListingHandler) Submit(c echo.Context) error {
	var in model.ListingInput
	if err := c.Bind(&in); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	l, err := h.Workflow.Submit(ctx, actor(c), in)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, l)
}

// Approved lists the published listings, newest first.
func (h *ListingHandler) Approved(c echo.Context) error {
	ctx, cancel := withTimeout(c)
	defer cancel()
	items, err := h.Workflow.Approved(ctx)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// Pending lists the review queue, oldest submission first. Only
// status=pending is supported.
func (h *ListingHandler) Pending(c echo.Context) error {
	if s := c.QueryParam("status"); s != "" && s != string(model.StatusPending) {
		return badRequest(c, "only status=pending can be listed")
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	items, err := h.Workflow.Pending(ctx, actor(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

func (h *ListingHandler) Approve(c echo.Context) error {
	return h.decide(c, h.Workflow.Approve)
}

func (h *ListingHandler) Reject(c echo.Context) error {
	return h.decide(c, h.Workflow.Reject)
}

func (h *ListingHandler) decide(c echo.Context, fn func(context.Context, approval.Actor, string) (model.Listing, error)) error {
	id := c.Param("id")
	if id == "" {
		return badRequest(c, "listing id is required")
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	l, err := fn(ctx, actor(c), id)
	if err != nil {
		return fail(c, err)
	}
	if h.Purge != nil {
		h.Purge(ctx)
	}
	return c.JSON(http.StatusOK, l)
}
