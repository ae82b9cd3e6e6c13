package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/student-stay/internal/apperr"
	"github.com/iliyamo/student-stay/internal/backend"
	"github.com/iliyamo/student-stay/internal/catalog"
	"github.com/iliyamo/student-stay/internal/filter"
	"github.com/iliyamo/student-stay/internal/kv"
	"github.com/iliyamo/student-stay/internal/middleware"
)

// MeHandler serves the signed-in account: its record, saved set and the
// server-side copy of its filter selection.
type MeHandler struct {
	Accounts backend.Accounts
	Catalog  *catalog.Catalog
	Filters  kv.Store
}

func NewMeHandler(a backend.Accounts, cat *catalog.Catalog, filters kv.Store) *MeHandler {
	return &MeHandler{Accounts: a, Catalog: cat, Filters: filters}
}

func (h *MeHandler) Get(c echo.Context) error {
	ctx, cancel := withTimeout(c)
	defer cancel()
	rec, err := h.Accounts.GetAccountRecord(ctx, middleware.AccountID(c))
	if err != nil {
		return fail(c, err)
	}
	if rec.SavedIDs == nil {
		rec.SavedIDs = []int{}
	}
	return c.JSON(http.StatusOK, rec)
}

// Save adds one accommodation to the saved set. Saving twice is a no-op.
func (h *MeHandler) Save(c echo.Context) error {
	return h.updateSaved(c, true)
}

// Unsave removes one accommodation from the saved set.
func (h *MeHandler) Unsave(c echo.Context) error {
	return h.updateSaved(c, false)
}

func (h *MeHandler) updateSaved(c echo.Context, add bool) error {
	id, ok := intParam(c, "id")
	if !ok {
		return badRequest(c, "invalid accommodation id")
	}
	if add && !h.Catalog.Has(id) {
		return fail(c, apperr.NotFound("accommodation not found", nil))
	}
	upd := backend.AccountUpdate{SavedRemove: []int{id}}
	if add {
		upd = backend.AccountUpdate{SavedAdd: []int{id}}
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	if err := h.Accounts.UpdateAccountRecord(ctx, middleware.AccountID(c), upd); err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"id": id, "saved": add})
}

// Saved returns the catalog entries for the saved ids in catalog order. Ids
// no longer in the catalog are left out.
func (h *MeHandler) Saved(c echo.Context) error {
	ctx, cancel := withTimeout(c)
	defer cancel()
	rec, err := h.Accounts.GetAccountRecord(ctx, middleware.AccountID(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": h.Catalog.Subset(rec.SavedIDs)})
}

func (h *MeHandler) filterStore(c echo.Context) *filter.Store {
	ns := kv.Prefixed{Store: h.Filters, Prefix: "filters:" + middleware.AccountID(c) + ":"}
	return filter.NewStore(ns, "")
}

func (h *MeHandler) GetFilters(c echo.Context) error {
	return c.JSON(http.StatusOK, h.filterStore(c).Selection())
}

// PutFilters replaces the stored selection as a whole.
func (h *MeHandler) PutFilters(c echo.Context) error {
	var sel filter.Selection
	if err := c.Bind(&sel); err != nil {
		return badRequest(c, "invalid body")
	}
	st := h.filterStore(c)
	if err := st.Replace(sel); err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, st.Selection())
}

func (h *MeHandler) DeleteFilters(c echo.Context) error {
	h.filterStore(c).Reset()
	return c.NoContent(http.StatusNoContent)
}

type profileReq struct {
	Name    *string `json:"name" validate:"omitempty,min=1,max=120"`
	College *string `json:"college" validate:"omitempty,max=120"`
}

// UpdateProfile changes the name or college. Absent fields are kept.
func (h *MeHandler) UpdateProfile(c echo.Context) error {
	var req profileReq
	if err := bindValid(c, &req); err != nil {
		return fail(c, err)
	}
	if req.Name == nil && req.College == nil {
		return badRequest(c, "nothing to update")
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	id := middleware.AccountID(c)
	if err := h.Accounts.UpdateAccountRecord(ctx, id, backend.AccountUpdate{Name: req.Name, College: req.College}); err != nil {
		return fail(c, err)
	}
	rec, err := h.Accounts.GetAccountRecord(ctx, id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, rec)
}
