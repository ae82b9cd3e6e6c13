package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/student-stay/internal/apperr"
	"github.com/iliyamo/student-stay/internal/catalog"
	"github.com/iliyamo/student-stay/internal/filter"
	"github.com/iliyamo/student-stay/internal/model"
)

// CatalogHandler serves the read-only accommodation catalog.
type CatalogHandler struct {
	Catalog *catalog.Catalog
}

func NewCatalogHandler(cat *catalog.Catalog) *CatalogHandler { return &CatalogHandler{Catalog: cat} }

// CatalogItem is a list entry. Distance is relative to the requested college.
type CatalogItem struct {
	ID        int                     `json:"id"`
	Name      string                  `json:"name"`
	Type      model.AccommodationType `json:"type"`
	Gender    model.Gender            `json:"gender"`
	Price     int                     `json:"price"`
	Address   string                  `json:"address"`
	Distance  float64                 `json:"distance_km"`
	Amenities []string                `json:"amenities"`
	Image     string                  `json:"image,omitempty"`
	Rating    float64                 `json:"rating,omitempty"`
}

// pageParams reads page (from 1) and page_size (1..100, default 20).
func pageParams(c echo.Context) (int, int) {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	if page < 1 {
		page = 1
	}
	ps, _ := strconv.Atoi(c.QueryParam("page_size"))
	if ps < 1 {
		ps = 20
	}
	if ps > 100 {
		ps = 100
	}
	return page, ps
}

// listAmenities is how many amenities a list entry shows.
const listAmenities = 3

// List applies the college/type/gender query to the catalog.
func (h *CatalogHandler) List(c echo.Context) error {
	t, err := filter.ParseType(c.QueryParam("type"))
	if err != nil {
		return fail(c, err)
	}
	g, err := filter.ParseGender(c.QueryParam("gender"))
	if err != nil {
		return fail(c, err)
	}
	sel := filter.Selection{College: c.QueryParam("college"), AccommodationType: t, Gender: g}
	college := sel.College
	if college == "" {
		college = model.OtherCollege
	}
	page, ps := pageParams(c)
	matched := filter.Apply(sel, h.Catalog.All())
	total := len(matched)
	if from := (page - 1) * ps; from < total {
		matched = matched[from:min(from+ps, total)]
	} else {
		matched = nil
	}
	out := make([]CatalogItem, 0, len(matched))
	for _, a := range matched {
		it := CatalogItem{
			ID: a.ID, Name: a.Name, Type: a.Type, Gender: a.Gender, Price: a.Price,
			Address: a.Address, Distance: a.DistanceTo(college),
			Amenities: a.TopAmenities(listAmenities), Rating: a.Rating,
		}
		if imgs := a.DisplayImages(); len(imgs) > 0 {
			it.Image = imgs[0]
		}
		out = append(out, it)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"items":     out,
		"filters":   sel,
		"total":     total,
		"page":      page,
		"page_size": ps,
	})
}

func (h *CatalogHandler) Get(c echo.Context) error {
	id, ok := intParam(c, "id")
	if !ok {
		return badRequest(c, "invalid accommodation id")
	}
	a, found := h.Catalog.Get(id)
	if !found {
		return fail(c, apperr.NotFound("accommodation not found", nil))
	}
	a.Images = a.DisplayImages()
	return c.JSON(http.StatusOK, a)
}

func (h *CatalogHandler) Colleges(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"items": h.Catalog.Colleges()})
}
