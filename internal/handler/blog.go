package handler

import (
	"bytes"
	"context"
	"log"
	"net/http"
	"regexp"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/yuin/goldmark"
	goldmarkHTML "github.com/yuin/goldmark/renderer/html"

	"github.com/iliyamo/student-stay/internal/apperr"
	"github.com/iliyamo/student-stay/internal/backend"
	"github.com/iliyamo/student-stay/internal/middleware"
	"github.com/iliyamo/student-stay/internal/model"
)

// markdown renders post bodies. Raw HTML in the source is omitted.
var markdown = goldmark.New(goldmark.WithRendererOptions(goldmarkHTML.WithHardWraps()))

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

// BlogHandler serves the student guides written by administrators.
type BlogHandler struct {
	Records backend.Records
	Purge   func(ctx context.Context)
	Now     func() time.Time
}

func NewBlogHandler(records backend.Records, purge func(ctx context.Context)) *BlogHandler {
	return &BlogHandler{Records: records, Purge: purge, Now: time.Now}
}

// RenderMarkdown converts a post body to HTML.
func RenderMarkdown(src string) (string, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(src), &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// List returns published posts, newest first, without their bodies.
func (h *BlogHandler) List(c echo.Context) error {
	ctx, cancel := withTimeout(c)
	defer cancel()
	posts, err := h.find(ctx, nil)
	if err != nil {
		return fail(c, err)
	}
	for i := range posts {
		posts[i].BodyMD = ""
	}
	return c.JSON(http.StatusOK, echo.Map{"items": posts})
}

func (h *BlogHandler) Get(c echo.Context) error {
	slug := c.Param("slug")
	if !slugPattern.MatchString(slug) {
		return fail(c, apperr.NotFound("post not found", nil))
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	posts, err := h.find(ctx, []backend.Predicate{{Field: "slug", Value: slug}})
	if err != nil {
		return fail(c, err)
	}
	if len(posts) == 0 {
		return fail(c, apperr.NotFound("post not found", nil))
	}
	p := posts[0]
	if p.HTML, err = RenderMarkdown(p.BodyMD); err != nil {
		return fail(c, apperr.Transient(err))
	}
	return c.JSON(http.StatusOK, p)
}

// Create publishes a post. Slugs are unique.
func (h *BlogHandler) Create(c echo.Context) error {
	var in model.BlogPostInput
	if err := bindValid(c, &in); err != nil {
		return fail(c, err)
	}
	if !slugPattern.MatchString(in.Slug) {
		return badRequest(c, "slug may only contain lowercase letters, digits and single dashes")
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	existing, err := h.find(ctx, []backend.Predicate{{Field: "slug", Value: in.Slug}})
	if err != nil {
		return fail(c, err)
	}
	if len(existing) > 0 {
		return fail(c, apperr.Conflict("slug already in use", nil))
	}
	p := model.BlogPost{
		BlogPostInput: in,
		AuthorID:      middleware.AccountID(c),
		Status:        "published",
		PublishedAt:   h.Now().UTC(),
	}
	f, err := p.Fields()
	if err != nil {
		return fail(c, apperr.Transient(err))
	}
	if p.ID, err = h.Records.CreateRecord(ctx, backend.CollectionBlogPosts, f); err != nil {
		return fail(c, err)
	}
	if h.Purge != nil {
		h.Purge(ctx)
	}
	if p.HTML, err = RenderMarkdown(p.BodyMD); err != nil {
		log.Printf("handler: render post %s: %v", p.ID, err)
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *BlogHandler) find(ctx context.Context, preds []backend.Predicate) ([]model.BlogPost, error) {
	docs, err := h.Records.ListRecords(ctx, backend.CollectionBlogPosts, preds, backend.Order{Field: "published_at", Desc: true})
	if err != nil {
		return nil, err
	}
	out := make([]model.BlogPost, 0, len(docs))
	for _, d := range docs {
		id, _ := d["id"].(string)
		p, err := model.DecodeBlogPost(id, d)
		if err != nil {
			log.Printf("handler: skipping post %s: %v", id, err)
			continue
		}
		out = append(out, p)
	}
	return out, nil
}
