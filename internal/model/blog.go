package model

import (
	"time"

	"github.com/iliyamo/student-stay/internal/backend"
)

// BlogPostInput is an article written by an administrator in markdown.
type BlogPostInput struct {
	Title  string   `json:"title" validate:"required,max=200"`
	Slug   string   `json:"slug" validate:"required,max=120,lowercase"`
	BodyMD string   `json:"body_md" validate:"required"`
	Tags   []string `json:"tags,omitempty"`
}

// BlogPost is a stored article. HTML is filled in on read.
type BlogPost struct {
	BlogPostInput
	ID          string    `json:"id"`
	AuthorID    string    `json:"author_id" validate:"required"`
	Status      string    `json:"status"`
	PublishedAt time.Time `json:"published_at"`
	HTML        string    `json:"html,omitempty"`
}

func (p BlogPost) Fields() (backend.Fields, error) {
	f, err := toFields(p)
	if err != nil {
		return nil, err
	}
	delete(f, "id")
	delete(f, "html")
	return f, nil
}

func DecodeBlogPost(id string, f backend.Fields) (BlogPost, error) {
	var p BlogPost
	if err := decodeFields(backend.CollectionBlogPosts, f, &p); err != nil {
		return BlogPost{}, err
	}
	p.ID = id
	return p, nil
}
