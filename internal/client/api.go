package client

import (
	"context"
	"net/http"
	"net/url"

	"github.com/iliyamo/student-stay/internal/model"
)

// SubmitListing sends a listing for review.
func (c *Client) SubmitListing(ctx context.Context, in model.ListingInput) (model.Listing, error) {
	var out model.Listing
	err := c.call(ctx, http.MethodPost, "/v1/listings", in, &out, true)
	return out, err
}

// ApprovedListings returns the published listings.
func (c *Client) ApprovedListings(ctx context.Context) ([]model.Listing, error) {
	var out items[model.Listing]
	err := c.call(ctx, http.MethodGet, "/v1/listings", nil, &out, false)
	return out.Items, err
}

// PendingListings returns the review queue. Admin only.
func (c *Client) PendingListings(ctx context.Context) ([]model.Listing, error) {
	var out items[model.Listing]
	err := c.call(ctx, http.MethodGet, "/v1/admin/listings?status=pending", nil, &out, true)
	return out.Items, err
}

func (c *Client) ApproveListing(ctx context.Context, id string) (model.Listing, error) {
	var out model.Listing
	err := c.call(ctx, http.MethodPost, "/v1/admin/listings/"+url.PathEscape(id)+"/approve", nil, &out, true)
	return out, err
}

func (c *Client) RejectListing(ctx context.Context, id string) (model.Listing, error) {
	var out model.Listing
	err := c.call(ctx, http.MethodPost, "/v1/admin/listings/"+url.PathEscape(id)+"/reject", nil, &out, true)
	return out, err
}

// Inquire sends a booking inquiry.
func (c *Client) Inquire(ctx context.Context, in model.InquiryInput) (model.Inquiry, error) {
	var out model.Inquiry
	err := c.call(ctx, http.MethodPost, "/v1/inquiries", in, &out, true)
	return out, err
}

// Posts lists blog posts without their bodies.
func (c *Client) Posts(ctx context.Context) ([]model.BlogPost, error) {
	var out items[model.BlogPost]
	err := c.call(ctx, http.MethodGet, "/v1/blog", nil, &out, false)
	return out.Items, err
}

// Post returns one post with its rendered HTML.
func (c *Client) Post(ctx context.Context, slug string) (model.BlogPost, error) {
	var out model.BlogPost
	err := c.call(ctx, http.MethodGet, "/v1/blog/"+url.PathEscape(slug), nil, &out, false)
	return out, err
}

// PublishPost creates a post. Admin only.
func (c *Client) PublishPost(ctx context.Context, in model.BlogPostInput) (model.BlogPost, error) {
	var out model.BlogPost
	err := c.call(ctx, http.MethodPost, "/v1/admin/blog", in, &out, true)
	return out, err
}
