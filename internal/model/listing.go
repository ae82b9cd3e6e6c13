package model

import (
	"time"

	"github.com/iliyamo/student-stay/internal/backend"
)

// ListingStatus is the approval state of an owner submission.
type ListingStatus string

const (
	StatusPending  ListingStatus = "pending"
	StatusApproved ListingStatus = "approved"
	StatusRejected ListingStatus = "rejected"
)

// Terminal reports whether no further transition is allowed.
func (s ListingStatus) Terminal() bool { return s == StatusApproved || s == StatusRejected }

// MinListingImages is the number of photos an owner must attach.
const MinListingImages = 10

// ListingInput is what an owner submits.
type ListingInput struct {
	Name        string            `json:"name" validate:"required,max=120"`
	Type        AccommodationType `json:"type" validate:"required,oneof=hostel pg"`
	Gender      Gender            `json:"gender" validate:"required,oneof=boys girls co-ed"`
	Price       int               `json:"price" validate:"required,gt=0"`
	Address     string            `json:"address" validate:"required"`
	College     string            `json:"college,omitempty"`
	Phone       string            `json:"phone" validate:"required"`
	Amenities   []string          `json:"amenities,omitempty"`
	Images      []string          `json:"images"`
	Description string            `json:"description,omitempty" validate:"max=4000"`
}

// Listing is a stored owner submission.
type Listing struct {
	ListingInput
	ID          string        `json:"id"`
	OwnerID     string        `json:"owner_id" validate:"required"`
	Status      ListingStatus `json:"status" validate:"required,oneof=pending approved rejected"`
	SubmittedAt time.Time     `json:"submitted_at"`
	ApprovedAt  *time.Time    `json:"approved_at,omitempty"`
	RejectedAt  *time.Time    `json:"rejected_at,omitempty"`
	SourceID    string        `json:"source_id,omitempty"`
}

// Fields returns the record document for l. The id is not part of it.
func (l Listing) Fields() (backend.Fields, error) {
	f, err := toFields(l)
	if err != nil {
		return nil, err
	}
	delete(f, "id")
	return f, nil
}

// DecodeListing turns a stored document into a Listing.
func DecodeListing(collection, id string, f backend.Fields) (Listing, error) {
	var l Listing
	if err := decodeFields(collection, f, &l); err != nil {
		return Listing{}, err
	}
	l.ID = id
	return l, nil
}
