package model

import (
	"time"

	"github.com/iliyamo/student-stay/internal/backend"
)

// InquiryInput is a booking inquiry sent by a student.
type InquiryInput struct {
	AccommodationID int    `json:"accommodation_id" validate:"required,gt=0"`
	Name            string `json:"name" validate:"required,max=100"`
	Phone           string `json:"phone" validate:"required"`
	MoveIn          string `json:"move_in,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Message         string `json:"message,omitempty" validate:"max=2000"`
}

// Inquiry is a stored booking inquiry.
type Inquiry struct {
	InquiryInput
	ID        string    `json:"id"`
	AccountID string    `json:"account_id" validate:"required"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

func (q Inquiry) Fields() (backend.Fields, error) {
	f, err := toFields(q)
	if err != nil {
		return nil, err
	}
	delete(f, "id")
	return f, nil
}

func DecodeInquiry(id string, f backend.Fields) (Inquiry, error) {
	var q Inquiry
	if err := decodeFields(backend.CollectionInquiries, f, &q); err != nil {
		return Inquiry{}, err
	}
	q.ID = id
	return q, nil
}
