// Package queue defines the events exchanged over RabbitMQ and the consumer
// that records them.
package queue

// Queue names. Each event type has its own durable queue.
const (
	OtpRequestedQueue   = "otp.requested"
	ListingDecidedQueue = "listing.decided"
	InquiryCreatedQueue = "inquiry.created"
)

// OtpRequestedEvent asks the delivery side to text a code to a phone. In
// development the consumer writes it to logs/otp.log instead of sending it.
type OtpRequestedEvent struct {
	Handle      string `json:"handle"`
	Phone       string `json:"phone"`
	Code        string `json:"code"`
	ExpiresAt   string `json:"expires_at"`
	RequestedAt string `json:"requested_at"`
}

// ListingDecidedEvent is published after an admin approves or rejects a
// listing so the owner can be told.
type ListingDecidedEvent struct {
	ListingID   string `json:"listing_id"`
	PublishedID string `json:"published_id,omitempty"`
	OwnerID     string `json:"owner_id"`
	Name        string `json:"name"`
	Status      string `json:"status"`
	DecidedAt   string `json:"decided_at"`
}

// InquiryCreatedEvent carries a booking inquiry to whoever handles them.
type InquiryCreatedEvent struct {
	InquiryID       string `json:"inquiry_id"`
	AccommodationID int    `json:"accommodation_id"`
	AccountID       string `json:"account_id"`
	Name            string `json:"name"`
	Phone           string `json:"phone"`
	MoveIn          string `json:"move_in"`
	CreatedAt       string `json:"created_at"`
}
