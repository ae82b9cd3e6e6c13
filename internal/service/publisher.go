package service

import (
	"context"
	"encoding/json"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/student-stay/internal/model"
	"github.com/iliyamo/student-stay/internal/queue"
)

// Publisher sends events to RabbitMQ. Each publish dials its own short-lived
// connection; traffic is a handful of events per user action. A Publisher
// with an empty URL drops events after logging them.
type Publisher struct {
	url     string
	devEcho bool
}

// NewPublisher returns a publisher for url. With devEcho set, dropped OTP
// events are written to the service log so codes can be read in development.
func NewPublisher(url string, devEcho bool) *Publisher {
	return &Publisher{url: url, devEcho: devEcho}
}

// Publish marshals event and sends it persistently to queue name q.
func (p *Publisher) Publish(ctx context.Context, q string, event any) error {
	if p.url == "" {
		log.Printf("rabbitmq: publishing disabled, dropping %s event", q)
		return nil
	}
	conn, err := amqp.Dial(p.url)
	if err != nil {
		log.Printf("rabbitmq: dial failed: %v", err)
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		log.Printf("rabbitmq: channel open failed: %v", err)
		return err
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(q, true, false, false, false, nil); err != nil {
		log.Printf("rabbitmq: queue declare failed: %v", err)
		return err
	}

	body, err := json.Marshal(event)
	if err != nil {
		log.Printf("rabbitmq: marshal event failed: %v", err)
		return err
	}
	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", q, false, false, pub); err != nil {
		log.Printf("rabbitmq: publish failed: %v", err)
		return err
	}
	return nil
}

// SendOtp hands a code to the delivery pipeline.
func (p *Publisher) SendOtp(ctx context.Context, ev queue.OtpRequestedEvent) error {
	if p.url == "" && p.devEcho {
		log.Printf("otp: code %s for %s (handle %s)", ev.Code, ev.Phone, ev.Handle)
		return nil
	}
	return p.Publish(ctx, queue.OtpRequestedQueue, ev)
}

// ListingDecided publishes an approval or rejection. Failures are logged
// only; the decision itself is already stored.
func (p *Publisher) ListingDecided(ctx context.Context, l model.Listing) {
	ev := queue.ListingDecidedEvent{
		ListingID: l.ID,
		OwnerID:   l.OwnerID,
		Name:      l.Name,
		Status:    string(l.Status),
		DecidedAt: time.Now().UTC().Format(time.RFC3339),
	}
	if l.Status == model.StatusApproved {
		ev.ListingID = l.SourceID
		ev.PublishedID = l.ID
	}
	_ = p.Publish(ctx, queue.ListingDecidedQueue, ev)
}

// InquiryCreated publishes a new booking inquiry.
func (p *Publisher) InquiryCreated(ctx context.Context, in model.Inquiry) {
	_ = p.Publish(ctx, queue.InquiryCreatedQueue, queue.InquiryCreatedEvent{
		InquiryID:       in.ID,
		AccommodationID: in.AccommodationID,
		AccountID:       in.AccountID,
		Name:            in.Name,
		Phone:           in.Phone,
		MoveIn:          in.MoveIn,
		CreatedAt:       in.CreatedAt.UTC().Format(time.RFC3339),
	})
}
