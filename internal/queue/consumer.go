package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// logFiles maps each queue to the file its events are appended to.
var logFiles = map[string]string{
	OtpRequestedQueue:   "otp.log",
	ListingDecidedQueue: "listings.log",
	InquiryCreatedQueue: "inquiries.log",
}

// StartConsumer consumes every event queue and appends one line per event to
// a file under dir. It reconnects with backoff until ctx is cancelled.
func StartConsumer(ctx context.Context, url, dir string) error {
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		conn, err := amqp.Dial(url)
		if err != nil {
			log.Printf("event-consumer: failed to dial broker: %v; retrying in %s", err, backoff)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = consumeLoop(ctx, conn, dir)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Printf("event-consumer: consume loop ended: %v; reconnecting", err)
		time.Sleep(2 * time.Second)
	}
}

type delivery struct {
	queue string
	amqp.Delivery
}

func consumeLoop(ctx context.Context, conn *amqp.Connection, dir string) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		log.Printf("event-consumer: set QoS failed: %v", err)
	}

	merged := make(chan delivery)
	done := make(chan struct{})
	defer close(done)
	open := 0
	closed := make(chan struct{}, len(logFiles))
	for q := range logFiles {
		if _, err := ch.QueueDeclare(q, true, false, false, false, nil); err != nil {
			return fmt.Errorf("queue declare %s: %w", q, err)
		}
		msgs, err := ch.Consume(q, "", false, false, false, false, nil)
		if err != nil {
			return fmt.Errorf("queue consume %s: %w", q, err)
		}
		open++
		go func(q string, msgs <-chan amqp.Delivery) {
			defer func() { closed <- struct{}{} }()
			for d := range msgs {
				select {
				case merged <- delivery{queue: q, Delivery: d}:
				case <-done:
					return
				}
			}
		}(q, msgs)
	}

	for open > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-closed:
			open--
		case d := <-merged:
			if err := appendEvent(dir, d.queue, d.Body); err != nil {
				log.Printf("event-consumer: handle %s message failed: %v", d.queue, err)
				_ = d.Nack(false, false) // do not requeue; a bad payload would loop forever
				continue
			}
			_ = d.Ack(false)
		}
	}
	return errors.New("deliveries channel closed")
}

func appendEvent(dir, queue string, body []byte) error {
	line, err := FormatEvent(queue, body)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}
	f, err := os.OpenFile(filepath.Join(dir, logFiles[queue]), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}

// FormatEvent renders one event as a single log line ending in a newline.
func FormatEvent(queue string, body []byte) (string, error) {
	switch queue {
	case OtpRequestedQueue:
		var ev OtpRequestedEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			return "", fmt.Errorf("unmarshal: %w", err)
		}
		return fmt.Sprintf("[%s] Verification code | phone=%s | code=%s | handle=%s | expires=%s\n",
			ev.RequestedAt, ev.Phone, ev.Code, ev.Handle, ev.ExpiresAt), nil
	case ListingDecidedQueue:
		var ev ListingDecidedEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			return "", fmt.Errorf("unmarshal: %w", err)
		}
		return fmt.Sprintf("[%s] Listing %s | listing_id=%s | published_id=%s | owner_id=%s | name=%q\n",
			ev.DecidedAt, ev.Status, ev.ListingID, ev.PublishedID, ev.OwnerID, ev.Name), nil
	case InquiryCreatedQueue:
		var ev InquiryCreatedEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			return "", fmt.Errorf("unmarshal: %w", err)
		}
		return fmt.Sprintf("[%s] Booking inquiry | inquiry_id=%s | accommodation_id=%d | account_id=%s | name=%q | phone=%s | move_in=%s\n",
			ev.CreatedAt, ev.InquiryID, ev.AccommodationID, ev.AccountID, ev.Name, ev.Phone, ev.MoveIn), nil
	}
	return "", fmt.Errorf("unknown queue %q", queue)
}
