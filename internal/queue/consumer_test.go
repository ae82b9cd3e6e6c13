package queue

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestFormatEvent(t *testing.T) {
	body, _ := json.Marshal(InquiryCreatedEvent{
		InquiryID: "i-1", AccommodationID: 3, AccountID: "a-1",
		Name: "Meera", Phone: "+919812345678", MoveIn: "2024-07-15", CreatedAt: "2024-07-01T10:00:00Z",
	})
	line, err := FormatEvent(InquiryCreatedQueue, body)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"inquiry_id=i-1", "accommodation_id=3", `name="Meera"`, "move_in=2024-07-15"} {
		if !strings.Contains(line, want) {
			t.Errorf("line %q missing %q", line, want)
		}
	}
	if !strings.HasSuffix(line, "\n") {
		t.Error("line must end with a newline")
	}

	if _, err := FormatEvent(OtpRequestedQueue, []byte("{")); err == nil {
		t.Error("malformed body accepted")
	}
	if _, err := FormatEvent("nope", body); err == nil {
		t.Error("unknown queue accepted")
	}
}

func TestAppendEventWritesPerQueueFile(t *testing.T) {
	dir := t.TempDir()
	body, _ := json.Marshal(ListingDecidedEvent{ListingID: "l-1", Status: "approved", DecidedAt: "now"})
	for i := 0; i < 2; i++ {
		if err := appendEvent(dir, ListingDecidedQueue, body); err != nil {
			t.Fatal(err)
		}
	}
	raw, err := os.ReadFile(filepath.Join(dir, "listings.log"))
	if err != nil {
		t.Fatal(err)
	}
	if n := strings.Count(string(raw), "listing_id=l-1"); n != 2 {
		t.Fatalf("found %d lines, want 2", n)
	}
}
