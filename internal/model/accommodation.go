package model

import "fmt"

// AccommodationType is the kind of property: a hostel or a paying-guest house.
type AccommodationType string

const (
	TypeHostel AccommodationType = "hostel"
	TypePG     AccommodationType = "pg"
)

// Valid reports whether t is a known type.
func (t AccommodationType) Valid() bool { return t == TypeHostel || t == TypePG }

// Gender is the occupancy policy of an accommodation.
type Gender string

const (
	GenderBoys  Gender = "boys"
	GenderGirls Gender = "girls"
	GenderCoed  Gender = "co-ed"
)

// Valid reports whether g is a known gender policy.
func (g Gender) Valid() bool { return g == GenderBoys || g == GenderGirls || g == GenderCoed }

// OtherCollege is the distance key used for any college without its own entry.
const OtherCollege = "Other"

// Accommodation is one read-only catalog entry.
//
// Amenities keep their source order because list views show only the first
// few. Images may contain empty placeholders; use DisplayImages before
// rendering.
type Accommodation struct {
	ID          int                `json:"id"`
	Name        string             `json:"name"`
	Type        AccommodationType  `json:"type"`
	Gender      Gender             `json:"gender"`
	Price       int                `json:"price"`
	Address     string             `json:"address"`
	Phone       string             `json:"phone,omitempty"`
	Distance    map[string]float64 `json:"distance"`
	Amenities   []string           `json:"amenities"`
	Images      []string           `json:"images"`
	Description string             `json:"description,omitempty"`
	Rating      float64            `json:"rating,omitempty"`
}

// Validate checks the invariants every catalog entry must satisfy.
func (a Accommodation) Validate() error {
	if a.ID <= 0 {
		return fmt.Errorf("accommodation %q: id must be positive", a.Name)
	}
	if !a.Type.Valid() {
		return fmt.Errorf("accommodation %d: unknown type %q", a.ID, a.Type)
	}
	if !a.Gender.Valid() {
		return fmt.Errorf("accommodation %d: unknown gender %q", a.ID, a.Gender)
	}
	if a.Price <= 0 {
		return fmt.Errorf("accommodation %d: price must be positive", a.ID)
	}
	if _, ok := a.Distance[OtherCollege]; !ok {
		return fmt.Errorf("accommodation %d: distance map lacks %q", a.ID, OtherCollege)
	}
	return nil
}

// DistanceTo returns the distance in kilometres from college, falling back to
// the "Other" entry when the college is not listed.
func (a Accommodation) DistanceTo(college string) float64 {
	if d, ok := a.Distance[college]; ok {
		return d
	}
	return a.Distance[OtherCollege]
}

// DisplayImages returns the non-empty image references in order.
func (a Accommodation) DisplayImages() []string {
	out := make([]string, 0, len(a.Images))
	for _, img := range a.Images {
		if img != "" {
			out = append(out, img)
		}
	}
	return out
}

// TopAmenities returns at most n amenities in source order.
func (a Accommodation) TopAmenities(n int) []string {
	if n < 0 || n >= len(a.Amenities) {
		return a.Amenities
	}
	return a.Amenities[:n]
}
