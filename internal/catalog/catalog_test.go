package catalog

import (
	"testing"

	"github.com/iliyamo/student-stay/internal/model"
)

func TestDefaultCatalogIsValid(t *testing.T) {
	c, err := Default()
	if err != nil {
		t.Fatalf("embedded catalog: %v", err)
	}
	if c.Len() == 0 {
		t.Fatal("embedded catalog is empty")
	}
	for _, a := range c.All() {
		if _, ok := a.Distance[model.OtherCollege]; !ok {
			t.Fatalf("entry %d lacks the Other distance", a.ID)
		}
	}
}

func TestNewRejectsDuplicates(t *testing.T) {
	a := model.Accommodation{ID: 1, Type: model.TypePG, Gender: model.GenderBoys, Price: 1,
		Distance: map[string]float64{model.OtherCollege: 1}}
	if _, err := New([]model.Accommodation{a, a}); err == nil {
		t.Fatal("expected duplicate id error")
	}
}

func TestSubsetKeepsCatalogOrder(t *testing.T) {
	c, err := Default()
	if err != nil {
		t.Fatal(err)
	}
	got := c.Subset([]int{5, 1, 999, 3})
	if len(got) != 3 || got[0].ID != 1 || got[1].ID != 3 || got[2].ID != 5 {
		ids := make([]int, len(got))
		for i, a := range got {
			ids[i] = a.ID
		}
		t.Fatalf("Subset ids = %v, want [1 3 5]", ids)
	}
}

func TestCollegesExcludesOther(t *testing.T) {
	c, err := Default()
	if err != nil {
		t.Fatal(err)
	}
	for _, name := range c.Colleges() {
		if name == model.OtherCollege {
			t.Fatal("Colleges must not list the fallback key")
		}
	}
}
