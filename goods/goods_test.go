package goods

import "testing"

func TestCategory_Class(t *testing.T) {
	tests := []struct {
		name     string
		cat      Category
		class    Class
		traveler bool
	}{
		{"passengers", CategoryPassengers, ClassPassengers, true},
		{"mail", CategoryMail, ClassMail, true},
		{"piece goods", CategoryPiece, ClassFreight, false},
		{"bulk", Category(5), ClassFreight, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cat.Class(); got != tt.class {
				t.Errorf("expected class %d, got %d", tt.class, got)
			}
			if got := tt.cat.IsTraveller(); got != tt.traveler {
				t.Errorf("expected traveller %v, got %v", tt.traveler, got)
			}
		})
	}
}

func TestCategorySet_EachAscending(t *testing.T) {
	s := NewCategorySet(CategoryPiece, CategoryPassengers, Category(7))
	var got []Category
	s.Each(func(c Category) { got = append(got, c) })
	want := []Category{CategoryPassengers, CategoryPiece, Category(7)}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("index %d: expected %v, got %v", i, want[i], got[i])
		}
	}
	if s.Has(CategoryMail) {
		t.Error("mail should not be in the set")
	}
}

func TestCatalog(t *testing.T) {
	c := NewCatalog()
	coal := c.Add("coal", Category(3))
	if coal.ID != 2 {
		t.Errorf("expected first freight id 2, got %d", coal.ID)
	}
	got, ok := c.Lookup(coal.ID)
	if !ok || got != coal {
		t.Errorf("lookup mismatch: %v", got)
	}
	if _, ok := c.ByName("mail"); !ok {
		t.Error("mail must be predefined")
	}
	if _, ok := c.Lookup(99); ok {
		t.Error("unknown id should not resolve")
	}
}

func TestParseCategory(t *testing.T) {
	if c, err := ParseCategory("pax"); err != nil || c != CategoryPassengers {
		t.Errorf("pax: %v %v", c, err)
	}
	if c, err := ParseCategory("4"); err != nil || c != Category(4) {
		t.Errorf("4: %v %v", c, err)
	}
	if _, err := ParseCategory("99"); err == nil {
		t.Error("99 should be rejected")
	}
	if _, err := ParseCategory("coal"); err == nil {
		t.Error("names other than pax/mail should be rejected")
	}
}
