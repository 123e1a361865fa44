package marketplace

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

func ids(listings []Listing) []int {
	out := make([]int, 0, len(listings))
	for _, l := range listings {
		out = append(out, l.ID)
	}
	return out
}

func TestSearch(t *testing.T) {
	c := NewCatalog()
	cases := []struct {
		name   string
		filter Filter
		want   []int
	}{
		{"everything", Filter{}, []int{1, 2, 3, 4, 5, 6}},
		{"all category", Filter{Category: "All"}, []int{1, 2, 3, 4, 5, 6}},
		{"vegetables", Filter{Category: "vegetables"}, []int{1, 3, 5, 6}},
		{"empty category", Filter{Category: "Grains"}, []int{}},
		{"title query", Filter{Query: "  fresh "}, []int{3, 6}},
		{"farmer query", Filter{Query: "patel"}, []int{1, 6}},
		{"location query", Filter{Query: "Surat"}, []int{3}},
		{"grade", Filter{Grade: "b"}, []int{3, 5}},
		{"verified vegetables grade b", Filter{Category: "Vegetables", Grade: "B", VerifiedOnly: true}, []int{3}},
	}
	for _, tc := range cases {
		if got := ids(c.Search(tc.filter)); !reflect.DeepEqual(got, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, got)
		}
	}
}

func TestGet(t *testing.T) {
	c := NewCatalog()
	l, err := c.Get(2)
	if err != nil || l.Title != "Organic Cotton" {
		t.Fatalf("unexpected listing %+v (%v)", l, err)
	}
	if _, err := c.Get(99); !errors.Is(err, ErrListingNotFound) {
		t.Fatalf("expected ErrListingNotFound, got %v", err)
	}
}

func TestMemoryFavoritesToggle(t *testing.T) {
	ctx := context.Background()
	f := NewMemoryFavorites()

	for _, id := range []int{4, 1} {
		starred, err := f.Toggle(ctx, "buyer-1", id)
		if err != nil || !starred {
			t.Fatalf("expected %d to be starred, got %v (%v)", id, starred, err)
		}
	}
	starred, err := f.Toggle(ctx, "buyer-1", 4)
	if err != nil || starred {
		t.Fatalf("expected second toggle to unstar, got %v (%v)", starred, err)
	}

	got, _ := f.List(ctx, "buyer-1")
	if !reflect.DeepEqual(got, []int{1}) {
		t.Fatalf("unexpected favourites: %v", got)
	}
	other, _ := f.List(ctx, "buyer-2")
	if len(other) != 0 {
		t.Fatalf("favourites leaked across users: %v", other)
	}
}
