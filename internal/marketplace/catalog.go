// Package marketplace serves the produce listing catalog and per-user
// favourites.
package marketplace

import (
	"errors"
	"strings"
)

// ErrListingNotFound is returned for unknown listing ids.
var ErrListingNotFound = errors.New("listing not found")

// CategoryAll matches every listing.
const CategoryAll = "All"

// Categories lists the filter chips offered to buyers.
var Categories = []string{CategoryAll, "Vegetables", "Fruits", "Grains", "Cotton", "Spices"}

// Listing is one produce offer.
type Listing struct {
	ID         int     `json:"id"`
	Title      string  `json:"title"`
	Category   string  `json:"category"`
	Farmer     string  `json:"farmer"`
	Location   string  `json:"location"`
	Price      int     `json:"price"`
	Unit       string  `json:"unit"`
	Quantity   string  `json:"quantity"`
	Grade      string  `json:"grade"`
	TrustScore int     `json:"trust_score"`
	Verified   bool    `json:"verified"`
	Rating     float64 `json:"rating"`
	Reviews    int     `json:"reviews"`
}

var listings = []Listing{
	{ID: 1, Title: "Premium Tomatoes", Category: "Vegetables", Farmer: "Ramesh Patel", Location: "Ahmedabad, Gujarat", Price: 45, Unit: "kg", Quantity: "500 kg available", Grade: "A", TrustScore: 94, Verified: true, Rating: 4.8, Reviews: 128},
	{ID: 2, Title: "Organic Cotton", Category: "Cotton", Farmer: "Sunita Sharma", Location: "Rajkot, Gujarat", Price: 120, Unit: "kg", Quantity: "2000 kg available", Grade: "A", TrustScore: 96, Verified: true, Rating: 4.9, Reviews: 256},
	{ID: 3, Title: "Fresh Eggplants", Category: "Vegetables", Farmer: "Vikram Singh", Location: "Surat, Gujarat", Price: 35, Unit: "kg", Quantity: "300 kg available", Grade: "B", TrustScore: 82, Verified: true, Rating: 4.5, Reviews: 67},
	{ID: 4, Title: "Green Chillies", Category: "Spices", Farmer: "Anita Devi", Location: "Vadodara, Gujarat", Price: 60, Unit: "kg", Quantity: "150 kg available", Grade: "A", TrustScore: 91, Verified: true, Rating: 4.7, Reviews: 89},
	{ID: 5, Title: "Red Onions", Category: "Vegetables", Farmer: "Mahesh Kumar", Location: "Bhavnagar, Gujarat", Price: 28, Unit: "kg", Quantity: "1000 kg available", Grade: "B", TrustScore: 78, Verified: false, Rating: 4.3, Reviews: 45},
	{ID: 6, Title: "Fresh Cabbage", Category: "Vegetables", Farmer: "Priya Patel", Location: "Gandhinagar, Gujarat", Price: 25, Unit: "kg", Quantity: "400 kg available", Grade: "A", TrustScore: 89, Verified: true, Rating: 4.6, Reviews: 112},
}

// Filter narrows a search. Zero values match everything.
type Filter struct {
	Category     string
	Query        string
	Grade        string
	VerifiedOnly bool
}

// Catalog is a read-only listing set.
type Catalog struct {
	listings []Listing
}

// NewCatalog returns the built-in catalog.
func NewCatalog() *Catalog {
	return &Catalog{listings: listings}
}

// Get returns the listing with id.
func (c *Catalog) Get(id int) (Listing, error) {
	for _, l := range c.listings {
		if l.ID == id {
			return l, nil
		}
	}
	return Listing{}, ErrListingNotFound
}

// Search returns the listings matching f in catalog order.
func (c *Catalog) Search(f Filter) []Listing {
	query := strings.ToLower(strings.TrimSpace(f.Query))
	out := make([]Listing, 0, len(c.listings))
	for _, l := range c.listings {
		if f.Category != "" && !strings.EqualFold(f.Category, CategoryAll) && !strings.EqualFold(f.Category, l.Category) {
			continue
		}
		if f.Grade != "" && !strings.EqualFold(f.Grade, l.Grade) {
			continue
		}
		if f.VerifiedOnly && !l.Verified {
			continue
		}
		if query != "" && !matches(l, query) {
			continue
		}
		out = append(out, l)
	}
	return out
}

func matches(l Listing, query string) bool {
	for _, field := range []string{l.Title, l.Farmer, l.Location} {
		if strings.Contains(strings.ToLower(field), query) {
			return true
		}
	}
	return false
}
