package domain

import "time"

// ListingID is the backend's opaque numeric listing identifier.
type ListingID uint64

type ListingStatus string

const (
	StatusPending  ListingStatus = "pending"
	StatusApproved ListingStatus = "approved"
	StatusRejected ListingStatus = "rejected"
)

type AnimalCategory string

const (
	CategoryCat         AnimalCategory = "cat"
	CategoryCow         AnimalCategory = "cow"
	CategoryDog         AnimalCategory = "dog"
	CategoryOther       AnimalCategory = "other"
	CategoryBird        AnimalCategory = "bird"
	CategoryFish        AnimalCategory = "fish"
	CategoryGoat        AnimalCategory = "goat"
	CategorySheep       AnimalCategory = "sheep"
	CategoryReptile     AnimalCategory = "reptile"
	CategoryBuffalo     AnimalCategory = "buffalo"
	CategorySmallAnimal AnimalCategory = "smallAnimal"
)

// Categories lists every category in the order the browse page offers them.
var Categories = []AnimalCategory{
	CategoryCow, CategoryBuffalo, CategoryGoat, CategorySheep,
	CategoryDog, CategoryCat, CategoryBird, CategoryFish,
	CategoryReptile, CategorySmallAnimal, CategoryOther,
}

func (c AnimalCategory) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

type Listing struct {
	ID          ListingID      `json:"id"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Price       int64          `json:"price"`
	Category    AnimalCategory `json:"category"`
	Location    string         `json:"location"`
	PhotoURLs   []string       `json:"photo_urls"`
	Owner       Principal      `json:"owner"`
	IsActive    bool           `json:"is_active"`
	IsVip       bool           `json:"is_vip"`
	Status      ListingStatus  `json:"status"`
	Timestamp   time.Time      `json:"timestamp"`
}

// PubliclyVisible reports whether the listing may appear in public browse views.
func (l Listing) PubliclyVisible() bool {
	return l.IsActive && l.Status == StatusApproved
}

// NewListing carries the fields of a createListing call.
type NewListing struct {
	Title       string
	Description string
	Price       int64
	Category    AnimalCategory
	Location    string
	PhotoURLs   []string
	IsVip       bool
}

// ListingUpdate carries the fields of an updateListing call. The backend
// replaces every field, so callers send the full listing state.
type ListingUpdate struct {
	Title       string
	Description string
	Price       int64
	Category    AnimalCategory
	Location    string
	PhotoURLs   []string
	IsActive    bool
	IsVip       bool
}
