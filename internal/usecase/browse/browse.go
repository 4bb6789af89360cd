// Package browse filters the public listing feed.
package browse

import (
	"context"
	"strings"

	"github.com/pashumandi/mandi-gateway/internal/domain"
	"github.com/pashumandi/mandi-gateway/internal/query"
)

// AllCategories disables the category predicate, as does an empty category.
const AllCategories = "all"

type Filter struct {
	Query    string `json:"q"`
	Category string `json:"category"`
	Location string `json:"location"`
}

func (f Filter) normalized() Filter {
	f.Query = strings.TrimSpace(f.Query)
	f.Location = strings.TrimSpace(f.Location)
	f.Category = strings.TrimSpace(f.Category)
	if strings.EqualFold(f.Category, AllCategories) {
		f.Category = ""
	}
	if strings.EqualFold(f.Location, AllLocations) {
		f.Location = ""
	}
	return f
}

func (f Filter) HasFilters() bool {
	n := f.normalized()
	return n.Query != "" || n.Category != "" || n.Location != ""
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}

// Matches applies every predicate; only publicly visible listings can match.
func (f Filter) Matches(l domain.Listing) bool {
	if !l.PubliclyVisible() {
		return false
	}
	n := f.normalized()
	if n.Query != "" && !containsFold(l.Title, n.Query) && !containsFold(l.Description, n.Query) {
		return false
	}
	if n.Category != "" && string(l.Category) != n.Category {
		return false
	}
	if n.Location != "" && !containsFold(l.Location, n.Location) {
		return false
	}
	return true
}

type Result struct {
	Listings   []domain.Listing        `json:"listings"`
	Featured   []domain.Listing        `json:"featured"`
	Total      int                     `json:"total"`
	HasFilters bool                    `json:"has_filters"`
	Categories []domain.AnimalCategory `json:"categories"`
	IsLoading  bool                    `json:"is_loading"`
	IsError    bool                    `json:"is_error"`
}

// Apply filters listings in their given order. Featured VIP listings are only
// offered on the unfiltered feed.
func Apply(listings []domain.Listing, f Filter) Result {
	res := Result{
		Listings:   make([]domain.Listing, 0, len(listings)),
		Featured:   []domain.Listing{},
		HasFilters: f.HasFilters(),
		Categories: domain.Categories,
	}
	for _, l := range listings {
		if !f.Matches(l) {
			continue
		}
		res.Listings = append(res.Listings, l)
		if !res.HasFilters && l.IsVip {
			res.Featured = append(res.Featured, l)
		}
	}
	res.Total = len(res.Listings)
	return res
}

type ListingSource interface {
	Listings(ctx context.Context) (query.Result[[]domain.Listing], error)
}

type Service struct {
	source ListingSource
}

func NewService(source ListingSource) *Service {
	return &Service{source: source}
}

func (s *Service) Browse(ctx context.Context, f Filter) (Result, error) {
	feed, err := s.source.Listings(ctx)
	if err != nil {
		return Result{}, err
	}
	res := Apply(feed.Data, f)
	res.IsLoading = feed.IsLoading
	res.IsError = feed.IsError
	return res, nil
}
