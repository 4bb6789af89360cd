package dashboard

import (
	"context"
	"fmt"
	"sort"

	"github.com/pashumandi/mandi-gateway/internal/domain"
	"github.com/pashumandi/mandi-gateway/internal/query"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ErrAccessDenied is reported in place of rows when a section's read failed.
const ErrAccessDenied = "access_denied"

type Source interface {
	MyListings(ctx context.Context) (query.Result[[]domain.Listing], error)
	PendingListings(ctx context.Context) (query.Result[[]domain.Listing], error)
	AllListingsAdmin(ctx context.Context) (query.Result[[]domain.Listing], error)
	AllMobileNumbers(ctx context.Context) (query.Result[[]domain.MobileNumberEntry], error)
	AllUsersWithActivity(ctx context.Context) (query.Result[[]domain.UserActivity], error)
	TotalListingsCount(ctx context.Context) (query.Result[uint64], error)
	PendingListingsCount(ctx context.Context) (query.Result[uint64], error)
	ApprovedListingsCount(ctx context.Context) (query.Result[uint64], error)
	TotalUsersCount(ctx context.Context) (query.Result[uint64], error)
	TotalLoginsCount(ctx context.Context) (query.Result[uint64], error)
}

type Stats struct {
	TotalListings    uint64 `json:"total_listings"`
	PendingListings  uint64 `json:"pending_listings"`
	ApprovedListings uint64 `json:"approved_listings"`
	TotalUsers       uint64 `json:"total_users"`
	TotalLogins      uint64 `json:"total_logins"`
}

type RegisteredUser struct {
	Index        int              `json:"index"`
	Principal    domain.Principal `json:"principal"`
	MobileNumber string           `json:"mobile_number"`
}

type Section struct {
	Title     string   `json:"title"`
	Dataset   Dataset  `json:"dataset"`
	Columns   []string `json:"columns"`
	Actions   []Action `json:"actions"`
	Rows      any      `json:"rows"`
	Count     int      `json:"count"`
	IsLoading bool     `json:"is_loading"`
	Error     string   `json:"error,omitempty"`
}

type Page struct {
	Name     string    `json:"name"`
	Title    string    `json:"title"`
	Sections []Section `json:"sections"`
}

type Service struct {
	source Source
	logger *zap.Logger
}

func NewService(source Source, logger *zap.Logger) *Service {
	return &Service{source: source, logger: logger.Named("DashboardService")}
}

// Render builds every section of the named view concurrently. Access is the
// caller's concern; the backend still rejects privileged reads it disallows,
// which shows up as an access_denied section.
func (s *Service) Render(ctx context.Context, name string) (Page, error) {
	v, ok := Lookup(name)
	if !ok {
		return Page{}, fmt.Errorf("DashboardService.Render %q: %w", name, domain.ErrNotFound)
	}
	page := Page{Name: v.Name, Title: v.Title, Sections: make([]Section, len(v.Sections))}

	g, gctx := errgroup.WithContext(ctx)
	for i, spec := range v.Sections {
		g.Go(func() error {
			sec, err := s.section(gctx, spec)
			if err != nil {
				return err
			}
			page.Sections[i] = sec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Page{}, fmt.Errorf("DashboardService.Render %q: %w", name, err)
	}
	return page, nil
}

func (s *Service) section(ctx context.Context, spec SectionSpec) (Section, error) {
	sec := Section{
		Title:   spec.Title,
		Dataset: spec.Dataset,
		Columns: spec.Columns,
		Actions: spec.Actions,
	}
	if sec.Actions == nil {
		sec.Actions = []Action{}
	}

	var (
		loading, failed bool
		err             error
	)
	switch spec.Dataset {
	case DatasetStats:
		var st Stats
		st, loading, failed, err = s.stats(ctx)
		sec.Rows = st
		sec.Count = 5
	case DatasetMyListings, DatasetPendingListings, DatasetAllListings:
		var res query.Result[[]domain.Listing]
		res, err = s.listings(ctx, spec.Dataset)
		loading, failed = res.IsLoading, res.IsError
		rows := SortListings(res.Data, spec.PendingFirst)
		sec.Rows, sec.Count = rows, len(rows)
	case DatasetRegisteredUsers:
		var res query.Result[[]domain.MobileNumberEntry]
		res, err = s.source.AllMobileNumbers(ctx)
		loading, failed = res.IsLoading, res.IsError
		rows := RegisteredUsers(res.Data)
		sec.Rows, sec.Count = rows, len(rows)
	case DatasetUserActivity:
		var res query.Result[[]domain.UserActivity]
		res, err = s.source.AllUsersWithActivity(ctx)
		loading, failed = res.IsLoading, res.IsError
		rows := append([]domain.UserActivity{}, res.Data...)
		sort.SliceStable(rows, func(i, j int) bool { return rows[i].LastLogin.After(rows[j].LastLogin) })
		sec.Rows, sec.Count = rows, len(rows)
	default:
		return Section{}, fmt.Errorf("unknown dataset %q", spec.Dataset)
	}
	if err != nil {
		return Section{}, err
	}

	sec.IsLoading = loading
	if failed {
		s.logger.Debug("Section read rejected", zap.String("dataset", string(spec.Dataset)))
		sec.Error = ErrAccessDenied
		sec.Rows = []struct{}{}
		sec.Count = 0
	}
	return sec, nil
}

func (s *Service) listings(ctx context.Context, d Dataset) (query.Result[[]domain.Listing], error) {
	switch d {
	case DatasetMyListings:
		return s.source.MyListings(ctx)
	case DatasetPendingListings:
		return s.source.PendingListings(ctx)
	default:
		return s.source.AllListingsAdmin(ctx)
	}
}

func (s *Service) stats(ctx context.Context) (st Stats, loading, failed bool, err error) {
	reads := []struct {
		dst  *uint64
		read func(context.Context) (query.Result[uint64], error)
	}{
		{&st.TotalListings, s.source.TotalListingsCount},
		{&st.PendingListings, s.source.PendingListingsCount},
		{&st.ApprovedListings, s.source.ApprovedListingsCount},
		{&st.TotalUsers, s.source.TotalUsersCount},
		{&st.TotalLogins, s.source.TotalLoginsCount},
	}
	for _, r := range reads {
		res, rerr := r.read(ctx)
		if rerr != nil {
			return Stats{}, false, false, rerr
		}
		*r.dst = res.Data
		loading = loading || res.IsLoading
		failed = failed || res.IsError
	}
	return st, loading, failed, nil
}

// SortListings returns a newest-first copy; with pendingFirst, pending
// listings lead.
func SortListings(in []domain.Listing, pendingFirst bool) []domain.Listing {
	out := append([]domain.Listing{}, in...)
	sort.SliceStable(out, func(i, j int) bool {
		if pendingFirst {
			pi, pj := out[i].Status == domain.StatusPending, out[j].Status == domain.StatusPending
			if pi != pj {
				return pi
			}
		}
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out
}

// RegisteredUsers orders entries by principal and numbers them from 1.
func RegisteredUsers(in []domain.MobileNumberEntry) []RegisteredUser {
	sorted := append([]domain.MobileNumberEntry{}, in...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Principal < sorted[j].Principal })
	out := make([]RegisteredUser, len(sorted))
	for i, e := range sorted {
		out[i] = RegisteredUser{Index: i + 1, Principal: e.Principal, MobileNumber: e.MobileNumber}
	}
	return out
}
