// Package backendtest provides an in-memory marketplace backend for tests.
// It authorises calls the way the real backend does: by the caller carried
// in the request context.
package backendtest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pashumandi/mandi-gateway/internal/domain"
	"github.com/pashumandi/mandi-gateway/internal/identity"
	"github.com/pashumandi/mandi-gateway/internal/port/backend"
)

type Fake struct {
	mu        sync.Mutex
	listings  []domain.Listing
	nextID    domain.ListingID
	profiles  map[domain.Principal]*domain.UserProfile
	messages  []domain.Message
	admins    map[domain.Principal]bool
	logins    uint64
	calls     map[string]int
	failures  map[string]error
	clock     time.Time
	readyCh   chan struct{}
	readyOnce sync.Once
}

var (
	_ backend.Backend   = (*Fake)(nil)
	_ backend.Readiness = (*Fake)(nil)
)

// New returns a ready fake whose clock starts at start and advances one
// second per write.
func New(start time.Time, admins ...domain.Principal) *Fake {
	f := newFake(start, admins)
	f.SetReady()
	return f
}

// NotReady returns a fake whose readiness signal has not fired.
func NotReady(start time.Time, admins ...domain.Principal) *Fake {
	return newFake(start, admins)
}

func newFake(start time.Time, admins []domain.Principal) *Fake {
	f := &Fake{
		nextID:   1,
		profiles: make(map[domain.Principal]*domain.UserProfile),
		admins:   make(map[domain.Principal]bool),
		calls:    make(map[string]int),
		failures: make(map[string]error),
		clock:    start,
		readyCh:  make(chan struct{}),
	}
	for _, a := range admins {
		f.admins[a] = true
	}
	return f
}

func (f *Fake) Ready() <-chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.readyCh
}

func (f *Fake) SetReady() {
	f.mu.Lock()
	ch := f.readyCh
	f.mu.Unlock()
	f.readyOnce.Do(func() { close(ch) })
}

// Calls reports how many times method reached the fake.
func (f *Fake) Calls(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

// FailNext makes the next call of method return err.
func (f *Fake) FailNext(method string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[method] = err
}

// Seed stores listings as-is, assigning ids to those without one.
func (f *Fake) Seed(ls ...domain.Listing) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, l := range ls {
		if l.ID == 0 {
			l.ID = f.nextID
		}
		if l.ID >= f.nextID {
			f.nextID = l.ID + 1
		}
		if l.PhotoURLs == nil {
			l.PhotoURLs = []string{}
		}
		f.listings = append(f.listings, l)
	}
}

func (f *Fake) SeedProfile(p domain.Principal, profile domain.UserProfile) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := profile
	f.profiles[p] = &cp
}

// enter records the call and returns the caller plus any injected failure.
func (f *Fake) enter(ctx context.Context, method string) (domain.Principal, error) {
	f.calls[method]++
	if err, ok := f.failures[method]; ok {
		delete(f.failures, method)
		return "", err
	}
	return identity.CallerFrom(ctx), nil
}

func (f *Fake) tick() time.Time {
	f.clock = f.clock.Add(time.Second)
	return f.clock
}

func (f *Fake) requireCaller(ctx context.Context, method string) (domain.Principal, error) {
	caller, err := f.enter(ctx, method)
	if err != nil {
		return "", err
	}
	if caller == "" {
		return "", fmt.Errorf("%s: %w", method, domain.ErrUnauthenticated)
	}
	return caller, nil
}

func (f *Fake) requireAdmin(ctx context.Context, method string) error {
	caller, err := f.requireCaller(ctx, method)
	if err != nil {
		return err
	}
	if !f.admins[caller] {
		return fmt.Errorf("%s: %w", method, domain.ErrForbidden)
	}
	return nil
}

func copyListings(in []domain.Listing, keep func(domain.Listing) bool) []domain.Listing {
	out := make([]domain.Listing, 0, len(in))
	for _, l := range in {
		if keep(l) {
			l.PhotoURLs = append([]string{}, l.PhotoURLs...)
			out = append(out, l)
		}
	}
	return out
}

func (f *Fake) index(id domain.ListingID) int {
	for i := range f.listings {
		if f.listings[i].ID == id {
			return i
		}
	}
	return -1
}

func (f *Fake) GetListings(ctx context.Context) ([]domain.Listing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, err := f.enter(ctx, "getListings"); err != nil {
		return nil, err
	}
	return copyListings(f.listings, domain.Listing.PubliclyVisible), nil
}

func (f *Fake) GetAllListings(ctx context.Context) ([]domain.Listing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, err := f.enter(ctx, "getAllListings"); err != nil {
		return nil, err
	}
	return copyListings(f.listings, func(domain.Listing) bool { return true }), nil
}

func (f *Fake) GetListing(ctx context.Context, id domain.ListingID) (*domain.Listing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, err := f.enter(ctx, "getListing"); err != nil {
		return nil, err
	}
	i := f.index(id)
	if i < 0 {
		return nil, nil
	}
	l := copyListings(f.listings[i:i+1], func(domain.Listing) bool { return true })[0]
	return &l, nil
}

func (f *Fake) GetPendingListings(ctx context.Context) ([]domain.Listing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.requireAdmin(ctx, "getPendingListings"); err != nil {
		return nil, err
	}
	return copyListings(f.listings, func(l domain.Listing) bool { return l.Status == domain.StatusPending }), nil
}

func (f *Fake) GetAllListingsAdmin(ctx context.Context) ([]domain.Listing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.requireAdmin(ctx, "getAllListingsAdmin"); err != nil {
		return nil, err
	}
	return copyListings(f.listings, func(domain.Listing) bool { return true }), nil
}

func (f *Fake) CreateListing(ctx context.Context, in domain.NewListing) (domain.ListingID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	caller, err := f.requireCaller(ctx, "createListing")
	if err != nil {
		return 0, err
	}
	id := f.nextID
	f.nextID++
	f.listings = append(f.listings, domain.Listing{
		ID:          id,
		Title:       in.Title,
		Description: in.Description,
		Price:       in.Price,
		Category:    in.Category,
		Location:    in.Location,
		PhotoURLs:   append([]string{}, in.PhotoURLs...),
		Owner:       caller,
		IsActive:    true,
		IsVip:       in.IsVip,
		Status:      domain.StatusPending,
		Timestamp:   f.tick(),
	})
	return id, nil
}

func (f *Fake) ownedIndex(ctx context.Context, method string, id domain.ListingID) (int, error) {
	caller, err := f.requireCaller(ctx, method)
	if err != nil {
		return -1, err
	}
	i := f.index(id)
	if i < 0 {
		return -1, fmt.Errorf("%s: %w", method, domain.ErrNotFound)
	}
	if f.listings[i].Owner != caller {
		return -1, fmt.Errorf("%s: %w", method, domain.ErrForbidden)
	}
	return i, nil
}

func (f *Fake) UpdateListing(ctx context.Context, id domain.ListingID, in domain.ListingUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	i, err := f.ownedIndex(ctx, "updateListing", id)
	if err != nil {
		return err
	}
	l := &f.listings[i]
	l.Title, l.Description, l.Price = in.Title, in.Description, in.Price
	l.Category, l.Location = in.Category, in.Location
	l.PhotoURLs = append([]string{}, in.PhotoURLs...)
	l.IsActive, l.IsVip = in.IsActive, in.IsVip
	return nil
}

func (f *Fake) DeleteListing(ctx context.Context, id domain.ListingID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	i, err := f.ownedIndex(ctx, "deleteListing", id)
	if err != nil {
		return err
	}
	f.listings = append(f.listings[:i], f.listings[i+1:]...)
	return nil
}

func (f *Fake) moderate(ctx context.Context, method string, id domain.ListingID, apply func(i int)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.requireAdmin(ctx, method); err != nil {
		return err
	}
	i := f.index(id)
	if i < 0 {
		return fmt.Errorf("%s: %w", method, domain.ErrNotFound)
	}
	apply(i)
	return nil
}

func (f *Fake) DeleteListingAdmin(ctx context.Context, id domain.ListingID) error {
	return f.moderate(ctx, "deleteListingAdmin", id, func(i int) {
		f.listings = append(f.listings[:i], f.listings[i+1:]...)
	})
}

func (f *Fake) ApproveListing(ctx context.Context, id domain.ListingID) error {
	return f.moderate(ctx, "approveListing", id, func(i int) { f.listings[i].Status = domain.StatusApproved })
}

func (f *Fake) RejectListing(ctx context.Context, id domain.ListingID) error {
	return f.moderate(ctx, "rejectListing", id, func(i int) { f.listings[i].Status = domain.StatusRejected })
}

func (f *Fake) callerProfile(ctx context.Context, method string) (*domain.UserProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	caller, err := f.enter(ctx, method)
	if err != nil {
		return nil, err
	}
	p, ok := f.profiles[caller]
	if !ok || caller == "" {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (f *Fake) GetCallerUserProfile(ctx context.Context) (*domain.UserProfile, error) {
	return f.callerProfile(ctx, "getCallerUserProfile")
}

func (f *Fake) GetMyProfile(ctx context.Context) (*domain.UserProfile, error) {
	return f.callerProfile(ctx, "getMyProfile")
}

func (f *Fake) GetProfile(ctx context.Context, p domain.Principal) (*domain.PublicUserProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, err := f.enter(ctx, "getProfile"); err != nil {
		return nil, err
	}
	prof, ok := f.profiles[p]
	if !ok {
		return nil, nil
	}
	return &domain.PublicUserProfile{
		DisplayName:           prof.DisplayName,
		Bio:                   prof.Bio,
		RegistrationTimestamp: prof.RegistrationTimestamp,
	}, nil
}

func (f *Fake) profileFor(caller domain.Principal) *domain.UserProfile {
	p, ok := f.profiles[caller]
	if !ok {
		p = &domain.UserProfile{RegistrationTimestamp: f.tick()}
		f.profiles[caller] = p
	}
	return p
}

func (f *Fake) SaveCallerUserProfile(ctx context.Context, in domain.ProfileInput) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	caller, err := f.requireCaller(ctx, "saveCallerUserProfile")
	if err != nil {
		return err
	}
	p := f.profileFor(caller)
	p.DisplayName, p.Bio, p.ContactInfo, p.MobileNumber = in.DisplayName, in.Bio, in.ContactInfo, in.MobileNumber
	return nil
}

func (f *Fake) UpsertProfile(ctx context.Context, displayName, bio string, contactInfo *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	caller, err := f.requireCaller(ctx, "upsertProfile")
	if err != nil {
		return err
	}
	p := f.profileFor(caller)
	p.DisplayName, p.Bio, p.ContactInfo = displayName, bio, contactInfo
	return nil
}

func (f *Fake) SignUp(ctx context.Context, displayName, mobileNumber string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	caller, err := f.requireCaller(ctx, "signUp")
	if err != nil {
		return err
	}
	p := f.profileFor(caller)
	m := mobileNumber
	now := f.clock
	p.DisplayName, p.MobileNumber, p.LastLoginTime = displayName, &m, &now
	f.logins++
	return nil
}

func (f *Fake) GetMobileNumber(ctx context.Context) (*string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	caller, err := f.requireCaller(ctx, "getMobileNumber")
	if err != nil {
		return nil, err
	}
	if p, ok := f.profiles[caller]; ok && p.MobileNumber != nil {
		m := *p.MobileNumber
		return &m, nil
	}
	return nil, nil
}

func (f *Fake) GetConversation(ctx context.Context, other domain.Principal) ([]domain.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	caller, err := f.requireCaller(ctx, "getConversation")
	if err != nil {
		return nil, err
	}
	out := make([]domain.Message, 0)
	for _, m := range f.messages {
		if (m.Sender == caller && m.Recipient == other) || (m.Sender == other && m.Recipient == caller) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *Fake) ListConversations(ctx context.Context) ([]domain.Principal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	caller, err := f.requireCaller(ctx, "listConversations")
	if err != nil {
		return nil, err
	}
	seen := make(map[domain.Principal]bool)
	out := make([]domain.Principal, 0)
	for _, m := range f.messages {
		if m.Sender != caller && m.Recipient != caller {
			continue
		}
		other := m.Counterparty(caller)
		if !seen[other] {
			seen[other] = true
			out = append(out, other)
		}
	}
	return out, nil
}

func (f *Fake) SendMessage(ctx context.Context, recipient domain.Principal, listingID *domain.ListingID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	caller, err := f.requireCaller(ctx, "sendMessage")
	if err != nil {
		return err
	}
	m := domain.Message{Sender: caller, Recipient: recipient, Text: text, Timestamp: f.tick()}
	if listingID != nil {
		id := *listingID
		m.ListingID = &id
	}
	f.messages = append(f.messages, m)
	return nil
}

// SeedMessage stores a message with an explicit timestamp.
func (f *Fake) SeedMessage(m domain.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, m)
}

func (f *Fake) IsCallerAdmin(ctx context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	caller, err := f.enter(ctx, "isCallerAdmin")
	if err != nil {
		return false, err
	}
	return f.admins[caller], nil
}

func (f *Fake) GetAllMobileNumbers(ctx context.Context) ([]domain.MobileNumberEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.requireAdmin(ctx, "getAllMobileNumbers"); err != nil {
		return nil, err
	}
	out := make([]domain.MobileNumberEntry, 0)
	for p, prof := range f.profiles {
		if prof.MobileNumber != nil {
			out = append(out, domain.MobileNumberEntry{Principal: p, MobileNumber: *prof.MobileNumber})
		}
	}
	return out, nil
}

func (f *Fake) GetAllUsersWithActivity(ctx context.Context) ([]domain.UserActivity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.requireAdmin(ctx, "getAllUsersWithActivity"); err != nil {
		return nil, err
	}
	out := make([]domain.UserActivity, 0)
	for p, prof := range f.profiles {
		a := domain.UserActivity{Principal: p, DisplayName: prof.DisplayName}
		if prof.LastLoginTime != nil {
			a.LastLogin = *prof.LastLoginTime
		}
		out = append(out, a)
	}
	return out, nil
}

func (f *Fake) countListings(ctx context.Context, method string, keep func(domain.Listing) bool) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, err := f.enter(ctx, method); err != nil {
		return 0, err
	}
	var n uint64
	for _, l := range f.listings {
		if keep(l) {
			n++
		}
	}
	return n, nil
}

func (f *Fake) GetTotalListingsCount(ctx context.Context) (uint64, error) {
	return f.countListings(ctx, "getTotalListingsCount", func(domain.Listing) bool { return true })
}

func (f *Fake) GetPendingListingsCount(ctx context.Context) (uint64, error) {
	return f.countListings(ctx, "getPendingListingsCount", func(l domain.Listing) bool { return l.Status == domain.StatusPending })
}

func (f *Fake) GetApprovedListingsCount(ctx context.Context) (uint64, error) {
	return f.countListings(ctx, "getApprovedListingsCount", func(l domain.Listing) bool { return l.Status == domain.StatusApproved })
}

func (f *Fake) GetTotalUsersCount(ctx context.Context) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, err := f.enter(ctx, "getTotalUsersCount"); err != nil {
		return 0, err
	}
	return uint64(len(f.profiles)), nil
}

func (f *Fake) GetTotalLoginsCount(ctx context.Context) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, err := f.enter(ctx, "getTotalLoginsCount"); err != nil {
		return 0, err
	}
	return f.logins, nil
}
