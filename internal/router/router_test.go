package router

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pashumandi/mandi-gateway/internal/adapter/cache/memory"
	"github.com/pashumandi/mandi-gateway/internal/backendtest"
	"github.com/pashumandi/mandi-gateway/internal/config"
	"github.com/pashumandi/mandi-gateway/internal/domain"
	"github.com/pashumandi/mandi-gateway/internal/handler"
	"github.com/pashumandi/mandi-gateway/internal/identity"
	"github.com/pashumandi/mandi-gateway/internal/query"
	"github.com/pashumandi/mandi-gateway/internal/roles"
	"github.com/pashumandi/mandi-gateway/internal/usecase/browse"
	"github.com/pashumandi/mandi-gateway/internal/usecase/dashboard"
	"github.com/pashumandi/mandi-gateway/internal/usecase/marketplace"
	"github.com/pashumandi/mandi-gateway/internal/usecase/messaging"
	"github.com/pashumandi/mandi-gateway/internal/usecase/posting"
	"github.com/pashumandi/mandi-gateway/internal/usecase/support"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	testSecret = "router-test-secret"
	cookieName = "mandi_session"

	admin  = domain.Principal("admin-principal")
	seller = domain.Principal("seller-principal")
	buyer  = domain.Principal("buyer-principal")
	owner  = domain.Principal("owner-principal")
)

var t0 = time.Date(2025, 2, 1, 9, 0, 0, 0, time.UTC)

type gateway struct {
	fake *backendtest.Fake
	mux  http.Handler
}

func newGateway(t *testing.T, fake *backendtest.Fake) *gateway {
	t.Helper()
	log := zap.NewNop()
	store := memory.NewCacheRepository()
	client := query.NewClient(store, fake, 20*time.Millisecond, time.Hour, log)
	market := marketplace.NewService(fake, client, config.CacheConfig{
		DefaultTTL:    time.Hour,
		Conversation:  5 * time.Second,
		Conversations: 10 * time.Second,
		AdminStale:    5 * time.Minute,
	}, log)

	tokens := identity.NewTokenProvider(testSecret, store, time.Hour, log)
	sessions := identity.NewManager(tokens, store, time.Hour, time.Millisecond, log)
	resolver := roles.NewResolver(market, config.RolesConfig{Owner: []string{string(owner)}}, log)

	pricer := posting.NewPricer(config.PaymentConfig{
		Mode:            "trust",
		UPIID:           "pashumandi@upi",
		PayeeNote:       "Pashu Mandi ad",
		RegularPrice:    199,
		VIPPrice:        500,
		DiscountedPrice: 99,
		PromoCodes:      []string{"MANDI99"},
		FreeCode:        "FREEAD",
		QRBaseURL:       "https://chart.example.com/chart",
	})
	postingCfg := config.PostingConfig{
		DraftTTL:          time.Hour,
		MaxPhotos:         5,
		MaxTitleLength:    100,
		MaxDescription:    2000,
		MaxPhotoSizeBytes: 1 << 20,
	}
	cfgAuth := config.AuthConfig{CookieName: cookieName, SessionTTL: time.Hour}

	h := Handlers{
		Listings:  handler.NewListingHandler(market, browse.NewService(market), log),
		Locations: handler.NewLocationHandler(browse.NewLocations([]string{"Gujarat", "Maharashtra", "Punjab"}), log),
		Profiles:  handler.NewProfileHandler(market, log),
		Messages:  handler.NewMessageHandler(messaging.NewService(market, time.UTC, log), log),
		PostAd:    handler.NewPostAdHandler(posting.NewService(store, market, market, pricer, postingCfg, log), pricer, log),
		Views:     handler.NewViewHandler(dashboard.NewService(market, log), log),
		Sessions:  handler.NewSessionHandler(sessions, resolver, market, cfgAuth, log),
		Info:      handler.NewInfoHandler(support.NewService(config.SupportConfig{Email: "help@example.com"}, support.NewLogSink(log), log), log),
		Health:    handler.NewHealthHandler(market, log),
	}
	mux := New(h, Deps{
		Verifier:   tokens,
		Sessions:   sessions,
		Roles:      resolver,
		CookieName: cookieName,
		Logger:     log,
	})
	return &gateway{fake: fake, mux: mux}
}

func tokenFor(t *testing.T, p domain.Principal) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, identity.Claims{
		Principal: string(p),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   string(p),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	s, err := tok.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return s
}

func (g *gateway) do(t *testing.T, as domain.Principal, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if as != "" {
		req.Header.Set("Authorization", "Bearer "+tokenFor(t, as))
	}
	rec := httptest.NewRecorder()
	g.mux.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

type browseBody struct {
	Listings   []domain.Listing `json:"listings"`
	Total      int              `json:"total"`
	HasFilters bool             `json:"has_filters"`
}

func titles(ls []domain.Listing) []string {
	out := make([]string, 0, len(ls))
	for _, l := range ls {
		out = append(out, l.Title)
	}
	return out
}

// postGoat walks the wizard through every step and publishes with payment
// confirmed.
func postGoat(t *testing.T, g *gateway, as domain.Principal) domain.ListingID {
	t.Helper()
	rec := g.do(t, as, http.MethodPost, "/api/signup", map[string]string{
		"display_name":  "Ramesh",
		"mobile_number": "98765 43210",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = g.do(t, as, http.MethodPatch, "/api/post-ad", map[string]any{
		"title":       "Healthy Goat",
		"description": "Two years old, vaccinated",
		"category":    "goat",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, http.StatusOK, g.do(t, as, http.MethodPost, "/api/post-ad/next", nil).Code)
	require.Equal(t, http.StatusOK, g.do(t, as, http.MethodPost, "/api/post-ad/next", nil).Code)

	rec = g.do(t, as, http.MethodPatch, "/api/post-ad", map[string]any{"price": 5000})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, http.StatusOK, g.do(t, as, http.MethodPost, "/api/post-ad/next", nil).Code)

	rec = g.do(t, as, http.MethodPatch, "/api/post-ad", map[string]any{"location": "Pune"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = g.do(t, as, http.MethodPost, "/api/post-ad/next", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, posting.StepReview, decode[posting.Draft](t, rec).Step)

	rec = g.do(t, as, http.MethodPost, "/api/post-ad/publish", map[string]any{"payment_confirmed": true})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	res := decode[posting.PublishResult](t, rec)
	require.NotZero(t, res.ListingID)
	assert.Equal(t, int64(199), res.Quote.EffectivePrice)
	return res.ListingID
}

func TestHealthyGoat_HiddenUntilApproved(t *testing.T) {
	g := newGateway(t, backendtest.New(t0, admin))

	id := postGoat(t, g, seller)

	rec := g.do(t, "", http.MethodGet, "/api/listings?category=goat", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	before := decode[browseBody](t, rec)
	assert.Empty(t, before.Listings)
	assert.True(t, before.HasFilters)

	rec = g.do(t, seller, http.MethodGet, "/api/me/listings", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	mine := decode[query.Result[[]domain.Listing]](t, rec)
	require.Len(t, mine.Data, 1)
	assert.Equal(t, domain.StatusPending, mine.Data[0].Status)
	assert.True(t, mine.Data[0].IsActive)
	assert.Equal(t, "Pune", mine.Data[0].Location)

	detail := fmt.Sprintf("/api/listings/%d", id)
	assert.Equal(t, http.StatusNotFound, g.do(t, "", http.MethodGet, detail, nil).Code)
	assert.Equal(t, http.StatusNotFound, g.do(t, buyer, http.MethodGet, detail, nil).Code)
	assert.Equal(t, http.StatusOK, g.do(t, seller, http.MethodGet, detail, nil).Code)
	assert.Equal(t, http.StatusOK, g.do(t, admin, http.MethodGet, detail, nil).Code)

	// The seller cannot approve their own ad.
	rec = g.do(t, seller, http.MethodPost, fmt.Sprintf("/api/admin/listings/%d/approve", id), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = g.do(t, admin, http.MethodPost, fmt.Sprintf("/api/admin/listings/%d/approve", id), nil)
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	rec = g.do(t, "", http.MethodGet, "/api/listings?category=goat", nil)
	after := decode[browseBody](t, rec)
	assert.Equal(t, []string{"Healthy Goat"}, titles(after.Listings))

	rec = g.do(t, "", http.MethodGet, "/api/listings?category=cow", nil)
	assert.Empty(t, decode[browseBody](t, rec).Listings)

	rec = g.do(t, "", http.MethodGet, detail, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Healthy Goat", decode[query.Result[*domain.Listing]](t, rec).Data.Title)
}

func TestListingDetail_RejectedHiddenFromBuyers(t *testing.T) {
	g := newGateway(t, backendtest.New(t0, admin))
	id := postGoat(t, g, seller)
	detail := fmt.Sprintf("/api/listings/%d", id)

	rec := g.do(t, admin, http.MethodPost, fmt.Sprintf("/api/admin/listings/%d/reject", id), nil)
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	assert.Equal(t, http.StatusNotFound, g.do(t, buyer, http.MethodGet, detail, nil).Code)
	assert.Equal(t, http.StatusNotFound, g.do(t, "", http.MethodGet, detail, nil).Code)
	assert.Equal(t, http.StatusOK, g.do(t, seller, http.MethodGet, detail, nil).Code)
}

func TestPublish_RequiresPaymentConfirmation(t *testing.T) {
	g := newGateway(t, backendtest.New(t0, admin))
	postGoat(t, g, seller)

	// A fresh draft walked to review but published without confirmation.
	g.do(t, buyer, http.MethodPost, "/api/signup", map[string]string{"display_name": "Asha", "mobile_number": "9123456780"})
	g.do(t, buyer, http.MethodPatch, "/api/post-ad", map[string]any{
		"title": "Cow", "description": "Gir cow", "category": "cow", "price": 40000, "location": "Nashik",
	})
	for i := 0; i < 4; i++ {
		require.Equal(t, http.StatusOK, g.do(t, buyer, http.MethodPost, "/api/post-ad/next", nil).Code)
	}
	rec := g.do(t, buyer, http.MethodPost, "/api/post-ad/publish", map[string]any{})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "payment_not_confirmed", decode[map[string]string](t, rec)["code"])

	// The draft survives the failed attempt.
	rec = g.do(t, buyer, http.MethodGet, "/api/post-ad", nil)
	assert.Equal(t, "Cow", decode[posting.Draft](t, rec).Title)
}

func TestGuards(t *testing.T) {
	g := newGateway(t, backendtest.New(t0, admin))

	tests := []struct {
		name   string
		as     domain.Principal
		path   string
		accept string
		want   int
	}{
		{"anonymous api view is unauthenticated", "", "/api/views/admin", "", http.StatusUnauthorized},
		{"non-admin api view is forbidden", buyer, "/api/views/admin", "", http.StatusForbidden},
		{"admin api view", admin, "/api/views/admin", "", http.StatusOK},
		{"unknown view", admin, "/api/views/nope", "", http.StatusNotFound},
		{"signed-in dashboard", buyer, "/api/views/dashboard", "", http.StatusOK},
		{"owner from config", owner, "/api/views/owner-view", "", http.StatusOK},
		{"admin is not owner", admin, "/api/views/owner-view", "", http.StatusForbidden},
		{"denied page redirects", buyer, "/tracker", "text/html", http.StatusFound},
		{"anonymous post-ad", "", "/api/post-ad", "", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.as != "" {
				req.Header.Set("Authorization", "Bearer "+tokenFor(t, tt.as))
			}
			if tt.accept != "" {
				req.Header.Set("Accept", tt.accept)
			}
			rec := httptest.NewRecorder()
			g.mux.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
			if tt.want == http.StatusFound {
				assert.Equal(t, "/", rec.Header().Get("Location"))
			}
		})
	}
}

func TestGuard_LoadingWhileBackendConnects(t *testing.T) {
	g := newGateway(t, backendtest.NotReady(t0, admin))

	rec := g.do(t, admin, http.MethodGet, "/api/views/admin", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
	assert.Equal(t, "loading", decode[map[string]string](t, rec)["state"])

	// Browsing never blocks: it answers loading with an empty feed.
	rec = g.do(t, "", http.MethodGet, "/api/listings", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = g.do(t, "", http.MethodGet, "/healthz", nil)
	assert.Equal(t, "connecting", decode[map[string]string](t, rec)["backend"])
}

func (g *gateway) withCookie(t *testing.T, method, path string, c *http.Cookie, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if c != nil {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	g.mux.ServeHTTP(rec, req)
	return rec
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == cookieName {
			return c
		}
	}
	require.FailNow(t, "no session cookie set")
	return nil
}

func TestSessionCookieLifecycle(t *testing.T) {
	g := newGateway(t, backendtest.New(t0, admin))

	rec := g.withCookie(t, http.MethodPost, "/api/session", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	first := sessionCookie(t, rec)
	assert.True(t, first.HttpOnly)

	rec = g.withCookie(t, http.MethodPost, "/api/session/login", first, map[string]string{"credential": tokenFor(t, seller)})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	session := sessionCookie(t, rec)
	assert.NotEqual(t, first.Value, session.Value)

	got := decode[map[string]any](t, g.withCookie(t, http.MethodGet, "/api/session", session, nil))
	assert.Equal(t, true, got["authenticated"])
	assert.Equal(t, string(seller), got["principal"])
	assert.Equal(t, true, got["needs_profile_setup"])

	// The pre-login ID is retired.
	got = decode[map[string]any](t, g.withCookie(t, http.MethodGet, "/api/session", first, nil))
	assert.Equal(t, false, got["authenticated"])

	rec = g.withCookie(t, http.MethodPost, "/api/session/logout", session, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	got = decode[map[string]any](t, g.withCookie(t, http.MethodGet, "/api/session", session, nil))
	assert.Equal(t, false, got["authenticated"])
}

func TestSessionLogin_PlantedCookieStaysAnonymous(t *testing.T) {
	g := newGateway(t, backendtest.New(t0, admin))
	planted := &http.Cookie{Name: cookieName, Value: "chosen-by-someone-else"}

	rec := g.withCookie(t, http.MethodPost, "/api/session", planted, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEqual(t, planted.Value, sessionCookie(t, rec).Value)

	rec = g.withCookie(t, http.MethodPost, "/api/session/login", planted, map[string]string{"credential": tokenFor(t, seller)})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.NotEqual(t, planted.Value, sessionCookie(t, rec).Value)

	got := decode[map[string]any](t, g.withCookie(t, http.MethodGet, "/api/session", planted, nil))
	assert.Equal(t, false, got["authenticated"])
	assert.Nil(t, got["principal"])

	rec = g.withCookie(t, http.MethodGet, "/api/post-ad", planted, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSession_ExpiredTokenSignsOut(t *testing.T) {
	g := newGateway(t, backendtest.New(t0, admin))
	short := jwt.NewWithClaims(jwt.SigningMethodHS256, identity.Claims{
		Principal: string(seller),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Second)),
		},
	})
	cred, err := short.SignedString([]byte(testSecret))
	require.NoError(t, err)

	rec := g.withCookie(t, http.MethodPost, "/api/session/login", nil, map[string]string{"credential": cred})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	session := sessionCookie(t, rec)

	time.Sleep(2100 * time.Millisecond)

	got := decode[map[string]any](t, g.withCookie(t, http.MethodGet, "/api/session", session, nil))
	assert.Equal(t, false, got["authenticated"])
	rec = g.withCookie(t, http.MethodGet, "/api/post-ad", session, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMessagesRoundTrip(t *testing.T) {
	g := newGateway(t, backendtest.New(t0, admin))

	rec := g.do(t, buyer, http.MethodPost, "/api/messages/"+string(seller), map[string]string{"text": "  Is the goat available?  "})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = g.do(t, seller, http.MethodGet, "/api/messages", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	inbox := decode[messaging.Inbox](t, rec)
	require.Len(t, inbox.Conversations, 1)
	assert.Equal(t, buyer, inbox.Conversations[0].Principal)

	rec = g.do(t, buyer, http.MethodPost, "/api/messages/"+string(seller), map[string]string{"text": "   "})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestPublicQuote(t *testing.T) {
	g := newGateway(t, backendtest.New(t0))

	rec := g.do(t, "", http.MethodGet, "/api/payment/quote?code=mandi99&apply=true", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	q := decode[map[string]any](t, rec)
	assert.EqualValues(t, 99, q["effective_price"])

	rec = g.do(t, "", http.MethodGet, "/api/payment/quote?vip=true&code=MANDI99&apply=true", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	q = decode[map[string]any](t, rec)
	assert.EqualValues(t, 500, q["effective_price"])
	assert.Equal(t, "This promo code is not valid for VIP Ads.", q["error"])
}

func TestLocations_PickerAndBrowseFilter(t *testing.T) {
	g := newGateway(t, backendtest.New(t0, admin))
	id := postGoat(t, g, seller)
	require.Equal(t, http.StatusNoContent, g.do(t, admin, http.MethodPost, fmt.Sprintf("/api/admin/listings/%d/approve", id), nil).Code)

	rec := g.do(t, "", http.MethodGet, "/api/locations?q=ma", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	opts := decode[browse.LocationOptions](t, rec)
	assert.Equal(t, browse.AllLocations, opts.All)
	assert.Equal(t, []string{"Maharashtra"}, opts.States)

	rec = g.do(t, "", http.MethodGet, "/api/listings?location=All+in+India", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	all := decode[browseBody](t, rec)
	assert.False(t, all.HasFilters)
	assert.Equal(t, []string{"Healthy Goat"}, titles(all.Listings))
}
