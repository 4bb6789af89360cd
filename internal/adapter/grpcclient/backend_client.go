// Package grpcclient reaches the marketplace backend over gRPC with JSON
// payloads.
package grpcclient

import (
	"context"
	"fmt"

	"github.com/pashumandi/mandi-gateway/internal/config"
	"github.com/pashumandi/mandi-gateway/internal/domain"
	"github.com/pashumandi/mandi-gateway/internal/platform/metrics"
	"github.com/pashumandi/mandi-gateway/internal/port/backend"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

type BackendClient struct {
	conn   *grpc.ClientConn
	logger *zap.Logger
}

var _ backend.Backend = (*BackendClient)(nil)

// Dial creates the lazily-connecting client connection. Use WatchReadiness
// to learn when it can serve calls.
func Dial(cfg config.BackendConfig, m *metrics.MetricsManager, logger *zap.Logger) (*grpc.ClientConn, error) {
	sc, err := ServiceConfig(cfg.CallTimeout, cfg.MaxReadAttempts, cfg.InitialBackoff, cfg.MaxBackoff)
	if err != nil {
		return nil, err
	}
	conn, err := grpc.NewClient(cfg.Address,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultServiceConfig(sc),
		grpc.WithStatsHandler(otelgrpc.NewClientHandler()),
		grpc.WithChainUnaryInterceptor(
			AuthInterceptor(),
			MetricsInterceptor(m, logger.Named("BackendRPC")),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("grpcclient.Dial %s: %w", cfg.Address, err)
	}
	return conn, nil
}

func NewBackendClient(conn *grpc.ClientConn, logger *zap.Logger) *BackendClient {
	return &BackendClient{conn: conn, logger: logger.Named("BackendClient")}
}

func (c *BackendClient) invoke(ctx context.Context, method string, req, resp any) error {
	err := c.conn.Invoke(ctx, "/"+serviceName+"/"+method, req, resp, grpc.CallContentSubtype(CodecName))
	return mapError(method, err)
}

func (c *BackendClient) listings(ctx context.Context, method string) ([]domain.Listing, error) {
	var resp []listingDTO
	if err := c.invoke(ctx, method, emptyRequest{}, &resp); err != nil {
		return nil, err
	}
	return listingsToDomain(resp), nil
}

func (c *BackendClient) count(ctx context.Context, method string) (uint64, error) {
	var n uint64
	if err := c.invoke(ctx, method, emptyRequest{}, &n); err != nil {
		return 0, err
	}
	return n, nil
}

func (c *BackendClient) GetListings(ctx context.Context) ([]domain.Listing, error) {
	return c.listings(ctx, "getListings")
}

func (c *BackendClient) GetAllListings(ctx context.Context) ([]domain.Listing, error) {
	return c.listings(ctx, "getAllListings")
}

func (c *BackendClient) GetPendingListings(ctx context.Context) ([]domain.Listing, error) {
	return c.listings(ctx, "getPendingListings")
}

func (c *BackendClient) GetAllListingsAdmin(ctx context.Context) ([]domain.Listing, error) {
	return c.listings(ctx, "getAllListingsAdmin")
}

func (c *BackendClient) GetListing(ctx context.Context, id domain.ListingID) (*domain.Listing, error) {
	var resp *listingDTO
	if err := c.invoke(ctx, "getListing", idRequest{ID: uint64(id)}, &resp); err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, nil
	}
	l := resp.toDomain()
	return &l, nil
}

func (c *BackendClient) CreateListing(ctx context.Context, in domain.NewListing) (domain.ListingID, error) {
	req := createListingRequest{
		Title:       in.Title,
		Description: in.Description,
		Price:       in.Price,
		Category:    string(in.Category),
		Location:    in.Location,
		PhotoURLs:   in.PhotoURLs,
		IsVip:       in.IsVip,
	}
	var id uint64
	if err := c.invoke(ctx, "createListing", req, &id); err != nil {
		return 0, err
	}
	return domain.ListingID(id), nil
}

func (c *BackendClient) UpdateListing(ctx context.Context, id domain.ListingID, in domain.ListingUpdate) error {
	req := updateListingRequest{
		ID:          uint64(id),
		Title:       in.Title,
		Description: in.Description,
		Price:       in.Price,
		Category:    string(in.Category),
		Location:    in.Location,
		PhotoURLs:   in.PhotoURLs,
		IsActive:    in.IsActive,
		IsVip:       in.IsVip,
	}
	return c.invoke(ctx, "updateListing", req, &struct{}{})
}

func (c *BackendClient) DeleteListing(ctx context.Context, id domain.ListingID) error {
	return c.invoke(ctx, "deleteListing", idRequest{ID: uint64(id)}, &struct{}{})
}

func (c *BackendClient) DeleteListingAdmin(ctx context.Context, id domain.ListingID) error {
	return c.invoke(ctx, "deleteListingAdmin", idRequest{ID: uint64(id)}, &struct{}{})
}

func (c *BackendClient) ApproveListing(ctx context.Context, id domain.ListingID) error {
	return c.invoke(ctx, "approveListing", idRequest{ID: uint64(id)}, &struct{}{})
}

func (c *BackendClient) RejectListing(ctx context.Context, id domain.ListingID) error {
	return c.invoke(ctx, "rejectListing", idRequest{ID: uint64(id)}, &struct{}{})
}

func (c *BackendClient) profile(ctx context.Context, method string) (*domain.UserProfile, error) {
	var resp *userProfileDTO
	if err := c.invoke(ctx, method, emptyRequest{}, &resp); err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, nil
	}
	return resp.toDomain(), nil
}

func (c *BackendClient) GetCallerUserProfile(ctx context.Context) (*domain.UserProfile, error) {
	return c.profile(ctx, "getCallerUserProfile")
}

func (c *BackendClient) GetMyProfile(ctx context.Context) (*domain.UserProfile, error) {
	return c.profile(ctx, "getMyProfile")
}

func (c *BackendClient) GetProfile(ctx context.Context, p domain.Principal) (*domain.PublicUserProfile, error) {
	var resp *publicProfileDTO
	if err := c.invoke(ctx, "getProfile", principalRequest{User: p.String()}, &resp); err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, nil
	}
	return &domain.PublicUserProfile{
		DisplayName:           resp.DisplayName,
		Bio:                   resp.Bio,
		RegistrationTimestamp: fromNanos(resp.RegistrationTimestamp),
	}, nil
}

func (c *BackendClient) SaveCallerUserProfile(ctx context.Context, in domain.ProfileInput) error {
	req := saveProfileRequest{
		DisplayName:  in.DisplayName,
		Bio:          in.Bio,
		ContactInfo:  in.ContactInfo,
		MobileNumber: in.MobileNumber,
	}
	return c.invoke(ctx, "saveCallerUserProfile", req, &struct{}{})
}

func (c *BackendClient) UpsertProfile(ctx context.Context, displayName, bio string, contactInfo *string) error {
	req := upsertProfileRequest{DisplayName: displayName, Bio: bio, ContactInfo: contactInfo}
	return c.invoke(ctx, "upsertProfile", req, &struct{}{})
}

func (c *BackendClient) SignUp(ctx context.Context, displayName, mobileNumber string) error {
	req := signUpRequest{DisplayName: displayName, MobileNumber: mobileNumber}
	return c.invoke(ctx, "signUp", req, &struct{}{})
}

func (c *BackendClient) GetMobileNumber(ctx context.Context) (*string, error) {
	var resp *string
	if err := c.invoke(ctx, "getMobileNumber", emptyRequest{}, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *BackendClient) GetConversation(ctx context.Context, other domain.Principal) ([]domain.Message, error) {
	var resp []messageDTO
	if err := c.invoke(ctx, "getConversation", principalRequest{User: other.String()}, &resp); err != nil {
		return nil, err
	}
	out := make([]domain.Message, 0, len(resp))
	for _, d := range resp {
		out = append(out, d.toDomain())
	}
	return out, nil
}

func (c *BackendClient) ListConversations(ctx context.Context) ([]domain.Principal, error) {
	var resp []string
	if err := c.invoke(ctx, "listConversations", emptyRequest{}, &resp); err != nil {
		return nil, err
	}
	out := make([]domain.Principal, 0, len(resp))
	for _, p := range resp {
		out = append(out, domain.Principal(p))
	}
	return out, nil
}

func (c *BackendClient) SendMessage(ctx context.Context, recipient domain.Principal, listingID *domain.ListingID, text string) error {
	req := sendMessageRequest{Recipient: recipient.String(), Text: text}
	if listingID != nil {
		id := uint64(*listingID)
		req.ListingID = &id
	}
	return c.invoke(ctx, "sendMessage", req, &struct{}{})
}

func (c *BackendClient) IsCallerAdmin(ctx context.Context) (bool, error) {
	var ok bool
	if err := c.invoke(ctx, "isCallerAdmin", emptyRequest{}, &ok); err != nil {
		return false, err
	}
	return ok, nil
}

func (c *BackendClient) GetAllMobileNumbers(ctx context.Context) ([]domain.MobileNumberEntry, error) {
	var resp []mobileNumberDTO
	if err := c.invoke(ctx, "getAllMobileNumbers", emptyRequest{}, &resp); err != nil {
		return nil, err
	}
	out := make([]domain.MobileNumberEntry, 0, len(resp))
	for _, d := range resp {
		out = append(out, domain.MobileNumberEntry{Principal: domain.Principal(d.Principal), MobileNumber: d.MobileNumber})
	}
	return out, nil
}

func (c *BackendClient) GetAllUsersWithActivity(ctx context.Context) ([]domain.UserActivity, error) {
	var resp []userActivityDTO
	if err := c.invoke(ctx, "getAllUsersWithActivity", emptyRequest{}, &resp); err != nil {
		return nil, err
	}
	out := make([]domain.UserActivity, 0, len(resp))
	for _, d := range resp {
		out = append(out, domain.UserActivity{
			Principal:   domain.Principal(d.Principal),
			DisplayName: d.DisplayName,
			LastLogin:   fromNanos(d.LastLogin),
		})
	}
	return out, nil
}

func (c *BackendClient) GetTotalListingsCount(ctx context.Context) (uint64, error) {
	return c.count(ctx, "getTotalListingsCount")
}

func (c *BackendClient) GetPendingListingsCount(ctx context.Context) (uint64, error) {
	return c.count(ctx, "getPendingListingsCount")
}

func (c *BackendClient) GetApprovedListingsCount(ctx context.Context) (uint64, error) {
	return c.count(ctx, "getApprovedListingsCount")
}

func (c *BackendClient) GetTotalUsersCount(ctx context.Context) (uint64, error) {
	return c.count(ctx, "getTotalUsersCount")
}

func (c *BackendClient) GetTotalLoginsCount(ctx context.Context) (uint64, error) {
	return c.count(ctx, "getTotalLoginsCount")
}
