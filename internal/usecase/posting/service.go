// Package posting drives the resumable ad-posting wizard and its fee quote.
package posting

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pashumandi/mandi-gateway/internal/config"
	"github.com/pashumandi/mandi-gateway/internal/domain"
	"github.com/pashumandi/mandi-gateway/internal/identity"
	"github.com/pashumandi/mandi-gateway/internal/port/cache"
	"github.com/pashumandi/mandi-gateway/internal/query"
	"go.uber.org/zap"
)

type ListingCreator interface {
	CreateListing(ctx context.Context, in domain.NewListing) (domain.ListingID, error)
}

type MobileSource interface {
	MobileNumber(ctx context.Context) (query.Result[*string], error)
}

type PublishRequest struct {
	PromoCode string `json:"promo_code"`
	// PaymentConfirmed is the user's own assertion; nothing verifies it.
	PaymentConfirmed bool `json:"payment_confirmed"`
}

type PublishResult struct {
	ListingID domain.ListingID `json:"listing_id"`
	Quote     Quote            `json:"quote"`
}

type Service struct {
	store    cache.CacheRepository
	listings ListingCreator
	mobiles  MobileSource
	pricer   *Pricer
	check    validator
	ttl      time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

func NewService(store cache.CacheRepository, listings ListingCreator, mobiles MobileSource, pricer *Pricer, cfg config.PostingConfig, logger *zap.Logger) *Service {
	return &Service{
		store:    store,
		listings: listings,
		mobiles:  mobiles,
		pricer:   pricer,
		check:    validator{cfg: cfg},
		ttl:      cfg.DraftTTL,
		logger:   logger.Named("PostingService"),
		now:      time.Now,
	}
}

func draftKey(p domain.Principal) string {
	return "draft:" + p.String()
}

func (s *Service) caller(ctx context.Context, op string) (domain.Principal, error) {
	p := identity.CallerFrom(ctx)
	if p == "" {
		return "", fmt.Errorf("PostingService.%s: %w", op, domain.ErrUnauthenticated)
	}
	return p, nil
}

func (s *Service) load(ctx context.Context, p domain.Principal) (Draft, error) {
	raw, err := s.store.Get(ctx, draftKey(p))
	if errors.Is(err, cache.ErrNotFound) {
		return newDraft(), nil
	}
	if err != nil {
		return Draft{}, fmt.Errorf("load draft: %w", err)
	}
	var d Draft
	if err := json.Unmarshal(raw, &d); err != nil {
		s.logger.Warn("Discarding unreadable draft", zap.String("owner", p.Short()), zap.Error(err))
		return newDraft(), nil
	}
	if d.Photos == nil {
		d.Photos = []string{}
	}
	if d.Step < StepDetails || d.Step > StepReview {
		d.Step = StepDetails
	}
	return d, nil
}

func (s *Service) save(ctx context.Context, p domain.Principal, d Draft) (Draft, error) {
	d.UpdatedAt = s.now().UTC()
	raw, err := json.Marshal(d)
	if err != nil {
		return Draft{}, fmt.Errorf("encode draft: %w", err)
	}
	if err := s.store.Set(ctx, draftKey(p), raw, s.ttl); err != nil {
		return Draft{}, fmt.Errorf("save draft: %w", err)
	}
	return d, nil
}

// edit loads the caller's draft, applies fn and persists the result. The
// draft is left untouched when fn fails.
func (s *Service) edit(ctx context.Context, op string, fn func(d *Draft) error) (Draft, error) {
	p, err := s.caller(ctx, op)
	if err != nil {
		return Draft{}, err
	}
	d, err := s.load(ctx, p)
	if err != nil {
		return Draft{}, fmt.Errorf("PostingService.%s: %w", op, err)
	}
	if err := fn(&d); err != nil {
		return d, fmt.Errorf("PostingService.%s: %w", op, err)
	}
	d, err = s.save(ctx, p, d)
	if err != nil {
		return Draft{}, fmt.Errorf("PostingService.%s: %w", op, err)
	}
	return d, nil
}

// Draft returns the caller's draft, or a fresh one at the details step.
func (s *Service) Draft(ctx context.Context) (Draft, error) {
	p, err := s.caller(ctx, "Draft")
	if err != nil {
		return Draft{}, err
	}
	d, err := s.load(ctx, p)
	if err != nil {
		return Draft{}, fmt.Errorf("PostingService.Draft: %w", err)
	}
	return d, nil
}

// Update patches fields without validating them; Next does that.
func (s *Service) Update(ctx context.Context, u DraftUpdate) (Draft, error) {
	return s.edit(ctx, "Update", func(d *Draft) error {
		d.apply(u)
		return nil
	})
}

// AddPhotos appends embedded images until the photo limit is reached; extra
// images are dropped the way a file picker with a remaining count would.
func (s *Service) AddPhotos(ctx context.Context, photos []string) (Draft, error) {
	return s.edit(ctx, "AddPhotos", func(d *Draft) error {
		remaining := s.check.cfg.MaxPhotos - len(d.Photos)
		if remaining <= 0 {
			return nil
		}
		if len(photos) > remaining {
			photos = photos[:remaining]
		}
		for _, ph := range photos {
			if err := s.check.photo(ph); err != nil {
				return err
			}
		}
		d.Photos = append(d.Photos, photos...)
		return nil
	})
}

func (s *Service) RemovePhoto(ctx context.Context, index int) (Draft, error) {
	return s.edit(ctx, "RemovePhoto", func(d *Draft) error {
		if index < 0 || index >= len(d.Photos) {
			return domain.NewValidationError("photos", "No such photo")
		}
		d.Photos = append(d.Photos[:index:index], d.Photos[index+1:]...)
		return nil
	})
}

// Next validates the current step and advances, stopping at review.
func (s *Service) Next(ctx context.Context) (Draft, error) {
	return s.edit(ctx, "Next", func(d *Draft) error {
		if err := s.check.step(*d, d.Step); err != nil {
			return err
		}
		if d.Step < StepReview {
			d.Step++
		}
		return nil
	})
}

// Back never validates.
func (s *Service) Back(ctx context.Context) (Draft, error) {
	return s.edit(ctx, "Back", func(d *Draft) error {
		if d.Step > StepDetails {
			d.Step--
		}
		return nil
	})
}

func (s *Service) Discard(ctx context.Context) error {
	p, err := s.caller(ctx, "Discard")
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, draftKey(p)); err != nil {
		return fmt.Errorf("PostingService.Discard: %w", err)
	}
	return nil
}

// Quote prices the caller's draft with the given promo code.
func (s *Service) Quote(ctx context.Context, code string, apply bool) (Quote, error) {
	d, err := s.Draft(ctx)
	if err != nil {
		return Quote{}, err
	}
	return s.pricer.Quote(d.IsVip, code, apply)
}

func (s *Service) requireMobile(ctx context.Context) error {
	res, err := s.mobiles.MobileNumber(ctx)
	switch {
	case err != nil:
		return err
	case res.IsLoading:
		return domain.ErrNotReady
	case res.IsError:
		return domain.ErrTransient
	case res.Data == nil || strings.TrimSpace(*res.Data) == "":
		return domain.ErrProfileIncomplete
	}
	return nil
}

// Publish creates the listing from a reviewed draft. Any fee above zero needs
// the caller's payment confirmation. The draft survives every failure and is
// removed only once the listing exists.
func (s *Service) Publish(ctx context.Context, req PublishRequest) (PublishResult, error) {
	p, err := s.caller(ctx, "Publish")
	if err != nil {
		return PublishResult{}, err
	}
	d, err := s.load(ctx, p)
	if err != nil {
		return PublishResult{}, fmt.Errorf("PostingService.Publish: %w", err)
	}
	if d.Step != StepReview {
		return PublishResult{}, fmt.Errorf("PostingService.Publish: %w",
			domain.NewValidationError("step", "Please review your ad before posting"))
	}
	if err := s.check.all(d); err != nil {
		return PublishResult{}, fmt.Errorf("PostingService.Publish: %w", err)
	}
	if err := s.requireMobile(ctx); err != nil {
		return PublishResult{}, fmt.Errorf("PostingService.Publish: %w", err)
	}

	q, err := s.pricer.Quote(d.IsVip, req.PromoCode, false)
	if err != nil {
		return PublishResult{Quote: q}, fmt.Errorf("PostingService.Publish: %w", err)
	}
	if q.EffectivePrice > 0 && !req.PaymentConfirmed {
		return PublishResult{Quote: q}, fmt.Errorf("PostingService.Publish: %w", domain.ErrPaymentNotConfirmed)
	}

	id, err := s.listings.CreateListing(ctx, d.NewListing())
	if err != nil {
		s.logger.Warn("Publishing failed, draft kept", zap.String("owner", p.Short()), zap.Error(err))
		return PublishResult{Quote: q}, fmt.Errorf("PostingService.Publish: %w", err)
	}
	if err := s.store.Delete(ctx, draftKey(p)); err != nil {
		s.logger.Warn("Could not clear published draft", zap.String("owner", p.Short()), zap.Error(err))
	}
	s.logger.Info("Ad published",
		zap.Uint64("listing_id", uint64(id)),
		zap.Int64("fee", q.EffectivePrice),
		zap.Bool("vip", d.IsVip),
		zap.Bool("free_code", q.Free),
	)
	return PublishResult{ListingID: id, Quote: q}, nil
}
