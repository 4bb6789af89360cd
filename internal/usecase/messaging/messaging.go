// Package messaging shapes the inbox and chat threads around the raw
// conversation reads.
package messaging

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/pashumandi/mandi-gateway/internal/domain"
	"github.com/pashumandi/mandi-gateway/internal/identity"
	"github.com/pashumandi/mandi-gateway/internal/query"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// QuickReplies are offered under every thread.
var QuickReplies = []string{
	"Is this animal still available?",
	"What is your final price?",
	"Can I visit to see the animal?",
}

const profileLookups = 8

type Source interface {
	Conversations(ctx context.Context) (query.Result[[]domain.Principal], error)
	Conversation(ctx context.Context, other domain.Principal) (query.Result[[]domain.Message], error)
	PublicProfile(ctx context.Context, p domain.Principal) (query.Result[*domain.PublicUserProfile], error)
	SendMessage(ctx context.Context, recipient domain.Principal, listingID *domain.ListingID, text string) error
}

type Counterparty struct {
	Principal   domain.Principal `json:"principal"`
	DisplayName string           `json:"display_name"`
	Selected    bool             `json:"selected"`
}

type Inbox struct {
	Conversations []Counterparty   `json:"conversations"`
	Selected      domain.Principal `json:"selected,omitempty"`
	IsLoading     bool             `json:"is_loading"`
	IsError       bool             `json:"is_error"`
}

type ThreadMessage struct {
	domain.Message
	Mine bool `json:"mine"`
}

type Day struct {
	Date     string          `json:"date"`
	Label    string          `json:"label"`
	Messages []ThreadMessage `json:"messages"`
}

type Thread struct {
	With         domain.Principal `json:"with"`
	DisplayName  string           `json:"display_name"`
	Days         []Day            `json:"days"`
	Count        int              `json:"count"`
	QuickReplies []string         `json:"quick_replies"`
	IsLoading    bool             `json:"is_loading"`
	IsError      bool             `json:"is_error"`
}

// MergeInbox keeps backend order, drops duplicates and appends the deep-linked
// counterparty when the caller has not talked to them yet.
func MergeInbox(conversations []domain.Principal, deepLink domain.Principal) []domain.Principal {
	seen := make(map[domain.Principal]bool, len(conversations)+1)
	out := make([]domain.Principal, 0, len(conversations)+1)
	for _, p := range append(append([]domain.Principal{}, conversations...), deepLink) {
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}

// GroupByDay sorts messages oldest first, keeping the order of equal
// timestamps, and splits them at calendar-day boundaries in loc.
func GroupByDay(msgs []domain.Message, me domain.Principal, loc *time.Location) []Day {
	sorted := append([]domain.Message{}, msgs...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	days := []Day{}
	for _, m := range sorted {
		local := m.Timestamp.In(loc)
		date := local.Format("2006-01-02")
		if len(days) == 0 || days[len(days)-1].Date != date {
			days = append(days, Day{Date: date, Label: local.Format("Jan 2"), Messages: []ThreadMessage{}})
		}
		last := &days[len(days)-1]
		last.Messages = append(last.Messages, ThreadMessage{Message: m, Mine: m.Sender == me})
	}
	return days
}

func fallbackName(p domain.Principal, n int) string {
	s := p.String()
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

type Service struct {
	source Source
	loc    *time.Location
	logger *zap.Logger
}

func NewService(source Source, loc *time.Location, logger *zap.Logger) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{source: source, loc: loc, logger: logger.Named("MessagingService")}
}

func (s *Service) displayName(ctx context.Context, p domain.Principal, n int) string {
	res, err := s.source.PublicProfile(ctx, p)
	if err != nil || res.Data == nil || res.Data.DisplayName == "" {
		return fallbackName(p, n)
	}
	return res.Data.DisplayName
}

// Inbox lists the caller's counterparties. With no selection the first one is
// selected.
func (s *Service) Inbox(ctx context.Context, selected domain.Principal) (Inbox, error) {
	if identity.CallerFrom(ctx) == "" {
		return Inbox{}, fmt.Errorf("MessagingService.Inbox: %w", domain.ErrUnauthenticated)
	}
	convs, err := s.source.Conversations(ctx)
	if err != nil {
		return Inbox{}, fmt.Errorf("MessagingService.Inbox: %w", err)
	}
	principals := MergeInbox(convs.Data, selected)
	if selected == "" && len(principals) > 0 {
		selected = principals[0]
	}

	inbox := Inbox{
		Conversations: make([]Counterparty, len(principals)),
		Selected:      selected,
		IsLoading:     convs.IsLoading,
		IsError:       convs.IsError,
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(profileLookups)
	for i, p := range principals {
		g.Go(func() error {
			inbox.Conversations[i] = Counterparty{
				Principal:   p,
				DisplayName: s.displayName(gctx, p, 10),
				Selected:    p == selected,
			}
			return nil
		})
	}
	_ = g.Wait()
	return inbox, nil
}

func (s *Service) Thread(ctx context.Context, other domain.Principal) (Thread, error) {
	me := identity.CallerFrom(ctx)
	if me == "" {
		return Thread{}, fmt.Errorf("MessagingService.Thread: %w", domain.ErrUnauthenticated)
	}
	if other == "" {
		return Thread{}, fmt.Errorf("MessagingService.Thread: %w", domain.NewValidationError("principal", "Choose a conversation"))
	}
	res, err := s.source.Conversation(ctx, other)
	if err != nil {
		return Thread{}, fmt.Errorf("MessagingService.Thread: %w", err)
	}
	return Thread{
		With:         other,
		DisplayName:  s.displayName(ctx, other, 8),
		Days:         GroupByDay(res.Data, me, s.loc),
		Count:        len(res.Data),
		QuickReplies: QuickReplies,
		IsLoading:    res.IsLoading,
		IsError:      res.IsError,
	}, nil
}

// Send trims text and refuses blank messages before reaching the backend.
func (s *Service) Send(ctx context.Context, recipient domain.Principal, listingID *domain.ListingID, text string) error {
	text = strings.TrimSpace(text)
	if recipient == "" {
		return fmt.Errorf("MessagingService.Send: %w", domain.NewValidationError("recipient", "Choose who to message"))
	}
	if text == "" {
		return fmt.Errorf("MessagingService.Send: %w", domain.NewValidationError("text", "Message cannot be empty"))
	}
	if err := s.source.SendMessage(ctx, recipient, listingID, text); err != nil {
		s.logger.Debug("Send failed", zap.String("recipient", recipient.Short()), zap.Error(err))
		return fmt.Errorf("MessagingService.Send: %w", err)
	}
	return nil
}
