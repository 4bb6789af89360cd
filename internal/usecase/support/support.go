// Package support serves the helpline details and accepts support requests.
package support

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pashumandi/mandi-gateway/internal/config"
	"github.com/pashumandi/mandi-gateway/internal/domain"
	"github.com/pashumandi/mandi-gateway/internal/identity"
	"go.uber.org/zap"
)

type Helpline struct {
	Phones       []string `json:"phones"`
	Email        string   `json:"email"`
	Hours        string   `json:"hours"`
	ResponseTime string   `json:"response_time"`
}

type TermsSection struct {
	Heading string `json:"heading"`
	Body    string `json:"body"`
}

type Ticket struct {
	ID         string           `json:"id"`
	FullName   string           `json:"full_name"`
	OrderID    string           `json:"order_id,omitempty"`
	Issue      string           `json:"issue"`
	Principal  domain.Principal `json:"principal,omitempty"`
	ReceivedAt time.Time        `json:"received_at"`
}

type TicketRequest struct {
	FullName string `json:"fullName"`
	OrderID  string `json:"orderId"`
	Issue    string `json:"issue"`
}

// Sink forwards accepted tickets to whoever handles them.
type Sink interface {
	SubmitTicket(ctx context.Context, t Ticket) error
}

// LogSink records tickets in the log when no message bus is configured.
type LogSink struct {
	logger *zap.Logger
}

func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger.Named("SupportTickets")}
}

func (s *LogSink) SubmitTicket(_ context.Context, t Ticket) error {
	s.logger.Info("Support ticket received",
		zap.String("ticket_id", t.ID),
		zap.String("full_name", t.FullName),
		zap.String("order_id", t.OrderID),
		zap.Int("issue_length", len(t.Issue)),
	)
	return nil
}

type Service struct {
	cfg    config.SupportConfig
	sink   Sink
	logger *zap.Logger
	now    func() time.Time
}

func NewService(cfg config.SupportConfig, sink Sink, logger *zap.Logger) *Service {
	return &Service{cfg: cfg, sink: sink, logger: logger.Named("SupportService"), now: time.Now}
}

func (s *Service) Helpline() Helpline {
	return Helpline{
		Phones:       append([]string{}, s.cfg.Phones...),
		Email:        s.cfg.Email,
		Hours:        s.cfg.Hours,
		ResponseTime: "We typically respond within 24 hours",
	}
}

func (s *Service) Terms() []TermsSection {
	return []TermsSection{
		{"Listings", "Every ad is reviewed before it appears on Pashu Mandi. Ads that are rejected or deactivated are not shown to buyers."},
		{"Posting fee", "A posting fee is paid by UPI before an ad is submitted. Promo codes apply to regular ads only."},
		{"Animal welfare", "Sellers must describe the animal truthfully, including age, health and vaccination status."},
		{"Messaging", "Keep conversations about the listing. Pashu Mandi does not take part in payments between buyers and sellers."},
		{"Support", fmt.Sprintf("Questions about these terms can be sent to %s.", s.cfg.Email)},
	}
}

// Submit validates a helpline request and hands it to the sink.
func (s *Service) Submit(ctx context.Context, req TicketRequest) (Ticket, error) {
	t := Ticket{
		FullName:  strings.TrimSpace(req.FullName),
		OrderID:   strings.TrimSpace(req.OrderID),
		Issue:     strings.TrimSpace(req.Issue),
		Principal: identity.CallerFrom(ctx),
	}
	if t.FullName == "" {
		return Ticket{}, domain.NewValidationError("fullName", "Full Name is required.")
	}
	if t.Issue == "" {
		return Ticket{}, domain.NewValidationError("issue", "Please describe your issue.")
	}
	t.ID = uuid.NewString()
	t.ReceivedAt = s.now().UTC()
	if err := s.sink.SubmitTicket(ctx, t); err != nil {
		return Ticket{}, fmt.Errorf("SupportService.Submit: %w", err)
	}
	return t, nil
}
