package nats

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/pashumandi/mandi-gateway/internal/usecase/support"
	"go.uber.org/zap"
)

const DefaultSupportSubject = "mandi.support.tickets"

// TicketPublisher sends helpline requests to the support desk over the bus
// connection.
type TicketPublisher struct {
	bus     *InvalidationBus
	subject string
}

func (b *InvalidationBus) Tickets(subject string) *TicketPublisher {
	if subject == "" {
		subject = DefaultSupportSubject
	}
	return &TicketPublisher{bus: b, subject: subject}
}

var _ support.Sink = (*TicketPublisher)(nil)

func (p *TicketPublisher) SubmitTicket(_ context.Context, t support.Ticket) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("failed to marshal ticket for %s: %w", p.subject, err)
	}
	if err := p.bus.nc.Publish(p.subject, data); err != nil {
		p.bus.logger.Error("Failed to publish NATS message", zap.String("subject", p.subject), zap.Error(err))
		return fmt.Errorf("failed to publish NATS message for %s: %w", p.subject, err)
	}
	p.bus.logger.Info("Published support ticket", zap.String("subject", p.subject), zap.String("ticket_id", t.ID))
	return nil
}
