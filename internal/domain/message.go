package domain

import "time"

type Message struct {
	Sender    Principal  `json:"sender"`
	Recipient Principal  `json:"recipient"`
	ListingID *ListingID `json:"listing_id,omitempty"`
	Text      string     `json:"text"`
	Timestamp time.Time  `json:"timestamp"`
}

// Counterparty returns the participant of the message that is not me.
func (m Message) Counterparty(me Principal) Principal {
	if m.Sender == me {
		return m.Recipient
	}
	return m.Sender
}
