package conversation

import (
	"context"
	"time"

	"github.com/espacoamar/amanda-backend/internal/engine"
)

// Service describes how the conversation engine behaves for one WhatsApp turn.
type Service interface {
	StartConversation(ctx context.Context, req StartRequest) (*Response, error)
	ProcessMessage(ctx context.Context, req MessageRequest) (*Response, error)
	GetHistory(ctx context.Context, leadID string) ([]ChatMessage, error)
}

// StartRequest opens a conversation with a lead who has not messaged before,
// typically from an ad click-to-WhatsApp flow.
type StartRequest struct {
	LeadID      string            `json:"leadId,omitempty"`
	Phone       string            `json:"phone"`
	ContactName string            `json:"contactName,omitempty"`
	Source      string            `json:"source,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// MessageRequest is a single inbound WhatsApp turn.
type MessageRequest struct {
	LeadID     string            `json:"leadId,omitempty"`
	Phone      string            `json:"phone"`
	Message    string            `json:"message"`
	ReceivedAt time.Time         `json:"receivedAt"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// Response is the DTO handed back to the transport layer.
type Response struct {
	LeadID    string          `json:"leadId"`
	Message   string          `json:"message"`
	Decision  engine.Decision `json:"decision"`
	Mode      engine.Mode     `json:"mode"`
	Timestamp time.Time       `json:"timestamp"`
}

// BookingState is the ephemeral scheduling progress kept in Redis between
// turns. It feeds the engine's BookingContext; nothing here is committed to
// the lead until an appointment is created.
type BookingState struct {
	Slots      *engine.SlotSet `json:"slots,omitempty"`
	ChosenSlot *engine.Slot    `json:"chosenSlot,omitempty"`
}

// Context converts the stored state into the engine's input shape.
func (s *BookingState) Context() engine.BookingContext {
	if s == nil {
		return engine.BookingContext{}
	}
	return engine.BookingContext{Slots: s.Slots, ChosenSlot: s.ChosenSlot}
}
