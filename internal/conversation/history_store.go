package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const conversationTTL = 72 * time.Hour

// historyStore keeps the rolling WhatsApp transcript and the ephemeral
// booking state in Redis, keyed by lead.
type historyStore struct {
	redis  *redis.Client
	tracer trace.Tracer
}

func newHistoryStore(rdb *redis.Client, tracer trace.Tracer) *historyStore {
	if rdb == nil {
		panic("conversation: redis client cannot be nil")
	}
	if tracer == nil {
		tracer = otel.Tracer("amanda.internal.conversation.history")
	}
	return &historyStore{
		redis:  rdb,
		tracer: tracer,
	}
}

func (s *historyStore) Save(ctx context.Context, leadID string, history []ChatMessage) error {
	ctx, span := s.tracer.Start(ctx, "conversation.save_history")
	defer span.End()

	data, err := json.Marshal(history)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: failed to marshal history: %w", err)
	}
	if err := s.redis.Set(ctx, historyKey(leadID), data, conversationTTL).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: failed to persist history: %w", err)
	}
	return nil
}

func (s *historyStore) Load(ctx context.Context, leadID string) ([]ChatMessage, error) {
	ctx, span := s.tracer.Start(ctx, "conversation.load_history")
	defer span.End()

	data, err := s.redis.Get(ctx, historyKey(leadID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("conversation: failed to load history: %w", err)
	}

	var history []ChatMessage
	if err := json.Unmarshal(data, &history); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("conversation: failed to decode history: %w", err)
	}
	return history, nil
}

// SaveBookingState persists the per-lead scheduling progress. A nil state
// clears the key, which happens after a confirmed booking.
func (s *historyStore) SaveBookingState(ctx context.Context, leadID string, state *BookingState) error {
	ctx, span := s.tracer.Start(ctx, "conversation.save_booking_state")
	defer span.End()

	if state == nil {
		if err := s.redis.Del(ctx, bookingKey(leadID)).Err(); err != nil {
			span.RecordError(err)
			return fmt.Errorf("conversation: failed to clear booking state: %w", err)
		}
		return nil
	}

	data, err := json.Marshal(state)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: failed to marshal booking state: %w", err)
	}
	if err := s.redis.Set(ctx, bookingKey(leadID), data, conversationTTL).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: failed to persist booking state: %w", err)
	}
	return nil
}

// LoadBookingState retrieves the scheduling progress, nil when none exists.
func (s *historyStore) LoadBookingState(ctx context.Context, leadID string) (*BookingState, error) {
	ctx, span := s.tracer.Start(ctx, "conversation.load_booking_state")
	defer span.End()

	data, err := s.redis.Get(ctx, bookingKey(leadID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("conversation: failed to load booking state: %w", err)
	}

	var state BookingState
	if err := json.Unmarshal(data, &state); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("conversation: failed to decode booking state: %w", err)
	}
	return &state, nil
}

func historyKey(leadID string) string {
	return fmt.Sprintf("conversation:%s", leadID)
}

func bookingKey(leadID string) string {
	return fmt.Sprintf("booking_state:%s", leadID)
}
