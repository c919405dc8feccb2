package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/events"
	"github.com/spec-kit/support-desk/internal/observability"
)

// StreamAdder is the slice of the redis client the sink needs.
type StreamAdder interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
}

// ActivityStreamSink forwards committed activity items to a capped Redis
// stream. Delivery is best effort: failures are logged and counted, never
// returned to the writer that produced the activity.
type ActivityStreamSink struct {
	client  StreamAdder
	stream  string
	maxLen  int64
	timeout time.Duration
	logger  *zap.Logger
	metrics *observability.Metrics
}

// NewActivityStreamSink builds a sink. A nil client disables forwarding.
func NewActivityStreamSink(client StreamAdder, stream string, maxLen int64, logger *zap.Logger, metrics *observability.Metrics) *ActivityStreamSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ActivityStreamSink{
		client:  client,
		stream:  stream,
		maxLen:  maxLen,
		timeout: 2 * time.Second,
		logger:  logger,
		metrics: metrics,
	}
}

// Register subscribes the sink to activity events.
func (s *ActivityStreamSink) Register(dispatcher events.Dispatcher) {
	if dispatcher == nil || s.client == nil {
		return
	}
	dispatcher.Subscribe(events.EventActivityRecorded, s.handle)
}

func (s *ActivityStreamSink) handle(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.ActivityRecordedPayload)
	if !ok {
		return nil
	}
	if err := s.Forward(ctx, payload.Activity); err != nil {
		s.metrics.RecordSinkFailure()
		s.logger.Warn("activity not forwarded",
			zap.String("activity_id", payload.Activity.ID),
			zap.String("stream", s.stream),
			zap.Error(err))
	}
	return nil
}

// Forward appends one activity to the stream.
func (s *ActivityStreamSink) Forward(ctx context.Context, item domain.ActivityItem) error {
	body, err := json.Marshal(activityRecord{
		ID:          item.ID,
		Type:        item.Type,
		Description: item.Description,
		ActorUserID: item.ActorUserID,
		TicketID:    item.TicketID,
		Internal:    item.Internal,
		CreatedAt:   item.CreatedAt,
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	args := &redis.XAddArgs{
		Stream: s.stream,
		Values: map[string]interface{}{
			"id":        item.ID,
			"type":      string(item.Type),
			"ticket_id": item.TicketRef(),
			"activity":  string(body),
		},
	}
	if s.maxLen > 0 {
		args.MaxLen = s.maxLen
		args.Approx = true
	}
	return s.client.XAdd(ctx, args).Err()
}

type activityRecord struct {
	ID          string              `json:"id"`
	Type        domain.ActivityType `json:"type"`
	Description string              `json:"description"`
	ActorUserID string              `json:"actorUserId"`
	TicketID    *string             `json:"ticketId,omitempty"`
	Internal    bool                `json:"internal,omitempty"`
	CreatedAt   time.Time           `json:"createdAt"`
}
