package activity

import (
	"context"
	"time"

	"cartsaver/internal/broker"
	"cartsaver/internal/models"
	"cartsaver/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Event is one notable shop-level occurrence worth auditing
type Event struct {
	Shop        string
	Type        string
	Title       string
	Description string
	Metadata    models.Metadata
	Severity    string
}

// Recorder accepts audit events. Recording is best-effort: a failed
// record must never fail the caller, so implementations swallow errors.
type Recorder interface {
	Record(ctx context.Context, event Event)
}

// KafkaRecorder publishes audit events to the activity topic. Publishing
// happens off the caller's goroutine and failures are only logged and
// counted.
type KafkaRecorder struct {
	producer *broker.Producer
	logger   *zap.Logger
}

// NewKafkaRecorder creates a recorder backed by a Kafka producer
func NewKafkaRecorder(producer *broker.Producer) *KafkaRecorder {
	return &KafkaRecorder{
		producer: producer,
		logger:   util.GetLogger(),
	}
}

// Record publishes the event and returns immediately
func (r *KafkaRecorder) Record(ctx context.Context, event Event) {
	severity := event.Severity
	if severity == "" {
		severity = models.SeveritySuccess
	}

	wireEvent := models.ActivityEvent{
		EventID:     uuid.New().String(),
		Shop:        event.Shop,
		Type:        event.Type,
		Title:       event.Title,
		Description: event.Description,
		Metadata:    event.Metadata,
		Severity:    severity,
		Timestamp:   time.Now().UTC(),
	}

	go func() {
		publishCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := r.producer.PublishEvent(publishCtx, "activity-"+event.Shop, wireEvent); err != nil {
			util.ActivitiesDroppedTotal.Inc()
			r.logger.Warn("Failed to publish activity event",
				zap.String("shop", event.Shop),
				zap.String("type", event.Type),
				zap.Error(err))
		}
	}()
}

// NopRecorder discards everything. Used when the activity channel is
// disabled and in tests.
type NopRecorder struct{}

func (NopRecorder) Record(context.Context, Event) {}
