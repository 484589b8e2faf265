package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"cartsaver/internal/broker"
	"cartsaver/internal/models"
	"cartsaver/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// ActivityStore persists audit entries
type ActivityStore interface {
	InsertActivity(ctx context.Context, activity *models.Activity) error
}

// ActivityWorker drains the activity topic into the activities table.
// Producers never wait on it; a crashed worker only delays the audit log.
type ActivityWorker struct {
	consumer *broker.Consumer
	store    ActivityStore
	logger   *zap.Logger
}

// NewActivityWorker creates a new activity worker
func NewActivityWorker(consumer *broker.Consumer, store ActivityStore) *ActivityWorker {
	return &ActivityWorker{
		consumer: consumer,
		store:    store,
		logger:   util.GetLogger(),
	}
}

// Start starts the worker
func (w *ActivityWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting activity worker")
	return w.consumer.StartConsuming(ctx, w.handleMessage)
}

// Stop stops the worker
func (w *ActivityWorker) Stop() error {
	w.logger.Info("Stopping activity worker")
	return w.consumer.Close()
}

func (w *ActivityWorker) handleMessage(ctx context.Context, msg kafka.Message) error {
	var event models.ActivityEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		// Malformed audit entries are dropped, not retried forever.
		w.logger.Warn("Dropping malformed activity event", zap.Error(err))
		return nil
	}

	activity := &models.Activity{
		ID:          event.EventID,
		Shop:        event.Shop,
		Type:        event.Type,
		Title:       event.Title,
		Description: event.Description,
		Metadata:    event.Metadata,
		Severity:    event.Severity,
		CreatedAt:   event.Timestamp,
	}

	if err := w.store.InsertActivity(ctx, activity); err != nil {
		return fmt.Errorf("failed to persist activity %s: %w", event.EventID, err)
	}
	return nil
}
