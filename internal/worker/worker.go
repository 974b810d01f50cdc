// Package worker persists prediction events to the audit repository off
// the scoring hot path.
package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/fraudguard/fraudguard/internal/domain"
)

// Worker consumes prediction events from the EventBus and writes the
// transaction and its prediction to the repository. Scoring never waits on
// it; a lost event costs an audit row, not a prediction.
type Worker struct {
	bus  domain.EventBus
	repo domain.Repository

	subscriptions []domain.Subscription
	wg            sync.WaitGroup
	ctx           context.Context
	cancel        context.CancelFunc
}

// NewWorker creates an audit worker.
func NewWorker(bus domain.EventBus, repo domain.Repository) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:    bus,
		repo:   repo,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start subscribes to the prediction topic.
func (w *Worker) Start() error {
	sub, err := w.bus.Subscribe(w.ctx, domain.TopicPredictionCreated, w.handlePrediction)
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("audit worker started", "topic", domain.TopicPredictionCreated)
	return nil
}

// handlePrediction persists one prediction event. In-flight handlers are
// tracked so Stop can wait for them, and the writes run on their own
// context so a shutdown cancel does not abort a save already underway.
func (w *Worker) handlePrediction(_ context.Context, msg *domain.Message) error {
	w.wg.Add(1)
	defer w.wg.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var event domain.PredictionEvent
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		slog.Error("failed to parse prediction event",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}
	if event.Transaction == nil || event.Result == nil {
		slog.Error("incomplete prediction event", "message_id", msg.ID)
		return nil
	}

	if err := w.repo.SaveTransaction(ctx, event.Transaction, event.Result.IsFraud); err != nil {
		slog.Error("failed to save transaction",
			"transaction_id", event.Transaction.ID,
			"error", err,
		)
	}

	if err := w.repo.SavePrediction(ctx, event.Result, event.Transaction.UserID); err != nil {
		slog.Error("failed to save prediction",
			"transaction_id", event.Result.TransactionID,
			"error", err,
		)
		return err
	}

	slog.Debug("prediction persisted",
		"transaction_id", event.Result.TransactionID,
		"risk_level", event.Result.RiskLevel,
	)

	return nil
}

// Stop gracefully stops the worker.
func (w *Worker) Stop() error {
	w.cancel()

	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	w.subscriptions = nil

	w.wg.Wait()

	slog.Info("audit worker stopped")
	return nil
}

// Stats returns worker statistics.
type Stats struct {
	SubscriptionCount int      `json:"subscriptionCount"`
	Topics            []string `json:"topics"`
}

// GetStats returns current worker statistics.
func (w *Worker) GetStats() Stats {
	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	return Stats{
		SubscriptionCount: len(w.subscriptions),
		Topics:            topics,
	}
}
