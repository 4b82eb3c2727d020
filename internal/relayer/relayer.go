package relayer

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/paybridge/paybridge/pkg/circuit"
	"github.com/paybridge/paybridge/pkg/messaging"
)

// Worker watches for payments bound for its destination chain and settles
// them against the engine's execute endpoint. It is a deployment
// convenience: the engine authorizes it like any other relayer account,
// via the token it presents.
type Worker struct {
	chain     uint32
	engineURL string
	token     string
	client    *http.Client
	breaker   *circuit.Breaker
	log       *slog.Logger
}

// Config holds worker construction parameters.
type Config struct {
	// Chain is the destination chain this worker settles.
	Chain uint32

	// EngineURL is the base URL of the settlement engine API.
	EngineURL string

	// Token authenticates the worker as its relayer account.
	Token string

	// HTTPTimeout bounds each execute call. Defaults to 10s.
	HTTPTimeout time.Duration

	Logger *slog.Logger
}

// Subscriber registers queue-grouped event handlers; implemented by the
// messaging client.
type Subscriber interface {
	QueueSubscribe(subject, queue string, handler func(event *messaging.Event)) error
}

// New creates a worker.
func New(cfg Config) *Worker {
	timeout := cfg.HTTPTimeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	return &Worker{
		chain:     cfg.Chain,
		engineURL: cfg.EngineURL,
		token:     cfg.Token,
		client:    &http.Client{Timeout: timeout},
		breaker: circuit.NewBreaker(circuit.Config{
			MaxFailures: 5,
			Timeout:     30 * time.Second,
		}),
		log: log,
	}
}

// Run subscribes to payment.created and settles matching payments until the
// context is cancelled. Replicas for the same chain share a queue group so
// each payment is attempted once per fleet.
func (w *Worker) Run(ctx context.Context, sub Subscriber) error {
	queue := fmt.Sprintf("relayer-%d", w.chain)
	err := sub.QueueSubscribe(messaging.SubjectPaymentCreated, queue, func(event *messaging.Event) {
		data, err := messaging.ParseEventData[messaging.PaymentCreatedEvent](event)
		if err != nil {
			w.log.Warn("undecodable payment.created event", "error", err)
			return
		}
		if data.DestinationChain != w.chain {
			return
		}

		if err := w.Settle(ctx, data.PaymentID); err != nil {
			w.log.Error("settlement failed", "payment_id", data.PaymentID, "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("subscribe payment.created: %w", err)
	}

	w.log.Info("relayer running", "chain", w.chain, "engine_url", w.engineURL)
	<-ctx.Done()
	return ctx.Err()
}

// Settle calls the engine's execute endpoint for the payment. A 409 means
// another authorized party settled it first; that is success from the
// worker's point of view.
func (w *Worker) Settle(ctx context.Context, paymentID uint32) error {
	return w.breaker.Execute(ctx, func() error {
		url := fmt.Sprintf("%s/api/v1/payments/%d/execute", w.engineURL, paymentID)
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+w.token)

		resp, err := w.client.Do(req)
		if err != nil {
			return fmt.Errorf("execute payment %d: %w", paymentID, err)
		}
		defer resp.Body.Close()

		switch resp.StatusCode {
		case http.StatusOK:
			w.log.Info("payment settled", "payment_id", paymentID)
			return nil
		case http.StatusConflict:
			w.log.Info("payment already settled", "payment_id", paymentID)
			return nil
		default:
			return fmt.Errorf("execute payment %d: unexpected status %d", paymentID, resp.StatusCode)
		}
	})
}
