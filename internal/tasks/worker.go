package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
)

const maxRetries = 3

// Worker consumes task messages and runs the matching handler. Handlers
// returning an error are retried by the router; after the retries run out
// the message is dropped.
type Worker struct {
	router *message.Router
}

// NewWorker wires the task handlers to their topics.
func NewWorker(
	sub message.Subscriber,
	logger watermill.LoggerAdapter,
	notifier *Notifier,
	digest *Digest,
	newsletter *Newsletter,
) (*Worker, error) {
	router, err := message.NewRouter(message.RouterConfig{}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create router: %w", err)
	}

	router.AddMiddleware(
		middleware.Recoverer,
		middleware.Retry{
			MaxRetries:      maxRetries,
			InitialInterval: time.Second,
			Logger:          logger,
		}.Middleware,
	)

	router.AddNoPublisherHandler(
		"send_post_notification",
		TopicPostNotification,
		sub,
		func(msg *message.Message) error {
			var p PostNotificationPayload
			if err := json.Unmarshal(msg.Payload, &p); err != nil {
				// malformed payloads can not succeed on retry
				log.WithError(err).Error("dropping malformed notification payload")
				return nil
			}

			return notifier.Notify(msg.Context(), p.PostID)
		},
	)

	router.AddNoPublisherHandler(
		"send_weekly_digest",
		TopicWeeklyDigest,
		sub,
		func(msg *message.Message) error {
			return digest.Run(msg.Context())
		},
	)

	router.AddNoPublisherHandler(
		"send_weekly_newsletter",
		TopicWeeklyNewsletter,
		sub,
		func(msg *message.Message) error {
			return newsletter.Run(msg.Context())
		},
	)

	return &Worker{router: router}, nil
}

// Run blocks consuming messages until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	return w.router.Run(ctx)
}

// Running returns a channel closed when the router has started.
func (w *Worker) Running() <-chan struct{} {
	return w.router.Running()
}
