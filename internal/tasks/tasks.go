// Package tasks contains the asynchronous side of the write pipeline:
// notification fan-out and the weekly digest jobs, dispatched over a
// watermill Pub/Sub. Delivery is at-least-once, so every handler tolerates
// being run again for the same message.
package tasks

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
)

//go:generate mockgen -destination=./mock/tasks.go -package=mock -source=tasks.go

// Topic names of the task entry points.
const (
	TopicPostNotification = "post.notification"
	TopicWeeklyDigest     = "digest.weekly"
	TopicWeeklyNewsletter = "newsletter.weekly"
)

// PostNotificationPayload ...
type PostNotificationPayload struct {
	PostID int64 `json:"post_id"`
}

// Queue schedules tasks for asynchronous execution. Enqueueing succeeds or
// fails independently of the database write that triggered it.
type Queue interface {
	EnqueuePostNotification(ctx context.Context, postID int64) error
	EnqueueWeeklyDigest(ctx context.Context) error
	EnqueueWeeklyNewsletter(ctx context.Context) error
}

type queue struct {
	pub message.Publisher
}

// NewQueue creates a queue on top of a watermill publisher.
func NewQueue(pub message.Publisher) Queue {
	return queue{pub: pub}
}

func (q queue) EnqueuePostNotification(ctx context.Context, postID int64) error {
	b, err := json.Marshal(PostNotificationPayload{PostID: postID})
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	return q.publish(ctx, TopicPostNotification, b)
}

func (q queue) EnqueueWeeklyDigest(ctx context.Context) error {
	return q.publish(ctx, TopicWeeklyDigest, nil)
}

func (q queue) EnqueueWeeklyNewsletter(ctx context.Context) error {
	return q.publish(ctx, TopicWeeklyNewsletter, nil)
}

func (q queue) publish(ctx context.Context, topic string, payload []byte) error {
	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.SetContext(ctx)

	if err := q.pub.Publish(topic, msg); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic, err)
	}

	return nil
}
