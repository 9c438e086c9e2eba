package tasks

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/pheme-net/pheme/internal/mail"
	"github.com/pheme-net/pheme/internal/storage"
)

var log = logrus.WithField("package", "tasks")

// Notifier delivers one message per distinct subscriber of a post's
// categories. A post without categories or subscribers is a no-op.
type Notifier struct {
	s        storage.Storage
	renderer *mail.Renderer
	sender   mail.Sender
}

// NewNotifier ...
func NewNotifier(s storage.Storage, renderer *mail.Renderer, sender mail.Sender) *Notifier {
	return &Notifier{s: s, renderer: renderer, sender: sender}
}

// Notify fans a post out to its subscribers. A missing post is dropped
// without error: the post was deleted between enqueue and execution, there
// is nobody left to notify.
func (n *Notifier) Notify(ctx context.Context, postID int64) error {
	post, err := n.s.GetPost(ctx, postID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			log.WithField("post_id", postID).Warn("post vanished before notification, dropping")
			return nil
		}

		return fmt.Errorf("failed to get post: %w", err)
	}

	subscribers, err := n.s.GetPostSubscribers(ctx, postID)
	if err != nil {
		return fmt.Errorf("failed to get subscribers: %w", err)
	}

	for _, u := range subscribers {
		body, err := n.renderer.Notification(u.Username, post)
		if err != nil {
			return fmt.Errorf("failed to render notification: %w", err)
		}

		if err := n.sender.Send(ctx, &mail.Message{
			Subject: post.Title,
			Body:    body,
			To:      []string{u.Email},
		}); err != nil {
			return fmt.Errorf("failed to send notification to %s: %w", u.Email, err)
		}
	}

	log.WithField("post_id", postID).WithField("recipients", len(subscribers)).
		Debug("post notification sent")

	return nil
}
