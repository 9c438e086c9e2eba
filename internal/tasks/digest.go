package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/pheme-net/pheme/internal/mail"
	"github.com/pheme-net/pheme/internal/storage"
)

// DefaultDigestWindow is the rolling window the weekly jobs look back over.
// A rolling window is used instead of calendar weeks so a run near a week
// boundary can not miss posts.
const DefaultDigestWindow = 7 * 24 * time.Hour

const digestSubject = "New posts of the week"
const newsletterSubject = "Weekly newsletter"

// Digest sends each subscribed user one message aggregating the window's
// posts in that user's categories. Users with no matching posts get nothing.
type Digest struct {
	s        storage.Storage
	renderer *mail.Renderer
	sender   mail.Sender
	window   time.Duration

	now func() time.Time
}

// NewDigest ...
func NewDigest(s storage.Storage, renderer *mail.Renderer, sender mail.Sender, window time.Duration) *Digest {
	if window == 0 {
		window = DefaultDigestWindow
	}

	return &Digest{s: s, renderer: renderer, sender: sender, window: window, now: time.Now}
}

// Run computes and sends the digest once. Safe to re-run: it recomputes
// from the database and at worst re-sends the same messages.
func (d *Digest) Run(ctx context.Context) error {
	since := d.now().Add(-d.window)

	users, err := d.s.ListSubscribedUsers(ctx)
	if err != nil {
		return fmt.Errorf("failed to list subscribed users: %w", err)
	}

	var sent int
	for _, u := range users {
		posts, err := d.s.ListSubscribedPostsSince(ctx, u.ID, since)
		if err != nil {
			return fmt.Errorf("failed to list posts for user %d: %w", u.ID, err)
		}

		if len(posts) == 0 {
			continue
		}

		body, err := d.renderer.Digest(u.Username, posts)
		if err != nil {
			return fmt.Errorf("failed to render digest: %w", err)
		}

		if err := d.sender.Send(ctx, &mail.Message{
			Subject: digestSubject,
			Body:    body,
			To:      []string{u.Email},
		}); err != nil {
			return fmt.Errorf("failed to send digest to %s: %w", u.Email, err)
		}

		sent++
	}

	log.WithField("recipients", sent).Info("weekly digest sent")

	return nil
}

// Newsletter sends every subscribed user the full list of the window's
// posts, without per-user category filtering.
type Newsletter struct {
	s        storage.Storage
	renderer *mail.Renderer
	sender   mail.Sender
	window   time.Duration

	now func() time.Time
}

// NewNewsletter ...
func NewNewsletter(s storage.Storage, renderer *mail.Renderer, sender mail.Sender, window time.Duration) *Newsletter {
	if window == 0 {
		window = DefaultDigestWindow
	}

	return &Newsletter{s: s, renderer: renderer, sender: sender, window: window, now: time.Now}
}

// Run computes and sends the newsletter once.
func (n *Newsletter) Run(ctx context.Context) error {
	since := n.now().Add(-n.window)

	posts, err := n.s.ListPostsSince(ctx, since)
	if err != nil {
		return fmt.Errorf("failed to list posts: %w", err)
	}

	if len(posts) == 0 {
		log.Info("no posts for newsletter, skipping")
		return nil
	}

	users, err := n.s.ListSubscribedUsers(ctx)
	if err != nil {
		return fmt.Errorf("failed to list subscribed users: %w", err)
	}

	for _, u := range users {
		body, err := n.renderer.Newsletter(u.Username, posts)
		if err != nil {
			return fmt.Errorf("failed to render newsletter: %w", err)
		}

		if err := n.sender.Send(ctx, &mail.Message{
			Subject: newsletterSubject,
			Body:    body,
			To:      []string{u.Email},
		}); err != nil {
			return fmt.Errorf("failed to send newsletter to %s: %w", u.Email, err)
		}
	}

	log.WithField("recipients", len(users)).Info("weekly newsletter sent")

	return nil
}
