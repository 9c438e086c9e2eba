package tasks

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/require"

	"github.com/pheme-net/pheme/internal/entities"
	"github.com/pheme-net/pheme/internal/mail"
	mailmock "github.com/pheme-net/pheme/internal/mail/mock"
	storagemock "github.com/pheme-net/pheme/internal/storage/mock"
)

func startWorker(t *testing.T) (*gochannel.GoChannel, *storagemock.MockStorage, *mailmock.MockSender) {
	t.Helper()

	ctrl := gomock.NewController(t)

	s := storagemock.NewMockStorage(ctrl)
	sender := mailmock.NewMockSender(ctrl)
	renderer := testRenderer(t)

	logger := watermill.NopLogger{}
	pubsub := gochannel.NewGoChannel(gochannel.Config{}, logger)

	w, err := NewWorker(
		pubsub,
		logger,
		NewNotifier(s, renderer, sender),
		NewDigest(s, renderer, sender, DefaultDigestWindow),
		NewNewsletter(s, renderer, sender, DefaultDigestWindow),
	)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	go func() {
		_ = w.Run(ctx)
	}()

	select {
	case <-w.Running():
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not start")
	}

	return pubsub, s, sender
}

func TestWorker_PostNotification(t *testing.T) {
	pubsub, s, sender := startWorker(t)

	done := make(chan struct{})

	s.EXPECT().GetPost(gomock.Any(), int64(1)).Return(&entities.Post{ID: 1, Title: "title"}, nil)
	s.EXPECT().GetPostSubscribers(gomock.Any(), int64(1)).Return([]*entities.User{
		{Username: "alice", Email: "alice@example.com"},
	}, nil)
	sender.EXPECT().Send(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, _ *mail.Message) error {
		close(done)
		return nil
	})

	q := NewQueue(pubsub)
	require.NoError(t, q.EnqueuePostNotification(context.Background(), 1))

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("notification was not processed")
	}
}

func TestWorker_PostNotification_malformedPayloadDropped(t *testing.T) {
	pubsub, s, sender := startWorker(t)

	done := make(chan struct{})

	s.EXPECT().GetPost(gomock.Any(), int64(2)).Return(&entities.Post{ID: 2, Title: "title"}, nil)
	s.EXPECT().GetPostSubscribers(gomock.Any(), int64(2)).Return([]*entities.User{
		{Username: "alice", Email: "alice@example.com"},
	}, nil)
	sender.EXPECT().Send(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, _ *mail.Message) error {
		close(done)
		return nil
	})

	// a payload that can not be decoded is acked, not retried, and must not
	// block the following message
	require.NoError(t, pubsub.Publish(TopicPostNotification, message.NewMessage(watermill.NewUUID(), []byte("not json"))))

	q := NewQueue(pubsub)
	require.NoError(t, q.EnqueuePostNotification(context.Background(), 2))

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("valid message after a malformed one was not processed")
	}
}

func TestWorker_WeeklyDigest(t *testing.T) {
	pubsub, s, _ := startWorker(t)

	done := make(chan struct{})

	s.EXPECT().ListSubscribedUsers(gomock.Any()).DoAndReturn(func(_ context.Context) ([]*entities.User, error) {
		close(done)
		return nil, nil
	})

	q := NewQueue(pubsub)
	require.NoError(t, q.EnqueueWeeklyDigest(context.Background()))

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("digest was not triggered")
	}
}
