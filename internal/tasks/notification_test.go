package tasks

import (
	"context"
	"errors"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/require"

	"github.com/pheme-net/pheme/internal/censor"
	"github.com/pheme-net/pheme/internal/entities"
	"github.com/pheme-net/pheme/internal/mail"
	mailmock "github.com/pheme-net/pheme/internal/mail/mock"
	"github.com/pheme-net/pheme/internal/storage"
	storagemock "github.com/pheme-net/pheme/internal/storage/mock"
)

func testRenderer(t *testing.T) *mail.Renderer {
	t.Helper()

	r, err := mail.NewRenderer(censor.New(), "http://example.com")
	require.NoError(t, err)

	return r
}

func TestNotifier_Notify(t *testing.T) {
	ctrl := gomock.NewController(t)

	s := storagemock.NewMockStorage(ctrl)
	sender := mailmock.NewMockSender(ctrl)

	n := NewNotifier(s, testRenderer(t), sender)

	post := &entities.Post{ID: 1, Title: "breaking", Text: "text"}

	s.EXPECT().GetPost(gomock.Any(), int64(1)).Return(post, nil)
	s.EXPECT().GetPostSubscribers(gomock.Any(), int64(1)).Return([]*entities.User{
		{ID: 1, Username: "alice", Email: "alice@example.com"},
		{ID: 2, Username: "bob", Email: "bob@example.com"},
	}, nil)

	var sent []*mail.Message
	sender.EXPECT().Send(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, m *mail.Message) error {
		sent = append(sent, m)
		return nil
	}).Times(2)

	require.NoError(t, n.Notify(context.Background(), 1))

	require.Len(t, sent, 2)
	require.Equal(t, "breaking", sent[0].Subject)
	require.Equal(t, []string{"alice@example.com"}, sent[0].To)
	require.Contains(t, sent[0].Body, "alice")
	require.Contains(t, sent[0].Body, "breaking")
	require.Equal(t, []string{"bob@example.com"}, sent[1].To)
}

func TestNotifier_Notify_postVanished(t *testing.T) {
	ctrl := gomock.NewController(t)

	s := storagemock.NewMockStorage(ctrl)
	sender := mailmock.NewMockSender(ctrl)

	n := NewNotifier(s, testRenderer(t), sender)

	// deleted between enqueue and execution: dropped, not retried
	s.EXPECT().GetPost(gomock.Any(), int64(1)).Return(nil, storage.ErrNotFound)

	require.NoError(t, n.Notify(context.Background(), 1))
}

func TestNotifier_Notify_storageError(t *testing.T) {
	ctrl := gomock.NewController(t)

	s := storagemock.NewMockStorage(ctrl)
	sender := mailmock.NewMockSender(ctrl)

	n := NewNotifier(s, testRenderer(t), sender)

	s.EXPECT().GetPost(gomock.Any(), int64(1)).Return(nil, errors.New("connection refused"))

	require.Error(t, n.Notify(context.Background(), 1))
}

func TestNotifier_Notify_noSubscribers(t *testing.T) {
	ctrl := gomock.NewController(t)

	s := storagemock.NewMockStorage(ctrl)
	sender := mailmock.NewMockSender(ctrl)

	n := NewNotifier(s, testRenderer(t), sender)

	s.EXPECT().GetPost(gomock.Any(), int64(1)).Return(&entities.Post{ID: 1}, nil)
	s.EXPECT().GetPostSubscribers(gomock.Any(), int64(1)).Return(nil, nil)

	require.NoError(t, n.Notify(context.Background(), 1))
}
