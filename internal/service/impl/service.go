// Package impl is implementation of service interface.
package impl

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/pheme-net/pheme/internal/cache"
	"github.com/pheme-net/pheme/internal/entities"
	"github.com/pheme-net/pheme/internal/service"
	"github.com/pheme-net/pheme/internal/storage"
	"github.com/pheme-net/pheme/internal/tasks"
)

var log = logrus.WithField("layer", "service")

type srv struct {
	s storage.Storage
	c cache.Cache
	q tasks.Queue

	now func() time.Time
}

// New creates new instance of service.
func New(s storage.Storage, c cache.Cache, q tasks.Queue) service.Service {
	return &srv{s: s, c: c, q: q, now: time.Now}
}

func (s *srv) CreateUser(ctx context.Context, username, email string) (*entities.User, error) {
	u, err := s.s.CreateUser(ctx, &storage.CreateUserParams{Username: username, Email: email})
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return u, nil
}

func (s *srv) GetUser(ctx context.Context, id int64) (*entities.User, error) {
	u, err := s.s.GetUser(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return u, nil
}

func (s *srv) BecomeAuthor(ctx context.Context, userID int64) (*entities.Author, error) {
	a, err := s.s.CreateAuthor(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to create author: %w", err)
	}

	return a, nil
}

func (s *srv) GetAuthor(ctx context.Context, id int64) (*entities.Author, error) {
	a, err := s.s.GetAuthor(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get author: %w", err)
	}

	return a, nil
}

// RecomputeAuthorRating recalculates the author's rating as
// 3*sum(post ratings) + sum(own comment ratings) + sum(ratings of comments
// under the author's posts) and stores the result. Pure recompute: running
// it twice without intervening writes yields the same value.
func (s *srv) RecomputeAuthorRating(ctx context.Context, id int64) (float64, error) {
	if _, err := s.s.GetAuthor(ctx, id); err != nil {
		return 0, fmt.Errorf("failed to get author: %w", err)
	}

	agg, err := s.s.GetAuthorRatingAggregates(ctx, id)
	if err != nil {
		return 0, fmt.Errorf("failed to get rating aggregates: %w", err)
	}

	rating := float64(3*agg.PostRating + agg.CommentRating + agg.PostCommentRating)

	if err := s.s.SetAuthorRating(ctx, id, rating); err != nil {
		return 0, fmt.Errorf("failed to set rating: %w", err)
	}

	return rating, nil
}

func (s *srv) CreateCategory(ctx context.Context, name string) (*entities.Category, error) {
	c, err := s.s.CreateCategory(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to create category: %w", err)
	}

	return c, nil
}

func (s *srv) GetCategoryDetail(ctx context.Context, id int64) (*service.CategoryDetail, error) {
	c, err := s.s.GetCategory(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get category: %w", err)
	}

	news := entities.PostTypeNews
	articles := entities.PostTypeArticle

	nn, err := s.s.ListPosts(ctx, &storage.ListPostsParams{Type: &news, CategoryID: &id, Limit: maxCategoryPosts})
	if err != nil {
		return nil, fmt.Errorf("failed to list news: %w", err)
	}

	aa, err := s.s.ListPosts(ctx, &storage.ListPostsParams{Type: &articles, CategoryID: &id, Limit: maxCategoryPosts})
	if err != nil {
		return nil, fmt.Errorf("failed to list articles: %w", err)
	}

	return &service.CategoryDetail{Category: c, News: nn, Articles: aa}, nil
}

const maxCategoryPosts = 100

func (s *srv) ListCategories(ctx context.Context) ([]*entities.Category, error) {
	cc, err := s.s.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}

	return cc, nil
}

func (s *srv) Subscribe(ctx context.Context, categoryID, userID int64) error {
	if err := s.s.AddSubscriber(ctx, categoryID, userID); err != nil {
		return fmt.Errorf("failed to add subscriber: %w", err)
	}

	return nil
}

func (s *srv) Unsubscribe(ctx context.Context, categoryID, userID int64) error {
	if err := s.s.RemoveSubscriber(ctx, categoryID, userID); err != nil {
		return fmt.Errorf("failed to remove subscriber: %w", err)
	}

	return nil
}

func (s *srv) CreatePost(ctx context.Context, p *storage.CreatePostParams) (*entities.Post, error) {
	if !p.Type.Valid() {
		return nil, service.ErrInvalidPostType
	}

	var post *entities.Post

	if err := s.s.InTx(ctx, func(tx storage.Storage) error {
		if p.Type == entities.PostTypeNews {
			count, err := tx.CountNewsSince(ctx, p.AuthorID, s.startOfDay())
			if err != nil {
				return fmt.Errorf("failed to count news: %w", err)
			}

			if count >= service.NewsPerDayLimit {
				return service.ErrNewsLimitExceeded
			}
		}

		var err error
		if post, err = tx.CreatePost(ctx, p); err != nil {
			return fmt.Errorf("failed to create post: %w", err)
		}

		return nil
	}); err != nil {
		return nil, err
	}

	// fan-out and invalidation run strictly after the commit: a delivery
	// failure never rolls the write back
	s.invalidateListings(ctx)
	s.enqueueNotification(ctx, post.ID)

	return post, nil
}

func (s *srv) GetPost(ctx context.Context, id int64) (*entities.Post, error) {
	key := cache.PostKey(id)

	var post entities.Post
	if s.cacheGet(ctx, key, &post) {
		return &post, nil
	}

	p, err := s.s.GetPost(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get post: %w", err)
	}

	s.cacheSet(ctx, key, p)

	return p, nil
}

func (s *srv) UpdatePost(ctx context.Context, p *storage.UpdatePostParams) (*entities.Post, error) {
	var post *entities.Post

	if err := s.s.InTx(ctx, func(tx storage.Storage) error {
		var err error
		if post, err = tx.UpdatePost(ctx, p); err != nil {
			return fmt.Errorf("failed to update post: %w", err)
		}

		return nil
	}); err != nil {
		return nil, err
	}

	s.invalidatePost(ctx, p.ID)
	s.invalidateListings(ctx)
	s.enqueueNotification(ctx, p.ID)

	return post, nil
}

func (s *srv) DeletePost(ctx context.Context, id int64) error {
	if err := s.s.DeletePost(ctx, id); err != nil {
		return fmt.Errorf("failed to delete post: %w", err)
	}

	s.invalidatePost(ctx, id)
	s.invalidateListings(ctx)

	return nil
}

func (s *srv) ListPosts(ctx context.Context, p *storage.ListPostsParams) ([]*entities.Post, error) {
	key := cache.ListKey(p)

	var posts []*entities.Post
	if s.cacheGet(ctx, key, &posts) {
		return posts, nil
	}

	posts, err := s.s.ListPosts(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}

	s.cacheSet(ctx, key, posts)

	return posts, nil
}

func (s *srv) LikePost(ctx context.Context, id int64) error {
	return s.votePost(ctx, id, 1)
}

func (s *srv) DislikePost(ctx context.Context, id int64) error {
	return s.votePost(ctx, id, -1)
}

func (s *srv) votePost(ctx context.Context, id int64, delta int64) error {
	if err := s.s.VotePost(ctx, id, delta); err != nil {
		return fmt.Errorf("failed to vote post: %w", err)
	}

	// keep the detail view in sync with the new rating
	s.cacheDelete(ctx, cache.PostKey(id))

	return nil
}

func (s *srv) AddComment(ctx context.Context, p *storage.CreateCommentParams) (*entities.Comment, error) {
	c, err := s.s.CreateComment(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("failed to create comment: %w", err)
	}

	s.cacheDelete(ctx, cache.PostCommentsKey(p.PostID))

	return c, nil
}

func (s *srv) ListComments(ctx context.Context, postID int64) ([]*entities.Comment, error) {
	key := cache.PostCommentsKey(postID)

	var comments []*entities.Comment
	if s.cacheGet(ctx, key, &comments) {
		return comments, nil
	}

	comments, err := s.s.ListComments(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}

	s.cacheSet(ctx, key, comments)

	return comments, nil
}

func (s *srv) LikeComment(ctx context.Context, id int64) error {
	return s.voteComment(ctx, id, 1)
}

func (s *srv) DislikeComment(ctx context.Context, id int64) error {
	return s.voteComment(ctx, id, -1)
}

func (s *srv) voteComment(ctx context.Context, id int64, delta int64) error {
	postID, err := s.s.VoteComment(ctx, id, delta)
	if err != nil {
		return fmt.Errorf("failed to vote comment: %w", err)
	}

	// keep the comment list in sync with the new rating
	s.cacheDelete(ctx, cache.PostCommentsKey(postID))

	return nil
}

// startOfDay returns midnight of the current calendar day, which bounds the
// news-per-day rule.
func (s *srv) startOfDay() time.Time {
	now := s.now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
}

func (s *srv) invalidatePost(ctx context.Context, id int64) {
	s.cacheDelete(ctx, cache.PostKey(id), cache.PostCommentsKey(id))
}

func (s *srv) invalidateListings(ctx context.Context) {
	for _, p := range []string{cache.PostListPattern, cache.SearchPattern} {
		if err := s.c.DeletePattern(ctx, p); err != nil {
			log.WithError(err).WithField("pattern", p).Warn("failed to invalidate cache pattern")
		}
	}
}

func (s *srv) enqueueNotification(ctx context.Context, postID int64) {
	// a lost enqueue means a silently missed notification, the write itself
	// is not affected
	if err := s.q.EnqueuePostNotification(ctx, postID); err != nil {
		log.WithError(err).WithField("post_id", postID).Error("failed to enqueue notification")
	}
}

func (s *srv) cacheGet(ctx context.Context, key string, out interface{}) bool {
	b, err := s.c.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			log.WithError(err).WithField("key", key).Warn("cache get failed")
		}
		return false
	}

	if err := json.Unmarshal(b, out); err != nil {
		log.WithError(err).WithField("key", key).Warn("failed to decode cached value")
		return false
	}

	return true
}

func (s *srv) cacheSet(ctx context.Context, key string, v interface{}) {
	b, err := json.Marshal(v)
	if err != nil {
		log.WithError(err).WithField("key", key).Warn("failed to encode value for cache")
		return
	}

	if err := s.c.Set(ctx, key, b); err != nil {
		log.WithError(err).WithField("key", key).Warn("cache set failed")
	}
}

func (s *srv) cacheDelete(ctx context.Context, keys ...string) {
	if err := s.c.Delete(ctx, keys...); err != nil {
		log.WithError(err).WithField("keys", keys).Warn("cache delete failed")
	}
}
