// Package service contains interface for service business-logic.
package service

import (
	"context"
	"errors"

	"github.com/pheme-net/pheme/internal/entities"
	"github.com/pheme-net/pheme/internal/storage"
)

//go:generate mockgen -destination=./mock/service.go -package=mock -source=service.go

// NewsPerDayLimit is the most news posts an author may publish per
// calendar day.
const NewsPerDayLimit = 3

// ErrNewsLimitExceeded returned when an author tries to publish more than
// NewsPerDayLimit news posts in one calendar day.
var ErrNewsLimitExceeded = errors.New("news per day limit exceeded")

// ErrInvalidPostType returned when a post carries an unknown type tag.
var ErrInvalidPostType = errors.New("invalid post type")

// CategoryDetail is a category with its posts split by type.
type CategoryDetail struct {
	Category *entities.Category
	News     []*entities.Post
	Articles []*entities.Post
}

// Service is the write pipeline and the cached read path. Every mutation of
// a post runs storage write, cache invalidation and task enqueue in that
// order, exactly once.
type Service interface {
	CreateUser(ctx context.Context, username, email string) (*entities.User, error)
	GetUser(ctx context.Context, id int64) (*entities.User, error)
	BecomeAuthor(ctx context.Context, userID int64) (*entities.Author, error)
	GetAuthor(ctx context.Context, id int64) (*entities.Author, error)
	RecomputeAuthorRating(ctx context.Context, id int64) (float64, error)

	CreateCategory(ctx context.Context, name string) (*entities.Category, error)
	GetCategoryDetail(ctx context.Context, id int64) (*CategoryDetail, error)
	ListCategories(ctx context.Context) ([]*entities.Category, error)
	Subscribe(ctx context.Context, categoryID, userID int64) error
	Unsubscribe(ctx context.Context, categoryID, userID int64) error

	CreatePost(ctx context.Context, p *storage.CreatePostParams) (*entities.Post, error)
	GetPost(ctx context.Context, id int64) (*entities.Post, error)
	UpdatePost(ctx context.Context, p *storage.UpdatePostParams) (*entities.Post, error)
	DeletePost(ctx context.Context, id int64) error
	ListPosts(ctx context.Context, p *storage.ListPostsParams) ([]*entities.Post, error)
	LikePost(ctx context.Context, id int64) error
	DislikePost(ctx context.Context, id int64) error

	AddComment(ctx context.Context, p *storage.CreateCommentParams) (*entities.Comment, error)
	ListComments(ctx context.Context, postID int64) ([]*entities.Comment, error)
	LikeComment(ctx context.Context, id int64) error
	DislikeComment(ctx context.Context, id int64) error
}
