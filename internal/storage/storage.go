// Package storage contains a storage interface.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/pheme-net/pheme/internal/entities"
)

//go:generate mockgen -destination=./mock/storage.go -package=mock -source=storage.go

// ErrNotFound returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// ErrAlreadyExists returned when a unique constraint is violated.
var ErrAlreadyExists = errors.New("already exists")

// Storage provides methods for interacting with database.
type Storage interface {
	InTx(ctx context.Context, f func(s Storage) error) error
	Ping(ctx context.Context) error

	CreateUser(ctx context.Context, p *CreateUserParams) (*entities.User, error)
	GetUser(ctx context.Context, id int64) (*entities.User, error)

	CreateAuthor(ctx context.Context, userID int64) (*entities.Author, error)
	GetAuthor(ctx context.Context, id int64) (*entities.Author, error)
	SetAuthorRating(ctx context.Context, id int64, rating float64) error
	GetAuthorRatingAggregates(ctx context.Context, id int64) (*RatingAggregates, error)

	CreateCategory(ctx context.Context, name string) (*entities.Category, error)
	GetCategory(ctx context.Context, id int64) (*entities.Category, error)
	ListCategories(ctx context.Context) ([]*entities.Category, error)
	AddSubscriber(ctx context.Context, categoryID, userID int64) error
	RemoveSubscriber(ctx context.Context, categoryID, userID int64) error

	CreatePost(ctx context.Context, p *CreatePostParams) (*entities.Post, error)
	GetPost(ctx context.Context, id int64) (*entities.Post, error)
	UpdatePost(ctx context.Context, p *UpdatePostParams) (*entities.Post, error)
	DeletePost(ctx context.Context, id int64) error
	ListPosts(ctx context.Context, p *ListPostsParams) ([]*entities.Post, error)
	SetPostCategories(ctx context.Context, postID int64, categoryIDs []int64) error
	VotePost(ctx context.Context, id int64, delta int64) error
	CountNewsSince(ctx context.Context, authorID int64, since time.Time) (int64, error)

	CreateComment(ctx context.Context, p *CreateCommentParams) (*entities.Comment, error)
	ListComments(ctx context.Context, postID int64) ([]*entities.Comment, error)
	// VoteComment adjusts the comment's rating and reports the post the
	// comment belongs to.
	VoteComment(ctx context.Context, id int64, delta int64) (postID int64, err error)

	GetPostSubscribers(ctx context.Context, postID int64) ([]*entities.User, error)
	ListSubscribedUsers(ctx context.Context) ([]*entities.User, error)
	ListPostsSince(ctx context.Context, since time.Time) ([]*entities.Post, error)
	ListSubscribedPostsSince(ctx context.Context, userID int64, since time.Time) ([]*entities.Post, error)
}

// CreateUserParams ...
type CreateUserParams struct {
	Username string
	Email    string
}

// CreatePostParams ...
type CreatePostParams struct {
	AuthorID    int64
	Type        entities.PostType
	Title       string
	Text        string
	CategoryIDs []int64
}

// UpdatePostParams ...
type UpdatePostParams struct {
	ID          int64
	Title       string
	Text        string
	CategoryIDs []int64
}

// CreateCommentParams ...
type CreateCommentParams struct {
	PostID int64
	UserID int64
	Text   string
}

// ListPostsParams filters and paginates post listings. Nil values mean
// "no filter"; Limit is mandatory.
type ListPostsParams struct {
	Type          *entities.PostType
	CategoryID    *int64
	TitleContains *string
	AuthorName    *string
	CreatedAfter  *time.Time
	Limit         uint16
	Offset        uint32
}

// HasFilters reports whether any search filter beyond paging is set.
func (p ListPostsParams) HasFilters() bool {
	return p.Type != nil || p.CategoryID != nil || p.TitleContains != nil ||
		p.AuthorName != nil || p.CreatedAfter != nil
}

// RatingAggregates are the three sums the author rating is derived from.
// Every field is zero when no matching rows exist.
type RatingAggregates struct {
	PostRating        int64 // sum of the author's posts' ratings
	CommentRating     int64 // sum of the author's own comments' ratings
	PostCommentRating int64 // sum of ratings of comments under the author's posts
}
