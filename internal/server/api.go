package server

import (
	"time"

	"github.com/pheme-net/pheme/internal/entities"
)

const maxLimit = 100
const maxPage = 1 << 20
const defaultLimit = 10

// Error ...
type Error struct {
	Error string `json:"error"`
}

// User ...
type User struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	CreatedAt uint64 `json:"createdAt"`
}

// Author ...
type Author struct {
	ID     int64   `json:"id"`
	UserID int64   `json:"userId"`
	Rating float64 `json:"rating"`
}

// Category ...
type Category struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Post ...
type Post struct {
	ID         int64      `json:"id"`
	AuthorID   int64      `json:"authorId"`
	Type       string     `json:"type"`
	Title      string     `json:"title"`
	Text       string     `json:"text"`
	Rating     int64      `json:"rating"`
	CreatedAt  uint64     `json:"createdAt"`
	Categories []Category `json:"categories"`
}

// Comment ...
type Comment struct {
	ID        int64  `json:"id"`
	PostID    int64  `json:"postId"`
	UserID    int64  `json:"userId"`
	Text      string `json:"text"`
	Rating    int64  `json:"rating"`
	CreatedAt uint64 `json:"createdAt"`
}

// CreateUserRequest ...
type CreateUserRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
}

// CreateCategoryRequest ...
type CreateCategoryRequest struct {
	Name string `json:"name"`
}

// SubscribeRequest ...
type SubscribeRequest struct {
	UserID int64 `json:"userId"`
}

// CreatePostRequest ...
type CreatePostRequest struct {
	AuthorID    int64   `json:"authorId"`
	Type        string  `json:"type"`
	Title       string  `json:"title"`
	Text        string  `json:"text"`
	CategoryIDs []int64 `json:"categoryIds"`
}

// UpdatePostRequest ...
type UpdatePostRequest struct {
	Title       string  `json:"title"`
	Text        string  `json:"text"`
	CategoryIDs []int64 `json:"categoryIds"`
}

// CreateCommentRequest ...
type CreateCommentRequest struct {
	UserID int64  `json:"userId"`
	Text   string `json:"text"`
}

// ListPostsResponse ...
type ListPostsResponse struct {
	Posts []*Post `json:"posts"`
}

// CategoryDetailResponse ...
type CategoryDetailResponse struct {
	Category Category `json:"category"`
	News     []*Post  `json:"news"`
	Articles []*Post  `json:"articles"`
}

// RatingResponse ...
type RatingResponse struct {
	Rating float64 `json:"rating"`
}

func toAPIUser(u *entities.User) *User {
	return &User{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		CreatedAt: toUnix(u.CreatedAt),
	}
}

func toAPIAuthor(a *entities.Author) *Author {
	return &Author{
		ID:     a.ID,
		UserID: a.UserID,
		Rating: a.Rating,
	}
}

func toAPICategory(c *entities.Category) Category {
	return Category{
		ID:   c.ID,
		Name: c.Name,
	}
}

func toAPIPost(p *entities.Post) *Post {
	cc := make([]Category, len(p.Categories))
	for i := range p.Categories {
		cc[i] = toAPICategory(&p.Categories[i])
	}

	return &Post{
		ID:         p.ID,
		AuthorID:   p.AuthorID,
		Type:       string(p.Type),
		Title:      p.Title,
		Text:       p.Text,
		Rating:     p.Rating,
		CreatedAt:  toUnix(p.CreatedAt),
		Categories: cc,
	}
}

func toAPIPosts(pp []*entities.Post) []*Post {
	out := make([]*Post, len(pp))
	for i, p := range pp {
		out[i] = toAPIPost(p)
	}

	return out
}

func toAPIComment(c *entities.Comment) *Comment {
	return &Comment{
		ID:        c.ID,
		PostID:    c.PostID,
		UserID:    c.UserID,
		Text:      c.Text,
		Rating:    c.Rating,
		CreatedAt: toUnix(c.CreatedAt),
	}
}

func toUnix(t time.Time) uint64 {
	return uint64(t.Unix())
}
