// Package entities contains main entities of service.
package entities

import (
	"time"
)

// PreviewLength is the number of leading runes of a post's text included
// into notification messages. Longer texts are cut and get "..." appended.
const PreviewLength = 124

// PostType separates short news posts from full articles.
type PostType string

const (
	// PostTypeNews ...
	PostTypeNews PostType = "news"
	// PostTypeArticle ...
	PostTypeArticle PostType = "article"
)

// Valid reports whether t is one of the known post types.
func (t PostType) Valid() bool {
	return t == PostTypeNews || t == PostTypeArticle
}

// User ...
type User struct {
	ID        int64
	Username  string
	Email     string
	CreatedAt time.Time
}

// Author wraps a user who is allowed to publish posts. Rating is a derived
// value, recomputable at any time from post and comment aggregates.
type Author struct {
	ID        int64
	UserID    int64
	Rating    float64
	CreatedAt time.Time
}

// Category ...
type Category struct {
	ID   int64
	Name string
}

// Post ...
type Post struct {
	ID         int64
	AuthorID   int64
	Type       PostType
	Title      string
	Text       string
	Rating     int64
	CreatedAt  time.Time
	Categories []Category
}

// Preview returns the first PreviewLength runes of the post's text,
// with "..." appended when the text was truncated.
func (p Post) Preview() string {
	r := []rune(p.Text)
	if len(r) <= PreviewLength {
		return p.Text
	}

	return string(r[:PreviewLength]) + "..."
}

// Comment ...
type Comment struct {
	ID        int64
	PostID    int64
	UserID    int64
	Text      string
	Rating    int64
	CreatedAt time.Time
}
