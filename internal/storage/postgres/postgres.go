// Package postgres is implementation of storage interface.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/pheme-net/pheme/internal/entities"
	"github.com/pheme-net/pheme/internal/storage"
)

var log = logrus.WithField("layer", "storage").WithField("package", "postgres")
var errBeginCalledWithinTx = errors.New("can not run InTx within tx")

const (
	foreignKeyViolation = "23503"
	uniqueViolation     = "23505"
)

type pg struct {
	ext sqlx.ExtContext
}

// New creates new instance of pg.
func New(db *sql.DB) storage.Storage {
	return pg{
		ext: sqlx.NewDb(db, "postgres"),
	}
}

type userDTO struct {
	ID        int64     `db:"id"`
	Username  string    `db:"username"`
	Email     string    `db:"email"`
	CreatedAt time.Time `db:"created_at"`
}

type authorDTO struct {
	ID        int64     `db:"id"`
	UserID    int64     `db:"user_id"`
	Rating    float64   `db:"rating"`
	CreatedAt time.Time `db:"created_at"`
}

type categoryDTO struct {
	ID   int64  `db:"id"`
	Name string `db:"name"`
}

type postDTO struct {
	ID        int64     `db:"id"`
	AuthorID  int64     `db:"author_id"`
	Type      string    `db:"type"`
	Title     string    `db:"title"`
	Text      string    `db:"text"`
	Rating    int64     `db:"rating"`
	CreatedAt time.Time `db:"created_at"`
}

type commentDTO struct {
	ID        int64     `db:"id"`
	PostID    int64     `db:"post_id"`
	UserID    int64     `db:"user_id"`
	Text      string    `db:"text"`
	Rating    int64     `db:"rating"`
	CreatedAt time.Time `db:"created_at"`
}

func (s pg) InTx(ctx context.Context, f func(s storage.Storage) error) error {
	db, ok := s.ext.(*sqlx.DB)
	if !ok {
		return errBeginCalledWithinTx
	}

	tx, err := db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("failed to create tx: %w", err)
	}

	if err := f(pg{ext: tx}); err != nil {
		if err := tx.Rollback(); err != nil {
			log.WithError(err).Error("failed to rollback tx")
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit tx: %w", err)
	}

	return nil
}

func (s pg) Ping(ctx context.Context) error {
	var one int
	if err := sqlx.GetContext(ctx, s.ext, &one, `SELECT 1`); err != nil {
		return fmt.Errorf("failed to ping: %w", err)
	}

	return nil
}

func (s pg) CreateUser(ctx context.Context, p *storage.CreateUserParams) (*entities.User, error) {
	var u userDTO

	if err := sqlx.GetContext(ctx, s.ext, &u, `
			INSERT INTO users(username, email) VALUES($1, $2)
			RETURNING id, username, email, created_at
		`, p.Username, p.Email,
	); err != nil {
		if isPqError(err, uniqueViolation) {
			return nil, storage.ErrAlreadyExists
		}

		return nil, fmt.Errorf("failed to exec: %w", err)
	}

	return toUser(u), nil
}

func (s pg) GetUser(ctx context.Context, id int64) (*entities.User, error) {
	var u userDTO

	if err := sqlx.GetContext(ctx, s.ext, &u,
		`SELECT id, username, email, created_at FROM users WHERE id = $1`, id,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}

		return nil, fmt.Errorf("failed to query: %w", err)
	}

	return toUser(u), nil
}

func (s pg) CreateAuthor(ctx context.Context, userID int64) (*entities.Author, error) {
	var a authorDTO

	if err := sqlx.GetContext(ctx, s.ext, &a, `
			INSERT INTO author(user_id) VALUES($1)
			RETURNING id, user_id, rating, created_at
		`, userID,
	); err != nil {
		if isPqError(err, foreignKeyViolation) {
			return nil, storage.ErrNotFound
		}
		if isPqError(err, uniqueViolation) {
			return nil, storage.ErrAlreadyExists
		}

		return nil, fmt.Errorf("failed to exec: %w", err)
	}

	return toAuthor(a), nil
}

func (s pg) GetAuthor(ctx context.Context, id int64) (*entities.Author, error) {
	var a authorDTO

	if err := sqlx.GetContext(ctx, s.ext, &a,
		`SELECT id, user_id, rating, created_at FROM author WHERE id = $1`, id,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}

		return nil, fmt.Errorf("failed to query: %w", err)
	}

	return toAuthor(a), nil
}

func (s pg) SetAuthorRating(ctx context.Context, id int64, rating float64) error {
	res, err := s.ext.ExecContext(ctx, `UPDATE author SET rating = $2 WHERE id = $1`, id, rating)
	if err != nil {
		return fmt.Errorf("failed to exec: %w", err)
	}

	if c, _ := res.RowsAffected(); c == 0 {
		return storage.ErrNotFound
	}

	return nil
}

func (s pg) GetAuthorRatingAggregates(ctx context.Context, id int64) (*storage.RatingAggregates, error) {
	var out struct {
		PostRating        int64 `db:"post_rating"`
		CommentRating     int64 `db:"comment_rating"`
		PostCommentRating int64 `db:"post_comment_rating"`
	}

	if err := sqlx.GetContext(ctx, s.ext, &out, `
			SELECT
				COALESCE((SELECT SUM(rating) FROM post WHERE author_id = $1), 0) AS post_rating,
				COALESCE((
					SELECT SUM(c.rating) FROM comment c
					JOIN author a ON a.user_id = c.user_id
					WHERE a.id = $1
				), 0) AS comment_rating,
				COALESCE((
					SELECT SUM(c.rating) FROM comment c
					JOIN post p ON p.id = c.post_id
					WHERE p.author_id = $1
				), 0) AS post_comment_rating
		`, id,
	); err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}

	return &storage.RatingAggregates{
		PostRating:        out.PostRating,
		CommentRating:     out.CommentRating,
		PostCommentRating: out.PostCommentRating,
	}, nil
}

func (s pg) CreateCategory(ctx context.Context, name string) (*entities.Category, error) {
	var c categoryDTO

	if err := sqlx.GetContext(ctx, s.ext, &c,
		`INSERT INTO category(name) VALUES($1) RETURNING id, name`, name,
	); err != nil {
		if isPqError(err, uniqueViolation) {
			return nil, storage.ErrAlreadyExists
		}

		return nil, fmt.Errorf("failed to exec: %w", err)
	}

	return &entities.Category{ID: c.ID, Name: c.Name}, nil
}

func (s pg) GetCategory(ctx context.Context, id int64) (*entities.Category, error) {
	var c categoryDTO

	if err := sqlx.GetContext(ctx, s.ext, &c,
		`SELECT id, name FROM category WHERE id = $1`, id,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}

		return nil, fmt.Errorf("failed to query: %w", err)
	}

	return &entities.Category{ID: c.ID, Name: c.Name}, nil
}

func (s pg) ListCategories(ctx context.Context) ([]*entities.Category, error) {
	var cc []*categoryDTO

	if err := sqlx.SelectContext(ctx, s.ext, &cc, `SELECT id, name FROM category ORDER BY name`); err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}

	out := make([]*entities.Category, len(cc))
	for i, v := range cc {
		out[i] = &entities.Category{ID: v.ID, Name: v.Name}
	}

	return out, nil
}

func (s pg) AddSubscriber(ctx context.Context, categoryID, userID int64) error {
	if _, err := s.ext.ExecContext(ctx, `
			INSERT INTO category_subscriber(category_id, user_id) VALUES($1, $2)
			ON CONFLICT DO NOTHING
		`, categoryID, userID,
	); err != nil {
		if isPqError(err, foreignKeyViolation) {
			return storage.ErrNotFound
		}

		return fmt.Errorf("failed to exec: %w", err)
	}

	return nil
}

func (s pg) RemoveSubscriber(ctx context.Context, categoryID, userID int64) error {
	if _, err := s.ext.ExecContext(ctx,
		`DELETE FROM category_subscriber WHERE category_id = $1 AND user_id = $2`,
		categoryID, userID,
	); err != nil {
		return fmt.Errorf("failed to exec: %w", err)
	}

	return nil
}

func (s pg) CreatePost(ctx context.Context, p *storage.CreatePostParams) (*entities.Post, error) {
	var dto postDTO

	if err := sqlx.GetContext(ctx, s.ext, &dto, `
			INSERT INTO post(author_id, type, title, text) VALUES($1, $2, $3, $4)
			RETURNING id, author_id, type, title, text, rating, created_at
		`, p.AuthorID, string(p.Type), p.Title, p.Text,
	); err != nil {
		if isPqError(err, foreignKeyViolation) {
			return nil, storage.ErrNotFound
		}

		return nil, fmt.Errorf("failed to exec: %w", err)
	}

	if err := s.SetPostCategories(ctx, dto.ID, p.CategoryIDs); err != nil {
		return nil, err
	}

	return s.GetPost(ctx, dto.ID)
}

func (s pg) GetPost(ctx context.Context, id int64) (*entities.Post, error) {
	var dto postDTO

	if err := sqlx.GetContext(ctx, s.ext, &dto, `
			SELECT id, author_id, type, title, text, rating, created_at
			FROM post WHERE id = $1
		`, id,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}

		return nil, fmt.Errorf("failed to query: %w", err)
	}

	posts := []*entities.Post{toPost(dto)}
	if err := s.loadCategories(ctx, posts); err != nil {
		return nil, err
	}

	return posts[0], nil
}

func (s pg) UpdatePost(ctx context.Context, p *storage.UpdatePostParams) (*entities.Post, error) {
	res, err := s.ext.ExecContext(ctx,
		`UPDATE post SET title = $2, text = $3 WHERE id = $1`,
		p.ID, p.Title, p.Text,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to exec: %w", err)
	}

	if c, _ := res.RowsAffected(); c == 0 {
		return nil, storage.ErrNotFound
	}

	if err := s.SetPostCategories(ctx, p.ID, p.CategoryIDs); err != nil {
		return nil, err
	}

	return s.GetPost(ctx, p.ID)
}

func (s pg) DeletePost(ctx context.Context, id int64) error {
	res, err := s.ext.ExecContext(ctx, `DELETE FROM post WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to exec: %w", err)
	}

	if c, _ := res.RowsAffected(); c == 0 {
		return storage.ErrNotFound
	}

	return nil
}

// nolint: gocyclo
func (s pg) ListPosts(ctx context.Context, p *storage.ListPostsParams) ([]*entities.Post, error) {
	where := make([]string, 0, 5)
	args := make([]interface{}, 0, 7)

	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if p.Type != nil {
		where = append(where, fmt.Sprintf("p.type = %s", arg(string(*p.Type))))
	}

	if p.CategoryID != nil {
		where = append(where, fmt.Sprintf(
			"EXISTS (SELECT 1 FROM post_category pc WHERE pc.post_id = p.id AND pc.category_id = %s)",
			arg(*p.CategoryID)))
	}

	if p.TitleContains != nil {
		where = append(where, fmt.Sprintf("p.title ILIKE '%%' || %s || '%%'", arg(*p.TitleContains)))
	}

	if p.AuthorName != nil {
		where = append(where, fmt.Sprintf(`
			EXISTS (
				SELECT 1 FROM author a JOIN users u ON u.id = a.user_id
				WHERE a.id = p.author_id AND u.username ILIKE '%%' || %s || '%%'
			)`, arg(*p.AuthorName)))
	}

	if p.CreatedAfter != nil {
		where = append(where, fmt.Sprintf("p.created_at > %s", arg(p.CreatedAfter.UTC())))
	}

	query := `SELECT p.id, p.author_id, p.type, p.title, p.text, p.rating, p.created_at FROM post p`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += fmt.Sprintf(" ORDER BY p.created_at DESC, p.id DESC LIMIT %s OFFSET %s", arg(p.Limit), arg(p.Offset))

	var dto []postDTO
	if err := sqlx.SelectContext(ctx, s.ext, &dto, query, args...); err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}

	out := make([]*entities.Post, len(dto))
	for i, v := range dto {
		out[i] = toPost(v)
	}

	if err := s.loadCategories(ctx, out); err != nil {
		return nil, err
	}

	return out, nil
}

func (s pg) SetPostCategories(ctx context.Context, postID int64, categoryIDs []int64) error {
	// the post's category set is replaced wholesale, never diffed
	if _, err := s.ext.ExecContext(ctx, `DELETE FROM post_category WHERE post_id = $1`, postID); err != nil {
		return fmt.Errorf("failed to exec: %w", err)
	}

	for _, id := range categoryIDs {
		if _, err := s.ext.ExecContext(ctx,
			`INSERT INTO post_category(post_id, category_id) VALUES($1, $2)`,
			postID, id,
		); err != nil {
			if isPqError(err, foreignKeyViolation) {
				return storage.ErrNotFound
			}

			return fmt.Errorf("failed to exec: %w", err)
		}
	}

	return nil
}

func (s pg) VotePost(ctx context.Context, id int64, delta int64) error {
	res, err := s.ext.ExecContext(ctx, `UPDATE post SET rating = rating + $2 WHERE id = $1`, id, delta)
	if err != nil {
		return fmt.Errorf("failed to exec: %w", err)
	}

	if c, _ := res.RowsAffected(); c == 0 {
		return storage.ErrNotFound
	}

	return nil
}

func (s pg) CountNewsSince(ctx context.Context, authorID int64, since time.Time) (int64, error) {
	var count int64

	if err := sqlx.GetContext(ctx, s.ext, &count, `
			SELECT COUNT(*) FROM post
			WHERE author_id = $1 AND type = $2 AND created_at >= $3
		`, authorID, string(entities.PostTypeNews), since.UTC(),
	); err != nil {
		return 0, fmt.Errorf("failed to query: %w", err)
	}

	return count, nil
}

func (s pg) CreateComment(ctx context.Context, p *storage.CreateCommentParams) (*entities.Comment, error) {
	var dto commentDTO

	if err := sqlx.GetContext(ctx, s.ext, &dto, `
			INSERT INTO comment(post_id, user_id, text) VALUES($1, $2, $3)
			RETURNING id, post_id, user_id, text, rating, created_at
		`, p.PostID, p.UserID, p.Text,
	); err != nil {
		if isPqError(err, foreignKeyViolation) {
			return nil, storage.ErrNotFound
		}

		return nil, fmt.Errorf("failed to exec: %w", err)
	}

	return toComment(dto), nil
}

func (s pg) ListComments(ctx context.Context, postID int64) ([]*entities.Comment, error) {
	var dto []commentDTO

	if err := sqlx.SelectContext(ctx, s.ext, &dto, `
			SELECT id, post_id, user_id, text, rating, created_at
			FROM comment WHERE post_id = $1 ORDER BY created_at, id
		`, postID,
	); err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}

	out := make([]*entities.Comment, len(dto))
	for i, v := range dto {
		out[i] = toComment(v)
	}

	return out, nil
}

func (s pg) VoteComment(ctx context.Context, id int64, delta int64) (int64, error) {
	var postID int64
	if err := sqlx.GetContext(ctx, s.ext, &postID,
		`UPDATE comment SET rating = rating + $2 WHERE id = $1 RETURNING post_id`, id, delta,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, storage.ErrNotFound
		}

		return 0, fmt.Errorf("failed to exec: %w", err)
	}

	return postID, nil
}

func (s pg) GetPostSubscribers(ctx context.Context, postID int64) ([]*entities.User, error) {
	var dto []userDTO

	// a user subscribed to several of the post's categories comes back once
	if err := sqlx.SelectContext(ctx, s.ext, &dto, `
			SELECT DISTINCT u.id, u.username, u.email, u.created_at
			FROM users u
			JOIN category_subscriber cs ON cs.user_id = u.id
			JOIN post_category pc ON pc.category_id = cs.category_id
			WHERE pc.post_id = $1
			ORDER BY u.id
		`, postID,
	); err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}

	out := make([]*entities.User, len(dto))
	for i, v := range dto {
		out[i] = toUser(v)
	}

	return out, nil
}

func (s pg) ListSubscribedUsers(ctx context.Context) ([]*entities.User, error) {
	var dto []userDTO

	if err := sqlx.SelectContext(ctx, s.ext, &dto, `
			SELECT DISTINCT u.id, u.username, u.email, u.created_at
			FROM users u
			JOIN category_subscriber cs ON cs.user_id = u.id
			ORDER BY u.id
		`,
	); err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}

	out := make([]*entities.User, len(dto))
	for i, v := range dto {
		out[i] = toUser(v)
	}

	return out, nil
}

func (s pg) ListPostsSince(ctx context.Context, since time.Time) ([]*entities.Post, error) {
	var dto []postDTO

	if err := sqlx.SelectContext(ctx, s.ext, &dto, `
			SELECT id, author_id, type, title, text, rating, created_at
			FROM post WHERE created_at >= $1 ORDER BY created_at, id
		`, since.UTC(),
	); err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}

	out := make([]*entities.Post, len(dto))
	for i, v := range dto {
		out[i] = toPost(v)
	}

	if err := s.loadCategories(ctx, out); err != nil {
		return nil, err
	}

	return out, nil
}

func (s pg) ListSubscribedPostsSince(ctx context.Context, userID int64, since time.Time) ([]*entities.Post, error) {
	var dto []postDTO

	if err := sqlx.SelectContext(ctx, s.ext, &dto, `
			SELECT p.id, p.author_id, p.type, p.title, p.text, p.rating, p.created_at
			FROM post p
			WHERE p.created_at >= $1 AND EXISTS (
				SELECT 1 FROM post_category pc
				JOIN category_subscriber cs ON cs.category_id = pc.category_id
				WHERE pc.post_id = p.id AND cs.user_id = $2
			)
			ORDER BY p.created_at, p.id
		`, since.UTC(), userID,
	); err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}

	out := make([]*entities.Post, len(dto))
	for i, v := range dto {
		out[i] = toPost(v)
	}

	if err := s.loadCategories(ctx, out); err != nil {
		return nil, err
	}

	return out, nil
}

func (s pg) loadCategories(ctx context.Context, posts []*entities.Post) error {
	if len(posts) == 0 {
		return nil
	}

	ids := make([]int64, len(posts))
	byID := make(map[int64]*entities.Post, len(posts))
	for i, p := range posts {
		ids[i] = p.ID
		byID[p.ID] = p
		p.Categories = []entities.Category{}
	}

	query, args, err := sqlx.In(`
			SELECT pc.post_id, c.id, c.name
			FROM post_category pc
			JOIN category c ON c.id = pc.category_id
			WHERE pc.post_id IN (?)
			ORDER BY c.name
		`, ids)
	if err != nil {
		return fmt.Errorf("failed to construct IN clause: %w", err)
	}

	rows, err := s.ext.QueryxContext(ctx, s.ext.Rebind(query), args...)
	if err != nil {
		return fmt.Errorf("failed to query: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			postID int64
			c      categoryDTO
		)
		if err := rows.Scan(&postID, &c.ID, &c.Name); err != nil {
			return fmt.Errorf("failed to scan: %w", err)
		}

		p := byID[postID]
		p.Categories = append(p.Categories, entities.Category{ID: c.ID, Name: c.Name})
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate rows: %w", err)
	}

	return nil
}

func isPqError(err error, code pq.ErrorCode) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == code
}

func toUser(u userDTO) *entities.User {
	return &entities.User{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		CreatedAt: u.CreatedAt,
	}
}

func toAuthor(a authorDTO) *entities.Author {
	return &entities.Author{
		ID:        a.ID,
		UserID:    a.UserID,
		Rating:    a.Rating,
		CreatedAt: a.CreatedAt,
	}
}

func toPost(p postDTO) *entities.Post {
	return &entities.Post{
		ID:        p.ID,
		AuthorID:  p.AuthorID,
		Type:      entities.PostType(p.Type),
		Title:     p.Title,
		Text:      p.Text,
		Rating:    p.Rating,
		CreatedAt: p.CreatedAt,
	}
}

func toComment(c commentDTO) *entities.Comment {
	return &entities.Comment{
		ID:        c.ID,
		PostID:    c.PostID,
		UserID:    c.UserID,
		Text:      c.Text,
		Rating:    c.Rating,
		CreatedAt: c.CreatedAt,
	}
}
