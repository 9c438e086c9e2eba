package mail

import (
	"bytes"
	"embed"
	"fmt"
	"text/template"

	"github.com/pheme-net/pheme/internal/censor"
	"github.com/pheme-net/pheme/internal/entities"
)

//go:embed templates/*.tmpl
var templatesFS embed.FS

// Renderer produces message bodies from the embedded templates. Bodies go
// through the censor before being handed to the sender.
type Renderer struct {
	t       *template.Template
	c       *censor.Censor
	baseURL string
}

// NewRenderer parses the embedded templates. baseURL is the public address
// posts are linked under in digest messages.
func NewRenderer(c *censor.Censor, baseURL string) (*Renderer, error) {
	t, err := template.ParseFS(templatesFS, "templates/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	return &Renderer{t: t, c: c, baseURL: baseURL}, nil
}

type digestPost struct {
	Title string
	URL   string
}

// Notification renders the per-post notification body for a subscriber.
func (r *Renderer) Notification(username string, post *entities.Post) (string, error) {
	return r.render("notification.tmpl", struct {
		Username string
		Title    string
		Preview  string
	}{
		Username: username,
		Title:    post.Title,
		Preview:  post.Preview(),
	})
}

// Digest renders the weekly digest body.
func (r *Renderer) Digest(username string, posts []*entities.Post) (string, error) {
	return r.render("digest.tmpl", struct {
		Username string
		Posts    []digestPost
	}{
		Username: username,
		Posts:    r.toDigestPosts(posts),
	})
}

// Newsletter renders the weekly newsletter body.
func (r *Renderer) Newsletter(username string, posts []*entities.Post) (string, error) {
	return r.render("newsletter.tmpl", struct {
		Username string
		Posts    []digestPost
	}{
		Username: username,
		Posts:    r.toDigestPosts(posts),
	})
}

// PostURL returns the public address of a post.
func (r *Renderer) PostURL(id int64) string {
	return fmt.Sprintf("%s/posts/%d", r.baseURL, id)
}

func (r *Renderer) toDigestPosts(posts []*entities.Post) []digestPost {
	out := make([]digestPost, len(posts))
	for i, p := range posts {
		out[i] = digestPost{
			Title: p.Title,
			URL:   r.PostURL(p.ID),
		}
	}

	return out
}

func (r *Renderer) render(name string, data interface{}) (string, error) {
	var buf bytes.Buffer

	if err := r.t.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("failed to execute template %s: %w", name, err)
	}

	if r.c != nil {
		return r.c.Apply(buf.String()), nil
	}

	return buf.String(), nil
}
