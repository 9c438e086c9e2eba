// Package server contains the http api of the service.
package server

import (
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/cors"

	mm "github.com/pheme-net/pheme/internal/middleware"
	"github.com/pheme-net/pheme/internal/service"
)

const categoriesCacheTTL = 10 * time.Minute

type server struct {
	s service.Service
}

// SetupRouter setups handlers to chi router.
func SetupRouter(s service.Service, r chi.Router, timeout time.Duration) {
	r.Use(
		mm.Logger,
		middleware.StripSlashes,
		cors.AllowAll().Handler,
		middleware.RequestID,
		middleware.Recoverer,
		middleware.Timeout(timeout),
	)

	srv := server{
		s: s,
	}

	r.Route("/v1", func(r chi.Router) {
		r.Post("/users", srv.createUser)
		r.Get("/users/{id}", srv.getUser)
		r.Post("/users/{id}/author", srv.becomeAuthor)

		r.Get("/authors/{id}", srv.getAuthor)
		r.Post("/authors/{id}/rating", srv.recomputeAuthorRating)

		r.Get("/categories", mm.Cached(categoriesCacheTTL, srv.listCategories))
		r.Post("/categories", srv.createCategory)
		r.Get("/categories/{id}", srv.getCategoryDetail)
		r.Post("/categories/{id}/subscribers", srv.subscribe)
		r.Delete("/categories/{id}/subscribers/{userID}", srv.unsubscribe)

		r.Get("/posts", srv.listPosts)
		r.Get("/posts/search", srv.searchPosts)
		r.Post("/posts", srv.createPost)
		r.Get("/posts/{id}", srv.getPost)
		r.Put("/posts/{id}", srv.updatePost)
		r.Delete("/posts/{id}", srv.deletePost)
		r.Post("/posts/{id}/like", srv.likePost)
		r.Post("/posts/{id}/dislike", srv.dislikePost)

		r.Get("/posts/{id}/comments", srv.listComments)
		r.Post("/posts/{id}/comments", srv.addComment)
		r.Post("/comments/{id}/like", srv.likeComment)
		r.Post("/comments/{id}/dislike", srv.dislikeComment)
	})
}
