package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi"
	"github.com/sirupsen/logrus"

	"github.com/pheme-net/pheme/internal/entities"
	"github.com/pheme-net/pheme/internal/service"
	"github.com/pheme-net/pheme/internal/storage"
)

var errInvalidRequest = errors.New("invalid request")

func (s server) createUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "failed to decode request")
		return
	}

	if req.Username == "" || req.Email == "" {
		writeError(w, http.StatusBadRequest, "username and email are required")
		return
	}

	u, err := s.s.CreateUser(r.Context(), req.Username, req.Email)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeOK(w, http.StatusCreated, toAPIUser(u))
}

func (s server) getUser(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}

	u, err := s.s.GetUser(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeOK(w, http.StatusOK, toAPIUser(u))
}

func (s server) becomeAuthor(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}

	a, err := s.s.BecomeAuthor(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeOK(w, http.StatusCreated, toAPIAuthor(a))
}

func (s server) getAuthor(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}

	a, err := s.s.GetAuthor(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeOK(w, http.StatusOK, toAPIAuthor(a))
}

func (s server) recomputeAuthorRating(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}

	rating, err := s.s.RecomputeAuthorRating(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeOK(w, http.StatusOK, RatingResponse{Rating: rating})
}

func (s server) listCategories(w http.ResponseWriter, r *http.Request) {
	cc, err := s.s.ListCategories(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}

	out := make([]Category, len(cc))
	for i, c := range cc {
		out[i] = toAPICategory(c)
	}

	writeOK(w, http.StatusOK, out)
}

func (s server) createCategory(w http.ResponseWriter, r *http.Request) {
	var req CreateCategoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "failed to decode request")
		return
	}

	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	c, err := s.s.CreateCategory(r.Context(), req.Name)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeOK(w, http.StatusCreated, toAPICategory(c))
}

func (s server) getCategoryDetail(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}

	d, err := s.s.GetCategoryDetail(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeOK(w, http.StatusOK, CategoryDetailResponse{
		Category: toAPICategory(d.Category),
		News:     toAPIPosts(d.News),
		Articles: toAPIPosts(d.Articles),
	})
}

func (s server) subscribe(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}

	var req SubscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "failed to decode request")
		return
	}

	if err := s.s.Subscribe(r.Context(), id, req.UserID); err != nil {
		writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s server) unsubscribe(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}

	userID, ok := parseID(w, r, "userID")
	if !ok {
		return
	}

	if err := s.s.Unsubscribe(r.Context(), id, userID); err != nil {
		writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s server) listPosts(w http.ResponseWriter, r *http.Request) {
	params, err := extractListParamsFromQuery(r.URL.Query(), false)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	posts, err := s.s.ListPosts(r.Context(), params)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeOK(w, http.StatusOK, ListPostsResponse{Posts: toAPIPosts(posts)})
}

func (s server) searchPosts(w http.ResponseWriter, r *http.Request) {
	params, err := extractListParamsFromQuery(r.URL.Query(), true)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	posts, err := s.s.ListPosts(r.Context(), params)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeOK(w, http.StatusOK, ListPostsResponse{Posts: toAPIPosts(posts)})
}

func (s server) createPost(w http.ResponseWriter, r *http.Request) {
	var req CreatePostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "failed to decode request")
		return
	}

	if req.Title == "" || req.Text == "" {
		writeError(w, http.StatusBadRequest, "title and text are required")
		return
	}

	p, err := s.s.CreatePost(r.Context(), &storage.CreatePostParams{
		AuthorID:    req.AuthorID,
		Type:        entities.PostType(req.Type),
		Title:       req.Title,
		Text:        req.Text,
		CategoryIDs: req.CategoryIDs,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeOK(w, http.StatusCreated, toAPIPost(p))
}

func (s server) getPost(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}

	p, err := s.s.GetPost(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeOK(w, http.StatusOK, toAPIPost(p))
}

func (s server) updatePost(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}

	var req UpdatePostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "failed to decode request")
		return
	}

	if req.Title == "" || req.Text == "" {
		writeError(w, http.StatusBadRequest, "title and text are required")
		return
	}

	p, err := s.s.UpdatePost(r.Context(), &storage.UpdatePostParams{
		ID:          id,
		Title:       req.Title,
		Text:        req.Text,
		CategoryIDs: req.CategoryIDs,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeOK(w, http.StatusOK, toAPIPost(p))
}

func (s server) deletePost(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}

	if err := s.s.DeletePost(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s server) likePost(w http.ResponseWriter, r *http.Request) {
	s.votePost(w, r, s.s.LikePost)
}

func (s server) dislikePost(w http.ResponseWriter, r *http.Request) {
	s.votePost(w, r, s.s.DislikePost)
}

func (s server) votePost(w http.ResponseWriter, r *http.Request, vote func(ctx context.Context, id int64) error) {
	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}

	if err := vote(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s server) listComments(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}

	cc, err := s.s.ListComments(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	out := make([]*Comment, len(cc))
	for i, c := range cc {
		out[i] = toAPIComment(c)
	}

	writeOK(w, http.StatusOK, out)
}

func (s server) addComment(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}

	var req CreateCommentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "failed to decode request")
		return
	}

	if req.Text == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	c, err := s.s.AddComment(r.Context(), &storage.CreateCommentParams{
		PostID: id,
		UserID: req.UserID,
		Text:   req.Text,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeOK(w, http.StatusCreated, toAPIComment(c))
}

func (s server) likeComment(w http.ResponseWriter, r *http.Request) {
	s.voteComment(w, r, s.s.LikeComment)
}

func (s server) dislikeComment(w http.ResponseWriter, r *http.Request) {
	s.voteComment(w, r, s.s.DislikeComment)
}

func (s server) voteComment(w http.ResponseWriter, r *http.Request, vote func(ctx context.Context, id int64) error) {
	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}

	if err := vote(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func extractListParamsFromQuery(q url.Values, search bool) (*storage.ListPostsParams, error) {
	out := storage.ListPostsParams{
		Limit: defaultLimit,
	}

	if s := q.Get("limit"); s != "" {
		v, err := strconv.ParseUint(s, 10, 16)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to parse limit", errInvalidRequest)
		}

		if v > maxLimit {
			return nil, fmt.Errorf("%w: limit is too big", errInvalidRequest)
		}

		out.Limit = uint16(v)
	}

	if s := q.Get("page"); s != "" {
		v, err := strconv.ParseUint(s, 10, 32)
		if err != nil || v == 0 {
			return nil, fmt.Errorf("%w: failed to parse page", errInvalidRequest)
		}

		// bounded so the offset can not wrap uint32
		if v > maxPage {
			return nil, fmt.Errorf("%w: page is too big", errInvalidRequest)
		}

		out.Offset = uint32(v-1) * uint32(out.Limit)
	}

	if !search {
		return &out, nil
	}

	if s := q.Get("type"); s != "" {
		t := entities.PostType(s)
		if !t.Valid() {
			return nil, fmt.Errorf("%w: invalid type", errInvalidRequest)
		}
		out.Type = &t
	}

	if s := q.Get("category"); s != "" {
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to parse category", errInvalidRequest)
		}
		out.CategoryID = &v
	}

	if s := q.Get("title"); s != "" {
		out.TitleContains = &s
	}

	if s := q.Get("author"); s != "" {
		out.AuthorName = &s
	}

	if s := q.Get("createdAfter"); s != "" {
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to parse createdAfter", errInvalidRequest)
		}
		out.CreatedAfter = &t
	}

	return &out, nil
}

func parseID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid %s", name))
		return 0, false
	}

	return id, true
}

func writeOK(w http.ResponseWriter, status int, v interface{}) {
	b, err := json.Marshal(v)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to encode response")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(b)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Error{Error: msg})
}

func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, storage.ErrAlreadyExists):
		writeError(w, http.StatusConflict, "already exists")
	case errors.Is(err, service.ErrNewsLimitExceeded):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, service.ErrInvalidPostType):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		logrus.WithError(err).Error("internal error")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
