package server

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi"
	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pheme-net/pheme/internal/entities"
	"github.com/pheme-net/pheme/internal/service"
	"github.com/pheme-net/pheme/internal/service/mock"
	"github.com/pheme-net/pheme/internal/storage"
)

func setupTest(t *testing.T) (*mock.MockService, chi.Router) {
	t.Helper()

	ctrl := gomock.NewController(t)
	svc := mock.NewMockService(ctrl)

	router := chi.NewRouter()
	SetupRouter(svc, router, time.Minute)

	return svc, router
}

func doRequest(router chi.Router, method, target, body string) *httptest.ResponseRecorder {
	var r *http.Request
	if body != "" {
		r = httptest.NewRequest(method, target, bytes.NewBufferString(body))
	} else {
		r = httptest.NewRequest(method, target, nil)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	return w
}

func Test_createUser(t *testing.T) {
	svc, router := setupTest(t)

	svc.EXPECT().CreateUser(gomock.Any(), "alice", "alice@example.com").Return(&entities.User{
		ID:        1,
		Username:  "alice",
		Email:     "alice@example.com",
		CreatedAt: time.Unix(100, 0),
	}, nil)

	w := doRequest(router, http.MethodPost, "/v1/users", `{"username":"alice","email":"alice@example.com"}`)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.JSONEq(t, `{"id":1,"username":"alice","email":"alice@example.com","createdAt":100}`, w.Body.String())
}

func Test_createUser_invalid(t *testing.T) {
	_, router := setupTest(t)

	assert.Equal(t, http.StatusBadRequest, doRequest(router, http.MethodPost, "/v1/users", `{"username":"alice"}`).Code)
	assert.Equal(t, http.StatusBadRequest, doRequest(router, http.MethodPost, "/v1/users", `not json`).Code)
}

func Test_createUser_duplicate(t *testing.T) {
	svc, router := setupTest(t)

	svc.EXPECT().CreateUser(gomock.Any(), "alice", "alice@example.com").Return(nil, storage.ErrAlreadyExists)

	w := doRequest(router, http.MethodPost, "/v1/users", `{"username":"alice","email":"alice@example.com"}`)

	assert.Equal(t, http.StatusConflict, w.Code)
}

func Test_getUser(t *testing.T) {
	svc, router := setupTest(t)

	svc.EXPECT().GetUser(gomock.Any(), int64(1)).Return(&entities.User{
		ID:        1,
		Username:  "alice",
		Email:     "alice@example.com",
		CreatedAt: time.Unix(100, 0),
	}, nil)

	w := doRequest(router, http.MethodGet, "/v1/users/1", "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"id":1,"username":"alice","email":"alice@example.com","createdAt":100}`, w.Body.String())
}

func Test_getUser_notFound(t *testing.T) {
	svc, router := setupTest(t)

	svc.EXPECT().GetUser(gomock.Any(), int64(1)).Return(nil, storage.ErrNotFound)

	assert.Equal(t, http.StatusNotFound, doRequest(router, http.MethodGet, "/v1/users/1", "").Code)
}

func Test_becomeAuthor(t *testing.T) {
	svc, router := setupTest(t)

	svc.EXPECT().BecomeAuthor(gomock.Any(), int64(1)).Return(&entities.Author{ID: 2, UserID: 1}, nil)

	w := doRequest(router, http.MethodPost, "/v1/users/1/author", "")

	require.Equal(t, http.StatusCreated, w.Code)
	assert.JSONEq(t, `{"id":2,"userId":1,"rating":0}`, w.Body.String())
}

func Test_getAuthor(t *testing.T) {
	svc, router := setupTest(t)

	svc.EXPECT().GetAuthor(gomock.Any(), int64(2)).Return(&entities.Author{ID: 2, UserID: 1, Rating: 35}, nil)

	w := doRequest(router, http.MethodGet, "/v1/authors/2", "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"id":2,"userId":1,"rating":35}`, w.Body.String())
}

func Test_getAuthor_notFound(t *testing.T) {
	svc, router := setupTest(t)

	svc.EXPECT().GetAuthor(gomock.Any(), int64(2)).Return(nil, storage.ErrNotFound)

	assert.Equal(t, http.StatusNotFound, doRequest(router, http.MethodGet, "/v1/authors/2", "").Code)
}

func Test_recomputeAuthorRating(t *testing.T) {
	svc, router := setupTest(t)

	svc.EXPECT().RecomputeAuthorRating(gomock.Any(), int64(2)).Return(float64(35), nil)

	w := doRequest(router, http.MethodPost, "/v1/authors/2/rating", "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"rating":35}`, w.Body.String())
}

func Test_listCategories(t *testing.T) {
	svc, router := setupTest(t)

	// the handler body runs once, following requests are served from the
	// response cache
	svc.EXPECT().ListCategories(gomock.Any()).Return([]*entities.Category{
		{ID: 1, Name: "tech"},
		{ID: 2, Name: "sport"},
	}, nil)

	for i := 0; i < 2; i++ {
		w := doRequest(router, http.MethodGet, "/v1/categories", "")

		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `[{"id":1,"name":"tech"},{"id":2,"name":"sport"}]`, w.Body.String())
	}
}

func Test_createCategory(t *testing.T) {
	svc, router := setupTest(t)

	svc.EXPECT().CreateCategory(gomock.Any(), "tech").Return(&entities.Category{ID: 1, Name: "tech"}, nil)

	w := doRequest(router, http.MethodPost, "/v1/categories", `{"name":"tech"}`)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.JSONEq(t, `{"id":1,"name":"tech"}`, w.Body.String())
}

func Test_getCategoryDetail(t *testing.T) {
	svc, router := setupTest(t)

	svc.EXPECT().GetCategoryDetail(gomock.Any(), int64(1)).Return(&service.CategoryDetail{
		Category: &entities.Category{ID: 1, Name: "tech"},
		News:     []*entities.Post{{ID: 1, Type: entities.PostTypeNews, CreatedAt: time.Unix(100, 0)}},
		Articles: []*entities.Post{},
	}, nil)

	w := doRequest(router, http.MethodGet, "/v1/categories/1", "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{
		"category": {"id":1,"name":"tech"},
		"news": [{"id":1,"authorId":0,"type":"news","title":"","text":"","rating":0,"createdAt":100,"categories":[]}],
		"articles": []
	}`, w.Body.String())
}

func Test_subscribe(t *testing.T) {
	svc, router := setupTest(t)

	svc.EXPECT().Subscribe(gomock.Any(), int64(1), int64(2)).Return(nil)

	w := doRequest(router, http.MethodPost, "/v1/categories/1/subscribers", `{"userId":2}`)

	assert.Equal(t, http.StatusNoContent, w.Code)
}

func Test_unsubscribe(t *testing.T) {
	svc, router := setupTest(t)

	svc.EXPECT().Unsubscribe(gomock.Any(), int64(1), int64(2)).Return(nil)

	w := doRequest(router, http.MethodDelete, "/v1/categories/1/subscribers/2", "")

	assert.Equal(t, http.StatusNoContent, w.Code)
}

func Test_listPosts(t *testing.T) {
	svc, router := setupTest(t)

	svc.EXPECT().ListPosts(gomock.Any(), gomock.Any()).Do(func(_ context.Context, p *storage.ListPostsParams) {
		assert.EqualValues(t, 5, p.Limit)
		assert.EqualValues(t, 10, p.Offset)
		assert.False(t, p.HasFilters())
	}).Return([]*entities.Post{
		{ID: 1, AuthorID: 2, Type: entities.PostTypeNews, Title: "title", Text: "text", CreatedAt: time.Unix(100, 0)},
	}, nil)

	w := doRequest(router, http.MethodGet, "/v1/posts?limit=5&page=3", "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"posts":[
		{"id":1,"authorId":2,"type":"news","title":"title","text":"text","rating":0,"createdAt":100,"categories":[]}
	]}`, w.Body.String())
}

func Test_listPosts_ignoresSearchFilters(t *testing.T) {
	svc, router := setupTest(t)

	svc.EXPECT().ListPosts(gomock.Any(), gomock.Any()).Do(func(_ context.Context, p *storage.ListPostsParams) {
		assert.False(t, p.HasFilters())
		assert.EqualValues(t, defaultLimit, p.Limit)
	}).Return(nil, nil)

	w := doRequest(router, http.MethodGet, "/v1/posts?title=go&author=alice", "")

	require.Equal(t, http.StatusOK, w.Code)
}

func Test_listPosts_invalidLimit(t *testing.T) {
	_, router := setupTest(t)

	assert.Equal(t, http.StatusBadRequest, doRequest(router, http.MethodGet, "/v1/posts?limit=101", "").Code)
	assert.Equal(t, http.StatusBadRequest, doRequest(router, http.MethodGet, "/v1/posts?limit=x", "").Code)
	assert.Equal(t, http.StatusBadRequest, doRequest(router, http.MethodGet, "/v1/posts?page=0", "").Code)
	// large enough to wrap the offset if it were not capped
	assert.Equal(t, http.StatusBadRequest, doRequest(router, http.MethodGet, "/v1/posts?limit=100&page=4294967295", "").Code)
}

func Test_searchPosts(t *testing.T) {
	svc, router := setupTest(t)

	query := "type=news&category=1&title=go&author=alice&createdAfter=2024-01-02&limit=20&page=2"

	svc.EXPECT().ListPosts(gomock.Any(), gomock.Any()).Do(func(_ context.Context, p *storage.ListPostsParams) {
		require.NotNil(t, p.Type)
		assert.Equal(t, entities.PostTypeNews, *p.Type)
		assert.EqualValues(t, 1, *p.CategoryID)
		assert.Equal(t, "go", *p.TitleContains)
		assert.Equal(t, "alice", *p.AuthorName)
		assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), *p.CreatedAfter)
		assert.EqualValues(t, 20, p.Limit)
		assert.EqualValues(t, 20, p.Offset)
	}).Return(nil, nil)

	w := doRequest(router, http.MethodGet, fmt.Sprintf("/v1/posts/search?%s", query), "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"posts":[]}`, w.Body.String())
}

func Test_searchPosts_invalidType(t *testing.T) {
	_, router := setupTest(t)

	assert.Equal(t, http.StatusBadRequest, doRequest(router, http.MethodGet, "/v1/posts/search?type=podcast", "").Code)
}

func Test_createPost(t *testing.T) {
	svc, router := setupTest(t)

	svc.EXPECT().CreatePost(gomock.Any(), &storage.CreatePostParams{
		AuthorID:    1,
		Type:        entities.PostTypeNews,
		Title:       "title",
		Text:        "text",
		CategoryIDs: []int64{1, 2},
	}).Return(&entities.Post{
		ID:        5,
		AuthorID:  1,
		Type:      entities.PostTypeNews,
		Title:     "title",
		Text:      "text",
		CreatedAt: time.Unix(100, 0),
		Categories: []entities.Category{
			{ID: 1, Name: "tech"},
			{ID: 2, Name: "sport"},
		},
	}, nil)

	w := doRequest(router, http.MethodPost, "/v1/posts",
		`{"authorId":1,"type":"news","title":"title","text":"text","categoryIds":[1,2]}`)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.JSONEq(t, `{
		"id":5,"authorId":1,"type":"news","title":"title","text":"text","rating":0,"createdAt":100,
		"categories":[{"id":1,"name":"tech"},{"id":2,"name":"sport"}]
	}`, w.Body.String())
}

func Test_createPost_newsLimit(t *testing.T) {
	svc, router := setupTest(t)

	svc.EXPECT().CreatePost(gomock.Any(), gomock.Any()).Return(nil, service.ErrNewsLimitExceeded)

	w := doRequest(router, http.MethodPost, "/v1/posts", `{"authorId":1,"type":"news","title":"t","text":"t"}`)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func Test_createPost_invalidType(t *testing.T) {
	svc, router := setupTest(t)

	svc.EXPECT().CreatePost(gomock.Any(), gomock.Any()).Return(nil, service.ErrInvalidPostType)

	w := doRequest(router, http.MethodPost, "/v1/posts", `{"authorId":1,"type":"podcast","title":"t","text":"t"}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func Test_getPost(t *testing.T) {
	svc, router := setupTest(t)

	svc.EXPECT().GetPost(gomock.Any(), int64(5)).Return(&entities.Post{
		ID:        5,
		AuthorID:  1,
		Type:      entities.PostTypeArticle,
		Title:     "title",
		Text:      "text",
		Rating:    3,
		CreatedAt: time.Unix(100, 0),
	}, nil)

	w := doRequest(router, http.MethodGet, "/v1/posts/5", "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"id":5,"authorId":1,"type":"article","title":"title","text":"text","rating":3,"createdAt":100,"categories":[]}`, w.Body.String())
}

func Test_getPost_notFound(t *testing.T) {
	svc, router := setupTest(t)

	svc.EXPECT().GetPost(gomock.Any(), int64(5)).Return(nil, storage.ErrNotFound)

	assert.Equal(t, http.StatusNotFound, doRequest(router, http.MethodGet, "/v1/posts/5", "").Code)
}

func Test_getPost_invalidID(t *testing.T) {
	_, router := setupTest(t)

	assert.Equal(t, http.StatusBadRequest, doRequest(router, http.MethodGet, "/v1/posts/abc", "").Code)
}

func Test_updatePost(t *testing.T) {
	svc, router := setupTest(t)

	svc.EXPECT().UpdatePost(gomock.Any(), &storage.UpdatePostParams{
		ID:          5,
		Title:       "new",
		Text:        "new text",
		CategoryIDs: []int64{3},
	}).Return(&entities.Post{
		ID:        5,
		Type:      entities.PostTypeNews,
		Title:     "new",
		Text:      "new text",
		CreatedAt: time.Unix(100, 0),
		Categories: []entities.Category{
			{ID: 3, Name: "politics"},
		},
	}, nil)

	w := doRequest(router, http.MethodPut, "/v1/posts/5", `{"title":"new","text":"new text","categoryIds":[3]}`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{
		"id":5,"authorId":0,"type":"news","title":"new","text":"new text","rating":0,"createdAt":100,
		"categories":[{"id":3,"name":"politics"}]
	}`, w.Body.String())
}

func Test_deletePost(t *testing.T) {
	svc, router := setupTest(t)

	svc.EXPECT().DeletePost(gomock.Any(), int64(5)).Return(nil)

	assert.Equal(t, http.StatusNoContent, doRequest(router, http.MethodDelete, "/v1/posts/5", "").Code)
}

func Test_votePost(t *testing.T) {
	svc, router := setupTest(t)

	svc.EXPECT().LikePost(gomock.Any(), int64(5)).Return(nil)
	assert.Equal(t, http.StatusNoContent, doRequest(router, http.MethodPost, "/v1/posts/5/like", "").Code)

	svc.EXPECT().DislikePost(gomock.Any(), int64(5)).Return(nil)
	assert.Equal(t, http.StatusNoContent, doRequest(router, http.MethodPost, "/v1/posts/5/dislike", "").Code)
}

func Test_listComments(t *testing.T) {
	svc, router := setupTest(t)

	svc.EXPECT().ListComments(gomock.Any(), int64(5)).Return([]*entities.Comment{
		{ID: 1, PostID: 5, UserID: 2, Text: "text", Rating: 1, CreatedAt: time.Unix(100, 0)},
	}, nil)

	w := doRequest(router, http.MethodGet, "/v1/posts/5/comments", "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[{"id":1,"postId":5,"userId":2,"text":"text","rating":1,"createdAt":100}]`, w.Body.String())
}

func Test_addComment(t *testing.T) {
	svc, router := setupTest(t)

	svc.EXPECT().AddComment(gomock.Any(), &storage.CreateCommentParams{
		PostID: 5,
		UserID: 2,
		Text:   "nice",
	}).Return(&entities.Comment{ID: 1, PostID: 5, UserID: 2, Text: "nice", CreatedAt: time.Unix(100, 0)}, nil)

	w := doRequest(router, http.MethodPost, "/v1/posts/5/comments", `{"userId":2,"text":"nice"}`)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.JSONEq(t, `{"id":1,"postId":5,"userId":2,"text":"nice","rating":0,"createdAt":100}`, w.Body.String())
}

func Test_addComment_missingPost(t *testing.T) {
	svc, router := setupTest(t)

	svc.EXPECT().AddComment(gomock.Any(), gomock.Any()).Return(nil, storage.ErrNotFound)

	w := doRequest(router, http.MethodPost, "/v1/posts/5/comments", `{"userId":2,"text":"nice"}`)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func Test_voteComment(t *testing.T) {
	svc, router := setupTest(t)

	svc.EXPECT().LikeComment(gomock.Any(), int64(7)).Return(nil)
	assert.Equal(t, http.StatusNoContent, doRequest(router, http.MethodPost, "/v1/comments/7/like", "").Code)

	svc.EXPECT().DislikeComment(gomock.Any(), int64(7)).Return(nil)
	assert.Equal(t, http.StatusNoContent, doRequest(router, http.MethodPost, "/v1/comments/7/dislike", "").Code)
}
