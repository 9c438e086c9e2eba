package cache

import (
	"fmt"
	"strings"

	"github.com/pheme-net/pheme/internal/storage"
)

// Key namespaces. Detail and comment keys are invalidated precisely; list
// and search pages are invalidated by pattern, accepting that unrelated
// filter combinations get dropped too.
const (
	postListPrefix = "posts:"
	searchPrefix   = "search:"

	// PostListPattern matches every cached post listing page.
	PostListPattern = postListPrefix + "*"
	// SearchPattern matches every cached search result page.
	SearchPattern = searchPrefix + "*"
)

// PostKey is the cache key of a post's detail view.
func PostKey(id int64) string {
	return fmt.Sprintf("post:%d", id)
}

// PostCommentsKey is the cache key of a post's comment list.
func PostCommentsKey(id int64) string {
	return fmt.Sprintf("post:%d:comments", id)
}

// ListKey derives a deterministic key for a listing request. Filtered
// requests land in the search namespace, plain paging in the posts one.
func ListKey(p *storage.ListPostsParams) string {
	var b strings.Builder

	if p.HasFilters() {
		b.WriteString(searchPrefix)
	} else {
		b.WriteString(postListPrefix)
	}

	if p.Type != nil {
		fmt.Fprintf(&b, "type=%s:", *p.Type)
	}
	if p.CategoryID != nil {
		fmt.Fprintf(&b, "category=%d:", *p.CategoryID)
	}
	if p.TitleContains != nil {
		fmt.Fprintf(&b, "title=%s:", *p.TitleContains)
	}
	if p.AuthorName != nil {
		fmt.Fprintf(&b, "author=%s:", *p.AuthorName)
	}
	if p.CreatedAfter != nil {
		fmt.Fprintf(&b, "after=%d:", p.CreatedAfter.UTC().Unix())
	}
	fmt.Fprintf(&b, "limit=%d:offset=%d", p.Limit, p.Offset)

	return b.String()
}
