package blog

import (
	"time"

	"github.com/papercomputeco/folio/pkg/access"
)

// Facade error kinds.
const (
	KindFetchBlogs access.Kind = "FETCH_BLOGS_ERROR"
	KindFetchBlog  access.Kind = "FETCH_BLOG_ERROR"
	KindNotFound   access.Kind = "BLOG_NOT_FOUND"
	KindCreate     access.Kind = "CREATE_BLOG_ERROR"
	KindUpdate     access.Kind = "UPDATE_BLOG_ERROR"
	KindDelete     access.Kind = "DELETE_BLOG_ERROR"
	KindFetchTags  access.Kind = "FETCH_TAGS_ERROR"
)

// Blog is one post.
type Blog struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Excerpt   string    `json:"excerpt,omitempty"`
	Content   string    `json:"content,omitempty"`
	Tags      []string  `json:"tags,omitempty"`
	Author    string    `json:"author,omitempty"`
	Published bool      `json:"published"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Draft is the writable part of a Blog.
type Draft struct {
	Title     string   `json:"title" validate:"required,max=200"`
	Excerpt   string   `json:"excerpt,omitempty" validate:"max=500"`
	Content   string   `json:"content" validate:"required"`
	Tags      []string `json:"tags,omitempty" validate:"max=10,dive,required,max=32"`
	Published bool     `json:"published"`
}

// ListQuery filters and pages GET /blogs. Zero values are omitted.
type ListQuery struct {
	Page   int    `validate:"gte=0"`
	Limit  int    `validate:"gte=0,lte=100"`
	Tag    string `validate:"max=32"`
	Search string `validate:"max=200"`
}

// ListResult is one page of posts.
type ListResult struct {
	Blogs []Blog
	Total int
	Page  int
	Limit int
}

type pagination struct {
	Total int `json:"total"`
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

type listEnvelope struct {
	Success    bool        `json:"success"`
	Data       []Blog      `json:"data"`
	Pagination *pagination `json:"pagination,omitempty"`
}

type itemEnvelope[T any] struct {
	Success bool `json:"success"`
	Data    T    `json:"data"`
}
