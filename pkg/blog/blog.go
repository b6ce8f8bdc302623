// Package blog wraps the /blogs endpoints.
package blog

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/papercomputeco/folio/pkg/access"
)

const pathBlogs = "/blogs"

var errEmptyID = errors.New("blog id is required")

// Facade exposes the blog operations over a Requester.
type Facade struct {
	client   access.Requester
	validate *validator.Validate
}

// New creates a Facade over client.
func New(client access.Requester) *Facade {
	return &Facade{
		client:   client,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// List returns one page of posts.
func (f *Facade) List(ctx context.Context, q ListQuery) (*ListResult, error) {
	if err := f.check(q); err != nil {
		return nil, err
	}

	var env listEnvelope
	if err := f.client.Do(ctx, http.MethodGet, pathBlogs, &access.RequestOptions{Params: q.values()}, &env); err != nil {
		return nil, access.Wrap(err, KindFetchBlogs, "Could not load posts.")
	}

	res := &ListResult{
		Blogs: env.Data,
		Total: len(env.Data),
		Page:  q.Page,
		Limit: q.Limit,
	}
	if env.Pagination != nil {
		res.Total = env.Pagination.Total
		res.Page = env.Pagination.Page
		res.Limit = env.Pagination.Limit
	}
	if res.Blogs == nil {
		res.Blogs = []Blog{}
	}
	return res, nil
}

// Get returns a single post. A missing post is reported as BLOG_NOT_FOUND,
// which still matches access.ErrNotFound.
func (f *Facade) Get(ctx context.Context, id string) (*Blog, error) {
	path, err := itemPath(id)
	if err != nil {
		return nil, access.Wrap(err, KindFetchBlog, "Could not load the post.")
	}

	var env itemEnvelope[*Blog]
	if err := f.client.Do(ctx, http.MethodGet, path, nil, &env); err != nil {
		if errors.Is(err, access.ErrNotFound) {
			return nil, &access.Error{
				Kind:    KindNotFound,
				Status:  http.StatusNotFound,
				Message: "That post does not exist or was removed.",
				Err:     err,
			}
		}
		return nil, access.Wrap(err, KindFetchBlog, "Could not load the post.")
	}
	if env.Data == nil {
		return nil, access.Wrap(fmt.Errorf("response for %s has no data", path), KindFetchBlog, "Could not load the post.")
	}
	return env.Data, nil
}

// Create publishes a new post.
func (f *Facade) Create(ctx context.Context, d Draft) (*Blog, error) {
	if err := f.check(d); err != nil {
		return nil, err
	}

	var env itemEnvelope[*Blog]
	if err := f.client.Do(ctx, http.MethodPost, pathBlogs, &access.RequestOptions{Body: d}, &env); err != nil {
		return nil, access.Wrap(err, KindCreate, "Could not create the post.")
	}
	if env.Data == nil {
		return nil, access.Wrap(fmt.Errorf("response for %s has no data", pathBlogs), KindCreate, "Could not create the post.")
	}
	return env.Data, nil
}

// Update replaces the writable fields of a post.
func (f *Facade) Update(ctx context.Context, id string, d Draft) (*Blog, error) {
	path, err := itemPath(id)
	if err != nil {
		return nil, access.Wrap(err, KindUpdate, "Could not update the post.")
	}
	if err := f.check(d); err != nil {
		return nil, err
	}

	var env itemEnvelope[*Blog]
	if err := f.client.Do(ctx, http.MethodPut, path, &access.RequestOptions{Body: d}, &env); err != nil {
		return nil, access.Wrap(err, KindUpdate, "Could not update the post.")
	}
	if env.Data == nil {
		return nil, access.Wrap(fmt.Errorf("response for %s has no data", path), KindUpdate, "Could not update the post.")
	}
	return env.Data, nil
}

// Delete removes a post.
func (f *Facade) Delete(ctx context.Context, id string) error {
	path, err := itemPath(id)
	if err != nil {
		return access.Wrap(err, KindDelete, "Could not delete the post.")
	}
	if _, err := f.client.Request(ctx, http.MethodDelete, path, nil); err != nil {
		return access.Wrap(err, KindDelete, "Could not delete the post.")
	}
	return nil
}

// Tags returns every tag in use.
func (f *Facade) Tags(ctx context.Context) ([]string, error) {
	var env itemEnvelope[[]string]
	if err := f.client.Do(ctx, http.MethodGet, pathBlogs+"/tags", nil, &env); err != nil {
		return nil, access.Wrap(err, KindFetchTags, "Could not load tags.")
	}
	if env.Data == nil {
		return []string{}, nil
	}
	return env.Data, nil
}

func (q ListQuery) values() url.Values {
	v := url.Values{}
	if q.Page > 0 {
		v.Set("page", strconv.Itoa(q.Page))
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	if tag := strings.TrimSpace(q.Tag); tag != "" {
		v.Set("tag", tag)
	}
	if search := strings.TrimSpace(q.Search); search != "" {
		v.Set("search", search)
	}
	return v
}

func itemPath(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", errEmptyID
	}
	return pathBlogs + "/" + url.PathEscape(id), nil
}

func (f *Facade) check(in any) error {
	if err := f.validate.Struct(in); err != nil {
		return &access.Error{
			Kind:    access.KindValidation,
			Message: "Invalid input: " + err.Error(),
			Err:     err,
		}
	}
	return nil
}
