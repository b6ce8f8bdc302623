package blog_test

import (
	"context"
	"errors"
	"net/http"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/folio/internal/fakeapi"
	"github.com/papercomputeco/folio/pkg/access"
	"github.com/papercomputeco/folio/pkg/blog"
	"github.com/papercomputeco/folio/pkg/credentials"
)

var _ = Describe("Facade", func() {
	var (
		api    *fakeapi.Server
		store  *credentials.Store
		facade *blog.Facade
		ctx    context.Context
		sleeps []time.Duration
	)

	signIn := func(email string) {
		api.SeedUser("Writer", email, "pw-long-enough")
		store.Save(credentials.NewRecord(api.IssueToken(email), "", time.Hour, time.Now()))
	}

	BeforeEach(func() {
		ctx = context.Background()
		sleeps = nil
		api = fakeapi.New()
		store = credentials.NewStore(credentials.NewMemoryBackend())

		client, err := access.New(access.Config{
			BaseURL:   api.URL(),
			Store:     store,
			Navigator: access.NavigatorFunc(func(string) {}),
			Sleep: func(_ context.Context, d time.Duration) error {
				sleeps = append(sleeps, d)
				return nil
			},
		})
		Expect(err).NotTo(HaveOccurred())
		facade = blog.New(client)

		api.SeedPost(fakeapi.Post{Title: "First", Content: "# One", Tags: []string{"go"}})
		api.SeedPost(fakeapi.Post{Title: "Second", Content: "two", Tags: []string{"http", "go"}})
		api.SeedPost(fakeapi.Post{Title: "Third", Content: "three", Tags: []string{"notes"}})
	})

	AfterEach(func() {
		api.Close()
	})

	Describe("List", func() {
		It("unwraps the envelope and pagination", func() {
			res, err := facade.List(ctx, blog.ListQuery{Page: 1, Limit: 2})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Total).To(Equal(3))
			Expect(res.Page).To(Equal(1))
			Expect(res.Limit).To(Equal(2))
			Expect(res.Blogs).To(HaveLen(2))
			Expect(res.Blogs[0].Title).To(Equal("Third"))
		})

		It("filters by tag and search term", func() {
			res, err := facade.List(ctx, blog.ListQuery{Tag: "go", Search: "two"})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Blogs).To(HaveLen(1))
			Expect(res.Blogs[0].Title).To(Equal("Second"))
		})

		It("retries a transient server error", func() {
			api.FailNext(http.MethodGet, "/blogs", http.StatusServiceUnavailable, "")

			res, err := facade.List(ctx, blog.ListQuery{})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Blogs).To(HaveLen(3))
			Expect(sleeps).To(Equal([]time.Duration{time.Second}))
		})

		It("passes classified errors through unchanged", func() {
			for range 4 {
				api.FailNext(http.MethodGet, "/blogs", http.StatusInternalServerError, "db offline")
			}

			_, err := facade.List(ctx, blog.ListQuery{})
			classified, _ := access.AsError(err)
			Expect(classified.Kind).To(Equal(access.KindServer))
			Expect(classified.Message).To(Equal("db offline"))
			Expect(api.Hits(http.MethodGet, "/blogs")).To(Equal(4))
		})

		It("rejects an oversized limit before sending", func() {
			_, err := facade.List(ctx, blog.ListQuery{Limit: 1000})
			Expect(errors.Is(err, access.ErrValidation)).To(BeTrue())
			Expect(api.Hits(http.MethodGet, "/blogs")).To(BeZero())
		})
	})

	Describe("Get", func() {
		It("returns the post", func() {
			post, err := facade.Get(ctx, "1")
			Expect(err).NotTo(HaveOccurred())
			Expect(post.Title).To(Equal("First"))
			Expect(post.Content).To(Equal("# One"))
		})

		It("reports a missing post as BLOG_NOT_FOUND wrapping NOT_FOUND", func() {
			_, err := facade.Get(ctx, "404")

			classified, _ := access.AsError(err)
			Expect(classified.Kind).To(Equal(blog.KindNotFound))
			Expect(errors.Is(err, access.ErrNotFound)).To(BeTrue())
		})

		It("rejects an empty id", func() {
			_, err := facade.Get(ctx, "  ")
			classified, _ := access.AsError(err)
			Expect(classified.Kind).To(Equal(blog.KindFetchBlog))
		})
	})

	Describe("writes", func() {
		BeforeEach(func() {
			signIn("writer@example.com")
		})

		It("creates, updates and deletes a post", func() {
			created, err := facade.Create(ctx, blog.Draft{Title: "Fresh", Content: "body", Tags: []string{"new"}})
			Expect(err).NotTo(HaveOccurred())
			Expect(created.ID).NotTo(BeEmpty())
			Expect(created.Author).To(Equal("writer@example.com"))

			updated, err := facade.Update(ctx, created.ID, blog.Draft{Title: "Fresher", Content: "body 2"})
			Expect(err).NotTo(HaveOccurred())
			Expect(updated.Title).To(Equal("Fresher"))

			Expect(facade.Delete(ctx, created.ID)).To(Succeed())
			_, err = facade.Get(ctx, created.ID)
			Expect(errors.Is(err, access.ErrNotFound)).To(BeTrue())
		})

		It("reports a created response without data as CREATE_BLOG_ERROR", func() {
			api.RespondNext(http.MethodPost, "/blogs", http.StatusCreated, map[string]any{"success": true})

			post, err := facade.Create(ctx, blog.Draft{Title: "Fresh", Content: "body"})
			Expect(post).To(BeNil())
			classified, ok := access.AsError(err)
			Expect(ok).To(BeTrue())
			Expect(classified.Kind).To(Equal(blog.KindCreate))
		})

		It("reports an updated response without data as UPDATE_BLOG_ERROR", func() {
			api.RespondNext(http.MethodPut, "/blogs/1", http.StatusOK, map[string]any{"success": true})

			post, err := facade.Update(ctx, "1", blog.Draft{Title: "Fresh", Content: "body"})
			Expect(post).To(BeNil())
			classified, ok := access.AsError(err)
			Expect(ok).To(BeTrue())
			Expect(classified.Kind).To(Equal(blog.KindUpdate))
		})

		It("validates drafts locally", func() {
			_, err := facade.Create(ctx, blog.Draft{Content: "no title"})
			Expect(errors.Is(err, access.ErrValidation)).To(BeTrue())
			Expect(api.Hits(http.MethodPost, "/blogs")).To(BeZero())
		})

		It("reports forbidden edits as FORBIDDEN", func() {
			other := api.SeedPost(fakeapi.Post{Title: "Theirs", Content: "x", Author: "someone@example.com"})

			err := facade.Delete(ctx, other.ID)
			Expect(errors.Is(err, access.ErrForbidden)).To(BeTrue())
		})
	})

	It("fails writes without a session as UNAUTHORIZED", func() {
		_, err := facade.Create(ctx, blog.Draft{Title: "t", Content: "c"})
		Expect(errors.Is(err, access.ErrUnauthorized)).To(BeTrue())
	})

	Describe("Tags", func() {
		It("returns the sorted set of tags", func() {
			tags, err := facade.Tags(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(tags).To(Equal([]string{"go", "http", "notes"}))
		})
	})
})
