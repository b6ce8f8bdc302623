// Package fakeapi is an in-memory implementation of the blog API used by
// facade and CLI tests. It speaks the same envelopes and status codes as
// the real service.
package fakeapi

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"slices"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// DefaultExpiresIn is the access token lifetime, in seconds, reported by
// the auth endpoints.
const DefaultExpiresIn = 3600

// User is a seeded account.
type User struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"-"`
}

// Post is a stored blog post.
type Post struct {
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

type failure struct {
	status int
	header map[string]string
	body   fiber.Map
}

// Server is a running fake API.
type Server struct {
	mu       sync.Mutex
	app      *fiber.App
	http     *httptest.Server
	users    map[string]*User
	posts    map[string]*Post
	order    []string
	access   map[string]string
	refresh  map[string]string
	failures map[string][]failure
	hits     map[string]int
	nextID   int

	// ExpiresIn is reported by the auth endpoints. Zero omits the field.
	ExpiresIn int
}

// New starts a fake API on a loopback port.
func New() *Server {
	s := &Server{
		users:     make(map[string]*User),
		posts:     make(map[string]*Post),
		access:    make(map[string]string),
		refresh:   make(map[string]string),
		failures:  make(map[string][]failure),
		hits:      make(map[string]int),
		ExpiresIn: DefaultExpiresIn,
	}

	s.app = fiber.New(fiber.Config{DisableStartupMessage: true})
	s.app.Use(s.countAndFail)

	s.app.Post("/auth/login", s.login)
	s.app.Post("/auth/register", s.register)
	s.app.Post("/auth/refresh", s.refreshToken)
	s.app.Post("/auth/logout", s.requireAuth, s.logout)
	s.app.Get("/auth/me", s.requireAuth, s.me)
	s.app.Post("/auth/oauth/callback", s.oauthCallback)

	s.app.Get("/blogs", s.listPosts)
	s.app.Get("/blogs/tags", s.tags)
	s.app.Get("/blogs/:id", s.getPost)
	s.app.Post("/blogs", s.requireAuth, s.createPost)
	s.app.Put("/blogs/:id", s.requireAuth, s.updatePost)
	s.app.Delete("/blogs/:id", s.requireAuth, s.deletePost)

	s.http = httptest.NewServer(adaptor.FiberApp(s.app))
	return s
}

// URL is the base URL of the running server.
func (s *Server) URL() string {
	return s.http.URL
}

// Close stops the server.
func (s *Server) Close() {
	s.http.Close()
	_ = s.app.Shutdown()
}

// SeedUser adds an account and returns it.
func (s *Server) SeedUser(name, email, password string) *User {
	s.mu.Lock()
	defer s.mu.Unlock()

	u := &User{ID: uuid.NewString(), Name: name, Email: strings.ToLower(email), Password: password}
	s.users[u.Email] = u
	return u
}

// SeedPost stores p, assigning an ID and timestamps when they are empty.
func (s *Server) SeedPost(p Post) *Post {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insert(p)
}

// IssueToken returns a valid access token for the user with email.
func (s *Server) IssueToken(email string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	token, _ := s.issue(strings.ToLower(email))
	return token
}

// FailNext makes the next request matching method and path answer with
// status and a {"message": message} body. Calls queue up.
func (s *Server) FailNext(method, path string, status int, message string) {
	s.FailNextWithHeader(method, path, status, message, nil)
}

// FailNextWithHeader is FailNext with extra response headers.
func (s *Server) FailNextWithHeader(method, path string, status int, message string, header map[string]string) {
	body := fiber.Map{"success": false}
	if message != "" {
		body["message"] = message
	}
	s.enqueue(method, path, failure{status: status, header: header, body: body})
}

// RespondNext answers the next request to method and path with status and
// body instead of running the route.
func (s *Server) RespondNext(method, path string, status int, body map[string]any) {
	s.enqueue(method, path, failure{status: status, body: fiber.Map(body)})
}

func (s *Server) enqueue(method, path string, f failure) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := routeKey(method, path)
	s.failures[key] = append(s.failures[key], f)
}

// Hits reports how many requests reached method and path.
func (s *Server) Hits(method, path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[routeKey(method, path)]
}

func routeKey(method, path string) string {
	return strings.ToUpper(method) + " " + path
}

func (s *Server) countAndFail(c *fiber.Ctx) error {
	key := routeKey(c.Method(), c.Path())

	s.mu.Lock()
	s.hits[key]++
	queued := s.failures[key]
	var next *failure
	if len(queued) > 0 {
		next = &queued[0]
		s.failures[key] = queued[1:]
	}
	s.mu.Unlock()

	if next == nil {
		return c.Next()
	}
	for k, v := range next.header {
		c.Set(k, v)
	}
	return c.Status(next.status).JSON(next.body)
}

func (s *Server) requireAuth(c *fiber.Ctx) error {
	header := c.Get(fiber.HeaderAuthorization)
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return reject(c, fiber.StatusUnauthorized, "Authentication required")
	}

	s.mu.Lock()
	email, ok := s.access[token]
	s.mu.Unlock()
	if !ok {
		return reject(c, fiber.StatusUnauthorized, "Invalid or expired token")
	}

	c.Locals("email", email)
	return c.Next()
}

func reject(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{"success": false, "message": message})
}

// issue must be called with s.mu held.
func (s *Server) issue(email string) (string, string) {
	token := "at-" + uuid.NewString()
	refresh := "rt-" + uuid.NewString()
	s.access[token] = email
	s.refresh[refresh] = email
	return token, refresh
}

func (s *Server) tokenResponse(c *fiber.Ctx, status int, u *User, token, refresh string) error {
	data := fiber.Map{
		"user":          u,
		"access_token":  token,
		"refresh_token": refresh,
	}
	if s.ExpiresIn > 0 {
		data["expires_in"] = s.ExpiresIn
	}
	return c.Status(status).JSON(fiber.Map{"success": true, "data": data})
}

func (s *Server) login(c *fiber.Ctx) error {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.BodyParser(&body); err != nil {
		return reject(c, fiber.StatusBadRequest, "Malformed body")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[strings.ToLower(body.Email)]
	if !ok || u.Password != body.Password {
		return reject(c, fiber.StatusUnauthorized, "Invalid email or password")
	}
	token, refresh := s.issue(u.Email)
	return s.tokenResponse(c, fiber.StatusOK, u, token, refresh)
}

func (s *Server) register(c *fiber.Ctx) error {
	var body struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.BodyParser(&body); err != nil {
		return reject(c, fiber.StatusBadRequest, "Malformed body")
	}
	if body.Email == "" || body.Password == "" {
		return reject(c, fiber.StatusBadRequest, "Email and password are required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	email := strings.ToLower(body.Email)
	if _, exists := s.users[email]; exists {
		return reject(c, fiber.StatusConflict, "Email already registered")
	}
	u := &User{ID: uuid.NewString(), Name: body.Name, Email: email, Password: body.Password}
	s.users[email] = u
	token, refresh := s.issue(email)
	return s.tokenResponse(c, fiber.StatusCreated, u, token, refresh)
}

func (s *Server) refreshToken(c *fiber.Ctx) error {
	var body struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := c.BodyParser(&body); err != nil {
		return reject(c, fiber.StatusBadRequest, "Malformed body")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	email, ok := s.refresh[body.RefreshToken]
	if !ok {
		return reject(c, fiber.StatusUnauthorized, "Invalid refresh token")
	}
	delete(s.refresh, body.RefreshToken)
	token, refresh := s.issue(email)
	return s.tokenResponse(c, fiber.StatusOK, s.users[email], token, refresh)
}

func (s *Server) logout(c *fiber.Ctx) error {
	token := strings.TrimPrefix(c.Get(fiber.HeaderAuthorization), "Bearer ")

	s.mu.Lock()
	delete(s.access, token)
	s.mu.Unlock()

	return c.JSON(fiber.Map{"success": true})
}

func (s *Server) me(c *fiber.Ctx) error {
	email, _ := c.Locals("email").(string)

	s.mu.Lock()
	u := s.users[email]
	s.mu.Unlock()

	if u == nil {
		return reject(c, fiber.StatusNotFound, "User not found")
	}
	return c.JSON(fiber.Map{"success": true, "data": fiber.Map{"user": u}})
}

func (s *Server) oauthCallback(c *fiber.Ctx) error {
	var body struct {
		Provider string `json:"provider"`
		Code     string `json:"code"`
	}
	if err := c.BodyParser(&body); err != nil {
		return reject(c, fiber.StatusBadRequest, "Malformed body")
	}
	if body.Code == "" {
		return reject(c, fiber.StatusBadRequest, "Missing authorization code")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	email := fmt.Sprintf("%s-user@example.com", body.Provider)
	u, ok := s.users[email]
	if !ok {
		u = &User{ID: uuid.NewString(), Name: body.Provider + " user", Email: email}
		s.users[email] = u
	}
	token, refresh := s.issue(email)
	return s.tokenResponse(c, fiber.StatusOK, u, token, refresh)
}

// insert must be called with s.mu held.
func (s *Server) insert(p Post) *Post {
	if p.ID == "" {
		s.nextID++
		p.ID = strconv.Itoa(s.nextID)
	}
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = p.CreatedAt
	}
	stored := p
	if _, exists := s.posts[p.ID]; !exists {
		s.order = append(s.order, p.ID)
	}
	s.posts[p.ID] = &stored
	return &stored
}

func (s *Server) listPosts(c *fiber.Ctx) error {
	page := c.QueryInt("page", 1)
	limit := c.QueryInt("limit", 10)
	if page < 1 || limit < 1 {
		return reject(c, fiber.StatusBadRequest, "page and limit must be positive")
	}
	tag := c.Query("tag")
	search := strings.ToLower(c.Query("search"))

	s.mu.Lock()
	matched := make([]Post, 0, len(s.order))
	for i := len(s.order) - 1; i >= 0; i-- {
		p := s.posts[s.order[i]]
		if tag != "" && !slices.Contains(p.Tags, tag) {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(p.Title+" "+p.Content), search) {
			continue
		}
		matched = append(matched, *p)
	}
	s.mu.Unlock()

	start := min((page-1)*limit, len(matched))
	end := min(start+limit, len(matched))

	return c.JSON(fiber.Map{
		"success": true,
		"data":    matched[start:end],
		"pagination": fiber.Map{
			"total": len(matched),
			"page":  page,
			"limit": limit,
		},
	})
}

func (s *Server) tags(c *fiber.Ctx) error {
	s.mu.Lock()
	seen := make(map[string]struct{})
	for _, p := range s.posts {
		for _, t := range p.Tags {
			seen[t] = struct{}{}
		}
	}
	s.mu.Unlock()

	out := make([]string, 0, len(seen))
	for t := range seen {
		out = append(out, t)
	}
	sort.Strings(out)
	return c.JSON(fiber.Map{"success": true, "data": out})
}

func (s *Server) getPost(c *fiber.Ctx) error {
	s.mu.Lock()
	p, ok := s.posts[c.Params("id")]
	var out Post
	if ok {
		out = *p
	}
	s.mu.Unlock()

	if !ok {
		return reject(c, fiber.StatusNotFound, "Blog not found")
	}
	return c.JSON(fiber.Map{"success": true, "data": out})
}

type draft struct {
	Title     string   `json:"title"`
	Excerpt   string   `json:"excerpt"`
	Content   string   `json:"content"`
	Tags      []string `json:"tags"`
	Published bool     `json:"published"`
}

func (s *Server) createPost(c *fiber.Ctx) error {
	var d draft
	if err := c.BodyParser(&d); err != nil || d.Title == "" {
		return reject(c, fiber.StatusBadRequest, "Title is required")
	}
	email, _ := c.Locals("email").(string)

	s.mu.Lock()
	p := s.insert(Post{
		Title:     d.Title,
		Excerpt:   d.Excerpt,
		Content:   d.Content,
		Tags:      d.Tags,
		Published: d.Published,
		Author:    email,
	})
	out := *p
	s.mu.Unlock()

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": out})
}

func (s *Server) updatePost(c *fiber.Ctx) error {
	var d draft
	if err := c.BodyParser(&d); err != nil || d.Title == "" {
		return reject(c, fiber.StatusBadRequest, "Title is required")
	}
	email, _ := c.Locals("email").(string)

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.posts[c.Params("id")]
	if !ok {
		return reject(c, fiber.StatusNotFound, "Blog not found")
	}
	if p.Author != "" && p.Author != email {
		return reject(c, fiber.StatusForbidden, "You can only edit your own posts")
	}
	p.Title, p.Excerpt, p.Content, p.Tags, p.Published = d.Title, d.Excerpt, d.Content, d.Tags, d.Published
	p.UpdatedAt = time.Now().UTC()
	return c.JSON(fiber.Map{"success": true, "data": *p})
}

func (s *Server) deletePost(c *fiber.Ctx) error {
	email, _ := c.Locals("email").(string)
	id := c.Params("id")

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.posts[id]
	if !ok {
		return reject(c, fiber.StatusNotFound, "Blog not found")
	}
	if p.Author != "" && p.Author != email {
		return reject(c, fiber.StatusForbidden, "You can only delete your own posts")
	}
	delete(s.posts, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"success": true})
}
