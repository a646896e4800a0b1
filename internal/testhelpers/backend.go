// Package testhelpers runs an in-process Adrenalink backend for tests: the
// four auth endpoints with a signed session cookie, plus a few read-only
// resources behind the same session and role rules as the real service.
package testhelpers

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/oklog/ulid/v2"
	"golang.org/x/crypto/bcrypt"

	"github.com/adrenalink/adrenalink/internal/cli/client"
)

// SessionCookieName is the cookie carrying the backend session
const SessionCookieName = "session"

// SPAOrigin is the browser origin allowed by CORS
const SPAOrigin = "http://localhost:3000"

// Override replaces the response of one endpoint
type Override struct {
	Status      int
	ContentType string
	Body        string
	// Delay holds the response back; a cancelled request stops waiting
	Delay time.Duration
}

type backendUser struct {
	ID           string
	Username     string
	FullName     string
	Email        string
	PasswordHash []byte
	Role         string
}

func (u *backendUser) public() client.User {
	return client.User{
		ID:       client.ID(u.ID),
		Username: u.Username,
		FullName: u.FullName,
		Email:    u.Email,
		Role:     u.Role,
	}
}

// Backend is a fake Adrenalink REST backend
type Backend struct {
	URL string

	server *httptest.Server
	signer *tokenSigner

	mu        sync.Mutex
	users     map[string]*backendUser // by email
	calls     map[string]int          // by "METHOD /path"
	overrides map[string]Override
	gate      chan struct{}
	flatRole  bool
}

// NewBackend starts a backend that is shut down when the test ends
func NewBackend(t testing.TB) *Backend {
	t.Helper()

	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		t.Fatalf("failed to generate session secret: %v", err)
	}

	b := &Backend{
		signer:    &tokenSigner{secret: []byte(hex.EncodeToString(secret))},
		users:     make(map[string]*backendUser),
		calls:     make(map[string]int),
		overrides: make(map[string]Override),
	}

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{SPAOrigin},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE"},
		AllowHeaders:     []string{"Content-Type"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	r.Use(b.instrument)
	b.registerRoutes(r)

	b.server = httptest.NewServer(r)
	b.URL = b.server.URL
	t.Cleanup(b.Close)

	return b
}

// Close releases held requests and stops the server
func (b *Backend) Close() {
	b.mu.Lock()
	if b.gate != nil {
		close(b.gate)
		b.gate = nil
	}
	b.mu.Unlock()
	b.server.Close()
}

// AddUser registers an account and returns its public record
func (b *Backend) AddUser(t testing.TB, email, password, role string) client.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	username := strings.SplitN(email, "@", 2)[0]
	if username == "" {
		username = email
	}
	u := &backendUser{
		ID:           ulid.Make().String(),
		Username:     username,
		FullName:     strings.ToUpper(username[:1]) + username[1:],
		Email:        email,
		PasswordHash: hash,
		Role:         role,
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.users[email] = u
	return u.public()
}

// Calls returns how often an endpoint was hit
func (b *Backend) Calls(method, path string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[method+" "+path]
}

// Override makes an endpoint answer with a canned response
func (b *Backend) Override(method, path string, o Override) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.overrides[method+" "+path] = o
}

// ClearOverride restores the real handler of an endpoint
func (b *Backend) ClearOverride(method, path string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.overrides, method+" "+path)
}

// HoldCheckAuth blocks session verification until release is called
func (b *Backend) HoldCheckAuth() (release func()) {
	gate := make(chan struct{})

	b.mu.Lock()
	b.gate = gate
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			if b.gate == gate {
				close(gate)
				b.gate = nil
			}
			b.mu.Unlock()
		})
	}
}

// UseFlatRole makes check-auth answer {"logged_in": true, "user_role": ...}
// like the original service instead of nesting the user
func (b *Backend) UseFlatRole(flat bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.flatRole = flat
}

// instrument counts calls, applies holds and overrides
func (b *Backend) instrument(c *gin.Context) {
	key := c.Request.Method + " " + c.Request.URL.Path

	b.mu.Lock()
	b.calls[key]++
	override, overridden := b.overrides[key]
	var gate chan struct{}
	if c.Request.URL.Path == client.CheckAuthPath {
		gate = b.gate
	}
	b.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-c.Request.Context().Done():
			c.Abort()
			return
		}
	}

	if !overridden {
		c.Next()
		return
	}

	if override.Delay > 0 {
		select {
		case <-time.After(override.Delay):
		case <-c.Request.Context().Done():
			c.Abort()
			return
		}
	}

	status := override.Status
	if status == 0 {
		status = http.StatusOK
	}
	if override.ContentType != "" {
		c.Header("Content-Type", override.ContentType)
	}
	c.Status(status)
	_, _ = c.Writer.WriteString(override.Body)
	c.Abort()
}

func (b *Backend) registerRoutes(r *gin.Engine) {
	api := r.Group("/api")
	api.POST("/login", b.login)
	api.POST("/signup", b.signup)
	api.GET("/check-auth", b.checkAuth)
	api.POST("/logout", b.logout)

	// Public resources
	api.GET("/categories", listOf("category", "Climbing", "Skydiving", "White Water Rafting"))
	api.GET("/categories/:id", itemOf("category"))
	api.GET("/places", listOf("place", "Snowdon", "Ben Nevis"))
	api.GET("/place/:id", itemOf("place"))
	api.GET("/community/:id", itemOf("community"))
	api.GET("/users/:userId", itemOf("user"))
	api.GET("/users/:userId/favorites", listOf("favorite", "Snowdon"))

	// Session resources
	member := api.Group("", b.requireSession)
	member.GET("/user/favorites", listOf("favorite", "Snowdon"))
	member.GET("/profile/me", b.profile)

	// Admin resources
	admin := api.Group("/admin", b.requireSession, requireAdmin)
	admin.GET("/users", b.adminUsers)
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type signupRequest struct {
	Username string `json:"username" binding:"required"`
	FullName string `json:"full_name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

func (b *Backend) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Email and password are required"})
		return
	}

	b.mu.Lock()
	user, ok := b.users[req.Email]
	b.mu.Unlock()

	if !ok || bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(req.Password)) != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	if !b.startSession(c, user) {
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Login successful", "user": user.public()})
}

func (b *Backend) signup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "All fields are required"})
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.MinCost)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create user"})
		return
	}

	b.mu.Lock()
	if _, exists := b.users[req.Email]; exists {
		b.mu.Unlock()
		c.JSON(http.StatusConflict, gin.H{"error": "Email already registered"})
		return
	}
	user := &backendUser{
		ID:           ulid.Make().String(),
		Username:     req.Username,
		FullName:     req.FullName,
		Email:        req.Email,
		PasswordHash: hash,
		Role:         "client",
	}
	b.users[req.Email] = user
	b.mu.Unlock()

	if !b.startSession(c, user) {
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Signup successful", "user": user.public()})
}

func (b *Backend) startSession(c *gin.Context, user *backendUser) bool {
	token, err := b.signer.generateToken(user.ID, user.Role)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to start session"})
		return false
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(SessionCookieName, token, int((24 * time.Hour).Seconds()), "/", "", false, true)
	return true
}

func (b *Backend) checkAuth(c *gin.Context) {
	user, ok := b.sessionUser(c)
	if !ok {
		c.JSON(http.StatusOK, gin.H{"logged_in": false})
		return
	}

	b.mu.Lock()
	flat := b.flatRole
	b.mu.Unlock()

	if flat {
		c.JSON(http.StatusOK, gin.H{"logged_in": true, "user_role": user.Role})
		return
	}
	c.JSON(http.StatusOK, gin.H{"logged_in": true, "user": user.public()})
}

func (b *Backend) logout(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(SessionCookieName, "", -1, "/", "", false, true)
	c.JSON(http.StatusOK, gin.H{"message": "Logged out successfully"})
}

func (b *Backend) sessionUser(c *gin.Context) (*backendUser, bool) {
	token, err := c.Cookie(SessionCookieName)
	if err != nil || token == "" {
		return nil, false
	}

	claims, err := b.signer.validateToken(token)
	if err != nil {
		return nil, false
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, u := range b.users {
		if u.ID == claims.UserID {
			return u, true
		}
	}
	return nil, false
}

func (b *Backend) requireSession(c *gin.Context) {
	user, ok := b.sessionUser(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Not logged in"})
		return
	}
	c.Set("user", user)
	c.Next()
}

func requireAdmin(c *gin.Context) {
	user := c.MustGet("user").(*backendUser)
	if user.Role != "admin" {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Admin access required"})
		return
	}
	c.Next()
}

func (b *Backend) profile(c *gin.Context) {
	user := c.MustGet("user").(*backendUser)
	c.JSON(http.StatusOK, user.public())
}

func (b *Backend) adminUsers(c *gin.Context) {
	b.mu.Lock()
	users := make([]client.User, 0, len(b.users))
	for _, u := range b.users {
		users = append(users, u.public())
	}
	b.mu.Unlock()

	c.JSON(http.StatusOK, users)
}

func listOf(kind string, names ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		items := make([]gin.H, 0, len(names))
		for i, name := range names {
			items = append(items, gin.H{"id": i + 1, "kind": kind, "name": name})
		}
		c.JSON(http.StatusOK, items)
	}
}

func itemOf(kind string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		if id == "" {
			id = c.Param("userId")
		}
		c.JSON(http.StatusOK, gin.H{"id": id, "kind": kind})
	}
}
