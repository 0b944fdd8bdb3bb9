// Package testutil builds the database, router and fixtures shared by the
// handler tests.
package testutil

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"blogicum/common"
	"blogicum/database"
	"blogicum/models"
	"blogicum/web"
)

// CSRFToken is the token every session created by LoginCookies carries.
const CSRFToken = "test-csrf-token"

// Password is the plain password of every fixture user.
const Password = "password123"

// NewDB opens a private in-memory database with all tables migrated.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	db, err := database.OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("database handle: %v", err)
	}
	// every connection to :memory: is a new database
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := database.RunMigrations(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// NewRouter returns an engine with the session, user and CSRF middleware the
// application installs, plus a /__test/login/:id route that signs a user in.
func NewRouter(t testing.TB, db *gorm.DB, register ...func(*gin.Engine)) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.SetHTMLTemplate(web.Templates())
	router.Use(sessions.Sessions("blogicum_session", cookie.NewStore([]byte("test-secret"))))
	router.Use(common.LoadUser(db))

	// registered before CSRF so the route can set a known token
	router.GET("/__test/login/:id", func(c *gin.Context) {
		var id uint
		fmt.Sscan(c.Param("id"), &id)
		session := sessions.Default(c)
		session.Clear()
		if id != 0 {
			session.Set(common.SessionUserKey, id)
		}
		session.Set("csrf_token", CSRFToken)
		session.Save()
		c.Status(http.StatusNoContent)
	})

	router.Use(common.CSRF())
	for _, r := range register {
		r(router)
	}
	router.NoRoute(common.NotFound)
	return router
}

// LoginCookies returns session cookies for user. A nil user gives an
// anonymous session that still carries CSRFToken.
func LoginCookies(t testing.TB, router http.Handler, user *models.User) []*http.Cookie {
	t.Helper()

	var id uint
	if user != nil {
		id = user.ID
	}
	req := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/__test/login/%d", id), nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Fatalf("test login: status %d", w.Code)
	}
	return w.Result().Cookies()
}

// Get performs a GET request with cookies.
func Get(router http.Handler, path string, cookies []*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// PostForm submits form with the CSRF token added.
func PostForm(router http.Handler, path string, form url.Values, cookies []*http.Cookie) *httptest.ResponseRecorder {
	if form == nil {
		form = url.Values{}
	}
	if form.Get(common.CSRFFormField) == "" {
		form.Set(common.CSRFFormField, CSRFToken)
	}
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func CreateUser(t testing.TB, db *gorm.DB, username string) *models.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(Password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	user := &models.User{
		Username:     username,
		FirstName:    strings.ToUpper(username[:1]) + username[1:],
		Email:        username + "@example.com",
		PasswordHash: string(hash),
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("create user %s: %v", username, err)
	}
	return user
}

func CreateCategory(t testing.TB, db *gorm.DB, slug string, published bool) *models.Category {
	t.Helper()

	category := &models.Category{
		Title:       strings.ToUpper(slug[:1]) + slug[1:],
		Description: "About " + slug,
		Slug:        slug,
		IsPublished: published,
	}
	if err := db.Create(category).Error; err != nil {
		t.Fatalf("create category %s: %v", slug, err)
	}
	return category
}

func CreateLocation(t testing.TB, db *gorm.DB, name string, published bool) *models.Location {
	t.Helper()

	location := &models.Location{Name: name, IsPublished: published}
	if err := db.Create(location).Error; err != nil {
		t.Fatalf("create location %s: %v", name, err)
	}
	return location
}

// PostOptions tweaks the post CreatePost inserts. The zero value is a
// published post dated an hour ago.
type PostOptions struct {
	Title    string
	Draft    bool
	PubDate  time.Time
	Category *models.Category
	Location *models.Location
}

func CreatePost(t testing.TB, db *gorm.DB, author *models.User, opts PostOptions) *models.Post {
	t.Helper()

	if opts.Title == "" {
		opts.Title = "Post by " + author.Username
	}
	if opts.PubDate.IsZero() {
		opts.PubDate = time.Now().Add(-time.Hour)
	}
	post := &models.Post{
		Title:       opts.Title,
		Text:        "Some *text* for " + opts.Title,
		PubDate:     opts.PubDate,
		IsPublished: !opts.Draft,
		AuthorID:    author.ID,
	}
	if opts.Category != nil {
		post.CategoryID = &opts.Category.ID
	}
	if opts.Location != nil {
		post.LocationID = &opts.Location.ID
	}
	if err := db.Omit("Author", "Category", "Location").Create(post).Error; err != nil {
		t.Fatalf("create post %s: %v", opts.Title, err)
	}
	return post
}

func CreateComment(t testing.TB, db *gorm.DB, post *models.Post, author *models.User, text string) *models.Comment {
	t.Helper()

	comment := &models.Comment{PostID: post.ID, AuthorID: author.ID, Text: text}
	if err := db.Omit("Author").Create(comment).Error; err != nil {
		t.Fatalf("create comment: %v", err)
	}
	return comment
}
