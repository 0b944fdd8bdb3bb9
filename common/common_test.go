package common

import (
	"bytes"
	"errors"
	"log"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"testing"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	gsessions "github.com/gorilla/sessions"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blogicum/models"
	"blogicum/web"
)

func TestNewPage(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		total    int64
		number   int
		numPages int
	}{
		{"first page by default", "", 25, 1, 3},
		{"explicit page", "2", 25, 2, 3},
		{"not a number", "abc", 25, 1, 3},
		{"negative", "-4", 25, 1, 3},
		{"past the end", "9", 25, 3, 3},
		{"exact multiple", "2", 20, 2, 2},
		{"empty listing", "3", 0, 1, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page := NewPage(tt.raw, 10, tt.total)
			assert.Equal(t, tt.number, page.Number)
			assert.Equal(t, tt.numPages, page.NumPages)
			assert.Equal(t, (tt.number-1)*10, page.Offset())
		})
	}
}

func TestPageNavigation(t *testing.T) {
	page := NewPage("2", 10, 35)

	assert.True(t, page.HasPrevious())
	assert.True(t, page.HasNext())
	assert.Equal(t, 1, page.Previous())
	assert.Equal(t, 3, page.Next())
	assert.True(t, page.HasOther())

	single := NewPage("1", 10, 5)
	assert.False(t, single.HasPrevious())
	assert.False(t, single.HasNext())
	assert.False(t, single.HasOther())
}

func TestSafeNext(t *testing.T) {
	assert.Equal(t, "/create/", SafeNext("/create/", "/"))
	assert.Equal(t, "/", SafeNext("", "/"))
	assert.Equal(t, "/", SafeNext("https://evil.example.com/", "/"))
	assert.Equal(t, "/", SafeNext("//evil.example.com/", "/"))
	assert.Equal(t, "/", SafeNext(`/\evil.example.com`, "/"))
}

type signupForm struct {
	Username string `form:"username" binding:"required,max=5"`
	Email    string `form:"email" binding:"omitempty,email"`
	Password string `form:"password" binding:"required"`
	Confirm  string `form:"password_confirm" binding:"eqfield=Password"`
}

func TestBindErrors_UsesFormNames(t *testing.T) {
	gin.SetMode(gin.TestMode)
	body := url.Values{
		"username":         {"toolongname"},
		"email":            {"not-an-email"},
		"password":         {"a"},
		"password_confirm": {"b"},
	}
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = req

	var form signupForm
	err := c.ShouldBindWith(&form, binding.Form)
	require.Error(t, err)

	errs := BindErrors(err)
	assert.Equal(t, "Ensure this value has at most 5 characters.", errs["username"])
	assert.Equal(t, "Enter a valid email address.", errs["email"])
	assert.Equal(t, "The two password fields didn't match.", errs["password_confirm"])
	assert.NotContains(t, errs, "password")
}

func TestBindErrors_NonValidationError(t *testing.T) {
	errs := BindErrors(errors.New("malformed"))
	assert.Equal(t, "Invalid form data.", errs[FormErrorKey])
	assert.Empty(t, BindErrors(nil))
}

func TestFormErrors_AddAppError(t *testing.T) {
	errs := FormErrors{}

	assert.True(t, errs.AddAppError(models.NewIntegrityError("username", "taken", nil)))
	assert.True(t, errs.AddAppError(models.NewValidationError("", "broken")))
	assert.False(t, errs.AddAppError(models.NewNotFoundError("post", 1)))
	assert.False(t, errs.AddAppError(errors.New("plain")))

	assert.Equal(t, "taken", errs["username"])
	assert.Equal(t, "broken", errs[FormErrorKey])

	// the first message for a field wins
	errs.Add("username", "second")
	assert.Equal(t, "taken", errs["username"])
}

func setupCSRFRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(sessions.Sessions("test-session", cookie.NewStore([]byte("secret"))))
	router.Use(CSRF())
	router.SetHTMLTemplate(web.Templates())
	router.GET("/form", func(c *gin.Context) {
		c.String(http.StatusOK, CSRFToken(c))
	})
	router.POST("/form", func(c *gin.Context) {
		c.String(http.StatusOK, "accepted")
	})
	return router
}

func TestCSRF(t *testing.T) {
	router := setupCSRFRouter()

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/form", nil))
	require.Equal(t, http.StatusOK, w.Code)
	token := w.Body.String()
	require.NotEmpty(t, token)
	cookies := w.Result().Cookies()

	post := func(form url.Values, header string) int {
		req := httptest.NewRequest(http.MethodPost, "/form", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		if header != "" {
			req.Header.Set(CSRFHeader, header)
		}
		for _, c := range cookies {
			req.AddCookie(c)
		}
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, post(url.Values{CSRFFormField: {token}}, ""))
	assert.Equal(t, http.StatusOK, post(url.Values{}, token))
	assert.Equal(t, http.StatusForbidden, post(url.Values{CSRFFormField: {"wrong"}}, ""))
	assert.Equal(t, http.StatusForbidden, post(url.Values{}, ""))
}

func TestCSRF_NoSession(t *testing.T) {
	router := setupCSRFRouter()

	req := httptest.NewRequest(http.MethodPost, "/form", strings.NewReader(url.Values{CSRFFormField: {""}}.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestGenerateToken(t *testing.T) {
	token, err := GenerateToken()

	assert.NoError(t, err)
	assert.NotEmpty(t, token)

	other, _ := GenerateToken()
	assert.NotEqual(t, token, other)
}

// unsavableStore reads cookies normally but cannot write them.
type unsavableStore struct {
	cookie.Store
}

func (unsavableStore) Save(*http.Request, http.ResponseWriter, *gsessions.Session) error {
	return errors.New("cookie too large")
}

func TestCSRF_LogsSessionSaveFailure(t *testing.T) {
	var logs bytes.Buffer
	log.SetOutput(&logs)
	t.Cleanup(func() { log.SetOutput(os.Stderr) })

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(sessions.Sessions("test-session", unsavableStore{cookie.NewStore([]byte("secret"))}))
	router.Use(CSRF())
	router.GET("/form", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/form", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, logs.String(), "save csrf token: cookie too large")
}
