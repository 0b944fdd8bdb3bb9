package app

import (
	"context"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blogicum/config"
	"blogicum/testutil"
)

var csrfInput = regexp.MustCompile(`name="csrfmiddlewaretoken" value="([^"]+)"`)

func testConfig(t *testing.T) *config.Config {
	return &config.Config{
		Env:            "test",
		Port:           "0",
		Domain:         "http://blog.test",
		SessionSecret:  "a-test-secret-that-is-long-enough-123",
		DBDriver:       "sqlite",
		DatabaseURL:    ":memory:",
		MediaDir:       t.TempDir(),
		CacheDir:       t.TempDir(),
		CacheTTL:       time.Minute,
		PageSize:       10,
		StaffUsernames: "boss",
	}
}

func setupApp(t *testing.T) (*App, *config.Config) {
	gin.SetMode(gin.TestMode)
	cfg := testConfig(t)
	db := testutil.NewDB(t)
	application, err := New(cfg, db)
	require.NoError(t, err)

	author := testutil.CreateUser(t, db, "writer")
	category := testutil.CreateCategory(t, db, "travel", true)
	testutil.CreatePost(t, db, author, testutil.PostOptions{Title: "Hello Lisbon", Category: category})
	return application, cfg
}

func TestNew_ServesPublicPages(t *testing.T) {
	application, _ := setupApp(t)

	w := testutil.Get(application.Router, "/", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Hello Lisbon")

	var sessionCookie bool
	for _, c := range w.Result().Cookies() {
		if c.Name == SessionName {
			sessionCookie = true
			assert.True(t, c.HttpOnly)
		}
	}
	assert.True(t, sessionCookie)

	w = testutil.Get(application.Router, "/category/travel/", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = testutil.Get(application.Router, "/pages/about/", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = testutil.Get(application.Router, "/no/such/page/", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestNew_CachesPostDetail(t *testing.T) {
	application, _ := setupApp(t)

	first := testutil.Get(application.Router, "/posts/1/", nil)
	require.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "MISS", first.Header().Get("X-Cache"))

	second := testutil.Get(application.Router, "/posts/1/", nil)
	require.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, "HIT", second.Header().Get("X-Cache"))
	assert.Equal(t, first.Body.String(), second.Body.String())
}

func TestNew_RejectsPostWithoutCSRFToken(t *testing.T) {
	application, _ := setupApp(t)

	w := testutil.PostForm(application.Router, "/auth/login/", url.Values{
		"username":            {"writer"},
		"password":            {testutil.Password},
		"csrfmiddlewaretoken": {"forged"},
	}, nil)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestNew_LoginWithPageToken(t *testing.T) {
	application, _ := setupApp(t)

	page := testutil.Get(application.Router, "/auth/login/", nil)
	require.Equal(t, http.StatusOK, page.Code)
	match := csrfInput.FindStringSubmatch(page.Body.String())
	require.Len(t, match, 2)

	w := testutil.PostForm(application.Router, "/auth/login/", url.Values{
		"username":            {"writer"},
		"password":            {testutil.Password},
		"csrfmiddlewaretoken": {match[1]},
	}, page.Result().Cookies())

	assert.Equal(t, http.StatusFound, w.Code)
}

func TestNew_StaffAndMetrics(t *testing.T) {
	application, _ := setupApp(t)

	w := testutil.Get(application.Router, "/staff/categories/", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	testutil.Get(application.Router, "/", nil)
	w = testutil.Get(application.Router, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `blogicum_http_requests_total{method="GET",route="/",status="200"}`)
	assert.Contains(t, w.Body.String(), "blogicum_database_query_latency_seconds")
}

func TestNew_ServesMedia(t *testing.T) {
	application, cfg := setupApp(t)
	require.NoError(t, os.MkdirAll(filepath.Join(cfg.MediaDir, "posts"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(cfg.MediaDir, "posts", "a.txt"), []byte("media body"), 0o644))

	w := testutil.Get(application.Router, "/media/posts/a.txt", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "media body", w.Body.String())
}

func TestSweepCache_StopsWithContext(t *testing.T) {
	application, _ := setupApp(t)
	require.NoError(t, application.Cache.Write("/posts/1/", "page"))
	old := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(application.Cache.Path("/posts/1/"), old, old))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		application.SweepCache(ctx, 10*time.Millisecond)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		_, err := os.Stat(application.Cache.Path("/posts/1/"))
		return os.IsNotExist(err)
	}, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("SweepCache did not return after cancel")
	}
}
