package pages

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"blogicum/testutil"
)

func TestStaticPages(t *testing.T) {
	db := testutil.NewDB(t)
	router := testutil.NewRouter(t, db, NewPagesModule(db, "").RegisterRoutes)

	w := testutil.Get(router, "/pages/about/", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "About")

	w = testutil.Get(router, "/pages/rules/", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Rules")
}

func TestNotFound(t *testing.T) {
	db := testutil.NewDB(t)
	router := testutil.NewRouter(t, db, NewPagesModule(db, "").RegisterRoutes)

	w := testutil.Get(router, "/no/such/page/", nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
}

func TestSitemap(t *testing.T) {
	db := testutil.NewDB(t)
	alice := testutil.CreateUser(t, db, "alice")
	news := testutil.CreateCategory(t, db, "news", true)
	testutil.CreateCategory(t, db, "hidden", false)
	public := testutil.CreatePost(t, db, alice, testutil.PostOptions{Category: news})
	draft := testutil.CreatePost(t, db, alice, testutil.PostOptions{Category: news, Draft: true})
	scheduled := testutil.CreatePost(t, db, alice, testutil.PostOptions{Category: news, PubDate: time.Now().Add(time.Hour)})

	router := testutil.NewRouter(t, db, NewPagesModule(db, "https://blogicum.example/").RegisterRoutes)
	w := testutil.Get(router, "/sitemap.xml", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/xml; charset=utf-8", w.Header().Get("Content-Type"))

	body := w.Body.String()
	assert.Contains(t, body, "<loc>https://blogicum.example/</loc>")
	assert.Contains(t, body, "<loc>https://blogicum.example/category/news/</loc>")
	assert.NotContains(t, body, "/category/hidden/")
	assert.Contains(t, body, fmt.Sprintf("<loc>https://blogicum.example/posts/%d/</loc>", public.ID))
	assert.NotContains(t, body, fmt.Sprintf("/posts/%d/", draft.ID))
	assert.NotContains(t, body, fmt.Sprintf("/posts/%d/", scheduled.ID))
}

func TestRecovery(t *testing.T) {
	db := testutil.NewDB(t)
	router := testutil.NewRouter(t, db, func(r *gin.Engine) {
		r.Use(Recovery())
		r.GET("/boom", func(c *gin.Context) { panic("boom") })
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "Something went wrong")
}
