package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blogicum/models"
	"blogicum/testutil"
)

func setupTestRouter(m *Metrics) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(m.Middleware())
	m.RegisterRoutes(router)
	router.GET("/posts/:id/", func(c *gin.Context) {
		c.String(http.StatusOK, c.Param("id"))
	})
	return router
}

func TestMiddleware_UsesRoutePattern(t *testing.T) {
	m := New()
	router := setupTestRouter(m)

	for _, path := range []string{"/posts/1/", "/posts/2/", "/nowhere"} {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, 2.0, promtest.ToFloat64(m.HTTPRequests.WithLabelValues("GET", "/posts/:id/", "200")))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.HTTPRequests.WithLabelValues("GET", "unmatched", "404")))
	assert.Equal(t, 2, promtest.CollectAndCount(m.HTTPDuration))
}

func TestHandler_ExposesMetrics(t *testing.T) {
	m := New()
	router := setupTestRouter(m)
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/posts/1/", nil))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "blogicum_http_requests_total")
	assert.Contains(t, w.Body.String(), "go_goroutines")
}

func TestInstrumentDB(t *testing.T) {
	m := New()
	db := testutil.NewDB(t)
	require.NoError(t, m.InstrumentDB(db))

	user := testutil.CreateUser(t, db, "alice")
	var loaded models.User
	require.NoError(t, db.First(&loaded, user.ID).Error)

	assert.Equal(t, uint64(1), histogramCount(t, m, "create", "users"))
	assert.Equal(t, uint64(1), histogramCount(t, m, "query", "users"))
}

func histogramCount(t *testing.T, m *Metrics, operation, table string) uint64 {
	t.Helper()
	families, err := m.registry.Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() != "blogicum_database_query_latency_seconds" {
			continue
		}
		for _, metric := range family.GetMetric() {
			labels := map[string]string{}
			for _, l := range metric.GetLabel() {
				labels[l.GetName()] = l.GetValue()
			}
			if labels["operation"] == operation && labels["table"] == table {
				return metric.GetHistogram().GetSampleCount()
			}
		}
	}
	return 0
}
