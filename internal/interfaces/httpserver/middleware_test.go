package httpserver_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"values-server/services/articulator-api/internal/infrastructure/metrics"
	"values-server/services/articulator-api/internal/interfaces/httpserver"
)

func TestMetricsMiddleware_RecordsRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.Use(httpserver.MetricsMiddleware())
	engine.GET("/v1/cards/:card_id", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	before := testutil.ToFloat64(metrics.RequestsTotal.WithLabelValues("GET", "/v1/cards/:card_id", "200"))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/cards/42", nil)
	engine.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	// The label carries the route template, not the concrete path.
	after := testutil.ToFloat64(metrics.RequestsTotal.WithLabelValues("GET", "/v1/cards/:card_id", "200"))
	assert.Equal(t, before+1, after)
}

func TestMetricsMiddleware_UnmatchedRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.Use(httpserver.MetricsMiddleware())

	before := testutil.ToFloat64(metrics.RequestsTotal.WithLabelValues("GET", "unmatched", "404"))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/no/such/route", nil)
	engine.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)

	after := testutil.ToFloat64(metrics.RequestsTotal.WithLabelValues("GET", "unmatched", "404"))
	assert.Equal(t, before+1, after)
}
