package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func corsRouter(origin string) *gin.Engine {
	r := gin.New()
	r.Use(CORS(origin))
	r.GET("/documents", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	return r
}

func TestCORS_SetsHeaders(t *testing.T) {
	w := httptest.NewRecorder()
	corsRouter("https://app.example").ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/documents", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "https://app.example", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Expose-Headers"), "Retry-After")
}

func TestCORS_Preflight(t *testing.T) {
	w := httptest.NewRecorder()
	corsRouter("*").ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/documents", nil))

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORS_DisabledWhenOriginEmpty(t *testing.T) {
	w := httptest.NewRecorder()
	corsRouter("").ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/documents", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}
