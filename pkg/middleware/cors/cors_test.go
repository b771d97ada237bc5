package cors

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func newRouter(origins []string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(New(origins))
	r.GET("/student-requests/REQ25040001", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func TestPreflightShortCircuits(t *testing.T) {
	req := httptest.NewRequest(http.MethodOptions, "/student-requests/REQ25040001", nil)
	req.Header.Set("Origin", "http://portal.test")
	w := httptest.NewRecorder()
	newRouter([]string{"http://portal.test/"}).ServeHTTP(w, req)

	require.Equal(t, http.StatusNoContent, w.Code)
	require.Equal(t, "http://portal.test", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestUnknownOriginNotEchoed(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/student-requests/REQ25040001", nil)
	req.Header.Set("Origin", "http://evil.test")
	w := httptest.NewRecorder()
	newRouter([]string{"http://portal.test"}).ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestOriginMatchIgnoresCaseAndSlash(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/student-requests/REQ25040001", nil)
	req.Header.Set("Origin", "HTTP://Portal.test")
	w := httptest.NewRecorder()
	newRouter([]string{" http://portal.test/ "}).ServeHTTP(w, req)

	require.Equal(t, "HTTP://Portal.test", w.Header().Get("Access-Control-Allow-Origin"))
	require.Equal(t, "Content-Disposition", strings.TrimSpace(strings.Split(w.Header().Get("Access-Control-Expose-Headers"), ",")[1]))
}
