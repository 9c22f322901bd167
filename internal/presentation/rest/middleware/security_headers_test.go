package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSecurityHeadersMiddleware(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		wantCSP string
	}{
		{"正常系: APIパス", "/api/v1/change/status", apiCSP},
		{"正常系: Swagger UI", "/swagger/index.html", swaggerCSP},
		{"正常系: ReDoc", "/redoc", swaggerCSP},
		{"正常系: OpenAPI定義", "/openapi.yaml", swaggerCSP},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			rec := httptest.NewRecorder()
			c := e.NewContext(httptest.NewRequest(http.MethodGet, tt.path, nil), rec)

			handler := SecurityHeadersMiddleware()(func(c echo.Context) error {
				return c.NoContent(http.StatusOK)
			})

			require.NoError(t, handler(c))
			assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
			assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
			assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
			assert.Equal(t, tt.wantCSP, rec.Header().Get("Content-Security-Policy"))
			assert.Empty(t, rec.Header().Get("Strict-Transport-Security"))
		})
	}
}

func TestSecurityHeadersMiddleware_HSTSOverTLS(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/change/status", nil)
	req.Header.Set(echo.HeaderXForwardedProto, "https")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := SecurityHeadersMiddleware()(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	require.NoError(t, handler(c))
	assert.Contains(t, rec.Header().Get("Strict-Transport-Security"), "max-age=31536000")
}
