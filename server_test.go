package main

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"bitbucket.org/mmdatafocus/paymentsync_backend/utils"
	"github.com/gin-gonic/gin"
)

func authTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(bearerAuthMiddleware())
	r.GET("/protected", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	return r
}

func authRequest(t *testing.T, header string, value string) int {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if header != "" {
		req.Header.Set(header, value)
	}
	authTestRouter().ServeHTTP(w, req)
	return w.Code
}

func TestBearerAuthMiddleware(t *testing.T) {
	token, err := utils.JwtGenerate("ops@example.com", "operator")
	if err != nil {
		t.Fatalf("JwtGenerate: %v", err)
	}

	cases := []struct {
		name   string
		header string
		value  string
		want   int
	}{
		{"valid bearer token", "Authorization", "Bearer " + token, http.StatusNoContent},
		{"valid legacy token header", "token", token, http.StatusNoContent},
		{"bearer glued to token", "Authorization", "Bearer" + token, http.StatusUnauthorized},
		{"bearer scheme without token", "Authorization", "Bearer ", http.StatusUnauthorized},
		{"garbage token", "Authorization", "Bearer not-a-jwt", http.StatusUnauthorized},
		{"missing header", "", "", http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := authRequest(t, tc.header, tc.value); got != tc.want {
				t.Fatalf("expected status %d, got %d", tc.want, got)
			}
		})
	}
}
