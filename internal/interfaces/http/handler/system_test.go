package handler

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

type pingFunc func() error

func (f pingFunc) Ping() error { return f() }

func TestHealthHandler(t *testing.T) {
	up := pingFunc(func() error { return nil })
	down := pingFunc(func() error { return errors.New("connection refused") })

	for name, tc := range map[string]struct {
		checks map[string]Pinger
		status int
		body   string
	}{
		"healthy":  {map[string]Pinger{"database": up}, http.StatusOK, `"database":"up"`},
		"degraded": {map[string]Pinger{"database": up, "redis": down}, http.StatusServiceUnavailable, `"redis":"down: connection refused"`},
	} {
		t.Run(name, func(t *testing.T) {
			engine := gin.New()
			engine.GET("/health", NewHealthHandler(tc.checks).Health)
			w := httptest.NewRecorder()
			engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

			assert.Equal(t, tc.status, w.Code)
			assert.Contains(t, w.Body.String(), tc.body)
		})
	}
}
