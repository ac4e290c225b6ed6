package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"

	importapp "github.com/eshop/backend/internal/application/import"
	"github.com/eshop/backend/internal/domain/bulk"
	"github.com/eshop/backend/internal/infrastructure/scheduler"
	"github.com/eshop/backend/internal/interfaces/http/handler"
)

type okPinger struct{}

func (okPinger) Ping() error { return nil }

type noRuns struct{}

func (noRuns) Resolve(string) (importapp.Adapter, importapp.Entry, error) {
	return importapp.Adapter{Name: "cpi"}, importapp.Entry{Name: "cpi"}, nil
}
func (noRuns) IsRunning(string) bool                                { return false }
func (noRuns) Suppliers(context.Context) []importapp.SupplierStatus { return nil }

type acceptAll struct{}

func (acceptAll) SubmitImport(supplier string, trigger bulk.Trigger) (*scheduler.Job, error) {
	return scheduler.NewImportJob(supplier, trigger, 0), nil
}

func TestNew(t *testing.T) {
	gin.SetMode(gin.TestMode)
	engine := New(Config{ServiceName: "test", TriggerPerMinute: 1, CORSOrigins: []string{"*"}}, Handlers{
		Import: handler.NewImportHandler(noRuns{}, acceptAll{}, nil),
		Health: handler.NewHealthHandler(map[string]handler.Pinger{"database": okPinger{}}),
	}, zaptest.NewLogger(t))

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	w = httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/imports/suppliers", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/imports/cpi", nil))
	assert.Equal(t, http.StatusAccepted, w.Code)

	w = httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/imports/cpi", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code, "manual triggers are rate limited")

	w = httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/nope", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
