package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

// This package's tests never call InitRegistry, so /metrics reports that
// collection is disabled.
func TestHandlerDisabled(t *testing.T) {
	h := Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "/metrics")

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/other", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServerDefaults(t *testing.T) {
	assert.Equal(t, 9090, NewServer(ServerConfig{}).Port())
	assert.Equal(t, 9100, NewServer(ServerConfig{Port: 9100}).Port())
}

func TestNoopMetrics(t *testing.T) {
	assert.False(t, IsEnabled())

	sm := NewNoopSocketMetrics()
	sm.RecordRequest("open", 0, "Ok")
	sm.RecordConnectionForceClosed()

	NewNoopSnapshotMetrics().SetSnapshotSize(1, 1)
}
