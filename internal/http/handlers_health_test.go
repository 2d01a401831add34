package httpx

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	domainauth "github.com/pdsapp/pds/internal/domain/auth"
	"github.com/pdsapp/pds/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthHandlerGET(t *testing.T) {
	s := newTestStack(t, domainauth.RoleParent)

	w := s.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var body healthBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, healthBody{Status: "ok", SignIn: "available"}, body)
}

func TestHealthHandlerHEAD(t *testing.T) {
	s := newTestStack(t, domainauth.RoleParent)

	w := s.do(httptest.NewRequest(http.MethodHead, "/healthz", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Zero(t, w.Body.Len())
}

func TestHealthHandlerReportsUnavailableSignIn(t *testing.T) {
	auth := service.NewAuthService(service.AuthServiceOptions{
		Sessions: service.NewUnavailableSessionTracker(errors.New("redis client not configured"), nil),
	})
	w := httptest.NewRecorder()
	NewRouter(RouterServices{Auth: auth}).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var body healthBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "unavailable", body.SignIn)
}
