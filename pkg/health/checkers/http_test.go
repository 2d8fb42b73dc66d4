package checkers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPChecker_Healthy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	checker := NewHTTPChecker(srv.URL, "upstream")
	assert.Equal(t, "upstream", checker.Name())
	assert.NoError(t, checker.Check(context.Background()))
}

func TestHTTPChecker_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	checker := NewHTTPChecker(srv.URL, "")
	assert.Equal(t, srv.URL, checker.Name())
	assert.Error(t, checker.Check(context.Background()))
}

func TestHTTPChecker_ClientErrorIsHealthy(t *testing.T) {
	// 4xx means the endpoint is reachable and serving; only 5xx is unhealthy
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	checker := NewHTTPChecker(srv.URL, "upstream")
	assert.NoError(t, checker.Check(context.Background()))
}

func TestHTTPChecker_Unreachable(t *testing.T) {
	checker := NewHTTPChecker("http://127.0.0.1:1", "dead")
	assert.Error(t, checker.Check(context.Background()))
}
