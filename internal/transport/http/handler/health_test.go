package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
)

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func healthRouter(p Pinger) http.Handler {
	r := chi.NewRouter()
	r.Get("/v1/health-check/{action}", NewHealthHandler(p).Ping)
	return r
}

func get(router http.Handler, target string) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, target, nil))
	return rr
}

func TestHealthHandler(t *testing.T) {
	up := healthRouter(pingerFunc(func(context.Context) error { return nil }))
	down := healthRouter(pingerFunc(func(context.Context) error { return errors.New("no route to host") }))

	rr := get(up, "/v1/health-check/ping")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"message":"pong"}`, rr.Body.String())

	rr = get(up, "/v1/health-check/ready")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"message":"ready"}`, rr.Body.String())

	rr = get(down, "/v1/health-check/ready")
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.JSONEq(t, `{"error":"store unavailable","reason":"unavailable"}`, rr.Body.String())

	// ping does not touch the store
	rr = get(down, "/v1/health-check/ping")
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = get(up, "/v1/health-check/bogus")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
