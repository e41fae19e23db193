package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"bnka/portal/internal/config"
	"bnka/portal/internal/handlers"
)

func TestHTTPServer_Routes(t *testing.T) {
	cfg := &config.AppConfig{
		Environment:      "test",
		HTTP:             config.HTTPConfig{Host: "127.0.0.1", Port: 0},
		AllowCORSOrigins: []string{"https://portal.example"},
	}
	hs := handlers.NewHandlerSet(handlers.Deps{
		Log: zerolog.Nop(),
		HealthChecks: map[string]handlers.HealthCheck{
			"postgres": func(context.Context) error { return nil },
		},
		LoginRate:  1,
		LoginBurst: 1,
	})
	srv := NewHTTPServer(cfg, zerolog.Nop(), hs)

	req := httptest.NewRequest(http.MethodGet, "/api/healthz", nil)
	req.Header.Set("Origin", "https://portal.example")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
	assert.Equal(t, "https://portal.example", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
