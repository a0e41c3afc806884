package worker

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestHealthRouter(t *testing.T) {
	ok := pingFunc(func(context.Context) error { return nil })
	down := pingFunc(func(context.Context) error { return errors.New("down") })

	tests := []struct {
		name     string
		path     string
		deps     map[string]Pinger
		shutdown bool
		want     int
	}{
		{name: "liveness", path: "/healthz", want: http.StatusOK},
		{name: "ready", path: "/readyz", deps: map[string]Pinger{"db": ok, "broker": ok}, want: http.StatusOK},
		{name: "dependency down", path: "/readyz", deps: map[string]Pinger{"db": ok, "broker": down}, want: http.StatusServiceUnavailable},
		{name: "shutting down", path: "/readyz", deps: map[string]Pinger{"db": ok}, shutdown: true, want: http.StatusServiceUnavailable},
		{name: "metrics", path: "/metrics", want: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ready := &Readiness{}
			if tt.shutdown {
				ready.ShutDown()
			}

			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			HealthRouter(ready, tt.deps).ServeHTTP(rec, req)

			if rec.Code != tt.want {
				t.Fatalf("GET %s: got %d, want %d (body=%s)", tt.path, rec.Code, tt.want, rec.Body.String())
			}
		})
	}
}
