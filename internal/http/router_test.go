package http

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/geocoder89/registrationhub/internal/domain/registration"
	"github.com/geocoder89/registrationhub/internal/http/handlers"
	"github.com/geocoder89/registrationhub/internal/http/middlewares"
)

type stubService struct{}

func (stubService) Create(_ context.Context, req registration.CreateRequest) (registration.Registration, error) {
	return registration.Registration{ID: 1, Email: req.Email, Status: registration.StatusProcessing}, nil
}

func (stubService) GetByID(context.Context, int64) (registration.Registration, bool, error) {
	return registration.Registration{}, false, nil
}

func (stubService) List(context.Context) ([]registration.Registration, error) {
	return nil, nil
}

func (stubService) Update(context.Context, int64, registration.UpdateRequest) (registration.Registration, bool, error) {
	return registration.Registration{}, false, nil
}

func (stubService) Delete(context.Context, int64) (bool, error) {
	return false, nil
}

var _ handlers.RegistrationService = stubService{}

func newTestRouter(ping func(ctx context.Context) error) http.Handler {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewRouter(log, RouterDeps{Env: "test", Registrations: stubService{}, Ping: ping})
}

func TestRouter_RequiresJSONForWrites(t *testing.T) {
	r := newTestRouter(nil)

	req := httptest.NewRequest(http.MethodPost, "/registrations", bytes.NewBufferString(`{}`))
	req.Header.Set("Content-Type", "text/plain")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("got %d, want %d", w.Code, http.StatusUnsupportedMediaType)
	}
}

func TestRouter_SetsRequestIDAndSecurityHeaders(t *testing.T) {
	r := newTestRouter(nil)

	req := httptest.NewRequest(http.MethodGet, "/registrations", nil)
	req.Header.Set(middlewares.RequestIDHeader, "req-123")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("got %d, want %d", w.Code, http.StatusNoContent)
	}
	if got := w.Header().Get(middlewares.RequestIDHeader); got != "req-123" {
		t.Fatalf("request id not echoed, got %q", got)
	}
	if got := w.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Fatalf("missing security headers, got %q", got)
	}
}

func TestRouter_ReadinessFollowsPing(t *testing.T) {
	ok := newTestRouter(func(context.Context) error { return nil })
	down := newTestRouter(func(context.Context) error { return errors.New("db down") })

	w := httptest.NewRecorder()
	ok.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("ready: got %d", w.Code)
	}

	w = httptest.NewRecorder()
	down.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("not ready: got %d", w.Code)
	}
}

func TestRouter_CreateRoute(t *testing.T) {
	r := newTestRouter(nil)

	body := `{"firstName":"Ana","lastName":"Lopez","email":"ana@x.com","age":30,"countryCode":"ES"}`
	req := httptest.NewRequest(http.MethodPost, "/registrations", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("got %d, body=%s", w.Code, w.Body.String())
	}
}
