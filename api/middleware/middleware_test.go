package middleware

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/pcstore-storefront/internal/workspace"
	pkgerrors "github.com/angelmondragon/pcstore-storefront/pkg/errors"
	"github.com/angelmondragon/pcstore-storefront/pkg/logger"
	"github.com/angelmondragon/pcstore-storefront/pkg/metrics"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "middleware-test", Output: io.Discard})
}

type stubRegistry struct {
	workspaces map[string]*workspace.Workspace
	asked      []string
}

func (s *stubRegistry) Get(_ context.Context, id string) (*workspace.Workspace, error) {
	s.asked = append(s.asked, id)
	if ws, ok := s.workspaces[id]; ok {
		return ws, nil
	}
	return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "session not found")
}

func TestSessionResolvesWorkspace(t *testing.T) {
	ws := &workspace.Workspace{ID: "s-1"}
	registry := &stubRegistry{workspaces: map[string]*workspace.Workspace{"s-1": ws}}

	var got *workspace.Workspace
	handler := Session(registry, testLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = WorkspaceFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/cart", nil)
	req.Header.Set(SessionHeader, " s-1 ")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got != ws {
		t.Fatalf("expected workspace in context")
	}
	if len(registry.asked) != 1 || registry.asked[0] != "s-1" {
		t.Fatalf("expected trimmed lookup, got %v", registry.asked)
	}
}

func TestSessionRejectsMissingOrUnknownSession(t *testing.T) {
	registry := &stubRegistry{}
	handler := Session(registry, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("handler must not run")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/cart", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without header, got %d", rec.Code)
	}
	if len(registry.asked) != 0 {
		t.Fatalf("registry should not be consulted without a session id")
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/cart", nil)
	req.Header.Set(SessionHeader, "nope")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for unknown session, got %d", rec.Code)
	}
}

func TestWorkspaceFromContextWithoutValue(t *testing.T) {
	if WorkspaceFromContext(context.Background()) != nil {
		t.Fatalf("expected nil workspace")
	}
}

func TestRequestIDEchoesOrGenerates(t *testing.T) {
	handler := RequestID(testLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(requestIDHeader, "req-42")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Header().Get(requestIDHeader) != "req-42" {
		t.Fatalf("expected request id echoed, got %q", rec.Header().Get(requestIDHeader))
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Header().Get(requestIDHeader) == "" {
		t.Fatalf("expected generated request id")
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(requestIDHeader, "<script>alert(1)</script>")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if got := rec.Header().Get(requestIDHeader); got == "" || got == "<script>alert(1)</script>" {
		t.Fatalf("expected malformed request id replaced, got %q", got)
	}
}

func TestRecovererWritesInternalError(t *testing.T) {
	handler := Recoverer(testLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}

func TestRecovererReraisesAbortHandler(t *testing.T) {
	handler := Recoverer(testLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic(http.ErrAbortHandler)
	}))
	defer func() {
		if rec := recover(); rec != http.ErrAbortHandler {
			t.Fatalf("expected ErrAbortHandler to propagate, got %v", rec)
		}
	}()
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
}

func TestMetricsUsesRoutePattern(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := chi.NewRouter()
	r.Use(Metrics(metrics.NewHTTPMetrics(reg)), Logging(testLogger()))
	r.Get("/v1/build/{componentType}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/build/cpu", nil))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rec.Code)
	}

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	found := false
	for _, mf := range mfs {
		if mf.GetName() != "storefront_http_requests_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			labels := map[string]string{}
			for _, lp := range m.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			if labels["route"] == "/v1/build/{componentType}" {
				found = labels["status"] == "202" && m.GetCounter().GetValue() == 1
			}
		}
	}
	if !found {
		t.Fatalf("expected request counted under its route pattern")
	}
}
