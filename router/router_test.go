// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/danielhkuo/ibis/store"
	"github.com/danielhkuo/ibis/testutil"
	"github.com/danielhkuo/ibis/wiki"
)

func newTestRouter(t *testing.T) *http.ServeMux {
	t.Helper()
	cfg := testutil.GetTestConfig()
	svc := wiki.New(store.New(testutil.SetupTestDB(t)), cfg)
	if err := svc.Setup(context.Background()); err != nil {
		t.Fatalf("Setup failed: %v", err)
	}
	return NewRouter(svc, cfg)
}

func TestHealthEndpoint(t *testing.T) {
	mux := newTestRouter(t)

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()

	mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}

	var body map[string]string
	testutil.AssertJSON(t, w, &body)
	if body["status"] != "ok" {
		t.Errorf("Expected status 'ok', got '%s'", body["status"])
	}
}

func TestRootEndpoint(t *testing.T) {
	mux := newTestRouter(t)

	req := httptest.NewRequest("GET", "/", nil)
	w := httptest.NewRecorder()

	mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}

	expected := "ibis API v1"
	if w.Body.String() != expected {
		t.Errorf("Expected body '%s', got '%s'", expected, w.Body.String())
	}
}

func TestUnknownPathNotFound(t *testing.T) {
	mux := newTestRouter(t)

	req := httptest.NewRequest("GET", "/api/v2/article", nil)
	w := httptest.NewRecorder()

	mux.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", w.Code)
	}
}

func TestRouteExistence(t *testing.T) {
	mux := newTestRouter(t)

	// Handlers may answer 400, 401 or 404 without input; only 405 means
	// the route is missing
	testCases := []struct {
		method string
		path   string
	}{
		{"GET", "/health"},
		{"GET", "/metrics"},
		{"GET", "/"},

		{"POST", "/api/v1/account/register"},
		{"POST", "/api/v1/account/login"},
		{"POST", "/api/v1/account/logout"},
		{"GET", "/api/v1/account/my_profile"},
		{"GET", "/api/v1/user"},

		{"POST", "/api/v1/article"},
		{"GET", "/api/v1/article"},
		{"PATCH", "/api/v1/article"},
		{"GET", "/api/v1/article/list"},
		{"GET", "/api/v1/search"},
		{"POST", "/api/v1/article/fork"},
		{"POST", "/api/v1/article/protect"},
		{"POST", "/api/v1/article/approve"},

		{"GET", "/api/v1/edit_conflicts"},
		{"DELETE", "/api/v1/conflict"},

		{"GET", "/api/v1/instance"},
		{"POST", "/api/v1/instance/follow"},
	}

	for _, tc := range testCases {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, nil)
			w := httptest.NewRecorder()

			mux.ServeHTTP(w, req)

			if w.Code == http.StatusMethodNotAllowed || (w.Code == http.StatusNotFound && tc.method != "GET") {
				t.Errorf("Route %s %s returned %d, expected route handler to exist", tc.method, tc.path, w.Code)
			}
		})
	}
}

func TestAuthenticatedRoutesRequireLogin(t *testing.T) {
	mux := newTestRouter(t)

	testCases := []struct {
		method string
		path   string
	}{
		{"GET", "/api/v1/account/my_profile"},
		{"POST", "/api/v1/article"},
		{"PATCH", "/api/v1/article"},
		{"POST", "/api/v1/article/fork"},
		{"POST", "/api/v1/article/protect"},
		{"POST", "/api/v1/article/approve"},
		{"GET", "/api/v1/edit_conflicts"},
		{"DELETE", "/api/v1/conflict"},
		{"POST", "/api/v1/instance/follow"},
	}

	for _, tc := range testCases {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, strings.NewReader("{}"))
			w := httptest.NewRecorder()

			mux.ServeHTTP(w, req)

			testutil.AssertStatus(t, w, http.StatusUnauthorized)
		})
	}
}

func TestSpecificMethodRouting(t *testing.T) {
	mux := newTestRouter(t)

	testCases := []struct {
		name           string
		method         string
		path           string
		expectedStatus int
	}{
		{"POST to health endpoint", "POST", "/health", http.StatusMethodNotAllowed},
		{"PUT to article endpoint", "PUT", "/api/v1/article", http.StatusMethodNotAllowed},
		{"GET to login endpoint", "GET", "/api/v1/account/login", http.StatusMethodNotAllowed},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, nil)
			w := httptest.NewRecorder()

			mux.ServeHTTP(w, req)

			if w.Code != tc.expectedStatus {
				t.Errorf("Expected %d for %s %s, got %d", tc.expectedStatus, tc.method, tc.path, w.Code)
			}
		})
	}
}

func TestMetricsCountRequests(t *testing.T) {
	mux := newTestRouter(t)

	req := httptest.NewRequest("GET", "/api/v1/article/list", nil)
	mux.ServeHTTP(httptest.NewRecorder(), req)

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))
	testutil.AssertStatus(t, w, http.StatusOK)

	body := w.Body.String()
	if !strings.Contains(body, `ibis_http_requests_total{code="200",route="GET /api/v1/article/list"} 1`) {
		t.Errorf("Expected request counter for article list, got:\n%s", body)
	}
}
