// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/danielhkuo/ibis/auth"
	"github.com/danielhkuo/ibis/cliparse"
	"github.com/danielhkuo/ibis/merge"
	"github.com/danielhkuo/ibis/middleware"
	"github.com/danielhkuo/ibis/models"
	"github.com/danielhkuo/ibis/store"
	"github.com/danielhkuo/ibis/testutil"
	"github.com/danielhkuo/ibis/wiki"
)

type testEnv struct {
	svc       *wiki.Service
	cfg       cliparse.Config
	accounts  *AccountHandler
	articles  *ArticleHandler
	conflicts *ConflictHandler
	instances *InstanceHandler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	cfg := testutil.GetTestConfig()
	svc := wiki.New(store.New(testutil.SetupTestDB(t)), cfg)
	if err := svc.Setup(context.Background()); err != nil {
		t.Fatalf("Setup failed: %v", err)
	}
	return &testEnv{
		svc:       svc,
		cfg:       cfg,
		accounts:  NewAccountHandler(svc, cfg),
		articles:  NewArticleHandler(svc),
		conflicts: NewConflictHandler(svc),
		instances: NewInstanceHandler(svc),
	}
}

// serve runs h behind RequireAuth the way the router mounts it
func (e *testEnv) serve(h http.HandlerFunc, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	middleware.RequireAuth(e.svc, h)(w, req)
	return w
}

func authCookie(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == middleware.AuthCookie {
			return c
		}
	}
	t.Fatalf("No auth cookie in response")
	return nil
}

// registerUser registers username over HTTP and returns its login token
func (e *testEnv) registerUser(t *testing.T, username string) string {
	t.Helper()
	req := testutil.MakeRequest("POST", "/account/register", models.RegisterUserRequest{
		Username: username,
		Password: "hunter22",
	}, nil)
	w := httptest.NewRecorder()
	e.accounts.Register(w, req)
	testutil.AssertStatus(t, w, http.StatusCreated)
	return authCookie(t, w).Value
}

func (e *testEnv) adminToken(t *testing.T) string {
	t.Helper()
	token, err := e.svc.IssueToken(context.Background(), "ibis")
	if err != nil {
		t.Fatalf("IssueToken failed: %v", err)
	}
	return token
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err      error
		expected int
	}{
		{store.ErrNotFound, http.StatusNotFound},
		{fmt.Errorf("read article: %w", store.ErrNotFound), http.StatusNotFound},
		{store.ErrAlreadyExists, http.StatusConflict},
		{wiki.ErrForbidden, http.StatusForbidden},
		{wiki.ErrRegistrationClosed, http.StatusForbidden},
		{wiki.ErrInvalidLogin, http.StatusUnauthorized},
		{auth.ErrInvalidToken, http.StatusUnauthorized},
		{wiki.ErrNoChanges, http.StatusBadRequest},
		{wiki.ErrEmptySummary, http.StatusBadRequest},
		{wiki.ErrLocalLink, http.StatusBadRequest},
		{merge.ErrVersionNotFound, http.StatusBadRequest},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			if got := statusFor(tt.err); got != tt.expected {
				t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.expected)
			}
		})
	}
}

func TestWriteErrorHidesInternalDetail(t *testing.T) {
	w := httptest.NewRecorder()
	writeError(w, errors.New("pq: connection refused"), "read article")

	testutil.AssertStatus(t, w, http.StatusInternalServerError)
	var resp models.ErrorResponse
	testutil.AssertJSON(t, w, &resp)
	if resp.Message != "Failed to read article" {
		t.Errorf("Expected generic message, got %q", resp.Message)
	}
}

func TestRegister(t *testing.T) {
	env := newTestEnv(t)

	req := testutil.MakeRequest("POST", "/account/register", models.RegisterUserRequest{
		Username: "alice",
		Password: "hunter22",
	}, nil)
	w := httptest.NewRecorder()
	env.accounts.Register(w, req)

	testutil.AssertStatus(t, w, http.StatusCreated)
	cookie := authCookie(t, w)
	if cookie.Value == "" || !cookie.HttpOnly {
		t.Errorf("Expected HttpOnly auth cookie, got %+v", cookie)
	}
	if cookie.Domain != "ibis.test" {
		t.Errorf("Expected cookie domain ibis.test, got %q", cookie.Domain)
	}

	var user models.LocalUserView
	testutil.AssertJSON(t, w, &user)
	if user.Person.Username != "alice" || !user.Person.Local || user.LocalUser.Admin {
		t.Errorf("Unexpected user: %+v", user)
	}
}

func TestRegisterInvalidJSON(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest("POST", "/account/register", nil)
	w := httptest.NewRecorder()
	env.accounts.Register(w, req)

	testutil.AssertStatus(t, w, http.StatusBadRequest)
}

func TestRegisterDuplicate(t *testing.T) {
	env := newTestEnv(t)
	env.registerUser(t, "alice")

	req := testutil.MakeRequest("POST", "/account/register", models.RegisterUserRequest{
		Username: "alice",
		Password: "other",
	}, nil)
	w := httptest.NewRecorder()
	env.accounts.Register(w, req)

	testutil.AssertStatus(t, w, http.StatusConflict)
}

// TestConcurrentRegistration verifies that only one of several simultaneous
// registrations of the same username succeeds
func TestConcurrentRegistration(t *testing.T) {
	env := newTestEnv(t)

	const attempts = 4
	var created atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req := testutil.MakeRequest("POST", "/account/register", models.RegisterUserRequest{
				Username: "racer",
				Password: "hunter22",
			}, nil)
			w := httptest.NewRecorder()
			env.accounts.Register(w, req)
			if w.Code == http.StatusCreated {
				created.Add(1)
			}
		}()
	}
	wg.Wait()

	if created.Load() != 1 {
		t.Errorf("Expected exactly 1 successful registration, got %d", created.Load())
	}
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t)
	env.registerUser(t, "alice")

	tests := []struct {
		name     string
		password string
		expected int
	}{
		{"correct password", "hunter22", http.StatusOK},
		{"wrong password", "hunter23", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := testutil.MakeRequest("POST", "/account/login", models.LoginUserRequest{
				Username: "alice",
				Password: tt.password,
			}, nil)
			w := httptest.NewRecorder()
			env.accounts.Login(w, req)

			testutil.AssertStatus(t, w, tt.expected)
			if tt.expected == http.StatusOK {
				authCookie(t, w)
			}
		})
	}
}

func TestLogout(t *testing.T) {
	env := newTestEnv(t)

	w := httptest.NewRecorder()
	env.accounts.Logout(w, httptest.NewRequest("POST", "/account/logout", nil))

	testutil.AssertStatus(t, w, http.StatusNoContent)
	cookie := authCookie(t, w)
	if cookie.MaxAge >= 0 || cookie.Value != "" {
		t.Errorf("Expected expired empty cookie, got %+v", cookie)
	}
}

func TestMyProfile(t *testing.T) {
	env := newTestEnv(t)
	token := env.registerUser(t, "alice")

	t.Run("with cookie", func(t *testing.T) {
		req := testutil.WithAuthCookie(httptest.NewRequest("GET", "/account/my_profile", nil), token)
		w := env.serve(env.accounts.MyProfile, req)

		testutil.AssertStatus(t, w, http.StatusOK)
		var user models.LocalUserView
		testutil.AssertJSON(t, w, &user)
		if user.Person.Username != "alice" {
			t.Errorf("Expected alice, got %s", user.Person.Username)
		}
	})

	t.Run("with bearer header", func(t *testing.T) {
		req := testutil.MakeRequest("GET", "/account/my_profile", nil, map[string]string{
			"Authorization": "Bearer " + token,
		})
		w := env.serve(env.accounts.MyProfile, req)
		testutil.AssertStatus(t, w, http.StatusOK)
	})

	t.Run("forged token", func(t *testing.T) {
		forged, _ := auth.IssueToken("alice", "ibis.test", "not-the-secret", time.Now())
		req := testutil.WithAuthCookie(httptest.NewRequest("GET", "/account/my_profile", nil), forged)
		w := env.serve(env.accounts.MyProfile, req)
		testutil.AssertStatus(t, w, http.StatusUnauthorized)
	})
}

func TestGetUser(t *testing.T) {
	env := newTestEnv(t)
	env.registerUser(t, "alice")

	tests := []struct {
		name     string
		query    string
		expected int
	}{
		{"local user", "?name=alice", http.StatusOK},
		{"unknown user", "?name=bob", http.StatusNotFound},
		{"unknown remote domain", "?name=alice&domain=example.com", http.StatusNotFound},
		{"missing name", "", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			env.accounts.GetUser(w, httptest.NewRequest("GET", "/user"+tt.query, nil))
			testutil.AssertStatus(t, w, tt.expected)
		})
	}
}

func TestGetInstance(t *testing.T) {
	env := newTestEnv(t)

	w := httptest.NewRecorder()
	env.instances.Get(w, httptest.NewRequest("GET", "/instance", nil))

	testutil.AssertStatus(t, w, http.StatusOK)
	var view models.InstanceView
	testutil.AssertJSON(t, w, &view)
	if view.Instance.Domain != "ibis.test" || !view.Instance.Local {
		t.Errorf("Expected local instance, got %+v", view.Instance)
	}

	w = httptest.NewRecorder()
	env.instances.Get(w, httptest.NewRequest("GET", "/instance?id=999", nil))
	testutil.AssertStatus(t, w, http.StatusNotFound)

	w = httptest.NewRecorder()
	env.instances.Get(w, httptest.NewRequest("GET", "/instance?id=abc", nil))
	testutil.AssertStatus(t, w, http.StatusBadRequest)
}

func TestFollowInstance(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	token := env.registerUser(t, "alice")

	remote, err := env.svc.Store().UpsertInstance(ctx, store.InstanceForm{
		Domain:      "remote.test",
		APID:        "http://remote.test",
		InboxURL:    "http://remote.test/inbox",
		ArticlesURL: "http://remote.test/all_articles",
		PublicKey:   "key",
	})
	if err != nil {
		t.Fatalf("UpsertInstance failed: %v", err)
	}
	local, err := env.svc.Store().ReadLocalInstance(ctx)
	if err != nil {
		t.Fatalf("ReadLocalInstance failed: %v", err)
	}

	req := testutil.WithAuthCookie(testutil.MakeRequest("POST", "/instance/follow",
		models.FollowInstanceRequest{ID: remote.ID}, nil), token)
	w := env.serve(env.instances.Follow, req)
	testutil.AssertStatus(t, w, http.StatusOK)

	var view models.InstanceView
	testutil.AssertJSON(t, w, &view)
	if len(view.Followers) != 1 || view.Followers[0].Username != "alice" {
		t.Errorf("Expected alice as follower, got %+v", view.Followers)
	}

	req = testutil.WithAuthCookie(testutil.MakeRequest("POST", "/instance/follow",
		models.FollowInstanceRequest{ID: local.ID}, nil), token)
	w = env.serve(env.instances.Follow, req)
	testutil.AssertStatus(t, w, http.StatusForbidden)
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	w := httptest.NewRecorder()
	env.instances.Health(w, httptest.NewRequest("GET", "/health", nil))
	testutil.AssertStatus(t, w, http.StatusOK)

	env.svc.Store().DB().Close()
	w = httptest.NewRecorder()
	env.instances.Health(w, httptest.NewRequest("GET", "/health", nil))
	testutil.AssertStatus(t, w, http.StatusServiceUnavailable)
}
