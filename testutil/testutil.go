// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package testutil

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/danielhkuo/ibis/cliparse"
	"github.com/danielhkuo/ibis/db"
)

var dbCounter atomic.Int64

// SetupTestDB opens a private in-memory sqlite database with every
// migration applied. It is closed when the test ends.
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	// each test gets its own named memory database
	url := fmt.Sprintf("file:ibis_test_%d?mode=memory&cache=shared", dbCounter.Add(1))
	conn, err := db.Open(context.Background(), db.SQLite, url)
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	if err := db.CreateSchema(conn, db.SQLite); err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}
	return conn
}

// SetupFileDB opens a sqlite database file in a temporary directory with
// every migration applied. Unlike SetupTestDB the pool has several
// connections, so concurrent transactions really overlap.
func SetupFileDB(t *testing.T) *sql.DB {
	t.Helper()

	url := "file:" + filepath.Join(t.TempDir(), "ibis.db")
	conn, err := db.Open(context.Background(), db.SQLite, url)
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	if err := db.CreateSchema(conn, db.SQLite); err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}
	return conn
}

// GetTestConfig returns a standard test configuration
func GetTestConfig() cliparse.Config {
	return cliparse.Config{
		Bind:         "127.0.0.1:8081",
		DatabaseURL:  "file::memory:",
		DatabaseType: "sqlite",
		Domain:       "ibis.test",
		Protocol:     "http",
		LogLevel:     "error",
		Options: cliparse.Options{
			RegistrationOpen: true,
			Setup: cliparse.Setup{
				AdminUsername: "ibis",
				AdminPassword: "ibis",
			},
		},
	}
}

// MakeRequest creates an HTTP test request
func MakeRequest(method, path string, body interface{}, headers map[string]string) *http.Request {
	var req *http.Request
	if body != nil {
		jsonBody, _ := json.Marshal(body)
		req = httptest.NewRequest(method, path, bytes.NewReader(jsonBody))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return req
}

// WithAuthCookie attaches a login token the way a browser would
func WithAuthCookie(req *http.Request, token string) *http.Request {
	req.AddCookie(&http.Cookie{Name: "auth", Value: token})
	return req
}

// AssertStatus checks that the response has the expected status code
func AssertStatus(t *testing.T, w *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if w.Code != expected {
		t.Errorf("Expected status %d, got %d. Body: %s", expected, w.Code, w.Body.String())
	}
}

// AssertJSON decodes the response body into the provided struct
func AssertJSON(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("Failed to decode JSON response: %v", err)
	}
}
