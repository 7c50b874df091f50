package integration_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/faunatrack/server/internal/app"
	"github.com/faunatrack/server/internal/config"
	internaldb "github.com/faunatrack/server/internal/db"
	"github.com/faunatrack/server/internal/migrate"
)

type testEnv struct {
	t       *testing.T
	db      *internaldb.DB
	app     *app.App
	httpSrv *httptest.Server
	baseURL string
	client  *http.Client
}

// setupIntegrationEnv runs the API against a disposable Postgres or MySQL
// database named by TEST_DATABASE_URL. Every table is dropped first.
func setupIntegrationEnv(t *testing.T) *testEnv {
	t.Helper()

	if strings.TrimSpace(os.Getenv("SPECIES_INTEGRATION")) != "1" {
		t.Skip("set SPECIES_INTEGRATION=1 to run integration tests")
	}

	testURL := strings.TrimSpace(os.Getenv("TEST_DATABASE_URL"))
	if testURL == "" {
		t.Skip("set TEST_DATABASE_URL to run integration tests")
	}
	if !strings.Contains(strings.ToLower(testURL), "test") {
		t.Fatalf("refusing to run integration tests against a database url without \"test\" in it")
	}

	ctx := context.Background()
	db, err := internaldb.OpenWithRetry(ctx, testURL, 10, time.Second, nil)
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}

	if err := resetDatabase(ctx, db); err != nil {
		t.Fatalf("reset test db: %v", err)
	}
	if err := migrate.Run(ctx, db); err != nil {
		t.Fatalf("run migrations: %v", err)
	}

	cfg := config.Config{
		HTTPAddr:            ":0",
		DatabaseURL:         testURL,
		JWTSecret:           "integration-jwt-secret-abcdefghijklmnopqrstuvwxyz",
		JWTIssuer:           "species-tracker-integration",
		AccessTokenTTL:      15 * time.Minute,
		MaxUploadBytes:      10 << 20,
		SkippedDetailsLimit: 10,
	}

	application := app.New(cfg, db, nil)
	httpSrv := httptest.NewServer(application)
	env := &testEnv{
		t:       t,
		db:      db,
		app:     application,
		httpSrv: httpSrv,
		baseURL: httpSrv.URL,
		client:  &http.Client{Timeout: 15 * time.Second},
	}

	t.Cleanup(func() {
		httpSrv.Close()
		_ = application.Close()
	})
	return env
}

func resetDatabase(ctx context.Context, db *internaldb.DB) error {
	for _, table := range []string{"audit_log", "conservation_plans", "species", "users", "schema_migrations"} {
		if _, err := db.ExecContext(ctx, "DROP TABLE IF EXISTS "+table); err != nil {
			return fmt.Errorf("drop %s: %w", table, err)
		}
	}
	return nil
}

func (e *testEnv) registerAndLogin(username, password string) string {
	e.t.Helper()
	creds := map[string]any{"username": username, "password": password}

	status, _, body := e.doJSON(http.MethodPost, "/api/auth/register", "", creds)
	if status != http.StatusCreated {
		e.t.Fatalf("register %s failed: status=%d body=%v", username, status, body)
	}

	status, _, body = e.doJSON(http.MethodPost, "/api/auth/login", "", creds)
	if status != http.StatusOK {
		e.t.Fatalf("login %s failed: status=%d body=%v", username, status, body)
	}
	return getString(e.t, asMap(e.t, body), "access_token")
}

func (e *testEnv) doJSON(method, path, token string, body any) (int, http.Header, any) {
	e.t.Helper()
	var bodyReader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			e.t.Fatalf("marshal request body: %v", err)
		}
		bodyReader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, e.baseURL+path, bodyReader)
	if err != nil {
		e.t.Fatalf("create request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return e.do(req, token)
}

func (e *testEnv) upload(path, token, filename string, data []byte) (int, http.Header, any) {
	e.t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		e.t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write(data); err != nil {
		e.t.Fatalf("write form file: %v", err)
	}
	if err := mw.Close(); err != nil {
		e.t.Fatalf("close multipart writer: %v", err)
	}

	req, err := http.NewRequest(http.MethodPost, e.baseURL+path, &buf)
	if err != nil {
		e.t.Fatalf("create request: %v", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return e.do(req, token)
}

func (e *testEnv) do(req *http.Request, token string) (int, http.Header, any) {
	e.t.Helper()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		e.t.Fatalf("http request failed (%s %s): %v", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		e.t.Fatalf("read response body: %v", err)
	}

	var decoded any
	if len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, &decoded); err != nil {
			decoded = string(raw)
		}
	}
	return resp.StatusCode, resp.Header.Clone(), decoded
}

func asMap(t *testing.T, v any) map[string]any {
	t.Helper()
	m, ok := v.(map[string]any)
	if !ok {
		t.Fatalf("expected map response, got %T (%v)", v, v)
	}
	return m
}

func asSlice(t *testing.T, v any) []any {
	t.Helper()
	s, ok := v.([]any)
	if !ok {
		t.Fatalf("expected slice response, got %T (%v)", v, v)
	}
	return s
}

func getString(t *testing.T, m map[string]any, key string) string {
	t.Helper()
	s, ok := m[key].(string)
	if !ok {
		t.Fatalf("expected string field %q in %v", key, m)
	}
	return s
}

func getNumber(t *testing.T, m map[string]any, key string) float64 {
	t.Helper()
	n, ok := m[key].(float64)
	if !ok {
		t.Fatalf("expected number field %q in %v", key, m)
	}
	return n
}
