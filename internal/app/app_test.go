package app_test

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/faunatrack/server/internal/app"
	"github.com/faunatrack/server/internal/config"
	"github.com/faunatrack/server/internal/testutil"
)

const planCSVHeader = "espece,nom_scientifique,activite,sous_activite,taches,responsable,date_debut_taches,date_fin_taches,budget_annee_1,budget_annee_2,budget_annee_3,budget_annee_4,budget_annee_5\n"

func newTestApp(t *testing.T) *app.App {
	t.Helper()
	cfg := config.Config{
		HTTPAddr:            ":0",
		JWTSecret:           "0123456789abcdef0123456789abcdef",
		JWTIssuer:           "species-tracker",
		AccessTokenTTL:      time.Hour,
		MaxUploadBytes:      1 << 20,
		SkippedDetailsLimit: 10,
	}
	return app.New(cfg, testutil.NewTestDB(t), nil)
}

func doJSON(t *testing.T, h http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func doUpload(t *testing.T, h http.Handler, path, token, filename string, data []byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

// login registers username and returns an access token for it.
func login(t *testing.T, h http.Handler, username string) string {
	t.Helper()
	creds := map[string]string{"username": username, "password": "secret123"}

	rec := doJSON(t, h, http.MethodPost, "/api/auth/register", "", creds)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = doJSON(t, h, http.MethodPost, "/api/auth/login", "", creds)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return decode[struct {
		AccessToken string `json:"access_token"`
	}](t, rec).AccessToken
}

func TestHealth(t *testing.T) {
	a := newTestApp(t)
	rec := doJSON(t, a, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]string{"status": "healthy", "database": "connected"}, decode[map[string]string](t, rec))
}

func TestRouting(t *testing.T) {
	a := newTestApp(t)

	rec := doJSON(t, a, http.MethodGet, "/api/unknown", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"msg":"not found"}`, rec.Body.String())

	rec = doJSON(t, a, http.MethodDelete, "/api/conservation", "", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "GET, POST", rec.Header().Get("Allow"))

	rec = doJSON(t, a, http.MethodGet, "/api/conservation", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"msg":"unauthorized"}`, rec.Body.String())

	rec = doJSON(t, a, http.MethodGet, "/api/conservation", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthFlow(t *testing.T) {
	a := newTestApp(t)
	token := login(t, a, "ranger1")

	rec := doJSON(t, a, http.MethodGet, "/api/auth/me", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	me := decode[map[string]string](t, rec)
	assert.Equal(t, "ranger1", me["username"])
	assert.Equal(t, "ranger", me["role"])

	creds := map[string]string{"username": "ranger1", "password": "secret123"}
	rec = doJSON(t, a, http.MethodPost, "/api/auth/register", "", creds)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = doJSON(t, a, http.MethodPost, "/api/auth/login", "", map[string]string{"username": "ranger1", "password": "wrong-pass"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(t, a, http.MethodPost, "/api/auth/register", "", map[string]string{"username": "short", "password": "123"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateAndListPlans(t *testing.T) {
	a := newTestApp(t)
	token := login(t, a, "ranger1")

	body := map[string]any{
		"espece":            "Lion d'Afrique",
		"nom_scientifique":  "Panthera leo",
		"activite":          "Suivi",
		"taches":            "Recensement",
		"responsable":       "Dr. Martin",
		"date_debut_taches": "2025-01-01",
		"date_fin_taches":   "2025-12-31",
		"budget_annee_1":    1000,
		"budget_annee_2":    "2000",
	}
	rec := doJSON(t, a, http.MethodPost, "/api/conservation", token, body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[map[string]string](t, rec)
	assert.NotEmpty(t, created["id"])

	rec = doJSON(t, a, http.MethodGet, "/api/conservation", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	plans := decode[[]map[string]any](t, rec)
	require.Len(t, plans, 1)
	assert.Equal(t, created["id"], plans[0]["id"])
	assert.Equal(t, 3000.0, plans[0]["budget_total"])
	assert.Equal(t, 364.0, plans[0]["duree_jours"])

	body["date_fin_taches"] = "2025-01-01"
	rec = doJSON(t, a, http.MethodPost, "/api/conservation", token, body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"msg":"start date must be before end date"}`, rec.Body.String())

	delete(body, "responsable")
	rec = doJSON(t, a, http.MethodPost, "/api/conservation", token, body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"msg":"missing required field: responsable"}`, rec.Body.String())
}

func TestImportPlans(t *testing.T) {
	a := newTestApp(t)
	token := login(t, a, "ranger1")

	csv := planCSVHeader +
		"Lion,Panthera leo,Suivi,,Recensement,Dr. Martin,2025-01-01,2025-06-30,abc,0,0,0,0\n" +
		"Lion,Panthera leo,Suivi,,Colliers,Dr. Martin,2025-02-01,2025-03-01,100,0,0,0,0\n" +
		"Guépard,Acinonyx jubatus,Habitat,,Corridors,ONG Savane,2025-03-01,2025-09-30,200,300,0,0,0\n"

	rec := doUpload(t, a, "/api/conservation/import", token, "plans.csv", []byte(csv))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	summary := decode[struct {
		Msg            string   `json:"msg"`
		Count          int      `json:"count"`
		Created        []string `json:"created"`
		Skipped        int      `json:"skipped"`
		SkippedDetails []string `json:"skipped_details"`
	}](t, rec)
	assert.Equal(t, 2, summary.Count)
	assert.Equal(t, []string{"Lion", "Guépard"}, summary.Created)
	assert.Equal(t, 1, summary.Skipped)
	require.Len(t, summary.SkippedDetails, 1)
	assert.True(t, strings.HasPrefix(summary.SkippedDetails[0], "row 2: "), summary.SkippedDetails[0])

	rec = doJSON(t, a, http.MethodGet, "/api/conservation/gantt", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	gantt := decode[[]map[string]any](t, rec)
	require.Len(t, gantt, 2)
	assert.Equal(t, "Lion - Suivi", gantt[0]["name"])
	assert.Equal(t, 0.0, gantt[0]["progress"])

	rec = doJSON(t, a, http.MethodGet, "/api/conservation/rapport", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	report := decode[map[string]any](t, rec)
	resume := report["resume"].(map[string]any)
	assert.Equal(t, 2.0, resume["total_plans"])
	assert.Equal(t, 600.0, resume["total_budget"])
	assert.Equal(t, 2.0, resume["especes_uniques"])
}

func TestImportPlansBatchErrors(t *testing.T) {
	a := newTestApp(t)
	token := login(t, a, "ranger1")

	rec := doUpload(t, a, "/api/conservation/import", token, "plans.pdf", []byte("%PDF"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"msg":"unsupported file format"}`, rec.Body.String())

	rec = doUpload(t, a, "/api/conservation/import", token, "plans.csv", []byte("espece,activite\nLion,Suivi\n"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "missing columns")

	rec = doUpload(t, a, "/api/conservation/import", token, "plans.csv", []byte(planCSVHeader))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, a, http.MethodPost, "/api/conservation/import", token, map[string]string{"file": "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSpeciesRoutes(t *testing.T) {
	a := newTestApp(t)
	token := login(t, a, "ranger1")

	rec := doJSON(t, a, http.MethodGet, "/api/species", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	sp := map[string]string{"common_name": "Lion", "scientific_name": "Panthera leo"}
	rec = doJSON(t, a, http.MethodPost, "/api/species", token, sp)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = doJSON(t, a, http.MethodPost, "/api/species", token, sp)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = doJSON(t, a, http.MethodPost, "/api/species", token, map[string]string{"common_name": "Lion"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	csv := "Nom commun,Nom scientifique\nLion,Panthera leo\nGuépard,Acinonyx jubatus\n"
	rec = doUpload(t, a, "/api/import/import", token, "species.csv", []byte(csv))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	summary := decode[map[string]any](t, rec)
	assert.Equal(t, 1.0, summary["count"])
	assert.Equal(t, []any{"Panthera leo (already exists)"}, summary["skipped_details"])

	rec = doJSON(t, a, http.MethodGet, "/api/species", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]map[string]string](t, rec), 2)
}

func TestTemplateAndExport(t *testing.T) {
	a := newTestApp(t)
	token := login(t, a, "ranger1")

	rec := doJSON(t, a, http.MethodGet, "/api/conservation/template?format=xlsx", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "conservation_plans_template.xlsx")
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("PK")))

	rec = doJSON(t, a, http.MethodGet, "/api/conservation/export?format=csv", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Body.String(), "id,"), rec.Body.String())

	rec = doJSON(t, a, http.MethodGet, "/api/conservation/export?format=pdf", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
