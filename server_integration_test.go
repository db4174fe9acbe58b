package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"docintake/pkg/audit"
	"docintake/pkg/classifier"
	"docintake/pkg/config"
	"docintake/pkg/dbtest"
	"docintake/pkg/logger"
	"docintake/pkg/storage"
	"docintake/pkg/token"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testSecret = "integration-secret"

// helper to perform requests with auth token
func performRequest(r http.Handler, method, path string, body io.Reader, token string, contentType string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

// multipartBody builds a form with one "file" part plus extra fields.
func multipartBody(t *testing.T, filename string, content []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	fw, err := w.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func testConfig(t *testing.T) *config.Config {
	return &config.Config{
		Server:   config.ServerConfig{GinMode: gin.TestMode},
		Database: config.DatabaseConfig{Driver: "sqlite", SeedDemoUsers: true},
		Auth:     config.AuthConfig{JWTSecret: testSecret, JWTIssuer: "docintake", AccessTokenTTL: 15 * time.Minute},
		Storage:  config.StorageConfig{LocalDir: t.TempDir()},
		Upload:   config.UploadConfig{MaxBytes: 1 << 20},
		CORS:     config.CORSConfig{AllowedOrigins: "*", AllowedMethods: "GET,POST,PUT", AllowedHeaders: "Authorization,Content-Type"},
	}
}

type stubClassifier struct {
	res *classifier.Result
	err error
}

func (s stubClassifier) Classify(context.Context, classifier.Input) (*classifier.Result, error) {
	return s.res, s.err
}

func setupTestServer(t *testing.T, cfg *config.Config, c classifier.Classifier) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db := dbtest.Open(t)
	log := logger.Nop()
	require.NoError(t, seed(context.Background(), db, cfg, log))
	store, err := storage.NewLocal(cfg.Storage.LocalDir)
	require.NoError(t, err)
	r := gin.New()
	setupRoutes(r, buildServer(cfg, db, store, c, log))
	return r, db
}

func login(t *testing.T, r http.Handler, username, password string) string {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"username": username, "password": password})
	resp := performRequest(r, http.MethodPost, "/api/v1/auth/login", bytes.NewBuffer(body), "", "application/json")
	require.Equal(t, http.StatusOK, resp.Code, "login failed body=%s", resp.Body.String())
	var tok struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
		ExpiresIn   int    `json:"expires_in"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &tok))
	require.NotEmpty(t, tok.AccessToken)
	assert.Equal(t, "bearer", strings.ToLower(tok.TokenType))
	assert.Equal(t, 900, tok.ExpiresIn)
	return tok.AccessToken
}

func decode(t *testing.T, resp *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &m), "body=%s", resp.Body.String())
	return m
}

func TestFullFlow(t *testing.T) {
	total := classifier.Amount(1500)
	c := stubClassifier{res: &classifier.Result{
		Classification: "factura",
		ClientName:     strPtr("ACME"),
		ProviderName:   strPtr("Proveedor SA"),
		InvoiceNumber:  strPtr("F-001"),
		TotalAmount:    &total,
		Products:       []classifier.Product{{Name: "Widget"}},
	}}
	r, _ := setupTestServer(t, testConfig(t), c)

	// 1. Health
	resp := performRequest(r, http.MethodGet, "/health", nil, "", "")
	require.Equal(t, http.StatusOK, resp.Code)

	// 2. Login
	tok := login(t, r, "uploader", demoPassword)

	// 3. Refresh
	resp = performRequest(r, http.MethodPost, "/api/v1/token/refresh", nil, tok, "")
	if resp.Code != http.StatusOK {
		t.Fatalf("refresh failed status=%d body=%s", resp.Code, resp.Body.String())
	}
	refreshed := decode(t, resp)["access_token"].(string)
	assert.NotEqual(t, tok, refreshed)

	// 4. CSV upload with a duplicate name
	csv := []byte("id,name,price\n1,Apple,1.5\n2,Apple,2.0\n")
	body, ct := multipartBody(t, "items.csv", csv, map[string]string{"parametro1": "p1", "parametro2": "p2"})
	resp = performRequest(r, http.MethodPost, "/api/v1/files/upload", body, refreshed, ct)
	if resp.Code != http.StatusOK {
		t.Fatalf("csv upload failed status=%d body=%s", resp.Code, resp.Body.String())
	}
	up := decode(t, resp)
	assert.EqualValues(t, 1, up["rows_saved"])
	assert.True(t, strings.HasPrefix(up["storage_path"].(string), "file://"))
	vals := up["validations"].([]any)
	require.Len(t, vals, 1)
	v := vals[0].(map[string]any)
	assert.EqualValues(t, 2, v["row"])
	assert.Equal(t, "name", v["column"])
	assert.Equal(t, "DUPLICATE", v["error"])

	// 5. Document upload
	body, ct = multipartBody(t, "invoice.png", []byte("\x89PNG fake image"), nil)
	resp = performRequest(r, http.MethodPost, "/api/v1/files/upload", body, tok, ct)
	if resp.Code != http.StatusOK {
		t.Fatalf("document upload failed status=%d body=%s", resp.Code, resp.Body.String())
	}
	doc := decode(t, resp)
	assert.Equal(t, "analyzed", doc["ai_status"])
	assert.Nil(t, doc["ai_error"])
	require.NotNil(t, doc["analysis_id"])
	analysis := doc["analysis"].(map[string]any)
	assert.Equal(t, classifier.Invoice, analysis["classification"])
	assert.Contains(t, analysis, "summary")
	assert.Nil(t, analysis["summary"])
	analysisID := int(doc["analysis_id"].(float64))

	// 6. Read the analysis back
	path := fmt.Sprintf("/api/v1/files/analysis/%d", analysisID)
	resp = performRequest(r, http.MethodGet, path, nil, tok, "")
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	assert.Equal(t, "ACME", decode(t, resp)["client_name"])

	// 7. Partial update keeps untouched fields
	resp = performRequest(r, http.MethodPut, path, strings.NewReader(`{"total_amount": 500}`), tok, "application/json")
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	updated := decode(t, resp)
	assert.EqualValues(t, 500, updated["total_amount"])
	assert.Equal(t, "ACME", updated["client_name"])

	// 8. Unknown analysis
	resp = performRequest(r, http.MethodGet, "/api/v1/files/analysis/9999", nil, tok, "")
	assert.Equal(t, http.StatusNotFound, resp.Code)
	resp = performRequest(r, http.MethodPut, "/api/v1/files/analysis/9999", strings.NewReader(`{"summary": "x"}`), tok, "application/json")
	assert.Equal(t, http.StatusNotFound, resp.Code)

	// 9. Audit trail: login + refresh, two uploads, one analysis
	resp = performRequest(r, http.MethodGet, "/api/v1/audit/logs", nil, tok, "")
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	page := decode(t, resp)
	assert.EqualValues(t, 5, page["total"])
	assert.EqualValues(t, audit.DefaultLimit, page["limit"])

	q := "/api/v1/audit/logs?event_type=" + url.QueryEscape(string(audit.DocumentUpload))
	resp = performRequest(r, http.MethodGet, q, nil, tok, "")
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	assert.EqualValues(t, 2, decode(t, resp)["total"])

	resp = performRequest(r, http.MethodGet, "/api/v1/audit/logs?event_type=IA&limit=1", nil, tok, "")
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	page = decode(t, resp)
	assert.EqualValues(t, 1, page["total"])
	logs := page["logs"].([]any)
	require.Len(t, logs, 1)
	md := logs[0].(map[string]any)["metadata"].(map[string]any)
	assert.Equal(t, classifier.Invoice, md["classification"])

	// 10. Event types
	resp = performRequest(r, http.MethodGet, "/api/v1/audit/event-types", nil, tok, "")
	require.Equal(t, http.StatusOK, resp.Code)
	et := decode(t, resp)
	assert.Len(t, et["event_types"], 3)
	assert.NotEmpty(t, et["note"])
}

func strPtr(s string) *string { return &s }

func TestDocumentUpload_ClassifierFailure(t *testing.T) {
	r, db := setupTestServer(t, testConfig(t), classifier.Unconfigured{})
	tok := login(t, r, "uploader", demoPassword)

	body, ct := multipartBody(t, "scan.pdf", []byte("%PDF-1.4 not really"), nil)
	resp := performRequest(r, http.MethodPost, "/api/v1/files/upload", body, tok, ct)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	doc := decode(t, resp)
	assert.Equal(t, "ai_failed", doc["ai_status"])
	assert.Nil(t, doc["analysis"])
	assert.Nil(t, doc["analysis_id"])
	assert.NotEmpty(t, doc["ai_error"])
	assert.NotEmpty(t, doc["storage_path"])

	var n int64
	require.NoError(t, db.Table("documents").Where("ai_status = ?", "ai_failed").Count(&n).Error)
	assert.EqualValues(t, 1, n)
	require.NoError(t, db.Table("document_analyses").Count(&n).Error)
	assert.Zero(t, n)
}

func TestAuthFailures(t *testing.T) {
	r, _ := setupTestServer(t, testConfig(t), classifier.Unconfigured{})

	body, _ := json.Marshal(map[string]string{"username": "uploader", "password": "wrong-pass"})
	resp := performRequest(r, http.MethodPost, "/api/v1/auth/login", bytes.NewBuffer(body), "", "application/json")
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
	assert.NotContains(t, resp.Body.String(), "access_token")

	body, _ = json.Marshal(map[string]string{"username": "ghost", "password": "whatever"})
	resp = performRequest(r, http.MethodPost, "/api/v1/auth/login", bytes.NewBuffer(body), "", "application/json")
	assert.Equal(t, http.StatusUnauthorized, resp.Code)

	resp = performRequest(r, http.MethodGet, "/api/v1/audit/logs", nil, "", "")
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
	assert.Contains(t, decode(t, resp), "error")

	resp = performRequest(r, http.MethodGet, "/api/v1/audit/logs", nil, "not-a-jwt", "")
	assert.Equal(t, http.StatusUnauthorized, resp.Code)

	resp = performRequest(r, http.MethodPost, "/api/v1/token/refresh", nil, "not-a-jwt", "")
	assert.Equal(t, http.StatusUnauthorized, resp.Code)

	past := token.NewIssuer(testSecret, "docintake", 15*time.Minute,
		token.WithClock(func() time.Time { return time.Now().Add(-time.Hour) }))
	expired, err := past.Issue("1", "uploader")
	require.NoError(t, err)
	resp = performRequest(r, http.MethodPost, "/api/v1/token/refresh", nil, expired.AccessToken, "")
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
	resp = performRequest(r, http.MethodGet, "/api/v1/audit/event-types", nil, expired.AccessToken, "")
	assert.Equal(t, http.StatusUnauthorized, resp.Code)

	// viewer has a valid token but not the uploader role
	viewer := login(t, r, "viewer", demoPassword)
	upload, ct := multipartBody(t, "items.csv", []byte("name,price\nA,1\n"), map[string]string{"parametro1": "a", "parametro2": "b"})
	resp = performRequest(r, http.MethodPost, "/api/v1/files/upload", upload, viewer, ct)
	assert.Equal(t, http.StatusForbidden, resp.Code)
	resp = performRequest(r, http.MethodPut, "/api/v1/files/analysis/1", strings.NewReader(`{}`), viewer, "application/json")
	assert.Equal(t, http.StatusForbidden, resp.Code)
	resp = performRequest(r, http.MethodGet, "/api/v1/audit/event-types", nil, viewer, "")
	assert.Equal(t, http.StatusOK, resp.Code)
}

func TestUploadRejections(t *testing.T) {
	cfg := testConfig(t)
	cfg.Upload.MaxBytes = 1024
	r, _ := setupTestServer(t, cfg, classifier.Unconfigured{})
	tok := login(t, r, "uploader", demoPassword)

	body, ct := multipartBody(t, "items.csv", []byte("name,price\nA,1\n"), map[string]string{"parametro1": "only-one"})
	resp := performRequest(r, http.MethodPost, "/api/v1/files/upload", body, tok, ct)
	assert.Equal(t, http.StatusBadRequest, resp.Code, resp.Body.String())
	assert.Contains(t, resp.Body.String(), "parametro1")

	// present but empty is accepted
	body, ct = multipartBody(t, "items.csv", []byte("name,price\nA,1\n"), map[string]string{"parametro1": "", "parametro2": "b"})
	resp = performRequest(r, http.MethodPost, "/api/v1/files/upload", body, tok, ct)
	assert.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	body, ct = multipartBody(t, "empty.pdf", nil, nil)
	resp = performRequest(r, http.MethodPost, "/api/v1/files/upload", body, tok, ct)
	assert.Equal(t, http.StatusBadRequest, resp.Code, resp.Body.String())

	body, ct = multipartBody(t, "big.pdf", bytes.Repeat([]byte("x"), 8192), nil)
	resp = performRequest(r, http.MethodPost, "/api/v1/files/upload", body, tok, ct)
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.Code, resp.Body.String())

	resp = performRequest(r, http.MethodPost, "/api/v1/files/upload", strings.NewReader("{}"), tok, "application/json")
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestAuditLogsValidation(t *testing.T) {
	r, _ := setupTestServer(t, testConfig(t), classifier.Unconfigured{})
	tok := login(t, r, "uploader", demoPassword)

	bad := []string{
		"limit=0",
		"limit=1001",
		"limit=abc",
		"offset=-1",
		"start_date=yesterday",
		"end_date=2024-13-40",
		"event_type=login",
	}
	for _, q := range bad {
		resp := performRequest(r, http.MethodGet, "/api/v1/audit/logs?"+q, nil, tok, "")
		assert.Equal(t, http.StatusBadRequest, resp.Code, q)
	}

	today := time.Now().UTC().Format(time.DateOnly)
	resp := performRequest(r, http.MethodGet, "/api/v1/audit/logs?start_date="+today+"&end_date="+today+"&limit=1000&offset=0", nil, tok, "")
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	page := decode(t, resp)
	assert.EqualValues(t, 1, page["total"])

	resp = performRequest(r, http.MethodGet, "/api/v1/audit/logs?user_id=nobody", nil, tok, "")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.EqualValues(t, 0, decode(t, resp)["total"])
}
