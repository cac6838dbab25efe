package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/joyfill/joydoc"
	"github.com/joyfill/joydoc/internal/metrics"
	"github.com/joyfill/joydoc/internal/store"
	"go.uber.org/zap"
)

type mockReportStore struct {
	saved     []*store.Report
	saveErr   error
	healthErr error
	listLimit int
}

func (m *mockReportStore) Save(ctx context.Context, r *store.Report) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saved = append(m.saved, r)
	return nil
}

func (m *mockReportStore) Get(ctx context.Context, id uuid.UUID) (*store.Report, error) {
	for _, r := range m.saved {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, joydoc.NewNotFoundError(joydoc.ErrCodeReportNotFound, "report not found")
}

func (m *mockReportStore) ListRecent(ctx context.Context, limit int) ([]*store.Report, error) {
	m.listLimit = limit
	return m.saved, nil
}

func (m *mockReportStore) Health(ctx context.Context, timeout time.Duration) error {
	return m.healthErr
}

func newTestServer(t *testing.T, reports reportStore) *Server {
	t.Helper()
	cfg := joydoc.DefaultConfig()
	cfg.Server.MaxBodyBytes = 64 * 1024
	server, err := NewServer(cfg, metrics.NewRecorder(cfg.Metrics, nil), reports, zap.NewNop())
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	return server
}

func kitchenSink(t *testing.T) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("..", "..", "testdata", "kitchen_sink.json"))
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}
	return data
}

func serve(server *Server, method, target string, body []byte, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeValidateResponse(t *testing.T, rec *httptest.ResponseRecorder) validateResponse {
	t.Helper()
	var resp validateResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v\n%s", err, rec.Body.String())
	}
	return resp
}

func TestHandleValidateValidDocument(t *testing.T) {
	server := newTestServer(t, nil)

	rec := serve(server, http.MethodPost, "/api/v1/validate", kitchenSink(t), http.Header{"X-Request-Id": {"req-1"}})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get(requestIDHeader); got != "req-1" {
		t.Fatalf("expected request id to be echoed, got %q", got)
	}
	resp := decodeValidateResponse(t, rec)
	if !resp.Valid || resp.RequestID != "req-1" {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestHandleValidateInvalidDocument(t *testing.T) {
	server := newTestServer(t, nil)

	rec := serve(server, http.MethodPost, "/api/v1/validate", []byte(`{"files":[],"fields":[]}`), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	resp := decodeValidateResponse(t, rec)
	if resp.Valid || len(resp.Violations) != 1 || resp.Violations[0].Kind != joydoc.ArityViolation {
		t.Fatalf("expected one arity violation, got %+v", resp.ValidationResult)
	}
	if resp.RequestID == "" {
		t.Fatalf("expected a generated request id")
	}
}

func TestHandleValidateMalformedJSON(t *testing.T) {
	server := newTestServer(t, nil)

	rec := serve(server, http.MethodPost, "/api/v1/validate", []byte(`{"files":`), nil)
	resp := decodeValidateResponse(t, rec)
	if resp.Valid || len(resp.Violations) != 1 || resp.Violations[0].Kind != joydoc.StructuralViolation {
		t.Fatalf("expected one structural violation, got %+v", resp.ValidationResult)
	}
}

func TestHandleValidateYAML(t *testing.T) {
	server := newTestServer(t, nil)
	body := []byte("files:\n  - _id: file1\n    pages: []\n    pageOrder: []\nfields: []\n")

	rec := serve(server, http.MethodPost, "/api/v1/validate", body, http.Header{"Content-Type": {"application/yaml"}})
	if resp := decodeValidateResponse(t, rec); !resp.Valid {
		t.Fatalf("expected valid YAML document, got %+v", resp.ValidationResult)
	}

	rec = serve(server, http.MethodPost, "/api/v1/validate", []byte("a: [1"), http.Header{"Content-Type": {"text/yaml"}})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 for malformed yaml, got %d", rec.Code)
	}
}

func TestHandleValidateBodyTooLarge(t *testing.T) {
	server := newTestServer(t, nil)
	body := []byte(`{"pad":"` + strings.Repeat("x", 70*1024) + `"}`)

	rec := serve(server, http.MethodPost, "/api/v1/validate", body, nil)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected status 413, got %d", rec.Code)
	}
}

func TestHandleValidateStrict(t *testing.T) {
	server := newTestServer(t, nil)
	data, err := os.ReadFile(filepath.Join("..", "..", "testdata", "future_properties.json"))
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}

	lenient := decodeValidateResponse(t, serve(server, http.MethodPost, "/api/v1/validate", data, nil))
	strict := decodeValidateResponse(t, serve(server, http.MethodPost, "/api/v1/validate?strict=true", data, nil))
	if len(lenient.Warnings) != 0 || len(strict.Warnings) == 0 {
		t.Fatalf("expected warnings only in strict mode, got %d and %d", len(lenient.Warnings), len(strict.Warnings))
	}
	if !strict.Valid {
		t.Fatalf("strict mode must not change validity")
	}
}

func TestHandleValidateStoreAndFetchReport(t *testing.T) {
	reports := &mockReportStore{}
	server := newTestServer(t, reports)

	rec := serve(server, http.MethodPost, "/api/v1/validate?store=true", kitchenSink(t), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	resp := decodeValidateResponse(t, rec)
	if resp.ReportID == "" || len(reports.saved) != 1 {
		t.Fatalf("expected one stored report, got %q and %d", resp.ReportID, len(reports.saved))
	}
	if reports.saved[0].DocumentID != "doc_kitchen_sink" {
		t.Fatalf("expected document id to be recorded, got %q", reports.saved[0].DocumentID)
	}

	rec = serve(server, http.MethodGet, "/api/v1/reports/"+resp.ReportID, nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	var report store.Report
	if err := json.Unmarshal(rec.Body.Bytes(), &report); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if report.ID.String() != resp.ReportID || !report.Valid {
		t.Fatalf("unexpected report %+v", report)
	}

	rec = serve(server, http.MethodGet, "/api/v1/reports/"+uuid.NewString(), nil, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rec.Code)
	}

	rec = serve(server, http.MethodGet, "/api/v1/reports/not-a-uuid", nil, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
}

func TestHandleValidateStoreErrors(t *testing.T) {
	server := newTestServer(t, nil)
	rec := serve(server, http.MethodPost, "/api/v1/validate?store=true", kitchenSink(t), nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503 without a store, got %d", rec.Code)
	}

	server = newTestServer(t, &mockReportStore{saveErr: errors.New("disk full")})
	rec = serve(server, http.MethodPost, "/api/v1/validate?store=true", kitchenSink(t), nil)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", rec.Code)
	}
}

func TestHandleListReports(t *testing.T) {
	reports := &mockReportStore{}
	server := newTestServer(t, reports)

	rec := serve(server, http.MethodGet, "/api/v1/reports?limit=500", nil, nil)
	if rec.Code != http.StatusOK || reports.listLimit != 100 {
		t.Fatalf("expected status 200 and a capped limit, got %d and %d", rec.Code, reports.listLimit)
	}

	rec = serve(server, http.MethodGet, "/api/v1/reports?limit=-1", nil, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
}

func TestHandleValidateSchemaAndLogic(t *testing.T) {
	server := newTestServer(t, nil)

	schema := []byte(`{"a":{"root":true,"tableColumns":[{"_id":"c1","type":"text"}]},"b":{"tableColumns":"x"}}`)
	resp := decodeValidateResponse(t, serve(server, http.MethodPost, "/api/v1/validate/schema", schema, nil))
	if resp.Valid || !resp.HasViolationAt("b.tableColumns") {
		t.Fatalf("expected a violation at b.tableColumns, got %+v", resp.ValidationResult)
	}

	logic := []byte(`{"action":"show","eval":"or","conditions":[{"schema":"a","column":"c1","condition":"="}]}`)
	resp = decodeValidateResponse(t, serve(server, http.MethodPost, "/api/v1/validate/logic?conditions=schema", logic, nil))
	if !resp.Valid {
		t.Fatalf("expected valid schema logic, got %+v", resp.ValidationResult)
	}

	resp = decodeValidateResponse(t, serve(server, http.MethodPost, "/api/v1/validate/logic", logic, nil))
	if resp.Valid {
		t.Fatalf("field conditions should reject schema conditions")
	}

	rec := serve(server, http.MethodPost, "/api/v1/validate/logic?conditions=page", logic, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
}

func TestHandleGetSchema(t *testing.T) {
	server := newTestServer(t, nil)

	rec := serve(server, http.MethodGet, "/api/v1/schema", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/schema+json" {
		t.Fatalf("unexpected content type %q", ct)
	}
	var schema map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &schema); err != nil {
		t.Fatalf("schema is not JSON: %v", err)
	}
	if schema["$joyfillSchemaVersion"] != joydoc.SchemaVersion {
		t.Fatalf("unexpected schema version %v", schema["$joyfillSchemaVersion"])
	}
}

func TestHandleHealth(t *testing.T) {
	server := newTestServer(t, nil)
	rec := serve(server, http.MethodGet, "/healthz", nil, nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"store":"disabled"`) {
		t.Fatalf("unexpected health response %d %s", rec.Code, rec.Body.String())
	}

	server = newTestServer(t, &mockReportStore{healthErr: fmt.Errorf("connection refused")})
	rec = serve(server, http.MethodGet, "/healthz", nil, nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	server := newTestServer(t, nil)
	serve(server, http.MethodPost, "/api/v1/validate", kitchenSink(t), nil)

	rec := serve(server, http.MethodGet, "/metrics", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	body, _ := io.ReadAll(rec.Body)
	for _, want := range []string{
		`joydoc_validation_total{outcome="valid",scope="document"} 1`,
		`route="POST /api/v1/validate"`,
	} {
		if !strings.Contains(string(body), want) {
			t.Fatalf("expected %q in metrics output:\n%s", want, body)
		}
	}
}

func TestMethodNotAllowed(t *testing.T) {
	server := newTestServer(t, nil)
	rec := serve(server, http.MethodGet, "/api/v1/validate", nil, nil)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected status 405, got %d", rec.Code)
	}
}
