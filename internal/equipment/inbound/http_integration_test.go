package inbound

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/abhi5171-max/chemical-equipment-visualizer/internal/equipment/event"
	"github.com/abhi5171-max/chemical-equipment-visualizer/internal/equipment/report"
	"github.com/abhi5171-max/chemical-equipment-visualizer/internal/equipment/store"
	"github.com/abhi5171-max/chemical-equipment-visualizer/internal/equipment/usecase"
	"github.com/abhi5171-max/chemical-equipment-visualizer/internal/pkg/pkgrouter"
	"github.com/abhi5171-max/chemical-equipment-visualizer/internal/pkg/pkgroutine"
	"github.com/abhi5171-max/chemical-equipment-visualizer/internal/pkg/pkguid"
)

const (
	aliceToken = "alice-token"
	bobToken   = "bob-token"
)

const plantCSV = `Equipment Name,Type,Flowrate,Pressure,Temperature
Reactor-1,Reactor,120.5,5.2,110
Pump-1,Pump,45.2,3.1,65.5
HX-1,Heat Exchanger,210,4.8,150
Valve-1,Valve,15,2,40
`

type envelope[T any] struct {
	Message string         `json:"message"`
	Data    T              `json:"data"`
	Meta    map[string]any `json:"meta,omitempty"`
}

type errorEnvelope struct {
	Message string            `json:"message"`
	Code    string            `json:"code"`
	Error   map[string]string `json:"error"`
}

type testSnowflake struct{ n int64 }

func (s *testSnowflake) Generate() int64 {
	s.n++
	return 7_000_000_000_000_000_000 + s.n
}

func newTestServer(t *testing.T, maxUpload int64) http.Handler {
	t.Helper()

	runner := pkgroutine.NewManager(10)
	bus := event.NewBus(64)
	consumer := event.NewConsumer(bus, event.AuditLogger{}, event.ConsumerConfig{Workers: 1})
	consumer.Start()

	uc := usecase.New(usecase.Dependency{
		Store:    store.NewInMemoryStore(),
		Reporter: report.NewAssembler("chemvis-test"),
		Events:   bus,
		Runner:   runner,
		ID:       &testSnowflake{},
		EventID:  pkguid.NewUUID(),
		RootCtx:  context.Background(),
	})

	router := pkgrouter.NewRouter(pkguid.NewUUID())
	RegisterHTTPEndpoint(router, uc, pkgrouter.StaticTokens{
		aliceToken: "alice",
		bobToken:   "bob",
	}, Options{MaxUploadBytes: maxUpload})

	t.Cleanup(func() {
		if err := runner.Wait(); err != nil {
			t.Errorf("runner wait: %v", err)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := consumer.Stop(ctx); err != nil {
			t.Errorf("stop consumer: %v", err)
		}
	})

	return router
}

func do(t *testing.T, h http.Handler, req *http.Request, token string) *httptest.ResponseRecorder {
	t.Helper()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func multipartUpload(t *testing.T, filename, content string) *http.Request {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	if err := writer.WriteField("note", "ignored"); err != nil {
		t.Fatalf("write field: %v", err)
	}
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := io.WriteString(part, content); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/datasets", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func ingest(t *testing.T, h http.Handler, token, filename, content string) IngestResponse {
	t.Helper()

	rec := do(t, h, multipartUpload(t, filename, content), token)
	if rec.Code != http.StatusCreated {
		t.Fatalf("ingest status = %d, body = %s", rec.Code, rec.Body)
	}

	var env envelope[IngestResponse]
	if err := json.NewDecoder(rec.Body).Decode(&env); err != nil {
		t.Fatalf("decode ingest response: %v", err)
	}
	if env.Data.ID == "" {
		t.Fatal("dataset id is empty")
	}
	return env.Data
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorEnvelope {
	t.Helper()

	var env errorEnvelope
	if err := json.NewDecoder(rec.Body).Decode(&env); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	return env
}

func TestDatasetLifecycle(t *testing.T) {
	h := newTestServer(t, 0)

	created := ingest(t, h, aliceToken, "plant_a.csv", plantCSV)
	if created.Summary.RowCount != 4 || created.Summary.DistributionByType["Valve"] != 1 {
		t.Fatalf("unexpected summary %+v", created.Summary)
	}
	if created.Filename != "plant_a.csv" {
		t.Fatalf("filename = %q", created.Filename)
	}
	if !strings.HasPrefix(created.ID, "7000000000000000") {
		t.Fatalf("id lost precision: %q", created.ID)
	}

	rec := do(t, h, httptest.NewRequest(http.MethodGet, "/datasets", nil), aliceToken)
	if rec.Code != http.StatusOK {
		t.Fatalf("history status = %d", rec.Code)
	}
	var history envelope[[]Dataset]
	if err := json.NewDecoder(rec.Body).Decode(&history); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if len(history.Data) != 1 || history.Data[0].ID != created.ID {
		t.Fatalf("unexpected history %+v", history.Data)
	}

	rec = do(t, h, httptest.NewRequest(http.MethodGet, "/datasets/"+created.ID+"/items", nil), aliceToken)
	if rec.Code != http.StatusOK {
		t.Fatalf("items status = %d", rec.Code)
	}
	var rows envelope[RowsResponse]
	if err := json.NewDecoder(rec.Body).Decode(&rows); err != nil {
		t.Fatalf("decode items: %v", err)
	}
	if len(rows.Data.Items) != 4 || rows.Data.Items[2].Type != "Heat Exchanger" {
		t.Fatalf("unexpected items %+v", rows.Data.Items)
	}

	rec = do(t, h, httptest.NewRequest(http.MethodGet, "/datasets/"+created.ID+"/report", nil), aliceToken)
	if rec.Code != http.StatusOK {
		t.Fatalf("report status = %d, body = %s", rec.Code, rec.Body)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/pdf" {
		t.Fatalf("report content type = %q", ct)
	}
	wantDisposition := fmt.Sprintf("attachment; filename=report_%s.pdf", created.ID)
	if got := rec.Header().Get("Content-Disposition"); got != wantDisposition {
		t.Fatalf("Content-Disposition = %q, want %q", got, wantDisposition)
	}
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF-")) {
		t.Fatal("report body is not a PDF")
	}

	rec = do(t, h, httptest.NewRequest(http.MethodDelete, "/datasets/"+created.ID, nil), aliceToken)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", rec.Code)
	}

	rec = do(t, h, httptest.NewRequest(http.MethodGet, "/datasets/"+created.ID, nil), aliceToken)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("get after delete status = %d", rec.Code)
	}
}

func TestRawBodyUpload(t *testing.T) {
	h := newTestServer(t, 0)

	req := httptest.NewRequest(http.MethodPost, "/datasets?filename=raw.csv", strings.NewReader(plantCSV))
	req.Header.Set("Content-Type", "text/csv")
	rec := do(t, h, req, aliceToken)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}

	req = httptest.NewRequest(http.MethodPost, "/datasets", strings.NewReader(plantCSV))
	rec = do(t, h, req, aliceToken)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("missing filename status = %d", rec.Code)
	}
}

func TestAuthentication(t *testing.T) {
	h := newTestServer(t, 0)

	tests := []struct {
		name   string
		header string
	}{
		{name: "missing", header: ""},
		{name: "unknown token", header: "Bearer nope"},
		{name: "wrong scheme", header: "Basic " + aliceToken},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/datasets", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("status = %d, want 401", rec.Code)
			}
		})
	}
}

func TestOtherOwnersSeeNotFound(t *testing.T) {
	h := newTestServer(t, 0)

	created := ingest(t, h, aliceToken, "plant_a.csv", plantCSV)

	for _, path := range []string{
		"/datasets/" + created.ID,
		"/datasets/" + created.ID + "/items",
		"/datasets/" + created.ID + "/report",
	} {
		rec := do(t, h, httptest.NewRequest(http.MethodGet, path, nil), bobToken)
		if rec.Code != http.StatusNotFound {
			t.Fatalf("GET %s as bob status = %d, want 404", path, rec.Code)
		}
	}

	rec := do(t, h, httptest.NewRequest(http.MethodDelete, "/datasets/"+created.ID, nil), bobToken)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("DELETE as bob status = %d, want 404", rec.Code)
	}

	rec = do(t, h, httptest.NewRequest(http.MethodGet, "/datasets", nil), bobToken)
	var history envelope[[]Dataset]
	if err := json.NewDecoder(rec.Body).Decode(&history); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if len(history.Data) != 0 {
		t.Fatalf("bob sees %d datasets", len(history.Data))
	}
}

func TestInvalidUploads(t *testing.T) {
	h := newTestServer(t, 0)

	tests := []struct {
		name     string
		csv      string
		status   int
		code     string
		detail   string
		detailOK string
	}{
		{
			name:     "missing columns",
			csv:      "Equipment Name,Type,Flowrate\nP,Pump,1\n",
			status:   http.StatusBadRequest,
			code:     "ERROR_CODE_INVALID_SCHEMA",
			detail:   "missing",
			detailOK: "Pressure,Temperature",
		},
		{
			name:     "bad number",
			csv:      "Equipment Name,Type,Flowrate,Pressure,Temperature\nA,Pump,1,2,3\nB,Pump,1,abc,3\n",
			status:   http.StatusUnprocessableEntity,
			code:     "ERROR_CODE_INVALID_VALUE",
			detail:   "line",
			detailOK: "3",
		},
		{
			name:   "header only",
			csv:    "Equipment Name,Type,Flowrate,Pressure,Temperature\n",
			status: http.StatusUnprocessableEntity,
			code:   "ERROR_CODE_EMPTY_INPUT",
		},
		{
			name:   "ragged record",
			csv:    "Equipment Name,Type,Flowrate,Pressure,Temperature\nA,Pump\n",
			status: http.StatusBadRequest,
			code:   "ERROR_CODE_INVALID_FORMAT",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(t, h, multipartUpload(t, "bad.csv", tc.csv), aliceToken)
			if rec.Code != tc.status {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tc.status, rec.Body)
			}

			env := decodeError(t, rec)
			if env.Code != tc.code {
				t.Fatalf("code = %q, want %q", env.Code, tc.code)
			}
			if tc.detail != "" && env.Error[tc.detail] != tc.detailOK {
				t.Fatalf("error[%s] = %q, want %q", tc.detail, env.Error[tc.detail], tc.detailOK)
			}
		})
	}

	rec := do(t, h, httptest.NewRequest(http.MethodGet, "/datasets", nil), aliceToken)
	var history envelope[[]Dataset]
	if err := json.NewDecoder(rec.Body).Decode(&history); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if len(history.Data) != 0 {
		t.Fatalf("failed uploads left %d datasets behind", len(history.Data))
	}
}

func TestUploadTooLarge(t *testing.T) {
	h := newTestServer(t, 64)

	rec := do(t, h, multipartUpload(t, "big.csv", plantCSV), aliceToken)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}
}

func TestNonNumericIDIsNotFound(t *testing.T) {
	h := newTestServer(t, 0)

	rec := do(t, h, httptest.NewRequest(http.MethodGet, "/datasets/abc", nil), aliceToken)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestSixthUploadEvictsOldest(t *testing.T) {
	h := newTestServer(t, 0)

	var ids []string
	for i := 0; i < 6; i++ {
		res := ingest(t, h, aliceToken, fmt.Sprintf("plant_%d.csv", i), plantCSV)
		ids = append(ids, res.ID)
		if i == 5 && (len(res.Evicted) != 1 || res.Evicted[0] != ids[0]) {
			t.Fatalf("evicted = %v, want [%s]", res.Evicted, ids[0])
		}
	}

	rec := do(t, h, httptest.NewRequest(http.MethodGet, "/datasets", nil), aliceToken)
	var history envelope[[]Dataset]
	if err := json.NewDecoder(rec.Body).Decode(&history); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if len(history.Data) != 5 {
		t.Fatalf("history len = %d, want 5", len(history.Data))
	}
	if history.Data[0].ID != ids[5] || history.Data[4].ID != ids[1] {
		t.Fatalf("unexpected history order %+v", history.Data)
	}

	rec = do(t, h, httptest.NewRequest(http.MethodGet, "/datasets/"+ids[0]+"/items", nil), aliceToken)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("evicted dataset items status = %d, want 404", rec.Code)
	}
}
