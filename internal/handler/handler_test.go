package handler

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"

	"github.com/fleveque/tongue-service/internal/llm"
	"github.com/fleveque/tongue-service/internal/middleware"
	"github.com/fleveque/tongue-service/internal/model"
	"github.com/fleveque/tongue-service/internal/service"
	"github.com/fleveque/tongue-service/internal/storage"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testAnalysis(t *testing.T, id string) *model.Analysis {
	t.Helper()
	rec := model.NewAnalysisRecord()
	rec.Zones[model.ZoneTip] = "red"
	rec.Diagnosis = "Heat"
	rec.Recommendations = []string{"Rest"}
	rec.Confidence = 0.9
	a, err := model.NewAnalysis(id, "req", "hash", rec)
	if err != nil {
		t.Fatal(err)
	}
	a.Provider = "anthropic"
	return a
}

type fakeAnalyzer struct {
	result    *model.Analysis
	err       error
	photo     []byte
	requestID string
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, requestID string, photo []byte) (*model.Analysis, error) {
	f.photo = photo
	f.requestID = requestID
	return f.result, f.err
}

func analyzeRouter(a Analyzer) *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestID())
	r.POST("/analyze-tongue", NewAnalyzeHandler(a, zap.NewNop()).Analyze)
	return r
}

type envelope struct {
	Success    bool                 `json:"success"`
	Error      string               `json:"error"`
	AnalysisID string               `json:"analysisId"`
	Result     model.AnalysisRecord `json:"result"`
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("decoding body %q: %v", w.Body.String(), err)
	}
	return env
}

func jsonRequest(body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/analyze-tongue", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestAnalyzeHandler_Success(t *testing.T) {
	a := &fakeAnalyzer{result: testAnalysis(t, "an-1")}
	r := analyzeRouter(a)

	body := fmt.Sprintf(`{"imageData":%q}`, base64.StdEncoding.EncodeToString([]byte("photo-bytes")))
	req := jsonRequest(body)
	req.Header.Set(middleware.RequestIDHeader, "req-42")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	env := decodeEnvelope(t, w)
	if !env.Success || env.AnalysisID != "an-1" {
		t.Errorf("unexpected envelope %+v", env)
	}
	want, _ := a.result.Record()
	if diff := cmp.Diff(want, env.Result); diff != "" {
		t.Errorf("result mismatch (-want +got):\n%s", diff)
	}
	if string(a.photo) != "photo-bytes" || a.requestID != "req-42" {
		t.Errorf("analyzer got photo %q, request %q", a.photo, a.requestID)
	}
}

func TestAnalyzeHandler_DataURL(t *testing.T) {
	a := &fakeAnalyzer{result: testAnalysis(t, "an-1")}
	r := analyzeRouter(a)

	body := fmt.Sprintf(`{"imageData":"data:image/png;base64,%s"}`, base64.StdEncoding.EncodeToString([]byte("png")))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, jsonRequest(body))

	if w.Code != http.StatusOK || string(a.photo) != "png" {
		t.Errorf("expected data URL to decode, got %d and %q", w.Code, a.photo)
	}
}

func TestAnalyzeHandler_Multipart(t *testing.T) {
	a := &fakeAnalyzer{result: testAnalysis(t, "an-1")}
	r := analyzeRouter(a)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, _ := mw.CreateFormFile("photo", "tongue.jpg")
	part.Write([]byte("jpeg-bytes"))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/analyze-tongue", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK || string(a.photo) != "jpeg-bytes" {
		t.Errorf("expected multipart upload to work, got %d and %q", w.Code, a.photo)
	}
}

func TestAnalyzeHandler_BadRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", "{"},
		{"missing image", `{}`},
		{"empty image", `{"imageData":"  "}`},
		{"bad base64", `{"imageData":"%%%"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &fakeAnalyzer{}
			w := httptest.NewRecorder()
			analyzeRouter(a).ServeHTTP(w, jsonRequest(tt.body))

			if w.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", w.Code)
			}
			if env := decodeEnvelope(t, w); env.Success || env.Error == "" {
				t.Errorf("expected error envelope, got %+v", env)
			}
			if a.photo != nil {
				t.Error("analyzer should not be called")
			}
		})
	}
}

func TestAnalyzeHandler_ErrorStatuses(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"invalid image", fmt.Errorf("%w: bad", service.ErrInvalidImage), http.StatusBadRequest},
		{"quota", fmt.Errorf("all providers: %w", llm.ErrQuotaExceeded), http.StatusTooManyRequests},
		{"provider", fmt.Errorf("%w: boom", service.ErrProviderFailed), http.StatusBadGateway},
		{"internal", errors.New("disk full"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &fakeAnalyzer{err: tt.err}
			w := httptest.NewRecorder()
			body := fmt.Sprintf(`{"imageData":%q}`, base64.StdEncoding.EncodeToString([]byte("x")))
			analyzeRouter(a).ServeHTTP(w, jsonRequest(body))

			if w.Code != tt.want {
				t.Errorf("expected %d, got %d", tt.want, w.Code)
			}
			env := decodeEnvelope(t, w)
			if env.Success {
				t.Error("expected success=false")
			}
			if env.Error == "disk full" {
				t.Error("internal error details should not leak")
			}
		})
	}
}

type fakeReader struct {
	analyses map[string]*model.Analysis
	photos   map[string][]byte
}

func (f *fakeReader) Get(ctx context.Context, id string) (*model.Analysis, error) {
	a, ok := f.analyses[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return a, nil
}

func (f *fakeReader) List(ctx context.Context, limit int) ([]model.Analysis, error) {
	var out []model.Analysis
	for _, a := range f.analyses {
		if len(out) == limit {
			break
		}
		out = append(out, *a)
	}
	return out, nil
}

func (f *fakeReader) Photo(ctx context.Context, id string, variant model.PhotoVariant) ([]byte, error) {
	if _, ok := f.analyses[id]; !ok {
		return nil, storage.ErrNotFound
	}
	data, ok := f.photos[id+"/"+string(variant)]
	if !ok {
		return nil, storage.ErrPhotoNotFound
	}
	return data, nil
}

func (f *fakeReader) Stats(ctx context.Context) (*service.Stats, error) {
	return &service.Stats{TotalAnalyses: int64(len(f.analyses)), ByProvider: map[string]int64{"anthropic": 1}}, nil
}

func adminRouter(t *testing.T) *gin.Engine {
	reader := &fakeReader{
		analyses: map[string]*model.Analysis{"an-1": testAnalysis(t, "an-1")},
		photos:   map[string][]byte{"an-1/original": []byte("jpeg")},
	}
	h := NewAdminHandler(reader, zap.NewNop())

	r := gin.New()
	r.GET("/stats", h.Stats)
	r.GET("/analyses", h.List)
	r.GET("/analyses/:id", h.Get)
	r.GET("/analyses/:id/photo", h.Photo)
	return r
}

func get(r http.Handler, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestAdminHandler_Get(t *testing.T) {
	r := adminRouter(t)

	w := get(r, "/analyses/an-1")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var body struct {
		ID       string               `json:"id"`
		Provider string               `json:"provider"`
		Record   model.AnalysisRecord `json:"record"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.ID != "an-1" || body.Provider != "anthropic" || body.Record.Zones[model.ZoneTip] != "red" {
		t.Errorf("unexpected body %s", w.Body.String())
	}

	if w := get(r, "/analyses/missing"); w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestAdminHandler_List(t *testing.T) {
	r := adminRouter(t)

	w := get(r, "/analyses?limit=5")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var body struct {
		Count int `json:"count"`
	}
	json.Unmarshal(w.Body.Bytes(), &body)
	if body.Count != 1 {
		t.Errorf("expected 1 analysis, got %d", body.Count)
	}

	for _, bad := range []string{"0", "-3", "abc"} {
		if w := get(r, "/analyses?limit="+bad); w.Code != http.StatusBadRequest {
			t.Errorf("limit=%s: expected 400, got %d", bad, w.Code)
		}
	}
}

func TestAdminHandler_Photo(t *testing.T) {
	r := adminRouter(t)

	tests := []struct {
		path        string
		want        int
		contentType string
	}{
		{"/analyses/an-1/photo", http.StatusOK, "image/jpeg"},
		{"/analyses/an-1/photo?variant=original", http.StatusOK, "image/jpeg"},
		{"/analyses/an-1/photo?variant=thumb", http.StatusNotFound, ""},
		{"/analyses/an-1/photo?variant=huge", http.StatusBadRequest, ""},
		{"/analyses/missing/photo", http.StatusNotFound, ""},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w := get(r, tt.path)
			if w.Code != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, w.Code)
			}
			if tt.contentType != "" && w.Header().Get("Content-Type") != tt.contentType {
				t.Errorf("expected %s, got %s", tt.contentType, w.Header().Get("Content-Type"))
			}
		})
	}
}

func TestAdminHandler_Stats(t *testing.T) {
	w := get(adminRouter(t), "/stats")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var stats service.Stats
	if err := json.Unmarshal(w.Body.Bytes(), &stats); err != nil {
		t.Fatal(err)
	}
	if stats.TotalAnalyses != 1 || stats.ByProvider["anthropic"] != 1 {
		t.Errorf("unexpected stats %+v", stats)
	}
}

func TestHealthHandler(t *testing.T) {
	tests := []struct {
		name   string
		checks map[string]Check
		want   int
	}{
		{"no checks", nil, http.StatusOK},
		{"healthy", map[string]Check{"database": func(context.Context) error { return nil }}, http.StatusOK},
		{"degraded", map[string]Check{
			"database": func(context.Context) error { return nil },
			"cache":    func(context.Context) error { return errors.New("connection refused") },
		}, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.GET("/healthz", NewHealthHandler(tt.checks).Healthz)

			w := get(r, "/healthz")
			if w.Code != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, w.Code)
			}
			var body map[string]any
			json.Unmarshal(w.Body.Bytes(), &body)
			if body["service"] != "tongue-service" {
				t.Errorf("unexpected body %v", body)
			}
		})
	}
}
