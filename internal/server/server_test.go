package server

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/fleveque/tongue-service/internal/analyzer"
	"github.com/fleveque/tongue-service/internal/config"
	"github.com/fleveque/tongue-service/internal/handler"
	"github.com/fleveque/tongue-service/internal/imaging"
	"github.com/fleveque/tongue-service/internal/llm"
	"github.com/fleveque/tongue-service/internal/metrics"
	"github.com/fleveque/tongue-service/internal/model"
	"github.com/fleveque/tongue-service/internal/provider"
	"github.com/fleveque/tongue-service/internal/service"
	"github.com/fleveque/tongue-service/internal/storage"
)

const report = `Tongue Zones:
Tip: slightly red
Center: thin white coating
Diagnosis:
Mild spleen qi deficiency
Recommendations:
- Eat warm cooked food
Confidence: 0.7
Image Quality:
Fair`

type staticReports struct{ err error }

func (staticReports) Name() string { return "static" }

func (s staticReports) Describe(ctx context.Context, photo []byte, mimeType, hash string) (*provider.Report, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &provider.Report{Text: report, Provider: "anthropic", Model: "claude-test"}, nil
}

func testPhoto(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 64, 48))
	for y := 0; y < 48; y++ {
		for x := 0; x < 64; x++ {
			img.Set(x, y, color.RGBA{R: 210, G: 90, B: 100, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Server.Host = "127.0.0.1"
	cfg.Auth.APIKeys = []string{"client-key"}
	cfg.Auth.AdminKeys = []string{"admin-key"}
	cfg.CORS.AllowedOrigins = []string{"http://localhost:3000"}
	cfg.RateLimit.RequestsPerSecond = 100
	cfg.RateLimit.Burst = 100
	return cfg
}

func newTestServer(t *testing.T, reports provider.ReportSource) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	dir := t.TempDir()

	db, err := storage.NewDatabase(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("creating database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	files, err := storage.NewFileSystem(filepath.Join(dir, "photos"))
	if err != nil {
		t.Fatal(err)
	}

	reg := prometheus.NewRegistry()
	svc := service.NewAnalysisService(service.Deps{
		Analyses: storage.NewAnalysisRepository(db),
		Calls:    storage.NewLLMCallRepository(db),
		Files:    files,
		Reports:  reports,
		Metrics:  metrics.New(reg),
		Logger:   zap.NewNop(),
	})

	srv := New(testConfig(), Deps{
		Analyses: svc,
		Reader:   svc,
		Checks:   map[string]handler.Check{"database": db.PingContext},
		Gatherer: reg,
	}, zap.NewNop())

	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts
}

func TestServer_ClientRoundTrip(t *testing.T) {
	ts := newTestServer(t, staticReports{})

	transport := analyzer.NewHTTPTransport(ts.URL+"/api/v1", "client-key", 5*time.Second, zap.NewNop())
	client := analyzer.NewClient(transport, imaging.Options{}, zap.NewNop())

	rec, err := client.Analyze(context.Background(), testPhoto(t))
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if rec.Diagnosis != "Mild spleen qi deficiency" || rec.Confidence != 0.7 || rec.ImageQuality != "Fair" {
		t.Errorf("unexpected record %+v", rec)
	}
	if rec.Zones[model.ZoneCenter] != "thin white coating" {
		t.Errorf("unexpected zones %v", rec.Zones)
	}
}

func TestServer_ClientErrorKinds(t *testing.T) {
	tests := []struct {
		name    string
		reports provider.ReportSource
		apiKey  string
		want    analyzer.Error
	}{
		{"wrong key", staticReports{}, "nope", analyzer.ErrInvalidCredential},
		{"quota", staticReports{err: llm.ErrQuotaExceeded}, "client-key", analyzer.ErrRateLimited},
		{"provider down", staticReports{err: errors.New("boom")}, "client-key", analyzer.ErrServerFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, tt.reports)
			transport := analyzer.NewHTTPTransport(ts.URL+"/api/v1", tt.apiKey, 5*time.Second, zap.NewNop())
			client := analyzer.NewClient(transport, imaging.Options{}, zap.NewNop())

			_, err := client.Analyze(context.Background(), testPhoto(t))
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestServer_Routes(t *testing.T) {
	ts := newTestServer(t, staticReports{})

	tests := []struct {
		name   string
		method string
		path   string
		header map[string]string
		want   int
	}{
		{"health", http.MethodGet, "/healthz", nil, http.StatusOK},
		{"metrics", http.MethodGet, "/metrics", nil, http.StatusOK},
		{"admin without key", http.MethodGet, "/api/v1/admin/stats", nil, http.StatusUnauthorized},
		{"admin with client key", http.MethodGet, "/api/v1/admin/stats", map[string]string{"X-API-Key": "client-key"}, http.StatusForbidden},
		{"admin stats", http.MethodGet, "/api/v1/admin/stats", map[string]string{"X-API-Key": "admin-key"}, http.StatusOK},
		{"admin list", http.MethodGet, "/api/v1/admin/analyses", map[string]string{"X-API-Key": "admin-key"}, http.StatusOK},
		{"admin missing", http.MethodGet, "/api/v1/admin/analyses/none", map[string]string{"X-API-Key": "admin-key"}, http.StatusNotFound},
		{"preflight", http.MethodOptions, "/api/v1/analyze-tongue", map[string]string{"Origin": "http://localhost:3000"}, http.StatusNoContent},
		{"analyze without key", http.MethodPost, "/api/v1/analyze-tongue", nil, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, _ := http.NewRequest(tt.method, ts.URL+tt.path, nil)
			for k, v := range tt.header {
				req.Header.Set(k, v)
			}
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				t.Fatal(err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != tt.want {
				t.Errorf("expected %d, got %d", tt.want, resp.StatusCode)
			}
			if resp.Header.Get("X-Request-ID") == "" {
				t.Error("expected an X-Request-ID response header")
			}
		})
	}
}

func TestServer_MetricsAfterAnalysis(t *testing.T) {
	ts := newTestServer(t, staticReports{})
	transport := analyzer.NewHTTPTransport(ts.URL+"/api/v1", "client-key", 5*time.Second, zap.NewNop())
	if _, err := analyzer.NewClient(transport, imaging.Options{}, zap.NewNop()).Analyze(context.Background(), testPhoto(t)); err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var buf bytes.Buffer
	buf.ReadFrom(resp.Body)

	if !strings.Contains(buf.String(), `tongue_analyzer_requests_total{result="success"} 1`) {
		t.Errorf("success counter missing from metrics output:\n%s", buf.String())
	}
}
