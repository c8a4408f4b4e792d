package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/joseph-ayodele/referral-intake/constants"
	"github.com/joseph-ayodele/referral-intake/internal/common"
	"github.com/joseph-ayodele/referral-intake/internal/entity"
	"github.com/joseph-ayodele/referral-intake/internal/metrics"
	"github.com/joseph-ayodele/referral-intake/internal/pipeline"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type fakeExtractor struct {
	gotName string
	gotBody string
	gotOpts pipeline.Options
	err     error
}

func (f *fakeExtractor) Process(_ context.Context, doc entity.Document, opts pipeline.Options) (entity.ExtractionResult, error) {
	if f.err != nil {
		return entity.ExtractionResult{}, f.err
	}
	b, _ := io.ReadAll(doc.Body)
	f.gotName, f.gotBody, f.gotOpts = doc.FileName, string(b), opts

	fs := entity.NewFieldSet()
	fs.PatientName = "Jane Doe"
	return entity.ExtractionResult{
		ExtractedText: "Patient: Jane Doe",
		FileName:      doc.FileName,
		FileType:      "application/pdf",
		Fields:        fs,
		Method:        constants.MethodPDFText,
		Pages:         1,
	}, nil
}

func newTestServer(cfg common.ServerConfig, ex Extractor, m *metrics.Metrics) http.Handler {
	return NewServer(cfg, Deps{Extractor: ex, Metrics: m, AIAvailable: func() bool { return true }}, discard).Router()
}

func uploadRequest(t *testing.T, target, field, name, body string, extra map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range extra {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	if field != "" {
		fw, err := mw.CreateFormFile(field, name)
		if err != nil {
			t.Fatal(err)
		}
		_, _ = fw.Write([]byte(body))
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, target, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestExtractReturnsJSON(t *testing.T) {
	ex := &fakeExtractor{}
	h := newTestServer(common.ServerConfig{MaxUploadBytes: 1 << 20}, ex, nil)

	req := uploadRequest(t, "/api/v1/referrals/extract", "file", "referral.pdf", "%PDF-1.7", map[string]string{"use_ai": "false"})
	req.Header.Set(requestIDHeader, "req-123")
	res := httptest.NewRecorder()
	h.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("status %d body %s", res.Code, res.Body.String())
	}
	if res.Header().Get(requestIDHeader) != "req-123" {
		t.Fatalf("request id not echoed: %q", res.Header().Get(requestIDHeader))
	}
	if ex.gotName != "referral.pdf" || ex.gotBody != "%PDF-1.7" || ex.gotOpts.UseRemote {
		t.Fatalf("extractor got name=%q body=%q opts=%+v", ex.gotName, ex.gotBody, ex.gotOpts)
	}

	var out map[string]any
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"extracted_text", "file_name", "file_type", "fields"} {
		if _, ok := out[key]; !ok {
			t.Fatalf("response missing %q: %v", key, out)
		}
	}
	fields := out["fields"].(map[string]any)
	if fields["patient_name"] != "Jane Doe" || fields["phone_number"] != constants.NotFound {
		t.Fatalf("unexpected fields %v", fields)
	}
}

func TestExtractDefaultsToUseAI(t *testing.T) {
	ex := &fakeExtractor{}
	h := newTestServer(common.ServerConfig{}, ex, nil)

	res := httptest.NewRecorder()
	h.ServeHTTP(res, uploadRequest(t, "/api/v1/referrals/extract", "file", "a.png", "png", nil))
	if res.Code != http.StatusOK || !ex.gotOpts.UseRemote {
		t.Fatalf("status %d use_remote %v", res.Code, ex.gotOpts.UseRemote)
	}
}

func TestExtractReturnsXLSX(t *testing.T) {
	h := newTestServer(common.ServerConfig{}, &fakeExtractor{}, nil)

	res := httptest.NewRecorder()
	h.ServeHTTP(res, uploadRequest(t, "/api/v1/referrals/extract?format=xlsx", "file", "referral.pdf", "x", nil))
	if res.Code != http.StatusOK {
		t.Fatalf("status %d body %s", res.Code, res.Body.String())
	}
	if res.Header().Get("Content-Type") != contentTypeXLSX {
		t.Fatalf("content type %q", res.Header().Get("Content-Type"))
	}
	if !strings.Contains(res.Header().Get("Content-Disposition"), `filename="referral.xlsx"`) {
		t.Fatalf("disposition %q", res.Header().Get("Content-Disposition"))
	}
	// XLSX is a zip container.
	if !bytes.HasPrefix(res.Body.Bytes(), []byte("PK")) {
		t.Fatal("body is not an xlsx archive")
	}
}

func TestExtractErrors(t *testing.T) {
	tests := []struct {
		name   string
		ex     *fakeExtractor
		req    func(t *testing.T) *http.Request
		status int
		code   string
	}{
		{
			name:   "missing file",
			ex:     &fakeExtractor{},
			req:    func(t *testing.T) *http.Request { return uploadRequest(t, "/api/v1/referrals/extract", "", "", "", nil) },
			status: http.StatusBadRequest,
			code:   common.CodeInvalidInput,
		},
		{
			name: "not multipart",
			ex:   &fakeExtractor{},
			req: func(*testing.T) *http.Request {
				return httptest.NewRequest(http.MethodPost, "/api/v1/referrals/extract", strings.NewReader("{}"))
			},
			status: http.StatusBadRequest,
			code:   common.CodeInvalidInput,
		},
		{
			name: "bad use_ai",
			ex:   &fakeExtractor{},
			req: func(t *testing.T) *http.Request {
				return uploadRequest(t, "/api/v1/referrals/extract", "file", "a.pdf", "x", map[string]string{"use_ai": "maybe"})
			},
			status: http.StatusBadRequest,
			code:   common.CodeInvalidInput,
		},
		{
			name: "unknown format",
			ex:   &fakeExtractor{},
			req: func(t *testing.T) *http.Request {
				return uploadRequest(t, "/api/v1/referrals/extract?format=csv", "file", "a.pdf", "x", nil)
			},
			status: http.StatusNotAcceptable,
			code:   common.CodeNotAcceptable,
		},
		{
			name: "too large from pipeline",
			ex:   &fakeExtractor{err: common.NewAppError(common.CodeTooLarge, "upload exceeds size limit", common.ErrTooLarge)},
			req: func(t *testing.T) *http.Request {
				return uploadRequest(t, "/api/v1/referrals/extract", "file", "a.pdf", "x", nil)
			},
			status: http.StatusRequestEntityTooLarge,
			code:   common.CodeTooLarge,
		},
		{
			name: "storage failure",
			ex:   &fakeExtractor{err: common.StorageError("save upload", errors.New("disk full"))},
			req: func(t *testing.T) *http.Request {
				return uploadRequest(t, "/api/v1/referrals/extract", "file", "a.pdf", "x", nil)
			},
			status: http.StatusInternalServerError,
			code:   common.CodeStorage,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestServer(common.ServerConfig{}, tt.ex, nil)
			res := httptest.NewRecorder()
			h.ServeHTTP(res, tt.req(t))
			if res.Code != tt.status {
				t.Fatalf("status %d, want %d (body %s)", res.Code, tt.status, res.Body.String())
			}
			var body errorBody
			if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
				t.Fatal(err)
			}
			if body.Code != tt.code || body.RequestID == "" {
				t.Fatalf("unexpected body %+v", body)
			}
			if tt.status >= 500 && strings.Contains(body.Error, "disk full") {
				t.Fatalf("internal detail leaked: %q", body.Error)
			}
		})
	}
}

func TestExtractRejectsOversizedBody(t *testing.T) {
	h := newTestServer(common.ServerConfig{MaxUploadBytes: 16}, &fakeExtractor{}, nil)

	res := httptest.NewRecorder()
	big := strings.Repeat("x", 2*multipartOverhead)
	h.ServeHTTP(res, uploadRequest(t, "/api/v1/referrals/extract", "file", "a.pdf", big, nil))
	if res.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status %d, want 413", res.Code)
	}
}

func TestRateLimitReturns429(t *testing.T) {
	m := metrics.New("test")
	h := newTestServer(common.ServerConfig{RateLimitRPS: 1, RateLimitBurst: 1}, &fakeExtractor{}, m)

	res1 := httptest.NewRecorder()
	h.ServeHTTP(res1, uploadRequest(t, "/api/v1/referrals/extract", "file", "a.pdf", "x", nil))
	if res1.Code != http.StatusOK {
		t.Fatalf("first request expected 200, got %d", res1.Code)
	}

	res2 := httptest.NewRecorder()
	h.ServeHTTP(res2, uploadRequest(t, "/api/v1/referrals/extract", "file", "a.pdf", "x", nil))
	if res2.Code != http.StatusTooManyRequests {
		t.Fatalf("second request expected 429, got %d", res2.Code)
	}
	if res2.Header().Get("Retry-After") == "" {
		t.Fatal("expected Retry-After header for 429 response")
	}

	// Health checks are not rate limited.
	res3 := httptest.NewRecorder()
	h.ServeHTTP(res3, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if res3.Code != http.StatusOK {
		t.Fatalf("healthz expected 200, got %d", res3.Code)
	}

	scrape := httptest.NewRecorder()
	h.ServeHTTP(scrape, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(scrape.Body.String(), `referral_http_rate_limited_total{service="test"} 1`) {
		t.Fatal("rate limited counter not incremented")
	}
}

func TestHealthAndMetricsRoutes(t *testing.T) {
	h := newTestServer(common.ServerConfig{}, &fakeExtractor{}, metrics.New("test"))

	res := httptest.NewRecorder()
	h.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	var health map[string]any
	if err := json.NewDecoder(res.Body).Decode(&health); err != nil {
		t.Fatal(err)
	}
	if health["status"] != "ok" || health["ai_available"] != true {
		t.Fatalf("unexpected health %v", health)
	}

	res = httptest.NewRecorder()
	h.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if res.Code != http.StatusOK || !strings.Contains(res.Body.String(), "referral_http_requests_total") {
		t.Fatalf("metrics endpoint missing request counter: %d", res.Code)
	}
}

func TestGRPCHealth(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	hs := NewHealthServer(discard)
	go func() { _ = hs.Serve(lis) }()
	defer hs.Stop()

	conn, err := grpc.NewClient(lis.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	client := healthpb.NewHealthClient(conn)

	resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: ServiceName})
	if err != nil {
		t.Fatalf("health check: %v", err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("status %v", resp.GetStatus())
	}

	hs.SetServing(false)
	resp, err = client.Check(ctx, &healthpb.HealthCheckRequest{})
	if err != nil {
		t.Fatal(err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Fatalf("status %v", resp.GetStatus())
	}
}
