package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/joseph-ayodele/referral-intake/constants"
	"github.com/joseph-ayodele/referral-intake/internal/llm"
	"github.com/joseph-ayodele/referral-intake/internal/resilience"
)

func chatResponse(t *testing.T, content any) []byte {
	t.Helper()
	var s string
	switch v := content.(type) {
	case string:
		s = v
	default:
		b, err := json.Marshal(v)
		if err != nil {
			t.Fatal(err)
		}
		s = string(b)
	}
	b, _ := json.Marshal(map[string]any{
		"choices": []map[string]any{{"message": map[string]any{"role": "assistant", "content": s}}},
	})
	return b
}

func completeFields() map[string]any {
	return map[string]any{
		"patient_name":       "Jane Doe",
		"date_of_birth":      "03/14/1985",
		"phone_number":       "(555) 123-4567",
		"email_address":      "jane.doe@example.com",
		"insurance":          "Blue Cross PPO",
		"referring_provider": "Alan Smith, MD",
		"referral_reason":    "Chronic low back pain",
		"notes_comments":     "patient prefers morning calls",
		"confidence":         "high",
		"extraction_notes":   "clear text layer",
	}
}

func TestExtractFieldsSuccess(t *testing.T) {
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			t.Errorf("unexpected auth header %q", r.Header.Get("Authorization"))
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(chatResponse(t, completeFields()))
	}))
	defer server.Close()

	c := NewClient(Config{APIKey: "sk-test", BaseURL: server.URL}, nil, nil)
	fs, raw, err := c.ExtractFields(context.Background(), llm.ExtractRequest{Text: "Patient Name: Jane Doe"})
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if len(raw) == 0 {
		t.Fatal("expected raw content")
	}
	if !fs.AIUsed || fs.Confidence != constants.ConfidenceHigh || fs.PatientName != "Jane Doe" {
		t.Fatalf("unexpected fields %+v", fs)
	}

	if gotBody["model"] != "gpt-4o" {
		t.Fatalf("model = %v", gotBody["model"])
	}
	if temp, _ := gotBody["temperature"].(float64); temp < 0.19 || temp > 0.21 {
		t.Fatalf("temperature = %v", gotBody["temperature"])
	}
	rf, _ := gotBody["response_format"].(map[string]any)
	if rf["type"] != "json_object" {
		t.Fatalf("response_format = %v", gotBody["response_format"])
	}
	msgs, _ := gotBody["messages"].([]any)
	if len(msgs) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(msgs))
	}
}

func TestExtractFieldsLenientFill(t *testing.T) {
	partial := map[string]any{
		"patient_name": "Jane Doe",
		"dob":          "03/14/1985",
		"phone_number": nil,
		"confidence":   "Medium",
		"ssn":          "000-00-0000",
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(chatResponse(t, partial))
	}))
	defer server.Close()

	c := NewClient(Config{APIKey: "sk-test", BaseURL: server.URL}, nil, nil)
	fs, _, err := c.ExtractFields(context.Background(), llm.ExtractRequest{Text: "x"})
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if fs.DateOfBirth != "03/14/1985" || fs.PhoneNumber != constants.NotFound || fs.Insurance != constants.NotFound {
		t.Fatalf("unexpected fields %+v", fs)
	}
	if fs.Confidence != constants.ConfidenceMedium || !fs.AIUsed {
		t.Fatalf("unexpected confidence/ai_used %s/%v", fs.Confidence, fs.AIUsed)
	}
}

func TestExtractFieldsStrictSchemaRejectsPartial(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(chatResponse(t, map[string]any{"patient_name": "Jane Doe"}))
	}))
	defer server.Close()

	c := NewClient(Config{APIKey: "sk-test", BaseURL: server.URL, StrictSchema: true}, nil, nil)
	if _, _, err := c.ExtractFields(context.Background(), llm.ExtractRequest{Text: "x"}); err == nil {
		t.Fatal("expected schema error in strict mode")
	}
}

func TestExtractFieldsMalformedContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(chatResponse(t, "I could not find any patient information."))
	}))
	defer server.Close()

	c := NewClient(Config{APIKey: "sk-test", BaseURL: server.URL}, nil, nil)
	if _, _, err := c.ExtractFields(context.Background(), llm.ExtractRequest{Text: "x"}); err == nil {
		t.Fatal("expected error for non-JSON content")
	}
}

func TestExtractFieldsNullContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(chatResponse(t, "null"))
	}))
	defer server.Close()

	c := NewClient(Config{APIKey: "sk-test", BaseURL: server.URL}, nil, nil)
	if _, _, err := c.ExtractFields(context.Background(), llm.ExtractRequest{Text: "x"}); err == nil {
		t.Fatal("expected error for null content")
	}
}

func TestExtractFieldsLogsOmitFileName(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(chatResponse(t, completeFields()))
	}))
	defer server.Close()

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	c := NewClient(Config{APIKey: "sk-test", BaseURL: server.URL}, nil, logger)
	req := llm.ExtractRequest{Text: "Patient Name: Jane Doe", FileName: "Jane_Doe_referral.pdf"}
	if _, _, err := c.ExtractFields(context.Background(), req); err != nil {
		t.Fatalf("extract: %v", err)
	}
	if strings.Contains(buf.String(), "Jane_Doe") {
		t.Fatalf("log output carries the upload name:\n%s", buf.String())
	}
	if !strings.Contains(buf.String(), `"ext":"pdf"`) {
		t.Fatalf("expected extension in log output:\n%s", buf.String())
	}
}

func TestExtractFieldsNoChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer server.Close()

	c := NewClient(Config{APIKey: "sk-test", BaseURL: server.URL}, nil, nil)
	if _, _, err := c.ExtractFields(context.Background(), llm.ExtractRequest{Text: "x"}); !errors.Is(err, ErrNoChoices) {
		t.Fatalf("expected ErrNoChoices, got %v", err)
	}
}

func TestExtractFieldsWithoutCredential(t *testing.T) {
	c := NewClient(Config{APIKey: "   "}, nil, nil)
	if c.Available() {
		t.Fatal("blank key must not be available")
	}
	if _, _, err := c.ExtractFields(context.Background(), llm.ExtractRequest{Text: "x"}); !errors.Is(err, ErrNoCredential) {
		t.Fatalf("expected ErrNoCredential, got %v", err)
	}
}

func TestExtractFieldsBreakerOpensOnServerErrors(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		http.Error(w, `{"error":{"message":"overloaded"}}`, http.StatusServiceUnavailable)
	}))
	defer server.Close()

	exec := resilience.NewExecutor(resilience.Config{
		BreakerEnabled:      true,
		BreakerMinRequests:  2,
		BreakerFailureRatio: 0.5,
		BreakerOpenTimeout:  time.Minute,
	}, nil)
	c := NewClient(Config{APIKey: "sk-test", BaseURL: server.URL}, exec, nil)

	for i := 0; i < 2; i++ {
		_, _, err := c.ExtractFields(context.Background(), llm.ExtractRequest{Text: "x"})
		var statusErr *llm.HTTPStatusError
		if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusServiceUnavailable {
			t.Fatalf("expected 503 status error, got %v", err)
		}
	}
	_, _, err := c.ExtractFields(context.Background(), llm.ExtractRequest{Text: "x"})
	if !resilience.IsCircuitOpen(err) {
		t.Fatalf("expected open circuit, got %v", err)
	}
	if hits.Load() != 2 {
		t.Fatalf("open breaker must short-circuit, server hits = %d", hits.Load())
	}
}

func TestClassifyError(t *testing.T) {
	if c := classifyError(&llm.HTTPStatusError{StatusCode: http.StatusUnauthorized}); c.RecordFailure || c.Retryable {
		t.Fatalf("401 must not count against the provider: %+v", c)
	}
	if c := classifyError(&llm.HTTPStatusError{StatusCode: http.StatusTooManyRequests}); !c.Retryable || !c.RecordFailure {
		t.Fatalf("429 should be retryable: %+v", c)
	}
	if c := classifyError(context.Canceled); c.RecordFailure {
		t.Fatalf("cancellation must not trip the breaker: %+v", c)
	}
}
