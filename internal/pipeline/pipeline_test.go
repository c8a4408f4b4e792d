package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/joseph-ayodele/referral-intake/constants"
	"github.com/joseph-ayodele/referral-intake/internal/common"
	"github.com/joseph-ayodele/referral-intake/internal/entity"
	"github.com/joseph-ayodele/referral-intake/internal/extract"
	"github.com/joseph-ayodele/referral-intake/internal/llm"
	"github.com/joseph-ayodele/referral-intake/internal/llm/openai"
	"github.com/joseph-ayodele/referral-intake/internal/scratch"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type fakeText struct {
	res      extract.TextExtractionResult
	seenPath string
	seenBody string
}

func (f *fakeText) Extract(_ context.Context, path string) extract.TextExtractionResult {
	f.seenPath = path
	b, _ := os.ReadFile(path)
	f.seenBody = string(b)
	return f.res
}

type fakeStrategy struct {
	name      string
	available bool
	fs        entity.FieldSet
	err       error
	calls     int
}

func (f *fakeStrategy) Name() string { return f.name }
func (f *fakeStrategy) Available() bool { return f.available }
func (f *fakeStrategy) ExtractFields(context.Context, llm.ExtractRequest) (entity.FieldSet, []byte, error) {
	f.calls++
	return f.fs, nil, f.err
}

type recordingObserver struct {
	mu     sync.Mutex
	text   []string
	fields []string
	bytes  int64
}

func (r *recordingObserver) ObserveText(method string, _ int, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.text = append(r.text, method)
}

func (r *recordingObserver) ObserveFields(strategy, outcome string, _ int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fields = append(r.fields, strategy+":"+outcome)
}

func (r *recordingObserver) ObserveUpload(b int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bytes += b
}

func remoteFields() entity.FieldSet {
	fs := entity.NewFieldSet()
	fs.PatientName = "Jane Doe"
	fs.Confidence = constants.ConfidenceHigh
	fs.ExtractionNotes = "clear"
	return fs
}

const referralText = "Patient Name: Jane Doe\nPhone: 555-123-4567\nNotes: patient prefers morning calls\nSecondary Insurance: None"

func TestParseStageUsesRemoteWhenAvailable(t *testing.T) {
	remote := &fakeStrategy{name: "remote", available: true, fs: remoteFields()}
	obs := &recordingObserver{}
	p := NewParseStage(discard, remote, nil, obs)

	fs := p.Run(context.Background(), llm.ExtractRequest{Text: referralText}, true)
	if !fs.AIUsed || fs.Confidence != constants.ConfidenceHigh {
		t.Fatalf("expected remote result, got %+v", fs)
	}
	if fs.Insurance != constants.NotFound {
		t.Fatalf("missing values must be the sentinel, got %q", fs.Insurance)
	}
	if len(obs.fields) != 1 || obs.fields[0] != "remote:ok" {
		t.Fatalf("unexpected observations %v", obs.fields)
	}
}

func TestParseStageFallsBackOnRemoteError(t *testing.T) {
	remote := &fakeStrategy{name: "remote", available: true, err: errors.New("openai: non-2xx status: 503")}
	obs := &recordingObserver{}
	p := NewParseStage(discard, remote, nil, obs)

	fs := p.Run(context.Background(), llm.ExtractRequest{Text: referralText}, true)
	if fs.AIUsed || fs.Confidence != constants.ConfidenceLow {
		t.Fatalf("expected pattern result, got %+v", fs)
	}
	if fs.NotesComments != "patient prefers morning calls" {
		t.Fatalf("notes = %q", fs.NotesComments)
	}
	if fs.ExtractionNotes != llm.PatternNote {
		t.Fatalf("unexpected note %q", fs.ExtractionNotes)
	}
	if len(obs.fields) != 2 || obs.fields[0] != "remote:fallback" || obs.fields[1] != "pattern:ok" {
		t.Fatalf("unexpected observations %v", obs.fields)
	}
}

func TestParseStageSkipsRemoteWhenNotRequested(t *testing.T) {
	remote := &fakeStrategy{name: "remote", available: true, fs: remoteFields()}
	p := NewParseStage(discard, remote, nil, nil)

	fs := p.Run(context.Background(), llm.ExtractRequest{Text: referralText}, false)
	if remote.calls != 0 || fs.AIUsed {
		t.Fatalf("remote must not be called when use_remote is false (calls=%d)", remote.calls)
	}
}

func TestParseStageWithoutCredential(t *testing.T) {
	// Real client with no key: Available() is false, so no request is attempted.
	remote := openai.NewClient(openai.Config{BaseURL: "http://127.0.0.1:1"}, nil, discard)
	p := NewParseStage(discard, remote, nil, nil)

	fs := p.Run(context.Background(), llm.ExtractRequest{Text: "Email: jane.doe@example.com"}, true)
	if fs.AIUsed || fs.Confidence != constants.ConfidenceLow {
		t.Fatalf("no credential must give ai_used=false confidence=low, got %v/%s", fs.AIUsed, fs.Confidence)
	}
	if fs.EmailAddress != "jane.doe@example.com" {
		t.Fatalf("email = %q", fs.EmailAddress)
	}
	for _, name := range constants.FieldNames() {
		if v, _ := fs.Get(name); strings.TrimSpace(v) == "" {
			t.Fatalf("field %s is empty", name)
		}
	}
}

func TestParseStageFallsBackOnNullModelContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"null"}}]}`))
	}))
	defer server.Close()

	remote := openai.NewClient(openai.Config{APIKey: "sk-test", BaseURL: server.URL}, nil, discard)
	p := NewParseStage(discard, remote, nil, nil)

	fs := p.Run(context.Background(), llm.ExtractRequest{Text: referralText}, true)
	if fs.AIUsed || fs.Confidence != constants.ConfidenceLow {
		t.Fatalf("null content must fall back to patterns, got %v/%s", fs.AIUsed, fs.Confidence)
	}
	if fs.PatientName != "Jane Doe" {
		t.Fatalf("patient name = %q", fs.PatientName)
	}
}

func TestParseStageBrokenFallbackStillReturnsFields(t *testing.T) {
	broken := &fakeStrategy{name: "custom", available: true, err: errors.New("boom")}
	p := NewParseStage(discard, nil, broken, nil)

	fs := p.Run(context.Background(), llm.ExtractRequest{Text: "DOB: 01/02/1980"}, true)
	if fs.DateOfBirth != "01/02/1980" {
		t.Fatalf("dob = %q", fs.DateOfBirth)
	}
}

func newProcessor(t *testing.T, text *fakeText, remote llm.FieldStrategy, obs Observer) (*Processor, string) {
	t.Helper()
	root := t.TempDir()
	store, err := scratch.New(root, discard)
	if err != nil {
		t.Fatal(err)
	}
	return NewProcessor(discard, store, NewOCRStage(text, obs, discard), NewParseStage(discard, remote, nil, obs), 1<<20, obs), root
}

func TestProcessRunsStagesAndCleansUp(t *testing.T) {
	text := &fakeText{res: extract.TextExtractionResult{Text: referralText, Pages: 1, Method: constants.MethodPDFText}}
	remote := &fakeStrategy{name: "remote", available: true, fs: remoteFields()}
	obs := &recordingObserver{}
	p, root := newProcessor(t, text, remote, obs)

	res, err := p.Process(context.Background(), entity.Document{
		FileName:    "referral.pdf",
		ContentType: "application/pdf",
		Body:        strings.NewReader("%PDF-1.7 body"),
	}, Options{UseRemote: true})
	if err != nil {
		t.Fatalf("process: %v", err)
	}

	if text.seenBody != "%PDF-1.7 body" || !strings.HasSuffix(text.seenPath, "referral.pdf") {
		t.Fatalf("stage saw %q at %q", text.seenBody, text.seenPath)
	}
	if res.ExtractedText != referralText || res.FileName != "referral.pdf" || res.FileType != "application/pdf" {
		t.Fatalf("unexpected result %+v", res)
	}
	if !res.Fields.AIUsed || res.Method != constants.MethodPDFText {
		t.Fatalf("unexpected fields/method %+v", res)
	}
	if obs.bytes != int64(len("%PDF-1.7 body")) {
		t.Fatalf("upload bytes = %d", obs.bytes)
	}
	entries, _ := os.ReadDir(root)
	if len(entries) != 0 {
		t.Fatalf("scratch not cleaned, %d entries left", len(entries))
	}
}

func TestProcessDegradedTextSkipsRemote(t *testing.T) {
	text := &fakeText{res: extract.TextExtractionResult{Text: "Error: tesseract: exit status 1", Method: constants.MethodError}}
	remote := &fakeStrategy{name: "remote", available: true, fs: remoteFields()}
	p, _ := newProcessor(t, text, remote, nil)

	res, err := p.Process(context.Background(), entity.Document{FileName: "fax.png", Body: strings.NewReader("png")}, Options{UseRemote: true})
	if err != nil {
		t.Fatalf("degraded text is not a caller error: %v", err)
	}
	if remote.calls != 0 {
		t.Fatal("remote model must not be called on an error string")
	}
	if !strings.HasPrefix(res.ExtractedText, "Error: ") || res.Fields.AIUsed {
		t.Fatalf("unexpected result %+v", res)
	}
	if res.FileType != "image/png" {
		t.Fatalf("file type = %q", res.FileType)
	}
}

func TestProcessCallerErrors(t *testing.T) {
	text := &fakeText{}
	p, _ := newProcessor(t, text, nil, nil)

	_, err := p.Process(context.Background(), entity.Document{}, Options{})
	if !errors.Is(err, common.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}

	p.MaxUploadBytes = 4
	_, err = p.Process(context.Background(), entity.Document{FileName: "a.pdf", Body: strings.NewReader("0123456789")}, Options{})
	if !errors.Is(err, common.ErrTooLarge) || common.CodeOf(err) != common.CodeTooLarge {
		t.Fatalf("expected too large, got %v", err)
	}
}

func TestProcessPath(t *testing.T) {
	text := &fakeText{res: extract.TextExtractionResult{Text: "Unsupported file format: .docx", Method: constants.MethodUnsupported}}
	p, _ := newProcessor(t, text, nil, nil)

	res, err := p.ProcessPath(context.Background(), "/data/in/notes.docx", Options{UseRemote: true})
	if err != nil {
		t.Fatal(err)
	}
	if res.FileName != "notes.docx" || res.Method != constants.MethodUnsupported {
		t.Fatalf("unexpected result %+v", res)
	}
	if res.Fields.PatientName != constants.NotFound {
		t.Fatalf("patient = %q", res.Fields.PatientName)
	}
}

func TestFileType(t *testing.T) {
	for path, want := range map[string]string{
		"a.pdf":  "application/pdf",
		"b.JPG":  "image/jpeg",
		"c.tif":  "image/tiff",
		"d.bmp":  "image/bmp",
		"e.png":  "image/png",
		"f.zzzz": "application/octet-stream",
	} {
		if got := FileType(path); got != want {
			t.Errorf("FileType(%s) = %q, want %q", path, got, want)
		}
	}
}
