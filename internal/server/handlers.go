package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joseph-ayodele/referral-intake/internal/common"
	"github.com/joseph-ayodele/referral-intake/internal/entity"
	"github.com/joseph-ayodele/referral-intake/internal/pipeline"
)

const (
	formatJSON = "json"
	formatXLSX = "xlsx"

	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	// multipartOverhead leaves room for boundaries and the small text parts.
	multipartOverhead = 1 << 20
	maxMemory         = 8 << 20
)

func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	logger := common.LoggerFromContext(r.Context(), s.logger)

	format, err := requestedFormat(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	if s.cfg.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+multipartOverhead)
	}
	if err := r.ParseMultipartForm(maxMemory); err != nil {
		respondError(w, r, multipartError(err))
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, r, multipartError(err))
		return
	}
	defer file.Close()

	useAI := true
	if v := strings.TrimSpace(r.FormValue("use_ai")); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			respondError(w, r, common.InvalidInputErrorf("use_ai must be a boolean, got %q", v))
			return
		}
		useAI = b
	}

	res, err := s.deps.Extractor.Process(r.Context(), entity.Document{
		FileName:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Body:        file,
	}, pipeline.Options{UseRemote: useAI})
	if err != nil {
		respondError(w, r, err)
		return
	}

	if format == formatXLSX {
		buf, err := s.deps.Exporter.ReferralsXLSX([]entity.ExtractionResult{res})
		if err != nil {
			logger.Error("server.extract.xlsx_failed", "error", err)
			respondError(w, r, common.NewAppError(common.CodeInternal, "render workbook", err))
			return
		}
		w.Header().Set("Content-Type", contentTypeXLSX)
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", xlsxName(res.FileName)))
		w.WriteHeader(http.StatusOK)
		_, _ = buf.WriteTo(w)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	aiAvailable := false
	if s.deps.AIAvailable != nil {
		aiAvailable = s.deps.AIAvailable()
	}
	respondJSON(w, http.StatusOK, map[string]any{"status": "ok", "ai_available": aiAvailable})
}

// requestedFormat reads ?format= first and falls back to the Accept header.
func requestedFormat(r *http.Request) (string, error) {
	f := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("format")))
	switch f {
	case formatJSON, formatXLSX:
		return f, nil
	case "":
	default:
		return "", common.NewAppError(common.CodeNotAcceptable, fmt.Sprintf("unsupported format %q", f), nil)
	}
	if strings.Contains(r.Header.Get("Accept"), contentTypeXLSX) {
		return formatXLSX, nil
	}
	return formatJSON, nil
}

func multipartError(err error) error {
	var maxErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxErr):
		return common.NewAppError(common.CodeTooLarge, "upload exceeds size limit", common.ErrTooLarge)
	case errors.Is(err, http.ErrMissingFile):
		return common.InvalidInputError("multipart field \"file\" is required")
	case errors.Is(err, http.ErrNotMultipart):
		return common.InvalidInputError("request must be multipart/form-data")
	}
	return common.InvalidInputErrorf("malformed upload: %v", err)
}

func xlsxName(fileName string) string {
	base := strings.TrimSuffix(filepath.Base(fileName), filepath.Ext(fileName))
	if base == "" {
		base = "referral"
	}
	return base + ".xlsx"
}

func statusFor(code string) int {
	switch code {
	case common.CodeInvalidInput:
		return http.StatusBadRequest
	case common.CodeTooLarge:
		return http.StatusRequestEntityTooLarge
	case common.CodeRateLimited:
		return http.StatusTooManyRequests
	case common.CodeNotAcceptable:
		return http.StatusNotAcceptable
	default:
		return http.StatusInternalServerError
	}
}

type errorBody struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"request_id,omitempty"`
}

// respondError writes a JSON error. Internal failures are logged and reported generically.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	code := common.CodeOf(err)
	status := statusFor(code)

	msg := err.Error()
	var appErr *common.AppError
	if errors.As(err, &appErr) {
		msg = appErr.Message
	}
	if status >= 500 {
		common.LoggerFromContext(r.Context(), nil).Error("server.request.failed", "code", code, "error", err)
		msg = "internal error"
	}
	respondJSON(w, status, errorBody{Error: msg, Code: code, RequestID: common.RequestIDFromContext(r.Context())})
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
