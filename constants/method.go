package constants

// Method names how the extracted text was produced.
type Method string

// Stable values (surfaced in API responses and metrics labels).
const (
	MethodPDFText     Method = "pdf-text"    // embedded text layer
	MethodPDFOCR      Method = "pdf-ocr"     // rasterized pages + OCR
	MethodImageOCR    Method = "image-ocr"   // OCR directly on the upload
	MethodUnsupported Method = "unsupported" // extension not accepted
	MethodError       Method = "error"       // extraction degraded to an error string
)
