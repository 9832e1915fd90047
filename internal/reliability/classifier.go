package reliability

// Severity controls whether an error halts the capture pipeline.
type Severity string

const (
	SeverityFatal       Severity = "fatal"
	SeverityRecoverable Severity = "recoverable"
	SeverityWarning     Severity = "warning"
)

// Error codes emitted by the recognition service or synthesized locally.
const (
	CodeInvalidSession   = "INVALID_SESSION"
	CodeCameraFailure    = "CAMERA_FAILURE"
	CodeModelNotFound    = "MODEL_NOT_FOUND"
	CodeProcessingFailed = "PROCESSING_FAILED"
	CodeInvalidFrame     = "INVALID_FRAME"
	CodeLowConfidence    = "LOW_CONFIDENCE"
)

// Classify maps an error code to its severity. The second return reports
// whether the code belongs to the known taxonomy.
func Classify(code string) (Severity, bool) {
	switch code {
	case CodeInvalidSession, CodeCameraFailure, CodeModelNotFound:
		return SeverityFatal, true
	case CodeProcessingFailed, CodeInvalidFrame:
		return SeverityRecoverable, true
	case CodeLowConfidence:
		return SeverityWarning, true
	default:
		return SeverityWarning, false
	}
}

// ClassifyEvent resolves the severity for an inbound error envelope. The
// local taxonomy is authoritative; for codes outside it the service's own
// declared severity is trusted, defaulting to warning when that too is
// unknown.
func ClassifyEvent(code, declared string) Severity {
	if sev, known := Classify(code); known {
		return sev
	}
	switch Severity(declared) {
	case SeverityFatal, SeverityRecoverable, SeverityWarning:
		return Severity(declared)
	default:
		return SeverityWarning
	}
}
