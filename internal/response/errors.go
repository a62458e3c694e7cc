package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"
	ErrInvalidConfig  ErrCode = "INVALID_EXAM_CONFIG"

	// ─── Exam lifecycle ────────────────────────────────────────────────
	ErrExamInProgress  ErrCode = "EXAM_ALREADY_ACTIVE"
	ErrNoActiveExam    ErrCode = "NO_ACTIVE_EXAM"
	ErrUnknownQuestion ErrCode = "UNKNOWN_QUESTION"
	ErrOptionRange     ErrCode = "OPTION_OUT_OF_RANGE"
	ErrInvalidState    ErrCode = "INVALID_STATE"
	ErrGeneration      ErrCode = "GENERATION_FAILED"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidPayload:
		return "The request payload is invalid."
	case ErrInvalidConfig:
		return "The exam configuration is invalid."
	case ErrExamInProgress:
		return "An exam is already active or loading. Finish it before starting a new one."
	case ErrNoActiveExam:
		return "There is no active exam session."
	case ErrUnknownQuestion:
		return "The question does not belong to the active exam."
	case ErrOptionRange:
		return "The selected option index is out of range."
	case ErrInvalidState:
		return "This operation is not allowed in the current state."
	case ErrGeneration:
		return "Could not generate exam questions. Please try again."
	case ErrRateLimitExceeded:
		return "Too many requests. Please try again later."
	case ErrInternal:
		return "An internal server error occurred."
	default:
		return "An unexpected error occurred."
	}
}
