package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Question banks ────────────────────────────────────────────────
	ErrBankNotFound  ErrCode = "BANK_NOT_FOUND"
	ErrBankParse     ErrCode = "BANK_PARSE_ERROR"
	ErrUnknownExam   ErrCode = "UNKNOWN_EXAM"
	ErrEmptyQuestion ErrCode = "EMPTY_QUESTION_SET"

	// ─── Sessions ──────────────────────────────────────────────────────
	ErrSessionNotFound  ErrCode = "SESSION_NOT_FOUND"
	ErrSessionCompleted ErrCode = "SESSION_COMPLETED"
	ErrInvalidQuestion  ErrCode = "INVALID_QUESTION_ID"
	ErrInvalidChoice    ErrCode = "INVALID_CHOICE"
	ErrIndexOutOfRange  ErrCode = "INDEX_OUT_OF_RANGE"

	// ─── Persistence ───────────────────────────────────────────────────
	ErrStoreWrite ErrCode = "STORE_WRITE_ERROR"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound ErrCode = "NOT_FOUND"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Question banks ────────────────────────────────────────────────
	case ErrBankNotFound:
		return "Question bank file not found for this exam."
	case ErrBankParse:
		return "Question bank file could not be read. Fix the data source and retry."
	case ErrUnknownExam:
		return "Unknown exam code."
	case ErrEmptyQuestion:
		return "No questions found for this exam. Pick a different exam."

	// ─── Sessions ──────────────────────────────────────────────────────
	case ErrSessionNotFound:
		return "No saved session found for this user and exam."
	case ErrSessionCompleted:
		return "This test is already finished and can no longer be changed."
	case ErrInvalidQuestion:
		return "The question is not part of this session."
	case ErrInvalidChoice:
		return "The selected choice is not an option for this question."
	case ErrIndexOutOfRange:
		return "Question number is out of range."

	// ─── Persistence ───────────────────────────────────────────────────
	case ErrStoreWrite:
		return "Progress could not be saved and may not survive a restart."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidPayload:
		return "Invalid request payload."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "Resource not found."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Too many requests. Please try again later."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "An internal server error occurred."
	default:
		return "An unexpected error occurred."
	}
}
