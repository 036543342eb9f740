package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrInvalidCredentials ErrCode = "INVALID_CREDENTIALS"
	ErrTokenRequired      ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid       ErrCode = "TOKEN_INVALID"
	ErrTokenExpired       ErrCode = "TOKEN_EXPIRED"
	ErrAdminAccessOnly    ErrCode = "ADMIN_ACCESS_ONLY"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound        ErrCode = "NOT_FOUND"
	ErrConflict        ErrCode = "CONFLICT"
	ErrActionForbidden ErrCode = "ACTION_FORBIDDEN"

	// ─── Quiz assembly ─────────────────────────────────────────────────
	ErrQuizNotFound          ErrCode = "QUIZ_NOT_FOUND"
	ErrBucketNotFound        ErrCode = "BUCKET_NOT_FOUND"
	ErrQuestionNotFound      ErrCode = "QUESTION_NOT_FOUND"
	ErrInsufficientQuestions ErrCode = "INSUFFICIENT_QUESTIONS"
	ErrQuizProtected         ErrCode = "QUIZ_PROTECTED"

	// ─── Proctoring ────────────────────────────────────────────────────
	ErrSessionNotFound  ErrCode = "SESSION_NOT_FOUND"
	ErrDuplicateSession ErrCode = "DUPLICATE_SESSION"
	ErrSessionNotActive ErrCode = "SESSION_NOT_ACTIVE"

	// ─── Code sandbox ──────────────────────────────────────────────────
	ErrSandboxUnavailable ErrCode = "SANDBOX_UNAVAILABLE"

	// ─── Uploads ───────────────────────────────────────────────────────
	ErrFileRequired    ErrCode = "FILE_REQUIRED"
	ErrUnsupportedFile ErrCode = "UNSUPPORTED_FILE_TYPE"
	ErrFileTooLarge    ErrCode = "FILE_TOO_LARGE"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Authentication ────────────────────────────────────────────────
	case ErrInvalidCredentials:
		return "Invalid email or password."
	case ErrTokenRequired:
		return "Authentication token is required."
	case ErrTokenInvalid:
		return "Authentication token is invalid."
	case ErrTokenExpired:
		return "Authentication token has expired."
	case ErrAdminAccessOnly:
		return "This resource is restricted to administrators."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidID:
		return "Invalid ID format."
	case ErrInvalidPayload:
		return "Invalid request payload."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "Resource not found."
	case ErrConflict:
		return "Resource already exists."
	case ErrActionForbidden:
		return "This action is not allowed."

	// ─── Quiz assembly ─────────────────────────────────────────────────
	case ErrQuizNotFound:
		return "Quiz not found."
	case ErrBucketNotFound:
		return "Question bucket not found."
	case ErrQuestionNotFound:
		return "Question not found."
	case ErrInsufficientQuestions:
		return "The bucket does not hold enough active questions for the requested difficulty."
	case ErrQuizProtected:
		return "Default quizzes cannot be deleted."

	// ─── Proctoring ────────────────────────────────────────────────────
	case ErrSessionNotFound:
		return "Proctoring session not found."
	case ErrDuplicateSession:
		return "A proctoring session with this ID already exists."
	case ErrSessionNotActive:
		return "Proctoring session is no longer active."

	// ─── Code sandbox ──────────────────────────────────────────────────
	case ErrSandboxUnavailable:
		return "Code execution service is unavailable."

	// ─── Uploads ───────────────────────────────────────────────────────
	case ErrFileRequired:
		return "A file upload is required."
	case ErrUnsupportedFile:
		return "Unsupported file type."
	case ErrFileTooLarge:
		return "File size exceeds the limit."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "Internal server error."
	default:
		return "An unexpected error occurred."
	}
}
