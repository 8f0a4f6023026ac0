// Package types defines the configuration schema and application error type
// shared by pdf-editor's packages.
package types

// Config is the persisted service configuration.
type Config struct {
	ListenAddr   string `json:"listen_addr"`
	UploadDir    string `json:"upload_dir"`    // uploaded source PDFs, one <uuid>.pdf per upload
	SignatureDir string `json:"signature_dir"` // saved signature PNGs
	DataDir      string `json:"data_dir"`      // failure journal and other service state

	// Optional cursive face for typed signatures. A missing file is not an
	// error; typed signatures then fall back to Helvetica-Oblique.
	CursiveFontPath string `json:"cursive_font_path"`
	CursiveFontName string `json:"cursive_font_name"`

	SignatureBackend SignatureBackend `json:"signature_backend"`
	RedisAddr        string           `json:"redis_addr"`
	RedisPassword    string           `json:"redis_password"`
	RedisDB          int              `json:"redis_db"`
	RedisKey         string           `json:"redis_key"` // hash holding filename -> PNG bytes

	MaxUploadMB int `json:"max_upload_mb"`

	LogFile  string `json:"log_file"` // empty logs to stderr only
	LogLevel string `json:"log_level"`
}

// SignatureBackend selects where saved signatures live.
type SignatureBackend string

const (
	SignatureBackendFS    SignatureBackend = "fs"
	SignatureBackendRedis SignatureBackend = "redis"
)

// Stage names a user-facing operation, used to tag failure records.
type Stage string

const (
	StageUpload        Stage = "upload"
	StageExport        Stage = "export"
	StageSaveSignature Stage = "save_signature"
)

// ErrorCode classifies an AppError.
type ErrorCode string

const (
	ErrFileNotFound ErrorCode = "FILE_NOT_FOUND"
	ErrInvalidInput ErrorCode = "INVALID_INPUT"
	ErrConfig       ErrorCode = "CONFIG_ERROR"
	ErrInternal     ErrorCode = "INTERNAL_ERROR"
	ErrExport       ErrorCode = "EXPORT_ERROR"
	ErrStorage      ErrorCode = "STORAGE_ERROR"
)

// AppError is the error type returned across the App boundary.
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details string    `json:"details,omitempty"`
	Cause   error     `json:"-"`
}

func (e *AppError) Error() string {
	if e.Details != "" {
		return e.Message + ": " + e.Details
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// NewAppError creates an AppError with an optional cause.
func NewAppError(code ErrorCode, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewAppErrorWithDetails creates an AppError carrying extra detail text.
func NewAppErrorWithDetails(code ErrorCode, message, details string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Details: details,
		Cause:   cause,
	}
}
