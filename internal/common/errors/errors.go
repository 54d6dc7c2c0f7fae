// Package errors provides standardized error handling shared by the HTTP API
// and the workflow job workers.
package errors

import (
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeSourceFetchFailed ErrorCode = "SOURCE_FETCH_FAILED"

	ErrCodeNotificationNotFound     ErrorCode = "NOTIFICATION_NOT_FOUND"
	ErrCodeNotificationCreateFailed ErrorCode = "NOTIFICATION_CREATE_FAILED"
	ErrCodeNotificationDeleteFailed ErrorCode = "NOTIFICATION_DELETE_FAILED"
	ErrCodeInvalidNotificationInput ErrorCode = "INVALID_NOTIFICATION_INPUT"
	ErrCodeInvalidNotificationID    ErrorCode = "INVALID_NOTIFICATION_ID"

	ErrCodeRealtimeSubscribeFailed    ErrorCode = "REALTIME_SUBSCRIBE_FAILED"
	ErrCodeNotificationDeliveryFailed ErrorCode = "NOTIFICATION_DELIVERY_FAILED"
	ErrCodeSearchIndexFailed          ErrorCode = "SEARCH_INDEX_FAILED"
	ErrCodeEventPublishFailed         ErrorCode = "EVENT_PUBLISH_FAILED"

	ErrCodeDatabaseConnectionFailed ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeQueryTimeout             ErrorCode = "QUERY_TIMEOUT"

	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"
	ErrCodeForbidden    ErrorCode = "FORBIDDEN"
	ErrCodeInternal     ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}
	for k, v := range e.ErrorVariables {
		vars[k] = v
	}
	return vars
}

// ==========================
// 3. Error Constructors
// ==========================

func newError(code ErrorCode, message, details string, retryable bool) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
	}
}

func errDetails(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// NewSourceFetchFailedError reports a failed read against one notification source.
func NewSourceFetchFailedError(source string, err error) *StandardError {
	e := newError(ErrCodeSourceFetchFailed, "Notification source query failed", errDetails(err), true)
	e.Metadata = map[string]interface{}{"source": source}
	return e
}

func NewNotificationNotFoundError(id string) *StandardError {
	return newError(ErrCodeNotificationNotFound, "Notification not found", fmt.Sprintf("id: %s", id), false)
}

// NewNotificationCreateFailedError creates a retryable insert error.
func NewNotificationCreateFailedError(err error) *StandardError {
	return newError(ErrCodeNotificationCreateFailed, "Failed to create notification", errDetails(err), true)
}

// NewNotificationDeleteFailedError creates a retryable delete error.
func NewNotificationDeleteFailedError(id string, err error) *StandardError {
	return newError(ErrCodeNotificationDeleteFailed, "Failed to delete notification",
		fmt.Sprintf("id: %s, error: %s", id, errDetails(err)), true)
}

func NewInvalidNotificationInputError(details string) *StandardError {
	return newError(ErrCodeInvalidNotificationInput, "Invalid notification input", details, false)
}

func NewInvalidNotificationIDError(id string) *StandardError {
	return newError(ErrCodeInvalidNotificationID, "Unsupported notification id", fmt.Sprintf("id: %s", id), false)
}

func NewRealtimeSubscribeFailedError(err error) *StandardError {
	return newError(ErrCodeRealtimeSubscribeFailed, "Realtime subscription failed", errDetails(err), true)
}

// NewDeliveryFailedError creates a retryable email/SMS delivery error.
func NewDeliveryFailedError(channel string, err error) *StandardError {
	e := newError(ErrCodeNotificationDeliveryFailed, "Notification delivery failed", errDetails(err), true)
	e.Metadata = map[string]interface{}{"channel": channel}
	return e
}

func NewSearchIndexFailedError(err error) *StandardError {
	return newError(ErrCodeSearchIndexFailed, "Search index operation failed", errDetails(err), true)
}

func NewEventPublishFailedError(err error) *StandardError {
	return newError(ErrCodeEventPublishFailed, "Event publication failed", errDetails(err), true)
}

// NewDatabaseConnectionFailedError creates a retryable database connection error.
func NewDatabaseConnectionFailedError(err error) *StandardError {
	return newError(ErrCodeDatabaseConnectionFailed, "Database connection error", errDetails(err), true)
}

// NewQueryTimeoutError creates a retryable query timeout error.
func NewQueryTimeoutError(operation string) *StandardError {
	return newError(ErrCodeQueryTimeout, "Database query timeout", fmt.Sprintf("operation: %s", operation), true)
}

func NewUnauthorizedError(details string) *StandardError {
	return newError(ErrCodeUnauthorized, "Authentication failed", details, false)
}

func NewForbiddenError(details string) *StandardError {
	return newError(ErrCodeForbidden, "Operation not permitted for this role", details, false)
}

func NewInternalError(err error) *StandardError {
	return newError(ErrCodeInternal, "Unexpected error", errDetails(err), false)
}

// ==========================
// 4. Error Conversion to BPMN
// ==========================

// BPMNErrorMapping maps internal error codes to BPMN error codes. Codes
// missing from the map are passed through unchanged.
var BPMNErrorMapping = map[ErrorCode]string{
	ErrCodeSourceFetchFailed:          "SOURCE_FETCH_FAILED",
	ErrCodeNotificationNotFound:       "NOTIFICATION_NOT_FOUND",
	ErrCodeNotificationCreateFailed:   "NOTIFICATION_CREATE_FAILED",
	ErrCodeNotificationDeleteFailed:   "NOTIFICATION_DELETE_FAILED",
	ErrCodeInvalidNotificationInput:   "INVALID_NOTIFICATION_INPUT",
	ErrCodeInvalidNotificationID:      "INVALID_NOTIFICATION_ID",
	ErrCodeRealtimeSubscribeFailed:    "REALTIME_SUBSCRIBE_FAILED",
	ErrCodeNotificationDeliveryFailed: "NOTIFICATION_DELIVERY_FAILED",
	ErrCodeSearchIndexFailed:          "SEARCH_INDEX_FAILED",
	ErrCodeEventPublishFailed:         "EVENT_PUBLISH_FAILED",
	ErrCodeDatabaseConnectionFailed:   "DATABASE_CONNECTION_FAILED",
	ErrCodeQueryTimeout:               "QUERY_TIMEOUT",
}

// GetRetryCount returns the recommended retry count for an error code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeSourceFetchFailed,
		ErrCodeNotificationCreateFailed,
		ErrCodeNotificationDeleteFailed,
		ErrCodeDatabaseConnectionFailed,
		ErrCodeNotificationDeliveryFailed:
		return 3

	case ErrCodeQueryTimeout,
		ErrCodeRealtimeSubscribeFailed:
		return 2

	case ErrCodeSearchIndexFailed,
		ErrCodeEventPublishFailed:
		return 1

	default:
		return 0 // business errors
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	bpmnCode, exists := BPMNErrorMapping[stdErr.Code]
	if !exists {
		bpmnCode = string(stdErr.Code)
	}

	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	return &BPMNError{
		Code:      bpmnCode,
		Message:   stdErr.Message,
		Details:   stdErr.Details,
		Retryable: stdErr.Retryable,
		Retries:   retries,
		ErrorVariables: map[string]interface{}{
			"originalErrorCode": string(stdErr.Code),
			"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
		},
	}
}

// ==========================
// 5. Utility Functions
// ==========================

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "INVALID"):
		return "VALIDATION"
	case strings.Contains(codeStr, "DATABASE") || strings.Contains(codeStr, "QUERY") || strings.Contains(codeStr, "SOURCE"):
		return "DATABASE"
	case strings.Contains(codeStr, "SEARCH"):
		return "SEARCH"
	case strings.Contains(codeStr, "REALTIME") || strings.Contains(codeStr, "EVENT"):
		return "MESSAGING"
	case strings.Contains(codeStr, "DELIVERY"):
		return "DELIVERY"
	case strings.Contains(codeStr, "NOTIFICATION"):
		return "NOTIFICATION"
	case strings.Contains(codeStr, "UNAUTHORIZED") || strings.Contains(codeStr, "FORBIDDEN"):
		return "AUTH"
	default:
		return "OTHER"
	}
}

// HTTPStatus maps an error code onto the response status used by the API.
func HTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeNotificationNotFound:
		return http.StatusNotFound
	case ErrCodeInvalidNotificationInput, ErrCodeInvalidNotificationID:
		return http.StatusBadRequest
	case ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case ErrCodeForbidden:
		return http.StatusForbidden
	case ErrCodeSearchIndexFailed:
		return http.StatusBadGateway
	case ErrCodeQueryTimeout:
		return http.StatusGatewayTimeout
	case ErrCodeDatabaseConnectionFailed:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
