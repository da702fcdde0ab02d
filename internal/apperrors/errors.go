package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code код ошибки приложения
type Code string

const (
	CodeInvalidImage      Code = "INVALID_IMAGE"
	CodeUnsupportedFormat Code = "UNSUPPORTED_FORMAT"
	CodeProcessingFailed  Code = "PROCESSING_FAILED"
	CodeCameraUnavailable Code = "CAMERA_UNAVAILABLE"
	CodeNotFound          Code = "NOT_FOUND"
)

// AppError ошибка с кодом, сообщением для пользователя и причиной
type AppError struct {
	Code    Code
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func NewInvalidImage(cause error) *AppError {
	return &AppError{Code: CodeInvalidImage, Message: "Could not read the image file", Cause: cause}
}

func NewUnsupportedFormat(filename string) *AppError {
	return &AppError{Code: CodeUnsupportedFormat, Message: fmt.Sprintf("Invalid file type: %s", filename)}
}

func NewProcessingFailed(cause error) *AppError {
	return &AppError{Code: CodeProcessingFailed, Message: "Processing failed", Cause: cause}
}

func NewCameraUnavailable(device int, cause error) *AppError {
	return &AppError{Code: CodeCameraUnavailable, Message: fmt.Sprintf("Could not open camera %d", device), Cause: cause}
}

func NewNotFound(what string) *AppError {
	return &AppError{Code: CodeNotFound, Message: fmt.Sprintf("%s not found", what)}
}

// CodeOf возвращает код ошибки или CodeProcessingFailed для посторонних ошибок
func CodeOf(err error) Code {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeProcessingFailed
}

// MessageOf возвращает сообщение для пользователя
func MessageOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "Processing failed"
}

// HTTPStatus сопоставляет код ошибки HTTP-статусу
func HTTPStatus(err error) int {
	switch CodeOf(err) {
	case CodeUnsupportedFormat:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
