package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"sandboxapi/internal/http/middleware"
	"sandboxapi/internal/service"
)

// errorPayload defines the standardized error response body.
type errorPayload struct {
	RequestID string        `json:"request_id"`
	Error     errorEnvelope `json:"error"`
}

type errorEnvelope struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// requestIDFromCtx extracts request_id previously stored by middleware.RequestID.
func requestIDFromCtx(c *fiber.Ctx) string {
	if v := c.Locals(middleware.RequestIDLocalKey); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// writeError writes a standardized JSON error response without leaking internal errors.
//
// Parameters:
// - status: HTTP status code to return
// - code: machine-readable short error code (e.g., "INVALID_ID", "NOT_FOUND", "INTERNAL_ERROR")
// - message: human-readable safe message (no internal details)
func writeError(c *fiber.Ctx, status int, code, message string) error {
	res := errorPayload{
		RequestID: requestIDFromCtx(c),
		Error: errorEnvelope{
			Code:    code,
			Message: message,
		},
	}
	return c.Status(status).JSON(res)
}

// writeServiceError maps well-known service errors onto HTTP responses.
// Unknown errors become an opaque 500.
func writeServiceError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrNotFound):
		return writeError(c, fiber.StatusNotFound, "NOT_FOUND", "job not found")
	case errors.Is(err, service.ErrFileNotFound):
		return writeError(c, fiber.StatusNotFound, "FILE_NOT_FOUND", "file not found")
	case errors.Is(err, service.ErrFileType):
		return writeError(c, fiber.StatusBadRequest, "FILE_TYPE_NOT_ALLOWED", err.Error())
	case errors.Is(err, service.ErrFileTooLarge):
		return writeError(c, fiber.StatusBadRequest, "FILE_TOO_LARGE", err.Error())
	case errors.Is(err, service.ErrOutsideSandbox):
		return writeError(c, fiber.StatusBadRequest, "INVALID_PATH", "file path is outside the sandbox directory")
	case errors.Is(err, service.ErrCodeRejected):
		return writeError(c, fiber.StatusBadRequest, "CODE_REJECTED", err.Error())
	case errors.Is(err, service.ErrJobBusy):
		return writeError(c, fiber.StatusConflict, "JOB_BUSY", "job is already being processed")
	case errors.Is(err, service.ErrNotReady):
		return writeError(c, fiber.StatusConflict, "RESULTS_NOT_READY", "results not available yet")
	case errors.Is(err, service.ErrNoResults):
		return writeError(c, fiber.StatusNotFound, "NO_RESULTS", "no results found")
	case errors.Is(err, service.ErrFormatUnknown):
		return writeError(c, fiber.StatusBadRequest, "INVALID_FORMAT", "unknown output format")
	case errors.Is(err, service.ErrExecTimeout):
		return writeError(c, fiber.StatusInternalServerError, "EXECUTION_TIMEOUT", "execution timeout")
	default:
		return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
	}
}

// ErrorHandler returns a Fiber global error handler that standardizes error responses.
func ErrorHandler() fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status := fiber.StatusInternalServerError
		if e, ok := err.(*fiber.Error); ok {
			status = e.Code
		}

		switch status {
		case fiber.StatusBadRequest:
			return writeError(c, status, "BAD_REQUEST", "bad request")
		case fiber.StatusNotFound:
			return writeError(c, status, "NOT_FOUND", "resource not found")
		case fiber.StatusMethodNotAllowed:
			return writeError(c, status, "METHOD_NOT_ALLOWED", "method not allowed")
		case fiber.StatusRequestEntityTooLarge:
			return writeError(c, status, "FILE_TOO_LARGE", "request body too large")
		default:
			return writeError(c, status, "INTERNAL_ERROR", "internal server error")
		}
	}
}
