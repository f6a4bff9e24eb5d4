package output

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/twiced-technology-gmbh/opsdesk/internal/clierr"
)

// JSON writes data as indented JSON to the given writer.
func JSON(w io.Writer, data any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(data); err != nil {
		return fmt.Errorf("encoding JSON: %w", err)
	}
	return nil
}

// ErrorResponse is the JSON envelope for structured error output. Details
// carry the error's context, such as the task id, the capability that was
// denied or the allowed values of a field.
type ErrorResponse struct {
	Error   string         `json:"error"`
	Code    string         `json:"code"`
	Details map[string]any `json:"details,omitempty"`
}

// NewErrorResponse builds the envelope for err. Errors without a code are
// reported as INTERNAL_ERROR.
func NewErrorResponse(err error) ErrorResponse {
	var cliErr *clierr.Error
	if errors.As(err, &cliErr) {
		return ErrorResponse{Error: cliErr.Message, Code: cliErr.Code, Details: cliErr.Details}
	}
	return ErrorResponse{Error: err.Error(), Code: clierr.InternalError}
}

// JSONError writes the envelope for err and returns the process exit code:
// 2 for internal errors, 1 for everything else.
func JSONError(w io.Writer, err error) int {
	resp := NewErrorResponse(err)
	_ = JSON(w, resp)
	if resp.Code == clierr.InternalError {
		return 2 //nolint:mnd // exit code 2 for internal errors
	}
	return 1
}

// BatchResult represents the outcome of a single operation within a batch.
type BatchResult struct {
	ID      string         `json:"id"`
	OK      bool           `json:"ok"`
	Error   string         `json:"error,omitempty"`
	Code    string         `json:"code,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// NewBatchResult records the outcome of the operation on id.
func NewBatchResult(id string, err error) BatchResult {
	if err == nil {
		return BatchResult{ID: id, OK: true}
	}
	resp := NewErrorResponse(err)
	return BatchResult{ID: id, Error: resp.Error, Code: resp.Code, Details: resp.Details}
}
