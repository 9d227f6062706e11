package core

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/RehanTaneja/Nutricious4u-sub002/internal/types"
)

// maxRequestBodySize caps request bodies at 1 MB. Diet texts are a few KB;
// anything larger is not a legitimate request.
const maxRequestBodySize = 1 << 20

// APIResponse is the envelope for successful responses.
type APIResponse struct {
	Data interface{} `json:"data,omitempty"`
}

// APIErrorResponse is the envelope for error responses.
type APIErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail is the client-facing error body. The request ID lets a caller
// quote the exact server-side log trail when reporting a problem.
type ErrorDetail struct {
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	RequestID string         `json:"request_id"`
}

// JSON marshals data and writes it with the given status. A marshal failure
// degrades to a 500 envelope rather than a half-written body.
func JSON(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	body, err := json.Marshal(data)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		fallback := APIErrorResponse{Error: ErrorDetail{
			Code:      string(types.ErrCodeInternalUnexpected),
			Message:   "failed to marshal response",
			RequestID: types.GetRequestID(r.Context()),
		}}
		_ = json.NewEncoder(w).Encode(fallback)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// Error writes err to the client. An *types.AppError anywhere in the chain
// supplies the status and the client-safe detail; anything else collapses to
// a generic 500 so wrapped internals never leak.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *types.AppError
	if errors.As(err, &appErr) {
		writeErrorDetail(w, r, appErr.HTTPStatus(), ErrorDetail{
			Code:    string(appErr.Code),
			Message: appErr.Message,
			Details: appErr.Details,
		})
		return
	}

	writeErrorDetail(w, r, http.StatusInternalServerError, ErrorDetail{
		Code:    string(types.ErrCodeInternalUnexpected),
		Message: "an unexpected error occurred",
	})
}

func writeErrorDetail(w http.ResponseWriter, r *http.Request, status int, detail ErrorDetail) {
	detail.RequestID = types.GetRequestID(r.Context())
	JSON(w, r, status, APIErrorResponse{Error: detail})
}

// DecodeJSON reads the request body into dst. Bodies are size-capped, unknown
// fields are rejected, and exactly one JSON value is accepted. Failures come
// back as a 400 AppError describing what was wrong.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		return mapDecodeError(err)
	}

	if dec.More() {
		return types.NewAppError(errCodeValidationInvalidJSON,
			"request body must contain a single JSON object", nil)
	}

	return nil
}

// errCodeValidationInvalidJSON is local to the chassis; domain packages never
// produce it.
const errCodeValidationInvalidJSON types.ErrorCode = "validation_invalid_json"

// mapDecodeError turns the zoo of json.Decoder failures into one 400 code
// with a message a client can act on.
func mapDecodeError(err error) *types.AppError {
	var (
		maxBytesErr      *http.MaxBytesError
		syntaxErr        *json.SyntaxError
		unmarshalTypeErr *json.UnmarshalTypeError
	)

	switch {
	case errors.As(err, &maxBytesErr):
		return types.NewAppError(errCodeValidationInvalidJSON,
			"request body must not exceed 1MB", err)

	case errors.As(err, &syntaxErr):
		return types.NewAppError(errCodeValidationInvalidJSON,
			"malformed JSON in request body", err)

	case errors.As(err, &unmarshalTypeErr):
		return types.NewAppError(errCodeValidationInvalidJSON,
			"invalid value for field", err).
			WithDetails(map[string]any{
				"field":    unmarshalTypeErr.Field,
				"expected": unmarshalTypeErr.Type.String(),
			})

	case strings.HasPrefix(err.Error(), "json: unknown field"):
		field := strings.TrimPrefix(err.Error(), "json: unknown field ")
		return types.NewAppError(errCodeValidationInvalidJSON,
			"unknown field in request body: "+field, err)

	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return types.NewAppError(errCodeValidationInvalidJSON,
			"request body must not be empty", err)

	default:
		return types.NewAppError(errCodeValidationInvalidJSON,
			"could not decode request body", err)
	}
}
