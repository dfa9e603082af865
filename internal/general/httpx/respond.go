// Package httpx holds the JSON response, error and body-decoding helpers
// shared by the REST handlers.
package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"transport-connect/internal/general/apperr"
	"transport-connect/internal/general/logger"
	"transport-connect/internal/general/validation"

	"github.com/google/uuid"
)

const maxBodyBytes = 256 << 10

var ErrUnsupportedMedia = errors.New("content type must be application/json")

// Responder writes JSON bodies and logs failures.
type Responder struct {
	logger *logger.Logger
}

func NewResponder(logger *logger.Logger) *Responder {
	return &Responder{logger: logger}
}

// JSON encodes data to a buffer first so a marshal failure can still set the status.
func (resp *Responder) JSON(ctx context.Context, w http.ResponseWriter, status int, data any) {
	var buf []byte
	var err error

	if data != nil {
		buf, err = json.Marshal(data)
		if err != nil {
			resp.logger.Error(ctx, "response_encode_failed", "Failed to encode response", err, nil)
			http.Error(w, `{"error":"failed to encode response"}`, http.StatusInternalServerError)
			return
		}
	} else {
		buf = []byte("{}")
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf)
}

// Fail sends {"error": msg} with the given status.
func (resp *Responder) Fail(ctx context.Context, w http.ResponseWriter, status int, msg string, err error) {
	action := "request_failed"
	switch {
	case status >= 500:
		action = "http_internal_error"
		resp.logger.Error(ctx, action, msg, err, nil)
	case status == http.StatusBadRequest:
		action = "validation_failed"
		resp.logger.Warn(ctx, action, msg, err, nil)
	default:
		resp.logger.Warn(ctx, action, msg, err, nil)
	}

	type errBody struct {
		Error string `json:"error"`
	}
	resp.JSON(ctx, w, status, errBody{Error: msg})
}

// Error maps a service or decoding error to its status and client-safe message.
func (resp *Responder) Error(ctx context.Context, w http.ResponseWriter, err error) {
	var mbe *http.MaxBytesError
	switch {
	case errors.As(err, &mbe):
		resp.Fail(ctx, w, http.StatusRequestEntityTooLarge, "request body too large", err)
	case errors.Is(err, ErrUnsupportedMedia):
		resp.Fail(ctx, w, http.StatusUnsupportedMediaType, ErrUnsupportedMedia.Error(), err)
	default:
		resp.Fail(ctx, w, apperr.HTTPStatus(err), apperr.Message(err), err)
	}
}

// WithReqID takes X-Request-ID from the request or makes one up.
func (resp *Responder) WithReqID(ctx context.Context, r *http.Request) context.Context {
	reqID := strings.TrimSpace(r.Header.Get("X-Request-ID"))
	if reqID == "" {
		reqID = uuid.NewString()
	}
	return resp.logger.WithRequestID(ctx, reqID)
}

// Decode reads a bounded JSON body strictly into dst and validates it. An
// empty body leaves dst untouched.
func Decode(w http.ResponseWriter, r *http.Request, dst any) error {
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		return ErrUnsupportedMedia
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	defer r.Body.Close()

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return err
		}
		return apperr.Validation("invalid JSON: "+err.Error(), err)
	}
	return validation.Struct(dst)
}
