package httpapi

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/BearBump/zapshift/internal/apperr"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const bodyLimit = 1 << 20

type errorResponse struct {
	Code    string              `json:"code"`
	Message string              `json:"message"`
	Status  int                 `json:"status"`
	Errors  []apperr.FieldError `json:"errors,omitempty"`
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		zerolog.Ctx(r.Context()).Warn().Err(err).Msg("json encode")
	}
}

// writeError maps an apperr kind to its status. Details of 5xx errors only
// reach the log.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	resp := errorResponse{
		Code:   strings.ToUpper(strings.ReplaceAll(http.StatusText(status), " ", "_")),
		Status: status,
	}

	var ve *apperr.ValidationError
	switch {
	case errors.As(err, &ve):
		resp.Message = "validation failed"
		resp.Errors = ve.Fields
	case status >= http.StatusInternalServerError:
		resp.Message = http.StatusText(status)
	default:
		resp.Message = err.Error()
	}

	l := zerolog.Ctx(r.Context())
	if status >= http.StatusInternalServerError {
		l.Error().Err(err).Int("status", status).Msg("request failed")
	} else {
		l.Debug().Err(err).Int("status", status).Msg("request rejected")
	}
	writeJSON(w, r, status, resp)
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, apperr.Unauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, apperr.Forbidden):
		return http.StatusForbidden
	case errors.Is(err, apperr.NotFound):
		return http.StatusNotFound
	case errors.Is(err, apperr.Invalid):
		return http.StatusBadRequest
	case errors.Is(err, apperr.Conflict):
		return http.StatusConflict
	case errors.Is(err, apperr.Upstream):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, bodyLimit)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		return errors.Wrap(apperr.Invalid, "invalid json")
	}
	if err := dec.Decode(new(struct{})); err != io.EOF {
		return errors.Wrap(apperr.Invalid, "invalid json: trailing data")
	}
	return nil
}
