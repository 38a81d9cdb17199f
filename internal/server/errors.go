package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"example.com/segyview/internal/common"
	"example.com/segyview/internal/render"
	"example.com/segyview/internal/report"
	"example.com/segyview/internal/segy"
	"example.com/segyview/internal/spec"
)

var (
	errEmptyPath = errors.New("path required")
	errEmptyBody = errors.New("empty request body")
	errNotFound  = errors.New("not found")
)

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// classify maps an error to a status code and error kind. Decoder kinds
// follow segy.Kind: io is 500, segy 422, validation 400.
func classify(err error) (int, string) {
	if kind, ok := segy.KindOf(err); ok {
		switch kind {
		case segy.KindIO:
			return http.StatusInternalServerError, kind.String()
		case segy.KindSegy:
			return http.StatusUnprocessableEntity, kind.String()
		case segy.KindValidation:
			return http.StatusBadRequest, kind.String()
		}
	}
	switch {
	case errors.Is(err, errNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, errEmptyPath),
		errors.Is(err, errEmptyBody),
		errors.Is(err, render.ErrInvalidConfig),
		errors.Is(err, render.ErrInvalidViewport),
		errors.Is(err, report.ErrUnsupportedLanguage),
		errors.Is(err, spec.ErrInvalidRevision):
		return http.StatusBadRequest, segy.KindValidation.String()
	case errors.Is(err, spec.ErrInvalidSpec):
		return http.StatusInternalServerError, "spec"
	}
	var syntax *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntax) || errors.As(err, &typeErr) {
		return http.StatusBadRequest, segy.KindValidation.String()
	}
	return http.StatusInternalServerError, "internal"
}

func writeError(w http.ResponseWriter, err error) {
	status, kind := classify(err)
	writeJSON(w, status, errorBody{Error: errorDetail{Kind: kind, Message: err.Error()}})
}

func badRequest(w http.ResponseWriter, format string, args ...any) {
	writeJSON(w, http.StatusBadRequest, errorBody{Error: errorDetail{
		Kind:    segy.KindValidation.String(),
		Message: fmt.Sprintf(format, args...),
	}})
}

func methodNotAllowed(w http.ResponseWriter, allowed string) {
	w.Header().Set("Allow", allowed)
	http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
}

// writeJSON encodes before writing the status so an encoding failure is
// still reported as an error response.
func writeJSON(w http.ResponseWriter, status int, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		common.Logf("encode response: %v", err)
		status = http.StatusInternalServerError
		data, _ = json.Marshal(errorBody{Error: errorDetail{Kind: "internal", Message: err.Error()}})
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(append(data, '\n'))
}
