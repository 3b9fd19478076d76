package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/example/cab-booking/internal/apperr"
)

const maxBodySize = 1 << 20 // 1MB

var validate = validator.New()

// readJSON decodes and validates a request body into dst. Validation
// failures come back as apperr.ValidationError so they map to 400 like
// every other malformed input.
func readJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return &apperr.ValidationError{Msg: "request body is empty"}
		}
		return &apperr.ValidationError{Msg: "malformed JSON"}
	}
	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return &apperr.ValidationError{Field: verrs[0].Field(), Msg: validationMessage(verrs[0])}
		}
		return &apperr.ValidationError{Msg: "invalid request"}
	}
	return nil
}

func validationMessage(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return "this field is required"
	case "email":
		return "invalid email format"
	case "min":
		return "value is too short"
	default:
		return "invalid value"
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error string `json:"error"`
}
