package shared

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
)

// validate is the package-level validator instance shared by all request
// decoding. validator.Validate is safe for concurrent use.
var validate = validator.New()

// Validatable is implemented by request types that carry validation rules
// beyond what struct tags can express.
type Validatable interface {
	Validate() error
}

// DecodeJSON decodes the request body into dst. Unknown fields are
// rejected so typos in client payloads surface as errors instead of being
// silently ignored.
func DecodeJSON(r *http.Request, dst interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// ValidateRequest runs struct-tag validation on req, then the type's own
// Validate method when it implements Validatable.
func ValidateRequest(req interface{}) error {
	if err := validate.Struct(req); err != nil {
		return err
	}
	if v, ok := req.(Validatable); ok {
		return v.Validate()
	}
	return nil
}
