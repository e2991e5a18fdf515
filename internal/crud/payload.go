package crud

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/gmbtravels/gmbservice/internal/apperr"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
)

const maxBodyBytes = 1 << 20

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// required alone lets "   " through
	if err := v.RegisterValidation("notblank", validators.NotBlank); err != nil {
		panic(err)
	}
	// report json field names in validation errors
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// DecodeAndValidate decodes the JSON body of r into dst, rejecting unknown fields, and validates it.
// Malformed JSON is a 400, anything that parses but does not fit the schema is a 422.
func DecodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) error {
	return decodeAndValidate(w, r, dst, true)
}

// DecodeAndValidateLenient is DecodeAndValidate with unknown fields ignored, for bodies sent by
// clients we do not control the shape of (login forms).
func DecodeAndValidateLenient(w http.ResponseWriter, r *http.Request, dst any) error {
	return decodeAndValidate(w, r, dst, false)
}

func decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any, strict bool) error {
	if r.Body == nil {
		return apperr.Malformed("request body is empty", nil)
	}

	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if strict {
		decoder.DisallowUnknownFields()
	}
	if err := decoder.Decode(dst); err != nil {
		return decodeError(err)
	}
	if decoder.More() {
		return apperr.Malformed("request body must contain a single JSON object", nil)
	}

	if err := validate.Struct(dst); err != nil {
		return validationError(err)
	}

	return nil
}

func decodeError(err error) error {
	var (
		syntaxErr   *json.SyntaxError
		typeErr     *json.UnmarshalTypeError
		maxBytesErr *http.MaxBytesError
	)

	switch {
	case errors.As(err, &syntaxErr):
		return apperr.Malformed(fmt.Sprintf("malformed JSON at position %d", syntaxErr.Offset), err)
	case errors.Is(err, io.EOF):
		return apperr.Malformed("request body is empty", err)
	case errors.Is(err, io.ErrUnexpectedEOF):
		return apperr.Malformed("malformed JSON", err)
	case errors.As(err, &maxBytesErr):
		return apperr.Malformed(fmt.Sprintf("request body larger than %d bytes", maxBytesErr.Limit), err)
	case errors.As(err, &typeErr):
		field := typeErr.Field
		if field == "" {
			return &apperr.Error{Kind: apperr.KindValidation, Message: "request body must be a JSON object", Err: err}
		}
		return &apperr.Error{
			Kind:    apperr.KindValidation,
			Message: fmt.Sprintf("%s: must be of type %s", field, typeErr.Type),
			Err:     err,
		}
	case strings.HasPrefix(err.Error(), "json: unknown field "):
		field := strings.TrimPrefix(err.Error(), "json: unknown field ")
		return &apperr.Error{Kind: apperr.KindValidation, Message: "unknown field " + field, Err: err}
	default:
		return apperr.Malformed("malformed JSON", err)
	}
}

func validationError(err error) error {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return &apperr.Error{Kind: apperr.KindValidation, Message: "invalid request body", Err: err}
	}

	messages := make([]string, 0, len(validationErrs))
	for _, fe := range validationErrs {
		messages = append(messages, fieldMessage(fe))
	}

	return &apperr.Error{
		Kind:    apperr.KindValidation,
		Message: strings.Join(messages, "; "),
		Err:     err,
	}
}

func fieldMessage(fe validator.FieldError) string {
	// drop the struct type name from the namespace: vehiclePayload.capacity -> capacity
	field := fe.Namespace()
	if _, rest, ok := strings.Cut(field, "."); ok {
		field = rest
	}

	switch fe.Tag() {
	case "required":
		return field + ": is required"
	case "notblank":
		return field + ": must not be blank"
	case "min":
		if isLengthKind(fe.Kind()) {
			return fmt.Sprintf("%s: must have at least %s items or characters", field, fe.Param())
		}
		return fmt.Sprintf("%s: must be at least %s", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s: must be at least %s", field, fe.Param())
	case "max":
		if isLengthKind(fe.Kind()) {
			return fmt.Sprintf("%s: must have at most %s items or characters", field, fe.Param())
		}
		return fmt.Sprintf("%s: must be at most %s", field, fe.Param())
	case "lte":
		return fmt.Sprintf("%s: must be at most %s", field, fe.Param())
	case "email":
		return field + ": must be a valid email address"
	case "url", "http_url":
		return field + ": must be a valid URL"
	case "oneof":
		return fmt.Sprintf("%s: must be one of [%s]", field, fe.Param())
	default:
		return fmt.Sprintf("%s: failed on the '%s' rule", field, fe.Tag())
	}
}

func isLengthKind(kind reflect.Kind) bool {
	switch kind {
	case reflect.String, reflect.Slice, reflect.Map, reflect.Array:
		return true
	default:
		return false
	}
}
