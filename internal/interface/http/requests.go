package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"

	"github.com/dojo-hub/ninja-dashboard/internal/domain/progression"
)

var (
	validate   *validator.Validate
	translator ut.Translator

	// custom validation tags
	notBlankTag = "notblank"
	beltTag     = "belt"
	pathTag     = "path"
)

func init() {
	validate = validator.New()

	// English error messages for validation errors.
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ = uni.GetTranslator("en")
	_ = en_translations.RegisterDefaultTranslations(validate, translator)

	// JSON tag names in errors instead of Go struct names.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = validate.RegisterValidation(notBlankTag, notBlankValidation)
	_ = validate.RegisterValidation(beltTag, beltValidation)
	_ = validate.RegisterValidation(pathTag, pathValidation)

	registerFn := func(ut.Translator) error { return nil }
	for _, tag := range []string{notBlankTag, beltTag, pathTag} {
		_ = validate.RegisterTranslation(tag, translator, registerFn, translateCustomErrs)
	}
}

func translateCustomErrs(_ ut.Translator, fe validator.FieldError) string {
	switch fe.Tag() {
	case notBlankTag:
		return "this field cannot be blank"
	case beltTag:
		return fmt.Sprintf("unknown belt %q", fe.Value())
	case pathTag:
		return fmt.Sprintf("unknown path %q", fe.Value())
	default:
		return ""
	}
}

func notBlankValidation(fl validator.FieldLevel) bool {
	if str, ok := fl.Field().Interface().(string); ok {
		return strings.TrimSpace(str) != ""
	}
	return false
}

func beltValidation(fl validator.FieldLevel) bool {
	_, err := progression.ParseBelt(fl.Field().String())
	return err == nil
}

func pathValidation(fl validator.FieldLevel) bool {
	_, err := progression.ParsePath(fl.Field().String())
	return err == nil
}

// ══════════════════════════════════════════════════════════════════════════════
// FORM NUMBER
// ══════════════════════════════════════════════════════════════════════════════

// FormNumber is a numeric form field. It accepts a JSON number, a numeric
// string, an empty string or null. Anything unparseable becomes NaN, which the
// normalizer clamps to the lower bound.
type FormNumber float64

// UnmarshalJSON implements json.Unmarshaler.
func (n *FormNumber) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)

	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		*n = FormNumber(math.NaN())
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*n = FormNumber(progression.ParseNumber(s))
	default:
		var f float64
		if err := json.Unmarshal(data, &f); err != nil {
			*n = FormNumber(math.NaN())
			return nil
		}
		*n = FormNumber(f)
	}
	return nil
}

// Float64 returns the raw value.
func (n FormNumber) Float64() float64 { return float64(n) }

// ══════════════════════════════════════════════════════════════════════════════
// REQUEST BODIES
// ══════════════════════════════════════════════════════════════════════════════

// CreateNinjaRequest is the body of POST /api/v1/ninjas.
type CreateNinjaRequest struct {
	FirstName string `json:"first_name" validate:"required,notblank,max=80"`
	LastName  string `json:"last_name" validate:"required,notblank,max=80"`
	Username  string `json:"username" validate:"required,notblank,min=3,max=40"`
	Path      string `json:"path" validate:"omitempty,path"`
}

// StateRequest is a raw (path, belt, level, lesson) position as typed in a form.
type StateRequest struct {
	Path   string     `json:"path" validate:"omitempty,path"`
	Belt   string     `json:"belt" validate:"omitempty,belt"`
	Level  FormNumber `json:"level"`
	Lesson FormNumber `json:"lesson"`
}

// UpdateProgressionRequest is the body of PUT /api/v1/ninjas/{id}/progression.
type UpdateProgressionRequest struct {
	Path   string     `json:"path" validate:"omitempty,path"`
	Belt   string     `json:"belt" validate:"required,belt"`
	Level  FormNumber `json:"level"`
	Lesson FormNumber `json:"lesson"`
	Note   string     `json:"note" validate:"max=500"`
}

// CorrectProgressRequest is the body of PUT /api/v1/ninjas/{id}/progress/{entryID}.
type CorrectProgressRequest struct {
	Belt   string     `json:"belt" validate:"required,belt"`
	Level  FormNumber `json:"level"`
	Lesson FormNumber `json:"lesson"`
	Note   string     `json:"note" validate:"max=500"`
}

// ══════════════════════════════════════════════════════════════════════════════
// DECODING
// ══════════════════════════════════════════════════════════════════════════════

var errEmptyBody = errors.New("request body is empty")

// decodeError is a body that could not be decoded.
type decodeError struct {
	err error
}

func (e *decodeError) Error() string { return e.err.Error() }
func (e *decodeError) Unwrap() error { return e.err }

// FieldErrors maps JSON field names to translated messages.
type FieldErrors map[string]string

func (f FieldErrors) Error() string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+f[k])
	}
	return strings.Join(parts, "; ")
}

// decodeJSON decodes a size-limited body into dst and validates it.
// Undecodable bodies are returned as *decodeError, failed validation as FieldErrors.
func decodeJSON(w http.ResponseWriter, r *http.Request, limit int64, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var maxBytes *http.MaxBytesError
		switch {
		case errors.As(err, &maxBytes):
			return err
		case errors.Is(err, io.EOF):
			return &decodeError{err: errEmptyBody}
		default:
			return &decodeError{err: fmt.Errorf("malformed JSON: %w", err)}
		}
	}

	return validateStruct(dst)
}

func validateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	fields := make(FieldErrors, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = fe.Translate(translator)
	}
	return fields
}
