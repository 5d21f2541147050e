// Package schema provides request validation schemas for host routes.
//
// A schema runs before the route handler. Body schemas decode the request
// with a codec, check the result against `validate` struct tags and make the
// decoded value available to the handler through BodyFrom.
//
//	type createUser struct {
//		Name  string `json:"name" validate:"required"`
//		Email string `json:"email" validate:"required,email"`
//	}
//
//	plugin.WithSchema(schema.JSONBody[createUser](), func(w http.ResponseWriter, r *http.Request) {
//		body, _ := schema.BodyFrom[createUser](r)
//		...
//	})
package schema

import (
	"context"
	"errors"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/tskau/routekit/pkg/codec"
	"github.com/tskau/routekit/pkg/host"
)

// ValidationError describes one rejected part of a request.
type ValidationError struct {
	Field  string
	Reason string
}

// ValidationErrors is returned by every schema in this package.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	parts := make([]string, len(e))
	for i, v := range e {
		parts[i] = v.Field + ": " + v.Reason
	}
	return strings.Join(parts, "; ")
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

type bodyKey[T any] struct{}

// BodySchema decodes and validates a request body of type T.
type BodySchema[T any] struct {
	decoder codec.Decoder[T]
}

// Body returns a schema that decodes the body with dec.
func Body[T any](dec codec.Decoder[T]) *BodySchema[T] {
	return &BodySchema[T]{decoder: dec}
}

// JSONBody returns a schema for a JSON body of type T.
func JSONBody[T any]() *BodySchema[T] {
	return Body[T](codec.NewJSONCodec[T, any]())
}

// Validate implements host.Schema.
func (s *BodySchema[T]) Validate(r *http.Request) (*http.Request, error) {
	data, err := s.decoder.Decode(r)
	if err != nil {
		if errors.Is(err, codec.ErrEmptyBody) {
			return nil, ValidationErrors{{Field: "body", Reason: "required"}}
		}
		return nil, ValidationErrors{{Field: "body", Reason: err.Error()}}
	}

	if isStruct(data) {
		if err := validate.Struct(data); err != nil {
			return nil, toValidationErrors(err)
		}
	}

	return r.WithContext(context.WithValue(r.Context(), bodyKey[T]{}, data)), nil
}

// BodyFrom returns the body decoded by a BodySchema[T].
func BodyFrom[T any](r *http.Request) (T, bool) {
	data, ok := r.Context().Value(bodyKey[T]{}).(T)
	return data, ok
}

func isStruct(v any) bool {
	t := reflect.TypeOf(v)
	if t == nil {
		return false
	}
	if t.Kind() == reflect.Pointer {
		if reflect.ValueOf(v).IsNil() {
			return false
		}
		t = t.Elem()
	}
	return t.Kind() == reflect.Struct
}

func toValidationErrors(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return ValidationErrors{{Field: "body", Reason: err.Error()}}
	}

	out := make(ValidationErrors, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		reason := fe.Tag()
		if fe.Param() != "" {
			reason += "=" + fe.Param()
		}
		out = append(out, ValidationError{Field: fieldPath(fe), Reason: reason})
	}
	return out
}

// fieldPath drops the root struct name from the namespace: "user.address.city".
func fieldPath(fe validator.FieldError) string {
	if _, rest, ok := strings.Cut(fe.Namespace(), "."); ok {
		return rest
	}
	return fe.Field()
}

type querySchema []string

// Query requires the named query parameters to be present and non-empty.
func Query(required ...string) host.Schema {
	return querySchema(required)
}

func (q querySchema) Validate(r *http.Request) (*http.Request, error) {
	values := r.URL.Query()
	var errs ValidationErrors
	for _, name := range q {
		if values.Get(name) == "" {
			errs = append(errs, ValidationError{Field: "query." + name, Reason: "required"})
		}
	}
	if len(errs) > 0 {
		return nil, errs
	}
	return r, nil
}

type headerSchema []string

// Headers requires the named headers to be present and non-empty.
func Headers(required ...string) host.Schema {
	return headerSchema(required)
}

func (hs headerSchema) Validate(r *http.Request) (*http.Request, error) {
	var errs ValidationErrors
	for _, name := range hs {
		if r.Header.Get(name) == "" {
			errs = append(errs, ValidationError{Field: "header." + http.CanonicalHeaderKey(name), Reason: "required"})
		}
	}
	if len(errs) > 0 {
		return nil, errs
	}
	return r, nil
}

type allSchema []host.Schema

// All applies schemas in order; each sees the request returned by the previous one.
func All(schemas ...host.Schema) host.Schema {
	return allSchema(schemas)
}

func (a allSchema) Validate(r *http.Request) (*http.Request, error) {
	for _, s := range a {
		if s == nil {
			continue
		}
		next, err := s.Validate(r)
		if err != nil {
			return nil, err
		}
		r = next
	}
	return r, nil
}
