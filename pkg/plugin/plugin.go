// Package plugin provides factories that build host plugins from plain
// values: endpoint handler maps, router mappings, typed configuration and
// decoration fields. The factories only capture their arguments; all
// registration work happens when the host runs the plugin.
package plugin

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"reflect"

	"github.com/tskau/routekit/pkg/common"
	"github.com/tskau/routekit/pkg/host"
)

var (
	// ErrNoHandlers is returned by an endpoint plugin with an empty handler map.
	ErrNoHandlers = errors.New("plugin: no handlers")
	// ErrNilTarget is returned when a config plugin wraps a nil target.
	ErrNilTarget = errors.New("plugin: nil target")
	// ErrNilGenerator is returned when a runtime config or custom fields plugin has no generator.
	ErrNilGenerator = errors.New("plugin: nil generator")
	// ErrNilOptions is returned for nil pointer options whose type implements Validator.
	ErrNilOptions = errors.New("plugin: nil options")
)

// EndpointHandler is the handler for one method of an endpoint, optionally
// guarded by a schema the host validates before the handler runs.
type EndpointHandler struct {
	Schema      host.Schema
	Handler     http.HandlerFunc
	Middlewares []common.Middleware
}

// Handle returns an EndpointHandler without a schema.
func Handle(fn http.HandlerFunc) EndpointHandler {
	return EndpointHandler{Handler: fn}
}

// WithSchema returns an EndpointHandler validated by s.
func WithSchema(s host.Schema, fn http.HandlerFunc) EndpointHandler {
	return EndpointHandler{Schema: s, Handler: fn}
}

// EndpointHandlers maps methods to their handlers for a single URL.
type EndpointHandlers map[host.Method]EndpointHandler

// RouterMapping maps sub-paths to the handlers registered under them.
type RouterMapping map[string]EndpointHandlers

// Fields are named values to attach to the host.
type Fields map[string]any

// Configurable is a plugin that needs an options value of type O to run.
type Configurable[O any] interface {
	Name() string
	Run(ctx context.Context, h *host.Host, opts O) error
}

// Validator is implemented by options values that can check themselves.
type Validator interface {
	Validate() error
}

type configurable[O any] struct {
	name string
	fn   func(context.Context, *host.Host, O) error
}

func (c configurable[O]) Name() string { return c.name }

func (c configurable[O]) Run(ctx context.Context, h *host.Host, opts O) error {
	return c.fn(ctx, h, opts)
}

// Configure wraps fn as a named Configurable.
func Configure[O any](name string, fn func(ctx context.Context, h *host.Host, opts O) error) Configurable[O] {
	return configurable[O]{name: name, fn: fn}
}

// bound is a Configurable with its options already chosen.
type bound[O any] struct {
	target Configurable[O]
	opts   O
}

func (b bound[O]) Name() string { return b.target.Name() }

func (b bound[O]) Run(ctx context.Context, h *host.Host) error {
	return b.target.Run(ctx, h, b.opts)
}

// validate runs opts.Validate when O implements Validator. A nil pointer of
// such a type is rejected with ErrNilOptions.
func validate[O any](opts O) error {
	v, ok := any(opts).(Validator)
	if !ok {
		return nil
	}
	if rv := reflect.ValueOf(opts); rv.Kind() == reflect.Pointer && rv.IsNil() {
		return fmt.Errorf("%w: %T", ErrNilOptions, opts)
	}
	return v.Validate()
}
