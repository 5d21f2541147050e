package plugin

import (
	"context"
	"errors"
	"testing"

	"github.com/tskau/routekit/pkg/host"
)

type greeterOptions struct {
	Prefix   string
	Greeting string
}

func (o *greeterOptions) Validate() error {
	if o.Greeting == "" {
		return errors.New("greeting is required")
	}
	return nil
}

func greeter(calls *int) Configurable[*greeterOptions] {
	return Configure("greeter", func(ctx context.Context, h *host.Host, opts *greeterOptions) error {
		*calls++
		return Endpoint(opts.Prefix+"/greet", EndpointHandlers{
			host.MethodGet: Handle(okHandler(opts.Greeting)),
		}).Run(ctx, h)
	})
}

func TestStaticConfigPassesOptionsUnchanged(t *testing.T) {
	h, _ := newTestHost(t)

	opts := &greeterOptions{Prefix: "/v1", Greeting: "hi"}
	var received *greeterOptions
	target := Configure("capture", func(ctx context.Context, h *host.Host, o *greeterOptions) error {
		received = o
		return nil
	})

	if err := h.Register(context.Background(), StaticConfig(target, opts)); err != nil {
		t.Fatalf("Register() returned error: %v", err)
	}
	if received != opts {
		t.Errorf("Expected the identical options pointer, got %p want %p", received, opts)
	}
}

func TestStaticConfigRegistersTarget(t *testing.T) {
	h, _ := newTestHost(t)
	var calls int

	p := StaticConfig(greeter(&calls), &greeterOptions{Prefix: "/v1", Greeting: "hello"})
	if p.Name() != "config greeter" {
		t.Errorf("Expected name %q, got %q", "config greeter", p.Name())
	}
	if err := h.Register(context.Background(), p); err != nil {
		t.Fatalf("Register() returned error: %v", err)
	}
	if calls != 1 {
		t.Errorf("Expected target to run once, ran %d times", calls)
	}

	plugins := h.Plugins()
	if len(plugins) != 2 || plugins[0] != "greeter" {
		t.Errorf("Expected target registered through the host, got %v", plugins)
	}

	ready(t, h)
	if rr := serve(h, "GET", "/v1/greet"); rr.Body.String() != "hello" {
		t.Errorf("Expected hello, got %q", rr.Body.String())
	}
}

func TestStaticConfigValueOptions(t *testing.T) {
	h, _ := newTestHost(t)

	type limits struct{ Max int }
	var got limits
	target := Configure("limits", func(ctx context.Context, h *host.Host, l limits) error {
		got = l
		return nil
	})

	if err := h.Register(context.Background(), StaticConfig(target, limits{Max: 7})); err != nil {
		t.Fatalf("Register() returned error: %v", err)
	}
	if got.Max != 7 {
		t.Errorf("Expected Max 7, got %d", got.Max)
	}
}

func TestStaticConfigValidation(t *testing.T) {
	h, _ := newTestHost(t)
	var calls int

	err := h.Register(context.Background(), StaticConfig(greeter(&calls), &greeterOptions{Prefix: "/v1"}))
	if err == nil || calls != 0 {
		t.Fatalf("Expected validation failure without running target, got err=%v calls=%d", err, calls)
	}
}

func TestStaticConfigTargetError(t *testing.T) {
	h, _ := newTestHost(t)
	boom := errors.New("boom")

	target := Configure("failing", func(ctx context.Context, h *host.Host, _ string) error {
		return boom
	})
	if err := h.Register(context.Background(), StaticConfig(target, "x")); !errors.Is(err, boom) {
		t.Errorf("Expected boom, got %v", err)
	}

	if err := h.Register(context.Background(), StaticConfig[string](nil, "x")); !errors.Is(err, ErrNilTarget) {
		t.Errorf("Expected ErrNilTarget, got %v", err)
	}
}

func TestRuntimeConfigCallsGeneratorWithHost(t *testing.T) {
	h, _ := newTestHost(t)
	if err := h.Decorate("greeting", "howdy"); err != nil {
		t.Fatalf("Decorate() returned error: %v", err)
	}

	var genCalls, targetCalls int
	var genHost *host.Host
	gen := func(live *host.Host) (*greeterOptions, error) {
		genCalls++
		genHost = live
		greeting, err := host.Lookup[string](live, "greeting")
		if err != nil {
			return nil, err
		}
		return &greeterOptions{Prefix: "/rt", Greeting: greeting}, nil
	}

	p := RuntimeConfig(greeter(&targetCalls), gen)
	if genCalls != 0 {
		t.Fatal("Expected generator not to run at construction")
	}
	if err := h.Register(context.Background(), p); err != nil {
		t.Fatalf("Register() returned error: %v", err)
	}
	if genCalls != 1 || targetCalls != 1 {
		t.Errorf("Expected one generator and one target call, got %d and %d", genCalls, targetCalls)
	}
	if genHost != h {
		t.Error("Expected the generator to receive the live host")
	}

	ready(t, h)
	if rr := serve(h, "GET", "/rt/greet"); rr.Body.String() != "howdy" {
		t.Errorf("Expected howdy, got %q", rr.Body.String())
	}
}

func TestRuntimeConfigErrors(t *testing.T) {
	h, _ := newTestHost(t)
	var calls int

	err := h.Register(context.Background(), RuntimeConfig(greeter(&calls), func(live *host.Host) (*greeterOptions, error) {
		return host.Lookup[*greeterOptions](live, "missing")
	}))
	if !errors.Is(err, host.ErrDecorationNotFound) {
		t.Errorf("Expected generator error to propagate, got %v", err)
	}

	err = h.Register(context.Background(), RuntimeConfig(greeter(&calls), func(*host.Host) (*greeterOptions, error) {
		return &greeterOptions{}, nil
	}))
	if err == nil {
		t.Error("Expected validation failure")
	}
	if calls != 0 {
		t.Errorf("Expected target never to run, ran %d times", calls)
	}

	if err := h.Register(context.Background(), RuntimeConfig(greeter(&calls), nil)); !errors.Is(err, ErrNilGenerator) {
		t.Errorf("Expected ErrNilGenerator, got %v", err)
	}
}

func TestConfigNilPointerOptions(t *testing.T) {
	h, _ := newTestHost(t)
	var calls int

	err := h.Register(context.Background(), RuntimeConfig(greeter(&calls), func(*host.Host) (*greeterOptions, error) {
		return nil, nil
	}))
	if !errors.Is(err, ErrNilOptions) {
		t.Errorf("Expected ErrNilOptions from the generator result, got %v", err)
	}

	err = h.Register(context.Background(), StaticConfig(greeter(&calls), (*greeterOptions)(nil)))
	if !errors.Is(err, ErrNilOptions) {
		t.Errorf("Expected ErrNilOptions for static options, got %v", err)
	}
	if calls != 0 {
		t.Errorf("Expected target never to run, ran %d times", calls)
	}

	// Without a Validator, a nil pointer is passed through untouched.
	type plain struct{ N int }
	got := &plain{N: 1}
	target := Configure("plain", func(ctx context.Context, h *host.Host, p *plain) error {
		got = p
		return nil
	})
	if err := h.Register(context.Background(), StaticConfig(target, (*plain)(nil))); err != nil {
		t.Fatalf("Register() returned error: %v", err)
	}
	if got != nil {
		t.Errorf("Expected nil options to reach the target, got %+v", got)
	}
}
