package plugin

import (
	"context"

	"github.com/tskau/routekit/pkg/host"
)

// StaticConfig returns a plugin that registers target with opts. The value is
// passed on unchanged, so a pointer reaches target as the same pointer. When
// opts implements Validator it is checked here, and Run returns the failure
// without running target.
func StaticConfig[O any](target Configurable[O], opts O) host.Plugin {
	err := validate(opts)
	return host.NewPlugin(configName(target), func(ctx context.Context, h *host.Host) error {
		if target == nil {
			return ErrNilTarget
		}
		if err != nil {
			return err
		}
		return h.Register(ctx, bound[O]{target: target, opts: opts})
	})
}

// RuntimeConfig returns a plugin that calls gen once with the live host and
// registers target with the result.
func RuntimeConfig[O any](target Configurable[O], gen func(h *host.Host) (O, error)) host.Plugin {
	return host.NewPlugin(configName(target), func(ctx context.Context, h *host.Host) error {
		if target == nil {
			return ErrNilTarget
		}
		if gen == nil {
			return ErrNilGenerator
		}

		opts, err := gen(h)
		if err != nil {
			return err
		}
		if err := validate(opts); err != nil {
			return err
		}
		return h.Register(ctx, bound[O]{target: target, opts: opts})
	})
}

func configName[O any](target Configurable[O]) string {
	if target == nil {
		return "config"
	}
	return "config " + target.Name()
}
