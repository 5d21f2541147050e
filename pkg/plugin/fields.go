package plugin

import (
	"context"

	"github.com/tskau/routekit/pkg/host"
)

// CustomFields returns a plugin that attaches the fields produced by gen to
// the host. gen may block; Run returns only after it has finished and every
// field is attached. If any name is already taken nothing is attached.
func CustomFields(gen func(ctx context.Context, h *host.Host) (Fields, error)) host.Plugin {
	return host.NewPlugin("custom fields", func(ctx context.Context, h *host.Host) error {
		if gen == nil {
			return ErrNilGenerator
		}

		fields, err := gen(ctx, h)
		if err != nil {
			return err
		}
		return h.DecorateAll(fields)
	})
}
