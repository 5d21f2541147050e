package plugin

import (
	"context"
	"sort"

	"github.com/tskau/routekit/pkg/host"
)

// Endpoint returns a plugin that registers one route per entry of handlers,
// all at url. Methods are registered in sorted order and the first host error
// is returned as is.
func Endpoint(url string, handlers EndpointHandlers) host.Plugin {
	return host.NewPlugin("endpoint "+url, func(ctx context.Context, h *host.Host) error {
		if len(handlers) == 0 {
			return ErrNoHandlers
		}

		methods := make([]host.Method, 0, len(handlers))
		for m := range handlers {
			methods = append(methods, m)
		}
		sort.Slice(methods, func(i, j int) bool { return methods[i] < methods[j] })

		for _, m := range methods {
			eh := handlers[m]
			err := h.Route(host.RouteOptions{
				Method:      m,
				URL:         url,
				Handler:     eh.Handler,
				Schema:      eh.Schema,
				Middlewares: eh.Middlewares,
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
}
