package plugin

import (
	"context"
	"sort"
	"strings"

	"github.com/tskau/routekit/pkg/host"
	"golang.org/x/sync/errgroup"
)

// Router returns a plugin that registers an Endpoint plugin for every entry
// of mapping at CollapseSlashes(baseURL+subPath). The endpoints register
// concurrently and Run waits for all of them, returning the first error.
func Router(baseURL string, mapping RouterMapping) host.Plugin {
	return host.NewPlugin("router "+baseURL, func(ctx context.Context, h *host.Host) error {
		subPaths := make([]string, 0, len(mapping))
		for p := range mapping {
			subPaths = append(subPaths, p)
		}
		sort.Strings(subPaths)

		g, gctx := errgroup.WithContext(ctx)
		for _, subPath := range subPaths {
			endpoint := Endpoint(CollapseSlashes(baseURL+subPath), mapping[subPath])
			g.Go(func() error {
				return h.Register(gctx, endpoint)
			})
		}
		return g.Wait()
	})
}

// CollapseSlashes replaces every run of consecutive slashes in path with a
// single slash. Nothing else is changed.
func CollapseSlashes(path string) string {
	if !strings.Contains(path, "//") {
		return path
	}

	var b strings.Builder
	b.Grow(len(path))
	for i := 0; i < len(path); i++ {
		if path[i] == '/' && i > 0 && path[i-1] == '/' {
			continue
		}
		b.WriteByte(path[i])
	}
	return b.String()
}
