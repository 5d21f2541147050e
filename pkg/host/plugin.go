package host

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Plugin is a deferred unit of registration work. The host calls Run once,
// handing over itself, and the plugin registers routes, decorations or
// further plugins.
type Plugin interface {
	Name() string
	Run(ctx context.Context, h *Host) error
}

type funcPlugin struct {
	name string
	fn   func(context.Context, *Host) error
}

func (p funcPlugin) Name() string { return p.name }

func (p funcPlugin) Run(ctx context.Context, h *Host) error { return p.fn(ctx, h) }

// NewPlugin wraps fn as a named Plugin.
func NewPlugin(name string, fn func(ctx context.Context, h *Host) error) Plugin {
	return funcPlugin{name: name, fn: fn}
}

// Register runs p against the host now and waits for it to finish. The
// plugin's error is returned with its name attached; errors.Is still matches
// the original. Registration is refused once Ready has completed.
func (h *Host) Register(ctx context.Context, p Plugin) error {
	if p == nil {
		return ErrNilPlugin
	}
	name := p.Name()

	if h.IsReady() {
		return fmt.Errorf("plugin %q: %w", name, ErrHostReady)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("plugin %q: %w", name, err)
	}

	start := time.Now()
	err := p.Run(ctx, h)
	duration := time.Since(start)

	if h.metrics != nil {
		h.metrics.ObservePlugin(name, duration, err)
	}

	if err != nil {
		h.logger.Error("Plugin registration failed",
			zap.String("plugin", name),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return fmt.Errorf("plugin %q: %w", name, err)
	}

	h.mu.Lock()
	h.plugins = append(h.plugins, name)
	h.mu.Unlock()

	h.logger.Info("Plugin registered",
		zap.String("plugin", name),
		zap.Duration("duration", duration),
	)
	return nil
}

// Plugins returns the names of successfully registered plugins in completion order.
func (h *Host) Plugins() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]string(nil), h.plugins...)
}
