package host

import (
	"fmt"
	"sort"

	"go.uber.org/zap"
)

// Decorate attaches value to the host under name.
func (h *Host) Decorate(name string, value any) error {
	return h.DecorateAll(map[string]any{name: value})
}

// DecorateAll attaches every field or none: all names are checked for
// collisions before any value is stored.
func (h *Host) DecorateAll(fields map[string]any) error {
	names := make([]string, 0, len(fields))
	for name := range fields {
		if name == "" {
			return ErrInvalidDecoration
		}
		names = append(names, name)
	}
	sort.Strings(names)

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.ready {
		return ErrHostReady
	}
	for _, name := range names {
		if _, exists := h.decorations[name]; exists {
			return fmt.Errorf("%w: %q", ErrDecorationExists, name)
		}
	}

	for _, name := range names {
		h.decorations[name] = fields[name]
		h.logger.Debug("Decoration added", zap.String("name", name))
	}
	if h.metrics != nil {
		h.metrics.AddDecorations(len(names))
	}
	return nil
}

// Decoration returns the value attached under name.
func (h *Host) Decoration(name string) (any, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	v, ok := h.decorations[name]
	return v, ok
}

// HasDecoration reports whether name is attached.
func (h *Host) HasDecoration(name string) bool {
	_, ok := h.Decoration(name)
	return ok
}

// Decorations returns the attached names, sorted.
func (h *Host) Decorations() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	names := make([]string, 0, len(h.decorations))
	for name := range h.decorations {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup returns the decoration name as a T.
func Lookup[T any](h *Host, name string) (T, error) {
	var zero T

	v, ok := h.Decoration(name)
	if !ok {
		return zero, fmt.Errorf("%w: %q", ErrDecorationNotFound, name)
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("%w: %q is %T, not %T", ErrDecorationType, name, v, zero)
	}
	return t, nil
}
