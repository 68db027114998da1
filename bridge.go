package tiledoc

import (
	"fmt"
	"slices"
)

// InstanceID identifies one placed instance of a document. The same
// document may be placed several times.
type InstanceID string

// ZoomHandler reacts to the end of a zoom gesture. *Controller implements it.
type ZoomHandler interface {
	// OnZoomSettled receives the instance's on-screen width and reports
	// whether the handler changed its level.
	OnZoomSettled(onScreenWidth float64) bool
}

// ZoomEvent is a "zoom settled" notification from the viewport. It carries
// the on-screen width of every visible instance.
type ZoomEvent struct {
	Widths map[InstanceID]float64
}

// Bridge forwards viewport zoom notifications to registered handlers.
// Handlers are registered explicitly; nothing is discovered from the scene.
//
// Thread safety: Bridge is NOT safe for concurrent use; it lives on the
// same logical thread as the controllers it drives.
type Bridge struct {
	handlers map[InstanceID]ZoomHandler
}

// NewBridge creates an empty bridge.
func NewBridge() *Bridge {
	return &Bridge{handlers: make(map[InstanceID]ZoomHandler)}
}

// Register adds h under id. Registering an id twice is an error.
func (b *Bridge) Register(id InstanceID, h ZoomHandler) error {
	if h == nil {
		return fmt.Errorf("tiledoc: nil zoom handler for %q", id)
	}
	if _, ok := b.handlers[id]; ok {
		return fmt.Errorf("tiledoc: instance %q already registered", id)
	}
	b.handlers[id] = h
	return nil
}

// Unregister removes id. It reports whether id was registered.
func (b *Bridge) Unregister(id InstanceID) bool {
	if _, ok := b.handlers[id]; !ok {
		return false
	}
	delete(b.handlers, id)
	return true
}

// Len returns the number of registered handlers.
func (b *Bridge) Len() int {
	return len(b.handlers)
}

// ZoomSettled forwards each width in ev to the handler registered for its
// instance and returns how many handlers changed level. Instances without
// a handler are ignored, as are handlers whose instance is not in ev.
// Handlers are called in instance ID order.
func (b *Bridge) ZoomSettled(ev ZoomEvent) int {
	ids := make([]InstanceID, 0, len(ev.Widths))
	for id := range ev.Widths {
		if _, ok := b.handlers[id]; ok {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)

	changed := 0
	for _, id := range ids {
		h, ok := b.handlers[id]
		if !ok {
			// Unregistered by an earlier handler
			continue
		}
		if h.OnZoomSettled(ev.Widths[id]) {
			changed++
		}
	}
	return changed
}
