package tiledoc

import (
	"cmp"
	"fmt"
	"log/slog"
	"slices"
)

// Default placement of documents laid out in a row.
const (
	DefaultOriginX       = 30
	DefaultOriginY       = 100
	DefaultDocumentWidth = 200
	DefaultDocumentGap   = 50
)

// Placement is a position in world coordinates.
type Placement struct {
	X, Y float64
}

// RowLayout places count documents of equal world width side by side,
// starting at (originX, originY) and separated by gap.
func RowLayout(count int, originX, originY, width, gap float64) []Placement {
	if count <= 0 {
		return nil
	}
	out := make([]Placement, count)
	for i := range out {
		out[i] = Placement{X: originX + float64(i)*(width+gap), Y: originY}
	}
	return out
}

// Instance is a document placed in a Scene.
//
// The controller's logical footprint is drawn WorldWidth x WorldHeight world
// units large at (X, Y). The world size keeps the footprint's aspect ratio.
type Instance struct {
	ID          InstanceID
	X, Y        float64
	WorldWidth  float64
	WorldHeight float64
	Controller  *Controller
}

// OnScreenWidth returns the instance's width in screen pixels at the given
// viewport scale.
func (in *Instance) OnScreenWidth(scale float64) float64 {
	return in.WorldWidth * scale
}

// Scene places document instances in a world, owns their controllers and
// turns a viewport scale into per-instance zoom notifications.
//
// Thread safety: Scene is NOT safe for concurrent use; it lives on the
// controllers' logical thread.
type Scene struct {
	cat       *Catalog
	src       TileSource
	opts      []Option
	bridge    *Bridge
	instances map[InstanceID]*Instance
}

// NewScene creates an empty scene. opts are applied to every controller
// the scene creates.
func NewScene(cat *Catalog, src TileSource, opts ...Option) *Scene {
	return &Scene{
		cat:       cat,
		src:       src,
		opts:      opts,
		bridge:    NewBridge(),
		instances: make(map[InstanceID]*Instance),
	}
}

// Bridge returns the bridge the scene registers its controllers with.
func (s *Scene) Bridge() *Bridge {
	return s.bridge
}

// Add places document doc at (x, y), worldWidth units wide, under id.
// Extra options apply to this instance only.
func (s *Scene) Add(id InstanceID, doc DocumentID, x, y, worldWidth float64, opts ...Option) (*Instance, error) {
	if _, ok := s.instances[id]; ok {
		return nil, fmt.Errorf("tiledoc: instance %q already in scene", id)
	}
	if worldWidth <= 0 {
		return nil, &ConfigError{DocumentID: doc, Err: fmt.Errorf("%w: world width %g", ErrBadSize, worldWidth)}
	}

	all := make([]Option, 0, len(s.opts)+len(opts))
	all = append(all, s.opts...)
	all = append(all, opts...)

	ctrl, err := NewController(s.cat, doc, s.src, all...)
	if err != nil {
		return nil, err
	}

	lw, lh := ctrl.LogicalSize()
	in := &Instance{
		ID:          id,
		X:           x,
		Y:           y,
		WorldWidth:  worldWidth,
		WorldHeight: lh * worldWidth / lw,
		Controller:  ctrl,
	}
	if err := s.bridge.Register(id, ctrl); err != nil {
		ctrl.Destroy()
		return nil, err
	}
	s.instances[id] = in

	Logger().Info("tiledoc: instance added",
		slog.String("instance", string(id)),
		slog.String("document", string(doc)),
		slog.Int("lod", int(ctrl.Lod())))
	return in, nil
}

// Instance returns the instance registered under id.
func (s *Scene) Instance(id InstanceID) (*Instance, bool) {
	in, ok := s.instances[id]
	return in, ok
}

// Instances returns all instances ordered by ID.
func (s *Scene) Instances() []*Instance {
	out := make([]*Instance, 0, len(s.instances))
	for _, in := range s.instances {
		out = append(out, in)
	}
	slices.SortFunc(out, func(a, b *Instance) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

// ZoomSettled notifies every instance of the viewport scale at the end of
// a zoom gesture and returns how many instances changed level.
func (s *Scene) ZoomSettled(scale float64) int {
	ev := ZoomEvent{Widths: make(map[InstanceID]float64, len(s.instances))}
	for id, in := range s.instances {
		ev.Widths[id] = in.OnScreenWidth(scale)
	}
	return s.bridge.ZoomSettled(ev)
}

// Remove unregisters and destroys the instance under id.
// It reports whether id was present.
func (s *Scene) Remove(id InstanceID) bool {
	in, ok := s.instances[id]
	if !ok {
		return false
	}
	s.bridge.Unregister(id)
	in.Controller.Destroy()
	delete(s.instances, id)

	Logger().Info("tiledoc: instance removed", slog.String("instance", string(id)))
	return true
}

// Close removes every instance.
func (s *Scene) Close() {
	for id := range s.instances {
		s.Remove(id)
	}
}
