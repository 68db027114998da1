package source

import (
	"context"
	"image"
	"math/rand/v2"
	"time"

	"github.com/gogpu/tiledoc"
)

// Latency delays every load of another source by a random duration in
// [0, maxDelay). It is meant for exercising out-of-order arrival and rapid
// zooming during development.
type Latency struct {
	src tiledoc.TileSource
	max time.Duration
	rnd func() float64
}

// NewLatency wraps src. A non-positive maxDelay disables the delay.
func NewLatency(src tiledoc.TileSource, maxDelay time.Duration) *Latency {
	return &Latency{src: src, max: maxDelay, rnd: rand.Float64}
}

// Load waits, then delegates. It returns ctx.Err() if ctx is cancelled
// while waiting.
func (s *Latency) Load(ctx context.Context, locator string) (image.Image, error) {
	if s.max > 0 {
		delay := time.Duration(s.rnd() * float64(s.max))
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
	return s.src.Load(ctx, locator)
}
