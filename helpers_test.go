package tiledoc

import (
	"context"
	"errors"
	"image"
	"sync/atomic"
	"testing"
)

// Sizes of the ISO symbol sheets and the Kandinsky composition.
var (
	sheetSizes = []Size{
		{298, 210}, {596, 421}, {1192, 842}, {2483, 1754}, {4967, 3508}, {9933, 7016},
	}
	kandinskySizes = []Size{
		{102, 71}, {204, 143}, {408, 286}, {850, 595}, {1700, 1190}, {3400, 2380},
	}
)

const (
	sheet     DocumentID = "ISO_10628-2_2012_Symbols_Sheet_2"
	kandinsky DocumentID = "Wassily_Kandinsky_Composition_VIII"
)

func testCatalog(t *testing.T) *Catalog {
	t.Helper()
	cat, err := NewCatalog(map[DocumentID][]Size{
		sheet:     sheetSizes,
		kandinsky: kandinskySizes,
	})
	if err != nil {
		t.Fatalf("NewCatalog: %v", err)
	}
	return cat
}

// countedImage records Release calls.
type countedImage struct {
	*image.RGBA
	released *atomic.Int64
}

func (c countedImage) Release() { c.released.Add(1) }

// fakeSource returns a 1x1 counted image per locator, or an error for
// locators listed in fail.
type fakeSource struct {
	fail     map[string]error
	calls    atomic.Int64
	released atomic.Int64
}

func (s *fakeSource) Load(ctx context.Context, locator string) (image.Image, error) {
	s.calls.Add(1)
	if err, ok := s.fail[locator]; ok {
		return nil, err
	}
	return countedImage{RGBA: image.NewRGBA(image.Rect(0, 0, 1, 1)), released: &s.released}, nil
}

// manualExecutor holds submitted loads until the test runs them.
type manualExecutor struct {
	queue []func()
}

func (m *manualExecutor) Submit(fn func()) {
	m.queue = append(m.queue, fn)
}

// run executes the queued loads at the given indices, then drops them.
func (m *manualExecutor) run(indices ...int) {
	fns := make([]func(), 0, len(indices))
	for _, i := range indices {
		fns = append(fns, m.queue[i])
	}
	drop := make(map[int]bool, len(indices))
	for _, i := range indices {
		drop[i] = true
	}
	rest := m.queue[:0:0]
	for i, fn := range m.queue {
		if !drop[i] {
			rest = append(rest, fn)
		}
	}
	m.queue = rest
	for _, fn := range fns {
		fn()
	}
}

// runAll executes every queued load in reverse submission order.
func (m *manualExecutor) runAll() {
	for len(m.queue) > 0 {
		fn := m.queue[len(m.queue)-1]
		m.queue = m.queue[:len(m.queue)-1]
		fn()
	}
}

var errBoom = errors.New("boom")
