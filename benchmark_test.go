package tiledoc

import (
	"context"
	"image"
	"testing"
)

// BenchmarkPlanGrid benchmarks planning every level of the sheet pyramid.
func BenchmarkPlanGrid(b *testing.B) {
	for lod, s := range sheetSizes {
		b.Run(s.String(), func(b *testing.B) {
			b.ReportAllocs()
			for b.Loop() {
				_ = PlanGrid(sheet, Lod(lod), s.Width, s.Height, DefaultTileSize, DefaultLocator)
			}
		})
	}
}

// BenchmarkSelectLod benchmarks level selection over a six-level pyramid.
func BenchmarkSelectLod(b *testing.B) {
	entries := make([]SizeEntry, len(sheetSizes))
	for i, s := range sheetSizes {
		entries[i] = SizeEntry{Lod: Lod(i), Width: s.Width, Height: s.Height}
	}
	widths := []float64{10, 500, 2000, 9000, 20000}

	b.ReportAllocs()
	i := 0
	for b.Loop() {
		_ = SelectLod(entries, widths[i%len(widths)])
		i++
	}
}

// BenchmarkController_Transition benchmarks an LOD change with inline loads.
func BenchmarkController_Transition(b *testing.B) {
	cat, err := NewCatalog(map[DocumentID][]Size{sheet: sheetSizes})
	if err != nil {
		b.Fatal(err)
	}
	img := image.NewRGBA(image.Rect(0, 0, 1, 1))
	src := TileSourceFunc(func(context.Context, string) (image.Image, error) {
		return img, nil
	})
	c, err := NewController(cat, sheet, src)
	if err != nil {
		b.Fatal(err)
	}

	widths := []float64{200, 5000}
	b.ReportAllocs()
	i := 0
	for b.Loop() {
		c.OnZoomSettled(widths[i%2])
		i++
	}
}
