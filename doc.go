// Package tiledoc manages levels of detail and tile grids for very large
// raster documents shown on a pannable, zoomable canvas.
//
// # Overview
//
// Every document is stored as a pyramid of precomputed resolutions. Level 0
// is the smallest; each following level is wider than the previous one.
// Within a level the image is cut into fixed-size tiles that are fetched on
// demand. tiledoc decides which level a document instance should show for
// its current on-screen width, describes the tile grid of that level, and
// swaps grids as the viewer zooms without changing the document's displayed
// size and without letting late loads from an old level leak into the new one.
//
// # Quick Start
//
//	cat, err := tiledoc.LoadCatalogFile("catalog.json")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	loop := tiledoc.NewLoop()
//	defer loop.Close()
//
//	src := source.NewDir("assets/_generated/chunks")
//
//	loop.Do(func() {
//		ctrl, err := tiledoc.NewController(cat, "Wassily_Kandinsky_Composition_VIII", src,
//			tiledoc.WithDispatcher(loop))
//		if err != nil {
//			log.Fatal(err)
//		}
//		// later, on every zoom-end notification:
//		ctrl.OnZoomSettled(1800)
//	})
//
// # Architecture
//
// The package is organized into:
//   - Reference data: Catalog, SizeEntry (per-document, per-level sizes)
//   - Pure functions: SelectLod, PlanGrid, ScaleToLogical
//   - State machine: Controller (one per placed document instance)
//   - Glue: Bridge (zoom notifications), Scene (placement and lifecycle), Loop
//
// Sub-packages provide tile sources (source), a decoded tile cache (cache),
// a CPU compositor (present) and a pyramid builder (pyramid).
//
// # Threading
//
// Controller, Bridge and Scene are not safe for concurrent use. All of their
// methods must run on one logical thread, normally a Loop. Tile loads run
// elsewhere and their results are posted back through a Dispatcher.
//
// # Generations
//
// Each grid a controller plans carries a generation number. A load result is
// applied only if its generation matches the controller's current one, so
// rapid zooming never needs cancellation support from the tile source.
package tiledoc
