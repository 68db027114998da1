package tiledoc

import (
	"image"
	"net/url"
	"strconv"

	"golang.org/x/text/unicode/norm"
)

// DefaultTileSize is the edge length of a full tile in pixels.
const DefaultTileSize = 1024

// TileCoordinate addresses a tile within one level. Both fields are
// zero-based; grids are stored row-major.
type TileCoordinate struct {
	Row int
	Col int
}

// Rect is a rectangle in native pixel space of one level.
type Rect struct {
	X, Y, W, H int
}

// Image returns r as an image.Rectangle.
func (r Rect) Image() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.W, r.Y+r.H)
}

// DisplayRect is a rectangle on a document's logical footprint.
type DisplayRect struct {
	X, Y, W, H float64
}

// LoadState is the load state of a single tile.
type LoadState uint8

const (
	// Pending means a load was issued and has not resolved.
	Pending LoadState = iota

	// Loaded means the tile image is attached.
	Loaded

	// Failed means the load failed; the tile is drawn as a placeholder.
	Failed
)

// String returns the state name.
func (s LoadState) String() string {
	switch s {
	case Pending:
		return "pending"
	case Loaded:
		return "loaded"
	case Failed:
		return "failed"
	default:
		return "LoadState(" + strconv.Itoa(int(s)) + ")"
	}
}

// TileDescriptor describes one tile of a grid.
//
// PlanGrid fills Coordinate, PixelRect and Locator. The Controller fills
// DisplayRect, State, Generation and, once resolved, Image or Err.
type TileDescriptor struct {
	Coordinate  TileCoordinate
	PixelRect   Rect
	DisplayRect DisplayRect
	Locator     string
	State       LoadState
	Generation  uint64

	// Image is the decoded tile once State is Loaded.
	Image image.Image

	// Err is the load failure once State is Failed.
	Err error
}

// Locator maps a tile address to the string a TileSource resolves.
// It must be deterministic: equal inputs always yield equal locators.
type Locator func(id DocumentID, lod Lod, row, col int) string

// DefaultLocator addresses tiles as "<document>/<lod>/tile_<row>_<col>.png".
// The document ID is NFC-normalized and path-escaped so that visually equal
// IDs share cache entries and IDs cannot escape their directory.
func DefaultLocator(id DocumentID, lod Lod, row, col int) string {
	doc := url.PathEscape(norm.NFC.String(string(id)))
	return doc + "/" + strconv.Itoa(int(lod)) + "/tile_" + strconv.Itoa(row) + "_" + strconv.Itoa(col) + ".png"
}

// PrefixLocator returns a Locator that prepends prefix and a slash to
// DefaultLocator, e.g. "/assets/_generated/chunks".
func PrefixLocator(prefix string) Locator {
	for len(prefix) > 0 && prefix[len(prefix)-1] == '/' {
		prefix = prefix[:len(prefix)-1]
	}
	return func(id DocumentID, lod Lod, row, col int) string {
		return prefix + "/" + DefaultLocator(id, lod, row, col)
	}
}

// GridShape returns the number of tile rows and columns covering a
// width x height image. Non-positive inputs yield 0, 0.
func GridShape(width, height, tileSize int) (rows, cols int) {
	if width <= 0 || height <= 0 || tileSize <= 0 {
		return 0, 0
	}
	rows = (height + tileSize - 1) / tileSize
	cols = (width + tileSize - 1) / tileSize
	return rows, cols
}

// PlanGrid describes the tiles covering one level of a document.
//
// Tiles are returned in row-major order. Interior tiles are tileSize square;
// the last column is width mod tileSize wide and the last row height mod
// tileSize high, or a full tile when the remainder is zero. Tile (row, col)
// starts at (col*tileSize, row*tileSize). A nil locate uses DefaultLocator.
//
// PlanGrid performs no I/O. The returned tiles are Pending with
// Generation 0 and a zero DisplayRect.
func PlanGrid(id DocumentID, lod Lod, width, height, tileSize int, locate Locator) []TileDescriptor {
	rows, cols := GridShape(width, height, tileSize)
	if rows == 0 || cols == 0 {
		return nil
	}
	if locate == nil {
		locate = DefaultLocator
	}

	tiles := make([]TileDescriptor, 0, rows*cols)
	for row := range rows {
		for col := range cols {
			w := tileSize
			h := tileSize

			// Right edge
			if (col+1)*tileSize > width {
				w = width - col*tileSize
			}
			// Bottom edge
			if (row+1)*tileSize > height {
				h = height - row*tileSize
			}

			tiles = append(tiles, TileDescriptor{
				Coordinate: TileCoordinate{Row: row, Col: col},
				PixelRect:  Rect{X: col * tileSize, Y: row * tileSize, W: w, H: h},
				Locator:    locate(id, lod, row, col),
			})
		}
	}
	return tiles
}

// ScaleToLogical maps a native rect of a nativeW x nativeH level onto a
// logicalW x logicalH footprint.
func ScaleToLogical(r Rect, nativeW, nativeH int, logicalW, logicalH float64) DisplayRect {
	if nativeW <= 0 || nativeH <= 0 {
		return DisplayRect{}
	}
	sx := logicalW / float64(nativeW)
	sy := logicalH / float64(nativeH)
	return DisplayRect{
		X: float64(r.X) * sx,
		Y: float64(r.Y) * sy,
		W: float64(r.W) * sx,
		H: float64(r.H) * sy,
	}
}
