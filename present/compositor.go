package present

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"github.com/gogpu/tiledoc"
)

// Default colors.
var (
	DefaultBackground  color.Color = color.RGBA{0xff, 0xff, 0xff, 0xff}
	DefaultPlaceholder color.Color = color.RGBA{0xe0, 0xe0, 0xe0, 0xff}
	DefaultFailed      color.Color = color.RGBA{0xf4, 0xc7, 0xc3, 0xff}
	DefaultDebug       color.Color = color.RGBA{0xd3, 0x2f, 0x2f, 0xff}
)

// DefaultLabelSize is the debug label size in points at 72 DPI.
const DefaultLabelSize = 12

// Option configures a Compositor.
type Option func(*Compositor)

// WithInterpolator sets the resampler for loaded tiles.
// Default draw.CatmullRom.
func WithInterpolator(i draw.Interpolator) Option {
	return func(c *Compositor) {
		if i != nil {
			c.interp = i
		}
	}
}

// WithPlaceholder sets the fill of tiles still loading.
func WithPlaceholder(col color.Color) Option {
	return func(c *Compositor) {
		c.placeholder = col
	}
}

// WithFailedColor sets the fill of tiles whose load failed.
func WithFailedColor(col color.Color) Option {
	return func(c *Compositor) {
		c.failed = col
	}
}

// WithBackground sets the fill used by Render before tiles are drawn.
func WithBackground(col color.Color) Option {
	return func(c *Compositor) {
		c.background = col
	}
}

// WithDebugOverlay outlines every tile and labels it "lod row,col".
func WithDebugOverlay(enabled bool) Option {
	return func(c *Compositor) {
		c.debug = enabled
	}
}

// WithLabelSize sets the debug label size in points.
func WithLabelSize(points float64) Option {
	return func(c *Compositor) {
		if points > 0 {
			c.labelSize = points
		}
	}
}

// Compositor paints tile grids.
type Compositor struct {
	interp      draw.Interpolator
	background  color.Color
	placeholder color.Color
	failed      color.Color
	debug       bool
	labelSize   float64
	face        font.Face
}

// New creates a compositor. It fails only if the debug font cannot be
// loaded.
func New(opts ...Option) (*Compositor, error) {
	c := &Compositor{
		interp:      draw.CatmullRom,
		background:  DefaultBackground,
		placeholder: DefaultPlaceholder,
		failed:      DefaultFailed,
		labelSize:   DefaultLabelSize,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.debug {
		fnt, err := opentype.Parse(goregular.TTF)
		if err != nil {
			return nil, fmt.Errorf("present: parse font: %w", err)
		}
		face, err := opentype.NewFace(fnt, &opentype.FaceOptions{
			Size:    c.labelSize,
			DPI:     72,
			Hinting: font.HintingFull,
		})
		if err != nil {
			return nil, fmt.Errorf("present: font face: %w", err)
		}
		c.face = face
	}
	return c, nil
}

// Close releases the debug font face.
func (c *Compositor) Close() error {
	if c.face == nil {
		return nil
	}
	err := c.face.Close()
	c.face = nil
	return err
}

// Render draws st into a new image width pixels wide. The height follows
// the aspect ratio of the logical footprint.
func (c *Compositor) Render(st tiledoc.TiledDocumentState, width int) *image.RGBA {
	height := 1
	if st.LogicalWidth > 0 {
		height = max(1, int(math.Round(float64(width)*st.LogicalHeight/st.LogicalWidth)))
	}
	dst := image.NewRGBA(image.Rect(0, 0, max(1, width), height))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(c.background), image.Point{}, draw.Src)
	c.Draw(dst, dst.Bounds(), st)
	return dst
}

// Draw paints the grid of st so that its logical footprint fills r.
// Tiles are clipped to dst's bounds.
func (c *Compositor) Draw(dst draw.Image, r image.Rectangle, st tiledoc.TiledDocumentState) {
	if r.Empty() || st.LogicalWidth <= 0 || st.LogicalHeight <= 0 {
		return
	}
	sx := float64(r.Dx()) / st.LogicalWidth
	sy := float64(r.Dy()) / st.LogicalHeight

	for i := range st.Tiles {
		t := &st.Tiles[i]
		dr := tileRect(r, t.DisplayRect, sx, sy)
		if dr.Empty() {
			continue
		}

		switch {
		case t.State == tiledoc.Loaded && t.Image != nil:
			c.interp.Scale(dst, dr, t.Image, t.Image.Bounds(), draw.Over, nil)
		case t.State == tiledoc.Failed:
			draw.Draw(dst, dr, image.NewUniform(c.failed), image.Point{}, draw.Over)
		default:
			draw.Draw(dst, dr, image.NewUniform(c.placeholder), image.Point{}, draw.Over)
		}

		if c.debug {
			c.overlay(dst, dr, st.CurrentLod, t.Coordinate)
		}
	}
}

// DrawScene paints every instance of s at the given viewport scale.
// origin is the world point drawn at dst's top-left corner.
func (c *Compositor) DrawScene(dst draw.Image, s *tiledoc.Scene, scale float64, origin tiledoc.Placement) {
	b := dst.Bounds()
	for _, in := range s.Instances() {
		x0 := b.Min.X + int(math.Floor((in.X-origin.X)*scale))
		y0 := b.Min.Y + int(math.Floor((in.Y-origin.Y)*scale))
		x1 := b.Min.X + int(math.Floor((in.X+in.WorldWidth-origin.X)*scale))
		y1 := b.Min.Y + int(math.Floor((in.Y+in.WorldHeight-origin.Y)*scale))
		r := image.Rect(x0, y0, x1, y1)
		if !r.Overlaps(b) {
			continue
		}
		c.Draw(dst, r, in.Controller.State())
	}
}

// tileRect maps a display rect into r. Both edges are floored so that
// neighbouring tiles share their boundary pixels exactly.
func tileRect(r image.Rectangle, d tiledoc.DisplayRect, sx, sy float64) image.Rectangle {
	return image.Rect(
		r.Min.X+int(math.Floor(d.X*sx)),
		r.Min.Y+int(math.Floor(d.Y*sy)),
		r.Min.X+int(math.Floor((d.X+d.W)*sx)),
		r.Min.Y+int(math.Floor((d.Y+d.H)*sy)),
	)
}

func (c *Compositor) overlay(dst draw.Image, r image.Rectangle, lod tiledoc.Lod, coord tiledoc.TileCoordinate) {
	line := image.NewUniform(DefaultDebug)
	edges := []image.Rectangle{
		image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+1),
		image.Rect(r.Min.X, r.Max.Y-1, r.Max.X, r.Max.Y),
		image.Rect(r.Min.X, r.Min.Y, r.Min.X+1, r.Max.Y),
		image.Rect(r.Max.X-1, r.Min.Y, r.Max.X, r.Max.Y),
	}
	for _, e := range edges {
		draw.Draw(dst, e, line, image.Point{}, draw.Src)
	}

	if c.face == nil {
		return
	}
	ascent := c.face.Metrics().Ascent.Ceil()
	if r.Dy() < ascent+4 {
		return
	}
	d := &font.Drawer{
		Dst:  dst,
		Src:  line,
		Face: c.face,
		Dot:  fixed.P(r.Min.X+4, r.Min.Y+2+ascent),
	}
	d.DrawString(Label(lod, coord))
}

// Label returns the debug label of a tile.
func Label(lod tiledoc.Lod, coord tiledoc.TileCoordinate) string {
	return fmt.Sprintf("%d %d,%d", lod, coord.Row, coord.Col)
}
