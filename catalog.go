package tiledoc

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
)

// DocumentID identifies a pyramidal document.
type DocumentID string

// Lod is a level of detail. Level 0 has the lowest resolution.
type Lod int

// Size is a pixel size.
type Size struct {
	Width  int
	Height int
}

// ParseSize parses a "WIDTHxHEIGHT" string such as "2483x1754".
func ParseSize(s string) (Size, error) {
	ws, hs, ok := strings.Cut(strings.TrimSpace(s), "x")
	if !ok {
		return Size{}, fmt.Errorf("%w: %q", ErrBadSize, s)
	}
	w, err := strconv.Atoi(ws)
	if err != nil {
		return Size{}, fmt.Errorf("%w: %q", ErrBadSize, s)
	}
	h, err := strconv.Atoi(hs)
	if err != nil {
		return Size{}, fmt.Errorf("%w: %q", ErrBadSize, s)
	}
	if w <= 0 || h <= 0 {
		return Size{}, fmt.Errorf("%w: %q", ErrBadSize, s)
	}
	return Size{Width: w, Height: h}, nil
}

// String returns the size in "WIDTHxHEIGHT" form.
func (s Size) String() string {
	return strconv.Itoa(s.Width) + "x" + strconv.Itoa(s.Height)
}

// SizeEntry is the native size of one level of a document.
// The aspect ratio may differ slightly between levels; each entry is
// authoritative for its own level.
type SizeEntry struct {
	Lod    Lod
	Width  int
	Height int
}

// Catalog holds the native size of every level of every document.
//
// A Catalog is immutable after construction and safe for concurrent reads.
// Construction validates that every document has the same non-zero number
// of levels and that widths strictly increase with the level.
type Catalog struct {
	docs   map[DocumentID][]SizeEntry
	levels int
}

// NewCatalog validates sizes and builds a Catalog.
// Sizes are given per document in level order.
func NewCatalog(docs map[DocumentID][]Size) (*Catalog, error) {
	ids := make([]DocumentID, 0, len(docs))
	for id := range docs {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	c := &Catalog{docs: make(map[DocumentID][]SizeEntry, len(docs))}
	for i, id := range ids {
		sizes := docs[id]
		if len(sizes) == 0 {
			return nil, &ConfigError{DocumentID: id, Err: ErrEmptySizes}
		}
		if i == 0 {
			c.levels = len(sizes)
		} else if len(sizes) != c.levels {
			return nil, &ConfigError{
				DocumentID: id,
				Err:        fmt.Errorf("%w: have %d, want %d", ErrLevelMismatch, len(sizes), c.levels),
			}
		}

		entries := make([]SizeEntry, len(sizes))
		for lod, s := range sizes {
			if s.Width <= 0 || s.Height <= 0 {
				return nil, &ConfigError{
					DocumentID: id,
					Err:        fmt.Errorf("%w: lod %d is %s", ErrBadSize, lod, s),
				}
			}
			if lod > 0 && s.Width <= sizes[lod-1].Width {
				return nil, &ConfigError{
					DocumentID: id,
					Err:        fmt.Errorf("%w: lod %d width %d after %d", ErrNotAscending, lod, s.Width, sizes[lod-1].Width),
				}
			}
			entries[lod] = SizeEntry{Lod: Lod(lod), Width: s.Width, Height: s.Height}
		}
		c.docs[id] = entries
	}
	return c, nil
}

// Levels returns the number of levels every document has.
func (c *Catalog) Levels() int {
	return c.levels
}

// MaxLod returns the highest level index.
func (c *Catalog) MaxLod() Lod {
	return Lod(c.levels - 1)
}

// Documents returns the catalogued document IDs in sorted order.
func (c *Catalog) Documents() []DocumentID {
	ids := make([]DocumentID, 0, len(c.docs))
	for id := range c.docs {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Sizes returns the level sizes of a document, ascending by level.
// The returned slice is a copy.
func (c *Catalog) Sizes(id DocumentID) ([]SizeEntry, error) {
	entries, ok := c.docs[id]
	if !ok {
		return nil, &ConfigError{DocumentID: id, Err: ErrUnknownDocument}
	}
	return slices.Clone(entries), nil
}

// Size returns the native size of one level of a document.
func (c *Catalog) Size(id DocumentID, lod Lod) (SizeEntry, error) {
	entries, ok := c.docs[id]
	if !ok {
		return SizeEntry{}, &ConfigError{DocumentID: id, Err: ErrUnknownDocument}
	}
	if lod < 0 || int(lod) >= len(entries) {
		return SizeEntry{}, &ConfigError{
			DocumentID: id,
			Err:        fmt.Errorf("%w: %d not in [0, %d]", ErrLodOutOfRange, lod, len(entries)-1),
		}
	}
	return entries[lod], nil
}

// catalogFile is the on-disk catalog format:
//
//	{"documents": {"doc": ["298x210", "596x421", ...]}}
type catalogFile struct {
	Documents map[DocumentID][]string `json:"documents"`
}

// LoadCatalog reads a JSON catalog from r and validates it.
func LoadCatalog(r io.Reader) (*Catalog, error) {
	var f catalogFile
	if err := json.NewDecoder(r).Decode(&f); err != nil {
		return nil, &ConfigError{Err: fmt.Errorf("tiledoc: decode catalog: %w", err)}
	}

	docs := make(map[DocumentID][]Size, len(f.Documents))
	for id, raw := range f.Documents {
		sizes := make([]Size, len(raw))
		for i, s := range raw {
			size, err := ParseSize(s)
			if err != nil {
				return nil, &ConfigError{DocumentID: id, Err: err}
			}
			sizes[i] = size
		}
		docs[id] = sizes
	}
	return NewCatalog(docs)
}

// LoadCatalogFile reads a JSON catalog from the file at path.
func LoadCatalogFile(path string) (*Catalog, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, &ConfigError{Err: fmt.Errorf("tiledoc: open catalog: %w", err)}
	}
	defer func() { _ = f.Close() }()

	return LoadCatalog(f)
}

// WriteJSON encodes the catalog in the format LoadCatalog reads.
func (c *Catalog) WriteJSON(w io.Writer) error {
	f := catalogFile{Documents: make(map[DocumentID][]string, len(c.docs))}
	for id, entries := range c.docs {
		raw := make([]string, len(entries))
		for i, e := range entries {
			raw[i] = Size{Width: e.Width, Height: e.Height}.String()
		}
		f.Documents[id] = raw
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(f); err != nil {
		return fmt.Errorf("tiledoc: encode catalog: %w", err)
	}
	return nil
}
