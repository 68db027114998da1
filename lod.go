package tiledoc

// SelectLod returns the smallest level whose native width is at least
// targetWidth. If no level is wide enough it returns the highest level.
//
// sizes must be ascending by width, which the Catalog guarantees.
// The comparison is inclusive: a level exactly as wide as targetWidth is
// chosen over the next one. A non-positive targetWidth selects level 0, as
// does an empty sizes slice.
func SelectLod(sizes []SizeEntry, targetWidth float64) Lod {
	if len(sizes) == 0 || targetWidth <= 0 {
		return 0
	}
	for i, s := range sizes {
		if float64(s.Width) >= targetWidth {
			return Lod(i)
		}
	}
	return Lod(len(sizes) - 1)
}
