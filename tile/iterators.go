package tile

import "iter"

// Cell is one tile position inside a Range.
// Col counts from the western edge, Row counts from the southern edge.
type Cell struct {
	Col int
	Row int
	X   int // unwrapped
	Y   int
}

// Cells iterates over the range column by column, west to east,
// and within a column from YMax down to YMin (south to north).
// This is the order in which tiles are stacked into a bottom-left origin raster.
func (r Range) Cells() iter.Seq2[int, Cell] {
	return func(yield func(int, Cell) bool) {
		i := 0
		for x := r.XMin; x <= r.XMax; x++ {
			for y := r.YMax; y >= r.YMin; y-- {
				c := Cell{Col: x - r.XMin, Row: r.YMax - y, X: x, Y: y}
				if !yield(i, c) {
					return
				}
				i++
			}
		}
	}
}

// IDs iterates over the wrapped tile IDs of the range in Cells order.
// Cells with y outside the world are skipped.
func (r Range) IDs() iter.Seq[ID] {
	return func(yield func(ID) bool) {
		for _, c := range r.Cells() {
			id, err := Wrap(r.Z, c.X, c.Y)
			if err != nil {
				continue
			}
			if !yield(id) {
				return
			}
		}
	}
}
