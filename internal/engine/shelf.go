package engine

import "math"

// item is one placeable instance of a job.
type item struct {
	job    int // index into the search's job list
	index  int // repeat number, starting at 1
	w, h   float64
	square bool
}

// size returns the item's extents in the given orientation.
func (it item) size(rotated bool) (float64, float64) {
	if rotated {
		return it.h, it.w
	}
	return it.w, it.h
}

// sameShape reports whether two items are interchangeable in a layout.
func (it item) sameShape(o item) bool {
	return it.job == o.job && it.w == o.w && it.h == o.h
}

// choice is one step of a candidate: which item goes next and whether it is
// turned a quarter turn.
type choice struct {
	item    int
	rotated bool
}

// placed is a packed item with its lower-left corner.
type placed struct {
	choice
	x, y float64
}

// shelf lays items out left to right in rows. A new row starts above the
// tallest item of the current row when the next item would make the row
// wider than the panel. Spacing only separates items, never an item from
// the panel edge.
//
// shelf is a value type so that the exhaustive search can branch by copying.
type shelf struct {
	maxW, maxH float64
	xsp, ysp   float64

	x, rowY, rowH float64
	w, h          float64 // bounding box of everything placed
	count         int
}

func newShelf(maxW, maxH, xsp, ysp float64) shelf {
	return shelf{maxW: maxW, maxH: maxH, xsp: xsp, ysp: ysp}
}

// add places a w x h item and returns its corner. ok is false when the item
// cannot be placed without exceeding the panel.
func (s *shelf) add(w, h float64) (x, y float64, ok bool) {
	if s.count == 0 {
		if w > s.maxW+eps || h > s.maxH+eps {
			return 0, 0, false
		}
		s.place(0, 0, w, h)
		return 0, 0, true
	}
	x, y = s.x+s.xsp, s.rowY
	if x+w > s.maxW+eps {
		x, y = 0, s.rowY+s.rowH+s.ysp
		if w > s.maxW+eps {
			return 0, 0, false
		}
		s.rowY, s.rowH = y, 0
	}
	if y+h > s.maxH+eps {
		return 0, 0, false
	}
	s.place(x, y, w, h)
	return x, y, true
}

func (s *shelf) place(x, y, w, h float64) {
	s.x = x + w
	s.rowH = math.Max(s.rowH, h)
	s.w = math.Max(s.w, x+w)
	s.h = math.Max(s.h, y+h)
	s.count++
}

func (s *shelf) area() float64 { return s.w * s.h }

func (s *shelf) maxDim() float64 { return math.Max(s.w, s.h) }

// eps absorbs rounding when comparing summed extents against panel limits.
const eps = 1e-9
