package engine

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// frame is a partial layout on the exhaustive work-list.
type frame struct {
	shelf  shelf
	layout []placed
	used   []bool
	path   []int // item*2 + orientation for every step taken
}

// exhaustive enumerates every ordering and orientation, one worker per
// top-level branch. It reports whether the enumeration finished before ctx
// was done.
func (s *search) exhaustive(ctx context.Context) (bool, error) {
	root := frame{shelf: s.newShelf(), used: make([]bool, len(s.items))}
	branches := s.children(root)

	var interrupted atomic.Bool
	g := new(errgroup.Group)
	g.SetLimit(s.opts.Workers)
	for i, b := range branches {
		g.Go(func() error {
			if !s.walk(ctx, b, []int{i}) {
				interrupted.Store(true)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return false, err
	}
	return !interrupted.Load(), nil
}

// walk searches every completion of start depth first using an explicit
// work-list. Candidate ordinals are base followed by the path, which is
// the enumeration order independent of worker timing. walk returns false
// when ctx ended the walk early.
func (s *search) walk(ctx context.Context, start frame, base []int) bool {
	stack := []frame{start}
	for len(stack) > 0 {
		if ctx.Err() != nil {
			return false
		}
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if len(f.layout) == len(s.items) {
			s.evaluated.Add(1)
			ordinal := append(append([]int(nil), base...), f.path...)
			s.best.offer(&candidate{layout: f.layout, w: f.shelf.w, h: f.shelf.h, ordinal: ordinal})
			continue
		}
		if s.best.beaten(f.shelf.area(), f.shelf.maxDim()) {
			continue
		}
		kids := s.children(f)
		// pushed in reverse so the lowest path is popped first
		for i := len(kids) - 1; i >= 0; i-- {
			stack = append(stack, kids[i])
		}
	}
	return true
}

// children extends f by one item in every allowed orientation. Among
// interchangeable unused items only the first is tried, and steps that
// overflow the panel are dropped.
func (s *search) children(f frame) []frame {
	var out []frame
	for i, it := range s.items {
		if f.used[i] || s.hasEarlierTwin(f.used, i) {
			continue
		}
		for _, rot := range s.orientations(it) {
			sh := f.shelf
			w, h := it.size(rot)
			x, y, ok := sh.add(w, h)
			if !ok {
				continue
			}
			step := i * 2
			if rot {
				step++
			}
			used := append([]bool(nil), f.used...)
			used[i] = true
			out = append(out, frame{
				shelf:  sh,
				layout: append(append(make([]placed, 0, len(f.layout)+1), f.layout...), placed{choice: choice{item: i, rotated: rot}, x: x, y: y}),
				used:   used,
				path:   append(append(make([]int, 0, len(f.path)+1), f.path...), step),
			})
		}
	}
	return out
}

func (s *search) hasEarlierTwin(used []bool, i int) bool {
	for j := 0; j < i; j++ {
		if !used[j] && s.items[j].sameShape(s.items[i]) {
			return true
		}
	}
	return false
}
