package engine

import (
	"context"
	"math/rand"

	"golang.org/x/sync/errgroup"
)

// random packs random orderings and orientations until ctx is done or every
// worker reached MaxIterations. Worker w draws from a generator seeded with
// Seed+w, so a fixed seed, worker count and iteration cap reproduce the
// same result.
func (s *search) random(ctx context.Context) error {
	return s.workers(ctx, func(iter, ordinal int, rng *rand.Rand) {
		perm, rots := s.draw(rng)
		sh := s.newShelf()
		layout := make([]placed, 0, len(perm))
		for k, i := range perm {
			w, h := s.items[i].size(rots[k])
			x, y, ok := sh.add(w, h)
			if !ok {
				return
			}
			layout = append(layout, placed{choice: choice{item: i, rotated: rots[k]}, x: x, y: y})
		}
		s.evaluated.Add(1)
		s.best.offer(&candidate{layout: layout, w: sh.w, h: sh.h, ordinal: []int{ordinal}})
	})
}

// hybrid packs a random prefix of all but SubsetSize items, then places the
// rest exhaustively behind it. When the subset covers every item a single
// exhaustive pass is run instead, and the result is reported complete.
func (s *search) hybrid(ctx context.Context) (bool, error) {
	k := s.opts.SubsetSize
	if k >= len(s.items) {
		return s.exhaustive(ctx)
	}
	err := s.workers(ctx, func(iter, ordinal int, rng *rand.Rand) {
		perm, rots := s.draw(rng)
		f := frame{shelf: s.newShelf(), used: make([]bool, len(s.items))}
		for n, i := range perm[:len(perm)-k] {
			w, h := s.items[i].size(rots[n])
			x, y, ok := f.shelf.add(w, h)
			if !ok {
				return
			}
			f.used[i] = true
			f.layout = append(f.layout, placed{choice: choice{item: i, rotated: rots[n]}, x: x, y: y})
		}
		s.walk(ctx, f, []int{ordinal})
	})
	return false, err
}

// workers runs fn on every worker until ctx is done or the iteration cap is
// hit. ordinal numbers iterations across workers in a fixed interleaving.
func (s *search) workers(ctx context.Context, fn func(iter, ordinal int, rng *rand.Rand)) error {
	n := s.opts.Workers
	g := new(errgroup.Group)
	for w := 0; w < n; w++ {
		g.Go(func() error {
			rng := rand.New(rand.NewSource(s.opts.Seed + int64(w)))
			for iter := 0; s.opts.MaxIterations == 0 || iter < s.opts.MaxIterations; iter++ {
				if ctx.Err() != nil {
					return nil
				}
				fn(iter, iter*n+w, rng)
			}
			return nil
		})
	}
	return g.Wait()
}

// draw returns a random ordering of the items and an orientation for each
// position.
func (s *search) draw(rng *rand.Rand) ([]int, []bool) {
	perm := rng.Perm(len(s.items))
	rots := make([]bool, len(perm))
	for k, i := range perm {
		opts := s.orientations(s.items[i])
		rots[k] = opts[rng.Intn(len(opts))]
	}
	return perm, rots
}
