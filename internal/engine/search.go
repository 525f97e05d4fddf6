// Package engine finds an arrangement of job instances on a panel that
// minimizes the area of the panel's bounding box.
//
// A candidate is an ordering of the instances plus an orientation for each;
// the shelf packer turns it into coordinates. Exhaustive, random and hybrid
// strategies differ only in how candidates are generated.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/piwi3910/gerbmerge/internal/model"
)

// Strategy selects how candidates are generated.
type Strategy string

const (
	StrategyExhaustive Strategy = "exhaustive"
	StrategyRandom     Strategy = "random"
	StrategyHybrid     Strategy = "hybrid"
)

// DefaultSubsetSize is the number of instances the hybrid strategy places
// exhaustively after each random prefix.
const DefaultSubsetSize = 2

// Options configures a search.
type Options struct {
	Strategy Strategy

	// PanelWidth and PanelHeight bound the usable area, margins excluded.
	PanelWidth  float64
	PanelHeight float64
	XSpacing    float64
	YSpacing    float64

	AllowRotation bool
	SubsetSize    int // hybrid only; 0 means DefaultSubsetSize

	Seed          int64
	Workers       int // 0 means 1 under an iteration cap, else GOMAXPROCS
	MaxIterations int // per worker, random and hybrid only; 0 means unbounded
	Timeout       time.Duration

	Logger *slog.Logger
}

// Result is the best arrangement found.
type Result struct {
	Instances []model.PlacementInstance
	Width     float64 // bounding box of the instances
	Height    float64
	Evaluated int64 // complete candidates packed
	Complete  bool  // every candidate was considered
}

// Area returns the bounding box area.
func (r Result) Area() float64 { return r.Width * r.Height }

// Search arranges repeat copies of every job. It returns when the strategy
// is exhausted, the iteration cap or timeout is reached, or ctx is
// cancelled; in the latter cases the best candidate found so far wins.
//
// Search fails with a *model.JobTooLargeError before searching when an
// instance cannot fit in any allowed orientation, and with
// model.ErrNoFeasiblePlacement when no candidate fit.
func Search(ctx context.Context, jobs []*model.Job, opts Options) (Result, error) {
	opts = opts.withDefaults()
	items, err := expand(jobs, opts)
	if err != nil {
		return Result{}, err
	}
	if len(items) == 0 {
		return Result{Complete: true}, nil
	}

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	s := &search{opts: opts, items: items, jobs: jobs}
	start := time.Now()
	complete := false
	switch opts.Strategy {
	case StrategyExhaustive:
		complete, err = s.exhaustive(ctx)
	case StrategyRandom:
		err = s.random(ctx)
	case StrategyHybrid:
		complete, err = s.hybrid(ctx)
	default:
		return Result{}, fmt.Errorf("unknown search strategy %q", opts.Strategy)
	}
	if err != nil {
		return Result{}, err
	}

	best := s.best.get()
	opts.Logger.Debug("placement search finished",
		"strategy", opts.Strategy,
		"candidates", s.evaluated.Load(),
		"complete", complete,
		"elapsed", time.Since(start))
	if best == nil {
		return Result{}, model.ErrNoFeasiblePlacement
	}
	return Result{
		Instances: s.instances(best.layout),
		Width:     best.w,
		Height:    best.h,
		Evaluated: s.evaluated.Load(),
		Complete:  complete,
	}, nil
}

func (o Options) withDefaults() Options {
	if o.Strategy == "" {
		o.Strategy = StrategyHybrid
	}
	if o.SubsetSize <= 0 {
		o.SubsetSize = DefaultSubsetSize
	}
	if o.Workers <= 0 {
		// a capped run reproduces only for a fixed worker count
		o.Workers = runtime.GOMAXPROCS(0)
		if o.MaxIterations > 0 {
			o.Workers = 1
		}
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.DiscardHandler)
	}
	return o
}

// expand turns jobs into instances sorted by largest dimension, biggest
// first. The sort is stable so equal items keep job order.
func expand(jobs []*model.Job, opts Options) ([]item, error) {
	var items []item
	for ji, j := range jobs {
		w, h := j.Width(), j.Height()
		fits := w <= opts.PanelWidth+eps && h <= opts.PanelHeight+eps
		if opts.AllowRotation {
			fits = fits || (h <= opts.PanelWidth+eps && w <= opts.PanelHeight+eps)
		}
		if !fits {
			return nil, &model.JobTooLargeError{
				Job: j.Name, Width: w, Height: h,
				PanelWidth: opts.PanelWidth, PanelHeight: opts.PanelHeight,
			}
		}
		repeat := j.Repeat
		if repeat < 1 {
			repeat = 1
		}
		for r := 1; r <= repeat; r++ {
			items = append(items, item{job: ji, index: r, w: w, h: h, square: w == h})
		}
	}
	sort.SliceStable(items, func(a, b int) bool {
		return max(items[a].w, items[a].h) > max(items[b].w, items[b].h)
	})
	return items, nil
}

// orientations lists the orientations worth trying for it.
func (s *search) orientations(it item) []bool {
	if s.opts.AllowRotation && !it.square {
		return []bool{false, true}
	}
	return []bool{false}
}

type search struct {
	opts      Options
	items     []item
	jobs      []*model.Job
	best      bestSlot
	evaluated atomic.Int64
}

func (s *search) newShelf() shelf {
	return newShelf(s.opts.PanelWidth, s.opts.PanelHeight, s.opts.XSpacing, s.opts.YSpacing)
}

func (s *search) instances(layout []placed) []model.PlacementInstance {
	out := make([]model.PlacementInstance, len(layout))
	for i, p := range layout {
		it := s.items[p.item]
		rot := 0
		if p.rotated {
			rot = 90
		}
		out[i] = model.PlacementInstance{
			Job:      s.jobs[it.job].Name,
			X:        p.x,
			Y:        p.y,
			Rotation: rot,
			Index:    it.index,
		}
	}
	return out
}

// candidate is a complete, feasible layout.
type candidate struct {
	layout  []placed
	w, h    float64
	ordinal []int
}

// less orders candidates by area, then largest dimension, then ordinal.
func (c *candidate) less(o *candidate) bool {
	ca, oa := c.w*c.h, o.w*o.h
	if ca != oa {
		return ca < oa
	}
	cm, om := max(c.w, c.h), max(o.w, o.h)
	if cm != om {
		return cm < om
	}
	return compareOrdinals(c.ordinal, o.ordinal) < 0
}

func compareOrdinals(a, b []int) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	return len(a) - len(b)
}

// bestSlot is the only state shared between search workers.
type bestSlot struct {
	mu sync.Mutex
	c  *candidate
}

// offer keeps c if it beats the current best. c must not be modified
// afterwards.
func (b *bestSlot) offer(c *candidate) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.c == nil || c.less(b.c) {
		b.c = c
		return true
	}
	return false
}

// beaten reports whether a partial layout with area a and largest
// dimension m can no longer produce a winner. Placing more items never
// shrinks either value.
func (b *bestSlot) beaten(a, m float64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.c == nil {
		return false
	}
	ba := b.c.w * b.c.h
	return a > ba || (a == ba && m > max(b.c.w, b.c.h))
}

func (b *bestSlot) get() *candidate {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.c
}
