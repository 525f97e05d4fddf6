package engine

import (
	"context"
	"errors"
	"runtime"
	"testing"
	"time"

	"github.com/piwi3910/gerbmerge/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rectJob(name string, w, h float64, repeat int) *model.Job {
	return &model.Job{
		Name:            name,
		Units:           model.UnitsInch,
		Repeat:          repeat,
		Outline:         model.Rect{MaxX: w, MaxY: h}.Polygon(),
		OutlineExplicit: true,
	}
}

func testOptions(strategy Strategy, w, h, spacing float64) Options {
	return Options{
		Strategy:      strategy,
		PanelWidth:    w,
		PanelHeight:   h,
		XSpacing:      spacing,
		YSpacing:      spacing,
		Seed:          42,
		Workers:       2,
		MaxIterations: 200,
	}
}

func byName(jobs ...*model.Job) map[string]*model.Job {
	m := make(map[string]*model.Job, len(jobs))
	for _, j := range jobs {
		m[j.Name] = j
	}
	return m
}

// ─── Shelf Tests ───────────────────────────────────────────

func TestShelfStartsNewRowWhenFull(t *testing.T) {
	s := newShelf(3, 10, 0.5, 0.25)
	x, y, ok := s.add(1, 2)
	require.True(t, ok)
	assert.Equal(t, [2]float64{0, 0}, [2]float64{x, y})

	x, y, ok = s.add(1, 1)
	require.True(t, ok)
	assert.Equal(t, [2]float64{1.5, 0}, [2]float64{x, y})

	x, y, ok = s.add(1, 1)
	require.True(t, ok)
	assert.Equal(t, [2]float64{0, 2.25}, [2]float64{x, y})
	assert.InDelta(t, 2.5, s.w, 1e-12)
	assert.InDelta(t, 3.25, s.h, 1e-12)
}

func TestShelfRejectsOverflow(t *testing.T) {
	s := newShelf(2, 1, 0, 0)
	_, _, ok := s.add(1, 1)
	require.True(t, ok)
	_, _, ok = s.add(1, 1)
	require.True(t, ok)
	_, _, ok = s.add(1, 1)
	assert.False(t, ok, "third item needs a second row above the panel")
}

// ─── Search Tests ──────────────────────────────────────────

func TestSearchTwoSquaresInOneRow(t *testing.T) {
	jobs := []*model.Job{rectJob("a", 1, 1, 1), rectJob("b", 1, 1, 1)}
	for _, strategy := range []Strategy{StrategyExhaustive, StrategyRandom, StrategyHybrid} {
		t.Run(string(strategy), func(t *testing.T) {
			res, err := Search(context.Background(), jobs, testOptions(strategy, 3, 3, 0.1))
			require.NoError(t, err)
			require.Len(t, res.Instances, 2)
			assert.InDelta(t, 2.1, res.Width, 1e-9)
			assert.InDelta(t, 1.0, res.Height, 1e-9)
			assert.NoError(t, Check(res.Instances, byName(jobs...), testOptions(strategy, 3, 3, 0.1)))
		})
	}
}

func TestSearchJobTooLarge(t *testing.T) {
	_, err := Search(context.Background(), []*model.Job{rectJob("big", 5, 5, 1)}, testOptions(StrategyExhaustive, 4, 4, 0))
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrJobTooLarge))
	var tl *model.JobTooLargeError
	require.True(t, errors.As(err, &tl))
	assert.Equal(t, "big", tl.Job)
}

func TestSearchRotationRescuesTallJob(t *testing.T) {
	jobs := []*model.Job{rectJob("strip", 3, 1, 1)}

	_, err := Search(context.Background(), jobs, testOptions(StrategyExhaustive, 1, 3, 0))
	require.ErrorIs(t, err, model.ErrJobTooLarge)

	opts := testOptions(StrategyExhaustive, 1, 3, 0)
	opts.AllowRotation = true
	res, err := Search(context.Background(), jobs, opts)
	require.NoError(t, err)
	require.Len(t, res.Instances, 1)
	assert.Equal(t, 90, res.Instances[0].Rotation)
	assert.InDelta(t, 1.0, res.Width, 1e-12)
	assert.InDelta(t, 3.0, res.Height, 1e-12)
}

func TestSearchRepeatsAreSeparateInstances(t *testing.T) {
	jobs := []*model.Job{rectJob("cpu", 1, 2, 3)}
	opts := testOptions(StrategyExhaustive, 10, 10, 0.125)
	opts.AllowRotation = true
	res, err := Search(context.Background(), jobs, opts)
	require.NoError(t, err)
	require.Len(t, res.Instances, 3)

	labels := map[string]bool{}
	for _, inst := range res.Instances {
		labels[inst.Label()] = true
	}
	assert.Equal(t, map[string]bool{"cpu#1": true, "cpu#2": true, "cpu#3": true}, labels)
	assert.NoError(t, Check(res.Instances, byName(jobs...), opts))
}

func TestSearchPrefersSmallerMaxDimensionOnTie(t *testing.T) {
	// Side by side as 2x1 gives 4x1; rotated gives 2x2 with the same area.
	jobs := []*model.Job{rectJob("a", 2, 1, 1), rectJob("b", 2, 1, 1)}
	opts := testOptions(StrategyExhaustive, 10, 10, 0)
	opts.AllowRotation = true
	res, err := Search(context.Background(), jobs, opts)
	require.NoError(t, err)
	assert.InDelta(t, 4.0, res.Area(), 1e-12)
	assert.InDelta(t, 2.0, res.Width, 1e-12)
	assert.InDelta(t, 2.0, res.Height, 1e-12)
	assert.True(t, res.Complete)
}

func TestSearchNoFeasiblePlacement(t *testing.T) {
	jobs := []*model.Job{rectJob("a", 1, 1, 3)}
	_, err := Search(context.Background(), jobs, testOptions(StrategyExhaustive, 2, 1, 0))
	assert.ErrorIs(t, err, model.ErrNoFeasiblePlacement)
}

func TestSearchEmptyAndSingle(t *testing.T) {
	res, err := Search(context.Background(), nil, testOptions(StrategyHybrid, 5, 5, 0.1))
	require.NoError(t, err)
	assert.Empty(t, res.Instances)
	assert.Zero(t, res.Area())

	res, err = Search(context.Background(), []*model.Job{rectJob("only", 1.5, 0.5, 1)}, testOptions(StrategyRandom, 5, 5, 0.1))
	require.NoError(t, err)
	require.Len(t, res.Instances, 1)
	assert.Equal(t, model.PlacementInstance{Job: "only", Index: 1}, res.Instances[0])
	assert.InDelta(t, 1.5, res.Width, 1e-12)
	assert.InDelta(t, 0.5, res.Height, 1e-12)
}

func mixedJobs() []*model.Job {
	return []*model.Job{
		rectJob("a", 2, 1, 2),
		rectJob("b", 1.5, 1.5, 1),
		rectJob("c", 3, 0.5, 1),
		rectJob("d", 0.75, 1.25, 2),
	}
}

func TestSearchDeterministicWithSeed(t *testing.T) {
	for _, strategy := range []Strategy{StrategyRandom, StrategyHybrid} {
		t.Run(string(strategy), func(t *testing.T) {
			opts := testOptions(strategy, 8, 8, 0.1)
			opts.AllowRotation = true
			opts.Workers = 3
			opts.MaxIterations = 40

			first, err := Search(context.Background(), mixedJobs(), opts)
			require.NoError(t, err)
			second, err := Search(context.Background(), mixedJobs(), opts)
			require.NoError(t, err)
			assert.Equal(t, first.Instances, second.Instances)
			assert.NoError(t, Check(first.Instances, byName(mixedJobs()...), opts))
		})
	}
}

func TestExhaustiveIgnoresSeed(t *testing.T) {
	opts := testOptions(StrategyExhaustive, 8, 8, 0.1)
	opts.AllowRotation = true
	first, err := Search(context.Background(), mixedJobs(), opts)
	require.NoError(t, err)

	opts.Seed = 99
	opts.Workers = 5
	second, err := Search(context.Background(), mixedJobs(), opts)
	require.NoError(t, err)
	assert.Equal(t, first.Instances, second.Instances)
	assert.True(t, second.Complete)
}

func TestExhaustiveIsNoWorseThanRandom(t *testing.T) {
	opts := testOptions(StrategyExhaustive, 8, 8, 0.1)
	opts.AllowRotation = true
	full, err := Search(context.Background(), mixedJobs(), opts)
	require.NoError(t, err)

	opts.Strategy = StrategyRandom
	rnd, err := Search(context.Background(), mixedJobs(), opts)
	require.NoError(t, err)
	assert.LessOrEqual(t, full.Area(), rnd.Area()+1e-9)
}

func TestSearchCancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	opts := testOptions(StrategyRandom, 8, 8, 0.1)
	_, err := Search(ctx, mixedJobs(), opts)
	assert.ErrorIs(t, err, model.ErrNoFeasiblePlacement)
}

func TestSearchTimeoutKeepsBest(t *testing.T) {
	opts := testOptions(StrategyRandom, 8, 8, 0.1)
	opts.MaxIterations = 0
	opts.Timeout = 50 * time.Millisecond
	res, err := Search(context.Background(), mixedJobs(), opts)
	require.NoError(t, err)
	assert.Len(t, res.Instances, 6)
	assert.False(t, res.Complete)
	assert.Positive(t, res.Evaluated)
}

func TestSquareJobSearchedInOneOrientation(t *testing.T) {
	jobs := []*model.Job{rectJob("sq", 1, 1, 2)}
	plain := testOptions(StrategyExhaustive, 5, 5, 0.1)
	rotating := plain
	rotating.AllowRotation = true

	a, err := Search(context.Background(), jobs, plain)
	require.NoError(t, err)
	b, err := Search(context.Background(), jobs, rotating)
	require.NoError(t, err)
	assert.Equal(t, a.Evaluated, b.Evaluated, "a quarter turn adds no candidates")
	assert.InDelta(t, a.Area(), b.Area(), 1e-12)
	for _, inst := range b.Instances {
		assert.Zero(t, inst.Rotation)
	}
}

func TestWorkersDefault(t *testing.T) {
	capped := Options{MaxIterations: 50}.withDefaults()
	assert.Equal(t, 1, capped.Workers, "capped runs do not depend on the CPU count")

	open := Options{}.withDefaults()
	assert.Equal(t, runtime.GOMAXPROCS(0), open.Workers)

	explicit := Options{MaxIterations: 50, Workers: 3}.withDefaults()
	assert.Equal(t, 3, explicit.Workers)
}

func TestSearchUnknownStrategy(t *testing.T) {
	_, err := Search(context.Background(), mixedJobs(), testOptions("annealing", 8, 8, 0))
	assert.Error(t, err)
}

// ─── Layout Tests ──────────────────────────────────────────

func TestRowsStackBottomUp(t *testing.T) {
	jobs := byName(rectJob("a", 2, 1, 1), rectJob("b", 1, 1.5, 1))
	opts := testOptions(StrategyExhaustive, 10, 10, 0.1)
	res, err := Rows([][]RowEntry{
		{{Job: "a"}, {Job: "b"}},
		{{Job: "a", Rotated: true}},
	}, jobs, opts)
	require.NoError(t, err)
	require.Len(t, res.Instances, 3)

	assert.Equal(t, model.PlacementInstance{Job: "a", X: 0, Y: 0, Index: 1}, res.Instances[0])
	assert.InDelta(t, 2.1, res.Instances[1].X, 1e-12)
	assert.InDelta(t, 1.6, res.Instances[2].Y, 1e-12)
	assert.Equal(t, 90, res.Instances[2].Rotation)
	assert.Equal(t, 2, res.Instances[2].Index)
	assert.InDelta(t, 3.1, res.Width, 1e-12)
	assert.InDelta(t, 3.6, res.Height, 1e-12)
}

func TestRowsUnknownJob(t *testing.T) {
	_, err := Rows([][]RowEntry{{{Job: "ghost"}}}, byName(), testOptions(StrategyExhaustive, 10, 10, 0))
	assert.ErrorContains(t, err, "ghost")
}

func TestCheckDetectsProblems(t *testing.T) {
	jobs := byName(rectJob("a", 1, 1, 1))
	opts := testOptions(StrategyExhaustive, 3, 3, 0.1)

	tests := []struct {
		name      string
		instances []model.PlacementInstance
		wantErr   bool
	}{
		{"spaced", []model.PlacementInstance{{Job: "a", Index: 1}, {Job: "a", X: 1.1, Index: 2}}, false},
		{"too close", []model.PlacementInstance{{Job: "a", Index: 1}, {Job: "a", X: 1.05, Index: 2}}, true},
		{"diagonal neighbours", []model.PlacementInstance{{Job: "a", Index: 1}, {Job: "a", X: 1.05, Y: 1.1, Index: 2}}, false},
		{"outside panel", []model.PlacementInstance{{Job: "a", X: 2.5, Index: 1}}, true},
		{"unknown job", []model.PlacementInstance{{Job: "b", Index: 1}}, true},
		{"odd rotation", []model.PlacementInstance{{Job: "a", Rotation: 45, Index: 1}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Check(tt.instances, jobs, opts)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
