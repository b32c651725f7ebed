package interp

import (
	"math"
	"math/rand"
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imascore/internal/alerrors"
	"imascore/internal/types"
)

var grid = []float64{0, 1, 2, 3, 4}

var approx = cmpopts.EquateApprox(0, 1e-12)

func TestGetSlicesTimesIndicesScenarios(t *testing.T) {
	d := New()

	sel, br, err := d.GetSlicesTimesIndices(1.5, grid, types.LinearInterp)
	require.NoError(t, err)
	assert.Equal(t, Bracket{Inf: 1, Sup: 2}, br)
	assert.Equal(t, 1, sel)

	sel, _, err = d.GetSlicesTimesIndices(1.5, grid, types.ClosestInterp)
	require.NoError(t, err)
	assert.Equal(t, 2, sel, "ties resolve to the upper sample")

	sel, _, err = d.GetSlicesTimesIndices(0.9, grid, types.PreviousInterp)
	require.NoError(t, err)
	assert.Equal(t, 0, sel)

	sel, _, err = d.GetSlicesTimesIndices(1.0, grid, types.PreviousInterp)
	require.NoError(t, err)
	assert.Equal(t, 1, sel)

	// undefined behaves as closest
	sel, _, err = d.GetSlicesTimesIndices(1.4, grid, types.UndefinedInterp)
	require.NoError(t, err)
	assert.Equal(t, 1, sel)
}

func TestGetSlicesTimesIndicesEdges(t *testing.T) {
	d := New()

	_, br, err := d.GetSlicesTimesIndices(-1, grid, types.LinearInterp)
	require.NoError(t, err)
	assert.Equal(t, Bracket{Inf: 0, Sup: 1}, br, "lower bracket shifted forward")

	sel, br, err := d.GetSlicesTimesIndices(-1, grid, types.ClosestInterp)
	require.NoError(t, err)
	assert.Equal(t, Bracket{}, br)
	assert.Equal(t, 0, sel)

	sel, br, err = d.GetSlicesTimesIndices(10, grid, types.PreviousInterp)
	require.NoError(t, err)
	assert.Equal(t, Bracket{Inf: 3, Sup: 4}, br)
	assert.Equal(t, 4, sel)

	sel, br, err = d.GetSlicesTimesIndices(3, []float64{7}, types.LinearInterp)
	require.NoError(t, err)
	assert.Equal(t, Bracket{}, br)
	assert.Equal(t, 0, sel)
}

func TestGetSlicesTimesIndicesErrors(t *testing.T) {
	d := New()
	_, _, err := d.GetSlicesTimesIndices(1, grid, types.InterpMode(42))
	assert.True(t, alerrors.Is(err, alerrors.BackendErr))

	_, _, err = d.GetSlicesTimesIndices(1, nil, types.ClosestInterp)
	assert.True(t, alerrors.Is(err, alerrors.BackendErr))
}

func randomGrid(r *rand.Rand, n int) []float64 {
	tv := make([]float64, n)
	for i := range tv {
		tv[i] = r.Float64() * 100
	}
	sort.Float64s(tv)
	return tv
}

func TestGetSlicesTimesIndicesProperties(t *testing.T) {
	d := New()
	r := rand.New(rand.NewSource(7))
	modes := []types.InterpMode{types.ClosestInterp, types.PreviousInterp, types.LinearInterp}

	for iter := 0; iter < 500; iter++ {
		tv := randomGrid(r, 2+r.Intn(20))
		rt := tv[0] + r.Float64()*(tv[len(tv)-1]-tv[0])

		for _, mode := range modes {
			sel, br, err := d.GetSlicesTimesIndices(rt, tv, mode)
			require.NoError(t, err)

			require.LessOrEqual(t, br.Inf, br.Sup)
			require.Contains(t, []int{0, 1}, br.Sup-br.Inf)
			require.LessOrEqual(t, tv[br.Inf], rt)
			require.GreaterOrEqual(t, tv[br.Sup], rt)

			switch mode {
			case types.ClosestInterp:
				di, ds := math.Abs(rt-tv[br.Inf]), math.Abs(rt-tv[br.Sup])
				if ds <= di {
					require.Equal(t, br.Sup, sel)
				} else {
					require.Equal(t, br.Inf, sel)
				}
			case types.PreviousInterp:
				if rt >= tv[br.Sup] && br.Sup > 0 {
					require.Equal(t, br.Sup, sel)
				} else {
					require.Equal(t, br.Inf, sel)
				}
			case types.LinearInterp:
				require.Equal(t, br.Inf, sel)
			}
		}
	}
}

func TestGetTimeRangeIndices(t *testing.T) {
	d := New()

	lo, hi, n, err := d.GetTimeRangeIndices(0.5, 3.2, nil, grid, types.UndefinedInterp)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 3, 3}, []int{lo, hi, n})

	// no sample at or after tmin
	lo, hi, n, err = d.GetTimeRangeIndices(7, 9, nil, grid, types.UndefinedInterp)
	require.NoError(t, err)
	assert.Equal(t, -1, lo)
	assert.Equal(t, 4, hi)
	assert.Equal(t, 0, n)

	// no sample at or before tmax
	lo, hi, n, err = d.GetTimeRangeIndices(-3, -2, nil, grid, types.UndefinedInterp)
	require.NoError(t, err)
	assert.Equal(t, -1, hi)
	assert.Equal(t, 0, lo)
	assert.Equal(t, 0, n)

	// unset trailing entries are skipped
	padded := []float64{0, 1, 2, types.EmptyDouble, types.UndefinedTime}
	_, hi, n, err = d.GetTimeRangeIndices(0, 10, nil, padded, types.UndefinedInterp)
	require.NoError(t, err)
	assert.Equal(t, 2, hi)
	assert.Equal(t, 3, n)

	// uniform resampling
	lo, hi, n, err = d.GetTimeRangeIndices(0.5, 3.5, []float64{0.5}, grid, types.PreviousInterp)
	require.NoError(t, err)
	assert.Equal(t, 0, lo)
	assert.Equal(t, 3, hi)
	assert.Equal(t, 7, n)

	// explicit grid
	_, _, n, err = d.GetTimeRangeIndices(1, 3, []float64{0.5, 1, 1.7, 3, 3.5}, grid, types.ClosestInterp)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	_, _, _, err = d.GetTimeRangeIndices(0, 1, []float64{-1}, grid, types.ClosestInterp)
	assert.True(t, alerrors.Is(err, alerrors.BackendErr))
}

func TestGetTimeRangeIndicesEmptyTimeVector(t *testing.T) {
	d := New()
	for _, dtime := range [][]float64{nil, {0.5}, {0.2, 0.4}} {
		lo, hi, n, err := d.GetTimeRangeIndices(0, 1, dtime, nil, types.LinearInterp)
		require.NoError(t, err)
		assert.Equal(t, []int{-1, -1, 0}, []int{lo, hi, n}, "dtime %v", dtime)
	}
}

func TestUniformStepTooSmall(t *testing.T) {
	d := New()

	_, _, err := d.ResampleTimebasis(0, 1, []float64{1e-300}, -1, nil)
	assert.True(t, alerrors.Is(err, alerrors.BackendErr))

	_, _, _, err = d.GetTimeRangeIndices(0, 1, []float64{1e-300}, grid, types.ClosestInterp)
	assert.True(t, alerrors.Is(err, alerrors.BackendErr))

	_, err = TargetTimes(0, 1, []float64{1e-300})
	assert.True(t, alerrors.Is(err, alerrors.BackendErr))

	n, _, err := d.ResampleTimebasis(2, 1, []float64{1e-300}, -1, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestInterpolateLinear(t *testing.T) {
	d := New()
	times := Times{Inf: 1, Sup: 2}
	mk := func() Slices {
		return Slices{Inf: types.Doubles1D(1, 2, 3), Sup: types.Doubles1D(3, 6, 9)}
	}

	s := mk()
	res, err := d.Interpolate(types.DoubleData, 3, s, times, 1, types.LinearInterp)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3}, res.Doubles)
	assert.Same(t, s.Inf, res, "result aliases the lower slice")

	res, err = d.Interpolate(types.DoubleData, 3, mk(), times, 2, types.LinearInterp)
	require.NoError(t, err)
	assert.Equal(t, []float64{3, 6, 9}, res.Doubles)

	res, err = d.Interpolate(types.DoubleData, 3, mk(), times, 1.5, types.LinearInterp)
	require.NoError(t, err)
	assert.True(t, cmp.Equal([]float64{2, 4, 6}, res.Doubles, approx))

	// factor clamps outside the bracket
	res, err = d.Interpolate(types.DoubleData, 3, mk(), times, 5, types.LinearInterp)
	require.NoError(t, err)
	assert.Equal(t, []float64{3, 6, 9}, res.Doubles)
	res, err = d.Interpolate(types.DoubleData, 3, mk(), times, -5, types.LinearInterp)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3}, res.Doubles)
}

func TestInterpolateIntegersRound(t *testing.T) {
	d := New()
	s := Slices{Inf: types.Ints1D(0, 10, -3), Sup: types.Ints1D(1, 13, 4)}
	res, err := d.Interpolate(types.IntegerData, 3, s, Times{Inf: 0, Sup: 1}, 0.6, types.LinearInterp)
	require.NoError(t, err)
	// 0.6, 11.8, 1.2
	assert.Equal(t, []int32{1, 12, 1}, res.Ints)
}

func TestInterpolateComplex(t *testing.T) {
	d := New()
	s := Slices{
		Inf: &types.Buffer{Type: types.ComplexData, Shape: []int{1}, Complex: []complex128{complex(0, 2)}},
		Sup: &types.Buffer{Type: types.ComplexData, Shape: []int{1}, Complex: []complex128{complex(4, 6)}},
	}
	res, err := d.Interpolate(types.ComplexData, 1, s, Times{Inf: 0, Sup: 4}, 1, types.LinearInterp)
	require.NoError(t, err)
	assert.Equal(t, complex(1, 3), res.Complex[0])
}

func TestInterpolateChars(t *testing.T) {
	d := New()
	times := Times{Inf: 0, Sup: 1}

	res, err := d.Interpolate(types.CharData, 3, Slices{Inf: types.String1D("abc"), Sup: types.String1D("abc")}, times, 0.5, types.LinearInterp)
	require.NoError(t, err)
	assert.Equal(t, "abc", res.String())

	res, err = d.Interpolate(types.CharData, 3, Slices{Inf: types.String1D("abc"), Sup: types.String1D("abd")}, times, 0.1, types.LinearInterp)
	require.NoError(t, err)
	assert.Equal(t, "", res.String())
}

func TestInterpolateNonLinear(t *testing.T) {
	d := New()
	inf := types.Doubles1D(1, 2)
	for _, mode := range []types.InterpMode{types.ClosestInterp, types.PreviousInterp, types.UndefinedInterp} {
		res, err := d.Interpolate(types.DoubleData, 2, Slices{Inf: inf}, Times{}, 0, mode)
		require.NoError(t, err)
		assert.Same(t, inf, res)
		assert.Equal(t, []float64{1, 2}, res.Doubles)
	}
}

func TestInterpolateErrors(t *testing.T) {
	d := New()
	s := Slices{Inf: types.Doubles1D(1), Sup: types.Doubles1D(2)}

	_, err := d.Interpolate(types.DoubleData, 0, s, Times{Sup: 1}, 0.5, types.LinearInterp)
	assert.True(t, alerrors.Is(err, alerrors.BackendErr))
	_, err = d.Interpolate(types.DoubleData, 0, s, Times{Sup: 1}, 0.5, types.ClosestInterp)
	assert.True(t, alerrors.Is(err, alerrors.BackendErr))

	_, err = d.Interpolate(types.DoubleData, 1, Slices{Inf: s.Inf}, Times{Sup: 1}, 0.5, types.LinearInterp)
	assert.True(t, alerrors.Is(err, alerrors.BackendErr))

	_, err = d.Interpolate(types.IntegerData, 1, s, Times{Sup: 1}, 0.5, types.LinearInterp)
	assert.True(t, alerrors.Is(err, alerrors.BackendErr))
}

func TestResampleTimebasis(t *testing.T) {
	d := New()

	raw := types.Doubles1D(0, 1, 2, 3, 4, 5, 6, 7, 8, 9)
	n, tb, err := d.ResampleTimebasis(0, 9, []float64{1}, -1, raw)
	require.NoError(t, err)
	assert.Equal(t, 10, n)
	assert.True(t, cmp.Equal([]float64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, tb.Doubles, approx))
	assert.True(t, raw.Released())

	n, tb, err = d.ResampleTimebasis(1, 2, []float64{0.25}, 3, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []float64{1.75}, tb.Doubles)

	n, tb, err = d.ResampleTimebasis(1, 3, []float64{0.5, 1.2, 2.5, 4}, -1, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []float64{1.2, 2.5}, tb.Doubles)

	_, tb, err = d.ResampleTimebasis(1, 3, []float64{0.5, 1.2, 2.5, 4}, 1, nil)
	require.NoError(t, err)
	assert.Equal(t, []float64{2.5}, tb.Doubles)

	_, _, err = d.ResampleTimebasis(1, 3, []float64{0.5, 1.2, 2.5, 4}, 5, nil)
	assert.True(t, alerrors.Is(err, alerrors.BackendErr))

	assert.Panics(t, func() { _, _, _ = d.ResampleTimebasis(0, 1, nil, -1, nil) })
}

func TestTargetTimes(t *testing.T) {
	ts, err := TargetTimes(0, 1, []float64{0.1})
	require.NoError(t, err)
	assert.Len(t, ts, 11, "accumulated rounding must not drop tmax")

	ts, err = TargetTimes(0, 2.6, []float64{1})
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1, 2}, ts)
}

func TestInterpolateWithResamplingLinear(t *testing.T) {
	d := New()
	// two elements per slice, value = 10*t + element
	data := &types.Buffer{
		Type:    types.DoubleData,
		Shape:   []int{2, 5},
		Doubles: []float64{0, 1, 10, 11, 20, 21, 30, 31, 40, 41},
	}
	first, last, err := d.ResamplingWindow(0.5, 2.5, []float64{0.5}, grid, types.LinearInterp)
	require.NoError(t, err)
	assert.Equal(t, 0, first)
	assert.Equal(t, 3, last)

	n, out, err := d.InterpolateWithResampling(0.5, 2.5, []float64{0.5}, types.DoubleData, 2, data, grid, types.LinearInterp)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, []int{2, 5}, out.Shape)
	want := []float64{5, 6, 10, 11, 15, 16, 20, 21, 25, 26}
	assert.True(t, cmp.Equal(want, out.Doubles, approx), cmp.Diff(want, out.Doubles, approx))
	assert.True(t, data.Released(), "input is consumed")
}

func TestInterpolateWithResamplingWindowOffset(t *testing.T) {
	d := New()
	// data window starts at sample 2
	first, last, err := d.ResamplingWindow(2.2, 3.6, []float64{0.7}, grid, types.PreviousInterp)
	require.NoError(t, err)
	assert.Equal(t, 2, first)
	assert.Equal(t, 4, last)

	data := types.Ints1D(200, 300, 400)
	n, out, err := d.InterpolateWithResampling(2.2, 3.6, []float64{0.7}, types.IntegerData, 1, data, grid, types.PreviousInterp)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, []int32{200, 200, 300}, out.Ints)
	assert.Equal(t, []int{3}, out.Shape)
}

func TestInterpolateWithResamplingStopsEarly(t *testing.T) {
	d := New()
	first, last, err := d.ResamplingWindow(3, 10, []float64{0.5}, grid, types.ClosestInterp)
	require.NoError(t, err)
	assert.Equal(t, 2, first)
	assert.Equal(t, 4, last)

	data := types.Doubles1D(2, 3, 4)
	n, out, err := d.InterpolateWithResampling(3, 10, []float64{0.5}, types.DoubleData, 1, data, grid, types.ClosestInterp)
	require.NoError(t, err)
	// targets past the last stored time are dropped
	assert.Equal(t, 3, n)
	assert.Equal(t, []float64{3, 4, 4}, out.Doubles)
}

func TestInterpolateWithResamplingExplicit(t *testing.T) {
	d := New()
	data := types.Doubles1D(0, 10, 20, 30, 40)
	n, out, err := d.InterpolateWithResampling(0, 4, []float64{0.25, 3.5}, types.DoubleData, 1, data, grid, types.LinearInterp)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.True(t, cmp.Equal([]float64{2.5, 35}, out.Doubles, approx))
}

func TestInterpolateWithResamplingErrors(t *testing.T) {
	d := New()

	data := types.Doubles1D(1, 2)
	_, _, err := d.InterpolateWithResampling(0, 1, nil, types.DoubleData, 1, data, []float64{0, 1}, types.LinearInterp)
	assert.True(t, alerrors.Is(err, alerrors.BackendErr))
	assert.True(t, data.Released())

	_, _, err = d.InterpolateWithResampling(0, 1, []float64{1}, types.DoubleData, 0, types.Doubles1D(1, 2), []float64{0, 1}, types.LinearInterp)
	assert.True(t, alerrors.Is(err, alerrors.BackendErr))

	// data shorter than the window
	_, _, err = d.InterpolateWithResampling(0, 1, []float64{1}, types.DoubleData, 1, types.Doubles1D(1), []float64{0, 1}, types.LinearInterp)
	assert.True(t, alerrors.Is(err, alerrors.BackendErr))
}
