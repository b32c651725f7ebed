// Package interp resolves requested times against stored time vectors and
// interpolates or resamples time-sliced data buffers.
//
// A resampling step dtime is a slice: empty means no resampling, a single
// value is a uniform step and more values are an explicit list of target
// times.
package interp

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/floats/scalar"

	"imascore/internal/alerrors"
	"imascore/internal/types"
)

const epsilon = 0x1p-52

// Bracket holds the indices of the stored samples around a requested time.
type Bracket struct {
	Inf, Sup int
}

// Slices holds the data blocks at the two bracketing samples.
type Slices struct {
	Inf, Sup *types.Buffer
}

// Times holds the times of the two bracketing samples.
type Times struct {
	Inf, Sup float64
}

// DataInterpolation carries no state. Its methods are safe for concurrent
// use on distinct buffers.
type DataInterpolation struct{}

func New() *DataInterpolation { return &DataInterpolation{} }

// GetSlicesTimesIndices returns the index selected for t under mode and the
// bracket around t in the ascending vector tv.
func (d *DataInterpolation) GetSlicesTimesIndices(t float64, tv []float64, mode types.InterpMode) (int, Bracket, error) {
	if !mode.Valid() {
		return -1, Bracket{}, alerrors.New(alerrors.BackendErr, "Interpolation mode not set or not supported")
	}
	if len(tv) == 0 {
		return -1, Bracket{}, alerrors.New(alerrors.BackendErr, "Empty time vector")
	}
	if mode == types.UndefinedInterp {
		mode = types.ClosestInterp
	}

	n := len(tv)
	sup := n - 1
	for i, v := range tv {
		if v >= t {
			sup = i
			if mode != types.ClosestInterp && sup == 0 && n > 1 {
				sup = 1
			}
			break
		}
	}
	br := Bracket{Inf: max(sup-1, 0), Sup: sup}

	switch mode {
	case types.ClosestInterp:
		if math.Abs(t-tv[br.Inf]) < math.Abs(t-tv[br.Sup]) {
			return br.Inf, br, nil
		}
		return br.Sup, br, nil
	case types.PreviousInterp:
		if br.Sup > 0 && (scalar.EqualWithinAbs(t, tv[br.Sup], epsilon) || t > tv[br.Sup]) {
			return br.Sup, br, nil
		}
		return br.Inf, br, nil
	}
	return br.Inf, br, nil
}

func uniformStep(dtime []float64) (float64, bool, error) {
	if len(dtime) != 1 {
		return 0, false, nil
	}
	if dtime[0] <= 0 {
		return 0, true, alerrors.Errorf(alerrors.BackendErr, "Resampling step must be positive, got %f", dtime[0])
	}
	return dtime[0], true, nil
}

// maxResampledTimes bounds the number of target times of a uniform step.
const maxResampledTimes = 1 << 24

func uniformCount(tmin, tmax, dt float64) (int, error) {
	n := math.Round((tmax-tmin)/dt + 1)
	switch {
	case math.IsNaN(n) || n > maxResampledTimes:
		return 0, alerrors.Errorf(alerrors.BackendErr, "Resampling step %g yields too many samples over [%g, %g]", dt, tmin, tmax)
	case n < 0:
		return 0, nil
	}
	return int(n), nil
}

func inRange(dtime []float64, tmin, tmax float64) []float64 {
	var out []float64
	for _, v := range dtime {
		if v >= tmin && v <= tmax {
			out = append(out, v)
		}
	}
	return out
}

func unset(v float64) bool {
	return v == types.EmptyDouble || v == types.UndefinedTime
}

// GetTimeRangeIndices locates the window [tmin, tmax] in tv. Without
// resampling the window covers the stored samples inside the range; a
// missing bound is reported as -1 with a zero count. With resampling the
// indices are the selected samples at tmax and tmin and the count is the
// number of target times. An empty tv yields the no-match window.
func (d *DataInterpolation) GetTimeRangeIndices(tmin, tmax float64, dtime, tv []float64, mode types.InterpMode) (minIndex, maxIndex, count int, err error) {
	if len(dtime) == 0 {
		minIndex, maxIndex = -1, -1
		for i, v := range tv {
			if v >= tmin {
				minIndex = i
				break
			}
		}
		for i := len(tv) - 1; i >= 0; i-- {
			if unset(tv[i]) {
				continue
			}
			if tv[i] <= tmax {
				maxIndex = i
				break
			}
		}
		if minIndex < 0 || maxIndex < 0 {
			return minIndex, maxIndex, 0, nil
		}
		return minIndex, maxIndex, max(maxIndex-minIndex+1, 0), nil
	}

	dt, uniform, err := uniformStep(dtime)
	if err != nil {
		return -1, -1, 0, err
	}
	if len(tv) == 0 {
		return -1, -1, 0, nil
	}
	if maxIndex, _, err = d.GetSlicesTimesIndices(tmax, tv, mode); err != nil {
		return -1, -1, 0, err
	}
	if minIndex, _, err = d.GetSlicesTimesIndices(tmin, tv, mode); err != nil {
		return -1, -1, 0, err
	}
	if uniform {
		count, err = uniformCount(tmin, tmax, dt)
		if err != nil {
			return -1, -1, 0, err
		}
		return minIndex, maxIndex, count, nil
	}
	return minIndex, maxIndex, len(inRange(dtime, tmin, tmax)), nil
}

func factor(t float64, times Times) float64 {
	switch {
	case t <= times.Inf:
		return 0
	case t >= times.Sup:
		return 1
	}
	return (t - times.Inf) / (times.Sup - times.Inf)
}

// Interpolate combines the two slices at time t. Only Linear blends: the
// other modes return slices.Inf as is, the selection being made by the
// caller. The Linear result is slices.Inf overwritten in place. Integers are
// rounded to the nearest value; characters do not blend, so differing
// neighbors yield an empty (zeroed) block.
func (d *DataInterpolation) Interpolate(dt types.DataType, shape int, slices Slices, times Times, t float64, mode types.InterpMode) (*types.Buffer, error) {
	if shape == 0 {
		return nil, alerrors.New(alerrors.BackendErr, "Unable to perform interpolation with shape=0.")
	}
	if slices.Inf == nil || slices.Inf.Type != dt || slices.Inf.Len() < shape {
		return nil, alerrors.Errorf(alerrors.BackendErr, "Lower slice does not hold %d %s elements", shape, dt)
	}
	if mode != types.LinearInterp {
		return slices.Inf, nil
	}
	if slices.Sup == nil {
		return nil, alerrors.New(alerrors.BackendErr, "Exactly 2 slices are required for LINEAR_INTERP interpolation mode.")
	}
	if slices.Sup.Type != dt || slices.Sup.Len() < shape {
		return nil, alerrors.Errorf(alerrors.BackendErr, "Upper slice does not hold %d %s elements", shape, dt)
	}

	inf, sup := slices.Inf, slices.Sup
	f := factor(t, times)

	if dt == types.CharData {
		for i := 0; i < shape; i++ {
			if inf.Chars[i] != sup.Chars[i] {
				clear(inf.Chars[:shape])
				break
			}
		}
		return inf, nil
	}
	if f == 0 {
		return inf, nil
	}

	switch dt {
	case types.IntegerData:
		for i := 0; i < shape; i++ {
			a, b := float64(inf.Ints[i]), float64(sup.Ints[i])
			inf.Ints[i] = int32(math.Round(a + (b-a)*f))
		}
	case types.DoubleData:
		for i := 0; i < shape; i++ {
			inf.Doubles[i] += (sup.Doubles[i] - inf.Doubles[i]) * f
		}
	case types.ComplexData:
		cf := complex(f, 0)
		for i := 0; i < shape; i++ {
			inf.Complex[i] += (sup.Complex[i] - inf.Complex[i]) * cf
		}
	}
	return inf, nil
}

// ResampleTimebasis builds the resampled time basis of [tmin, tmax]. With
// index -1 the whole basis is produced; otherwise the single time of the
// element at index of a time-dependent array of structures. The raw basis,
// which may be nil, is consumed. dtime must not be empty.
func (d *DataInterpolation) ResampleTimebasis(tmin, tmax float64, dtime []float64, index int, raw *types.Buffer) (int, *types.Buffer, error) {
	if len(dtime) == 0 {
		panic("interp: ResampleTimebasis called without resampling step")
	}
	if raw != nil {
		raw.Release()
	}
	dt, uniform, err := uniformStep(dtime)
	if err != nil {
		return 0, nil, err
	}

	if index >= 0 {
		if uniform {
			return 1, types.Doubles1D(tmin + float64(index)*dt), nil
		}
		in := inRange(dtime, tmin, tmax)
		if index >= len(in) {
			return 0, nil, alerrors.Errorf(alerrors.BackendErr, "Time basis index %d out of range of %d resampling times", index, len(in))
		}
		return 1, types.Doubles1D(in[index]), nil
	}

	if !uniform {
		out := inRange(dtime, tmin, tmax)
		return len(out), types.Doubles1D(out...), nil
	}
	n, err := uniformCount(tmin, tmax, dt)
	if err != nil {
		return 0, nil, err
	}
	if n <= 0 {
		return 0, types.Doubles1D(), nil
	}
	out := make([]float64, n)
	if n == 1 {
		out[0] = tmin
	} else {
		floats.Span(out, tmin, tmin+float64(n-1)*dt)
	}
	return n, types.Doubles1D(out...), nil
}

// TargetTimes lists the resampling target times of [tmin, tmax].
func TargetTimes(tmin, tmax float64, dtime []float64) ([]float64, error) {
	dt, uniform, err := uniformStep(dtime)
	if err != nil {
		return nil, err
	}
	if !uniform {
		return inRange(dtime, tmin, tmax), nil
	}
	if _, err := uniformCount(tmin, tmax, dt); err != nil {
		return nil, err
	}
	var out []float64
	limit := tmax + 1e-9*dt
	for k := 0; ; k++ {
		t := tmin + float64(k)*dt
		if t > limit {
			return out, nil
		}
		out = append(out, t)
	}
}

// ResamplingWindow returns the first and last stored samples that
// InterpolateWithResampling reads for [tmin, tmax]. The data handed to it
// must start at sample first. last < first when no target time falls in
// the stored range.
func (d *DataInterpolation) ResamplingWindow(tmin, tmax float64, dtime, tv []float64, mode types.InterpMode) (first, last int, err error) {
	targets, err := TargetTimes(tmin, tmax, dtime)
	if err != nil {
		return 0, -1, err
	}
	_, br, err := d.GetSlicesTimesIndices(tmin, tv, mode)
	if err != nil {
		return 0, -1, err
	}
	first, last = br.Inf, br.Inf-1
	for _, t := range targets {
		if t > tv[len(tv)-1] {
			break
		}
		_, br, err := d.GetSlicesTimesIndices(t, tv, mode)
		if err != nil {
			return 0, -1, err
		}
		last = max(last, br.Sup)
	}
	return first, last, nil
}

// InterpolateWithResampling resamples data onto the target times of
// [tmin, tmax]. data holds consecutive slices of shape elements starting
// at the sample returned as first by ResamplingWindow. Resampling stops
// at the last stored time; the number of produced slices is returned.
// data is consumed and must not be used afterwards.
func (d *DataInterpolation) InterpolateWithResampling(tmin, tmax float64, dtime []float64, dt types.DataType, shape int, data *types.Buffer, tv []float64, mode types.InterpMode) (int, *types.Buffer, error) {
	defer data.Release()

	if len(dtime) == 0 {
		return 0, nil, alerrors.New(alerrors.BackendErr, "Resampling requested without resampling step")
	}
	if shape == 0 {
		return 0, nil, alerrors.New(alerrors.BackendErr, "Unable to perform interpolation with shape=0.")
	}
	if data.Type != dt {
		return 0, nil, alerrors.Errorf(alerrors.BackendErr, "Cannot resample %s data as %s", data.Type, dt)
	}
	targets, err := TargetTimes(tmin, tmax, dtime)
	if err != nil {
		return 0, nil, err
	}
	_, start, err := d.GetSlicesTimesIndices(tmin, tv, mode)
	if err != nil {
		return 0, nil, err
	}

	sliceShape := []int{shape}
	if data.Dim() > 0 && data.SliceLen() == shape {
		sliceShape = append([]int(nil), data.Shape[:data.Dim()-1]...)
	}
	block := func(index int) (*types.Buffer, error) {
		b, err := data.Block(index-start.Inf, shape, sliceShape)
		if err != nil {
			return nil, alerrors.Errorf(alerrors.BackendErr, "sample %d: %v", index, err)
		}
		return b, nil
	}

	out := &types.Buffer{Type: dt}
	count := 0
	for _, t := range targets {
		if t > tv[len(tv)-1] {
			break
		}
		sel, br, err := d.GetSlicesTimesIndices(t, tv, mode)
		if err != nil {
			return 0, nil, err
		}

		var slices Slices
		times := Times{Inf: tv[br.Inf], Sup: tv[br.Sup]}
		if mode == types.LinearInterp {
			if slices.Inf, err = block(br.Inf); err != nil {
				return 0, nil, err
			}
			if slices.Sup, err = block(br.Sup); err != nil {
				return 0, nil, err
			}
		} else if slices.Inf, err = block(sel); err != nil {
			return 0, nil, err
		}

		res, err := d.Interpolate(dt, shape, slices, times, t, mode)
		if err != nil {
			return 0, nil, err
		}
		if err := out.AppendData(res); err != nil {
			return 0, nil, alerrors.New(alerrors.BackendErr, err.Error())
		}
		count++
	}

	out.Shape = append(append([]int(nil), sliceShape...), count)
	return count, out, nil
}
