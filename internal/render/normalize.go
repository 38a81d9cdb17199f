package render

import (
	"math"
	"sort"

	"example.com/segyview/internal/segy"
)

const rmsFloor = 1e-10

// Normalize converts every trace to float32 and applies s. The result has
// one slice per input trace, in input order.
func Normalize(traces []segy.TraceData, s Scaling, workers int) ([][]float32, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	out := make([][]float32, len(traces))
	if len(traces) == 0 {
		return out, nil
	}

	var each func([]float32)
	switch s.Kind {
	case ScaleGlobal:
		denom := s.MaxAmplitude
		each = func(v []float32) {
			for i := range v {
				v[i] /= denom
			}
		}
	case ScalePerTrace:
		if s.WindowSize > 0 {
			window := s.WindowSize
			each = func(v []float32) { windowedAGC(v, window) }
		} else {
			each = peakNormalize
		}
	case ScalePercentile:
		// Pooled over all traces, so conversion happens up front.
		parallelRange(len(traces), workers, func(start, end int) {
			for i := start; i < end; i++ {
				out[i] = traces[i].Float32s()
			}
		})
		p := percentileValue(out, s.Percentile)
		parallelRange(len(out), workers, func(start, end int) {
			for i := start; i < end; i++ {
				v := out[i]
				for j := range v {
					v[j] = clamp(v[j] / p)
				}
			}
		})
		return out, nil
	case ScaleManual:
		scale := s.Scale
		each = func(v []float32) {
			for i := range v {
				v[i] *= scale
			}
		}
	}

	parallelRange(len(traces), workers, func(start, end int) {
		for i := start; i < end; i++ {
			v := traces[i].Float32s()
			each(v)
			out[i] = v
		}
	})
	return out, nil
}

func clamp(v float32) float32 {
	if v < -1 {
		return -1
	}
	if v > 1 {
		return 1
	}
	return v
}

// peakNormalize divides by the largest absolute sample. An all-zero trace
// is left unchanged.
func peakNormalize(v []float32) {
	var peak float32
	for _, x := range v {
		if a := float32(math.Abs(float64(x))); a > peak {
			peak = a
		}
	}
	if peak == 0 {
		return
	}
	for i := range v {
		v[i] /= peak
	}
}

// windowedAGC scales each sample by the inverse RMS of the window
// [i-w/2, i+w/2] clipped to the trace, then clamps to [-1, 1].
func windowedAGC(v []float32, window int) {
	n := len(v)
	if n == 0 {
		return
	}
	half := window / 2
	src := append([]float32(nil), v...)
	for i := range src {
		start := i - half
		if start < 0 {
			start = 0
		}
		end := i + half + 1
		if end > n {
			end = n
		}
		rms := rmsOf(src[start:end])
		gain := float32(1)
		if rms > rmsFloor {
			gain = 1 / rms
		}
		v[i] = clamp(src[i] * gain)
	}
}

func rmsOf(v []float32) float32 {
	if len(v) == 0 {
		return 1
	}
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return float32(math.Sqrt(sum / float64(len(v))))
}

// percentileValue returns the absolute amplitude at floor(N·p) across all
// traces, floored at 1e-10. No samples gives 1.
func percentileValue(traces [][]float32, p float32) float32 {
	var n int
	for _, t := range traces {
		n += len(t)
	}
	if n == 0 {
		return 1
	}
	abs := make([]float64, 0, n)
	for _, t := range traces {
		for _, x := range t {
			abs = append(abs, math.Abs(float64(x)))
		}
	}
	sort.Float64s(abs)
	idx := int(math.Floor(float64(n) * float64(p)))
	if idx > n-1 {
		idx = n - 1
	}
	if idx < 0 {
		idx = 0
	}
	v := abs[idx]
	if v < rmsFloor || math.IsNaN(v) {
		v = rmsFloor
	}
	return float32(v)
}
