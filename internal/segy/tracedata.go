package segy

import (
	"encoding/json"
	"math"
	"strconv"
)

// FixedPointSample is one fixed-point-with-gain sample. The gain is kept
// separate and is not applied at decode time.
type FixedPointSample struct {
	Gain  uint8 `json:"gain"`
	Value int16 `json:"value"`
}

// Float returns value × 2^gain. Large gains overflow to ±Inf.
func (s FixedPointSample) Float() float32 {
	v := math.Ldexp(float64(s.Value), int(s.Gain))
	if math.Abs(v) > math.MaxFloat32 {
		return float32(math.Inf(int(math.Copysign(1, v))))
	}
	return float32(v)
}

// TraceData is a closed union over the six sample encodings. Exactly one
// slice, selected by Format, is populated.
type TraceData struct {
	Format     SampleFormat       `json:"format"`
	IBM        []float32          `json:"ibm,omitempty"`
	IEEE       []float32          `json:"ieee,omitempty"`
	Int32      []int32            `json:"int32,omitempty"`
	Int16      []int16            `json:"int16,omitempty"`
	Int8       []int8             `json:"int8,omitempty"`
	FixedPoint []FixedPointSample `json:"fixedPoint,omitempty"`
}

// MarshalJSON writes NaN and infinite float samples as null, which
// encoding/json would otherwise refuse.
func (d TraceData) MarshalJSON() ([]byte, error) {
	type plain TraceData
	return json.Marshal(struct {
		plain
		IBM  jsonFloats `json:"ibm,omitempty"`
		IEEE jsonFloats `json:"ieee,omitempty"`
	}{plain(d), jsonFloats(d.IBM), jsonFloats(d.IEEE)})
}

type jsonFloats []float32

func (f jsonFloats) MarshalJSON() ([]byte, error) {
	if f == nil {
		return []byte("null"), nil
	}
	buf := make([]byte, 0, 2+len(f)*10)
	buf = append(buf, '[')
	for i, v := range f {
		if i > 0 {
			buf = append(buf, ',')
		}
		x := float64(v)
		if math.IsNaN(x) || math.IsInf(x, 0) {
			buf = append(buf, "null"...)
			continue
		}
		buf = strconv.AppendFloat(buf, x, 'g', -1, 32)
	}
	return append(buf, ']'), nil
}

// Len returns the number of samples.
func (d TraceData) Len() int {
	switch d.Format {
	case FormatIBMFloat32:
		return len(d.IBM)
	case FormatIEEEFloat32:
		return len(d.IEEE)
	case FormatInt32:
		return len(d.Int32)
	case FormatInt16:
		return len(d.Int16)
	case FormatInt8:
		return len(d.Int8)
	case FormatFixedPointWithGain:
		return len(d.FixedPoint)
	}
	return 0
}

// Float32s converts the samples to float32. Fixed-point samples apply
// their gain.
func (d TraceData) Float32s() []float32 {
	switch d.Format {
	case FormatIBMFloat32:
		return append([]float32(nil), d.IBM...)
	case FormatIEEEFloat32:
		return append([]float32(nil), d.IEEE...)
	case FormatInt32:
		return convert(d.Int32, func(v int32) float32 { return float32(v) })
	case FormatInt16:
		return convert(d.Int16, func(v int16) float32 { return float32(v) })
	case FormatInt8:
		return convert(d.Int8, func(v int8) float32 { return float32(v) })
	case FormatFixedPointWithGain:
		return convert(d.FixedPoint, FixedPointSample.Float)
	}
	return nil
}

func convert[T any](in []T, fn func(T) float32) []float32 {
	out := make([]float32, len(in))
	for i, v := range in {
		out[i] = fn(v)
	}
	return out
}

// Downsample keeps every stride-th sample, stride = ceil(len/max), starting
// at index 0. A zero max or a trace that already fits is returned as is.
func (d TraceData) Downsample(max int) TraceData {
	n := d.Len()
	if max <= 0 || n <= max {
		return d
	}
	stride := (n + max - 1) / max
	out := TraceData{Format: d.Format}
	switch d.Format {
	case FormatIBMFloat32:
		out.IBM = every(d.IBM, stride)
	case FormatIEEEFloat32:
		out.IEEE = every(d.IEEE, stride)
	case FormatInt32:
		out.Int32 = every(d.Int32, stride)
	case FormatInt16:
		out.Int16 = every(d.Int16, stride)
	case FormatInt8:
		out.Int8 = every(d.Int8, stride)
	case FormatFixedPointWithGain:
		out.FixedPoint = every(d.FixedPoint, stride)
	}
	return out
}

func every[T any](in []T, stride int) []T {
	out := make([]T, 0, (len(in)+stride-1)/stride)
	for i := 0; i < len(in); i += stride {
		out = append(out, in[i])
	}
	return out
}

// DecodeTraceData decodes n samples of the given format from data.
func DecodeTraceData(data []byte, format SampleFormat, n int, order ByteOrder) (TraceData, error) {
	const op = "trace data"
	width := format.BytesPerSample()
	if width == 0 {
		return TraceData{}, validationError(op, "invalid data sample format code: %d", int16(format))
	}
	if n < 0 {
		return TraceData{}, validationError(op, "negative sample count %d", n)
	}
	need, ok := checkedMul(n, width)
	if !ok {
		return TraceData{}, validationError(op, "trace data size overflow")
	}
	if len(data) < need {
		return TraceData{}, segyError(op, "need %d bytes for %d samples, have %d", need, n, len(data))
	}

	bo := order.Engine()
	out := TraceData{Format: format}
	switch format {
	case FormatIBMFloat32:
		out.IBM = make([]float32, n)
		for i := range out.IBM {
			out.IBM[i] = IBMToFloat32(bo.Uint32(data[i*4:]))
		}
	case FormatIEEEFloat32:
		out.IEEE = make([]float32, n)
		for i := range out.IEEE {
			out.IEEE[i] = math.Float32frombits(bo.Uint32(data[i*4:]))
		}
	case FormatInt32:
		out.Int32 = make([]int32, n)
		for i := range out.Int32 {
			out.Int32[i] = int32(bo.Uint32(data[i*4:]))
		}
	case FormatInt16:
		out.Int16 = make([]int16, n)
		for i := range out.Int16 {
			out.Int16[i] = int16(bo.Uint16(data[i*2:]))
		}
	case FormatInt8:
		out.Int8 = make([]int8, n)
		for i := range out.Int8 {
			out.Int8[i] = int8(data[i])
		}
	case FormatFixedPointWithGain:
		out.FixedPoint = make([]FixedPointSample, n)
		for i := range out.FixedPoint {
			b := data[i*4 : i*4+4]
			out.FixedPoint[i] = FixedPointSample{
				Gain:  b[1],
				Value: int16(bo.Uint16(b[2:4])),
			}
		}
	}
	return out, nil
}
