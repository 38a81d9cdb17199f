package segy_test

import (
	"encoding/binary"
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/segyview/internal/segy"
	"example.com/segyview/internal/segytest"
)

func TestBytesPerSample(t *testing.T) {
	want := map[int16]int{1: 4, 2: 4, 3: 2, 4: 4, 5: 4, 8: 1}
	for code, size := range want {
		f, err := segy.ParseSampleFormat(code)
		require.NoError(t, err, "code %d", code)
		assert.Equal(t, size, f.BytesPerSample(), "code %d", code)
	}
	for _, code := range []int16{0, 6, 7, 9, 16, -1} {
		_, err := segy.ParseSampleFormat(code)
		assert.Error(t, err, "code %d", code)
	}
}

func TestTraceBlockSize(t *testing.T) {
	for _, code := range []int16{1, 2, 3, 4, 5, 8} {
		format, err := segy.ParseSampleFormat(code)
		require.NoError(t, err)
		for _, samples := range []int16{1, 80, 1000, 32767} {
			h := &segy.BinaryHeader{SamplesPerTrace: samples, DataSampleFormat: format}
			size, err := h.TraceBlockSize()
			require.NoError(t, err)
			assert.Equal(t, 240+int(samples)*format.BytesPerSample(), size)
		}
	}

	_, err := (&segy.BinaryHeader{SamplesPerTrace: 0, DataSampleFormat: segy.FormatInt16}).TraceBlockSize()
	assert.ErrorIs(t, err, segy.ErrValidation)
	_, err = (&segy.BinaryHeader{SamplesPerTrace: -5, DataSampleFormat: segy.FormatInt16}).TraceBlockSize()
	assert.ErrorIs(t, err, segy.ErrValidation)
}

func TestDownsample(t *testing.T) {
	data := segy.TraceData{Format: segy.FormatInt32, Int32: []int32{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}}
	got := data.Downsample(4)
	assert.Equal(t, []int32{1, 4, 7, 10}, got.Int32)

	assert.Equal(t, data, data.Downsample(0))
	assert.Equal(t, data, data.Downsample(10))
	assert.Equal(t, data, data.Downsample(50))

	ibm := segy.TraceData{Format: segy.FormatIBMFloat32, IBM: []float32{0, 1, 2, 3, 4, 5, 6}}
	assert.Equal(t, []float32{0, 3, 6}, ibm.Downsample(3).IBM)

	fixed := segy.TraceData{Format: segy.FormatFixedPointWithGain, FixedPoint: make([]segy.FixedPointSample, 9)}
	assert.Equal(t, 5, fixed.Downsample(5).Len())
}

func TestIBMToFloat32(t *testing.T) {
	assert.Equal(t, float32(0), segy.IBMToFloat32(0))
	assert.Equal(t, float32(1), segy.IBMToFloat32(0x41100000))
	assert.Equal(t, float32(-118.625), segy.IBMToFloat32(0xC276A000))
	assert.Equal(t, float32(0.5), segy.IBMToFloat32(0x40800000))

	negZero := segy.IBMToFloat32(0x80000000)
	assert.True(t, math.Signbit(float64(negZero)))
	assert.Equal(t, float32(0), negZero)

	assert.True(t, math.IsInf(float64(segy.IBMToFloat32(0x7FFFFFFF)), 1))
	assert.True(t, math.IsInf(float64(segy.IBMToFloat32(0xFFFFFFFF)), -1))
	assert.Equal(t, float32(0), segy.IBMToFloat32(0x00100000))

	for bits := uint64(0); bits <= math.MaxUint32; bits += 0x10001 {
		v := segy.IBMToFloat32(uint32(bits))
		require.False(t, math.IsNaN(float64(v)), "bits %#08x", bits)
	}
}

func TestIBMRoundTrip(t *testing.T) {
	for _, v := range []float32{1, -1, 0.25, 3.5, -118.625, 1024, 1e-3, 6.5e5} {
		got := segy.IBMToFloat32(segy.Float32ToIBM(v))
		assert.InDelta(t, v, got, math.Abs(float64(v))*1e-6, "value %v", v)
	}
}

func orderBuffer(order binary.ByteOrder, interval, samples uint16) []byte {
	buf := make([]byte, segy.BinaryHeaderSize)
	order.PutUint16(buf[16:], interval)
	order.PutUint16(buf[20:], samples)
	return buf
}

func TestDetectByteOrder(t *testing.T) {
	assert.Equal(t, segy.BigEndian, segy.DetectByteOrder(orderBuffer(binary.BigEndian, 1000, 2000)))
	assert.Equal(t, segy.LittleEndian, segy.DetectByteOrder(orderBuffer(binary.LittleEndian, 1000, 2000)))
	assert.Equal(t, segy.BigEndian, segy.DetectByteOrder(make([]byte, segy.BinaryHeaderSize)))
	// 0x0101 reads the same under both orders.
	assert.Equal(t, segy.BigEndian, segy.DetectByteOrder(orderBuffer(binary.LittleEndian, 0x0101, 0x0101)))
}

func cardBlock(first byte, fill byte) []byte {
	buf := make([]byte, segy.TextualHeaderSize)
	for i := range buf {
		buf[i] = fill
	}
	for card := 0; card < 11; card++ {
		buf[card*segy.CardSize] = first
	}
	return buf
}

func TestDetectTextEncoding(t *testing.T) {
	assert.Equal(t, segy.EncodingEBCDIC, segy.DetectTextEncoding(cardBlock(0xC3, 0x00)))
	assert.Equal(t, segy.EncodingASCII, segy.DetectTextEncoding(cardBlock(0x43, 0x00)))
	assert.Equal(t, segy.EncodingASCII, segy.DetectTextEncoding(cardBlock('X', ' ')))
	assert.Equal(t, segy.EncodingEBCDIC, segy.DetectTextEncoding(cardBlock('X', 0x40)))
	assert.Equal(t, segy.EncodingEBCDIC, segy.DetectTextEncoding(make([]byte, segy.TextualHeaderSize)))

	ten := make([]byte, segy.TextualHeaderSize)
	for card := 0; card < 10; card++ {
		ten[card*segy.CardSize] = 0x43
	}
	assert.Equal(t, segy.EncodingEBCDIC, segy.DetectTextEncoding(ten))
}

func TestTextualHeaderDecode(t *testing.T) {
	f := segytest.File{Lines: []string{"C 1 CLIENT ACME", "C 2 LINE 42"}}
	block := f.Bytes()[:segy.TextualHeaderSize]
	h, err := segy.NewTextualHeader(block)
	require.NoError(t, err)
	assert.Equal(t, segy.EncodingEBCDIC, h.Encoding)
	require.Len(t, h.Lines, 40)
	assert.Equal(t, "C 1 CLIENT ACME", h.Lines[0][:15])
	assert.Len(t, h.Lines[0], 80)
	assert.Equal(t, block, h.Raw())

	f.ASCII = true
	h, err = segy.NewTextualHeader(f.Bytes()[:segy.TextualHeaderSize])
	require.NoError(t, err)
	assert.Equal(t, segy.EncodingASCII, h.Encoding)
	assert.Contains(t, h.Text(), "C 2 LINE 42")

	_, err = segy.NewTextualHeader(block[:100])
	assert.ErrorIs(t, err, segy.ErrSegy)
}

func TestDecodeEBCDICReplacesControls(t *testing.T) {
	assert.Equal(t, "C A1 ", segy.DecodeEBCDIC([]byte{0xC3, 0x40, 0xC1, 0xF1, 0x05}))
}

func TestParseBinaryHeader(t *testing.T) {
	f := segytest.File{Format: segy.FormatIBMFloat32, Revision: 0x0100, Traces: [][]float64{segytest.Ramp(50)}}
	raw := f.BinaryHeader()
	h, err := segy.ParseBinaryHeader(raw)
	require.NoError(t, err)
	assert.Equal(t, segy.BigEndian, h.ByteOrder)
	assert.Equal(t, int16(50), h.SamplesPerTrace)
	assert.Equal(t, int16(4000), h.SampleIntervalUs)
	assert.Equal(t, segy.FormatIBMFloat32, h.DataSampleFormat)
	assert.Equal(t, segy.MeasurementMeters, h.MeasurementSystem)
	assert.Equal(t, uint16(0x0100), h.SegyRevision)
	assert.Equal(t, "Rev 1", h.RevisionLabel())
	assert.Len(t, h.Unassigned1, 240)
	assert.Len(t, h.Unassigned2, 94)

	_, err = segy.ParseBinaryHeader(raw[:399])
	assert.ErrorIs(t, err, segy.ErrSegy)

	bad := append([]byte(nil), raw...)
	binary.BigEndian.PutUint16(bad[24:], 7)
	_, err = segy.ParseBinaryHeader(bad)
	assert.ErrorIs(t, err, segy.ErrSegy)

	bad = append([]byte(nil), raw...)
	binary.BigEndian.PutUint16(bad[28:], 9)
	_, err = segy.ParseBinaryHeader(bad)
	assert.ErrorIs(t, err, segy.ErrSegy)

	bad = append([]byte(nil), raw...)
	binary.BigEndian.PutUint16(bad[54:], 3)
	_, err = segy.ParseBinaryHeader(bad)
	assert.ErrorIs(t, err, segy.ErrSegy)
}

func TestParseTraceHeader(t *testing.T) {
	f := segytest.File{Order: segy.LittleEndian, Traces: [][]float64{segytest.Ramp(10), segytest.Ramp(10)}}
	h, err := segy.ParseTraceHeader(f.TraceHeader(1), segy.LittleEndian)
	require.NoError(t, err)
	assert.Equal(t, int32(2), h.TraceSeqLine)
	assert.Equal(t, int16(segy.TraceSeismicData), h.TraceID.Code)
	assert.Equal(t, int16(-10), h.CoordinateScaler)
	assert.Equal(t, int32(500025), h.SourceX)
	assert.Equal(t, segy.UnitsLength, h.CoordinateUnits)
	assert.Equal(t, int16(10), h.NumSamples)
	assert.Equal(t, int16(4000), h.SampleIntervalUs)
	assert.Len(t, h.Unassigned, 60)
	assert.Equal(t, "SEG00000", string(h.Unassigned[52:60]))

	_, err = segy.ParseTraceHeader(make([]byte, 100), segy.BigEndian)
	assert.ErrorIs(t, err, segy.ErrSegy)

	bad := f.TraceHeader(0)
	binary.LittleEndian.PutUint16(bad[88:], 5)
	_, err = segy.ParseTraceHeader(bad, segy.LittleEndian)
	assert.ErrorIs(t, err, segy.ErrSegy)
}

func TestTraceIdentification(t *testing.T) {
	assert.Equal(t, "dead", segy.ParseTraceIdentification(2).String())
	opt := segy.ParseTraceIdentification(9)
	assert.True(t, opt.Optional())
	assert.Equal(t, int16(9), opt.Code)
	assert.True(t, segy.ParseTraceIdentification(32767).Optional())
	assert.Equal(t, int16(segy.TraceSeismicData), segy.ParseTraceIdentification(0).Code)
	assert.Equal(t, int16(segy.TraceSeismicData), segy.ParseTraceIdentification(-3).Code)
}

func TestDecodeTraceDataFormats(t *testing.T) {
	values := []float64{-3, -1, 0, 2, 100}
	for _, format := range []segy.SampleFormat{
		segy.FormatIBMFloat32, segy.FormatInt32, segy.FormatInt16,
		segy.FormatFixedPointWithGain, segy.FormatIEEEFloat32, segy.FormatInt8,
	} {
		for _, order := range []segy.ByteOrder{segy.BigEndian, segy.LittleEndian} {
			f := segytest.File{Order: order, Format: format, Traces: [][]float64{values}}
			data, err := segy.DecodeTraceData(f.EncodeSamples(values), format, len(values), order)
			require.NoError(t, err, "%s %s", format, order)
			assert.Equal(t, format, data.Format)
			assert.Equal(t, len(values), data.Len())
			got := data.Float32s()
			for i, v := range values {
				assert.InDelta(t, v, got[i], 1e-4, "%s %s sample %d", format, order, i)
			}
		}
	}
}

func TestDecodeTraceDataErrors(t *testing.T) {
	_, err := segy.DecodeTraceData(make([]byte, 10), segy.FormatInt32, 3, segy.BigEndian)
	assert.ErrorIs(t, err, segy.ErrSegy)
	_, err = segy.DecodeTraceData(make([]byte, 10), segy.SampleFormat(6), 1, segy.BigEndian)
	assert.ErrorIs(t, err, segy.ErrValidation)
	_, err = segy.DecodeTraceData(nil, segy.FormatInt8, -1, segy.BigEndian)
	assert.ErrorIs(t, err, segy.ErrValidation)
	_, err = segy.DecodeTraceData(nil, segy.FormatInt32, math.MaxInt/2, segy.BigEndian)
	assert.ErrorIs(t, err, segy.ErrValidation)
}

func TestFixedPointKeepsGain(t *testing.T) {
	raw := []byte{0x00, 0x03, 0x00, 0x05}
	data, err := segy.DecodeTraceData(raw, segy.FormatFixedPointWithGain, 1, segy.BigEndian)
	require.NoError(t, err)
	assert.Equal(t, segy.FixedPointSample{Gain: 3, Value: 5}, data.FixedPoint[0])
	assert.Equal(t, []float32{40}, data.Float32s())

	raw = []byte{0x00, 0x81, 0x00, 0x01, 0x00, 0xC8, 0xFF, 0xFF}
	data, err = segy.DecodeTraceData(raw, segy.FormatFixedPointWithGain, 2, segy.BigEndian)
	require.NoError(t, err)
	assert.Equal(t, segy.FixedPointSample{Gain: 0x81, Value: 1}, data.FixedPoint[0])
	assert.Equal(t, segy.FixedPointSample{Gain: 200, Value: -1}, data.FixedPoint[1])
	assert.True(t, math.IsInf(float64(data.FixedPoint[0].Float()), 1))
	assert.True(t, math.IsInf(float64(data.FixedPoint[1].Float()), -1))
}

func TestParseTraceBlockDownsample(t *testing.T) {
	f := segytest.File{Format: segy.FormatInt16, Traces: [][]float64{segytest.Ramp(10)}}
	raw := append(f.TraceHeader(0), f.EncodeSamples(f.Traces[0])...)
	block, err := segy.ParseTraceBlock(raw, segy.FormatInt16, -1, segy.BigEndian)
	require.NoError(t, err)
	assert.Equal(t, 10, block.Data.Len())

	small := block.Downsample(4)
	assert.Equal(t, []int16{1, 4, 7, 10}, small.Data.Int16)
	assert.Equal(t, int16(4), small.Header.NumSamples)
	assert.Equal(t, int16(10), block.Header.NumSamples)
}

func TestFileConfigValidateRange(t *testing.T) {
	cfg := segy.FileConfig{SamplesPerTrace: 10, SampleFormat: 3, HeaderSize: segy.FileHeaderSize}
	assert.NoError(t, cfg.ValidateRange(0, 5, 5, true))
	assert.NoError(t, cfg.ValidateRange(100, 0, 5, true))
	assert.ErrorIs(t, cfg.ValidateRange(3, 3, 5, true), segy.ErrValidation)
	assert.ErrorIs(t, cfg.ValidateRange(5, 1, 5, true), segy.ErrValidation)
	assert.ErrorIs(t, cfg.ValidateRange(1, math.MaxInt, 5, true), segy.ErrValidation)
	assert.ErrorIs(t, cfg.ValidateRange(-1, 1, 5, true), segy.ErrValidation)
	assert.NoError(t, cfg.ValidateRange(100, 5, 0, false))

	pos, err := cfg.TracePosition(2)
	require.NoError(t, err)
	assert.Equal(t, segy.FileHeaderSize+2*(240+20), pos)
	_, err = cfg.TracePosition(math.MaxInt / 2)
	assert.ErrorIs(t, err, segy.ErrValidation)
}

func TestTotalTraces(t *testing.T) {
	n, ok := segy.TotalTraces(3920, 400, 3600)
	assert.True(t, ok)
	assert.Equal(t, 0, n)
	n, ok = segy.TotalTraces(3600+3*400+399, 400, 3600)
	assert.True(t, ok)
	assert.Equal(t, 3, n)
	_, ok = segy.TotalTraces(3920, 0, 3600)
	assert.False(t, ok)
	_, ok = segy.TotalTraces(3920, 5000, 3600)
	assert.False(t, ok)
}

func TestTraceDataJSONNonFinite(t *testing.T) {
	inf := float32(math.Inf(1))
	data := segy.TraceData{Format: segy.FormatIBMFloat32, IBM: []float32{1.5, inf, -inf, float32(math.NaN())}}
	b, err := json.Marshal(data)
	require.NoError(t, err)
	assert.JSONEq(t, `{"format":1,"ibm":[1.5,null,null,null]}`, string(b))

	b, err = json.Marshal(segy.TraceData{Format: segy.FormatInt16, Int16: []int16{1, -2}})
	require.NoError(t, err)
	assert.NotContains(t, string(b), "ieee")
	assert.Contains(t, string(b), `"int16":[1,-2]`)
}

func TestIBMOverflowDecodesToInfinity(t *testing.T) {
	f := segytest.File{Format: segy.FormatIBMFloat32, Traces: [][]float64{{1, math.Inf(1), math.Inf(-1)}}}
	data, err := segy.DecodeTraceData(f.EncodeSamples(f.Traces[0]), segy.FormatIBMFloat32, 3, segy.BigEndian)
	require.NoError(t, err)
	assert.Equal(t, float32(1), data.IBM[0])
	assert.True(t, math.IsInf(float64(data.IBM[1]), 1))
	assert.True(t, math.IsInf(float64(data.IBM[2]), -1))
}
