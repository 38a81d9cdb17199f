package segy_test

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ulikunitz/xz"

	"example.com/segyview/internal/common"
	"example.com/segyview/internal/segy"
	"example.com/segyview/internal/segytest"
	"example.com/segyview/internal/spec"
)

func writeFile(t *testing.T, f segytest.File) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "line.sgy")
	require.NoError(t, f.Write(path))
	return path
}

func openFile(t *testing.T, f segytest.File, opts ...segy.Option) *segy.Reader {
	t.Helper()
	r, err := segy.Open(writeFile(t, f), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return r
}

func TestOpenSingleTraceFile(t *testing.T) {
	f := segytest.File{Format: segy.FormatInt16, Traces: [][]float64{segytest.Ramp(80)}}
	path := writeFile(t, f)
	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, int64(3920), info.Size())

	r, err := segy.Open(path)
	require.NoError(t, err)
	defer r.Close()

	n, ok := r.TotalTraces()
	require.True(t, ok)
	assert.Equal(t, 1, n)

	blocks, err := r.LoadTraceRange(0, 1, 0)
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	assert.Equal(t, 80, blocks[0].Data.Len())
	assert.Equal(t, int16(80), blocks[0].Data.Int16[79])
	assert.Equal(t, int32(1), blocks[0].Header.TraceSeqLine)
}

func TestOpenErrors(t *testing.T) {
	_, err := segy.Open("")
	assert.ErrorIs(t, err, segy.ErrValidation)

	_, err = segy.Open(filepath.Join(t.TempDir(), "missing.sgy"))
	assert.ErrorIs(t, err, segy.ErrIO)

	small := filepath.Join(t.TempDir(), "small.sgy")
	require.NoError(t, os.WriteFile(small, make([]byte, 3599), 0o644))
	_, err = segy.Open(small)
	assert.ErrorIs(t, err, segy.ErrSegy)

	negative := int16(-1)
	_, err = segy.Open(writeFile(t, segytest.File{ExtendedCount: &negative, Traces: [][]float64{segytest.Ramp(4)}}))
	assert.ErrorIs(t, err, segy.ErrValidation)

	missing := int16(3)
	_, err = segy.Open(writeFile(t, segytest.File{ExtendedCount: &missing, Traces: [][]float64{segytest.Ramp(4)}}))
	assert.ErrorIs(t, err, segy.ErrSegy)

	kind, ok := segy.KindOf(err)
	assert.True(t, ok)
	assert.Equal(t, "segy", kind.String())
}

func TestLoadTraceRangeValidation(t *testing.T) {
	r := openFile(t, segytest.File{Format: segy.FormatInt16, Traces: [][]float64{segytest.Ramp(8), segytest.Ramp(8), segytest.Ramp(8)}})

	empty, err := r.LoadTraceRange(1000, 0, 0)
	require.NoError(t, err)
	assert.Empty(t, empty)

	emptyData, err := r.LoadTraceDataRange(-5, 0, 0)
	require.NoError(t, err)
	assert.Empty(t, emptyData)

	_, err = r.LoadTraceRange(2, 2, 0)
	assert.ErrorIs(t, err, segy.ErrValidation)
	_, err = r.LoadTraceRange(3, 1, 0)
	assert.ErrorIs(t, err, segy.ErrValidation)
	_, err = r.LoadTraceDataRange(1, 3, 0)
	assert.ErrorIs(t, err, segy.ErrValidation)
	_, err = r.LoadTrace(3, 0)
	assert.ErrorIs(t, err, segy.ErrValidation)
	_, err = r.LoadTrace(-1, 0)
	assert.ErrorIs(t, err, segy.ErrValidation)

	blocks, err := r.LoadTraceRange(1, 2, 0)
	require.NoError(t, err)
	require.Len(t, blocks, 2)
	assert.Equal(t, int32(2), blocks[0].Header.TraceSeqLine)
	assert.Equal(t, int32(3), blocks[1].Header.TraceSeqLine)
}

func TestLoadTraceDownsamples(t *testing.T) {
	r := openFile(t, segytest.File{Format: segy.FormatInt32, Traces: [][]float64{segytest.Ramp(10)}})
	block, err := r.LoadTrace(0, 4)
	require.NoError(t, err)
	assert.Equal(t, []int32{1, 4, 7, 10}, block.Data.Int32)

	data, err := r.LoadTraceDataRange(0, 1, 4)
	require.NoError(t, err)
	assert.Equal(t, []int32{1, 4, 7, 10}, data[0].Int32)
}

func TestExtendedHeadersShiftTraces(t *testing.T) {
	f := segytest.File{
		Format:   segy.FormatIEEEFloat32,
		Extended: [][]string{{"C41 EXTENDED ONE"}, {"C81 EXTENDED TWO"}},
		Traces:   [][]float64{segytest.Ramp(16), segytest.Sine(16, 5, 8, 0)},
	}
	r := openFile(t, f)

	lines := r.TextualHeader().Lines
	require.Len(t, lines, 120)
	assert.Contains(t, lines[40], "EXTENDED ONE")
	assert.Contains(t, lines[80], "EXTENDED TWO")
	assert.Equal(t, segy.FileHeaderSize+2*segy.TextualHeaderSize, r.Config().HeaderSize)

	n, ok := r.TotalTraces()
	require.True(t, ok)
	assert.Equal(t, 2, n)

	block, err := r.LoadTrace(1, 0)
	require.NoError(t, err)
	assert.Equal(t, int32(2), block.Header.TraceSeqLine)
	assert.InDelta(t, 5.0, block.Data.IEEE[2], 1e-5)
}

func TestLittleEndianFile(t *testing.T) {
	values := segytest.Sine(32, 100, 16, 0.3)
	r := openFile(t, segytest.File{Order: segy.LittleEndian, Format: segy.FormatIBMFloat32, Traces: [][]float64{values}})
	assert.Equal(t, segy.LittleEndian, r.BinaryHeader().ByteOrder)

	block, err := r.LoadTrace(0, 0)
	require.NoError(t, err)
	for i, v := range values {
		assert.InDelta(t, v, block.Data.IBM[i], 1e-3)
	}
}

// Samples are read in the byte order detected from the binary header, not
// always big-endian.
func TestLittleEndianSamplesFollowHeaderOrder(t *testing.T) {
	start := segy.FileHeaderSize + segy.TraceHeaderSize

	ints := segytest.File{Order: segy.LittleEndian, Format: segy.FormatInt16, Traces: [][]float64{{1, -300, 12345}}}
	raw := ints.Bytes()
	require.Equal(t, uint16(1), binary.LittleEndian.Uint16(raw[start:]))
	r := openFile(t, ints)
	require.Equal(t, segy.LittleEndian, r.BinaryHeader().ByteOrder)
	block, err := r.LoadTrace(0, 0)
	require.NoError(t, err)
	assert.Equal(t, []int16{1, -300, 12345}, block.Data.Int16)

	floats := segytest.File{Order: segy.LittleEndian, Format: segy.FormatIEEEFloat32, Traces: [][]float64{{1.5, -2.25, 1000}}}
	raw = floats.Bytes()
	require.Equal(t, math.Float32bits(1.5), binary.LittleEndian.Uint32(raw[start:]))
	r = openFile(t, floats)
	block, err = r.LoadTrace(0, 0)
	require.NoError(t, err)
	assert.Equal(t, []float32{1.5, -2.25, 1000}, block.Data.IEEE)
}

func TestUnknownTotalTraces(t *testing.T) {
	f := segytest.File{Format: segy.FormatInt16, Traces: [][]float64{{}}}
	r := openFile(t, f)
	_, ok := r.TotalTraces()
	assert.False(t, ok)
	assert.Nil(t, r.Summary().TotalTraces)

	_, err := r.LoadTrace(0, 0)
	assert.ErrorIs(t, err, segy.ErrValidation)
}

func TestPartialTrailingBlockIsIgnored(t *testing.T) {
	r := openFile(t, segytest.File{Format: segy.FormatInt8, Traces: [][]float64{segytest.Ramp(20), segytest.Ramp(20)}, TrailingBytes: 100})
	n, ok := r.TotalTraces()
	require.True(t, ok)
	assert.Equal(t, 2, n)
}

func compressTo(t *testing.T, path string, data []byte) {
	t.Helper()
	var buf bytes.Buffer
	var w io.WriteCloser
	var err error
	switch filepath.Ext(path) {
	case ".gz":
		w = gzip.NewWriter(&buf)
	case ".zst":
		w, err = zstd.NewWriter(&buf)
	case ".sz":
		w = s2.NewWriter(&buf)
	case ".lz4":
		w = lz4.NewWriter(&buf)
	case ".xz":
		w, err = xz.NewWriter(&buf)
	}
	require.NoError(t, err)
	_, err = w.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

func TestCompressedInputs(t *testing.T) {
	f := segytest.File{Format: segy.FormatIEEEFloat32, Traces: [][]float64{segytest.Ramp(40), segytest.Sine(40, 3, 10, 0), segytest.Ramp(40)}}
	plain := openFile(t, f)
	want, err := plain.LoadTraceRange(0, 3, 0)
	require.NoError(t, err)

	for _, ext := range []string{".gz", ".zst", ".sz", ".lz4", ".xz"} {
		t.Run(ext, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "line.sgy"+ext)
			compressTo(t, path, f.Bytes())
			assert.NotEqual(t, segy.CompressionNone, segy.CompressionFor(path))

			r, err := segy.Open(path)
			require.NoError(t, err)
			defer r.Close()
			assert.Equal(t, int64(len(f.Bytes())), r.Size())
			got, err := r.LoadTraceRange(0, 3, 0)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestDecompressedSizeLimit(t *testing.T) {
	f := segytest.File{Format: segy.FormatInt32, Traces: [][]float64{segytest.Ramp(400)}}
	path := filepath.Join(t.TempDir(), "line.sgy.gz")
	compressTo(t, path, f.Bytes())
	_, err := segy.Open(path, segy.WithMaxDecompressedSize(4000))
	assert.ErrorIs(t, err, segy.ErrValidation)
}

func TestCompressedTooSmall(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tiny.sgy.zst")
	compressTo(t, path, make([]byte, 1000))
	_, err := segy.Open(path)
	assert.ErrorIs(t, err, segy.ErrSegy)
}

func TestReaderAfterClose(t *testing.T) {
	r, err := segy.Open(writeFile(t, segytest.File{Traces: [][]float64{segytest.Ramp(4)}}))
	require.NoError(t, err)
	require.NoError(t, r.Close())
	require.NoError(t, r.Close())
	_, err = r.LoadTrace(0, 0)
	assert.ErrorIs(t, err, segy.ErrIO)
}

func TestHeaderMaps(t *testing.T) {
	r := openFile(t, segytest.File{Format: segy.FormatInt16, Revision: 0x0200, Traces: [][]float64{segytest.Ramp(80), segytest.Ramp(80)}})
	table := spec.MustLoad(r.BinaryHeader().SegyRevision)

	m, err := r.TraceHeaderMap(1, table)
	require.NoError(t, err)
	assert.Equal(t, int64(2), m["trace_seq_line"])
	assert.Equal(t, int64(80), m["num_samples"])
	assert.Equal(t, int64(500025), m["cdp_x"])
	assert.Equal(t, int64(-10), m["coordinate_scaler"])
	assert.Equal(t, "SEG00000", m["trace_header_name"])

	bm, err := r.BinaryHeaderMap(table)
	require.NoError(t, err)
	assert.Equal(t, int64(80), bm["samples_per_trace"])
	assert.Equal(t, int64(3), bm["data_sample_format"])
	assert.Equal(t, uint64(2), bm["segy_revision"])
	assert.Equal(t, uint64(0), bm["segy_revision_minor"])

	rev21 := spec.MustLoad(0x0201)
	m, err = r.TraceHeaderMap(0, rev21)
	require.NoError(t, err)
	assert.Equal(t, uint64(80), m["num_samples"])

	_, err = r.TraceHeaderMap(2, table)
	assert.ErrorIs(t, err, segy.ErrValidation)
}

func TestParseHeaderMapBounds(t *testing.T) {
	fields := []spec.HeaderFieldSpec{{FieldKey: "tail", ByteStart: 239, ByteEnd: 242, DataType: "int32"}}
	_, err := segy.ParseHeaderMap(make([]byte, 240), fields, segy.BigEndian)
	assert.ErrorIs(t, err, segy.ErrSegy)

	short := []spec.HeaderFieldSpec{{FieldKey: "short", ByteStart: 1, ByteEnd: 2, DataType: "int32"}}
	_, err = segy.ParseHeaderMap(make([]byte, 240), short, segy.BigEndian)
	assert.ErrorIs(t, err, segy.ErrSegy)

	text := []spec.HeaderFieldSpec{{FieldKey: "name", ByteStart: 1, ByteEnd: 8, DataType: "s8"}}
	m, err := segy.ParseHeaderMap([]byte(" ABC\x00\x00  "), text, segy.BigEndian)
	require.NoError(t, err)
	assert.Equal(t, "ABC", m["name"])
}

func TestSummary(t *testing.T) {
	r := openFile(t, segytest.File{ASCII: true, Revision: 0x0100, Format: segy.FormatIBMFloat32, Traces: [][]float64{segytest.Ramp(10), segytest.Ramp(10)}})
	s := r.Summary()
	require.NotNil(t, s.TotalTraces)
	assert.Equal(t, 2, *s.TotalTraces)
	assert.Equal(t, "Rev 1", s.Revision)
	assert.Equal(t, segy.EncodingASCII, s.TextEncoding)
	assert.Equal(t, segy.BigEndian, s.ByteOrder)
	assert.Equal(t, "IBM Float32", s.SampleFormat)
	assert.Equal(t, 280, s.TraceBlockSize)
	assert.Len(t, s.TextualHeader, 40)
	assert.Equal(t, int64(3600+2*280), s.FileSize)
}

func TestReaderMetrics(t *testing.T) {
	m := common.NewMetrics()
	r := openFile(t, segytest.File{Format: segy.FormatInt16, Traces: [][]float64{segytest.Ramp(8), segytest.Ramp(8)}}, segy.WithMetrics(m))
	_, err := r.LoadTraceDataRange(0, 2, 0)
	require.NoError(t, err)
	snap := m.Snapshot()
	assert.Equal(t, int64(2), snap.Traces)
	assert.Equal(t, int64(2*(240+16)), snap.Bytes)
	assert.Equal(t, int64(3600+2*(240+16)), snap.TotalBytes)
}
