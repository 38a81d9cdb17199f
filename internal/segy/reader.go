package segy

import (
	"example.com/segyview/internal/common"
	"example.com/segyview/internal/spec"
)

// Option configures Open.
type Option func(*openOptions)

type openOptions struct {
	maxDecompressed int64
	metrics         *common.Metrics
}

// WithMaxDecompressedSize bounds how many bytes a compressed input may
// inflate to.
func WithMaxDecompressedSize(n int64) Option {
	return func(o *openOptions) {
		if n > 0 {
			o.maxDecompressed = n
		}
	}
}

// WithMetrics records decoded traces and bytes on m.
func WithMetrics(m *common.Metrics) Option {
	return func(o *openOptions) {
		o.metrics = m
	}
}

// Reader serves random-access trace reads from one opened SEG-Y file. Its
// headers are decoded once at Open. Read methods are safe for concurrent use
// until Close.
type Reader struct {
	path      string
	source    dataSource
	size      int64
	textual   *TextualHeader
	binary    *BinaryHeader
	binaryRaw []byte
	config    FileConfig
	format    SampleFormat
	blockSize int
	total     int
	totalOK   bool
	metrics   *common.Metrics
}

// Open decodes the file headers of path and maps the file for reading.
func Open(path string, opts ...Option) (*Reader, error) {
	const op = "open"
	if path == "" {
		return nil, validationError(op, "empty path")
	}
	o := openOptions{maxDecompressed: defaultMaxDecompressed}
	for _, opt := range opts {
		opt(&o)
	}
	src, err := openSource(path, o.maxDecompressed)
	if err != nil {
		return nil, err
	}
	r, err := newReader(path, src)
	if err != nil {
		src.Close()
		return nil, err
	}
	r.metrics = o.metrics
	if r.metrics != nil {
		r.metrics.SetTotalBytes(r.size)
	}
	common.Logf("opened %s: %d bytes, %s, %s, %s", path, r.size, r.binary.DataSampleFormat, r.binary.ByteOrder, r.textual.Encoding)
	return r, nil
}

func newReader(path string, src dataSource) (*Reader, error) {
	const op = "open"
	size := src.Size()
	if size < FileHeaderSize {
		return nil, segyError(op, "file too small: %d bytes, need at least %d", size, FileHeaderSize)
	}
	text, err := src.Slice(0, TextualHeaderSize)
	if err != nil {
		return nil, wrapSegy(op, err, "textual header")
	}
	textual, err := NewTextualHeader(text)
	if err != nil {
		return nil, err
	}
	raw, err := src.Slice(TextualHeaderSize, BinaryHeaderSize)
	if err != nil {
		return nil, wrapSegy(op, err, "binary header")
	}
	binary, err := ParseBinaryHeader(raw)
	if err != nil {
		return nil, err
	}

	extended := int(binary.ExtendedTextualHeaders)
	if extended < 0 {
		return nil, validationError(op, "invalid extended textual header count: %d", extended)
	}
	extBytes, ok := checkedMul(extended, TextualHeaderSize)
	if !ok {
		return nil, validationError(op, "extended header size overflow")
	}
	headerSize, ok := checkedAdd(FileHeaderSize, extBytes)
	if !ok {
		return nil, validationError(op, "file header size overflow")
	}
	if size < int64(headerSize) {
		return nil, segyError(op, "file too small for %d extended textual headers: %d bytes, need %d", extended, size, headerSize)
	}
	for i := 0; i < extended; i++ {
		block, err := src.Slice(int64(FileHeaderSize+i*TextualHeaderSize), TextualHeaderSize)
		if err != nil {
			return nil, wrapSegy(op, err, "extended textual header %d", i+1)
		}
		ext, err := NewTextualHeader(block)
		if err != nil {
			return nil, err
		}
		textual.AppendLines(ext.Lines)
	}

	cfg, err := NewFileConfig(binary)
	if err != nil {
		return nil, err
	}
	cfg.HeaderSize = headerSize

	r := &Reader{
		path:      path,
		source:    src,
		size:      size,
		textual:   textual,
		binary:    binary,
		binaryRaw: append([]byte(nil), raw...),
		config:    cfg,
		format:    binary.DataSampleFormat,
	}
	if block, err := cfg.TraceBlockSize(); err == nil {
		r.blockSize = block
		r.total, r.totalOK = TotalTraces(size, block, headerSize)
	}
	return r, nil
}

func (r *Reader) Path() string {
	return r.path
}

// Size is the byte length of the (decompressed) file.
func (r *Reader) Size() int64 {
	return r.size
}

func (r *Reader) TextualHeader() *TextualHeader {
	return r.textual
}

func (r *Reader) BinaryHeader() *BinaryHeader {
	return r.binary
}

func (r *Reader) Config() FileConfig {
	return r.config
}

// TotalTraces reports the number of whole trace blocks in the file. ok is
// false when the trace block size is unusable.
func (r *Reader) TotalTraces() (n int, ok bool) {
	return r.total, r.totalOK
}

// Close releases the mapping and the file handle.
func (r *Reader) Close() error {
	if r.source == nil {
		return nil
	}
	err := r.source.Close()
	r.source = nil
	if err != nil {
		return ioError("close", err, "%s", r.path)
	}
	return nil
}

func (r *Reader) checkIndex(op string, index int) error {
	if r.source == nil {
		return ioError(op, errSourceClosed, "%s", r.path)
	}
	if index < 0 {
		return validationError(op, "negative trace index %d", index)
	}
	if r.totalOK && index >= r.total {
		return validationError(op, "trace index %d out of range (total %d)", index, r.total)
	}
	return nil
}

// copyRange copies length bytes at offset out of the source so the result
// outlives the mapping.
func (r *Reader) copyRange(op string, offset, length int) ([]byte, error) {
	view, err := r.source.Slice(int64(offset), length)
	if err != nil {
		return nil, wrapSegy(op, err, "trace bytes")
	}
	out := make([]byte, length)
	copy(out, view)
	if r.metrics != nil {
		r.metrics.AddBytes(int64(length))
	}
	return out, nil
}

// blockRange validates [start, start+count) and returns its byte offset
// and length.
func (r *Reader) blockRange(op string, start, count int) (offset, length int, err error) {
	if r.source == nil {
		return 0, 0, ioError(op, errSourceClosed, "%s", r.path)
	}
	if err := r.config.ValidateRange(start, count, r.total, r.totalOK); err != nil {
		return 0, 0, err
	}
	offset, err = r.config.TracePosition(start)
	if err != nil {
		return 0, 0, err
	}
	length, ok := checkedMul(count, r.blockSize)
	if !ok {
		return 0, 0, validationError(op, "trace range size overflow")
	}
	if _, ok := checkedAdd(offset, length); !ok {
		return 0, 0, validationError(op, "trace range end overflow")
	}
	return offset, length, nil
}

// LoadTrace decodes one trace block. maxSamples of 0 keeps every sample.
func (r *Reader) LoadTrace(index, maxSamples int) (*TraceBlock, error) {
	const op = "load trace"
	if err := r.checkIndex(op, index); err != nil {
		return nil, err
	}
	pos, err := r.config.TracePosition(index)
	if err != nil {
		return nil, err
	}
	data, err := r.copyRange(op, pos, r.blockSize)
	if err != nil {
		return nil, err
	}
	block, err := ParseTraceBlock(data, r.format, int(r.config.SamplesPerTrace), r.config.ByteOrder)
	if err != nil {
		return nil, err
	}
	if r.metrics != nil {
		r.metrics.AddTraces(1, 0)
	}
	out := block.Downsample(maxSamples)
	return &out, nil
}

// LoadTraceRange decodes count consecutive trace blocks starting at start.
// A zero count returns an empty slice without further checks.
func (r *Reader) LoadTraceRange(start, count, maxSamples int) ([]TraceBlock, error) {
	const op = "load trace range"
	if count == 0 {
		return []TraceBlock{}, nil
	}
	offset, length, err := r.blockRange(op, start, count)
	if err != nil {
		return nil, err
	}
	data, err := r.copyRange(op, offset, length)
	if err != nil {
		return nil, err
	}
	out := make([]TraceBlock, count)
	for i := range out {
		chunk := data[i*r.blockSize : (i+1)*r.blockSize]
		block, err := ParseTraceBlock(chunk, r.format, int(r.config.SamplesPerTrace), r.config.ByteOrder)
		if err != nil {
			return nil, err
		}
		out[i] = block.Downsample(maxSamples)
	}
	if r.metrics != nil {
		r.metrics.AddTraces(count, 0)
	}
	return out, nil
}

// LoadTraceDataRange is LoadTraceRange without trace header decoding.
func (r *Reader) LoadTraceDataRange(start, count, maxSamples int) ([]TraceData, error) {
	const op = "load trace data range"
	if count == 0 {
		return []TraceData{}, nil
	}
	offset, length, err := r.blockRange(op, start, count)
	if err != nil {
		return nil, err
	}
	data, err := r.copyRange(op, offset, length)
	if err != nil {
		return nil, err
	}
	out := make([]TraceData, count)
	for i := range out {
		chunk := data[i*r.blockSize+TraceHeaderSize : (i+1)*r.blockSize]
		samples, err := DecodeTraceData(chunk, r.format, int(r.config.SamplesPerTrace), r.config.ByteOrder)
		if err != nil {
			return nil, err
		}
		out[i] = samples.Downsample(maxSamples)
	}
	if r.metrics != nil {
		r.metrics.AddTraces(count, 0)
	}
	return out, nil
}

// LoadTraceHeaderBytes returns a copy of the raw 240-byte header of a trace.
func (r *Reader) LoadTraceHeaderBytes(index int) ([]byte, error) {
	const op = "load trace header"
	if err := r.checkIndex(op, index); err != nil {
		return nil, err
	}
	pos, err := r.config.TracePosition(index)
	if err != nil {
		return nil, err
	}
	return r.copyRange(op, pos, TraceHeaderSize)
}

// TraceHeaderMap decodes the header of trace index using the trace field
// table of t.
func (r *Reader) TraceHeaderMap(index int, t *spec.Table) (map[string]any, error) {
	header, err := r.LoadTraceHeaderBytes(index)
	if err != nil {
		return nil, err
	}
	return ParseHeaderMap(header, t.TraceHeader.Fields, r.config.ByteOrder)
}

// BinaryHeaderMap decodes the binary header using the binary field table of
// t, whose byte ranges are file positions.
func (r *Reader) BinaryHeaderMap(t *spec.Table) (map[string]any, error) {
	return ParseHeaderMapAt(r.binaryRaw, t.BinaryHeader.ByteOffset, t.BinaryHeader.Fields, r.config.ByteOrder)
}
