package segy

// FileConfig is the minimal per-file configuration needed to locate and
// decode trace blocks without the rest of the binary header.
type FileConfig struct {
	SamplesPerTrace uint16    `json:"samplesPerTrace"`
	SampleFormat    uint16    `json:"dataSampleFormat"`
	ByteOrder       ByteOrder `json:"byteOrder"`
	// HeaderSize is the byte length of the textual, binary and extended
	// textual headers that precede the first trace.
	HeaderSize int `json:"headerSize"`
}

// NewFileConfig derives a FileConfig from a decoded binary header. The
// header size covers the textual and binary headers only; the reader
// extends it with any extended textual blocks.
func NewFileConfig(h *BinaryHeader) (FileConfig, error) {
	if h.SamplesPerTrace < 0 {
		return FileConfig{}, validationError("file config", "invalid samples per trace: %d", h.SamplesPerTrace)
	}
	return FileConfig{
		SamplesPerTrace: uint16(h.SamplesPerTrace),
		SampleFormat:    uint16(h.DataSampleFormat),
		ByteOrder:       h.ByteOrder,
		HeaderSize:      FileHeaderSize,
	}, nil
}

// Format returns the validated sample format.
func (c FileConfig) Format() (SampleFormat, error) {
	f, err := ParseSampleFormat(int16(c.SampleFormat))
	if err != nil {
		return 0, validationError("file config", "%v", err)
	}
	return f, nil
}

// TraceBlockSize returns 240 + samples × bytes per sample.
func (c FileConfig) TraceBlockSize() (int, error) {
	const op = "trace block size"
	if c.SamplesPerTrace == 0 {
		return 0, validationError(op, "samples per trace must be greater than 0")
	}
	f, err := c.Format()
	if err != nil {
		return 0, err
	}
	data, ok := checkedMul(int(c.SamplesPerTrace), f.BytesPerSample())
	if !ok {
		return 0, validationError(op, "trace data size overflow")
	}
	size, ok := checkedAdd(TraceHeaderSize, data)
	if !ok {
		return 0, validationError(op, "trace block size overflow")
	}
	return size, nil
}

// TracePosition returns the byte offset of trace index within the file.
func (c FileConfig) TracePosition(index int) (int, error) {
	const op = "trace position"
	if index < 0 {
		return 0, validationError(op, "negative trace index %d", index)
	}
	block, err := c.TraceBlockSize()
	if err != nil {
		return 0, err
	}
	offset, ok := checkedMul(index, block)
	if !ok {
		return 0, validationError(op, "trace offset overflow")
	}
	pos, ok := checkedAdd(c.HeaderSize, offset)
	if !ok {
		return 0, validationError(op, "trace position overflow")
	}
	return pos, nil
}

// ValidateRange checks [start, start+count) against a known trace total.
// A zero count is always valid.
func (c FileConfig) ValidateRange(start, count, total int, totalKnown bool) error {
	const op = "trace range"
	if count == 0 {
		return nil
	}
	if start < 0 || count < 0 {
		return validationError(op, "negative range start=%d count=%d", start, count)
	}
	if totalKnown {
		end, ok := checkedAdd(start, count)
		if !ok {
			return validationError(op, "range end overflow")
		}
		if start >= total || end > total {
			return validationError(op, "range [%d..%d) exceeds total traces %d", start, end, total)
		}
	}
	_, err := c.TraceBlockSize()
	return err
}

// TotalTraces computes how many whole trace blocks follow the file headers.
// ok is false when the block size is zero or larger than the file.
func TotalTraces(fileSize int64, blockSize, headerSize int) (n int, ok bool) {
	if blockSize <= 0 || int64(blockSize) > fileSize {
		return 0, false
	}
	data := fileSize - int64(headerSize)
	if data < 0 {
		data = 0
	}
	return int(data / int64(blockSize)), true
}
