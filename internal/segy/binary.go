package segy

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"example.com/segyview/internal/spec"
)

const (
	BinaryHeaderSize = 400
	FileHeaderSize   = TextualHeaderSize + BinaryHeaderSize

	offSampleInterval  = 16
	offSamplesPerTrace = 20
	unassigned1Start   = 60
	unassigned1End     = 300
	unassigned2Start   = 306
	detectLimit        = 32000
)

// ByteOrder is the detected byte order of the binary structures in a file.
type ByteOrder int

const (
	BigEndian ByteOrder = iota
	LittleEndian
)

func (o ByteOrder) String() string {
	if o == LittleEndian {
		return "little-endian"
	}
	return "big-endian"
}

func (o ByteOrder) MarshalJSON() ([]byte, error) {
	return json.Marshal(o.String())
}

func (o *ByteOrder) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	switch s {
	case "little-endian":
		*o = LittleEndian
	case "big-endian":
		*o = BigEndian
	default:
		return fmt.Errorf("unknown byte order %q", s)
	}
	return nil
}

// Engine returns the encoding/binary implementation for the order.
func (o ByteOrder) Engine() binary.ByteOrder {
	if o == LittleEndian {
		return binary.LittleEndian
	}
	return binary.BigEndian
}

// DetectByteOrder inspects the sample interval and samples-per-trace fields
// of a binary header under both orders. When exactly one reading is
// plausible it wins; otherwise big-endian, the standard order, is assumed.
func DetectByteOrder(data []byte) ByteOrder {
	if len(data) < offSamplesPerTrace+2 {
		return BigEndian
	}
	plausible := func(order binary.ByteOrder) bool {
		samples := int16(order.Uint16(data[offSamplesPerTrace:]))
		interval := int16(order.Uint16(data[offSampleInterval:]))
		return samples > 0 && samples < detectLimit && interval > 0 && interval < detectLimit
	}
	big := plausible(binary.BigEndian)
	little := plausible(binary.LittleEndian)
	if little && !big {
		return LittleEndian
	}
	return BigEndian
}

// SampleFormat is the data sample format code of the binary header.
type SampleFormat int16

const (
	FormatIBMFloat32         SampleFormat = 1
	FormatInt32              SampleFormat = 2
	FormatInt16              SampleFormat = 3
	FormatFixedPointWithGain SampleFormat = 4
	FormatIEEEFloat32        SampleFormat = 5
	FormatInt8               SampleFormat = 8
)

// ParseSampleFormat validates a sample format code.
func ParseSampleFormat(code int16) (SampleFormat, error) {
	switch f := SampleFormat(code); f {
	case FormatIBMFloat32, FormatInt32, FormatInt16, FormatFixedPointWithGain, FormatIEEEFloat32, FormatInt8:
		return f, nil
	}
	return 0, fmt.Errorf("invalid data sample format code: %d", code)
}

// BytesPerSample returns the encoded width of one sample, or 0 for an
// unknown code.
func (f SampleFormat) BytesPerSample() int {
	switch f {
	case FormatIBMFloat32, FormatInt32, FormatFixedPointWithGain, FormatIEEEFloat32:
		return 4
	case FormatInt16:
		return 2
	case FormatInt8:
		return 1
	}
	return 0
}

func (f SampleFormat) String() string {
	switch f {
	case FormatIBMFloat32:
		return "IBM Float32"
	case FormatInt32:
		return "Int32"
	case FormatInt16:
		return "Int16"
	case FormatFixedPointWithGain:
		return "Fixed-point with gain"
	case FormatIEEEFloat32:
		return "IEEE Float32"
	case FormatInt8:
		return "Int8"
	}
	return fmt.Sprintf("SampleFormat(%d)", int16(f))
}

// TraceSorting is the trace sorting code of the binary header.
type TraceSorting int16

const (
	SortingUnknown TraceSorting = iota
	SortingAsRecorded
	SortingCDPEnsemble
	SortingSingleFold
	SortingHorizontallyStacked
)

func parseTraceSorting(code int16) (TraceSorting, error) {
	if code < 0 || code > int16(SortingHorizontallyStacked) {
		return 0, fmt.Errorf("invalid trace sorting code: %d", code)
	}
	return TraceSorting(code), nil
}

// MeasurementSystem is the measurement system code of the binary header.
type MeasurementSystem int16

const (
	MeasurementUnknown MeasurementSystem = iota
	MeasurementMeters
	MeasurementFeet
)

func parseMeasurementSystem(code int16) (MeasurementSystem, error) {
	if code < 0 || code > int16(MeasurementFeet) {
		return 0, fmt.Errorf("invalid measurement system code: %d", code)
	}
	return MeasurementSystem(code), nil
}

// BinaryHeader is the decoded 400-byte reel header.
type BinaryHeader struct {
	ByteOrder ByteOrder `json:"byte_order"`

	JobID                    int32             `json:"job_id"`
	LineNumber               int32             `json:"line_number"`
	ReelNumber               int32             `json:"reel_number"`
	TracesPerRecord          int16             `json:"traces_per_record"`
	AuxTracesPerRecord       int16             `json:"aux_traces_per_record"`
	SampleIntervalUs         int16             `json:"sample_interval_us"`
	OriginalSampleIntervalUs int16             `json:"original_sample_interval_us"`
	SamplesPerTrace          int16             `json:"samples_per_trace"`
	OriginalSamplesPerTrace  int16             `json:"original_samples_per_trace"`
	DataSampleFormat         SampleFormat      `json:"data_sample_format"`
	CDPFold                  int16             `json:"cdp_fold"`
	TraceSorting             TraceSorting      `json:"trace_sorting"`
	VerticalSumCode          int16             `json:"vertical_sum_code"`
	SweepFreqStart           int16             `json:"sweep_freq_start"`
	SweepFreqEnd             int16             `json:"sweep_freq_end"`
	SweepLengthMs            int16             `json:"sweep_length_ms"`
	SweepType                int16             `json:"sweep_type"`
	SweepChannel             int16             `json:"sweep_channel"`
	SweepTaperStartMs        int16             `json:"sweep_taper_start_ms"`
	SweepTaperEndMs          int16             `json:"sweep_taper_end_ms"`
	TaperType                int16             `json:"taper_type"`
	Correlated               int16             `json:"correlated"`
	BinaryGainRecovered      int16             `json:"binary_gain_recovered"`
	AmplitudeRecoveryMethod  int16             `json:"amplitude_recovery_method"`
	MeasurementSystem        MeasurementSystem `json:"measurement_system"`
	ImpulsePolarity          int16             `json:"impulse_polarity"`
	VibratoryPolarity        int16             `json:"vibratory_polarity"`
	SegyRevision             uint16            `json:"segy_revision"`
	FixedLengthTraceFlag     int16             `json:"fixed_length_trace_flag"`
	ExtendedTextualHeaders   int16             `json:"extended_textual_headers"`

	// Unassigned1 holds bytes 3261-3500 and Unassigned2 bytes 3507-3600,
	// preserved verbatim.
	Unassigned1 []byte `json:"-"`
	Unassigned2 []byte `json:"-"`
}

// fieldReader walks a buffer with a fixed byte order.
type fieldReader struct {
	buf   []byte
	pos   int
	order binary.ByteOrder
}

func (r *fieldReader) i16() int16 {
	v := int16(r.order.Uint16(r.buf[r.pos:]))
	r.pos += 2
	return v
}

func (r *fieldReader) u16() uint16 {
	v := r.order.Uint16(r.buf[r.pos:])
	r.pos += 2
	return v
}

func (r *fieldReader) i32() int32 {
	v := int32(r.order.Uint32(r.buf[r.pos:]))
	r.pos += 4
	return v
}

func (r *fieldReader) bytes(n int) []byte {
	out := make([]byte, n)
	copy(out, r.buf[r.pos:r.pos+n])
	r.pos += n
	return out
}

// ParseBinaryHeader decodes a 400-byte binary header, detecting its byte
// order first.
func ParseBinaryHeader(data []byte) (*BinaryHeader, error) {
	const op = "binary header"
	if len(data) != BinaryHeaderSize {
		return nil, segyError(op, "must be exactly %d bytes, got %d", BinaryHeaderSize, len(data))
	}
	order := DetectByteOrder(data)
	r := &fieldReader{buf: data, order: order.Engine()}
	h := &BinaryHeader{ByteOrder: order}

	h.JobID = r.i32()
	h.LineNumber = r.i32()
	h.ReelNumber = r.i32()
	h.TracesPerRecord = r.i16()
	h.AuxTracesPerRecord = r.i16()
	h.SampleIntervalUs = r.i16()
	h.OriginalSampleIntervalUs = r.i16()
	h.SamplesPerTrace = r.i16()
	h.OriginalSamplesPerTrace = r.i16()

	format, err := ParseSampleFormat(r.i16())
	if err != nil {
		return nil, wrapSegy(op, err, "decode failed")
	}
	h.DataSampleFormat = format
	h.CDPFold = r.i16()
	sorting, err := parseTraceSorting(r.i16())
	if err != nil {
		return nil, wrapSegy(op, err, "decode failed")
	}
	h.TraceSorting = sorting
	h.VerticalSumCode = r.i16()
	h.SweepFreqStart = r.i16()
	h.SweepFreqEnd = r.i16()
	h.SweepLengthMs = r.i16()
	h.SweepType = r.i16()
	h.SweepChannel = r.i16()
	h.SweepTaperStartMs = r.i16()
	h.SweepTaperEndMs = r.i16()
	h.TaperType = r.i16()
	h.Correlated = r.i16()
	h.BinaryGainRecovered = r.i16()
	h.AmplitudeRecoveryMethod = r.i16()
	measurement, err := parseMeasurementSystem(r.i16())
	if err != nil {
		return nil, wrapSegy(op, err, "decode failed")
	}
	h.MeasurementSystem = measurement
	h.ImpulsePolarity = r.i16()
	h.VibratoryPolarity = r.i16()

	h.Unassigned1 = r.bytes(unassigned1End - unassigned1Start)
	h.SegyRevision = r.u16()
	h.FixedLengthTraceFlag = r.i16()
	h.ExtendedTextualHeaders = r.i16()
	h.Unassigned2 = r.bytes(BinaryHeaderSize - unassigned2Start)
	return h, nil
}

// TraceBlockSize is the size of one trace block: the 240-byte trace header
// plus samples_per_trace samples of the declared format.
func (h *BinaryHeader) TraceBlockSize() (int, error) {
	cfg, err := NewFileConfig(h)
	if err != nil {
		return 0, err
	}
	return cfg.TraceBlockSize()
}

// RevisionLabel names the revision family the header's revision code
// resolves to.
func (h *BinaryHeader) RevisionLabel() string {
	return spec.Resolve(h.SegyRevision).String()
}
