package segy

import (
	"encoding/json"
	"fmt"
)

const (
	TraceHeaderSize      = 240
	traceUnassignedStart = 180
)

// TraceIdentification is the trace identification code. Codes 1-8 are
// named; 9-32767 are optional use; anything else is treated as seismic data.
type TraceIdentification struct {
	Code int16
}

const (
	TraceSeismicData int16 = iota + 1
	TraceDead
	TraceDummy
	TraceTimeBreak
	TraceUphole
	TraceSweep
	TraceTiming
	TraceWaterBreak
)

var traceIDNames = map[int16]string{
	TraceSeismicData: "seismic data",
	TraceDead:        "dead",
	TraceDummy:       "dummy",
	TraceTimeBreak:   "time break",
	TraceUphole:      "uphole",
	TraceSweep:       "sweep",
	TraceTiming:      "timing",
	TraceWaterBreak:  "water break",
}

// ParseTraceIdentification never fails; unknown codes map to seismic data.
func ParseTraceIdentification(code int16) TraceIdentification {
	if code >= 1 {
		return TraceIdentification{Code: code}
	}
	return TraceIdentification{Code: TraceSeismicData}
}

// Optional reports whether the code is in the optional-use range 9-32767.
func (t TraceIdentification) Optional() bool {
	return t.Code >= 9
}

func (t TraceIdentification) String() string {
	if name, ok := traceIDNames[t.Code]; ok {
		return name
	}
	return fmt.Sprintf("optional use (%d)", t.Code)
}

func (t TraceIdentification) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Code)
}

// CoordinateUnits is the coordinate units code of a trace header.
type CoordinateUnits int16

const (
	UnitsUnknown CoordinateUnits = iota
	UnitsLength
	UnitsSecondsOfArc
)

func parseCoordinateUnits(code int16) (CoordinateUnits, error) {
	if code < 0 || code > int16(UnitsSecondsOfArc) {
		return 0, fmt.Errorf("invalid coordinate units code: %d", code)
	}
	return CoordinateUnits(code), nil
}

// TraceHeader is the decoded 240-byte trace header.
type TraceHeader struct {
	TraceSeqLine             int32               `json:"trace_seq_line"`
	TraceSeqReel             int32               `json:"trace_seq_reel"`
	FieldRecordNumber        int32               `json:"field_record_number"`
	TraceNumber              int32               `json:"trace_number"`
	SourcePointNumber        int32               `json:"source_point_number"`
	CDPEnsembleNumber        int32               `json:"cdp_ensemble_number"`
	TraceNumberInEnsemble    int32               `json:"trace_number_in_ensemble"`
	TraceID                  TraceIdentification `json:"trace_id_code"`
	NumVertSummed            int16               `json:"num_vert_summed"`
	NumHorzStacked           int16               `json:"num_horz_stacked"`
	DataUse                  int16               `json:"data_use"`
	SourceToGroupDistance    int32               `json:"source_to_group_distance"`
	ReceiverElevation        int32               `json:"receiver_elevation"`
	SurfaceElevationAtSource int32               `json:"surface_elevation_at_source"`
	SourceDepth              int32               `json:"source_depth"`
	DatumElevationAtReceiver int32               `json:"datum_elevation_at_receiver"`
	DatumElevationAtSource   int32               `json:"datum_elevation_at_source"`
	WaterDepthAtSource       int32               `json:"water_depth_at_source"`
	WaterDepthAtReceiver     int32               `json:"water_depth_at_receiver"`
	ElevationScaler          int16               `json:"elevation_scaler"`
	CoordinateScaler         int16               `json:"coordinate_scaler"`
	SourceX                  int32               `json:"source_x"`
	SourceY                  int32               `json:"source_y"`
	GroupX                   int32               `json:"group_x"`
	GroupY                   int32               `json:"group_y"`
	CoordinateUnits          CoordinateUnits     `json:"coordinate_units"`
	WeatheringVelocity       int16               `json:"weathering_velocity"`
	SubweatheringVelocity    int16               `json:"subweathering_velocity"`
	UpholeTimeAtSource       int16               `json:"uphole_time_at_source"`
	UpholeTimeAtGroup        int16               `json:"uphole_time_at_group"`
	SourceStaticCorrection   int16               `json:"source_static_correction"`
	GroupStaticCorrection    int16               `json:"group_static_correction"`
	TotalStatic              int16               `json:"total_static"`
	LagTimeA                 int16               `json:"lag_time_a"`
	LagTimeB                 int16               `json:"lag_time_b"`
	DelayRecordingTime       int16               `json:"delay_recording_time"`
	MuteTimeStart            int16               `json:"mute_time_start"`
	MuteTimeEnd              int16               `json:"mute_time_end"`
	NumSamples               int16               `json:"num_samples"`
	SampleIntervalUs         int16               `json:"sample_interval_us"`
	GainType                 int16               `json:"gain_type"`
	InstrumentGainConstant   int16               `json:"instrument_gain_constant"`
	InstrumentInitialGain    int16               `json:"instrument_initial_gain"`
	Correlated               int16               `json:"correlated"`
	SweepFreqStart           int16               `json:"sweep_freq_start"`
	SweepFreqEnd             int16               `json:"sweep_freq_end"`
	SweepLengthMs            int16               `json:"sweep_length_ms"`
	SweepType                int16               `json:"sweep_type"`
	SweepTaperStartMs        int16               `json:"sweep_taper_start_ms"`
	SweepTaperEndMs          int16               `json:"sweep_taper_end_ms"`
	TaperType                int16               `json:"taper_type"`
	AliasFilterFreq          int16               `json:"alias_filter_freq"`
	AliasFilterSlope         int16               `json:"alias_filter_slope"`
	NotchFilterFreq          int16               `json:"notch_filter_freq"`
	NotchFilterSlope         int16               `json:"notch_filter_slope"`
	LowCutFreq               int16               `json:"low_cut_freq"`
	HighCutFreq              int16               `json:"high_cut_freq"`
	LowCutSlope              int16               `json:"low_cut_slope"`
	HighCutSlope             int16               `json:"high_cut_slope"`
	Year                     int16               `json:"year"`
	DayOfYear                int16               `json:"day_of_year"`
	Hour                     int16               `json:"hour"`
	Minute                   int16               `json:"minute"`
	Second                   int16               `json:"second"`
	TimeBasisCode            int16               `json:"time_basis_code"`
	TraceWeightingFactor     int16               `json:"trace_weighting_factor"`
	GeophoneGroupRollPos1    int16               `json:"geophone_group_num_roll_pos1"`
	GeophoneGroupFirstTrace  int16               `json:"geophone_group_num_first_trace"`
	GeophoneGroupLastTrace   int16               `json:"geophone_group_num_last_trace"`
	GapSize                  int16               `json:"gap_size"`
	Overtravel               int16               `json:"overtravel"`

	// Unassigned holds bytes 181-240 verbatim.
	Unassigned []byte `json:"-"`
}

// ParseTraceHeader decodes a 240-byte trace header in the given order.
func ParseTraceHeader(data []byte, order ByteOrder) (*TraceHeader, error) {
	const op = "trace header"
	if len(data) < TraceHeaderSize {
		return nil, segyError(op, "need %d bytes, have %d", TraceHeaderSize, len(data))
	}
	r := &fieldReader{buf: data[:TraceHeaderSize], order: order.Engine()}
	h := &TraceHeader{}

	h.TraceSeqLine = r.i32()
	h.TraceSeqReel = r.i32()
	h.FieldRecordNumber = r.i32()
	h.TraceNumber = r.i32()
	h.SourcePointNumber = r.i32()
	h.CDPEnsembleNumber = r.i32()
	h.TraceNumberInEnsemble = r.i32()
	h.TraceID = ParseTraceIdentification(r.i16())
	h.NumVertSummed = r.i16()
	h.NumHorzStacked = r.i16()
	h.DataUse = r.i16()
	h.SourceToGroupDistance = r.i32()
	h.ReceiverElevation = r.i32()
	h.SurfaceElevationAtSource = r.i32()
	h.SourceDepth = r.i32()
	h.DatumElevationAtReceiver = r.i32()
	h.DatumElevationAtSource = r.i32()
	h.WaterDepthAtSource = r.i32()
	h.WaterDepthAtReceiver = r.i32()
	h.ElevationScaler = r.i16()
	h.CoordinateScaler = r.i16()
	h.SourceX = r.i32()
	h.SourceY = r.i32()
	h.GroupX = r.i32()
	h.GroupY = r.i32()
	units, err := parseCoordinateUnits(r.i16())
	if err != nil {
		return nil, wrapSegy(op, err, "decode failed")
	}
	h.CoordinateUnits = units

	for _, dst := range []*int16{
		&h.WeatheringVelocity, &h.SubweatheringVelocity,
		&h.UpholeTimeAtSource, &h.UpholeTimeAtGroup,
		&h.SourceStaticCorrection, &h.GroupStaticCorrection, &h.TotalStatic,
		&h.LagTimeA, &h.LagTimeB, &h.DelayRecordingTime,
		&h.MuteTimeStart, &h.MuteTimeEnd,
		&h.NumSamples, &h.SampleIntervalUs,
		&h.GainType, &h.InstrumentGainConstant, &h.InstrumentInitialGain,
		&h.Correlated, &h.SweepFreqStart, &h.SweepFreqEnd, &h.SweepLengthMs,
		&h.SweepType, &h.SweepTaperStartMs, &h.SweepTaperEndMs, &h.TaperType,
		&h.AliasFilterFreq, &h.AliasFilterSlope, &h.NotchFilterFreq, &h.NotchFilterSlope,
		&h.LowCutFreq, &h.HighCutFreq, &h.LowCutSlope, &h.HighCutSlope,
		&h.Year, &h.DayOfYear, &h.Hour, &h.Minute, &h.Second,
		&h.TimeBasisCode, &h.TraceWeightingFactor,
		&h.GeophoneGroupRollPos1, &h.GeophoneGroupFirstTrace, &h.GeophoneGroupLastTrace,
		&h.GapSize, &h.Overtravel,
	} {
		*dst = r.i16()
	}
	h.Unassigned = r.bytes(TraceHeaderSize - traceUnassignedStart)
	return h, nil
}

// TraceBlock is a decoded trace header and its samples.
type TraceBlock struct {
	Header TraceHeader `json:"header"`
	Data   TraceData   `json:"data"`
}

// ParseTraceBlock decodes a trace header and n samples following it. A
// negative n uses the header's own sample count.
func ParseTraceBlock(data []byte, format SampleFormat, n int, order ByteOrder) (*TraceBlock, error) {
	h, err := ParseTraceHeader(data, order)
	if err != nil {
		return nil, err
	}
	if n < 0 {
		n = int(h.NumSamples)
	}
	samples, err := DecodeTraceData(data[TraceHeaderSize:], format, n, order)
	if err != nil {
		return nil, err
	}
	return &TraceBlock{Header: *h, Data: samples}, nil
}

// Downsample limits the samples and keeps the header's count consistent.
func (b TraceBlock) Downsample(max int) TraceBlock {
	if max <= 0 {
		return b
	}
	b.Data = b.Data.Downsample(max)
	b.Header.NumSamples = int16(b.Data.Len())
	return b
}
