package render

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var (
	ErrInvalidConfig   = errors.New("invalid render config")
	ErrInvalidViewport = errors.New("invalid viewport")
)

func configError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}

// Viewport selects a trace window and the output size in pixels.
type Viewport struct {
	StartTrace int `json:"startTrace"`
	TraceCount int `json:"traceCount"`
	Width      int `json:"width"`
	Height     int `json:"height"`
}

func (v Viewport) Validate() error {
	if v.Width <= 0 || v.Height <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidViewport, v.Width, v.Height)
	}
	if v.StartTrace < 0 || v.TraceCount < 0 {
		return fmt.Errorf("%w: start %d count %d", ErrInvalidViewport, v.StartTrace, v.TraceCount)
	}
	return nil
}

type Colormap int

const (
	Seismic Colormap = iota
	Grayscale
	GrayscaleInverted
	Viridis
)

var colormapNames = map[Colormap]string{
	Seismic:           "seismic",
	Grayscale:         "grayscale",
	GrayscaleInverted: "grayscale-inverted",
	Viridis:           "viridis",
}

func (c Colormap) String() string {
	if name, ok := colormapNames[c]; ok {
		return name
	}
	return fmt.Sprintf("colormap(%d)", int(c))
}

func ParseColormap(s string) (Colormap, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	for c, name := range colormapNames {
		if name == key {
			return c, nil
		}
	}
	return 0, configError("unknown colormap %q", s)
}

func (c Colormap) MarshalJSON() ([]byte, error) {
	if _, ok := colormapNames[c]; !ok {
		return nil, configError("unknown colormap %d", int(c))
	}
	return json.Marshal(c.String())
}

func (c *Colormap) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return configError("colormap: %v", err)
	}
	parsed, err := ParseColormap(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

type Mode int

const (
	VariableDensity Mode = iota
	Wiggle
	WiggleVariableDensity
)

var modeNames = map[Mode]string{
	VariableDensity:       "variable-density",
	Wiggle:                "wiggle",
	WiggleVariableDensity: "wiggle-variable-density",
}

func (m Mode) String() string {
	if name, ok := modeNames[m]; ok {
		return name
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// ParseMode accepts the kebab-case names plus the short aliases vd and
// wiggle-vd.
func ParseMode(s string) (Mode, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	switch key {
	case "vd":
		return VariableDensity, nil
	case "wiggle-vd":
		return WiggleVariableDensity, nil
	}
	for m, name := range modeNames {
		if name == key {
			return m, nil
		}
	}
	return 0, configError("unknown render mode %q", s)
}

func (m Mode) MarshalJSON() ([]byte, error) {
	if _, ok := modeNames[m]; !ok {
		return nil, configError("unknown render mode %d", int(m))
	}
	return json.Marshal(m.String())
}

func (m *Mode) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return configError("render mode: %v", err)
	}
	parsed, err := ParseMode(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

type ScalingKind int

const (
	ScaleGlobal ScalingKind = iota
	ScalePerTrace
	ScalePercentile
	ScaleManual
)

var scalingNames = map[ScalingKind]string{
	ScaleGlobal:     "global",
	ScalePerTrace:   "per-trace",
	ScalePercentile: "percentile",
	ScaleManual:     "manual",
}

func (k ScalingKind) String() string {
	if name, ok := scalingNames[k]; ok {
		return name
	}
	return fmt.Sprintf("scaling(%d)", int(k))
}

// Scaling selects one amplitude normalization. Only the parameter of the
// selected kind is read.
type Scaling struct {
	Kind         ScalingKind
	MaxAmplitude float32
	// WindowSize of zero normalizes each trace by its peak amplitude.
	WindowSize int
	Percentile float32
	Scale      float32
}

func GlobalScaling(maxAmplitude float32) Scaling {
	return Scaling{Kind: ScaleGlobal, MaxAmplitude: maxAmplitude}
}

func PerTraceScaling(window int) Scaling {
	return Scaling{Kind: ScalePerTrace, WindowSize: window}
}

func PercentileScaling(p float32) Scaling {
	return Scaling{Kind: ScalePercentile, Percentile: p}
}

func ManualScaling(scale float32) Scaling {
	return Scaling{Kind: ScaleManual, Scale: scale}
}

func finite(v float32) bool {
	f := float64(v)
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func (s Scaling) Validate() error {
	switch s.Kind {
	case ScaleGlobal:
		if s.MaxAmplitude == 0 || !finite(s.MaxAmplitude) {
			return configError("global scaling needs a finite non-zero max amplitude, got %v", s.MaxAmplitude)
		}
	case ScalePerTrace:
		if s.WindowSize < 0 {
			return configError("negative AGC window %d", s.WindowSize)
		}
	case ScalePercentile:
		if s.Percentile < 0 || s.Percentile > 1 || !finite(s.Percentile) {
			return configError("percentile %v outside [0,1]", s.Percentile)
		}
	case ScaleManual:
		if !finite(s.Scale) {
			return configError("manual scale %v is not finite", s.Scale)
		}
	default:
		return configError("unknown scaling kind %d", int(s.Kind))
	}
	return nil
}

func (s Scaling) String() string {
	switch s.Kind {
	case ScaleGlobal:
		return "global:" + strconv.FormatFloat(float64(s.MaxAmplitude), 'g', -1, 32)
	case ScalePerTrace:
		if s.WindowSize == 0 {
			return "per-trace"
		}
		return "per-trace:" + strconv.Itoa(s.WindowSize)
	case ScalePercentile:
		return "percentile:" + strconv.FormatFloat(float64(s.Percentile), 'g', -1, 32)
	case ScaleManual:
		return "manual:" + strconv.FormatFloat(float64(s.Scale), 'g', -1, 32)
	}
	return s.Kind.String()
}

// ParseScaling reads the command-line form kind[:param], for example
// "global:1200", "per-trace", "per-trace:64", "percentile:0.98",
// "manual:0.5".
func ParseScaling(s string) (Scaling, error) {
	kind, param, hasParam := strings.Cut(strings.ToLower(strings.TrimSpace(s)), ":")
	var out Scaling
	switch kind {
	case "global":
		if !hasParam {
			return Scaling{}, configError("global scaling needs a max amplitude, e.g. global:1000")
		}
		v, err := strconv.ParseFloat(param, 32)
		if err != nil {
			return Scaling{}, configError("global max amplitude %q: %v", param, err)
		}
		out = GlobalScaling(float32(v))
	case "per-trace", "agc":
		out = PerTraceScaling(0)
		if hasParam {
			w, err := strconv.Atoi(param)
			if err != nil {
				return Scaling{}, configError("AGC window %q: %v", param, err)
			}
			out.WindowSize = w
		}
	case "percentile":
		out = PercentileScaling(0.98)
		if hasParam {
			v, err := strconv.ParseFloat(param, 32)
			if err != nil {
				return Scaling{}, configError("percentile %q: %v", param, err)
			}
			out.Percentile = float32(v)
		}
	case "manual":
		if !hasParam {
			return Scaling{}, configError("manual scaling needs a factor, e.g. manual:0.01")
		}
		v, err := strconv.ParseFloat(param, 32)
		if err != nil {
			return Scaling{}, configError("manual scale %q: %v", param, err)
		}
		out = ManualScaling(float32(v))
	default:
		return Scaling{}, configError("unknown scaling %q", s)
	}
	return out, out.Validate()
}

type scalingJSON struct {
	Type         string   `json:"type"`
	MaxAmplitude *float32 `json:"maxAmplitude,omitempty"`
	WindowSize   *int     `json:"windowSize,omitempty"`
	Percentile   *float32 `json:"percentile,omitempty"`
	Scale        *float32 `json:"scale,omitempty"`
}

func (s Scaling) MarshalJSON() ([]byte, error) {
	out := scalingJSON{Type: s.Kind.String()}
	switch s.Kind {
	case ScaleGlobal:
		out.MaxAmplitude = &s.MaxAmplitude
	case ScalePerTrace:
		if s.WindowSize > 0 {
			out.WindowSize = &s.WindowSize
		}
	case ScalePercentile:
		out.Percentile = &s.Percentile
	case ScaleManual:
		out.Scale = &s.Scale
	default:
		return nil, configError("unknown scaling kind %d", int(s.Kind))
	}
	return json.Marshal(out)
}

func (s *Scaling) UnmarshalJSON(b []byte) error {
	var in scalingJSON
	if err := json.Unmarshal(b, &in); err != nil {
		return configError("scaling: %v", err)
	}
	var out Scaling
	switch in.Type {
	case "global":
		if in.MaxAmplitude == nil {
			return configError("global scaling: missing maxAmplitude")
		}
		out = GlobalScaling(*in.MaxAmplitude)
	case "per-trace":
		out = PerTraceScaling(0)
		if in.WindowSize != nil {
			out.WindowSize = *in.WindowSize
		}
	case "percentile":
		if in.Percentile == nil {
			return configError("percentile scaling: missing percentile")
		}
		out = PercentileScaling(*in.Percentile)
	case "manual":
		if in.Scale == nil {
			return configError("manual scaling: missing scale")
		}
		out = ManualScaling(*in.Scale)
	default:
		return configError("unknown scaling type %q", in.Type)
	}
	*s = out
	return nil
}

// RGB is an 8-bit colour, serialized as [r, g, b].
type RGB [3]uint8

var (
	black = RGB{0, 0, 0}
	white = RGB{255, 255, 255}
	red   = RGB{255, 0, 0}
)

type WiggleConfig struct {
	LineWidth         float32 `json:"lineWidth"`
	LineColor         RGB     `json:"lineColor"`
	FillPositive      bool    `json:"fillPositive"`
	FillNegative      bool    `json:"fillNegative"`
	PositiveFillColor RGB     `json:"positiveFillColor"`
	NegativeFillColor RGB     `json:"negativeFillColor"`
}

// DefaultWiggleConfig returns the wiggle settings used when a request
// carries none. Only the plain wiggle mode fills positive lobes.
func DefaultWiggleConfig(m Mode) WiggleConfig {
	cfg := WiggleConfig{
		LineWidth:         1,
		LineColor:         black,
		PositiveFillColor: black,
		NegativeFillColor: red,
	}
	if m == Wiggle {
		cfg.FillPositive = true
	}
	return cfg
}

func (w WiggleConfig) Validate() error {
	if w.LineWidth <= 0 || !finite(w.LineWidth) {
		return configError("line width %v must be positive", w.LineWidth)
	}
	return nil
}

// Config is one render request. Workers of zero uses every CPU.
type Config struct {
	Viewport Viewport      `json:"viewport"`
	Colormap Colormap      `json:"colormapType"`
	Scaling  Scaling       `json:"scaling"`
	Mode     Mode          `json:"renderMode"`
	Wiggle   *WiggleConfig `json:"wiggleConfig,omitempty"`
	Workers  int           `json:"-"`
}

func (c Config) Validate() error {
	if err := c.Viewport.Validate(); err != nil {
		return err
	}
	if _, ok := colormapNames[c.Colormap]; !ok {
		return configError("unknown colormap %d", int(c.Colormap))
	}
	if _, ok := modeNames[c.Mode]; !ok {
		return configError("unknown render mode %d", int(c.Mode))
	}
	if err := c.Scaling.Validate(); err != nil {
		return err
	}
	if c.Wiggle != nil {
		return c.Wiggle.Validate()
	}
	return nil
}

func (c Config) wiggle() WiggleConfig {
	if c.Wiggle != nil {
		return *c.Wiggle
	}
	return DefaultWiggleConfig(c.Mode)
}

// Image is an encoded render result.
type Image struct {
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Data   []byte `json:"data"`
	Format string `json:"format"`
}
