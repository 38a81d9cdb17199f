// Package report assembles survey overviews of SEG-Y files and writes
// them as JSON and PDF.
package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"example.com/segyview/internal/common"
	"example.com/segyview/internal/render"
	"example.com/segyview/internal/segy"
	"example.com/segyview/internal/spec"
)

const defaultGeometryRows = 10

// ErrFingerprintMismatch is returned when a saved survey is re-rendered
// from a file whose content changed.
var ErrFingerprintMismatch = errors.New("report: input does not match the saved fingerprint")

// geometryKeys are the trace header fields listed per sampled trace.
var geometryKeys = []string{"inline_number", "crossline_number", "cdp_x", "cdp_y", "coordinate_scaler"}

// Survey is the content of one report.
type Survey struct {
	Summary     segy.Summary   `json:"summary"`
	Render      *RenderSection `json:"render,omitempty"`
	Geometry    []TraceRow     `json:"geometry,omitempty"`
	GeneratedAt time.Time      `json:"generated_at"`
	Lang        Language       `json:"lang"`

	// Image is the rendered PNG. It is written to the PDF only.
	Image []byte `json:"-"`
}

// RenderSection records how the preview image was made.
type RenderSection struct {
	Config render.Config `json:"config"`
	Width  int           `json:"width"`
	Height int           `json:"height"`
	Millis int64         `json:"millis"`
}

// TraceRow holds the geometry fields of one sampled trace. Fields absent
// from the header layout are omitted.
type TraceRow struct {
	Index  int              `json:"index"`
	Fields map[string]int64 `json:"fields"`
}

type Options struct {
	// Render of nil skips the preview image.
	Render *render.Config
	Lang   Language
	// GeometryRows caps the sampled traces; zero means 10, negative none.
	GeometryRows int
	Registry     *spec.Registry
	// Fingerprint hashes the input file with blake3.
	Fingerprint bool
	Metrics     *common.Metrics
}

// Build reads the summary, a geometry sample and, when asked, a preview
// render from r.
func Build(r *segy.Reader, opts Options) (*Survey, error) {
	s := &Survey{
		Summary:     r.Summary(),
		GeneratedAt: time.Now().UTC(),
		Lang:        opts.Lang,
	}
	if s.Lang == "" {
		s.Lang = LangEnglish
	}

	if opts.Fingerprint {
		sum, _, err := common.FingerprintFile(r.Path())
		if err != nil {
			return nil, fmt.Errorf("fingerprint %s: %w", r.Path(), err)
		}
		s.Summary.Fingerprint = sum
	}

	rows, err := geometry(r, opts)
	if err != nil {
		return nil, err
	}
	s.Geometry = rows

	if opts.Render != nil {
		if err := s.renderPreview(r, *opts.Render, opts.Metrics); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// RenderPreview restores the preview image of a survey loaded with
// LoadSurveyJSON, using the recorded render configuration. When the survey
// carries a fingerprint, r must hash to the same value.
func RenderPreview(s *Survey, r *segy.Reader) error {
	if s.Render == nil {
		return nil
	}
	if s.Summary.Fingerprint != "" {
		sum, _, err := common.FingerprintFile(r.Path())
		if err != nil {
			return fmt.Errorf("fingerprint %s: %w", r.Path(), err)
		}
		if sum != s.Summary.Fingerprint {
			return fmt.Errorf("%w: %s", ErrFingerprintMismatch, r.Path())
		}
	}
	return s.renderPreview(r, s.Render.Config, nil)
}

func (s *Survey) renderPreview(r *segy.Reader, cfg render.Config, metrics *common.Metrics) error {
	start := time.Now()
	img, err := render.RenderFrom(r, cfg)
	if err != nil {
		return fmt.Errorf("render preview: %w", err)
	}
	if metrics != nil {
		metrics.IncRender()
	}
	s.Image = img.Data
	s.Render = &RenderSection{
		Config: cfg,
		Width:  img.Width,
		Height: img.Height,
		Millis: time.Since(start).Milliseconds(),
	}
	return nil
}

// geometry samples evenly spaced traces. Files older than Rev 1 are read
// with the Rev 1 layout, which is where the geometry fields are defined.
func geometry(r *segy.Reader, opts Options) ([]TraceRow, error) {
	total, ok := r.TotalTraces()
	if !ok || total == 0 || opts.GeometryRows < 0 {
		return nil, nil
	}
	n := opts.GeometryRows
	if n == 0 {
		n = defaultGeometryRows
	}
	if n > total {
		n = total
	}

	reg := opts.Registry
	if reg == nil {
		reg = spec.NewRegistry()
	}
	code := r.BinaryHeader().SegyRevision
	if spec.Resolve(code) == spec.Rev0 {
		code = 0x0100
	}
	table, err := reg.Load(code)
	if err != nil {
		return nil, err
	}

	rows := make([]TraceRow, 0, n)
	for i := 0; i < n; i++ {
		index := i * (total - 1) / max(n-1, 1)
		header, err := r.TraceHeaderMap(index, table)
		if err != nil {
			return nil, err
		}
		row := TraceRow{Index: index, Fields: map[string]int64{}}
		for _, key := range geometryKeys {
			switch v := header[key].(type) {
			case int64:
				row.Fields[key] = v
			case uint64:
				row.Fields[key] = int64(v)
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func SaveSurveyJSON(s *Survey, out string) error {
	b, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(out, b, 0644)
}

// LoadSurveyJSON reads a survey written by SaveSurveyJSON. The preview image
// is not stored; see RenderPreview.
func LoadSurveyJSON(path string) (*Survey, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var s Survey
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, err
	}
	return &s, nil
}
