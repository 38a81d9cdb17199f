package report

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"

	"example.com/segyview/internal/common"
	"example.com/segyview/internal/segy"
)

var turkishFold = strings.NewReplacer("ğ", "g", "Ğ", "G", "ş", "s", "Ş", "S", "ı", "i", "İ", "I")

const (
	pageWidth    = 180.0
	previewName  = "preview"
	qrName       = "fingerprint-qr"
	qrSizePixels = 256
	qrSizeMM     = 32.0
)

// SaveSurveyPDF writes the survey to out in the survey's language.
func SaveSurveyPDF(s *Survey, out string) error {
	pdf, err := buildPDF(s)
	if err != nil {
		return err
	}
	return pdf.OutputFileAndClose(out)
}

// WriteSurveyPDF renders the survey into memory.
func WriteSurveyPDF(s *Survey) ([]byte, error) {
	pdf, err := buildPDF(s)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func buildPDF(s *Survey) (*gofpdf.Fpdf, error) {
	tr := NewTranslator(s.Lang)
	pdf := gofpdf.New("P", "mm", "A4", "")
	title := tr.T("report.title")
	pdf.SetTitle(title, true)
	pdf.SetAuthor("segyctl", false)
	pdf.SetCreator("segyctl", false)
	pdf.SetMargins(15, 20, 15)
	pdf.SetAutoPageBreak(true, 20)
	pdf.AddPage()

	// Core fonts are cp1252, which lacks six Turkish letters.
	cp1252 := pdf.UnicodeTranslatorFromDescriptor("")
	utf := func(s string) string { return cp1252(turkishFold.Replace(s)) }

	addPDFTitle(pdf, utf(title))
	if err := addFingerprint(pdf, s.Summary.Fingerprint, tr, utf); err != nil {
		return nil, err
	}
	addSummarySection(pdf, s, tr, utf)
	addBinarySection(pdf, s.Summary.BinaryHeader, tr, utf)
	addPreviewSection(pdf, s, tr, utf)
	addGeometrySection(pdf, s.Geometry, tr, utf)
	addTextualSection(pdf, s.Summary.TextualHeader, tr, utf)

	if pdf.Err() {
		return nil, pdf.Error()
	}
	return pdf, nil
}

func addPDFTitle(pdf *gofpdf.Fpdf, title string) {
	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, title)
	pdf.Ln(12)
}

func addSectionHeading(pdf *gofpdf.Fpdf, text string) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, text)
	pdf.Ln(9)
}

func addFingerprint(pdf *gofpdf.Fpdf, fingerprint string, tr Translator, utf func(string) string) error {
	if fingerprint == "" {
		return nil
	}
	png, err := FingerprintQR(fingerprint, qrSizePixels)
	if err != nil {
		return fmt.Errorf("fingerprint qr: %w", err)
	}
	pdf.RegisterImageOptionsReader(qrName, gofpdf.ImageOptions{ImageType: "PNG"}, bytes.NewReader(png))
	x := pdf.GetX() + pageWidth - qrSizeMM
	pdf.ImageOptions(qrName, x, 12, qrSizeMM, qrSizeMM, false, gofpdf.ImageOptions{ImageType: "PNG"}, 0, "")

	pdf.SetFont("Helvetica", "", 9)
	pdf.CellFormat(0, 5, utf(tr.Format("report.fingerprint", common.ShortFingerprint(fingerprint))), "", 1, "L", false, 0, "")
	pdf.Ln(4)
	return nil
}

func addSummarySection(pdf *gofpdf.Fpdf, s *Survey, tr Translator, utf func(string) string) {
	addSectionHeading(pdf, utf(tr.T("report.summary")))

	total := tr.T("report.unknown")
	if s.Summary.TotalTraces != nil {
		total = strconv.Itoa(*s.Summary.TotalTraces)
	}
	items := []struct {
		label string
		value string
	}{
		{label: "report.file", value: s.Summary.Path},
		{label: "report.size", value: common.FormatBytes(s.Summary.FileSize)},
		{label: "report.revision", value: s.Summary.Revision},
		{label: "report.format", value: s.Summary.SampleFormat},
		{label: "report.byte_order", value: s.Summary.ByteOrder.String()},
		{label: "report.encoding", value: strings.ToUpper(s.Summary.TextEncoding.String())},
		{label: "report.traces", value: total},
		{label: "report.generated", value: s.GeneratedAt.Format(time.RFC3339)},
	}
	pdf.SetFont("Helvetica", "", 11)
	for _, item := range items {
		pdf.CellFormat(50, 6, utf(tr.T(item.label)), "", 0, "L", false, 0, "")
		pdf.CellFormat(0, 6, utf(emptyFallback(item.value, "-")), "", 1, "L", false, 0, "")
	}
	pdf.Ln(4)
}

func addBinarySection(pdf *gofpdf.Fpdf, h *segy.BinaryHeader, tr Translator, utf func(string) string) {
	if h == nil {
		return
	}
	addSectionHeading(pdf, utf(tr.T("report.binary_header")))

	rows := [][2]string{
		{"report.sample_interval", tr.Format("report.microseconds", h.SampleIntervalUs)},
		{"report.samples_per_trace", strconv.Itoa(int(h.SamplesPerTrace))},
		{"report.traces_per_record", strconv.Itoa(int(h.TracesPerRecord))},
		{"report.cdp_fold", strconv.Itoa(int(h.CDPFold))},
		{"report.measurement", measurementLabel(h.MeasurementSystem, tr)},
		{"report.extended_headers", strconv.Itoa(int(h.ExtendedTextualHeaders))},
	}
	widths := []float64{90, 90}
	pdf.SetFillColor(240, 240, 240)
	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(widths[0], 7, utf(tr.T("report.field")), "1", 0, "L", true, 0, "")
	pdf.CellFormat(widths[1], 7, utf(tr.T("report.value")), "1", 1, "L", true, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	for _, row := range rows {
		renderTableRow(pdf, widths, []string{utf(tr.T(row[0])), utf(row[1])}, 5)
	}
	pdf.Ln(4)
}

func addPreviewSection(pdf *gofpdf.Fpdf, s *Survey, tr Translator, utf func(string) string) {
	if len(s.Image) == 0 || s.Render == nil {
		return
	}
	addSectionHeading(pdf, utf(tr.T("report.preview")))
	pdf.RegisterImageOptionsReader(previewName, gofpdf.ImageOptions{ImageType: "PNG"}, bytes.NewReader(s.Image))

	w := pageWidth
	h := w * float64(s.Render.Height) / float64(max(s.Render.Width, 1))
	if h > 150 {
		w = w * 150 / h
		h = 150
	}
	pdf.ImageOptions(previewName, pdf.GetX(), pdf.GetY(), w, h, true, gofpdf.ImageOptions{ImageType: "PNG"}, 0, "")

	cfg := s.Render.Config
	caption := tr.Format("report.render_caption",
		cfg.Mode.String(), cfg.Colormap.String(), cfg.Scaling.String(),
		cfg.Viewport.StartTrace, cfg.Viewport.StartTrace+cfg.Viewport.TraceCount, s.Render.Millis)
	pdf.SetFont("Helvetica", "I", 9)
	pdf.MultiCell(0, 5, utf(caption), "", "L", false)
	pdf.Ln(4)
}

func addGeometrySection(pdf *gofpdf.Fpdf, rows []TraceRow, tr Translator, utf func(string) string) {
	if len(rows) == 0 {
		return
	}
	addSectionHeading(pdf, utf(tr.T("report.geometry")))

	headers := []string{tr.T("report.trace"), "Inline", "Crossline", "CDP X", "CDP Y", tr.T("report.scaler")}
	widths := []float64{24, 28, 28, 38, 38, 24}
	pdf.SetFillColor(240, 240, 240)
	pdf.SetFont("Helvetica", "B", 10)
	for i, h := range headers {
		pdf.CellFormat(widths[i], 7, utf(h), "1", 0, "L", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 9)
	for _, row := range rows {
		values := []string{strconv.Itoa(row.Index)}
		for _, key := range geometryKeys {
			v, ok := row.Fields[key]
			if !ok {
				values = append(values, "-")
				continue
			}
			values = append(values, strconv.FormatInt(v, 10))
		}
		renderTableRow(pdf, widths, values, 5)
	}
	pdf.Ln(4)
}

func addTextualSection(pdf *gofpdf.Fpdf, lines []string, tr Translator, utf func(string) string) {
	addSectionHeading(pdf, utf(tr.T("report.textual_header")))
	if len(lines) == 0 {
		pdf.SetFont("Helvetica", "", 11)
		pdf.MultiCell(0, 6, utf(tr.T("report.no_text")), "", "L", false)
		return
	}
	pdf.SetFont("Courier", "", 7)
	for _, line := range lines {
		pdf.CellFormat(0, 3.2, strings.TrimRight(line, " "), "", 1, "L", false, 0, "")
	}
}

func renderTableRow(pdf *gofpdf.Fpdf, widths []float64, values []string, lineHeight float64) {
	xStart := pdf.GetX()
	yStart := pdf.GetY()
	maxLines := 1
	splitCols := make([][]string, len(values))
	for i, val := range values {
		text := emptyFallback(strings.TrimSpace(val), "-")
		lines := pdf.SplitText(text, widths[i]-2)
		if len(lines) == 0 {
			lines = []string{""}
		}
		splitCols[i] = lines
		if len(lines) > maxLines {
			maxLines = len(lines)
		}
	}
	rowHeight := float64(maxLines) * lineHeight
	x := xStart
	for i, lines := range splitCols {
		pdf.SetXY(x, yStart)
		pdf.MultiCell(widths[i], lineHeight, strings.Join(lines, "\n"), "1", "L", false)
		x += widths[i]
	}
	pdf.SetXY(xStart, yStart+rowHeight)
}

func measurementLabel(m segy.MeasurementSystem, tr Translator) string {
	switch m {
	case segy.MeasurementMeters:
		return tr.T("report.meters")
	case segy.MeasurementFeet:
		return tr.T("report.feet")
	default:
		return tr.T("report.unknown")
	}
}

func emptyFallback(val, fallback string) string {
	if strings.TrimSpace(val) == "" {
		return fallback
	}
	return val
}
