package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"example.com/segyview/internal/common"
	"example.com/segyview/internal/render"
	"example.com/segyview/internal/report"
)

// renderFlags are shared by render, report and batch.
type renderFlags struct {
	start     *int
	count     *int
	width     *int
	height    *int
	mode      *string
	colormap  *string
	scaling   *string
	lineWidth *float64
	workers   *int
}

func addRenderFlags(fs *flag.FlagSet) *renderFlags {
	return &renderFlags{
		start:     fs.Int("start", 0, "first trace"),
		count:     fs.Int("count", 0, "number of traces (0: to the end)"),
		width:     fs.Int("width", 800, "image width in pixels"),
		height:    fs.Int("height", 600, "image height in pixels"),
		mode:      fs.String("mode", "variable-density", "variable-density (vd), wiggle or wiggle-variable-density (wiggle-vd)"),
		colormap:  fs.String("colormap", "seismic", "seismic, grayscale, grayscale-inverted or viridis"),
		scaling:   fs.String("scaling", "percentile:0.98", "global:MAX, per-trace[:WINDOW], percentile[:P] or manual:FACTOR"),
		lineWidth: fs.Float64("line-width", 1, "wiggle line width"),
		workers:   fs.Int("workers", 0, "render workers (0: all CPUs)"),
	}
}

// config builds a render configuration. A zero --count is resolved
// against total when the trace count is known.
func (f *renderFlags) config(total int, totalKnown bool) (render.Config, error) {
	mode, err := render.ParseMode(*f.mode)
	if err != nil {
		return render.Config{}, err
	}
	cmap, err := render.ParseColormap(*f.colormap)
	if err != nil {
		return render.Config{}, err
	}
	scaling, err := render.ParseScaling(*f.scaling)
	if err != nil {
		return render.Config{}, err
	}
	count := *f.count
	if count == 0 && totalKnown {
		count = total - *f.start
	}
	cfg := render.Config{
		Viewport: render.Viewport{
			StartTrace: *f.start,
			TraceCount: count,
			Width:      *f.width,
			Height:     *f.height,
		},
		Colormap: cmap,
		Scaling:  scaling,
		Mode:     mode,
		Workers:  *f.workers,
	}
	if *f.lineWidth != 1 {
		wc := render.DefaultWiggleConfig(mode)
		wc.LineWidth = float32(*f.lineWidth)
		cfg.Wiggle = &wc
	}
	return cfg, cfg.Validate()
}

func renderCmd(args []string) {
	fs := flag.NewFlagSet("render", flag.ExitOnError)
	in := fs.String("in", "", "input SEG-Y file")
	out := fs.String("out", "", "output PNG")
	rf := addRenderFlags(fs)
	metricsFlag := fs.Bool("metrics", false, "print decode and render metrics")
	progressFlag := fs.Bool("progress", false, "display decode progress")
	fs.Parse(args)

	if *in == "" || *out == "" {
		fmt.Fprintln(stdout, "required: --in, --out")
		exit(1)
		return
	}

	var metrics *common.Metrics
	if *metricsFlag || *progressFlag {
		metrics = common.NewMetrics()
	}
	r := openInput(*in, 0, metrics)
	defer r.Close()
	total, known := r.TotalTraces()
	cfg, err := rf.config(total, known)
	if err != nil {
		fail("config", err)
	}
	if metrics != nil {
		if block, err := r.Config().TraceBlockSize(); err == nil {
			metrics.SetTotalBytes(int64(block) * int64(cfg.Viewport.TraceCount))
		}
		metrics.Start()
	}
	var stopProgress func()
	if metrics != nil && *progressFlag {
		stopProgress = common.StartProgressPrinter(os.Stderr, metrics, 500*time.Millisecond)
	}
	start := time.Now()
	img, err := render.RenderFrom(r, cfg)
	if stopProgress != nil {
		stopProgress()
	}
	if metrics != nil {
		metrics.IncRender()
		metrics.Stop()
	}
	if err != nil {
		fail("render", err)
	}
	if err := writeOutput(*out, img.Data); err != nil {
		fail("write image", err)
	}
	fmt.Fprintf(stdout, "Rendered %s: %dx%d %s, traces %d-%d, %s scaling in %s\n",
		*out, img.Width, img.Height, cfg.Mode, cfg.Viewport.StartTrace,
		cfg.Viewport.StartTrace+cfg.Viewport.TraceCount-1, cfg.Scaling,
		time.Since(start).Round(time.Millisecond))
	if metrics != nil && *metricsFlag {
		snap := metrics.Snapshot()
		fmt.Fprintf(stdout, "Metrics: duration=%s traces=%d read=%s throughput=%.2f MB/s (%.0f traces/s)\n",
			snap.Duration.Round(time.Millisecond),
			snap.Traces,
			common.FormatBytes(snap.Bytes),
			snap.ThroughputBytesPerSecond()/1_000_000,
			snap.TracesPerSecond(),
		)
	}
}

func reportCmd(args []string) {
	fs := flag.NewFlagSet("report", flag.ExitOnError)
	in := fs.String("in", "", "input SEG-Y file")
	out := fs.String("out", "", "output PDF")
	jsonOut := fs.String("json", "", "also write the survey summary as JSON")
	lang := fs.String("lang", "en", "report language (en, tr)")
	noPreview := fs.Bool("no-preview", false, "skip the preview image")
	rows := fs.Int("geometry-rows", 0, "sampled traces in the geometry table (0: 10, -1: none)")
	specDir := fs.String("spec-dir", "", "directory of rev*.json layouts")
	fromJSON := fs.String("from-json", "", "rebuild the PDF from a saved summary (--in restores the preview)")
	rf := addRenderFlags(fs)
	fs.Parse(args)

	if *fromJSON != "" {
		if *out == "" {
			fmt.Fprintln(stdout, "required: --out")
			exit(1)
			return
		}
		langSet := false
		fs.Visit(func(f *flag.Flag) {
			if f.Name == "lang" {
				langSet = true
			}
		})
		reportFromSummary(*fromJSON, *in, *out, *lang, langSet)
		return
	}
	if *in == "" || *out == "" {
		fmt.Fprintln(stdout, "required: --in, --out")
		exit(1)
		return
	}
	language, err := report.ParseLanguage(*lang)
	if err != nil {
		fail("lang", err)
	}
	r := openInput(*in, 0, nil)
	defer r.Close()

	opts := report.Options{
		Lang:         language,
		GeometryRows: *rows,
		Registry:     loadRegistry(*specDir),
		Fingerprint:  true,
	}
	if !*noPreview {
		total, known := r.TotalTraces()
		cfg, err := rf.config(total, known)
		if err != nil {
			fail("config", err)
		}
		opts.Render = &cfg
	}
	survey, err := report.Build(r, opts)
	if err != nil {
		fail("report", err)
	}
	if err := ensureDir(*out); err != nil {
		fail("output dir", err)
	}
	if err := report.SaveSurveyPDF(survey, *out); err != nil {
		fail("write pdf", err)
	}
	if *jsonOut != "" {
		if err := ensureDir(*jsonOut); err != nil {
			fail("output dir", err)
		}
		if err := report.SaveSurveyJSON(survey, *jsonOut); err != nil {
			fail("write json", err)
		}
	}
	fmt.Fprintf(stdout, "Report written to %s (fingerprint %s)\n", *out, common.ShortFingerprint(survey.Summary.Fingerprint))
}

func reportFromSummary(summaryPath, in, out, lang string, langSet bool) {
	survey, err := report.LoadSurveyJSON(summaryPath)
	if err != nil {
		fail("read summary", err)
	}
	if langSet {
		language, err := report.ParseLanguage(lang)
		if err != nil {
			fail("lang", err)
		}
		survey.Lang = language
	}
	if in != "" {
		r := openInput(in, 0, nil)
		defer r.Close()
		if err := report.RenderPreview(survey, r); err != nil {
			fail("preview", err)
		}
	}
	if err := ensureDir(out); err != nil {
		fail("output dir", err)
	}
	if err := report.SaveSurveyPDF(survey, out); err != nil {
		fail("write pdf", err)
	}
	fmt.Fprintf(stdout, "Report written to %s from %s\n", out, summaryPath)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func writeOutput(path string, data []byte) error {
	if err := ensureDir(path); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
