package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"text/tabwriter"

	"example.com/segyview/internal/common"
	"example.com/segyview/internal/segy"
	"example.com/segyview/internal/spec"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

// stdout receives command output; tests replace it.
var stdout io.Writer = os.Stdout

func main() {
	if len(os.Args) < 2 {
		usage()
		return
	}
	cmd := os.Args[1]
	switch cmd {
	case "info":
		infoCmd(os.Args[2:])
	case "text":
		textCmd(os.Args[2:])
	case "headers":
		headersCmd(os.Args[2:])
	case "trace":
		traceCmd(os.Args[2:])
	case "render":
		renderCmd(os.Args[2:])
	case "spec":
		specCmd(os.Args[2:])
	case "report":
		reportCmd(os.Args[2:])
	case "batch":
		batchCmd(os.Args[2:])
	case "version":
		fmt.Fprintf(stdout, "segyctl %s (built %s, %s)\n", version, buildDate, runtime.Version())
	default:
		usage()
	}
}

func usage() {
	fmt.Fprintf(stdout, `segyctl %s (built %s) <command> [options]

Commands:
  info     --in <file> [--json] [--fingerprint]
  text     --in <file>
  headers  --in <file> [--start N] [--count M] [--revision R] [--spec-dir DIR]
  trace    --in <file> --index N [--max-samples K] [--json]
  render   --in <file> --out <image.png> [--start N] [--count M] [--width W] [--height H] [--mode vd|wiggle|wiggle-vd] [--colormap NAME] [--scaling KIND[:PARAM]] [--line-width W] [--workers N] [--metrics] [--progress]
  spec     [--revision R] [--section binary|trace] [--spec-dir DIR]
  report   --in <file> --out <report.pdf> [--json <summary.json>] [--lang en|tr] [--no-preview] [render options]
           --from-json <summary.json> --out <report.pdf> [--in <file>] [--lang en|tr]
  batch    --in <dir> --out-dir <dir> [render options]
  version

Inputs ending in .gz, .zst, .sz, .lz4 or .xz are decompressed in memory.
`, version, buildDate)
}

// fail prints "<op>: <err>" and exits 1.
func fail(op string, err error) {
	fmt.Fprintf(stdout, "%s: %v\n", op, err)
	exit(1)
}

var exit = os.Exit

func openInput(path string, maxMB int64, metrics *common.Metrics) *segy.Reader {
	var opts []segy.Option
	if maxMB > 0 {
		opts = append(opts, segy.WithMaxDecompressedSize(maxMB<<20))
	}
	if metrics != nil {
		opts = append(opts, segy.WithMetrics(metrics))
	}
	r, err := segy.Open(path, opts...)
	if err != nil {
		fail("open", err)
	}
	return r
}

func loadRegistry(dir string) *spec.Registry {
	if strings.TrimSpace(dir) == "" {
		return spec.NewRegistry()
	}
	reg, err := spec.NewRegistryFromDir(dir)
	if err != nil {
		fail("spec dir", err)
	}
	return reg
}

func infoCmd(args []string) {
	fs := flag.NewFlagSet("info", flag.ExitOnError)
	in := fs.String("in", "", "input SEG-Y file")
	asJSON := fs.Bool("json", false, "print the summary as JSON")
	fingerprint := fs.Bool("fingerprint", false, "include the blake3 fingerprint")
	maxMB := fs.Int64("max-decompressed-mb", 0, "limit for compressed inputs held in memory")
	fs.Parse(args)

	if *in == "" {
		fmt.Fprintln(stdout, "required: --in")
		exit(1)
		return
	}
	r := openInput(*in, *maxMB, nil)
	defer r.Close()
	summary := r.Summary()
	if *fingerprint {
		sum, _, err := common.FingerprintFile(*in)
		if err != nil {
			fail("fingerprint", err)
		}
		summary.Fingerprint = sum
	}
	if *asJSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(summary); err != nil {
			fail("encode", err)
		}
		return
	}

	h := summary.BinaryHeader
	w := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "File:\t%s\n", summary.Path)
	fmt.Fprintf(w, "Size:\t%s\n", common.FormatBytes(summary.FileSize))
	fmt.Fprintf(w, "Revision:\t%s\n", summary.Revision)
	fmt.Fprintf(w, "Byte order:\t%s\n", summary.ByteOrder)
	fmt.Fprintf(w, "Text encoding:\t%s\n", summary.TextEncoding)
	fmt.Fprintf(w, "Sample format:\t%s\n", summary.SampleFormat)
	fmt.Fprintf(w, "Samples per trace:\t%d\n", h.SamplesPerTrace)
	fmt.Fprintf(w, "Sample interval:\t%d µs\n", h.SampleIntervalUs)
	fmt.Fprintf(w, "Extended headers:\t%d\n", h.ExtendedTextualHeaders)
	if summary.TotalTraces != nil {
		fmt.Fprintf(w, "Traces:\t%d\n", *summary.TotalTraces)
	} else {
		fmt.Fprintf(w, "Traces:\tunknown\n")
	}
	if summary.Fingerprint != "" {
		fmt.Fprintf(w, "Fingerprint:\t%s\n", summary.Fingerprint)
	}
	w.Flush()
}

func textCmd(args []string) {
	fs := flag.NewFlagSet("text", flag.ExitOnError)
	in := fs.String("in", "", "input SEG-Y file")
	fs.Parse(args)

	if *in == "" {
		fmt.Fprintln(stdout, "required: --in")
		exit(1)
		return
	}
	r := openInput(*in, 0, nil)
	defer r.Close()
	fmt.Fprintln(stdout, r.TextualHeader().Text())
}

func headersCmd(args []string) {
	fs := flag.NewFlagSet("headers", flag.ExitOnError)
	in := fs.String("in", "", "input SEG-Y file")
	start := fs.Int("start", 0, "first trace index")
	count := fs.Int("count", -1, "number of traces (default: to the end)")
	revision := fs.String("revision", "", "header layout revision (default: from the file)")
	specDir := fs.String("spec-dir", "", "directory of rev*.json layouts")
	fs.Parse(args)

	if *in == "" {
		fmt.Fprintln(stdout, "required: --in")
		exit(1)
		return
	}
	r := openInput(*in, 0, nil)
	defer r.Close()
	reg := loadRegistry(*specDir)

	code := r.BinaryHeader().SegyRevision
	if *revision != "" {
		parsed, err := spec.ParseRevisionCode(*revision)
		if err != nil {
			fail("revision", err)
		}
		code = parsed
	}
	table, err := reg.Load(code)
	if err != nil {
		fail("spec", err)
	}

	n := *count
	if n < 0 {
		total, ok := r.TotalTraces()
		if !ok {
			fmt.Fprintln(stdout, "trace count unknown: pass --count")
			exit(1)
			return
		}
		n = total - *start
		if n < 0 {
			n = 0
		}
	}
	total, known := r.TotalTraces()
	if err := r.Config().ValidateRange(*start, n, total, known); err != nil {
		fail("headers", err)
	}
	enc := json.NewEncoder(stdout)
	for i := *start; i < *start+n; i++ {
		header, err := r.TraceHeaderMap(i, table)
		if err != nil {
			fail("headers", err)
		}
		if err := enc.Encode(map[string]any{"index": i, "header": header}); err != nil {
			fail("encode", err)
		}
	}
}

func traceCmd(args []string) {
	fs := flag.NewFlagSet("trace", flag.ExitOnError)
	in := fs.String("in", "", "input SEG-Y file")
	index := fs.Int("index", -1, "trace index")
	maxSamples := fs.Int("max-samples", 0, "downsample to at most this many samples")
	asJSON := fs.Bool("json", false, "print the trace block as JSON")
	fs.Parse(args)

	if *in == "" || *index < 0 {
		fmt.Fprintln(stdout, "required: --in, --index")
		exit(1)
		return
	}
	r := openInput(*in, 0, nil)
	defer r.Close()
	block, err := r.LoadTrace(*index, *maxSamples)
	if err != nil {
		fail("trace", err)
	}
	if *asJSON {
		if err := json.NewEncoder(stdout).Encode(block); err != nil {
			fail("encode", err)
		}
		return
	}
	h := block.Header
	fmt.Fprintf(stdout, "Trace %d: seq=%d cdp=%d id=%s samples=%d interval=%dus scaler=%d source=(%d,%d)\n",
		*index, h.TraceSeqLine, h.CDPEnsembleNumber, h.TraceID, block.Data.Len(), h.SampleIntervalUs,
		h.CoordinateScaler, h.SourceX, h.SourceY)
	for i, v := range block.Data.Float32s() {
		fmt.Fprintf(stdout, "%d\t%g\n", i, v)
	}
}

func specCmd(args []string) {
	fs := flag.NewFlagSet("spec", flag.ExitOnError)
	revision := fs.String("revision", "1", "revision code or label (0, 1, 2, 2.1, 0x0201)")
	section := fs.String("section", "trace", "binary or trace")
	specDir := fs.String("spec-dir", "", "directory of rev*.json layouts")
	fs.Parse(args)

	code, err := spec.ParseRevisionCode(*revision)
	if err != nil {
		fail("revision", err)
	}
	sec, err := spec.ParseSection(*section)
	if err != nil {
		fail("section", err)
	}
	table, err := loadRegistry(*specDir).Load(code)
	if err != nil {
		fail("spec", err)
	}
	fmt.Fprintf(stdout, "%s %s header (%s)\n", table.Revision, sec, table.Reference)
	w := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "BYTES\tKEY\tTYPE\tREQUIRED\tNAME")
	for _, f := range table.Fields(sec) {
		req := ""
		if f.Required {
			req = "yes"
		}
		fmt.Fprintf(w, "%d-%d\t%s\t%s\t%s\t%s\n", f.ByteStart, f.ByteEnd, f.FieldKey, f.DataType, req, f.Name)
	}
	w.Flush()
}
